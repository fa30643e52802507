package events

import (
	"sync"
	"time"

	"github.com/code-100-precent/LingCRM/pkg/logger"
	"go.uber.org/zap"
)

// 路由相关事件类型
const (
	TypeRuleTriggered = "routing.rule.triggered" // 来电命中规则
	TypeNoMatch       = "routing.no_match"       // 没有规则命中，走默认处理
	TypeRoutingError  = "routing.error"          // 规则配置错误
	TypeRulesChanged  = "routing.rules.changed"  // 线路规则被修改
)

// Event 系统事件
type Event struct {
	Type      string                 `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
	Source    string                 `json:"source"`
}

// EventHandler 事件处理器
type EventHandler func(event Event) error

// EventBus 进程内事件总线，处理器异步执行
type EventBus struct {
	handlers       map[string][]EventHandler
	publishedTypes map[string]time.Time
	mu             sync.RWMutex
	inflight       sync.WaitGroup
}

// NewEventBus 创建独立的总线实例
func NewEventBus() *EventBus {
	return &EventBus{
		handlers:       make(map[string][]EventHandler),
		publishedTypes: make(map[string]time.Time),
	}
}

var globalEventBus *EventBus
var once sync.Once

// GetEventBus 获取全局事件总线实例
func GetEventBus() *EventBus {
	once.Do(func() {
		globalEventBus = NewEventBus()
	})
	return globalEventBus
}

// Subscribe 订阅事件，eventType 为 "*" 时接收全部事件
func (bus *EventBus) Subscribe(eventType string, handler EventHandler) {
	bus.mu.Lock()
	defer bus.mu.Unlock()

	bus.handlers[eventType] = append(bus.handlers[eventType], handler)
	logger.Debug("Event handler subscribed", zap.String("eventType", eventType))
}

// Unsubscribe 移除该类型的所有处理器
func (bus *EventBus) Unsubscribe(eventType string) {
	bus.mu.Lock()
	defer bus.mu.Unlock()

	delete(bus.handlers, eventType)
}

// Publish 发布事件
func (bus *EventBus) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	bus.mu.Lock()
	if _, exists := bus.publishedTypes[event.Type]; !exists {
		bus.publishedTypes[event.Type] = event.Timestamp
	}
	handlers := make([]EventHandler, 0, len(bus.handlers[event.Type])+len(bus.handlers["*"]))
	handlers = append(handlers, bus.handlers[event.Type]...)
	handlers = append(handlers, bus.handlers["*"]...)
	bus.mu.Unlock()

	if len(handlers) == 0 {
		logger.Debug("No handlers for event", zap.String("eventType", event.Type))
		return
	}

	for _, handler := range handlers {
		bus.inflight.Add(1)
		go func(h EventHandler) {
			defer bus.inflight.Done()
			defer func() {
				if r := recover(); r != nil {
					logger.Error("Event handler panicked",
						zap.String("eventType", event.Type),
						zap.Any("panic", r))
				}
			}()
			if err := h(event); err != nil {
				logger.Error("Event handler failed",
					zap.String("eventType", event.Type),
					zap.Error(err))
			}
		}(handler)
	}
}

// Drain 等待已发布事件的处理器全部执行完，用于关闭和测试
func (bus *EventBus) Drain() {
	bus.inflight.Wait()
}

// GetPublishedEventTypes 获取所有发布过的事件类型
func (bus *EventBus) GetPublishedEventTypes() map[string]time.Time {
	bus.mu.RLock()
	defer bus.mu.RUnlock()

	result := make(map[string]time.Time, len(bus.publishedTypes))
	for k, v := range bus.publishedTypes {
		result[k] = v
	}
	return result
}

// PublishEvent 便捷方法：发布到全局总线
func PublishEvent(eventType string, data map[string]interface{}, source string) {
	GetEventBus().Publish(Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
		Source:    source,
	})
}
