package routing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/code-100-precent/LingCRM/internal/models"
	"github.com/code-100-precent/LingCRM/pkg/cache"
	"github.com/code-100-precent/LingCRM/pkg/logger"
	"github.com/code-100-precent/LingCRM/pkg/metrics"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const cacheName = "routing_rules"

// RulesCacheKey 线路启用规则的缓存键
func RulesCacheKey(phoneLineID uint) string {
	return fmt.Sprintf("routing:rules:line:%d", phoneLineID)
}

// CachedRuleSource 在 RuleSource 前加一层缓存，同一线路的并发加载只访问一次下游。
// 规则变更提交后必须调用 Invalidate。
type CachedRuleSource struct {
	next    RuleSource
	cache   cache.Cache
	ttl     time.Duration
	metrics *metrics.Metrics

	group singleflight.Group

	mu          sync.Mutex
	generations map[string]uint64
}

func NewCachedRuleSource(next RuleSource, c cache.Cache, ttl time.Duration, m *metrics.Metrics) *CachedRuleSource {
	return &CachedRuleSource{
		next:        next,
		cache:       c,
		ttl:         ttl,
		metrics:     m,
		generations: make(map[string]uint64),
	}
}

func (s *CachedRuleSource) generation(key string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generations[key]
}

func (s *CachedRuleSource) ActiveRules(ctx context.Context, phoneLineID uint) ([]models.RoutingRule, error) {
	key := RulesCacheKey(phoneLineID)

	if data, ok := s.cache.Get(ctx, key); ok {
		var rules []models.RoutingRule
		if err := sonic.Unmarshal(data, &rules); err == nil {
			s.recordCache(true)
			return rules, nil
		}
		logger.Warn("dropping undecodable routing cache entry", zap.String("key", key))
		_ = s.cache.Delete(ctx, key)
	}
	s.recordCache(false)

	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		gen := s.generation(key)
		rules, err := s.next.ActiveRules(ctx, phoneLineID)
		if err != nil {
			return nil, err
		}
		data, err := sonic.Marshal(rules)
		if err != nil {
			return nil, err
		}
		s.backfill(ctx, key, gen, data)
		return data, nil
	})
	if err != nil {
		return nil, err
	}

	var rules []models.RoutingRule
	if err := sonic.Unmarshal(v.([]byte), &rules); err != nil {
		return nil, err
	}
	return rules, nil
}

// backfill 在代数未变时回填缓存；持锁写入，Invalidate 的删除必然排在其后
func (s *CachedRuleSource) backfill(ctx context.Context, key string, gen uint64, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generations[key] != gen {
		return
	}
	if err := s.cache.Set(ctx, key, data, s.ttl); err != nil {
		logger.Warn("failed to cache routing rules", zap.String("key", key), zap.Error(err))
	}
}

// Invalidate 清除线路的规则缓存
func (s *CachedRuleSource) Invalidate(ctx context.Context, phoneLineIDs ...uint) {
	if len(phoneLineIDs) == 0 {
		return
	}
	keys := make([]string, 0, len(phoneLineIDs))
	s.mu.Lock()
	for _, id := range phoneLineIDs {
		key := RulesCacheKey(id)
		s.generations[key]++
		keys = append(keys, key)
	}
	s.mu.Unlock()

	for _, key := range keys {
		s.group.Forget(key)
	}
	if err := s.cache.Delete(ctx, keys...); err != nil {
		logger.Warn("failed to invalidate routing rules cache", zap.Strings("keys", keys), zap.Error(err))
	}
}

func (s *CachedRuleSource) recordCache(hit bool) {
	if s.metrics == nil {
		return
	}
	if hit {
		s.metrics.RecordCacheHit(cacheName, "get")
	} else {
		s.metrics.RecordCacheMiss(cacheName, "get")
	}
}
