package handlers

import (
	"github.com/code-100-precent/LingCRM/pkg/cache"
	"github.com/code-100-precent/LingCRM/pkg/config"
	"github.com/code-100-precent/LingCRM/pkg/events"
	"github.com/code-100-precent/LingCRM/pkg/logger"
	"github.com/code-100-precent/LingCRM/pkg/metrics"
	"github.com/code-100-precent/LingCRM/pkg/middleware"
	"github.com/code-100-precent/LingCRM/pkg/routing"
	"github.com/code-100-precent/LingCRM/pkg/telephony"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Handlers struct {
	db         *gorm.DB
	cache      cache.Cache
	rules      *routing.CachedRuleSource
	matcher    *routing.Matcher
	dispatcher *telephony.Dispatcher
	bus        *events.EventBus
	metrics    *metrics.Metrics
}

// NewHandlers 组装路由匹配器、缓存和 TwiML 渲染器，配置取自 config.GlobalConfig
func NewHandlers(db *gorm.DB, c cache.Cache, bus *events.EventBus, m *metrics.Metrics) *Handlers {
	cfg := config.GlobalConfig

	source := routing.NewDBRuleSource(db)
	rules := routing.NewCachedRuleSource(source, c, cfg.RuleCacheTTL, m)
	matcher := routing.NewMatcher(rules, source, routing.NewScheduleEvaluator(cfg.LocationLRUSize), m)
	dispatcher := telephony.NewDispatcher(telephony.Config{
		AIAgentBaseURL:       cfg.AIAgentBaseURL,
		IVRBaseURL:           cfg.IVRBaseURL,
		VoicemailCallbackURL: cfg.VoicemailCallbackURL,
		DefaultGreeting:      cfg.DefaultGreeting,
		DefaultVoice:         cfg.DefaultVoice,
		DefaultLanguage:      cfg.DefaultLanguage,
	})

	return &Handlers{
		db:         db,
		cache:      c,
		rules:      rules,
		matcher:    matcher,
		dispatcher: dispatcher,
		bus:        bus,
		metrics:    m,
	}
}

// RuleCache 规则缓存，定时任务停用规则后用它失效
func (h *Handlers) RuleCache() *routing.CachedRuleSource {
	return h.rules
}

func (h *Handlers) Register(engine *gin.Engine) {
	cfg := config.GlobalConfig

	engine.GET("/health", h.HealthCheck)
	if cfg.MonitorPrefix != "" && h.metrics != nil {
		engine.GET(cfg.MonitorPrefix, gin.WrapH(h.metrics.Handler()))
	}

	r := engine.Group(cfg.APIPrefix)

	// Register Global Singleton DB
	r.Use(middleware.InjectDB(h.db))

	h.registerTelephonyRoutes(r)

	// 管理接口需要 API Key
	mgmt := r.Group("")
	mgmt.Use(middleware.APIKeyAuth(cfg.APISecretKey))
	h.registerPhoneLineRoutes(mgmt)
	h.registerRoutingRuleRoutes(mgmt)
}

// registerTelephonyRoutes 电话网关回调，不校验 API Key，按主叫号码限流
func (h *Handlers) registerTelephonyRoutes(r *gin.RouterGroup) {
	tel := r.Group("telephony")

	var client *redis.Client
	if rc, ok := h.cache.(*cache.RedisCache); ok {
		client = rc.Client()
	}
	limit, err := middleware.RateLimit(config.GlobalConfig.WebhookRate, client, func(c *gin.Context) string {
		if from := c.PostForm("From"); from != "" {
			return from
		}
		return c.ClientIP()
	})
	if err != nil {
		logger.Error("invalid webhook rate limit, webhook is not rate limited",
			zap.String("rate", config.GlobalConfig.WebhookRate), zap.Error(err))
	} else {
		tel.Use(limit)
	}
	{
		tel.POST("/inbound", h.HandleInboundCall)
		tel.POST("/voicemail", h.HandleVoicemailCallback)
	}
}

// registerPhoneLineRoutes Phone Line Module
func (h *Handlers) registerPhoneLineRoutes(r *gin.RouterGroup) {
	lines := r.Group("phone-lines")
	{
		lines.POST("", h.CreatePhoneLine)
		lines.GET("", h.ListPhoneLines)
		lines.GET("/:id", h.GetPhoneLine)
		lines.PUT("/:id", h.UpdatePhoneLine)
		lines.DELETE("/:id", h.DeletePhoneLine)

		lines.GET("/:id/calls", h.ListCallLogs)

		// 线路下的规则
		lines.GET("/:id/rules", h.ListRoutingRules)
		lines.POST("/:id/rules", h.CreateRoutingRule)
		lines.PUT("/:id/rules/reorder", h.ReorderRoutingRules)
		lines.POST("/:id/rules/test", h.TestRoutingRules)
	}
}

// registerRoutingRuleRoutes Routing Rule Module
func (h *Handlers) registerRoutingRuleRoutes(r *gin.RouterGroup) {
	rules := r.Group("routing-rules")
	{
		rules.GET("/:id", h.GetRoutingRule)
		rules.PUT("/:id", h.UpdateRoutingRule)
		rules.DELETE("/:id", h.DeleteRoutingRule)
		rules.PATCH("/:id/toggle", h.ToggleRoutingRule)
	}
}
