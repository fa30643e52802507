package config

import (
	"log"
	"os"
	"time"

	"github.com/code-100-precent/LingCRM/pkg/cache"
	"github.com/code-100-precent/LingCRM/pkg/logger"
	"github.com/code-100-precent/LingCRM/pkg/utils"
)

// Config System  CommonConfig
type Config struct {
	ServerName    string `env:"SERVER_NAME"`
	ServerUrl     string `env:"SERVER_URL"`
	DBDriver      string `env:"DB_DRIVER"`
	DSN           string `env:"DSN"`
	Log           logger.LogConfig
	Addr          string `env:"ADDR"`
	Mode          string `env:"MODE"`
	APIPrefix     string `env:"API_PREFIX"`
	MonitorPrefix string `env:"MONITOR_PREFIX"`
	APISecretKey  string `env:"API_SECRET_KEY"`

	// 缓存配置
	Cache           cache.Config
	RuleCacheTTL    time.Duration `env:"RULE_CACHE_TTL"`
	LocationLRUSize int           `env:"LOCATION_LRU_SIZE"`

	// 电话网关
	WebhookRate          string `env:"WEBHOOK_RATE"`           // ulule/limiter 格式，如 600-M
	AIAgentBaseURL       string `env:"AI_AGENT_BASE_URL"`      // forward_ai_agent 重定向地址前缀
	IVRBaseURL           string `env:"IVR_BASE_URL"`           // ivr 菜单地址前缀
	VoicemailCallbackURL string `env:"VOICEMAIL_CALLBACK_URL"` // 录音完成回调
	DefaultGreeting      string `env:"DEFAULT_GREETING"`       // 无规则匹配时的留言提示
	DefaultVoice         string `env:"DEFAULT_VOICE"`
	DefaultLanguage      string `env:"DEFAULT_LANGUAGE"`

	// 定时任务
	OrphanSweepSchedule  string `env:"ORPHAN_SWEEP_SCHEDULE"`
	CallLogPurgeSchedule string `env:"CALL_LOG_PURGE_SCHEDULE"`
	CallLogRetentionDays int    `env:"CALL_LOG_RETENTION_DAYS"`
	SeedRulesFile        string `env:"SEED_RULES_FILE"`
}

var GlobalConfig *Config

func Load() error {
	// 1. 根据环境加载 .env 文件（如果不存在也不报错，使用默认值）
	env := os.Getenv("APP_ENV")
	err := utils.LoadEnv(env)
	if err != nil {
		log.Printf("Note: .env file not found or failed to load: %v (using default values)", err)
	}

	// 2. 加载全局配置（所有配置都有默认值，确保无.env文件也能启动）
	GlobalConfig = &Config{
		ServerName:    getStringOrDefault("SERVER_NAME", "LingCRM"),
		ServerUrl:     getStringOrDefault("SERVER_URL", "http://localhost:7072"),
		DBDriver:      getStringOrDefault("DB_DRIVER", "sqlite"),
		DSN:           getStringOrDefault("DSN", "./lingcrm.db"),
		Addr:          getStringOrDefault("ADDR", ":7072"),
		Mode:          getStringOrDefault("MODE", "development"),
		APIPrefix:     getStringOrDefault("API_PREFIX", "/api"),
		MonitorPrefix: getStringOrDefault("MONITOR_PREFIX", "/metrics"),
		APISecretKey:  getStringOrDefault("API_SECRET_KEY", ""),
		Log: logger.LogConfig{
			Level:      getStringOrDefault("LOG_LEVEL", "info"),
			Filename:   getStringOrDefault("LOG_FILENAME", "./logs/app.log"),
			MaxSize:    getIntOrDefault("LOG_MAX_SIZE", 100),
			MaxAge:     getIntOrDefault("LOG_MAX_AGE", 30),
			MaxBackups: getIntOrDefault("LOG_MAX_BACKUPS", 5),
			Daily:      getBoolOrDefault("LOG_DAILY", true),
		},
		Cache:           loadCacheConfig(),
		RuleCacheTTL:    getDurationOrDefault("RULE_CACHE_TTL", 30*time.Second),
		LocationLRUSize: getIntOrDefault("LOCATION_LRU_SIZE", 64),

		WebhookRate:          getStringOrDefault("WEBHOOK_RATE", "600-M"),
		AIAgentBaseURL:       getStringOrDefault("AI_AGENT_BASE_URL", "https://agents.example.com/calls"),
		IVRBaseURL:           getStringOrDefault("IVR_BASE_URL", "https://ivr.example.com/menus"),
		VoicemailCallbackURL: getStringOrDefault("VOICEMAIL_CALLBACK_URL", "/api/telephony/voicemail"),
		DefaultGreeting:      getStringOrDefault("DEFAULT_GREETING", "The person you are calling is not available. Please leave a message after the tone."),
		DefaultVoice:         getStringOrDefault("DEFAULT_VOICE", "alice"),
		DefaultLanguage:      getStringOrDefault("DEFAULT_LANGUAGE", "en-US"),

		OrphanSweepSchedule:  getStringOrDefault("ORPHAN_SWEEP_SCHEDULE", "*/10 * * * *"),
		CallLogPurgeSchedule: getStringOrDefault("CALL_LOG_PURGE_SCHEDULE", "0 3 * * *"),
		CallLogRetentionDays: getIntOrDefault("CALL_LOG_RETENTION_DAYS", 90),
		SeedRulesFile:        getStringOrDefault("SEED_RULES_FILE", ""),
	}
	return nil
}

// getStringOrDefault 获取环境变量值，如果为空则返回默认值
func getStringOrDefault(key, defaultValue string) string {
	value := utils.GetEnv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getBoolOrDefault 获取布尔环境变量值，如果为空则返回默认值
func getBoolOrDefault(key string, defaultValue bool) bool {
	value := utils.GetEnv(key)
	if value == "" {
		return defaultValue
	}
	return utils.GetBoolEnv(key)
}

// getIntOrDefault 获取整数环境变量值，如果为空则返回默认值
func getIntOrDefault(key string, defaultValue int) int {
	value := utils.GetIntEnv(key)
	if value == 0 {
		return defaultValue
	}
	return int(value)
}

// getDurationOrDefault 解析 time.ParseDuration 格式，失败时返回默认值
func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	s := utils.GetEnv(key)
	if s == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultValue
	}
	return d
}

// loadCacheConfig 加载缓存配置，设置所有默认值
func loadCacheConfig() cache.Config {
	cacheType := utils.GetEnv("CACHE_TYPE")
	if cacheType == "" {
		cacheType = "local"
	}

	return cache.Config{
		Type: cacheType,
		Redis: cache.RedisConfig{
			Addr:         getStringOrDefault("REDIS_ADDR", "localhost:6379"),
			Password:     utils.GetEnv("REDIS_PASSWORD"),
			DB:           int(utils.GetIntEnv("REDIS_DB")),
			PoolSize:     getIntOrDefault("REDIS_POOL_SIZE", 10),
			MinIdleConns: getIntOrDefault("REDIS_MIN_IDLE_CONNS", 5),
			DialTimeout:  getDurationOrDefault("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getDurationOrDefault("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getDurationOrDefault("REDIS_WRITE_TIMEOUT", 3*time.Second),
			KeyPrefix:    getStringOrDefault("REDIS_KEY_PREFIX", "lingcrm:"),
		},
		Local: cache.LocalConfig{
			DefaultExpiration: getDurationOrDefault("LOCAL_CACHE_DEFAULT_EXPIRATION", 5*time.Minute),
			CleanupInterval:   getDurationOrDefault("LOCAL_CACHE_CLEANUP_INTERVAL", 10*time.Minute),
		},
	}
}
