package handlers

import (
	"net/http"

	"github.com/code-100-precent/LingCRM/pkg/config"
	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v3/mem"
)

// HealthCheck 检查数据库连通性
func (h *Handlers) HealthCheck(c *gin.Context) {
	sqlDB, err := h.db.DB()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": "database connection failed"})
		return
	}
	if err := sqlDB.PingContext(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": "database ping failed"})
		return
	}

	body := gin.H{"status": "healthy"}
	if config.GlobalConfig != nil {
		body["service"] = config.GlobalConfig.ServerName
	}
	if h.metrics != nil {
		body["ruleCacheHitRate"] = h.metrics.GetCacheHitRate("routing_rules", "get")
	}
	if vm, err := mem.VirtualMemoryWithContext(c.Request.Context()); err == nil {
		body["memoryUsedPercent"] = vm.UsedPercent
	}
	c.JSON(http.StatusOK, body)
}
