package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/code-100-precent/LingCRM/pkg/constants"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestAPIKeyAuth(t *testing.T) {
	router := gin.New()
	router.Use(APIKeyAuth("s3cret"))
	router.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/ping", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(constants.HeaderAPIKey, "s3cret")
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAPIKeyAuth_DisabledWithoutSecret(t *testing.T) {
	router := gin.New()
	router.Use(APIKeyAuth(""))
	router.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/ping", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestInjectDB(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	router := gin.New()
	router.Use(InjectDB(db))
	router.GET("/ping", func(c *gin.Context) {
		_, ok := c.MustGet(constants.DbField).(*gorm.DB)
		assert.True(t, ok)
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/ping", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestRateLimit(t *testing.T) {
	mw, err := RateLimit("2-M", nil, func(c *gin.Context) string { return "fixed" })
	require.NoError(t, err)

	router := gin.New()
	router.Use(mw)
	router.POST("/hook", func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodPost, "/hook", nil)
		router.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	_, err = RateLimit("lots", nil, nil)
	assert.Error(t, err)
}

func TestLoggerMiddleware(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	router := gin.New()
	router.Use(LoggerMiddleware(zap.New(core)))
	router.GET("/api/phone-lines", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.PUT("/api/phone-lines/:id/rules/reorder", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, r := range []struct{ method, path string }{
		{http.MethodGet, "/api/phone-lines"},
		{http.MethodPut, "/api/phone-lines/1/rules/reorder"},
	} {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(r.method, r.path, nil)
		router.ServeHTTP(w, req)
	}

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "reorder routing rules", entries[0].ContextMap()["operation"])
}

func TestDescribeOperation(t *testing.T) {
	assert.Equal(t, "toggle routing rule", DescribeOperation(http.MethodPatch, "/api/routing-rules/:id/toggle"))
	assert.Equal(t, "create phone line", DescribeOperation(http.MethodPost, "/api/phone-lines"))
	assert.Equal(t, "", DescribeOperation(http.MethodGet, "/api/phone-lines"))
	assert.Equal(t, "", DescribeOperation(http.MethodPost, ""))
}

func TestRequestID(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	router := gin.New()
	router.Use(RequestID(), LoggerMiddleware(zap.New(core)))
	router.POST("/api/phone-lines", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/api/phone-lines", nil)
	router.ServeHTTP(w, req)
	generated := w.Header().Get(constants.HeaderRequestID)
	assert.Len(t, generated, 36)

	w = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodPost, "/api/phone-lines", nil)
	req.Header.Set(constants.HeaderRequestID, "req-1")
	router.ServeHTTP(w, req)
	assert.Equal(t, "req-1", w.Header().Get(constants.HeaderRequestID))

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, generated, entries[0].ContextMap()["requestId"])
	assert.Equal(t, "req-1", entries[1].ContextMap()["requestId"])
}
