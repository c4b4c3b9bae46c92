package router

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pharmaerp/receiving/internal/infrastructure/config"
	"github.com/pharmaerp/receiving/internal/interfaces/http/dto"
	"github.com/pharmaerp/receiving/internal/interfaces/http/middleware"
)

func newTestEngine(t *testing.T, cfg config.HTTPConfig) *gin.Engine {
	t.Helper()
	engine, err := NewEngine(cfg, EngineOptions{Logger: zap.NewNop(), ServiceName: "receiving-test"})
	require.NoError(t, err)
	return engine
}

func TestNewEngine_NoRoute(t *testing.T) {
	engine := newTestEngine(t, config.HTTPConfig{})

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, dto.ErrCodeRouteNotFound, resp.Error.Code)
	assert.NotEmpty(t, resp.Error.RequestID)
	assert.Equal(t, resp.Error.RequestID, w.Header().Get(middleware.RequestIDHeader))
}

func TestNewEngine_SecureHeadersAndRequestID(t *testing.T) {
	engine := newTestEngine(t, config.HTTPConfig{})
	engine.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(middleware.RequestIDHeader, "req-42")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "req-42", w.Header().Get(middleware.RequestIDHeader))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
}

func TestNewEngine_BodyLimit(t *testing.T) {
	engine := newTestEngine(t, config.HTTPConfig{MaxBodySize: 16})
	engine.POST("/echo", func(c *gin.Context) {
		var body map[string]any
		if err := c.ShouldBindJSON(&body); err != nil {
			c.Status(http.StatusBadRequest)
			return
		}
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(`{"remarks":"`+strings.Repeat("x", 64)+`"}`))
	req.ContentLength = -1
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	assert.NotEqual(t, http.StatusOK, w.Code)
}

func TestNewEngine_RateLimit(t *testing.T) {
	engine := newTestEngine(t, config.HTTPConfig{
		RateLimitEnabled:  true,
		RateLimitRequests: 1,
		RateLimitWindow:   time.Minute,
	})
	engine.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	first := httptest.NewRecorder()
	engine.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/ping", nil))
	second := httptest.NewRecorder()
	engine.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/ping", nil))

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}
