package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestRateLimit(t *testing.T) {
	router := newTestRouter(RequestID(), RateLimit(NewRateLimiter(2, time.Minute)))

	call := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.RemoteAddr = ip + ":1234"
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	first := call("10.0.0.1")
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "2", first.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Remaining"))

	assert.Equal(t, http.StatusOK, call("10.0.0.1").Code)

	blocked := call("10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, blocked.Code)
	assert.Contains(t, blocked.Body.String(), "RATE_LIMIT_EXCEEDED")
	assert.NotEmpty(t, blocked.Header().Get("X-RateLimit-Reset"))

	// other clients have their own bucket
	assert.Equal(t, http.StatusOK, call("10.0.0.2").Code)
}

func TestRateLimitByKey(t *testing.T) {
	l := NewRateLimiter(1, time.Minute)
	router := newTestRouter(RateLimitByKey(l, func(c *gin.Context) string {
		return c.GetHeader("X-Client")
	}))

	call := func(client string) int {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("X-Client", client)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, call("dock-1"))
	assert.Equal(t, http.StatusTooManyRequests, call("dock-1"))
	assert.Equal(t, http.StatusOK, call("dock-2"))
}
