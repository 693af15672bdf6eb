package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"kanzlei/insolvenzpanel/internal/api/middleware"
	"kanzlei/insolvenzpanel/internal/config"
)

func rateLimitTestRouter(cfg *config.Config, markHuman bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	if markHuman {
		r.Use(func(c *gin.Context) {
			c.Set(middleware.ContextKeyIsHumanVerified, true)
			c.Next()
		})
	}
	rm := middleware.NewRateLimiterMiddleware(cfg)
	r.Use(rm.Limit())
	r.GET("/test", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func doRequest(r *gin.Engine, userAgent string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest("GET", "/test", nil)
	req.Header.Set("User-Agent", userAgent)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimiter_SoftLimitRequiresCaptcha(t *testing.T) {
	cfg := &config.Config{
		RateLimitSoftBucketSize: 2,
		RateLimitSoftRefillRate: 1,
		RateLimitHardBucketSize: 100,
		RateLimitHardRefillRate: 1,
	}
	r := rateLimitTestRouter(cfg, false)

	for i := 0; i < 2; i++ {
		w := doRequest(r, "test-agent")
		assert.Equal(t, http.StatusOK, w.Code, "request %d should pass", i)
	}

	w := doRequest(r, "test-agent")
	assert.Equal(t, http.StatusTeapot, w.Code)
	assert.Contains(t, w.Body.String(), "Captcha validation required")
}

func TestRateLimiter_VerifiedClientBypassesSoftLimit(t *testing.T) {
	cfg := &config.Config{
		RateLimitSoftBucketSize: 1,
		RateLimitSoftRefillRate: 1,
		RateLimitHardBucketSize: 5,
		RateLimitHardRefillRate: 1,
	}
	r := rateLimitTestRouter(cfg, true)

	for i := 0; i < 5; i++ {
		w := doRequest(r, "test-agent")
		assert.Equal(t, http.StatusOK, w.Code, "verified request %d should pass", i)
	}
}

func TestRateLimiter_HardLimitAppliesToEveryone(t *testing.T) {
	cfg := &config.Config{
		RateLimitSoftBucketSize: 100,
		RateLimitSoftRefillRate: 1,
		RateLimitHardBucketSize: 3,
		RateLimitHardRefillRate: 1,
	}
	r := rateLimitTestRouter(cfg, true)

	for i := 0; i < 3; i++ {
		w := doRequest(r, "test-agent")
		assert.Equal(t, http.StatusOK, w.Code)
	}

	w := doRequest(r, "test-agent")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "Rate limit exceeded")
}

func TestRateLimiter_ClientsGetSeparateBuckets(t *testing.T) {
	cfg := &config.Config{
		RateLimitSoftBucketSize: 1,
		RateLimitSoftRefillRate: 1,
		RateLimitHardBucketSize: 10,
		RateLimitHardRefillRate: 1,
	}
	r := rateLimitTestRouter(cfg, false)

	w := doRequest(r, "agent-a")
	assert.Equal(t, http.StatusOK, w.Code)
	w = doRequest(r, "agent-a")
	assert.Equal(t, http.StatusTeapot, w.Code)

	// Same IP, different User-Agent is a different client.
	w = doRequest(r, "agent-b")
	assert.Equal(t, http.StatusOK, w.Code)
}
