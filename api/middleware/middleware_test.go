package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/groupxyz/media-relay/internal/domain"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newEngine(handlers ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(handlers...)
	r.GET("/ok", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.POST("/ok", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/panic", func(c *gin.Context) { panic("boom") })
	r.GET("/abort", func(c *gin.Context) {
		c.String(http.StatusOK, "partial")
		panic(http.ErrAbortHandler)
	})
	return r
}

func serve(r http.Handler, method, path string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestRateLimiter_Allow(t *testing.T) {
	l := NewRateLimiter(domain.RateLimitConfig{Enabled: true, Requests: 3, Window: time.Minute})
	now := time.Now()
	l.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow("10.0.0.1"), "request %d", i)
	}
	assert.False(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.2"), "buckets are per client")

	now = now.Add(20 * time.Second)
	assert.True(t, l.Allow("10.0.0.1"), "one token refills per window/requests")
	assert.False(t, l.Allow("10.0.0.1"))
}

func TestRateLimiter_DropsIdleClients(t *testing.T) {
	l := NewRateLimiter(domain.RateLimitConfig{Enabled: true, Requests: 1, Window: time.Minute})
	now := time.Now()
	l.now = func() time.Time { return now }

	l.Allow("10.0.0.1")
	now = now.Add(2 * time.Minute)
	l.Allow("10.0.0.2")

	l.mu.Lock()
	defer l.mu.Unlock()
	assert.NotContains(t, l.clients, "10.0.0.1")
	assert.Contains(t, l.clients, "10.0.0.2")
}

func TestRateLimiter_Middleware(t *testing.T) {
	l := NewRateLimiter(domain.RateLimitConfig{Enabled: true, Requests: 2, Window: time.Hour})
	r := newEngine(l.Middleware())

	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/ok", nil).Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/ok", nil).Code)

	rec := serve(r, http.MethodGet, "/ok", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.JSONEq(t, `{"error":"Too many requests, please try again later."}`, rec.Body.String())
}

func TestCORS(t *testing.T) {
	r := newEngine(CORS([]string{"https://downloader.groupxyz.me/"}))

	t.Run("allowed origin", func(t *testing.T) {
		rec := serve(r, http.MethodGet, "/ok", map[string]string{"Origin": "https://downloader.groupxyz.me"})
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "https://downloader.groupxyz.me", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
		assert.Equal(t, "Content-Disposition", rec.Header().Get("Access-Control-Expose-Headers"))
	})

	t.Run("unknown origin", func(t *testing.T) {
		rec := serve(r, http.MethodGet, "/ok", map[string]string{"Origin": "https://evil.example"})
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("preflight", func(t *testing.T) {
		rec := serve(r, http.MethodOptions, "/ok", map[string]string{"Origin": "https://downloader.groupxyz.me"})
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "GET, POST, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
		assert.Equal(t, "Content-Type, Authorization", rec.Header().Get("Access-Control-Allow-Headers"))
	})
}

func TestSecurityHeaders(t *testing.T) {
	rec := serve(newEngine(SecurityHeaders(true)), http.MethodGet, "/ok", nil)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "default-src 'self'", rec.Header().Get("Content-Security-Policy"))
	assert.NotEmpty(t, rec.Header().Get("Strict-Transport-Security"))

	rec = serve(newEngine(SecurityHeaders(false)), http.MethodGet, "/ok", nil)
	assert.Empty(t, rec.Header().Get("Strict-Transport-Security"))
}

func TestRecovery(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	r := newEngine(Recovery(zap.New(core)))

	rec := serve(r, http.MethodGet, "/panic", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Internal server error"}`, rec.Body.String())
	require.Equal(t, 1, logs.FilterMessage("Panic recovered").Len())

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		serve(r, http.MethodGet, "/abort", nil)
	})
	assert.Equal(t, 1, logs.Len(), "aborts are not logged as panics")
}

func TestLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	r := newEngine(Logger(zap.New(core)))

	serve(r, http.MethodGet, "/ok?x=1", nil)
	entries := logs.FilterMessage("HTTP request").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "/ok", fields["path"])
	assert.Equal(t, "x=1", fields["query"])
	assert.EqualValues(t, http.StatusOK, fields["status"])
}
