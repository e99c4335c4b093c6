package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(t *testing.T, engine *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestAuth(t *testing.T) {
	engine := gin.New()
	engine.Use(Auth([]string{"k1", "k2"}))
	engine.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	tests := []struct {
		name   string
		header string
		value  string
		want   int
	}{
		{"missing", "", "", http.StatusUnauthorized},
		{"wrong key", "X-API-Key", "nope", http.StatusUnauthorized},
		{"header key", "X-API-Key", "k2", http.StatusNoContent},
		{"bearer token", "Authorization", "Bearer k1", http.StatusNoContent},
		{"basic auth ignored", "Authorization", "Basic k1", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			assert.Equal(t, tt.want, serve(t, engine, req).Code)
		})
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(1, 2, []string{"a", "b"})
	engine := gin.New()
	engine.Use(rl.Middleware())
	engine.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	get := func(key string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if key != "" {
			req.Header.Set("X-API-Key", key)
		}
		return serve(t, engine, req)
	}

	assert.Equal(t, http.StatusNoContent, get("a").Code)
	assert.Equal(t, http.StatusNoContent, get("a").Code)
	limited := get("a")
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.Equal(t, "1", limited.Header().Get("Retry-After"))

	// Separate bucket per key.
	assert.Equal(t, http.StatusNoContent, get("b").Code)
	assert.Equal(t, http.StatusNoContent, get("").Code)
}

func TestRateLimiter_UnknownKeysShareIPBucket(t *testing.T) {
	rl := NewRateLimiter(1, 1, []string{"real"})
	engine := gin.New()
	engine.Use(rl.Middleware())
	engine.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	limited := 0
	for i := range 100 {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-API-Key", "guess-"+strconv.Itoa(i))
		if serve(t, engine, req).Code == http.StatusTooManyRequests {
			limited++
		}
	}
	assert.Equal(t, 99, limited)
	assert.Len(t, rl.limiters, 1)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-API-Key", "real")
	assert.Equal(t, http.StatusNoContent, serve(t, engine, req).Code)
	assert.Len(t, rl.limiters, 2)
}

func TestRateLimiter_Sweep(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(1, 1, nil)
	rl.now = func() time.Time { return now }

	rl.getLimiter("old")
	now = now.Add(time.Hour)
	rl.getLimiter("fresh")

	assert.Equal(t, 1, rl.Sweep(30*time.Minute))
	assert.Len(t, rl.limiters, 1)
	assert.Contains(t, rl.limiters, "fresh")
}

func TestRequestID(t *testing.T) {
	engine := gin.New()
	engine.Use(RequestID())
	var seen string
	engine.GET("/", func(c *gin.Context) {
		seen = c.GetString(requestIDKey)
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	w := serve(t, engine, req)
	assert.Equal(t, "abc-123", w.Header().Get(requestIDHeader))
	assert.Equal(t, "abc-123", seen)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, strings.Repeat("x", 200))
	w = serve(t, engine, req)
	require.NotEmpty(t, seen)
	assert.Len(t, seen, 36)
	assert.Equal(t, seen, w.Header().Get(requestIDHeader))
}

func TestCORS_AllowsAnyOriginByDefault(t *testing.T) {
	engine := gin.New()
	engine.Use(CORS(nil, nil, nil))
	engine.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://app.example.com")
	w := serve(t, engine, req)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
