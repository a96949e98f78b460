package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
)

func newTestLimiter(t *testing.T, rps float64, burst int) *RateLimiter {
	t.Helper()
	rl := NewRateLimiter(rps, burst, discardLogger())
	t.Cleanup(rl.Close)
	return rl
}

func postFrom(ip string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/carts/add/lamp-3/", nil)
	req.RemoteAddr = ip + ":40000"
	return req
}

func TestRateLimit_WithinBurst(t *testing.T) {
	h := newTestLimiter(t, 1, 5).Handler(okHandler)

	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, postFrom("10.0.0.1"))
		assert.Equal(t, http.StatusOK, rec.Code, "request %d", i+1)
	}
}

func TestRateLimit_ExceedingBurstReturns429(t *testing.T) {
	h := newTestLimiter(t, 0.001, 2).Handler(okHandler)

	for i := 0; i < 2; i++ {
		h.ServeHTTP(httptest.NewRecorder(), postFrom("10.0.0.1"))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, postFrom("10.0.0.1"))

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	body := decodeBody(t, rec)
	assert.Equal(t, "RATE_LIMITED", body["code"])
	assert.Equal(t, false, body["success"])
}

func TestRateLimit_IndependentPerIP(t *testing.T) {
	h := newTestLimiter(t, 0.001, 1).Handler(okHandler)

	h.ServeHTTP(httptest.NewRecorder(), postFrom("10.0.0.1"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, postFrom("10.0.0.2"))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimiter_CleanupEvictsIdle(t *testing.T) {
	rl := newTestLimiter(t, 1, 1)
	now := time.Now()
	rl.nowFunc = func() time.Time { return now }

	rl.Allow("10.0.0.1")
	rl.Allow("10.0.0.2")
	assert.Equal(t, 2, rl.size())

	now = now.Add(rl.ttl / 2)
	rl.Allow("10.0.0.2")
	now = now.Add(rl.ttl/2 + time.Second)
	rl.cleanup()

	assert.Equal(t, 1, rl.size())
}

func TestRateLimiter_CloseStopsGoroutine(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	rl := NewRateLimiter(1, 1, discardLogger())
	rl.Close()
	rl.Close()
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"remote addr", nil, "192.0.2.1:1234", "192.0.2.1"},
		{"forwarded chain", map[string]string{"X-Forwarded-For": "garbage, 203.0.113.5, 10.0.0.1"}, "10.0.0.9:1", "203.0.113.5"},
		{"real ip", map[string]string{"X-Real-IP": "198.51.100.7"}, "10.0.0.9:1", "198.51.100.7"},
		{"remote without port", nil, "192.0.2.9", "192.0.2.9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, ClientIP(req))
		})
	}
}
