package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
)

func serveFrom(h http.Handler, path, remote string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.RemoteAddr = remote
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAllowlist(t *testing.T) {
	h := Allowlist([]string{"10.0.0.0/8", "192.168.1.7/16", "::1/128", "not-a-cidr"}, discardLogger())(okHandler)

	tests := []struct {
		remote string
		want   int
	}{
		{"10.1.2.3:1234", http.StatusOK},
		{"192.168.200.1:80", http.StatusOK},
		{"[::1]:1234", http.StatusOK},
		{"[::ffff:10.0.0.5]:1234", http.StatusOK},
		{"10.9.9.9", http.StatusOK},
		{"8.8.8.8:1234", http.StatusForbidden},
		{"garbage", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.remote, func(t *testing.T) {
			assert.Equal(t, tt.want, serveFrom(h, "/", tt.remote).Code)
		})
	}
}

func TestAllowlist_DeniedBody(t *testing.T) {
	rec := serveFrom(Allowlist(nil, discardLogger())(okHandler), "/", "127.0.0.1:1")

	assert.Equal(t, http.StatusForbidden, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "FORBIDDEN", body["code"])
}

func TestMountDebug(t *testing.T) {
	r := chi.NewRouter()
	MountDebug(r, []string{"127.0.0.0/8"}, discardLogger())

	for _, path := range []string{"/debug/pprof/", "/debug/pprof/heap", "/debug/pprof/cmdline", "/debug/pprof/symbol"} {
		assert.Equal(t, http.StatusOK, serveFrom(r, path, "127.0.0.1:1234").Code, path)
	}
	assert.Contains(t, serveFrom(r, "/debug/pprof/", "127.0.0.1:1234").Body.String(), "goroutine")
	assert.Equal(t, http.StatusForbidden, serveFrom(r, "/debug/pprof/", "192.168.1.1:1234").Code)
}

func TestMountDebug_NothingWithoutCIDRs(t *testing.T) {
	for _, cidrs := range [][]string{nil, {"bogus"}} {
		r := chi.NewRouter()
		MountDebug(r, cidrs, discardLogger())
		assert.Equal(t, http.StatusNotFound, serveFrom(r, "/debug/pprof/", "127.0.0.1:1234").Code)
	}
}
