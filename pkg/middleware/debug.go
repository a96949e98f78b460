package middleware

import (
	"log/slog"
	"net/http"
	"net/http/pprof"
	"net/netip"

	"github.com/go-chi/chi/v5"
)

// MountDebug serves the pprof handlers under /debug/pprof/ to clients in
// cidrs. With no usable CIDRs nothing is mounted and the paths 404.
func MountDebug(r chi.Router, cidrs []string, logger *slog.Logger) {
	allowed := parsePrefixes(cidrs, logger)
	if len(allowed) == 0 {
		return
	}
	r.Route("/debug/pprof", func(r chi.Router) {
		r.Use(allowOnly(allowed, logger))
		r.HandleFunc("/cmdline", pprof.Cmdline)
		r.HandleFunc("/profile", pprof.Profile)
		r.HandleFunc("/symbol", pprof.Symbol)
		r.HandleFunc("/trace", pprof.Trace)
		// Index also serves the named profiles: heap, goroutine, allocs...
		r.HandleFunc("/*", pprof.Index)
	})
}

// Allowlist answers 403 to clients whose connection address is outside
// cidrs. X-Forwarded-For is ignored. Invalid CIDRs are logged and skipped.
func Allowlist(cidrs []string, logger *slog.Logger) func(http.Handler) http.Handler {
	return allowOnly(parsePrefixes(cidrs, logger), logger)
}

func parsePrefixes(cidrs []string, logger *slog.Logger) []netip.Prefix {
	out := make([]netip.Prefix, 0, len(cidrs))
	for _, c := range cidrs {
		p, err := netip.ParsePrefix(c)
		if err != nil {
			logger.Warn("skipping invalid CIDR", slog.String("cidr", c), slog.String("error", err.Error()))
			continue
		}
		out = append(out, p.Masked())
	}
	return out
}

func allowOnly(allowed []netip.Prefix, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			addr, ok := remoteAddr(r)
			if ok {
				for _, p := range allowed {
					if p.Contains(addr) {
						next.ServeHTTP(w, r)
						return
					}
				}
			}
			logger.Warn("debug access denied", slog.String("remote", r.RemoteAddr), slog.String("path", r.URL.Path))
			writeFailure(w, http.StatusForbidden, "FORBIDDEN", "access restricted by IP allowlist")
		})
	}
}

func remoteAddr(r *http.Request) (netip.Addr, bool) {
	if ap, err := netip.ParseAddrPort(r.RemoteAddr); err == nil {
		return ap.Addr().Unmap(), true
	}
	a, err := netip.ParseAddr(r.RemoteAddr)
	if err != nil {
		return netip.Addr{}, false
	}
	return a.Unmap(), true
}
