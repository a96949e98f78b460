package middleware

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"log/slog"
	"net/http"
)

// Names the page and the sync client use to exchange the CSRF token.
const (
	CSRFCookie    = "csrftoken"
	CSRFHeader    = "X-CSRFToken"
	CSRFFormField = "csrfmiddlewaretoken"
)

const csrfKey contextKeyType = "csrf_token"

// CSRFTokenFromContext returns the token the CSRF middleware bound to the
// request, for rendering into the page.
func CSRFTokenFromContext(ctx context.Context) string {
	tok, _ := ctx.Value(csrfKey).(string)
	return tok
}

// CSRF implements double-submit protection. Every response carries a
// csrftoken cookie; unsafe methods must echo it in the X-CSRFToken header or
// the csrfmiddlewaretoken form field, or they are answered with 403.
func CSRF(secure bool, l *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookieToken := ""
			if c, err := r.Cookie(CSRFCookie); err == nil && len(c.Value) == 64 {
				cookieToken = c.Value
			}

			if !safeMethod(r.Method) {
				sent := r.Header.Get(CSRFHeader)
				if sent == "" {
					sent = r.PostFormValue(CSRFFormField)
				}
				if cookieToken == "" || subtle.ConstantTimeCompare([]byte(sent), []byte(cookieToken)) != 1 {
					l.WarnContext(r.Context(), "csrf verification failed",
						slog.String("method", r.Method),
						slog.String("path", r.URL.Path),
						slog.Bool("cookie_present", cookieToken != ""),
					)
					writeFailure(w, http.StatusForbidden, "FORBIDDEN", "CSRF verification failed. Please refresh the page.")
					return
				}
			}

			if cookieToken == "" {
				cookieToken = newCSRFToken()
				http.SetCookie(w, &http.Cookie{
					Name:     CSRFCookie,
					Value:    cookieToken,
					Path:     "/",
					MaxAge:   365 * 24 * 60 * 60,
					Secure:   secure,
					SameSite: http.SameSiteLaxMode,
				})
			}

			ctx := context.WithValue(r.Context(), csrfKey, cookieToken)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func safeMethod(m string) bool {
	switch m {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	}
	return false
}

func newCSRFToken() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic("csrf: crypto/rand failed: " + err.Error())
	}
	return hex.EncodeToString(b)
}
