package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Cookie names shared with the rendered page.
const (
	SessionCookie = "sessionid"
	TokenCookie   = "access_token"
)

type contextKeyType string

const identityKey contextKeyType = "identity"

// Identity is who a storefront request acts for: a signed-in user, or a
// guest identified by the session cookie. Every request has a session.
type Identity struct {
	SessionKey string
	UserID     string
	Email      string
}

// Authenticated reports whether the request carries a valid user token.
func (i Identity) Authenticated() bool {
	return i.UserID != ""
}

// Key is the shopper key carts and logs are indexed by.
func (i Identity) Key() string {
	if i.Authenticated() {
		return "user:" + i.UserID
	}
	return "guest:" + i.SessionKey
}

// WithIdentity stores id in ctx.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext returns the identity stored by Session/Authenticate.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

// Claims is what a TokenValidator extracts from an access token.
type Claims struct {
	UserID string
	Email  string
}

// TokenValidator validates an access token and returns its claims.
type TokenValidator func(token string) (*Claims, error)

// SessionConfig controls the guest session cookie.
type SessionConfig struct {
	MaxAge time.Duration
	Secure bool
}

// Session guarantees a session key on every request, issuing a new
// sessionid cookie when the request has none or an unparseable one.
func Session(cfg SessionConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := ""
			if c, err := r.Cookie(SessionCookie); err == nil {
				if _, err := uuid.Parse(c.Value); err == nil {
					key = c.Value
				}
			}
			if key == "" {
				key = uuid.NewString()
				http.SetCookie(w, &http.Cookie{
					Name:     SessionCookie,
					Value:    key,
					Path:     "/",
					MaxAge:   int(cfg.MaxAge.Seconds()),
					HttpOnly: true,
					Secure:   cfg.Secure,
					SameSite: http.SameSiteLaxMode,
				})
			}

			id, _ := IdentityFromContext(r.Context())
			id.SessionKey = key
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// Authenticate resolves the user from a bearer token or the access_token
// cookie. Missing or invalid tokens leave the request as a guest; they are
// never rejected here.
func Authenticate(validate TokenValidator, l *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				if c, err := r.Cookie(TokenCookie); err == nil {
					token = c.Value
				}
			}
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := validate(token)
			if err != nil {
				l.DebugContext(r.Context(), "ignoring invalid access token",
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
				next.ServeHTTP(w, r)
				return
			}

			id, _ := IdentityFromContext(r.Context())
			id.UserID = claims.UserID
			id.Email = claims.Email
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// RequireUser answers 401 {success:false,message} for guests.
func RequireUser(message string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if id, ok := IdentityFromContext(r.Context()); !ok || !id.Authenticated() {
				writeFailure(w, http.StatusUnauthorized, "UNAUTHORIZED", message)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
