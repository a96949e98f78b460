package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureIdentity(dst *Identity) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*dst, _ = IdentityFromContext(r.Context())
	})
}

func staticValidator(token string, claims *Claims) TokenValidator {
	return func(got string) (*Claims, error) {
		if got != token {
			return nil, errors.New("signature invalid")
		}
		return claims, nil
	}
}

func TestIdentity_Key(t *testing.T) {
	assert.Equal(t, "guest:abc", Identity{SessionKey: "abc"}.Key())
	assert.Equal(t, "user:7", Identity{SessionKey: "abc", UserID: "7"}.Key())
	assert.False(t, Identity{SessionKey: "abc"}.Authenticated())
}

func TestSession_IssuesCookieWhenMissing(t *testing.T) {
	var id Identity
	rec := httptest.NewRecorder()

	Session(SessionConfig{MaxAge: time.Hour})(captureIdentity(&id)).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, SessionCookie, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, 3600, cookies[0].MaxAge)
	assert.Equal(t, cookies[0].Value, id.SessionKey)
}

func TestSession_ReusesValidCookie(t *testing.T) {
	key := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: key})
	var id Identity
	rec := httptest.NewRecorder()

	Session(SessionConfig{})(captureIdentity(&id)).ServeHTTP(rec, req)

	assert.Equal(t, key, id.SessionKey)
	assert.Empty(t, rec.Result().Cookies())
}

func TestSession_ReplacesGarbageCookie(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "../../etc"})
	var id Identity

	Session(SessionConfig{})(captureIdentity(&id)).ServeHTTP(httptest.NewRecorder(), req)

	_, err := uuid.Parse(id.SessionKey)
	assert.NoError(t, err)
}

func TestAuthenticate_BearerAndCookie(t *testing.T) {
	validate := staticValidator("good", &Claims{UserID: "42", Email: "a@b.c"})
	chain := func(dst *Identity) http.Handler {
		return Session(SessionConfig{})(Authenticate(validate, discardLogger())(captureIdentity(dst)))
	}

	var fromHeader Identity
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer good")
	chain(&fromHeader).ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "42", fromHeader.UserID)
	assert.NotEmpty(t, fromHeader.SessionKey)

	var fromCookie Identity
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: TokenCookie, Value: "good"})
	chain(&fromCookie).ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "a@b.c", fromCookie.Email)
}

func TestAuthenticate_InvalidTokenStaysGuest(t *testing.T) {
	var id Identity
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer forged")
	rec := httptest.NewRecorder()

	Session(SessionConfig{})(Authenticate(staticValidator("good", nil), discardLogger())(captureIdentity(&id))).
		ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, id.Authenticated())
}

func TestRequireUser(t *testing.T) {
	h := RequireUser("Please login to use your wishlist.")(okHandler)

	rec := httptest.NewRecorder()
	guest := httptest.NewRequest(http.MethodPost, "/", nil)
	guest = guest.WithContext(WithIdentity(guest.Context(), Identity{SessionKey: "s"}))
	h.ServeHTTP(rec, guest)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Please login to use your wishlist.", body["message"])

	rec = httptest.NewRecorder()
	user := httptest.NewRequest(http.MethodPost, "/", nil)
	user = user.WithContext(WithIdentity(user.Context(), Identity{SessionKey: "s", UserID: "1"}))
	h.ServeHTTP(rec, user)
	assert.Equal(t, http.StatusOK, rec.Code)
}
