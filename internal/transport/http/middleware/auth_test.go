package httpmw

import (
	"crypto/rand"
	"crypto/rsa"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func signToken(t *testing.T, key *rsa.PrivateKey, claims jwt.RegisteredClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func newKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

func serve(mw func(http.Handler) http.Handler, req *http.Request) (*httptest.ResponseRecorder, string) {
	var got string
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = UserIDFromCtx(r.Context())
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec, got
}

func TestAuth_ValidToken(t *testing.T) {
	key := newKey(t)
	v := NewTokenVerifier(&key.PublicKey, "ijara-auth", "ijara", time.Second)
	now := time.Now()
	token := signToken(t, key, jwt.RegisteredClaims{
		Subject:   "user-1",
		Issuer:    "ijara-auth",
		Audience:  jwt.ClaimStrings{"ijara"},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
	})

	req := httptest.NewRequest(http.MethodGet, "/chats", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec, uid := serve(Auth(v), req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "user-1", uid)

	// websocket передаёт токен в query
	req = httptest.NewRequest(http.MethodGet, "/ws/chats?access_token="+token, nil)
	rec, uid = serve(Auth(v), req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "user-1", uid)
}

func TestAuth_Rejects(t *testing.T) {
	key := newKey(t)
	other := newKey(t)
	v := NewTokenVerifier(&key.PublicKey, "ijara-auth", "ijara", 0)
	now := time.Now()
	valid := jwt.RegisteredClaims{
		Subject:   "user-1",
		Issuer:    "ijara-auth",
		Audience:  jwt.ClaimStrings{"ijara"},
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
	}

	expired := valid
	expired.ExpiresAt = jwt.NewNumericDate(now.Add(-time.Minute))
	wrongIssuer := valid
	wrongIssuer.Issuer = "someone"
	noSubject := valid
	noSubject.Subject = ""

	tests := map[string]string{
		"missing":      "",
		"garbage":      "Bearer not-a-jwt",
		"foreign key":  "Bearer " + signToken(t, other, valid),
		"expired":      "Bearer " + signToken(t, key, expired),
		"wrong issuer": "Bearer " + signToken(t, key, wrongIssuer),
		"no subject":   "Bearer " + signToken(t, key, noSubject),
	}
	for name, header := range tests {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/chats", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			rec, uid := serve(Auth(v), req)
			require.Equal(t, http.StatusUnauthorized, rec.Code)
			require.Empty(t, uid)
		})
	}
}

func TestAuth_DevModeTrustsHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/chats", nil)
	req.Header.Set("X-User-ID", "alice")
	rec, uid := serve(Auth(nil), req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "alice", uid)

	rec, _ = serve(Auth(nil), httptest.NewRequest(http.MethodGet, "/chats", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
