package httpmw

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/cwrk-planet/ijara-chat/pkg/httputil"
	"github.com/cwrk-planet/ijara-chat/pkg/logger"

	"github.com/golang-jwt/jwt/v5"
)

type ctxKey string

const ctxKeyUserID ctxKey = "user_id"

var (
	ErrMissingToken   = errors.New("missing bearer token")
	ErrInvalidSubject = errors.New("token has no subject")
)

// TokenVerifier проверяет RS256 access-токены identity-провайдера.
type TokenVerifier struct {
	public    *rsa.PublicKey
	issuer    string
	audience  string
	clockSkew time.Duration
}

func NewTokenVerifier(public *rsa.PublicKey, issuer, audience string, clockSkew time.Duration) *TokenVerifier {
	return &TokenVerifier{public: public, issuer: issuer, audience: audience, clockSkew: clockSkew}
}

// Verify возвращает sub токена - id пользователя.
func (v *TokenVerifier) Verify(tokenStr string) (string, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithLeeway(v.clockSkew),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	claims := &jwt.RegisteredClaims{}
	if _, err := jwt.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (any, error) {
		return v.public, nil
	}, opts...); err != nil {
		return "", err
	}
	if claims.Subject == "" {
		return "", ErrInvalidSubject
	}
	return claims.Subject, nil
}

func LoadRSAPublicKeyFromPEM(path string) (*rsa.PublicKey, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	pub, err := jwt.ParseRSAPublicKeyFromPEM(b)
	if err != nil {
		return nil, fmt.Errorf("parse public key %s: %w", path, err)
	}
	return pub, nil
}

// Auth аутентифицирует запрос. Токен берётся из Authorization: Bearer,
// для websocket - из ?access_token=. Без verifier (dev) доверяем X-User-ID / ?user_id=.
func Auth(v *TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := authenticate(v, r)
			if err != nil {
				logger.FromContext(r.Context()).Debug("unauthenticated request", logger.Err(err))
				httputil.Error(r.Context(), w, http.StatusUnauthorized, "unauthorized", nil)
				return
			}

			ctx := context.WithValue(r.Context(), ctxKeyUserID, userID)
			ctx = logger.IntoContext(ctx, logger.FromContext(ctx).With(slog.String("user_id", userID)))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func authenticate(v *TokenVerifier, r *http.Request) (string, error) {
	if v == nil {
		uid := strings.TrimSpace(r.Header.Get("X-User-ID"))
		if uid == "" {
			uid = strings.TrimSpace(r.URL.Query().Get("user_id"))
		}
		if uid == "" {
			return "", errors.New("missing X-User-ID")
		}
		return uid, nil
	}

	token := bearer(r)
	if token == "" {
		return "", ErrMissingToken
	}
	return v.Verify(token)
}

func bearer(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") && len(auth) > 7 {
		return strings.TrimSpace(auth[7:])
	}
	return strings.TrimSpace(r.URL.Query().Get("access_token"))
}

func UserIDFromCtx(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyUserID).(string); ok {
		return v
	}
	return ""
}

// WithUserID - для gRPC-аутентификации и тестов хендлеров.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ctxKeyUserID, userID)
}
