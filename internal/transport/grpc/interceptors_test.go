package grpcx

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	httpmw "github.com/cwrk-planet/ijara-chat/internal/transport/http/middleware"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

var unaryInfo = &grpc.UnaryServerInfo{FullMethod: methodGetUserChats}

func TestUnaryServerInterceptor_RecoversPanic(t *testing.T) {
	_, err := UnaryServerInterceptor(time.Second)(context.Background(), nil, unaryInfo,
		func(context.Context, any) (any, error) { panic("boom") })
	require.Equal(t, codes.Internal, status.Code(err))
}

func TestUnaryServerInterceptor_DeadlineGuard(t *testing.T) {
	var got time.Time
	_, err := UnaryServerInterceptor(time.Minute)(context.Background(), nil, unaryInfo,
		func(ctx context.Context, _ any) (any, error) {
			got, _ = ctx.Deadline()
			return nil, nil
		})
	require.NoError(t, err)
	require.WithinDuration(t, time.Now().Add(time.Minute), got, 5*time.Second)

	// дедлайн клиента не переписывается
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	want, _ := ctx.Deadline()
	_, err = UnaryServerInterceptor(time.Minute)(ctx, nil, unaryInfo,
		func(ctx context.Context, _ any) (any, error) {
			got, _ = ctx.Deadline()
			return nil, nil
		})
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func callAuthed(v *httpmw.TokenVerifier, md metadata.MD, method string) (string, error) {
	ctx := metadata.NewIncomingContext(context.Background(), md)
	var uid string
	_, err := UnaryAuthInterceptor(v)(ctx, nil, &grpc.UnaryServerInfo{FullMethod: method},
		func(ctx context.Context, _ any) (any, error) {
			uid = httpmw.UserIDFromCtx(ctx)
			return nil, nil
		})
	return uid, err
}

func TestUnaryAuthInterceptor_DevHeader(t *testing.T) {
	uid, err := callAuthed(nil, metadata.Pairs("x-user-id", " A "), methodCheckAccess)
	require.NoError(t, err)
	require.Equal(t, "A", uid)

	_, err = callAuthed(nil, metadata.MD{}, methodCheckAccess)
	require.Equal(t, codes.Unauthenticated, status.Code(err))
}

func TestUnaryAuthInterceptor_BearerToken(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	v := httpmw.NewTokenVerifier(&key.PublicKey, "ijara-auth", "", time.Second)

	now := time.Now()
	token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.RegisteredClaims{
		Subject:   "user-1",
		Issuer:    "ijara-auth",
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
	}).SignedString(key)
	require.NoError(t, err)

	uid, err := callAuthed(v, metadata.Pairs("authorization", "Bearer "+token), methodSendMessage)
	require.NoError(t, err)
	require.Equal(t, "user-1", uid)

	// с verifier заголовок x-user-id не принимается
	_, err = callAuthed(v, metadata.Pairs("x-user-id", "user-1"), methodSendMessage)
	require.Equal(t, codes.Unauthenticated, status.Code(err))

	_, err = callAuthed(v, metadata.Pairs("authorization", "Bearer garbage"), methodSendMessage)
	require.Equal(t, codes.Unauthenticated, status.Code(err))

	// health доступен без токена
	_, err = callAuthed(v, metadata.MD{}, healthPrefix+"Check")
	require.NoError(t, err)
}
