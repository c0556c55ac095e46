package grpcx

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	httpmw "github.com/cwrk-planet/ijara-chat/internal/transport/http/middleware"
	"github.com/cwrk-planet/ijara-chat/pkg/logger"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const healthPrefix = "/grpc.health.v1.Health/"

// UnaryServerInterceptor: логирование, recovery и timeout guard, если у вызова нет deadline.
func UnaryServerInterceptor(timeout time.Duration) grpc.UnaryServerInterceptor {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (resp any, err error) {
		start := time.Now()
		if _, ok := ctx.Deadline(); !ok {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		defer func() {
			if r := recover(); r != nil {
				logger.FromContext(ctx).Error("grpc unary panic",
					slog.String("method", info.FullMethod),
					slog.Any("panic", r),
					slog.String("stack", string(debug.Stack())))
				err = status.Error(codes.Internal, "internal server error")
			}
			logger.FromContext(ctx).Info("grpc unary",
				slog.String("method", info.FullMethod),
				slog.Int64("dur_ms", time.Since(start).Milliseconds()),
				slog.String("code", status.Code(err).String()),
				slog.String("err", errString(err)))
		}()

		return handler(ctx, req)
	}
}

func StreamServerInterceptor() grpc.StreamServerInterceptor {
	return func(
		srv any,
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) (err error) {
		start := time.Now()
		ctx := ss.Context()

		defer func() {
			if r := recover(); r != nil {
				logger.FromContext(ctx).Error("grpc stream panic",
					slog.String("method", info.FullMethod),
					slog.Any("panic", r),
					slog.String("stack", string(debug.Stack())))
				err = status.Error(codes.Internal, "internal server error")
			}
			logger.FromContext(ctx).Info("grpc stream",
				slog.String("method", info.FullMethod),
				slog.Int64("dur_ms", time.Since(start).Milliseconds()),
				slog.String("code", status.Code(err).String()),
				slog.String("err", errString(err)))
		}()

		return handler(srv, ss)
	}
}

// UnaryAuthInterceptor кладёт id пользователя в контекст так же, как HTTP-мидлварь Auth.
func UnaryAuthInterceptor(v *httpmw.TokenVerifier) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if strings.HasPrefix(info.FullMethod, healthPrefix) {
			return handler(ctx, req)
		}
		ctx, err := authenticate(ctx, v)
		if err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

func StreamAuthInterceptor(v *httpmw.TokenVerifier) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if strings.HasPrefix(info.FullMethod, healthPrefix) {
			return handler(srv, ss)
		}
		ctx, err := authenticate(ss.Context(), v)
		if err != nil {
			return err
		}
		return handler(srv, &authedStream{ServerStream: ss, ctx: ctx})
	}
}

type authedStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *authedStream) Context() context.Context { return s.ctx }

func authenticate(ctx context.Context, v *httpmw.TokenVerifier) (context.Context, error) {
	userID, err := userFromMD(ctx, v)
	if err != nil {
		logger.FromContext(ctx).Debug("unauthenticated rpc", logger.Err(err))
		return ctx, status.Error(codes.Unauthenticated, "unauthorized")
	}
	ctx = httpmw.WithUserID(ctx, userID)
	return logger.IntoContext(ctx, logger.FromContext(ctx).With(slog.String("user_id", userID))), nil
}

// userFromMD: authorization: Bearer <jwt>; без verifier (dev) - x-user-id.
func userFromMD(ctx context.Context, v *httpmw.TokenVerifier) (string, error) {
	md, _ := metadata.FromIncomingContext(ctx)
	if v == nil {
		uid := strings.TrimSpace(first(md.Get("x-user-id")))
		if uid == "" {
			return "", errors.New("missing x-user-id")
		}
		return uid, nil
	}

	auth := first(md.Get("authorization"))
	if !strings.HasPrefix(auth, "Bearer ") || len(auth) <= 7 {
		return "", httpmw.ErrMissingToken
	}
	return v.Verify(strings.TrimSpace(auth[7:]))
}

func first(v []string) string {
	if len(v) == 0 {
		return ""
	}
	return v[0]
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
