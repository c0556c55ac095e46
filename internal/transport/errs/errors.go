package errs

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/cwrk-planet/ijara-chat/internal/domain"
	"github.com/cwrk-planet/ijara-chat/pkg/httputil"
	"github.com/cwrk-planet/ijara-chat/pkg/logger"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func ToHTTP(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrAccessDenied), errors.Is(err, domain.ErrNotParticipant):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrRoomNotFound), errors.Is(err, domain.ErrPropertyNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrStore):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Public - статус и текст для клиента. Текст 5xx скрыт: там может быть
// строка драйвера.
func Public(err error) (int, string) {
	status := ToHTTP(err)
	if status >= http.StatusInternalServerError {
		return status, http.StatusText(status)
	}
	return status, err.Error()
}

// Write отвечает ошибкой в обёртке api; 5xx пишет в лог целиком.
func Write(ctx context.Context, w http.ResponseWriter, op string, err error) {
	status, msg := Public(err)
	if status >= http.StatusInternalServerError {
		logger.FromContext(ctx).Error("handler failed", slog.String("op", op), logger.Err(err))
	}
	httputil.Error(ctx, w, status, msg, nil)
}

func ToGRPC(err error) codes.Code {
	switch {
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	case errors.Is(err, domain.ErrValidation):
		return codes.InvalidArgument
	case errors.Is(err, domain.ErrAccessDenied), errors.Is(err, domain.ErrNotParticipant):
		return codes.PermissionDenied
	case errors.Is(err, domain.ErrRoomNotFound), errors.Is(err, domain.ErrPropertyNotFound):
		return codes.NotFound
	case errors.Is(err, domain.ErrStore), errors.Is(err, domain.ErrSubscription):
		return codes.Unavailable
	default:
		return codes.Internal
	}
}

// Status - gRPC-аналог Write: Unavailable и Internal уходят клиенту без текста драйвера.
func Status(ctx context.Context, op string, err error) error {
	code := ToGRPC(err)
	switch code {
	case codes.Unavailable:
		logger.FromContext(ctx).Error("rpc failed", slog.String("op", op), logger.Err(err))
		return status.Error(code, "store unavailable")
	case codes.Internal:
		logger.FromContext(ctx).Error("rpc failed", slog.String("op", op), logger.Err(err))
		return status.Error(code, "internal server error")
	}
	return status.Error(code, err.Error())
}
