package httputil

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/cwrk-planet/ijara-chat/pkg/logger"

	"github.com/goccy/go-json"
)

type envelope map[string]any

func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("write json response failed", logger.Err(err))
	}
}

// OK - «успешный» ответ с обёрткой.
func OK(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, envelope{"data": data})
}

func Created(w http.ResponseWriter, data any) {
	JSON(w, http.StatusCreated, envelope{"data": data})
}

// Error - унифицированная ошибка (message + meta).
func Error(ctx context.Context, w http.ResponseWriter, status int, msg string, meta map[string]any) {
	payload := envelope{
		"error": envelope{
			"message": msg,
		},
	}
	if len(meta) > 0 {
		payload["error"].(envelope)["meta"] = meta
	}
	if status >= http.StatusInternalServerError {
		logger.FromContext(ctx).Debug("error response", slog.Int("status", status), slog.String("message", msg))
	}
	JSON(w, status, payload)
}
