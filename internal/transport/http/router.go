package http

import (
	"net/http"
	"time"

	httpmw "github.com/cwrk-planet/ijara-chat/internal/transport/http/middleware"
	"github.com/cwrk-planet/ijara-chat/internal/transport/ws"
	"github.com/cwrk-planet/ijara-chat/pkg/httputil"

	"github.com/go-chi/chi/v5"
	middlewareChi "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Deps struct {
	Handler  *Handler
	WS       *ws.Server
	Verifier *httpmw.TokenVerifier // nil - dev-режим с X-User-ID

	AllowedOrigins []string
	RequestTimeout time.Duration
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middlewareChi.RealIP)
	r.Use(middlewareChi.Recoverer)
	r.Use(httputil.MiddlewareRequestID)
	r.Use(httputil.MiddlewareTracing)
	r.Use(httputil.MiddlewareLogging)

	origins := d.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "X-User-ID"},
		ExposedHeaders:   []string{httputil.HeaderRequestID},
		AllowCredentials: len(d.AllowedOrigins) > 0,
		MaxAge:           300,
	}))

	// health
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httputil.OK(w, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	timeout := d.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	// Все маршруты требуют аутентификации
	r.Group(func(pr chi.Router) {
		pr.Use(httpmw.Auth(d.Verifier))

		// WS без таймаута: соединение живёт долго
		if d.WS != nil {
			pr.Get("/ws/properties/{propertyID}/chat", d.WS.HandleChat)
			pr.Get("/ws/chats", d.WS.HandleInbox)
		}

		pr.Group(func(api chi.Router) {
			api.Use(middlewareChi.Timeout(timeout))

			api.Route("/properties/{propertyID}", func(pp chi.Router) {
				pp.Get("/access", d.Handler.CheckAccess)
				pp.Get("/chat/messages", d.Handler.GetChatHistory)
				pp.Post("/chat/messages", d.Handler.SendMessage)
			})
			api.Get("/chats", d.Handler.ListChats)
			api.Post("/chats/{roomID}/read", d.Handler.MarkRead)
		})
	})

	return r
}
