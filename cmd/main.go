package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cwrk-planet/ijara-chat/config"
	"github.com/cwrk-planet/ijara-chat/internal/badgerdb"
	"github.com/cwrk-planet/ijara-chat/internal/postgres"
	"github.com/cwrk-planet/ijara-chat/internal/realtime"
	"github.com/cwrk-planet/ijara-chat/internal/service"
	grpcx "github.com/cwrk-planet/ijara-chat/internal/transport/grpc"
	httpx "github.com/cwrk-planet/ijara-chat/internal/transport/http"
	httpmw "github.com/cwrk-planet/ijara-chat/internal/transport/http/middleware"
	"github.com/cwrk-planet/ijara-chat/internal/transport/ws"
	"github.com/cwrk-planet/ijara-chat/pkg/logger"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"google.golang.org/grpc"
)

func main() {
	// --- config ---
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	instanceID := uuid.NewString()
	logger.Init(logger.Config{
		Env:        logger.ParseEnv(cfg.Logging.Env),
		Service:    cfg.Logging.Service,
		Version:    cfg.Logging.Version,
		InstanceID: instanceID,
		Backend:    logger.Backend(cfg.Logging.Backend),
		Level:      logger.ParseLevel(cfg.Logging.Level),
		AddSource:  cfg.Logging.AddSource,
		Debug:      cfg.Logging.Debug,
	})
	slog.Info("starting chat-service",
		"env", cfg.Logging.Env, "version", cfg.Logging.Version)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// --- tracing: экспортёра нет, провайдер нужен ради trace_id/span_id в логах ---
	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	defer func() { _ = tp.Shutdown(context.Background()) }()

	// --- postgres (заявки, профили, объекты маркетплейса) ---
	pool, err := postgres.NewPool(ctx, cfg.Postgres.ToPGConfig())
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	// --- badger (сообщения и комнаты) ---
	store, err := badgerdb.Open(cfg.Badger.ToBadgerConfig())
	if err != nil {
		log.Fatalf("badger: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Error("badger close", "err", err)
		}
	}()

	// --- realtime ---
	hub := realtime.NewHub()
	if cfg.Redis.Enabled() {
		bridge, err := realtime.NewRedisBridge(ctx, cfg.Redis.ToRedisConfig(), instanceID, hub)
		if err != nil {
			log.Fatalf("redis: %v", err)
		}
		defer bridge.Close()
		hub.SetPublisher(bridge)
		go func() {
			if err := bridge.Run(ctx); err != nil {
				slog.Error("redis bridge stopped", "err", err)
			}
		}()
	}

	// --- repos ---
	roomRepo := badgerdb.NewRoomRepository(store)
	chatRepo := badgerdb.NewChatRepository(store)
	grantRepo := postgres.NewGrantRepository(pool)
	profileRepo := postgres.NewProfileRepository(pool)
	propertyRepo := postgres.NewPropertyRepository(pool)

	// --- services ---
	accessSvc := service.NewAccessService(grantRepo)
	chatSvc := service.NewChatService(roomRepo, chatRepo, hub,
		service.WithMaxMessageLength(cfg.Chat.MaxMessageLength))
	inboxSvc := service.NewInboxService(roomRepo)
	subSvc := service.NewSubscriptionService(chatSvc, inboxSvc, hub)
	sessions := service.NewSessionController(accessSvc, chatSvc, subSvc, profileRepo)

	// --- auth ---
	var verifier *httpmw.TokenVerifier
	if cfg.Auth.PublicKeyPath != "" {
		pub, err := httpmw.LoadRSAPublicKeyFromPEM(cfg.Auth.PublicKeyPath)
		if err != nil {
			log.Fatalf("jwt public key: %v", err)
		}
		verifier = httpmw.NewTokenVerifier(pub, cfg.Auth.Issuer, cfg.Auth.Audience, cfg.Auth.ClockSkew)
	} else {
		slog.Warn("auth public key not configured, trusting X-User-ID")
	}

	// --- HTTP + WS ---
	wsServer := ws.NewServer(sessions, subSvc, propertyRepo, cfg.HTTP.AllowedOrigins)
	handler := httpx.NewHandler(accessSvc, chatSvc, inboxSvc, propertyRepo)
	router := httpx.NewRouter(httpx.Deps{
		Handler:        handler,
		WS:             wsServer,
		Verifier:       verifier,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		RequestTimeout: cfg.HTTP.RequestTimeout,
	})
	httpSrv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		slog.Info("http listen", "addr", cfg.HTTP.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// --- gRPC (внутренние клиенты платформы) ---
	var grpcSrv *grpc.Server
	if cfg.GRPC.Enabled() {
		lis, err := net.Listen("tcp", cfg.GRPC.Addr)
		if err != nil {
			log.Fatalf("grpc listen: %v", err)
		}
		grpcSrv = grpcx.NewGRPCServer(
			grpcx.NewServer(accessSvc, chatSvc, inboxSvc, subSvc, propertyRepo),
			verifier, cfg.GRPC.RequestTimeout)
		go func() {
			slog.Info("grpc listen", "addr", cfg.GRPC.Addr)
			if err := grpcSrv.Serve(lis); err != nil {
				errCh <- err
			}
		}()
	}

	// --- graceful shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal", "sig", sig)
	case err := <-errCh:
		slog.Error("server error", "err", err)
	}

	ctxShutdown, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	// сначала живые подписки: ws-хендлеры и grpc-стримы увидят закрытые каналы и завершатся
	subSvc.Close()
	if grpcSrv != nil {
		grpcSrv.GracefulStop()
	}
	if err := httpSrv.Shutdown(ctxShutdown); err != nil {
		slog.Warn("http shutdown", "err", err)
	}
	stop()
	slog.Info("stopped")
}
