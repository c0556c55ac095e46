package realtime

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cwrk-planet/ijara-chat/pkg/logger"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

type RedisConfig struct {
	Address  string
	Password string
	DB       int
	Channel  string
}

type envelope struct {
	Origin string   `json:"origin"`
	Topics []string `json:"topics"`
}

// RedisBridge пересылает уведомления хаба между инстансами через pub/sub.
// Свои сообщения отбрасываются по origin: локальные слушатели уже разбужены.
type RedisBridge struct {
	client  *redis.Client
	channel string
	origin  string
	hub     *Hub
}

func NewRedisBridge(ctx context.Context, cfg RedisConfig, origin string, hub *Hub) (*RedisBridge, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	channel := cfg.Channel
	if channel == "" {
		channel = "chat:changes"
	}
	return &RedisBridge{client: client, channel: channel, origin: origin, hub: hub}, nil
}

func (b *RedisBridge) Publish(ctx context.Context, topics ...string) error {
	if len(topics) == 0 {
		return nil
	}
	data, err := json.Marshal(envelope{Origin: b.origin, Topics: topics})
	if err != nil {
		return fmt.Errorf("failed to marshal change: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish to redis: %w", err)
	}
	return nil
}

// Run слушает канал до отмены ctx.
func (b *RedisBridge) Run(ctx context.Context) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to redis: %w", err)
	}

	lg := logger.FromContext(ctx).With(slog.String("component", "redis_bridge"))
	lg.Info("redis bridge started", slog.String("channel", b.channel))

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			if err := b.handle([]byte(msg.Payload)); err != nil {
				lg.Warn("bad change payload", logger.Err(err))
			}
		}
	}
}

func (b *RedisBridge) handle(payload []byte) error {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return err
	}
	if env.Origin == b.origin {
		return nil
	}
	b.hub.NotifyLocal(env.Topics...)
	return nil
}

func (b *RedisBridge) Close() error {
	return b.client.Close()
}
