package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/cwrk-planet/ijara-chat/internal/domain"
	"github.com/cwrk-planet/ijara-chat/internal/realtime"
	"github.com/cwrk-planet/ijara-chat/pkg/logger"
)

// Snapshot - полное текущее состояние подписки либо ошибка его загрузки.
type Snapshot[T any] struct {
	Items []T
	Err   error
}

// Subscription доставляет снимки в Updates(): первый сразу, дальше после каждого изменения.
// Несколько изменений между чтениями могут прийти одним снимком.
type Subscription[T any] struct {
	updates chan Snapshot[T]
	cancel  context.CancelFunc
	done    chan struct{}
	once    sync.Once
}

func (s *Subscription[T]) Updates() <-chan Snapshot[T] { return s.updates }

// Unsubscribe идемпотентен. После возврата снимков больше не будет, канал закрыт.
func (s *Subscription[T]) Unsubscribe() {
	s.once.Do(func() {
		s.cancel()
		<-s.done
	})
}

type MessageSubscription = Subscription[domain.ChatMessage]
type InboxSubscription = Subscription[domain.InboxEntry]

// startFeed запускает горутину подписки. Слушатель уже зарегистрирован в хабе,
// поэтому изменения между регистрацией и первым снимком не теряются.
func startFeed[T any](ctx context.Context, l *realtime.Listener, load func(context.Context) ([]T, error), release func()) *Subscription[T] {
	ctx, cancel := context.WithCancel(ctx)
	s := &Subscription[T]{
		updates: make(chan Snapshot[T]),
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	go func() {
		defer close(s.done)
		defer close(s.updates)
		defer release()

		for {
			items, err := load(ctx)
			if ctx.Err() != nil {
				return
			}
			snap := Snapshot[T]{Items: items}
			if err != nil {
				logger.FromContext(ctx).Warn("subscription load failed", slog.String("topic", l.Topic()), logger.Err(err))
				snap = Snapshot[T]{Err: fmt.Errorf("%w: %w", domain.ErrSubscription, err)}
			}

			select {
			case s.updates <- snap:
			case <-ctx.Done():
				return
			}

			select {
			case <-l.C():
			case <-ctx.Done():
				return
			}
		}
	}()
	return s
}

// listen переводит подписку в колбэки. Возвращённая функция отписки ждёт
// выхода горутины колбэков: после её возврата колбэк не выполняется и не
// будет вызван. Из самого колбэка отписываться через go unsubscribe().
func listen[T any](sub *Subscription[T], onUpdate func([]T), onError func(error)) func() {
	var (
		stopped atomic.Bool
		once    sync.Once
	)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for snap := range sub.Updates() {
			if stopped.Load() {
				continue
			}
			if snap.Err != nil {
				if onError != nil {
					onError(snap.Err)
				}
				continue
			}
			onUpdate(snap.Items)
		}
	}()

	return func() {
		once.Do(func() {
			stopped.Store(true)
			sub.Unsubscribe()
		})
		<-done
	}
}
