package realtime

import (
	"context"
	"log/slog"
	"sync"

	"github.com/cwrk-planet/ijara-chat/pkg/logger"
)

func RoomTopic(roomID string) string { return "room:" + roomID }
func UserTopic(userID string) string { return "user:" + userID }

// Listener получает сигнал "что-то изменилось" по своему топику.
// Буфер на один сигнал: несколько изменений между чтениями склеиваются в одно.
type Listener struct {
	topic string
	ch    chan struct{}
}

func (l *Listener) Topic() string      { return l.topic }
func (l *Listener) C() <-chan struct{} { return l.ch }

func (l *Listener) signal() {
	select {
	case l.ch <- struct{}{}:
	default:
	}
}

// Publisher рассылает изменения другим инстансам сервиса.
type Publisher interface {
	Publish(ctx context.Context, topics ...string) error
}

type Hub struct {
	mu     sync.RWMutex
	topics map[string]map[*Listener]struct{} // topic -> set of listeners

	pubMu sync.RWMutex
	pub   Publisher
}

func NewHub() *Hub {
	return &Hub{topics: make(map[string]map[*Listener]struct{})}
}

func (h *Hub) SetPublisher(p Publisher) {
	h.pubMu.Lock()
	defer h.pubMu.Unlock()
	h.pub = p
}

// Subscribe регистрирует слушателя синхронно: после возврата ни одно изменение не пропадёт.
func (h *Hub) Subscribe(topic string) *Listener {
	l := &Listener{topic: topic, ch: make(chan struct{}, 1)}

	h.mu.Lock()
	defer h.mu.Unlock()

	ls, ok := h.topics[topic]
	if !ok {
		ls = make(map[*Listener]struct{})
		h.topics[topic] = ls
	}
	ls[l] = struct{}{}
	return l
}

func (h *Hub) Unsubscribe(l *Listener) {
	if l == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	if ls, ok := h.topics[l.topic]; ok {
		delete(ls, l)
		if len(ls) == 0 {
			delete(h.topics, l.topic)
		}
	}
}

// Notify будит локальных слушателей и, если настроен мост, остальные инстансы.
func (h *Hub) Notify(ctx context.Context, topics ...string) {
	h.NotifyLocal(topics...)

	h.pubMu.RLock()
	pub := h.pub
	h.pubMu.RUnlock()
	if pub == nil {
		return
	}
	if err := pub.Publish(ctx, topics...); err != nil {
		logger.FromContext(ctx).Warn("realtime publish failed", slog.Any("topics", topics), logger.Err(err))
	}
}

func (h *Hub) NotifyLocal(topics ...string) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, t := range topics {
		for l := range h.topics[t] {
			l.signal() // non-blocking
		}
	}
}

func (h *Hub) Listeners(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}
