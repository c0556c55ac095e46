package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/cwrk-planet/ijara-chat/internal/domain"
	"github.com/cwrk-planet/ijara-chat/internal/metrics"
	"github.com/cwrk-planet/ijara-chat/internal/realtime"
)

var errSubscriptionsClosed = fmt.Errorf("%w: service is shutting down", domain.ErrSubscription)

type SubscriptionService struct {
	chats *ChatService
	inbox *InboxService
	hub   *realtime.Hub

	mu     sync.Mutex
	nextID uint64
	active map[uint64]func()
	closed bool
}

func NewSubscriptionService(chats *ChatService, inbox *InboxService, hub *realtime.Hub) *SubscriptionService {
	return &SubscriptionService{
		chats:  chats,
		inbox:  inbox,
		hub:    hub,
		active: make(map[uint64]func()),
	}
}

// SubscribeMessages открывает живой лог комнаты (propertyID, userA, userB).
// Комната создаётся, если её ещё нет.
func (s *SubscriptionService) SubscribeMessages(ctx context.Context, userA, userB, propertyID string) (*MessageSubscription, error) {
	room, err := s.chats.EnsureRoom(ctx, propertyID, userA, userB)
	if err != nil {
		return nil, err
	}
	roomID := room.ID
	return register(ctx, s, metrics.KindMessages, realtime.RoomTopic(roomID), func(ctx context.Context) ([]domain.ChatMessage, error) {
		return s.chats.Messages(ctx, roomID)
	})
}

func (s *SubscriptionService) ListenToMessages(ctx context.Context, userA, userB, propertyID string, onUpdate func([]domain.ChatMessage)) (func(), error) {
	return s.ListenToMessagesWithErrors(ctx, userA, userB, propertyID, onUpdate, nil)
}

func (s *SubscriptionService) ListenToMessagesWithErrors(ctx context.Context, userA, userB, propertyID string, onUpdate func([]domain.ChatMessage), onError func(error)) (func(), error) {
	sub, err := s.SubscribeMessages(ctx, userA, userB, propertyID)
	if err != nil {
		return nil, err
	}
	return listen(sub, onUpdate, onError), nil
}

// SubscribeUserRooms - живой инбокс пользователя.
func (s *SubscriptionService) SubscribeUserRooms(ctx context.Context, userID string) (*InboxSubscription, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", domain.ErrValidation)
	}
	return register(ctx, s, metrics.KindInbox, realtime.UserTopic(userID), func(ctx context.Context) ([]domain.InboxEntry, error) {
		return s.inbox.GetUserChats(ctx, userID)
	})
}

func (s *SubscriptionService) ListenToUserRooms(ctx context.Context, userID string, onUpdate func([]domain.InboxEntry)) (func(), error) {
	sub, err := s.SubscribeUserRooms(ctx, userID)
	if err != nil {
		return nil, err
	}
	return listen(sub, onUpdate, nil), nil
}

// Active - число живых подписок.
func (s *SubscriptionService) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// Close снимает все живые подписки; новые после этого не открываются.
func (s *SubscriptionService) Close() {
	s.mu.Lock()
	s.closed = true
	subs := make([]func(), 0, len(s.active))
	for _, unsub := range s.active {
		subs = append(subs, unsub)
	}
	s.mu.Unlock()

	for _, unsub := range subs {
		unsub()
	}
}

func register[T any](ctx context.Context, s *SubscriptionService, kind, topic string, load func(context.Context) ([]T, error)) (*Subscription[T], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errSubscriptionsClosed
	}

	id := s.nextID
	s.nextID++

	l := s.hub.Subscribe(topic)
	metrics.SubscriptionOpened(kind)
	sub := startFeed(ctx, l, load, func() {
		s.hub.Unsubscribe(l)
		metrics.SubscriptionClosed(kind)
		s.mu.Lock()
		delete(s.active, id)
		s.mu.Unlock()
	})
	s.active[id] = sub.Unsubscribe
	return sub, nil
}
