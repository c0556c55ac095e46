package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cwrk-planet/ijara-chat/internal/badgerdb"
	"github.com/cwrk-planet/ijara-chat/internal/domain"
	"github.com/cwrk-planet/ijara-chat/internal/metrics"
	"github.com/cwrk-planet/ijara-chat/internal/realtime"
	"github.com/cwrk-planet/ijara-chat/pkg/logger"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

const DefaultMaxMessageLength = 4000

// ':' разделяет сегменты ключей badger, '_' - части id комнаты.
type SendMessageInput struct {
	SenderID   string `validate:"required,excludesall=:_"`
	ReceiverID string `validate:"required,excludesall=:_,nefield=SenderID"`
	PropertyID string `validate:"required,excludesall=:_"`
	Text       string `validate:"required"`
}

type roomKeyInput struct {
	PropertyID string `validate:"required,excludesall=:_"`
	UserA      string `validate:"required,excludesall=:_"`
	UserB      string `validate:"required,excludesall=:_,nefield=UserA"`
}

type ChatService struct {
	rooms    RoomStore
	messages MessageStore
	notifier Notifier
	validate *validator.Validate
	now      func() time.Time
	maxLen   int
}

type ChatOption func(*ChatService)

// WithClock подменяет источник времени, в тестах - для имитации рассинхрона часов.
func WithClock(now func() time.Time) ChatOption {
	return func(s *ChatService) { s.now = now }
}

func WithMaxMessageLength(n int) ChatOption {
	return func(s *ChatService) {
		if n > 0 {
			s.maxLen = n
		}
	}
}

func NewChatService(rooms RoomStore, messages MessageStore, notifier Notifier, opts ...ChatOption) *ChatService {
	s := &ChatService{
		rooms:    rooms,
		messages: messages,
		notifier: notifier,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		now:      time.Now,
		maxLen:   DefaultMaxMessageLength,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SendMessage сохраняет сообщение и будит подписчиков комнаты и инбоксы обоих участников.
// Невалидный ввод отклоняется до обращения к хранилищу.
func (s *ChatService) SendMessage(ctx context.Context, in SendMessageInput) (*domain.ChatMessage, error) {
	in.Text = strings.TrimSpace(in.Text)
	if err := s.validate.Struct(in); err != nil {
		metrics.RecordSendFailure("validation")
		return nil, fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}
	if utf8.RuneCountInString(in.Text) > s.maxLen {
		metrics.RecordSendFailure("validation")
		return nil, fmt.Errorf("%w: message longer than %d characters", domain.ErrValidation, s.maxLen)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("new message id: %w", err)
	}
	now := s.now().UTC().Truncate(time.Millisecond)
	room := domain.NewChatRoom(in.PropertyID, in.SenderID, in.ReceiverID, now)
	msg := domain.ChatMessage{
		ID:        id.String(),
		RoomID:    room.ID,
		SenderID:  in.SenderID,
		Text:      in.Text,
		CreatedAt: now,
	}

	saved, err := s.messages.Save(ctx, room, msg, in.ReceiverID)
	if errors.Is(err, domain.ErrNotParticipant) {
		metrics.RecordSendFailure("not_participant")
		return nil, err
	}
	if err != nil {
		metrics.RecordSendFailure("store")
		logger.FromContext(ctx).Error("save message failed",
			slog.String("room_id", room.ID),
			logger.Err(err),
		)
		return nil, fmt.Errorf("%w: %w", domain.ErrStore, err)
	}
	metrics.RecordMessageSent()

	s.notifier.Notify(ctx,
		realtime.RoomTopic(room.ID),
		realtime.UserTopic(in.SenderID),
		realtime.UserTopic(in.ReceiverID),
	)
	return &saved, nil
}

// EnsureRoom создаёт комнату, если её ещё нет. Конкурентные вызовы получают одну и ту же комнату.
func (s *ChatService) EnsureRoom(ctx context.Context, propertyID, userA, userB string) (domain.ChatRoom, error) {
	if err := s.validate.Struct(roomKeyInput{PropertyID: propertyID, UserA: userA, UserB: userB}); err != nil {
		return domain.ChatRoom{}, fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}

	room := domain.NewChatRoom(propertyID, userA, userB, s.now().UTC().Truncate(time.Millisecond))
	got, created, err := s.rooms.EnsureRoom(ctx, room)
	if errors.Is(err, domain.ErrNotParticipant) {
		return domain.ChatRoom{}, err
	}
	if err != nil {
		return domain.ChatRoom{}, fmt.Errorf("%w: %w", domain.ErrStore, err)
	}
	if created {
		logger.FromContext(ctx).Info("chat room created",
			slog.String("room_id", got.ID),
			slog.String("property_id", propertyID),
		)
		s.notifier.Notify(ctx, realtime.UserTopic(userA), realtime.UserTopic(userB))
	}
	return got, nil
}

// Messages - полный лог комнаты по возрастанию времени.
func (s *ChatService) Messages(ctx context.Context, roomID string) ([]domain.ChatMessage, error) {
	msgs, err := s.messages.ListMessages(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrStore, err)
	}
	return msgs, nil
}

func (s *ChatService) History(ctx context.Context, roomID, after string, limit int) ([]domain.ChatMessage, string, error) {
	msgs, next, err := s.messages.History(ctx, roomID, after, limit)
	if err != nil {
		if errors.Is(err, badgerdb.ErrInvalidCursor) {
			return nil, "", fmt.Errorf("%w: %w", domain.ErrValidation, err)
		}
		return nil, "", fmt.Errorf("%w: %w", domain.ErrStore, err)
	}
	return msgs, next, nil
}

// MarkRead обнуляет счётчик непрочитанных userID в комнате.
// Инбокс будится, только если счётчик действительно был ненулевым.
func (s *ChatService) MarkRead(ctx context.Context, roomID, userID string) error {
	changed, err := s.rooms.MarkRead(ctx, roomID, userID)
	if err != nil {
		if errors.Is(err, domain.ErrRoomNotFound) || errors.Is(err, domain.ErrNotParticipant) {
			return err
		}
		return fmt.Errorf("%w: %w", domain.ErrStore, err)
	}
	if changed {
		s.notifier.Notify(ctx, realtime.UserTopic(userID))
	}
	return nil
}
