package service

import (
	"context"

	"github.com/cwrk-planet/ijara-chat/internal/domain"
)

type GrantReader interface {
	GetGrant(ctx context.Context, propertyID, userID string) (*domain.AccessGrant, error)
}

// ProfileReader грузит профили пачкой; отсутствующих пользователей нет в map.
type ProfileReader interface {
	GetProfiles(ctx context.Context, userIDs []string) (map[string]domain.UserProfile, error)
}

type RoomStore interface {
	EnsureRoom(ctx context.Context, room domain.ChatRoom) (domain.ChatRoom, bool, error)
	Get(ctx context.Context, roomID string) (*domain.ChatRoom, error)
	ListByParticipant(ctx context.Context, userID string) ([]domain.ChatRoom, error)
	MarkRead(ctx context.Context, roomID, userID string) (bool, error)
}

type MessageStore interface {
	Save(ctx context.Context, room domain.ChatRoom, msg domain.ChatMessage, receiverID string) (domain.ChatMessage, error)
	ListMessages(ctx context.Context, roomID string) ([]domain.ChatMessage, error)
	History(ctx context.Context, roomID, after string, limit int) ([]domain.ChatMessage, string, error)
}

type Notifier interface {
	Notify(ctx context.Context, topics ...string)
}
