package service

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/cwrk-planet/ijara-chat/internal/domain"

	"github.com/samber/lo"
)

type InboxService struct {
	rooms RoomStore
}

func NewInboxService(rooms RoomStore) *InboxService {
	return &InboxService{rooms: rooms}
}

// GetUserChats - список диалогов пользователя, свежие сверху.
// Строки про один и тот же объект с той же парой схлопываются в самую свежую.
func (s *InboxService) GetUserChats(ctx context.Context, userID string) ([]domain.InboxEntry, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", domain.ErrValidation)
	}

	rows, err := s.rooms.ListByParticipant(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrStore, err)
	}

	rows = lo.Filter(rows, func(r domain.ChatRoom, _ int) bool {
		return r.HasParticipant(userID)
	})
	slices.SortStableFunc(rows, func(a, b domain.ChatRoom) int {
		if c := b.ActivityAt().Compare(a.ActivityAt()); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	rows = lo.UniqBy(rows, conversationKey)

	return lo.Map(rows, func(r domain.ChatRoom, _ int) domain.InboxEntry {
		return domain.InboxEntry{
			Room:             r,
			OtherParticipant: otherParticipant(r, userID),
			UnreadCount:      r.Unread[userID],
		}
	}), nil
}

func conversationKey(r domain.ChatRoom) string {
	pair := r.Participants
	if len(pair) == 2 {
		pair = domain.SortedPair(pair[0], pair[1])
	}
	return r.PropertyID + "\x00" + strings.Join(pair, "\x00")
}

func otherParticipant(r domain.ChatRoom, userID string) string {
	other, ok := lo.Find(r.Participants, func(p string) bool { return p != userID })
	if !ok {
		return userID
	}
	return other
}
