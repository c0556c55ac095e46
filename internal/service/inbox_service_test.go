package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cwrk-planet/ijara-chat/internal/domain"
	"github.com/cwrk-planet/ijara-chat/internal/service"

	"github.com/stretchr/testify/require"
)

// rawRooms отдаёт строки как есть, включая дубликаты старых форматов.
type rawRooms struct {
	service.RoomStore
	rows []domain.ChatRoom
	err  error
}

func (r rawRooms) ListByParticipant(context.Context, string) ([]domain.ChatRoom, error) {
	return r.rows, r.err
}

func row(id, property string, participants []string, last string, atMs int64) domain.ChatRoom {
	return domain.ChatRoom{
		ID:            id,
		PropertyID:    property,
		Participants:  participants,
		LastMessage:   last,
		LastMessageAt: time.UnixMilli(atMs),
		CreatedAt:     time.UnixMilli(1),
		Unread:        map[string]int{},
	}
}

func TestGetUserChats_CollapsesDuplicates(t *testing.T) {
	rows := []domain.ChatRoom{
		row("P101_A_B", "P101", []string{"A", "B"}, "first", 100),
		row("P101_B_A", "P101", []string{"B", "A"}, "third", 300),
		row("legacy-1", "P101", []string{"A", "B"}, "second", 200),
	}
	rows[1].Unread["A"] = 2

	got, err := service.NewInboxService(rawRooms{rows: rows}).GetUserChats(context.Background(), "A")
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "third", got[0].Room.LastMessage)
	require.Equal(t, "B", got[0].OtherParticipant)
	require.Equal(t, 2, got[0].UnreadCount)
}

func TestGetUserChats_SortsAndFilters(t *testing.T) {
	empty := row("P3_A_D", "P3", []string{"A", "D"}, "", 0)
	empty.LastMessageAt = time.Time{}
	empty.CreatedAt = time.UnixMilli(250)

	rows := []domain.ChatRoom{
		row("P1_A_B", "P1", []string{"A", "B"}, "old", 100),
		row("P2_A_C", "P2", []string{"A", "C"}, "new", 300),
		row("P9_X_Y", "P9", []string{"X", "Y"}, "foreign", 999),
		empty,
	}

	got, err := service.NewInboxService(rawRooms{rows: rows}).GetUserChats(context.Background(), "A")
	require.NoError(t, err)

	ids := make([]string, 0, len(got))
	for _, e := range got {
		ids = append(ids, e.Room.ID)
	}
	require.Equal(t, []string{"P2_A_C", "P3_A_D", "P1_A_B"}, ids)
	require.Equal(t, "D", got[1].OtherParticipant)
}

func TestGetUserChats_Errors(t *testing.T) {
	svc := service.NewInboxService(rawRooms{err: errors.New("io")})

	_, err := svc.GetUserChats(context.Background(), "A")
	require.ErrorIs(t, err, domain.ErrStore)

	_, err = svc.GetUserChats(context.Background(), "")
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestGetUserChats_FromStore(t *testing.T) {
	f := newFixture(t)
	send(t, f, "A", "B", "hi landlord")
	_, err := f.chats.SendMessage(context.Background(), service.SendMessageInput{
		SenderID: "C", ReceiverID: "B", PropertyID: "P202", Text: "other flat",
	})
	require.NoError(t, err)

	got, err := f.inbox.GetUserChats(context.Background(), "B")
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "P202_B_C", got[0].Room.ID)
	require.Equal(t, "C", got[0].OtherParticipant)
	require.Equal(t, "A", got[1].OtherParticipant)
	require.Equal(t, 1, got[1].UnreadCount)
}
