package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/cwrk-planet/ijara-chat/internal/domain"
	"github.com/cwrk-planet/ijara-chat/internal/realtime"
	"github.com/cwrk-planet/ijara-chat/internal/service"

	"github.com/stretchr/testify/require"
)

func TestSendMessage_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	short := service.NewChatService(f.rooms, f.messages, f.hub, service.WithMaxMessageLength(5))

	tests := []struct {
		name string
		svc  *service.ChatService
		in   service.SendMessageInput
	}{
		{name: "empty text", svc: f.chats, in: service.SendMessageInput{SenderID: "A", ReceiverID: "B", PropertyID: "P101", Text: ""}},
		{name: "blank text", svc: f.chats, in: service.SendMessageInput{SenderID: "A", ReceiverID: "B", PropertyID: "P101", Text: "   "}},
		{name: "missing sender", svc: f.chats, in: service.SendMessageInput{ReceiverID: "B", PropertyID: "P101", Text: "hi"}},
		{name: "missing receiver", svc: f.chats, in: service.SendMessageInput{SenderID: "A", PropertyID: "P101", Text: "hi"}},
		{name: "missing property", svc: f.chats, in: service.SendMessageInput{SenderID: "A", ReceiverID: "B", Text: "hi"}},
		{name: "separator in id", svc: f.chats, in: service.SendMessageInput{SenderID: "A:1", ReceiverID: "B", PropertyID: "P101", Text: "hi"}},
		{name: "underscore in property", svc: f.chats, in: service.SendMessageInput{SenderID: "A", ReceiverID: "B", PropertyID: "P1_B", Text: "hi"}},
		{name: "underscore in receiver", svc: f.chats, in: service.SendMessageInput{SenderID: "A", ReceiverID: "X_Y", PropertyID: "P101", Text: "hi"}},
		{name: "self message", svc: f.chats, in: service.SendMessageInput{SenderID: "A", ReceiverID: "A", PropertyID: "P101", Text: "hi"}},
		{name: "too long", svc: short, in: service.SendMessageInput{SenderID: "A", ReceiverID: "B", PropertyID: "P101", Text: "привет!"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := tt.svc.SendMessage(ctx, tt.in)
			require.ErrorIs(t, err, domain.ErrValidation)
			require.Nil(t, msg)
		})
	}

	// ничего не записано
	msgs, err := f.messages.ListMessages(ctx, domain.ResolveRoomID("P101", "A", "B"))
	require.NoError(t, err)
	require.Empty(t, msgs)
	rooms, err := f.rooms.ListByParticipant(ctx, "A")
	require.NoError(t, err)
	require.Empty(t, rooms)
}

func TestSendMessage_LengthCountsRunes(t *testing.T) {
	f := newFixture(t)
	svc := service.NewChatService(f.rooms, f.messages, f.hub, service.WithMaxMessageLength(5))

	_, err := svc.SendMessage(context.Background(), service.SendMessageInput{
		SenderID: "A", ReceiverID: "B", PropertyID: "P101", Text: "салом",
	})
	require.NoError(t, err)
}

func TestSendMessage_Persists(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	at := time.UnixMilli(1_700_000_000_123)
	f.clock.push(at)

	msg, err := f.chats.SendMessage(ctx, service.SendMessageInput{
		SenderID: "A", ReceiverID: "B", PropertyID: "P101", Text: "  Salom \n",
	})
	require.NoError(t, err)
	require.NotEmpty(t, msg.ID)
	require.Equal(t, "P101_A_B", msg.RoomID)
	require.Equal(t, "Salom", msg.Text)
	require.True(t, msg.CreatedAt.Equal(at))

	room, err := f.rooms.Get(ctx, "P101_A_B")
	require.NoError(t, err)
	require.Equal(t, "Salom", room.LastMessage)
	require.Equal(t, []string{"A", "B"}, room.Participants)
	require.Equal(t, 1, room.Unread["B"])
}

func TestSendMessage_NotifiesTopics(t *testing.T) {
	f := newFixture(t)
	room := f.hub.Subscribe(realtime.RoomTopic("P101_A_B"))
	inboxA := f.hub.Subscribe(realtime.UserTopic("A"))
	inboxB := f.hub.Subscribe(realtime.UserTopic("B"))

	_, err := f.chats.SendMessage(context.Background(), service.SendMessageInput{
		SenderID: "B", ReceiverID: "A", PropertyID: "P101", Text: "hi",
	})
	require.NoError(t, err)

	for _, l := range []*realtime.Listener{room, inboxA, inboxB} {
		select {
		case <-l.C():
		case <-time.After(waitTimeout):
			t.Fatalf("no notification on %s", l.Topic())
		}
	}
}

func TestListenToMessages_OrderedUnderClockSkew(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.clock.push(time.UnixMilli(100))
	m1, err := f.chats.SendMessage(ctx, service.SendMessageInput{SenderID: "A", ReceiverID: "B", PropertyID: "P101", Text: "M1"})
	require.NoError(t, err)
	f.clock.push(time.UnixMilli(50))
	m2, err := f.chats.SendMessage(ctx, service.SendMessageInput{SenderID: "B", ReceiverID: "A", PropertyID: "P101", Text: "M2"})
	require.NoError(t, err)
	require.True(t, m2.CreatedAt.Before(m1.CreatedAt))

	calls := make(chan []domain.ChatMessage, 16)
	unsubscribe, err := f.subs.ListenToMessages(ctx, "A", "B", "P101", func(msgs []domain.ChatMessage) {
		calls <- msgs
	})
	require.NoError(t, err)
	defer unsubscribe()

	got := awaitCall(t, calls, hasLen[domain.ChatMessage](2))
	require.Equal(t, []string{"M2", "M1"}, texts(got))
}

type failingMessages struct {
	service.MessageStore
	err error
}

func (f failingMessages) Save(context.Context, domain.ChatRoom, domain.ChatMessage, string) (domain.ChatMessage, error) {
	return domain.ChatMessage{}, f.err
}

func (f failingMessages) ListMessages(context.Context, string) ([]domain.ChatMessage, error) {
	return nil, f.err
}

func TestSendMessage_StoreFailure(t *testing.T) {
	f := newFixture(t)
	svc := service.NewChatService(f.rooms, failingMessages{err: errors.New("disk full")}, f.hub)

	msg, err := svc.SendMessage(context.Background(), service.SendMessageInput{
		SenderID: "A", ReceiverID: "B", PropertyID: "P101", Text: "hi",
	})
	require.ErrorIs(t, err, domain.ErrStore)
	require.Nil(t, msg)
}

func TestSendMessage_ForeignRoomNotWrappedAsStore(t *testing.T) {
	f := newFixture(t)
	svc := service.NewChatService(f.rooms, failingMessages{err: domain.ErrNotParticipant}, f.hub)

	_, err := svc.SendMessage(context.Background(), service.SendMessageInput{
		SenderID: "A", ReceiverID: "B", PropertyID: "P101", Text: "hi",
	})
	require.ErrorIs(t, err, domain.ErrNotParticipant)
	require.NotErrorIs(t, err, domain.ErrStore)
}

func TestSendMessage_CanceledContext(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.chats.SendMessage(ctx, service.SendMessageInput{
		SenderID: "A", ReceiverID: "B", PropertyID: "P101", Text: "hi",
	})
	require.ErrorIs(t, err, domain.ErrStore)
	require.ErrorIs(t, err, context.Canceled)
}

func TestEnsureRoom(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	r1, err := f.chats.EnsureRoom(ctx, "P101", "B", "A")
	require.NoError(t, err)
	r2, err := f.chats.EnsureRoom(ctx, "P101", "A", "B")
	require.NoError(t, err)
	require.Equal(t, r1.ID, r2.ID)
	require.True(t, r1.CreatedAt.Equal(r2.CreatedAt))
	require.Empty(t, r2.LastMessage)

	_, err = f.chats.EnsureRoom(ctx, "P101", "A", "A")
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := f.chats.SendMessage(ctx, service.SendMessageInput{
			SenderID: "A", ReceiverID: "B", PropertyID: "P101", Text: strings.Repeat("x", i+1),
		})
		require.NoError(t, err)
	}

	page, next, err := f.chats.History(ctx, "P101_A_B", "", 2)
	require.NoError(t, err)
	require.Equal(t, []string{"xxx", "xx"}, texts(page))
	require.NotEmpty(t, next)

	page, next, err = f.chats.History(ctx, "P101_A_B", next, 2)
	require.NoError(t, err)
	require.Equal(t, []string{"x"}, texts(page))
	require.Empty(t, next)

	_, _, err = f.chats.History(ctx, "P101_A_B", "%%%", 2)
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestMarkRead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.chats.SendMessage(ctx, service.SendMessageInput{SenderID: "A", ReceiverID: "B", PropertyID: "P101", Text: "hi"})
	require.NoError(t, err)

	require.ErrorIs(t, f.chats.MarkRead(ctx, "P101_A_B", "C"), domain.ErrNotParticipant)
	require.ErrorIs(t, f.chats.MarkRead(ctx, "P404_A_B", "A"), domain.ErrRoomNotFound)

	inboxA := f.hub.Subscribe(realtime.UserTopic("A"))
	inboxB := f.hub.Subscribe(realtime.UserTopic("B"))

	require.NoError(t, f.chats.MarkRead(ctx, "P101_A_B", "B"))
	room, err := f.rooms.Get(ctx, "P101_A_B")
	require.NoError(t, err)
	require.Zero(t, room.Unread["B"])
	select {
	case <-inboxB.C():
	case <-time.After(waitTimeout):
		t.Fatal("no inbox notification after mark read")
	}

	// сбрасывать нечего - инбоксы не будим
	require.NoError(t, f.chats.MarkRead(ctx, "P101_A_B", "B"))
	require.NoError(t, f.chats.MarkRead(ctx, "P101_A_B", "A"))
	for _, l := range []*realtime.Listener{inboxA, inboxB} {
		select {
		case <-l.C():
			t.Fatalf("unexpected notification on %s", l.Topic())
		case <-time.After(50 * time.Millisecond):
		}
	}
}
