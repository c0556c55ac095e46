package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cwrk-planet/ijara-chat/internal/badgerdb"
	"github.com/cwrk-planet/ijara-chat/internal/domain"
	"github.com/cwrk-planet/ijara-chat/internal/realtime"
	"github.com/cwrk-planet/ijara-chat/internal/service"

	"github.com/stretchr/testify/require"
)

const waitTimeout = 2 * time.Second

type fakeGrants struct {
	mu     sync.Mutex
	grants map[string]domain.AccessGrant
	err    error
	calls  int
}

func newFakeGrants() *fakeGrants {
	return &fakeGrants{grants: map[string]domain.AccessGrant{}}
}

func (f *fakeGrants) put(propertyID, userID, status string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.grants[propertyID+"/"+userID] = domain.AccessGrant{PropertyID: propertyID, UserID: userID, Status: status}
}

func (f *fakeGrants) GetGrant(_ context.Context, propertyID, userID string) (*domain.AccessGrant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	g, ok := f.grants[propertyID+"/"+userID]
	if !ok {
		return nil, nil
	}
	return &g, nil
}

type fakeProfiles struct {
	profiles map[string]domain.UserProfile
	err      error
	calls    int
}

func (f *fakeProfiles) GetProfiles(_ context.Context, userIDs []string) (map[string]domain.UserProfile, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]domain.UserProfile, len(userIDs))
	for _, id := range userIDs {
		if p, ok := f.profiles[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

// stepClock отдаёт заранее заданные моменты, затем продолжает с шагом в секунду.
type stepClock struct {
	mu    sync.Mutex
	next  time.Time
	queue []time.Time
}

func newStepClock(start time.Time) *stepClock {
	return &stepClock{next: start}
}

func (c *stepClock) push(ts ...time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queue = append(c.queue, ts...)
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.queue) > 0 {
		t := c.queue[0]
		c.queue = c.queue[1:]
		return t
	}
	t := c.next
	c.next = c.next.Add(time.Second)
	return t
}

type fixture struct {
	db       *badgerdb.DB
	rooms    *badgerdb.RoomRepository
	messages *badgerdb.ChatRepository
	hub      *realtime.Hub
	clock    *stepClock
	grants   *fakeGrants
	profiles *fakeProfiles

	access   *service.AccessService
	chats    *service.ChatService
	inbox    *service.InboxService
	subs     *service.SubscriptionService
	sessions *service.SessionController
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := badgerdb.Open(badgerdb.Config{InMemory: true})
	require.NoError(t, err)

	f := &fixture{
		db:       db,
		rooms:    badgerdb.NewRoomRepository(db),
		messages: badgerdb.NewChatRepository(db),
		hub:      realtime.NewHub(),
		clock:    newStepClock(time.UnixMilli(1_700_000_000_000)),
		grants:   newFakeGrants(),
		profiles: &fakeProfiles{profiles: map[string]domain.UserProfile{}},
	}
	f.access = service.NewAccessService(f.grants)
	f.chats = service.NewChatService(f.rooms, f.messages, f.hub, service.WithClock(f.clock.Now))
	f.inbox = service.NewInboxService(f.rooms)
	f.subs = service.NewSubscriptionService(f.chats, f.inbox, f.hub)
	f.sessions = service.NewSessionController(f.access, f.chats, f.subs, f.profiles)

	t.Cleanup(func() {
		f.subs.Close()
		_ = db.Close()
	})
	return f
}

func awaitSnapshot[T any](t *testing.T, ch <-chan service.Snapshot[T], want func([]T) bool) []T {
	t.Helper()
	deadline := time.After(waitTimeout)
	for {
		select {
		case snap, ok := <-ch:
			require.True(t, ok, "updates channel closed")
			require.NoError(t, snap.Err)
			if want(snap.Items) {
				return snap.Items
			}
		case <-deadline:
			t.Fatal("snapshot not delivered")
		}
	}
}

func awaitCall[T any](t *testing.T, ch <-chan []T, want func([]T) bool) []T {
	t.Helper()
	deadline := time.After(waitTimeout)
	for {
		select {
		case items := <-ch:
			if want(items) {
				return items
			}
		case <-deadline:
			t.Fatal("callback not invoked")
		}
	}
}

func hasLen[T any](n int) func([]T) bool {
	return func(items []T) bool { return len(items) == n }
}

func texts(msgs []domain.ChatMessage) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Text)
	}
	return out
}
