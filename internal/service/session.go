package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/cwrk-planet/ijara-chat/internal/domain"
	"github.com/cwrk-planet/ijara-chat/pkg/logger"
)

type SessionState int

const (
	StateIdle SessionState = iota
	StateCheckingAccess
	StateDenied
	StateLoadingInfo
	StateListening
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCheckingAccess:
		return "checking_access"
	case StateDenied:
		return "denied"
	case StateLoadingInfo:
		return "loading_info"
	case StateListening:
		return "listening"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

const DenialMessage = "Chat is available only to the property owner and to users with a pending rental request for this property."

// SessionParams описывает открываемый диалог. PeerID по умолчанию - владелец:
// арендатор пишет владельцу, владелец должен явно указать арендатора.
type SessionParams struct {
	PropertyID string
	UserID     string
	LandlordID string
	PeerID     string
}

type SessionController struct {
	access   *AccessService
	chats    *ChatService
	subs     *SubscriptionService
	profiles ProfileReader
}

func NewSessionController(access *AccessService, chats *ChatService, subs *SubscriptionService, profiles ProfileReader) *SessionController {
	return &SessionController{access: access, chats: chats, subs: subs, profiles: profiles}
}

// Open проводит диалог через проверку доступа и загрузку участников до прослушивания.
// При отказе возвращает сессию в состоянии Denied вместе с domain.ErrAccessDenied;
// подписка в этом случае не создаётся.
func (c *SessionController) Open(ctx context.Context, p SessionParams) (*Session, error) {
	peer, err := ResolvePeer(p.UserID, p.LandlordID, p.PeerID)
	if err != nil {
		return nil, err
	}
	p.PeerID = peer
	if !domain.ValidID(p.PropertyID) {
		return nil, fmt.Errorf("%w: invalid property id", domain.ErrValidation)
	}

	s := &Session{params: p, chats: c.chats, state: StateIdle}
	lg := logger.FromContext(ctx).With(
		slog.String("property_id", p.PropertyID),
		slog.String("user_id", p.UserID),
	)

	s.setState(StateCheckingAccess)
	if d := c.access.Check(ctx, p.PropertyID, p.UserID, p.LandlordID); !d.Granted() {
		s.mu.Lock()
		s.state = StateDenied
		s.denial = DenialMessage
		s.out = closedSnapshots()
		s.mu.Unlock()
		lg.Info("chat session denied")
		return s, domain.ErrAccessDenied
	}

	s.setState(StateLoadingInfo)
	s.participants = c.participants(ctx, p)

	sub, err := c.subs.SubscribeMessages(ctx, p.UserID, p.PeerID, p.PropertyID)
	if err != nil {
		s.mu.Lock()
		s.state = StateClosed
		s.out = closedSnapshots()
		s.mu.Unlock()
		return s, err
	}

	s.mu.Lock()
	s.roomID = domain.ResolveRoomID(p.PropertyID, p.UserID, p.PeerID)
	s.sub = sub
	s.out = make(chan Snapshot[domain.ChatMessage])
	s.closing = make(chan struct{})
	s.pumpDone = make(chan struct{})
	s.state = StateListening
	s.mu.Unlock()

	go s.pump(ctx)
	lg.Info("chat session listening", slog.String("room_id", s.roomID))
	return s, nil
}

// ResolvePeer определяет собеседника: арендатор всегда говорит с владельцем,
// владелец должен назвать арендатора.
func ResolvePeer(userID, landlordID, peerID string) (string, error) {
	if peerID == "" {
		peerID = landlordID
	}
	switch {
	case userID == "" || landlordID == "":
		return "", fmt.Errorf("%w: user and landlord ids are required", domain.ErrValidation)
	case !domain.ValidID(userID) || !domain.ValidID(landlordID) || !domain.ValidID(peerID):
		return "", fmt.Errorf("%w: ids must not contain '_' or ':'", domain.ErrValidation)
	case peerID == userID:
		return "", fmt.Errorf("%w: peer must differ from user", domain.ErrValidation)
	case userID != landlordID && peerID != landlordID:
		return "", fmt.Errorf("%w: renter can only talk to the property owner", domain.ErrValidation)
	}
	return peerID, nil
}

// participants грузит обоих участников одним запросом и никогда не блокирует
// открытие: кого не удалось загрузить, показываем заглушкой.
func (c *SessionController) participants(ctx context.Context, p SessionParams) []domain.ParticipantInfo {
	ids := []string{p.UserID, p.PeerID}
	var profiles map[string]domain.UserProfile
	if c.profiles != nil {
		var err error
		profiles, err = c.profiles.GetProfiles(ctx, ids)
		if err != nil {
			logger.FromContext(ctx).Debug("participant profiles unavailable", logger.Err(err))
		}
	}

	out := make([]domain.ParticipantInfo, 0, len(ids))
	for _, id := range ids {
		owner := id == p.LandlordID
		prof, ok := profiles[id]
		if !ok {
			out = append(out, domain.PlaceholderParticipant(id, owner))
			continue
		}
		info := domain.ParticipantInfo{UserID: id, Email: prof.Email, IsPropertyOwner: owner}
		if info.Email == "" {
			info.Email = domain.UnknownEmail
		}
		if prof.DisplayName != nil {
			info.DisplayName = *prof.DisplayName
		}
		out = append(out, info)
	}
	return out
}

type Session struct {
	params SessionParams
	chats  *ChatService

	mu           sync.Mutex
	state        SessionState
	denial       string
	participants []domain.ParticipantInfo
	roomID       string
	sub          *MessageSubscription
	out          chan Snapshot[domain.ChatMessage]
	closing      chan struct{}
	pumpDone     chan struct{}
	closeOnce    sync.Once
}

func (s *Session) setState(st SessionState) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) DenialMessage() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.denial
}

func (s *Session) Params() SessionParams { return s.params }

func (s *Session) RoomID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roomID
}

func (s *Session) Participants() []domain.ParticipantInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.ParticipantInfo(nil), s.participants...)
}

// Updates - снимки переписки. Для неактивной сессии канал сразу закрыт.
func (s *Session) Updates() <-chan Snapshot[domain.ChatMessage] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.out
}

func (s *Session) Send(ctx context.Context, text string) (*domain.ChatMessage, error) {
	switch s.State() {
	case StateClosed:
		return nil, domain.ErrSessionClosed
	case StateListening:
	default:
		return nil, domain.ErrSessionNotActive
	}
	return s.chats.SendMessage(ctx, SendMessageInput{
		SenderID:   s.params.UserID,
		ReceiverID: s.params.PeerID,
		PropertyID: s.params.PropertyID,
		Text:       text,
	})
}

// Close идемпотентен и снимает подписку до возврата.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.state = StateClosed
		sub, closing, pumpDone := s.sub, s.closing, s.pumpDone
		s.mu.Unlock()

		if sub == nil {
			return
		}
		close(closing)
		sub.Unsubscribe()
		<-pumpDone
	})
}

// pump пересылает снимки наружу и отмечает комнату прочитанной.
func (s *Session) pump(ctx context.Context) {
	defer close(s.pumpDone)
	defer close(s.out)

	for snap := range s.sub.Updates() {
		if snap.Err == nil && hasIncoming(snap.Items, s.params.UserID) {
			if err := s.chats.MarkRead(ctx, s.roomID, s.params.UserID); err != nil {
				logger.FromContext(ctx).Debug("mark read failed", slog.String("room_id", s.roomID), logger.Err(err))
			}
		}
		select {
		case s.out <- snap:
		case <-s.closing:
		}
	}
}

func hasIncoming(msgs []domain.ChatMessage, userID string) bool {
	for _, m := range msgs {
		if m.SenderID != userID {
			return true
		}
	}
	return false
}

func closedSnapshots() chan Snapshot[domain.ChatMessage] {
	ch := make(chan Snapshot[domain.ChatMessage])
	close(ch)
	return ch
}
