package ws

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cwrk-planet/ijara-chat/internal/domain"
	"github.com/cwrk-planet/ijara-chat/internal/service"
	"github.com/cwrk-planet/ijara-chat/internal/transport/dto"
	"github.com/cwrk-planet/ijara-chat/internal/transport/errs"
	httpmw "github.com/cwrk-planet/ijara-chat/internal/transport/http/middleware"
	"github.com/cwrk-planet/ijara-chat/pkg/logger"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"
)

type PropertyOwners interface {
	OwnerID(ctx context.Context, propertyID string) (string, error)
}

type Server struct {
	upgrader websocket.Upgrader
	sessions *service.SessionController
	subs     *service.SubscriptionService
	owners   PropertyOwners

	pingEvery time.Duration
}

// NewServer - пустой allowedOrigins разрешает любой Origin.
func NewServer(sessions *service.SessionController, subs *service.SubscriptionService, owners PropertyOwners, allowedOrigins []string) *Server {
	return &Server{
		sessions: sessions,
		subs:     subs,
		owners:   owners,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if len(allowedOrigins) == 0 {
					return true
				}
				return lo.Contains(allowedOrigins, r.Header.Get("Origin"))
			},
		},
		pingEvery: 15 * time.Second,
	}
}

// WS endpoint: GET /ws/properties/{propertyID}/chat?peer=&access_token=...
func (s *Server) HandleChat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := httpmw.UserIDFromCtx(ctx)
	propertyID := chi.URLParam(r, "propertyID")

	// до апгрейда отвечаем обычным http; 5xx без текста драйвера
	if !domain.ValidID(propertyID) {
		errs.Write(ctx, w, "ws.HandleChat", fmt.Errorf("%w: invalid property id", domain.ErrValidation))
		return
	}
	owner, err := s.owners.OwnerID(ctx, propertyID)
	if err != nil {
		if !errors.Is(err, domain.ErrPropertyNotFound) {
			err = fmt.Errorf("%w: %w", domain.ErrStore, err)
		}
		errs.Write(ctx, w, "ws.HandleChat.OwnerID", err)
		return
	}
	peer, err := service.ResolvePeer(userID, owner, r.URL.Query().Get("peer"))
	if err != nil {
		errs.Write(ctx, w, "ws.HandleChat.ResolvePeer", err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.FromContext(ctx).Warn("ws upgrade failed", logger.Err(err))
		return
	}
	c := newWsConn(conn, userID)
	defer c.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	lg := logger.FromContext(ctx).With(slog.String("property_id", propertyID))

	sess, err := s.sessions.Open(ctx, service.SessionParams{
		PropertyID: propertyID,
		UserID:     userID,
		LandlordID: owner,
		PeerID:     peer,
	})
	if errors.Is(err, domain.ErrAccessDenied) {
		_ = c.Send(Message{Type: TypeDenied, Payload: DeniedPayload{Message: sess.DenialMessage()}})
		_ = c.CloseWith(websocket.ClosePolicyViolation, "access denied")
		return
	}
	if err != nil {
		lg.Warn("ws open session failed", logger.Err(err))
		_ = c.Send(Message{Type: TypeError, Payload: ErrorPayload{Message: "chat unavailable"}})
		_ = c.CloseWith(websocket.CloseInternalServerErr, "chat unavailable")
		return
	}
	defer sess.Close()

	if err := c.Send(Message{Type: TypeState, Payload: StatePayload{
		RoomID:       sess.RoomID(),
		PropertyID:   propertyID,
		Participants: dto.ToParticipantItems(sess.Participants()),
	}}); err != nil {
		lg.Debug("ws send state failed", logger.Err(err))
		return
	}

	go s.pingLoop(ctx, c)
	go func() {
		defer c.Close()
		for snap := range sess.Updates() {
			msg := Message{Type: TypeMessages, Payload: MessagesPayload{RoomID: sess.RoomID(), Items: dto.ToMessageItems(snap.Items)}}
			if snap.Err != nil {
				msg = Message{Type: TypeError, Payload: ErrorPayload{Message: "chat updates stalled"}}
			}
			if err := c.Send(msg); err != nil {
				return
			}
		}
	}()

	s.readLoop(c, func(in inbound) {
		if in.Type != TypeChat {
			return
		}
		m, err := sess.Send(ctx, in.Payload.Text)
		if err != nil {
			text := "message not sent"
			if errors.Is(err, domain.ErrValidation) {
				text = err.Error()
			} else {
				lg.Warn("ws chat send failed", logger.Err(err))
			}
			_ = c.Send(Message{Type: TypeError, Payload: ErrorPayload{Message: text, ClientID: in.Payload.ClientID}})
			return
		}
		_ = c.Send(Message{Type: TypeChatAck, Payload: ChatAckPayload{MsgID: m.ID, ClientID: in.Payload.ClientID}})
	})
}

// WS endpoint: GET /ws/chats?access_token=...
func (s *Server) HandleInbox(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := httpmw.UserIDFromCtx(ctx)

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.FromContext(ctx).Warn("ws upgrade failed", logger.Err(err))
		return
	}
	c := newWsConn(conn, userID)
	defer c.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sub, err := s.subs.SubscribeUserRooms(ctx, userID)
	if err != nil {
		_ = c.Send(Message{Type: TypeError, Payload: ErrorPayload{Message: "inbox unavailable"}})
		_ = c.CloseWith(websocket.CloseInternalServerErr, "inbox unavailable")
		return
	}
	defer sub.Unsubscribe()

	go s.pingLoop(ctx, c)
	go func() {
		defer c.Close()
		for snap := range sub.Updates() {
			msg := Message{Type: TypeInbox, Payload: InboxPayload{Items: dto.ToInboxItems(snap.Items)}}
			if snap.Err != nil {
				msg = Message{Type: TypeError, Payload: ErrorPayload{Message: "inbox updates stalled"}}
			}
			if err := c.Send(msg); err != nil {
				return
			}
		}
	}()

	// входящие не нужны, но чтение обрабатывает pong и close
	s.readLoop(c, func(inbound) {})
}

func (s *Server) readLoop(c *wsConn, handle func(inbound)) {
	c.conn.SetReadLimit(64 << 10)
	_ = c.conn.SetReadDeadline(time.Now().Add(2 * s.pingEvery))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(2 * s.pingEvery))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var in inbound
		if err := json.Unmarshal(data, &in); err != nil {
			continue
		}
		handle(in)
	}
}

func (s *Server) pingLoop(ctx context.Context, c *wsConn) {
	ticker := time.NewTicker(s.pingEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := c.Ping(); err != nil {
				return
			}
		case <-ctx.Done():
			return
		case <-c.Done():
			return
		}
	}
}
