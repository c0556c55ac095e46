package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/cwrk-planet/ijara-chat/internal/domain"
	"github.com/cwrk-planet/ijara-chat/internal/service"
	"github.com/cwrk-planet/ijara-chat/internal/transport/dto"
	"github.com/cwrk-planet/ijara-chat/internal/transport/errs"
	httpmw "github.com/cwrk-planet/ijara-chat/internal/transport/http/middleware"
	"github.com/cwrk-planet/ijara-chat/pkg/httputil"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
)

// PropertyOwners - владелец объекта берётся из маркетплейса, а не от клиента.
type PropertyOwners interface {
	OwnerID(ctx context.Context, propertyID string) (string, error)
}

type Handler struct {
	access *service.AccessService
	chats  *service.ChatService
	inbox  *service.InboxService
	owners PropertyOwners
}

func NewHandler(access *service.AccessService, chats *service.ChatService, inbox *service.InboxService, owners PropertyOwners) *Handler {
	return &Handler{access: access, chats: chats, inbox: inbox, owners: owners}
}

// GET /properties/{propertyID}/access
func (h *Handler) CheckAccess(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := httpmw.UserIDFromCtx(ctx)
	propertyID := chi.URLParam(r, "propertyID")

	owner, err := h.ownerOf(ctx, propertyID)
	if err != nil {
		errs.Write(ctx, w, "CheckAccess", err)
		return
	}

	resp := dto.AccessResponse{
		PropertyID: propertyID,
		LandlordID: owner,
		Granted:    h.access.Check(ctx, propertyID, userID, owner).Granted(),
		IsOwner:    userID == owner,
	}
	if !resp.Granted {
		resp.Message = service.DenialMessage
	}
	httputil.OK(w, resp)
}

// GET /properties/{propertyID}/chat/messages?peer=&after=&limit=
func (h *Handler) GetChatHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	propertyID, userID, peerID, err := h.authorizeConversation(ctx, chi.URLParam(r, "propertyID"), q.Get("peer"))
	if err != nil {
		errs.Write(ctx, w, "GetChatHistory", err)
		return
	}

	limit, err := parseLimit(q.Get("limit"))
	if err != nil {
		errs.Write(ctx, w, "GetChatHistory", err)
		return
	}
	roomID := domain.ResolveRoomID(propertyID, userID, peerID)
	items, next, err := h.chats.History(ctx, roomID, q.Get("after"), limit)
	if err != nil {
		errs.Write(ctx, w, "GetChatHistory.History", err)
		return
	}

	httputil.OK(w, dto.ChatHistoryResponse{Items: dto.ToMessageItems(items), NextCursor: next})
}

// POST /properties/{propertyID}/chat/messages
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req dto.SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(ctx, w, http.StatusBadRequest, "invalid json", nil)
		return
	}

	propertyID, userID, peerID, err := h.authorizeConversation(ctx, chi.URLParam(r, "propertyID"), req.ReceiverID)
	if err != nil {
		errs.Write(ctx, w, "SendMessage", err)
		return
	}

	msg, err := h.chats.SendMessage(ctx, service.SendMessageInput{
		SenderID:   userID,
		ReceiverID: peerID,
		PropertyID: propertyID,
		Text:       req.Text,
	})
	if err != nil {
		errs.Write(ctx, w, "SendMessage.Send", err)
		return
	}
	httputil.Created(w, dto.ToMessageItem(*msg))
}

// GET /chats
func (h *Handler) ListChats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	entries, err := h.inbox.GetUserChats(ctx, httpmw.UserIDFromCtx(ctx))
	if err != nil {
		errs.Write(ctx, w, "ListChats", err)
		return
	}
	httputil.OK(w, dto.InboxResponse{Items: dto.ToInboxItems(entries)})
}

// POST /chats/{roomID}/read
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.chats.MarkRead(ctx, chi.URLParam(r, "roomID"), httpmw.UserIDFromCtx(ctx)); err != nil {
		errs.Write(ctx, w, "MarkRead", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// authorizeConversation находит владельца, собеседника и проверяет доступ.
func (h *Handler) authorizeConversation(ctx context.Context, propertyID, peer string) (string, string, string, error) {
	userID := httpmw.UserIDFromCtx(ctx)
	owner, err := h.ownerOf(ctx, propertyID)
	if err != nil {
		return "", "", "", err
	}
	peerID, err := service.ResolvePeer(userID, owner, peer)
	if err != nil {
		return "", "", "", err
	}
	if !h.access.Check(ctx, propertyID, userID, owner).Granted() {
		return "", "", "", domain.ErrAccessDenied
	}
	return propertyID, userID, peerID, nil
}

func (h *Handler) ownerOf(ctx context.Context, propertyID string) (string, error) {
	if !domain.ValidID(propertyID) {
		return "", fmt.Errorf("%w: invalid property id", domain.ErrValidation)
	}
	owner, err := h.owners.OwnerID(ctx, propertyID)
	if err != nil {
		if errors.Is(err, domain.ErrPropertyNotFound) {
			return "", err
		}
		return "", fmt.Errorf("%w: %w", domain.ErrStore, err)
	}
	return owner, nil
}

// parseLimit: пусто - размер страницы по умолчанию, мусор - ошибка валидации.
func parseLimit(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: limit must be a non-negative integer", domain.ErrValidation)
	}
	return n, nil
}
