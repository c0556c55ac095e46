package grpcx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cwrk-planet/ijara-chat/internal/domain"
	"github.com/cwrk-planet/ijara-chat/internal/service"
	"github.com/cwrk-planet/ijara-chat/internal/transport/dto"
	"github.com/cwrk-planet/ijara-chat/internal/transport/errs"
	httpmw "github.com/cwrk-planet/ijara-chat/internal/transport/http/middleware"
	"github.com/cwrk-planet/ijara-chat/pkg/logger"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

type PropertyOwners interface {
	OwnerID(ctx context.Context, propertyID string) (string, error)
}

// Server - тот же набор операций, что у HTTP, для внутренних клиентов платформы.
type Server struct {
	access *service.AccessService
	chats  *service.ChatService
	inbox  *service.InboxService
	subs   *service.SubscriptionService
	owners PropertyOwners
}

func NewServer(access *service.AccessService, chats *service.ChatService, inbox *service.InboxService, subs *service.SubscriptionService, owners PropertyOwners) *Server {
	return &Server{access: access, chats: chats, inbox: inbox, subs: subs, owners: owners}
}

// NewGRPCServer собирает grpc.Server с цепочкой интерсепторов, ChatService и health.
// verifier == nil - dev-режим, доверяем метаданным x-user-id.
func NewGRPCServer(srv ChatServiceServer, verifier *httpmw.TokenVerifier, requestTimeout time.Duration) *grpc.Server {
	gs := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			UnaryServerInterceptor(requestTimeout),
			UnaryAuthInterceptor(verifier),
		),
		grpc.ChainStreamInterceptor(
			StreamServerInterceptor(),
			StreamAuthInterceptor(verifier),
		),
	)
	RegisterChatServiceServer(gs, srv)

	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(gs, hs)
	return gs
}

func (s *Server) CheckAccess(ctx context.Context, in *CheckAccessRequest) (*dto.AccessResponse, error) {
	userID := httpmw.UserIDFromCtx(ctx)
	owner, err := s.ownerOf(ctx, in.PropertyID)
	if err != nil {
		return nil, errs.Status(ctx, "CheckAccess", err)
	}

	resp := &dto.AccessResponse{
		PropertyID: in.PropertyID,
		LandlordID: owner,
		Granted:    s.access.Check(ctx, in.PropertyID, userID, owner).Granted(),
		IsOwner:    userID == owner,
	}
	if !resp.Granted {
		resp.Message = service.DenialMessage
	}
	return resp, nil
}

func (s *Server) SendMessage(ctx context.Context, in *SendMessageRequest) (*dto.ChatMessageItem, error) {
	propertyID, userID, peerID, err := s.authorizeConversation(ctx, in.PropertyID, in.ReceiverID)
	if err != nil {
		return nil, errs.Status(ctx, "SendMessage", err)
	}

	msg, err := s.chats.SendMessage(ctx, service.SendMessageInput{
		SenderID:   userID,
		ReceiverID: peerID,
		PropertyID: propertyID,
		Text:       in.Text,
	})
	if err != nil {
		return nil, errs.Status(ctx, "SendMessage.Send", err)
	}
	item := dto.ToMessageItem(*msg)
	return &item, nil
}

func (s *Server) GetUserChats(ctx context.Context, _ *GetUserChatsRequest) (*dto.InboxResponse, error) {
	entries, err := s.inbox.GetUserChats(ctx, httpmw.UserIDFromCtx(ctx))
	if err != nil {
		return nil, errs.Status(ctx, "GetUserChats", err)
	}
	return &dto.InboxResponse{Items: dto.ToInboxItems(entries)}, nil
}

// ListenToMessages шлёт снимок истории сразу и после каждого изменения комнаты,
// пока клиент не отменит вызов.
func (s *Server) ListenToMessages(in *ListenToMessagesRequest, stream grpc.ServerStreamingServer[MessagesSnapshot]) error {
	ctx := stream.Context()
	propertyID, userID, peerID, err := s.authorizeConversation(ctx, in.PropertyID, in.PeerID)
	if err != nil {
		return errs.Status(ctx, "ListenToMessages", err)
	}

	sub, err := s.subs.SubscribeMessages(ctx, userID, peerID, propertyID)
	if err != nil {
		return errs.Status(ctx, "ListenToMessages.Subscribe", err)
	}
	defer sub.Unsubscribe()

	roomID := domain.ResolveRoomID(propertyID, userID, peerID)
	lg := logger.FromContext(ctx).With(slog.String("room_id", roomID))
	lg.Debug("grpc listener attached")

	for snap := range sub.Updates() {
		if snap.Err != nil {
			return errs.Status(ctx, "ListenToMessages.Load", snap.Err)
		}
		if err := stream.Send(&MessagesSnapshot{RoomID: roomID, Items: dto.ToMessageItems(snap.Items)}); err != nil {
			return err
		}
	}
	if err := ctx.Err(); err != nil {
		return status.FromContextError(err).Err()
	}
	// подписку закрыл сервис при остановке
	return status.Error(codes.Unavailable, "subscription closed")
}

func (s *Server) authorizeConversation(ctx context.Context, propertyID, peer string) (string, string, string, error) {
	userID := httpmw.UserIDFromCtx(ctx)
	owner, err := s.ownerOf(ctx, propertyID)
	if err != nil {
		return "", "", "", err
	}
	peerID, err := service.ResolvePeer(userID, owner, peer)
	if err != nil {
		return "", "", "", err
	}
	if !s.access.Check(ctx, propertyID, userID, owner).Granted() {
		return "", "", "", domain.ErrAccessDenied
	}
	return propertyID, userID, peerID, nil
}

func (s *Server) ownerOf(ctx context.Context, propertyID string) (string, error) {
	if !domain.ValidID(propertyID) {
		return "", fmt.Errorf("%w: invalid property id", domain.ErrValidation)
	}
	owner, err := s.owners.OwnerID(ctx, propertyID)
	if err != nil {
		if errors.Is(err, domain.ErrPropertyNotFound) {
			return "", err
		}
		return "", fmt.Errorf("%w: %w", domain.ErrStore, err)
	}
	return owner, nil
}
