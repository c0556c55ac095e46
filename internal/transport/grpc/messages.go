package grpcx

import "github.com/cwrk-planet/ijara-chat/internal/transport/dto"

// Ответы переиспользуют dto из HTTP: у клиентов один формат на оба транспорта.

type CheckAccessRequest struct {
	PropertyID string `json:"property_id"`
}

type SendMessageRequest struct {
	PropertyID string `json:"property_id"`
	ReceiverID string `json:"receiver_id"`
	Text       string `json:"text"`
}

type GetUserChatsRequest struct{}

type ListenToMessagesRequest struct {
	PropertyID string `json:"property_id"`
	PeerID     string `json:"peer_id"`
}

// MessagesSnapshot - полная история комнаты на момент изменения.
type MessagesSnapshot struct {
	RoomID string                `json:"room_id"`
	Items  []dto.ChatMessageItem `json:"items"`
}
