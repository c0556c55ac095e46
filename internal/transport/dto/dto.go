package dto

import (
	"time"

	"github.com/cwrk-planet/ijara-chat/internal/domain"
)

type AccessResponse struct {
	PropertyID string `json:"property_id"`
	LandlordID string `json:"landlord_id"`
	Granted    bool   `json:"granted"`
	IsOwner    bool   `json:"is_owner"`
	Message    string `json:"message,omitempty"`
}

type SendMessageRequest struct {
	ReceiverID string `json:"receiver_id"`
	Text       string `json:"text"`
}

type ChatMessageItem struct {
	ID        string    `json:"id"`
	RoomID    string    `json:"room_id"`
	SenderID  string    `json:"sender_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

type ChatHistoryResponse struct {
	Items      []ChatMessageItem `json:"items"`
	NextCursor string            `json:"next_cursor,omitempty"`
}

type InboxItem struct {
	RoomID           string     `json:"room_id"`
	PropertyID       string     `json:"property_id"`
	Participants     []string   `json:"participants"`
	OtherParticipant string     `json:"other_participant"`
	LastMessage      string     `json:"last_message"`
	LastSenderID     string     `json:"last_sender_id,omitempty"`
	LastMessageAt    *time.Time `json:"last_message_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UnreadCount      int        `json:"unread_count"`
}

type InboxResponse struct {
	Items []InboxItem `json:"items"`
}

func ToMessageItem(m domain.ChatMessage) ChatMessageItem {
	return ChatMessageItem{
		ID:        m.ID,
		RoomID:    m.RoomID,
		SenderID:  m.SenderID,
		Text:      m.Text,
		CreatedAt: m.CreatedAt.UTC(),
	}
}

func ToMessageItems(msgs []domain.ChatMessage) []ChatMessageItem {
	out := make([]ChatMessageItem, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, ToMessageItem(m))
	}
	return out
}

func ToInboxItems(entries []domain.InboxEntry) []InboxItem {
	out := make([]InboxItem, 0, len(entries))
	for _, e := range entries {
		it := InboxItem{
			RoomID:           e.Room.ID,
			PropertyID:       e.Room.PropertyID,
			Participants:     e.Room.Participants,
			OtherParticipant: e.OtherParticipant,
			LastMessage:      e.Room.LastMessage,
			LastSenderID:     e.Room.LastSenderID,
			CreatedAt:        e.Room.CreatedAt.UTC(),
			UnreadCount:      e.UnreadCount,
		}
		if !e.Room.LastMessageAt.IsZero() {
			at := e.Room.LastMessageAt.UTC()
			it.LastMessageAt = &at
		}
		out = append(out, it)
	}
	return out
}

type ParticipantItem struct {
	UserID          string `json:"user_id"`
	Email           string `json:"email"`
	DisplayName     string `json:"display_name,omitempty"`
	IsPropertyOwner bool   `json:"is_property_owner"`
}

func ToParticipantItems(ps []domain.ParticipantInfo) []ParticipantItem {
	out := make([]ParticipantItem, 0, len(ps))
	for _, p := range ps {
		out = append(out, ParticipantItem{
			UserID:          p.UserID,
			Email:           p.Email,
			DisplayName:     p.DisplayName,
			IsPropertyOwner: p.IsPropertyOwner,
		})
	}
	return out
}
