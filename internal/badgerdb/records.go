package badgerdb

import (
	"time"

	"github.com/cwrk-planet/ijara-chat/internal/domain"

	"github.com/goccy/go-json"
)

type roomRecord struct {
	ID            string         `json:"id"`
	PropertyID    string         `json:"property_id"`
	Participants  []string       `json:"participants"`
	LastMessage   string         `json:"last_message"`
	LastMessageAt int64          `json:"last_message_at,omitempty"` // unix ms, 0 - сообщений нет
	LastSenderID  string         `json:"last_sender_id,omitempty"`
	CreatedAt     int64          `json:"created_at"`
	Unread        map[string]int `json:"unread,omitempty"`
}

type messageRecord struct {
	ID       string `json:"id"`
	RoomID   string `json:"room_id"`
	SenderID string `json:"sender_id"`
	Text     string `json:"text"`
	At       int64  `json:"at"`
}

func fromRoom(r domain.ChatRoom) roomRecord {
	unread := make(map[string]int, len(r.Unread))
	for k, v := range r.Unread {
		unread[k] = v
	}
	return roomRecord{
		ID:            r.ID,
		PropertyID:    r.PropertyID,
		Participants:  append([]string(nil), r.Participants...),
		LastMessage:   r.LastMessage,
		LastMessageAt: toMillis(r.LastMessageAt),
		LastSenderID:  r.LastSenderID,
		CreatedAt:     toMillis(r.CreatedAt),
		Unread:        unread,
	}
}

func (r roomRecord) toDomain() domain.ChatRoom {
	unread := make(map[string]int, len(r.Unread))
	for k, v := range r.Unread {
		unread[k] = v
	}
	return domain.ChatRoom{
		ID:            r.ID,
		PropertyID:    r.PropertyID,
		Participants:  append([]string(nil), r.Participants...),
		LastMessage:   r.LastMessage,
		LastMessageAt: fromMillis(r.LastMessageAt),
		LastSenderID:  r.LastSenderID,
		CreatedAt:     fromMillis(r.CreatedAt),
		Unread:        unread,
	}
}

func fromMessage(m domain.ChatMessage) messageRecord {
	return messageRecord{
		ID:       m.ID,
		RoomID:   m.RoomID,
		SenderID: m.SenderID,
		Text:     m.Text,
		At:       toMillis(m.CreatedAt),
	}
}

func (m messageRecord) toDomain() domain.ChatMessage {
	return domain.ChatMessage{
		ID:        m.ID,
		RoomID:    m.RoomID,
		SenderID:  m.SenderID,
		Text:      m.Text,
		CreatedAt: fromMillis(m.At),
	}
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

func decode(data []byte, v any) error {
	return json.Unmarshal(data, v)
}
