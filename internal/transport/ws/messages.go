package ws

import "github.com/cwrk-planet/ijara-chat/internal/transport/dto"

// Типы событий WS
const (
	TypeState    = "state"    // участники и комната, первым сообщением
	TypeDenied   = "denied"   // доступа нет, соединение закрывается
	TypeMessages = "messages" // полный снимок переписки
	TypeInbox    = "inbox"    // снимок списка диалогов
	TypeChat     = "chat"     // от клиента: отправить сообщение
	TypeChatAck  = "chat_ack" // подтверждение отправки (НЕ сообщение)
	TypeError    = "error"
)

type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// inbound - то, что присылает клиент.
type inbound struct {
	Type    string      `json:"type"`
	Payload ChatPayload `json:"payload"`
}

type StatePayload struct {
	RoomID       string                `json:"room_id"`
	PropertyID   string                `json:"property_id"`
	Participants []dto.ParticipantItem `json:"participants"`
}

type DeniedPayload struct {
	Message string `json:"message"`
}

type MessagesPayload struct {
	RoomID string                `json:"room_id"`
	Items  []dto.ChatMessageItem `json:"items"`
}

type InboxPayload struct {
	Items []dto.InboxItem `json:"items"`
}

type ChatPayload struct {
	Text     string `json:"text"`
	ClientID string `json:"client_id,omitempty"` // для снятия pending на клиенте
}

type ChatAckPayload struct {
	MsgID    string `json:"msg_id"`
	ClientID string `json:"client_id,omitempty"`
}

type ErrorPayload struct {
	Message  string `json:"message"`
	ClientID string `json:"client_id,omitempty"`
}
