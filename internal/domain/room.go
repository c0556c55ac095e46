package domain

import (
	"slices"
	"strings"
	"time"
)

// reservedIDChars не допускаются в id объектов и пользователей:
// '_' склеивает id комнаты, ':' разделяет ключи хранилища.
const reservedIDChars = "_:"

type ChatRoom struct {
	ID            string
	PropertyID    string
	Participants  []string // всегда два id, отсортированы
	LastMessage   string
	LastMessageAt time.Time
	LastSenderID  string
	CreatedAt     time.Time
	Unread        map[string]int
}

// ResolveRoomID выводит id комнаты из объекта и пары участников.
// Порядок участников не важен: p_a_b == p_b_a.
func ResolveRoomID(propertyID, userA, userB string) string {
	pair := SortedPair(userA, userB)
	return propertyID + "_" + pair[0] + "_" + pair[1]
}

// ValidID - непустой id без зарезервированных символов. Без этой проверки
// ("P1", "B", "X_Y") и ("P1_B", "X", "Y") дали бы одну комнату.
func ValidID(id string) bool {
	return id != "" && !strings.ContainsAny(id, reservedIDChars)
}

func SortedPair(userA, userB string) []string {
	pair := []string{userA, userB}
	slices.Sort(pair)
	return pair
}

func NewChatRoom(propertyID, userA, userB string, now time.Time) ChatRoom {
	return ChatRoom{
		ID:           ResolveRoomID(propertyID, userA, userB),
		PropertyID:   propertyID,
		Participants: SortedPair(userA, userB),
		CreatedAt:    now,
		Unread:       map[string]int{},
	}
}

func (r ChatRoom) HasParticipant(userID string) bool {
	return slices.Contains(r.Participants, userID)
}

// ActivityAt - время последнего сообщения, а для пустой комнаты - время создания.
func (r ChatRoom) ActivityAt() time.Time {
	if r.LastMessageAt.IsZero() {
		return r.CreatedAt
	}
	return r.LastMessageAt
}
