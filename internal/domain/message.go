package domain

import (
	"strings"
	"time"
)

type ChatMessage struct {
	ID        string
	RoomID    string
	SenderID  string
	Text      string
	CreatedAt time.Time
}

// Less задаёт порядок отображения: (CreatedAt, ID).
func (m ChatMessage) Less(o ChatMessage) bool {
	if !m.CreatedAt.Equal(o.CreatedAt) {
		return m.CreatedAt.Before(o.CreatedAt)
	}
	return m.ID < o.ID
}

func IsBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
