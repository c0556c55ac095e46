package domain

type InboxEntry struct {
	Room             ChatRoom
	OtherParticipant string
	UnreadCount      int
}
