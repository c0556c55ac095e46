package domain

import "errors"

var (
	ErrRoomNotFound     = errors.New("room not found")
	ErrPropertyNotFound = errors.New("property not found")
	ErrValidation       = errors.New("validation failed")
	ErrAccessDenied     = errors.New("access denied")
	ErrStore            = errors.New("store failure")
	ErrSubscription     = errors.New("subscription failure")
	ErrNotParticipant   = errors.New("user is not a participant of the room")
	ErrSessionClosed    = errors.New("chat session closed")
	ErrSessionNotActive = errors.New("chat session is not listening")
)
