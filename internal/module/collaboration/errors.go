package collaboration

import "errors"

var (
	// ErrSessionNotFound is returned when a session does not exist.
	ErrSessionNotFound = errors.New("collaboration session not found")
	// ErrSessionInactive is returned when a mutation targets a deactivated
	// session. This is "cannot join", not a system fault: an inactive
	// session still serves reads of its history and comments.
	ErrSessionInactive = errors.New("collaboration session is inactive")
	// ErrEventNotFound is returned when an event does not exist.
	ErrEventNotFound = errors.New("collaboration event not found")
	// ErrInvalidEventType is returned for event types outside the known set.
	ErrInvalidEventType = errors.New("invalid event type")
	// ErrCommentNotFound is returned when a code comment does not exist.
	ErrCommentNotFound = errors.New("code comment not found")
	// ErrEmptyContent is returned when a comment has no content.
	ErrEmptyContent = errors.New("comment content must not be empty")
	// ErrInvalidColumnRange is returned when column_end < column_start.
	ErrInvalidColumnRange = errors.New("comment column range is invalid")
)
