package signaling

import (
	"errors"

	"github.com/romashorodok/signaling-platform/internal/room"
)

var (
	ErrNotInRoom        = errors.New("not joined to any room")
	ErrPermissionDenied = errors.New("host role required")
	ErrTargetNotFound   = errors.New("target participant not found")
	ErrRateLimited      = errors.New("event rate limit exceeded")
	ErrChatDisabled     = errors.New("chat is disabled in this room")
	ErrUnknownEvent     = errors.New("unknown event")
	ErrSignalingFailed  = errors.New("peer signaling state rejected the event")
)

// errorTag maps the error taxonomy to stable wire tags. Clients switch
// on the tag; the message is for humans.
func errorTag(err error) string {
	switch {
	case errors.Is(err, room.ErrRoomNotFound):
		return "room-not-found"
	case errors.Is(err, room.ErrRoomInactive):
		return "room-inactive"
	case errors.Is(err, room.ErrRoomFull):
		return "room-full"
	case errors.Is(err, room.ErrInvalidPassword):
		return "invalid-password"
	case errors.Is(err, room.ErrDuplicateParticipant):
		return "duplicate-participant"
	case errors.Is(err, ErrNotInRoom):
		return "not-in-room"
	case errors.Is(err, ErrPermissionDenied), errors.Is(err, ErrChatDisabled):
		return "permission-denied"
	case errors.Is(err, ErrTargetNotFound):
		return "target-not-found"
	case errors.Is(err, ErrRateLimited):
		return "rate-limited"
	case errors.Is(err, ErrUnknownEvent):
		return "unknown-event"
	case errors.Is(err, ErrSignalingFailed):
		return "signaling-failed"
	case errors.Is(err, errMalformedPayload):
		return "bad-payload"
	default:
		return "internal-error"
	}
}
