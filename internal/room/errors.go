package room

import "errors"

var (
	ErrRoomNotFound         = errors.New("room not found")
	ErrRoomInactive         = errors.New("room is not active")
	ErrRoomFull             = errors.New("room is full")
	ErrInvalidPassword      = errors.New("invalid room password")
	ErrDuplicateParticipant = errors.New("participant already joined the room")
)
