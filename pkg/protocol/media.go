package protocol

import "fmt"

// MediaKind names a toggleable media track of a participant.
type MediaKind string

const (
	MediaAudio  MediaKind = "audio"
	MediaVideo  MediaKind = "video"
	MediaScreen MediaKind = "screen"
)

func ParseMediaKind(s string) (MediaKind, error) {
	switch MediaKind(s) {
	case MediaAudio, MediaVideo, MediaScreen:
		return MediaKind(s), nil
	}
	return "", fmt.Errorf("unknown media kind %q", s)
}

type MediaState struct {
	Audio  bool `json:"audio"`
	Video  bool `json:"video"`
	Screen bool `json:"screen"`
}

// MediaStateSource is the canonical media-state table. The participant
// registry owns the flags; everything else reads through this interface
// instead of keeping its own copy.
type MediaStateSource interface {
	MediaState(roomID RoomID, participantID ParticipantID) (MediaState, bool)
}
