package signaling

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/romashorodok/signaling-platform/internal/peer"
	"github.com/romashorodok/signaling-platform/internal/room"
	"github.com/romashorodok/signaling-platform/pkg/protocol"
)

// Inbound event vocabulary. Every event not listed here is rejected
// before it reaches the stores.
const (
	EventJoin              = "join"
	EventOffer             = "offer"
	EventAnswer            = "answer"
	EventICECandidate      = "ice-candidate"
	EventToggleMedia       = "toggle-media"
	EventStartScreenShare  = "start-screen-share"
	EventStopScreenShare   = "stop-screen-share"
	EventStartRecording    = "start-recording"
	EventStopRecording     = "stop-recording"
	EventMuteParticipant   = "mute-participant"
	EventRemoveParticipant = "remove-participant"
	EventRaiseHand         = "raise-hand"
	EventLowerHand         = "lower-hand"
	EventChatMessage       = "chat-message"
	EventFileShare         = "file-share"
	EventLeave             = "leave"
)

// Outbound event names.
const (
	EventRoomJoined              = "room-joined"
	EventParticipantJoined       = "participant-joined"
	EventMediaChanged            = "media-changed"
	EventScreenShareStarted      = "screen-share-started"
	EventScreenShareStopped      = "screen-share-stopped"
	EventRecordingStarted        = "recording-started"
	EventRecordingStopped        = "recording-stopped"
	EventParticipantMuted        = "participant-muted"
	EventParticipantRemoved      = "participant-removed"
	EventParticipantDisconnected = "participant-disconnected"
	EventHandRaised              = "hand-raised"
	EventError                   = "error"
)

type websocketMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

var errMalformedPayload = errors.New("malformed event payload")

func parsePayload(data json.RawMessage, v interface{ validate() error }) error {
	if len(data) == 0 {
		return errMalformedPayload
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errMalformedPayload
	}
	return v.validate()
}

type joinPayload struct {
	RoomID   string `json:"roomId"`
	Name     string `json:"name"`
	Password string `json:"password,omitempty"`
}

func (p *joinPayload) validate() error {
	if p.RoomID == "" {
		return fmt.Errorf("%w: missing roomId", errMalformedPayload)
	}
	if p.Name == "" {
		return fmt.Errorf("%w: missing name", errMalformedPayload)
	}
	return nil
}

// sdpPayload carries both offers and answers.
type sdpPayload struct {
	Target string          `json:"target"`
	SDP    json.RawMessage `json:"sdp"`
}

func (p *sdpPayload) validate() error {
	if p.Target == "" {
		return fmt.Errorf("%w: missing target", errMalformedPayload)
	}
	if len(p.SDP) == 0 {
		return fmt.Errorf("%w: missing sdp", errMalformedPayload)
	}
	return nil
}

type candidatePayload struct {
	Target    string          `json:"target"`
	Candidate json.RawMessage `json:"candidate"`
}

func (p *candidatePayload) validate() error {
	if p.Target == "" {
		return fmt.Errorf("%w: missing target", errMalformedPayload)
	}
	if len(p.Candidate) == 0 {
		return fmt.Errorf("%w: missing candidate", errMalformedPayload)
	}
	return nil
}

type toggleMediaPayload struct {
	Kind    string `json:"kind"`
	Enabled bool   `json:"enabled"`
}

func (p *toggleMediaPayload) validate() error {
	if _, err := protocol.ParseMediaKind(p.Kind); err != nil {
		return fmt.Errorf("%w: %s", errMalformedPayload, err)
	}
	return nil
}

type targetPayload struct {
	Target string `json:"target"`
}

func (p *targetPayload) validate() error {
	if p.Target == "" {
		return fmt.Errorf("%w: missing target", errMalformedPayload)
	}
	return nil
}

type chatMessagePayload struct {
	Message string `json:"message"`
}

func (p *chatMessagePayload) validate() error {
	if p.Message == "" {
		return fmt.Errorf("%w: missing message", errMalformedPayload)
	}
	return nil
}

type fileSharePayload struct {
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	MimeType string `json:"mimeType,omitempty"`
	URL      string `json:"url,omitempty"`
}

func (p *fileSharePayload) validate() error {
	if p.Name == "" {
		return fmt.Errorf("%w: missing name", errMalformedPayload)
	}
	if p.Size < 0 {
		return fmt.Errorf("%w: negative size", errMalformedPayload)
	}
	return nil
}

// Outbound payloads.

type roomJoinedEvent struct {
	Room        room.RoomSnapshot          `json:"room"`
	Participant room.ParticipantSnapshot   `json:"participant"`
	Others      []room.ParticipantSnapshot `json:"participants"`
	ICEServers  []webrtc.ICEServer         `json:"iceServers"`
	Connections peer.RoomSnapshot          `json:"connections"`
}

type participantJoinedEvent struct {
	Participant room.ParticipantSnapshot `json:"participant"`
}

type sdpRelayEvent struct {
	From         string          `json:"from"`
	ConnectionID string          `json:"connectionId"`
	SDP          json.RawMessage `json:"sdp"`
}

type candidateRelayEvent struct {
	From      string          `json:"from"`
	Candidate json.RawMessage `json:"candidate"`
}

type mediaChangedEvent struct {
	ParticipantID string              `json:"participantId"`
	Kind          string              `json:"kind"`
	Enabled       bool                `json:"enabled"`
	Media         protocol.MediaState `json:"media"`
}

type participantEvent struct {
	ParticipantID string `json:"participantId"`
}

type participantDisconnectedEvent struct {
	ParticipantID string `json:"participantId"`
	NewHostID     string `json:"newHostId,omitempty"`
}

type handRaisedEvent struct {
	ParticipantID string `json:"participantId"`
	Raised        bool   `json:"raised"`
}

type chatRelayEvent struct {
	ID        string    `json:"id"`
	From      string    `json:"from"`
	Name      string    `json:"name"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

type fileRelayEvent struct {
	ID         string `json:"id"`
	From       string `json:"from"`
	SenderName string `json:"senderName"`

	Name      string    `json:"name"`
	Size      int64     `json:"size"`
	MimeType  string    `json:"mimeType,omitempty"`
	URL       string    `json:"url,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type errorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
