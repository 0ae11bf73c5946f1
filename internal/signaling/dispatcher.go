package signaling

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/romashorodok/signaling-platform/internal/peer"
	"github.com/romashorodok/signaling-platform/internal/ratelimit"
	"github.com/romashorodok/signaling-platform/internal/room"
	"github.com/romashorodok/signaling-platform/pkg/protocol"
	"go.uber.org/fx"
)

// Dispatcher binds inbound session events to the room registry and the
// peer tracker and fans results out as outbound events. Per-session
// ordering comes from the one read loop per connection; cross-session
// interleaving is safe because both stores serialize behind their own
// mutex.
type Dispatcher struct {
	logger *slog.Logger
	rooms  *room.RoomService
	peers  *peer.TrackerService
	limits *ratelimit.Policies
}

func (d *Dispatcher) HandleMessage(s *Session, msg websocketMessage) {
	if !d.limits.AllowSignalEvent(s.addr, msg.Event) {
		d.sendError(s, ErrRateLimited)
		return
	}

	var err error
	switch msg.Event {
	case EventJoin:
		err = d.handleJoin(s, msg.Data)
	case EventOffer:
		err = d.handleOffer(s, msg.Data)
	case EventAnswer:
		err = d.handleAnswer(s, msg.Data)
	case EventICECandidate:
		err = d.handleICECandidate(s, msg.Data)
	case EventToggleMedia:
		err = d.handleToggleMedia(s, msg.Data)
	case EventStartScreenShare:
		err = d.handleScreenShare(s, true)
	case EventStopScreenShare:
		err = d.handleScreenShare(s, false)
	case EventStartRecording:
		err = d.handleRecording(s, true)
	case EventStopRecording:
		err = d.handleRecording(s, false)
	case EventMuteParticipant:
		err = d.handleMuteParticipant(s, msg.Data)
	case EventRemoveParticipant:
		err = d.handleRemoveParticipant(s, msg.Data)
	case EventRaiseHand:
		err = d.handleHand(s, true)
	case EventLowerHand:
		err = d.handleHand(s, false)
	case EventChatMessage:
		err = d.handleChatMessage(s, msg.Data)
	case EventFileShare:
		err = d.handleFileShare(s, msg.Data)
	case EventLeave:
		d.Disconnect(s)
	default:
		err = ErrUnknownEvent
	}

	if err != nil {
		d.sendError(s, err)
	}
}

// Disconnect runs the leave teardown. Safe to call multiple times per
// session; only the first caller that unbinds performs cleanup.
func (d *Dispatcher) Disconnect(s *Session) {
	roomID, wasBound := s.unbind()
	if !wasBound {
		return
	}

	result, left := d.rooms.LeaveRoom(s.id)
	d.peers.RemoveParticipant(roomID, s.id)
	if !left {
		// Already removed through another path (e.g. a host removal).
		return
	}

	d.broadcast(roomID, EventParticipantDisconnected, participantDisconnectedEvent{
		ParticipantID: s.id,
		NewHostID:     result.NewHostID,
	})
}

func (d *Dispatcher) handleJoin(s *Session, data json.RawMessage) error {
	var payload joinPayload
	if err := parsePayload(data, &payload); err != nil {
		return err
	}

	// Joining while bound moves the session: the old room is torn down
	// with the usual disconnect fan-out first.
	if _, bound := s.boundRoom(); bound {
		d.Disconnect(s)
	}

	roomSnapshot, participant, err := d.rooms.JoinRoom(payload.RoomID, s.id, room.ParticipantInfo{
		Name:    payload.Name,
		Session: s.conn,
	}, payload.Password)
	if err != nil {
		return err
	}

	d.peers.AddParticipant(payload.RoomID, s.id)
	s.bind(payload.RoomID)

	others := make([]room.ParticipantSnapshot, 0, len(roomSnapshot.Participants))
	for _, p := range roomSnapshot.Participants {
		if p.ID != s.id {
			others = append(others, p)
		}
	}
	connections, _ := d.peers.RoomSnapshot(payload.RoomID)

	d.send(s.conn, EventRoomJoined, roomJoinedEvent{
		Room:        roomSnapshot,
		Participant: participant,
		Others:      others,
		ICEServers:  d.peers.ICEServers(),
		Connections: connections,
	})
	d.broadcastExcept(payload.RoomID, s.id, EventParticipantJoined, participantJoinedEvent{
		Participant: participant,
	})
	return nil
}

func (d *Dispatcher) handleOffer(s *Session, data json.RawMessage) error {
	roomID, bound := s.boundRoom()
	if !bound {
		return ErrNotInRoom
	}

	var payload sdpPayload
	if err := parsePayload(data, &payload); err != nil {
		return err
	}

	target, err := d.sameRoomSession(roomID, payload.Target)
	if err != nil {
		return err
	}

	connectionID, ok := d.peers.HandleOffer(roomID, s.id, payload.Target, payload.SDP)
	if !ok {
		return ErrSignalingFailed
	}

	d.send(target, EventOffer, sdpRelayEvent{
		From:         s.id,
		ConnectionID: connectionID,
		SDP:          payload.SDP,
	})
	return nil
}

func (d *Dispatcher) handleAnswer(s *Session, data json.RawMessage) error {
	roomID, bound := s.boundRoom()
	if !bound {
		return ErrNotInRoom
	}

	var payload sdpPayload
	if err := parsePayload(data, &payload); err != nil {
		return err
	}

	target, err := d.sameRoomSession(roomID, payload.Target)
	if err != nil {
		return err
	}

	if ok := d.peers.HandleAnswer(roomID, s.id, payload.Target, payload.SDP); !ok {
		return ErrSignalingFailed
	}

	d.send(target, EventAnswer, sdpRelayEvent{
		From:         s.id,
		ConnectionID: peer.ConnectionID(s.id, payload.Target),
		SDP:          payload.SDP,
	})
	return nil
}

// handleICECandidate is a pure relay; candidates are never persisted.
func (d *Dispatcher) handleICECandidate(s *Session, data json.RawMessage) error {
	roomID, bound := s.boundRoom()
	if !bound {
		return ErrNotInRoom
	}

	var payload candidatePayload
	if err := parsePayload(data, &payload); err != nil {
		return err
	}

	target, err := d.sameRoomSession(roomID, payload.Target)
	if err != nil {
		return err
	}

	d.send(target, EventICECandidate, candidateRelayEvent{
		From:      s.id,
		Candidate: payload.Candidate,
	})
	return nil
}

func (d *Dispatcher) handleToggleMedia(s *Session, data json.RawMessage) error {
	roomID, bound := s.boundRoom()
	if !bound {
		return ErrNotInRoom
	}

	var payload toggleMediaPayload
	if err := parsePayload(data, &payload); err != nil {
		return err
	}
	kind, _ := protocol.ParseMediaKind(payload.Kind)

	if _, _, ok := d.rooms.UpdateParticipantMedia(s.id, kind, payload.Enabled); !ok {
		return ErrNotInRoom
	}
	media, ok := d.peers.UpdateMediaState(roomID, s.id)
	if !ok {
		return ErrNotInRoom
	}

	d.broadcastExcept(roomID, s.id, EventMediaChanged, mediaChangedEvent{
		ParticipantID: s.id,
		Kind:          payload.Kind,
		Enabled:       payload.Enabled,
		Media:         media,
	})
	return nil
}

func (d *Dispatcher) handleScreenShare(s *Session, started bool) error {
	roomID, bound := s.boundRoom()
	if !bound {
		return ErrNotInRoom
	}

	if _, _, ok := d.rooms.UpdateParticipantMedia(s.id, protocol.MediaScreen, started); !ok {
		return ErrNotInRoom
	}
	if _, ok := d.peers.UpdateMediaState(roomID, s.id); !ok {
		return ErrNotInRoom
	}

	event := EventScreenShareStopped
	if started {
		event = EventScreenShareStarted
	}
	d.broadcastExcept(roomID, s.id, event, participantEvent{ParticipantID: s.id})
	return nil
}

func (d *Dispatcher) handleRecording(s *Session, started bool) error {
	roomID, err := d.requireHost(s)
	if err != nil {
		return err
	}

	d.rooms.SetRecording(roomID, started)

	event := EventRecordingStopped
	if started {
		event = EventRecordingStarted
	}
	d.broadcastExcept(roomID, s.id, event, participantEvent{ParticipantID: s.id})
	return nil
}

func (d *Dispatcher) handleMuteParticipant(s *Session, data json.RawMessage) error {
	roomID, err := d.requireHost(s)
	if err != nil {
		return err
	}

	var payload targetPayload
	if err := parsePayload(data, &payload); err != nil {
		return err
	}
	if _, err := d.sameRoomSession(roomID, payload.Target); err != nil {
		return err
	}

	if _, _, ok := d.rooms.UpdateParticipantMedia(payload.Target, protocol.MediaAudio, false); !ok {
		return ErrTargetNotFound
	}
	if _, ok := d.peers.UpdateMediaState(roomID, payload.Target); !ok {
		return ErrTargetNotFound
	}

	d.broadcast(roomID, EventParticipantMuted, participantEvent{ParticipantID: payload.Target})
	return nil
}

func (d *Dispatcher) handleRemoveParticipant(s *Session, data json.RawMessage) error {
	roomID, err := d.requireHost(s)
	if err != nil {
		return err
	}

	var payload targetPayload
	if err := parsePayload(data, &payload); err != nil {
		return err
	}
	target, err := d.sameRoomSession(roomID, payload.Target)
	if err != nil {
		return err
	}

	// Notify the target before its membership disappears.
	d.send(target, EventParticipantRemoved, participantEvent{ParticipantID: payload.Target})

	result, left := d.rooms.LeaveRoom(payload.Target)
	d.peers.RemoveParticipant(roomID, payload.Target)
	if left {
		d.broadcast(roomID, EventParticipantDisconnected, participantDisconnectedEvent{
			ParticipantID: payload.Target,
			NewHostID:     result.NewHostID,
		})
	}

	// The target's read loop observes the close and its own teardown
	// becomes a no-op.
	if err := target.Close(); err != nil {
		d.logger.Debug("closing removed participant session", slog.String("err", err.Error()))
	}
	return nil
}

func (d *Dispatcher) handleHand(s *Session, raised bool) error {
	if _, bound := s.boundRoom(); !bound {
		return ErrNotInRoom
	}

	roomID, _, ok := d.rooms.SetHandRaised(s.id, raised)
	if !ok {
		return ErrNotInRoom
	}

	d.broadcastExcept(roomID, s.id, EventHandRaised, handRaisedEvent{
		ParticipantID: s.id,
		Raised:        raised,
	})
	return nil
}

func (d *Dispatcher) handleChatMessage(s *Session, data json.RawMessage) error {
	roomID, name, err := d.requireChat(s)
	if err != nil {
		return err
	}

	var payload chatMessagePayload
	if err := parsePayload(data, &payload); err != nil {
		return err
	}

	// Relay with a server-assigned id and timestamp, sender included.
	d.broadcast(roomID, EventChatMessage, chatRelayEvent{
		ID:        uuid.NewString(),
		From:      s.id,
		Name:      name,
		Message:   payload.Message,
		Timestamp: time.Now(),
	})
	return nil
}

func (d *Dispatcher) handleFileShare(s *Session, data json.RawMessage) error {
	roomID, name, err := d.requireChat(s)
	if err != nil {
		return err
	}

	var payload fileSharePayload
	if err := parsePayload(data, &payload); err != nil {
		return err
	}

	d.broadcast(roomID, EventFileShare, fileRelayEvent{
		ID:         uuid.NewString(),
		From:       s.id,
		SenderName: name,
		Name:       payload.Name,
		Size:       payload.Size,
		MimeType:   payload.MimeType,
		URL:        payload.URL,
		Timestamp:  time.Now(),
	})
	return nil
}

func (d *Dispatcher) requireHost(s *Session) (protocol.RoomID, error) {
	roomID, bound := s.boundRoom()
	if !bound {
		return "", ErrNotInRoom
	}
	_, participant, ok := d.rooms.Participant(s.id)
	if !ok {
		return "", ErrNotInRoom
	}
	if participant.Role != protocol.RoleHost {
		return "", ErrPermissionDenied
	}
	return roomID, nil
}

func (d *Dispatcher) requireChat(s *Session) (protocol.RoomID, string, error) {
	roomID, bound := s.boundRoom()
	if !bound {
		return "", "", ErrNotInRoom
	}
	snapshot, exist := d.rooms.GetRoom(roomID)
	if !exist {
		return "", "", ErrNotInRoom
	}
	if !snapshot.Settings.AllowChat {
		return "", "", ErrChatDisabled
	}
	_, participant, ok := d.rooms.Participant(s.id)
	if !ok {
		return "", "", ErrNotInRoom
	}
	return roomID, participant.Name, nil
}

// sameRoomSession resolves the target's session and verifies room
// co-membership.
func (d *Dispatcher) sameRoomSession(roomID protocol.RoomID, targetID protocol.ParticipantID) (protocol.SessionWriter, error) {
	targetRoomID, _, ok := d.rooms.Participant(targetID)
	if !ok || targetRoomID != roomID {
		return nil, ErrTargetNotFound
	}
	session, ok := d.rooms.ParticipantSession(targetID)
	if !ok {
		return nil, ErrTargetNotFound
	}
	return session, nil
}

func (d *Dispatcher) send(w protocol.SessionWriter, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		d.logger.Error("marshal outbound event", slog.String("event", event), slog.String("err", err.Error()))
		return
	}
	if err := w.WriteJSON(&websocketMessage{Event: event, Data: data}); err != nil {
		d.logger.Debug("write outbound event", slog.String("event", event), slog.String("err", err.Error()))
	}
}

func (d *Dispatcher) sendError(s *Session, err error) {
	d.logger.Debug("session event rejected",
		slog.String("participant", s.id),
		slog.String("type", errorTag(err)),
		slog.String("err", err.Error()),
	)
	data, marshalErr := json.Marshal(errorEvent{Type: errorTag(err), Message: err.Error()})
	if marshalErr != nil {
		return
	}
	s.conn.WriteJSON(&websocketMessage{Event: EventError, Data: data})
}

func (d *Dispatcher) broadcast(roomID protocol.RoomID, event string, payload any) {
	for _, session := range d.rooms.ParticipantSessions(roomID) {
		d.send(session, event, payload)
	}
}

func (d *Dispatcher) broadcastExcept(roomID protocol.RoomID, except protocol.ParticipantID, event string, payload any) {
	for _, session := range d.rooms.ParticipantSessions(roomID, except) {
		d.send(session, event, payload)
	}
}

type NewDispatcherParams struct {
	fx.In

	Logger   *slog.Logger
	Rooms    *room.RoomService
	Peers    *peer.TrackerService
	Policies *ratelimit.Policies
}

func NewDispatcher(params NewDispatcherParams) *Dispatcher {
	return &Dispatcher{
		logger: params.Logger,
		rooms:  params.Rooms,
		peers:  params.Peers,
		limits: params.Policies,
	}
}
