package room

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/romashorodok/signaling-platform/pkg/protocol"
	"github.com/romashorodok/signaling-platform/pkg/service"
	"go.uber.org/fx"
)

const emptyRoomSweepInterval = 5 * time.Minute

type CreateRoomOption struct {
	CreatedBy        string
	Capacity         int
	Password         string
	AllowScreenShare bool
	AllowChat        bool
}

type ParticipantInfo struct {
	Name    string
	Session protocol.SessionWriter
}

// RoomService is the room/participant registry. One mutex guards the
// room directory and the participant reverse index so cross-room moves
// are never observed half done.
type RoomService struct {
	sync.Mutex

	logger   *slog.Logger
	rooms    map[protocol.RoomID]*Room
	userRoom map[protocol.ParticipantID]protocol.RoomID
}

// CreateRoom always succeeds. The requested capacity is clamped to the
// hard ceiling; zero means the default.
func (s *RoomService) CreateRoom(option *CreateRoomOption) *Room {
	s.Lock()
	defer s.Unlock()

	capacity := option.Capacity
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if capacity > MaxCapacity {
		capacity = MaxCapacity
	}

	r := &Room{
		ID:        uuid.NewString(),
		CreatedAt: time.Now(),
		CreatedBy: option.CreatedBy,
		Active:    true,
		Capacity:  capacity,
		Settings: RoomSettings{
			AllowScreenShare: option.AllowScreenShare,
			AllowChat:        option.AllowChat,
			PasswordRequired: option.Password != "",
			Password:         option.Password,
		},
		participants: make(map[protocol.ParticipantID]*Participant),
	}
	s.rooms[r.ID] = r

	s.logger.Info("room created",
		slog.String("room", r.ID),
		slog.Int("capacity", r.Capacity),
	)
	return r
}

func (s *RoomService) GetRoom(roomID protocol.RoomID) (RoomSnapshot, bool) {
	s.Lock()
	defer s.Unlock()

	r, exist := s.rooms[roomID]
	if !exist {
		return RoomSnapshot{}, false
	}
	return r.snapshot(), true
}

// JoinRoom registers the participant in the room. A participant belongs
// to at most one room: any prior membership is torn down first, so a
// re-join is never rejected as a duplicate of itself.
func (s *RoomService) JoinRoom(roomID protocol.RoomID, participantID protocol.ParticipantID, info ParticipantInfo, password string) (RoomSnapshot, ParticipantSnapshot, error) {
	s.Lock()
	defer s.Unlock()

	r, exist := s.rooms[roomID]
	if !exist {
		return RoomSnapshot{}, ParticipantSnapshot{}, ErrRoomNotFound
	}
	if !r.Active {
		return RoomSnapshot{}, ParticipantSnapshot{}, ErrRoomInactive
	}
	if r.Settings.PasswordRequired && r.Settings.Password != password {
		return RoomSnapshot{}, ParticipantSnapshot{}, ErrInvalidPassword
	}

	if priorRoomID, member := s.userRoom[participantID]; member {
		s.leaveLocked(priorRoomID, participantID)
	}

	p := &Participant{
		ID:       participantID,
		Name:     info.Name,
		Session:  info.Session,
		JoinedAt: time.Now(),
	}
	if err := r.addParticipant(p); err != nil {
		return RoomSnapshot{}, ParticipantSnapshot{}, err
	}
	s.userRoom[participantID] = roomID

	s.logger.Info("participant joined",
		slog.String("room", roomID),
		slog.String("participant", participantID),
		slog.String("role", string(p.Role)),
	)
	return r.snapshot(), snapshotParticipant(p), nil
}

type LeaveResult struct {
	RoomID      protocol.RoomID
	Participant ParticipantSnapshot
	NewHostID   protocol.ParticipantID
	RoomDeleted bool
}

func (s *RoomService) LeaveRoom(participantID protocol.ParticipantID) (LeaveResult, bool) {
	s.Lock()
	defer s.Unlock()

	roomID, member := s.userRoom[participantID]
	if !member {
		return LeaveResult{}, false
	}
	return s.leaveLocked(roomID, participantID)
}

// leaveLocked deletes the room as soon as it has no participants left;
// the periodic sweep is only a net for missed cleanups.
func (s *RoomService) leaveLocked(roomID protocol.RoomID, participantID protocol.ParticipantID) (LeaveResult, bool) {
	r, exist := s.rooms[roomID]
	if !exist {
		delete(s.userRoom, participantID)
		return LeaveResult{}, false
	}

	removed, newHost, exist := r.removeParticipant(participantID)
	delete(s.userRoom, participantID)
	if !exist {
		return LeaveResult{}, false
	}

	result := LeaveResult{
		RoomID:      roomID,
		Participant: snapshotParticipant(removed),
	}
	if newHost != nil {
		result.NewHostID = newHost.ID
	}

	if len(r.participants) == 0 {
		delete(s.rooms, roomID)
		result.RoomDeleted = true
		s.logger.Info("room deleted", slog.String("room", roomID))
	}

	s.logger.Info("participant left",
		slog.String("room", roomID),
		slog.String("participant", participantID),
	)
	return result, true
}

func (s *RoomService) UpdateParticipantMedia(participantID protocol.ParticipantID, kind protocol.MediaKind, enabled bool) (protocol.RoomID, ParticipantSnapshot, bool) {
	s.Lock()
	defer s.Unlock()

	roomID, p, exist := s.participantLocked(participantID)
	if !exist {
		return "", ParticipantSnapshot{}, false
	}

	switch kind {
	case protocol.MediaAudio:
		p.Media.Audio = enabled
	case protocol.MediaVideo:
		p.Media.Video = enabled
	case protocol.MediaScreen:
		p.Media.Screen = enabled
	}
	return roomID, snapshotParticipant(p), true
}

func (s *RoomService) SetHandRaised(participantID protocol.ParticipantID, raised bool) (protocol.RoomID, ParticipantSnapshot, bool) {
	s.Lock()
	defer s.Unlock()

	roomID, p, exist := s.participantLocked(participantID)
	if !exist {
		return "", ParticipantSnapshot{}, false
	}
	p.HandRaised = raised
	return roomID, snapshotParticipant(p), true
}

func (s *RoomService) SetRecording(roomID protocol.RoomID, enabled bool) bool {
	s.Lock()
	defer s.Unlock()

	r, exist := s.rooms[roomID]
	if !exist {
		return false
	}
	r.Settings.RecordingEnabled = enabled
	return true
}

// Participant resolves the participant's room and current snapshot.
func (s *RoomService) Participant(participantID protocol.ParticipantID) (protocol.RoomID, ParticipantSnapshot, bool) {
	s.Lock()
	defer s.Unlock()

	roomID, p, exist := s.participantLocked(participantID)
	if !exist {
		return "", ParticipantSnapshot{}, false
	}
	return roomID, snapshotParticipant(p), true
}

func (s *RoomService) ParticipantSession(participantID protocol.ParticipantID) (protocol.SessionWriter, bool) {
	s.Lock()
	defer s.Unlock()

	_, p, exist := s.participantLocked(participantID)
	if !exist || p.Session == nil {
		return nil, false
	}
	return p.Session, true
}

// ParticipantSessions returns the sessions of everyone in the room
// except the listed ids. Used for event fan-out.
func (s *RoomService) ParticipantSessions(roomID protocol.RoomID, except ...protocol.ParticipantID) []protocol.SessionWriter {
	s.Lock()
	defer s.Unlock()

	r, exist := s.rooms[roomID]
	if !exist {
		return nil
	}

	excluded := make(map[protocol.ParticipantID]struct{}, len(except))
	for _, id := range except {
		excluded[id] = struct{}{}
	}

	var sessions []protocol.SessionWriter
	for _, p := range r.participantsInOrder() {
		if _, skip := excluded[p.ID]; skip {
			continue
		}
		if p.Session != nil {
			sessions = append(sessions, p.Session)
		}
	}
	return sessions
}

func (s *RoomService) participantLocked(participantID protocol.ParticipantID) (protocol.RoomID, *Participant, bool) {
	roomID, member := s.userRoom[participantID]
	if !member {
		return "", nil, false
	}
	r, exist := s.rooms[roomID]
	if !exist {
		return "", nil, false
	}
	p, exist := r.participant(participantID)
	if !exist {
		return "", nil, false
	}
	return roomID, p, true
}

// MediaState implements protocol.MediaStateSource. The registry is the
// only writer of media flags; everything else reads through here.
func (s *RoomService) MediaState(roomID protocol.RoomID, participantID protocol.ParticipantID) (protocol.MediaState, bool) {
	s.Lock()
	defer s.Unlock()

	r, exist := s.rooms[roomID]
	if !exist {
		return protocol.MediaState{}, false
	}
	p, exist := r.participant(participantID)
	if !exist {
		return protocol.MediaState{}, false
	}
	return p.Media, true
}

func (s *RoomService) RoomCount() int {
	s.Lock()
	defer s.Unlock()
	return len(s.rooms)
}

// SweepEmptyRooms removes rooms that lost all participants without the
// leave path cleaning them up. It should find nothing under correct
// operation.
func (s *RoomService) SweepEmptyRooms() error {
	s.Lock()
	defer s.Unlock()

	for id, r := range s.rooms {
		if len(r.participants) == 0 {
			delete(s.rooms, id)
			s.logger.Warn("swept orphaned empty room", slog.String("room", id))
		}
	}
	return nil
}

func (s *RoomService) SweepTasks() []service.SweepTask {
	return []service.SweepTask{{
		Name:     "room.empty-rooms",
		Interval: emptyRoomSweepInterval,
		Run:      s.SweepEmptyRooms,
	}}
}

type NewRoomServiceParams struct {
	fx.In

	Logger *slog.Logger
}

func NewRoomService(params NewRoomServiceParams) *RoomService {
	return &RoomService{
		logger:   params.Logger,
		rooms:    make(map[protocol.RoomID]*Room),
		userRoom: make(map[protocol.ParticipantID]protocol.RoomID),
	}
}

var _ protocol.MediaStateSource = (*RoomService)(nil)
