package room

import (
	"io"
	"log/slog"
	"testing"

	"github.com/romashorodok/signaling-platform/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRoomService() *RoomService {
	return NewRoomService(NewRoomServiceParams{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func join(t *testing.T, s *RoomService, roomID, participantID, name string) ParticipantSnapshot {
	t.Helper()
	_, participant, err := s.JoinRoom(roomID, participantID, ParticipantInfo{Name: name}, "")
	require.NoError(t, err)
	return participant
}

func TestCreateRoom_CapacityDefaults(t *testing.T) {
	s := newTestRoomService()

	r := s.CreateRoom(&CreateRoomOption{})
	assert.Equal(t, DefaultCapacity, r.Capacity)

	r = s.CreateRoom(&CreateRoomOption{Capacity: 100})
	assert.Equal(t, MaxCapacity, r.Capacity, "capacity must be clamped to the ceiling")

	r = s.CreateRoom(&CreateRoomOption{Capacity: 3})
	assert.Equal(t, 3, r.Capacity)
}

func TestJoinRoom_FirstJoinerBecomesHost(t *testing.T) {
	s := newTestRoomService()
	r := s.CreateRoom(&CreateRoomOption{})

	first := join(t, s, r.ID, "alice", "Alice")
	second := join(t, s, r.ID, "bob", "Bob")

	assert.Equal(t, protocol.RoleHost, first.Role)
	assert.Equal(t, protocol.RoleParticipant, second.Role)
}

func TestJoinRoom_RoomFull(t *testing.T) {
	s := newTestRoomService()
	r := s.CreateRoom(&CreateRoomOption{Capacity: 2})

	join(t, s, r.ID, "alice", "Alice")
	join(t, s, r.ID, "bob", "Bob")

	_, _, err := s.JoinRoom(r.ID, "carol", ParticipantInfo{Name: "Carol"}, "")
	assert.ErrorIs(t, err, ErrRoomFull)

	snapshot, _ := s.GetRoom(r.ID)
	assert.Equal(t, 2, snapshot.ParticipantCount)
	assert.LessOrEqual(t, snapshot.ParticipantCount, snapshot.Capacity)
}

func TestJoinRoom_Failures(t *testing.T) {
	s := newTestRoomService()

	_, _, err := s.JoinRoom("missing", "alice", ParticipantInfo{Name: "Alice"}, "")
	assert.ErrorIs(t, err, ErrRoomNotFound)

	locked := s.CreateRoom(&CreateRoomOption{Password: "secret"})
	_, _, err = s.JoinRoom(locked.ID, "alice", ParticipantInfo{Name: "Alice"}, "wrong")
	assert.ErrorIs(t, err, ErrInvalidPassword)

	_, _, err = s.JoinRoom(locked.ID, "alice", ParticipantInfo{Name: "Alice"}, "secret")
	assert.NoError(t, err)

	inactive := s.CreateRoom(&CreateRoomOption{})
	inactive.Active = false
	_, _, err = s.JoinRoom(inactive.ID, "bob", ParticipantInfo{Name: "Bob"}, "")
	assert.ErrorIs(t, err, ErrRoomInactive)
}

func TestJoinRoom_AtMostOneRoomPerParticipant(t *testing.T) {
	s := newTestRoomService()
	first := s.CreateRoom(&CreateRoomOption{})
	second := s.CreateRoom(&CreateRoomOption{})

	join(t, s, first.ID, "alice", "Alice")
	join(t, s, first.ID, "bob", "Bob")
	join(t, s, second.ID, "alice", "Alice")

	snapshot, exist := s.GetRoom(first.ID)
	require.True(t, exist)
	assert.Equal(t, 1, snapshot.ParticipantCount, "alice must be gone from the first room")

	roomID, _, ok := s.Participant("alice")
	require.True(t, ok)
	assert.Equal(t, second.ID, roomID)
}

func TestLeaveRoom_HostSuccession(t *testing.T) {
	s := newTestRoomService()
	r := s.CreateRoom(&CreateRoomOption{})

	join(t, s, r.ID, "alice", "Alice")
	join(t, s, r.ID, "bob", "Bob")
	join(t, s, r.ID, "carol", "Carol")

	result, ok := s.LeaveRoom("alice")
	require.True(t, ok)
	assert.Equal(t, "bob", result.NewHostID, "earliest remaining joiner takes over")
	assert.False(t, result.RoomDeleted)

	_, bob, ok := s.Participant("bob")
	require.True(t, ok)
	assert.Equal(t, protocol.RoleHost, bob.Role)

	_, carol, ok := s.Participant("carol")
	require.True(t, ok)
	assert.Equal(t, protocol.RoleParticipant, carol.Role)
}

func TestLeaveRoom_DeletesEmptyRoomImmediately(t *testing.T) {
	s := newTestRoomService()
	r := s.CreateRoom(&CreateRoomOption{})
	join(t, s, r.ID, "alice", "Alice")

	result, ok := s.LeaveRoom("alice")
	require.True(t, ok)
	assert.True(t, result.RoomDeleted)

	_, exist := s.GetRoom(r.ID)
	assert.False(t, exist, "empty room must be gone before any sweep runs")
}

func TestLeaveRoom_UnknownParticipant(t *testing.T) {
	s := newTestRoomService()
	_, ok := s.LeaveRoom("ghost")
	assert.False(t, ok)
}

func TestUpdateParticipantMedia(t *testing.T) {
	s := newTestRoomService()
	r := s.CreateRoom(&CreateRoomOption{})
	join(t, s, r.ID, "alice", "Alice")

	roomID, snapshot, ok := s.UpdateParticipantMedia("alice", protocol.MediaAudio, true)
	require.True(t, ok)
	assert.Equal(t, r.ID, roomID)
	assert.True(t, snapshot.Media.Audio)

	state, ok := s.MediaState(r.ID, "alice")
	require.True(t, ok)
	assert.True(t, state.Audio)
	assert.False(t, state.Video)

	_, _, ok = s.UpdateParticipantMedia("ghost", protocol.MediaAudio, true)
	assert.False(t, ok)
}

func TestSetRecording(t *testing.T) {
	s := newTestRoomService()
	r := s.CreateRoom(&CreateRoomOption{})

	require.True(t, s.SetRecording(r.ID, true))
	snapshot, _ := s.GetRoom(r.ID)
	assert.True(t, snapshot.Settings.RecordingEnabled)

	assert.False(t, s.SetRecording("missing", true))
}

func TestSweepEmptyRooms(t *testing.T) {
	s := newTestRoomService()
	r := s.CreateRoom(&CreateRoomOption{})

	// A created room with no participants is exactly the orphan the
	// sweep guards against.
	require.NoError(t, s.SweepEmptyRooms())

	_, exist := s.GetRoom(r.ID)
	assert.False(t, exist)
}

func TestParticipantSessions_ExcludesListed(t *testing.T) {
	s := newTestRoomService()
	r := s.CreateRoom(&CreateRoomOption{})
	join(t, s, r.ID, "alice", "Alice")
	join(t, s, r.ID, "bob", "Bob")

	assert.Len(t, s.ParticipantSessions(r.ID), 0, "nil sessions are skipped")
}
