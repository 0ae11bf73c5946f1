package signaling

import (
	"sync"

	"github.com/romashorodok/signaling-platform/pkg/protocol"
)

// Session is one connected client. It starts unbound and becomes bound
// to a room on a successful join; teardown unbinds exactly once even
// when leave and disconnect race.
type Session struct {
	id   protocol.ParticipantID
	addr string
	conn protocol.SessionWriter

	mu     sync.Mutex
	roomID protocol.RoomID
	bound  bool
}

func NewSession(id protocol.ParticipantID, addr string, conn protocol.SessionWriter) *Session {
	return &Session{
		id:   id,
		addr: addr,
		conn: conn,
	}
}

func (s *Session) ID() protocol.ParticipantID { return s.id }

func (s *Session) bind(roomID protocol.RoomID) {
	s.mu.Lock()
	s.roomID = roomID
	s.bound = true
	s.mu.Unlock()
}

// unbind reverts the session to the unbound state and reports whether
// it was bound. Only the caller that observes wasBound == true may run
// the room teardown.
func (s *Session) unbind() (roomID protocol.RoomID, wasBound bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	roomID, wasBound = s.roomID, s.bound
	s.roomID = ""
	s.bound = false
	return roomID, wasBound
}

func (s *Session) boundRoom() (protocol.RoomID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roomID, s.bound
}
