package peer

import (
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/romashorodok/signaling-platform/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeMediaSource map[string]protocol.MediaState

func (f fakeMediaSource) MediaState(roomID protocol.RoomID, participantID protocol.ParticipantID) (protocol.MediaState, bool) {
	state, ok := f[roomID+"/"+participantID]
	return state, ok
}

func newTestTracker(media protocol.MediaStateSource) (*TrackerService, *fakeClock) {
	clk := &fakeClock{now: time.Unix(0, 0)}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if media == nil {
		media = fakeMediaSource{}
	}
	return newTrackerService(logger, media, clk), clk
}

func offerPayload() json.RawMessage {
	return json.RawMessage(`{"type":"offer","sdp":"v=0"}`)
}

func TestConnectionID_OrderIndependent(t *testing.T) {
	assert.Equal(t, "A-B", ConnectionID("A", "B"))
	assert.Equal(t, "A-B", ConnectionID("B", "A"))
}

func TestHandleOffer_ThenAnswer(t *testing.T) {
	s, _ := newTestTracker(nil)
	s.AddParticipant("room", "A")
	s.AddParticipant("room", "B")

	connectionID, ok := s.HandleOffer("room", "A", "B", offerPayload())
	require.True(t, ok)
	assert.Equal(t, "A-B", connectionID)

	link := s.rooms["room"].links[connectionID]
	require.NotNil(t, link)
	assert.Equal(t, LinkConnecting, link.Status)
	assert.Equal(t, protocol.ParticipantID("A"), link.Initiator)
	assert.Equal(t, 1, s.Stats().PendingOffers)

	require.True(t, s.HandleAnswer("room", "B", "A", json.RawMessage(`{}`)))
	assert.Equal(t, LinkConnected, link.Status)
	assert.Zero(t, s.Stats().PendingOffers, "answer consumes the staged offer")
}

func TestHandleAnswer_WithoutOffer(t *testing.T) {
	s, _ := newTestTracker(nil)
	s.AddParticipant("room", "A")
	s.AddParticipant("room", "B")

	assert.False(t, s.HandleAnswer("room", "B", "A", json.RawMessage(`{}`)))
}

func TestHandleOffer_UntrackedParticipant(t *testing.T) {
	s, _ := newTestTracker(nil)
	s.AddParticipant("room", "A")

	_, ok := s.HandleOffer("room", "A", "ghost", offerPayload())
	assert.False(t, ok)

	_, ok = s.CreatePeerLink("missing-room", "A", "B")
	assert.False(t, ok)
}

func TestAddParticipant_Idempotent(t *testing.T) {
	s, _ := newTestTracker(nil)
	s.AddParticipant("room", "A")
	s.AddParticipant("room", "B")

	_, ok := s.HandleOffer("room", "A", "B", offerPayload())
	require.True(t, ok)

	// Re-adding keeps the existing links.
	s.AddParticipant("room", "A")
	assert.Len(t, s.rooms["room"].entries["A"].links, 1)
}

func TestRemoveParticipant_CleansBothSides(t *testing.T) {
	s, _ := newTestTracker(nil)
	s.AddParticipant("room", "A")
	s.AddParticipant("room", "B")
	s.AddParticipant("room", "C")

	_, ok := s.HandleOffer("room", "A", "B", offerPayload())
	require.True(t, ok)
	_, ok = s.HandleOffer("room", "A", "C", offerPayload())
	require.True(t, ok)

	s.RemoveParticipant("room", "A")

	stats := s.Stats()
	assert.Zero(t, stats.TotalConnections)
	assert.Zero(t, stats.PendingOffers)
	assert.Empty(t, s.rooms["room"].entries["B"].links)
	assert.Empty(t, s.rooms["room"].entries["C"].links)
}

func TestRemoveParticipant_DeletesEmptyBucket(t *testing.T) {
	s, _ := newTestTracker(nil)
	s.AddParticipant("room", "A")
	s.RemoveParticipant("room", "A")

	_, exist := s.RoomSnapshot("room")
	assert.False(t, exist)
}

func TestSweepExpiredOffers(t *testing.T) {
	s, clk := newTestTracker(nil)
	s.AddParticipant("room", "A")
	s.AddParticipant("room", "B")
	s.AddParticipant("room", "C")

	_, ok := s.HandleOffer("room", "A", "B", offerPayload())
	require.True(t, ok)

	clk.Advance(20 * time.Second)
	_, ok = s.HandleOffer("room", "A", "C", offerPayload())
	require.True(t, ok)

	clk.Advance(15 * time.Second) // first offer is now 35s old, second 15s

	require.NoError(t, s.SweepExpiredOffers(30*time.Second))

	stats := s.Stats()
	assert.Equal(t, 1, stats.PendingOffers, "fresh offer must be retained")
	assert.Equal(t, 1, stats.TotalConnections, "expired offer retracts its connecting link")
	assert.Empty(t, s.rooms["room"].entries["B"].links)
}

func TestSweepExpiredOffers_KeepsConnectedLinks(t *testing.T) {
	s, clk := newTestTracker(nil)
	s.AddParticipant("room", "A")
	s.AddParticipant("room", "B")

	_, ok := s.HandleOffer("room", "A", "B", offerPayload())
	require.True(t, ok)
	require.True(t, s.HandleAnswer("room", "B", "A", json.RawMessage(`{}`)))

	clk.Advance(time.Minute)
	require.NoError(t, s.SweepExpiredOffers(30*time.Second))

	assert.Equal(t, 1, s.Stats().TotalConnections)
}

func TestRoomSnapshot(t *testing.T) {
	media := fakeMediaSource{
		"room/A": {Audio: true},
		"room/B": {Video: true},
	}
	s, _ := newTestTracker(media)
	s.AddParticipant("room", "A")
	s.AddParticipant("room", "B")

	_, ok := s.HandleOffer("room", "A", "B", offerPayload())
	require.True(t, ok)

	snapshot, exist := s.RoomSnapshot("room")
	require.True(t, exist)
	assert.Equal(t, 2, snapshot.UserCount)
	assert.Equal(t, 1, snapshot.TotalConnections)
	assert.Equal(t, 1, snapshot.PeerCounts["A"])
	assert.Equal(t, 1, snapshot.PeerCounts["B"])
	assert.True(t, snapshot.MediaStates["A"].Audio)
	assert.True(t, snapshot.MediaStates["B"].Video)
}

func TestUpdateMediaState_ReadsCanonicalSource(t *testing.T) {
	media := fakeMediaSource{"room/A": {Screen: true}}
	s, _ := newTestTracker(media)
	s.AddParticipant("room", "A")

	state, ok := s.UpdateMediaState("room", "A")
	require.True(t, ok)
	assert.True(t, state.Screen)

	_, ok = s.UpdateMediaState("room", "ghost")
	assert.False(t, ok)
}

func TestStats_PerRoomCounts(t *testing.T) {
	s, _ := newTestTracker(nil)
	s.AddParticipant("one", "A")
	s.AddParticipant("one", "B")
	s.AddParticipant("two", "C")

	_, ok := s.HandleOffer("one", "A", "B", offerPayload())
	require.True(t, ok)

	stats := s.Stats()
	assert.Equal(t, 2, stats.TotalRooms)
	assert.Equal(t, 3, stats.TotalUsers)
	assert.Equal(t, 1, stats.TotalConnections)
	assert.Equal(t, RoomStats{Users: 2, Connections: 1}, stats.Rooms["one"])
	assert.Equal(t, RoomStats{Users: 1, Connections: 0}, stats.Rooms["two"])
}
