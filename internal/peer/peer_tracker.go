package peer

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/romashorodok/signaling-platform/pkg/protocol"
	"github.com/romashorodok/signaling-platform/pkg/service"
	"go.uber.org/fx"
)

const (
	pendingOfferMaxAge        = 30 * time.Second
	pendingOfferSweepInterval = 60 * time.Second
)

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type LinkStatus string

const (
	LinkConnecting LinkStatus = "connecting"
	LinkConnected  LinkStatus = "connected"
)

// ConnectionID is the unordered pair key for a signaling relationship.
// Offer, answer and disconnect all compute the same key regardless of
// which side initiates, so the link is stored and found exactly once.
func ConnectionID(a, b protocol.ParticipantID) string {
	if b < a {
		a, b = b, a
	}
	return a + "-" + b
}

// PeerLink is the single record of one peer pair. Both participants'
// entries reference the same pointer.
type PeerLink struct {
	ConnectionID string                 `json:"connectionId"`
	Initiator    protocol.ParticipantID `json:"initiator"`
	Status       LinkStatus             `json:"status"`
	CreatedAt    time.Time              `json:"createdAt"`
}

type PeerEntry struct {
	links map[protocol.ParticipantID]*PeerLink
}

type PendingOffer struct {
	RoomID    protocol.RoomID
	From      protocol.ParticipantID
	To        protocol.ParticipantID
	Offer     json.RawMessage
	CreatedAt time.Time
}

type roomBucket struct {
	entries map[protocol.ParticipantID]*PeerEntry
	links   map[string]*PeerLink
}

func newRoomBucket() *roomBucket {
	return &roomBucket{
		entries: make(map[protocol.ParticipantID]*PeerEntry),
		links:   make(map[string]*PeerLink),
	}
}

// TrackerService owns the signaling-relevant state of every peer pair:
// links, pending offers and the ICE server configuration. Media flags
// are not stored here; they are read from the canonical source owned by
// the participant registry.
type TrackerService struct {
	sync.Mutex

	logger     *slog.Logger
	clock      Clock
	media      protocol.MediaStateSource
	iceServers []webrtc.ICEServer

	rooms   map[protocol.RoomID]*roomBucket
	pending map[string]*PendingOffer
}

func pendingKey(roomID protocol.RoomID, connectionID string) string {
	return roomID + "|" + connectionID
}

// AddParticipant is idempotent; re-adding a tracked participant keeps
// its existing links.
func (s *TrackerService) AddParticipant(roomID protocol.RoomID, participantID protocol.ParticipantID) {
	s.Lock()
	defer s.Unlock()

	bucket, exist := s.rooms[roomID]
	if !exist {
		bucket = newRoomBucket()
		s.rooms[roomID] = bucket
	}

	if _, tracked := bucket.entries[participantID]; tracked {
		return
	}
	bucket.entries[participantID] = &PeerEntry{
		links: make(map[protocol.ParticipantID]*PeerLink),
	}
}

func (s *TrackerService) RemoveParticipant(roomID protocol.RoomID, participantID protocol.ParticipantID) {
	s.Lock()
	defer s.Unlock()

	bucket, exist := s.rooms[roomID]
	if !exist {
		return
	}
	entry, tracked := bucket.entries[participantID]
	if !tracked {
		return
	}

	for other, link := range entry.links {
		if otherEntry, ok := bucket.entries[other]; ok {
			delete(otherEntry.links, participantID)
		}
		delete(bucket.links, link.ConnectionID)
		delete(s.pending, pendingKey(roomID, link.ConnectionID))
	}
	delete(bucket.entries, participantID)

	if len(bucket.entries) == 0 {
		delete(s.rooms, roomID)
	}
}

// CreatePeerLink records a connecting link between two tracked
// participants. An existing link for the pair is reused.
func (s *TrackerService) CreatePeerLink(roomID protocol.RoomID, from, to protocol.ParticipantID) (string, bool) {
	s.Lock()
	defer s.Unlock()
	return s.createPeerLinkLocked(roomID, from, to)
}

func (s *TrackerService) createPeerLinkLocked(roomID protocol.RoomID, from, to protocol.ParticipantID) (string, bool) {
	bucket, exist := s.rooms[roomID]
	if !exist {
		return "", false
	}
	fromEntry, fromTracked := bucket.entries[from]
	toEntry, toTracked := bucket.entries[to]
	if !fromTracked || !toTracked {
		return "", false
	}

	connectionID := ConnectionID(from, to)
	if link, ok := bucket.links[connectionID]; ok {
		return link.ConnectionID, true
	}

	link := &PeerLink{
		ConnectionID: connectionID,
		Initiator:    from,
		Status:       LinkConnecting,
		CreatedAt:    s.clock.Now(),
	}
	bucket.links[connectionID] = link
	fromEntry.links[to] = link
	toEntry.links[from] = link
	return connectionID, true
}

// HandleOffer creates the pair's link and stages the offer until a
// matching answer arrives.
func (s *TrackerService) HandleOffer(roomID protocol.RoomID, from, to protocol.ParticipantID, offer json.RawMessage) (string, bool) {
	s.Lock()
	defer s.Unlock()

	connectionID, ok := s.createPeerLinkLocked(roomID, from, to)
	if !ok {
		return "", false
	}

	s.pending[pendingKey(roomID, connectionID)] = &PendingOffer{
		RoomID:    roomID,
		From:      from,
		To:        to,
		Offer:     offer,
		CreatedAt: s.clock.Now(),
	}
	return connectionID, true
}

// HandleAnswer transitions the pair's link to connected and clears the
// staged offer. It fails when no offer ever created the link.
func (s *TrackerService) HandleAnswer(roomID protocol.RoomID, from, to protocol.ParticipantID, answer json.RawMessage) bool {
	s.Lock()
	defer s.Unlock()

	bucket, exist := s.rooms[roomID]
	if !exist {
		return false
	}

	connectionID := ConnectionID(from, to)
	link, exist := bucket.links[connectionID]
	if !exist {
		return false
	}

	link.Status = LinkConnected
	delete(s.pending, pendingKey(roomID, connectionID))
	return true
}

// UpdateMediaState validates the participant is tracked and returns the
// canonical media snapshot. The registry already applied the write.
func (s *TrackerService) UpdateMediaState(roomID protocol.RoomID, participantID protocol.ParticipantID) (protocol.MediaState, bool) {
	s.Lock()
	bucket, exist := s.rooms[roomID]
	if exist {
		_, exist = bucket.entries[participantID]
	}
	s.Unlock()

	if !exist {
		return protocol.MediaState{}, false
	}
	return s.media.MediaState(roomID, participantID)
}

type RoomSnapshot struct {
	UserCount        int                                            `json:"userCount"`
	PeerCounts       map[protocol.ParticipantID]int                 `json:"peerCounts"`
	MediaStates      map[protocol.ParticipantID]protocol.MediaState `json:"mediaStates"`
	TotalConnections int                                            `json:"totalConnections"`
}

func (s *TrackerService) RoomSnapshot(roomID protocol.RoomID) (RoomSnapshot, bool) {
	s.Lock()
	bucket, exist := s.rooms[roomID]
	if !exist {
		s.Unlock()
		return RoomSnapshot{}, false
	}

	snapshot := RoomSnapshot{
		UserCount:        len(bucket.entries),
		PeerCounts:       make(map[protocol.ParticipantID]int, len(bucket.entries)),
		MediaStates:      make(map[protocol.ParticipantID]protocol.MediaState, len(bucket.entries)),
		TotalConnections: len(bucket.links),
	}
	participants := make([]protocol.ParticipantID, 0, len(bucket.entries))
	for id, entry := range bucket.entries {
		snapshot.PeerCounts[id] = len(entry.links)
		participants = append(participants, id)
	}
	s.Unlock()

	// Media flags come from the canonical source outside our mutex to
	// keep the lock order tracker -> registry one-way free.
	for _, id := range participants {
		if state, ok := s.media.MediaState(roomID, id); ok {
			snapshot.MediaStates[id] = state
		}
	}
	return snapshot, true
}

type RoomStats struct {
	Users       int `json:"users"`
	Connections int `json:"connections"`
}

type Stats struct {
	TotalRooms       int                           `json:"totalRooms"`
	TotalUsers       int                           `json:"totalUsers"`
	TotalConnections int                           `json:"totalConnections"`
	PendingOffers    int                           `json:"pendingOffers"`
	Rooms            map[protocol.RoomID]RoomStats `json:"rooms"`
}

func (s *TrackerService) Stats() Stats {
	s.Lock()
	defer s.Unlock()

	stats := Stats{
		TotalRooms: len(s.rooms),
		Rooms:      make(map[protocol.RoomID]RoomStats, len(s.rooms)),
	}
	for roomID, bucket := range s.rooms {
		stats.TotalUsers += len(bucket.entries)
		stats.TotalConnections += len(bucket.links)
		stats.Rooms[roomID] = RoomStats{
			Users:       len(bucket.entries),
			Connections: len(bucket.links),
		}
	}
	stats.PendingOffers = len(s.pending)
	return stats
}

func (s *TrackerService) ICEServers() []webrtc.ICEServer {
	return s.iceServers
}

// SweepExpiredOffers drops staged offers older than maxAge. An expired
// offer also retracts its still-connecting link, so abandoned offers do
// not leave orphaned links behind.
func (s *TrackerService) SweepExpiredOffers(maxAge time.Duration) error {
	s.Lock()
	defer s.Unlock()

	now := s.clock.Now()
	for key, offer := range s.pending {
		if now.Sub(offer.CreatedAt) < maxAge {
			continue
		}
		delete(s.pending, key)

		bucket, exist := s.rooms[offer.RoomID]
		if !exist {
			continue
		}
		connectionID := ConnectionID(offer.From, offer.To)
		link, exist := bucket.links[connectionID]
		if !exist || link.Status != LinkConnecting {
			continue
		}
		delete(bucket.links, connectionID)
		if entry, ok := bucket.entries[offer.From]; ok {
			delete(entry.links, offer.To)
		}
		if entry, ok := bucket.entries[offer.To]; ok {
			delete(entry.links, offer.From)
		}
		s.logger.Debug("expired pending offer",
			slog.String("room", offer.RoomID),
			slog.String("connection", connectionID),
		)
	}
	return nil
}

func (s *TrackerService) SweepTasks() []service.SweepTask {
	return []service.SweepTask{{
		Name:     "peer.expired-offers",
		Interval: pendingOfferSweepInterval,
		Run: func() error {
			return s.SweepExpiredOffers(pendingOfferMaxAge)
		},
	}}
}

type NewTrackerServiceParams struct {
	fx.In

	Logger *slog.Logger
	Media  protocol.MediaStateSource
}

func NewTrackerService(params NewTrackerServiceParams) *TrackerService {
	return newTrackerService(params.Logger, params.Media, realClock{})
}

func newTrackerService(logger *slog.Logger, media protocol.MediaStateSource, clock Clock) *TrackerService {
	return &TrackerService{
		logger:     logger,
		clock:      clock,
		media:      media,
		iceServers: defaultICEServers(),
		rooms:      make(map[protocol.RoomID]*roomBucket),
		pending:    make(map[string]*PendingOffer),
	}
}
