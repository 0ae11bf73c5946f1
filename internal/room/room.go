package room

import (
	"time"

	"github.com/romashorodok/signaling-platform/pkg/protocol"
)

const (
	DefaultCapacity = 10
	MaxCapacity     = 50
)

type RoomSettings struct {
	AllowScreenShare bool
	AllowChat        bool
	PasswordRequired bool
	Password         string
	RecordingEnabled bool
}

type Participant struct {
	ID         protocol.ParticipantID
	Name       string
	Session    protocol.SessionWriter
	JoinedAt   time.Time
	Media      protocol.MediaState
	HandRaised bool
	Role       protocol.ParticipantRole
}

// Room owns its participants. The order slice records insertion order;
// host succession picks the earliest remaining entry.
type Room struct {
	ID        protocol.RoomID
	CreatedAt time.Time
	CreatedBy string
	Active    bool
	Capacity  int
	Settings  RoomSettings

	participants map[protocol.ParticipantID]*Participant
	order        []protocol.ParticipantID
}

func (r *Room) participant(id protocol.ParticipantID) (*Participant, bool) {
	p, exist := r.participants[id]
	return p, exist
}

func (r *Room) addParticipant(p *Participant) error {
	if len(r.participants) >= r.Capacity {
		return ErrRoomFull
	}
	if _, exist := r.participants[p.ID]; exist {
		return ErrDuplicateParticipant
	}

	if len(r.participants) == 0 {
		p.Role = protocol.RoleHost
	} else {
		p.Role = protocol.RoleParticipant
	}

	r.participants[p.ID] = p
	r.order = append(r.order, p.ID)
	return nil
}

// removeParticipant detaches the participant and reassigns the host
// role to the earliest remaining joiner when the host departs.
func (r *Room) removeParticipant(id protocol.ParticipantID) (removed *Participant, newHost *Participant, exist bool) {
	removed, exist = r.participants[id]
	if !exist {
		return nil, nil, false
	}

	delete(r.participants, id)
	for i, orderedID := range r.order {
		if orderedID == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}

	if removed.Role == protocol.RoleHost && len(r.order) > 0 {
		newHost = r.participants[r.order[0]]
		newHost.Role = protocol.RoleHost
	}
	return removed, newHost, true
}

func (r *Room) participantsInOrder() []*Participant {
	result := make([]*Participant, 0, len(r.order))
	for _, id := range r.order {
		result = append(result, r.participants[id])
	}
	return result
}

type ParticipantSnapshot struct {
	ID         protocol.ParticipantID   `json:"id"`
	Name       string                   `json:"name"`
	JoinedAt   time.Time                `json:"joinedAt"`
	Media      protocol.MediaState      `json:"media"`
	HandRaised bool                     `json:"handRaised"`
	Role       protocol.ParticipantRole `json:"role"`
}

type RoomSettingsSnapshot struct {
	AllowScreenShare bool `json:"allowScreenShare"`
	AllowChat        bool `json:"allowChat"`
	PasswordRequired bool `json:"passwordRequired"`
	RecordingEnabled bool `json:"recordingEnabled"`
}

type RoomSnapshot struct {
	ID               protocol.RoomID       `json:"id"`
	CreatedAt        time.Time             `json:"createdAt"`
	CreatedBy        string                `json:"createdBy,omitempty"`
	Active           bool                  `json:"active"`
	Capacity         int                   `json:"capacity"`
	ParticipantCount int                   `json:"participantCount"`
	Settings         RoomSettingsSnapshot  `json:"settings"`
	Participants     []ParticipantSnapshot `json:"participants"`
}

func snapshotParticipant(p *Participant) ParticipantSnapshot {
	return ParticipantSnapshot{
		ID:         p.ID,
		Name:       p.Name,
		JoinedAt:   p.JoinedAt,
		Media:      p.Media,
		HandRaised: p.HandRaised,
		Role:       p.Role,
	}
}

// snapshot is taken under the service mutex. The password never leaves
// the settings struct.
func (r *Room) snapshot() RoomSnapshot {
	participants := make([]ParticipantSnapshot, 0, len(r.order))
	for _, p := range r.participantsInOrder() {
		participants = append(participants, snapshotParticipant(p))
	}

	return RoomSnapshot{
		ID:               r.ID,
		CreatedAt:        r.CreatedAt,
		CreatedBy:        r.CreatedBy,
		Active:           r.Active,
		Capacity:         r.Capacity,
		ParticipantCount: len(r.participants),
		Settings: RoomSettingsSnapshot{
			AllowScreenShare: r.Settings.AllowScreenShare,
			AllowChat:        r.Settings.AllowChat,
			PasswordRequired: r.Settings.PasswordRequired,
			RecordingEnabled: r.Settings.RecordingEnabled,
		},
		Participants: participants,
	}
}
