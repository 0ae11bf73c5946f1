package protocol

type (
	RoomID        = string
	ParticipantID = string
)

type ParticipantRole string

const (
	RoleHost        ParticipantRole = "host"
	RoleParticipant ParticipantRole = "participant"
)
