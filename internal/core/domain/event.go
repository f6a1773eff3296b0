package domain

type EventKind string

const (
	EventRoster            EventKind = "roster"
	EventParticipantJoined EventKind = "participant_joined"
	EventParticipantLeft   EventKind = "participant_left"
	EventMetadataChanged   EventKind = "metadata_changed"
	EventData              EventKind = "data"
	EventSessionClosed     EventKind = "session_closed"
)

// Event is delivered by the transport to everyone subscribed to a session.
type Event struct {
	Kind     EventKind
	Session  SessionID
	Identity Identity
	Metadata string
	// SID is the participant SID for EventParticipantJoined.
	SID string
	// From and Payload are set for EventData.
	From    Identity
	Payload []byte
	// Participants is set for EventRoster.
	Participants []Participant
}
