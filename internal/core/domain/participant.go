package domain

import "time"

// Participant is one identity present in a session's presence directory.
type Participant struct {
	SID      string
	Identity Identity
	Metadata string
	JoinedAt time.Time
}

// SessionInfo describes an active session for discovery.
type SessionInfo struct {
	SID             string
	Name            SessionID
	NumParticipants int
	CreatedAt       time.Time
}

// JoinGrant is what a join token authorises: one identity in one session,
// carrying the metadata decided at bootstrap.
type JoinGrant struct {
	Identity Identity
	Session  SessionID
	Metadata string
}

// ClaimReason explains a ClaimAdmin outcome.
type ClaimReason string

const (
	ClaimGranted     ClaimReason = "granted"
	ClaimAdminExists ClaimReason = "Admin already exists"
)

type ClaimResult struct {
	Granted bool
	Reason  ClaimReason
}
