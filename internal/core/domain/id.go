package domain

import (
	"strings"

	"github.com/google/uuid"
)

// Identity is the display name a participant presents for one connection.
type Identity string

// SessionID names a realtime session (a room).
type SessionID string

func (id Identity) String() string {
	return string(id)
}

func (s SessionID) String() string {
	return string(s)
}

// Valid reports whether the identity is usable, i.e. not blank.
func (id Identity) Valid() bool {
	return strings.TrimSpace(string(id)) != ""
}

func (s SessionID) Valid() bool {
	return strings.TrimSpace(string(s)) != ""
}

// ClientID identifies one websocket connection; unlike Identity it is never reused.
type ClientID uuid.UUID

func NewClientID() ClientID {
	return ClientID(uuid.New())
}

func (id ClientID) String() string {
	return uuid.UUID(id).String()
}

const (
	sessionSIDPrefix     = "RM_"
	participantSIDPrefix = "PA_"
)

func NewSessionSID() string {
	return sessionSIDPrefix + shortUUID()
}

func NewParticipantSID() string {
	return participantSIDPrefix + shortUUID()
}

func shortUUID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")[:12]
}
