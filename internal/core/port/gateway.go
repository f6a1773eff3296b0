package port

import (
	"context"

	"github.com/Wyydra/rendezvous/internal/core/domain"
)

// Presence is the transport's live directory of who is connected to a session.
type Presence interface {
	// ListPresence fails with domain.ErrNotFound when the session does not exist.
	ListPresence(ctx context.Context, session domain.SessionID) ([]domain.Identity, error)
}

// Messenger delivers bytes to one connected identity, best effort.
type Messenger interface {
	SendDirected(ctx context.Context, session domain.SessionID, from, to domain.Identity, data []byte) error
}

type EventSource interface {
	Subscribe(session domain.SessionID) (Subscription, error)
}

type SessionAdmin interface {
	// DeleteSession forcibly disconnects every present identity.
	DeleteSession(ctx context.Context, session domain.SessionID) error
}

type SessionLister interface {
	ListSessions(ctx context.Context) ([]domain.SessionInfo, error)
}

// RealTimeGateway is everything the server side needs from the transport.
type RealTimeGateway interface {
	Presence
	MetadataStore
	Messenger
	EventSource
	SessionAdmin
	SessionLister
}
