package port

import "github.com/Wyydra/rendezvous/internal/core/domain"

// Subscription is a scoped view of a session's events. Close must be called
// once the subscriber stops observing; Events is closed afterwards.
type Subscription interface {
	Events() <-chan domain.Event
	Close() error
}
