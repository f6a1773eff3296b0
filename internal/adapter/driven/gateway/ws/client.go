package ws

import "github.com/Wyydra/rendezvous/internal/core/domain"

// Client is one participant connection. Deliver must not block: the hub
// calls it while holding its lock.
type Client interface {
	ID() string
	Deliver(ev domain.Event) error
	Close() error
}
