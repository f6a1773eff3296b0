package ws

import (
	"sync"

	"github.com/Wyydra/rendezvous/internal/core/domain"
	"github.com/rs/zerolog/log"
)

const subscriptionBuffer = 64

// subscription is an in-process observer of one session. It does not appear
// in the presence directory.
type subscription struct {
	hub     *Hub
	session domain.SessionID
	events  chan domain.Event
	once    sync.Once
}

func (s *subscription) Events() <-chan domain.Event {
	return s.events
}

func (s *subscription) Close() error {
	s.hub.unsubscribe(s)
	return nil
}

// deliver and closeLocked are only called with the hub lock held for writing.
func (s *subscription) deliver(ev domain.Event) {
	select {
	case s.events <- ev:
	default:
		log.Warn().Str("session", s.session.String()).Str("event", string(ev.Kind)).Msg("Subscriber too slow, dropping event")
	}
}

func (s *subscription) closeLocked() {
	s.once.Do(func() { close(s.events) })
}
