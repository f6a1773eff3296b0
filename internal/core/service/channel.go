package service

import (
	"context"
	"fmt"

	"github.com/Wyydra/rendezvous/internal/core/domain"
	"github.com/Wyydra/rendezvous/internal/core/port"
	"github.com/rs/zerolog/log"
)

// NegotiationChannel sends and decodes call envelopes for one local identity.
type NegotiationChannel struct {
	session   domain.SessionID
	self      domain.Identity
	messenger port.Messenger
}

func NewNegotiationChannel(session domain.SessionID, self domain.Identity, messenger port.Messenger) *NegotiationChannel {
	return &NegotiationChannel{
		session:   session,
		self:      self,
		messenger: messenger,
	}
}

// Send addresses env to a single identity; it is never broadcast.
func (c *NegotiationChannel) Send(ctx context.Context, to domain.Identity, env domain.Envelope) error {
	data, err := env.Marshal()
	if err != nil {
		return fmt.Errorf("encode %s: %w", env.Type, err)
	}
	if err := c.messenger.SendDirected(ctx, c.session, c.self, to, data); err != nil {
		return fmt.Errorf("send %s to %s: %w", env.Type, to, err)
	}
	return nil
}

// Decode extracts an envelope from a data event. Anything else is dropped.
func (c *NegotiationChannel) Decode(ev domain.Event) (domain.Envelope, bool) {
	if ev.Kind != domain.EventData || ev.From == c.self {
		return domain.Envelope{}, false
	}
	env, err := domain.ParseEnvelope(ev.Payload)
	if err != nil {
		log.Warn().Err(err).Str("from", ev.From.String()).Msg("Dropping negotiation payload")
		return domain.Envelope{}, false
	}
	return env, true
}
