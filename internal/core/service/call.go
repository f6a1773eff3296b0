package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/Wyydra/rendezvous/internal/core/domain"
	"github.com/Wyydra/rendezvous/internal/core/port"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const DefaultCallTimeout = 30 * time.Second

var ErrNegotiatorStopped = errors.New("call negotiator stopped")

// CallNegotiator runs the request/accept/timeout handshake for one local identity.
// Inbound envelopes, user commands and the outgoing timer are all handled by
// the Run goroutine, so the slot fields below are never shared.
type CallNegotiator struct {
	self     domain.Identity
	lobby    domain.SessionID
	channel  *NegotiationChannel
	presence port.Presence
	events   port.EventSource
	clock    clockwork.Clock
	timeout  time.Duration
	logger   zerolog.Logger

	commands chan func()
	notices  chan domain.CallNotice
	done     chan struct{}

	outgoing     domain.CallState
	outgoingCall *domain.OutgoingCall
	incoming     domain.CallState
	incomingCall *domain.IncomingCall
	timer        clockwork.Timer
}

type NegotiatorOption func(*CallNegotiator)

func WithCallTimeout(d time.Duration) NegotiatorOption {
	return func(n *CallNegotiator) {
		if d > 0 {
			n.timeout = d
		}
	}
}

func WithClock(c clockwork.Clock) NegotiatorOption {
	return func(n *CallNegotiator) {
		n.clock = c
	}
}

func NewCallNegotiator(lobby domain.SessionID, self domain.Identity, presence port.Presence, messenger port.Messenger, events port.EventSource, opts ...NegotiatorOption) *CallNegotiator {
	n := &CallNegotiator{
		self:     self,
		lobby:    lobby,
		channel:  NewNegotiationChannel(lobby, self, messenger),
		presence: presence,
		events:   events,
		clock:    clockwork.NewRealClock(),
		timeout:  DefaultCallTimeout,
		logger:   log.With().Str("session", lobby.String()).Str("identity", self.String()).Logger(),
		commands: make(chan func()),
		notices:  make(chan domain.CallNotice, 32),
		done:     make(chan struct{}),
		outgoing: domain.CallIdle,
		incoming: domain.CallIdle,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Notices delivers user-visible negotiation outcomes. It is closed when Run returns.
func (n *CallNegotiator) Notices() <-chan domain.CallNotice {
	return n.notices
}

// Run processes events until ctx is done or the lobby subscription ends.
// Any pending outgoing timer is stopped on the way out.
func (n *CallNegotiator) Run(ctx context.Context) error {
	defer close(n.notices)
	defer close(n.done)
	defer n.stopTimer()

	sub, err := n.events.Subscribe(n.lobby)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", n.lobby, err)
	}
	defer sub.Close()

	for {
		var timeout <-chan time.Time
		if n.timer != nil {
			timeout = n.timer.Chan()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-sub.Events():
			if !ok {
				return nil
			}
			n.handleEvent(ev)

		case cmd := <-n.commands:
			cmd()

		case <-timeout:
			n.handleTimeout()
		}
	}
}

// Initiate calls target, replacing any call already in progress.
func (n *CallNegotiator) Initiate(ctx context.Context, target domain.Identity) (domain.OutgoingCall, error) {
	var call domain.OutgoingCall
	err := n.do(ctx, func() error {
		if !target.Valid() || target == n.self {
			return fmt.Errorf("%w: cannot call %q", domain.ErrInvalidArgument, target)
		}
		present, err := n.presence.ListPresence(ctx, n.lobby)
		if err != nil {
			return fmt.Errorf("list presence: %w", err)
		}
		if !slices.Contains(present, target) {
			return fmt.Errorf("%w: %s is not in %s", domain.ErrNotFound, target, n.lobby)
		}

		room := domain.CallSessionFor(n.self, target)
		if err := n.channel.Send(ctx, target, domain.NewCallRequest(room)); err != nil {
			return err
		}

		if n.outgoing == domain.CallCalling {
			n.logger.Debug().Str("target", n.outgoingCall.Target.String()).Msg("Replacing pending call")
		}
		n.stopTimer()
		n.outgoing = domain.CallCalling
		n.outgoingCall = &domain.OutgoingCall{Target: target, Session: room}
		n.timer = n.clock.NewTimer(n.timeout)
		call = *n.outgoingCall

		n.logger.Info().Str("target", target.String()).Str("room", room.String()).Msg("Calling")
		n.notify(domain.CallNotice{Kind: domain.NoticeCalling, Peer: target, Session: room})
		return nil
	})
	return call, err
}

// Cancel abandons the pending outgoing call. The callee is not told.
func (n *CallNegotiator) Cancel(ctx context.Context) error {
	return n.do(ctx, func() error {
		if n.outgoing != domain.CallCalling {
			return domain.ErrNoPendingCall
		}
		call := *n.outgoingCall
		n.resetOutgoing()
		n.notify(domain.CallNotice{Kind: domain.NoticeCallCancelled, Peer: call.Target, Session: call.Session})
		return nil
	})
}

// Accept answers the ringing call and returns the session to join.
func (n *CallNegotiator) Accept(ctx context.Context) (domain.SessionID, error) {
	var room domain.SessionID
	err := n.do(ctx, func() error {
		if n.incoming != domain.CallRinging {
			return domain.ErrNoPendingCall
		}
		call := *n.incomingCall
		if err := n.channel.Send(ctx, call.From, domain.NewCallAccept(call.Session)); err != nil {
			return err
		}
		n.incoming = domain.CallConnected
		room = call.Session

		n.logger.Info().Str("from", call.From.String()).Str("room", room.String()).Msg("Call accepted")
		n.notify(domain.CallNotice{Kind: domain.NoticeCallConnected, Peer: call.From, Session: room})
		return nil
	})
	return room, err
}

// Reject dismisses the ringing call. The caller is not told and times out on its own.
func (n *CallNegotiator) Reject(ctx context.Context) error {
	return n.do(ctx, func() error {
		if n.incoming != domain.CallRinging {
			return domain.ErrNoPendingCall
		}
		call := *n.incomingCall
		n.incoming = domain.CallIdle
		n.incomingCall = nil
		n.notify(domain.CallNotice{Kind: domain.NoticeCallRejected, Peer: call.From, Session: call.Session})
		return nil
	})
}

func (n *CallNegotiator) State(ctx context.Context) (domain.CallSnapshot, error) {
	var snap domain.CallSnapshot
	err := n.do(ctx, func() error {
		snap = domain.CallSnapshot{Outgoing: n.outgoing, Incoming: n.incoming}
		if n.outgoingCall != nil {
			c := *n.outgoingCall
			snap.OutgoingCall = &c
		}
		if n.incomingCall != nil {
			c := *n.incomingCall
			snap.IncomingCall = &c
		}
		return nil
	})
	return snap, err
}

func (n *CallNegotiator) handleEvent(ev domain.Event) {
	env, ok := n.channel.Decode(ev)
	if !ok {
		return
	}

	switch env.Type {
	case domain.EnvelopeCallRequest:
		if n.incoming == domain.CallRinging {
			n.logger.Debug().Str("previous", n.incomingCall.From.String()).Str("from", ev.From.String()).Msg("Newer call request replaces pending one")
		}
		n.incoming = domain.CallRinging
		n.incomingCall = &domain.IncomingCall{From: ev.From, Session: env.Room}
		n.notify(domain.CallNotice{Kind: domain.NoticeRinging, Peer: ev.From, Session: env.Room})

	case domain.EnvelopeCallAccept:
		if err := n.acceptOutgoing(ev.From, env.Room); err != nil {
			n.logger.Debug().Err(err).Str("from", ev.From.String()).Str("room", env.Room.String()).Msg("Discarding call accept")
		}
	}
}

func (n *CallNegotiator) acceptOutgoing(from domain.Identity, room domain.SessionID) error {
	if n.outgoing != domain.CallCalling || n.outgoingCall.Session != room {
		return domain.ErrStale
	}
	n.stopTimer()
	n.outgoing = domain.CallConnected

	n.logger.Info().Str("from", from.String()).Str("room", room.String()).Msg("Call connected")
	n.notify(domain.CallNotice{Kind: domain.NoticeCallConnected, Peer: n.outgoingCall.Target, Session: room})
	return nil
}

func (n *CallNegotiator) handleTimeout() {
	n.timer = nil
	if n.outgoing != domain.CallCalling {
		return
	}
	call := *n.outgoingCall
	n.resetOutgoing()

	n.logger.Info().Str("target", call.Target.String()).Msg("Call timed out")
	n.notify(domain.CallNotice{Kind: domain.NoticeCallTimedOut, Peer: call.Target, Session: call.Session})
}

func (n *CallNegotiator) resetOutgoing() {
	n.stopTimer()
	n.outgoing = domain.CallIdle
	n.outgoingCall = nil
}

func (n *CallNegotiator) stopTimer() {
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
}

func (n *CallNegotiator) notify(notice domain.CallNotice) {
	select {
	case n.notices <- notice:
	default:
		n.logger.Warn().Str("kind", string(notice.Kind)).Msg("Notice buffer full, dropping notice")
	}
}

// do runs fn on the Run goroutine and waits for its result.
func (n *CallNegotiator) do(ctx context.Context, fn func() error) error {
	errc := make(chan error, 1)
	select {
	case n.commands <- func() { errc <- fn() }:
	case <-n.done:
		return ErrNegotiatorStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	return <-errc
}
