package rtc

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Wyydra/rendezvous/internal/adapter/wire"
	"github.com/Wyydra/rendezvous/internal/core/domain"
	"github.com/Wyydra/rendezvous/internal/core/port"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	subscriptionBuffer = 64
	writeWait          = 10 * time.Second
)

var ErrConnClosed = errors.New("connection closed")

// Conn is a participant's websocket into one session. It mirrors the
// session roster from server events, so presence and metadata reads are local.
type Conn struct {
	session domain.SessionID
	self    domain.Identity
	ws      *websocket.Conn
	writeMu sync.Mutex

	mu     sync.RWMutex
	roster map[domain.Identity]domain.Participant
	subs   map[*connSubscription]struct{}
	closed bool

	ready     chan struct{}
	readyOnce sync.Once
	done      chan struct{}
}

var (
	_ port.Presence       = (*Conn)(nil)
	_ port.MetadataReader = (*Conn)(nil)
	_ port.Messenger      = (*Conn)(nil)
	_ port.EventSource    = (*Conn)(nil)
)

// Dial connects to wsURL and waits for the initial roster.
func Dial(ctx context.Context, wsURL string, session domain.SessionID, self domain.Identity) (*Conn, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w: %w", session, domain.ErrAuthorityUnavailable, err)
	}

	c := &Conn{
		session: session,
		self:    self,
		ws:      ws,
		roster:  make(map[domain.Identity]domain.Participant),
		subs:    make(map[*connSubscription]struct{}),
		ready:   make(chan struct{}),
		done:    make(chan struct{}),
	}
	go c.readLoop()

	select {
	case <-c.ready:
		return c, nil
	case <-c.done:
		return nil, fmt.Errorf("join %s: %w", session, ErrConnClosed)
	case <-ctx.Done():
		c.Close()
		return nil, ctx.Err()
	}
}

func (c *Conn) Session() domain.SessionID {
	return c.session
}

// Done is closed once the connection is gone, including when the session is deleted.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

func (c *Conn) Participants() []domain.Participant {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.participantsLocked()
}

func (c *Conn) ListPresence(ctx context.Context, session domain.SessionID) ([]domain.Identity, error) {
	if err := c.check(session); err != nil {
		return nil, err
	}
	ps := c.Participants()
	ids := make([]domain.Identity, 0, len(ps))
	for _, p := range ps {
		ids = append(ids, p.Identity)
	}
	return ids, nil
}

func (c *Conn) GetMetadata(ctx context.Context, session domain.SessionID, identity domain.Identity) (string, error) {
	if err := c.check(session); err != nil {
		return "", err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	p, ok := c.roster[identity]
	if !ok {
		return "", fmt.Errorf("participant %s in %s: %w", identity, session, domain.ErrNotFound)
	}
	return p.Metadata, nil
}

func (c *Conn) SendDirected(ctx context.Context, session domain.SessionID, from, to domain.Identity, data []byte) error {
	if err := c.check(session); err != nil {
		return err
	}
	if from != c.self {
		return fmt.Errorf("%w: cannot send as %s", domain.ErrInvalidArgument, from)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.ws.WriteJSON(wire.ClientFrame{Type: wire.ClientFrameData, To: []string{to.String()}, Payload: data}); err != nil {
		return fmt.Errorf("send to %s: %w", to, err)
	}
	return nil
}

// Subscribe starts with a roster snapshot of the local mirror.
func (c *Conn) Subscribe(session domain.SessionID) (port.Subscription, error) {
	if err := c.check(session); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, fmt.Errorf("session %s: %w", session, ErrConnClosed)
	}

	sub := &connSubscription{conn: c, events: make(chan domain.Event, subscriptionBuffer)}
	sub.events <- domain.Event{Kind: domain.EventRoster, Session: c.session, Participants: c.participantsLocked()}
	c.subs[sub] = struct{}{}
	return sub, nil
}

func (c *Conn) Close() error {
	c.writeMu.Lock()
	c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	c.writeMu.Unlock()
	return c.ws.Close()
}

func (c *Conn) check(session domain.SessionID) error {
	if session != c.session {
		return fmt.Errorf("session %s: %w", session, domain.ErrNotFound)
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return fmt.Errorf("session %s: %w", session, ErrConnClosed)
	}
	return nil
}

func (c *Conn) readLoop() {
	defer c.shutdown()

	for {
		var frame wire.EventFrame
		if err := c.ws.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Str("session", c.session.String()).Msg("Connection lost")
			}
			return
		}
		c.apply(frame.ToEvent(c.session))
	}
}

// apply updates the roster and then fans the event out to subscribers.
func (c *Conn) apply(ev domain.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch ev.Kind {
	case domain.EventRoster:
		c.roster = make(map[domain.Identity]domain.Participant, len(ev.Participants))
		for _, p := range ev.Participants {
			c.roster[p.Identity] = p
		}
		c.readyOnce.Do(func() { close(c.ready) })
	case domain.EventParticipantJoined:
		c.roster[ev.Identity] = domain.Participant{SID: ev.SID, Identity: ev.Identity, Metadata: ev.Metadata}
	case domain.EventParticipantLeft:
		delete(c.roster, ev.Identity)
	case domain.EventMetadataChanged:
		if p, ok := c.roster[ev.Identity]; ok {
			p.Metadata = ev.Metadata
			c.roster[ev.Identity] = p
		}
	case domain.EventSessionClosed:
		c.roster = make(map[domain.Identity]domain.Participant)
	case domain.EventData:
	default:
		log.Debug().Str("event", string(ev.Kind)).Msg("Ignoring unknown event")
		return
	}

	for sub := range c.subs {
		select {
		case sub.events <- ev:
		default:
			log.Warn().Str("session", c.session.String()).Str("event", string(ev.Kind)).Msg("Subscriber too slow, dropping event")
		}
	}
}

func (c *Conn) shutdown() {
	c.mu.Lock()
	c.closed = true
	for sub := range c.subs {
		close(sub.events)
		delete(c.subs, sub)
	}
	c.mu.Unlock()
	c.ws.Close()
	close(c.done)
}

func (c *Conn) participantsLocked() []domain.Participant {
	out := make([]domain.Participant, 0, len(c.roster))
	for _, p := range c.roster {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Identity < out[j].Identity })
	return out
}

type connSubscription struct {
	conn   *Conn
	events chan domain.Event
}

func (s *connSubscription) Events() <-chan domain.Event {
	return s.events
}

func (s *connSubscription) Close() error {
	s.conn.mu.Lock()
	defer s.conn.mu.Unlock()
	if _, ok := s.conn.subs[s]; ok {
		delete(s.conn.subs, s)
		close(s.events)
	}
	return nil
}
