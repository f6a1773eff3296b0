package ws

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Wyydra/rendezvous/internal/core/domain"
	"github.com/Wyydra/rendezvous/internal/core/port"
	"github.com/rs/zerolog/log"
)

var ErrHubStopped = errors.New("hub stopped")

type member struct {
	client Client
	info   domain.Participant
}

type room struct {
	info      domain.SessionInfo
	members   map[domain.Identity]*member
	observers map[*subscription]struct{}
}

type joinRequest struct {
	session  domain.SessionID
	identity domain.Identity
	metadata string
	client   Client
	result   chan error
}

type leaveRequest struct {
	session  domain.SessionID
	identity domain.Identity
	client   Client
}

// Hub is the realtime transport: it owns the presence directory, the
// participant metadata and the directed data path of every session.
// Joins and leaves are serialised through Run; reads and metadata writes
// take the lock directly.
//
// implements port.RealTimeGateway
type Hub struct {
	mu         sync.RWMutex
	rooms      map[domain.SessionID]*room
	register   chan joinRequest
	unregister chan leaveRequest
	quit       chan struct{}
	stopOnce   sync.Once
}

var _ port.RealTimeGateway = (*Hub)(nil)

func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[domain.SessionID]*room),
		register:   make(chan joinRequest),
		unregister: make(chan leaveRequest),
		quit:       make(chan struct{}),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case <-h.quit:
			h.mu.Lock()
			for name, r := range h.rooms {
				h.closeRoomLocked(name, r)
			}
			h.mu.Unlock()
			return

		case req := <-h.register:
			req.result <- h.join(req)

		case req := <-h.unregister:
			h.leave(req)
		}
	}
}

func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.quit) })
}

// Join adds client to session under identity, creating the session if needed.
func (h *Hub) Join(ctx context.Context, session domain.SessionID, identity domain.Identity, metadata string, client Client) error {
	req := joinRequest{
		session:  session,
		identity: identity,
		metadata: metadata,
		client:   client,
		result:   make(chan error, 1),
	}
	select {
	case h.register <- req:
	case <-h.quit:
		return ErrHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	return <-req.result
}

// Leave removes client from session. Leaving with a connection that was
// already removed is a no-op.
func (h *Hub) Leave(session domain.SessionID, identity domain.Identity, client Client) {
	select {
	case h.unregister <- leaveRequest{session: session, identity: identity, client: client}:
	case <-h.quit:
	}
}

func (h *Hub) join(req joinRequest) error {
	if !req.session.Valid() || !req.identity.Valid() {
		return fmt.Errorf("%w: session and identity are required", domain.ErrInvalidArgument)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	r, ok := h.rooms[req.session]
	if !ok {
		r = &room{
			info: domain.SessionInfo{
				SID:       domain.NewSessionSID(),
				Name:      req.session,
				CreatedAt: time.Now(),
			},
			members:   make(map[domain.Identity]*member),
			observers: make(map[*subscription]struct{}),
		}
		h.rooms[req.session] = r
		log.Info().Str("session", req.session.String()).Str("sid", r.info.SID).Msg("Session created")
	}
	if _, exists := r.members[req.identity]; exists {
		return fmt.Errorf("%w: %s in %s", domain.ErrDuplicateIdentity, req.identity, req.session)
	}

	m := &member{
		client: req.client,
		info: domain.Participant{
			SID:      domain.NewParticipantSID(),
			Identity: req.identity,
			Metadata: req.metadata,
			JoinedAt: time.Now(),
		},
	}
	r.members[req.identity] = m

	if err := req.client.Deliver(domain.Event{Kind: domain.EventRoster, Session: req.session, Participants: r.participants()}); err != nil {
		log.Error().Err(err).Str("client_id", req.client.ID()).Msg("Error sending roster")
	}
	h.broadcastLocked(r, domain.Event{
		Kind:     domain.EventParticipantJoined,
		Session:  req.session,
		Identity: req.identity,
		SID:      m.info.SID,
		Metadata: req.metadata,
	}, req.identity)

	log.Info().Int("count", len(r.members)).Str("session", req.session.String()).Str("identity", req.identity.String()).Str("client_id", req.client.ID()).Msg("Client joined session")
	return nil
}

func (h *Hub) leave(req leaveRequest) {
	h.mu.Lock()
	defer h.mu.Unlock()

	r, ok := h.rooms[req.session]
	if !ok {
		return
	}
	m, ok := r.members[req.identity]
	if !ok || m.client != req.client {
		return
	}
	delete(r.members, req.identity)
	log.Info().Int("count", len(r.members)).Str("session", req.session.String()).Str("identity", req.identity.String()).Msg("Client left session")

	if len(r.members) == 0 {
		h.closeRoomLocked(req.session, r)
		return
	}
	h.broadcastLocked(r, domain.Event{Kind: domain.EventParticipantLeft, Session: req.session, Identity: req.identity}, "")
}

func (h *Hub) ListPresence(ctx context.Context, session domain.SessionID) ([]domain.Identity, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	r, ok := h.rooms[session]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", session, domain.ErrNotFound)
	}
	ids := make([]domain.Identity, 0, len(r.members))
	for id := range r.members {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (h *Hub) GetMetadata(ctx context.Context, session domain.SessionID, identity domain.Identity) (string, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	m, err := h.memberLocked(session, identity)
	if err != nil {
		return "", err
	}
	return m.info.Metadata, nil
}

func (h *Hub) SetMetadata(ctx context.Context, session domain.SessionID, identity domain.Identity, metadata string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	m, err := h.memberLocked(session, identity)
	if err != nil {
		return err
	}
	m.info.Metadata = metadata
	h.broadcastLocked(h.rooms[session], domain.Event{
		Kind:     domain.EventMetadataChanged,
		Session:  session,
		Identity: identity,
		Metadata: metadata,
	}, "")
	return nil
}

// SendDirected hands data to the recipient's connection. Delivery is best effort.
func (h *Hub) SendDirected(ctx context.Context, session domain.SessionID, from, to domain.Identity, data []byte) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	m, err := h.memberLocked(session, to)
	if err != nil {
		return err
	}
	ev := domain.Event{Kind: domain.EventData, Session: session, From: from, Payload: data}
	if err := m.client.Deliver(ev); err != nil {
		return fmt.Errorf("deliver to %s: %w", to, err)
	}
	return nil
}

func (h *Hub) DeleteSession(ctx context.Context, session domain.SessionID) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	r, ok := h.rooms[session]
	if !ok {
		return fmt.Errorf("session %s: %w", session, domain.ErrNotFound)
	}
	h.closeRoomLocked(session, r)
	return nil
}

func (h *Hub) ListSessions(ctx context.Context) ([]domain.SessionInfo, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]domain.SessionInfo, 0, len(h.rooms))
	for _, r := range h.rooms {
		info := r.info
		info.NumParticipants = len(r.members)
		out = append(out, info)
	}
	return out, nil
}

// Subscribe observes an existing session. The first event is a roster snapshot.
func (h *Hub) Subscribe(session domain.SessionID) (port.Subscription, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	r, ok := h.rooms[session]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", session, domain.ErrNotFound)
	}
	sub := &subscription{
		hub:     h,
		session: session,
		events:  make(chan domain.Event, subscriptionBuffer),
	}
	r.observers[sub] = struct{}{}
	sub.deliver(domain.Event{Kind: domain.EventRoster, Session: session, Participants: r.participants()})
	return sub, nil
}

func (h *Hub) unsubscribe(s *subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if r, ok := h.rooms[s.session]; ok {
		delete(r.observers, s)
	}
	s.closeLocked()
}

func (h *Hub) memberLocked(session domain.SessionID, identity domain.Identity) (*member, error) {
	r, ok := h.rooms[session]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", session, domain.ErrNotFound)
	}
	m, ok := r.members[identity]
	if !ok {
		return nil, fmt.Errorf("participant %s in %s: %w", identity, session, domain.ErrNotFound)
	}
	return m, nil
}

// broadcastLocked sends ev to every member except skip and to every observer.
func (h *Hub) broadcastLocked(r *room, ev domain.Event, skip domain.Identity) {
	for id, m := range r.members {
		if id == skip {
			continue
		}
		if err := m.client.Deliver(ev); err != nil {
			log.Error().Err(err).Str("client_id", m.client.ID()).Msg("Error sending event")
		}
	}
	for sub := range r.observers {
		sub.deliver(ev)
	}
}

// closeRoomLocked disconnects everyone in r and forgets the session.
func (h *Hub) closeRoomLocked(session domain.SessionID, r *room) {
	closed := domain.Event{Kind: domain.EventSessionClosed, Session: session}
	for _, m := range r.members {
		if err := m.client.Deliver(closed); err != nil {
			log.Error().Err(err).Str("client_id", m.client.ID()).Msg("Error sending event")
		}
		if err := m.client.Close(); err != nil {
			log.Error().Err(err).Str("client_id", m.client.ID()).Msg("Error closing client connection")
		}
	}
	for sub := range r.observers {
		sub.deliver(closed)
		sub.closeLocked()
	}
	delete(h.rooms, session)
	log.Info().Str("session", session.String()).Msg("Session closed")
}

func (r *room) participants() []domain.Participant {
	out := make([]domain.Participant, 0, len(r.members))
	for _, m := range r.members {
		out = append(out, m.info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Identity < out[j].Identity })
	return out
}
