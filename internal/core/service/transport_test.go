package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/Wyydra/rendezvous/internal/core/domain"
	"github.com/Wyydra/rendezvous/internal/core/port"
)

// fakeTransport is an in-memory presence directory, metadata store and
// directed message bus shared by every participant of a test.
type fakeTransport struct {
	mu       sync.Mutex
	sessions map[domain.SessionID]*fakeSession
	listErr  error
	getErr   error
	writes   int
	deleted  []domain.SessionID
}

type fakeSession struct {
	metadata map[domain.Identity]string
	subs     map[*fakeSub]struct{}
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{sessions: make(map[domain.SessionID]*fakeSession)}
}

func (t *fakeTransport) join(session domain.SessionID, identity domain.Identity, metadata string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.sessions[session]
	if !ok {
		s = &fakeSession{
			metadata: make(map[domain.Identity]string),
			subs:     make(map[*fakeSub]struct{}),
		}
		t.sessions[session] = s
	}
	s.metadata[identity] = metadata
	t.broadcastLocked(s, domain.Event{Kind: domain.EventParticipantJoined, Session: session, Identity: identity, Metadata: metadata})
}

func (t *fakeTransport) leave(session domain.SessionID, identity domain.Identity) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.sessions[session]
	if !ok {
		return
	}
	delete(s.metadata, identity)
	t.broadcastLocked(s, domain.Event{Kind: domain.EventParticipantLeft, Session: session, Identity: identity})
}

func (t *fakeTransport) metadata(session domain.SessionID, identity domain.Identity) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sessions[session].metadata[identity]
}

func (t *fakeTransport) writeCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.writes
}

func (t *fakeTransport) ListPresence(ctx context.Context, session domain.SessionID) ([]domain.Identity, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.listErr != nil {
		return nil, t.listErr
	}
	s, ok := t.sessions[session]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", session, domain.ErrNotFound)
	}
	ids := make([]domain.Identity, 0, len(s.metadata))
	for id := range s.metadata {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (t *fakeTransport) GetMetadata(ctx context.Context, session domain.SessionID, identity domain.Identity) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.getErr != nil {
		return "", t.getErr
	}
	s, ok := t.sessions[session]
	if !ok {
		return "", domain.ErrNotFound
	}
	md, ok := s.metadata[identity]
	if !ok {
		return "", domain.ErrNotFound
	}
	return md, nil
}

func (t *fakeTransport) SetMetadata(ctx context.Context, session domain.SessionID, identity domain.Identity, metadata string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.sessions[session]
	if !ok {
		return domain.ErrNotFound
	}
	if _, ok := s.metadata[identity]; !ok {
		return domain.ErrNotFound
	}
	t.writes++
	s.metadata[identity] = metadata
	t.broadcastLocked(s, domain.Event{Kind: domain.EventMetadataChanged, Session: session, Identity: identity, Metadata: metadata})
	return nil
}

func (t *fakeTransport) SendDirected(ctx context.Context, session domain.SessionID, from, to domain.Identity, data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.sessions[session]
	if !ok {
		return domain.ErrNotFound
	}
	if _, ok := s.metadata[to]; !ok {
		return domain.ErrNotFound
	}
	ev := domain.Event{Kind: domain.EventData, Session: session, From: from, Payload: data}
	for sub := range s.subs {
		if sub.owner == to {
			sub.events <- ev
		}
	}
	return nil
}

func (t *fakeTransport) DeleteSession(ctx context.Context, session domain.SessionID) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.sessions[session]
	if !ok {
		return domain.ErrNotFound
	}
	for sub := range s.subs {
		sub.events <- domain.Event{Kind: domain.EventSessionClosed, Session: session}
		close(sub.events)
	}
	delete(t.sessions, session)
	t.deleted = append(t.deleted, session)
	return nil
}

func (t *fakeTransport) ListSessions(ctx context.Context) ([]domain.SessionInfo, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.listErr != nil {
		return nil, t.listErr
	}
	var out []domain.SessionInfo
	for name, s := range t.sessions {
		out = append(out, domain.SessionInfo{Name: name, NumParticipants: len(s.metadata)})
	}
	return out, nil
}

// as returns the event source seen by one connected identity: presence
// events plus the data addressed to it.
func (t *fakeTransport) as(identity domain.Identity) port.EventSource {
	return fakeSource{t: t, owner: identity}
}

func (t *fakeTransport) broadcastLocked(s *fakeSession, ev domain.Event) {
	for sub := range s.subs {
		sub.events <- ev
	}
}

type fakeSource struct {
	t     *fakeTransport
	owner domain.Identity
}

func (f fakeSource) Subscribe(session domain.SessionID) (port.Subscription, error) {
	f.t.mu.Lock()
	defer f.t.mu.Unlock()

	s, ok := f.t.sessions[session]
	if !ok {
		return nil, domain.ErrNotFound
	}
	sub := &fakeSub{t: f.t, session: session, owner: f.owner, events: make(chan domain.Event, 64)}
	var ps []domain.Participant
	for id, md := range s.metadata {
		ps = append(ps, domain.Participant{Identity: id, Metadata: md})
	}
	sub.events <- domain.Event{Kind: domain.EventRoster, Session: session, Participants: ps}
	s.subs[sub] = struct{}{}
	return sub, nil
}

type fakeSub struct {
	t       *fakeTransport
	session domain.SessionID
	owner   domain.Identity
	events  chan domain.Event
}

func (s *fakeSub) Events() <-chan domain.Event {
	return s.events
}

func (s *fakeSub) Close() error {
	s.t.mu.Lock()
	defer s.t.mu.Unlock()

	if sess, ok := s.t.sessions[s.session]; ok {
		if _, ok := sess.subs[s]; ok {
			delete(sess.subs, s)
			close(s.events)
		}
	}
	return nil
}

func (t *fakeTransport) subscriberCount(session domain.SessionID) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok := t.sessions[session]; ok {
		return len(s.subs)
	}
	return 0
}

var errBroken = errors.New("transport broken")

var (
	_ port.Presence      = (*fakeTransport)(nil)
	_ port.MetadataStore = (*fakeTransport)(nil)
	_ port.Messenger     = (*fakeTransport)(nil)
	_ port.SessionAdmin  = (*fakeTransport)(nil)
	_ port.SessionLister = (*fakeTransport)(nil)
)
