package service

import (
	"context"
	"testing"
	"time"

	"github.com/Wyydra/rendezvous/internal/core/domain"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const lobby domain.SessionID = "lobby"

type lobbyFixture struct {
	t     *testing.T
	ctx   context.Context
	tr    *fakeTransport
	clock *clockwork.FakeClock
}

func newLobby(t *testing.T, people ...domain.Identity) *lobbyFixture {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	tr := newFakeTransport()
	for _, p := range people {
		tr.join(lobby, p, plainMD)
	}
	return &lobbyFixture{t: t, ctx: ctx, tr: tr, clock: clockwork.NewFakeClock()}
}

// start runs a negotiator for self and waits until it is subscribed.
func (f *lobbyFixture) start(self domain.Identity) *CallNegotiator {
	f.t.Helper()
	n := NewCallNegotiator(lobby, self, f.tr, f.tr, f.tr.as(self), WithClock(f.clock))
	go n.Run(f.ctx)
	_, err := n.State(f.ctx)
	require.NoError(f.t, err)
	return n
}

func nextNotice(t *testing.T, n *CallNegotiator) domain.CallNotice {
	t.Helper()
	select {
	case notice := <-n.Notices():
		return notice
	case <-time.After(2 * time.Second):
		t.Fatal("no notice")
		return domain.CallNotice{}
	}
}

func requireNoNotice(t *testing.T, n *CallNegotiator) {
	t.Helper()
	select {
	case notice := <-n.Notices():
		t.Fatalf("unexpected notice %+v", notice)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCallAcceptFlow(t *testing.T) {
	f := newLobby(t, "alice", "bob")
	alice := f.start("alice")
	bob := f.start("bob")

	call, err := alice.Initiate(f.ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, domain.OutgoingCall{Target: "bob", Session: "call-alice-bob"}, call)
	assert.Equal(t, domain.CallNotice{Kind: domain.NoticeCalling, Peer: "bob", Session: "call-alice-bob"}, nextNotice(t, alice))

	assert.Equal(t, domain.CallNotice{Kind: domain.NoticeRinging, Peer: "alice", Session: "call-alice-bob"}, nextNotice(t, bob))

	room, err := bob.Accept(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionID("call-alice-bob"), room)
	assert.Equal(t, domain.NoticeCallConnected, nextNotice(t, bob).Kind)

	connected := nextNotice(t, alice)
	assert.Equal(t, domain.CallNotice{Kind: domain.NoticeCallConnected, Peer: "bob", Session: "call-alice-bob"}, connected)

	snap, err := alice.State(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.CallConnected, snap.Outgoing)

	snap, err = bob.State(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.CallConnected, snap.Incoming)
	assert.Equal(t, domain.CallIdle, snap.Outgoing)
}

func TestCallTimesOut(t *testing.T) {
	f := newLobby(t, "alice", "bob")
	alice := f.start("alice")
	bob := f.start("bob")

	_, err := alice.Initiate(f.ctx, "bob")
	require.NoError(t, err)
	nextNotice(t, alice)
	nextNotice(t, bob)

	require.NoError(t, f.clock.BlockUntilContext(f.ctx, 1))
	f.clock.Advance(DefaultCallTimeout)

	assert.Equal(t, domain.CallNotice{Kind: domain.NoticeCallTimedOut, Peer: "bob", Session: "call-alice-bob"}, nextNotice(t, alice))
	snap, err := alice.State(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.CallIdle, snap.Outgoing)
	assert.Nil(t, snap.OutgoingCall)

	// A late accept refers to a call that no longer exists.
	_, err = bob.Accept(f.ctx)
	require.NoError(t, err)
	requireNoNotice(t, alice)

	snap, err = alice.State(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.CallIdle, snap.Outgoing)
}

func TestCallTimeoutOption(t *testing.T) {
	f := newLobby(t, "alice", "bob")
	alice := NewCallNegotiator(lobby, "alice", f.tr, f.tr, f.tr.as("alice"), WithClock(f.clock), WithCallTimeout(5*time.Second))
	go alice.Run(f.ctx)

	_, err := alice.Initiate(f.ctx, "bob")
	require.NoError(t, err)
	nextNotice(t, alice)

	require.NoError(t, f.clock.BlockUntilContext(f.ctx, 1))
	f.clock.Advance(4 * time.Second)
	requireNoNotice(t, alice)
	f.clock.Advance(time.Second)
	assert.Equal(t, domain.NoticeCallTimedOut, nextNotice(t, alice).Kind)
}

func TestCallCancel(t *testing.T) {
	f := newLobby(t, "alice", "bob")
	alice := f.start("alice")

	_, err := alice.Initiate(f.ctx, "bob")
	require.NoError(t, err)
	nextNotice(t, alice)

	require.NoError(t, alice.Cancel(f.ctx))
	assert.Equal(t, domain.NoticeCallCancelled, nextNotice(t, alice).Kind)

	f.clock.Advance(DefaultCallTimeout)
	requireNoNotice(t, alice)

	require.ErrorIs(t, alice.Cancel(f.ctx), domain.ErrNoPendingCall)
}

func TestCallReplaceKeepsOneTimer(t *testing.T) {
	f := newLobby(t, "alice", "bob", "carol")
	alice := f.start("alice")

	_, err := alice.Initiate(f.ctx, "bob")
	require.NoError(t, err)
	nextNotice(t, alice)

	f.clock.Advance(10 * time.Second)
	call, err := alice.Initiate(f.ctx, "carol")
	require.NoError(t, err)
	assert.Equal(t, domain.SessionID("call-alice-carol"), call.Session)
	nextNotice(t, alice)

	f.clock.Advance(20 * time.Second)
	requireNoNotice(t, alice)

	f.clock.Advance(10 * time.Second)
	assert.Equal(t, domain.CallNotice{Kind: domain.NoticeCallTimedOut, Peer: "carol", Session: "call-alice-carol"}, nextNotice(t, alice))
	requireNoNotice(t, alice)
}

func TestIncomingLastWins(t *testing.T) {
	f := newLobby(t, "alice", "bob", "carol")
	alice := f.start("alice")
	carol := f.start("carol")
	bob := f.start("bob")

	_, err := alice.Initiate(f.ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, domain.Identity("alice"), nextNotice(t, bob).Peer)

	_, err = carol.Initiate(f.ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, domain.Identity("carol"), nextNotice(t, bob).Peer)

	room, err := bob.Accept(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionID("call-carol-bob"), room)

	nextNotice(t, carol)
	assert.Equal(t, domain.NoticeCallConnected, nextNotice(t, carol).Kind)
}

func TestReject(t *testing.T) {
	f := newLobby(t, "alice", "bob")
	alice := f.start("alice")
	bob := f.start("bob")

	require.ErrorIs(t, bob.Reject(f.ctx), domain.ErrNoPendingCall)

	_, err := alice.Initiate(f.ctx, "bob")
	require.NoError(t, err)
	nextNotice(t, bob)

	require.NoError(t, bob.Reject(f.ctx))
	assert.Equal(t, domain.NoticeCallRejected, nextNotice(t, bob).Kind)

	_, err = bob.Accept(f.ctx)
	require.ErrorIs(t, err, domain.ErrNoPendingCall)

	snap, err := alice.State(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.CallCalling, snap.Outgoing, "caller is not told about a rejection")
}

func TestInitiateInvalidTargets(t *testing.T) {
	f := newLobby(t, "alice")
	alice := f.start("alice")

	_, err := alice.Initiate(f.ctx, "alice")
	require.ErrorIs(t, err, domain.ErrInvalidArgument)

	_, err = alice.Initiate(f.ctx, "")
	require.ErrorIs(t, err, domain.ErrInvalidArgument)

	_, err = alice.Initiate(f.ctx, "zed")
	require.ErrorIs(t, err, domain.ErrNotFound)

	snap, err := alice.State(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.CallIdle, snap.Outgoing)
}

func TestNegotiatorStopsWithContext(t *testing.T) {
	f := newLobby(t, "alice", "bob")
	ctx, cancel := context.WithCancel(f.ctx)
	alice := NewCallNegotiator(lobby, "alice", f.tr, f.tr, f.tr.as("alice"), WithClock(f.clock))
	done := make(chan error, 1)
	go func() { done <- alice.Run(ctx) }()

	_, err := alice.Initiate(ctx, "bob")
	require.NoError(t, err)
	require.NoError(t, f.clock.BlockUntilContext(ctx, 1))

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	require.NoError(t, f.clock.BlockUntilContext(f.ctx, 0))
	assert.Zero(t, f.tr.subscriberCount(lobby))

	_, err = alice.State(f.ctx)
	assert.ErrorIs(t, err, ErrNegotiatorStopped)
}

func TestAcceptSendFailureKeepsRinging(t *testing.T) {
	f := newLobby(t, "alice", "bob")
	alice := f.start("alice")
	bob := f.start("bob")

	_, err := alice.Initiate(f.ctx, "bob")
	require.NoError(t, err)
	nextNotice(t, bob)

	f.tr.leave(lobby, "alice")
	_, err = bob.Accept(f.ctx)
	require.ErrorIs(t, err, domain.ErrNotFound)
	assert.NotErrorIs(t, err, domain.ErrNoPendingCall)

	snap, err := bob.State(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.CallRinging, snap.Incoming)
	require.NotNil(t, snap.IncomingCall)
	assert.Equal(t, domain.Identity("alice"), snap.IncomingCall.From)
}
