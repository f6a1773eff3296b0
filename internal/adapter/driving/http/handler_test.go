package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Wyydra/rendezvous/internal/adapter/driven/gateway/ws"
	"github.com/Wyydra/rendezvous/internal/adapter/driven/token"
	"github.com/Wyydra/rendezvous/internal/adapter/wire"
	"github.com/Wyydra/rendezvous/internal/core/domain"
	"github.com/Wyydra/rendezvous/internal/core/service"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopClient struct{ id string }

func (c nopClient) ID() string                    { return c.id }
func (c nopClient) Deliver(ev domain.Event) error { return nil }
func (c nopClient) Close() error                  { return nil }

type fixture struct {
	hub    *ws.Hub
	issuer *token.JWTIssuer
	router http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := clockwork.NewRealClock()
	issuer, err := token.NewJWTIssuer("devkey", "devsecret", time.Hour, clock)
	require.NoError(t, err)

	hub := ws.NewHub()
	go hub.Run()
	t.Cleanup(hub.Stop)

	authority := service.NewRoleAuthority(hub, hub, hub)
	h := NewHandler(hub,
		service.NewJoinService(authority, issuer),
		authority,
		service.NewSessionDirectory(hub, "lobby", clock, 0),
		issuer, "")
	return &fixture{hub: hub, issuer: issuer, router: h.NewRouter()}
}

func (f *fixture) join(t *testing.T, session domain.SessionID, identity domain.Identity, metadata string) {
	t.Helper()
	require.NoError(t, f.hub.Join(context.Background(), session, identity, metadata, nopClient{id: identity.String()}))
}

func (f *fixture) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func TestGetToken(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/token?room=standup&username=alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	grant, err := f.issuer.Verify(decode[wire.TokenResponse](t, rec).Token)
	require.NoError(t, err)
	assert.Equal(t, domain.Identity("alice"), grant.Identity)
	assert.Equal(t, domain.SessionID("standup"), grant.Session)
	assert.JSONEq(t, `{"roles":["admin"]}`, grant.Metadata)

	f.join(t, "standup", "alice", grant.Metadata)
	rec = f.do(t, http.MethodGet, "/api/token?room=standup&username=bob", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	grant, err = f.issuer.Verify(decode[wire.TokenResponse](t, rec).Token)
	require.NoError(t, err)
	assert.JSONEq(t, `{"roles":[]}`, grant.Metadata)
}

func TestGetTokenMissingParams(t *testing.T) {
	f := newFixture(t)

	for _, target := range []string{"/api/token?username=alice", "/api/token?room=standup", "/api/token?room=%20&username=alice"} {
		rec := f.do(t, http.MethodGet, target, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
		assert.NotEmpty(t, decode[wire.ErrorResponse](t, rec).Error)
	}
}

func TestListRooms(t *testing.T) {
	f := newFixture(t)
	f.join(t, "lobby", "alice", "")
	f.join(t, "retro", "dave", "")
	f.join(t, "retro", "erin", "")

	rec := f.do(t, http.MethodGet, "/api/rooms", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rooms := decode[[]wire.SessionDTO](t, rec)
	require.Len(t, rooms, 1)
	assert.Equal(t, "retro", rooms[0].Name)
	assert.Equal(t, 2, rooms[0].NumParticipants)
	assert.NotEmpty(t, rooms[0].SID)
}

func TestClaimAdmin(t *testing.T) {
	f := newFixture(t)
	f.join(t, "retro", "dave", `{"roles":["admin"]}`)
	f.join(t, "retro", "erin", `{"roles":[]}`)

	rec := f.do(t, http.MethodPost, "/api/room/claim-admin", wire.RoomRequest{Room: "retro", Identity: "erin"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, wire.RoomResponse{Success: false, Message: "Admin already exists"}, decode[wire.RoomResponse](t, rec))

	f.hub.Leave("retro", "dave", nopClient{id: "dave"})
	require.Eventually(t, func() bool {
		ids, _ := f.hub.ListPresence(context.Background(), "retro")
		return len(ids) == 1
	}, time.Second, 5*time.Millisecond)

	rec = f.do(t, http.MethodPost, "/api/room/claim-admin", wire.RoomRequest{Room: "retro", Identity: "erin"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, wire.RoomResponse{Success: true}, decode[wire.RoomResponse](t, rec))

	md, err := f.hub.GetMetadata(context.Background(), "retro", "erin")
	require.NoError(t, err)
	assert.JSONEq(t, `{"roles":["admin"]}`, md)
}

func TestClaimAdminUnknownRoom(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/room/claim-admin", wire.RoomRequest{Room: "nowhere", Identity: "erin"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPromote(t *testing.T) {
	f := newFixture(t)
	f.join(t, "retro", "dave", `{"roles":["admin"]}`)
	f.join(t, "retro", "erin", `{"roles":[]}`)
	f.join(t, "retro", "frank", `{"roles":[]}`)

	rec := f.do(t, http.MethodPost, "/api/room/promote", wire.RoomRequest{Room: "retro", Identity: "erin", TargetIdentity: "frank"})
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Unauthorized", decode[wire.ErrorResponse](t, rec).Error)

	rec = f.do(t, http.MethodPost, "/api/room/promote", wire.RoomRequest{Room: "retro", Identity: "dave", TargetIdentity: "frank"})
	require.Equal(t, http.StatusOK, rec.Code)
	md, err := f.hub.GetMetadata(context.Background(), "retro", "frank")
	require.NoError(t, err)
	assert.JSONEq(t, `{"roles":["admin"]}`, md)

	rec = f.do(t, http.MethodPost, "/api/room/promote", wire.RoomRequest{Room: "retro", Identity: "dave"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEndRoom(t *testing.T) {
	f := newFixture(t)
	f.join(t, "retro", "dave", `{"roles":["admin"]}`)
	f.join(t, "retro", "erin", `{"roles":[]}`)

	rec := f.do(t, http.MethodPost, "/api/room/end", wire.RoomRequest{Room: "retro", Identity: "erin"})
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/room/end", wire.RoomRequest{Room: "retro", Identity: "dave"})
	require.Equal(t, http.StatusOK, rec.Code)

	_, err := f.hub.ListPresence(context.Background(), "retro")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRoomRequestValidation(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/api/room/end", bytes.NewBufferString("{"))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/room/end", wire.RoomRequest{Room: "retro"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServeWSRequiresToken(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/ws?access_token=garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
