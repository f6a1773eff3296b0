// Package rtc is the participant side of the transport: a REST client for the
// token and authority endpoints and a websocket connection to one session.
package rtc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Wyydra/rendezvous/internal/adapter/wire"
	"github.com/Wyydra/rendezvous/internal/core/domain"
)

const defaultHTTPTimeout = 10 * time.Second

// APIClient talks to the server's /api routes.
type APIClient struct {
	base *url.URL
	http *http.Client
}

func NewAPIClient(baseURL string, hc *http.Client) (*APIClient, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: invalid server url %q", domain.ErrConfiguration, baseURL)
	}
	if hc == nil {
		hc = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &APIClient{base: u, http: hc}, nil
}

// Token fetches a join token for identity in session.
func (c *APIClient) Token(ctx context.Context, session domain.SessionID, identity domain.Identity) (string, error) {
	q := url.Values{}
	q.Set("room", session.String())
	q.Set("username", identity.String())

	var resp wire.TokenResponse
	if err := c.do(ctx, http.MethodGet, "/api/token?"+q.Encode(), nil, &resp); err != nil {
		return "", fmt.Errorf("fetch token for %s: %w", session, err)
	}
	return resp.Token, nil
}

func (c *APIClient) ListSessions(ctx context.Context) ([]domain.SessionInfo, error) {
	var rooms []wire.SessionDTO
	if err := c.do(ctx, http.MethodGet, "/api/rooms", nil, &rooms); err != nil {
		return nil, err
	}
	out := make([]domain.SessionInfo, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, domain.SessionInfo{
			SID:             r.SID,
			Name:            domain.SessionID(r.Name),
			NumParticipants: r.NumParticipants,
		})
	}
	return out, nil
}

func (c *APIClient) ClaimAdmin(ctx context.Context, session domain.SessionID, identity domain.Identity) (domain.ClaimResult, error) {
	var resp wire.RoomResponse
	req := wire.RoomRequest{Room: session.String(), Identity: identity.String()}
	if err := c.do(ctx, http.MethodPost, "/api/room/claim-admin", req, &resp); err != nil {
		return domain.ClaimResult{}, err
	}
	if !resp.Success {
		return domain.ClaimResult{Granted: false, Reason: domain.ClaimReason(resp.Message)}, nil
	}
	return domain.ClaimResult{Granted: true, Reason: domain.ClaimGranted}, nil
}

func (c *APIClient) Promote(ctx context.Context, session domain.SessionID, requester, target domain.Identity) error {
	req := wire.RoomRequest{Room: session.String(), Identity: requester.String(), TargetIdentity: target.String()}
	return c.do(ctx, http.MethodPost, "/api/room/promote", req, &wire.RoomResponse{})
}

func (c *APIClient) Terminate(ctx context.Context, session domain.SessionID, requester domain.Identity) error {
	req := wire.RoomRequest{Room: session.String(), Identity: requester.String()}
	return c.do(ctx, http.MethodPost, "/api/room/end", req, &wire.RoomResponse{})
}

// WebsocketURL is where a participant holding token connects.
func (c *APIClient) WebsocketURL(token string) string {
	u := *c.base
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	u.RawQuery = url.Values{"access_token": {token}}.Encode()
	return u.String()
}

func (c *APIClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w: %w", method, path, domain.ErrAuthorityUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var e wire.ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return fmt.Errorf("%s %s: %w: %s", method, path, statusError(resp.StatusCode), e.Error)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func statusError(status int) error {
	switch status {
	case http.StatusBadRequest:
		return domain.ErrInvalidArgument
	case http.StatusUnauthorized, http.StatusForbidden:
		return domain.ErrUnauthorized
	case http.StatusNotFound:
		return domain.ErrNotFound
	default:
		return domain.ErrAuthorityUnavailable
	}
}
