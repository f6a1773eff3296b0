package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/Wyydra/rendezvous/internal/adapter/wire"
	"github.com/Wyydra/rendezvous/internal/core/domain"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	sendQueueSize  = 64
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

var (
	errClientClosed  = errors.New("client closed")
	errSendQueueFull = errors.New("send queue full")
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// TODO: only for dev
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WSClient is one participant websocket. Frames are queued and written by
// writePump; a full queue drops the frame.
type WSClient struct {
	id        domain.ClientID
	conn      *websocket.Conn
	send      chan []byte
	closing   chan struct{}
	closeOnce sync.Once
}

func newWSClient(conn *websocket.Conn) *WSClient {
	return &WSClient{
		id:      domain.NewClientID(),
		conn:    conn,
		send:    make(chan []byte, sendQueueSize),
		closing: make(chan struct{}),
	}
}

func (c *WSClient) ID() string {
	return c.id.String()
}

func (c *WSClient) Deliver(ev domain.Event) error {
	data, err := json.Marshal(wire.FromEvent(ev))
	if err != nil {
		return err
	}
	select {
	case <-c.closing:
		return errClientClosed
	default:
	}
	select {
	case c.send <- data:
		return nil
	default:
		return errSendQueueFull
	}
}

// Close flushes queued frames and then closes the connection.
func (c *WSClient) Close() error {
	c.closeOnce.Do(func() { close(c.closing) })
	return nil
}

func (c *WSClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			if err := c.write(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.closing:
			c.flush()
			c.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (c *WSClient) flush() {
	for {
		select {
		case msg := <-c.send:
			if err := c.write(websocket.TextMessage, msg); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *WSClient) write(messageType int, data []byte) error {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(messageType, data)
}

// HTTP handler
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	grant, err := h.Tokens.Verify(r.URL.Query().Get("access_token"))
	if err != nil {
		log.Warn().Err(err).Msg("Rejected websocket join")
		writeJSON(w, http.StatusUnauthorized, wire.ErrorResponse{Error: "Invalid access token"})
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Error while upgrading ws")
		return
	}

	client := newWSClient(conn)
	go client.writePump()

	l := log.With().
		Str("client_id", client.ID()).
		Str("session", grant.Session.String()).
		Str("identity", grant.Identity.String()).
		Logger()

	if err := h.Hub.Join(r.Context(), grant.Session, grant.Identity, grant.Metadata, client); err != nil {
		l.Warn().Err(err).Msg("Join refused")
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, err.Error()),
			time.Now().Add(writeWait))
		client.Close()
		return
	}
	l.Info().Msg("New client connected")

	defer func() {
		l.Info().Msg("Client disconnected")
		h.Hub.Leave(grant.Session, grant.Identity, client)
		client.Close()
	}()

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	// listening for participant
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				l.Error().Err(err).Msg("Unexpected close error")
			}
			break
		}

		var frame wire.ClientFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			l.Warn().Err(err).Msg("Dropping malformed frame")
			continue
		}
		if frame.Type != wire.ClientFrameData || len(frame.To) == 0 {
			l.Warn().Str("type", frame.Type).Msg("Dropping frame without recipients")
			continue
		}
		for _, to := range frame.To {
			if err := h.Hub.SendDirected(r.Context(), grant.Session, grant.Identity, domain.Identity(to), frame.Payload); err != nil {
				l.Debug().Err(err).Str("to", to).Msg("Directed data not delivered")
			}
		}
	}
}
