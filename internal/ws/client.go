// Package ws implements the websocket transport. This file holds the
// per-connection client: a buffered outbound queue drained by a single
// writer goroutine, and a reader that enforces limits and keep-alive.
//
// Send never blocks. When a connection's queue is full the send fails, and
// the routing service treats that exactly like a dead socket: the handle is
// pruned. Slow consumers are indistinguishable from gone consumers.
package ws

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/damam/go-relay-backend/internal/config"
)

// Errors returned by Client.Send.
var (
	ErrQueueFull    = errors.New("send queue full")
	ErrClientClosed = errors.New("client closed")
)

// Client is one live websocket connection. It satisfies presence.Conn.
type Client struct {
	conn *websocket.Conn
	cfg  config.WSConfig

	sendq chan Envelope

	closeOnce sync.Once
	closed    chan struct{}
}

// newClient wraps an upgraded connection. The caller starts the pumps.
func newClient(conn *websocket.Conn, cfg config.WSConfig) *Client {
	return &Client{
		conn:   conn,
		cfg:    cfg,
		sendq:  make(chan Envelope, cfg.SendQueueSize),
		closed: make(chan struct{}),
	}
}

// Send enqueues an outbound frame without blocking. It fails when the
// client is closed or its queue is full; callers prune the handle on error.
func (c *Client) Send(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	env := Envelope{Event: event, Data: data}

	select {
	case <-c.closed:
		return ErrClientClosed
	default:
	}
	select {
	case c.sendq <- env:
		return nil
	default:
		return ErrQueueFull
	}
}

// close makes the client unusable and wakes the write pump. Idempotent.
func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.closed) })
}

// writePump is the sole writer on the connection. It drains the queue,
// applies per-frame deadlines, and pings on the configured cadence.
func (c *Client) writePump() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case env := <-c.sendq:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.conn.WriteJSON(env); err != nil {
				log.Debug().Err(err).Msg("ws write failed, dropping connection")
				c.close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		case <-c.closed:
			// Flush nothing; a closed client's queue is abandoned.
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// readPump consumes inbound frames and hands them to dispatch until the
// connection dies. It enforces the max frame size and pong-based liveness.
func (c *Client) readPump(dispatch func(*Client, Envelope)) {
	defer c.close()

	c.conn.SetReadLimit(c.cfg.MaxMessageBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug().Err(err).Msg("ws read failed")
			}
			return
		}
		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			// A garbled frame is the client's problem, not grounds to drop
			// the connection.
			_ = c.Send(EventError, errorPayload{
				Code:    "malformed_frame",
				Message: "frame must be a JSON envelope with an event field",
			})
			continue
		}
		dispatch(c, env)
	}
}
