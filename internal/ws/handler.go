// Package ws implements the websocket transport. This file holds the
// upgrade handler and event dispatch: the bridge between raw connections
// and the presence registry plus routing service.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/damam/go-relay-backend/internal/chat"
	"github.com/damam/go-relay-backend/internal/config"
	"github.com/damam/go-relay-backend/internal/presence"
)

// Handler upgrades HTTP requests and services the event protocol.
type Handler struct {
	registry *presence.Registry
	chat     *chat.Service
	cfg      config.WSConfig
	upgrader websocket.Upgrader
}

// NewHandler builds the websocket handler. Origin policy: an empty allow
// list accepts any origin (the relay normally sits behind the CORS layer of
// the same deployment); otherwise the Origin header must match one entry
// exactly.
func NewHandler(reg *presence.Registry, svc *chat.Service, cfg config.WSConfig) *Handler {
	h := &Handler{registry: reg, chat: svc, cfg: cfg}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  cfg.ReadBufferSize,
		WriteBufferSize: cfg.WriteBufferSize,
		CheckOrigin: func(r *http.Request) bool {
			if len(cfg.AllowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range cfg.AllowedOrigins {
				if strings.EqualFold(origin, allowed) {
					return true
				}
			}
			return false
		},
	}
	return h
}

// Handle is the gin endpoint for GET /ws.
func (h *Handler) Handle(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		log.Debug().Err(err).Msg("ws upgrade rejected")
		return
	}

	client := newClient(conn, h.cfg)
	wsConnections.Inc()

	go client.writePump()
	go func() {
		defer func() {
			// Connection gone: release the handle and its presence entry.
			if userID, ok := h.registry.Unregister(client); ok {
				log.Info().Str("user_id", userID).Msg("connection unregistered")
			}
			client.close()
			wsConnections.Dec()
		}()
		client.readPump(h.dispatch)
	}()
}

// dispatch routes one inbound frame. It runs on the connection's read
// goroutine, so per-connection ordering is preserved.
func (h *Handler) dispatch(c *Client, env Envelope) {
	wsEvents.WithLabelValues(env.Event).Inc()

	switch env.Event {
	case EventRegister:
		h.onRegister(c, env.Data)
	case EventSend:
		h.onSend(c, env.Data)
	case EventListOnline:
		_ = c.Send(EventOnlineUsers, onlineUsersPayload{Users: h.chat.OnlineUsers()})
	case EventPing:
		_ = c.Send(EventPong, struct{}{})
	default:
		_ = c.Send(EventError, errorPayload{
			Code:    "unknown_event",
			Message: "unsupported event: " + env.Event,
		})
	}
}

func (h *Handler) onRegister(c *Client, data json.RawMessage) {
	var p registerPayload
	if err := json.Unmarshal(data, &p); err != nil || strings.TrimSpace(p.UserID) == "" {
		_ = c.Send(EventError, errorPayload{
			Code:    "missing_field",
			Message: "register_user requires a non-empty user_id",
		})
		return
	}
	userID := strings.TrimSpace(p.UserID)
	if utf8.RuneCountInString(userID) > chat.MaxIDRunes {
		_ = c.Send(EventError, errorPayload{
			Code:    "invalid_id",
			Message: chat.ErrInvalidID.Error(),
		})
		return
	}

	h.registry.Register(userID, c)
	log.Info().Str("user_id", userID).Msg("connection registered")
	_ = c.Send(EventRegistered, registeredPayload{UserID: userID})
}

func (h *Handler) onSend(c *Client, data json.RawMessage) {
	senderID, ok := h.registry.Owner(c)
	if !ok {
		_ = c.Send(EventError, errorPayload{
			Code:    "not_registered",
			Message: "register_user must precede send_message",
		})
		return
	}

	var sub chat.Submission
	if err := json.Unmarshal(data, &sub); err != nil {
		_ = c.Send(EventError, errorPayload{
			Code:    "wrong_type",
			Message: "send_message data does not match the message shape",
		})
		return
	}

	report, err := h.chat.Submit(context.Background(), senderID, sub)
	if err != nil {
		var rl *chat.RateLimitError
		if errors.As(err, &rl) {
			_ = c.Send(EventRateLimited, errorPayload{
				Code:         chat.Code(err),
				Message:      err.Error(),
				RetryAfterMS: rl.RetryAfter.Milliseconds(),
			})
			return
		}
		_ = c.Send(EventError, errorPayload{Code: chat.Code(err), Message: err.Error()})
		return
	}

	_ = c.Send(EventAck, report)
	if report.Offline() {
		_ = c.Send(EventOffline, offlinePayload{
			MessageID:  report.MessageID,
			ReceiverID: sub.ReceiverID,
			Online:     h.chat.OnlineUsers(),
		})
	}
}
