// Package ws implements the websocket transport: the event-framed wire
// protocol, per-connection read/write pumps, and the upgrade handler that
// binds connections to the presence registry and the routing service.
//
// This file defines the wire protocol. Every frame is a JSON envelope:
//
//	{"event": "<name>", "data": {...}}
//
// Inbound events come from clients; outbound events are pushed by the
// server. Unknown inbound events are answered with a validation_error frame
// rather than closing the connection.
package ws

import "encoding/json"

// Envelope is the framing shared by all inbound and outbound traffic.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Inbound event names.
const (
	EventRegister   = "register_user"
	EventSend       = "send_message"
	EventListOnline = "list_online"
	EventPing       = "ping"
)

// Outbound event names. EventMessage (receive_message) and the payment
// status event are defined by the packages that emit them.
const (
	EventRegistered  = "registration_confirmed"
	EventAck         = "message_ack"
	EventOffline     = "user_offline"
	EventError       = "validation_error"
	EventRateLimited = "rate_limited"
	EventOnlineUsers = "online_users"
	EventPong        = "pong"
)

// registerPayload is the data of a register_user frame.
type registerPayload struct {
	UserID string `json:"user_id"`
}

// registeredPayload confirms a registration back to the client.
type registeredPayload struct {
	UserID string `json:"user_id"`
}

// errorPayload reports a rejected frame. Code is a stable machine-readable
// kind; RetryAfterMS is set only on rate_limited frames.
type errorPayload struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	RetryAfterMS int64  `json:"retry_after_ms,omitempty"`
}

// offlinePayload tells a sender the receiver had no live connections. The
// message was still recorded; delivery happens out of band. Online carries
// the current roster as a diagnostic hint for the sending client.
type offlinePayload struct {
	MessageID  string   `json:"message_id"`
	ReceiverID string   `json:"receiver_id"`
	Online     []string `json:"online_users"`
}

// onlineUsersPayload answers list_online.
type onlineUsersPayload struct {
	Users []string `json:"users"`
}
