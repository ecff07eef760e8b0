// Message HTTP handlers.
//
// This file exposes REST endpoints for the routing pipeline:
//   - POST /messages         (route one message through the relay)
//   - POST /messages/admins  (broadcast to all administrators)
//   - GET  /messages         (recent history for the calling user)
//
// Handlers are transport-thin:
//   - validate & normalize inputs
//   - delegate to the routing service, which owns rate limiting, content
//     validation, and fan-out
//   - translate routing sentinels into HTTP statuses
//
// Idempotency:
// If the client supplies an Idempotency-Key header and a previous successful
// result exists for (user, receiver, key), the handler returns the originally
// routed message and sets `Idempotency-Replayed: true` instead of routing a
// duplicate.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/damam/go-relay-backend/internal/chat"
	"github.com/damam/go-relay-backend/internal/domain"
	"github.com/damam/go-relay-backend/internal/payment"
	"github.com/damam/go-relay-backend/internal/repo"
	"github.com/damam/go-relay-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// Router defines the routing operations consumed by HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type Router interface {
	// Submit runs the full pipeline for one message from senderID.
	Submit(ctx context.Context, senderID string, sub chat.Submission) (domain.DeliveryReport, error)
	// Broadcast routes one body to each receiver individually.
	Broadcast(ctx context.Context, senderID, body, attachment string, receivers []string) ([]domain.DeliveryReport, error)
	// OnlineUsers lists users with at least one live connection.
	OnlineUsers() []string
}

// Directory is the upstream backend surface the handlers need: the admin
// roster, per-user payment context, and durable message forwarding.
type Directory interface {
	AdminIDs(ctx context.Context, token string) ([]string, error)
	PaymentContext(ctx context.Context, token string) (payment.PollRequest, error)
	SaveMessage(ctx context.Context, token string, m *domain.Message) error
}

// HistoryReader reads the in-memory recent-message buffer.
type HistoryReader interface {
	ByReceiver(userID string, limit int) []domain.Message
}

// AuditReader reads the durable audit trail.
type AuditReader interface {
	ListByReceiver(ctx context.Context, userID string, limit int) ([]domain.Message, error)
}

// PollStarter launches payment poll jobs.
type PollStarter interface {
	Start(req payment.PollRequest) (*payment.Job, error)
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints for messages, presence, and payments.
// It depends on abstract contracts to keep transport concerns separate from
// routing logic.
type Handlers struct {
	router    Router
	history   HistoryReader
	audit     AuditReader
	directory Directory
	polls     PollStarter

	db      *gorm.DB // idempotency bookkeeping; may be nil
	idemTTL time.Duration
}

// New constructs a Handlers instance bound to the given collaborators.
// directory, audit, and polls may be nil when the corresponding endpoint is
// not mounted (tests).
func New(router Router, history HistoryReader, audit AuditReader, directory Directory, polls PollStarter, db *gorm.DB, idemTTL time.Duration) *Handlers {
	if idemTTL <= 0 {
		idemTTL = 24 * time.Hour
	}
	return &Handlers{
		router:    router,
		history:   history,
		audit:     audit,
		directory: directory,
		polls:     polls,
		db:        db,
		idemTTL:   idemTTL,
	}
}

// userID extracts the authenticated user id from Gin context (set by upstream
// middleware). If absent, it falls back to "X-User-ID" header (tests use it).
// An empty result means the request is anonymous and is rejected by handlers
// that require identity.
func userID(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if c != nil && c.Request != nil {
		if h := strings.TrimSpace(c.GetHeader("X-User-ID")); h != "" {
			return h
		}
	}
	return ""
}

// bearerToken returns the Authorization bearer credential, or "".
func bearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return ""
}

//
// DTOs
//

// SendMessageRequest is the JSON payload for routing one message.
type SendMessageRequest struct {
	// ReceiverID is the logical identity of the addressee.
	ReceiverID string `json:"receiver_id" binding:"required,min=1" example:"42"`
	// Body is the message text. The relay trims and truncates it.
	Body string `json:"body" binding:"required,min=1" example:"hello"`
	// Attachment optionally references an uploaded file.
	Attachment string `json:"attachment" example:"invoice.pdf"`
}

// SendMessageResponse reports the routed message and its delivery outcome.
type SendMessageResponse struct {
	Report  domain.DeliveryReport `json:"report"`
	Offline bool                  `json:"offline"`
}

// BroadcastRequest is the JSON payload for an admin broadcast.
type BroadcastRequest struct {
	Body       string `json:"body" binding:"required,min=1" example:"please review the pending orders"`
	Attachment string `json:"attachment"`
}

// BroadcastResponse lists the per-admin delivery reports.
type BroadcastResponse struct {
	Reports []domain.DeliveryReport `json:"reports"`
}

// HistoryResponse is a page of recent messages addressed to the caller.
type HistoryResponse struct {
	Messages []domain.Message `json:"messages"`
}

//
// Handlers
//

// SendMessage routes one message from the authenticated caller.
//
// Responses:
//   - 200 with a delivery report (including the offline case)
//   - 400 for malformed or disallowed submissions (code from the validator)
//   - 401 when no caller identity is present
//   - 429 with Retry-After when the caller's window is exhausted
func (h *Handlers) SendMessage(c *gin.Context) {
	ctx := c.Request.Context()

	sender := userID(c)
	if sender == "" {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "caller identity required")
		return
	}

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "receiver_id and body required")
		return
	}

	// Idempotency (replay path) - read validated key if present.
	idemKey, _ := idempotencyKey(c)
	if idemKey != "" && h.db != nil {
		if rec, err := repo.GetIdempotency(ctx, h.db, sender, req.ReceiverID, idemKey, time.Now().UTC()); err == nil && rec != nil {
			if prev, err2 := repo.GetMessage(ctx, h.db, rec.MessageID); err2 == nil {
				c.Header("Idempotency-Replayed", "true")
				ok(c, http.StatusOK, SendMessageResponse{
					Report: domain.DeliveryReport{
						MessageID: prev.ID,
						Delivered: prev.Delivered,
						Failed:    prev.Failed,
					},
					Offline: prev.Delivered == 0 && prev.Failed == 0,
				})
				return
			}
		}
	}

	report, err := h.router.Submit(ctx, sender, chat.Submission{
		SenderID:   sender,
		ReceiverID: req.ReceiverID,
		Body:       req.Body,
		Attachment: req.Attachment,
	})
	if err != nil {
		h.failRouting(c, err)
		return
	}

	// Forward upstream for durable storage; never gates the response.
	if h.directory != nil {
		if token := bearerToken(c); token != "" {
			msg := domain.Message{
				ID:         report.MessageID,
				SenderID:   sender,
				ReceiverID: req.ReceiverID,
				Body:       req.Body,
				Attachment: req.Attachment,
			}
			if err := h.directory.SaveMessage(ctx, token, &msg); err != nil {
				log.Warn().Str("message_id", report.MessageID).Err(err).Msg("upstream message save failed")
			}
		}
	}

	// Idempotency (store path) - best effort.
	if idemKey != "" && h.db != nil {
		_, _ = repo.CreateIdempotency(ctx, h.db, sender, req.ReceiverID, idemKey, report.MessageID, http.StatusOK, h.idemTTL)
	}

	ok(c, http.StatusOK, SendMessageResponse{Report: report, Offline: report.Offline()})
}

// BroadcastToAdmins routes one message to every administrator individually.
func (h *Handlers) BroadcastToAdmins(c *gin.Context) {
	ctx := c.Request.Context()

	sender := userID(c)
	if sender == "" {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "caller identity required")
		return
	}
	if h.directory == nil {
		fail(c, http.StatusInternalServerError, ErrCodeBroadcastFailed, "admin directory unavailable")
		return
	}

	var req BroadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "body required")
		return
	}

	admins, err := h.directory.AdminIDs(ctx, bearerToken(c))
	if err != nil {
		fail(c, http.StatusBadGateway, ErrCodeBroadcastFailed, fmt.Sprintf("admin roster lookup failed: %v", err))
		return
	}
	if len(admins) == 0 {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "no administrators registered")
		return
	}

	reports, err := h.router.Broadcast(ctx, sender, req.Body, req.Attachment, admins)
	if err != nil {
		h.failRouting(c, err)
		return
	}
	ok(c, http.StatusOK, BroadcastResponse{Reports: reports})
}

// History returns recent messages addressed to the caller, oldest first.
// `limit` caps the page (default 50, max 200); `scope=audit` reads the
// durable trail instead of the in-memory buffer.
func (h *Handlers) History(c *gin.Context) {
	user := userID(c)
	if user == "" {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "caller identity required")
		return
	}

	limit := utils.PageLimit(c.Query("limit"), 50, 200)

	if c.Query("scope") == "audit" {
		if h.audit == nil {
			fail(c, http.StatusInternalServerError, ErrCodeListFailed, "audit store unavailable")
			return
		}
		msgs, err := h.audit.ListByReceiver(c.Request.Context(), user, limit)
		if err != nil {
			fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
			return
		}
		ok(c, http.StatusOK, HistoryResponse{Messages: msgs})
		return
	}

	ok(c, http.StatusOK, HistoryResponse{Messages: h.history.ByReceiver(user, limit)})
}

// failRouting maps routing pipeline errors onto HTTP responses.
func (h *Handlers) failRouting(c *gin.Context, err error) {
	var rl *chat.RateLimitError
	if errors.As(err, &rl) {
		c.Header("Retry-After", strconv.Itoa(int(rl.RetryAfter.Seconds()+1)))
		fail(c, http.StatusTooManyRequests, ErrCodeRateLimited, err.Error())
		return
	}
	switch {
	case errors.Is(err, chat.ErrSenderMismatch):
		fail(c, http.StatusForbidden, chat.Code(err), err.Error())
	case errors.Is(err, chat.ErrMissingField),
		errors.Is(err, chat.ErrWrongType),
		errors.Is(err, chat.ErrEmptyBody),
		errors.Is(err, chat.ErrDisallowedContent),
		errors.Is(err, chat.ErrInvalidID),
		errors.Is(err, chat.ErrSelfAddressed):
		fail(c, http.StatusBadRequest, chat.Code(err), err.Error())
	default:
		fail(c, http.StatusInternalServerError, ErrCodeRouteFailed, err.Error())
	}
}

// idempotencyKey extracts an idempotency key if an upstream middleware has
// already validated/stashed it. The fallback behavior reads the
// "Idempotency-Key" header directly when no dedicated middleware exists.
func idempotencyKey(c *gin.Context) (string, bool) {
	if v := strings.TrimSpace(c.GetHeader("Idempotency-Key")); v != "" {
		return v, true
	}
	return "", false
}
