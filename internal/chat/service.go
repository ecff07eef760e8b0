// Package chat implements the message routing core.
//
// This file implements the Service, which owns the submission pipeline:
// identity check -> rate limit -> validation -> fan-out delivery -> history.
// Delivery is per-handle, independent, and self-healing: a handle that fails
// a send is pruned from the presence registry on the spot, so the registry
// converges on live connections without a background sweep.
//
// Observability: Submit is OpenTelemetry-instrumented; spans carry sender and
// receiver identifiers and the delivery counts.
package chat

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/damam/go-relay-backend/internal/domain"
	"github.com/damam/go-relay-backend/internal/presence"
)

// EventMessage is the outbound event name carrying a routed message to each
// of the receiver's live handles.
const EventMessage = "receive_message"

// Presence is the registry contract the router needs: resolve a receiver's
// live handles, prune dead ones, and list who is online.
// *presence.Registry satisfies it.
type Presence interface {
	Lookup(userID string) []presence.Conn
	Unregister(conn presence.Conn) (string, bool)
	ListOnline() []string
}

// AuditStore persists routed messages for reconciliation and history
// queries. Implementations must tolerate concurrent calls.
type AuditStore interface {
	SaveMessage(ctx context.Context, m *domain.Message) error
}

// Service coordinates the full submission pipeline. All fields must be set
// except Audit, which may be nil to disable persistence (tests).
type Service struct {
	Registry  Presence
	Limiter   *WindowLimiter
	Validator *Validator
	History   *HistoryBuffer
	Audit     AuditStore
}

// NewService wires the routing pipeline with the given collaborators.
func NewService(reg Presence, lim *WindowLimiter, val *Validator, hist *HistoryBuffer, audit AuditStore) *Service {
	return &Service{
		Registry:  reg,
		Limiter:   lim,
		Validator: val,
		History:   hist,
		Audit:     audit,
	}
}

// Submit runs the full pipeline for one message from senderID (the
// authenticated identity of the submitting connection or request).
//
// Error cases are reported via the package sentinels; a successful return
// always carries a DeliveryReport, including the Offline case.
func (s *Service) Submit(ctx context.Context, senderID string, sub Submission) (domain.DeliveryReport, error) {
	tr := otel.Tracer("chat/Service")
	ctx, span := tr.Start(ctx, "Submit",
		trace.WithAttributes(
			attribute.String("sender.id", senderID),
			attribute.String("receiver.id", sub.ReceiverID),
		),
	)
	defer span.End()

	if sub.SenderID == "" {
		sub.SenderID = senderID
	}
	if sub.SenderID != senderID {
		rejectedMsgs.WithLabelValues(Code(ErrSenderMismatch)).Inc()
		return domain.DeliveryReport{}, ErrSenderMismatch
	}

	if allowed, retryAfter := s.Limiter.Allow(senderID); !allowed {
		rejectedMsgs.WithLabelValues(Code(ErrRateLimited)).Inc()
		return domain.DeliveryReport{}, &RateLimitError{RetryAfter: retryAfter}
	}

	clean, err := s.Validator.Validate(sub)
	if err != nil {
		rejectedMsgs.WithLabelValues(Code(err)).Inc()
		return domain.DeliveryReport{}, err
	}

	msg := domain.Message{
		ID:         uuid.NewString(),
		SenderID:   clean.SenderID,
		ReceiverID: clean.ReceiverID,
		Body:       clean.Body,
		Attachment: clean.Attachment,
		CreatedAt:  time.Now().UTC(),
	}

	report := s.route(ctx, &msg)
	span.SetAttributes(
		attribute.Int("delivery.delivered", report.Delivered),
		attribute.Int("delivery.failed", report.Failed),
	)
	return report, nil
}

// route fans msg out to every live handle of the receiver, prunes handles
// that fail, records the message in history and the audit store, and
// returns the per-handle outcome counts.
func (s *Service) route(ctx context.Context, msg *domain.Message) domain.DeliveryReport {
	conns := s.Registry.Lookup(msg.ReceiverID)

	delivered, failed := 0, 0
	for _, c := range conns {
		// Each handle is attempted independently; one dead connection must
		// not block delivery to the receiver's other connections.
		if err := c.Send(EventMessage, msg); err != nil {
			failed++
			s.Registry.Unregister(c)
			prunedHandles.Inc()
			log.Warn().
				Str("message_id", msg.ID).
				Str("receiver_id", msg.ReceiverID).
				Err(err).
				Msg("pruned dead handle during delivery")
			continue
		}
		delivered++
	}

	msg.Delivered = delivered
	msg.Failed = failed
	s.History.Append(*msg)

	if s.Audit != nil {
		// Best effort: the audit store never gates routing.
		if err := s.Audit.SaveMessage(ctx, msg); err != nil {
			log.Error().Str("message_id", msg.ID).Err(err).Msg("audit store write failed")
		}
	}

	switch {
	case delivered == 0 && failed == 0:
		routedMsgs.WithLabelValues("offline").Inc()
	case failed > 0:
		routedMsgs.WithLabelValues("partial").Inc()
	default:
		routedMsgs.WithLabelValues("delivered").Inc()
	}

	return domain.DeliveryReport{MessageID: msg.ID, Delivered: delivered, Failed: failed}
}

// Broadcast routes one submission to each receiver id in turn, using the
// same per-receiver fan-out as Submit. Used by the admin broadcast endpoint:
// every admin is addressed individually, exactly as a 1:1 receiver.
//
// The sender itself is skipped when it appears in receivers, preserving the
// no-self-addressing invariant. Rate limiting is charged once per call, not
// per receiver.
func (s *Service) Broadcast(ctx context.Context, senderID, body, attachment string, receivers []string) ([]domain.DeliveryReport, error) {
	tr := otel.Tracer("chat/Service")
	ctx, span := tr.Start(ctx, "Broadcast",
		trace.WithAttributes(
			attribute.String("sender.id", senderID),
			attribute.Int("receivers", len(receivers)),
		),
	)
	defer span.End()

	if allowed, retryAfter := s.Limiter.Allow(senderID); !allowed {
		rejectedMsgs.WithLabelValues(Code(ErrRateLimited)).Inc()
		return nil, &RateLimitError{RetryAfter: retryAfter}
	}

	reports := make([]domain.DeliveryReport, 0, len(receivers))
	for _, rid := range receivers {
		if rid == senderID {
			continue
		}
		clean, err := s.Validator.Validate(Submission{
			SenderID:   senderID,
			ReceiverID: rid,
			Body:       body,
			Attachment: attachment,
		})
		if err != nil {
			// The body is the same for every receiver, so the first
			// validation failure applies to the whole broadcast.
			rejectedMsgs.WithLabelValues(Code(err)).Inc()
			return nil, err
		}
		msg := domain.Message{
			ID:         uuid.NewString(),
			SenderID:   clean.SenderID,
			ReceiverID: clean.ReceiverID,
			Body:       clean.Body,
			Attachment: clean.Attachment,
			CreatedAt:  time.Now().UTC(),
		}
		reports = append(reports, s.route(ctx, &msg))
	}
	return reports, nil
}

// OnlineUsers returns the user ids currently registered with at least one
// live connection. Exposed to transports for the list_online event and the
// offline diagnostic payload.
func (s *Service) OnlineUsers() []string {
	return s.Registry.ListOnline()
}
