// Package chat implements the message routing core: validation, per-user
// rate limiting, fan-out delivery, and the in-memory history buffer.
// This file centralizes service-level error values so that they can be
// consistently returned by the pipeline and checked by callers.
//
// Translation into wire events (validation_error, rate_limited) or HTTP
// status codes is performed at the transport layer.
package chat

import (
	"errors"
	"fmt"
	"time"
)

// Validation errors, in the order the validator applies its rules.
var (
	// ErrMissingField indicates sender, receiver, or body was absent.
	ErrMissingField = errors.New("sender_id, receiver_id and body are required")

	// ErrWrongType indicates the body was not a string. This is surfaced by
	// the transport decode layer; the validator never sees a non-string body.
	ErrWrongType = errors.New("body must be a string")

	// ErrEmptyBody indicates the body was empty after trimming whitespace.
	ErrEmptyBody = errors.New("body is empty")

	// ErrDisallowedContent indicates the sanitized body matched the
	// markup/script-injection denylist.
	ErrDisallowedContent = errors.New("body contains disallowed content")

	// ErrInvalidID indicates a sender or receiver id longer than MaxIDRunes.
	ErrInvalidID = errors.New("user ids must be at most 50 characters")

	// ErrSelfAddressed indicates sender and receiver are the same user.
	ErrSelfAddressed = errors.New("cannot send a message to yourself")

	// ErrSenderMismatch indicates the payload sender does not match the
	// authenticated identity of the submitting connection.
	ErrSenderMismatch = errors.New("sender does not match the registered user")
)

// ErrRateLimited is the sentinel matched by errors.Is for rate rejections.
// Callers needing the retry hint unwrap a *RateLimitError via errors.As.
var ErrRateLimited = errors.New("too many messages")

// RateLimitError carries the time until the sender's window resets.
type RateLimitError struct {
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	return fmt.Sprintf("too many messages, retry in %s", e.RetryAfter.Round(time.Second))
}

// Is makes errors.Is(err, ErrRateLimited) succeed for RateLimitError values.
func (e *RateLimitError) Is(target error) bool { return target == ErrRateLimited }

// Code maps a pipeline error to a stable, machine-readable kind for wire
// payloads and logs. Unknown errors map to "internal".
func Code(err error) string {
	switch {
	case errors.Is(err, ErrMissingField):
		return "missing_field"
	case errors.Is(err, ErrWrongType):
		return "wrong_type"
	case errors.Is(err, ErrEmptyBody):
		return "empty_body"
	case errors.Is(err, ErrDisallowedContent):
		return "disallowed_content"
	case errors.Is(err, ErrInvalidID):
		return "invalid_id"
	case errors.Is(err, ErrSelfAddressed):
		return "self_addressed"
	case errors.Is(err, ErrSenderMismatch):
		return "sender_mismatch"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	default:
		return "internal"
	}
}
