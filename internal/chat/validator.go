// Package chat implements the message routing core. This file provides the
// inbound message validator/sanitizer. Rules are applied in a fixed order and
// the first failure wins, so clients always get the most fundamental problem
// reported first.
package chat

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Submission is a raw inbound message before validation. It arrives either
// from a websocket send_message event or from the HTTP submission endpoint.
type Submission struct {
	SenderID   string `json:"sender_id"`
	ReceiverID string `json:"receiver_id"`
	Body       string `json:"body"`
	Attachment string `json:"attachment,omitempty"`
}

// MaxIDRunes bounds user identifiers on both ends of a message. Ids above
// this length are rejected outright; bodies, by contrast, are truncated.
const MaxIDRunes = 50

// denylist holds the markup/script-injection patterns rejected after
// sanitization. Matching is case-insensitive.
var denylist = []*regexp.Regexp{
	regexp.MustCompile(`(?i)<\s*script\b`),   // embedded script tags
	regexp.MustCompile(`(?i)javascript\s*:`), // javascript: URIs
	regexp.MustCompile(`(?i)\bon[a-z]+\s*=`), // inline event handlers (onclick=, onerror=, ...)
}

// Validator enforces shape and content policy on inbound submissions before
// they enter the routing path. The zero value uses no truncation; construct
// via NewValidator for the configured limit.
type Validator struct {
	// MaxBodyRunes caps the body length; longer bodies are truncated, not
	// rejected. <= 0 disables truncation.
	MaxBodyRunes int
}

// NewValidator constructs a Validator with the given body cap.
func NewValidator(maxBodyRunes int) *Validator {
	return &Validator{MaxBodyRunes: maxBodyRunes}
}

// Validate checks s and returns a sanitized copy ready for routing.
// Rules, first failure wins:
//  1. sender_id, receiver_id and body must be present and non-empty
//  2. sender_id and receiver_id must be at most MaxIDRunes runes
//  3. after trimming and truncating, the body must be non-empty
//  4. the sanitized body must not match the injection denylist
//  5. sender must differ from receiver
//
// Identity enforcement (payload sender == authenticated sender) is the
// router's job, not the validator's.
func (v *Validator) Validate(s Submission) (Submission, error) {
	if strings.TrimSpace(s.SenderID) == "" ||
		strings.TrimSpace(s.ReceiverID) == "" ||
		s.Body == "" {
		return Submission{}, ErrMissingField
	}

	if utf8.RuneCountInString(s.SenderID) > MaxIDRunes ||
		utf8.RuneCountInString(s.ReceiverID) > MaxIDRunes {
		return Submission{}, ErrInvalidID
	}

	body := strings.TrimSpace(s.Body)
	if v.MaxBodyRunes > 0 && utf8.RuneCountInString(body) > v.MaxBodyRunes {
		body = string([]rune(body)[:v.MaxBodyRunes])
	}
	if body == "" {
		return Submission{}, ErrEmptyBody
	}

	for _, re := range denylist {
		if re.MatchString(body) {
			return Submission{}, ErrDisallowedContent
		}
	}

	if s.SenderID == s.ReceiverID {
		return Submission{}, ErrSelfAddressed
	}

	out := s
	out.Body = body
	return out, nil
}
