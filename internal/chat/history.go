// Package chat implements the message routing core. This file provides the
// bounded in-memory history buffer: an append-only audit of routed messages
// that is trimmed in batches rather than one entry at a time.
package chat

import (
	"sync"

	"github.com/damam/go-relay-backend/internal/domain"
)

// HistoryBuffer is a capped, append-only log of routed messages. When the
// buffer exceeds its capacity the oldest half is discarded in one batch,
// which keeps Append O(1) amortized and bounds trim frequency.
//
// This type is safe for concurrent use; append and trim happen under one
// lock so no entry is lost to a concurrent trim.
type HistoryBuffer struct {
	mu      sync.RWMutex
	cap     int
	entries []domain.Message
}

// NewHistoryBuffer constructs a buffer holding at most capacity messages.
// capacity values < 2 are coerced to 2 so a batch trim always keeps data.
func NewHistoryBuffer(capacity int) *HistoryBuffer {
	if capacity < 2 {
		capacity = 2
	}
	return &HistoryBuffer{
		cap:     capacity,
		entries: make([]domain.Message, 0, capacity),
	}
}

// Append records m. If the buffer would exceed its capacity, the oldest half
// is dropped first.
func (b *HistoryBuffer) Append(m domain.Message) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.entries) >= b.cap {
		keep := b.cap / 2
		// Copy the tail into a fresh slice so the dropped half is released.
		tail := make([]domain.Message, keep, b.cap)
		copy(tail, b.entries[len(b.entries)-keep:])
		b.entries = tail
	}
	b.entries = append(b.entries, m)
}

// ByReceiver returns the retained messages addressed to userID, oldest
// first. limit > 0 caps the result to the most recent limit entries.
func (b *HistoryBuffer) ByReceiver(userID string, limit int) []domain.Message {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []domain.Message
	for _, m := range b.entries {
		if m.ReceiverID == userID {
			out = append(out, m)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

// Len reports the number of retained messages.
func (b *HistoryBuffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}
