// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the routed
// message audit trail.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/damam/go-relay-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// SaveMessage inserts a routed message row. The caller has already assigned
// the ID and delivery counters; CreatedAt is stamped here if unset.
func SaveMessage(ctx context.Context, db *gorm.DB, m *domain.Message) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	return db.WithContext(ctx).Create(m).Error
}

// ListMessagesForUser returns messages addressed to userID ordered
// deterministically (CreatedAt ASC, ID ASC).
func ListMessagesForUser(ctx context.Context, db *gorm.DB, userID string, limit int) ([]domain.Message, error) {
	var out []domain.Message
	q := db.WithContext(ctx).
		Where("receiver_id = ?", userID).
		Order("created_at ASC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// CountMessages uses a raw COUNT so a missing table surfaces as an error.
func CountMessages(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Raw("SELECT COUNT(*) FROM messages WHERE receiver_id = ?", userID).
		Scan(&total).Error
	return total, err
}

// GetMessage fetches a message by ID.
func GetMessage(ctx context.Context, db *gorm.DB, id string) (*domain.Message, error) {
	var m domain.Message
	if err := db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// MessageStore binds the message helpers to a DB handle so they satisfy the
// routing service's audit interface.
type MessageStore struct {
	DB *gorm.DB
}

// SaveMessage implements chat.AuditStore.
func (s *MessageStore) SaveMessage(ctx context.Context, m *domain.Message) error {
	return SaveMessage(ctx, s.DB, m)
}

// ListByReceiver returns the audit rows addressed to userID, oldest first.
func (s *MessageStore) ListByReceiver(ctx context.Context, userID string, limit int) ([]domain.Message, error) {
	return ListMessagesForUser(ctx, s.DB, userID, limit)
}
