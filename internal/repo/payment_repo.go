// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for payment status
// records and the reconciliation backlog.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/damam/go-relay-backend/internal/domain"
)

// RecordStatus inserts a terminal payment status row.
func RecordStatus(ctx context.Context, db *gorm.DB, rec *domain.PaymentStatusRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	return db.WithContext(ctx).Create(rec).Error
}

// ListUnreconciled returns rows whose remote save never succeeded, oldest
// first, for an operator-driven replay.
func ListUnreconciled(ctx context.Context, db *gorm.DB, limit int) ([]domain.PaymentStatusRecord, error) {
	var out []domain.PaymentStatusRecord
	q := db.WithContext(ctx).
		Where("persisted = ?", false).
		Order("created_at ASC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// MarkReconciled flips a backlog row to persisted after a successful replay.
// Returns ErrNotFound when the row does not exist.
func MarkReconciled(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).
		Model(&domain.PaymentStatusRecord{}).
		Where("id = ?", id).
		Update("persisted", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// PaymentStore binds the payment helpers to a DB handle so they satisfy the
// poll supervisor's record interface.
type PaymentStore struct {
	DB *gorm.DB
}

// RecordStatus implements payment.RecordStore.
func (s *PaymentStore) RecordStatus(ctx context.Context, rec *domain.PaymentStatusRecord) error {
	return RecordStatus(ctx, s.DB, rec)
}
