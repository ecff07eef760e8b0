// Package domain defines the core data types shared across the relay.
// This file holds the idempotency record used for safe retries of the
// HTTP submission endpoint.
package domain

import "time"

// Idempotency represents a recorded result of a previously processed
// submission, keyed by (user_id, receiver_id, key). It enables safe retries
// of POST /messages by returning the originally routed message without
// re-executing delivery.
type Idempotency struct {
	ID         string    `gorm:"type:TEXT NOT NULL;primaryKey"`
	UserID     string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_user_receiver_key,priority:1"`
	ReceiverID string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_user_receiver_key,priority:2"`
	Key        string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_user_receiver_key,priority:3"`
	MessageID  string    `gorm:"type:TEXT NOT NULL"`
	Status     int       `gorm:"type:INTEGER NOT NULL"`
	CreatedAt  time.Time `gorm:"type:DATETIME NOT NULL;autoCreateTime"`
	ExpiresAt  time.Time `gorm:"type:DATETIME NOT NULL;index"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }
