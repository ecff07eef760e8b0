// Package domain defines the core data types shared across the relay:
// routed chat messages, their delivery outcome, and payment poll results.
// The GORM-tagged types double as the audit store schema.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// Message is one routed chat message. Its ID is generated at routing time;
// SenderID and ReceiverID are logical user identities, not connection ids.
// The same shape is used on the wire (websocket payloads) and in the audit
// store, so delivery counters are filled in after fan-out.
//
// Invariants (enforced by chat.Validator / chat.Service):
//   - SenderID != ReceiverID
//   - Body is non-empty after trimming and at most 1000 runes
//   - Body contains no script/markup injection patterns
type Message struct {
	ID         string         `json:"id"          gorm:"type:char(36);primaryKey"`
	SenderID   string         `json:"sender_id"   gorm:"type:varchar(64);not null;index:idx_msg_sender"`
	ReceiverID string         `json:"receiver_id" gorm:"type:varchar(64);not null;index:idx_msg_receiver"`
	Body       string         `json:"body"        gorm:"type:text;not null"`
	Attachment string         `json:"attachment,omitempty" gorm:"type:varchar(255)"`
	Delivered  int            `json:"delivered"   gorm:"not null;default:0"`
	Failed     int            `json:"failed"      gorm:"not null;default:0"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"-"`
	DeletedAt  gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "messages" }

// DeliveryReport summarizes a single fan-out: how many of the receiver's
// live connections accepted the message and how many were pruned as dead.
// Delivered == 0 && Failed == 0 means the receiver was offline.
type DeliveryReport struct {
	MessageID string `json:"message_id"`
	Delivered int    `json:"delivered"`
	Failed    int    `json:"failed"`
}

// Offline reports whether no live connection was found for the receiver.
func (r DeliveryReport) Offline() bool { return r.Delivered == 0 && r.Failed == 0 }

// PaymentStatusRecord captures the terminal status of one payment poll,
// written when a PollJob resolves. Persisted is false while the remote
// save-status call has not succeeded; those rows are the reconciliation
// backlog.
type PaymentStatusRecord struct {
	ID            string         `json:"id"             gorm:"type:char(36);primaryKey"`
	UserID        string         `json:"user_id"        gorm:"type:varchar(64);not null;index"`
	TransactionID string         `json:"transaction_id" gorm:"type:varchar(128);not null;index"`
	Provider      string         `json:"provider"       gorm:"type:varchar(16);not null"`
	Status        string         `json:"status"         gorm:"type:varchar(32);not null"`
	Persisted     bool           `json:"persisted"      gorm:"not null;default:false"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"-"`
	DeletedAt     gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName returns the database table name for PaymentStatusRecord.
func (PaymentStatusRecord) TableName() string { return "payment_statuses" }
