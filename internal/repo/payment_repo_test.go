package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/damam/go-relay-backend/internal/domain"
)

func TestRecordStatus_RoundTrip(t *testing.T) {
	db := newRepoDB(t, &domain.PaymentStatusRecord{})

	rec := &domain.PaymentStatusRecord{
		ID:            uuid.NewString(),
		UserID:        "42",
		TransactionID: "tx-1",
		Provider:      "MOMO",
		Status:        "SUCCESSFULL",
		Persisted:     true,
	}
	if err := RecordStatus(context.Background(), db, rec); err != nil {
		t.Fatalf("RecordStatus: %v", err)
	}
	if rec.CreatedAt.IsZero() {
		t.Fatalf("CreatedAt not stamped")
	}

	var got domain.PaymentStatusRecord
	if err := db.Where("id = ?", rec.ID).First(&got).Error; err != nil {
		t.Fatalf("read back: %v", err)
	}
	if got.Status != "SUCCESSFULL" || !got.Persisted {
		t.Fatalf("roundtrip mismatch: %+v", got)
	}
}

func TestListUnreconciled_OnlyFailedSavesOldestFirst(t *testing.T) {
	db := newRepoDB(t, &domain.PaymentStatusRecord{})

	t0 := time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC)
	mk := func(id, status string, persisted bool, at time.Time) {
		rec := &domain.PaymentStatusRecord{
			ID: id, UserID: "42", TransactionID: "tx-" + id,
			Provider: "OM", Status: status, Persisted: persisted, CreatedAt: at,
		}
		if err := RecordStatus(context.Background(), db, rec); err != nil {
			t.Fatalf("seed %s: %v", id, err)
		}
	}
	mk("b", "FAILED", false, t0.Add(time.Second))
	mk("a", "SUCCESSFULL", false, t0)
	mk("c", "SUCCESSFULL", true, t0.Add(2*time.Second))

	out, err := ListUnreconciled(context.Background(), db, 0)
	if err != nil {
		t.Fatalf("ListUnreconciled: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("len = %d, want 2", len(out))
	}
	if out[0].ID != "a" || out[1].ID != "b" {
		t.Fatalf("not ordered oldest-first: %s, %s", out[0].ID, out[1].ID)
	}
}

func TestMarkReconciled(t *testing.T) {
	db := newRepoDB(t, &domain.PaymentStatusRecord{})

	rec := &domain.PaymentStatusRecord{
		ID: "r1", UserID: "42", TransactionID: "tx", Provider: "MOMO",
		Status: "SUCCESSFULL", Persisted: false,
	}
	if err := RecordStatus(context.Background(), db, rec); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if err := MarkReconciled(context.Background(), db, "r1"); err != nil {
		t.Fatalf("MarkReconciled: %v", err)
	}
	out, err := ListUnreconciled(context.Background(), db, 0)
	if err != nil {
		t.Fatalf("ListUnreconciled: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("backlog not empty after reconcile: %+v", out)
	}

	if err := MarkReconciled(context.Background(), db, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestPaymentStore_ImplementsRecordContract(t *testing.T) {
	db := newRepoDB(t, &domain.PaymentStatusRecord{})
	store := &PaymentStore{DB: db}

	rec := &domain.PaymentStatusRecord{
		ID: uuid.NewString(), UserID: "7", TransactionID: "tx-7",
		Provider: "OM", Status: "EXPIRED",
	}
	if err := store.RecordStatus(context.Background(), rec); err != nil {
		t.Fatalf("RecordStatus: %v", err)
	}
}
