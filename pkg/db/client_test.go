package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	client, err := OpenSQLite(context.Background(), fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func insertCoach(tx *gorm.DB, id string) error {
	return tx.Exec(`INSERT INTO coaches (id, created_at, updated_at) VALUES (?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`, id).Error
}

func TestWithTx_CommitsAndRollbacks(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	if err := client.WithTx(ctx, func(tx *gorm.DB) error {
		return insertCoach(tx, uuid.NewString())
	}); err != nil {
		t.Fatalf("WithTx commit failed: %v", err)
	}

	var count int64
	if err := client.DB().Table("coaches").Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 record, got %d", count)
	}

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := insertCoach(tx, uuid.NewString()); err != nil {
			return err
		}
		return errors.New("boom")
	})
	if err == nil {
		t.Fatal("expected WithTx to return an error")
	}
	if err := client.DB().Table("coaches").Count(&count).Error; err != nil {
		t.Fatalf("count failed after rollback: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected rollback to leave 1 record, got %d", count)
	}
}

func TestPing(t *testing.T) {
	client := newTestClient(t)
	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected ping error: %v", err)
	}
}

func TestIsUniqueViolation_SQLite(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()
	coachID := uuid.NewString()
	insert := `INSERT INTO transactions (id, coach_id, direction, type, gross_amount, net_amount, status, idempotency_key, transaction_date, created_at, updated_at)
		VALUES (?, ?, 'outgoing', 'payout_processing', 10, 10, 'pending', 'key-1', CURRENT_TIMESTAMP, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`

	if err := client.DB().WithContext(ctx).Exec(insert, uuid.NewString(), coachID).Error; err != nil {
		t.Fatalf("first insert: %v", err)
	}
	err := client.DB().WithContext(ctx).Exec(insert, uuid.NewString(), coachID).Error
	if err == nil {
		t.Fatal("expected duplicate idempotency key to fail")
	}
	if !IsUniqueViolation(err, ConstraintIdempotencyKey) {
		t.Fatalf("expected idempotency violation, got %v", err)
	}
	if IsUniqueViolation(err, ConstraintPayoutReference) {
		t.Fatalf("payout reference constraint should not match %v", err)
	}
	if IsUniqueViolation(err, ConstraintTransactionPK) {
		t.Fatalf("primary key constraint should not match %v", err)
	}
}

func TestIsUniqueViolation_Postgres(t *testing.T) {
	err := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", ConstraintName: ConstraintCommissionLevel})
	if !IsUniqueViolation(err, "") {
		t.Fatal("expected any-constraint match")
	}
	if !IsUniqueViolation(err, ConstraintCommissionLevel) {
		t.Fatal("expected named constraint match")
	}
	if IsUniqueViolation(err, ConstraintIdempotencyKey) {
		t.Fatal("different constraint must not match")
	}
	if IsUniqueViolation(&pgconn.PgError{Code: "23503"}, "") {
		t.Fatal("foreign key violations are not unique violations")
	}
	if IsUniqueViolation(nil, "") {
		t.Fatal("nil is never a violation")
	}
}

func TestWithTx_RollsBackOnPanic(t *testing.T) {
	client := newTestClient(t)

	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("expected panic to propagate")
			}
		}()
		_ = client.WithTx(context.Background(), func(tx *gorm.DB) error {
			if err := insertCoach(tx, uuid.NewString()); err != nil {
				return err
			}
			panic("mid-transaction")
		})
	}()

	var count int64
	if err := client.DB().Table("coaches").Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected panic to roll back, got %d rows", count)
	}
}
