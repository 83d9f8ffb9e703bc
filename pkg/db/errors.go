package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

const pgUniqueViolation = "23505"

// IsUniqueViolation reports whether err is a unique constraint violation. When
// constraintName is provided only violations of that constraint match.
// Both the Postgres (SQLSTATE 23505) and SQLite drivers are recognised.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code != pgUniqueViolation {
			return false
		}
		return constraintName == "" || pgErr.ConstraintName == constraintName
	}

	msg := err.Error()
	if !strings.Contains(msg, "duplicate key value") && !strings.Contains(msg, "UNIQUE constraint failed") {
		return false
	}
	if constraintName == "" {
		return true
	}
	if strings.Contains(msg, constraintName) {
		return true
	}
	cols, ok := sqliteConstraintColumns[constraintName]
	return ok && strings.Contains(msg, cols)
}

// SQLite reports the offending columns rather than the index name.
var sqliteConstraintColumns = map[string]string{
	ConstraintCommissionLevel: "transactions.commission_source_transaction_id, transactions.commission_level, transactions.coach_id",
	ConstraintIdempotencyKey:  "transactions.coach_id, transactions.idempotency_key",
	ConstraintPayoutReference: "transactions.payout_reference_id",
	ConstraintTransactionPK:   "failed: transactions.id",
}

const (
	ConstraintCommissionLevel = "uq_transactions_commission_level"
	ConstraintIdempotencyKey  = "uq_transactions_coach_idempotency_key"
	ConstraintPayoutReference = "uq_transactions_payout_reference_id"
	ConstraintTransactionPK   = "transactions_pkey"
)
