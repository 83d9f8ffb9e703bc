package db

import (
	"context"
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// sqliteSchema mirrors the goose migrations for the sqlite driver used in local runs and tests.
var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS coaches (
		id text PRIMARY KEY,
		sponsor_id text NULL,
		display_name text NOT NULL DEFAULT '',
		email text NULL,
		payout_method text NULL,
		payout_upi_id text NULL,
		payout_bank_holder_name text NULL,
		payout_bank_ifsc text NULL,
		payout_bank_account_number text NULL,
		payout_identity_contact_id text NULL,
		payout_identity_fund_account_id text NULL,
		payout_identity_active boolean NOT NULL DEFAULT 0,
		payout_identity_provisioned_at datetime NULL,
		created_at datetime NOT NULL,
		updated_at datetime NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS platform_settings (
		id text PRIMARY KEY,
		version integer NOT NULL UNIQUE,
		is_active boolean NOT NULL DEFAULT 0,
		platform_fee_percentage numeric NOT NULL DEFAULT 0,
		platform_fee_fixed_amount numeric NOT NULL DEFAULT 0,
		platform_fee_is_percentage boolean NOT NULL DEFAULT 1,
		direct_commission_percentage numeric NOT NULL DEFAULT 0,
		minimum_payout_amount numeric NOT NULL DEFAULT 0,
		gst_enabled boolean NOT NULL DEFAULT 0,
		gst_percentage numeric NOT NULL DEFAULT 0,
		tds_enabled boolean NOT NULL DEFAULT 0,
		tds_percentage numeric NOT NULL DEFAULT 0,
		tds_threshold numeric NOT NULL DEFAULT 0,
		instant_payout_fee numeric NOT NULL DEFAULT 0,
		instant_payout_min numeric NOT NULL DEFAULT 0,
		instant_payout_max numeric NOT NULL DEFAULT 0,
		monthly_payout_day integer NOT NULL DEFAULT 1,
		updated_by text NULL,
		created_at datetime NOT NULL,
		updated_at datetime NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_platform_settings_single_active
		ON platform_settings (is_active) WHERE is_active`,
	`CREATE TABLE IF NOT EXISTS commission_levels (
		id text PRIMARY KEY,
		settings_id text NOT NULL REFERENCES platform_settings(id) ON DELETE CASCADE,
		level integer NOT NULL CHECK (level BETWEEN 1 AND 12),
		percentage numeric NOT NULL CHECK (percentage BETWEEN 0 AND 100),
		is_active boolean NOT NULL DEFAULT 1,
		UNIQUE (settings_id, level)
	)`,
	`CREATE TABLE IF NOT EXISTS transactions (
		id text PRIMARY KEY,
		coach_id text NOT NULL,
		direction text NOT NULL,
		type text NOT NULL,
		gross_amount numeric NOT NULL,
		net_amount numeric NOT NULL,
		currency text NOT NULL DEFAULT 'INR',
		fee_platform numeric NOT NULL DEFAULT 0,
		fee_processing numeric NOT NULL DEFAULT 0,
		fee_payout numeric NOT NULL DEFAULT 0,
		fee_gst numeric NOT NULL DEFAULT 0,
		fee_tds numeric NOT NULL DEFAULT 0,
		fee_tax numeric NOT NULL DEFAULT 0,
		fee_total numeric NOT NULL DEFAULT 0,
		commission_level integer NULL,
		commission_percentage numeric NULL,
		commission_base_amount numeric NULL,
		commission_sponsor_id text NULL,
		commission_source_transaction_id text NULL,
		payout_external_id text NULL,
		payout_method text NULL,
		payout_destination text NULL,
		payout_is_instant boolean NOT NULL DEFAULT 0,
		payout_reference_id text NULL,
		payout_narration text NULL,
		payout_mode text NULL,
		payout_gateway_status text NULL,
		payout_settlement_reference text NULL,
		payout_failure_reason text NULL,
		payout_initiated_at datetime NULL,
		payout_completed_at datetime NULL,
		payout_failed_at datetime NULL,
		status text NOT NULL,
		idempotency_key text NULL,
		reversal_of text NULL,
		description text NULL,
		product_info text NULL,
		transaction_date datetime NOT NULL,
		created_at datetime NOT NULL,
		updated_at datetime NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_transactions_commission_level
		ON transactions (commission_source_transaction_id, commission_level, coach_id)
		WHERE commission_source_transaction_id IS NOT NULL`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_transactions_coach_idempotency_key
		ON transactions (coach_id, idempotency_key)
		WHERE idempotency_key IS NOT NULL`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_transactions_payout_reference_id
		ON transactions (payout_reference_id)
		WHERE payout_reference_id IS NOT NULL`,
}

// ApplySQLiteSchema creates the ledger tables on a sqlite connection.
func ApplySQLiteSchema(ctx context.Context, conn *gorm.DB) error {
	for _, stmt := range sqliteSchema {
		if err := conn.WithContext(ctx).Exec(stmt).Error; err != nil {
			return fmt.Errorf("apply sqlite schema: %w", err)
		}
	}
	return nil
}

// OpenSQLite opens a sqlite database with the shared gorm settings and applies the schema.
func OpenSQLite(ctx context.Context, dsn string) (*Client, error) {
	return openSQLite(ctx, dsn, gormlogger.Discard)
}

func openSQLite(ctx context.Context, dsn string, queries gormlogger.Interface) (*Client, error) {
	conn, err := gorm.Open(sqlite.Open(dsn), gormConfig(queries))
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		return nil, err
	}
	// one connection keeps transactions from tripping over shared-cache table locks
	sqlDB.SetMaxOpenConns(1)
	if err := ApplySQLiteSchema(ctx, conn); err != nil {
		return nil, err
	}
	return &Client{conn: conn}, nil
}
