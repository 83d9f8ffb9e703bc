package migrate_test

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"go.uber.org/multierr"

	"github.com/angelmondragon/coachledger-backend/pkg/migrate"
)

func readMigration(t *testing.T, pattern string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", pattern))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no migration matching %s", pattern)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}

func TestTransactionsMigrationCarriesLedgerConstraints(t *testing.T) {
	content := readMigration(t, "*_create_transactions_table.sql")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS transactions",
		"ON transactions (commission_source_transaction_id, commission_level, coach_id)",
		"ON transactions (coach_id, idempotency_key)",
		"ON transactions (payout_reference_id)",
		"payout_reference_id varchar(40)",
		"payout_narration varchar(30)",
		"CHECK (fee_total = fee_platform + fee_processing + fee_payout + fee_tax)",
		"DROP TABLE IF EXISTS transactions",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestSettingsMigrationBoundsCommissionLevels(t *testing.T) {
	content := readMigration(t, "*_create_platform_settings_table.sql")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS commission_levels",
		"CHECK (level BETWEEN 1 AND 12)",
		"CHECK (percentage BETWEEN 0 AND 100)",
		"UNIQUE (settings_id, level)",
		"uq_platform_settings_single_active",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestMigrationsDirectoryValidates(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("validate migrations: %v", err)
	}
}

func TestEmbeddedMigrationsMatchDirectory(t *testing.T) {
	sources, err := migrate.Sources("")
	if err != nil {
		t.Fatalf("embedded sources: %v", err)
	}
	if err := migrate.Validate(sources); err != nil {
		t.Fatalf("validate embedded migrations: %v", err)
	}
	embedded, err := fs.Glob(sources, "*.sql")
	if err != nil {
		t.Fatalf("glob embedded: %v", err)
	}
	onDisk, err := filepath.Glob(filepath.Join("migrations", "*.sql"))
	if err != nil {
		t.Fatalf("glob dir: %v", err)
	}
	if len(embedded) == 0 || len(embedded) != len(onDisk) {
		t.Fatalf("expected embedded set to mirror the directory: %d vs %d", len(embedded), len(onDisk))
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	sources := fstest.MapFS{
		"20260101000000_ok.sql":      {Data: []byte("-- +goose Up\n-- +goose Down\n")},
		"20260101000000_dup.sql":     {Data: []byte("-- +goose Up\n-- +goose Down\n")},
		"20260102000000_no_down.sql": {Data: []byte("-- +goose Up\n")},
		"add-payout-index.sql":       {Data: []byte("-- +goose Up\n-- +goose Down\n")},
		"README.md":                  {Data: []byte("ignored")},
	}
	err := migrate.Validate(sources)
	if err == nil {
		t.Fatal("expected validation errors")
	}
	if got := len(multierr.Errors(err)); got != 3 {
		t.Fatalf("expected 3 problems, got %d: %v", got, err)
	}
}

func TestCreateSQLMigrationSanitizesName(t *testing.T) {
	dir := t.TempDir()
	path, err := migrate.CreateSQLMigration(dir, "Add Payout Index!")
	if err != nil {
		t.Fatalf("create migration: %v", err)
	}
	if !strings.HasSuffix(path, "_add_payout_index.sql") {
		t.Fatalf("unexpected filename %s", path)
	}
	if err := migrate.ValidateDir(dir); err != nil {
		t.Fatalf("created migration should validate: %v", err)
	}
}
