package migrate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestCreateAtStampsVersion(t *testing.T) {
	dir := t.TempDir()
	at := time.Date(2026, 4, 2, 13, 4, 5, 0, time.UTC)

	path, err := createAt(dir, "  Coach Ledger -- Payout Ref ", at)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if want := filepath.Join(dir, "20260402130405_coach_ledger_payout_ref.sql"); path != want {
		t.Fatalf("expected %s got %s", want, path)
	}
	body, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(body), "-- +goose Up") || !strings.Contains(string(body), "-- rollback coach_ledger_payout_ref") {
		t.Fatalf("unexpected skeleton:\n%s", body)
	}

	if _, err := createAt(dir, "coach ledger payout ref", at); err == nil {
		t.Fatal("expected an existing migration not to be overwritten")
	}
	if _, err := createAt(dir, "!!!", at); err == nil {
		t.Fatal("expected error for a name without usable characters")
	}
}
