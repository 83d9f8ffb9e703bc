package bigquery

import (
	"fmt"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
)

// LedgerRow is one exported ledger transaction. Money columns are NUMERIC.
type LedgerRow struct {
	TransactionID   string              `bigquery:"transaction_id"`
	CoachID         string              `bigquery:"coach_id"`
	Direction       string              `bigquery:"direction"`
	Type            string              `bigquery:"type"`
	Status          string              `bigquery:"status"`
	Currency        string              `bigquery:"currency"`
	GrossAmount     *big.Rat            `bigquery:"gross_amount"`
	NetAmount       *big.Rat            `bigquery:"net_amount"`
	PlatformFee     *big.Rat            `bigquery:"platform_fee"`
	GSTAmount       *big.Rat            `bigquery:"gst_amount"`
	TDSAmount       *big.Rat            `bigquery:"tds_amount"`
	PayoutFee       *big.Rat            `bigquery:"payout_fee"`
	CommissionLevel bigquery.NullInt64  `bigquery:"commission_level"`
	SourceID        bigquery.NullString `bigquery:"source_transaction_id"`
	ReversalOf      bigquery.NullString `bigquery:"reversal_of"`
	ProductInfo     bigquery.NullJSON   `bigquery:"product_info"`
	TransactionDate time.Time           `bigquery:"transaction_date"`
	UpdatedAt       time.Time           `bigquery:"updated_at"`
}

// InsertID is stable per (row, version): a retried batch dedupes while a
// later status change of the same transaction is exported again.
func (r LedgerRow) InsertID() string {
	return fmt.Sprintf("%s-%d", r.TransactionID, r.UpdatedAt.UnixNano())
}

func (r *LedgerRow) saver() *bigquery.StructSaver {
	return &bigquery.StructSaver{Struct: r, InsertID: r.InsertID()}
}

func ledgerTableMetadata() (*bigquery.TableMetadata, error) {
	schema, err := bigquery.InferSchema(LedgerRow{})
	if err != nil {
		return nil, fmt.Errorf("infer ledger schema: %w", err)
	}
	return &bigquery.TableMetadata{
		Name:        "Coach ledger transactions",
		Description: "Settled ledger rows exported by the cron worker.",
		Schema:      schema,
		TimePartitioning: &bigquery.TimePartitioning{
			Type:  bigquery.DayPartitioningType,
			Field: "transaction_date",
		},
		Clustering: &bigquery.Clustering{Fields: []string{"coach_id", "type"}},
	}, nil
}
