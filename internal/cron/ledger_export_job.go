package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	cbigquery "cloud.google.com/go/bigquery"
	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/coachledger-backend/pkg/bigquery"
	"github.com/angelmondragon/coachledger-backend/pkg/db/models"
	"github.com/angelmondragon/coachledger-backend/pkg/logger"
	"github.com/angelmondragon/coachledger-backend/pkg/pagination"
)

const (
	defaultExportBatchSize  = 500
	defaultExportMaxBatches = 20
	ledgerExportWatermark   = "ledger-export"
)

type exportSource interface {
	ListCompletedSince(ctx context.Context, cursor *pagination.Cursor, limit int) ([]models.Transaction, error)
}

type ledgerSink interface {
	InsertLedger(ctx context.Context, rows []bigquery.LedgerRow) error
}

type watermarkStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	WatermarkKey(name string) string
}

// LedgerExportJobParams configures the BigQuery ledger export.
type LedgerExportJobParams struct {
	Logger     *logger.Logger
	Ledger     exportSource
	Sink       ledgerSink
	Watermarks watermarkStore
	BatchSize  int
	MaxBatches int
}

func NewLedgerExportJob(params LedgerExportJobParams) (Job, error) {
	switch {
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	case params.Ledger == nil:
		return nil, fmt.Errorf("ledger repository required")
	case params.Sink == nil:
		return nil, fmt.Errorf("ledger sink required")
	case params.Watermarks == nil:
		return nil, fmt.Errorf("watermark store required")
	}
	if params.BatchSize <= 0 {
		params.BatchSize = defaultExportBatchSize
	}
	if params.MaxBatches <= 0 {
		params.MaxBatches = defaultExportMaxBatches
	}
	return &ledgerExportJob{
		logg:       params.Logger,
		ledger:     params.Ledger,
		sink:       params.Sink,
		watermarks: params.Watermarks,
		key:        params.Watermarks.WatermarkKey(ledgerExportWatermark),
		batchSize:  params.BatchSize,
		maxBatches: params.MaxBatches,
	}, nil
}

type ledgerExportJob struct {
	logg       *logger.Logger
	ledger     exportSource
	sink       ledgerSink
	watermarks watermarkStore
	key        string
	batchSize  int
	maxBatches int
}

func (j *ledgerExportJob) Name() string { return "ledger-export" }

// Run streams settled rows changed since the watermark. The watermark only advances
// after a batch is accepted, so a failed insert is retried next cycle.
func (j *ledgerExportJob) Run(ctx context.Context) error {
	cursor, err := j.loadWatermark(ctx)
	if err != nil {
		return err
	}

	exported := 0
	for batchNo := 0; batchNo < j.maxBatches; batchNo++ {
		rows, err := j.ledger.ListCompletedSince(ctx, cursor, j.batchSize)
		if err != nil {
			return fmt.Errorf("list settled rows: %w", err)
		}
		if len(rows) == 0 {
			break
		}

		batch := make([]bigquery.LedgerRow, 0, len(rows))
		for _, row := range rows {
			batch = append(batch, exportRow(row))
		}
		if err := j.sink.InsertLedger(ctx, batch); err != nil {
			return fmt.Errorf("insert ledger rows: %w", err)
		}

		last := rows[len(rows)-1]
		cursor = &pagination.Cursor{CreatedAt: last.UpdatedAt, ID: last.ID}
		if err := j.watermarks.Set(ctx, j.key, pagination.EncodeCursor(*cursor), 0); err != nil {
			return fmt.Errorf("store export watermark: %w", err)
		}
		exported += len(rows)
		if len(rows) < j.batchSize {
			break
		}
	}

	j.logg.Info(j.logg.WithField(ctx, "rows_exported", exported), "ledger export complete")
	return nil
}

func (j *ledgerExportJob) loadWatermark(ctx context.Context) (*pagination.Cursor, error) {
	raw, err := j.watermarks.Get(ctx, j.key)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("read export watermark: %w", err)
	}
	cursor, err := pagination.ParseCursor(raw)
	if err != nil {
		j.logg.Warn(j.logg.WithField(ctx, "watermark", raw), "discarding unreadable export watermark")
		return nil, nil
	}
	return cursor, nil
}

func exportRow(row models.Transaction) bigquery.LedgerRow {
	out := bigquery.LedgerRow{
		TransactionID:   row.ID.String(),
		CoachID:         row.CoachID.String(),
		Direction:       string(row.Direction),
		Type:            string(row.Type),
		Status:          string(row.Status),
		Currency:        string(row.Currency),
		GrossAmount:     row.GrossAmount.Round(2).Rat(),
		NetAmount:       row.NetAmount.Round(2).Rat(),
		PlatformFee:     row.Fees.PlatformFee.Round(2).Rat(),
		GSTAmount:       row.Fees.GSTAmount.Round(2).Rat(),
		TDSAmount:       row.Fees.TDSAmount.Round(2).Rat(),
		PayoutFee:       row.Fees.PayoutFee.Round(2).Rat(),
		TransactionDate: row.TransactionDate.UTC(),
		UpdatedAt:       row.UpdatedAt.UTC(),
	}
	if row.Commission.Level != nil {
		out.CommissionLevel = cbigquery.NullInt64{Int64: int64(*row.Commission.Level), Valid: true}
	}
	if row.Commission.SourceTransactionID != nil {
		out.SourceID = cbigquery.NullString{StringVal: row.Commission.SourceTransactionID.String(), Valid: true}
	}
	if row.ReversalOf != nil {
		out.ReversalOf = cbigquery.NullString{StringVal: row.ReversalOf.String(), Valid: true}
	}
	if len(row.ProductInfo) > 0 {
		out.ProductInfo = cbigquery.NullJSON{JSONVal: string(row.ProductInfo), Valid: true}
	}
	return out
}
