package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/angelmondragon/coachledger-backend/pkg/config"
	"github.com/angelmondragon/coachledger-backend/pkg/logger"
)

const metadataTimeout = 10 * time.Second

var (
	ErrNotConfigured = errors.New("bigquery ledger sink not configured")

	errProjectIDRequired = errors.New("gcp project id is required")
	errDatasetRequired   = errors.New("bigquery dataset is required")
	errTableRequired     = errors.New("bigquery ledger table is required")
)

// Client streams settled ledger rows into a single day-partitioned table.
type Client struct {
	bq    *bigquery.Client
	table *bigquery.Table
}

// NewClient connects to the dataset and makes sure the ledger table exists,
// creating it from LedgerRow's schema when it does not.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.BigQueryConfig, logg *logger.Logger) (*Client, error) {
	projectID := strings.TrimSpace(gcp.ProjectID)
	datasetID := strings.TrimSpace(cfg.Dataset)
	tableID := strings.TrimSpace(cfg.LedgerTable)
	switch {
	case projectID == "":
		return nil, errProjectIDRequired
	case datasetID == "":
		return nil, errDatasetRequired
	case tableID == "":
		return nil, errTableRequired
	}

	bq, err := bigquery.NewClient(ctx, projectID, credentialOptions(gcp)...)
	if err != nil {
		return nil, fmt.Errorf("create bigquery client: %w", err)
	}
	c := &Client{bq: bq, table: bq.Dataset(datasetID).Table(tableID)}

	created, err := c.ensureLedgerTable(ctx)
	if err != nil {
		_ = bq.Close()
		return nil, err
	}
	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"dataset": datasetID,
			"table":   tableID,
			"created": created,
		}), "bigquery ledger sink ready")
	}
	return c, nil
}

func credentialOptions(gcp config.GCPConfig) []option.ClientOption {
	if raw := strings.TrimSpace(gcp.CredentialsJSON); raw != "" {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(raw))}
	}
	if path := strings.TrimSpace(gcp.ApplicationCredentials); path != "" {
		return []option.ClientOption{option.WithCredentialsFile(path)}
	}
	return nil
}

func (c *Client) ensureLedgerTable(ctx context.Context) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, metadataTimeout)
	defer cancel()

	if _, err := c.table.Metadata(ctx); err == nil {
		return false, nil
	} else if !isNotFound(err) {
		return false, fmt.Errorf("inspect table %s: %w", c.table.TableID, err)
	}

	if _, err := c.table.ParentDataset().Metadata(ctx); err != nil {
		if isNotFound(err) {
			return false, fmt.Errorf("dataset %s does not exist", c.table.DatasetID)
		}
		return false, fmt.Errorf("inspect dataset %s: %w", c.table.DatasetID, err)
	}

	meta, err := ledgerTableMetadata()
	if err != nil {
		return false, err
	}
	if err := c.table.Create(ctx, meta); err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusConflict {
			return false, nil
		}
		return false, fmt.Errorf("create table %s: %w", c.table.TableID, err)
	}
	return true, nil
}

// Ping checks the ledger table is still reachable.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.table == nil {
		return ErrNotConfigured
	}
	ctx, cancel := context.WithTimeout(ctx, metadataTimeout)
	defer cancel()
	_, err := c.table.Metadata(ctx)
	return err
}

// InsertLedger streams rows; BigQuery drops rows whose insert id it has
// already seen, so a retried batch does not duplicate.
func (c *Client) InsertLedger(ctx context.Context, rows []LedgerRow) error {
	if c == nil || c.table == nil {
		return ErrNotConfigured
	}
	if len(rows) == 0 {
		return nil
	}
	savers := make([]*bigquery.StructSaver, 0, len(rows))
	for i := range rows {
		savers = append(savers, rows[i].saver())
	}
	if err := c.table.Inserter().Put(ctx, savers); err != nil {
		var multi bigquery.PutMultiError
		if errors.As(err, &multi) {
			return fmt.Errorf("%d of %d ledger rows rejected: %w", len(multi), len(rows), err)
		}
		return err
	}
	return nil
}

func (c *Client) Close() error {
	if c == nil || c.bq == nil {
		return nil
	}
	return c.bq.Close()
}

func isNotFound(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound
}
