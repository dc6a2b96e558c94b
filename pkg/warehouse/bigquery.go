package warehouse

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/logflow/pmdiscover/pkg/config"
	"github.com/logflow/pmdiscover/pkg/eventlog"
)

// BigQuery reads events from a BigQuery view.
type BigQuery struct {
	client   *bigquery.Client
	dataset  string
	view     string
	location string
}

// NewBigQuery connects to BigQuery. Without a configured project the client
// detects it from the ambient credentials.
func NewBigQuery(ctx context.Context, cfg config.WarehouseConfig, opts ...option.ClientOption) (*BigQuery, error) {
	project := cfg.Project
	if project == "" {
		project = bigquery.DetectProjectID
	}
	client, err := bigquery.NewClient(ctx, project, opts...)
	if err != nil {
		return nil, fmt.Errorf("create bigquery client: %w", err)
	}
	return &BigQuery{
		client:   client,
		dataset:  cfg.Dataset,
		view:     cfg.View,
		location: cfg.Location,
	}, nil
}

// Name returns "bigquery".
func (b *BigQuery) Name() string {
	return config.WarehouseBigQuery
}

// SQL returns the statement Query runs.
func (b *BigQuery) SQL() string {
	return BigQuerySQL(b.client.Project(), b.dataset, b.view)
}

// Query runs the event query with the lookback bound as a named parameter.
func (b *BigQuery) Query(ctx context.Context, lookbackDays int) (*eventlog.Frame, error) {
	q := b.client.Query(b.SQL())
	q.Parameters = []bigquery.QueryParameter{
		{Name: "lookback_days", Value: int64(lookbackDays)},
	}
	if b.location != "" {
		q.Location = b.location
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("run query: %w", err)
	}

	frame := &eventlog.Frame{
		Columns: []string{eventlog.SourceCaseID, eventlog.SourceActivity, eventlog.SourceTimestamp},
	}
	for {
		var row []bigquery.Value
		err := it.Next(&row)
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read rows: %w", err)
		}
		if len(row) != len(frame.Columns) {
			return nil, fmt.Errorf("expected %d columns, got %d", len(frame.Columns), len(row))
		}
		values := make([]interface{}, len(row))
		for i, v := range row {
			values[i] = v
		}
		frame.Rows = append(frame.Rows, values)
	}
	return frame, nil
}

// Close releases the client.
func (b *BigQuery) Close() error {
	return b.client.Close()
}
