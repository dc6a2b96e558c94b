// Package warehouse fetches the canonical process event view for a lookback window.
package warehouse

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/logflow/pmdiscover/pkg/config"
	jerrors "github.com/logflow/pmdiscover/pkg/errors"
	"github.com/logflow/pmdiscover/pkg/eventlog"
)

// Source runs the event query against one warehouse.
type Source interface {
	// Query returns case_id, activity and ts for events newer than lookbackDays.
	Query(ctx context.Context, lookbackDays int) (*eventlog.Frame, error)
	// Name identifies the backend in logs.
	Name() string
	Close() error
}

// Open connects to the warehouse named by cfg.Backend.
func Open(ctx context.Context, cfg config.WarehouseConfig) (Source, error) {
	switch cfg.Backend {
	case config.WarehouseBigQuery, "":
		return NewBigQuery(ctx, cfg)
	case config.WarehouseDuckDB:
		return NewDuckDB(cfg.DuckDBSource, time.Now)
	default:
		return nil, jerrors.InvalidConfig(config.EnvWarehouse, cfg.Backend, fmt.Errorf("unknown warehouse backend"))
	}
}

// BigQuerySQL is the event query for a fully qualified view. The lookback is
// bound as the @lookback_days named parameter.
func BigQuerySQL(project, dataset, view string) string {
	return fmt.Sprintf(
		"SELECT canon_case_id AS case_id, activity, ts\n"+
			"FROM `%s.%s.%s`\n"+
			"WHERE ts >= TIMESTAMP_SUB(CURRENT_TIMESTAMP(), INTERVAL @lookback_days DAY)",
		project, dataset, view)
}

// Fetch queries src and builds the event log. An empty result yields an
// empty, non-nil log.
func Fetch(ctx context.Context, src Source, lookbackDays int, logger *slog.Logger) (*eventlog.Log, error) {
	ctx, span := otel.Tracer("pmdiscover/warehouse").Start(ctx, "warehouse.fetch")
	defer span.End()
	span.SetAttributes(
		attribute.String("warehouse", src.Name()),
		attribute.Int("lookback_days", lookbackDays),
	)

	start := time.Now()
	frame, err := src.Query(ctx, lookbackDays)
	if err != nil {
		span.RecordError(err)
		if ctx.Err() != nil {
			return nil, jerrors.Wrap(err, jerrors.CodeCanceled, "query canceled")
		}
		return nil, jerrors.Wrap(err, jerrors.CodeQueryFailed, "event query failed")
	}

	log, err := eventlog.FromSourceFrame(frame)
	if err != nil {
		span.RecordError(err)
		return nil, jerrors.Wrap(err, jerrors.CodeQueryFailed, "malformed query result")
	}

	span.SetAttributes(attribute.Int("rows", frame.Len()))
	logger.Info("fetched events",
		"warehouse", src.Name(),
		"rows", frame.Len(),
		"cases", log.NumCases(),
		"dropped", log.Dropped(),
		"elapsed", time.Since(start).Round(time.Millisecond))
	return log, nil
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
