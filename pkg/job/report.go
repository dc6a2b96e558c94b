package job

import (
	"context"
	"log/slog"
	"time"

	"github.com/logflow/pmdiscover/pkg/discovery"
	"github.com/logflow/pmdiscover/pkg/warehouse"
)

// DFG fetches the events of the last params.SinceDays days from src and
// builds the performance-annotated directly-follows report.
func DFG(ctx context.Context, src warehouse.Source, params discovery.ReportParams, now time.Time, logger *slog.Logger) (*discovery.Report, error) {
	if logger == nil {
		logger = slog.Default()
	}
	params = params.Normalize()

	log, err := warehouse.Fetch(ctx, src, params.SinceDays, logger)
	if err != nil {
		return nil, err
	}

	report := discovery.BuildReport(log, params, now)
	logger.Info("built dfg report", "edges", len(report.Edges), "filtered", params.RequireQuoteAndInvoice)
	return report, nil
}
