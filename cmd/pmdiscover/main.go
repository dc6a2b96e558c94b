// pmdiscover - spot-to-invoice process model discovery.
// Reads canonical events from the warehouse, mines a BPMN model and publishes
// it as SVG and PNG to object storage.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/logflow/pmdiscover/pkg/config"
	"github.com/logflow/pmdiscover/pkg/defaults/metrics"
	"github.com/logflow/pmdiscover/pkg/discovery"
	jerrors "github.com/logflow/pmdiscover/pkg/errors"
	"github.com/logflow/pmdiscover/pkg/job"
	"github.com/logflow/pmdiscover/pkg/storage"
	"github.com/logflow/pmdiscover/pkg/telemetry"
	"github.com/logflow/pmdiscover/pkg/tui"
	"github.com/logflow/pmdiscover/pkg/warehouse"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(jerrors.ExitCode(err))
	}
}

func newRootCmd() *cobra.Command {
	o := &options{}

	root := &cobra.Command{
		Use:   "pmdiscover",
		Short: "Discover the spot-to-invoice process model",
		Long: `pmdiscover reads the canonical procurement event view, discovers a
process tree with the inductive miner, converts it to BPMN and publishes the
rendered diagram under a timestamped key in object storage.

Configuration is read from defaults, an optional YAML file, the environment
(OUTPUT_BUCKET, BQ_DATASET, LOOKBACK_DAYS, ...) and flags, in that order.

Examples:
  OUTPUT_BUCKET=my-models pmdiscover
  pmdiscover run --bucket s3://models --lookback-days 90
  pmdiscover run --warehouse duckdb --duckdb-source events.parquet --bucket file:///tmp/models
  pmdiscover dfg --since-days 30 --require-quote-and-invoice`,
		Version:       fmt.Sprintf("%s (%s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiscover(cmd, o)
		},
	}

	o.bind(root)

	run := &cobra.Command{
		Use:   "run",
		Short: "Run one discovery and publish the model (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiscover(cmd, o)
		},
	}

	dfg := &cobra.Command{
		Use:   "dfg",
		Short: "Print the performance-annotated directly-follows graph",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDFG(cmd, o)
		},
	}
	defaults := discovery.DefaultReportParams()
	dfg.Flags().IntVar(&o.sinceDays, "since-days", defaults.SinceDays, "Window in days (1-3650)")
	dfg.Flags().IntVar(&o.minFreq, "min-freq", defaults.MinFreq, "Minimum edge frequency")
	dfg.Flags().IntVar(&o.limit, "limit", defaults.Limit, "Maximum number of edges (1-2000)")
	dfg.Flags().BoolVar(&o.requireQuoteInvoice, "require-quote-and-invoice", false, "Only cases with both a quote request and a vendor invoice")
	dfg.Flags().BoolVar(&o.table, "table", false, "Print a table instead of JSON")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "pmdiscover %s (%s)\n", version, commit)
		},
	}

	root.AddCommand(run, dfg, versionCmd)
	return root
}

func runDiscover(cmd *cobra.Command, o *options) error {
	ctx := cmd.Context()

	cfg, err := o.config(cmd)
	if err != nil {
		return err
	}

	logger, err := telemetry.NewLogger(cfg.Log, os.Stderr)
	if err != nil {
		return jerrors.InvalidConfig(config.EnvLogLevel, cfg.Log.Level, err)
	}
	slog.SetDefault(logger)

	shutdown, err := telemetry.SetupTracing(ctx, telemetry.FromConfig(cfg.Telemetry, version))
	if err != nil {
		logger.Warn("tracing disabled", "error", err)
	} else {
		defer shutdown(context.Background())
	}

	loc, err := storage.ParseLocation(cfg.Output.Bucket)
	if err != nil {
		return jerrors.InvalidConfig(config.EnvBucket, cfg.Output.Bucket, err)
	}
	store, err := storage.Open(ctx, loc)
	if err != nil {
		return jerrors.Wrapf(err, jerrors.CodeUploadFailed, "open %s", loc)
	}
	defer closeQuietly(store)

	src, err := warehouse.Open(ctx, cfg.Warehouse)
	if err != nil {
		return jerrors.Wrap(err, jerrors.CodeQueryFailed, "open warehouse")
	}
	defer src.Close()

	m := metrics.NewLogMetrics(metrics.WithLogger(logger))
	defer m.Flush()

	deps := job.Deps{
		Source:  src,
		Store:   store,
		Metrics: m,
		Logger:  logger,
	}
	var progress *tui.Progress
	if o.progress {
		progress = tui.NewProgress(os.Stderr)
		deps.Stage = progress.Stage
	}

	j, err := job.New(cfg, deps)
	if err != nil {
		return err
	}
	logger.Info("starting discovery",
		"warehouse", src.Name(),
		"lookback_days", cfg.Warehouse.LookbackDays,
		"output", loc.String(),
		"conversion_path", j.Path())

	report, err := j.Run(ctx)
	if progress != nil {
		progress.Done()
	}
	if err != nil {
		return err
	}

	logger.Info("discovery finished",
		"run_id", report.RunID,
		"status", report.Status,
		"uris", report.URIs,
		"duration", report.Duration)
	if o.summary {
		tui.PrintHeader(cmd.OutOrStdout(), version)
		tui.PrintSummary(cmd.OutOrStdout(), report)
	}
	return nil
}

func runDFG(cmd *cobra.Command, o *options) error {
	ctx := cmd.Context()

	cfg, err := o.loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Warehouse.Validate(); err != nil {
		return err
	}
	logger, err := telemetry.NewLogger(cfg.Log, os.Stderr)
	if err != nil {
		return jerrors.InvalidConfig(config.EnvLogLevel, cfg.Log.Level, err)
	}

	src, err := warehouse.Open(ctx, cfg.Warehouse)
	if err != nil {
		return jerrors.Wrap(err, jerrors.CodeQueryFailed, "open warehouse")
	}
	defer src.Close()

	report, err := job.DFG(ctx, src, o.reportParams(), timeNow(), logger)
	if err != nil {
		return err
	}

	if o.table {
		tui.PrintDFG(cmd.OutOrStdout(), report)
		return nil
	}
	return writeJSON(cmd.OutOrStdout(), report)
}

func closeQuietly(v interface{}) {
	if c, ok := v.(io.Closer); ok {
		_ = c.Close()
	}
}
