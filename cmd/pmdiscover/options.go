package main

import (
	"encoding/json"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/logflow/pmdiscover/pkg/config"
	"github.com/logflow/pmdiscover/pkg/discovery"
)

var timeNow = time.Now

// options holds flag values. Flags only override configuration when set.
type options struct {
	configFile string

	bucket         string
	prefix         string
	localDir       string
	lookbackDays   int
	warehouse      string
	dataset        string
	duckdbSource   string
	conversionPath string
	exportEventLog bool
	logLevel       string
	logFormat      string

	progress bool
	summary  bool

	sinceDays           int
	minFreq             int
	limit               int
	requireQuoteInvoice bool
	table               bool
}

func (o *options) bind(root *cobra.Command) {
	f := root.PersistentFlags()
	f.StringVarP(&o.configFile, "config", "c", "", "YAML config file")
	f.StringVar(&o.bucket, "bucket", "", "Output location: bucket, gs://, s3:// or file:// (env OUTPUT_BUCKET)")
	f.StringVar(&o.prefix, "prefix", "", "Object key prefix (env OUTPUT_PREFIX)")
	f.StringVar(&o.localDir, "local-dir", "", "Also write artifacts to this directory (env OUTPUT_LOCAL_DIR)")
	f.IntVar(&o.lookbackDays, "lookback-days", 0, "Event window in days (env LOOKBACK_DAYS)")
	f.StringVar(&o.warehouse, "warehouse", "", "Warehouse backend: bigquery or duckdb (env WAREHOUSE)")
	f.StringVar(&o.dataset, "dataset", "", "BigQuery dataset (env BQ_DATASET)")
	f.StringVar(&o.duckdbSource, "duckdb-source", "", "File read by the duckdb backend (env DUCKDB_SOURCE)")
	f.StringVar(&o.conversionPath, "conversion-path", "", "Tree to BPMN route: auto, direct or net (env CONVERSION_PATH)")
	f.BoolVar(&o.exportEventLog, "export-event-log", false, "Also publish a Parquet snapshot of the event log")
	f.StringVar(&o.logLevel, "log-level", "", "debug, info, warn or error (env LOG_LEVEL)")
	f.StringVar(&o.logFormat, "log-format", "", "text or json (env LOG_FORMAT)")
	f.BoolVar(&o.progress, "progress", false, "Show a spinner while running")
	f.BoolVar(&o.summary, "summary", false, "Print a run summary to stdout")
}

// loadConfig resolves defaults, file and environment, then applies flags.
// The result is not validated.
func (o *options) loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(config.LoadOptions{File: o.configFile})
	if err != nil {
		return config.Config{}, err
	}
	o.apply(cmd, &cfg)
	return cfg, nil
}

// config is loadConfig followed by full validation.
func (o *options) config(cmd *cobra.Command) (config.Config, error) {
	cfg, err := o.loadConfig(cmd)
	if err != nil {
		return config.Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func (o *options) apply(cmd *cobra.Command, cfg *config.Config) {
	changed := cmd.Flags().Changed

	if changed("bucket") {
		cfg.Output.Bucket = o.bucket
	}
	if changed("prefix") {
		cfg.Output.Prefix = o.prefix
	}
	if changed("local-dir") {
		cfg.Output.LocalDir = o.localDir
	}
	if changed("lookback-days") {
		cfg.Warehouse.LookbackDays = o.lookbackDays
	}
	if changed("warehouse") {
		cfg.Warehouse.Backend = o.warehouse
	}
	if changed("dataset") {
		cfg.Warehouse.Dataset = o.dataset
	}
	if changed("duckdb-source") {
		cfg.Warehouse.DuckDBSource = o.duckdbSource
	}
	if changed("conversion-path") {
		cfg.Discovery.ConversionPath = o.conversionPath
	}
	if changed("export-event-log") {
		cfg.Output.ExportEventLog = o.exportEventLog
	}
	if changed("log-level") {
		cfg.Log.Level = o.logLevel
	}
	if changed("log-format") {
		cfg.Log.Format = o.logFormat
	}
}

func (o *options) reportParams() discovery.ReportParams {
	return discovery.ReportParams{
		SinceDays:              o.sinceDays,
		MinFreq:                o.minFreq,
		Limit:                  o.limit,
		RequireQuoteAndInvoice: o.requireQuoteInvoice,
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
