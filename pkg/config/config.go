// Package config resolves the job parameters once at startup.
// Priority: defaults < config file < env < flags
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	jerrors "github.com/logflow/pmdiscover/pkg/errors"
)

// Environment variable names.
const (
	EnvDataset        = "BQ_DATASET"
	EnvBucket         = "OUTPUT_BUCKET"
	EnvLocalDir       = "OUTPUT_LOCAL_DIR"
	EnvLookbackDays   = "LOOKBACK_DAYS"
	EnvGCPProject     = "GCP_PROJECT"
	EnvCloudProject   = "GOOGLE_CLOUD_PROJECT"
	EnvOutputPrefix   = "OUTPUT_PREFIX"
	EnvEventsView     = "EVENTS_VIEW"
	EnvLocation       = "BQ_LOCATION"
	EnvWarehouse      = "WAREHOUSE"
	EnvDuckDBSource   = "DUCKDB_SOURCE"
	EnvConversionPath = "CONVERSION_PATH"
	EnvExportEventLog = "EXPORT_EVENT_LOG"
	EnvOTLPEndpoint   = "OTEL_EXPORTER_OTLP_ENDPOINT"
	EnvLogLevel       = "LOG_LEVEL"
	EnvLogFormat      = "LOG_FORMAT"
)

// Warehouse backends.
const (
	WarehouseBigQuery = "bigquery"
	WarehouseDuckDB   = "duckdb"
)

// Conversion paths for process tree -> BPMN.
const (
	ConversionAuto   = "auto"
	ConversionDirect = "direct"
	ConversionNet    = "net"
)

// Config holds every parameter of a run. It is built once in main and passed
// by value, so components never read the environment themselves.
type Config struct {
	Warehouse WarehouseConfig `yaml:"warehouse"`
	Output    OutputConfig    `yaml:"output"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Log       LogConfig       `yaml:"log"`
}

// WarehouseConfig controls where events are read from.
type WarehouseConfig struct {
	Backend      string `yaml:"backend"`       // bigquery | duckdb
	Project      string `yaml:"project"`       // empty = ambient credentials' project
	Dataset      string `yaml:"dataset"`
	View         string `yaml:"view"`
	Location     string `yaml:"location"`      // e.g. "EU"
	LookbackDays int    `yaml:"lookback_days"`
	DuckDBSource string `yaml:"duckdb_source"` // file or glob read by the duckdb backend
}

// OutputConfig controls where rendered artifacts go.
type OutputConfig struct {
	Bucket         string `yaml:"bucket"`   // gs://bucket, s3://bucket or file:///dir
	Prefix         string `yaml:"prefix"`   // key prefix before the timestamp
	LocalDir       string `yaml:"local_dir"`
	ExportEventLog bool   `yaml:"export_event_log"`
}

// DiscoveryConfig controls model conversion.
type DiscoveryConfig struct {
	ConversionPath string `yaml:"conversion_path"` // auto | direct | net
}

// TelemetryConfig for optional trace export.
type TelemetryConfig struct {
	Endpoint    string `yaml:"endpoint"`
	ServiceName string `yaml:"service_name"`
	Insecure    bool   `yaml:"insecure"`
}

// LogConfig for the process logger.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		Warehouse: WarehouseConfig{
			Backend:      WarehouseBigQuery,
			Dataset:      "fyxer_dw",
			View:         "v_proc_events_canon",
			LookbackDays: 180,
		},
		Output: OutputConfig{
			Prefix: "process_models/spot_to_invoice_",
		},
		Discovery: DiscoveryConfig{
			ConversionPath: ConversionAuto,
		},
		Telemetry: TelemetryConfig{
			ServiceName: "pmdiscover",
			Insecure:    true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LookupFunc reads one environment variable.
type LookupFunc func(key string) (string, bool)

// LoadOptions selects the sources Load reads.
type LoadOptions struct {
	// File is an optional YAML config file. Empty means none.
	File string

	// Lookup reads environment variables. Defaults to os.LookupEnv.
	Lookup LookupFunc
}

// Load builds a Config from defaults, an optional file and the environment.
// The result is not validated; call Validate after applying flag overrides.
func Load(opts LoadOptions) (Config, error) {
	cfg := Default()

	if opts.File != "" {
		if err := loadFile(&cfg, opts.File); err != nil {
			return Config{}, err
		}
	}

	lookup := opts.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if err := loadEnv(&cfg, lookup); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// loadFile merges non-zero values from a YAML file into cfg.
func loadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return jerrors.Wrapf(err, jerrors.CodeInvalidConfig, "read config file %s", path)
	}

	var partial Config
	if err := yaml.Unmarshal(data, &partial); err != nil {
		return jerrors.Wrapf(err, jerrors.CodeInvalidConfig, "parse config file %s", path)
	}

	merge(cfg, &partial)
	return nil
}

// merge copies non-zero values from src into dst.
func merge(dst, src *Config) {
	setString(&dst.Warehouse.Backend, src.Warehouse.Backend)
	setString(&dst.Warehouse.Project, src.Warehouse.Project)
	setString(&dst.Warehouse.Dataset, src.Warehouse.Dataset)
	setString(&dst.Warehouse.View, src.Warehouse.View)
	setString(&dst.Warehouse.Location, src.Warehouse.Location)
	setString(&dst.Warehouse.DuckDBSource, src.Warehouse.DuckDBSource)
	if src.Warehouse.LookbackDays != 0 {
		dst.Warehouse.LookbackDays = src.Warehouse.LookbackDays
	}

	setString(&dst.Output.Bucket, src.Output.Bucket)
	setString(&dst.Output.Prefix, src.Output.Prefix)
	setString(&dst.Output.LocalDir, src.Output.LocalDir)
	if src.Output.ExportEventLog {
		dst.Output.ExportEventLog = true
	}

	setString(&dst.Discovery.ConversionPath, src.Discovery.ConversionPath)

	setString(&dst.Telemetry.Endpoint, src.Telemetry.Endpoint)
	setString(&dst.Telemetry.ServiceName, src.Telemetry.ServiceName)

	setString(&dst.Log.Level, src.Log.Level)
	setString(&dst.Log.Format, src.Log.Format)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// loadEnv overrides cfg with environment variables.
func loadEnv(cfg *Config, lookup LookupFunc) error {
	get := func(key string) string {
		v, _ := lookup(key)
		return strings.TrimSpace(v)
	}

	setString(&cfg.Warehouse.Dataset, get(EnvDataset))
	setString(&cfg.Warehouse.View, get(EnvEventsView))
	setString(&cfg.Warehouse.Location, get(EnvLocation))
	setString(&cfg.Warehouse.Backend, get(EnvWarehouse))
	setString(&cfg.Warehouse.DuckDBSource, get(EnvDuckDBSource))

	// GCP_PROJECT wins over GOOGLE_CLOUD_PROJECT.
	if p := get(EnvGCPProject); p != "" {
		cfg.Warehouse.Project = p
	} else {
		setString(&cfg.Warehouse.Project, get(EnvCloudProject))
	}

	if v := get(EnvLookbackDays); v != "" {
		days, err := strconv.Atoi(v)
		if err != nil {
			return jerrors.InvalidConfig(EnvLookbackDays, v, err)
		}
		cfg.Warehouse.LookbackDays = days
	}

	setString(&cfg.Output.Bucket, get(EnvBucket))
	setString(&cfg.Output.Prefix, get(EnvOutputPrefix))
	setString(&cfg.Output.LocalDir, get(EnvLocalDir))

	if v := get(EnvExportEventLog); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return jerrors.InvalidConfig(EnvExportEventLog, v, err)
		}
		cfg.Output.ExportEventLog = b
	}

	setString(&cfg.Discovery.ConversionPath, get(EnvConversionPath))
	setString(&cfg.Telemetry.Endpoint, get(EnvOTLPEndpoint))
	setString(&cfg.Log.Level, get(EnvLogLevel))
	setString(&cfg.Log.Format, get(EnvLogFormat))

	return nil
}

// Validate checks required parameters. It performs no I/O.
func (c Config) Validate() error {
	if c.Output.Bucket == "" {
		return jerrors.MissingConfig(EnvBucket, "gs://my-bucket")
	}

	if c.Warehouse.LookbackDays <= 0 {
		return jerrors.InvalidConfig(EnvLookbackDays, strconv.Itoa(c.Warehouse.LookbackDays),
			fmt.Errorf("must be a positive number of days"))
	}

	if err := c.Warehouse.Validate(); err != nil {
		return err
	}

	switch c.Discovery.ConversionPath {
	case ConversionAuto, ConversionDirect, ConversionNet:
	default:
		return jerrors.InvalidConfig(EnvConversionPath, c.Discovery.ConversionPath,
			fmt.Errorf("expected auto, direct or net"))
	}

	if c.Output.Prefix == "" {
		return jerrors.MissingConfig(EnvOutputPrefix, "process_models/spot_to_invoice_")
	}

	return nil
}

// Validate checks the warehouse selection only. Commands that never publish
// use it instead of Config.Validate.
func (w WarehouseConfig) Validate() error {
	switch w.Backend {
	case WarehouseBigQuery:
		if w.Dataset == "" {
			return jerrors.MissingConfig(EnvDataset, "fyxer_dw")
		}
	case WarehouseDuckDB:
		if w.DuckDBSource == "" {
			return jerrors.MissingConfig(EnvDuckDBSource, "events.parquet")
		}
	default:
		return jerrors.InvalidConfig(EnvWarehouse, w.Backend,
			fmt.Errorf("expected %q or %q", WarehouseBigQuery, WarehouseDuckDB))
	}
	return nil
}

// Resolve loads and validates in one step.
func Resolve(opts LoadOptions) (Config, error) {
	cfg, err := Load(opts)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// MapLookup adapts a map to LookupFunc.
func MapLookup(env map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}
