package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jerrors "github.com/logflow/pmdiscover/pkg/errors"
)

func TestResolve_Defaults(t *testing.T) {
	cfg, err := Resolve(LoadOptions{Lookup: MapLookup(map[string]string{
		EnvBucket: "gs://models",
	})})
	require.NoError(t, err)

	assert.Equal(t, "fyxer_dw", cfg.Warehouse.Dataset)
	assert.Equal(t, 180, cfg.Warehouse.LookbackDays)
	assert.Equal(t, "", cfg.Warehouse.Project)
	assert.Equal(t, "", cfg.Output.LocalDir)
	assert.Equal(t, "gs://models", cfg.Output.Bucket)
	assert.Equal(t, "process_models/spot_to_invoice_", cfg.Output.Prefix)
	assert.Equal(t, ConversionAuto, cfg.Discovery.ConversionPath)
	assert.Equal(t, WarehouseBigQuery, cfg.Warehouse.Backend)
}

func TestResolve_MissingBucket(t *testing.T) {
	_, err := Resolve(LoadOptions{Lookup: MapLookup(map[string]string{
		EnvDataset: "other",
	})})
	require.Error(t, err)
	assert.True(t, jerrors.IsCode(err, jerrors.CodeMissingConfig))
	assert.Contains(t, err.Error(), EnvBucket)
}

func TestResolve_Env(t *testing.T) {
	cfg, err := Resolve(LoadOptions{Lookup: MapLookup(map[string]string{
		EnvBucket:       "gs://models",
		EnvDataset:      "dw",
		EnvLocalDir:     "  /tmp/out  ",
		EnvLookbackDays: "30",
		EnvCloudProject: "fallback-project",
		EnvGCPProject:   "primary-project",
	})})
	require.NoError(t, err)

	assert.Equal(t, "dw", cfg.Warehouse.Dataset)
	assert.Equal(t, "/tmp/out", cfg.Output.LocalDir)
	assert.Equal(t, 30, cfg.Warehouse.LookbackDays)
	assert.Equal(t, "primary-project", cfg.Warehouse.Project)
}

func TestResolve_CloudProjectFallback(t *testing.T) {
	cfg, err := Resolve(LoadOptions{Lookup: MapLookup(map[string]string{
		EnvBucket:       "gs://models",
		EnvCloudProject: "fallback-project",
	})})
	require.NoError(t, err)
	assert.Equal(t, "fallback-project", cfg.Warehouse.Project)
}

func TestResolve_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		code jerrors.Code
	}{
		{"non-integer lookback", map[string]string{EnvBucket: "gs://b", EnvLookbackDays: "six months"}, jerrors.CodeInvalidConfig},
		{"zero lookback", map[string]string{EnvBucket: "gs://b", EnvLookbackDays: "0"}, jerrors.CodeInvalidConfig},
		{"bad conversion path", map[string]string{EnvBucket: "gs://b", EnvConversionPath: "magic"}, jerrors.CodeInvalidConfig},
		{"bad warehouse", map[string]string{EnvBucket: "gs://b", EnvWarehouse: "postgres"}, jerrors.CodeInvalidConfig},
		{"duckdb without source", map[string]string{EnvBucket: "gs://b", EnvWarehouse: "duckdb"}, jerrors.CodeMissingConfig},
		{"bad export flag", map[string]string{EnvBucket: "gs://b", EnvExportEventLog: "maybe"}, jerrors.CodeInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Resolve(LoadOptions{Lookup: MapLookup(tt.env)})
			require.Error(t, err)
			assert.Equal(t, tt.code, jerrors.GetCode(err))
		})
	}
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pmdiscover.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
warehouse:
  dataset: from_file
  lookback_days: 90
  location: EU
output:
  bucket: gs://file-bucket
  export_event_log: true
discovery:
  conversion_path: net
`), 0o644))

	cfg, err := Resolve(LoadOptions{
		File:   path,
		Lookup: MapLookup(map[string]string{EnvLookbackDays: "7"}),
	})
	require.NoError(t, err)

	assert.Equal(t, "from_file", cfg.Warehouse.Dataset)
	assert.Equal(t, "EU", cfg.Warehouse.Location)
	assert.Equal(t, 7, cfg.Warehouse.LookbackDays, "env overrides file")
	assert.Equal(t, "gs://file-bucket", cfg.Output.Bucket)
	assert.True(t, cfg.Output.ExportEventLog)
	assert.Equal(t, ConversionNet, cfg.Discovery.ConversionPath)
	assert.Equal(t, "v_proc_events_canon", cfg.Warehouse.View, "defaults survive partial files")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(LoadOptions{File: filepath.Join(t.TempDir(), "nope.yaml"), Lookup: MapLookup(nil)})
	require.Error(t, err)
	assert.True(t, jerrors.IsCode(err, jerrors.CodeInvalidConfig))
}

func TestWarehouseValidate(t *testing.T) {
	assert.NoError(t, Default().Warehouse.Validate(), "no bucket needed")

	w := Default().Warehouse
	w.Backend = WarehouseDuckDB
	assert.True(t, jerrors.IsCode(w.Validate(), jerrors.CodeMissingConfig))

	w.DuckDBSource = "events.parquet"
	assert.NoError(t, w.Validate())

	w.Backend = "snowflake"
	assert.True(t, jerrors.IsCode(w.Validate(), jerrors.CodeInvalidConfig))
}
