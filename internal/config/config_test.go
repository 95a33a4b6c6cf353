package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/sales-etl/internal/extract"
	"github.com/sells-group/sales-etl/internal/model"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Empty(t, cfg.Store.DatabaseURL)
	assert.Equal(t, "sales_data", cfg.Store.Table)
	assert.Equal(t, int32(2), cfg.Store.Pool.MaxConns)
	assert.Equal(t, int32(1), cfg.Store.Pool.MinConns)
	assert.Equal(t, "region_a_sales.csv", cfg.Sources.RegionA.Path)
	assert.Equal(t, model.RegionA, cfg.Sources.RegionA.Region)
	assert.Equal(t, "region_b_sales.csv", cfg.Sources.RegionB.Path)
	assert.Equal(t, model.RegionB, cfg.Sources.RegionB.Region)
	assert.Equal(t, "text", cfg.Report.Format)
	assert.Equal(t, "INR", cfg.Report.Currency)
	assert.Equal(t, "sales_etl", cfg.Metrics.Job)
	assert.Empty(t, cfg.Metrics.PushgatewayURL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/sales
  table: analytics.sales_data
sources:
  region_a:
    path: /data/north.csv
    region: North
log:
  level: debug
  format: console
report:
  format: yaml
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/sales", cfg.Store.DatabaseURL)
	assert.Equal(t, "analytics.sales_data", cfg.Store.Table)
	assert.Equal(t, extract.Source{Path: "/data/north.csv", Region: "North"}, cfg.Sources.RegionA)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, "yaml", cfg.Report.Format)
	// Defaults still apply for unset values
	assert.Equal(t, "region_b_sales.csv", cfg.Sources.RegionB.Path)
	assert.Equal(t, "INR", cfg.Report.Currency)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("SALESETL_STORE_DRIVER", "postgres")
	t.Setenv("SALESETL_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	t.Setenv("SALESETL_SOURCES_REGION_B_PATH", "/in/b.csv")
	t.Setenv("SALESETL_REPORT_CURRENCY", "USD")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/in/b.csv", cfg.Sources.RegionB.Path)
	assert.Equal(t, "USD", cfg.Report.Currency)
}

func TestLoadMalformedFile(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("store: [unclosed"), 0644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "sqlite"
	cfg.Sources.RegionA = extract.Source{Path: "a.csv", Region: model.RegionA}
	cfg.Sources.RegionB = extract.Source{Path: "b.csv", Region: model.RegionB}
	cfg.Report.Format = "text"
	return cfg
}

func TestValidateRun_AllPresent(t *testing.T) {
	assert.NoError(t, validDefaults().Validate("run"))
}

func TestValidateRun_MissingSources(t *testing.T) {
	cfg := validDefaults()
	cfg.Sources.RegionA.Path = ""
	cfg.Sources.RegionB.Path = ""

	err := cfg.Validate("run")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "sources.region_a.path is required")
	assert.Contains(t, err.Error(), "sources.region_b.path is required")

	// Sources are irrelevant to commands that only touch the store.
	assert.NoError(t, cfg.Validate("validate"))
	assert.NoError(t, cfg.Validate("migrate"))
}

func TestValidateRegionLabels(t *testing.T) {
	cfg := validDefaults()
	cfg.Sources.RegionB.Region = model.RegionA
	err := cfg.Validate("transform")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "region labels must differ")

	cfg.Sources.RegionB.Region = ""
	err = cfg.Validate("transform")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "must not be empty")
}

func TestValidatePostgres_NoURL(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "postgres"

	err := cfg.Validate("migrate")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "database_url")

	cfg.Store.DatabaseURL = "postgres://localhost/sales"
	assert.NoError(t, cfg.Validate("migrate"))
}

func TestValidateUnknownDriverAndFormat(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "mysql"
	cfg.Report.Format = "xml"

	err := cfg.Validate("validate")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver must be sqlite or postgres")
	assert.Contains(t, err.Error(), "report.format must be text, json or yaml")
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestSourcesList(t *testing.T) {
	cfg := validDefaults()
	got := cfg.Sources.List()
	require.Len(t, got, 2)
	assert.Equal(t, model.RegionA, got[0].Region)
	assert.Equal(t, model.RegionB, got[1].Region)
}
