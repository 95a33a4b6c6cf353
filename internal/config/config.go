package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/sales-etl/internal/extract"
	"github.com/sells-group/sales-etl/internal/model"
	"github.com/sells-group/sales-etl/internal/store"
)

// Config holds the full application configuration.
type Config struct {
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Sources SourcesConfig `yaml:"sources" mapstructure:"sources"`
	Report  ReportConfig  `yaml:"report" mapstructure:"report"`
	Metrics MetricsConfig `yaml:"metrics" mapstructure:"metrics"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string           `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string           `yaml:"database_url" mapstructure:"database_url"`
	Table       string           `yaml:"table" mapstructure:"table"`
	Pool        store.PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// SourcesConfig names the two regional input files.
type SourcesConfig struct {
	RegionA extract.Source `yaml:"region_a" mapstructure:"region_a"`
	RegionB extract.Source `yaml:"region_b" mapstructure:"region_b"`
}

// List returns the sources in concatenation order.
func (c SourcesConfig) List() []extract.Source {
	return []extract.Source{c.RegionA, c.RegionB}
}

// ReportConfig configures validation report rendering.
type ReportConfig struct {
	Format   string `yaml:"format" mapstructure:"format"`
	Currency string `yaml:"currency" mapstructure:"currency"`
}

// MetricsConfig configures the optional Pushgateway export.
type MetricsConfig struct {
	PushgatewayURL string `yaml:"pushgateway_url" mapstructure:"pushgateway_url"`
	Job            string `yaml:"job" mapstructure:"job"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("SALESETL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.table", store.DefaultTable)
	v.SetDefault("store.pool.max_conns", 2)
	v.SetDefault("store.pool.min_conns", 1)
	v.SetDefault("sources.region_a.path", "region_a_sales.csv")
	v.SetDefault("sources.region_a.region", string(model.RegionA))
	v.SetDefault("sources.region_b.path", "region_b_sales.csv")
	v.SetDefault("sources.region_b.region", string(model.RegionB))
	v.SetDefault("report.format", "text")
	v.SetDefault("report.currency", "INR")
	v.SetDefault("metrics.pushgateway_url", "")
	v.SetDefault("metrics.job", "sales_etl")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command needs. mode is the command name.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, "store.driver must be sqlite or postgres")
	}
	if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required for postgres")
	}
	if c.Store.Pool.MaxConns < 0 || c.Store.Pool.MinConns < 0 {
		errs = append(errs, "store.pool values must be >= 0")
	}

	needSources := false
	switch mode {
	case "run", "transform":
		needSources = true
	case "migrate", "validate", "export":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if needSources {
		a, b := c.Sources.RegionA, c.Sources.RegionB
		if a.Path == "" {
			errs = append(errs, "sources.region_a.path is required")
		}
		if b.Path == "" {
			errs = append(errs, "sources.region_b.path is required")
		}
		if a.Region == "" || b.Region == "" {
			errs = append(errs, "sources region labels must not be empty")
		} else if a.Region == b.Region {
			errs = append(errs, "sources region labels must differ")
		}
	}

	switch c.Report.Format {
	case "", "text", "json", "yaml":
	default:
		errs = append(errs, "report.format must be text, json or yaml")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
