package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Identifier IdentifierConfig `yaml:"identifier" mapstructure:"identifier"`
	Snapshot   SnapshotConfig   `yaml:"snapshot" mapstructure:"snapshot"`
	Fetch      FetchConfig      `yaml:"fetch" mapstructure:"fetch"`
	Report     ReportConfig     `yaml:"report" mapstructure:"report"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// IdentifierConfig configures how the primary identifier column is
// resolved. Column, when set, overrides the candidate list.
type IdentifierConfig struct {
	Candidates []string `yaml:"candidates" mapstructure:"candidates"`
	Column     string   `yaml:"column" mapstructure:"column"`
}

// SnapshotConfig configures the profile snapshot store used for drift
// baselines.
type SnapshotConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// FetchConfig configures remote payload downloads.
type FetchConfig struct {
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int     `yaml:"max_retries" mapstructure:"max_retries"`
	UserAgent   string  `yaml:"user_agent" mapstructure:"user_agent"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	Burst       int     `yaml:"burst" mapstructure:"burst"`
}

// ReportConfig configures report rendering.
type ReportConfig struct {
	Format string `yaml:"format" mapstructure:"format"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
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
	v.SetEnvPrefix("DATAQA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("identifier.candidates", []string{"Permit Number"})
	v.SetDefault("snapshot.driver", "sqlite")
	v.SetDefault("snapshot.database_url", "dataqa.db")
	v.SetDefault("fetch.timeout_secs", 60)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.user_agent", "dataqa/1.0")
	v.SetDefault("fetch.rate_per_sec", 2.0)
	v.SetDefault("fetch.burst", 1)
	v.SetDefault("report.format", "markdown")
	v.SetDefault("server.port", 8080)
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

// Validate checks the fields the given mode relies on. Modes: "fetch"
// (remote downloads), "snapshot" (baseline store access), "serve" (HTTP API).
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case "fetch":
		if c.Fetch.TimeoutSecs <= 0 {
			problems = append(problems, "fetch.timeout_secs must be > 0")
		}
		if c.Fetch.MaxRetries < 1 || c.Fetch.MaxRetries > 10 {
			problems = append(problems, "fetch.max_retries must be between 1 and 10")
		}
		if c.Fetch.RatePerSec <= 0 {
			problems = append(problems, "fetch.rate_per_sec must be > 0")
		}
		if c.Fetch.Burst < 1 {
			problems = append(problems, "fetch.burst must be >= 1")
		}
	case "snapshot":
		if c.Snapshot.Driver != "sqlite" && c.Snapshot.Driver != "postgres" {
			problems = append(problems, "snapshot.driver must be sqlite or postgres")
		}
		if c.Snapshot.DatabaseURL == "" {
			problems = append(problems, "snapshot.database_url is required")
		}
	case "serve":
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
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
