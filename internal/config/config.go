package config

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Source    SourceConfig    `yaml:"source" mapstructure:"source"`
	Breaker   BreakerConfig   `yaml:"breaker" mapstructure:"breaker"`
	Retry     RetryConfig     `yaml:"retry" mapstructure:"retry"`
	Queue     QueueConfig     `yaml:"queue" mapstructure:"queue"`
	Media     MediaConfig     `yaml:"media" mapstructure:"media"`
	Retention RetentionConfig `yaml:"retention" mapstructure:"retention"`
	Schema    SchemaConfig    `yaml:"schema" mapstructure:"schema"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Admin     AdminConfig     `yaml:"admin" mapstructure:"admin"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the primary Postgres store. An empty DatabaseURL
// means no primary store is configured.
type StoreConfig struct {
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// SourceConfig selects where reads are answered from.
type SourceConfig struct {
	// Setting is one of auto, db or json.
	Setting      string `yaml:"setting" mapstructure:"setting"`
	TimeoutMs    int    `yaml:"timeout_ms" mapstructure:"timeout_ms"`
	SnapshotPath string `yaml:"snapshot_path" mapstructure:"snapshot_path"`
}

// Timeout returns the primary attempt bound.
func (c SourceConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// BreakerConfig configures the primary-store circuit breaker.
type BreakerConfig struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// RetryConfig configures the queue replay backoff schedule.
type RetryConfig struct {
	MaxAttempts      int `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
}

// QueueConfig configures the durable degraded-intake queue.
type QueueConfig struct {
	Path                  string  `yaml:"path" mapstructure:"path"`
	ReconcileIntervalSecs int     `yaml:"reconcile_interval_secs" mapstructure:"reconcile_interval_secs"`
	MaxAttempts           int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	ReplayPerSec          float64 `yaml:"replay_per_sec" mapstructure:"replay_per_sec"`
}

// MediaConfig selects the object store.
type MediaConfig struct {
	// Driver is fs or s3.
	Driver    string `yaml:"driver" mapstructure:"driver"`
	Root      string `yaml:"root" mapstructure:"root"`
	Endpoint  string `yaml:"endpoint" mapstructure:"endpoint"`
	Bucket    string `yaml:"bucket" mapstructure:"bucket"`
	Region    string `yaml:"region" mapstructure:"region"`
	AccessKey string `yaml:"access_key" mapstructure:"access_key"`
	SecretKey string `yaml:"secret_key" mapstructure:"secret_key"`
	UseSSL    bool   `yaml:"use_ssl" mapstructure:"use_ssl"`
}

// RetentionConfig configures the media retention sweep. A zero day count
// keeps that kind forever.
type RetentionConfig struct {
	ProofDays     int  `yaml:"proof_days" mapstructure:"proof_days"`
	EvidenceDays  int  `yaml:"evidence_days" mapstructure:"evidence_days"`
	GalleryDays   int  `yaml:"gallery_days" mapstructure:"gallery_days"`
	IntervalHours int  `yaml:"interval_hours" mapstructure:"interval_hours"`
	Concurrency   int  `yaml:"concurrency" mapstructure:"concurrency"`
	Execute       bool `yaml:"execute" mapstructure:"execute"`
}

// SchemaConfig configures capability negotiation.
type SchemaConfig struct {
	// CapabilityTTLSecs caches negotiation results; 0 negotiates per unit
	// of work.
	CapabilityTTLSecs int `yaml:"capability_ttl_secs" mapstructure:"capability_ttl_secs"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port            int      `yaml:"port" mapstructure:"port"`
	CORSOrigins     []string `yaml:"cors_origins" mapstructure:"cors_origins"`
	IntakePerMinute int      `yaml:"intake_per_minute" mapstructure:"intake_per_minute"`
	MaxUploadMB     int      `yaml:"max_upload_mb" mapstructure:"max_upload_mb"`
}

// AdminConfig holds reviewer credentials.
type AdminConfig struct {
	// Tokens maps actor name to bearer token.
	Tokens map[string]string `yaml:"tokens" mapstructure:"tokens"`
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
	v.SetEnvPrefix("VENUE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 0)
	v.SetDefault("source.setting", "auto")
	v.SetDefault("source.timeout_ms", 2000)
	v.SetDefault("source.snapshot_path", "")
	v.SetDefault("breaker.failure_threshold", 5)
	v.SetDefault("breaker.reset_timeout_secs", 30)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 1000)
	v.SetDefault("retry.max_backoff_ms", 300000)
	v.SetDefault("queue.path", "venue-queue.db")
	v.SetDefault("queue.reconcile_interval_secs", 30)
	v.SetDefault("queue.max_attempts", 20)
	v.SetDefault("queue.replay_per_sec", 5)
	v.SetDefault("media.driver", "fs")
	v.SetDefault("media.root", "media")
	v.SetDefault("media.endpoint", "")
	v.SetDefault("media.bucket", "")
	v.SetDefault("media.region", "")
	v.SetDefault("media.access_key", "")
	v.SetDefault("media.secret_key", "")
	v.SetDefault("media.use_ssl", true)
	v.SetDefault("retention.proof_days", 90)
	v.SetDefault("retention.evidence_days", 180)
	v.SetDefault("retention.gallery_days", 365)
	v.SetDefault("retention.interval_hours", 0)
	v.SetDefault("retention.concurrency", 4)
	v.SetDefault("retention.execute", false)
	v.SetDefault("schema.capability_ttl_secs", 0)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.intake_per_minute", 10)
	v.SetDefault("server.max_upload_mb", 32)
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

// Validate checks the settings a command mode needs. Modes: serve,
// migrate, sweep, reconcile, import.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch c.Source.Setting {
	case "auto", "db", "json":
	default:
		errs = append(errs, fmt.Sprintf("source.setting must be auto, db or json, got %q", c.Source.Setting))
	}
	switch c.Media.Driver {
	case "fs":
		if c.Media.Root == "" {
			errs = append(errs, "media.root is required for the fs driver")
		}
	case "s3":
		if c.Media.Endpoint == "" || c.Media.Bucket == "" {
			errs = append(errs, "media.endpoint and media.bucket are required for the s3 driver")
		}
	default:
		errs = append(errs, fmt.Sprintf("media.driver must be fs or s3, got %q", c.Media.Driver))
	}
	for actor, token := range c.Admin.Tokens {
		if token == "" {
			errs = append(errs, fmt.Sprintf("admin.tokens.%s is empty", actor))
		}
	}

	switch mode {
	case "serve":
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
		if c.Source.Setting == "json" && c.Source.SnapshotPath == "" {
			errs = append(errs, "source.snapshot_path is required when source.setting is json")
		}
		if c.Source.Setting == "db" && c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required when source.setting is db")
		}
	case "migrate", "sweep", "reconcile", "import":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		sort.Strings(errs)
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
