// Package config loads trainq configuration from a YAML file, TRAINQ_
// environment variables and defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. TRAINQ_QUEUE_NAME.
const EnvPrefix = "TRAINQ"

// Config is the full trainq configuration.
type Config struct {
	Queue     QueueConfig     `mapstructure:"queue"`
	Store     StoreConfig     `mapstructure:"store"`
	Database  DatabaseConfig  `mapstructure:"database"`
	S3        S3Config        `mapstructure:"s3"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Compute   ComputeConfig   `mapstructure:"compute"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
	Log       LogConfig       `mapstructure:"log"`
	Defaults  map[string]any  `mapstructure:"defaults"`
}

type QueueConfig struct {
	Name              string `mapstructure:"name" validate:"required,max=255"`
	SessionID         string `mapstructure:"session_id"`
	ConditionalWrites bool   `mapstructure:"conditional_writes"`
	ConflictRetries   int    `mapstructure:"conflict_retries" validate:"gte=0"`
}

type StoreConfig struct {
	Backend string `mapstructure:"backend" validate:"oneof=memory gorm s3 redis"`
	Prefix  string `mapstructure:"prefix"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver" validate:"oneof=sqlite sqlite3 postgres postgresql pg"`
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"gte=0"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

type S3Config struct {
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UsePathStyle    bool   `mapstructure:"use_path_style"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db" validate:"gte=0"`
}

type ComputeConfig struct {
	BaseURL      string        `mapstructure:"base_url" validate:"omitempty,url"`
	Token        string        `mapstructure:"token"`
	OutputPrefix string        `mapstructure:"output_prefix"`
	Timeout      time.Duration `mapstructure:"timeout"`
	RateLimit    float64       `mapstructure:"rate_limit" validate:"gte=0"`
	RateBurst    int           `mapstructure:"rate_burst" validate:"gte=0"`
}

type SchedulerConfig struct {
	Schedule   string        `mapstructure:"schedule" validate:"required"`
	StuckAfter time.Duration `mapstructure:"stuck_after"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// TracingConfig enables OTLP/HTTP span export when Endpoint is set.
type TracingConfig struct {
	Endpoint    string  `mapstructure:"endpoint"`
	Insecure    bool    `mapstructure:"insecure"`
	ServiceName string  `mapstructure:"service_name"`
	SampleRatio float64 `mapstructure:"sample_ratio" validate:"gte=0,lte=1"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=text json"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("queue.name", "default")
	v.SetDefault("queue.session_id", "")
	v.SetDefault("queue.conditional_writes", true)
	v.SetDefault("queue.conflict_retries", 5)

	v.SetDefault("store.backend", "gorm")
	v.SetDefault("store.prefix", "trainq/")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "trainq.db")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("database.conn_max_idle_time", time.Minute)

	v.SetDefault("s3.bucket", "")
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.access_key_id", "")
	v.SetDefault("s3.secret_access_key", "")
	v.SetDefault("s3.use_path_style", false)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("compute.base_url", "")
	v.SetDefault("compute.token", "")
	v.SetDefault("compute.output_prefix", "")
	v.SetDefault("compute.timeout", 30*time.Second)
	v.SetDefault("compute.rate_limit", 0)
	v.SetDefault("compute.rate_burst", 1)

	v.SetDefault("scheduler.schedule", "1m")
	v.SetDefault("scheduler.stuck_after", 30*time.Minute)

	v.SetDefault("metrics.addr", ":9090")

	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.insecure", false)
	v.SetDefault("tracing.service_name", "trainq")
	v.SetDefault("tracing.sample_ratio", 1.0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads configuration. An explicit path must exist; otherwise trainq.yaml
// is looked up in the working directory and $HOME/.trainq, and is optional.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else {
		v.SetConfigName("trainq")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".trainq"))
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints and cross-field requirements.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	switch c.Store.Backend {
	case "s3":
		if c.S3.Bucket == "" {
			return errors.New("config: s3.bucket is required for the s3 store backend")
		}
	case "redis":
		if c.Redis.Addr == "" {
			return errors.New("config: redis.addr is required for the redis store backend")
		}
	}
	return nil
}
