package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App          AppConfig
	Redis        RedisConfig
	Store        StoreConfig
	BillingCheck BillingCheckConfig
	Scheduler    SchedulerConfig
	GCP          GCPConfig
	Auth         AuthConfig
	Log          LogConfig
	Telemetry    TelemetryConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `validate:"oneof=debug info warn warning error fatal"`
	Format string `validate:"oneof=json console"`
	Output string `validate:"required"` // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string `validate:"required"`
	Env  string `validate:"required"`
	Port string `validate:"required,numeric"`
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host        string `validate:"required"`
	Port        int    `validate:"min=1,max=65535"`
	Password    string
	DB          int `validate:"min=0"`
	PoolSize    int `validate:"min=1"`
	DialTimeout time.Duration
}

// StoreConfig controls how the shared store is created
type StoreConfig struct {
	// AllowInMemoryFallback runs on a process-local store when Redis is down.
	// Leases are then not shared between instances.
	AllowInMemoryFallback bool
}

// BillingCheckConfig holds key layout and visibility windows of a check run
type BillingCheckConfig struct {
	KeyPrefix    string        `validate:"required"`
	LeaseTimeout time.Duration `validate:"gt=0"`
	SessionTTL   time.Duration `validate:"gt=0"`
	StateTTL     time.Duration `validate:"gt=0"`
}

// SchedulerConfig holds check scheduler configuration
type SchedulerConfig struct {
	MaxConcurrentJobs int `validate:"min=1"`
	QueueSize         int `validate:"min=1"`
	JobTimeout        time.Duration // 0 disables the per-job deadline
}

// GCPConfig holds endpoints of the billing-check collaborator
type GCPConfig struct {
	ResourceManagerURL string        `validate:"required,url"`
	BillingURL         string        `validate:"required,url"`
	MaxConcurrency     int           `validate:"min=1"`
	RequestTimeout     time.Duration `validate:"gt=0"`
}

// AuthConfig holds service-token settings for the request endpoint
type AuthConfig struct {
	ServiceTokenSecret string // empty disables the check (development only)
	ServiceTokenIssuer string
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled               bool    // Whether to enable OpenTelemetry
	CollectorEndpoint     string  // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio         float64 `validate:"gte=0,lte=1"`
	ServiceName           string
	Insecure              bool // Use insecure (non-TLS) connection (development only)
	MetricsExportInterval time.Duration
	LogsEnabled           bool // Bridge zap logs to the collector
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with BILLINGWATCH_ prefix (e.g., BILLINGWATCH_REDIS_HOST)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	// Set config file settings
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	// Enable environment variable override
	v.SetEnvPrefix("BILLINGWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Redis: RedisConfig{
			Host:        v.GetString("redis.host"),
			Port:        v.GetInt("redis.port"),
			Password:    v.GetString("redis.password"),
			DB:          v.GetInt("redis.db"),
			PoolSize:    v.GetInt("redis.pool_size"),
			DialTimeout: v.GetDuration("redis.dial_timeout"),
		},
		Store: StoreConfig{
			AllowInMemoryFallback: v.GetBool("store.allow_in_memory_fallback"),
		},
		BillingCheck: BillingCheckConfig{
			KeyPrefix:    v.GetString("billing_check.key_prefix"),
			LeaseTimeout: v.GetDuration("billing_check.lease_timeout"),
			SessionTTL:   v.GetDuration("billing_check.session_ttl"),
			StateTTL:     v.GetDuration("billing_check.state_ttl"),
		},
		Scheduler: SchedulerConfig{
			MaxConcurrentJobs: v.GetInt("scheduler.max_concurrent_jobs"),
			QueueSize:         v.GetInt("scheduler.queue_size"),
			JobTimeout:        v.GetDuration("scheduler.job_timeout"),
		},
		GCP: GCPConfig{
			ResourceManagerURL: v.GetString("gcp.resource_manager_url"),
			BillingURL:         v.GetString("gcp.billing_url"),
			MaxConcurrency:     v.GetInt("gcp.max_concurrency"),
			RequestTimeout:     v.GetDuration("gcp.request_timeout"),
		},
		Auth: AuthConfig{
			ServiceTokenSecret: v.GetString("auth.service_token_secret"),
			ServiceTokenIssuer: v.GetString("auth.service_token_issuer"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Telemetry: TelemetryConfig{
			Enabled:               v.GetBool("telemetry.enabled"),
			CollectorEndpoint:     v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:         v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:           v.GetString("telemetry.service_name"),
			Insecure:              v.GetBool("telemetry.insecure"),
			MetricsExportInterval: v.GetDuration("telemetry.metrics_export_interval"),
			LogsEnabled:           v.GetBool("telemetry.logs_enabled"),
		},
	}

	// Apply defaults for empty values
	applyDefaults(cfg)

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "billingwatch-worker"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Redis.PoolSize == 0 {
		cfg.Redis.PoolSize = 10
	}
	if cfg.Redis.DialTimeout == 0 {
		cfg.Redis.DialTimeout = 5 * time.Second
	}
	// Key layout and windows match the keys already written by existing workers
	if cfg.BillingCheck.KeyPrefix == "" {
		cfg.BillingCheck.KeyPrefix = "gitlab:gcp"
	}
	if cfg.BillingCheck.LeaseTimeout == 0 {
		cfg.BillingCheck.LeaseTimeout = 3 * time.Second
	}
	if cfg.BillingCheck.SessionTTL == 0 {
		cfg.BillingCheck.SessionTTL = 5 * time.Minute
	}
	if cfg.BillingCheck.StateTTL == 0 {
		cfg.BillingCheck.StateTTL = time.Hour
	}
	if cfg.Scheduler.MaxConcurrentJobs == 0 {
		cfg.Scheduler.MaxConcurrentJobs = 4
	}
	if cfg.Scheduler.QueueSize == 0 {
		cfg.Scheduler.QueueSize = 100
	}
	if cfg.GCP.ResourceManagerURL == "" {
		cfg.GCP.ResourceManagerURL = "https://cloudresourcemanager.googleapis.com"
	}
	if cfg.GCP.BillingURL == "" {
		cfg.GCP.BillingURL = "https://cloudbilling.googleapis.com"
	}
	if cfg.GCP.MaxConcurrency == 0 {
		cfg.GCP.MaxConcurrency = 8
	}
	if cfg.GCP.RequestTimeout == 0 {
		cfg.GCP.RequestTimeout = 30 * time.Second
	}
	if cfg.Auth.ServiceTokenIssuer == "" {
		cfg.Auth.ServiceTokenIssuer = "billingwatch"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317" // Default gRPC endpoint
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "billingwatch-worker"
	}
	if cfg.Telemetry.MetricsExportInterval == 0 {
		cfg.Telemetry.MetricsExportInterval = 60 * time.Second
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Production-specific validations
	if c.App.Env == "production" {
		if c.Auth.ServiceTokenSecret == "" {
			return fmt.Errorf("auth.service_token_secret is required in production")
		}
		if len(c.Auth.ServiceTokenSecret) < 32 {
			return fmt.Errorf("auth.service_token_secret must be at least 32 characters in production")
		}
		if c.Store.AllowInMemoryFallback {
			return fmt.Errorf("store.allow_in_memory_fallback must be false in production (leases must be shared)")
		}
	}

	return nil
}

// Addr returns host:port for the Redis connection
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
