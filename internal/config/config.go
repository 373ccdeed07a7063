// Package config provides configuration management for the paper digest service.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/scholardigest/paper-digest-service/internal/domain"
)

// SSL mode constants for database connections.
const (
	// SSLModeDisable disables SSL (use only for local development).
	SSLModeDisable = "disable"
	// SSLModeRequire requires SSL but does not verify certificates.
	SSLModeRequire = "require"
	// SSLModeVerifyCA verifies the server certificate against a CA.
	SSLModeVerifyCA = "verify-ca"
	// SSLModeVerifyFull verifies the server certificate and hostname.
	SSLModeVerifyFull = "verify-full"
)

// Config holds all configuration for the paper digest service.
type Config struct {
	// Server contains HTTP server settings.
	Server ServerConfig `mapstructure:"server"`
	// Database contains PostgreSQL connection settings.
	Database DatabaseConfig `mapstructure:"database"`
	// Logging contains structured logging settings.
	Logging LoggingConfig `mapstructure:"logging"`
	// Metrics contains Prometheus metrics exposure settings.
	Metrics MetricsConfig `mapstructure:"metrics"`
	// Catalog contains paper catalog API settings.
	Catalog CatalogConfig `mapstructure:"catalog"`
	// LLM contains LLM client settings for summarization.
	LLM LLMConfig `mapstructure:"llm"`
	// PDF contains PDF download and extraction settings.
	PDF PDFConfig `mapstructure:"pdf"`
	// Pipeline contains generation pipeline settings.
	Pipeline PipelineConfig `mapstructure:"pipeline"`
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	// Host is the address to bind the server to (default: 0.0.0.0).
	Host string `mapstructure:"host"`
	// HTTPPort is the HTTP server port (default: 8080).
	HTTPPort int `mapstructure:"http_port"`
	// MetricsPort is the metrics server port (default: 9091).
	MetricsPort int `mapstructure:"metrics_port"`
	// ReadTimeout is the maximum duration for reading request body.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout is the maximum duration for writing response.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	// Host is the PostgreSQL server hostname.
	Host string `mapstructure:"host"`
	// Port is the PostgreSQL server port (default: 5432).
	Port int `mapstructure:"port"`
	// User is the database username.
	User string `mapstructure:"user"`
	// Password is the database password (use environment variable in production).
	Password string `mapstructure:"password"`
	// Name is the database name.
	Name string `mapstructure:"name"`
	// SSLMode controls SSL connection security (require, verify-ca, verify-full, disable).
	// Default is "require" for production security. Use "disable" only for local development.
	SSLMode string `mapstructure:"ssl_mode"`
	// MaxConns is the maximum number of connections in the pool (default: 25).
	MaxConns int32 `mapstructure:"max_conns"`
	// MinConns is the minimum number of connections to keep open (default: 5).
	MinConns int32 `mapstructure:"min_conns"`
	// MaxConnLifetime is the maximum lifetime of a connection before it's closed.
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	// MaxConnIdleTime is the maximum time a connection can be idle before it's closed.
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
	// HealthCheckPeriod is the interval between health checks of idle connections.
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
	// ConnectTimeout is the maximum time to wait for a connection.
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	// MigrationPath is the path to migration files (relative or absolute).
	MigrationPath string `mapstructure:"migration_path"`
	// MigrationAutoRun enables automatic migration on startup (default: false).
	MigrationAutoRun bool `mapstructure:"migration_auto_run"`
	// StatementCacheCapacity is the size of the prepared statement cache.
	StatementCacheCapacity int `mapstructure:"statement_cache_capacity"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level (trace, debug, info, warn, error, fatal, panic).
	Level string `mapstructure:"level"`
	// Format is the log format (json, console).
	Format string `mapstructure:"format"`
	// Output is the log output destination (stdout, stderr, file path).
	Output string `mapstructure:"output"`
	// AddSource adds source file and line to log output.
	AddSource bool `mapstructure:"add_source"`
	// TimeFormat is the timestamp format.
	TimeFormat string `mapstructure:"time_format"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	// Enabled enables metrics collection and exposure.
	Enabled bool `mapstructure:"enabled"`
	// Path is the HTTP path for metrics endpoint.
	Path string `mapstructure:"path"`
}

// CatalogConfig holds paper catalog API settings.
type CatalogConfig struct {
	// BaseURL is the catalog API base URL.
	BaseURL string `mapstructure:"base_url"`
	// Timeout is the timeout for catalog API calls.
	Timeout time.Duration `mapstructure:"timeout"`
	// RateLimit is the maximum requests per second to the catalog.
	RateLimit float64 `mapstructure:"rate_limit"`
	// MaxResults is the maximum results per query.
	MaxResults int `mapstructure:"max_results"`
	// LookbackDays is how far back the recency window reaches.
	LookbackDays int `mapstructure:"lookback_days"`
	// MaxRetries is the maximum number of retries for failed calls.
	MaxRetries int `mapstructure:"max_retries"`
	// RetryDelay is the base delay between retries.
	RetryDelay time.Duration `mapstructure:"retry_delay"`
}

// LLMConfig holds LLM client configuration.
type LLMConfig struct {
	// Timeout is the timeout for LLM API calls.
	Timeout time.Duration `mapstructure:"timeout"`
	// MaxRetries is the maximum number of retries for failed calls.
	MaxRetries int `mapstructure:"max_retries"`
	// RetryDelay is the base delay between retries.
	RetryDelay time.Duration `mapstructure:"retry_delay"`
	// Temperature is the LLM temperature setting.
	Temperature float64 `mapstructure:"temperature"`
	// MaxInputChars caps the full-text characters sent per summarization call.
	MaxInputChars int `mapstructure:"max_input_chars"`
	// OpenAI contains OpenAI-specific settings.
	OpenAI OpenAIConfig `mapstructure:"openai"`
}

// OpenAIConfig holds OpenAI-specific settings.
type OpenAIConfig struct {
	// APIKey is the OpenAI API key (loaded from PAPERDIGEST_LLM_OPENAI_API_KEY env var).
	APIKey string `mapstructure:"-"`
	// Model is the OpenAI model to use.
	Model string `mapstructure:"model"`
	// BaseURL is the OpenAI API base URL (for custom endpoints).
	BaseURL string `mapstructure:"base_url"`
}

// PDFConfig holds PDF download and extraction settings.
type PDFConfig struct {
	// CacheDir is the directory for downloaded PDF artifacts.
	CacheDir string `mapstructure:"cache_dir"`
	// MaxSizeBytes is the maximum PDF size accepted (default: 50 MiB).
	MaxSizeBytes int64 `mapstructure:"max_size_bytes"`
	// Timeout is the timeout for PDF downloads.
	Timeout time.Duration `mapstructure:"timeout"`
	// MaxPages caps the number of pages extracted per PDF (0 = no cap).
	MaxPages int `mapstructure:"max_pages"`
}

// PipelineConfig holds generation pipeline settings.
type PipelineConfig struct {
	// PapersPerCategory is the number of papers selected per category run.
	PapersPerCategory int `mapstructure:"papers_per_category"`
	// OverfetchFactor multiplies PapersPerCategory when querying the catalog.
	OverfetchFactor int `mapstructure:"overfetch_factor"`
	// CategoryConcurrency is the maximum number of categories processed at once.
	CategoryConcurrency int `mapstructure:"category_concurrency"`
	// PaperConcurrency is the maximum number of papers processed at once within a category.
	PaperConcurrency int `mapstructure:"paper_concurrency"`
	// Categories is the set of categories covered by a full generation run.
	// Empty means the built-in default set.
	Categories []CategoryConfig `mapstructure:"categories"`
}

// CategoryConfig identifies one catalog category covered by the digest.
type CategoryConfig struct {
	// Code is the catalog category code (e.g. cs.LG).
	Code string `mapstructure:"code"`
	// Name is the human-readable category name.
	Name string `mapstructure:"name"`
}

// DomainCategories converts the configured category table into domain values,
// deriving URL slugs from the category names.
func (c *PipelineConfig) DomainCategories() []domain.Category {
	cats := make([]domain.Category, len(c.Categories))
	for i, cc := range c.Categories {
		cats[i] = domain.Category{Code: cc.Code, Name: cc.Name, Slug: domain.Slugify(cc.Name)}
	}
	return cats
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	params := url.Values{}
	params.Set("sslmode", c.SSLMode)
	if c.ConnectTimeout > 0 {
		params.Set("connect_timeout", fmt.Sprintf("%d", int(c.ConnectTimeout.Seconds())))
	}
	if c.StatementCacheCapacity > 0 {
		params.Set("statement_cache_capacity", fmt.Sprintf("%d", c.StatementCacheCapacity))
	}

	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?%s",
		url.QueryEscape(c.User),
		url.QueryEscape(c.Password),
		c.Host,
		c.Port,
		c.Name,
		params.Encode(),
	)
}

// HTTPAddress returns the HTTP server address.
func (c *ServerConfig) HTTPAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.HTTPPort)
}

// MetricsAddress returns the metrics server address.
func (c *ServerConfig) MetricsAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.MetricsPort)
}

// Load loads configuration from environment variables and config files.
func Load() (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Read from environment variables
	v.SetEnvPrefix("PAPERDIGEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file if present
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/paper-digest-service")

	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK, we'll use env vars and defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if len(cfg.Pipeline.Categories) == 0 {
		cfg.Pipeline.Categories = defaultCategories()
	}

	// Load secrets exclusively from environment variables.
	// These fields use mapstructure:"-" to prevent loading from config files.
	loadSecrets(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadSecrets populates secret fields exclusively from environment variables.
// These fields are tagged with mapstructure:"-" to prevent loading from config files.
func loadSecrets(cfg *Config) {
	cfg.LLM.OpenAI.APIKey = os.Getenv("PAPERDIGEST_LLM_OPENAI_API_KEY")
}

// defaultCategories returns the built-in category set covered by a full run.
func defaultCategories() []CategoryConfig {
	cats := domain.DefaultCategories()
	out := make([]CategoryConfig, 0, len(cats))
	for _, c := range cats {
		out = append(out, CategoryConfig{Code: c.Code, Name: c.Name})
	}
	return out
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.metrics_port", 9091)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "30s")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "paperdigest")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "paper_digest_service")
	// Default to "require" for production security. Use PAPERDIGEST_DATABASE_SSL_MODE=disable for local development.
	v.SetDefault("database.ssl_mode", SSLModeRequire)
	v.SetDefault("database.max_conns", 25)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")
	v.SetDefault("database.health_check_period", "30s")
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.migration_path", "migrations")
	v.SetDefault("database.migration_auto_run", false)
	v.SetDefault("database.statement_cache_capacity", 512)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	// Catalog defaults
	v.SetDefault("catalog.base_url", "https://export.arxiv.org/api")
	v.SetDefault("catalog.timeout", "30s")
	v.SetDefault("catalog.rate_limit", 3.0) // arXiv recommends max 3 req/sec
	v.SetDefault("catalog.max_results", 100)
	v.SetDefault("catalog.lookback_days", 7)
	v.SetDefault("catalog.max_retries", 3)
	v.SetDefault("catalog.retry_delay", "2s")

	// LLM defaults
	v.SetDefault("llm.timeout", "60s")
	v.SetDefault("llm.max_retries", 3)
	v.SetDefault("llm.retry_delay", "2s")
	v.SetDefault("llm.temperature", 0.3)
	v.SetDefault("llm.max_input_chars", 60000)
	// API keys are loaded exclusively from environment variables (see loadSecrets).
	v.SetDefault("llm.openai.model", "gpt-4o-mini")
	v.SetDefault("llm.openai.base_url", "https://api.openai.com/v1")

	// PDF defaults
	v.SetDefault("pdf.cache_dir", "pdf-cache")
	v.SetDefault("pdf.max_size_bytes", 50*1024*1024)
	v.SetDefault("pdf.timeout", "60s")
	v.SetDefault("pdf.max_pages", 0)

	// Pipeline defaults
	v.SetDefault("pipeline.papers_per_category", 5)
	v.SetDefault("pipeline.overfetch_factor", 5)
	v.SetDefault("pipeline.category_concurrency", 3)
	v.SetDefault("pipeline.paper_concurrency", 2)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	// Validate server ports
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.Server.HTTPPort)
	}
	if c.Server.MetricsPort <= 0 || c.Server.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", c.Server.MetricsPort)
	}

	// Validate database config
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		return fmt.Errorf("invalid database port: %d", c.Database.Port)
	}
	if c.Database.Name == "" {
		return fmt.Errorf("database name is required")
	}
	if c.Database.MaxConns < c.Database.MinConns {
		return fmt.Errorf("max_conns (%d) must be >= min_conns (%d)", c.Database.MaxConns, c.Database.MinConns)
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	// Validate catalog config
	if c.Catalog.BaseURL == "" {
		return fmt.Errorf("catalog base URL is required")
	}
	if c.Catalog.RateLimit <= 0 {
		return fmt.Errorf("catalog rate limit must be positive")
	}
	if c.Catalog.LookbackDays <= 0 {
		return fmt.Errorf("catalog lookback days must be positive")
	}

	// Validate LLM config
	if c.LLM.OpenAI.APIKey == "" {
		return fmt.Errorf("PAPERDIGEST_LLM_OPENAI_API_KEY must be set")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("LLM temperature must be between 0 and 2")
	}

	// Validate PDF config
	if c.PDF.MaxSizeBytes <= 0 {
		return fmt.Errorf("PDF max size must be positive")
	}

	// Validate pipeline config
	if c.Pipeline.PapersPerCategory <= 0 {
		return fmt.Errorf("pipeline papers_per_category must be positive")
	}
	if c.Pipeline.OverfetchFactor <= 0 {
		return fmt.Errorf("pipeline overfetch_factor must be positive")
	}
	if c.Pipeline.CategoryConcurrency <= 0 {
		return fmt.Errorf("pipeline category_concurrency must be positive")
	}
	if c.Pipeline.PaperConcurrency <= 0 {
		return fmt.Errorf("pipeline paper_concurrency must be positive")
	}
	for i, cat := range c.Pipeline.Categories {
		if cat.Code == "" {
			return fmt.Errorf("pipeline category %d: code is required", i)
		}
		if cat.Name == "" {
			return fmt.Errorf("pipeline category %d (%s): name is required", i, cat.Code)
		}
	}

	return nil
}
