package config

import (
	"fmt"
	"log"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
// Secret precedence order:
// 1. Vault (if configured) - Highest priority
// 2. Config File values
// 3. Environment Variables (RESUMEGATE_INTAKE_PASSKEY, etc.)
// 4. Legacy environment variables (RESUME_PASSKEY, GEMINI_API_KEY, SHEET_ID, ...)
// 5. Default values - Lowest priority
type Config struct {
	AI            AIConfig            `mapstructure:"ai"`
	Server        ServerConfig        `mapstructure:"server"`
	App           AppConfig           `mapstructure:"app"`
	Intake        IntakeConfig        `mapstructure:"intake"`
	Sheets        SheetsConfig        `mapstructure:"sheets"`
	Vault         VaultConfig         `mapstructure:"vault"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// AIConfig holds AI service configuration
type AIConfig struct {
	// Global/fallback configuration
	Provider    string        `mapstructure:"provider"`
	Model       string        `mapstructure:"model"`
	Timeout     time.Duration `mapstructure:"timeout"`
	APIKey      string        `mapstructure:"apiKey"`
	Temperature float32       `mapstructure:"temperature"`

	// Resume review operation
	Review OperationAIConfig `mapstructure:"review"`
}

// CircuitBreakerConfig represents circuit breaker configuration
type CircuitBreakerConfig struct {
	Enabled          bool          `mapstructure:"enabled"`          // Whether circuit breaker is enabled
	MaxRequests      uint32        `mapstructure:"maxRequests"`      // Max requests allowed when half-open
	Interval         time.Duration `mapstructure:"interval"`         // Interval to clear counts
	Timeout          time.Duration `mapstructure:"timeout"`          // Timeout for half-open to open
	MinRequests      uint32        `mapstructure:"minRequests"`      // Minimum requests before tripping
	FailureThreshold float64       `mapstructure:"failureThreshold"` // Failure ratio threshold (0.0-1.0)
}

// OperationAIConfig holds AI configuration for a specific operation
type OperationAIConfig struct {
	Provider       string               `mapstructure:"provider"`
	Model          string               `mapstructure:"model"`
	Timeout        *time.Duration       `mapstructure:"timeout"`
	APIKey         string               `mapstructure:"apiKey"`
	Temperature    *float32             `mapstructure:"temperature"`
	Prompt         string               `mapstructure:"prompt"`     // Inline prompt override
	PromptFile     string               `mapstructure:"promptFile"` // Prompt override loaded from disk
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuitBreaker"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"readTimeout"`
	WriteTimeout time.Duration `mapstructure:"writeTimeout"`
	IdleTimeout  time.Duration `mapstructure:"idleTimeout"`

	// Rate Limiting Configuration
	RateLimit RateLimitConfig `mapstructure:"rateLimit"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Enabled        bool          `mapstructure:"enabled"`        // Enable/disable rate limiting
	RequestsPerMin int           `mapstructure:"requestsPerMin"` // Requests allowed per minute
	BurstCapacity  int           `mapstructure:"burstCapacity"`  // Burst capacity for token bucket
	ByIP           bool          `mapstructure:"byIP"`           // Enable per-IP rate limiting
	Window         time.Duration `mapstructure:"window"`         // Idle time before a client's bucket is dropped
}

// AppConfig holds general application configuration
type AppConfig struct {
	LogLevel         string   `mapstructure:"logLevel"`
	Environment      string   `mapstructure:"environment"` // "production" or "development"
	DefaultFormat    string   `mapstructure:"defaultFormat"`
	SupportedFormats []string `mapstructure:"supportedFormats"`
}

// IsDevelopment reports whether internal error details may be exposed to clients
func (a AppConfig) IsDevelopment() bool {
	return strings.EqualFold(a.Environment, "development")
}

// IntakeConfig holds resume intake configuration
type IntakeConfig struct {
	Passkey        string `mapstructure:"passkey"`
	PasskeyFile    string `mapstructure:"passkeyFile"` // Watched for changes when set
	MaxFileSize    int64  `mapstructure:"maxFileSize"`
	MinTextLength  int    `mapstructure:"minTextLength"`
	MaxRequestSize int64  `mapstructure:"maxRequestSize"`
}

// SheetsConfig holds spreadsheet append configuration
type SheetsConfig struct {
	Backend         string   `mapstructure:"backend"` // google, xlsx, memory
	SpreadsheetID   string   `mapstructure:"spreadsheetId"`
	SheetName       string   `mapstructure:"sheetName"`
	ClientEmail     string   `mapstructure:"clientEmail"`
	PrivateKey      string   `mapstructure:"privateKey"`
	CredentialsFile string   `mapstructure:"credentialsFile"`
	XLSXPath        string   `mapstructure:"xlsxPath"`
	HonorSheetKey   bool     `mapstructure:"honorSheetKey"`
	AllowedSheets   []string `mapstructure:"allowedSheets"` // tabs "_sheet" may route to
	AllowOrigin     string   `mapstructure:"allowOrigin"`
	MaxBodySize     int64    `mapstructure:"maxBodySize"`
}

// ObservabilityConfig holds observability configuration
type ObservabilityConfig struct {
	Enabled         bool                `mapstructure:"enabled"`
	ServiceName     string              `mapstructure:"serviceName"`
	ServiceVersion  string              `mapstructure:"serviceVersion"`
	ServiceInstance string              `mapstructure:"serviceInstance"`
	SampleRate      float64             `mapstructure:"sampleRate"`
	Tracing         TracingConfig       `mapstructure:"tracing"`
	Metrics         MetricsConfig       `mapstructure:"metrics"`
	CustomMetrics   CustomMetricsConfig `mapstructure:"customMetrics"`
	Console         ConsoleConfig       `mapstructure:"console"`
	Prometheus      PrometheusConfig    `mapstructure:"prometheus"`
	OTLP            OTLPConfig          `mapstructure:"otlp"`
	HealthCheck     HealthCheckConfig   `mapstructure:"healthCheck"`
}

// TracingConfig holds tracing configuration
type TracingConfig struct {
	Enabled    bool    `mapstructure:"enabled"`
	SampleRate float64 `mapstructure:"sampleRate"`
}

// MetricsConfig holds metrics configuration
type MetricsConfig struct {
	Enabled            bool          `mapstructure:"enabled"`
	CollectionInterval time.Duration `mapstructure:"collectionInterval"`
}

// ConsoleConfig holds console output configuration
type ConsoleConfig struct {
	Enabled     bool `mapstructure:"enabled"`
	PrettyPrint bool `mapstructure:"prettyPrint"`
}

// CustomMetricsConfig holds fine-grained custom metrics configuration
type CustomMetricsConfig struct {
	AIOperations    AIOperationsMetricsConfig   `mapstructure:"aiOperations"`
	BusinessMetrics BusinessMetricsConfig       `mapstructure:"businessMetrics"`
	Infrastructure  InfrastructureMetricsConfig `mapstructure:"infrastructure"`
}

// AIOperationsMetricsConfig holds AI operation metrics configuration
type AIOperationsMetricsConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	TrackDuration   bool `mapstructure:"trackDuration"`
	TrackTokenUsage bool `mapstructure:"trackTokenUsage"`
}

// BusinessMetricsConfig holds business metrics configuration
type BusinessMetricsConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	TrackSuccessRates bool `mapstructure:"trackSuccessRates"`
	TrackContentSizes bool `mapstructure:"trackContentSizes"`
}

// InfrastructureMetricsConfig holds infrastructure metrics configuration
type InfrastructureMetricsConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	TrackRateLimits bool `mapstructure:"trackRateLimits"`
}

// PrometheusConfig holds Prometheus configuration
type PrometheusConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
	Port     string `mapstructure:"port"`
}

// OTLPConfig holds OTLP exporter configuration
type OTLPConfig struct {
	Enabled  bool              `mapstructure:"enabled"`
	Endpoint string            `mapstructure:"endpoint"`
	Insecure bool              `mapstructure:"insecure"`
	Headers  map[string]string `mapstructure:"headers"`
}

// HealthCheckConfig holds health check configuration
type HealthCheckConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// LoadConfig loads configuration from environment variables and a config file
func LoadConfig() (*Config, error) {
	return load(viper.New())
}

func load(v *viper.Viper) (*Config, error) {
	log.Println("[CONFIG] Starting configuration loading process")

	setDefaults(v)
	log.Println("[CONFIG] Applied default configuration values")

	v.SetEnvPrefix("RESUMEGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	log.Println("[CONFIG] Configured environment variable handling with prefix 'RESUMEGATE'")

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/resumegate/")
	v.AddConfigPath("$HOME/.resumegate")
	v.AddConfigPath(".")
	log.Println("[CONFIG] Configured config file search paths: /etc/resumegate/, $HOME/.resumegate, .")

	configFileUsed := ""
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		log.Println("[CONFIG] No config file found, using defaults and environment variables")
	} else {
		configFileUsed = v.ConfigFileUsed()
		log.Printf("[CONFIG] Successfully loaded config file: %s", configFileUsed)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	log.Println("[CONFIG] Successfully unmarshaled configuration")

	config.applyFallbacks()
	log.Println("[CONFIG] Applied configuration fallbacks and legacy environment variables")

	config.logConfigurationSources(configFileUsed)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log.Println("[CONFIG] Configuration loading completed successfully")
	return &config, nil
}

// Validate checks if the configuration is structurally valid. Secrets are
// checked separately by ValidateSecrets once Vault has been consulted.
func (c *Config) Validate() error {
	if c.AI.Timeout <= 0 {
		return fmt.Errorf("AI timeout must be positive")
	}

	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}

	if len(c.App.SupportedFormats) > 0 && !slices.Contains(c.App.SupportedFormats, c.App.DefaultFormat) {
		return fmt.Errorf("invalid default format: %s", c.App.DefaultFormat)
	}

	switch strings.ToLower(c.App.Environment) {
	case "production", "development":
	default:
		return fmt.Errorf("invalid environment: %s (expected production or development)", c.App.Environment)
	}

	if c.Intake.MaxFileSize <= 0 {
		return fmt.Errorf("intake max file size must be positive")
	}
	if c.Intake.MinTextLength < 0 {
		return fmt.Errorf("intake min text length must not be negative")
	}
	if c.Intake.MaxRequestSize < c.Intake.MaxFileSize {
		return fmt.Errorf("intake max request size (%d) must be at least the max file size (%d)",
			c.Intake.MaxRequestSize, c.Intake.MaxFileSize)
	}

	switch strings.ToLower(c.Sheets.Backend) {
	case "google", "xlsx", "memory":
	default:
		return fmt.Errorf("invalid sheets backend: %s", c.Sheets.Backend)
	}
	if c.Sheets.SheetName == "" {
		return fmt.Errorf("sheets sheet name is required")
	}
	if c.Sheets.MaxBodySize <= 0 {
		return fmt.Errorf("sheets max body size must be positive")
	}

	return nil
}

// ValidateSecrets checks the secrets the HTTP server cannot start without.
// The AI key is deliberately not required here; a missing key is reported
// per request as an AI configuration error.
func (c *Config) ValidateSecrets() error {
	if c.Intake.Passkey == "" && c.Intake.PasskeyFile == "" {
		return fmt.Errorf("an intake passkey is required (set RESUMEGATE_INTAKE_PASSKEY or intake.passkeyFile)")
	}

	if strings.EqualFold(c.Sheets.Backend, "google") {
		if c.Sheets.SpreadsheetID == "" {
			return fmt.Errorf("sheets.spreadsheetId is required for the google backend")
		}
		if c.Sheets.CredentialsFile == "" && (c.Sheets.ClientEmail == "" || c.Sheets.PrivateKey == "") {
			return fmt.Errorf("google backend needs sheets.credentialsFile or sheets.clientEmail and sheets.privateKey")
		}
	}
	return nil
}
