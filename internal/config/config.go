// Package config provides configuration management using the Singleton pattern.
// It loads configuration from environment variables and config.yaml using Viper.
package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/noejunior792/hdl-ai-proteus/internal/domain"
)

// Configuration holds all application configuration values.
type Configuration struct {
	Server    ServerConfig    `json:"server" mapstructure:"server"`
	Providers ProvidersConfig `json:"providers" mapstructure:"providers"`
	Compiler  CompilerConfig  `json:"compiler" mapstructure:"compiler"`
	Export    ExportConfig    `json:"export" mapstructure:"export"`
	Cache     CacheConfig     `json:"cache" mapstructure:"cache"`
	Events    EventsConfig    `json:"events" mapstructure:"events"`
	Security  SecurityConfig  `json:"security" mapstructure:"security"`
	Metrics   MetricsConfig   `json:"metrics" mapstructure:"metrics"`
	Logging   LoggingConfig   `json:"logging" mapstructure:"logging"`
}

// ServerConfig holds server-specific configuration.
type ServerConfig struct {
	// Host is the server bind address.
	Host string `json:"host" mapstructure:"host"`

	// Port is the server port number.
	Port int `json:"port" mapstructure:"port"`

	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeoutSeconds int `json:"read_timeout_seconds" mapstructure:"read_timeout_seconds"`

	// WriteTimeout covers generation plus compilation, so it is generous.
	WriteTimeoutSeconds int `json:"write_timeout_seconds" mapstructure:"write_timeout_seconds"`

	// ShutdownTimeout is the maximum duration to wait for active connections to finish.
	ShutdownTimeoutSeconds int `json:"shutdown_timeout_seconds" mapstructure:"shutdown_timeout_seconds"`

	// MaxBodyBytes caps request bodies.
	MaxBodyBytes int64 `json:"max_body_bytes" mapstructure:"max_body_bytes"`

	// CORSOrigins lists allowed origins; "*" allows any.
	CORSOrigins []string `json:"cors_origins" mapstructure:"cors_origins"`
}

// ProvidersConfig controls how AI backends are called.
type ProvidersConfig struct {
	DefaultKind               string            `json:"default_kind" mapstructure:"default_kind"`
	TimeoutSeconds            int               `json:"timeout_seconds" mapstructure:"timeout_seconds"`
	MaxRetries                int               `json:"max_retries" mapstructure:"max_retries"`
	RetryDelayMS              int               `json:"retry_delay_ms" mapstructure:"retry_delay_ms"`
	ConnectionCheck           bool              `json:"connection_check" mapstructure:"connection_check"`
	CircuitFailureThreshold   int               `json:"circuit_failure_threshold" mapstructure:"circuit_failure_threshold"`
	CircuitTimeoutSeconds     int               `json:"circuit_timeout_seconds" mapstructure:"circuit_timeout_seconds"`
	CredentialCooldownSeconds int               `json:"credential_cooldown_seconds" mapstructure:"credential_cooldown_seconds"`
	BaseURLs                  map[string]string `json:"base_urls" mapstructure:"base_urls"`
	Credentials               CredentialsConfig `json:"-" mapstructure:"credentials"`
}

// CredentialsConfig holds server-side fallback keys per provider kind.
type CredentialsConfig struct {
	AzureOpenAI []domain.Credential `mapstructure:"azure_openai"`
	OpenAI      []domain.Credential `mapstructure:"openai"`
	Gemini      []domain.Credential `mapstructure:"gemini"`
}

// CompilerConfig configures the HDL toolchains.
type CompilerConfig struct {
	GHDLPath         string   `json:"ghdl_path" mapstructure:"ghdl_path"`
	IverilogPath     string   `json:"iverilog_path" mapstructure:"iverilog_path"`
	WorkDirectory    string   `json:"work_directory" mapstructure:"work_directory"`
	TimeoutSeconds   int      `json:"timeout_seconds" mapstructure:"timeout_seconds"`
	MaxConcurrent    int      `json:"max_concurrent" mapstructure:"max_concurrent"`
	VHDLFlags        []string `json:"vhdl_flags" mapstructure:"vhdl_flags"`
	VerilogFlags     []string `json:"verilog_flags" mapstructure:"verilog_flags"`
	ArtifactPatterns []string `json:"artifact_patterns" mapstructure:"artifact_patterns"`
}

// ExportConfig configures archive packaging and retention.
type ExportConfig struct {
	ProjectExtension string        `json:"project_extension" mapstructure:"project_extension"`
	IncludeReadme    bool          `json:"include_readme" mapstructure:"include_readme"`
	Storage          StorageConfig `json:"storage" mapstructure:"storage"`
}

// StorageConfig selects where exported archives are retained.
type StorageConfig struct {
	// Type is one of none, memory, s3, gcs, azure.
	Type           string `json:"type" mapstructure:"type"`
	Bucket         string `json:"bucket" mapstructure:"bucket"`
	Region         string `json:"region" mapstructure:"region"`
	Endpoint       string `json:"endpoint" mapstructure:"endpoint"`
	UsePathStyle   bool   `json:"use_path_style" mapstructure:"use_path_style"`
	Prefix         string `json:"prefix" mapstructure:"prefix"`
	StorageAccount string `json:"storage_account" mapstructure:"storage_account"`
	Container      string `json:"container" mapstructure:"container"`
	MaxRetries     int    `json:"max_retries" mapstructure:"max_retries"`
}

// CacheConfig configures the generation result cache.
type CacheConfig struct {
	// Backend is one of none, memory, redis.
	Backend    string `json:"backend" mapstructure:"backend"`
	TTLSeconds int    `json:"ttl_seconds" mapstructure:"ttl_seconds"`
	RedisURL   string `json:"-" mapstructure:"redis_url"`
}

// EventsConfig configures generation event publishing.
type EventsConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	NATSURL string `json:"-" mapstructure:"nats_url"`
	Subject string `json:"subject" mapstructure:"subject"`
}

// SecurityConfig holds inbound access control settings.
type SecurityConfig struct {
	APIKeyRequired     bool     `json:"api_key_required" mapstructure:"api_key_required"`
	APIKeys            []string `json:"-" mapstructure:"api_keys"`
	APIKeyHeader       string   `json:"api_key_header" mapstructure:"api_key_header"`
	RateLimitEnabled   bool     `json:"rate_limit_enabled" mapstructure:"rate_limit_enabled"`
	RateLimitPerMinute int      `json:"rate_limit_per_minute" mapstructure:"rate_limit_per_minute"`
	MaxPromptLength    int      `json:"max_prompt_length" mapstructure:"max_prompt_length"`
}

// MetricsConfig controls the prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Path    string `json:"path" mapstructure:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string `json:"level" mapstructure:"level"`

	// Format is the log format (json, text).
	Format string `json:"format" mapstructure:"format"`
}

// configInstance holds the singleton configuration instance.
var (
	configInstance *Configuration
	configOnce     sync.Once
	configErr      error
)

// GetConfig returns the singleton Configuration instance.
// It initializes the configuration on first call using the default config path.
func GetConfig() (*Configuration, error) {
	configOnce.Do(func() {
		configInstance, configErr = loadConfig("")
	})
	return configInstance, configErr
}

// GetConfigWithPath returns the singleton Configuration instance with a custom config path.
func GetConfigWithPath(configPath string) (*Configuration, error) {
	configOnce.Do(func() {
		configInstance, configErr = loadConfig(configPath)
	})
	return configInstance, configErr
}

// MustGetConfig returns the singleton Configuration instance.
// It panics if the configuration cannot be loaded.
func MustGetConfig() *Configuration {
	cfg, err := GetConfig()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// ResetConfig resets the singleton instance.
// This is primarily used for testing purposes.
func ResetConfig() {
	configOnce = sync.Once{}
	configInstance = nil
	configErr = nil
}

var (
	providerKinds = []string{string(domain.KindAzureOpenAI), string(domain.KindGemini), string(domain.KindOpenAI)}
	storageTypes  = []string{"none", "memory", "s3", "gcs", "azure"}
	cacheBackends = []string{"none", "memory", "redis"}
	logLevels     = []string{"debug", "info", "warn", "error"}
	logFormats    = []string{"json", "text"}
)

// Validate validates the configuration and returns an error if required fields are missing.
func (c *Configuration) Validate() error {
	var validationErrors []string
	add := func(format string, args ...any) {
		validationErrors = append(validationErrors, fmt.Sprintf(format, args...))
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		add("server.port must be between 1 and 65535")
	}
	if c.Server.MaxBodyBytes <= 0 {
		add("server.max_body_bytes must be positive")
	}

	if !oneOf(c.Providers.DefaultKind, providerKinds) {
		add("providers.default_kind '%s' is invalid, must be one of: %s", c.Providers.DefaultKind, strings.Join(providerKinds, ", "))
	}
	if c.Providers.TimeoutSeconds <= 0 {
		add("providers.timeout_seconds must be positive")
	}
	if c.Providers.MaxRetries < 1 {
		add("providers.max_retries must be at least 1")
	}
	if c.Providers.RetryDelayMS < 0 {
		add("providers.retry_delay_ms must not be negative")
	}
	for kind := range c.Providers.BaseURLs {
		if !oneOf(kind, providerKinds) {
			add("providers.base_urls has unknown provider '%s'", kind)
		}
	}
	for kind, creds := range c.Providers.Credentials.byKind() {
		for i, cred := range creds {
			if cred.Key == "" {
				add("providers.credentials.%s[%d].key is required", kind, i)
			}
		}
	}

	if c.Compiler.TimeoutSeconds <= 0 {
		add("compiler.timeout_seconds must be positive")
	}
	if c.Compiler.MaxConcurrent <= 0 {
		add("compiler.max_concurrent must be positive")
	}

	if c.Export.ProjectExtension == "" || strings.ContainsAny(c.Export.ProjectExtension, "./\\") {
		add("export.project_extension must be a bare extension such as pdsprj")
	}
	s := c.Export.Storage
	if !oneOf(s.Type, storageTypes) {
		add("export.storage.type '%s' is invalid, must be one of: %s", s.Type, strings.Join(storageTypes, ", "))
	}
	if (s.Type == "s3" || s.Type == "gcs") && s.Bucket == "" {
		add("export.storage.bucket is required for %s", s.Type)
	}
	if s.Type == "azure" && (s.StorageAccount == "" || s.Container == "") {
		add("export.storage.storage_account and export.storage.container are required for azure")
	}

	if !oneOf(c.Cache.Backend, cacheBackends) {
		add("cache.backend '%s' is invalid, must be one of: %s", c.Cache.Backend, strings.Join(cacheBackends, ", "))
	}
	if c.Cache.Backend == "redis" && c.Cache.RedisURL == "" {
		add("cache.redis_url is required for the redis backend")
	}
	if c.Cache.Backend != "none" && c.Cache.TTLSeconds <= 0 {
		add("cache.ttl_seconds must be positive")
	}

	if c.Events.Enabled && c.Events.NATSURL == "" {
		add("events.nats_url is required when events are enabled")
	}

	if c.Security.APIKeyRequired && len(c.Security.APIKeys) == 0 {
		add("security.api_keys cannot be empty when security.api_key_required is set")
	}
	if c.Security.RateLimitEnabled && c.Security.RateLimitPerMinute <= 0 {
		add("security.rate_limit_per_minute must be positive")
	}
	if c.Security.MaxPromptLength < domain.MinPromptLength {
		add("security.max_prompt_length must be at least %d", domain.MinPromptLength)
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		add("metrics.path must start with '/'")
	}

	if c.Logging.Level != "" && !oneOf(c.Logging.Level, logLevels) {
		add("logging.level '%s' is invalid, must be one of: %s", c.Logging.Level, strings.Join(logLevels, ", "))
	}
	if c.Logging.Format != "" && !oneOf(c.Logging.Format, logFormats) {
		add("logging.format '%s' is invalid, must be one of: %s", c.Logging.Format, strings.Join(logFormats, ", "))
	}

	if len(validationErrors) > 0 {
		return &ValidationError{Problems: validationErrors}
	}
	return nil
}

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

func (c CredentialsConfig) byKind() map[domain.ProviderKind][]domain.Credential {
	return map[domain.ProviderKind][]domain.Credential{
		domain.KindAzureOpenAI: c.AzureOpenAI,
		domain.KindOpenAI:      c.OpenAI,
		domain.KindGemini:      c.Gemini,
	}
}

// CredentialKeys returns the enabled server-side keys for kind.
func (c *Configuration) CredentialKeys(kind domain.ProviderKind) []string {
	var keys []string
	for _, cred := range c.Providers.Credentials.byKind()[kind] {
		if cred.Enabled && cred.Key != "" {
			keys = append(keys, cred.Key)
		}
	}
	return keys
}

// BaseURL returns the configured base URL override for kind, if any.
func (c *Configuration) BaseURL(kind domain.ProviderKind) string {
	return c.Providers.BaseURLs[string(kind)]
}

// Duration helpers.

func (c ServerConfig) ReadTimeout() time.Duration {
	return time.Duration(c.ReadTimeoutSeconds) * time.Second
}

func (c ServerConfig) WriteTimeout() time.Duration {
	return time.Duration(c.WriteTimeoutSeconds) * time.Second
}

func (c ServerConfig) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSeconds) * time.Second
}

func (c ProvidersConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func (c ProvidersConfig) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelayMS) * time.Millisecond
}

func (c ProvidersConfig) CircuitTimeout() time.Duration {
	return time.Duration(c.CircuitTimeoutSeconds) * time.Second
}

func (c ProvidersConfig) CredentialCooldown() time.Duration {
	return time.Duration(c.CredentialCooldownSeconds) * time.Second
}

func (c CompilerConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}
