package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/noejunior792/hdl-ai-proteus/internal/domain"
)

const (
	defaultConfigName = "config"
	defaultConfigType = "yaml"
	envPrefix         = "PROTEUS"
)

// Environment variables holding comma-separated server-side provider keys.
// When set they replace any keys from the config file for that kind.
const (
	EnvAzureAPIKeys  = "PROTEUS_AZURE_API_KEYS"
	EnvOpenAIAPIKeys = "PROTEUS_OPENAI_API_KEYS"
	EnvGeminiAPIKeys = "PROTEUS_GEMINI_API_KEYS"
)

// loadConfig loads the configuration from environment variables and files.
// Priority order (highest to lowest):
// 1. PROTEUS_<KIND>_API_KEYS for server-side provider keys
// 2. Environment variables (prefixed with PROTEUS_)
// 3. config.yaml
// 4. Default values
func loadConfig(configPath string) (*Configuration, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName(defaultConfigName)
	v.SetConfigType(defaultConfigType)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/hdl-ai-proteus")
		v.AddConfigPath("$HOME/.hdl-ai-proteus")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, &ConfigError{Op: "read", File: v.ConfigFileUsed(), Err: err}
		}
		// A missing file is fine; env and defaults cover everything.
	}

	var cfg Configuration
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, &ConfigError{Op: "unmarshal", File: v.ConfigFileUsed(), Err: err}
	}

	loadCredentialsFromEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults sets default configuration values. Every key needs a default
// so that AutomaticEnv can override it during Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.read_timeout_seconds", 30)
	v.SetDefault("server.write_timeout_seconds", 300)
	v.SetDefault("server.shutdown_timeout_seconds", 15)
	v.SetDefault("server.max_body_bytes", 16<<20)
	v.SetDefault("server.cors_origins", []string{"*"})

	v.SetDefault("providers.default_kind", string(domain.KindAzureOpenAI))
	v.SetDefault("providers.timeout_seconds", 60)
	v.SetDefault("providers.max_retries", 3)
	v.SetDefault("providers.retry_delay_ms", 1000)
	v.SetDefault("providers.connection_check", true)
	v.SetDefault("providers.circuit_failure_threshold", 5)
	v.SetDefault("providers.circuit_timeout_seconds", 30)
	v.SetDefault("providers.credential_cooldown_seconds", 60)
	v.SetDefault("providers.base_urls", map[string]string{})

	v.SetDefault("compiler.ghdl_path", "ghdl")
	v.SetDefault("compiler.iverilog_path", "iverilog")
	v.SetDefault("compiler.work_directory", "")
	v.SetDefault("compiler.timeout_seconds", 60)
	v.SetDefault("compiler.max_concurrent", 4)
	v.SetDefault("compiler.vhdl_flags", []string{"-fsynopsys"})
	v.SetDefault("compiler.verilog_flags", []string{})
	v.SetDefault("compiler.artifact_patterns", []string{"*.out", "*.cf", "*.o", "*.vvp"})

	v.SetDefault("export.project_extension", "pdsprj")
	v.SetDefault("export.include_readme", true)
	v.SetDefault("export.storage.type", "none")
	v.SetDefault("export.storage.bucket", "")
	v.SetDefault("export.storage.region", "")
	v.SetDefault("export.storage.endpoint", "")
	v.SetDefault("export.storage.use_path_style", false)
	v.SetDefault("export.storage.prefix", "")
	v.SetDefault("export.storage.storage_account", "")
	v.SetDefault("export.storage.container", "")
	v.SetDefault("export.storage.max_retries", 3)

	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.ttl_seconds", 300)
	v.SetDefault("cache.redis_url", "")

	v.SetDefault("events.enabled", false)
	v.SetDefault("events.nats_url", "")
	v.SetDefault("events.subject", "proteus.generation")

	v.SetDefault("security.api_key_required", false)
	v.SetDefault("security.api_keys", []string{})
	v.SetDefault("security.api_key_header", "X-API-Key")
	v.SetDefault("security.rate_limit_enabled", true)
	v.SetDefault("security.rate_limit_per_minute", 60)
	v.SetDefault("security.max_prompt_length", domain.MaxPromptLength)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// loadCredentialsFromEnv replaces file-based provider keys with the ones
// from the PROTEUS_<KIND>_API_KEYS variables that are set.
func loadCredentialsFromEnv(cfg *Configuration) {
	sources := []struct {
		env  string
		kind domain.ProviderKind
		dst  *[]domain.Credential
	}{
		{EnvAzureAPIKeys, domain.KindAzureOpenAI, &cfg.Providers.Credentials.AzureOpenAI},
		{EnvOpenAIAPIKeys, domain.KindOpenAI, &cfg.Providers.Credentials.OpenAI},
		{EnvGeminiAPIKeys, domain.KindGemini, &cfg.Providers.Credentials.Gemini},
	}
	for _, s := range sources {
		if creds := parseKeyList(os.Getenv(s.env), s.kind); len(creds) > 0 {
			*s.dst = creds
		}
	}
}

// parseKeyList splits a comma-separated key list into enabled credentials.
func parseKeyList(value string, kind domain.ProviderKind) []domain.Credential {
	var creds []domain.Credential
	for i, key := range strings.Split(value, ",") {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		creds = append(creds, domain.Credential{
			Key:     key,
			Name:    fmt.Sprintf("env_%s_%d", kind, i),
			Enabled: true,
		})
	}
	return creds
}
