package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. XP_SERVER_HTTP_PORT.
const EnvPrefix = "XP"

// LoadConfig loads configuration from file using viper.
// CLI flags > environment > config file > defaults precedence; flags are
// applied by the caller on the returned Config.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults matching DefaultConfig
	def := DefaultConfig()
	v.SetDefault("server.host", def.Server.Host)
	v.SetDefault("server.grpc_port", def.Server.GRPCPort)
	v.SetDefault("server.http_port", def.Server.HTTPPort)
	v.SetDefault("server.request_timeout", def.Server.RequestTimeout.String())
	v.SetDefault("storage.url", def.Storage.URL)
	v.SetDefault("engine.experiences_file", "")
	v.SetDefault("engine.debug", false)
	v.SetDefault("engine.consent_required", false)
	v.SetDefault("engine.event_log", false)

	// Bind environment variables with XP_ prefix
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Load config file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:           v.GetString("server.host"),
			GRPCPort:       v.GetInt("server.grpc_port"),
			HTTPPort:       v.GetInt("server.http_port"),
			RequestTimeout: v.GetDuration("server.request_timeout"),
		},
		Storage: StorageConfig{
			URL: v.GetString("storage.url"),
		},
		Engine: EngineConfig{
			ExperiencesFile: v.GetString("engine.experiences_file"),
			Debug:           v.GetBool("engine.debug"),
			ConsentRequired: v.GetBool("engine.consent_required"),
			EventLog:        v.GetBool("engine.event_log"),
		},
	}

	// Security check: database passwords stay out of config files
	if err := validateNoSecretsInConfig(v, cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateNoSecretsInConfig rejects a storage URL with an embedded password
// when the value came from the config file rather than the environment.
func validateNoSecretsInConfig(v *viper.Viper, cfg *Config) error {
	if !v.InConfig("storage.url") {
		return nil
	}
	if _, fromEnv := os.LookupEnv(EnvPrefix + "_STORAGE_URL"); fromEnv {
		return nil
	}
	if cfg.Storage.HasPassword() {
		return fmt.Errorf("storage passwords not allowed in config files (use %s_STORAGE_URL environment variable)", EnvPrefix)
	}
	return nil
}
