// Package config provides configuration management for the experiences service.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config is the full service configuration.
type Config struct {
	Server  ServerConfig
	Storage StorageConfig
	Engine  EngineConfig
}

// ServerConfig holds listener settings for the HTTP and gRPC surfaces.
type ServerConfig struct {
	Host           string
	GRPCPort       int
	HTTPPort       int
	RequestTimeout time.Duration
}

// StorageConfig selects the frequency and event storage backend.
type StorageConfig struct {
	URL string // memory://, sqlite://path or postgres://...
}

// EngineConfig holds evaluation settings.
type EngineConfig struct {
	ExperiencesFile string
	Debug           bool
	ConsentRequired bool
	EventLog        bool // persist captured events (SQL storage only)
}

// Storage schemes accepted in StorageConfig.URL.
const (
	SchemeMemory   = "memory"
	SchemeSQLite   = "sqlite"
	SchemePostgres = "postgres"
)

// DefaultServerConfig returns listener settings with default values.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Host:           "0.0.0.0",
		GRPCPort:       50051,
		HTTPPort:       8080,
		RequestTimeout: 30 * time.Second,
	}
}

// DefaultConfig returns configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		Server:  *DefaultServerConfig(),
		Storage: StorageConfig{URL: "memory://"},
		Engine:  EngineConfig{},
	}
}

// Scheme returns the storage URL scheme, with postgresql folded to postgres.
func (s StorageConfig) Scheme() string {
	scheme, _, ok := strings.Cut(s.URL, "://")
	if !ok {
		return ""
	}
	if scheme == "postgresql" {
		return SchemePostgres
	}
	return scheme
}

// IsSQL reports whether the storage backend is a SQL database.
func (s StorageConfig) IsSQL() bool {
	switch s.Scheme() {
	case SchemeSQLite, SchemePostgres:
		return true
	default:
		return false
	}
}

// HasPassword reports whether the storage URL embeds a password.
func (s StorageConfig) HasPassword() bool {
	u, err := url.Parse(s.URL)
	if err != nil || u.User == nil {
		return false
	}
	_, ok := u.User.Password()
	return ok
}

// Redacted returns the storage URL with any password masked, for logging.
func (s StorageConfig) Redacted() string {
	u, err := url.Parse(s.URL)
	if err != nil {
		return s.URL
	}
	return u.Redacted()
}

// Validate checks ports, timeout and storage scheme.
func (c *Config) Validate() error {
	if err := validatePort("grpc_port", c.Server.GRPCPort); err != nil {
		return err
	}
	if err := validatePort("http_port", c.Server.HTTPPort); err != nil {
		return err
	}
	if c.Server.GRPCPort == c.Server.HTTPPort {
		return fmt.Errorf("grpc_port and http_port must differ, both are %d", c.Server.GRPCPort)
	}
	if c.Server.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %v", c.Server.RequestTimeout)
	}
	switch c.Storage.Scheme() {
	case SchemeMemory, SchemeSQLite, SchemePostgres:
	default:
		return fmt.Errorf("unsupported storage url %q (use memory://, sqlite:// or postgres://)", c.Storage.Redacted())
	}
	if c.Engine.EventLog && !c.Storage.IsSQL() {
		return fmt.Errorf("event_log requires sqlite:// or postgres:// storage")
	}
	return nil
}

func validatePort(name string, port int) error {
	if port <= 0 || port > 65535 {
		return fmt.Errorf("%s must be between 1 and 65535, got %d", name, port)
	}
	return nil
}
