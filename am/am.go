// Package am loads gauntlet configuration from defaults, TOML files and
// GAUNTLET_* environment variables.
package am

// Config represents the gauntlet configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server" toml:"server"`
	Pipeline PipelineConfig `mapstructure:"pipeline" toml:"pipeline"`
	Log      LogConfig      `mapstructure:"log" toml:"log"`
}

// ServerConfig configures the RPC service
type ServerConfig struct {
	Host                   string  `mapstructure:"host" toml:"host"`
	Port                   int     `mapstructure:"port" toml:"port"` // 0 = ephemeral
	ShutdownTimeoutSeconds int     `mapstructure:"shutdown_timeout_seconds" toml:"shutdown_timeout_seconds"`
	MaxRequestsPerSecond   float64 `mapstructure:"max_requests_per_second" toml:"max_requests_per_second"` // 0 = unlimited
	AuthToken              string  `mapstructure:"auth_token" toml:"auth_token,omitempty"`
	MetricsAddress         string  `mapstructure:"metrics_address" toml:"metrics_address"` // empty = no /metrics endpoint
}

// PipelineConfig configures the registry and executor
type PipelineConfig struct {
	// CollectionBoundary separates collection (order below) from processing.
	CollectionBoundary float64  `mapstructure:"collection_boundary" toml:"collection_boundary"`
	Paths              []string `mapstructure:"paths" toml:"paths"`
}

// LogConfig configures the global logger
type LogConfig struct {
	JSON  bool   `mapstructure:"json" toml:"json"`
	Level string `mapstructure:"level" toml:"level"`
}

// Server defaults
const (
	DefaultServerHost      = "127.0.0.1"
	DefaultServerPort      = 6000
	DefaultShutdownSeconds = 10
)

// File locations
const (
	EnvPrefix         = "GAUNTLET"
	SystemConfigPath  = "/etc/gauntlet/config.toml"
	UserConfigDir     = ".gauntlet"
	UserConfigFile    = "config.toml"
	ProjectConfigFile = "gauntlet.toml"
)

// File permissions
const (
	DefaultDirPermissions  = 0o750
	DefaultFilePermissions = 0o644
)
