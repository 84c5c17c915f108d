package am

import (
	"github.com/spf13/viper"
	"github.com/teranos/gauntlet/pipeline"
)

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", DefaultServerHost)
	v.SetDefault("server.port", DefaultServerPort)
	v.SetDefault("server.shutdown_timeout_seconds", DefaultShutdownSeconds)
	v.SetDefault("server.max_requests_per_second", 0.0)
	v.SetDefault("server.metrics_address", "")

	v.SetDefault("pipeline.collection_boundary", pipeline.DefaultCollectionBoundary)
	v.SetDefault("pipeline.paths", []string{})

	v.SetDefault("log.json", false)
	v.SetDefault("log.level", "info")
}

// BindSensitiveEnvVars binds secrets that carry no default to their
// environment variables.
func BindSensitiveEnvVars(v *viper.Viper) {
	_ = v.BindEnv("server.auth_token", EnvPrefix+"_SERVER_AUTH_TOKEN")
}
