package am

import (
	"math"
	"strings"

	"github.com/teranos/gauntlet/errors"
	"go.uber.org/zap/zapcore"
)

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	// 0 asks the OS for an ephemeral port
	if c.Server.Port < 0 || c.Server.Port > math.MaxUint16 {
		return errors.Newf("server.port must be within 0-65535, got %d", c.Server.Port)
	}
	if c.Server.ShutdownTimeoutSeconds <= 0 {
		return errors.Newf("server.shutdown_timeout_seconds must be > 0, got %d", c.Server.ShutdownTimeoutSeconds)
	}
	if c.Server.MaxRequestsPerSecond < 0 {
		return errors.Newf("server.max_requests_per_second must be >= 0, got %g", c.Server.MaxRequestsPerSecond)
	}

	b := c.Pipeline.CollectionBoundary
	if math.IsNaN(b) || math.IsInf(b, 0) {
		return errors.Newf("pipeline.collection_boundary must be a finite number, got %g", b)
	}
	for i, p := range c.Pipeline.Paths {
		if strings.TrimSpace(p) == "" {
			return errors.Newf("pipeline.paths[%d] is empty", i)
		}
	}

	if c.Log.Level != "" {
		if _, err := zapcore.ParseLevel(strings.ToLower(c.Log.Level)); err != nil {
			return errors.Wrap(err, "log.level")
		}
	}
	return nil
}
