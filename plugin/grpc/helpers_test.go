package grpc

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teranos/gauntlet/pipeline"
	"github.com/teranos/gauntlet/plugin"
	"github.com/teranos/gauntlet/version"
	"go.uber.org/zap/zaptest"
)

// =============================================================================
// Test Fixtures
// =============================================================================

// startService serves a fresh registry on an ephemeral port and returns it
// with a connected proxy. Both are torn down when the test ends.
func startService(t *testing.T, cfg ServiceConfig) (*Service, *Proxy) {
	t.Helper()
	logger := zaptest.NewLogger(t).Sugar()

	registry := plugin.NewRegistry(version.Framework, pipeline.DefaultCollectionBoundary, logger.Named("registry"))
	cfg.Host = "127.0.0.1"
	svc := NewService(registry, cfg, logger.Named("rpc"))
	require.NoError(t, svc.Start(0))
	t.Cleanup(func() {
		assert.NoError(t, svc.Shutdown())
	})

	proxy, err := NewProxy(svc.Addr(), WithCallTimeout(5*time.Second), WithToken(cfg.AuthToken), WithLogger(logger.Named("proxy")))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = proxy.Close()
	})
	return svc, proxy
}

// counter is shared between plugin bodies running on the server and the
// test goroutine.
type counter struct {
	mu     sync.Mutex
	n      int
	failed bool
}

func (c *counter) add(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n += n
}

func (c *counter) fail() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failed = true
}

func (c *counter) value() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

func (c *counter) hasFailed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failed
}

func body(fn func(target *pipeline.Target) error) pipeline.Func {
	return func(_ context.Context, target *pipeline.Target) error {
		return fn(target)
	}
}
