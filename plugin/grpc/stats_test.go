package grpc

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teranos/gauntlet/plugin/grpc/protocol"
)

func TestStats_Record(t *testing.T) {
	stats := NewStats(nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				stats.Record(protocol.MethodPing)
			}
		}()
	}
	wg.Wait()
	stats.Record(protocol.MethodStats)

	snap := stats.Snapshot()
	assert.Equal(t, uint64(401), snap.TotalRequestCount)
	assert.Equal(t, uint64(400), snap.Methods[protocol.MethodPing])
	assert.Equal(t, uint64(1), snap.Methods[protocol.MethodStats])
	assert.GreaterOrEqual(t, snap.UptimeSeconds, 0.0)
}

func TestStats_Monotonic(t *testing.T) {
	_, proxy := startService(t, ServiceConfig{})
	ctx := context.Background()

	before, err := proxy.Stats(ctx)
	require.NoError(t, err)

	const n = 5
	for i := 0; i < n; i++ {
		_, err := proxy.Ping(ctx)
		require.NoError(t, err)
	}
	_, err = proxy.Discover(ctx)
	require.NoError(t, err)

	after, err := proxy.Stats(ctx)
	require.NoError(t, err)

	// n pings, one discover and the stats call itself.
	assert.Equal(t, before.TotalRequestCount+n+2, after.TotalRequestCount)
	assert.GreaterOrEqual(t, after.Methods[protocol.MethodPing], uint64(n))
	assert.Equal(t, uint64(2), after.Methods[protocol.MethodStats])
}

func TestStats_CountsFailedCalls(t *testing.T) {
	svc, proxy := startService(t, ServiceConfig{})
	ctx := context.Background()

	_, err := proxy.Process(ctx, "missing", "")
	require.Error(t, err)
	_, err = proxy.Process(ctx, "", "")
	require.Error(t, err)

	assert.Equal(t, uint64(2), svc.Stats().Total())
}

func TestMethodName(t *testing.T) {
	assert.Equal(t, "Ping", methodName(protocol.FullMethod(protocol.MethodPing)))
	assert.Equal(t, "bare", methodName("bare"))
}
