package grpc

import (
	"context"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shirou/gopsutil/v3/process"
	"github.com/teranos/gauntlet/logger"
	"github.com/teranos/gauntlet/plugin/grpc/protocol"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

const requestsMetric = "gauntlet_rpc_requests_total"

// Stats counts inbound calls. The total only ever grows; it is safe to
// read while calls are being counted.
type Stats struct {
	total    atomic.Uint64
	started  time.Time
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	proc     *process.Process
	logger   *zap.SugaredLogger
}

// NewStats creates a counter with its own metrics registry.
func NewStats(log *zap.SugaredLogger) *Stats {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	s := &Stats{
		started:  time.Now(),
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: requestsMetric,
			Help: "Inbound pipeline calls by method.",
		}, []string{"method"}),
		logger: log,
	}
	s.registry.MustRegister(s.requests)

	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		log.Debugw("Process metrics unavailable", logger.FieldError, err)
	} else {
		s.proc = proc
	}
	return s
}

// Record counts one call to method.
func (s *Stats) Record(method string) {
	s.total.Add(1)
	s.requests.WithLabelValues(method).Inc()
}

// Total returns the number of calls counted so far.
func (s *Stats) Total() uint64 {
	return s.total.Load()
}

// Registry exposes the metrics registry, e.g. for a /metrics handler.
func (s *Stats) Registry() *prometheus.Registry {
	return s.registry
}

// Snapshot reports the counters as they are now.
func (s *Stats) Snapshot() *protocol.Stats {
	out := &protocol.Stats{
		TotalRequestCount: s.Total(),
		Methods:           make(map[string]uint64),
		UptimeSeconds:     time.Since(s.started).Seconds(),
	}

	families, err := s.registry.Gather()
	if err != nil {
		s.logger.Debugw("Failed to gather request metrics", logger.FieldError, err)
	}
	for _, family := range families {
		if family.GetName() != requestsMetric {
			continue
		}
		for _, m := range family.GetMetric() {
			for _, label := range m.GetLabel() {
				if label.GetName() == "method" {
					out.Methods[label.GetValue()] = uint64(m.GetCounter().GetValue())
				}
			}
		}
	}

	if s.proc != nil {
		if mem, err := s.proc.MemoryInfo(); err == nil {
			out.MemoryRSS = mem.RSS
		}
	}
	return out
}

// UnaryInterceptor counts every call before anything else sees it.
func (s *Stats) UnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		s.Record(methodName(info.FullMethod))
		return handler(ctx, req)
	}
}

// methodName strips the service prefix from a full method path.
func methodName(fullMethod string) string {
	if i := strings.LastIndexByte(fullMethod, '/'); i >= 0 {
		return fullMethod[i+1:]
	}
	return fullMethod
}
