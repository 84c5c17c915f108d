package grpc

import (
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teranos/gauntlet/errors"
	"github.com/teranos/gauntlet/logger"
	"github.com/teranos/gauntlet/plugin"
	"github.com/teranos/gauntlet/plugin/grpc/protocol"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"
)

// DefaultShutdownTimeout bounds how long Shutdown waits for in-flight calls.
const DefaultShutdownTimeout = 10 * time.Second

// State is the lifecycle state of a Service.
type State int32

const (
	StateStopped State = iota
	StateServing
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateServing:
		return "serving"
	case StateStopping:
		return "stopping"
	}
	return "unknown"
}

// ServiceConfig configures the listener and its interceptors.
type ServiceConfig struct {
	// Host to bind; empty binds every interface.
	Host string
	// ShutdownTimeout bounds graceful shutdown. Zero uses DefaultShutdownTimeout.
	ShutdownTimeout time.Duration
	// MaxRequestsPerSecond enables rate limiting when positive.
	MaxRequestsPerSecond float64
	// AuthToken, when set, is required on every call.
	AuthToken string
}

// Service owns the network listener for a PipelineServer.
//
// States run stopped → serving → stopping → stopped. A stopped Service can
// be started again.
type Service struct {
	mu    sync.Mutex
	state atomic.Int32

	cfg      ServiceConfig
	registry *plugin.Registry
	stats    *Stats
	logger   *zap.SugaredLogger

	server   *grpc.Server
	listener net.Listener
	group    *errgroup.Group
}

// NewService creates a stopped Service for registry.
func NewService(registry *plugin.Registry, cfg ServiceConfig, log *zap.SugaredLogger) *Service {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
	return &Service{
		cfg:      cfg,
		registry: registry,
		stats:    NewStats(log),
		logger:   log,
	}
}

// State returns the current lifecycle state.
func (s *Service) State() State {
	return State(s.state.Load())
}

// Stats returns the request counter.
func (s *Service) Stats() *Stats {
	return s.stats
}

// Registry returns the served registry.
func (s *Service) Registry() *plugin.Registry {
	return s.registry
}

// Addr returns the bound listener address, or "" when not serving.
func (s *Service) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Start binds port and serves on a goroutine owned by the Service. It
// returns once the listener accepts connections. Port 0 picks a free port.
func (s *Service) Start(port int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State() != StateStopped {
		return errors.Wrapf(errors.ErrConflict, "service is %s", s.State())
	}

	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "failed to listen on %s", addr)
	}

	interceptors := []grpc.UnaryServerInterceptor{s.stats.UnaryInterceptor()}
	if s.cfg.MaxRequestsPerSecond > 0 {
		burst := max(1, int(s.cfg.MaxRequestsPerSecond))
		interceptors = append(interceptors, rateLimitInterceptor(rate.NewLimiter(rate.Limit(s.cfg.MaxRequestsPerSecond), burst)))
	}
	if s.cfg.AuthToken != "" {
		interceptors = append(interceptors, authInterceptor(s.cfg.AuthToken))
	}
	interceptors = append(interceptors, loggingInterceptor(s.logger))

	server := grpc.NewServer(grpc.ChainUnaryInterceptor(interceptors...))
	protocol.RegisterPipelineServiceServer(server, NewPipelineServer(s.registry, s.stats, s.logger))

	group := new(errgroup.Group)
	group.Go(func() error {
		if err := server.Serve(listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return errors.Wrap(err, "gRPC server error")
		}
		return nil
	})

	s.server = server
	s.listener = listener
	s.group = group
	s.state.Store(int32(StateServing))

	s.logger.Infow("Pipeline service started", logger.FieldAddress, listener.Addr().String())
	return nil
}

// Shutdown stops accepting calls and waits for in-flight calls to finish.
// If they do not finish within the shutdown timeout, the server is stopped
// forcibly and an error wrapping ErrTimeout is returned. Calling Shutdown on
// a stopped Service does nothing.
func (s *Service) Shutdown() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State() == StateStopped {
		return nil
	}
	s.state.Store(int32(StateStopping))
	s.logger.Infow("Shutting down pipeline service", logger.FieldTimeout, s.cfg.ShutdownTimeout)

	drained := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(drained)
	}()

	var timeoutErr error
	select {
	case <-drained:
	case <-time.After(s.cfg.ShutdownTimeout):
		// Stop closes every connection; handlers still running are abandoned.
		s.server.Stop()
		timeoutErr = errors.Wrapf(errors.ErrTimeout, "in-flight calls did not finish within %s", s.cfg.ShutdownTimeout)
		s.logger.Warnw("Forced pipeline service stop", logger.FieldTimeout, s.cfg.ShutdownTimeout)
	}

	serveErr := s.group.Wait()

	s.server = nil
	s.listener = nil
	s.group = nil
	s.state.Store(int32(StateStopped))

	if timeoutErr != nil {
		return timeoutErr
	}
	if serveErr != nil {
		return serveErr
	}
	s.logger.Info("Pipeline service stopped")
	return nil
}

// Wait blocks until the serving goroutine exits and returns its error.
func (s *Service) Wait() error {
	s.mu.Lock()
	group := s.group
	s.mu.Unlock()
	if group == nil {
		return nil
	}
	return group.Wait()
}
