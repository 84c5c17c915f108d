package commands

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/teranos/gauntlet/am"
	"github.com/teranos/gauntlet/builtin"
	"github.com/teranos/gauntlet/errors"
	"github.com/teranos/gauntlet/logger"
	"github.com/teranos/gauntlet/plugin"
	"github.com/teranos/gauntlet/plugin/grpc"
	"github.com/teranos/gauntlet/version"
)

// ServeCmd hosts the pipeline registry behind the gRPC service
var ServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the pipeline service",
	Long: `Start the gRPC pipeline service on server.host:server.port.

The stock manifest collector is registered and reads *.toml manifests from
pipeline.paths. Changes to log.level and pipeline.paths in the active config
file apply without a restart.`,
	RunE: runServe,
}

var (
	servePort      int
	serveNoBuiltin bool
)

func init() {
	ServeCmd.Flags().IntVarP(&servePort, "port", "p", -1, "Port to listen on (default server.port, 0 for ephemeral)")
	ServeCmd.Flags().BoolVar(&serveNoBuiltin, "no-builtin", false, "Do not register the manifest collector")
}

// newRegistry builds the registry for cfg with the built-in plugins.
func newRegistry(cfg *am.Config, withBuiltin bool) (*plugin.Registry, error) {
	registry := plugin.NewRegistry(version.Framework, cfg.Pipeline.CollectionBoundary, logger.ComponentLogger("registry"))
	for _, p := range cfg.Pipeline.Paths {
		registry.RegisterPath(p)
	}
	if withBuiltin {
		if err := registry.Register(builtin.ManifestCollector(registry.Paths)); err != nil {
			return nil, errors.Wrap(err, "failed to register manifest collector")
		}
	}
	return registry, nil
}

// applyReload pushes live-reloadable settings into the running process.
func applyReload(registry *plugin.Registry, log *zap.SugaredLogger) am.ReloadCallback {
	return func(next *am.Config) error {
		if err := logger.SetLevel(next.Log.Level); err != nil {
			return errors.Wrap(err, "log.level")
		}
		registry.DeregisterAllPaths()
		for _, p := range next.Pipeline.Paths {
			registry.RegisterPath(p)
		}
		log.Infow("Applied reloaded config", logger.FieldLogLevel, next.Log.Level, logger.FieldPaths, len(next.Pipeline.Paths))
		return nil
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logger.ComponentLogger("serve")

	registry, err := newRegistry(cfg, !serveNoBuiltin)
	if err != nil {
		return err
	}

	svc := grpc.NewService(registry, grpc.ServiceConfig{
		Host:                 cfg.Server.Host,
		ShutdownTimeout:      time.Duration(cfg.Server.ShutdownTimeoutSeconds) * time.Second,
		MaxRequestsPerSecond: cfg.Server.MaxRequestsPerSecond,
		AuthToken:            cfg.Server.AuthToken,
	}, logger.ComponentLogger("service"))

	port := cfg.Server.Port
	if servePort >= 0 {
		port = servePort
	}
	if err := svc.Start(port); err != nil {
		return err
	}
	pterm.Success.Printf("Pipeline service listening on %s\n", svc.Addr())

	if path := am.ActiveFile(); path != "" && configPath == "" {
		watcher, err := am.NewConfigWatcher(path, logger.ComponentLogger("am"))
		if err != nil {
			log.Warnw("Config watcher unavailable", logger.FieldPath, path, logger.FieldError, err)
		} else {
			watcher.OnReload(applyReload(registry, log))
			watcher.Start()
			am.SetGlobalWatcher(watcher)
			defer watcher.Stop()
		}
	}

	var metrics *http.Server
	if cfg.Server.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(svc.Stats().Registry(), promhttp.HandlerOpts{}))
		metrics = &http.Server{Addr: cfg.Server.MetricsAddress, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Errorw("Metrics endpoint failed", logger.FieldAddress, cfg.Server.MetricsAddress, logger.FieldError, err)
			}
		}()
		pterm.Info.Printf("Metrics on http://%s/metrics\n", cfg.Server.MetricsAddress)
	}

	served := make(chan error, 1)
	go func() { served <- svc.Wait() }()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err := <-served:
		return errors.Wrap(err, "pipeline service stopped")
	case <-sigChan:
		pterm.Info.Println("Shutting down gracefully (press Ctrl+C again to force)...")
	}

	if metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		_ = metrics.Shutdown(ctx)
		cancel()
	}

	shutdownDone := make(chan error, 1)
	go func() { shutdownDone <- svc.Shutdown() }()

	select {
	case err := <-shutdownDone:
		if err != nil {
			return errors.Wrap(err, "shutdown")
		}
		pterm.Success.Println("Pipeline service stopped cleanly")
		return nil
	case <-sigChan:
		pterm.Warning.Println("Force shutdown - exiting immediately")
		os.Exit(1)
		return nil
	}
}
