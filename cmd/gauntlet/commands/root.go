// Package commands implements the gauntlet CLI.
package commands

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/teranos/gauntlet/am"
	"github.com/teranos/gauntlet/errors"
	"github.com/teranos/gauntlet/logger"
	"github.com/teranos/gauntlet/plugin/grpc"
)

// RootCmd is the gauntlet command tree.
var RootCmd = &cobra.Command{
	Use:   "gauntlet",
	Short: "gauntlet - ordered plugin pipeline over an RPC boundary",
	Long: `gauntlet runs ordered plugins over a shared Context of Instances.

The serve command hosts the pipeline registry behind a gRPC service; every
other command is a client of that service.

Examples:
  gauntlet serve                  # Start the pipeline service
  gauntlet discover               # List registered plugins
  gauntlet collect                # Start a run and execute collection plugins
  gauntlet publish --repair       # Execute processing plugins, repair failures
  gauntlet emit validated instance=<id>
  gauntlet am show                # Show effective configuration`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

var (
	configPath  string
	addrFlag    string
	tokenFlag   string
	timeoutFlag time.Duration
	outputFlag  string

	// cfg is the configuration loaded before every command.
	cfg *am.Config
)

func init() {
	RootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Read configuration from this file only (skips the search chain)")
	RootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (-v debug)")
	RootCmd.PersistentFlags().StringVar(&addrFlag, "addr", "", "Service address (default server.host:server.port)")
	RootCmd.PersistentFlags().StringVar(&tokenFlag, "token", "", "Auth token (default server.auth_token)")
	RootCmd.PersistentFlags().DurationVar(&timeoutFlag, "timeout", 30*time.Second, "Per-call timeout")
	RootCmd.PersistentFlags().StringVarP(&outputFlag, "output", "o", "table", "Output format: table, json, yaml")

	RootCmd.AddCommand(ServeCmd)
	RootCmd.AddCommand(PingCmd)
	RootCmd.AddCommand(StatsCmd)
	RootCmd.AddCommand(DiscoverCmd)
	RootCmd.AddCommand(ContextCmd)
	RootCmd.AddCommand(CollectCmd)
	RootCmd.AddCommand(PublishCmd)
	RootCmd.AddCommand(EmitCmd)
	RootCmd.AddCommand(ResetCmd)
	RootCmd.AddCommand(AmCmd)
	RootCmd.AddCommand(VersionCmd)
}

func setup(cmd *cobra.Command, args []string) error {
	var err error
	if configPath != "" {
		cfg, err = am.LoadFromFile(configPath)
	} else {
		cfg, err = am.Load()
	}
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}

	level := cfg.Log.Level
	if v, _ := cmd.Flags().GetCount("verbose"); v > 0 {
		level = "debug"
	}
	if err := logger.Initialize(cfg.Log.JSON, level); err != nil {
		return errors.Wrap(err, "failed to initialize logger")
	}

	switch outputFlag {
	case "table", "json", "yaml":
	default:
		return errors.NewInvalidRequestError("unsupported output format %q (supported: table, json, yaml)", outputFlag)
	}
	return nil
}

// serviceAddr returns --addr or the configured host and port.
func serviceAddr() string {
	if addrFlag != "" {
		return addrFlag
	}
	host := cfg.Server.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, strconv.Itoa(cfg.Server.Port))
}

// dial connects a Proxy to the service.
func dial() (*grpc.Proxy, error) {
	token := tokenFlag
	if token == "" {
		token = cfg.Server.AuthToken
	}
	return grpc.NewProxy(serviceAddr(),
		grpc.WithCallTimeout(timeoutFlag),
		grpc.WithToken(token),
		grpc.WithBoundary(cfg.Pipeline.CollectionBoundary),
		grpc.WithLogger(logger.ComponentLogger("proxy")),
	)
}

// Describe formats err for the terminal, appending any hints.
func Describe(err error) string {
	var b strings.Builder
	b.WriteString("Error: ")
	b.WriteString(err.Error())
	for _, hint := range errors.GetAllHints(err) {
		fmt.Fprintf(&b, "\n  hint: %s", hint)
	}
	return b.String()
}
