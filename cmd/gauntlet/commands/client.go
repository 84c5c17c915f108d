package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/teranos/gauntlet/errors"
	"github.com/teranos/gauntlet/pipeline"
	"github.com/teranos/gauntlet/plugin/grpc"
)

// withProxy dials the service, runs fn and closes the connection.
func withProxy(cmd *cobra.Command, fn func(ctx context.Context, p *grpc.Proxy) error) error {
	p, err := dial()
	if err != nil {
		return err
	}
	defer p.Close()
	return fn(cmd.Context(), p)
}

// PingCmd checks that the service answers
var PingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check that the pipeline service answers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withProxy(cmd, func(ctx context.Context, p *grpc.Proxy) error {
			msg, err := p.Ping(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s from %s\n", msg, p.Addr())
			return nil
		})
	},
}

// StatsCmd prints service request statistics
var StatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show service request statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withProxy(cmd, func(ctx context.Context, p *grpc.Proxy) error {
			stats, err := p.Stats(ctx)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), stats, statsRows(stats))
		})
	},
}

// DiscoverCmd lists registered plugins in execution order
var DiscoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "List registered plugins in execution order",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withProxy(cmd, func(ctx context.Context, p *grpc.Proxy) error {
			plugins, err := p.Discover(ctx)
			if err != nil {
				return err
			}
			views := viewPlugins(plugins, cfg.Pipeline.CollectionBoundary)
			return render(cmd.OutOrStdout(), views, pluginRows(views))
		})
	},
}

// ContextCmd prints the active Context
var ContextCmd = &cobra.Command{
	Use:   "context",
	Short: "Show the active Context and its Instances",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withProxy(cmd, func(ctx context.Context, p *grpc.Proxy) error {
			c, err := p.Context(ctx)
			if err != nil {
				return err
			}
			if outputFlag == "table" {
				fmt.Fprintf(cmd.OutOrStdout(), "Context %s (%d instances)\n", c.ID, len(c.Instances))
			}
			return render(cmd.OutOrStdout(), c, contextRows(c))
		})
	},
}

// CollectCmd starts a run and executes the collection phase
var CollectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Start a fresh run and execute the collection plugins",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withProxy(cmd, func(ctx context.Context, p *grpc.Proxy) error {
			results, err := p.Collect(ctx)
			return printResults(cmd, results, err)
		})
	},
}

var publishRepair bool

// PublishCmd executes the processing phase of the current run
var PublishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Execute the processing plugins against the current run",
	Long: `Execute the processing plugins against the current run.

Execution stops after the first plugin that fails. With --repair, every
failed Result whose plugin can repair is repaired afterwards.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withProxy(cmd, func(ctx context.Context, p *grpc.Proxy) error {
			results, err := p.Publish(ctx)
			if err != nil || !publishRepair {
				return printResults(cmd, results, err)
			}
			repaired, err := p.RepairFailed(ctx, results)
			return printResults(cmd, append(results, repaired...), err)
		})
	},
}

// ResetCmd clears the service registry
var ResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear every plugin, path, callback and the active Context",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withProxy(cmd, func(ctx context.Context, p *grpc.Proxy) error {
			if err := p.Reset(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "registry reset")
			return nil
		})
	},
}

// EmitCmd fires a named event
var EmitCmd = &cobra.Command{
	Use:   "emit <event> [key=value ...]",
	Short: "Fire a named event on the service",
	Long: `Fire a named event. Each key=value pair becomes an argument; values are
parsed as JSON when they parse, otherwise passed as strings. Entity
arguments are given by identifier.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eventArgs, err := parseEventArgs(args[1:])
		if err != nil {
			return err
		}
		return withProxy(cmd, func(ctx context.Context, p *grpc.Proxy) error {
			if err := p.Emit(ctx, args[0], eventArgs); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "emitted %s\n", args[0])
			return nil
		})
	},
}

func init() {
	PublishCmd.Flags().BoolVar(&publishRepair, "repair", false, "Repair failed Results whose plugin can repair")
}

func parseEventArgs(pairs []string) (map[string]any, error) {
	out := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, errors.NewInvalidRequestError("argument %q is not key=value", pair)
		}
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			v = raw
		}
		out[key] = v
	}
	return out, nil
}

func printResults(cmd *cobra.Command, results []*pipeline.Result, runErr error) error {
	views := viewResults(results)
	if err := render(cmd.OutOrStdout(), views, resultRows(views)); err != nil {
		return err
	}
	return runErr
}

