package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/gauntlet/am"
	"github.com/teranos/gauntlet/errors"
)

// AmCmd represents the am (configuration) command
var AmCmd = &cobra.Command{
	Use:   "am",
	Short: "Manage gauntlet configuration",
	Long: `am - Manage gauntlet configuration ("I am")

Configuration sources (in order of precedence):
1. Environment variables (GAUNTLET_* prefix)
2. Project config (nearest gauntlet.toml walking up from the working directory)
3. User config (~/.gauntlet/config.toml)
4. System config (/etc/gauntlet/config.toml)
5. Default values

Examples:
  gauntlet am show                # Show effective configuration as TOML
  gauntlet am show --sources      # Show where each setting came from
  gauntlet am get server.port     # Get a specific value
  gauntlet am init                # Write defaults to ./gauntlet.toml`,
}

var amShowSources bool

var amShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if amShowSources {
			return showSources(cmd)
		}
		if outputFlag != "table" {
			shown := *cfg
			if shown.Server.AuthToken != "" {
				shown.Server.AuthToken = "********"
			}
			return render(cmd.OutOrStdout(), shown, nil)
		}
		data, err := am.Render(cfg)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "# gauntlet configuration\n%s", data)
		return nil
	},
}

func showSources(cmd *cobra.Command) error {
	settings, err := am.Introspect()
	if err != nil {
		return err
	}
	return render(cmd.OutOrStdout(), settings, func() [][]string {
		rows := [][]string{{"Key", "Value", "Source", "From"}}
		for _, s := range settings {
			rows = append(rows, []string{s.Key, fmt.Sprint(s.Value), string(s.Source), s.SourcePath})
		}
		return rows
	})
}

var amGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a specific configuration value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := am.GetViper()
		if err != nil {
			return err
		}
		if !v.IsSet(args[0]) {
			return errors.Wrapf(errors.ErrNotFound, "configuration key %q", args[0])
		}
		fmt.Fprintln(cmd.OutOrStdout(), v.Get(args[0]))
		return nil
	},
}

var amWhereCmd = &cobra.Command{
	Use:   "where",
	Short: "Show which configuration files were loaded",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		files := am.LoadedFiles()
		if configPath != "" {
			files = []string{configPath}
		}
		if len(files) == 0 {
			pterm.Info.Println("No config files found; defaults and environment only")
			return nil
		}
		for _, f := range files {
			fmt.Fprintln(cmd.OutOrStdout(), f)
		}
		return nil
	},
}

var amInitForce bool

var amInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write the default configuration to a file",
	Long:  "Write the default configuration to path (default ./gauntlet.toml). An existing file is kept as a .back1 backup.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := am.ProjectConfigFile
		if len(args) == 1 {
			path = args[0]
		}
		path, err := filepath.Abs(path)
		if err != nil {
			return errors.Wrap(err, "resolve path")
		}
		if _, err := os.Stat(path); err == nil && !amInitForce {
			return errors.WithHint(
				errors.Wrapf(errors.ErrConflict, "%s already exists", path),
				"pass --force to overwrite it; the old file is kept as .back1",
			)
		}
		if err := am.Save(path, am.Defaults()); err != nil {
			return err
		}
		pterm.Success.Printf("Wrote %s\n", path)
		return nil
	},
}

func init() {
	amShowCmd.Flags().BoolVar(&amShowSources, "sources", false, "Show the source of every setting")
	amInitCmd.Flags().BoolVar(&amInitForce, "force", false, "Overwrite an existing file")

	AmCmd.AddCommand(amShowCmd)
	AmCmd.AddCommand(amGetCmd)
	AmCmd.AddCommand(amWhereCmd)
	AmCmd.AddCommand(amInitCmd)
}
