package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/golemcloud/golem-cloud-cli/bridge"
	"github.com/golemcloud/golem-cloud-cli/config"
	"github.com/golemcloud/golem-cloud-cli/packager"
	"github.com/golemcloud/golem-cloud-cli/pipeline"
	"github.com/golemcloud/golem-cloud-cli/rpc"
	"github.com/golemcloud/golem-cloud-cli/stubgen"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "stubgen",
		Short: "Generate RPC stubs for WIT interfaces",
		Long: titleStyle.Render("stubgen") + `

stubgen reads WIT definitions, generates a stub for every function a world
imports, and composes the stubs into the world's component so that calls
to those imports become remote invocations.

Settings are read from stubgen.yaml in the working directory, STUBGEN_*
environment variables and flags, in increasing precedence.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file (default ./stubgen.yaml)")
	root.PersistentFlags().BoolP("verbose", "v", false, "log at debug level")

	root.AddCommand(newGenerateCmd())
	root.AddCommand(newInspectCmd())
	root.AddCommand(newVersionCmd())
	return root
}

func addWorldFlags(fs *pflag.FlagSet) {
	d := config.Default()
	fs.StringP("world", "w", d.World, "target world (optional when the inputs declare one)")
	fs.StringSliceP("input", "I", d.Inputs, "WIT file or directory (repeatable)")
	fs.String("log-level", d.Log.Level, "log level: debug, info, warn or error")
}

// loadConfig reads configuration with cmd's flags on top and installs the
// configured logger in every package that logs.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	file, _ := cmd.Flags().GetString("config")
	cfg, path, err := config.Load(cmd.Context(), config.LoadOptions{File: file, Flags: cmd.Flags()})
	if err != nil {
		return nil, err
	}
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		cfg.Log.Level = "debug"
	}

	l, err := cfg.Logger()
	if err != nil {
		return nil, err
	}
	rpc.SetLogger(l)
	stubgen.SetLogger(l)
	packager.SetLogger(l)
	bridge.SetLogger(l)
	pipeline.SetLogger(l)
	if path != "" {
		l.Debug("config loaded", zap.String("path", path))
	}
	return cfg, nil
}
