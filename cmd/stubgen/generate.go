package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/golemcloud/golem-cloud-cli/config"
	"github.com/golemcloud/golem-cloud-cli/pipeline"
)

func newGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate stubs and compose them into a component",
		Example: `  stubgen generate -I wit/ --go-out gen
  stubgen generate -I wit/ -w golem:shop/app --component shop.wasm --output shop.stubbed.wasm`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			res, err := pipeline.Run(cmd.Context(), pipeline.FromConfig(cfg))
			if err != nil {
				return err
			}
			printSummary(cmd.OutOrStdout(), res)
			return nil
		},
	}

	d := config.Default()
	fs := cmd.Flags()
	addWorldFlags(fs)
	fs.String("component", d.Component, "original component binary to compose with")
	fs.StringP("output", "o", d.Output, "composed binary (default <component>.stubbed.wasm)")
	fs.Bool("compose", d.Compose, "compose stubs into the component")
	fs.StringSlice("host-import", d.HostImports, "import pattern provided by the host, not by stubs (repeatable)")
	fs.Bool("embed-source", d.EmbedSource, "embed generated Go sources in the composed binary")
	fs.String("go-out", d.Go.Out, "directory for generated Go packages")
	fs.Bool("go-source", d.Go.Source, "emit Go sources")
	return cmd
}

func printSummary(w io.Writer, res *pipeline.Result) {
	fmt.Fprintf(w, "%s %s\n", headerStyle.Render("world"), res.Output.World)
	for _, mod := range res.Output.Modules {
		fmt.Fprintf(w, "  %s %s (%d functions)\n",
			funcStyle.Render(mod.GoPackage), typeStyle.Render(mod.Interface), len(mod.Funcs))
	}
	if res.Artifact != nil {
		fmt.Fprintf(w, "%s %s\n", headerStyle.Render("build"), res.Artifact.Manifest.BuildID)
	}
	for _, path := range res.Written {
		fmt.Fprintf(w, "%s %s\n", resultStyle.Render("wrote"), path)
	}
}
