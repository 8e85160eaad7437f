package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tetratelabs/wazero/api"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/golemcloud/golem-cloud-cli/canon"
	"github.com/golemcloud/golem-cloud-cli/errors"
	"github.com/golemcloud/golem-cloud-cli/pipeline"
	"github.com/golemcloud/golem-cloud-cli/stubgen"
)

func newInspectCmd() *cobra.Command {
	var (
		format      string
		source      string
		interactive bool
	)
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show the stubs a world would get",
		Long: `Inspect resolves the world and lists every stub module with its
functions, canonical signatures and core wasm signatures. Nothing is written.

With --interactive, pick a function, type its arguments and preview the
canonical values and the request a call would send.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			opts := pipeline.FromConfig(cfg)
			opts.SkipSource = source == ""

			res, err := pipeline.Generate(cmd.Context(), opts)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch {
			case source != "":
				return writeSource(out, res.Output, source)
			case interactive:
				if !term.IsTerminal(int(os.Stdout.Fd())) {
					return errors.InvalidInput(errors.PhaseConfig, "--interactive needs a terminal")
				}
				return runInteractive(res.Output)
			}

			view := newWorldView(res.Output)
			switch format {
			case "yaml":
				enc := yaml.NewEncoder(out)
				enc.SetIndent(2)
				if err := enc.Encode(view); err != nil {
					return err
				}
				return enc.Close()
			case "json":
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(view)
			case "text":
				view.render(out)
				return nil
			}
			return errors.InvalidInput(errors.PhaseConfig, "unknown format "+format)
		},
	}

	fs := cmd.Flags()
	addWorldFlags(fs)
	fs.StringVarP(&format, "format", "f", "text", "output format: text, yaml or json")
	fs.StringVar(&source, "source", "", "print the generated Go source of one package")
	fs.BoolVarP(&interactive, "interactive", "i", false, "browse functions and preview calls")
	return cmd
}

func writeSource(w io.Writer, out *stubgen.Output, pkg string) error {
	for _, mod := range out.Modules {
		if mod.GoPackage == pkg {
			_, err := w.Write(mod.Source)
			return err
		}
	}
	names := make([]string, len(out.Modules))
	for i, mod := range out.Modules {
		names[i] = mod.GoPackage
	}
	return errors.NotFound(errors.PhaseGenerate, "package", pkg+" (have "+strings.Join(names, ", ")+")")
}

type worldView struct {
	World       string       `yaml:"world" json:"world"`
	Modules     []moduleView `yaml:"modules" json:"modules"`
	PassThrough []string     `yaml:"pass_through,omitempty" json:"pass_through,omitempty"`
}

type moduleView struct {
	Interface string     `yaml:"interface" json:"interface"`
	GoPackage string     `yaml:"go_package" json:"go_package"`
	Resources []string   `yaml:"resources,omitempty" json:"resources,omitempty"`
	Functions []funcView `yaml:"functions" json:"functions"`
}

type funcView struct {
	Identity     string   `yaml:"identity" json:"identity"`
	Kind         string   `yaml:"kind" json:"kind"`
	Params       []string `yaml:"params,omitempty" json:"params,omitempty"`
	Result       string   `yaml:"result,omitempty" json:"result,omitempty"`
	ErrorChannel bool     `yaml:"error_channel,omitempty" json:"error_channel,omitempty"`
	Core         string   `yaml:"core" json:"core"`
	Indirect     bool     `yaml:"indirect,omitempty" json:"indirect,omitempty"`
}

func newWorldView(out *stubgen.Output) *worldView {
	v := &worldView{World: out.World, PassThrough: out.PassThrough}
	for _, mod := range out.Modules {
		mv := moduleView{Interface: mod.Interface, GoPackage: mod.GoPackage}
		for _, r := range mod.Resources {
			mv.Resources = append(mv.Resources, r.Name)
		}
		for _, f := range mod.Funcs {
			mv.Functions = append(mv.Functions, newFuncView(f))
		}
		v.Modules = append(v.Modules, mv)
	}
	return v
}

func newFuncView(f *stubgen.Func) funcView {
	fv := funcView{
		Identity:     f.Identity,
		Kind:         f.Kind.String(),
		ErrorChannel: f.ErrorChannel,
		Core:         coreSignature(f.Sig),
		Indirect:     f.Sig.IndirectParams || f.Sig.IndirectResult,
	}
	for _, p := range f.Params {
		fv.Params = append(fv.Params, p.Name+": "+p.Shape.String())
	}
	if f.Result != nil {
		fv.Result = f.Result.String()
	}
	return fv
}

func coreSignature(sig canon.FlatSig) string {
	names := func(types []api.ValueType) string {
		parts := make([]string, len(types))
		for i, t := range types {
			parts[i] = api.ValueTypeName(t)
		}
		return "(" + strings.Join(parts, ", ") + ")"
	}
	return names(sig.Params) + " -> " + names(sig.Results)
}

func (v *worldView) render(w io.Writer) {
	fmt.Fprintln(w, titleStyle.Render(v.World))
	for _, mod := range v.Modules {
		fmt.Fprintf(w, "\n%s %s\n", headerStyle.Render(mod.GoPackage), typeStyle.Render(mod.Interface))
		for _, f := range mod.Functions {
			sig := funcStyle.Render(f.Identity) + "(" + strings.Join(f.Params, ", ") + ")"
			if f.Result != "" {
				sig += " -> " + typeStyle.Render(f.Result)
			}
			fmt.Fprintf(w, "  %s\n    %s", sig, helpStyle.Render(f.Kind+" "+f.Core))
			if f.ErrorChannel {
				fmt.Fprint(w, helpStyle.Render(" error channel"))
			}
			if f.Indirect {
				fmt.Fprint(w, helpStyle.Render(" indirect"))
			}
			fmt.Fprintln(w)
		}
	}
	if len(v.PassThrough) > 0 {
		fmt.Fprintf(w, "\n%s %s\n", headerStyle.Render("exports"), strings.Join(v.PassThrough, ", "))
	}
}
