// Package pipeline runs the generator stages in order: parse, resolve, map,
// generate and, when configured, compose. Parsing is the only parallel
// stage; resolution waits for every document. The first terminal error
// aborts the run and nothing is written.
package pipeline

import (
	"context"
	stderrors "errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/golemcloud/golem-cloud-cli/canon"
	"github.com/golemcloud/golem-cloud-cli/config"
	"github.com/golemcloud/golem-cloud-cli/errors"
	"github.com/golemcloud/golem-cloud-cli/packager"
	"github.com/golemcloud/golem-cloud-cli/parser"
	"github.com/golemcloud/golem-cloud-cli/resolve"
	"github.com/golemcloud/golem-cloud-cli/stubgen"
)

// Options configures a run.
type Options struct {
	// Fs is the filesystem used for all reads and writes. Defaults to the
	// OS filesystem.
	Fs afero.Fs

	// World selects the target world. It may be empty when the inputs
	// declare exactly one world.
	World string
	// Inputs are .wit files or directories holding them.
	Inputs []string

	// Component is the original binary; Output receives the composed one.
	Component string
	Output    string
	Compose   bool

	HostImports []string
	EmbedSource bool

	// GoOut receives one directory per stub module. Empty skips writing.
	GoOut string
	// SkipSource disables Go source emission entirely.
	SkipSource bool
}

// FromConfig builds Options from a loaded configuration.
func FromConfig(cfg *config.Config) Options {
	return Options{
		World:       cfg.World,
		Inputs:      cfg.Inputs,
		Component:   cfg.Component,
		Output:      cfg.Output,
		Compose:     cfg.Composing(),
		HostImports: cfg.HostImports,
		EmbedSource: cfg.EmbedSource,
		GoOut:       cfg.Go.Out,
		SkipSource:  !cfg.Go.Source,
	}
}

// Result holds the products of a run.
type Result struct {
	Graph    *resolve.Graph
	Output   *stubgen.Output
	Artifact *packager.Artifact
	// Written lists the files created, artifact first.
	Written []string
}

// Generate runs the stages up to stub generation without writing anything.
func Generate(ctx context.Context, opts Options) (res *Result, err error) {
	defer recoverDefect(&err)
	opts.defaults()
	return generate(ctx, opts)
}

// Run generates stubs, composes the artifact when configured, and writes
// the outputs. Files are written only after every stage succeeded, each
// through a temporary file renamed into place.
func Run(ctx context.Context, opts Options) (res *Result, err error) {
	defer recoverDefect(&err)
	opts.defaults()

	res, err = generate(ctx, opts)
	if err != nil {
		return nil, err
	}

	if opts.Compose {
		original, err := afero.ReadFile(opts.Fs, opts.Component)
		if err != nil {
			return nil, stage(errors.PhaseCompose, err)
		}
		p := packager.New(packager.Options{HostImports: opts.HostImports, EmbedSource: opts.EmbedSource})
		if res.Artifact, err = p.Compose(ctx, original, res.Output); err != nil {
			return nil, stage(errors.PhaseCompose, err)
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if res.Artifact != nil {
		if err := writeFileAtomic(opts.Fs, opts.Output, res.Artifact.Binary); err != nil {
			return nil, stage(errors.PhaseCompose, err)
		}
		res.Written = append(res.Written, opts.Output)
	}
	if opts.GoOut != "" && !opts.SkipSource {
		for _, mod := range res.Output.Modules {
			path := filepath.Join(opts.GoOut, mod.GoPackage, mod.GoPackage+".go")
			if err := writeFileAtomic(opts.Fs, path, mod.Source); err != nil {
				return nil, stage(errors.PhaseGenerate, err)
			}
			res.Written = append(res.Written, path)
		}
	}

	Logger().Info("stubs generated",
		zap.String("world", res.Output.World),
		zap.Int("modules", len(res.Output.Modules)),
		zap.Strings("written", res.Written))
	return res, nil
}

func (o *Options) defaults() {
	if o.Fs == nil {
		o.Fs = afero.NewOsFs()
	}
}

func generate(ctx context.Context, opts Options) (*Result, error) {
	sources, err := readSources(opts.Fs, opts.Inputs)
	if err != nil {
		return nil, stage(errors.PhaseParse, err)
	}
	docs, err := parser.ParseFiles(ctx, sources)
	if err != nil {
		return nil, stage(errors.PhaseParse, err)
	}
	Logger().Debug("parsed", zap.Int("documents", len(docs)))

	g, err := resolve.Resolve(docs)
	if err != nil {
		return nil, stage(errors.PhaseResolve, err)
	}
	world, err := selectWorld(g, opts.World)
	if err != nil {
		return nil, stage(errors.PhaseResolve, err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	gen := stubgen.New(g, canon.NewMapper(g), stubgen.Options{SkipSource: opts.SkipSource})
	out, err := gen.Generate(world)
	if err != nil {
		return nil, stage(errors.PhaseGenerate, err)
	}
	return &Result{Graph: g, Output: out}, nil
}

func selectWorld(g *resolve.Graph, name string) (string, error) {
	if name != "" {
		return name, nil
	}
	switch len(g.Worlds) {
	case 1:
		return g.Worlds[0].Identity(), nil
	case 0:
		return "", &errors.ResolutionError{Symbol: "world", Detail: "inputs declare no world"}
	default:
		names := make([]string, len(g.Worlds))
		for i, w := range g.Worlds {
			names[i] = w.Identity()
		}
		return "", &errors.ResolutionError{Symbol: "world",
			Detail: "several worlds declared, choose one of " + strings.Join(names, ", ")}
	}
}

// readSources loads inputs in the given order. A directory contributes its
// .wit files sorted by name; subdirectories are not searched.
func readSources(fs afero.Fs, inputs []string) ([]parser.Source, error) {
	if len(inputs) == 0 {
		return nil, errors.InvalidInput(errors.PhaseParse, "no WIT inputs")
	}
	var sources []parser.Source
	for _, in := range inputs {
		info, err := fs.Stat(in)
		if err != nil {
			return nil, err
		}
		files := []string{in}
		if info.IsDir() {
			if files, err = afero.Glob(fs, filepath.Join(in, "*.wit")); err != nil {
				return nil, err
			}
			slices.Sort(files)
			if len(files) == 0 {
				return nil, errors.NotFound(errors.PhaseParse, "WIT files in", in)
			}
		}
		for _, f := range files {
			data, err := afero.ReadFile(fs, f)
			if err != nil {
				return nil, err
			}
			sources = append(sources, parser.Source{Name: f, Data: data})
		}
	}
	return sources, nil
}

// writeFileAtomic writes data to a temporary file in the target directory
// and renames it over path.
func writeFileAtomic(fs afero.Fs, path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := afero.TempFile(fs, dir, "."+filepath.Base(path)+".tmp*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = fs.Remove(tmp.Name())
		}
	}()
	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = fs.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return fs.Rename(tmp.Name(), path)
}

// StageError tags a terminal error with the stage that produced it.
type StageError struct {
	Err   error
	Stage errors.Phase
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

func stage(phase errors.Phase, err error) error {
	var staged errors.Staged
	if stderrors.As(err, &staged) {
		phase = staged.Stage()
	}
	return &StageError{Stage: phase, Err: err}
}

// IsDefect reports whether err is an internal invariant violation rather
// than a problem with the inputs.
func IsDefect(err error) bool {
	var inv *errors.InvariantError
	return stderrors.As(err, &inv)
}

func recoverDefect(err *error) {
	r := recover()
	if r == nil {
		return
	}
	inv, ok := r.(*errors.InvariantError)
	if !ok {
		panic(r)
	}
	Logger().Error("internal invariant violated", zap.Error(inv))
	*err = &StageError{Stage: inv.Phase, Err: inv}
}
