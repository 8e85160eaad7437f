package pipeline

import (
	"bytes"
	"context"
	stderrors "errors"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/spf13/afero"

	"github.com/golemcloud/golem-cloud-cli/component"
	"github.com/golemcloud/golem-cloud-cli/config"
	"github.com/golemcloud/golem-cloud-cli/errors"
)

const apiWIT = `
package golem:calc@1.0.0;

interface api {
	add: func(a: s32, b: s32) -> s32;
}
`

const worldWIT = `
package golem:calc@1.0.0;

world app {
	import api;
	import log: func(level: u8);
	export run: func() -> s32;
}
`

func memFs(t *testing.T, files map[string]string) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	for name, body := range files {
		if err := afero.WriteFile(fs, name, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return fs
}

func original(imports ...component.Import) []byte {
	return component.NewBuilder().
		Imports(imports...).
		CoreModule(component.NewCoreModuleBuilder("env").Build()).
		Exports(component.Export{Name: "run", Sort: component.SortFunc}).
		Bytes()
}

func TestGenerate(t *testing.T) {
	fs := memFs(t, map[string]string{
		"wit/b-world.wit": worldWIT,
		"wit/a-api.wit":   apiWIT,
		"wit/notes.txt":   "not wit",
	})

	res, err := Generate(context.Background(), Options{Fs: fs, Inputs: []string{"wit"}})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if res.Output.World != "golem:calc/app@1.0.0" {
		t.Errorf("World = %q, want golem:calc/app@1.0.0", res.Output.World)
	}
	if len(res.Output.Modules) != 2 {
		t.Fatalf("len(Modules) = %d, want 2", len(res.Output.Modules))
	}
	if len(res.Written) != 0 {
		t.Errorf("Generate wrote %v", res.Written)
	}
}

func TestRun(t *testing.T) {
	orig := original(
		component.Import{Name: "golem:calc/api@1.0.0", ExternKind: component.ExternInstance},
		component.Import{Name: "log", ExternKind: component.ExternFunc, TypeIndex: 1},
	)
	fs := memFs(t, map[string]string{
		"calc.wit":       apiWIT + worldWIT[len("\npackage golem:calc@1.0.0;\n"):],
		"build/app.wasm": string(orig),
	})

	res, err := Run(context.Background(), Options{
		Fs:        fs,
		Inputs:    []string{"calc.wit"},
		World:     "app",
		Component: "build/app.wasm",
		Output:    "build/app.stubbed.wasm",
		Compose:   true,
		GoOut:     "gen",
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	want := []string{
		"build/app.stubbed.wasm",
		filepath.Join("gen", "api", "api.go"),
		filepath.Join("gen", "app", "app.go"),
	}
	if !slices.Equal(res.Written, want) {
		t.Errorf("Written = %v, want %v", res.Written, want)
	}

	got, err := afero.ReadFile(fs, "build/app.stubbed.wasm")
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	if !bytes.Equal(got, res.Artifact.Binary) {
		t.Error("written artifact does not match the composed binary")
	}
	comp, err := component.Decode(got)
	if err != nil {
		t.Fatalf("Decode(artifact) failed: %v", err)
	}
	if nested := comp.Components(); len(nested) != 1 || !bytes.Equal(nested[0], orig) {
		t.Error("artifact does not nest the original")
	}

	src, _ := afero.ReadFile(fs, filepath.Join("gen", "api", "api.go"))
	if !strings.HasPrefix(string(src), "// Code generated by golem-stubgen. DO NOT EDIT.") {
		t.Errorf("api.go header = %q", firstLine(src))
	}

	entries, _ := afero.ReadDir(fs, "build")
	for _, e := range entries {
		if strings.Contains(e.Name(), ".tmp") {
			t.Errorf("temporary file %s left behind", e.Name())
		}
	}
}

func firstLine(b []byte) string {
	line, _, _ := bytes.Cut(b, []byte("\n"))
	return string(line)
}

func TestRunFailures(t *testing.T) {
	uncovered := original(
		component.Import{Name: "golem:calc/api@1.0.0", ExternKind: component.ExternInstance},
		component.Import{Name: "golem:other/api@1.0.0", ExternKind: component.ExternInstance},
	)

	tests := []struct {
		name   string
		files  map[string]string
		opts   Options
		stage  errors.Phase
		target error
	}{
		{
			name:   "parse",
			files:  map[string]string{"a.wit": "package golem:calc@1.0.0;\ninterface api {\n\tadd: func(\n}\n"},
			opts:   Options{Inputs: []string{"a.wit"}},
			stage:  errors.PhaseParse,
			target: &errors.ParseError{},
		},
		{
			name:   "unresolved",
			files:  map[string]string{"a.wit": "package golem:calc@1.0.0;\nworld app {\n\timport missing;\n}\n"},
			opts:   Options{Inputs: []string{"a.wit"}},
			stage:  errors.PhaseResolve,
			target: &errors.ResolutionError{},
		},
		{
			name:   "no world",
			files:  map[string]string{"a.wit": apiWIT},
			opts:   Options{Inputs: []string{"a.wit"}},
			stage:  errors.PhaseResolve,
			target: &errors.ResolutionError{},
		},
		{
			name:   "uncovered import",
			files:  map[string]string{"a.wit": apiWIT, "b.wit": worldWIT, "app.wasm": string(uncovered)},
			opts:   Options{Inputs: []string{"a.wit", "b.wit"}, Component: "app.wasm", Output: "out.wasm", Compose: true, GoOut: "gen"},
			stage:  errors.PhaseCompose,
			target: &errors.CompositionError{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := memFs(t, tt.files)
			tt.opts.Fs = fs

			_, err := Run(context.Background(), tt.opts)
			var se *StageError
			if !stderrors.As(err, &se) {
				t.Fatalf("Run error = %v, want *StageError", err)
			}
			if se.Stage != tt.stage {
				t.Errorf("Stage = %s, want %s", se.Stage, tt.stage)
			}
			if !stderrors.Is(err, tt.target) {
				t.Errorf("error %v does not match %T", err, tt.target)
			}
			if !strings.HasPrefix(err.Error(), string(tt.stage)+" failed: ") {
				t.Errorf("Error() = %q", err.Error())
			}
			if IsDefect(err) {
				t.Error("user error reported as defect")
			}
			if ok, _ := afero.Exists(fs, "out.wasm"); ok {
				t.Error("artifact written despite failure")
			}
			if ok, _ := afero.DirExists(fs, "gen"); ok {
				t.Error("sources written despite failure")
			}
		})
	}
}

func TestReadSources(t *testing.T) {
	fs := memFs(t, map[string]string{"empty/readme.md": "", "x.wit": apiWIT})

	tests := []struct {
		name   string
		inputs []string
	}{
		{"no inputs", nil},
		{"missing file", []string{"nope.wit"}},
		{"empty directory", []string{"empty"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := readSources(fs, tt.inputs); err == nil {
				t.Errorf("readSources(%v) succeeded", tt.inputs)
			}
		})
	}

	sources, err := readSources(fs, []string{"x.wit"})
	if err != nil || len(sources) != 1 || sources[0].Name != "x.wit" {
		t.Errorf("readSources = %v, %v", sources, err)
	}
}

func TestRecoverDefect(t *testing.T) {
	run := func() (err error) {
		defer recoverDefect(&err)
		errors.Invariant(errors.PhaseMap, "shape for type %d missing", 7)
		return nil
	}
	err := run()
	if !IsDefect(err) {
		t.Fatalf("err = %v, want defect", err)
	}
	var se *StageError
	if !stderrors.As(err, &se) || se.Stage != errors.PhaseMap {
		t.Errorf("err = %v, want map stage", err)
	}
}

func TestFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Component = "app.wasm"
	cfg.Go.Source = false
	opts := FromConfig(cfg)
	if !opts.Compose || !opts.SkipSource || opts.Component != "app.wasm" {
		t.Errorf("opts = %+v", opts)
	}
}
