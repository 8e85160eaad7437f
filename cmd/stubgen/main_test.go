package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/golemcloud/golem-cloud-cli/errors"
	"github.com/golemcloud/golem-cloud-cli/pipeline"
)

const shopWIT = `
package golem:shop@1.0.0;

interface cart {
	add-item: func(sku: string, qty: u32) -> result<u32, string>;
	total: func() -> u64;
}

world app {
	import cart;
}
`

func writeWIT(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "shop.wit"), []byte(shopWIT), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestGenerateCmd(t *testing.T) {
	dir := writeWIT(t)
	gen := filepath.Join(t.TempDir(), "gen")

	out, err := runCmd(t, "generate", "-I", dir, "--go-out", gen)
	if err != nil {
		t.Fatalf("generate failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "golem:shop/app@1.0.0") {
		t.Errorf("summary missing world:\n%s", out)
	}

	src, err := os.ReadFile(filepath.Join(gen, "cart", "cart.go"))
	if err != nil {
		t.Fatalf("generated package missing: %v", err)
	}
	if !bytes.Contains(src, []byte("package cart")) {
		t.Errorf("cart.go does not declare package cart")
	}
}

func TestInspectYAML(t *testing.T) {
	dir := writeWIT(t)

	out, err := runCmd(t, "inspect", "-I", dir, "--format", "yaml")
	if err != nil {
		t.Fatalf("inspect failed: %v", err)
	}
	var view worldView
	if err := yaml.Unmarshal([]byte(out), &view); err != nil {
		t.Fatalf("inspect output is not yaml: %v\n%s", err, out)
	}
	if view.World != "golem:shop/app@1.0.0" {
		t.Errorf("World = %q, want golem:shop/app@1.0.0", view.World)
	}
	if len(view.Modules) == 0 || view.Modules[0].GoPackage != "cart" {
		t.Fatalf("Modules = %+v, want cart first", view.Modules)
	}
	funcs := view.Modules[0].Functions
	if len(funcs) != 2 {
		t.Fatalf("len(Functions) = %d, want 2", len(funcs))
	}
	if !funcs[0].ErrorChannel {
		t.Errorf("add-item has no error channel")
	}
	if funcs[1].Result != "u64" {
		t.Errorf("total result = %q, want u64", funcs[1].Result)
	}
}

func TestInspectJSON(t *testing.T) {
	dir := writeWIT(t)

	out, err := runCmd(t, "inspect", "-I", dir, "--format", "json")
	if err != nil {
		t.Fatalf("inspect failed: %v", err)
	}
	var view worldView
	if err := json.Unmarshal([]byte(out), &view); err != nil {
		t.Fatalf("inspect output is not json: %v\n%s", err, out)
	}
	if view.World != "golem:shop/app@1.0.0" {
		t.Errorf("World = %q, want golem:shop/app@1.0.0", view.World)
	}
	if len(view.Modules) == 0 || len(view.Modules[0].Functions) != 2 {
		t.Fatalf("Modules = %+v, want cart with 2 functions", view.Modules)
	}
	if got := view.Modules[0].Functions[1].Result; got != "u64" {
		t.Errorf("total result = %q, want u64", got)
	}
	if !strings.Contains(out, `"go_package": "cart"`) {
		t.Errorf("json output lacks go_package key:\n%s", out)
	}
}

func TestInspectSource(t *testing.T) {
	dir := writeWIT(t)

	out, err := runCmd(t, "inspect", "-I", dir, "--source", "cart")
	if err != nil {
		t.Fatalf("inspect --source failed: %v", err)
	}
	if !strings.Contains(out, "package cart") {
		t.Errorf("source output missing package clause:\n%s", out)
	}

	if _, err := runCmd(t, "inspect", "-I", dir, "--source", "nope"); err == nil {
		t.Error("unknown package succeeded")
	}
}

func TestInspectUnknownFormat(t *testing.T) {
	dir := writeWIT(t)
	if _, err := runCmd(t, "inspect", "-I", dir, "--format", "toml"); err == nil {
		t.Error("unknown format succeeded")
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"ok", nil, exitOK},
		{"failure", errors.InvalidInput(errors.PhaseParse, "bad"), exitFailed},
		{"wrapped failure", fmt.Errorf("run: %w", os.ErrNotExist), exitFailed},
		{"defect", &pipeline.StageError{
			Stage: errors.PhaseMap,
			Err:   &errors.InvariantError{Phase: errors.PhaseMap, Detail: "shape missing"},
		}, exitDefect},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCode(tt.err); got != tt.want {
				t.Errorf("exitCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}
