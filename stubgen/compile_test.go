package stubgen

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"golang.org/x/tools/go/packages"

	witast "github.com/golemcloud/golem-cloud-cli/ast"
	"github.com/golemcloud/golem-cloud-cli/canon"
	"github.com/golemcloud/golem-cloud-cli/parser"
	"github.com/golemcloud/golem-cloud-cli/resolve"
)

const shapesWIT = `
package golem:shapes;

interface types {
	record point { x: s32, y: s32 }
}

interface api {
	use types.{point};
	move: func(p: point) -> point;
}

world app {
	import api;
}
`

// clientTest runs inside the generated api package.
const clientTest = `package api

import (
	"context"
	"testing"

	"github.com/golemcloud/golem-cloud-cli/canon"
	"github.com/golemcloud/golem-cloud-cli/rpc"
	"github.com/golemcloud/golem-cloud-cli/rpc/rpctest"
)

func TestAdd(t *testing.T) {
	rec := rpctest.NewRecorder().Return(InterfaceIdentity+".add", canon.S32(5))
	if got := NewClient(rec).Add(context.Background(), 2, 3); got != 5 {
		t.Errorf("Add(2, 3) = %d, want 5", got)
	}
}

func TestAddTraps(t *testing.T) {
	rec := rpctest.NewRecorder().Fail(InterfaceIdentity+".add", "boom")
	defer func() {
		r := recover()
		trap, ok := r.(*rpc.Trap)
		if !ok {
			t.Fatalf("recovered %T, want *rpc.Trap", r)
		}
		if trap.Failure.Kind != rpc.FailureRemote {
			t.Errorf("Kind = %v, want remote", trap.Failure.Kind)
		}
	}()
	NewClient(rec).Add(context.Background(), 1, 2)
	t.Error("Add returned after a failed invocation")
}

func TestGreet(t *testing.T) {
	rec := rpctest.NewRecorder().Return(InterfaceIdentity+".greet", canon.Ok(canon.String("hi bob")))
	got := NewClient(rec).Greet(context.Background(), "bob")
	if got.IsErr || got.OK != "hi bob" {
		t.Errorf("Greet(bob) = %+v, want ok hi bob", got)
	}
}

func TestGreetMapsFailureToErr(t *testing.T) {
	rec := rpctest.NewRecorder().Fail(InterfaceIdentity+".greet", "boom")
	got := NewClient(rec).Greet(context.Background(), "bob")
	want := "invoke " + InterfaceIdentity + ".greet: boom"
	if !got.IsErr || got.Err != want {
		t.Errorf("Greet(bob) = %+v, want err %q", got, want)
	}
}
`

func generateWorld(t *testing.T, name, src, world string) *Output {
	t.Helper()
	doc, err := parser.ParseFile(name, []byte(src))
	if err != nil {
		t.Fatalf("ParseFile failed: %v", err)
	}
	g, err := resolve.Resolve([]*witast.Document{doc})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	out, err := New(g, canon.NewMapper(g), Options{}).Generate(world)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	return out
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

// stubTree writes generated packages into a directory of this module, so
// they resolve canon and rpc without a module of their own. The leading
// underscore keeps the directory out of ./... patterns.
func stubTree(t *testing.T) (string, []string) {
	t.Helper()
	if testing.Short() {
		t.Skip("runs the go command")
	}
	if _, err := exec.LookPath("go"); err != nil {
		t.Skip("go command not available")
	}
	root, err := filepath.Abs("..")
	if err != nil {
		t.Fatal(err)
	}
	dir, err := os.MkdirTemp(root, "_stubcheck")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	var patterns []string
	for sub, out := range map[string]*Output{
		"it":     generate(t, Options{}),
		"shapes": generateWorld(t, "shapes.wit", shapesWIT, "app"),
	} {
		for _, mod := range out.Modules {
			rel := filepath.Join(sub, mod.GoPackage)
			writeFile(t, filepath.Join(dir, rel, mod.GoPackage+".go"), mod.Source)
			patterns = append(patterns, "./"+filepath.ToSlash(rel))
		}
	}
	writeFile(t, filepath.Join(dir, "it", "api", "api_test.go"), []byte(clientTest))
	return dir, patterns
}

func TestGeneratedSourceTypeChecks(t *testing.T) {
	dir, patterns := stubTree(t)
	cfg := &packages.Config{
		Mode:  packages.NeedName | packages.NeedImports | packages.NeedTypes | packages.NeedSyntax | packages.NeedTypesInfo,
		Dir:   dir,
		Tests: true,
	}
	pkgs, err := packages.Load(cfg, patterns...)
	if err != nil {
		t.Fatalf("packages.Load: %v", err)
	}
	if len(pkgs) < len(patterns) {
		t.Errorf("loaded %d packages, want at least %d", len(pkgs), len(patterns))
	}
	for _, pkg := range pkgs {
		for _, e := range pkg.Errors {
			t.Errorf("%s: %v", pkg.PkgPath, e)
		}
		if pkg.Types == nil {
			t.Errorf("%s: no type information", pkg.PkgPath)
		}
	}
}

func TestGeneratedClientRuns(t *testing.T) {
	dir, _ := stubTree(t)
	cmd := exec.Command("go", "test", "-count=1", "./it/api")
	cmd.Dir = dir
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Errorf("go test of generated client: %v\n%s", err, out)
	}
}
