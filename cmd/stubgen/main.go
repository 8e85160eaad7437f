// Command stubgen generates RPC stubs for the interfaces a WIT world
// imports and composes them into the world's component binary.
package main

import (
	"context"
	"os"

	"github.com/charmbracelet/fang"

	"github.com/golemcloud/golem-cloud-cli/pipeline"
)

// Exit codes.
const (
	exitOK     = 0
	exitFailed = 1
	exitDefect = 2
)

func main() {
	os.Exit(execute(context.Background(), os.Args[1:]))
}

func execute(ctx context.Context, args []string) int {
	root := newRootCmd()
	root.SetArgs(args)
	err := fang.Execute(ctx, root,
		fang.WithVersion(versionString()),
		fang.WithNotifySignal(os.Interrupt),
	)
	return exitCode(err)
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case pipeline.IsDefect(err):
		return exitDefect
	}
	return exitFailed
}
