// Package parser reads WIT interface definitions into syntax trees.
//
// ParseFile is a pure function of its input. ParseFiles parses independent
// documents concurrently and reports the first failure by input order, so the
// diagnostic does not depend on scheduling.
package parser

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/golemcloud/golem-cloud-cli/ast"
	"github.com/golemcloud/golem-cloud-cli/parser/internal/token"
)

// Source is one named WIT input.
type Source struct {
	Name string
	Data []byte
}

// ParseFile parses a single WIT document. An empty file yields an empty
// document. Failures are *errors.ParseError.
func ParseFile(name string, src []byte) (*ast.Document, error) {
	tokens := token.Tokenize(string(src))
	return newParser(name, tokens).parseDocument()
}

// ParseFiles parses all sources in parallel. Documents are returned in input
// order.
func ParseFiles(ctx context.Context, sources []Source) ([]*ast.Document, error) {
	docs := make([]*ast.Document, len(sources))
	errs := make([]error, len(sources))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, src := range sources {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return nil
			}
			docs[i], errs[i] = ParseFile(src.Name, src.Data)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return docs, nil
}
