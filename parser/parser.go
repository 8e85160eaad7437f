package parser

import (
	"fmt"

	"github.com/golemcloud/golem-cloud-cli/ast"
	"github.com/golemcloud/golem-cloud-cli/errors"
	"github.com/golemcloud/golem-cloud-cli/parser/internal/token"
)

// maxFlags is the widest flags type the canonical ABI can carry.
const maxFlags = 64

type parser struct {
	file   string
	tokens []token.Token
	pos    int
}

func newParser(file string, tokens []token.Token) *parser {
	return &parser{file: file, tokens: tokens}
}

func (p *parser) peek() token.Token {
	if p.pos >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[p.pos]
}

func (p *parser) peekAt(n int) token.Token {
	if p.pos+n >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[p.pos+n]
}

func (p *parser) next() token.Token {
	t := p.peek()
	if p.pos < len(p.tokens) && t.Type != token.EOF && t.Type != token.Illegal {
		p.pos++
	}
	return t
}

func (p *parser) at(typ token.Type) bool { return p.peek().Type == typ }

// atKeyword reports whether the next token is the unescaped keyword kw.
func (p *parser) atKeyword(kw string) bool {
	t := p.peek()
	return t.Type == token.Ident && !t.Escaped && t.Value == kw
}

func (p *parser) accept(typ token.Type) bool {
	if p.at(typ) {
		p.next()
		return true
	}
	return false
}

func (p *parser) expect(typ token.Type) (token.Token, error) {
	t := p.peek()
	if t.Type != typ {
		return t, p.errorf(t, typ.String())
	}
	return p.next(), nil
}

func (p *parser) expectKeyword(kw string) error {
	if !p.atKeyword(kw) {
		return p.errorf(p.peek(), fmt.Sprintf("'%s'", kw))
	}
	p.next()
	return nil
}

// ident reads an identifier. Unescaped keywords are rejected.
func (p *parser) ident(what string) (string, ast.Pos, error) {
	t := p.peek()
	if t.Type != token.Ident {
		return "", ast.Pos{}, p.errorf(t, what)
	}
	if !t.Escaped && keywords[t.Value] {
		return "", ast.Pos{}, p.errorf(t, what)
	}
	p.next()
	return t.Value, posOf(t), nil
}

func (p *parser) errorf(found token.Token, expected string) error {
	return &errors.ParseError{
		Pos:      errors.Position{File: p.file, Line: found.Line, Column: found.Column},
		Expected: expected,
		Found:    found.Describe(),
	}
}

func (p *parser) duplicate(pos ast.Pos, what, name, scope string) error {
	return p.detailf(pos, "duplicate %s %q in %s", what, name, scope)
}

func (p *parser) detailf(pos ast.Pos, format string, args ...any) error {
	return &errors.ParseError{
		Pos:    errors.Position{File: p.file, Line: pos.Line, Column: pos.Column},
		Detail: fmt.Sprintf(format, args...),
	}
}

func posOf(t token.Token) ast.Pos { return ast.Pos{Line: t.Line, Column: t.Column} }

var keywords = map[string]bool{
	"package": true, "use": true, "as": true, "interface": true, "world": true,
	"import": true, "export": true, "include": true, "with": true, "type": true,
	"record": true, "variant": true, "enum": true, "flags": true, "resource": true,
	"func": true, "static": true, "constructor": true,
	"bool": true, "s8": true, "s16": true, "s32": true, "s64": true,
	"u8": true, "u16": true, "u32": true, "u64": true,
	"f32": true, "f64": true, "float32": true, "float64": true,
	"char": true, "string": true, "list": true, "option": true, "result": true,
	"tuple": true, "own": true, "borrow": true, "future": true, "stream": true,
}

// scope tracks names declared in one namespace.
type scope struct {
	seen map[string]struct{}
	name string
}

func newScope(name string) *scope {
	return &scope{name: name, seen: make(map[string]struct{})}
}

func (s *scope) add(p *parser, pos ast.Pos, what, name string) error {
	if _, ok := s.seen[name]; ok {
		return p.duplicate(pos, what, name, s.name)
	}
	s.seen[name] = struct{}{}
	return nil
}

// skipAttributes consumes gate annotations such as @since(version = 1.0.0).
func (p *parser) skipAttributes() error {
	for p.at(token.At) && p.peekAt(1).Type == token.Ident {
		p.next()
		p.next()
		if !p.at(token.LParen) {
			continue
		}
		depth := 0
		for {
			t := p.next()
			switch t.Type {
			case token.LParen:
				depth++
			case token.RParen:
				depth--
			case token.EOF, token.Illegal:
				return p.errorf(t, "')'")
			}
			if depth == 0 {
				break
			}
		}
	}
	return nil
}
