package parser

import (
	"github.com/golemcloud/golem-cloud-cli/ast"
	"github.com/golemcloud/golem-cloud-cli/parser/internal/token"
)

var declKeywords = map[string]ast.DeclKind{
	"type":     ast.DeclAlias,
	"record":   ast.DeclRecord,
	"variant":  ast.DeclVariant,
	"enum":     ast.DeclEnum,
	"flags":    ast.DeclFlags,
	"resource": ast.DeclResource,
}

func (p *parser) atTypeDecl() bool {
	t := p.peek()
	if t.Type != token.Ident || t.Escaped {
		return false
	}
	_, ok := declKeywords[t.Value]
	return ok
}

func (p *parser) parseTypeDecl() (*ast.TypeDecl, error) {
	kw := p.next()
	kind := declKeywords[kw.Value]
	name, pos, err := p.ident(kind.String() + " name")
	if err != nil {
		return nil, err
	}
	decl := &ast.TypeDecl{Pos: pos, Name: name, Kind: kind}
	inner := newScope(kind.String() + " " + quote(name))

	switch kind {
	case ast.DeclAlias:
		if _, err := p.expect(token.Equals); err != nil {
			return nil, err
		}
		if decl.Alias, err = p.parseType(); err != nil {
			return nil, err
		}
		if _, err := p.expect(token.Semicolon); err != nil {
			return nil, err
		}
		return decl, nil

	case ast.DeclResource:
		if p.accept(token.Semicolon) {
			return decl, nil
		}
		if err := p.parseResourceBody(decl, inner); err != nil {
			return nil, err
		}
		return decl, nil
	}

	if _, err := p.expect(token.LBrace); err != nil {
		return nil, err
	}
	for !p.at(token.RBrace) {
		if err := p.skipAttributes(); err != nil {
			return nil, err
		}
		name, pos, err := p.ident(memberName(kind))
		if err != nil {
			return nil, err
		}
		if err := inner.add(p, pos, memberName(kind), name); err != nil {
			return nil, err
		}
		switch kind {
		case ast.DeclRecord:
			if _, err := p.expect(token.Colon); err != nil {
				return nil, err
			}
			typ, err := p.parseType()
			if err != nil {
				return nil, err
			}
			decl.Fields = append(decl.Fields, &ast.Field{Pos: pos, Name: name, Type: typ})
		case ast.DeclVariant:
			c := &ast.Case{Pos: pos, Name: name}
			if p.accept(token.LParen) {
				if c.Type, err = p.parseType(); err != nil {
					return nil, err
				}
				if _, err := p.expect(token.RParen); err != nil {
					return nil, err
				}
			}
			decl.Cases = append(decl.Cases, c)
		default:
			decl.Names = append(decl.Names, &ast.Ident{Pos: pos, Name: name})
			if kind == ast.DeclFlags && len(decl.Names) > maxFlags {
				return nil, p.detailf(pos, "flags %q has more than %d members", decl.Name, maxFlags)
			}
		}
		if !p.accept(token.Comma) {
			break
		}
	}
	if _, err := p.expect(token.RBrace); err != nil {
		return nil, err
	}
	if kind != ast.DeclFlags && kind != ast.DeclRecord && len(decl.Cases)+len(decl.Names) == 0 {
		return nil, p.detailf(decl.Pos, "%s %q must have at least one case", kind, decl.Name)
	}
	return decl, nil
}

func memberName(kind ast.DeclKind) string {
	switch kind {
	case ast.DeclRecord:
		return "field"
	case ast.DeclFlags:
		return "flag"
	}
	return "case"
}

func (p *parser) parseResourceBody(decl *ast.TypeDecl, sc *scope) error {
	if _, err := p.expect(token.LBrace); err != nil {
		return err
	}
	for !p.at(token.RBrace) {
		if err := p.skipAttributes(); err != nil {
			return err
		}
		if p.at(token.RBrace) {
			continue
		}
		var fn *ast.Func
		var err error
		if p.atKeyword("constructor") {
			start := p.next()
			fn, err = p.parseFuncParams("constructor", posOf(start), ast.FuncConstructor)
			if err != nil {
				return err
			}
			if p.at(token.Arrow) {
				return p.errorf(p.peek(), "';'")
			}
		} else {
			name, pos, err := p.ident("method name")
			if err != nil {
				return err
			}
			if _, err := p.expect(token.Colon); err != nil {
				return err
			}
			kind := ast.FuncMethod
			if p.atKeyword("static") {
				p.next()
				kind = ast.FuncStatic
			}
			if err := p.expectKeyword("func"); err != nil {
				return err
			}
			if fn, err = p.parseFuncSig(name, pos, kind); err != nil {
				return err
			}
		}
		if err := sc.add(p, fn.Pos, "method", fn.Name); err != nil {
			return err
		}
		if _, err := p.expect(token.Semicolon); err != nil {
			return err
		}
		decl.Methods = append(decl.Methods, fn)
	}
	p.next()
	return nil
}

// parseNamedFunc reads "name: func(params) [-> T];".
func (p *parser) parseNamedFunc() (*ast.Func, error) {
	name, pos, err := p.ident("function name")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.Colon); err != nil {
		return nil, err
	}
	if err := p.expectKeyword("func"); err != nil {
		return nil, err
	}
	fn, err := p.parseFuncSig(name, pos, ast.FuncFree)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.Semicolon); err != nil {
		return nil, err
	}
	return fn, nil
}

func (p *parser) parseFuncSig(name string, pos ast.Pos, kind ast.FuncKind) (*ast.Func, error) {
	fn, err := p.parseFuncParams(name, pos, kind)
	if err != nil {
		return nil, err
	}
	if p.accept(token.Arrow) {
		if fn.Result, err = p.parseType(); err != nil {
			return nil, err
		}
	}
	return fn, nil
}

func (p *parser) parseFuncParams(name string, pos ast.Pos, kind ast.FuncKind) (*ast.Func, error) {
	if _, err := p.expect(token.LParen); err != nil {
		return nil, err
	}
	fn := &ast.Func{Pos: pos, Name: name, Kind: kind}
	params := newScope("parameters of " + quote(name))
	for !p.at(token.RParen) {
		pname, ppos, err := p.ident("parameter name")
		if err != nil {
			return nil, err
		}
		if err := params.add(p, ppos, "parameter", pname); err != nil {
			return nil, err
		}
		if _, err := p.expect(token.Colon); err != nil {
			return nil, err
		}
		typ, err := p.parseType()
		if err != nil {
			return nil, err
		}
		fn.Params = append(fn.Params, &ast.Param{Pos: ppos, Name: pname, Type: typ})
		if !p.accept(token.Comma) {
			break
		}
	}
	if _, err := p.expect(token.RParen); err != nil {
		return nil, err
	}
	return fn, nil
}

var primitives = map[string]ast.TypeKind{
	"bool":    ast.Bool,
	"s8":      ast.S8,
	"s16":     ast.S16,
	"s32":     ast.S32,
	"s64":     ast.S64,
	"u8":      ast.U8,
	"u16":     ast.U16,
	"u32":     ast.U32,
	"u64":     ast.U64,
	"f32":     ast.F32,
	"f64":     ast.F64,
	"float32": ast.F32,
	"float64": ast.F64,
	"char":    ast.Char,
	"string":  ast.String,
}

func (p *parser) parseType() (*ast.Type, error) {
	t := p.peek()
	if t.Type != token.Ident {
		return nil, p.errorf(t, "type")
	}
	pos := posOf(t)
	if t.Escaped {
		p.next()
		return &ast.Type{Pos: pos, Kind: ast.Named, Name: t.Value}, nil
	}
	if kind, ok := primitives[t.Value]; ok {
		p.next()
		return &ast.Type{Pos: pos, Kind: kind}, nil
	}

	switch t.Value {
	case "list", "option":
		p.next()
		elem, err := p.parseTypeArg()
		if err != nil {
			return nil, err
		}
		kind := ast.List
		if t.Value == "option" {
			kind = ast.Option
		}
		return &ast.Type{Pos: pos, Kind: kind, Elem: elem}, nil

	case "result":
		p.next()
		typ := &ast.Type{Pos: pos, Kind: ast.Result}
		if !p.accept(token.LAngle) {
			return typ, nil
		}
		if p.accept(token.Underscore) {
			if _, err := p.expect(token.Comma); err != nil {
				return nil, err
			}
			errType, err := p.parseType()
			if err != nil {
				return nil, err
			}
			typ.Err = errType
		} else {
			ok, err := p.parseType()
			if err != nil {
				return nil, err
			}
			typ.Ok = ok
			if p.accept(token.Comma) {
				if typ.Err, err = p.parseType(); err != nil {
					return nil, err
				}
			}
		}
		if _, err := p.expect(token.RAngle); err != nil {
			return nil, err
		}
		return typ, nil

	case "tuple":
		p.next()
		if _, err := p.expect(token.LAngle); err != nil {
			return nil, err
		}
		typ := &ast.Type{Pos: pos, Kind: ast.Tuple}
		for !p.at(token.RAngle) {
			elem, err := p.parseType()
			if err != nil {
				return nil, err
			}
			typ.Elems = append(typ.Elems, elem)
			if !p.accept(token.Comma) {
				break
			}
		}
		if _, err := p.expect(token.RAngle); err != nil {
			return nil, err
		}
		if len(typ.Elems) == 0 {
			return nil, p.detailf(pos, "tuple must have at least one element")
		}
		return typ, nil

	case "own", "borrow":
		p.next()
		if _, err := p.expect(token.LAngle); err != nil {
			return nil, err
		}
		name, _, err := p.ident("resource name")
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.RAngle); err != nil {
			return nil, err
		}
		kind := ast.Own
		if t.Value == "borrow" {
			kind = ast.Borrow
		}
		return &ast.Type{Pos: pos, Kind: kind, Name: name}, nil
	}

	name, _, err := p.ident("type")
	if err != nil {
		return nil, err
	}
	return &ast.Type{Pos: pos, Kind: ast.Named, Name: name}, nil
}

func (p *parser) parseTypeArg() (*ast.Type, error) {
	if _, err := p.expect(token.LAngle); err != nil {
		return nil, err
	}
	elem, err := p.parseType()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.RAngle); err != nil {
		return nil, err
	}
	return elem, nil
}
