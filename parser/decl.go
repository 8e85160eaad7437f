package parser

import (
	"github.com/golemcloud/golem-cloud-cli/ast"
	"github.com/golemcloud/golem-cloud-cli/parser/internal/token"
)

func (p *parser) parseDocument() (*ast.Document, error) {
	doc := &ast.Document{File: p.file}
	top := newScope("package")

	if err := p.skipAttributes(); err != nil {
		return nil, err
	}
	if p.atKeyword("package") {
		pkg, err := p.parsePackageName()
		if err != nil {
			return nil, err
		}
		doc.Package = pkg
	}

	for !p.at(token.EOF) {
		if err := p.skipAttributes(); err != nil {
			return nil, err
		}
		switch {
		case p.atKeyword("use"):
			u, err := p.parseTopUse()
			if err != nil {
				return nil, err
			}
			if err := top.add(p, u.Pos, "name", topUseName(u)); err != nil {
				return nil, err
			}
			doc.Uses = append(doc.Uses, u)
		case p.atKeyword("interface"):
			p.next()
			name, pos, err := p.ident("interface name")
			if err != nil {
				return nil, err
			}
			if err := top.add(p, pos, "interface", name); err != nil {
				return nil, err
			}
			iface, err := p.parseInterfaceBody(name, pos)
			if err != nil {
				return nil, err
			}
			doc.Interfaces = append(doc.Interfaces, iface)
		case p.atKeyword("world"):
			p.next()
			name, pos, err := p.ident("world name")
			if err != nil {
				return nil, err
			}
			if err := top.add(p, pos, "world", name); err != nil {
				return nil, err
			}
			w, err := p.parseWorldBody(name, pos)
			if err != nil {
				return nil, err
			}
			doc.Worlds = append(doc.Worlds, w)
		default:
			return nil, p.errorf(p.peek(), "'interface', 'world' or 'use'")
		}
	}
	return doc, nil
}

func topUseName(u *ast.TopUse) string {
	if u.As != "" {
		return u.As
	}
	return u.Path.Name
}

func (p *parser) parsePackageName() (*ast.PackageName, error) {
	start := p.next()
	ns, _, err := p.ident("package namespace")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.Colon); err != nil {
		return nil, err
	}
	name, _, err := p.ident("package name")
	if err != nil {
		return nil, err
	}
	pkg := &ast.PackageName{Pos: posOf(start), Namespace: ns, Name: name}
	if p.accept(token.At) {
		v, err := p.expect(token.Version)
		if err != nil {
			return nil, err
		}
		pkg.Version = v.Value
	}
	if _, err := p.expect(token.Semicolon); err != nil {
		return nil, err
	}
	return pkg, nil
}

// parsePath reads "name" or "ns:pkg/name[@version]".
func (p *parser) parsePath(what string) (ast.Path, error) {
	first := p.peek()
	name, _, err := p.ident(what)
	if err != nil {
		return ast.Path{}, err
	}
	path := ast.Path{Pos: posOf(first), Name: name}
	if !p.accept(token.Colon) {
		return path, nil
	}
	pkg, _, err := p.ident("package name")
	if err != nil {
		return ast.Path{}, err
	}
	if _, err := p.expect(token.Slash); err != nil {
		return ast.Path{}, err
	}
	item, _, err := p.ident(what)
	if err != nil {
		return ast.Path{}, err
	}
	path.Namespace, path.Package, path.Name = name, pkg, item
	if p.accept(token.At) {
		v, err := p.expect(token.Version)
		if err != nil {
			return ast.Path{}, err
		}
		path.Version = v.Value
	}
	return path, nil
}

func (p *parser) parseTopUse() (*ast.TopUse, error) {
	start := p.next()
	path, err := p.parsePath("interface path")
	if err != nil {
		return nil, err
	}
	u := &ast.TopUse{Pos: posOf(start), Path: path}
	if p.atKeyword("as") {
		p.next()
		if u.As, _, err = p.ident("alias"); err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(token.Semicolon); err != nil {
		return nil, err
	}
	return u, nil
}

// parseUse reads "use path.{a, b as c};" inside an interface or world.
func (p *parser) parseUse(sc *scope) (*ast.Use, error) {
	start := p.next()
	path, err := p.parsePath("interface path")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.Period); err != nil {
		return nil, err
	}
	if _, err := p.expect(token.LBrace); err != nil {
		return nil, err
	}
	u := &ast.Use{Pos: posOf(start), Path: path}
	for !p.at(token.RBrace) {
		name, pos, err := p.ident("type name")
		if err != nil {
			return nil, err
		}
		n := ast.UseName{Pos: pos, Name: name}
		if p.atKeyword("as") {
			p.next()
			if n.As, _, err = p.ident("alias"); err != nil {
				return nil, err
			}
		}
		if err := sc.add(p, pos, "type", n.Local()); err != nil {
			return nil, err
		}
		u.Names = append(u.Names, n)
		if !p.accept(token.Comma) {
			break
		}
	}
	if _, err := p.expect(token.RBrace); err != nil {
		return nil, err
	}
	if len(u.Names) == 0 {
		return nil, p.errorf(p.tokens[p.pos-1], "type name")
	}
	if _, err := p.expect(token.Semicolon); err != nil {
		return nil, err
	}
	return u, nil
}

func (p *parser) parseInterfaceBody(name string, pos ast.Pos) (*ast.Interface, error) {
	if _, err := p.expect(token.LBrace); err != nil {
		return nil, err
	}
	iface := &ast.Interface{Pos: pos, Name: name}
	sc := newScope("interface " + quote(name))

	for !p.at(token.RBrace) {
		if err := p.skipAttributes(); err != nil {
			return nil, err
		}
		switch {
		case p.at(token.RBrace):
			continue
		case p.atKeyword("use"):
			u, err := p.parseUse(sc)
			if err != nil {
				return nil, err
			}
			iface.Uses = append(iface.Uses, u)
		case p.atTypeDecl():
			decl, err := p.parseTypeDecl()
			if err != nil {
				return nil, err
			}
			if err := sc.add(p, decl.Pos, "type", decl.Name); err != nil {
				return nil, err
			}
			iface.Types = append(iface.Types, decl)
		case p.at(token.Ident):
			fn, err := p.parseNamedFunc()
			if err != nil {
				return nil, err
			}
			if err := sc.add(p, fn.Pos, "function", fn.Name); err != nil {
				return nil, err
			}
			iface.Funcs = append(iface.Funcs, fn)
		default:
			return nil, p.errorf(p.peek(), "interface item")
		}
	}
	p.next()
	return iface, nil
}

func (p *parser) parseWorldBody(name string, pos ast.Pos) (*ast.World, error) {
	if _, err := p.expect(token.LBrace); err != nil {
		return nil, err
	}
	w := &ast.World{Pos: pos, Name: name}
	types := newScope("world " + quote(name))
	imports := newScope("imports of world " + quote(name))
	exports := newScope("exports of world " + quote(name))

	for !p.at(token.RBrace) {
		if err := p.skipAttributes(); err != nil {
			return nil, err
		}
		switch {
		case p.at(token.RBrace):
			continue
		case p.atKeyword("use"):
			u, err := p.parseUse(types)
			if err != nil {
				return nil, err
			}
			w.Uses = append(w.Uses, u)
		case p.atTypeDecl():
			decl, err := p.parseTypeDecl()
			if err != nil {
				return nil, err
			}
			if err := types.add(p, decl.Pos, "type", decl.Name); err != nil {
				return nil, err
			}
			w.Types = append(w.Types, decl)
		case p.atKeyword("import"), p.atKeyword("export"):
			isImport := p.atKeyword("import")
			p.next()
			item, err := p.parseWorldItem()
			if err != nil {
				return nil, err
			}
			if isImport {
				if err := imports.add(p, item.Pos, "import", item.Name()); err != nil {
					return nil, err
				}
				w.Imports = append(w.Imports, item)
			} else {
				if err := exports.add(p, item.Pos, "export", item.Name()); err != nil {
					return nil, err
				}
				w.Exports = append(w.Exports, item)
			}
		case p.atKeyword("include"):
			start := p.next()
			path, err := p.parsePath("world path")
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(token.Semicolon); err != nil {
				return nil, err
			}
			w.Includes = append(w.Includes, &ast.Include{Pos: posOf(start), Path: path})
		default:
			return nil, p.errorf(p.peek(), "world item")
		}
	}
	p.next()
	return w, nil
}

func (p *parser) parseWorldItem() (*ast.WorldItem, error) {
	start := p.peek()
	if start.Type == token.Ident && p.peekAt(1).Type == token.Colon {
		after := p.peekAt(2)
		isKw := after.Type == token.Ident && !after.Escaped
		switch {
		case isKw && after.Value == "func":
			name, pos, err := p.ident("function name")
			if err != nil {
				return nil, err
			}
			p.next()
			p.next()
			fn, err := p.parseFuncSig(name, pos, ast.FuncFree)
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(token.Semicolon); err != nil {
				return nil, err
			}
			return &ast.WorldItem{Pos: pos, Kind: ast.ItemFunc, Func: fn}, nil
		case isKw && after.Value == "interface":
			name, pos, err := p.ident("interface name")
			if err != nil {
				return nil, err
			}
			p.next()
			p.next()
			iface, err := p.parseInterfaceBody(name, pos)
			if err != nil {
				return nil, err
			}
			return &ast.WorldItem{Pos: pos, Kind: ast.ItemInterface, Interface: iface}, nil
		}
	}
	path, err := p.parsePath("interface path")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.Semicolon); err != nil {
		return nil, err
	}
	return &ast.WorldItem{Pos: path.Pos, Kind: ast.ItemPath, Path: path}, nil
}

func quote(s string) string { return "\"" + s + "\"" }
