package stubgen

import (
	"bytes"
	"strconv"
	"strings"

	"golang.org/x/tools/imports"

	"github.com/golemcloud/golem-cloud-cli/canon"
	"github.com/golemcloud/golem-cloud-cli/resolve"
)

// emitter renders one module as a Go source file. All traversal follows
// declaration order, so output is byte-identical for an unchanged graph.
type emitter struct {
	g       *resolve.Graph
	mod     *Module
	names   nameSet
	order   []*canon.Shape
	index   map[*canon.Shape]int
	goNames map[*canon.Shape]string
	proxies map[resolve.TypeID]string
	proxyOf []*canon.Shape
	tuples  int
}

func (gen *Generator) emit(mod *Module) ([]byte, error) {
	e := &emitter{
		g:       gen.g,
		mod:     mod,
		names:   make(nameSet),
		index:   make(map[*canon.Shape]int),
		goNames: make(map[*canon.Shape]string),
		proxies: make(map[resolve.TypeID]string),
	}
	for _, reserved := range []string{"Client", "NewClient", "InterfaceIdentity"} {
		e.names.claim("reserved", reserved, "")
	}
	for _, r := range mod.Resources {
		e.proxyName(r.Handle)
	}
	for _, f := range mod.Funcs {
		for _, p := range f.Params {
			e.collect(p.Shape)
		}
		e.collect(f.Result)
	}

	view := e.file()
	var buf bytes.Buffer
	if err := fileTemplate.Execute(&buf, view); err != nil {
		return nil, err
	}
	return imports.Process(mod.GoPackage+".go", buf.Bytes(), &imports.Options{
		FormatOnly: true,
		Comments:   true,
		TabIndent:  true,
		TabWidth:   8,
	})
}

func (e *emitter) collect(s *canon.Shape) {
	if s == nil || s.Kind.Primitive() {
		return
	}
	if _, ok := e.index[s]; ok {
		return
	}
	e.index[s] = len(e.order)
	e.order = append(e.order, s)

	switch s.Kind {
	case canon.KindRecord, canon.KindVariant, canon.KindEnum, canon.KindFlags:
		e.typeName(s)
	case canon.KindTuple:
		e.goNames[s] = e.names.claim("tuple"+strconv.Itoa(e.tuples), "Tuple"+strconv.Itoa(e.tuples), "")
		e.tuples++
	case canon.KindOwn, canon.KindBorrow:
		e.proxyName(s)
	}

	switch s.Kind {
	case canon.KindList, canon.KindOption:
		e.collect(s.Elem)
	case canon.KindResult:
		e.collect(s.Ok)
		e.collect(s.Err)
	case canon.KindTuple:
		for _, el := range s.Elems {
			e.collect(el)
		}
	case canon.KindRecord:
		for _, f := range s.Fields {
			e.collect(f.Shape)
		}
	case canon.KindVariant:
		for _, c := range s.Cases {
			e.collect(c.Shape)
		}
	}
}

// owner returns the exported name of the interface declaring id, used to
// disambiguate types of the same name from different interfaces.
func (e *emitter) owner(id resolve.TypeID) string {
	if def := e.g.Type(id); def.Owner != nil {
		return exportedName(def.Owner.Name)
	}
	return "World"
}

func (e *emitter) typeName(s *canon.Shape) string {
	if n, ok := e.goNames[s]; ok {
		return n
	}
	n := e.names.claim("t"+strconv.Itoa(int(s.ID)), exportedName(s.Name), e.owner(s.ID))
	e.goNames[s] = n
	return n
}

func (e *emitter) proxyName(s *canon.Shape) string {
	if n, ok := e.proxies[s.ID]; ok {
		return n
	}
	n := e.names.claim("r"+strconv.Itoa(int(s.ID)), exportedName(s.Name), e.owner(s.ID))
	e.proxies[s.ID] = n
	e.proxyOf = append(e.proxyOf, s)
	return n
}

var goPrimitives = [...]string{
	canon.KindBool:   "bool",
	canon.KindS8:     "int8",
	canon.KindS16:    "int16",
	canon.KindS32:    "int32",
	canon.KindS64:    "int64",
	canon.KindU8:     "uint8",
	canon.KindU16:    "uint16",
	canon.KindU32:    "uint32",
	canon.KindU64:    "uint64",
	canon.KindF32:    "float32",
	canon.KindF64:    "float64",
	canon.KindChar:   "rune",
	canon.KindString: "string",
}

// goType renders the Go type used for s in generated signatures. A nil
// shape is the unit type.
func (e *emitter) goType(s *canon.Shape) string {
	if s == nil {
		return "struct{}"
	}
	if s.Kind.Primitive() {
		return goPrimitives[s.Kind]
	}
	switch s.Kind {
	case canon.KindList:
		if s.Elem.Kind == canon.KindU8 {
			return "[]byte"
		}
		return "[]" + e.goType(s.Elem)
	case canon.KindOption:
		return "*" + e.goType(s.Elem)
	case canon.KindResult:
		return "rpc.Result[" + e.goType(s.Ok) + ", " + e.goType(s.Err) + "]"
	case canon.KindOwn, canon.KindBorrow:
		return "*" + e.proxies[s.ID]
	}
	return e.goNames[s]
}

// suffix names the lower/lift helpers of a composite shape.
func (e *emitter) suffix(s *canon.Shape) string {
	if n, ok := e.goNames[s]; ok {
		return n
	}
	return strconv.Itoa(e.index[s])
}

var lowerFuncs = [...]string{
	canon.KindBool:   "canon.Bool",
	canon.KindS8:     "canon.S8",
	canon.KindS16:    "canon.S16",
	canon.KindS32:    "canon.S32",
	canon.KindS64:    "canon.S64",
	canon.KindU8:     "canon.U8",
	canon.KindU16:    "canon.U16",
	canon.KindU32:    "canon.U32",
	canon.KindU64:    "canon.U64",
	canon.KindF32:    "canon.F32",
	canon.KindF64:    "canon.F64",
	canon.KindChar:   "canon.Char",
	canon.KindString: "canon.String",
}

// lowerExpr converts the Go expression x of shape s to a canon.Value.
func (e *emitter) lowerExpr(s *canon.Shape, x string) string {
	if s.Kind.Primitive() {
		return lowerFuncs[s.Kind] + "(" + x + ")"
	}
	switch s.Kind {
	case canon.KindEnum:
		return "canon.Enum(uint32(" + x + "))"
	case canon.KindFlags:
		return "canon.Flags(uint64(" + x + "))"
	case canon.KindOwn, canon.KindBorrow:
		if strings.HasPrefix(x, "*") {
			x = "(" + x + ")"
		}
		if s.Kind == canon.KindOwn {
			return "canon.Own(" + x + ".handle)"
		}
		return "canon.Borrow(" + x + ".handle)"
	}
	return "lower" + e.suffix(s) + "(" + x + ")"
}

// liftExpr converts the canon.Value expression v of shape s to Go. cl is
// the client expression in scope.
func (e *emitter) liftExpr(s *canon.Shape, v, cl string) string {
	switch s.Kind {
	case canon.KindBool:
		return v + ".Bool()"
	case canon.KindS8, canon.KindS16, canon.KindS32:
		return goPrimitives[s.Kind] + "(" + v + ".Int())"
	case canon.KindS64:
		return v + ".Int()"
	case canon.KindU8, canon.KindU16, canon.KindU32:
		return goPrimitives[s.Kind] + "(" + v + ".Uint())"
	case canon.KindU64:
		return v + ".Uint()"
	case canon.KindF32:
		return v + ".Float32()"
	case canon.KindF64:
		return v + ".Float64()"
	case canon.KindChar:
		return v + ".Char()"
	case canon.KindString:
		return v + ".Str()"
	case canon.KindEnum:
		return e.goNames[s] + "(" + v + ".Case())"
	case canon.KindFlags:
		return e.goNames[s] + "(" + v + ".Uint())"
	case canon.KindOwn, canon.KindBorrow:
		return "&" + e.proxies[s.ID] + "{c: " + cl + ", handle: " + v + ".Handle()}"
	}
	return cl + ".lift" + e.suffix(s) + "(" + v + ")"
}

// shapeRef refers to s from generated code; table names the shape slice.
func (e *emitter) shapeRef(s *canon.Shape, table string) string {
	if s == nil {
		return "nil"
	}
	if s.Kind.Primitive() {
		return "canon.Primitive(" + kindConst(s.Kind) + ")"
	}
	return table + "[" + strconv.Itoa(e.index[s]) + "]"
}

func kindConst(k canon.Kind) string {
	return "canon.Kind" + exportedName(k.String())
}

// shapeLiteral renders s as a canon.Shape composite literal whose children
// point into the table being built.
func (e *emitter) shapeLiteral(s *canon.Shape) string {
	var b strings.Builder
	b.WriteString("canon.Shape{Kind: ")
	b.WriteString(kindConst(s.Kind))
	if s.Name != "" {
		b.WriteString(", Name: " + strconv.Quote(s.Name))
	}
	b.WriteString(", ID: " + strconv.Itoa(int(s.ID)))
	ref := func(c *canon.Shape) string { return e.shapeRef(c, "s") }
	switch s.Kind {
	case canon.KindList, canon.KindOption:
		b.WriteString(", Elem: " + ref(s.Elem))
	case canon.KindResult:
		if s.Ok != nil {
			b.WriteString(", Ok: " + ref(s.Ok))
		}
		if s.Err != nil {
			b.WriteString(", Err: " + ref(s.Err))
		}
	case canon.KindTuple:
		parts := make([]string, len(s.Elems))
		for i, el := range s.Elems {
			parts[i] = ref(el)
		}
		b.WriteString(", Elems: []*canon.Shape{" + strings.Join(parts, ", ") + "}")
	case canon.KindRecord:
		parts := make([]string, len(s.Fields))
		for i, f := range s.Fields {
			parts[i] = "{Name: " + strconv.Quote(f.Name) + ", Shape: " + ref(f.Shape) + "}"
		}
		b.WriteString(", Fields: []canon.ShapeField{" + strings.Join(parts, ", ") + "}")
	case canon.KindVariant:
		parts := make([]string, len(s.Cases))
		for i, c := range s.Cases {
			parts[i] = "{Name: " + strconv.Quote(c.Name)
			if c.Shape != nil {
				parts[i] += ", Shape: " + ref(c.Shape)
			}
			parts[i] += "}"
		}
		b.WriteString(", Cases: []canon.ShapeCase{" + strings.Join(parts, ", ") + "}")
	case canon.KindEnum, canon.KindFlags:
		parts := make([]string, len(s.Names))
		for i, n := range s.Names {
			parts[i] = strconv.Quote(n)
		}
		b.WriteString(", Names: []string{" + strings.Join(parts, ", ") + "}")
	}
	b.WriteByte('}')
	return b.String()
}

type fileView struct {
	Package  string
	Identity string
	Calls    bool
	Client   []funcView
	Proxies  []proxyView
	Types    []declView
	Shapes   []shapeView
}

type funcView struct {
	Doc      string
	Recv     string
	Name     string
	Params   string
	Result   string
	Client   string
	Identity string
	Shape    string
	Args     string
	Mode     string
	Lift     string
}

type proxyView struct {
	Name    string
	WIT     string
	Wrap    string
	Methods []funcView
}

type declView struct {
	Kind       string
	Name       string
	WIT        string
	Suffix     string
	GoType     string
	TagType    string
	HasPayload bool
	Fields     []fieldView
	Cases      []caseView

	ElemLower, ElemLift string
	OkLower, OkLift     string
	ErrLower, ErrLift   string
	HasOk, HasErr       bool
}

type fieldView struct {
	Name  string
	Type  string
	Lower string
	Lift  string
}

type caseView struct {
	Index      int
	Const      string
	Field      string
	Type       string
	HasPayload bool
	Lower      string
	Lift       string
}

type shapeView struct {
	Index   int
	Literal string
}

func (e *emitter) file() *fileView {
	v := &fileView{Package: e.mod.GoPackage, Identity: e.mod.Interface, Calls: len(e.mod.Funcs) > 0}

	clientNames := make(nameSet)
	proxyNames := make(map[string]nameSet)
	byResource := make(map[string]*proxyView)
	for _, r := range e.mod.Resources {
		name := e.proxies[r.Handle.ID]
		proxyNames[r.Name] = nameSet{"Handle": "reserved", "Drop": "reserved"}
		byResource[r.Name] = &proxyView{Name: name, WIT: r.Name}
	}

	for _, f := range e.mod.Funcs {
		fv := e.funcView(f)
		switch f.Kind {
		case FuncMethod, FuncDrop:
			pv := byResource[f.Resource]
			fv.Recv = "p *" + pv.Name
			fv.Client = "p.c"
			fv.Name = "Drop"
			if f.Kind == FuncMethod {
				fv.Name = proxyNames[f.Resource].claim(f.Identity, exportedName(memberName(f.Name)), "Method")
			}
			pv.Methods = append(pv.Methods, fv)
		default:
			fv.Recv = "c *Client"
			fv.Client = "c"
			base := exportedName(memberName(f.Name))
			switch f.Kind {
			case FuncConstructor:
				base = "New" + exportedName(f.Resource)
			case FuncStatic:
				base = exportedName(f.Resource) + base
			}
			fv.Name = clientNames.claim(f.Identity, base, "Func")
			v.Client = append(v.Client, fv)
		}
	}

	// Proxies for resources declared elsewhere carry no methods but are still
	// needed to hold handles passed through this interface.
	for _, s := range e.proxyOf {
		name := e.proxies[s.ID]
		pv, ok := byResource[s.Name]
		if !ok || pv.Name != name {
			pv = &proxyView{Name: name, WIT: s.Name}
		}
		pv.Wrap = clientNames.claim("wrap."+name, "Wrap"+name, "Handle")
		v.Proxies = append(v.Proxies, *pv)
	}

	for _, s := range e.order {
		if d, ok := e.declView(s); ok {
			v.Types = append(v.Types, d)
		}
		v.Shapes = append(v.Shapes, shapeView{Index: e.index[s], Literal: e.shapeLiteral(s)})
	}
	return v
}

func (e *emitter) funcView(f *Func) funcView {
	params := f.Params
	var args []string
	if f.Kind == FuncMethod {
		args = append(args, "canon.Borrow(p.handle)")
		params = params[1:]
	}
	if f.Kind == FuncDrop {
		args = append(args, "canon.Own(p.handle)")
		params = nil
	}

	var decl strings.Builder
	wit := make([]string, 0, len(f.Params))
	for _, p := range f.Params {
		wit = append(wit, p.Name+": "+p.Shape.String())
	}
	for _, p := range params {
		name := localName(p.Name)
		decl.WriteString(", " + name + " " + e.goType(p.Shape))
		args = append(args, e.lowerExpr(p.Shape, name))
	}

	sig := "func(" + strings.Join(wit, ", ") + ")"
	if f.Result != nil {
		sig += " -> " + f.Result.String()
	}
	fv := funcView{
		Doc:      f.Identity + ": " + sig,
		Params:   decl.String(),
		Identity: strconv.Quote(f.Identity),
		Shape:    e.shapeRef(f.Result, "shapes"),
		Args:     strings.Join(args, ", "),
	}
	switch {
	case f.Result == nil:
		fv.Mode = "unit"
	case f.ErrorChannel:
		fv.Mode = "try"
	default:
		fv.Mode = "trap"
	}
	if f.Result != nil {
		fv.Result = e.goType(f.Result)
		cl := "c"
		if f.Kind == FuncMethod {
			cl = "p.c"
		}
		fv.Lift = e.liftExpr(f.Result, "r", cl)
	}
	return fv
}

// declView describes the Go declarations and helpers for a composite shape.
// Handles need no helper.
func (e *emitter) declView(s *canon.Shape) (declView, bool) {
	d := declView{
		Kind:   s.Kind.String(),
		Name:   e.goNames[s],
		WIT:    s.String(),
		Suffix: e.suffix(s),
		GoType: e.goType(s),
	}
	switch s.Kind {
	case canon.KindOwn, canon.KindBorrow:
		return d, false
	case canon.KindRecord:
		for i, f := range s.Fields {
			name := exportedName(f.Name)
			d.Fields = append(d.Fields, fieldView{
				Name:  name,
				Type:  e.goType(f.Shape),
				Lower: e.lowerExpr(f.Shape, "v."+name),
				Lift:  e.liftExpr(f.Shape, "e["+strconv.Itoa(i)+"]", "c"),
			})
		}
	case canon.KindTuple:
		d.WIT = s.String()
		for i, el := range s.Elems {
			name := "F" + strconv.Itoa(i)
			d.Fields = append(d.Fields, fieldView{
				Name:  name,
				Type:  e.goType(el),
				Lower: e.lowerExpr(el, "v."+name),
				Lift:  e.liftExpr(el, "e["+strconv.Itoa(i)+"]", "c"),
			})
		}
	case canon.KindVariant:
		d.TagType = e.names.claim("tag"+strconv.Itoa(int(s.ID)), d.Name+"Tag", "Kind")
		for i, c := range s.Cases {
			cv := caseView{
				Index: i,
				Const: e.names.claim("case"+strconv.Itoa(int(s.ID))+"."+c.Name, d.Name+exportedName(c.Name), "Case"),
				Field: exportedName(c.Name),
			}
			if cv.Field == "Tag" {
				cv.Field = "TagValue"
			}
			if c.Shape != nil {
				cv.HasPayload = true
				d.HasPayload = true
				cv.Type = e.goType(c.Shape)
				cv.Lower = e.lowerExpr(c.Shape, "*v."+cv.Field)
				cv.Lift = e.liftExpr(c.Shape, "p", "c")
			}
			d.Cases = append(d.Cases, cv)
		}
	case canon.KindEnum, canon.KindFlags:
		for i, n := range s.Names {
			d.Cases = append(d.Cases, caseView{
				Index: i,
				Const: e.names.claim("case"+strconv.Itoa(int(s.ID))+"."+n, d.Name+exportedName(n), "Case"),
			})
		}
	case canon.KindList:
		d.ElemLower = e.lowerExpr(s.Elem, "x")
		d.ElemLift = e.liftExpr(s.Elem, "x", "c")
	case canon.KindOption:
		d.ElemLower = e.lowerExpr(s.Elem, "*v")
		d.ElemLift = e.liftExpr(s.Elem, "p", "c")
	case canon.KindResult:
		if s.Ok != nil {
			d.HasOk = true
			d.OkLower = e.lowerExpr(s.Ok, "v.OK")
			d.OkLift = e.liftExpr(s.Ok, "p", "c")
		}
		if s.Err != nil {
			d.HasErr = true
			d.ErrLower = e.lowerExpr(s.Err, "v.Err")
			d.ErrLift = e.liftExpr(s.Err, "p", "c")
		}
	}
	return d, true
}
