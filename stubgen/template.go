package stubgen

import "text/template"

var fileTemplate = template.Must(template.New("file").Parse(`// Code generated by golem-stubgen. DO NOT EDIT.

// Package {{.Package}} holds remote-call stubs for {{.Identity}}.
package {{.Package}}

import (
{{- if .Calls}}
	"context"

	"github.com/golemcloud/golem-cloud-cli/canon"
{{- end}}
	"github.com/golemcloud/golem-cloud-cli/rpc"
)

// InterfaceIdentity is the WIT interface these stubs call into.
const InterfaceIdentity = {{printf "%q" .Identity}}

// Client forwards calls to a remote worker through an rpc.Invoker.
type Client struct {
	inv rpc.Invoker
}

// NewClient returns a client that sends every call through inv.
func NewClient(inv rpc.Invoker) *Client {
	return &Client{inv: inv}
}
{{range .Client}}{{template "func" .}}{{end}}
{{- range .Proxies}}
// {{.Name}} is a proxy for the remote resource {{.WIT}}.
type {{.Name}} struct {
	c      *Client
	handle canon.Handle
}

// {{.Wrap}} returns a proxy for a handle obtained elsewhere.
func (c *Client) {{.Wrap}}(h canon.Handle) *{{.Name}} {
	return &{{.Name}}{c: c, handle: h}
}

// Handle returns the remote identity of the resource.
func (p *{{.Name}}) Handle() canon.Handle {
	return p.handle
}
{{range .Methods}}{{template "func" .}}{{end}}
{{- end}}
{{- range .Types}}{{template "decl" .}}{{end}}
{{- if .Shapes}}
var shapes = newShapes()

func newShapes() []*canon.Shape {
	s := make([]*canon.Shape, {{len .Shapes}})
	for i := range s {
		s[i] = new(canon.Shape)
	}
{{- range .Shapes}}
	*s[{{.Index}}] = {{.Literal}}
{{- end}}
	return s
}
{{- end}}
{{define "func"}}
// {{.Name}} calls {{.Doc}}.
{{- if eq .Mode "unit" "trap"}}
// Invocation failures panic with *rpc.Trap.
{{- else}}
// Invocation failures are returned in the error case.
{{- end}}
func ({{.Recv}}) {{.Name}}(ctx context.Context{{.Params}}){{if .Result}} {{.Result}}{{end}} {
{{- if eq .Mode "unit"}}
	rpc.Must(ctx, {{.Client}}.inv, {{.Identity}}, nil, []canon.Value{ {{- .Args -}} })
{{- else}}
	r := rpc.{{if eq .Mode "try"}}Try{{else}}Must{{end}}(ctx, {{.Client}}.inv, {{.Identity}}, {{.Shape}}, []canon.Value{ {{- .Args -}} })
	return {{.Lift}}
{{- end}}
}
{{end}}
{{define "decl"}}
{{- if eq .Kind "record"}}
// {{.Name}} mirrors the WIT record {{.WIT}}.
type {{.Name}} struct {
{{- range .Fields}}
	{{.Name}} {{.Type}}
{{- end}}
}
{{template "struct-helpers" .}}
{{- else if eq .Kind "tuple"}}
// {{.Name}} holds a {{.WIT}}.
type {{.Name}} struct {
{{- range .Fields}}
	{{.Name}} {{.Type}}
{{- end}}
}
{{template "struct-helpers" .}}
{{- else if eq .Kind "variant"}}
// {{.Name}} mirrors the WIT variant {{.WIT}}. Tag selects the case; cases
// with a payload set the matching field.
type {{.Name}} struct {
	Tag {{.TagType}}
{{- range .Cases}}{{if .HasPayload}}
	{{.Field}} *{{.Type}}
{{- end}}{{end}}
}

type {{.TagType}} uint32

const (
{{- range $i, $c := .Cases}}
	{{$c.Const}}{{if eq $i 0}} {{$.TagType}} = iota{{end}}
{{- end}}
)

func lower{{.Suffix}}(v {{.Name}}) canon.Value {
	switch v.Tag {
{{- range .Cases}}
	case {{.Const}}:
		return canon.Variant({{.Index}}{{if .HasPayload}}, {{.Lower}}{{end}})
{{- end}}
	}
	panic("invalid {{.Name}} tag")
}

func (c *Client) lift{{.Suffix}}(v canon.Value) {{.Name}} {
	out := {{.Name}}{Tag: {{.TagType}}(v.Case())}
{{- if .HasPayload}}
	p, _ := v.Payload()
	switch out.Tag {
{{- range .Cases}}{{if .HasPayload}}
	case {{.Const}}:
		x := {{.Lift}}
		out.{{.Field}} = &x
{{- end}}{{end}}
	}
{{- end}}
	return out
}
{{- else if eq .Kind "enum"}}
// {{.Name}} mirrors the WIT enum {{.WIT}}.
type {{.Name}} uint32

const (
{{- range $i, $c := .Cases}}
	{{$c.Const}}{{if eq $i 0}} {{$.Name}} = iota{{end}}
{{- end}}
)
{{- else if eq .Kind "flags"}}
// {{.Name}} mirrors the WIT flags {{.WIT}}.
type {{.Name}} uint64

const (
{{- range $i, $c := .Cases}}
	{{$c.Const}}{{if eq $i 0}} {{$.Name}} = 1 << iota{{end}}
{{- end}}
)
{{- else if eq .Kind "list"}}
func lower{{.Suffix}}(v {{.GoType}}) canon.Value {
	out := make([]canon.Value, len(v))
	for i, x := range v {
		out[i] = {{.ElemLower}}
	}
	return canon.List(out...)
}

func (c *Client) lift{{.Suffix}}(v canon.Value) {{.GoType}} {
	out := make({{.GoType}}, len(v.Elems()))
	for i, x := range v.Elems() {
		out[i] = {{.ElemLift}}
	}
	return out
}
{{- else if eq .Kind "option"}}
func lower{{.Suffix}}(v {{.GoType}}) canon.Value {
	if v == nil {
		return canon.None()
	}
	return canon.Some({{.ElemLower}})
}

func (c *Client) lift{{.Suffix}}(v canon.Value) {{.GoType}} {
	p, ok := v.Payload()
	if !v.IsSome() || !ok {
		return nil
	}
	x := {{.ElemLift}}
	return &x
}
{{- else if eq .Kind "result"}}
func lower{{.Suffix}}(v {{.GoType}}) canon.Value {
	if v.IsErr {
		return canon.Err({{if .HasErr}}{{.ErrLower}}{{end}})
	}
	return canon.Ok({{if .HasOk}}{{.OkLower}}{{end}})
}

func (c *Client) lift{{.Suffix}}(v canon.Value) {{.GoType}} {
	var out {{.GoType}}
{{- if or .HasOk .HasErr}}
	p, _ := v.Payload()
{{- end}}
	if v.IsErr() {
		out.IsErr = true
{{- if .HasErr}}
		out.Err = {{.ErrLift}}
{{- end}}
		return out
	}
{{- if .HasOk}}
	out.OK = {{.OkLift}}
{{- end}}
	return out
}
{{- end}}
{{end}}
{{define "struct-helpers"}}
func lower{{.Suffix}}(v {{.Name}}) canon.Value {
	return canon.{{if eq .Kind "tuple"}}Tuple{{else}}Record{{end}}({{range $i, $f := .Fields}}{{if $i}}, {{end}}{{$f.Lower}}{{end}})
}

func (c *Client) lift{{.Suffix}}(v canon.Value) {{.Name}} {
{{- if .Fields}}
	e := v.Elems()
	return {{.Name}}{
{{- range .Fields}}
		{{.Name}}: {{.Lift}},
{{- end}}
	}
{{- else}}
	return {{.Name}}{}
{{- end}}
}
{{end}}
`))
