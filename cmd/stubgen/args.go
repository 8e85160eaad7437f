package main

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/golemcloud/golem-cloud-cli/canon"
)

// parseArg reads one argument typed at the prompt. Top-level strings and
// chars are taken verbatim; everything else is YAML, e.g. `{x: 1, y: 2}`
// for a record, `circle: 2.5` for a variant case, `[a, b]` for flags and
// `urn:worker:w1#7` for a handle.
func parseArg(s *canon.Shape, text string) (any, error) {
	switch s.Kind {
	case canon.KindString:
		return text, nil
	case canon.KindChar:
		return parseChar(text)
	case canon.KindOption:
		if strings.TrimSpace(text) == "" {
			return nil, nil
		}
	}
	var node any
	if err := yaml.Unmarshal([]byte(text), &node); err != nil {
		return nil, fmt.Errorf("parse %s: %w", s, err)
	}
	return coerce(s, node)
}

func parseChar(text string) (rune, error) {
	r, size := utf8.DecodeRuneInString(text)
	if size == 0 || size != len(text) {
		return 0, fmt.Errorf("char wants exactly one character, got %q", text)
	}
	return r, nil
}

// coerce maps a decoded YAML node onto the Go conventions canon.Lower
// accepts for s.
func coerce(s *canon.Shape, node any) (any, error) {
	switch s.Kind {
	case canon.KindF32:
		f, err := number(node)
		return float32(f), err
	case canon.KindF64:
		return number(node)
	case canon.KindChar:
		str, ok := node.(string)
		if !ok {
			return nil, fmt.Errorf("char wants a string, got %T", node)
		}
		return parseChar(str)
	case canon.KindString:
		if str, ok := node.(string); ok {
			return str, nil
		}
		return fmt.Sprint(node), nil
	case canon.KindList:
		items, ok := node.([]any)
		if !ok {
			return nil, fmt.Errorf("%s wants a sequence, got %T", s, node)
		}
		if s.Elem.Kind == canon.KindU8 {
			out := make([]byte, len(items))
			for i, it := range items {
				n, ok := it.(int)
				if !ok || n < 0 || n > 255 {
					return nil, fmt.Errorf("byte %d: %v out of range", i, it)
				}
				out[i] = byte(n)
			}
			return out, nil
		}
		return coerceAll(items, func(int) *canon.Shape { return s.Elem })
	case canon.KindTuple:
		items, ok := node.([]any)
		if !ok || len(items) != len(s.Elems) {
			return nil, fmt.Errorf("%s wants a sequence of %d", s, len(s.Elems))
		}
		return coerceAll(items, func(i int) *canon.Shape { return s.Elems[i] })
	case canon.KindRecord:
		m, ok := node.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%s wants a mapping, got %T", s, node)
		}
		out := make(map[string]any, len(m))
		for k, v := range m {
			i := s.Field(k)
			if i < 0 {
				out[k] = v // reported by canon.Lower
				continue
			}
			cv, err := coerce(s.Fields[i].Shape, v)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", s, k, err)
			}
			out[k] = cv
		}
		return out, nil
	case canon.KindVariant:
		return coerceCase(s, node, func(name string) (*canon.Shape, bool) {
			i := s.Case(name)
			if i < 0 {
				return nil, false
			}
			return s.Cases[i].Shape, true
		})
	case canon.KindResult:
		return coerceCase(s, node, func(name string) (*canon.Shape, bool) {
			switch name {
			case "ok":
				return s.Ok, true
			case "err":
				return s.Err, true
			}
			return nil, false
		})
	case canon.KindEnum:
		if n, ok := node.(int); ok {
			return uint32(n), nil
		}
		return node, nil
	case canon.KindFlags:
		return flagBits(s, node)
	case canon.KindOption:
		if node == nil {
			return nil, nil
		}
		v, err := coerce(s.Elem, node)
		if err != nil || s.Elem.Kind != canon.KindOption {
			return v, err
		}
		return canon.Present{Value: v}, nil
	case canon.KindOwn, canon.KindBorrow:
		str, ok := node.(string)
		if !ok {
			return nil, fmt.Errorf("%s wants uri#id, got %T", s, node)
		}
		return parseHandle(str)
	}
	return node, nil
}

func coerceAll(items []any, shape func(int) *canon.Shape) ([]any, error) {
	out := make([]any, len(items))
	for i, it := range items {
		v, err := coerce(shape(i), it)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

// coerceCase accepts either a bare case name or a one-key mapping from
// case name to payload.
func coerceCase(s *canon.Shape, node any, payload func(string) (*canon.Shape, bool)) (any, error) {
	if name, ok := node.(string); ok {
		return map[string]any{name: nil}, nil
	}
	m, ok := node.(map[string]any)
	if !ok || len(m) != 1 {
		return nil, fmt.Errorf("%s wants a case name or a single-key mapping", s)
	}
	for name, v := range m {
		ps, known := payload(name)
		if !known || ps == nil || v == nil {
			return m, nil
		}
		cv, err := coerce(ps, v)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", s, name, err)
		}
		return map[string]any{name: cv}, nil
	}
	return m, nil
}

func flagBits(s *canon.Shape, node any) (uint64, error) {
	switch v := node.(type) {
	case int:
		return uint64(v), nil
	case nil:
		return 0, nil
	case []any:
		var bits uint64
		for _, it := range v {
			name, _ := it.(string)
			i := -1
			for j, n := range s.Names {
				if n == name {
					i = j
					break
				}
			}
			if i < 0 {
				return 0, fmt.Errorf("%s has no flag %v", s, it)
			}
			bits |= 1 << uint(i)
		}
		return bits, nil
	}
	return 0, fmt.Errorf("%s wants a list of flag names, got %T", s, node)
}

func number(node any) (float64, error) {
	switch v := node.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	}
	return 0, fmt.Errorf("want a number, got %T", node)
}

// parseHandle reads the uri#id form printed by canon.Handle.String.
func parseHandle(text string) (canon.Handle, error) {
	i := strings.LastIndexByte(text, '#')
	if i <= 0 {
		return canon.Handle{}, fmt.Errorf("handle %q is not uri#id", text)
	}
	id, err := strconv.ParseUint(text[i+1:], 10, 64)
	if err != nil {
		return canon.Handle{}, fmt.Errorf("handle %q: %w", text, err)
	}
	return canon.Handle{URI: text[:i], ID: id}, nil
}
