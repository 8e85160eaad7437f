package stubgen

import (
	"go/token"
	"strconv"
	"strings"
	"unicode"
)

// exportedName converts a kebab-case WIT identifier to an exported Go name:
// "add-item" becomes "AddItem".
func exportedName(name string) string {
	var b strings.Builder
	for part := range strings.SplitSeq(name, "-") {
		if part == "" {
			continue
		}
		r := []rune(part)
		r[0] = unicode.ToUpper(r[0])
		b.WriteString(string(r))
	}
	out := b.String()
	if out == "" || !unicode.IsLetter([]rune(out)[0]) {
		out = "X" + out
	}
	return out
}

// localName converts a WIT identifier to an unexported Go identifier that
// does not collide with Go keywords or the generated code's own locals.
func localName(name string) string {
	exp := exportedName(name)
	r := []rune(exp)
	r[0] = unicode.ToLower(r[0])
	out := string(r)
	if token.IsKeyword(out) || reservedLocals[out] {
		out += "Arg"
	}
	return out
}

var reservedLocals = map[string]bool{
	"ctx": true, "c": true, "p": true, "r": true, "canon": true, "rpc": true, "context": true,
}

// packageName derives a Go package name from an interface or world name.
func packageName(name string) string {
	var b strings.Builder
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	out := b.String()
	if out == "" || !unicode.IsLetter([]rune(out)[0]) || token.IsKeyword(out) {
		out = "stub" + out
	}
	return out
}

// nameSet hands out unique identifiers in registration order.
type nameSet map[string]string

// claim reserves name for key, falling back to name+suffix and then numbered
// variants when another key holds it.
func (s nameSet) claim(key, name, suffix string) string {
	if owner, ok := s[name]; !ok || owner == key {
		s[name] = key
		return name
	}
	if suffix != "" {
		if owner, ok := s[name+suffix]; !ok || owner == key {
			s[name+suffix] = key
			return name + suffix
		}
	}
	for i := 2; ; i++ {
		cand := name + suffix + strconv.Itoa(i)
		if owner, ok := s[cand]; !ok || owner == key {
			s[cand] = key
			return cand
		}
	}
}
