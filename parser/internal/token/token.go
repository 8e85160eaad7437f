package token

import (
	"fmt"
	"unicode"
	"unicode/utf8"
)

type Type int

const (
	EOF Type = iota
	Illegal
	Ident
	Number
	Version
	LBrace
	RBrace
	LParen
	RParen
	LAngle
	RAngle
	Comma
	Semicolon
	Colon
	Period
	Slash
	At
	Equals
	Arrow
	Star
	Underscore
)

var names = [...]string{
	EOF:        "end of file",
	Illegal:    "illegal character",
	Ident:      "identifier",
	Number:     "number",
	Version:    "version",
	LBrace:     "'{'",
	RBrace:     "'}'",
	LParen:     "'('",
	RParen:     "')'",
	LAngle:     "'<'",
	RAngle:     "'>'",
	Comma:      "','",
	Semicolon:  "';'",
	Colon:      "':'",
	Period:     "'.'",
	Slash:      "'/'",
	At:         "'@'",
	Equals:     "'='",
	Arrow:      "'->'",
	Star:       "'*'",
	Underscore: "'_'",
}

func (t Type) String() string {
	if int(t) < len(names) {
		return names[t]
	}
	return "unknown"
}

// Token is a lexical unit with its 1-based source position.
// Escaped is set for identifiers written with a leading '%'.
type Token struct {
	Value   string
	Type    Type
	Line    int
	Column  int
	Escaped bool
}

// Describe renders the token for "found X" diagnostics.
func (t Token) Describe() string {
	switch t.Type {
	case Ident:
		return fmt.Sprintf("identifier %q", t.Value)
	case Number, Version:
		return fmt.Sprintf("%s %q", t.Type, t.Value)
	case Illegal:
		return t.Value
	}
	return t.Type.String()
}

var punct = map[rune]Type{
	'{': LBrace,
	'}': RBrace,
	'(': LParen,
	')': RParen,
	'<': LAngle,
	'>': RAngle,
	',': Comma,
	';': Semicolon,
	':': Colon,
	'.': Period,
	'/': Slash,
	'@': At,
	'=': Equals,
	'*': Star,
	'_': Underscore,
}

// Tokenize splits WIT source into tokens. Comments are dropped. The result
// always ends with an EOF token; lexical errors become Illegal tokens and
// tokenizing stops there.
func Tokenize(input string) []Token {
	var tokens []Token
	line, col := 1, 1
	i := 0

	advance := func(n int) {
		for k := 0; k < n && i < len(input); k++ {
			r, size := utf8.DecodeRuneInString(input[i:])
			i += size
			if r == '\n' {
				line++
				col = 1
			} else {
				col++
			}
		}
	}
	emit := func(typ Type, value string, l, c int) {
		tokens = append(tokens, Token{Value: value, Type: typ, Line: l, Column: c})
	}

	for i < len(input) {
		r, size := utf8.DecodeRuneInString(input[i:])
		if r == utf8.RuneError && size == 1 {
			emit(Illegal, "invalid UTF-8", line, col)
			return tokens
		}
		if unicode.IsSpace(r) {
			advance(1)
			continue
		}
		startLine, startCol := line, col

		// Line and doc comments
		if r == '/' && i+1 < len(input) && input[i+1] == '/' {
			for i < len(input) && input[i] != '\n' {
				advance(1)
			}
			continue
		}

		// Block comments nest
		if r == '/' && i+1 < len(input) && input[i+1] == '*' {
			depth := 1
			advance(2)
			for i < len(input) && depth > 0 {
				switch {
				case input[i] == '/' && i+1 < len(input) && input[i+1] == '*':
					depth++
					advance(2)
				case input[i] == '*' && i+1 < len(input) && input[i+1] == '/':
					depth--
					advance(2)
				default:
					advance(1)
				}
			}
			if depth > 0 {
				emit(Illegal, "unterminated block comment", startLine, startCol)
				return tokens
			}
			continue
		}

		if r == '-' && i+1 < len(input) && input[i+1] == '>' {
			emit(Arrow, "->", startLine, startCol)
			advance(2)
			continue
		}

		// A version follows '@' directly: 1.2.3-rc.1+build
		if n := len(tokens); n > 0 && tokens[n-1].Type == At && isDigit(r) {
			start := i
			for i < len(input) && isVersionChar(input[i]) {
				advance(1)
			}
			emit(Version, input[start:i], startLine, startCol)
			continue
		}

		if typ, ok := punct[r]; ok {
			emit(typ, string(r), startLine, startCol)
			advance(1)
			continue
		}

		if isDigit(r) {
			start := i
			for i < len(input) && isDigit(rune(input[i])) {
				advance(1)
			}
			emit(Number, input[start:i], startLine, startCol)
			continue
		}

		escaped := false
		if r == '%' {
			escaped = true
			advance(1)
			if i >= len(input) || !isLetter(rune(input[i])) {
				emit(Illegal, "'%' not followed by an identifier", startLine, startCol)
				return tokens
			}
			r = rune(input[i])
		}

		if isLetter(r) {
			start := i
			for i < len(input) && isIdentChar(input[i]) {
				if input[i] == '-' && i+1 < len(input) && input[i+1] == '>' {
					break
				}
				advance(1)
			}
			tokens = append(tokens, Token{
				Value:   input[start:i],
				Type:    Ident,
				Line:    startLine,
				Column:  startCol,
				Escaped: escaped,
			})
			continue
		}

		emit(Illegal, fmt.Sprintf("illegal character %q", r), startLine, startCol)
		return tokens
	}

	emit(EOF, "", line, col)
	return tokens
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

func isLetter(r rune) bool { return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') }

func isIdentChar(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '-'
}

func isVersionChar(c byte) bool {
	return isIdentChar(c) || c == '.' || c == '+'
}
