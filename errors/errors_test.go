package errors

import (
	"errors"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:   PhaseEncode,
				Kind:    KindTypeMismatch,
				Path:    []string{"user", "address", "zip"},
				GoType:  "string",
				WitType: "u32",
				Detail:  "cannot convert",
			},
			contains: []string{"[encode]", "type_mismatch", "user.address.zip", "string", "u32", "cannot convert"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseDecode,
				Kind:  KindOutOfBounds,
			},
			contains: []string{"[decode]", "out_of_bounds"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseInvoke,
				Kind:   KindInvalidData,
				Detail: "bad response",
				Cause:  errors.New("underlying error"),
			},
			contains: []string{"[invoke]", "invalid_data", "bad response", "caused by", "underlying error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := &Error{
		Phase: PhaseEncode,
		Kind:  KindInvalidData,
		Cause: cause,
	}

	if !errors.Is(err.Unwrap(), cause) {
		t.Error("Unwrap did not return cause")
	}
	if !errors.Is(errors.Unwrap(err), cause) {
		t.Error("errors.Unwrap did not return cause")
	}
}

func TestError_Is(t *testing.T) {
	err := &Error{
		Phase: PhaseEncode,
		Kind:  KindTypeMismatch,
		Path:  []string{"foo"},
	}

	if !err.Is(&Error{Phase: PhaseEncode, Kind: KindTypeMismatch}) {
		t.Error("Is should match same phase and kind")
	}
	if err.Is(&Error{Phase: PhaseDecode, Kind: KindTypeMismatch}) {
		t.Error("Is should not match different phase")
	}
	if err.Is(&Error{Phase: PhaseEncode, Kind: KindOutOfBounds}) {
		t.Error("Is should not match different kind")
	}

	target := &Error{Phase: PhaseEncode, Kind: KindTypeMismatch}
	if !errors.Is(err, target) {
		t.Error("errors.Is should match")
	}
}

func TestBuilder(t *testing.T) {
	cause := errors.New("root")
	err := New(PhaseEncode, KindTypeMismatch).
		Path("user", "name").
		GoType("string").
		WitType("u32").
		Value(42).
		Cause(cause).
		Detail("expected %s, got %s", "string", "int").
		Build()

	if err.Phase != PhaseEncode {
		t.Errorf("Phase = %v, want %v", err.Phase, PhaseEncode)
	}
	if err.Kind != KindTypeMismatch {
		t.Errorf("Kind = %v, want %v", err.Kind, KindTypeMismatch)
	}
	if len(err.Path) != 2 || err.Path[0] != "user" || err.Path[1] != "name" {
		t.Errorf("Path = %v, want [user name]", err.Path)
	}
	if err.Value != 42 {
		t.Errorf("Value = %v, want 42", err.Value)
	}
	if !errors.Is(err.Cause, cause) {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}
	if err.Detail != "expected string, got int" {
		t.Errorf("Detail = %v, want 'expected string, got int'", err.Detail)
	}
}

func TestConvenienceConstructors(t *testing.T) {
	t.Run("Overflow", func(t *testing.T) {
		err := Overflow(PhaseEncode, []string{"val"}, 300, "u8")
		if err.Kind != KindOverflow {
			t.Errorf("Kind = %v, want %v", err.Kind, KindOverflow)
		}
		if err.Value != 300 {
			t.Errorf("Value = %v, want 300", err.Value)
		}
	})

	t.Run("InvalidDiscriminant", func(t *testing.T) {
		err := InvalidDiscriminant(PhaseDecode, []string{"variant"}, 5, 3)
		if err.Kind != KindInvalidVariant {
			t.Errorf("Kind = %v, want %v", err.Kind, KindInvalidVariant)
		}
	})

	t.Run("Arity", func(t *testing.T) {
		err := Arity(PhaseEncode, "calc.add", 2, 1)
		if err.Kind != KindArity {
			t.Errorf("Kind = %v, want %v", err.Kind, KindArity)
		}
		if !strings.Contains(err.Detail, "expects 2") {
			t.Errorf("Detail = %q, want argument count", err.Detail)
		}
	})

	t.Run("Unsupported", func(t *testing.T) {
		err := Unsupported(PhaseBind, "string parameters")
		if err.Kind != KindUnsupported {
			t.Errorf("Kind = %v, want %v", err.Kind, KindUnsupported)
		}
	})
}

func TestParseError(t *testing.T) {
	err := &ParseError{
		Pos:      Position{File: "calc.wit", Line: 3, Column: 7},
		Expected: "'{'",
		Found:    "identifier \"add\"",
	}
	want := `calc.wit:3:7: expected '{', found identifier "add"`
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	if err.Stage() != PhaseParse {
		t.Errorf("Stage() = %v, want %v", err.Stage(), PhaseParse)
	}

	var wrapped error = Wrap(PhaseParse, KindInvalidData, err, "parse")
	var pe *ParseError
	if !errors.As(wrapped, &pe) {
		t.Fatal("errors.As should find the ParseError")
	}
	if pe.Pos.Line != 3 {
		t.Errorf("Line = %d, want 3", pe.Pos.Line)
	}
}

func TestResolutionError(t *testing.T) {
	t.Run("symbol", func(t *testing.T) {
		err := &ResolutionError{Symbol: "point", Pos: Position{File: "a.wit", Line: 2, Column: 5}}
		msg := err.Error()
		if !strings.Contains(msg, `unresolved reference "point"`) || !strings.Contains(msg, "a.wit:2:5") {
			t.Errorf("Error() = %q", msg)
		}
	})

	t.Run("cycle", func(t *testing.T) {
		err := &ResolutionError{Cycle: []string{"x:y/a", "x:y/b", "x:y/a"}}
		if !strings.Contains(err.Error(), "x:y/a -> x:y/b -> x:y/a") {
			t.Errorf("Error() = %q, want full cycle path", err.Error())
		}
		if !errors.Is(err, &ResolutionError{}) {
			t.Error("errors.Is should match ResolutionError")
		}
	})
}

func TestCompositionError(t *testing.T) {
	err := &CompositionError{Uncovered: []UncoveredImport{
		{Name: "golem:it/api", Kind: "instance"},
		{Name: "log", Kind: "func"},
	}}
	msg := err.Error()
	for _, s := range []string{"2 import(s)", "golem:it/api (instance)", "log (func)"} {
		if !strings.Contains(msg, s) {
			t.Errorf("Error() = %q, missing %q", msg, s)
		}
	}
	if (&CompositionError{}).Error() != "composition failed" {
		t.Error("empty CompositionError should have a default message")
	}
}

func TestInvariant(t *testing.T) {
	defer func() {
		r := recover()
		ie, ok := r.(*InvariantError)
		if !ok {
			t.Fatalf("recovered %T, want *InvariantError", r)
		}
		if ie.Phase != PhaseMap || !strings.Contains(ie.Error(), "type 7") {
			t.Errorf("InvariantError = %v", ie)
		}
	}()
	Invariant(PhaseMap, "type %d has no kind", 7)
}

func TestError_Render(t *testing.T) {
	tests := []struct {
		err  *Error
		want string
	}{
		{TypeMismatch(PhaseEncode, []string{"point", "x"}, "string", "s32"),
			"[encode] type_mismatch at point.x: Go type string, WIT type s32"},
		{Overflow(PhaseEncode, nil, 300, "u8"),
			"[encode] overflow: WIT type u8 - value 300 overflows u8"},
		{NotFound(PhaseGenerate, "package", "cart"),
			`[generate] not_found: package "cart" not found`},
		{Wrap(PhaseCompose, KindInvalidData, errors.New("short read"), "decode component"),
			"[compose] invalid_data: decode component (caused by: short read)"},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
	}
}
