package stubgen

import "testing"

func TestNames(t *testing.T) {
	tests := []struct {
		in        string
		exported  string
		local     string
		goPackage string
	}{
		{"add-item", "AddItem", "addItem", "additem"},
		{"type", "Type", "typeArg", "stubtype"},
		{"ctx", "Ctx", "ctxArg", "ctx"},
		{"r", "R", "rArg", "r"},
		{"v2", "V2", "v2", "v2"},
		{"golem:it@1.0.0", "Golem:it@1.0.0", "golem:it@1.0.0", "golemit100"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := exportedName(tt.in); got != tt.exported {
				t.Errorf("exportedName(%q) = %q, want %q", tt.in, got, tt.exported)
			}
			if got := packageName(tt.in); got != tt.goPackage {
				t.Errorf("packageName(%q) = %q, want %q", tt.in, got, tt.goPackage)
			}
			if tt.in == "golem:it@1.0.0" {
				return
			}
			if got := localName(tt.in); got != tt.local {
				t.Errorf("localName(%q) = %q, want %q", tt.in, got, tt.local)
			}
		})
	}
}

func TestNameSetClaim(t *testing.T) {
	s := make(nameSet)
	tests := []struct {
		key, name, suffix string
		want              string
	}{
		{"a", "Point", "A", "Point"},
		{"a", "Point", "A", "Point"},
		{"b", "Point", "B", "PointB"},
		{"c", "Point", "B", "PointB2"},
		{"d", "Point", "", "Point2"},
	}
	for _, tt := range tests {
		if got := s.claim(tt.key, tt.name, tt.suffix); got != tt.want {
			t.Errorf("claim(%q, %q, %q) = %q, want %q", tt.key, tt.name, tt.suffix, got, tt.want)
		}
	}
}
