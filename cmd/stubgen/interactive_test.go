package main

import (
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/golemcloud/golem-cloud-cli/pipeline"
	"github.com/golemcloud/golem-cloud-cli/stubgen"
)

func generateShop(t *testing.T) *stubgen.Output {
	t.Helper()
	res, err := pipeline.Generate(context.Background(), pipeline.Options{
		Inputs:     []string{writeWIT(t)},
		SkipSource: true,
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	return res.Output
}

func TestPreviewCall(t *testing.T) {
	out := generateShop(t)
	f := out.Func("golem:shop/cart@1.0.0.add-item")
	if f == nil {
		t.Fatal("add-item stub missing")
	}

	text, err := previewCall(context.Background(), f, []string{"apple", "3"})
	if err != nil {
		t.Fatalf("previewCall failed: %v", err)
	}
	for _, want := range []string{"invoke golem:shop/cart@1.0.0.add-item", "sku = ", "qty = ", "request ", "zero result"} {
		if !strings.Contains(text, want) {
			t.Errorf("preview missing %q:\n%s", want, text)
		}
	}

	if _, err := previewCall(context.Background(), f, []string{"apple", "lots"}); err == nil {
		t.Error("bad u32 argument accepted")
	}
}

func TestInteractiveModel(t *testing.T) {
	m := newInteractiveModel(generateShop(t))
	if len(m.funcs) != 2 {
		t.Fatalf("len(funcs) = %d, want 2", len(m.funcs))
	}

	key := func(s string) tea.KeyMsg {
		switch s {
		case "enter":
			return tea.KeyMsg{Type: tea.KeyEnter}
		case "down":
			return tea.KeyMsg{Type: tea.KeyDown}
		case "esc":
			return tea.KeyMsg{Type: tea.KeyEsc}
		}
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}

	m.Update(key("down"))
	if m.selected != 1 {
		t.Fatalf("selected = %d, want 1", m.selected)
	}
	m.Update(key("down"))
	if m.selected != 1 {
		t.Errorf("selection moved past the last function")
	}

	// total takes no arguments and previews immediately.
	_, cmd := m.Update(key("enter"))
	if cmd == nil {
		t.Fatal("enter on total returned no command")
	}
	m.Update(cmd())
	if m.state != stateShowResult || m.err != nil {
		t.Fatalf("state = %d, err = %v, want result", m.state, m.err)
	}
	if !strings.Contains(m.View(), "total") {
		t.Errorf("result view does not name the function")
	}

	m.Update(key("esc"))
	m.Update(key("k"))
	m.Update(key("enter"))
	if m.state != stateInputArgs || len(m.inputs) != 2 {
		t.Fatalf("state = %d with %d inputs, want argument entry with 2", m.state, len(m.inputs))
	}
	m.Update(key("esc"))
	if m.state != stateSelectFunc {
		t.Errorf("esc did not return to the function list")
	}
}
