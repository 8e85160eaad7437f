package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/golemcloud/golem-cloud-cli/canon"
	"github.com/golemcloud/golem-cloud-cli/rpc"
	"github.com/golemcloud/golem-cloud-cli/stubgen"
)

// maxWireDump bounds the request bytes shown in the preview.
const maxWireDump = 64

type interactiveModel struct {
	err      error
	world    string
	result   string
	funcs    []*stubgen.Func
	inputs   []textinput.Model
	selected int
	focusIdx int
	state    modelState
}

type modelState int

const (
	stateSelectFunc modelState = iota
	stateInputArgs
	stateShowResult
)

type previewMsg struct {
	err    error
	result string
}

func newInteractiveModel(out *stubgen.Output) *interactiveModel {
	m := &interactiveModel{world: out.World, state: stateSelectFunc}
	for _, mod := range out.Modules {
		m.funcs = append(m.funcs, mod.Funcs...)
	}
	return m
}

func (m *interactiveModel) Init() tea.Cmd { return nil }

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit

		case "q":
			if m.state != stateInputArgs {
				return m, tea.Quit
			}

		case "up", "k":
			if m.state == stateSelectFunc && m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.state == stateSelectFunc && m.selected < len(m.funcs)-1 {
				m.selected++
			}

		case "enter":
			switch m.state {
			case stateSelectFunc:
				if len(m.funcs) == 0 {
					return m, nil
				}
				m.prepareInputs()
				if len(m.inputs) == 0 {
					return m, m.preview
				}
				m.state = stateInputArgs
				return m, textinput.Blink

			case stateInputArgs:
				return m, m.preview

			case stateShowResult:
				m.reset()
			}

		case "tab":
			if m.state == stateInputArgs && len(m.inputs) > 1 {
				m.inputs[m.focusIdx].Blur()
				m.focusIdx = (m.focusIdx + 1) % len(m.inputs)
				m.inputs[m.focusIdx].Focus()
			}

		case "esc":
			switch m.state {
			case stateInputArgs:
				m.state = stateSelectFunc
				m.inputs = nil
			case stateShowResult:
				m.reset()
			}
		}

	case previewMsg:
		m.result = msg.result
		m.err = msg.err
		m.state = stateShowResult
	}

	if m.state == stateInputArgs {
		var cmds []tea.Cmd
		for i := range m.inputs {
			var cmd tea.Cmd
			m.inputs[i], cmd = m.inputs[i].Update(msg)
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)
	}

	return m, nil
}

func (m *interactiveModel) reset() {
	m.state = stateSelectFunc
	m.result = ""
	m.err = nil
}

func (m *interactiveModel) prepareInputs() {
	f := m.funcs[m.selected]
	m.inputs = make([]textinput.Model, len(f.Params))
	for i, p := range f.Params {
		ti := textinput.New()
		ti.Placeholder = p.Shape.String()
		ti.Prompt = p.Name + ": "
		ti.Width = 40
		if i == 0 {
			ti.Focus()
		}
		m.inputs[i] = ti
	}
	m.focusIdx = 0
}

// preview runs the stub against an invoker that records the request and
// answers with the zero value of the result type.
func (m *interactiveModel) preview() tea.Msg {
	f := m.funcs[m.selected]
	values := make([]string, len(m.inputs))
	for i, input := range m.inputs {
		values[i] = input.Value()
	}
	text, err := previewCall(context.Background(), f, values)
	return previewMsg{result: text, err: err}
}

func previewCall(ctx context.Context, f *stubgen.Func, inputs []string) (string, error) {
	args := make([]any, len(inputs))
	for i, in := range inputs {
		v, err := parseArg(f.Params[i].Shape, in)
		if err != nil {
			return "", fmt.Errorf("%s: %w", f.Params[i].Name, err)
		}
		args[i] = v
	}

	var request []canon.Value
	inv := rpc.InvokerFunc(func(_ context.Context, _ string, a []canon.Value) (canon.Value, error) {
		request = a
		if f.Result == nil {
			return canon.Value{}, nil
		}
		return canon.Zero(f.Result), nil
	})
	result, err := f.Call(ctx, inv, args...)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "invoke %s\n", f.Identity)
	for i, v := range request {
		fmt.Fprintf(&b, "  %s = %s\n", f.Params[i].Name, v)
	}
	wire := rpc.EncodeRequest(request)
	dump := wire
	if len(dump) > maxWireDump {
		dump = dump[:maxWireDump]
	}
	fmt.Fprintf(&b, "request %d bytes: %s", len(wire), hex.EncodeToString(dump))
	if len(dump) < len(wire) {
		b.WriteString("...")
	}
	b.WriteByte('\n')
	if f.Result != nil {
		fmt.Fprintf(&b, "zero result: %v\n", result)
	}
	return b.String(), nil
}

func (m *interactiveModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Stub Inspector"))
	b.WriteString(" ")
	b.WriteString(m.world)
	b.WriteString("\n\n")

	if len(m.funcs) == 0 {
		b.WriteString("The world imports no functions.\n\n")
		b.WriteString(helpStyle.Render("q quit"))
		return b.String()
	}

	switch m.state {
	case stateSelectFunc:
		b.WriteString("Select a function to preview:\n\n")
		for i, f := range m.funcs {
			if i == m.selected {
				b.WriteString(selectedStyle.Render("> " + plainFunc(f)))
			} else {
				b.WriteString("  " + formatFunc(f))
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter preview • q quit"))

	case stateInputArgs:
		f := m.funcs[m.selected]
		fmt.Fprintf(&b, "Calling %s\n\n", funcStyle.Render(f.Identity))
		for i, input := range m.inputs {
			b.WriteString(input.View())
			b.WriteString(" ")
			b.WriteString(typeStyle.Render(f.Params[i].Shape.String()))
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("tab next field • enter preview • esc back"))

	case stateShowResult:
		f := m.funcs[m.selected]
		fmt.Fprintf(&b, "Preview of %s:\n\n", funcStyle.Render(f.Identity))
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		} else {
			b.WriteString(resultStyle.Render(m.result))
		}
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter continue • q quit"))
	}

	return b.String()
}

func formatFunc(f *stubgen.Func) string {
	var params []string
	for _, p := range f.Params {
		params = append(params, p.Name+": "+typeStyle.Render(p.Shape.String()))
	}
	result := ""
	if f.Result != nil {
		result = " -> " + typeStyle.Render(f.Result.String())
	}
	return funcStyle.Render(f.Identity) + "(" + strings.Join(params, ", ") + ")" + result
}

func plainFunc(f *stubgen.Func) string {
	var params []string
	for _, p := range f.Params {
		params = append(params, p.Name+": "+p.Shape.String())
	}
	result := ""
	if f.Result != nil {
		result = " -> " + f.Result.String()
	}
	return f.Identity + "(" + strings.Join(params, ", ") + ")" + result
}

func runInteractive(out *stubgen.Output) error {
	p := tea.NewProgram(newInteractiveModel(out), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
