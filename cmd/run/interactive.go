package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/lua-runtime/runtime"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

const maxScrollback = 200

type replModel struct {
	rt      *runtime.Runtime
	err     error
	input   textinput.Model
	history []string
	histIdx int
	lines   []string
	counter int
}

type evalResultMsg struct {
	entry string
	lines []string
}

func newReplModel(cfg *fileConfig) *replModel {
	ti := textinput.New()
	ti.Prompt = promptStyle.Render("lua> ")
	ti.Placeholder = "return 1 + 1"
	ti.Width = 72
	ti.Focus()

	m := &replModel{input: ti}
	m.rt, m.err = newRuntime(cfg)
	return m
}

func (m *replModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m *replModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "ctrl+d":
			if m.rt != nil {
				m.rt.Close()
			}
			return m, tea.Quit

		case "up":
			if m.histIdx > 0 {
				m.histIdx--
				m.input.SetValue(m.history[m.histIdx])
				m.input.CursorEnd()
			}
			return m, nil

		case "down":
			if m.histIdx < len(m.history)-1 {
				m.histIdx++
				m.input.SetValue(m.history[m.histIdx])
				m.input.CursorEnd()
			} else {
				m.histIdx = len(m.history)
				m.input.SetValue("")
			}
			return m, nil

		case "enter":
			entry := strings.TrimSpace(m.input.Value())
			if entry == "" {
				return m, nil
			}
			m.history = append(m.history, entry)
			m.histIdx = len(m.history)
			m.input.SetValue("")
			return m, m.eval(entry)
		}

	case evalResultMsg:
		m.lines = append(m.lines, promptStyle.Render("lua> ")+msg.entry)
		m.lines = append(m.lines, msg.lines...)
		if len(m.lines) > maxScrollback {
			m.lines = m.lines[len(m.lines)-maxScrollback:]
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// eval runs one REPL entry. Expressions are tried with an implicit return
// first, so "1 + 1" works without typing "return".
func (m *replModel) eval(entry string) tea.Cmd {
	return func() tea.Msg {
		m.counter++
		name := fmt.Sprintf("repl:%d", m.counter)

		results, err := m.rt.Execute("return "+entry, name)
		if err != nil {
			results, err = m.rt.Execute(entry, name)
		}
		if err != nil {
			return evalResultMsg{entry: entry, lines: []string{
				errorStyle.Render(err.Error()),
			}}
		}

		if len(results) == 0 {
			return evalResultMsg{entry: entry, lines: []string{
				infoStyle.Render("ok"),
			}}
		}
		lines := make([]string, len(results))
		for i, v := range results {
			lines[i] = resultStyle.Render(formatValue(v))
		}
		return evalResultMsg{entry: entry, lines: lines}
	}
}

func (m *replModel) View() string {
	if m.err != nil {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress ctrl+c to quit.", m.err))
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Lua Runtime"))
	b.WriteString(" ")
	b.WriteString(infoStyle.Render(fmt.Sprintf("%d live slots", m.rt.Refs().Len())))
	b.WriteString("\n\n")

	for _, line := range m.lines {
		b.WriteString(line)
		b.WriteString("\n")
	}
	if len(m.lines) > 0 {
		b.WriteString("\n")
	}

	b.WriteString(m.input.View())
	b.WriteString("\n\n")
	b.WriteString(helpStyle.Render("enter eval • ↑/↓ history • ctrl+c quit"))
	return b.String()
}

func runInteractive(cfg *fileConfig) error {
	p := tea.NewProgram(newReplModel(cfg), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
