package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/akarsh/gamepilot/internal/events"
)

// ChainPaneModel shows the progress of the active chain run.
type ChainPaneModel struct {
	chain   string
	lines   []string
	width   int
	height  int
	focused bool
}

// NewChainPaneModel creates a new chain pane model.
func NewChainPaneModel() ChainPaneModel {
	return ChainPaneModel{}
}

// Update handles messages for the chain pane.
func (m ChainPaneModel) Update(msg tea.Msg) (ChainPaneModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case events.ChainStepEvent:
		if m.chain != msg.Chain {
			m.chain = msg.Chain
			m.lines = nil
		}
		m.lines = append(m.lines, fmt.Sprintf("%s step %d %s: %s", m.outcomeIcon(msg.Outcome), msg.Step+1, msg.ID, msg.Outcome))

	case events.ChainFinishedEvent:
		verdict := "finished"
		if msg.Aborted {
			verdict = "aborted"
		}
		m.lines = append(m.lines, "", fmt.Sprintf("%s: %d passed / %d failed / %d skipped", verdict, msg.Passed, msg.Failed, msg.Skipped))
	}

	return m, nil
}

func (m ChainPaneModel) outcomeIcon(outcome string) string {
	switch outcome {
	case "passed":
		return StyleStatusComplete.Render("✓")
	case "failed":
		return StyleStatusFailed.Render("✗")
	case "skipped":
		return StyleStatusSkipped.Render("⊘")
	default:
		return StyleStatusPending.Render("○")
	}
}

// View renders the chain pane.
func (m ChainPaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	var b strings.Builder

	name := m.chain
	if name == "" {
		name = "Chain"
	}
	title := StyleTitle.Render(name)
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", lipgloss.Width(title)))
	b.WriteString("\n\n")

	if len(m.lines) == 0 {
		b.WriteString(StyleStatusPending.Render("No chain running"))
	} else {
		// Keep the tail that fits the pane
		visible := m.lines
		maxLines := m.height - 6
		if maxLines > 0 && len(visible) > maxLines {
			visible = visible[len(visible)-maxLines:]
		}
		b.WriteString(strings.Join(visible, "\n"))
	}

	border := StyleUnfocusedBorder
	if m.focused {
		border = StyleFocusedBorder
	}
	return border.
		Width(m.width - 2).
		Height(m.height - 2).
		Render(b.String())
}

// SetSize updates the pane dimensions.
func (m *ChainPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// SetFocused updates the focus state.
func (m *ChainPaneModel) SetFocused(focused bool) {
	m.focused = focused
}
