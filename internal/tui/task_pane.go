package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/akarsh/gamepilot/internal/events"
)

// TaskState represents the observed lifecycle of a single task.
type TaskState struct {
	TaskID    string
	Name      string
	Priority  string
	Status    string // "pending", "running", "retrying", "completed", "failed", "cancelled"
	History   []string
	StartTime time.Time
	Duration  time.Duration
}

// TaskPaneModel shows the task list with a per-task lifecycle viewport.
type TaskPaneModel struct {
	tasks       map[string]*TaskState // taskID -> state
	taskOrder   []string              // insertion order for display
	selectedIdx int                   // which task is selected in the list
	viewport    viewport.Model        // scrollable lifecycle viewport
	width       int
	height      int
	focused     bool
}

// NewTaskPaneModel creates a new task pane model.
func NewTaskPaneModel() TaskPaneModel {
	vp := viewport.New(0, 0)
	return TaskPaneModel{
		tasks:    make(map[string]*TaskState),
		viewport: vp,
	}
}

// Update handles messages for the task pane.
func (m TaskPaneModel) Update(msg tea.Msg) (TaskPaneModel, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeViewport()

	case tea.KeyMsg:
		if !m.focused {
			break
		}

		switch msg.String() {
		case KeyJ, KeyDown:
			if m.selectedIdx < len(m.taskOrder)-1 {
				m.selectedIdx++
				m.updateViewportContent()
			}
		case KeyK, KeyUp:
			if m.selectedIdx > 0 {
				m.selectedIdx--
				m.updateViewportContent()
			}
		default:
			m.viewport, cmd = m.viewport.Update(msg)
		}

	case events.TaskSubmittedEvent:
		if _, exists := m.tasks[msg.ID]; !exists {
			state := &TaskState{
				TaskID:   msg.ID,
				Name:     msg.Name,
				Priority: msg.Priority,
				Status:   "pending",
				History:  []string{fmt.Sprintf("submitted (priority %s)", msg.Priority)},
			}
			if len(msg.DependsOn) > 0 {
				state.History = append(state.History, fmt.Sprintf("waiting on: %s", strings.Join(msg.DependsOn, ", ")))
			}
			m.tasks[msg.ID] = state
			m.taskOrder = append(m.taskOrder, msg.ID)
			if len(m.taskOrder) == 1 {
				m.selectedIdx = 0
				m.updateViewportContent()
			}
		}

	case events.TaskStartedEvent:
		if state, exists := m.tasks[msg.ID]; exists {
			state.Status = "running"
			state.StartTime = msg.Timestamp
			state.History = append(state.History, fmt.Sprintf("attempt %d started", msg.Attempt))
			m.refreshIfSelected(msg.ID)
		}

	case events.TaskRetryingEvent:
		if state, exists := m.tasks[msg.ID]; exists {
			state.Status = "retrying"
			state.History = append(state.History, fmt.Sprintf("attempt %d failed, retrying in %v: %v", msg.Attempt, msg.Delay, msg.Err))
			m.refreshIfSelected(msg.ID)
		}

	case events.TaskCompletedEvent:
		if state, exists := m.tasks[msg.ID]; exists {
			state.Status = "completed"
			state.Duration = msg.Duration
			state.History = append(state.History, fmt.Sprintf("completed in %v", msg.Duration))
			m.refreshIfSelected(msg.ID)
		}

	case events.TaskFailedEvent:
		if state, exists := m.tasks[msg.ID]; exists {
			state.Status = "failed"
			verdict := "failed"
			if msg.TimedOut {
				verdict = "timed out"
			}
			state.History = append(state.History, fmt.Sprintf("%s after %d attempt(s): %v", verdict, msg.Attempts, msg.Err))
			m.refreshIfSelected(msg.ID)
		}

	case events.TaskCancelledEvent:
		if state, exists := m.tasks[msg.ID]; exists {
			state.Status = "cancelled"
			state.History = append(state.History, "cancelled")
			m.refreshIfSelected(msg.ID)
		}
	}

	return m, cmd
}

// View renders the task pane.
func (m TaskPaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	// Two columns: task list (left) and lifecycle viewport (right)
	listWidth := 28
	viewportWidth := m.width - listWidth - 4 // account for borders and padding

	listContent := m.renderTaskList(listWidth)
	viewportContent := m.viewport.View()

	content := lipgloss.JoinHorizontal(
		lipgloss.Top,
		listContent,
		lipgloss.NewStyle().
			Width(viewportWidth).
			Height(m.height-2).
			Render(viewportContent),
	)

	style := StyleUnfocusedBorder
	if m.focused {
		style = StyleFocusedBorder
	}

	return style.
		Width(m.width - 2).
		Height(m.height - 2).
		Render(content)
}

// renderTaskList renders the task list column.
func (m TaskPaneModel) renderTaskList(width int) string {
	var b strings.Builder

	title := StyleTitle.Render("Tasks")
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", min(width, lipgloss.Width(title))))
	b.WriteString("\n\n")

	if len(m.taskOrder) == 0 {
		b.WriteString(StyleStatusPending.Render("Waiting..."))
	} else {
		for i, taskID := range m.taskOrder {
			state := m.tasks[taskID]
			icon := m.StatusIcon(state.Status)
			name := state.Name
			if len(name) > width-6 {
				name = name[:width-9] + "..."
			}

			line := fmt.Sprintf("%s %s", icon, name)
			if i == m.selectedIdx {
				line = lipgloss.NewStyle().
					Background(lipgloss.Color("62")).
					Foreground(lipgloss.Color("0")).
					Render(line)
			}
			b.WriteString(line)
			b.WriteString("\n")
		}
	}

	return lipgloss.NewStyle().
		Width(width).
		Height(m.height - 2).
		Render(b.String())
}

// StatusIcon returns a styled status indicator.
func (m TaskPaneModel) StatusIcon(status string) string {
	switch status {
	case "running":
		return StyleStatusRunning.Render("●")
	case "retrying":
		return StyleStatusRunning.Render("↻")
	case "completed":
		return StyleStatusComplete.Render("✓")
	case "failed":
		return StyleStatusFailed.Render("✗")
	case "cancelled":
		return StyleStatusSkipped.Render("⊘")
	default:
		return StyleStatusPending.Render("○")
	}
}

// getSelectedTaskID returns the task ID of the currently selected entry.
func (m TaskPaneModel) getSelectedTaskID() string {
	if m.selectedIdx >= 0 && m.selectedIdx < len(m.taskOrder) {
		return m.taskOrder[m.selectedIdx]
	}
	return ""
}

func (m *TaskPaneModel) refreshIfSelected(taskID string) {
	if m.getSelectedTaskID() == taskID {
		m.updateViewportContent()
	}
}

// updateViewportContent updates the viewport with the selected task's
// lifecycle history.
func (m *TaskPaneModel) updateViewportContent() {
	taskID := m.getSelectedTaskID()
	if taskID == "" {
		m.viewport.SetContent("Waiting for tasks...")
		return
	}

	state, exists := m.tasks[taskID]
	if !exists {
		m.viewport.SetContent("Waiting for tasks...")
		return
	}

	header := fmt.Sprintf("%s [%s]\n%s\n\n", state.Name, state.TaskID, strings.Repeat("-", 24))
	m.viewport.SetContent(header + strings.Join(state.History, "\n"))
	m.viewport.GotoBottom()
}

// resizeViewport resizes the viewport based on pane dimensions.
func (m *TaskPaneModel) resizeViewport() {
	listWidth := 28
	viewportWidth := m.width - listWidth - 4
	viewportHeight := m.height - 4 // account for borders

	if viewportWidth < 10 {
		viewportWidth = 10
	}
	if viewportHeight < 5 {
		viewportHeight = 5
	}

	m.viewport.Width = viewportWidth
	m.viewport.Height = viewportHeight
}

// SetSize updates the pane dimensions.
func (m *TaskPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.resizeViewport()
}

// SetFocused updates the focus state.
func (m *TaskPaneModel) SetFocused(focused bool) {
	m.focused = focused
}
