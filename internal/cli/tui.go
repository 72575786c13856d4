package cli

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/tnpagents/processmate/pkg/process"
)

// List styles
var (
	listDimStyle   = lipgloss.NewStyle().Foreground(colorDim)
	listIssueStyle = lipgloss.NewStyle().Foreground(colorRed)
	headerStyle    = lipgloss.NewStyle().Foreground(colorGray).Bold(true)
)

// =============================================================================
// StepTable - static rendering
// =============================================================================

// stepColumns are the table headers shared by the plain and interactive views.
var stepColumns = []string{"", "#", "Label", "Kind", "Lane", "Yes", "No", "Tool"}

// stepTable renders rows [from, to) of t. cursor < 0 draws no cursor.
func stepTable(t *process.Table, issues map[string][]process.Issue, from, to, cursor int) *table.Table {
	laneIdx := make(map[string]int)
	for i, l := range t.Lanes() {
		laneIdx[l] = i
	}

	rows := make([][]string, 0, to-from)
	for i := from; i < to; i++ {
		s := t.Steps[i]
		mark := "  "
		if i == cursor {
			mark = "▸ "
		}
		if len(issues[s.ID]) > 0 {
			mark = strings.TrimSpace(mark) + iconWarning
		}
		rows = append(rows, []string{
			mark,
			fmt.Sprint(i + 1),
			truncate(s.DisplayName(), 32),
			string(s.Kind),
			s.Lane,
			shortRef(t, s.OnYes),
			shortRef(t, s.OnNo),
			truncate(s.Tool, 16),
		})
	}

	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers(stepColumns...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			idx := from + row
			if idx >= to {
				return lipgloss.NewStyle()
			}
			s := t.Steps[idx]
			base := lipgloss.NewStyle()
			if idx == cursor {
				base = base.Bold(true)
			}
			switch {
			case col == 0 && len(issues[s.ID]) > 0:
				return base.Inherit(listIssueStyle)
			case col == 4:
				return base.Inherit(laneStyle(laneIdx[s.Lane]))
			case col == 5 || col == 6:
				return base.Foreground(colorGray)
			}
			return base
		})
}

// shortRef shows a successor as its row number, or the raw id when it does
// not resolve.
func shortRef(t *process.Table, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	for i := range t.Steps {
		if t.Steps[i].ID == ref {
			return fmt.Sprintf("→%d", i+1)
		}
	}
	return "?" + truncate(ref, 8)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// issuesByStep groups validation issues by step id; table-level issues are
// keyed by the empty string.
func issuesByStep(issues []process.Issue) map[string][]process.Issue {
	m := make(map[string][]process.Issue)
	for _, is := range issues {
		m[is.StepID] = append(m[is.StepID], is)
	}
	return m
}

// =============================================================================
// InspectModel - interactive step browser
// =============================================================================

// InspectModel is the bubbletea model for browsing a process table.
type InspectModel struct {
	Table  *process.Table
	Issues map[string][]process.Issue
	Cursor int
	Height int
	Offset int
	Detail bool
}

// NewInspectModel creates a model over t and its validation issues.
func NewInspectModel(t *process.Table, issues []process.Issue) InspectModel {
	return InspectModel{
		Table:  t,
		Issues: issuesByStep(issues),
		Height: 15,
	}
}

func (m InspectModel) Init() tea.Cmd {
	return nil
}

func (m InspectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			if m.Detail && msg.String() == "esc" {
				m.Detail = false
				return m, nil
			}
			return m, tea.Quit
		case "up", "k":
			if m.Cursor > 0 {
				m.Cursor--
				if m.Cursor < m.Offset {
					m.Offset = m.Cursor
				}
			}
		case "down", "j":
			if m.Cursor < len(m.Table.Steps)-1 {
				m.Cursor++
				if m.Cursor >= m.Offset+m.Height {
					m.Offset = m.Cursor - m.Height + 1
				}
			}
		case "enter", " ":
			m.Detail = !m.Detail
		case "n":
			m.jump(m.Table.Steps[m.Cursor].OnYes)
		case "N":
			m.jump(m.Table.Steps[m.Cursor].OnNo)
		}
	case tea.WindowSizeMsg:
		m.Height = max(msg.Height-10, 5)
	}
	return m, nil
}

// jump moves the cursor to the step with the given id, if any.
func (m *InspectModel) jump(id string) {
	id = strings.TrimSpace(id)
	for i := range m.Table.Steps {
		if m.Table.Steps[i].ID == id {
			m.Cursor = i
			if m.Cursor < m.Offset || m.Cursor >= m.Offset+m.Height {
				m.Offset = max(m.Cursor-m.Height/2, 0)
			}
			return
		}
	}
}

func (m InspectModel) View() string {
	var b strings.Builder

	title := m.Table.Title
	if title == "" {
		title = "Process"
	}
	b.WriteString(StyleTitle.Render(title))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  ⏎ details  n/N follow yes/no  q quit"))
	b.WriteString("\n\n")

	if len(m.Table.Steps) == 0 {
		b.WriteString(listDimStyle.Render("  (no steps)"))
		return b.String()
	}

	end := min(m.Offset+m.Height, len(m.Table.Steps))
	b.WriteString(stepTable(m.Table, m.Issues, m.Offset, end, m.Cursor).Render())
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d]", m.Cursor+1, len(m.Table.Steps))))

	if m.Detail {
		b.WriteString("\n\n")
		b.WriteString(m.detailView())
	}
	return b.String()
}

// detailView describes the step under the cursor: its fields, its
// predecessors and its validation issues.
func (m InspectModel) detailView() string {
	s := m.Table.Steps[m.Cursor]
	var b strings.Builder
	line := func(k, v string) {
		if v == "" {
			return
		}
		fmt.Fprintf(&b, "%s %s\n", listDimStyle.Width(12).Render(k), v)
	}
	line("ID", s.ID)
	line("Label", s.Label)
	line("Kind", string(s.Kind))
	line("Lane", s.Lane)
	line("Condition", s.Condition)
	line("Yes", s.OnYes)
	line("No", s.OnNo)
	line("Tool", s.Tool)

	var preds []string
	for i, p := range m.Table.Steps {
		if strings.TrimSpace(p.OnYes) == s.ID || strings.TrimSpace(p.OnNo) == s.ID {
			preds = append(preds, fmt.Sprint(i+1))
		}
	}
	line("From", strings.Join(preds, ", "))

	for _, is := range m.Issues[s.ID] {
		b.WriteString(listIssueStyle.Render(iconWarning+" "+is.String()) + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
