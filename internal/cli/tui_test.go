package cli

import (
	"bytes"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/tnpagents/processmate/pkg/process"
)

func inspectTable() *process.Table {
	return &process.Table{
		Title: "Achats",
		Steps: []process.Step{
			{ID: "s", Label: "Start", Kind: process.KindStartEvent, Lane: "A", OnYes: "t"},
			{ID: "t", Label: "Do thing", Kind: process.KindTask, Lane: "A", OnYes: "g"},
			{ID: "g", Kind: process.KindExclusiveGateway, Lane: "B", Condition: "OK?", OnYes: "e1", OnNo: "e2"},
			{ID: "e1", Label: "Done", Kind: process.KindEndEvent, Lane: "B"},
			{ID: "e2", Label: "Rejected", Kind: process.KindEndEvent, Lane: "B"},
		},
	}
}

func key(s string) tea.KeyMsg {
	switch s {
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(m InspectModel, keys ...string) (InspectModel, tea.Cmd) {
	var cmd tea.Cmd
	for _, k := range keys {
		var next tea.Model
		next, cmd = m.Update(key(k))
		m = next.(InspectModel)
	}
	return m, cmd
}

func TestInspectNavigation(t *testing.T) {
	m := NewInspectModel(inspectTable(), nil)

	tests := []struct {
		name string
		keys []string
		want int
	}{
		{"down", []string{"down"}, 1},
		{"vim keys", []string{"j", "j", "k"}, 1},
		{"clamped at top", []string{"up", "up"}, 0},
		{"clamped at bottom", []string{"j", "j", "j", "j", "j", "j"}, 4},
		{"follow yes", []string{"n", "n"}, 2},
		{"follow no", []string{"n", "n", "N"}, 4},
		{"follow missing branch", []string{"N"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := press(m, tt.keys...)
			if got.Cursor != tt.want {
				t.Errorf("cursor = %d, want %d", got.Cursor, tt.want)
			}
		})
	}
}

func TestInspectScrolls(t *testing.T) {
	m := NewInspectModel(inspectTable(), nil)
	m.Height = 2

	m, _ = press(m, "j", "j", "j")
	if m.Offset != 2 {
		t.Errorf("offset = %d, want 2", m.Offset)
	}
	m, _ = press(m, "k", "k", "k")
	if m.Offset != 0 {
		t.Errorf("offset = %d, want 0", m.Offset)
	}
}

func TestInspectDetailAndQuit(t *testing.T) {
	m := NewInspectModel(inspectTable(), nil)

	m, _ = press(m, "j", "j", "enter")
	if !m.Detail {
		t.Fatal("enter should open the detail view")
	}
	view := m.View()
	for _, want := range []string{"OK?", "e1", "e2"} {
		if !strings.Contains(view, want) {
			t.Errorf("detail view missing %q", want)
		}
	}

	m, cmd := press(m, "esc")
	if m.Detail || cmd != nil {
		t.Error("esc should close the detail view without quitting")
	}
	if _, cmd = press(m, "q"); cmd == nil {
		t.Error("q should quit")
	}
}

func TestInspectViewShowsIssues(t *testing.T) {
	tbl := inspectTable()
	tbl.Steps[1].OnYes = "ghost"
	issues, _ := process.Validate(tbl)

	m := NewInspectModel(tbl, issues)
	m, _ = press(m, "j", "enter")
	view := m.View()
	if !strings.Contains(view, "ghost") {
		t.Error("view should show the unresolved reference")
	}
	if !strings.Contains(view, iconWarning) {
		t.Error("view should flag the step with issues")
	}
}

func TestInspectEmptyTable(t *testing.T) {
	m := NewInspectModel(&process.Table{}, nil)
	if !strings.Contains(m.View(), "no steps") {
		t.Error("empty table view should say so")
	}
}

func TestPrintPlainTable(t *testing.T) {
	var buf bytes.Buffer
	if err := printPlainTable(&buf, inspectTable(), nil); err != nil {
		t.Fatalf("printPlainTable: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Achats", "Do thing", "ExclusiveGateway", "→3", "5 steps", "2 lanes"} {
		if !strings.Contains(out, want) {
			t.Errorf("plain table missing %q", want)
		}
	}
}

func TestShortRef(t *testing.T) {
	tbl := inspectTable()
	tests := []struct{ ref, want string }{
		{"", ""},
		{"g", "→3"},
		{" e2 ", "→5"},
		{"ghost", "?ghost"},
		{"a-very-long-missing-id", "?a-very-…"},
	}
	for _, tt := range tests {
		if got := shortRef(tbl, tt.ref); got != tt.want {
			t.Errorf("shortRef(%q) = %q, want %q", tt.ref, got, tt.want)
		}
	}
}
