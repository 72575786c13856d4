package graph

import (
	"errors"
	"testing"

	perrors "github.com/tnpagents/processmate/pkg/errors"
	"github.com/tnpagents/processmate/pkg/process"
)

func exampleSteps() []process.Step {
	return []process.Step{
		{ID: "s", Label: "Start", Kind: process.KindStartEvent, Lane: "A", OnYes: "t"},
		{ID: "t", Label: "Do thing", Kind: process.KindTask, Lane: "A", OnYes: "g"},
		{ID: "g", Kind: process.KindExclusiveGateway, Lane: "B", Condition: "OK?", OnYes: "e1", OnNo: "e2"},
		{ID: "e1", Label: "Done", Kind: process.KindEndEvent, Lane: "B"},
		{ID: "e2", Label: "Rejected", Kind: process.KindEndEvent, Lane: "B"},
	}
}

func TestBuildExample(t *testing.T) {
	m, err := Build(exampleSteps())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if got := m.LaneOrder; len(got) != 2 || got[0] != "A" || got[1] != "B" {
		t.Errorf("LaneOrder = %v, want [A B]", got)
	}
	if len(m.ByLane["B"]) != 3 {
		t.Errorf("len(ByLane[B]) = %d, want 3", len(m.ByLane["B"]))
	}

	wantLayers := map[string]int{"s": 0, "t": 1, "g": 2, "e1": 3, "e2": 3}
	for id, want := range wantLayers {
		if got := m.LayerOf[id]; got != want {
			t.Errorf("layer(%s) = %d, want %d", id, got, want)
		}
	}

	wantEdges := []struct {
		key, target, name string
	}{
		{"s_next", "t", ""},
		{"t_next", "g", ""},
		{"g_yes", "e1", NameYes},
		{"g_no", "e2", NameNo},
	}
	if len(m.Edges) != len(wantEdges) {
		t.Fatalf("len(Edges) = %d, want %d", len(m.Edges), len(wantEdges))
	}
	for i, w := range wantEdges {
		e := m.Edges[i]
		if e.Key() != w.key || e.TargetID != w.target || e.Name != w.name || e.Dangling {
			t.Errorf("edge %d = %+v, want %s -> %s named %q", i, e, w.key, w.target, w.name)
		}
	}
	if m.HasFallback() {
		t.Error("HasFallback() = true, want false")
	}
}

func TestBuildDoesNotMutateInput(t *testing.T) {
	steps := exampleSteps()
	steps[1].Kind = "UserTask"
	if _, err := Build(steps); err != nil {
		t.Fatal(err)
	}
	if steps[1].Kind != "UserTask" {
		t.Errorf("input kind mutated to %q", steps[1].Kind)
	}
}

func TestBuildErrors(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		_, err := Build(nil)
		if !errors.Is(err, ErrEmptyTable) || !perrors.Is(err, perrors.ErrCodeEmptyTable) {
			t.Errorf("error = %v, want ErrEmptyTable", err)
		}
		if perrors.UserMessage(err) != "no steps to generate a diagram from" {
			t.Errorf("message = %q", perrors.UserMessage(err))
		}
	})

	t.Run("duplicate", func(t *testing.T) {
		steps := exampleSteps()
		steps[4].ID = "e1"
		_, err := Build(steps)
		var dup *DuplicateIDError
		if !errors.As(err, &dup) {
			t.Fatalf("error = %v, want DuplicateIDError", err)
		}
		if dup.ID != "e1" || dup.First != 3 || dup.Next != 4 {
			t.Errorf("dup = %+v", dup)
		}
		if !perrors.Is(err, perrors.ErrCodeDuplicateID) {
			t.Errorf("code = %v", perrors.GetCode(err))
		}
	})

	t.Run("empty id", func(t *testing.T) {
		steps := exampleSteps()
		steps[2].ID = " "
		if _, err := Build(steps); !errors.Is(err, ErrEmptyID) {
			t.Errorf("error = %v, want ErrEmptyID", err)
		}
	})

	t.Run("unknown kind", func(t *testing.T) {
		steps := exampleSteps()
		steps[0].Kind = "ParallelGateway"
		if _, err := Build(steps); !perrors.Is(err, perrors.ErrCodeInvalidInput) {
			t.Errorf("error = %v, want INVALID_INPUT", err)
		}
	})

	t.Run("reserved id", func(t *testing.T) {
		steps := exampleSteps()
		steps[0].ID = FallbackEndID
		if _, err := Build(steps); err == nil {
			t.Error("expected error for reserved id")
		}
	})
}

func TestBuildDangling(t *testing.T) {
	steps := []process.Step{
		{ID: "s", Kind: process.KindStartEvent, Lane: "A", OnYes: "t"},
		{ID: "t", Label: "Work", Kind: process.KindTask, Lane: "A", OnYes: "missing_id"},
	}
	m, err := Build(steps)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	out := m.Outgoing("t")
	if len(out) != 1 {
		t.Fatalf("len(Outgoing(t)) = %d, want 1", len(out))
	}
	if !out[0].Dangling || out[0].TargetID != FallbackEndID || out[0].Ref != "missing_id" {
		t.Errorf("edge = %+v", out[0])
	}
	if m.DanglingCount() != 1 || !m.HasFallback() {
		t.Errorf("DanglingCount() = %d", m.DanglingCount())
	}
	if m.FallbackLayer() != 2 {
		t.Errorf("FallbackLayer() = %d, want 2", m.FallbackLayer())
	}
}

func TestBuildBranchNaming(t *testing.T) {
	steps := []process.Step{
		{ID: "s", Kind: process.KindStartEvent, Lane: "A", OnYes: "t", OnNo: "x"},
		{ID: "t", Kind: process.KindTask, Lane: "A", OnYes: "u", OnNo: "v"},
		{ID: "u", Kind: process.KindTask, Lane: "A", OnNo: "v"},
		{ID: "v", Kind: process.KindEndEvent, Lane: "A", OnYes: "s"},
		{ID: "x", Kind: process.KindEndEvent, Lane: "A"},
	}
	m, err := Build(steps)
	if err != nil {
		t.Fatal(err)
	}

	names := map[string]string{}
	for _, e := range m.Edges {
		names[e.Key()] = e.Name
	}
	want := map[string]string{"s_next": "", "t_yes": NameConfirm, "t_no": NameCancel}
	if len(names) != len(want) {
		t.Errorf("edges = %v, want %v", names, want)
	}
	for k, v := range want {
		if got, ok := names[k]; !ok || got != v {
			t.Errorf("edge %s name = %q (present %v), want %q", k, got, ok, v)
		}
	}
	if len(m.Ignored) != 3 {
		t.Errorf("len(Ignored) = %d, want 3: %+v", len(m.Ignored), m.Ignored)
	}
}

func TestHeights(t *testing.T) {
	m, err := Build(exampleSteps())
	if err != nil {
		t.Fatal(err)
	}
	h := m.Heights(180, testMetrics())
	if len(h) != 1 {
		t.Errorf("Heights covers %d steps, want only the task", len(h))
	}
	if h["t"] != 60 {
		t.Errorf("height(t) = %v, want 60", h["t"])
	}
}
