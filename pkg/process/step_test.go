package process

import "testing"

func TestParseKind(t *testing.T) {
	tests := []struct {
		in      string
		want    Kind
		wantErr bool
	}{
		{"StartEvent", KindStartEvent, false},
		{"endevent", KindEndEvent, false},
		{"UserTask", KindTask, false},
		{"", KindTask, false},
		{" ExclusiveGateway ", KindExclusiveGateway, false},
		{"ParallelGateway", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseKind(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseKind(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseKind(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestDisplayName(t *testing.T) {
	g := Step{Kind: KindExclusiveGateway, Label: "check", Condition: "OK?"}
	if g.DisplayName() != "OK?" {
		t.Errorf("gateway name = %q", g.DisplayName())
	}
	g.Condition = " "
	if g.DisplayName() != "check" {
		t.Errorf("gateway fallback = %q", g.DisplayName())
	}
	task := Step{Kind: KindTask, Label: "Do", Condition: "ignored"}
	if task.DisplayName() != "Do" {
		t.Errorf("task name = %q", task.DisplayName())
	}
}

func TestTableAppend(t *testing.T) {
	var tbl Table
	id := tbl.Append(Step{Label: "x", Kind: KindTask, Lane: "A"})
	if id == "" {
		t.Fatal("Append returned empty id")
	}
	if tbl.Find(id) == nil {
		t.Error("Find did not locate appended step")
	}
	id2 := tbl.Append(Step{Label: "y", Kind: KindTask, Lane: "A"})
	if id2 == id {
		t.Error("ids must not be reused")
	}
	if got := tbl.Append(Step{ID: "fixed", Kind: KindTask, Lane: "B"}); got != "fixed" {
		t.Errorf("Append kept id = %q", got)
	}
	if lanes := tbl.Lanes(); len(lanes) != 2 || lanes[0] != "A" || lanes[1] != "B" {
		t.Errorf("Lanes() = %v", lanes)
	}
}
