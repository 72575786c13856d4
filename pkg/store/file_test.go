package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	perrors "github.com/tnpagents/processmate/pkg/errors"
	"github.com/tnpagents/processmate/pkg/process"
)

func sampleTable() *process.Table {
	return &process.Table{
		Title: "Achats",
		Steps: []process.Step{
			{ID: "s", Label: "Start", Kind: process.KindStartEvent, Lane: "A", OnYes: "t"},
			{ID: "t", Label: "Commander", Kind: process.KindTask, Lane: "A", OnYes: "e", Tool: "ERP"},
			{ID: "e", Label: "Fin", Kind: process.KindEndEvent, Lane: "B"},
		},
	}
}

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	return s
}

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	tbl := sampleTable()
	if err := s.Save(ctx, tbl); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if tbl.ID == "" {
		t.Fatal("Save should assign an id")
	}
	if tbl.UpdatedAt.IsZero() {
		t.Error("Save should set UpdatedAt")
	}

	got, err := s.Get(ctx, tbl.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Title != "Achats" || len(got.Steps) != 3 {
		t.Errorf("Get = %+v", got)
	}
	if got.Steps[1] != tbl.Steps[1] {
		t.Errorf("step = %+v, want %+v", got.Steps[1], tbl.Steps[1])
	}
	if !got.UpdatedAt.Equal(tbl.UpdatedAt) {
		t.Errorf("UpdatedAt = %v, want %v", got.UpdatedAt, tbl.UpdatedAt)
	}
}

func TestFileStoreReplace(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	tbl := sampleTable()
	tbl.ID = "achats"
	if err := s.Save(ctx, tbl); err != nil {
		t.Fatal(err)
	}
	tbl.Title = "Achats v2"
	tbl.Steps = tbl.Steps[:2]
	if err := s.Save(ctx, tbl); err != nil {
		t.Fatal(err)
	}

	got, err := s.Get(ctx, "achats")
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "Achats v2" || len(got.Steps) != 2 {
		t.Errorf("replace not applied: %+v", got)
	}
}

func TestFileStoreList(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	for i, id := range []string{"old", "new", "mid"} {
		offset := map[string]time.Duration{"old": 0, "mid": time.Hour, "new": 2 * time.Hour}[id]
		s.now = func() time.Time { return base.Add(offset) }
		tbl := sampleTable()
		tbl.ID = id
		tbl.Steps = tbl.Steps[:i+1]
		if err := s.Save(ctx, tbl); err != nil {
			t.Fatal(err)
		}
	}
	// Stray files are skipped.
	if err := os.WriteFile(filepath.Join(s.Path(), "notes.txt"), []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(s.Path(), "broken.json"), []byte("{"), 0600); err != nil {
		t.Fatal(err)
	}

	list, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("List = %d entries, want 3: %+v", len(list), list)
	}
	wantOrder := []string{"new", "mid", "old"}
	for i, sum := range list {
		if sum.ID != wantOrder[i] {
			t.Errorf("list[%d] = %s, want %s", i, sum.ID, wantOrder[i])
		}
	}
	if list[0].Steps != 2 {
		t.Errorf("new.Steps = %d, want 2", list[0].Steps)
	}
}

func TestFileStoreNotFound(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if _, err := s.Get(ctx, "missing"); !perrors.Is(err, perrors.ErrCodeNotFound) {
		t.Errorf("Get err = %v, want NOT_FOUND", err)
	}
	if err := s.Delete(ctx, "missing"); !perrors.Is(err, perrors.ErrCodeNotFound) {
		t.Errorf("Delete err = %v, want NOT_FOUND", err)
	}
}

func TestFileStoreDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	tbl := sampleTable()
	if err := s.Save(ctx, tbl); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, tbl.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, tbl.ID); !perrors.Is(err, perrors.ErrCodeNotFound) {
		t.Errorf("Get after Delete err = %v", err)
	}
}

func TestFileStoreRejectsUnsafeIDs(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for _, id := range []string{"../escape", "a/b", ".hidden", "white space"} {
		tbl := sampleTable()
		tbl.ID = id
		if err := s.Save(ctx, tbl); !perrors.Is(err, perrors.ErrCodeInvalidInput) {
			t.Errorf("Save(%q) err = %v, want INVALID_INPUT", id, err)
		}
		if _, err := s.Get(ctx, id); !perrors.Is(err, perrors.ErrCodeInvalidInput) {
			t.Errorf("Get(%q) err = %v, want INVALID_INPUT", id, err)
		}
	}
	if err := s.Save(ctx, nil); !perrors.Is(err, perrors.ErrCodeInvalidInput) {
		t.Errorf("Save(nil) err = %v", err)
	}
}

func TestNewTableID(t *testing.T) {
	a, b := NewTableID(), NewTableID()
	if a == b {
		t.Error("ids should be unique")
	}
	if err := perrors.ValidateProcessID(a); err != nil {
		t.Errorf("generated id %q is not a valid process id: %v", a, err)
	}
}
