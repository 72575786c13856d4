package cli

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

func TestWatchFilesReportsChanges(t *testing.T) {
	dir := t.TempDir()
	watched := writeTable(t, dir, "a.json", exampleTable)
	other := writeTable(t, dir, "other.json", exampleTable)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan string, 8)
	errc := make(chan error, 1)
	go func() {
		errc <- watchFiles(ctx, log.New(io.Discard), []string{watched}, 20*time.Millisecond, func(_ context.Context, in string) error {
			changes <- in
			return nil
		})
	}()

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(other, []byte("[]"), 0o644); err != nil {
		t.Fatal(err)
	}
	for range 3 {
		if err := os.WriteFile(watched, []byte(danglingTable), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	select {
	case got := <-changes:
		if got != watched {
			t.Errorf("changed = %q, want %q", got, watched)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}

	// The burst of writes is coalesced into one call.
	select {
	case got := <-changes:
		t.Errorf("unexpected second change %q", got)
	case <-time.After(200 * time.Millisecond):
	}

	cancel()
	select {
	case err := <-errc:
		if err != nil {
			t.Errorf("watchFiles returned %v after cancel", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("watchFiles did not stop after cancel")
	}
}

func TestWatchFilesStopsOnCallbackError(t *testing.T) {
	dir := t.TempDir()
	watched := writeTable(t, dir, "a.json", exampleTable)
	boom := errors.New("boom")

	errc := make(chan error, 1)
	go func() {
		errc <- watchFiles(context.Background(), log.New(io.Discard), []string{watched}, 10*time.Millisecond, func(context.Context, string) error {
			return boom
		})
	}()

	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(watched, []byte(exampleTable), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case err := <-errc:
		if !errors.Is(err, boom) {
			t.Errorf("err = %v, want boom", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("watchFiles did not return the callback error")
	}
}

func TestWatchFilesMissingDir(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope", "a.json")
	err := watchFiles(context.Background(), log.New(io.Discard), []string{missing}, time.Millisecond, func(context.Context, string) error {
		return nil
	})
	if err == nil {
		t.Error("expected an error watching a missing directory")
	}
}
