package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

// watchDebounce coalesces the burst of events an editor emits on save.
const watchDebounce = 150 * time.Millisecond

// runWatch generates every input once, then regenerates an input each time
// it changes until the command context is cancelled.
func (c *CLI) runWatch(cmd *cobra.Command, inputs []string, f *generateFlags) error {
	ctx := cmd.Context()
	runner, err := c.newRunner(ctx, f.noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	regenerate := func(ctx context.Context, input string) error {
		g, err := c.generateOne(withInput(ctx, input), cmd, runner, input, f)
		if err != nil {
			printError("%s: %v", input, err)
			return nil
		}
		reportGenerated(g)
		return nil
	}

	for _, input := range inputs {
		if err := regenerate(ctx, input); err != nil {
			return err
		}
	}
	printInfo("Watching %s; press Ctrl+C to stop", plural(len(inputs), "file"))
	return watchFiles(ctx, c.Logger, inputs, watchDebounce, regenerate)
}

// watchFiles calls fn with the path of each input that is written or
// re-created, at most once per debounce window. The parent directories are
// watched rather than the files so that editors which save by renaming a
// temporary file keep being followed. It returns nil when ctx is done and
// stops early if fn returns an error.
func watchFiles(ctx context.Context, logger *log.Logger, inputs []string, debounce time.Duration, fn func(context.Context, string) error) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	defer w.Close()

	// Absolute path -> path as given on the command line.
	watched := make(map[string]string, len(inputs))
	dirs := make(map[string]bool)
	for _, in := range inputs {
		abs, err := filepath.Abs(in)
		if err != nil {
			return err
		}
		watched[abs] = in
		dir := filepath.Dir(abs)
		if dirs[dir] {
			continue
		}
		if err := w.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
		dirs[dir] = true
	}

	pending := make(map[string]bool)
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			in, ok := watched[filepath.Clean(ev.Name)]
			if !ok || !(ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)) {
				continue
			}
			logger.Debug("change detected", "file", in, "op", ev.Op.String())
			pending[in] = true
			fire = time.After(debounce)

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher error", "err", err)

		case <-fire:
			fire = nil
			changed := make([]string, 0, len(pending))
			for in := range pending {
				changed = append(changed, in)
			}
			sort.Strings(changed)
			clear(pending)
			for _, in := range changed {
				if err := fn(ctx, in); err != nil {
					return err
				}
			}
		}
	}
}
