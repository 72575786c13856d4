package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tnpagents/processmate/pkg/cache"
	"github.com/tnpagents/processmate/pkg/config"
)

// cacheCommand creates the cache management command.
func (c *CLI) cacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the diagram cache",
	}

	cmd.AddCommand(c.cacheClearCommand())
	cmd.AddCommand(c.cacheStatsCommand())
	cmd.AddCommand(c.cachePathCommand())

	return cmd
}

// openFileCache opens the configured file cache, or returns nil when the
// backend is not the file cache or nothing has been cached yet.
func (c *CLI) openFileCache() (*cache.FileCache, error) {
	if c.cfg.Cache.Backend != config.BackendFile {
		printInfo("Cache backend is %q; only the file cache is managed here", c.cfg.Cache.Backend)
		return nil, nil
	}
	dir, err := c.cacheDir()
	if err != nil {
		return nil, fmt.Errorf("get cache dir: %w", err)
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		printInfo("Cache is empty")
		return nil, nil
	}
	return cache.NewFileCache(dir)
}

// cacheClearCommand creates the "cache clear" subcommand.
func (c *CLI) cacheClearCommand() *cobra.Command {
	var (
		kind    string
		expired bool
	)
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove cached diagrams and previews",
		Long: `Remove cached entries. By default every entry goes; --kind limits the
clear to diagrams or previews, and --expired only drops entries past their
time-to-live along with any that can no longer be read.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch kind {
			case "", cache.KindDiagram, cache.KindPreview:
			default:
				return fmt.Errorf("invalid --kind %q (want %s or %s)", kind, cache.KindDiagram, cache.KindPreview)
			}
			fc, err := c.openFileCache()
			if err != nil || fc == nil {
				return err
			}

			var n int
			if expired {
				n, err = fc.Prune()
			} else {
				n, err = fc.Clear(kind)
			}
			if err != nil {
				return fmt.Errorf("clear cache: %w", err)
			}

			what := "cached entries"
			if kind != "" {
				what = "cached " + kind + "s"
			}
			if expired {
				what = "expired entries"
			}
			printSuccess("Removed %d %s", n, what)
			printDetail("Directory: %s", fc.Dir())
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "only clear this kind: diagram, preview")
	cmd.Flags().BoolVar(&expired, "expired", false, "only remove expired or unreadable entries")
	cmd.MarkFlagsMutuallyExclusive("kind", "expired")
	return cmd
}

// cacheStatsCommand creates the "cache stats" subcommand.
func (c *CLI) cacheStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show cache usage per kind",
		RunE: func(cmd *cobra.Command, args []string) error {
			fc, err := c.openFileCache()
			if err != nil || fc == nil {
				return err
			}
			usage, err := fc.Stats()
			if err != nil {
				return fmt.Errorf("read cache: %w", err)
			}
			if len(usage) == 0 {
				printInfo("Cache is empty")
				return nil
			}
			w := cmd.OutOrStdout()
			for _, u := range usage {
				fmt.Fprintf(w, "%-8s %5d entries %10s", u.Kind, u.Entries, formatBytes(u.Bytes))
				if u.Expired > 0 {
					fmt.Fprintf(w, " (%d expired)", u.Expired)
				}
				fmt.Fprintln(w)
			}
			return nil
		},
	}
}

// cachePathCommand creates the "cache path" subcommand.
func (c *CLI) cachePathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the cache directory path",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := c.cacheDir()
			if err != nil {
				return fmt.Errorf("get cache dir: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), dir)
			return nil
		},
	}
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
