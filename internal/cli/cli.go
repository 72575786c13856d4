// Package cli implements the processmate command-line interface.
//
// The commands turn process tables (JSON or YAML files) into BPMN 2.0 XML,
// layout JSON and Graphviz previews, inspect and edit tables, and run the
// HTTP API. The CLI is built using cobra and logs with charmbracelet/log.
//
// # Commands
//
//   - generate: BPMN XML for one or more tables (--watch regenerates on change)
//   - layout: lane, node and connector geometry as JSON
//   - preview: Graphviz SVG, PNG or DOT
//   - inspect: interactive table browser (--plain prints a table)
//   - validate: strict validation report
//   - add: append a step to a table file
//   - serve: HTTP API
//   - cache: manage the diagram cache
//   - completion: shell completion scripts
//
// # Configuration
//
// Defaults come from the TOML file at --config, or
// $XDG_CONFIG_HOME/processmate/config.toml when present. Flags override it.
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging. The logger is
// passed through context.Context and into the pipeline runner.
package cli

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/tnpagents/processmate/pkg/buildinfo"
	"github.com/tnpagents/processmate/pkg/config"
	"github.com/tnpagents/processmate/pkg/pipeline"
	"github.com/tnpagents/processmate/pkg/process"
)

// =============================================================================
// Constants
// =============================================================================

// appName is the application name used for directories and display.
const appName = config.AppName

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	configPath string
	cfg        config.Config
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: newLogger(w, level),
		cfg:    config.Default(),
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "ProcessMate turns process tables into BPMN diagrams",
		Long: `ProcessMate turns a flat table of process steps (actor, kind, yes/no
successors, tool) into a BPMN 2.0 document with swimlanes, routed connectors
and branch labels, ready to open in any BPMN modeler.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := c.loadConfig(); err != nil {
				return err
			}
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default: $XDG_CONFIG_HOME/processmate/config.toml)")

	root.AddCommand(c.generateCommand())
	root.AddCommand(c.layoutCommand())
	root.AddCommand(c.previewCommand())
	root.AddCommand(c.inspectCommand())
	root.AddCommand(c.validateCommand())
	root.AddCommand(c.addCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// loadConfig reads the configuration file into c.cfg.
func (c *CLI) loadConfig() error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	c.cfg = cfg
	c.Logger.Debug("configuration loaded", "path", c.configPath, "cache", cfg.Cache.Backend, "store", cfg.Store.Backend)
	return nil
}

// =============================================================================
// Runner Factory
// =============================================================================

// newRunner creates a pipeline runner backed by the configured cache.
func (c *CLI) newRunner(ctx context.Context, noCache bool) (*pipeline.Runner, error) {
	ch, keyer, err := c.cfg.Cache.Open(ctx, noCache)
	if err != nil {
		return nil, err
	}
	return pipeline.NewRunner(ch, keyer, c.Logger), nil
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the file cache directory (~/.cache/processmate/ by default).
func (c *CLI) cacheDir() (string, error) {
	return c.cfg.Cache.CacheDir()
}

// outputPath derives an output file from the input file: the extension is
// replaced by ext. A non-empty out wins.
func outputPath(out, input, ext string) string {
	if out != "" {
		return out
	}
	return strings.TrimSuffix(input, filepath.Ext(input)) + ext
}

// =============================================================================
// Options Helpers
// =============================================================================

// diagramFlags are the generation flags shared by generate, layout and preview.
type diagramFlags struct {
	title    string
	noColors bool
	strict   bool
	noCache  bool
	refresh  bool
}

func (f *diagramFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.title, "title", "", "diagram title (default: table title, then config)")
	cmd.Flags().BoolVar(&f.noColors, "no-colors", false, "omit lane colours")
	cmd.Flags().BoolVar(&f.strict, "strict", false, "fail on validation issues instead of recovering")
	cmd.Flags().BoolVar(&f.noCache, "no-cache", false, "disable caching")
	cmd.Flags().BoolVar(&f.refresh, "refresh", false, "ignore cached results and regenerate")
}

// options layers config defaults, the table title and flags, in that order.
func (c *CLI) options(cmd *cobra.Command, f *diagramFlags, t *process.Table) pipeline.Options {
	d := c.cfg.Diagram
	opts := pipeline.Options{
		Title:    d.Title,
		NoColors: d.NoColors,
		Strict:   d.Strict,
		Layout:   c.cfg.Layout,
		Refresh:  f.refresh,
		Logger:   c.Logger,
	}
	if t != nil && t.Title != "" {
		opts.Title = t.Title
	}
	if f.title != "" {
		opts.Title = f.title
	}
	if cmd.Flags().Changed("no-colors") {
		opts.NoColors = f.noColors
	}
	if cmd.Flags().Changed("strict") {
		opts.Strict = f.strict
	}
	return opts
}
