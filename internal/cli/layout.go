package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tnpagents/processmate/pkg/bpmn/layout"
	"github.com/tnpagents/processmate/pkg/bpmn/route"
	"github.com/tnpagents/processmate/pkg/pipeline"
	"github.com/tnpagents/processmate/pkg/process"
)

// layoutDocument is the JSON written by the layout command.
type layoutDocument struct {
	Title       string               `json:"title"`
	Layout      *layout.Layout       `json:"layout"`
	Paths       []route.Path         `json:"paths"`
	Diagnostics pipeline.Diagnostics `json:"diagnostics"`
}

// layoutCommand creates the layout command for exporting diagram geometry.
func (c *CLI) layoutCommand() *cobra.Command {
	var (
		f      diagramFlags
		output string
	)

	cmd := &cobra.Command{
		Use:   "layout [table]",
		Short: "Compute lane, node and connector geometry as JSON",
		Long: `Compute the diagram geometry of a process table without serializing BPMN.

The output holds the lane bounds, the position of every step, the routed
connector waypoints with their label anchors, and the diagnostics (fallback
branches, ignored references, validation issues). It is the same geometry
'generate' writes into the BPMN diagram section.

Results are cached locally for faster subsequent runs.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runLayout(cmd, args[0], &f, output)
		},
	}

	f.register(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file, - for stdout (default: <table>.layout.json)")

	return cmd
}

// runLayout loads the table, computes the layout, and writes output.
func (c *CLI) runLayout(cmd *cobra.Command, input string, f *diagramFlags, output string) error {
	ctx := cmd.Context()
	t, err := process.ReadFile(input)
	if err != nil {
		return fmt.Errorf("load table %s: %w", input, err)
	}

	runner, err := c.newRunner(ctx, f.noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	opts := c.options(cmd, f, t)
	res, err := runner.GenerateWithCacheInfo(ctx, t.Steps, opts)
	if err != nil {
		return fmt.Errorf("compute layout: %w", err)
	}

	data, err := json.MarshalIndent(layoutDocument{
		Title:       opts.Title,
		Layout:      res.Layout,
		Paths:       res.Paths,
		Diagnostics: res.Diagnostics,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode layout: %w", err)
	}
	data = append(data, '\n')

	out := outputPath(output, input, ".layout.json")
	if out == "-" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return fmt.Errorf("write output %s: %w", out, err)
	}

	printSuccess("Layout complete")
	printFile(out)
	printStats(res.Stats.StepCount, res.Stats.LaneCount, res.Stats.FlowCount, res.CacheInfo.DiagramHit)
	printNewline()
	printNextStep("Preview", appName+" preview "+input)

	return nil
}
