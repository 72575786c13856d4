package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tnpagents/processmate/pkg/pipeline"
	"github.com/tnpagents/processmate/pkg/process"
)

// previewCommand creates the preview command for Graphviz renderings.
func (c *CLI) previewCommand() *cobra.Command {
	var (
		f      diagramFlags
		output string
		format string
	)

	cmd := &cobra.Command{
		Use:   "preview [table]",
		Short: "Render a quick Graphviz preview (SVG, PNG or DOT)",
		Long: `Render a process table as a Graphviz graph with one cluster per lane.

The preview is a sanity check of the flow (branches, dangling references,
lanes), not the BPMN layout: open the output of 'generate' in a BPMN modeler
for the real diagram.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := pipeline.ValidatePreviewFormat(format); err != nil {
				return err
			}
			return c.runPreview(cmd, args[0], &f, format, output)
		},
	}

	f.register(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file, - for stdout (default: <table>.<format>)")
	cmd.Flags().StringVarP(&format, "format", "f", pipeline.DefaultPreviewFormat, "output format: svg, png, dot")

	return cmd
}

func (c *CLI) runPreview(cmd *cobra.Command, input string, f *diagramFlags, format, output string) error {
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
	opts.PreviewFormat = format

	out := outputPath(output, input, "."+format)
	spinner := newSpinner(ctx, fmt.Sprintf("Rendering %s preview...", format))
	if out != "-" {
		spinner.Start()
	}
	data, hit, err := runner.PreviewWithCacheInfo(ctx, t.Steps, opts)
	if err != nil {
		spinner.StopWithError("Preview failed")
		return fmt.Errorf("render preview: %w", err)
	}
	spinner.Stop()

	if out == "-" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return fmt.Errorf("write output %s: %w", out, err)
	}

	printSuccess("Preview rendered")
	printFile(out)
	printStats(len(t.Steps), len(t.Lanes()), 0, hit)
	return nil
}
