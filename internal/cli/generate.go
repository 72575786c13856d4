package cli

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	perrors "github.com/tnpagents/processmate/pkg/errors"
	"github.com/tnpagents/processmate/pkg/pipeline"
	"github.com/tnpagents/processmate/pkg/process"
)

// bpmnExt is the extension of generated diagrams.
const bpmnExt = ".bpmn"

// generateFlags holds the command-line flags for the generate command.
type generateFlags struct {
	diagramFlags
	out   string // output file, "-" for stdout; single input only
	watch bool   // regenerate when an input changes
	jobs  int    // concurrent generations for multiple inputs
}

// generated is the outcome of one input file.
type generated struct {
	input  string
	output string
	result *pipeline.Result
}

// generateCommand creates the generate command.
func (c *CLI) generateCommand() *cobra.Command {
	f := generateFlags{jobs: runtime.NumCPU()}

	cmd := &cobra.Command{
		Use:   "generate [table...]",
		Short: "Generate BPMN XML from process tables",
		Long: `Generate BPMN 2.0 XML with diagram coordinates from one or more process
tables (JSON or YAML). Each <table>.json is written to <table>.bpmn unless
--out is given.

Branches that point to a missing step are redirected to a fallback end event
and reported as a warning; use --strict to fail instead.

Results are cached locally for faster subsequent runs.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.out != "" && len(args) > 1 {
				return perrors.New(perrors.ErrCodeInvalidInput, "--out requires a single input")
			}
			if f.watch {
				return c.runWatch(cmd, args, &f)
			}
			return c.runGenerate(cmd, args, &f)
		},
	}

	f.diagramFlags.register(cmd)
	cmd.Flags().StringVarP(&f.out, "out", "o", "", "output file, - for stdout (default: <table>.bpmn)")
	cmd.Flags().BoolVarP(&f.watch, "watch", "w", false, "regenerate when an input changes")
	cmd.Flags().IntVarP(&f.jobs, "jobs", "j", f.jobs, "concurrent generations")

	return cmd
}

// runGenerate generates every input. A single input shows a spinner; several
// inputs run concurrently and are reported once all are done.
func (c *CLI) runGenerate(cmd *cobra.Command, inputs []string, f *generateFlags) error {
	ctx := cmd.Context()
	runner, err := c.newRunner(ctx, f.noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	if len(inputs) == 1 {
		spinner := newSpinner(ctx, "Generating diagram...")
		if f.out != "-" {
			spinner.Start()
		}
		g, err := c.generateOne(ctx, cmd, runner, inputs[0], f)
		if err != nil {
			spinner.StopWithError("Generation failed")
			return err
		}
		spinner.Stop()
		if g.output != "-" {
			reportGenerated(g)
		}
		return nil
	}

	report := newBatchReport(loggerFromContext(ctx))
	results := make([]*generated, len(inputs))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(max(f.jobs, 1))
	for i, input := range inputs {
		eg.Go(func() error {
			g, err := c.generateOne(withInput(egCtx, input), cmd, runner, input, f)
			if err != nil {
				return fmt.Errorf("%s: %w", input, err)
			}
			report.record(g.result)
			results[i] = g
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	for _, g := range results {
		reportGenerated(g)
	}
	report.summary()
	return nil
}

// generateOne reads a table, generates its diagram and writes it out.
func (c *CLI) generateOne(ctx context.Context, cmd *cobra.Command, runner *pipeline.Runner, input string, f *generateFlags) (*generated, error) {
	t, err := process.ReadFile(input)
	if err != nil {
		return nil, err
	}

	opts := c.options(cmd, &f.diagramFlags, t)
	opts.Logger = loggerFromContext(ctx)
	res, err := runner.GenerateWithCacheInfo(ctx, t.Steps, opts)
	if err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	out := outputPath(f.out, input, bpmnExt)
	if out == "-" {
		_, err = fmt.Fprint(cmd.OutOrStdout(), res.XML)
	} else {
		err = os.WriteFile(out, []byte(res.XML), 0o644)
	}
	if err != nil {
		return nil, fmt.Errorf("write output %s: %w", out, err)
	}
	return &generated{input: input, output: out, result: res}, nil
}

func reportGenerated(g *generated) {
	s := g.result.Stats
	printSuccess("Generated %s", g.input)
	printFile(g.output)
	printStats(s.StepCount, s.LaneCount, s.FlowCount, g.result.CacheInfo.DiagramHit)
	d := g.result.Diagnostics
	if d.FallbackBranches > 0 {
		printWarning("%s", pipeline.FallbackMessage(d.FallbackBranches))
	}
	for _, ref := range d.Ignored {
		printDetail("ignored %s branch of %s: %s", ref.Branch, ref.StepID, ref.Reason)
	}
}
