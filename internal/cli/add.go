package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	perrors "github.com/tnpagents/processmate/pkg/errors"
	"github.com/tnpagents/processmate/pkg/process"
)

// addFlags holds the command-line flags for the add command.
type addFlags struct {
	id        string
	label     string
	kind      string
	lane      string
	condition string
	yes       string
	no        string
	tool      string
	after     string // predecessor whose branch should point to the new step
	branch    string // yes or no
	title     string // title of a newly created table
}

// addCommand creates the add command for appending a step to a table file.
func (c *CLI) addCommand() *cobra.Command {
	f := addFlags{branch: "yes"}

	cmd := &cobra.Command{
		Use:   "add [table]",
		Short: "Append a step to a process table",
		Long: `Append a step to a process table file, creating the file if needed.

The step gets a fresh id unless --id is given. With --after, the given
step's yes branch (or no branch with --branch no) is pointed at the new step.`,
		Example: `  processmate add achats.json --kind StartEvent --lane Demandeur --label "Besoin"
  processmate add achats.json --lane Achats --label "Valider" --after 3f2a...`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdd(args[0], &f)
		},
	}

	cmd.Flags().StringVar(&f.id, "id", "", "step id (default: generated)")
	cmd.Flags().StringVarP(&f.label, "label", "l", "", "step label")
	cmd.Flags().StringVarP(&f.kind, "kind", "k", string(process.KindTask), "kind: StartEvent, Task, ExclusiveGateway, EndEvent")
	cmd.Flags().StringVar(&f.lane, "lane", "", "actor or department (required)")
	cmd.Flags().StringVar(&f.condition, "condition", "", "gateway condition")
	cmd.Flags().StringVar(&f.yes, "yes", "", "id of the next step (yes branch)")
	cmd.Flags().StringVar(&f.no, "no", "", "id of the no-branch step (gateways)")
	cmd.Flags().StringVar(&f.tool, "tool", "", "tool annotation")
	cmd.Flags().StringVar(&f.after, "after", "", "link the new step from this step")
	cmd.Flags().StringVar(&f.branch, "branch", f.branch, "branch of --after to link: yes, no")
	cmd.Flags().StringVar(&f.title, "title", "", "title when creating a new table")
	_ = cmd.MarkFlagRequired("lane")

	return cmd
}

// runAdd appends the step described by f to the table at path.
func runAdd(path string, f *addFlags) error {
	t, err := process.ReadFile(path)
	switch {
	case perrors.Is(err, perrors.ErrCodeFileNotFound):
		t = &process.Table{Title: f.title}
	case err != nil:
		return err
	}

	id, err := addStep(t, f)
	if err != nil {
		return err
	}
	if err := process.WriteFile(path, t); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	printSuccess("Added step %s", id)
	printFile(path)
	printKeyValue("Steps", fmt.Sprint(len(t.Steps)))
	printKeyValue("Lanes", strings.Join(t.Lanes(), ", "))
	return nil
}

// addStep validates f against t, appends the step and links it from the
// --after step. It returns the new step id and leaves t unchanged on error.
func addStep(t *process.Table, f *addFlags) (string, error) {
	kind, err := process.ParseKind(f.kind)
	if err != nil {
		return "", perrors.Wrap(perrors.ErrCodeInvalidInput, err, "--kind")
	}
	if strings.TrimSpace(f.lane) == "" {
		return "", perrors.New(perrors.ErrCodeInvalidInput, "--lane is required")
	}
	if f.id != "" {
		if err := perrors.ValidateStepID(f.id); err != nil {
			return "", err
		}
		if t.Find(f.id) != nil {
			return "", perrors.New(perrors.ErrCodeDuplicateID, "step %q already exists", f.id)
		}
	}

	var pred *process.Step
	if f.after != "" {
		if pred = t.Find(f.after); pred == nil {
			return "", perrors.New(perrors.ErrCodeNotFound, "step %q not found", f.after)
		}
		if f.branch != "yes" && f.branch != "no" {
			return "", perrors.New(perrors.ErrCodeInvalidInput, "--branch must be yes or no (got %q)", f.branch)
		}
		if f.branch == "no" && pred.Kind != process.KindExclusiveGateway {
			return "", perrors.New(perrors.ErrCodeInvalidInput, "--branch no requires a gateway predecessor")
		}
	}

	id := t.Append(process.Step{
		ID:        f.id,
		Label:     f.label,
		Kind:      kind,
		Lane:      f.lane,
		Condition: f.condition,
		OnYes:     f.yes,
		OnNo:      f.no,
		Tool:      f.tool,
	})

	if f.after != "" {
		// Append may have moved the backing array.
		pred = t.Find(f.after)
		if f.branch == "no" {
			pred.OnNo = id
		} else {
			pred.OnYes = id
		}
	}
	return id, nil
}
