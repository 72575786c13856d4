package cli

import (
	"github.com/spf13/cobra"

	perrors "github.com/tnpagents/processmate/pkg/errors"
	"github.com/tnpagents/processmate/pkg/process"
)

// validateCommand creates the validate command.
func (c *CLI) validateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [table...]",
		Short: "Check process tables for problems generate would recover from",
		Long: `Run the strict checks on one or more process tables: required fields,
unique ids, successor references that resolve, gateways with a condition and
both branches, and at least one start event.

The command exits non-zero when any table has issues.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			failed := 0
			for _, input := range args {
				n, err := validateFile(input)
				if err != nil {
					return err
				}
				if n > 0 {
					failed++
				}
			}
			if failed > 0 {
				return perrors.New(perrors.ErrCodeInvalidInput, "%s failed validation", plural(failed, "table"))
			}
			return nil
		},
	}
}

// validateFile prints the issues of one table and returns their count.
func validateFile(input string) (int, error) {
	t, err := process.ReadFile(input)
	if err != nil {
		return 0, err
	}
	issues, _ := process.Validate(t)
	if len(issues) == 0 {
		printSuccess("%s: %s, no issues", input, plural(len(t.Steps), "step"))
		return 0, nil
	}
	printError("%s: %s", input, plural(len(issues), "issue"))
	for _, is := range issues {
		printDetail("%s", is.String())
	}
	return len(issues), nil
}
