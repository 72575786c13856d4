package cli

import (
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/tnpagents/processmate/pkg/process"
)

// inspectCommand creates the inspect command.
func (c *CLI) inspectCommand() *cobra.Command {
	var plain bool

	cmd := &cobra.Command{
		Use:   "inspect [table]",
		Short: "Browse a process table",
		Long: `Browse a process table in the terminal: steps with their lanes, resolved
successors and validation issues. Follow branches with n (yes) and N (no).

With --plain the table is printed once, which suits pipes and CI logs.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := process.ReadFile(args[0])
			if err != nil {
				return err
			}
			issues, _ := process.Validate(t)
			if plain {
				return printPlainTable(cmd.OutOrStdout(), t, issues)
			}
			_, err = tea.NewProgram(NewInspectModel(t, issues), tea.WithContext(cmd.Context())).Run()
			return err
		},
	}

	cmd.Flags().BoolVar(&plain, "plain", false, "print the table instead of the interactive view")

	return cmd
}

// printPlainTable writes t as a bordered table followed by its issues.
func printPlainTable(w io.Writer, t *process.Table, issues []process.Issue) error {
	if t.Title != "" {
		fmt.Fprintln(w, StyleTitle.Render(t.Title))
	}
	fmt.Fprintln(w, stepTable(t, issuesByStep(issues), 0, len(t.Steps), -1).Render())
	fmt.Fprintln(w, StyleDim.Render(fmt.Sprintf("  %s · %s", plural(len(t.Steps), "step"), plural(len(t.Lanes()), "lane"))))
	for _, is := range issues {
		fmt.Fprintln(w, StyleWarning.Render(iconWarning+" "+is.String()))
	}
	return nil
}
