package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/codesmith-dev/codesmith/pkg/bulkedit"
	"github.com/codesmith-dev/codesmith/pkg/patternset"
)

// NewValidateCommand creates the standalone validate command, a CLI-facing
// counterpart to the validate MCP tool for local pre-flight checks.
func NewValidateCommand() *cobra.Command {
	var (
		operationKind string
		pattern       string
		noColor       bool
	)

	cmd := &cobra.Command{
		Use:   "validate [file-patterns...]",
		Short: "Validate a prospective bulk-edit operation without applying it",
		Long: `Check a bulk-edit operation for conflicts or issues before applying it:
regex syntax, whether the file patterns resolve to anything, and whether
edit ranges are well-formed.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			if noColor {
				color.NoColor = true //nolint:reassign // intentional override of library global
			}

			resolver := patternset.New(slog.Default())
			engine := bulkedit.New(nil, nil, resolver, 1, slog.Default())

			issues := engine.Validate(bulkedit.ValidateRequest{
				OperationKind: operationKind,
				FilePatterns:  args,
				Pattern:       pattern,
			})

			return printValidateResult(issues)
		},
	}

	cmd.Flags().StringVar(&operationKind, "kind", "bulk_replace", "operation kind: bulk_replace, conditional_edit, batch_refactor, multi_file_edit")
	cmd.Flags().StringVar(&pattern, "pattern", "", "regex pattern to validate, if applicable")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "disable colored output")

	return cmd
}

func printValidateResult(issues []bulkedit.Issue) error {
	if len(issues) == 0 {
		color.New(color.FgGreen).Fprintln(os.Stdout, "no issues found")

		return nil
	}

	color.New(color.FgRed).Fprintf(os.Stdout, "%d issue(s) found:\n", len(issues))

	for _, issue := range issues {
		color.New(color.FgYellow).Fprintf(os.Stdout, "  - [%s] %s\n", issue.Severity, issue.Message)
	}

	return fmt.Errorf("validation found %d issue(s)", len(issues))
}
