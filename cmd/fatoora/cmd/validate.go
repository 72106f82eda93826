package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/rezonia/fatoora/internal/validation"
)

var validateCmd = &cobra.Command{
	Use:   "validate [files...]",
	Short: "Validate documents against the business rules",
	Long: `Validate one or more UBL documents against the sixteen ZATCA
business rules (BR-01 to BR-16).

Arguments may be files, glob patterns or directories; directories are
searched for .xml files. Files are checked in parallel. The command exits
non-zero when any document has an error.`,
	Example: `  fatoora validate invoice.xml
  fatoora validate invoices/ -f json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

// ValidationResult holds the result of validating a single file
type ValidationResult struct {
	File      string   `json:"file"`
	Valid     bool     `json:"valid"`
	Errors    []string `json:"errors,omitempty"`
	Warnings  []string `json:"warnings,omitempty"`
	ChecksRun int      `json:"checks_run"`
}

func runValidate(cmd *cobra.Command, args []string) error {
	files, err := collectFiles(args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no files found to validate")
	}
	log.Debug().Int("files", len(files)).Msg("validating")

	results := make([]*ValidationResult, len(files))
	err = forEachFile(cmd.Context(), files, func(_ context.Context, i int, file string) {
		results[i] = validateFile(file)
	})
	if err != nil {
		return err
	}

	if err := printValidation(cmd.OutOrStdout(), results); err != nil {
		return err
	}

	invalid := 0
	for _, r := range results {
		if !r.Valid {
			invalid++
		}
	}
	if invalid > 0 {
		return fmt.Errorf("validation failed for %d of %d files", invalid, len(results))
	}
	return nil
}

func validateFile(path string) *ValidationResult {
	data, err := os.ReadFile(path)
	if err != nil {
		return &ValidationResult{
			File:   path,
			Errors: []string{fmt.Sprintf("failed to read file: %v", err)},
		}
	}

	report := validation.Validate(data)
	return &ValidationResult{
		File:      path,
		Valid:     report.Valid,
		Errors:    report.ErrorMessages(),
		Warnings:  report.WarningMessages(),
		ChecksRun: report.ChecksRun,
	}
}

func printValidation(w io.Writer, results []*ValidationResult) error {
	if outputFormat == "json" {
		return writeJSON(w, results)
	}

	for _, r := range results {
		if r.Valid {
			fmt.Fprintf(w, "✓ %s: VALID\n", r.File)
		} else {
			fmt.Fprintf(w, "✗ %s: INVALID\n", r.File)
			for _, e := range r.Errors {
				fmt.Fprintf(w, "  - %s\n", e)
			}
		}
		for _, warning := range r.Warnings {
			fmt.Fprintf(w, "  ⚠ %s\n", warning)
		}
	}
	return nil
}
