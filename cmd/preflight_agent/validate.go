package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/jonathan/preflight-agent/internal/aggregation"
	"github.com/jonathan/preflight-agent/internal/report"
	"github.com/jonathan/preflight-agent/internal/schemas"
	"github.com/jonathan/preflight-agent/internal/types"
	"github.com/jonathan/preflight-agent/internal/viewer"
	embedded "github.com/jonathan/preflight-agent/schemas"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Run a preflight check on a PDF",
	Long:  "Uploads a PDF to the Processing API, waits for the preflight result and prints the issue summary.",
	RunE:  runValidate,
}

var (
	validateInput  string
	validateOutput string
	validateXLSX   string
	validatePlan   string
)

func init() {
	validateCmd.Flags().StringVarP(&validateInput, "in", "i", "", "Path to PDF file (required)")
	validateCmd.Flags().StringVarP(&validateOutput, "out", "o", "", "Path to write the validation result JSON (optional)")
	validateCmd.Flags().StringVar(&validateXLSX, "xlsx", "", "Path to write an XLSX issue report (optional)")
	validateCmd.Flags().StringVar(&validatePlan, "overlays", "", "Path to write the per-page overlay plan JSON for a viewer (optional)")

	if err := validateCmd.MarkFlagRequired("in"); err != nil {
		panic(fmt.Sprintf("failed to mark in flag as required: %v", err))
	}

	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, _ []string) error {
	doc, err := types.OpenDocument(validateInput)
	if err != nil {
		return fmt.Errorf("PDF file not found: %s", validateInput)
	}

	a, err := newApp(cmd, true, true)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	job, err := a.orch.Submit(ctx, types.JobKindValidate, doc, nil)
	if err != nil {
		return fmt.Errorf("failed to submit preflight: %w", err)
	}
	job, err = a.orch.AwaitCompletion(ctx, job.ID, a.cfg.PollInterval(), a.cfg.JobTimeout())
	if err != nil {
		return fmt.Errorf("preflight failed: %w", err)
	}

	result, err := a.client.FetchResults(ctx, job.ResultID)
	if err != nil {
		return fmt.Errorf("failed to fetch preflight results: %w", err)
	}
	result.IssuesByCategory = aggregation.NormalizeCategories(result.IssuesByCategory)
	summary := aggregation.AggregateSingle(result)
	a.printer.PrintValidationSummary(summary)

	if validateOutput != "" {
		if err := writeResultJSON(validateOutput, result); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Wrote validation result to %s\n", validateOutput)
	}

	if validateXLSX != "" {
		if err := ensureParentDir(validateXLSX); err != nil {
			return err
		}
		if err := report.NewExporter(a.logger).SaveXLSX(report.Input{Summary: summary}, validateXLSX); err != nil {
			return fmt.Errorf("failed to write XLSX report: %w", err)
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Wrote XLSX report to %s\n", validateXLSX)
	}

	if validatePlan != "" {
		if err := writeOverlayPlan(cmd.Context(), validatePlan, doc, result.AllIssues()); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Wrote overlay plan to %s\n", validatePlan)
	}
	return nil
}

func writeOverlayPlan(ctx context.Context, path string, doc types.Document, issues []types.Issue) error {
	if err := ensureParentDir(path); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create overlay plan: %w", err)
	}
	defer func() { _ = f.Close() }()

	var v viewer.Viewer = viewer.JSONViewer{Out: f}
	if err := v.Render(ctx, doc, viewer.BuildOverlays(issues)); err != nil {
		return fmt.Errorf("failed to write overlay plan: %w", err)
	}
	return nil
}

// writeResultJSON writes the result and checks it against its schema. A schema
// mismatch is reported as a warning only.
func writeResultJSON(path string, result *types.ValidationResult) error {
	if err := ensureParentDir(path); err != nil {
		return err
	}
	jsonBytes, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal validation result: %w", err)
	}
	if err := os.WriteFile(path, jsonBytes, 0644); err != nil {
		return fmt.Errorf("failed to write validation result: %w", err)
	}

	if err := schemas.ValidatePayload(embedded.ValidationResult, jsonBytes); err != nil {
		var validationErr *schemas.ValidationError
		if errors.As(err, &validationErr) {
			_, _ = fmt.Fprintf(os.Stderr, "Warning: written result does not validate against schema: %v\n", err)
		} else {
			_, _ = fmt.Fprintf(os.Stderr, "Warning: could not validate written result: %v\n", err)
		}
	}
	return nil
}
