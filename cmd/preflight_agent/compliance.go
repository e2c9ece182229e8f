package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/jonathan/preflight-agent/internal/aggregation"
	"github.com/jonathan/preflight-agent/internal/processing"
	"github.com/jonathan/preflight-agent/internal/report"
	"github.com/jonathan/preflight-agent/internal/types"
	"github.com/spf13/cobra"
)

var complianceCmd = &cobra.Command{
	Use:   "compliance",
	Short: "Check a PDF against one or more compliance standards",
	Long: "Runs one compliance validation per standard in parallel (PDF/A, PDF/UA, WCAG, ...) " +
		"and reports each verdict plus the overall result.",
	RunE: runCompliance,
}

var (
	complianceInput     string
	complianceStandards []string
	complianceOutput    string
	complianceXLSX      string
	complianceStrict    bool
)

func init() {
	complianceCmd.Flags().StringVarP(&complianceInput, "in", "i", "", "Path to PDF file (required)")
	complianceCmd.Flags().StringSliceVarP(&complianceStandards, "standard", "s", nil, "Standard to check, repeatable (default from config)")
	complianceCmd.Flags().StringVarP(&complianceOutput, "out", "o", "", "Path to write the per-standard results JSON (optional)")
	complianceCmd.Flags().StringVar(&complianceXLSX, "xlsx", "", "Path to write an XLSX compliance report (optional)")
	complianceCmd.Flags().BoolVar(&complianceStrict, "strict", false, "Exit with an error when the document is not compliant")

	if err := complianceCmd.MarkFlagRequired("in"); err != nil {
		panic(fmt.Sprintf("failed to mark in flag as required: %v", err))
	}

	rootCmd.AddCommand(complianceCmd)
}

func runCompliance(cmd *cobra.Command, _ []string) error {
	doc, err := types.OpenDocument(complianceInput)
	if err != nil {
		return fmt.Errorf("PDF file not found: %s", complianceInput)
	}

	a, err := newApp(cmd, true, true)
	if err != nil {
		return err
	}
	defer a.Close()

	standards := complianceStandards
	if len(standards) == 0 {
		standards = a.cfg.Standards
	}
	if len(standards) == 0 {
		return fmt.Errorf("no compliance standards given: use --standard or set standards in config")
	}

	runner := &processing.ComplianceRunner{
		Orchestrator: a.orch,
		Client:       a.client,
		Interval:     a.cfg.PollInterval(),
		Timeout:      a.cfg.JobTimeout(),
	}
	results, err := runner.Run(cmd.Context(), doc, standards)
	if err != nil {
		return fmt.Errorf("compliance check failed: %w", err)
	}

	summary := aggregation.AggregateMultiStandard(results)
	a.printer.PrintComplianceSummary(summary)

	if complianceOutput != "" {
		if err := ensureParentDir(complianceOutput); err != nil {
			return err
		}
		jsonBytes, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal compliance results: %w", err)
		}
		if err := os.WriteFile(complianceOutput, jsonBytes, 0644); err != nil {
			return fmt.Errorf("failed to write compliance results: %w", err)
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Wrote compliance results to %s\n", complianceOutput)
	}

	if complianceXLSX != "" {
		if err := ensureParentDir(complianceXLSX); err != nil {
			return err
		}
		in := report.Input{
			Summary:    aggregation.Summary{FileName: doc.Name},
			Compliance: results,
		}
		if err := report.NewExporter(a.logger).SaveXLSX(in, complianceXLSX); err != nil {
			return fmt.Errorf("failed to write XLSX report: %w", err)
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Wrote XLSX report to %s\n", complianceXLSX)
	}

	if complianceStrict && !summary.OverallCompliant {
		return fmt.Errorf("document is not compliant with %d standard(s)", countFailing(results))
	}
	return nil
}

func countFailing(results types.MultiStandardResult) int {
	n := 0
	for _, r := range results {
		if !r.IsCompliant {
			n++
		}
	}
	return n
}
