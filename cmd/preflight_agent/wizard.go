package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/jonathan/preflight-agent/internal/fixes"
	"github.com/jonathan/preflight-agent/internal/types"
	"github.com/jonathan/preflight-agent/internal/wizard"
	"github.com/spf13/cobra"
)

var wizardCmd = &cobra.Command{
	Use:   "wizard",
	Short: "Run the full upload, preflight and fix workflow on a PDF",
	Long: `Walks a document through the wizard steps:
  1. Upload the PDF
  2. OCR (Pro, optional)
  3. Redaction (Pro, optional)
  4. Preflight check
  5. Apply fixes for the selected issues

Produced documents are written to --out-dir.`,
	RunE: runWizard,
}

var (
	wizardInput     string
	wizardPro       bool
	wizardOCR       bool
	wizardRedact    bool
	wizardSelect    string
	wizardOptimize  []string
	wizardOutputDir string
)

func init() {
	wizardCmd.Flags().StringVarP(&wizardInput, "in", "i", "", "Path to PDF file (required)")
	wizardCmd.Flags().BoolVar(&wizardPro, "pro", false, "Enable Pro steps (OCR and redaction)")
	wizardCmd.Flags().BoolVar(&wizardOCR, "ocr", false, "Run OCR instead of skipping it (requires --pro)")
	wizardCmd.Flags().BoolVar(&wizardRedact, "redact", false, "Run redaction instead of skipping it (requires --pro)")
	wizardCmd.Flags().StringVar(&wizardSelect, "select", "fixable", "Issues to fix: fixable, all, none, or a comma-separated list of issue ids")
	wizardCmd.Flags().StringSliceVar(&wizardOptimize, "optimize", nil, "Optional optimization to apply, repeatable (compress_images, optimize_file)")
	wizardCmd.Flags().StringVarP(&wizardOutputDir, "out-dir", "o", "output", "Directory for produced documents")

	if err := wizardCmd.MarkFlagRequired("in"); err != nil {
		panic(fmt.Sprintf("failed to mark in flag as required: %v", err))
	}

	rootCmd.AddCommand(wizardCmd)
}

// selectIssues builds the fix selection named by the --select value.
func selectIssues(value string, issues []types.Issue) fixes.Selection {
	switch strings.TrimSpace(value) {
	case "", "fixable":
		return fixes.SelectFixable(issues)
	case "none":
		return fixes.NewSelection()
	case "all":
		s := fixes.NewSelection()
		for _, issue := range issues {
			s.Add(issue.ID)
		}
		return s
	}
	s := fixes.NewSelection()
	for _, id := range strings.Split(value, ",") {
		if id = strings.TrimSpace(id); id != "" {
			s.Add(id)
		}
	}
	return s
}

func runWizard(cmd *cobra.Command, _ []string) error {
	if (wizardOCR || wizardRedact) && !wizardPro {
		return fmt.Errorf("--ocr and --redact require --pro")
	}
	doc, err := types.OpenDocument(wizardInput)
	if err != nil {
		return fmt.Errorf("PDF file not found: %s", wizardInput)
	}

	a, err := newApp(cmd, true, true)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := os.MkdirAll(wizardOutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	out := cmd.OutOrStdout()
	runner := &wizard.Runner{
		Machine:      wizard.New(wizard.DefaultSteps(), wizard.Entitlement{ProOrTeam: wizardPro}, a.logger),
		Orchestrator: a.orch,
		Processor:    a.client,
		Interval:     a.cfg.PollInterval(),
		Timeout:      a.cfg.JobTimeout(),
		WorkDir:      wizardOutputDir,
		Logger:       a.logger,
		OnSubmit:     a.printer.PrintJob,
	}

	_, _ = fmt.Fprintf(out, "Step: %s\n", wizard.StepUpload)
	if err := runner.Start(doc); err != nil {
		return fmt.Errorf("failed to start wizard: %w", err)
	}

	ctx := cmd.Context()
	for !runner.Machine.Done() {
		step := runner.Machine.Current()
		_, _ = fmt.Fprintf(out, "Step: %s\n", step)

		switch step {
		case wizard.StepOCR:
			if !wizardOCR {
				err = runner.Machine.Skip(step)
				break
			}
			_, err = runner.RunOCR(ctx, nil)

		case wizard.StepRedaction:
			if !wizardRedact {
				err = runner.Machine.Skip(step)
				break
			}
			_, err = runner.RunRedaction(ctx, nil)

		case wizard.StepPreflight:
			var pre wizard.PreflightOutput
			pre, err = runner.RunPreflight(ctx, nil)
			if err == nil {
				a.printer.PrintValidationSummary(pre.Summary)
			}

		case wizard.StepFixes:
			var issues []types.Issue
			if o, ok := runner.Machine.Output(wizard.StepPreflight); ok {
				if pre, ok := o.(wizard.PreflightOutput); ok {
					issues = pre.Issues()
				}
			}
			selection := selectIssues(wizardSelect, issues)
			if runner.Machine.State().Mode == wizard.ModeNoOp {
				selection = fixes.NewSelection()
			}
			fixTypes, unmapped := selection.FixTypes(issues)
			if len(fixTypes) == 0 && len(wizardOptimize) == 0 {
				_, _ = fmt.Fprintln(out, "No fixes to apply.")
				_, err = runner.Finish()
				break
			}
			a.printer.PrintFixPlan(fixTypes, unmapped)

			var fixed wizard.FixOutput
			fixed, err = runner.RunFixes(ctx, selection, wizardOptimize)
			if err == nil && fixed.Document != nil {
				_, _ = fmt.Fprintf(out, "Wrote fixed document to %s\n", fixed.Document.Path)
			}

		default:
			return fmt.Errorf("unexpected wizard step: %s", step)
		}

		if err != nil {
			return fmt.Errorf("wizard step %s failed: %w", step, err)
		}
	}

	_, _ = fmt.Fprintln(out, "Wizard finished.")
	return nil
}
