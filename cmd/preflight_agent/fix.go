package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/jonathan/preflight-agent/internal/fixes"
	"github.com/jonathan/preflight-agent/internal/types"
	"github.com/spf13/cobra"
)

var fixCmd = &cobra.Command{
	Use:   "fix",
	Short: "Apply named fixes to a PDF",
	Long:  "Submits a fix job with the given fix names and downloads the fixed document.",
	RunE:  runFix,
}

var (
	fixInput  string
	fixNames  []string
	fixOutput string
)

func init() {
	fixCmd.Flags().StringVarP(&fixInput, "in", "i", "", "Path to PDF file (required)")
	fixCmd.Flags().StringSliceVarP(&fixNames, "fix", "f", nil, "Fix to apply, repeatable (required)")
	fixCmd.Flags().StringVarP(&fixOutput, "out", "o", "", "Path to write the fixed PDF (required)")

	for _, name := range []string{"in", "fix", "out"} {
		if err := fixCmd.MarkFlagRequired(name); err != nil {
			panic(fmt.Sprintf("failed to mark %s flag as required: %v", name, err))
		}
	}

	rootCmd.AddCommand(fixCmd)
}

// knownFix reports whether name is a catalog fix or an optional optimization.
func knownFix(name string) bool {
	if _, ok := fixes.BundleForFix(name); ok {
		return true
	}
	for _, o := range fixes.OptionalOptimizations() {
		if o == name {
			return true
		}
	}
	return false
}

// normalizeFixNames validates, deduplicates and sorts fix names.
func normalizeFixNames(names []string) ([]string, error) {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		if !knownFix(name) {
			return nil, fmt.Errorf("unknown fix: %q", name)
		}
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out, nil
}

func runFix(cmd *cobra.Command, _ []string) error {
	doc, err := types.OpenDocument(fixInput)
	if err != nil {
		return fmt.Errorf("PDF file not found: %s", fixInput)
	}
	names, err := normalizeFixNames(fixNames)
	if err != nil {
		return err
	}

	a, err := newApp(cmd, true, true)
	if err != nil {
		return err
	}
	defer a.Close()

	a.printer.PrintFixPlan(names, nil)

	ctx := cmd.Context()
	job, err := a.orch.Submit(ctx, types.JobKindFix, doc, map[string]any{"fixes": names})
	if err != nil {
		return fmt.Errorf("failed to submit fix job: %w", err)
	}
	job, err = a.orch.AwaitCompletion(ctx, job.ID, a.cfg.PollInterval(), a.cfg.JobTimeout())
	if err != nil {
		return fmt.Errorf("fix job failed: %w", err)
	}

	if err := ensureParentDir(fixOutput); err != nil {
		return err
	}
	f, err := os.Create(fixOutput)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	n, err := a.client.Download(ctx, job, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(fixOutput)
		return fmt.Errorf("failed to download fixed document: %w", err)
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Wrote fixed document to %s (%d bytes)\n", fixOutput, n)
	return nil
}
