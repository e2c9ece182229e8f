package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/jonathan/preflight-agent/internal/db"
	"github.com/jonathan/preflight-agent/internal/types"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded jobs",
	Long:  "Lists job snapshots recorded in the job history database, newest first. Requires DATABASE_URL or database_url in config.",
	RunE:  runHistory,
}

var (
	historyKind   string
	historyStatus string
	historyLimit  int
	historyJSON   bool
	historyPrune  time.Duration
)

func init() {
	historyCmd.Flags().StringVar(&historyKind, "kind", "", "Only list jobs of this kind (validate, fix, ocr, redact, convert)")
	historyCmd.Flags().StringVar(&historyStatus, "status", "", "Only list jobs in this status")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", db.DefaultListLimit, "Maximum number of jobs to list")
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "Print records as JSON")
	historyCmd.Flags().DurationVar(&historyPrune, "prune-older-than", 0, "Delete records created before now minus this duration instead of listing")

	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, _ []string) error {
	if historyKind != "" && !types.JobKind(historyKind).Valid() {
		return fmt.Errorf("invalid kind: %q", historyKind)
	}
	if historyLimit <= 0 {
		return fmt.Errorf("--limit must be positive")
	}

	a, err := newApp(cmd, true, true)
	if err != nil {
		return err
	}
	defer a.Close()
	if a.history == nil {
		return fmt.Errorf("job history requires a database: set DATABASE_URL or database_url in config")
	}

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if historyPrune > 0 {
		n, err := a.history.DeleteJobsBefore(ctx, time.Now().Add(-historyPrune))
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(out, "Deleted %d job record(s)\n", n)
		return nil
	}

	records, err := a.history.ListJobs(ctx, db.JobFilters{
		Kind:   historyKind,
		Status: historyStatus,
		Limit:  historyLimit,
	})
	if err != nil {
		return err
	}

	if historyJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}

	if len(records) == 0 {
		_, _ = fmt.Fprintln(out, "No jobs recorded.")
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "JOB ID\tKIND\tSTATUS\tPROGRESS\tCREATED\tERROR")
	for _, r := range records {
		errMsg := ""
		if r.ErrorMessage != nil {
			errMsg = *r.ErrorMessage
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%d%%\t%s\t%s\n",
			r.JobID, r.Kind, r.Status, r.Progress, r.CreatedAt.Format(time.RFC3339), errMsg)
	}
	return tw.Flush()
}
