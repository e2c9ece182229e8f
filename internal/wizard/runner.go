package wizard

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jonathan/preflight-agent/internal/aggregation"
	"github.com/jonathan/preflight-agent/internal/fixes"
	"github.com/jonathan/preflight-agent/internal/jobs"
	"github.com/jonathan/preflight-agent/internal/types"
)

// Processor retrieves what completed jobs produced.
type Processor interface {
	FetchResults(ctx context.Context, resultID string) (*types.ValidationResult, error)
	Download(ctx context.Context, job types.Job, w io.Writer) (int64, error)
}

// JobOutput is the output of a step backed by a document-producing job.
type JobOutput struct {
	Job      types.Job       `json:"job"`
	Document *types.Document `json:"document,omitempty"`
}

// PreflightOutput is the output of the preflight step.
type PreflightOutput struct {
	JobID   string                  `json:"jobId"`
	Result  *types.ValidationResult `json:"result"`
	Summary aggregation.Summary     `json:"summary"`
}

// IssueCount counts the issues actually present in the result.
func (p PreflightOutput) IssueCount() int {
	return len(p.Result.AllIssues())
}

// Issues returns every issue of the result in category order.
func (p PreflightOutput) Issues() []types.Issue {
	return p.Result.AllIssues()
}

// FixOutput is the output of the fixes step.
type FixOutput struct {
	Job      types.Job       `json:"job"`
	FixTypes []string        `json:"fixTypes"`
	Unmapped []string        `json:"unmapped,omitempty"`
	Document *types.Document `json:"document,omitempty"`
}

// Runner binds a Machine to the job orchestrator and the Processing API.
// Each Run method submits the step's job, waits for it and records the outcome.
type Runner struct {
	Machine      *Machine
	Orchestrator *jobs.Orchestrator
	Processor    Processor
	Interval     time.Duration
	Timeout      time.Duration
	// WorkDir receives documents produced by OCR, redaction and fixes.
	// When empty, produced documents are not downloaded.
	WorkDir string
	Logger  *slog.Logger
	// OnSubmit, when set, is called with every job right after it is submitted.
	OnSubmit func(types.Job)

	document types.Document
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

// Start records doc as the uploaded file and moves past the upload step.
func (r *Runner) Start(doc types.Document) error {
	if err := r.Machine.Start(doc.Path); err != nil {
		return err
	}
	r.document = doc
	return r.Machine.Advance()
}

// Document returns the document later steps operate on: the upload, or the
// latest document produced by OCR or redaction.
func (r *Runner) Document() types.Document {
	return r.document
}

// RunOCR runs the OCR step.
func (r *Runner) RunOCR(ctx context.Context, params map[string]any) (JobOutput, error) {
	return r.runDocumentStep(ctx, StepOCR, types.JobKindOCR, params)
}

// RunRedaction runs the redaction step.
func (r *Runner) RunRedaction(ctx context.Context, params map[string]any) (JobOutput, error) {
	return r.runDocumentStep(ctx, StepRedaction, types.JobKindRedact, params)
}

func (r *Runner) runDocumentStep(ctx context.Context, step StepID, kind types.JobKind, params map[string]any) (JobOutput, error) {
	if err := r.requireCurrent(step); err != nil {
		return JobOutput{}, err
	}

	job, err := r.submitAndWait(ctx, step, kind, params)
	if err != nil {
		return JobOutput{}, err
	}

	out := JobOutput{Job: job}
	if r.WorkDir != "" {
		doc, err := r.download(ctx, job)
		if err != nil {
			_ = r.Machine.Fail(step, err)
			return JobOutput{}, err
		}
		out.Document = &doc
		r.document = doc
	}

	if err := r.Machine.Complete(step, out); err != nil {
		return JobOutput{}, err
	}
	return out, r.Machine.Advance()
}

// RunPreflight validates the current document, aggregates the result and moves
// to the fixes step. A clean document enters fixes in no-op mode.
func (r *Runner) RunPreflight(ctx context.Context, params map[string]any) (PreflightOutput, error) {
	if err := r.requireCurrent(StepPreflight); err != nil {
		return PreflightOutput{}, err
	}

	job, err := r.submitAndWait(ctx, StepPreflight, types.JobKindValidate, params)
	if err != nil {
		return PreflightOutput{}, err
	}

	if job.ResultID == "" {
		err := &jobs.MissingResultError{JobID: job.ID, Kind: job.Kind}
		_ = r.Machine.Fail(StepPreflight, err)
		return PreflightOutput{}, err
	}
	result, err := r.Processor.FetchResults(ctx, job.ResultID)
	if err != nil {
		_ = r.Machine.Fail(StepPreflight, err)
		return PreflightOutput{}, err
	}
	result.IssuesByCategory = aggregation.NormalizeCategories(result.IssuesByCategory)

	out := PreflightOutput{
		JobID:   job.ID,
		Result:  result,
		Summary: aggregation.AggregateSingle(result),
	}
	if err := r.Machine.Complete(StepPreflight, out); err != nil {
		return PreflightOutput{}, err
	}
	return out, r.Machine.Advance()
}

// RunFixes submits a fix job for the selected issues plus any requested
// optimizations. In no-op mode only optimizations are accepted.
func (r *Runner) RunFixes(ctx context.Context, selection fixes.Selection, optimizations []string) (FixOutput, error) {
	if err := r.requireCurrent(StepFixes); err != nil {
		return FixOutput{}, err
	}

	var issues []types.Issue
	if out, ok := r.Machine.Output(StepPreflight); ok {
		if pre, ok := out.(PreflightOutput); ok {
			issues = pre.Issues()
		}
	}

	mode := r.Machine.State().Mode
	fixTypes, unmapped := selection.FixTypes(issues)
	if mode == ModeNoOp && len(fixTypes) > 0 {
		return FixOutput{}, &InvalidTransitionError{From: StepFixes, Reason: "no issues to fix; only optimizations are available"}
	}

	fixTypes, err := withOptimizations(fixTypes, optimizations)
	if err != nil {
		return FixOutput{}, err
	}
	if len(fixTypes) == 0 {
		return FixOutput{}, fmt.Errorf("no fixes selected; use Finish to end without fixes")
	}

	job, err := r.submitAndWait(ctx, StepFixes, types.JobKindFix, map[string]any{"fixes": fixTypes})
	if err != nil {
		return FixOutput{}, err
	}

	out := FixOutput{Job: job, FixTypes: fixTypes}
	for _, issue := range unmapped {
		out.Unmapped = append(out.Unmapped, issue.ID)
	}
	if r.WorkDir != "" {
		doc, err := r.download(ctx, job)
		if err != nil {
			_ = r.Machine.Fail(StepFixes, err)
			return FixOutput{}, err
		}
		out.Document = &doc
	}

	if err := r.Machine.Complete(StepFixes, out); err != nil {
		return FixOutput{}, err
	}
	return out, nil
}

// Finish completes the fixes step without submitting a fix job. It ends the
// wizard when no fix or optimization is selected, including in no-op mode.
func (r *Runner) Finish() (FixOutput, error) {
	if err := r.requireCurrent(StepFixes); err != nil {
		return FixOutput{}, err
	}
	out := FixOutput{FixTypes: []string{}}
	if err := r.Machine.Complete(StepFixes, out); err != nil {
		return FixOutput{}, err
	}
	return out, nil
}

// withOptimizations merges allowed optional optimizations into fixTypes, keeping
// the result sorted and free of duplicates.
func withOptimizations(fixTypes, optimizations []string) ([]string, error) {
	allowed := make(map[string]bool)
	for _, o := range fixes.OptionalOptimizations() {
		allowed[o] = true
	}

	seen := make(map[string]bool, len(fixTypes))
	out := make([]string, 0, len(fixTypes)+len(optimizations))
	for _, f := range fixTypes {
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	for _, o := range optimizations {
		if !allowed[o] {
			return nil, fmt.Errorf("unsupported optimization: %q", o)
		}
		if !seen[o] {
			seen[o] = true
			out = append(out, o)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (r *Runner) requireCurrent(step StepID) error {
	if current := r.Machine.Current(); current != step {
		return &InvalidTransitionError{From: current, To: step, Reason: "not the current step"}
	}
	return nil
}

// submitAndWait runs one job to completion. Failures are recorded on the step
// and the wizard stays where it is.
func (r *Runner) submitAndWait(ctx context.Context, step StepID, kind types.JobKind, params map[string]any) (types.Job, error) {
	job, err := r.Orchestrator.Submit(ctx, kind, r.document, params)
	if err != nil {
		_ = r.Machine.Fail(step, err)
		return types.Job{}, err
	}
	r.logger().Info("wizard job submitted", "step", step, "job_id", job.ID, "kind", kind)
	if r.OnSubmit != nil {
		r.OnSubmit(job)
	}

	job, err = r.Orchestrator.AwaitCompletion(ctx, job.ID, r.Interval, r.Timeout)
	if err != nil {
		_ = r.Machine.Fail(step, err)
		return job, err
	}
	return job, nil
}

func (r *Runner) download(ctx context.Context, job types.Job) (types.Document, error) {
	if err := os.MkdirAll(r.WorkDir, 0o755); err != nil {
		return types.Document{}, fmt.Errorf("failed to create work dir: %w", err)
	}

	base := strings.TrimSuffix(r.document.Name, filepath.Ext(r.document.Name))
	if base == "" {
		base = "document"
	}
	path := filepath.Join(r.WorkDir, fmt.Sprintf("%s_%s.pdf", base, job.Kind))

	f, err := os.Create(path)
	if err != nil {
		return types.Document{}, fmt.Errorf("failed to create %s: %w", path, err)
	}
	n, err := r.Processor.Download(ctx, job, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return types.Document{}, err
	}

	return types.Document{Name: filepath.Base(path), Path: path, Size: n}, nil
}
