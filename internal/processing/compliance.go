package processing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/jonathan/preflight-agent/internal/aggregation"
	"github.com/jonathan/preflight-agent/internal/jobs"
	"github.com/jonathan/preflight-agent/internal/types"
	embedded "github.com/jonathan/preflight-agent/schemas"
	"golang.org/x/sync/errgroup"
)

// Validation engines that may return a native report instead of issues.
const (
	EnginePDFA  = "pdfa"
	EnginePDFUA = "pdfua"
	EngineWCAG  = "wcag"
)

type compliancePayload struct {
	Standard    string          `json:"standard"`
	IsCompliant bool            `json:"isCompliant"`
	Issues      []types.Issue   `json:"issues"`
	Engine      string          `json:"engine"`
	Report      json.RawMessage `json:"report"`
}

// FetchComplianceResult retrieves one standard's verdict. When the API returns
// the engine's native report instead of an issue list, it is normalized here.
func (c *Client) FetchComplianceResult(ctx context.Context, resultID string) (types.ComplianceResult, error) {
	var payload compliancePayload
	path := "/compliance/results/" + url.PathEscape(resultID)
	if err := c.doJSON(ctx, "fetch compliance results", http.MethodGet, path, nil, "", embedded.ComplianceResult, &payload); err != nil {
		return types.ComplianceResult{}, err
	}

	result := types.ComplianceResult{
		Standard:    payload.Standard,
		IsCompliant: payload.IsCompliant,
		Issues:      payload.Issues,
	}
	if len(payload.Issues) > 0 || payload.Engine == "" || len(payload.Report) == 0 {
		if result.Issues == nil {
			result.Issues = []types.Issue{}
		}
		return result, nil
	}

	normalized, err := normalizeReport(payload.Engine, payload.Report)
	if err != nil {
		return types.ComplianceResult{}, &ResponseError{Op: "fetch compliance results", Cause: err}
	}
	result.Issues = normalized.Issues
	return result, nil
}

func normalizeReport(engine string, raw json.RawMessage) (types.ComplianceResult, error) {
	switch engine {
	case EnginePDFA:
		var report aggregation.PDFAReport
		if err := json.Unmarshal(raw, &report); err != nil {
			return types.ComplianceResult{}, err
		}
		return aggregation.NormalizePDFA(report), nil
	case EnginePDFUA:
		var report aggregation.PDFUAReport
		if err := json.Unmarshal(raw, &report); err != nil {
			return types.ComplianceResult{}, err
		}
		return aggregation.NormalizePDFUA(report), nil
	case EngineWCAG:
		var report aggregation.WCAGReport
		if err := json.Unmarshal(raw, &report); err != nil {
			return types.ComplianceResult{}, err
		}
		return aggregation.NormalizeWCAG(report), nil
	}
	return types.ComplianceResult{}, fmt.Errorf("unknown validation engine %q", engine)
}

// ComplianceRunner validates one document against several standards at once.
type ComplianceRunner struct {
	Orchestrator *jobs.Orchestrator
	Client       *Client
	Interval     time.Duration
	Timeout      time.Duration
}

// Run submits one compliance validation per standard, waits for all of them and
// collects the verdicts. The first failure cancels the remaining jobs.
func (r *ComplianceRunner) Run(ctx context.Context, doc types.Document, standards []string) (types.MultiStandardResult, error) {
	if len(standards) == 0 {
		return nil, fmt.Errorf("at least one compliance standard is required")
	}

	var mu sync.Mutex
	out := make(types.MultiStandardResult, len(standards))

	g, gctx := errgroup.WithContext(ctx)
	for _, standard := range standards {
		g.Go(func() error {
			job, err := r.Orchestrator.Submit(gctx, types.JobKindValidate, doc, map[string]any{ParamStandard: standard})
			if err != nil {
				return fmt.Errorf("%s: %w", standard, err)
			}
			job, err = r.Orchestrator.AwaitCompletion(gctx, job.ID, r.Interval, r.Timeout)
			if err != nil {
				if gctx.Err() != nil {
					_ = r.Orchestrator.Cancel(context.WithoutCancel(ctx), job.ID)
				}
				return fmt.Errorf("%s: %w", standard, err)
			}

			if job.ResultID == "" {
				return fmt.Errorf("%s: %w", standard, &jobs.MissingResultError{JobID: job.ID, Kind: job.Kind})
			}
			result, err := r.Client.FetchComplianceResult(gctx, job.ResultID)
			if err != nil {
				return fmt.Errorf("%s: %w", standard, err)
			}
			if result.Standard == "" {
				result.Standard = standard
			}

			mu.Lock()
			out[standard] = result
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
