// Package processing is the HTTP adapter for the remote Processing API. It
// implements jobs.Backend and retrieves results and fixed documents.
package processing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jonathan/preflight-agent/internal/jobs"
	"github.com/jonathan/preflight-agent/internal/schemas"
	"github.com/jonathan/preflight-agent/internal/types"
	embedded "github.com/jonathan/preflight-agent/schemas"
)

// DefaultTimeout is the default per-request timeout.
const DefaultTimeout = 60 * time.Second

// DefaultUserAgent is the user agent string for Processing API requests.
const DefaultUserAgent = "PreflightAgent/1.0"

// maxErrorBody bounds how much of an error response is kept in NetworkError.Message.
const maxErrorBody = 512

// ParamStandard selects the compliance standard for a validate job.
// When set, the job is submitted to /compliance/validate/{standard}.
const ParamStandard = "standard"

// Options configures a Client.
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	UserAgent  string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client talks to the Processing API over HTTP.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	userAgent  string
	logger     *slog.Logger
}

// NewClient creates a Client for the API rooted at opts.BaseURL.
func NewClient(opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid Processing API base URL %q", opts.BaseURL)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:    base,
		httpClient: httpClient,
		userAgent:  userAgent,
		logger:     logger,
	}, nil
}

// submitPath returns the upload endpoint for a job kind.
func submitPath(kind types.JobKind, params map[string]any) (string, error) {
	switch kind {
	case types.JobKindValidate:
		if standard, _ := params[ParamStandard].(string); standard != "" {
			return "/compliance/validate/" + url.PathEscape(standard), nil
		}
		return "/validate", nil
	case types.JobKindFix:
		return "/fix", nil
	case types.JobKindConvert:
		return "/compliance/fix/convert-to-pdfa", nil
	case types.JobKindOCR:
		return "/ocr", nil
	case types.JobKindRedact:
		return "/redact", nil
	}
	return "", fmt.Errorf("unsupported job kind: %q", kind)
}

// statusPrefix returns the status endpoint prefix for a job kind. Compliance
// validation shares /status with plain validation.
func statusPrefix(kind types.JobKind) (string, error) {
	switch kind {
	case types.JobKindValidate:
		return "/status/", nil
	case types.JobKindFix, types.JobKindConvert:
		return "/fix/status/", nil
	case types.JobKindOCR:
		return "/ocr/status/", nil
	case types.JobKindRedact:
		return "/redact/status/", nil
	}
	return "", fmt.Errorf("unsupported job kind: %q", kind)
}

func downloadPrefix(kind types.JobKind) (string, error) {
	switch kind {
	case types.JobKindFix, types.JobKindConvert:
		return "/fix/download/", nil
	case types.JobKindOCR:
		return "/ocr/download/", nil
	case types.JobKindRedact:
		return "/redact/download/", nil
	}
	return "", fmt.Errorf("%s jobs produce no downloadable document", kind)
}

// statusPayload covers the field names used by the different status endpoints.
type statusPayload struct {
	ProcessID    string   `json:"processId"`
	FixJobID     string   `json:"fixJobId"`
	JobID        string   `json:"jobId"`
	Status       string   `json:"status"`
	Progress     *float64 `json:"progress"`
	ResultID     *string  `json:"resultId"`
	DownloadURL  *string  `json:"downloadUrl"`
	Error        *string  `json:"error"`
	ErrorMessage *string  `json:"errorMessage"`
}

func (p statusPayload) toRemote(id string) jobs.RemoteStatus {
	remote := jobs.RemoteStatus{ID: id, Status: types.ParseJobStatus(p.Status)}
	if remote.ID == "" {
		remote.ID = firstNonEmpty(p.ProcessID, p.FixJobID, p.JobID)
	}
	if p.Progress != nil {
		remote.Progress = int(math.Round(*p.Progress))
	}
	if p.ResultID != nil {
		remote.ResultID = *p.ResultID
	}
	if p.DownloadURL != nil {
		remote.DownloadURL = *p.DownloadURL
	}
	if p.ErrorMessage != nil && *p.ErrorMessage != "" {
		remote.Error = *p.ErrorMessage
	} else if p.Error != nil {
		remote.Error = *p.Error
	}
	return remote
}

// Submit uploads doc and starts a job of the given kind.
func (c *Client) Submit(ctx context.Context, kind types.JobKind, doc types.Document, params map[string]any) (jobs.RemoteStatus, error) {
	path, err := submitPath(kind, params)
	if err != nil {
		return jobs.RemoteStatus{}, err
	}

	body, contentType, err := buildUpload(doc, formFields(kind, params))
	if err != nil {
		return jobs.RemoteStatus{}, err
	}

	var payload statusPayload
	op := fmt.Sprintf("submit %s", kind)
	if err := c.doJSON(ctx, op, http.MethodPost, path, body, contentType, embedded.SubmitResponse, &payload); err != nil {
		return jobs.RemoteStatus{}, err
	}

	remote := payload.toRemote("")
	c.logger.Debug("processing api accepted job", "kind", kind, "job_id", remote.ID, "status", remote.Status)
	return remote, nil
}

// Status performs one status round trip for a job.
func (c *Client) Status(ctx context.Context, kind types.JobKind, remoteID string) (jobs.RemoteStatus, error) {
	prefix, err := statusPrefix(kind)
	if err != nil {
		return jobs.RemoteStatus{}, err
	}

	var payload statusPayload
	op := fmt.Sprintf("status %s", kind)
	if err := c.doJSON(ctx, op, http.MethodGet, prefix+url.PathEscape(remoteID), nil, "", embedded.JobStatus, &payload); err != nil {
		return jobs.RemoteStatus{}, err
	}
	return payload.toRemote(remoteID), nil
}

// Cancel asks the Processing API to stop a job. The API may ignore it.
func (c *Client) Cancel(ctx context.Context, kind types.JobKind, remoteID string) error {
	prefix, err := statusPrefix(kind)
	if err != nil {
		return err
	}
	op := fmt.Sprintf("cancel %s", kind)
	resp, err := c.do(ctx, op, http.MethodDelete, prefix+url.PathEscape(remoteID), nil, "")
	if err != nil {
		return err
	}
	_ = resp.Body.Close()
	return nil
}

// FetchResults retrieves the ValidationResult of a completed validate job.
func (c *Client) FetchResults(ctx context.Context, resultID string) (*types.ValidationResult, error) {
	var result types.ValidationResult
	if err := c.doJSON(ctx, "fetch results", http.MethodGet, "/results/"+url.PathEscape(resultID), nil, "", embedded.ValidationResult, &result); err != nil {
		return nil, err
	}
	if result.IssuesByCategory == nil {
		result.IssuesByCategory = map[types.Category][]types.Issue{}
	}
	return &result, nil
}

// Download streams the output document of a completed job into w.
// A downloadURL reported by the API takes precedence; relative ones resolve
// against the API base URL.
func (c *Client) Download(ctx context.Context, job types.Job, w io.Writer) (int64, error) {
	path := job.DownloadURL
	if path == "" {
		prefix, err := downloadPrefix(job.Kind)
		if err != nil {
			return 0, err
		}
		path = prefix + url.PathEscape(job.RemoteID)
	}

	resp, err := c.do(ctx, fmt.Sprintf("download %s", job.Kind), http.MethodGet, path, nil, "")
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, &jobs.NetworkError{Op: "download", URL: resp.Request.URL.String(), Message: "failed to read response body", Cause: err}
	}
	c.logger.Info("downloaded document", "job_id", job.RemoteID, "kind", job.Kind, "bytes", n)
	return n, nil
}

func (c *Client) resolve(path string) string {
	ref, err := url.Parse(path)
	if err == nil && ref.IsAbs() {
		return ref.String()
	}
	return c.baseURL.String() + "/" + strings.TrimLeft(path, "/")
}

// do executes a request and returns the response when the status is 2xx.
// Any other outcome is a *jobs.NetworkError.
func (c *Client) do(ctx context.Context, op, method, path string, body []byte, contentType string) (*http.Response, error) {
	target := c.resolve(path)

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, &jobs.NetworkError{Op: op, URL: target, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &jobs.NetworkError{Op: op, URL: target, Message: "HTTP request failed", Cause: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer func() { _ = resp.Body.Close() }()
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &jobs.NetworkError{
			Op:         op,
			URL:        target,
			StatusCode: resp.StatusCode,
			Message:    errorMessage(snippet),
		}
	}
	return resp, nil
}

// doJSON executes a request, validates the JSON response against schemaName and
// decodes it into out.
func (c *Client) doJSON(ctx context.Context, op, method, path string, body []byte, contentType, schemaName string, out any) error {
	resp, err := c.do(ctx, op, method, path, body, contentType)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &jobs.NetworkError{Op: op, URL: resp.Request.URL.String(), Message: "failed to read response body", Cause: err}
	}

	if err := schemas.ValidatePayload(schemaName, data); err != nil {
		return &ResponseError{Op: op, Cause: err}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &ResponseError{Op: op, Cause: err}
	}
	return nil
}

// errorMessage extracts a readable message from an error response body.
func errorMessage(body []byte) string {
	var payload struct {
		Error        string `json:"error"`
		ErrorMessage string `json:"errorMessage"`
		Message      string `json:"message"`
		Detail       string `json:"detail"`
	}
	if json.Unmarshal(body, &payload) == nil {
		if msg := firstNonEmpty(payload.ErrorMessage, payload.Error, payload.Message, payload.Detail); msg != "" {
			return msg
		}
	}
	return strings.TrimSpace(string(body))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
