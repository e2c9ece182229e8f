package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/preflight-agent/internal/db"
	"github.com/jonathan/preflight-agent/internal/jobs"
	"github.com/jonathan/preflight-agent/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeBackend leaves every job pending until it is polled, then completes it
// unless failWith is set for its kind.
type fakeBackend struct {
	mu       sync.Mutex
	next     int
	failWith map[types.JobKind]string
	params   map[types.JobKind]map[string]any
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		failWith: map[types.JobKind]string{},
		params:   map[types.JobKind]map[string]any{},
	}
}

func (b *fakeBackend) Submit(_ context.Context, kind types.JobKind, _ types.Document, params map[string]any) (jobs.RemoteStatus, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.next++
	b.params[kind] = params
	return jobs.RemoteStatus{ID: string(kind) + "-" + uuid.NewString()[:8], Status: types.JobStatusPending}, nil
}

func (b *fakeBackend) Status(_ context.Context, kind types.JobKind, id string) (jobs.RemoteStatus, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if msg, ok := b.failWith[kind]; ok {
		return jobs.RemoteStatus{ID: id, Status: types.JobStatusFailed, Error: msg}, nil
	}
	return jobs.RemoteStatus{ID: id, Status: types.JobStatusCompleted, Progress: 100, ResultID: "r-" + id}, nil
}

// fakeProcessor returns a fixed validation result. When gate is set,
// FetchResults blocks until it is closed.
type fakeProcessor struct {
	result *types.ValidationResult
	gate   chan struct{}
}

func (p *fakeProcessor) FetchResults(ctx context.Context, _ string) (*types.ValidationResult, error) {
	if p.gate != nil {
		select {
		case <-p.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	copied := *p.result
	copied.IssuesByCategory = make(map[types.Category][]types.Issue, len(p.result.IssuesByCategory))
	for k, v := range p.result.IssuesByCategory {
		copied.IssuesByCategory[k] = v
	}
	return &copied, nil
}

func (p *fakeProcessor) Download(_ context.Context, job types.Job, w io.Writer) (int64, error) {
	n, err := io.WriteString(w, "%PDF-1.7 "+job.RemoteID)
	return int64(n), err
}

type fakeHistory struct {
	records []db.JobRecord
	filters db.JobFilters
}

func (h *fakeHistory) ListJobs(_ context.Context, filters db.JobFilters) ([]db.JobRecord, error) {
	h.filters = filters
	return h.records, nil
}

type fakeAuditor struct {
	mu     sync.Mutex
	events []db.SessionEventInput
}

func (a *fakeAuditor) RecordSessionEvent(_ context.Context, sessionID uuid.UUID, input *db.SessionEventInput) (*db.SessionEvent, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, *input)
	return &db.SessionEvent{ID: uuid.New(), SessionID: sessionID, Step: input.Step, Event: input.Event}, nil
}

func (a *fakeAuditor) names() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.events))
	for _, e := range a.events {
		out = append(out, e.Step+":"+e.Event)
	}
	return out
}

func samplePage(n int) *int { return &n }

func sampleResult() *types.ValidationResult {
	return &types.ValidationResult{
		FileName:     "brochure.pdf",
		QualityScore: 71,
		TotalIssues:  3,
		IssuesByCategory: map[types.Category][]types.Issue{
			types.CategoryFonts: {{
				ID: "i1", Type: "unembedded_fonts", Severity: types.SeverityHigh, AutoFixable: true,
				Description: "Font Arial not embedded",
				Page:        samplePage(2),
				Location:    &types.Location{X: 0.1, Y: 0.2, Width: 0.3, Height: 0.05},
			}},
			types.CategoryColor: {{ID: "i2", Type: "rgb_colors", Severity: types.SeverityMedium, AutoFixable: true}},
			types.CategoryPrintProduction: {{
				ID: "i3", Type: "missing_bleed", Severity: types.SeverityLow, AutoFixable: true,
				Page:     samplePage(1),
				Location: &types.Location{X: 0.9, Y: 0.9, Width: 0.5, Height: 0.5},
			}},
		},
	}
}

type testEnv struct {
	server    *Server
	handler   http.Handler
	backend   *fakeBackend
	processor *fakeProcessor
	audit     *fakeAuditor
	workDir   string
}

func newTestEnv(t *testing.T, mutate ...func(*Deps)) *testEnv {
	t.Helper()

	backend := newFakeBackend()
	processor := &fakeProcessor{result: sampleResult()}
	audit := &fakeAuditor{}
	deps := Deps{
		Orchestrator: jobs.New(backend, jobs.WithLogger(testLogger())),
		Processor:    processor,
		Audit:        audit,
		Logger:       testLogger(),
	}
	for _, m := range mutate {
		m(&deps)
	}

	workDir := t.TempDir()
	s, err := New(Config{
		Addr:         ":0",
		WorkDir:      workDir,
		PollInterval: time.Millisecond,
		JobTimeout:   5 * time.Second,
	}, deps)
	require.NoError(t, err)
	t.Cleanup(s.Close)

	return &testEnv{
		server:    s,
		handler:   s.Handler(),
		backend:   backend,
		processor: processor,
		audit:     audit,
		workDir:   workDir,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

// writePDF creates a minimal PDF on disk and returns its path.
func writePDF(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.7\n%âãÏÓ\n1 0 obj\n<<>>\nendobj\ntrailer\n<<>>\n%%EOF\n"), 0o644))
	return path
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(Config{}, Deps{Processor: &fakeProcessor{}})
	assert.ErrorContains(t, err, "orchestrator")

	_, err = New(Config{}, Deps{Orchestrator: jobs.New(newFakeBackend())})
	assert.ErrorContains(t, err, "processor")
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, map[string]string{"status": "ok"}, decode[map[string]string](t, w))
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name    string
		origins []string
		origin  string
		want    string
	}{
		{name: "any origin by default", origin: "http://localhost:5173", want: "*"},
		{name: "allowed origin", origins: []string{"https://app.example.com"}, origin: "https://app.example.com", want: "https://app.example.com"},
		{name: "rejected origin", origins: []string{"https://app.example.com"}, origin: "https://evil.example.com", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(Config{CORSOrigins: tt.origins}, Deps{
				Orchestrator: jobs.New(newFakeBackend()),
				Processor:    &fakeProcessor{result: sampleResult()},
				Logger:       testLogger(),
			})
			require.NoError(t, err)
			t.Cleanup(s.Close)

			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			req.Header.Set("Origin", tt.origin)
			w := httptest.NewRecorder()
			s.Handler().ServeHTTP(w, req)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tt.want, w.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestRun_ShutsDownOnCancel(t *testing.T) {
	env := newTestEnv(t)
	env.server.httpServer.Addr = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- env.server.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
