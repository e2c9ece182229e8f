package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

const samplePDF = "%PDF-1.7\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n<< /Root 1 0 R >>\n%%EOF\n"

// fakeAPI is an in-process Processing API. Every job completes on its first poll.
type fakeAPI struct {
	mu        sync.Mutex
	submitted []string
	fixes     []string
	cleanDoc  bool
	failFix   bool
}

func (f *fakeAPI) record(kind string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, kind)
}

func (f *fakeAPI) kinds() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.submitted...)
}

func (f *fakeAPI) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/validate", func(w http.ResponseWriter, _ *http.Request) {
		f.record("validate")
		writeJSON(w, http.StatusAccepted, map[string]any{"processId": "v-1", "status": "pending"})
	})
	mux.HandleFunc("POST /api/compliance/validate/{standard}", func(w http.ResponseWriter, r *http.Request) {
		f.record("compliance")
		id := "c-" + strings.ReplaceAll(r.PathValue("standard"), "/", "")
		writeJSON(w, http.StatusAccepted, map[string]any{"processId": id, "status": "pending"})
	})
	mux.HandleFunc("GET /api/status/{id}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "completed", "progress": 100, "resultId": "res-" + r.PathValue("id")})
	})
	mux.HandleFunc("GET /api/results/{id}", func(w http.ResponseWriter, _ *http.Request) {
		if f.cleanDoc {
			writeJSON(w, http.StatusOK, map[string]any{
				"fileName": "brochure.pdf", "qualityScore": 100, "totalIssues": 0, "issuesByCategory": map[string]any{},
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"fileName":     "brochure.pdf",
			"qualityScore": 64,
			"totalIssues":  3,
			"issuesByCategory": map[string]any{
				"fonts": []map[string]any{
					{"id": "i1", "type": "unembedded_fonts", "severity": "high", "description": "Font Helvetica is not embedded", "page": 2,
						"location": map[string]any{"x": 0.1, "y": 0.1, "width": 0.2, "height": 0.05}, "autoFixable": true},
				},
				"color": []map[string]any{
					{"id": "i2", "type": "rgb_colors", "severity": "medium", "description": "RGB image in print document", "autoFixable": true},
				},
				"security": []map[string]any{
					{"id": "i3", "type": "encrypted", "severity": "low", "description": "Document is encrypted"},
				},
			},
		})
	})
	mux.HandleFunc("GET /api/compliance/results/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") == "res-c-PDFA-1b" {
			writeJSON(w, http.StatusOK, map[string]any{
				"standard":    "PDF/A-1b",
				"isCompliant": false,
				"issues":      []map[string]any{{"id": "a1", "type": "unembedded_fonts", "severity": "high"}},
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"standard": "PDF/UA-1", "isCompliant": true, "issues": []any{}})
	})

	mux.HandleFunc("POST /api/fix", func(w http.ResponseWriter, r *http.Request) {
		f.record("fix")
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
			return
		}
		var fixes []string
		_ = json.Unmarshal([]byte(r.FormValue("fixes")), &fixes)
		f.mu.Lock()
		f.fixes = fixes
		f.mu.Unlock()
		writeJSON(w, http.StatusAccepted, map[string]any{"fixJobId": "f-1", "status": "pending"})
	})
	mux.HandleFunc("GET /api/fix/status/{id}", func(w http.ResponseWriter, _ *http.Request) {
		if f.failFix {
			writeJSON(w, http.StatusOK, map[string]any{"status": "failed", "errorMessage": "font source unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "completed", "progress": 100})
	})

	mux.HandleFunc("POST /api/ocr", func(w http.ResponseWriter, _ *http.Request) {
		f.record("ocr")
		writeJSON(w, http.StatusAccepted, map[string]any{"jobId": "o-1", "status": "pending"})
	})
	mux.HandleFunc("GET /api/ocr/status/{id}", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "completed", "progress": 100})
	})

	download := func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte(samplePDF))
	}
	mux.HandleFunc("GET /api/fix/download/{id}", download)
	mux.HandleFunc("GET /api/ocr/download/{id}", download)
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// testAPI starts a fake Processing API and isolates the environment from any .env values.
func testAPI(t *testing.T) (*fakeAPI, string) {
	t.Helper()
	api := &fakeAPI{}
	srv := httptest.NewServer(api.handler())
	t.Cleanup(srv.Close)

	t.Setenv("DATABASE_URL", "")
	t.Setenv("PREFLIGHT_API_URL", "")
	t.Setenv("PREFLIGHT_STANDARDS", "")
	t.Setenv("PREFLIGHT_WORK_DIR", t.TempDir())
	t.Setenv("PREFLIGHT_POLL_INTERVAL_MS", "1")
	t.Setenv("PREFLIGHT_JOB_TIMEOUT_SECONDS", "5")
	return api, srv.URL + "/api"
}

func writePDF(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "brochure.pdf")
	require.NoError(t, os.WriteFile(path, []byte(samplePDF), 0644))
	return path
}

// resetFlags restores every flag to its default so commands can run repeatedly in one process.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// execute runs the root command with args and returns everything it printed.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}
