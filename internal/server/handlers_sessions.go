package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/jonathan/preflight-agent/internal/db"
	"github.com/jonathan/preflight-agent/internal/processing"
	"github.com/jonathan/preflight-agent/internal/report"
	"github.com/jonathan/preflight-agent/internal/types"
	"github.com/jonathan/preflight-agent/internal/viewer"
	"github.com/jonathan/preflight-agent/internal/wizard"
)

var validate = validator.New()

// CreateSessionRequest is the JSON body of POST /sessions.
type CreateSessionRequest struct {
	FilePath string `json:"file_path,omitempty"`
	Pro      bool   `json:"pro,omitempty"`
}

// OverlaysResponse is the body of GET /sessions/{id}/overlays.
type OverlaysResponse struct {
	SessionID string                `json:"sessionId"`
	Pages     []viewer.PageOverlays `json:"pages"`
}

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// handleCreateSession starts a wizard session. A JSON body may name a local
// file; a multipart body carries the upload itself. Either way the upload step
// completes immediately when a document is given.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	if mediaType == "multipart/form-data" {
		s.createFromUpload(w, r)
		return
	}

	var req CreateSessionRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		s.errorFrom(w, err)
		return
	}

	sess := s.newSession(req.Pro)
	s.recordEvent(sess, wizard.StepUpload, db.SessionEventStarted, map[string]any{"pro": req.Pro})
	s.logger.Info("session created", "session_id", sess.id, "pro", req.Pro)

	if req.FilePath != "" {
		if err := s.startSession(sess, req.FilePath); err != nil {
			s.dropSession(sess)
			s.errorFrom(w, err)
			return
		}
	}
	s.jsonResponse(w, http.StatusCreated, sess.view())
}

func (s *Server) createFromUpload(w http.ResponseWriter, r *http.Request) {
	if s.cfg.WorkDir == "" {
		s.errorResponse(w, http.StatusNotImplemented, "uploads are disabled: no work directory configured")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		s.errorFrom(w, &ErrValidation{Field: "file", Message: err.Error()})
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.errorFrom(w, &ErrValidation{Field: "file", Message: "multipart field 'file' is required"})
		return
	}
	defer func() { _ = file.Close() }()

	pro, _ := strconv.ParseBool(r.FormValue("pro"))
	sess := s.newSession(pro)
	s.recordEvent(sess, wizard.StepUpload, db.SessionEventStarted, map[string]any{"pro": pro, "file": header.Filename})

	path, err := s.saveUpload(sess, header.Filename, file)
	if err == nil {
		err = s.startSession(sess, path)
	}
	if err != nil {
		s.dropSession(sess)
		s.errorFrom(w, err)
		return
	}

	s.logger.Info("session created from upload", "session_id", sess.id, "file", header.Filename, "size", header.Size)
	s.jsonResponse(w, http.StatusCreated, sess.view())
}

// saveUpload writes an uploaded PDF under the session's work directory.
func (s *Server) saveUpload(sess *session, name string, src io.Reader) (string, error) {
	head := make([]byte, 3072)
	n, err := io.ReadFull(src, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read upload: %w", err)
	}
	head = head[:n]

	name = filepath.Base(name)
	if detected := mimetype.Detect(head); !detected.Is("application/pdf") {
		return "", &processing.UnsupportedFileError{Name: name, MIMEType: detected.String()}
	}

	dir := filepath.Join(sess.runner.WorkDir, "upload")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create upload dir: %w", err)
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", path, err)
	}
	_, err = io.Copy(f, io.MultiReader(bytes.NewReader(head), src))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("failed to save upload: %w", err)
	}
	return path, nil
}

// startSession runs the upload step synchronously.
func (s *Server) startSession(sess *session, path string) error {
	if err := sess.begin(wizard.StepUpload); err != nil {
		return err
	}
	return s.runStep(s.baseCtx, sess, wizard.StepUpload, StepRequest{FilePath: path})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r.PathValue("id"))
	if err != nil {
		s.errorFrom(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, sess.view())
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r.PathValue("id"))
	if err != nil {
		s.errorFrom(w, err)
		return
	}
	if err := sess.idle(); err != nil {
		s.errorFrom(w, err)
		return
	}
	s.dropSession(sess)
	s.logger.Info("session deleted", "session_id", sess.id)
	w.WriteHeader(http.StatusNoContent)
}

// handleExecuteStep runs the current wizard step. The step runs in the
// background and the response is 202 unless ?wait=true is given, in which case
// the request blocks until the step finishes.
func (s *Server) handleExecuteStep(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r.PathValue("id"))
	if err != nil {
		s.errorFrom(w, err)
		return
	}
	step, err := wizard.ParseStepID(r.PathValue("step"))
	if err != nil {
		s.errorFrom(w, &ErrValidation{Field: "step", Message: err.Error()})
		return
	}

	var req StepRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		s.errorFrom(w, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		s.errorFrom(w, &ErrValidation{Field: "optimizations", Message: err.Error()})
		return
	}
	if step == wizard.StepUpload && req.FilePath == "" {
		s.errorFrom(w, &ErrValidation{Field: "file_path", Message: "required for the upload step"})
		return
	}
	if step == wizard.StepFixes && len(req.IssueIDs) == 0 && len(req.Optimizations) == 0 {
		s.errorFrom(w, &ErrValidation{Field: "issue_ids", Message: "select at least one issue or optimization, or finish the session"})
		return
	}

	if current := sess.runner.Machine.Current(); current != step {
		s.errorFrom(w, &wizard.InvalidTransitionError{From: current, To: step, Reason: "not the current step"})
		return
	}
	if err := sess.begin(step); err != nil {
		s.errorFrom(w, err)
		return
	}
	s.recordEvent(sess, step, db.SessionEventStarted, nil)

	wait, _ := strconv.ParseBool(r.URL.Query().Get("wait"))
	if wait || step == wizard.StepUpload {
		if err := s.runStep(r.Context(), sess, step, req); err != nil {
			s.errorFrom(w, err)
			return
		}
		s.jsonResponse(w, http.StatusOK, sess.view())
		return
	}

	s.steps.Add(1)
	go func() {
		defer s.steps.Done()
		_ = s.runStep(s.baseCtx, sess, step, req)
	}()
	s.jsonResponse(w, http.StatusAccepted, sess.view())
}

func (s *Server) handleSkipStep(w http.ResponseWriter, r *http.Request) {
	sess, step, ok := s.sessionAndStep(w, r)
	if !ok {
		return
	}
	if err := sess.runner.Machine.Skip(step); err != nil {
		s.errorFrom(w, err)
		return
	}
	s.recordEvent(sess, step, db.SessionEventSkipped, nil)
	s.jsonResponse(w, http.StatusOK, sess.view())
}

func (s *Server) handleGoToStep(w http.ResponseWriter, r *http.Request) {
	sess, step, ok := s.sessionAndStep(w, r)
	if !ok {
		return
	}
	if err := sess.runner.Machine.GoTo(step); err != nil {
		s.errorFrom(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, sess.view())
}

// sessionAndStep resolves the path of an idle session and a known step, writing
// the error response itself when either is invalid.
func (s *Server) sessionAndStep(w http.ResponseWriter, r *http.Request) (*session, wizard.StepID, bool) {
	sess, err := s.session(r.PathValue("id"))
	if err != nil {
		s.errorFrom(w, err)
		return nil, "", false
	}
	step, err := wizard.ParseStepID(r.PathValue("step"))
	if err != nil {
		s.errorFrom(w, &ErrValidation{Field: "step", Message: err.Error()})
		return nil, "", false
	}
	if err := sess.idle(); err != nil {
		s.errorFrom(w, err)
		return nil, "", false
	}
	return sess, step, true
}

func (s *Server) handleResetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r.PathValue("id"))
	if err != nil {
		s.errorFrom(w, err)
		return
	}
	if err := sess.idle(); err != nil {
		s.errorFrom(w, err)
		return
	}
	sess.runner.Machine.Reset()
	s.recordEvent(sess, sess.runner.Machine.Current(), db.SessionEventReset, nil)
	s.jsonResponse(w, http.StatusOK, sess.view())
}

// handleFinishSession ends the wizard on the fixes step without applying fixes.
func (s *Server) handleFinishSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r.PathValue("id"))
	if err != nil {
		s.errorFrom(w, err)
		return
	}
	if err := sess.idle(); err != nil {
		s.errorFrom(w, err)
		return
	}
	if _, err := sess.runner.Finish(); err != nil {
		s.errorFrom(w, err)
		return
	}
	s.recordEvent(sess, wizard.StepFixes, db.SessionEventCompleted, map[string]any{"fixes": 0})
	s.jsonResponse(w, http.StatusOK, sess.view())
}

// handleSessionOverlays returns the per-page issue overlays of the preflight result.
func (s *Server) handleSessionOverlays(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r.PathValue("id"))
	if err != nil {
		s.errorFrom(w, err)
		return
	}
	pre, err := preflightOutput(sess)
	if err != nil {
		s.errorFrom(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, OverlaysResponse{
		SessionID: sess.id.String(),
		Pages:     viewer.BuildOverlays(pre.Issues()),
	})
}

// handleSessionReport exports the preflight result as a spreadsheet.
func (s *Server) handleSessionReport(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r.PathValue("id"))
	if err != nil {
		s.errorFrom(w, err)
		return
	}
	pre, err := preflightOutput(sess)
	if err != nil {
		s.errorFrom(w, err)
		return
	}

	data, err := s.exporter.XLSX(report.Input{Summary: pre.Summary})
	if err != nil {
		s.errorFrom(w, err)
		return
	}

	name := "preflight-report.xlsx"
	if doc := sess.runner.Document(); doc.Name != "" {
		name = reportName(doc)
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		s.logger.Warn("failed to write report", "session_id", sess.id, "error", err)
	}
}

func reportName(doc types.Document) string {
	base := doc.Name[:len(doc.Name)-len(filepath.Ext(doc.Name))]
	return base + "-preflight.xlsx"
}

// decodeOptionalJSON decodes the body into dst. An empty body leaves dst untouched.
func decodeOptionalJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return &ErrValidation{Field: "body", Message: "invalid JSON: " + err.Error()}
	}
	return nil
}
