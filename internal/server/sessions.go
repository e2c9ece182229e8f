package server

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/preflight-agent/internal/db"
	"github.com/jonathan/preflight-agent/internal/fixes"
	"github.com/jonathan/preflight-agent/internal/types"
	"github.com/jonathan/preflight-agent/internal/wizard"
)

// session is one wizard run held in memory.
type session struct {
	id        uuid.UUID
	createdAt time.Time
	runner    *wizard.Runner

	mu          sync.Mutex
	running     wizard.StepID
	activeJobID string
}

// SessionView is the JSON snapshot of a session.
type SessionView struct {
	SessionID     string                `json:"sessionId"`
	CurrentStepID wizard.StepID         `json:"currentStepId"`
	FileRef       string                `json:"fileRef,omitempty"`
	Mode          wizard.Mode           `json:"mode"`
	VisibleSteps  []wizard.StepID       `json:"visibleSteps"`
	StepOutputs   map[wizard.StepID]any `json:"stepOutputs"`
	LastError     string                `json:"lastError,omitempty"`
	Running       wizard.StepID         `json:"running,omitempty"`
	ActiveJobID   string                `json:"activeJobId,omitempty"`
	CreatedAt     string                `json:"createdAt"`
}

func (s *session) view() SessionView {
	state := s.runner.Machine.State()

	s.mu.Lock()
	running, active := s.running, s.activeJobID
	s.mu.Unlock()

	return SessionView{
		SessionID:     s.id.String(),
		CurrentStepID: state.CurrentStepID,
		FileRef:       state.FileRef,
		Mode:          state.Mode,
		VisibleSteps:  s.runner.Machine.VisibleIDs(),
		StepOutputs:   state.StepOutputs,
		LastError:     state.LastError,
		Running:       running,
		ActiveJobID:   active,
		CreatedAt:     s.createdAt.UTC().Format(time.RFC3339),
	}
}

// begin marks step as running. Only one step runs per session at a time.
func (s *session) begin(step wizard.StepID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running != "" {
		return &ErrSessionBusy{SessionID: s.id.String(), Step: s.running}
	}
	s.running = step
	s.activeJobID = ""
	return nil
}

func (s *session) end() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = ""
	s.activeJobID = ""
}

func (s *session) setActiveJob(job types.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeJobID = job.ID
}

// idle fails with ErrSessionBusy while a step runs.
func (s *session) idle() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running != "" {
		return &ErrSessionBusy{SessionID: s.id.String(), Step: s.running}
	}
	return nil
}

// newSession creates and stores a session.
func (s *Server) newSession(pro bool) *session {
	id := uuid.New()
	sess := &session{id: id, createdAt: time.Now()}
	logger := s.logger.With("session_id", id.String())
	sess.runner = &wizard.Runner{
		Machine:      wizard.New(wizard.DefaultSteps(), wizard.Entitlement{ProOrTeam: pro}, logger),
		Orchestrator: s.orch,
		Processor:    s.processor,
		Interval:     s.cfg.PollInterval,
		Timeout:      s.cfg.JobTimeout,
		WorkDir:      sessionWorkDir(s.cfg.WorkDir, id),
		Logger:       logger,
		OnSubmit:     sess.setActiveJob,
	}

	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()
	return sess
}

func sessionWorkDir(root string, id uuid.UUID) string {
	if root == "" {
		return ""
	}
	return filepath.Join(root, id.String())
}

func (s *Server) session(raw string) (*session, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, &ErrValidation{Field: "id", Message: "must be a UUID"}
	}
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, &ErrSessionNotFound{SessionID: raw}
	}
	return sess, nil
}

func (s *Server) dropSession(sess *session) {
	s.mu.Lock()
	delete(s.sessions, sess.id)
	s.mu.Unlock()
}

// StepRequest is the body of POST /sessions/{id}/steps/{step}.
type StepRequest struct {
	FilePath      string         `json:"file_path,omitempty"`
	Params        map[string]any `json:"params,omitempty"`
	IssueIDs      []string       `json:"issue_ids,omitempty"`
	Optimizations []string       `json:"optimizations,omitempty" validate:"dive,oneof=compress_images optimize_file"`
}

// runStep executes one wizard step to completion and records its audit trail.
func (s *Server) runStep(ctx context.Context, sess *session, step wizard.StepID, req StepRequest) error {
	defer sess.end()

	var err error
	switch step {
	case wizard.StepUpload:
		var doc types.Document
		doc, err = types.OpenDocument(req.FilePath)
		if err != nil {
			err = &ErrValidation{Field: "file_path", Message: err.Error()}
			break
		}
		err = sess.runner.Start(doc)
	case wizard.StepOCR:
		_, err = sess.runner.RunOCR(ctx, req.Params)
	case wizard.StepRedaction:
		_, err = sess.runner.RunRedaction(ctx, req.Params)
	case wizard.StepPreflight:
		_, err = sess.runner.RunPreflight(ctx, req.Params)
	case wizard.StepFixes:
		_, err = sess.runner.RunFixes(ctx, fixes.NewSelection(req.IssueIDs...), req.Optimizations)
	default:
		err = &ErrValidation{Field: "step", Message: fmt.Sprintf("unknown step %q", step)}
	}

	if err != nil {
		s.logger.Warn("wizard step failed", "session_id", sess.id, "step", step, "error", err)
		s.recordEvent(sess, step, db.SessionEventFailed, map[string]any{"error": err.Error()})
		return err
	}
	s.recordEvent(sess, step, db.SessionEventCompleted, nil)
	return nil
}

// recordEvent writes to the audit log when one is configured. Failures are logged only.
func (s *Server) recordEvent(sess *session, step wizard.StepID, event string, payload map[string]any) {
	if s.audit == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := s.audit.RecordSessionEvent(ctx, sess.id, &db.SessionEventInput{
		Step:    string(step),
		Event:   event,
		Payload: payload,
	})
	if err != nil {
		s.logger.Warn("failed to record session event", "session_id", sess.id, "event", event, "error", err)
	}
}

// preflightOutput returns the session's preflight result.
func preflightOutput(sess *session) (wizard.PreflightOutput, error) {
	out, ok := sess.runner.Machine.Output(wizard.StepPreflight)
	if !ok {
		return wizard.PreflightOutput{}, &ErrNotReady{What: "preflight result"}
	}
	pre, ok := out.(wizard.PreflightOutput)
	if !ok || pre.Result == nil {
		return wizard.PreflightOutput{}, &ErrNotReady{What: "preflight result"}
	}
	return pre, nil
}
