package wizard

import (
	"log/slog"
	"sync"
)

// State is a snapshot of a wizard session.
type State struct {
	CurrentStepID StepID         `json:"currentStepId"`
	FileRef       string         `json:"fileRef,omitempty"`
	StepOutputs   map[StepID]any `json:"stepOutputs"`
	Mode          Mode           `json:"mode"`
	LastError     string         `json:"lastError,omitempty"`
}

// IssueCounter is implemented by preflight outputs so the machine can detect a
// clean document.
type IssueCounter interface {
	IssueCount() int
}

// Machine is the wizard state machine for one document session.
// It is safe for concurrent use.
type Machine struct {
	logger  *slog.Logger
	visible []Step

	mu      sync.Mutex
	state   State
	lastErr error
}

// New creates a Machine over steps. Pro-only steps are dropped from the visible
// sequence unless ent.ProOrTeam is set.
func New(steps []Step, ent Entitlement, logger *slog.Logger) *Machine {
	if logger == nil {
		logger = slog.Default()
	}
	visible := make([]Step, 0, len(steps))
	for _, s := range steps {
		if s.IsProOnly && !ent.ProOrTeam {
			continue
		}
		visible = append(visible, s)
	}

	m := &Machine{logger: logger, visible: visible}
	m.resetLocked()
	return m
}

// Visible returns the steps shown to the user, in order.
func (m *Machine) Visible() []Step {
	out := make([]Step, len(m.visible))
	copy(out, m.visible)
	return out
}

// VisibleIDs returns the identifiers of Visible.
func (m *Machine) VisibleIDs() []StepID {
	ids := make([]StepID, len(m.visible))
	for i, s := range m.visible {
		ids[i] = s.ID
	}
	return ids
}

// State returns a copy of the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.state
	s.StepOutputs = make(map[StepID]any, len(m.state.StepOutputs))
	for k, v := range m.state.StepOutputs {
		s.StepOutputs[k] = v
	}
	return s
}

// Current returns the current step id.
func (m *Machine) Current() StepID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.CurrentStepID
}

// Output returns the recorded output of a step.
func (m *Machine) Output(id StepID) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.state.StepOutputs[id]
	return v, ok
}

// Err returns the error recorded by the last Fail, if any.
func (m *Machine) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// Done reports whether the wizard reached the terminal success step.
func (m *Machine) Done() bool {
	return m.Current() == StepSuccess
}

// Start records the uploaded file and completes the upload step.
func (m *Machine) Start(fileRef string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.FileRef != "" {
		return &InvalidTransitionError{From: m.state.CurrentStepID, To: StepUpload, Reason: "session already started; reset first"}
	}
	if fileRef == "" {
		return &InvalidTransitionError{From: m.state.CurrentStepID, To: StepUpload, Reason: "file reference is required"}
	}
	m.state.FileRef = fileRef
	m.state.StepOutputs[StepUpload] = fileRef
	m.logger.Info("wizard started", "file", fileRef)
	return nil
}

// Complete records the output of the current step. Completing fixes ends the wizard.
func (m *Machine) Complete(id StepID, output any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkCurrentLocked(id); err != nil {
		return err
	}
	if output == nil {
		return &InvalidTransitionError{From: id, Reason: "step output is required"}
	}

	m.state.StepOutputs[id] = output
	m.state.LastError = ""
	m.lastErr = nil
	if id == StepUpload {
		if ref, ok := output.(string); ok {
			m.state.FileRef = ref
		}
	}
	m.logger.Info("wizard step completed", "step", id)

	if id == StepFixes {
		m.state.CurrentStepID = StepSuccess
		m.logger.Info("wizard finished")
	}
	return nil
}

// Skip leaves an optional step without output and advances past it.
func (m *Machine) Skip(id StepID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkCurrentLocked(id); err != nil {
		return err
	}
	step, _ := m.stepLocked(id)
	if !step.IsOptional {
		return &InvalidTransitionError{From: id, Reason: "step is not optional"}
	}
	delete(m.state.StepOutputs, id)
	m.logger.Info("wizard step skipped", "step", id)
	return m.advanceLocked()
}

// Advance moves to the next visible step. The current step must have an output
// unless it is optional.
func (m *Machine) Advance() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.advanceLocked()
}

// GoTo moves to any visible step. Moving forward requires every required step
// before the target to have an output.
func (m *Machine) GoTo(id StepID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	from := m.state.CurrentStepID
	if from == StepSuccess {
		return &InvalidTransitionError{From: from, To: id, Reason: "wizard finished; reset first"}
	}
	target := m.indexLocked(id)
	if target < 0 {
		return &InvalidTransitionError{From: from, To: id, Reason: "step is not visible"}
	}
	if missing := m.missingBeforeLocked(target); len(missing) > 0 {
		return &InvalidTransitionError{From: from, To: id, Reason: "missing output for " + joinIDs(missing)}
	}
	m.enterLocked(id)
	return nil
}

// Fail records a job failure for the current step. The wizard stays on the step.
func (m *Machine) Fail(id StepID, err error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cerr := m.checkCurrentLocked(id); cerr != nil {
		return cerr
	}
	m.lastErr = err
	if err != nil {
		m.state.LastError = err.Error()
	}
	m.logger.Warn("wizard step failed", "step", id, "error", err)
	return nil
}

// Reset discards the session and returns to the first visible step.
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetLocked()
	m.logger.Info("wizard reset")
}

func (m *Machine) resetLocked() {
	first := StepSuccess
	if len(m.visible) > 0 {
		first = m.visible[0].ID
	}
	m.state = State{
		CurrentStepID: first,
		StepOutputs:   make(map[StepID]any),
		Mode:          ModeNormal,
	}
	m.lastErr = nil
}

func (m *Machine) advanceLocked() error {
	from := m.state.CurrentStepID
	if from == StepSuccess {
		return &InvalidTransitionError{From: from, Reason: "wizard finished; reset first"}
	}
	idx := m.indexLocked(from)
	step := m.visible[idx]
	if _, ok := m.state.StepOutputs[from]; !ok && !step.IsOptional {
		return &InvalidTransitionError{From: from, Reason: "step has no output"}
	}
	if idx+1 >= len(m.visible) {
		return &InvalidTransitionError{From: from, Reason: "last step must be completed"}
	}
	m.enterLocked(m.visible[idx+1].ID)
	return nil
}

// enterLocked switches to id and derives the fixes mode from the preflight output.
func (m *Machine) enterLocked(id StepID) {
	from := m.state.CurrentStepID
	m.state.CurrentStepID = id
	m.state.LastError = ""
	m.lastErr = nil

	if id == StepFixes {
		m.state.Mode = ModeNormal
		if out, ok := m.state.StepOutputs[StepPreflight].(IssueCounter); ok && out.IssueCount() == 0 {
			m.state.Mode = ModeNoOp
		}
	}
	m.logger.Debug("wizard transition", "from", from, "to", id, "mode", m.state.Mode)
}

func (m *Machine) checkCurrentLocked(id StepID) error {
	current := m.state.CurrentStepID
	if current == StepSuccess {
		return &InvalidTransitionError{From: current, To: id, Reason: "wizard finished; reset first"}
	}
	if id != current {
		return &InvalidTransitionError{From: current, To: id, Reason: "not the current step"}
	}
	return nil
}

func (m *Machine) indexLocked(id StepID) int {
	for i, s := range m.visible {
		if s.ID == id {
			return i
		}
	}
	return -1
}

func (m *Machine) stepLocked(id StepID) (Step, bool) {
	if i := m.indexLocked(id); i >= 0 {
		return m.visible[i], true
	}
	return Step{}, false
}

func (m *Machine) missingBeforeLocked(target int) []StepID {
	var missing []StepID
	for _, s := range m.visible[:target] {
		if s.IsOptional {
			continue
		}
		if _, ok := m.state.StepOutputs[s.ID]; !ok {
			missing = append(missing, s.ID)
		}
	}
	return missing
}

func joinIDs(ids []StepID) string {
	out := ""
	for i, id := range ids {
		if i > 0 {
			out += ", "
		}
		out += string(id)
	}
	return out
}
