// Package wizard sequences the upload, OCR, redaction, preflight and fix steps
// of a document session and carries each step's output forward.
package wizard

import "fmt"

// StepID identifies a wizard step.
type StepID string

// Step identifiers
const (
	StepUpload    StepID = "upload"
	StepOCR       StepID = "ocr"
	StepRedaction StepID = "redaction"
	StepPreflight StepID = "preflight"
	StepFixes     StepID = "fixes"
	// StepSuccess is the terminal pseudo step entered when fixes complete.
	StepSuccess StepID = "success"
)

// Step describes one wizard step.
type Step struct {
	ID         StepID `json:"id"`
	Title      string `json:"title"`
	IsOptional bool   `json:"isOptional"`
	IsProOnly  bool   `json:"isProOnly"`
}

// DefaultSteps returns the standard step sequence.
func DefaultSteps() []Step {
	return []Step{
		{ID: StepUpload, Title: "Upload document"},
		{ID: StepOCR, Title: "Recognize text", IsOptional: true, IsProOnly: true},
		{ID: StepRedaction, Title: "Redact sensitive content", IsOptional: true, IsProOnly: true},
		{ID: StepPreflight, Title: "Preflight check"},
		{ID: StepFixes, Title: "Apply fixes"},
	}
}

// Entitlement carries the caller's plan. Pro-only steps are hidden without it.
type Entitlement struct {
	ProOrTeam bool `json:"proOrTeam"`
}

// Mode is how the fixes step is presented.
type Mode string

// Mode values
const (
	ModeNormal Mode = "normal"
	// ModeNoOp means preflight found nothing; only optional optimizations are offered.
	ModeNoOp Mode = "no_op"
)

// InvalidTransitionError is returned when a step is entered or completed out of order.
type InvalidTransitionError struct {
	From   StepID
	To     StepID
	Reason string
}

func (e *InvalidTransitionError) Error() string {
	if e.To == "" {
		return fmt.Sprintf("invalid wizard transition from %s: %s", e.From, e.Reason)
	}
	return fmt.Sprintf("invalid wizard transition from %s to %s: %s", e.From, e.To, e.Reason)
}

// ParseStepID validates a step identifier received from outside the process.
func ParseStepID(s string) (StepID, error) {
	switch id := StepID(s); id {
	case StepUpload, StepOCR, StepRedaction, StepPreflight, StepFixes:
		return id, nil
	}
	return "", fmt.Errorf("unknown wizard step: %q", s)
}
