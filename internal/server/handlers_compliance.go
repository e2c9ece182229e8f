package server

import (
	"net/http"

	"github.com/jonathan/preflight-agent/internal/aggregation"
	"github.com/jonathan/preflight-agent/internal/types"
)

// ComplianceRequest is the body of POST /compliance.
type ComplianceRequest struct {
	FilePath  string   `json:"file_path" validate:"required"`
	Standards []string `json:"standards" validate:"required,min=1,dive,required"`
}

// ComplianceResponse is the body returned by POST /compliance.
type ComplianceResponse struct {
	Results   types.MultiStandardResult        `json:"results"`
	Summary   aggregation.MultiStandardSummary `json:"summary"`
	Compliant bool                             `json:"compliant"`
}

// handleCompliance validates a local document against several standards and
// blocks until every verdict is in.
func (s *Server) handleCompliance(w http.ResponseWriter, r *http.Request) {
	if s.compliance == nil {
		s.errorResponse(w, http.StatusNotImplemented, "compliance checks are not configured")
		return
	}

	var req ComplianceRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		s.errorFrom(w, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		field := "standards"
		if req.FilePath == "" {
			field = "file_path"
		}
		s.errorFrom(w, &ErrValidation{Field: field, Message: err.Error()})
		return
	}

	doc, err := types.OpenDocument(req.FilePath)
	if err != nil {
		s.errorFrom(w, &ErrValidation{Field: "file_path", Message: err.Error()})
		return
	}

	results, err := s.compliance.Run(r.Context(), doc, req.Standards)
	if err != nil {
		s.errorFrom(w, err)
		return
	}

	summary := aggregation.AggregateMultiStandard(results)
	s.logger.Info("compliance check finished", "file", doc.Name, "standards", len(req.Standards), "compliant", summary.OverallCompliant)
	s.jsonResponse(w, http.StatusOK, ComplianceResponse{
		Results:   results,
		Summary:   summary,
		Compliant: summary.OverallCompliant,
	})
}
