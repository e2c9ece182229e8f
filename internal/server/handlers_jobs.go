package server

import (
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/jonathan/preflight-agent/internal/db"
	"github.com/jonathan/preflight-agent/internal/types"
)

// JobListResponse is the body of GET /jobs.
type JobListResponse struct {
	Jobs []types.Job `json:"jobs"`
	// Source is "history" when read from the database, "memory" otherwise.
	Source string `json:"source"`
}

// handleListJobs lists jobs, from the history store when one is configured and
// from the orchestrator's latest job per kind otherwise.
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters := db.JobFilters{
		Kind:   q.Get("kind"),
		Status: q.Get("status"),
	}
	if filters.Kind != "" && !types.JobKind(filters.Kind).Valid() {
		s.errorFrom(w, &ErrValidation{Field: "kind", Message: "unknown job kind"})
		return
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			s.errorFrom(w, &ErrValidation{Field: "limit", Message: "must be a positive integer"})
			return
		}
		filters.Limit = limit
	}

	if s.history != nil {
		records, err := s.history.ListJobs(r.Context(), filters)
		if err != nil {
			s.errorFrom(w, err)
			return
		}
		out := make([]types.Job, 0, len(records))
		for _, rec := range records {
			out = append(out, rec.Job())
		}
		s.jsonResponse(w, http.StatusOK, JobListResponse{Jobs: out, Source: "history"})
		return
	}

	out := make([]types.Job, 0)
	for _, job := range s.orch.Snapshot() {
		if filters.Kind != "" && string(job.Kind) != filters.Kind {
			continue
		}
		if filters.Status != "" && string(job.Status) != filters.Status {
			continue
		}
		out = append(out, job)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if filters.Limit > 0 && len(out) > filters.Limit {
		out = out[:filters.Limit]
	}
	s.jsonResponse(w, http.StatusOK, JobListResponse{Jobs: out, Source: "memory"})
}

// handleGetJob returns the known state of a job. ?refresh=true polls the
// Processing API first.
func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var (
		job types.Job
		err error
	)
	if refresh, _ := strconv.ParseBool(r.URL.Query().Get("refresh")); refresh {
		job, err = s.orch.Poll(r.Context(), id)
	} else {
		job, err = s.orch.Get(id)
	}
	if err != nil {
		s.errorFrom(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, job)
}

func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.orch.Cancel(r.Context(), id); err != nil {
		s.errorFrom(w, err)
		return
	}
	job, err := s.orch.Get(id)
	if err != nil {
		s.errorFrom(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, job)
}

// handleJobEvents streams job updates as server-sent events until the job
// reaches a terminal state or the client goes away.
func (s *Server) handleJobEvents(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	// Subscribe before reading the current state so no transition is missed.
	updates, unsubscribe := s.orch.Subscribe(id)
	defer unsubscribe()

	job, err := s.orch.Get(id)
	if err != nil {
		s.errorFrom(w, err)
		return
	}

	stream, err := newJobEventWriter(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	if done, err := stream.Job(job); done || err != nil {
		return
	}

	keepAlive := time.NewTicker(sseKeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-s.baseCtx.Done():
			stream.Error("server shutting down")
			return
		case <-keepAlive.C:
			if err := stream.KeepAlive(); err != nil {
				return
			}
		case update, ok := <-updates:
			if !ok {
				return
			}
			done, err := stream.Job(update)
			if err != nil {
				s.logger.Debug("job event stream closed", "job_id", id, "error", err)
				return
			}
			if done {
				return
			}
		}
	}
}
