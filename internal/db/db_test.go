package db

import (
	"testing"
	"time"

	"github.com/jonathan/preflight-agent/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionEventConstants(t *testing.T) {
	assert.Equal(t, "started", SessionEventStarted)
	assert.Equal(t, "completed", SessionEventCompleted)
	assert.Equal(t, "skipped", SessionEventSkipped)
	assert.Equal(t, "failed", SessionEventFailed)
	assert.Equal(t, "reset", SessionEventReset)
}

func TestBuildListJobsQuery(t *testing.T) {
	tests := []struct {
		name         string
		filters      JobFilters
		wantContains []string
		wantArgs     []any
	}{
		{
			name:         "no filters uses default limit",
			filters:      JobFilters{},
			wantContains: []string{"ORDER BY created_at DESC LIMIT $1"},
			wantArgs:     []any{DefaultListLimit},
		},
		{
			name:         "kind only",
			filters:      JobFilters{Kind: "validate", Limit: 10},
			wantContains: []string{"AND kind = $1", "LIMIT $2"},
			wantArgs:     []any{"validate", 10},
		},
		{
			name:         "kind and status",
			filters:      JobFilters{Kind: "fix", Status: "failed", Limit: 5},
			wantContains: []string{"AND kind = $1", "AND status = $2", "LIMIT $3"},
			wantArgs:     []any{"fix", "failed", 5},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, args := buildListJobsQuery(tt.filters)
			for _, want := range tt.wantContains {
				assert.Contains(t, query, want)
			}
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestRecordFromJob(t *testing.T) {
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	updated := created.Add(30 * time.Second)

	rec := recordFromJob(types.Job{
		ID:        "validate:p1",
		RemoteID:  "p1",
		Kind:      types.JobKindValidate,
		Status:    types.JobStatusCompleted,
		Progress:  100,
		ResultID:  "r1",
		CreatedAt: created,
		UpdatedAt: updated,
	})

	assert.Equal(t, "validate:p1", rec.JobID)
	assert.Equal(t, "p1", rec.RemoteID)
	assert.Equal(t, "validate", rec.Kind)
	assert.Equal(t, "completed", rec.Status)
	require.NotNil(t, rec.ResultID)
	assert.Equal(t, "r1", *rec.ResultID)
	assert.Nil(t, rec.DownloadURL)
	assert.Nil(t, rec.ErrorMessage)
	require.NotNil(t, rec.FinishedAt)
	assert.Equal(t, updated, *rec.FinishedAt)

	again := recordFromJob(types.Job{ID: "validate:p1", Status: types.JobStatusProcessing})
	assert.Equal(t, rec.ID, again.ID, "row id is stable per job id")
	assert.Nil(t, again.FinishedAt)
	assert.False(t, again.CreatedAt.IsZero())
	assert.Equal(t, again.CreatedAt, again.UpdatedAt)

	other := recordFromJob(types.Job{ID: "validate:p2"})
	assert.NotEqual(t, rec.ID, other.ID)

	fix := recordFromJob(types.Job{ID: types.JobKey(types.JobKindFix, "p1"), RemoteID: "p1", Kind: types.JobKindFix})
	assert.NotEqual(t, rec.ID, fix.ID, "same remote id under another kind is another row")
	assert.NotEqual(t, rec.JobID, fix.JobID)
}

func TestJobRecord_Job(t *testing.T) {
	msg := "Corrupt xref table"
	rec := JobRecord{JobID: "validate:p1", RemoteID: "p1", Kind: "validate", Status: "failed", Progress: 40, ErrorMessage: &msg}

	job := rec.Job()
	assert.Equal(t, "validate:p1", job.ID)
	assert.Equal(t, "p1", job.RemoteID)
	assert.Equal(t, types.JobKindValidate, job.Kind)
	assert.Equal(t, types.JobStatusFailed, job.Status)
	assert.Equal(t, 40, job.Progress)
	assert.Equal(t, msg, job.Error)
	assert.Empty(t, job.ResultID)
}
