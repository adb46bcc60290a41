package batch

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"horse.fit/polyglot/internal/db"
)

var (
	ErrCancelled     = errors.New("batch job cancelled")
	ErrJobNotFound   = errors.New("batch job not found")
	ErrJobNotRunning = errors.New("batch job is not running")
	ErrInvalidState  = errors.New("batch job is in an invalid state")
	ErrValidation    = errors.New("invalid batch job request")
)

type JobType string

const (
	JobDeleteKeys          JobType = "DELETE_KEYS"
	JobClearTranslations   JobType = "CLEAR_TRANSLATIONS"
	JobSetTranslationState JobType = "SET_TRANSLATION_STATE"
	JobMachineTranslate    JobType = "MACHINE_TRANSLATE"
)

// ParseJobType accepts the canonical name as well as the lower-case,
// dash-separated form used in URLs ("delete-keys").
func ParseJobType(raw string) (JobType, error) {
	normalized := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(raw), "-", "_"))
	switch JobType(normalized) {
	case JobDeleteKeys, JobClearTranslations, JobSetTranslationState, JobMachineTranslate:
		return JobType(normalized), nil
	default:
		return "", fmt.Errorf("%w: unknown job type %q", ErrValidation, raw)
	}
}

// Job is the coordinator's view of a persisted batch job.
type Job struct {
	ID           int64           `json:"id"`
	UUID         string          `json:"uuid"`
	ProjectID    int64           `json:"projectId"`
	AuthorID     *int64          `json:"authorId,omitempty"`
	Type         JobType         `json:"type"`
	Status       string          `json:"status"`
	Targets      []int64         `json:"-"`
	Params       json.RawMessage `json:"params,omitempty"`
	TotalItems   int             `json:"totalItems"`
	Progress     int64           `json:"progress"`
	ChunkSize    int             `json:"chunkSize"`
	ErrorMessage string          `json:"errorMessage,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
	StartedAt    *time.Time      `json:"startedAt,omitempty"`
	FinishedAt   *time.Time      `json:"finishedAt,omitempty"`
}

// Terminal reports whether the job reached a final status.
func (j Job) Terminal() bool {
	switch j.Status {
	case db.BatchJobSuccess, db.BatchJobFailed, db.BatchJobCancelled:
		return true
	default:
		return false
	}
}

// ChunkExecution is the recorded outcome of one chunk.
type ChunkExecution struct {
	ChunkNumber  int        `json:"chunkNumber"`
	Status       string     `json:"status"`
	Processed    int        `json:"processed"`
	ErrorMessage string     `json:"errorMessage,omitempty"`
	StartedAt    time.Time  `json:"startedAt"`
	FinishedAt   *time.Time `json:"finishedAt,omitempty"`
}

func jobFromRow(row db.BatchJob) (Job, error) {
	job := Job{
		ID:         row.BatchJobID,
		UUID:       row.BatchJobUUID,
		ProjectID:  row.ProjectID,
		AuthorID:   row.AuthorID,
		Type:       JobType(row.Type),
		Status:     row.Status,
		Params:     row.Params,
		TotalItems: row.TotalItems,
		Progress:   row.Progress,
		ChunkSize:  row.ChunkSize,
		CreatedAt:  row.CreatedAt,
		StartedAt:  row.StartedAt,
		FinishedAt: row.FinishedAt,
	}
	if row.ErrorMessage != nil {
		job.ErrorMessage = *row.ErrorMessage
	}
	if len(row.Targets) > 0 {
		if err := json.Unmarshal(row.Targets, &job.Targets); err != nil {
			return Job{}, fmt.Errorf("decode targets of batch job %d: %w", row.BatchJobID, err)
		}
	}
	return job, nil
}

func chunkFromRow(row db.BatchJobChunkExecution) ChunkExecution {
	out := ChunkExecution{
		ChunkNumber: row.ChunkNumber,
		Status:      row.Status,
		Processed:   row.Processed,
		StartedAt:   row.StartedAt,
		FinishedAt:  row.FinishedAt,
	}
	if row.ErrorMessage != nil {
		out.ErrorMessage = *row.ErrorMessage
	}
	return out
}
