package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"horse.fit/polyglot/internal/batch"
)

type jobDetail struct {
	Job    batch.Job              `json:"job"`
	Chunks []batch.ChunkExecution `json:"chunks"`
}

func (s *Server) handleSubmitJob(c echo.Context) error {
	p := principalFromContext(c)
	jobType, err := batch.ParseJobType(c.Param("type"))
	if err != nil {
		return failValidation(c, map[string]string{"type": err.Error()})
	}

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return failValidation(c, map[string]string{"body": "could not be read"})
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 || !json.Valid(body) {
		return failValidation(c, map[string]string{"body": "must be a JSON object"})
	}

	authorID := p.UserID
	job, err := s.jobs.Start(c.Request().Context(), batch.SubmitRequest{
		ProjectID: p.ProjectID,
		AuthorID:  &authorID,
		Type:      jobType,
		Payload:   body,
	})
	if err != nil {
		return s.respondError(c, err, "Failed to start batch job")
	}
	return successWithStatus(c, http.StatusAccepted, map[string]any{"job": job})
}

func (s *Server) handleGetJob(c echo.Context) error {
	job, err := s.projectJob(c)
	if err != nil {
		return s.respondError(c, err, "Failed to load batch job")
	}
	chunks, err := s.jobs.ListChunks(c.Request().Context(), job.ID)
	if err != nil {
		return s.respondError(c, err, "Failed to load batch job chunks")
	}
	return success(c, jobDetail{Job: job, Chunks: chunks})
}

func (s *Server) handleCancelJob(c echo.Context) error {
	job, err := s.projectJob(c)
	if err != nil {
		return s.respondError(c, err, "Failed to load batch job")
	}
	if err := s.jobs.Cancel(job.ID); err != nil {
		return s.respondError(c, err, "Failed to cancel batch job")
	}
	return success(c, map[string]any{"job": job, "cancelRequested": true})
}

// projectJob loads the job named in the path, hiding jobs of other projects.
func (s *Server) projectJob(c echo.Context) (batch.Job, error) {
	jobID, err := parseIDParam(c, "jobID")
	if err != nil {
		return batch.Job{}, fmt.Errorf("%w: jobID %v", batch.ErrValidation, err)
	}
	job, err := s.jobs.Get(c.Request().Context(), jobID)
	if err != nil {
		return batch.Job{}, err
	}
	if job.ProjectID != principalFromContext(c).ProjectID {
		return batch.Job{}, fmt.Errorf("%w: job %d", batch.ErrJobNotFound, jobID)
	}
	return job, nil
}
