package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func (p *Pool) CreateBatchJob(ctx context.Context, row *BatchJob) error {
	if row == nil {
		return fmt.Errorf("batch job is nil")
	}
	if err := p.gdb.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("insert batch job: %w", err)
	}
	return nil
}

func (p *Pool) GetBatchJob(ctx context.Context, jobID int64) (*BatchJob, error) {
	var row BatchJob
	err := p.gdb.WithContext(ctx).Where("batch_job_id = ?", jobID).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoRows
		}
		return nil, fmt.Errorf("query batch job: %w", err)
	}
	return &row, nil
}

func (p *Pool) GetBatchJobByUUID(ctx context.Context, jobUUID string) (*BatchJob, error) {
	var row BatchJob
	err := p.gdb.WithContext(ctx).Where("batch_job_uuid = ?", jobUUID).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoRows
		}
		return nil, fmt.Errorf("query batch job: %w", err)
	}
	return &row, nil
}

// MarkBatchJobRunning moves a PENDING job to RUNNING. It returns ErrNoRows when
// the job is missing or no longer pending.
func (p *Pool) MarkBatchJobRunning(ctx context.Context, jobID int64, startedAt time.Time) error {
	res := p.gdb.WithContext(ctx).
		Model(&BatchJob{}).
		Where("batch_job_id = ? AND status = ?", jobID, BatchJobPending).
		Updates(map[string]any{"status": BatchJobRunning, "started_at": startedAt.UTC()})
	if res.Error != nil {
		return fmt.Errorf("mark batch job running: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNoRows
	}
	return nil
}

// UpdateBatchJobProgress stores the accumulated progress of a running job.
// Progress never moves backwards.
func (p *Pool) UpdateBatchJobProgress(ctx context.Context, jobID int64, progress int64) error {
	const q = `
UPDATE polyglot.batch_jobs
SET progress = GREATEST(progress, ?)
WHERE batch_job_id = ?
  AND status = ?
`
	if _, err := p.Exec(ctx, q, progress, jobID, BatchJobRunning); err != nil {
		return fmt.Errorf("update batch job progress: %w", err)
	}
	return nil
}

// FinishBatchJob records the terminal status of a job.
func (p *Pool) FinishBatchJob(ctx context.Context, jobID int64, status string, progress int64, errorMessage *string, finishedAt time.Time) error {
	res := p.gdb.WithContext(ctx).
		Model(&BatchJob{}).
		Where("batch_job_id = ?", jobID).
		Updates(map[string]any{
			"status":        status,
			"progress":      progress,
			"error_message": errorMessage,
			"finished_at":   finishedAt.UTC(),
		})
	if res.Error != nil {
		return fmt.Errorf("finish batch job: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNoRows
	}
	return nil
}

func (p *Pool) SaveChunkExecution(ctx context.Context, row *BatchJobChunkExecution) error {
	if row == nil {
		return fmt.Errorf("chunk execution is nil")
	}
	err := p.gdb.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "batch_job_id"}, {Name: "chunk_number"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "processed", "error_message", "finished_at"}),
	}).Create(row).Error
	if err != nil {
		return fmt.Errorf("save chunk execution: %w", err)
	}
	return nil
}

func (p *Pool) ListChunkExecutions(ctx context.Context, jobID int64) ([]BatchJobChunkExecution, error) {
	rows := make([]BatchJobChunkExecution, 0, 8)
	err := p.gdb.WithContext(ctx).
		Where("batch_job_id = ?", jobID).
		Order("chunk_number").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query chunk executions: %w", err)
	}
	return rows, nil
}
