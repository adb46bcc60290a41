package batch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"horse.fit/polyglot/internal/db"
	"horse.fit/polyglot/internal/globaltime"
)

// JobStore persists batch jobs and their chunk executions.
type JobStore interface {
	CreateBatchJob(ctx context.Context, row *db.BatchJob) error
	GetBatchJob(ctx context.Context, jobID int64) (*db.BatchJob, error)
	GetBatchJobByUUID(ctx context.Context, jobUUID string) (*db.BatchJob, error)
	MarkBatchJobRunning(ctx context.Context, jobID int64, startedAt time.Time) error
	UpdateBatchJobProgress(ctx context.Context, jobID int64, progress int64) error
	FinishBatchJob(ctx context.Context, jobID int64, status string, progress int64, errorMessage *string, finishedAt time.Time) error
	SaveChunkExecution(ctx context.Context, row *db.BatchJobChunkExecution) error
	ListChunkExecutions(ctx context.Context, jobID int64) ([]db.BatchJobChunkExecution, error)
}

type Options struct {
	ChunkSize   int
	Concurrency int
	Logger      zerolog.Logger
}

type SubmitRequest struct {
	ProjectID int64
	AuthorID  *int64
	Type      JobType
	Payload   json.RawMessage
}

// Coordinator splits jobs into chunks, runs them through their processor and
// records the outcome. Jobs started with Start can be cancelled with Cancel.
type Coordinator struct {
	store       JobStore
	registry    *Registry
	chunkSize   int
	concurrency int
	logger      zerolog.Logger

	mu     sync.Mutex
	active map[int64]*activeJob
	closed bool
}

type activeJob struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func NewCoordinator(store JobStore, registry *Registry, opts Options) *Coordinator {
	chunkSize := opts.ChunkSize
	if chunkSize < 1 {
		chunkSize = DefaultChunkSize
	}
	concurrency := opts.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	return &Coordinator{
		store:       store,
		registry:    registry,
		chunkSize:   chunkSize,
		concurrency: concurrency,
		logger:      opts.Logger,
		active:      make(map[int64]*activeJob),
	}
}

// Submit validates a request and persists it as a PENDING job.
func (c *Coordinator) Submit(ctx context.Context, req SubmitRequest) (Job, error) {
	if req.ProjectID <= 0 {
		return Job{}, fmt.Errorf("%w: project id is required", ErrValidation)
	}
	processor, err := c.registry.Processor(req.Type)
	if err != nil {
		return Job{}, err
	}

	targets, err := processor.Target(req.Payload)
	if err != nil {
		return Job{}, err
	}
	if len(targets) == 0 {
		return Job{}, fmt.Errorf("%w: job has no targets", ErrValidation)
	}

	job := Job{
		UUID:       uuid.NewString(),
		ProjectID:  req.ProjectID,
		AuthorID:   req.AuthorID,
		Type:       req.Type,
		Status:     db.BatchJobPending,
		Targets:    targets,
		TotalItems: len(targets),
		ChunkSize:  c.chunkSize,
		CreatedAt:  globaltime.UTC(),
	}

	params, err := processor.Params(req.Payload, job)
	if err != nil {
		return Job{}, err
	}
	if params != nil {
		encoded, err := json.Marshal(params)
		if err != nil {
			return Job{}, fmt.Errorf("encode job params: %w", err)
		}
		job.Params = encoded
	}

	encodedTargets, err := json.Marshal(targets)
	if err != nil {
		return Job{}, fmt.Errorf("encode job targets: %w", err)
	}

	row := &db.BatchJob{
		BatchJobUUID: job.UUID,
		ProjectID:    job.ProjectID,
		AuthorID:     job.AuthorID,
		Type:         string(job.Type),
		Status:       job.Status,
		Targets:      encodedTargets,
		Params:       job.Params,
		TotalItems:   job.TotalItems,
		ChunkSize:    job.ChunkSize,
		CreatedAt:    job.CreatedAt,
	}
	if err := c.store.CreateBatchJob(ctx, row); err != nil {
		return Job{}, fmt.Errorf("persist batch job: %w", err)
	}
	job.ID = row.BatchJobID

	c.logger.Info().
		Str("job_uuid", job.UUID).
		Str("type", string(job.Type)).
		Int64("project_id", job.ProjectID).
		Int("total_items", job.TotalItems).
		Msg("batch job submitted")
	return job, nil
}

// Start submits a job and runs it in the background. The run is detached from
// ctx's cancellation; use Cancel to stop it.
func (c *Coordinator) Start(ctx context.Context, req SubmitRequest) (Job, error) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return Job{}, fmt.Errorf("%w: coordinator is shutting down", ErrInvalidState)
	}

	job, err := c.Submit(ctx, req)
	if err != nil {
		return Job{}, err
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	entry, err := c.track(job.ID, cancel)
	if err != nil {
		cancel()
		return Job{}, err
	}
	go func() {
		defer c.untrack(job.ID, entry)
		if _, err := c.run(runCtx, job.ID); err != nil {
			c.logger.Error().Err(err).Str("job_uuid", job.UUID).Msg("batch job run failed")
		}
	}()
	return job, nil
}

// Run executes a PENDING job to completion and returns its final state.
// Cancelling ctx cancels the job.
func (c *Coordinator) Run(ctx context.Context, jobID int64) (Job, error) {
	runCtx, cancel := context.WithCancel(ctx)
	entry, err := c.track(jobID, cancel)
	if err != nil {
		cancel()
		return Job{}, err
	}
	defer c.untrack(jobID, entry)
	return c.run(runCtx, jobID)
}

// Cancel requests cooperative cancellation of a job running in this coordinator.
func (c *Coordinator) Cancel(jobID int64) error {
	c.mu.Lock()
	entry, ok := c.active[jobID]
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: job %d", ErrJobNotRunning, jobID)
	}
	entry.cancel()
	return nil
}

// Wait blocks until the job finishes running in this coordinator. It returns
// immediately when the job is not running here.
func (c *Coordinator) Wait(ctx context.Context, jobID int64) error {
	c.mu.Lock()
	entry, ok := c.active[jobID]
	c.mu.Unlock()
	if !ok {
		return nil
	}
	select {
	case <-entry.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown cancels every job running in this coordinator and waits until their
// outcome is recorded. No job can be started once Shutdown was called.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	c.closed = true
	entries := make([]*activeJob, 0, len(c.active))
	for _, entry := range c.active {
		entries = append(entries, entry)
	}
	c.mu.Unlock()

	for _, entry := range entries {
		entry.cancel()
	}
	for _, entry := range entries {
		select {
		case <-entry.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if len(entries) > 0 {
		c.logger.Info().Int("jobs", len(entries)).Msg("batch jobs cancelled on shutdown")
	}
	return nil
}

func (c *Coordinator) Get(ctx context.Context, jobID int64) (Job, error) {
	row, err := c.store.GetBatchJob(ctx, jobID)
	if err != nil {
		if db.IsNoRows(err) {
			return Job{}, fmt.Errorf("%w: job %d", ErrJobNotFound, jobID)
		}
		return Job{}, err
	}
	return jobFromRow(*row)
}

// Lookup resolves a job by numeric id or UUID.
func (c *Coordinator) Lookup(ctx context.Context, ref string) (Job, error) {
	ref = strings.TrimSpace(ref)
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		return c.Get(ctx, id)
	}
	if _, err := uuid.Parse(ref); err != nil {
		return Job{}, fmt.Errorf("%w: %q is neither a job id nor a uuid", ErrValidation, ref)
	}
	row, err := c.store.GetBatchJobByUUID(ctx, ref)
	if err != nil {
		if db.IsNoRows(err) {
			return Job{}, fmt.Errorf("%w: job %s", ErrJobNotFound, ref)
		}
		return Job{}, err
	}
	return jobFromRow(*row)
}

func (c *Coordinator) ListChunks(ctx context.Context, jobID int64) ([]ChunkExecution, error) {
	if _, err := c.Get(ctx, jobID); err != nil {
		return nil, err
	}
	rows, err := c.store.ListChunkExecutions(ctx, jobID)
	if err != nil {
		return nil, err
	}
	out := make([]ChunkExecution, 0, len(rows))
	for _, row := range rows {
		out = append(out, chunkFromRow(row))
	}
	return out, nil
}

func (c *Coordinator) track(jobID int64, cancel context.CancelFunc) (*activeJob, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, fmt.Errorf("%w: coordinator is shutting down", ErrInvalidState)
	}
	if _, exists := c.active[jobID]; exists {
		return nil, fmt.Errorf("%w: job %d is already running", ErrInvalidState, jobID)
	}
	entry := &activeJob{cancel: cancel, done: make(chan struct{})}
	c.active[jobID] = entry
	return entry, nil
}

func (c *Coordinator) untrack(jobID int64, entry *activeJob) {
	entry.cancel()
	c.mu.Lock()
	if c.active[jobID] == entry {
		delete(c.active, jobID)
	}
	c.mu.Unlock()
	close(entry.done)
}

func (c *Coordinator) run(ctx context.Context, jobID int64) (Job, error) {
	job, err := c.Get(ctx, jobID)
	if err != nil {
		return Job{}, err
	}
	if job.Status != db.BatchJobPending {
		return job, fmt.Errorf("%w: job %s is %s", ErrInvalidState, job.UUID, job.Status)
	}
	processor, err := c.registry.Processor(job.Type)
	if err != nil {
		return job, err
	}

	// Bookkeeping writes must land even after the job is cancelled.
	storeCtx := context.WithoutCancel(ctx)

	if err := c.store.MarkBatchJobRunning(storeCtx, job.ID, globaltime.UTC()); err != nil {
		if db.IsNoRows(err) {
			return job, fmt.Errorf("%w: job %s is no longer pending", ErrInvalidState, job.UUID)
		}
		return job, err
	}
	job.Status = db.BatchJobRunning

	logger := c.logger.With().Str("job_uuid", job.UUID).Str("type", string(job.Type)).Logger()
	chunks := Partition(job.Targets, job.ChunkSize)
	logger.Info().Int("chunks", len(chunks)).Int("total_items", job.TotalItems).Msg("batch job started")

	var progress atomic.Int64
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(c.concurrency)
	for i, chunk := range chunks {
		group.Go(func() error {
			return c.runChunk(groupCtx, storeCtx, logger, job, processor, i, chunk, &progress)
		})
	}
	runErr := group.Wait()

	status := db.BatchJobSuccess
	var message *string
	switch {
	case runErr == nil:
	case errors.Is(runErr, ErrCancelled), ctx.Err() != nil && errors.Is(runErr, context.Canceled):
		status = db.BatchJobCancelled
		text := runErr.Error()
		message = &text
	default:
		status = db.BatchJobFailed
		text := runErr.Error()
		message = &text
	}

	total := progress.Load()
	if err := c.store.FinishBatchJob(storeCtx, job.ID, status, total, message, globaltime.UTC()); err != nil {
		return job, fmt.Errorf("record batch job outcome: %w", err)
	}

	event := logger.Info()
	if status == db.BatchJobFailed {
		event = logger.Error().Err(runErr)
	}
	event.Str("status", status).Int64("progress", total).Msg("batch job finished")

	return c.Get(storeCtx, job.ID)
}

func (c *Coordinator) runChunk(
	ctx context.Context,
	storeCtx context.Context,
	logger zerolog.Logger,
	job Job,
	processor Processor,
	number int,
	chunk []int64,
	progress *atomic.Int64,
) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w before chunk %d: %w", ErrCancelled, number, err)
	}

	execution := &db.BatchJobChunkExecution{
		BatchJobID:  job.ID,
		ChunkNumber: number,
		Status:      db.BatchJobRunning,
		StartedAt:   globaltime.UTC(),
	}
	if err := c.store.SaveChunkExecution(storeCtx, execution); err != nil {
		return fmt.Errorf("record chunk %d start: %w", number, err)
	}

	reported := 0
	err := processor.Process(ctx, job, chunk, func(processed int) {
		if processed <= reported || processed > len(chunk) {
			return
		}
		delta := processed - reported
		reported = processed
		total := progress.Add(int64(delta))
		if err := c.store.UpdateBatchJobProgress(storeCtx, job.ID, total); err != nil {
			logger.Warn().Err(err).Int("chunk", number).Msg("persist batch job progress")
		}
	})

	execution.Processed = reported
	execution.FinishedAt = globaltime.UTCPtr()
	switch {
	case err == nil:
		execution.Status = db.BatchJobSuccess
	case errors.Is(err, ErrCancelled):
		execution.Status = db.BatchJobCancelled
	default:
		execution.Status = db.BatchJobFailed
	}
	if err != nil {
		text := err.Error()
		execution.ErrorMessage = &text
	}
	if saveErr := c.store.SaveChunkExecution(storeCtx, execution); saveErr != nil {
		logger.Warn().Err(saveErr).Int("chunk", number).Msg("record chunk outcome")
	}

	if err != nil {
		return fmt.Errorf("chunk %d: %w", number, err)
	}
	logger.Debug().Int("chunk", number).Int("processed", reported).Msg("chunk finished")
	return nil
}
