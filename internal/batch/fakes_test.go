package batch

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"horse.fit/polyglot/internal/db"
)

type memoryJobStore struct {
	mu     sync.Mutex
	nextID int64
	jobs   map[int64]*db.BatchJob
	chunks map[int64]map[int]db.BatchJobChunkExecution
}

func newMemoryJobStore() *memoryJobStore {
	return &memoryJobStore{
		jobs:   make(map[int64]*db.BatchJob),
		chunks: make(map[int64]map[int]db.BatchJobChunkExecution),
	}
}

func (s *memoryJobStore) CreateBatchJob(_ context.Context, row *db.BatchJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	row.BatchJobID = s.nextID
	copied := *row
	s.jobs[row.BatchJobID] = &copied
	return nil
}

func (s *memoryJobStore) GetBatchJob(_ context.Context, jobID int64) (*db.BatchJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.jobs[jobID]
	if !ok {
		return nil, db.ErrNoRows
	}
	copied := *row
	return &copied, nil
}

func (s *memoryJobStore) GetBatchJobByUUID(_ context.Context, jobUUID string) (*db.BatchJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range s.jobs {
		if row.BatchJobUUID == jobUUID {
			copied := *row
			return &copied, nil
		}
	}
	return nil, db.ErrNoRows
}

func (s *memoryJobStore) MarkBatchJobRunning(_ context.Context, jobID int64, startedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.jobs[jobID]
	if !ok || row.Status != db.BatchJobPending {
		return db.ErrNoRows
	}
	row.Status = db.BatchJobRunning
	row.StartedAt = &startedAt
	return nil
}

func (s *memoryJobStore) UpdateBatchJobProgress(_ context.Context, jobID int64, progress int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.jobs[jobID]
	if ok && row.Status == db.BatchJobRunning && progress > row.Progress {
		row.Progress = progress
	}
	return nil
}

func (s *memoryJobStore) FinishBatchJob(_ context.Context, jobID int64, status string, progress int64, errorMessage *string, finishedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.jobs[jobID]
	if !ok {
		return db.ErrNoRows
	}
	row.Status = status
	row.Progress = progress
	row.ErrorMessage = errorMessage
	row.FinishedAt = &finishedAt
	return nil
}

func (s *memoryJobStore) SaveChunkExecution(_ context.Context, row *db.BatchJobChunkExecution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.chunks[row.BatchJobID] == nil {
		s.chunks[row.BatchJobID] = make(map[int]db.BatchJobChunkExecution)
	}
	s.chunks[row.BatchJobID][row.ChunkNumber] = *row
	return nil
}

func (s *memoryJobStore) ListChunkExecutions(_ context.Context, jobID int64) ([]db.BatchJobChunkExecution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]db.BatchJobChunkExecution, 0, len(s.chunks[jobID]))
	for _, row := range s.chunks[jobID] {
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChunkNumber < out[j].ChunkNumber })
	return out, nil
}

// recordingDeleter records every committed sub-batch. Hooks run before the
// sub-batch is recorded and may fail it.
type recordingDeleter struct {
	mu        sync.Mutex
	batches   [][]int64
	failOn    int64
	afterCall func(call int)
	beforeRun func(call int)
}

func (d *recordingDeleter) DeleteKeys(_ context.Context, _ int64, keyIDs []int64) (db.DeleteKeysResult, error) {
	d.mu.Lock()
	call := len(d.batches) + 1
	before := d.beforeRun
	d.mu.Unlock()

	if before != nil {
		before(call)
	}
	for _, id := range keyIDs {
		if d.failOn != 0 && id == d.failOn {
			return db.DeleteKeysResult{}, fmt.Errorf("key %d is locked", id)
		}
	}

	d.mu.Lock()
	d.batches = append(d.batches, append([]int64(nil), keyIDs...))
	after := d.afterCall
	d.mu.Unlock()

	if after != nil {
		after(call)
	}
	return db.DeleteKeysResult{Keys: int64(len(keyIDs))}, nil
}

func (d *recordingDeleter) committed() []int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []int64
	for _, batch := range d.batches {
		out = append(out, batch...)
	}
	return out
}

func (d *recordingDeleter) calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.batches)
}

func sequence(n int) []int64 {
	out := make([]int64, n)
	for i := range out {
		out[i] = int64(i + 1)
	}
	return out
}
