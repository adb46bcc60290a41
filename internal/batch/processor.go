package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
)

// Processor executes one job type over chunks of target ids.
type Processor interface {
	// Process runs chunk in sub-batches, invoking onProgress with the
	// cumulative processed count after each committed sub-batch.
	Process(ctx context.Context, job Job, chunk []int64, onProgress func(processed int)) error
	// Target extracts the target ids from a request payload. It performs no I/O.
	Target(req json.RawMessage) ([]int64, error)
	// Params extracts the per-job parameters stored with the job. A nil result
	// means the job type needs none.
	Params(req json.RawMessage, job Job) (any, error)
}

// Registry dispatches job types to their processors.
type Registry struct {
	processors map[JobType]Processor
}

func NewRegistry() *Registry {
	return &Registry{processors: make(map[JobType]Processor)}
}

func (r *Registry) Register(jobType JobType, processor Processor) {
	r.processors[jobType] = processor
}

func (r *Registry) Processor(jobType JobType) (Processor, error) {
	if r == nil {
		return nil, fmt.Errorf("processor registry is nil")
	}
	processor, ok := r.processors[jobType]
	if !ok {
		return nil, fmt.Errorf("%w: no processor for job type %q (registered: %v)", ErrValidation, jobType, r.Types())
	}
	return processor, nil
}

func (r *Registry) Types() []JobType {
	if r == nil {
		return nil
	}
	types := make([]JobType, 0, len(r.processors))
	for jobType := range r.processors {
		types = append(types, jobType)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

func decodeRequest(raw json.RawMessage, dest any) error {
	if len(raw) == 0 {
		return fmt.Errorf("%w: request body is required", ErrValidation)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("%w: decode request: %v", ErrValidation, err)
	}
	return nil
}

func decodeParams(job Job, dest any) error {
	if len(job.Params) == 0 {
		return fmt.Errorf("batch job %s has no params", job.UUID)
	}
	if err := json.Unmarshal(job.Params, dest); err != nil {
		return fmt.Errorf("decode params of batch job %s: %w", job.UUID, err)
	}
	return nil
}
