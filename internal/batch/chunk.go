package batch

import (
	"context"
	"fmt"
)

// DefaultChunkSize bounds how many targets one chunk carries.
const DefaultChunkSize = 100

// DefaultSubBatchSize bounds how many targets one committed mutation touches.
const DefaultSubBatchSize = 100

// Partition splits targets into consecutive slices of at most size elements.
// Concatenating the result yields targets unchanged. The returned slices share
// the backing array of targets.
func Partition(targets []int64, size int) [][]int64 {
	if len(targets) == 0 {
		return nil
	}
	if size < 1 {
		size = DefaultChunkSize
	}
	out := make([][]int64, 0, (len(targets)+size-1)/size)
	for start := 0; start < len(targets); start += size {
		end := min(start+size, len(targets))
		out = append(out, targets[start:end:end])
	}
	return out
}

// runSubBatches applies fn to consecutive sub-batches of chunk. Cancellation is
// checked before each sub-batch only; a started sub-batch runs to completion on
// a context that ignores cancellation. onProgress receives the cumulative
// number of processed targets after each successful sub-batch.
func runSubBatches(
	ctx context.Context,
	chunk []int64,
	size int,
	onProgress func(processed int),
	fn func(ctx context.Context, ids []int64) error,
) error {
	if size < 1 {
		size = DefaultSubBatchSize
	}
	work := context.WithoutCancel(ctx)
	processed := 0
	for _, ids := range Partition(chunk, size) {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w after %d of %d targets: %w", ErrCancelled, processed, len(chunk), err)
		}
		if err := fn(work, ids); err != nil {
			return err
		}
		processed += len(ids)
		if onProgress != nil {
			onProgress(processed)
		}
	}
	return nil
}

// uniqueIDs drops duplicates and non-positive ids, keeping first occurrences in order.
func uniqueIDs(ids []int64) []int64 {
	out := make([]int64, 0, len(ids))
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if id <= 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
