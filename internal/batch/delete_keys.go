package batch

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"horse.fit/polyglot/internal/db"
)

type DeleteKeysRequest struct {
	KeyIDs []int64 `json:"keyIds"`
}

type KeyDeleter interface {
	DeleteKeys(ctx context.Context, projectID int64, keyIDs []int64) (db.DeleteKeysResult, error)
}

// DeleteKeysProcessor removes keys with their translations and metadata.
type DeleteKeysProcessor struct {
	store        KeyDeleter
	subBatchSize int
	logger       zerolog.Logger
}

func NewDeleteKeysProcessor(store KeyDeleter, subBatchSize int, logger zerolog.Logger) *DeleteKeysProcessor {
	return &DeleteKeysProcessor{store: store, subBatchSize: subBatchSize, logger: logger}
}

func (p *DeleteKeysProcessor) Target(req json.RawMessage) ([]int64, error) {
	var body DeleteKeysRequest
	if err := decodeRequest(req, &body); err != nil {
		return nil, err
	}
	return uniqueIDs(body.KeyIDs), nil
}

func (p *DeleteKeysProcessor) Params(json.RawMessage, Job) (any, error) {
	return nil, nil
}

func (p *DeleteKeysProcessor) Process(ctx context.Context, job Job, chunk []int64, onProgress func(int)) error {
	return runSubBatches(ctx, chunk, p.subBatchSize, onProgress, func(ctx context.Context, ids []int64) error {
		result, err := p.store.DeleteKeys(ctx, job.ProjectID, ids)
		if err != nil {
			return fmt.Errorf("delete %d keys: %w", len(ids), err)
		}
		p.logger.Debug().
			Str("job_uuid", job.UUID).
			Int64("keys", result.Keys).
			Int64("translations", result.Translations).
			Int64("comments", result.Comments).
			Msg("deleted key sub-batch")
		return nil
	})
}
