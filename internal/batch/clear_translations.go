package batch

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"
)

type ClearTranslationsRequest struct {
	KeyIDs      []int64 `json:"keyIds"`
	LanguageIDs []int64 `json:"languageIds"`
}

type clearTranslationsParams struct {
	LanguageIDs []int64 `json:"languageIds"`
}

type TranslationClearer interface {
	ClearTranslations(ctx context.Context, projectID int64, keyIDs, languageIDs []int64) (int64, error)
}

// ClearTranslationsProcessor removes stored translations of the selected
// languages so the keys read as untranslated.
type ClearTranslationsProcessor struct {
	store        TranslationClearer
	subBatchSize int
	logger       zerolog.Logger
}

func NewClearTranslationsProcessor(store TranslationClearer, subBatchSize int, logger zerolog.Logger) *ClearTranslationsProcessor {
	return &ClearTranslationsProcessor{store: store, subBatchSize: subBatchSize, logger: logger}
}

func (p *ClearTranslationsProcessor) Target(req json.RawMessage) ([]int64, error) {
	var body ClearTranslationsRequest
	if err := decodeRequest(req, &body); err != nil {
		return nil, err
	}
	return uniqueIDs(body.KeyIDs), nil
}

func (p *ClearTranslationsProcessor) Params(req json.RawMessage, _ Job) (any, error) {
	var body ClearTranslationsRequest
	if err := decodeRequest(req, &body); err != nil {
		return nil, err
	}
	languageIDs := uniqueIDs(body.LanguageIDs)
	if len(languageIDs) == 0 {
		return nil, fmt.Errorf("%w: languageIds is required", ErrValidation)
	}
	return clearTranslationsParams{LanguageIDs: languageIDs}, nil
}

func (p *ClearTranslationsProcessor) Process(ctx context.Context, job Job, chunk []int64, onProgress func(int)) error {
	var params clearTranslationsParams
	if err := decodeParams(job, &params); err != nil {
		return err
	}
	return runSubBatches(ctx, chunk, p.subBatchSize, onProgress, func(ctx context.Context, ids []int64) error {
		cleared, err := p.store.ClearTranslations(ctx, job.ProjectID, ids, params.LanguageIDs)
		if err != nil {
			return fmt.Errorf("clear translations of %d keys: %w", len(ids), err)
		}
		p.logger.Debug().Str("job_uuid", job.UUID).Int64("cleared", cleared).Msg("cleared translation sub-batch")
		return nil
	})
}
