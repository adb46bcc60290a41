package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/polyglot/internal/db"
	"horse.fit/polyglot/internal/globaltime"
)

type SetTranslationStateRequest struct {
	KeyIDs      []int64 `json:"keyIds"`
	LanguageIDs []int64 `json:"languageIds"`
	State       string  `json:"state"`
}

type setStateParams struct {
	LanguageIDs []int64 `json:"languageIds"`
	State       string  `json:"state"`
}

type TranslationStateSetter interface {
	SetTranslationState(ctx context.Context, projectID int64, keyIDs, languageIDs []int64, state string, now time.Time) (int64, error)
}

// SetStateProcessor moves existing translations to a new workflow state.
type SetStateProcessor struct {
	store        TranslationStateSetter
	subBatchSize int
	logger       zerolog.Logger
}

func NewSetStateProcessor(store TranslationStateSetter, subBatchSize int, logger zerolog.Logger) *SetStateProcessor {
	return &SetStateProcessor{store: store, subBatchSize: subBatchSize, logger: logger}
}

func (p *SetStateProcessor) Target(req json.RawMessage) ([]int64, error) {
	var body SetTranslationStateRequest
	if err := decodeRequest(req, &body); err != nil {
		return nil, err
	}
	return uniqueIDs(body.KeyIDs), nil
}

func (p *SetStateProcessor) Params(req json.RawMessage, _ Job) (any, error) {
	var body SetTranslationStateRequest
	if err := decodeRequest(req, &body); err != nil {
		return nil, err
	}
	state := strings.ToUpper(strings.TrimSpace(body.State))
	switch state {
	case db.TranslationStateUntranslated, db.TranslationStateTranslated, db.TranslationStateReviewed:
	default:
		return nil, fmt.Errorf("%w: unsupported translation state %q", ErrValidation, body.State)
	}
	languageIDs := uniqueIDs(body.LanguageIDs)
	if len(languageIDs) == 0 {
		return nil, fmt.Errorf("%w: languageIds is required", ErrValidation)
	}
	return setStateParams{LanguageIDs: languageIDs, State: state}, nil
}

func (p *SetStateProcessor) Process(ctx context.Context, job Job, chunk []int64, onProgress func(int)) error {
	var params setStateParams
	if err := decodeParams(job, &params); err != nil {
		return err
	}
	return runSubBatches(ctx, chunk, p.subBatchSize, onProgress, func(ctx context.Context, ids []int64) error {
		updated, err := p.store.SetTranslationState(ctx, job.ProjectID, ids, params.LanguageIDs, params.State, globaltime.UTC())
		if err != nil {
			return fmt.Errorf("set state %s on %d keys: %w", params.State, len(ids), err)
		}
		p.logger.Debug().Str("job_uuid", job.UUID).Int64("updated", updated).Msg("updated translation state sub-batch")
		return nil
	})
}
