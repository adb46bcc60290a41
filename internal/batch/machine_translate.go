package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"horse.fit/polyglot/internal/db"
	"horse.fit/polyglot/internal/globaltime"
	"horse.fit/polyglot/internal/translation"
)

type MachineTranslateRequest struct {
	KeyIDs            []int64 `json:"keyIds"`
	TargetLanguageIDs []int64 `json:"targetLanguageIds"`
	Provider          string  `json:"provider,omitempty"`
}

type machineTranslateParams struct {
	TargetLanguageIDs []int64 `json:"targetLanguageIds"`
	Provider          string  `json:"provider,omitempty"`
}

type MachineTranslationStore interface {
	GetLanguage(ctx context.Context, languageID int64) (*db.Language, error)
	ListBaseTexts(ctx context.Context, projectID int64, keyIDs []int64) (db.BaseTexts, error)
	UpsertTranslations(ctx context.Context, rows []db.TranslationUpsert, now time.Time) error
}

// MachineTranslateProcessor fills target languages from the project's base
// language through a translation provider. Provider calls share one limiter
// across all chunks.
type MachineTranslateProcessor struct {
	store        MachineTranslationStore
	providers    *translation.Registry
	limiter      *rate.Limiter
	subBatchSize int
	logger       zerolog.Logger
}

func NewMachineTranslateProcessor(
	store MachineTranslationStore,
	providers *translation.Registry,
	requestsPerSecond float64,
	subBatchSize int,
	logger zerolog.Logger,
) *MachineTranslateProcessor {
	limit := rate.Inf
	if requestsPerSecond > 0 {
		limit = rate.Limit(requestsPerSecond)
	}
	return &MachineTranslateProcessor{
		store:        store,
		providers:    providers,
		limiter:      rate.NewLimiter(limit, 1),
		subBatchSize: subBatchSize,
		logger:       logger,
	}
}

func (p *MachineTranslateProcessor) Target(req json.RawMessage) ([]int64, error) {
	var body MachineTranslateRequest
	if err := decodeRequest(req, &body); err != nil {
		return nil, err
	}
	return uniqueIDs(body.KeyIDs), nil
}

func (p *MachineTranslateProcessor) Params(req json.RawMessage, _ Job) (any, error) {
	var body MachineTranslateRequest
	if err := decodeRequest(req, &body); err != nil {
		return nil, err
	}
	targets := uniqueIDs(body.TargetLanguageIDs)
	if len(targets) == 0 {
		return nil, fmt.Errorf("%w: targetLanguageIds is required", ErrValidation)
	}
	return machineTranslateParams{
		TargetLanguageIDs: targets,
		Provider:          strings.TrimSpace(body.Provider),
	}, nil
}

func (p *MachineTranslateProcessor) Process(ctx context.Context, job Job, chunk []int64, onProgress func(int)) error {
	var params machineTranslateParams
	if err := decodeParams(job, &params); err != nil {
		return err
	}
	provider, err := p.providers.Provider(params.Provider)
	if err != nil {
		return err
	}
	providerName := provider.Name()

	targets := make([]db.Language, 0, len(params.TargetLanguageIDs))
	for _, id := range params.TargetLanguageIDs {
		language, err := p.store.GetLanguage(ctx, id)
		if err != nil {
			return fmt.Errorf("load target language %d: %w", id, err)
		}
		if language.ProjectID != job.ProjectID {
			return fmt.Errorf("target language %d does not belong to project %d", id, job.ProjectID)
		}
		targets = append(targets, *language)
	}

	return runSubBatches(ctx, chunk, p.subBatchSize, onProgress, func(ctx context.Context, ids []int64) error {
		base, err := p.store.ListBaseTexts(ctx, job.ProjectID, ids)
		if err != nil {
			return fmt.Errorf("load base texts: %w", err)
		}

		rows := make([]db.TranslationUpsert, 0, len(ids)*len(targets))
		for _, keyID := range ids {
			text, ok := base.Texts[keyID]
			if !ok || strings.TrimSpace(text) == "" {
				continue
			}
			for _, target := range targets {
				if target.LanguageID == base.LanguageID {
					continue
				}
				if err := p.limiter.Wait(ctx); err != nil {
					return fmt.Errorf("wait for translation rate limit: %w", err)
				}
				resp, err := provider.Translate(ctx, translation.TranslateRequest{
					Text:       text,
					SourceLang: base.LanguageTag,
					TargetLang: target.Tag,
				})
				if err != nil {
					return fmt.Errorf("translate key %d into %s: %w", keyID, target.Tag, err)
				}
				rows = append(rows, db.TranslationUpsert{
					KeyID:      keyID,
					LanguageID: target.LanguageID,
					Text:       resp.Text,
					State:      db.TranslationStateTranslated,
					Auto:       true,
					MTProvider: &providerName,
				})
			}
		}
		if err := p.store.UpsertTranslations(ctx, rows, globaltime.UTC()); err != nil {
			return fmt.Errorf("store machine translations: %w", err)
		}
		p.logger.Debug().Str("job_uuid", job.UUID).Int("translations", len(rows)).Msg("machine translated sub-batch")
		return nil
	})
}
