package batch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/polyglot/internal/db"
	"horse.fit/polyglot/internal/translation"
)

type stubMTStore struct {
	languages map[int64]db.Language
	base      db.BaseTexts
	upserts   [][]db.TranslationUpsert
}

func (s *stubMTStore) GetLanguage(_ context.Context, languageID int64) (*db.Language, error) {
	language, ok := s.languages[languageID]
	if !ok {
		return nil, db.ErrNoRows
	}
	return &language, nil
}

func (s *stubMTStore) ListBaseTexts(_ context.Context, _ int64, keyIDs []int64) (db.BaseTexts, error) {
	out := db.BaseTexts{LanguageID: s.base.LanguageID, LanguageTag: s.base.LanguageTag, Texts: map[int64]string{}}
	for _, id := range keyIDs {
		if text, ok := s.base.Texts[id]; ok {
			out.Texts[id] = text
		}
	}
	return out, nil
}

func (s *stubMTStore) UpsertTranslations(_ context.Context, rows []db.TranslationUpsert, _ time.Time) error {
	s.upserts = append(s.upserts, rows)
	return nil
}

type upperProvider struct {
	calls []translation.TranslateRequest
}

func (p *upperProvider) Name() string { return "upper" }

func (p *upperProvider) Translate(_ context.Context, req translation.TranslateRequest) (*translation.TranslateResponse, error) {
	p.calls = append(p.calls, req)
	return &translation.TranslateResponse{Text: strings.ToUpper(req.Text) + "@" + req.TargetLang}, nil
}

func TestMachineTranslateProcessorFillsTargetLanguages(t *testing.T) {
	t.Parallel()

	store := &stubMTStore{
		languages: map[int64]db.Language{
			1: {LanguageID: 1, ProjectID: 5, Tag: "en"},
			2: {LanguageID: 2, ProjectID: 5, Tag: "de"},
			3: {LanguageID: 3, ProjectID: 5, Tag: "fr"},
		},
		base: db.BaseTexts{LanguageID: 1, LanguageTag: "en", Texts: map[int64]string{10: "hello", 12: "bye"}},
	}
	provider := &upperProvider{}
	providers := translation.NewRegistry("upper")
	if err := providers.Register(provider); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	processor := NewMachineTranslateProcessor(store, providers, 0, 2, zerolog.Nop())

	payload := json.RawMessage(`{"keyIds":[10,11,12],"targetLanguageIds":[1,2,3]}`)
	targets, err := processor.Target(payload)
	if err != nil {
		t.Fatalf("Target() error = %v", err)
	}
	params, err := processor.Params(payload, Job{})
	if err != nil {
		t.Fatalf("Params() error = %v", err)
	}
	encoded, _ := json.Marshal(params)
	job := Job{UUID: "job", ProjectID: 5, Params: encoded}

	var reports []int
	if err := processor.Process(context.Background(), job, targets, func(n int) { reports = append(reports, n) }); err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	if !slices.Equal(reports, []int{2, 3}) {
		t.Fatalf("keys without base text must still count as processed, reports = %v", reports)
	}
	if len(provider.calls) != 4 {
		t.Fatalf("expected 4 provider calls (2 keys x 2 non-base targets), got %d", len(provider.calls))
	}

	var written []db.TranslationUpsert
	for _, batch := range store.upserts {
		written = append(written, batch...)
	}
	if len(written) != 4 {
		t.Fatalf("expected 4 translations written, got %d", len(written))
	}
	for _, row := range written {
		if row.LanguageID == 1 {
			t.Fatalf("base language must not be overwritten: %+v", row)
		}
		if !row.Auto || row.MTProvider == nil || *row.MTProvider != "upper" || row.State != db.TranslationStateTranslated {
			t.Fatalf("unexpected machine translation row: %+v", row)
		}
	}
	if written[0].KeyID != 10 || written[0].Text != "HELLO@de" {
		t.Fatalf("unexpected first translation: %+v", written[0])
	}
}

func TestMachineTranslateProcessorRejectsForeignLanguage(t *testing.T) {
	t.Parallel()

	store := &stubMTStore{languages: map[int64]db.Language{9: {LanguageID: 9, ProjectID: 99, Tag: "de"}}}
	providers := translation.NewRegistry("upper")
	_ = providers.Register(&upperProvider{})
	processor := NewMachineTranslateProcessor(store, providers, 0, 10, zerolog.Nop())

	job := Job{ProjectID: 5, Params: json.RawMessage(`{"targetLanguageIds":[9]}`)}
	if err := processor.Process(context.Background(), job, []int64{1}, nil); err == nil {
		t.Fatalf("expected error for language of another project")
	}
}

func TestSetStateProcessorValidatesParams(t *testing.T) {
	t.Parallel()

	processor := NewSetStateProcessor(nil, 10, zerolog.Nop())

	if _, err := processor.Params(json.RawMessage(`{"keyIds":[1],"languageIds":[2],"state":"DONE"}`), Job{}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for unknown state, got %v", err)
	}
	if _, err := processor.Params(json.RawMessage(`{"keyIds":[1],"state":"REVIEWED"}`), Job{}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation without languages, got %v", err)
	}

	params, err := processor.Params(json.RawMessage(`{"keyIds":[1],"languageIds":[2,2],"state":"reviewed"}`), Job{})
	if err != nil {
		t.Fatalf("Params() error = %v", err)
	}
	got := params.(setStateParams)
	if got.State != db.TranslationStateReviewed || !slices.Equal(got.LanguageIDs, []int64{2}) {
		t.Fatalf("unexpected params %+v", got)
	}
}

type recordingClearer struct {
	calls [][]int64
	langs []int64
}

func (c *recordingClearer) ClearTranslations(_ context.Context, _ int64, keyIDs, languageIDs []int64) (int64, error) {
	c.calls = append(c.calls, keyIDs)
	c.langs = languageIDs
	if len(c.calls) == 2 {
		return 0, fmt.Errorf("connection reset")
	}
	return int64(len(keyIDs)), nil
}

func TestClearTranslationsProcessorStopsOnStoreError(t *testing.T) {
	t.Parallel()

	store := &recordingClearer{}
	processor := NewClearTranslationsProcessor(store, 2, zerolog.Nop())
	job := Job{ProjectID: 1, Params: json.RawMessage(`{"languageIds":[4,5]}`)}

	var reports []int
	err := processor.Process(context.Background(), job, sequence(5), func(n int) { reports = append(reports, n) })
	if err == nil || !strings.Contains(err.Error(), "connection reset") {
		t.Fatalf("expected store error, got %v", err)
	}
	if errors.Is(err, ErrCancelled) {
		t.Fatalf("store errors must not be reported as cancellation")
	}
	if !slices.Equal(reports, []int{2}) {
		t.Fatalf("expected progress only for the committed sub-batch, got %v", reports)
	}
	if !slices.Equal(store.langs, []int64{4, 5}) {
		t.Fatalf("unexpected language ids %v", store.langs)
	}
}
