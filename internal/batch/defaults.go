package batch

import (
	"github.com/rs/zerolog"

	"horse.fit/polyglot/internal/translation"
)

// Store is everything the built-in processors need from the entity store.
type Store interface {
	KeyDeleter
	TranslationClearer
	TranslationStateSetter
	MachineTranslationStore
}

type ProcessorOptions struct {
	SubBatchSize        int
	MTRequestsPerSecond float64
	Logger              zerolog.Logger
}

// NewDefaultRegistry registers a processor for every built-in job type.
func NewDefaultRegistry(store Store, providers *translation.Registry, opts ProcessorOptions) *Registry {
	subBatch := opts.SubBatchSize
	if subBatch < 1 {
		subBatch = DefaultSubBatchSize
	}

	registry := NewRegistry()
	registry.Register(JobDeleteKeys, NewDeleteKeysProcessor(store, subBatch, opts.Logger))
	registry.Register(JobClearTranslations, NewClearTranslationsProcessor(store, subBatch, opts.Logger))
	registry.Register(JobSetTranslationState, NewSetStateProcessor(store, subBatch, opts.Logger))
	registry.Register(JobMachineTranslate, NewMachineTranslateProcessor(store, providers, opts.MTRequestsPerSecond, subBatch, opts.Logger))
	return registry
}
