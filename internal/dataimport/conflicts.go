package dataimport

import (
	"context"
	"fmt"

	"horse.fit/polyglot/internal/db"
)

// FindTranslations lists the staged rows of an import language in file, key
// and insertion order.
func (s *Service) FindTranslations(ctx context.Context, importLanguageID int64) ([]TranslationView, error) {
	if _, err := s.importLanguage(ctx, importLanguageID); err != nil {
		return nil, err
	}
	rows, err := s.store.ListImportTranslations(ctx, importLanguageID)
	if err != nil {
		return nil, err
	}
	out := make([]TranslationView, 0, len(rows))
	for _, row := range rows {
		out = append(out, translationViewFromRow(row))
	}
	return out, nil
}

func (s *Service) GetTranslation(ctx context.Context, translationID int64) (TranslationView, error) {
	row, err := s.store.GetImportTranslation(ctx, translationID)
	if err != nil {
		if db.IsNoRows(err) {
			return TranslationView{}, fmt.Errorf("%w: %d", ErrTranslationNotFound, translationID)
		}
		return TranslationView{}, err
	}
	return translationViewFromRow(*row), nil
}

// SelectExistingLanguage binds an import language to a project language and
// recomputes every row's conflict against it.
func (s *Service) SelectExistingLanguage(ctx context.Context, importLanguageID, existingLanguageID int64) (LanguageView, error) {
	ref, err := s.importLanguage(ctx, importLanguageID)
	if err != nil {
		return LanguageView{}, err
	}

	unlock := s.locks.lock(ref.ImportID)
	defer unlock()

	existing, err := s.store.GetLanguage(ctx, existingLanguageID)
	if err != nil {
		if db.IsNoRows(err) {
			return LanguageView{}, fmt.Errorf("%w: %d", ErrLanguageNotFound, existingLanguageID)
		}
		return LanguageView{}, err
	}
	if existing.ProjectID != ref.ProjectID {
		return LanguageView{}, fmt.Errorf("%w: %d", ErrLanguageNotFound, existingLanguageID)
	}

	siblings, err := s.store.ListImportLanguages(ctx, ref.ImportID)
	if err != nil {
		return LanguageView{}, err
	}
	for _, sibling := range siblings {
		if sibling.ImportLanguageID == importLanguageID || sibling.ImportFileID != ref.ImportFileID {
			continue
		}
		if sibling.ExistingLanguageID != nil && *sibling.ExistingLanguageID == existingLanguageID {
			return LanguageView{}, fmt.Errorf("%w: language %s already selected for %q",
				ErrValidation, existing.Tag, sibling.Name)
		}
	}

	err = s.store.WithinTx(ctx, func(tx Store) error {
		if err := tx.SetImportLanguageExisting(ctx, importLanguageID, &existingLanguageID); err != nil {
			return err
		}
		bound := *ref
		bound.ExistingLanguageID = &existingLanguageID
		return recomputeConflicts(ctx, tx, bound)
	})
	if err != nil {
		return LanguageView{}, fmt.Errorf("select existing language: %w", err)
	}

	s.logger.Info().
		Int64("import_id", ref.ImportID).
		Int64("import_language_id", importLanguageID).
		Str("language", existing.Tag).
		Msg("import language bound")

	return s.languageView(ctx, ref.ImportID, importLanguageID)
}

// ResetExistingLanguage unbinds an import language and clears its conflicts.
func (s *Service) ResetExistingLanguage(ctx context.Context, importLanguageID int64) (LanguageView, error) {
	ref, err := s.importLanguage(ctx, importLanguageID)
	if err != nil {
		return LanguageView{}, err
	}

	unlock := s.locks.lock(ref.ImportID)
	defer unlock()

	err = s.store.WithinTx(ctx, func(tx Store) error {
		if err := tx.SetImportLanguageExisting(ctx, importLanguageID, nil); err != nil {
			return err
		}
		unbound := *ref
		unbound.ExistingLanguageID = nil
		return recomputeConflicts(ctx, tx, unbound)
	})
	if err != nil {
		return LanguageView{}, fmt.Errorf("reset existing language: %w", err)
	}
	return s.languageView(ctx, ref.ImportID, importLanguageID)
}

// recomputeConflicts points every staged row of ref at the stored translation
// of the same (namespace, key) in the bound language. Rows whose conflict
// changes go back to UNRESOLVED; unchanged rows keep their resolution.
func recomputeConflicts(ctx context.Context, store Store, ref db.ImportLanguageRef) error {
	rows, err := store.ListImportTranslations(ctx, ref.ImportLanguageID)
	if err != nil {
		return err
	}

	var stored map[db.KeyRef]db.StoredTranslation
	if ref.ExistingLanguageID != nil && len(rows) > 0 {
		refs := make([]db.KeyRef, 0, len(rows))
		for _, row := range rows {
			refs = append(refs, db.KeyRef{Namespace: row.Namespace, Name: row.KeyName})
		}
		stored, err = store.FindStoredTranslations(ctx, ref.ProjectID, *ref.ExistingLanguageID, refs)
		if err != nil {
			return err
		}
	}

	updates := make([]db.ConflictUpdate, 0)
	for _, row := range rows {
		var conflictID *int64
		if hit, ok := stored[db.KeyRef{Namespace: row.Namespace, Name: row.KeyName}]; ok {
			id := hit.TranslationID
			conflictID = &id
		}
		if sameID(conflictID, row.ConflictID) {
			continue
		}
		updates = append(updates, db.ConflictUpdate{
			ImportTranslationID: row.ImportTranslationID,
			ConflictID:          conflictID,
			Resolution:          db.ResolutionUnresolved,
		})
	}
	return store.UpdateImportConflicts(ctx, updates)
}

func sameID(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
