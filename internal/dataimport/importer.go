package dataimport

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"horse.fit/polyglot/internal/db"
	"horse.fit/polyglot/internal/globaltime"
)

// ForceMode decides what happens to conflicting rows nobody resolved.
type ForceMode string

const (
	ForceNone     ForceMode = "NO_FORCE"
	ForceOverride ForceMode = "OVERRIDE"
	ForceKeep     ForceMode = "KEEP"
)

func ParseForceMode(raw string) (ForceMode, error) {
	switch strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(raw), "-", "_")) {
	case "", string(ForceNone):
		return ForceNone, nil
	case string(ForceOverride):
		return ForceOverride, nil
	case string(ForceKeep):
		return ForceKeep, nil
	default:
		return "", fmt.Errorf("%w: unknown force mode %q", ErrValidation, raw)
	}
}

// Import commits the staged files of an import into the live store, one
// transaction per file. Files failing validation are skipped and keep an
// IMPORT_FAILED issue; the session is deleted only when every file committed.
func (s *Service) Import(ctx context.Context, importID int64, mode ForceMode) (ImportResult, error) {
	if mode == "" {
		mode = ForceNone
	}

	unlock := s.locks.lock(importID)
	defer unlock()

	imp, err := s.store.GetImport(ctx, importID)
	if err != nil {
		if db.IsNoRows(err) {
			return ImportResult{}, fmt.Errorf("%w: %d", ErrImportNotFound, importID)
		}
		return ImportResult{}, err
	}

	languages, err := s.store.ListImportLanguages(ctx, importID)
	if err != nil {
		return ImportResult{}, err
	}
	for _, lang := range languages {
		if lang.ExistingLanguageID == nil {
			return ImportResult{}, fmt.Errorf("%w: %q in %s", ErrLanguageNotSelected, lang.Name, lang.FileName)
		}
	}

	// Stored data may have changed since the languages were bound.
	for _, lang := range languages {
		ref := db.ImportLanguageRef{
			ImportLanguage: lang.ImportLanguage,
			ImportID:       importID,
			ProjectID:      imp.ProjectID,
			FileName:       lang.FileName,
			Namespace:      lang.Namespace,
		}
		if err := recomputeConflicts(ctx, s.store, ref); err != nil {
			return ImportResult{}, fmt.Errorf("recheck conflicts: %w", err)
		}
	}

	if mode == ForceNone {
		languages, err = s.store.ListImportLanguages(ctx, importID)
		if err != nil {
			return ImportResult{}, err
		}
		for _, lang := range languages {
			if lang.ConflictCount > lang.ResolvedCount {
				return ImportResult{}, fmt.Errorf("%w: %d unresolved in %q of %s",
					ErrConflictNotResolved, lang.ConflictCount-lang.ResolvedCount, lang.Name, lang.FileName)
			}
		}
	}

	files, err := s.store.ListImportFiles(ctx, importID)
	if err != nil {
		return ImportResult{}, err
	}

	result := ImportResult{ImportedFiles: make([]string, 0, len(files))}
	keyIDs := make(map[db.KeyRef]int64)
	for _, file := range files {
		data, err := s.store.LoadImportFileData(ctx, file.ImportFileID)
		if err != nil {
			return result, fmt.Errorf("load import file %q: %w", file.Name, err)
		}

		counts, err := s.commitFile(ctx, imp, data, keyIDs, mode)
		if errors.Is(err, ErrValidation) {
			issue := issueRow(file.ImportFileID, newIssue(IssueImportFailed, "reason", err.Error()))
			if err := s.store.AddImportFileIssues(ctx, []db.ImportFileIssue{issue}); err != nil {
				return result, err
			}
			result.FailedFiles = append(result.FailedFiles, FailedFile{Name: file.Name, Error: err.Error()})
			s.logger.Warn().Err(err).Int64("import_id", importID).Str("file", file.Name).Msg("import file skipped")
			continue
		}
		if err != nil {
			return result, fmt.Errorf("import file %q: %w", file.Name, err)
		}

		result.ImportedFiles = append(result.ImportedFiles, file.Name)
		result.TranslationsWritten += counts.written
		result.TranslationsKept += counts.kept
	}

	if len(result.FailedFiles) == 0 {
		if err := s.store.DeleteImport(ctx, importID); err != nil {
			return result, fmt.Errorf("delete finished import: %w", err)
		}
		result.ImportDeleted = true
	}

	s.logger.Info().
		Int64("import_id", importID).
		Str("force_mode", string(mode)).
		Int("files", len(result.ImportedFiles)).
		Int("failed_files", len(result.FailedFiles)).
		Int("written", result.TranslationsWritten).
		Int("kept", result.TranslationsKept).
		Msg("import applied")

	return result, nil
}

type commitCounts struct {
	written int
	kept    int
}

// commitFile writes one staged file and removes it from the session. keyIDs
// carries keys created by earlier files of the same commit; it only learns
// this file's keys once the transaction has committed.
func (s *Service) commitFile(ctx context.Context, imp *db.Import, data *db.ImportFileData, keyIDs map[db.KeyRef]int64, mode ForceMode) (commitCounts, error) {
	var counts commitCounts
	if len(data.Languages) == 0 {
		return counts, fmt.Errorf("%w: file has no importable content", ErrValidation)
	}
	if err := validateFileData(data); err != nil {
		return counts, err
	}

	targets := make(map[int64]int64, len(data.Languages))
	for _, lang := range data.Languages {
		if lang.ExistingLanguageID == nil {
			return counts, fmt.Errorf("%w: %q", ErrLanguageNotSelected, lang.Name)
		}
		targets[lang.ImportLanguageID] = *lang.ExistingLanguageID
	}

	created := make(map[db.KeyRef]int64, len(data.Keys))
	err := s.store.WithinTx(ctx, func(tx Store) error {
		now := globaltime.UTC()
		keyByImportKey := make(map[int64]int64, len(data.Keys))
		for _, key := range data.Keys {
			ref := db.KeyRef{Namespace: data.File.Namespace, Name: key.Name}
			id, ok := keyIDs[ref]
			if !ok {
				id, ok = created[ref]
			}
			if !ok {
				var err error
				id, err = tx.FindOrCreateKey(ctx, imp.ProjectID, ref.Namespace, ref.Name)
				if err != nil {
					return err
				}
				created[ref] = id
			}
			keyByImportKey[key.ImportKeyID] = id
		}

		authorID := imp.AuthorID
		var comments []db.KeyComment
		var codeRefs []db.KeyCodeReference
		for _, meta := range data.Metas {
			keyID := keyByImportKey[meta.ImportKeyID]
			switch meta.Kind {
			case db.KeyMetaComment:
				comments = append(comments, db.KeyComment{
					KeyID:      keyID,
					AuthorID:   &authorID,
					Text:       meta.Text,
					FromImport: true,
					CreatedAt:  now,
				})
			case db.KeyMetaCodeReference:
				codeRefs = append(codeRefs, db.KeyCodeReference{
					KeyID:      keyID,
					Path:       meta.Text,
					Line:       meta.Line,
					FromImport: true,
				})
			}
		}
		if err := tx.AddKeyComments(ctx, comments); err != nil {
			return err
		}
		if err := tx.AddKeyCodeReferences(ctx, codeRefs); err != nil {
			return err
		}

		upserts := make([]db.TranslationUpsert, 0, len(data.Translations))
		for _, row := range data.Translations {
			if !shouldWrite(row, mode) {
				counts.kept++
				continue
			}
			upserts = append(upserts, db.TranslationUpsert{
				KeyID:      keyByImportKey[row.ImportKeyID],
				LanguageID: targets[row.ImportLanguageID],
				Text:       row.Text,
				State:      db.TranslationStateTranslated,
			})
		}
		if err := tx.UpsertTranslations(ctx, upserts, now); err != nil {
			return err
		}
		counts.written = len(upserts)

		return tx.DeleteImportFile(ctx, data.File.ImportFileID)
	})
	if err != nil {
		return commitCounts{}, err
	}

	for ref, id := range created {
		keyIDs[ref] = id
	}
	return counts, nil
}

// shouldWrite reports whether an imported row replaces the stored text.
func shouldWrite(row db.ImportTranslation, mode ForceMode) bool {
	if row.ConflictID == nil {
		return true
	}
	switch row.Resolution {
	case db.ResolutionUseImported:
		return true
	case db.ResolutionKeepExisting:
		return false
	}
	return mode == ForceOverride
}

// validateFileData rejects files holding two different texts for the same key
// and language.
func validateFileData(data *db.ImportFileData) error {
	type slot struct {
		keyID      int64
		languageID int64
	}
	names := make(map[int64]string, len(data.Keys))
	for _, key := range data.Keys {
		names[key.ImportKeyID] = key.Name
	}

	seen := make(map[slot]string, len(data.Translations))
	for _, row := range data.Translations {
		at := slot{keyID: row.ImportKeyID, languageID: row.ImportLanguageID}
		previous, ok := seen[at]
		if ok && previous != row.Text {
			return fmt.Errorf("%w: key %q has multiple values for one language", ErrValidation, names[row.ImportKeyID])
		}
		seen[at] = row.Text
	}
	return nil
}
