package dataimport

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"horse.fit/polyglot/internal/db"
	"horse.fit/polyglot/internal/globaltime"
	"horse.fit/polyglot/internal/langdetect"
	"horse.fit/polyglot/internal/language"
)

var (
	ErrImportNotFound      = errors.New("import not found")
	ErrLanguageNotFound    = errors.New("language not found")
	ErrTranslationNotFound = errors.New("import translation not found")
	ErrLanguageNotSelected = errors.New("existing language not selected")
	ErrConflictNotResolved = errors.New("conflict not resolved")
	ErrValidation          = errors.New("invalid import data")
)

// DefaultMaxFileBytes caps one uploaded file when no limit is configured.
const DefaultMaxFileBytes = 5 << 20

type Options struct {
	MaxFileBytes int64
	Logger       zerolog.Logger
}

// Service owns import sessions: staging uploads, binding languages, resolving
// conflicts and committing into the live store. Operations touching one import
// are serialized.
type Service struct {
	store        Store
	maxFileBytes int64
	logger       zerolog.Logger
	locks        *importLocks
}

func NewService(store Store, opts Options) *Service {
	maxBytes := opts.MaxFileBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxFileBytes
	}
	return &Service{
		store:        store,
		maxFileBytes: maxBytes,
		logger:       opts.Logger,
		locks:        newImportLocks(),
	}
}

// AddFiles stages uploads into the caller's import, creating it when needed.
// Files that cannot be parsed are kept with an INVALID_FILE issue.
func (s *Service) AddFiles(ctx context.Context, projectID, authorID int64, files []UploadedFile) (ImportView, error) {
	if projectID <= 0 || authorID <= 0 {
		return ImportView{}, fmt.Errorf("%w: project and author are required", ErrValidation)
	}
	if len(files) == 0 {
		return ImportView{}, fmt.Errorf("%w: no files uploaded", ErrValidation)
	}

	imp, err := s.findOrCreateImport(ctx, projectID, authorID)
	if err != nil {
		return ImportView{}, err
	}

	unlock := s.locks.lock(imp.ImportID)
	defer unlock()

	projectLanguages, err := s.store.ListProjectLanguages(ctx, projectID)
	if err != nil {
		return ImportView{}, fmt.Errorf("load project languages: %w", err)
	}

	position, err := s.store.NextImportFilePosition(ctx, imp.ImportID)
	if err != nil {
		return ImportView{}, err
	}

	for _, file := range files {
		staged := s.stageFile(imp.ImportID, position, file, projectLanguages)
		if err := s.store.SaveStagedFile(ctx, staged); err != nil {
			return ImportView{}, fmt.Errorf("stage file %q: %w", file.Name, err)
		}
		position++

		for _, lang := range staged.Languages {
			if lang.ExistingLanguageID == nil {
				continue
			}
			ref := db.ImportLanguageRef{
				ImportLanguage: lang,
				ImportID:       imp.ImportID,
				ProjectID:      projectID,
				FileName:       staged.File.Name,
				Namespace:      staged.File.Namespace,
			}
			if err := recomputeConflicts(ctx, s.store, ref); err != nil {
				return ImportView{}, fmt.Errorf("detect conflicts for %q: %w", file.Name, err)
			}
		}

		s.logger.Info().
			Int64("import_id", imp.ImportID).
			Str("file", file.Name).
			Int("keys", len(staged.Keys)).
			Int("issues", len(staged.Issues)).
			Msg("import file staged")
	}

	return s.view(ctx, imp)
}

func (s *Service) findOrCreateImport(ctx context.Context, projectID, authorID int64) (*db.Import, error) {
	imp, err := s.store.FindImport(ctx, projectID, authorID)
	if err == nil {
		return imp, nil
	}
	if !db.IsNoRows(err) {
		return nil, err
	}

	row := &db.Import{
		ImportUUID: uuid.NewString(),
		ProjectID:  projectID,
		AuthorID:   authorID,
		CreatedAt:  globaltime.UTC(),
	}
	if err := s.store.CreateImport(ctx, row); err != nil {
		if db.IsUniqueViolation(err) {
			return s.store.FindImport(ctx, projectID, authorID)
		}
		return nil, err
	}
	return row, nil
}

// stageFile turns one upload into staging rows. It never fails: problems are
// recorded as file issues.
func (s *Service) stageFile(importID int64, position int, file UploadedFile, projectLanguages []db.Language) *db.StagedFile {
	namespace, pathTag := language.FromPath(file.Name)
	staged := &db.StagedFile{
		File: db.ImportFile{
			ImportID:  importID,
			Name:      file.Name,
			Namespace: namespace,
			Position:  position,
		},
	}

	if format, err := DetectFormat(file.Name); err == nil {
		staged.File.Format = format
	} else {
		staged.File.Format = strings.TrimPrefix(strings.ToUpper(path.Ext(file.Name)), ".")
	}

	if int64(len(file.Content)) > s.maxFileBytes {
		staged.Issues = append(staged.Issues, issueRow(0, newIssue(IssueInvalidFile,
			"reason", fmt.Sprintf("file exceeds %d bytes", s.maxFileBytes))))
		return staged
	}

	parsed, err := ParseFile(file.Name, file.Content)
	if err != nil {
		staged.Issues = append(staged.Issues, issueRow(0, newIssue(IssueInvalidFile, "reason", err.Error())))
		return staged
	}

	langName := pathTag
	if langName == "" {
		langName = parsed.Language
	}
	if langName == "" {
		values := make([]string, 0, len(parsed.Entries))
		for _, entry := range parsed.Entries {
			values = append(values, entry.Text)
		}
		langName = language.Canonical(langdetect.DetectValues(values, 0))
	}
	if langName == "" {
		base := path.Base(strings.ReplaceAll(file.Name, "\\", "/"))
		langName = strings.TrimSuffix(base, path.Ext(base))
	}

	importLanguage := db.ImportLanguage{Name: langName}
	for _, existing := range projectLanguages {
		if language.SameTag(existing.Tag, langName) {
			id := existing.LanguageID
			importLanguage.ExistingLanguageID = &id
			break
		}
	}
	staged.Languages = []db.ImportLanguage{importLanguage}

	for _, issue := range parsed.Issues {
		staged.Issues = append(staged.Issues, issueRow(0, issue))
	}

	keyIndex := make(map[string]int, len(parsed.Entries))
	for _, entry := range parsed.Entries {
		idx, seen := keyIndex[entry.Key]
		if !seen {
			idx = len(staged.Keys)
			keyIndex[entry.Key] = idx
			staged.Keys = append(staged.Keys, db.StagedKey{
				Key: db.ImportKey{Name: entry.Key, Position: idx},
			})
		}
		key := &staged.Keys[idx]

		if seen {
			previous := key.Translations[len(key.Translations)-1].Translation.Text
			if previous == entry.Text {
				continue
			}
			staged.Issues = append(staged.Issues, issueRow(0, newIssue(IssueMultipleValuesForKeyAndLanguage,
				"key", entry.Key, "language", langName)))
		}

		key.Translations = append(key.Translations, db.StagedTranslation{
			LanguageIndex: 0,
			Translation: db.ImportTranslation{
				Text:       entry.Text,
				Resolution: db.ResolutionUnresolved,
			},
		})
		for _, comment := range entry.Comments {
			key.Metas = append(key.Metas, db.ImportKeyMeta{Kind: db.KeyMetaComment, Text: comment})
		}
		for _, ref := range entry.References {
			key.Metas = append(key.Metas, db.ImportKeyMeta{Kind: db.KeyMetaCodeReference, Text: ref.Path, Line: ref.Line})
		}
	}
	return staged
}

// Get returns an import only when it belongs to the given project and author.
func (s *Service) Get(ctx context.Context, projectID, authorID, importID int64) (ImportView, error) {
	imp, err := s.store.GetImport(ctx, importID)
	if err != nil {
		if db.IsNoRows(err) {
			return ImportView{}, fmt.Errorf("%w: %d", ErrImportNotFound, importID)
		}
		return ImportView{}, err
	}
	if imp.ProjectID != projectID || imp.AuthorID != authorID {
		return ImportView{}, fmt.Errorf("%w: %d", ErrImportNotFound, importID)
	}
	return s.view(ctx, imp)
}

// Find returns the caller's import for a project, or nil when there is none.
func (s *Service) Find(ctx context.Context, projectID, authorID int64) (*ImportView, error) {
	imp, err := s.store.FindImport(ctx, projectID, authorID)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	view, err := s.view(ctx, imp)
	if err != nil {
		return nil, err
	}
	return &view, nil
}

func (s *Service) FindLanguage(ctx context.Context, importLanguageID int64) (LanguageView, error) {
	ref, err := s.importLanguage(ctx, importLanguageID)
	if err != nil {
		return LanguageView{}, err
	}
	return s.languageView(ctx, ref.ImportID, importLanguageID)
}

func (s *Service) ListLanguages(ctx context.Context, importID int64) ([]LanguageView, error) {
	rows, err := s.store.ListImportLanguages(ctx, importID)
	if err != nil {
		return nil, err
	}
	out := make([]LanguageView, 0, len(rows))
	for _, row := range rows {
		out = append(out, languageViewFromSummary(importID, row))
	}
	return out, nil
}

// DeleteLanguage drops an import language and its rows. The import itself is
// removed once it has no languages left.
func (s *Service) DeleteLanguage(ctx context.Context, importLanguageID int64) error {
	ref, err := s.importLanguage(ctx, importLanguageID)
	if err != nil {
		return err
	}

	unlock := s.locks.lock(ref.ImportID)
	defer unlock()

	if err := s.store.DeleteImportLanguage(ctx, importLanguageID); err != nil {
		if db.IsNoRows(err) {
			return fmt.Errorf("%w: %d", ErrLanguageNotFound, importLanguageID)
		}
		return err
	}

	remaining, err := s.store.ListImportLanguages(ctx, ref.ImportID)
	if err != nil {
		return err
	}
	if len(remaining) == 0 {
		if err := s.store.DeleteImport(ctx, ref.ImportID); err != nil {
			return fmt.Errorf("delete empty import: %w", err)
		}
	}
	return nil
}

func (s *Service) DeleteImport(ctx context.Context, importID int64) error {
	unlock := s.locks.lock(importID)
	defer unlock()

	if _, err := s.store.GetImport(ctx, importID); err != nil {
		if db.IsNoRows(err) {
			return fmt.Errorf("%w: %d", ErrImportNotFound, importID)
		}
		return err
	}
	return s.store.DeleteImport(ctx, importID)
}

// SetAllResolved marks every unresolved conflict of an import as USE_IMPORTED.
func (s *Service) SetAllResolved(ctx context.Context, importID int64) (int64, error) {
	unlock := s.locks.lock(importID)
	defer unlock()

	if _, err := s.store.GetImport(ctx, importID); err != nil {
		if db.IsNoRows(err) {
			return 0, fmt.Errorf("%w: %d", ErrImportNotFound, importID)
		}
		return 0, err
	}
	return s.store.ResolveAllConflicts(ctx, importID, db.ResolutionUseImported)
}

// ResolveTranslation picks the imported text (override) or the stored one.
func (s *Service) ResolveTranslation(ctx context.Context, translationID int64, override bool) (TranslationView, error) {
	row, err := s.store.GetImportTranslation(ctx, translationID)
	if err != nil {
		if db.IsNoRows(err) {
			return TranslationView{}, fmt.Errorf("%w: %d", ErrTranslationNotFound, translationID)
		}
		return TranslationView{}, err
	}

	unlock := s.locks.lock(row.ImportID)
	defer unlock()

	resolution := resolutionFor(override)
	if err := s.store.SetImportTranslationResolution(ctx, []int64{translationID}, resolution); err != nil {
		return TranslationView{}, err
	}
	row.Resolution = resolution
	return translationViewFromRow(*row), nil
}

// ResolveAllInLanguage applies one resolution to every conflicting row of an
// import language.
func (s *Service) ResolveAllInLanguage(ctx context.Context, importLanguageID int64, override bool) (int, error) {
	ref, err := s.importLanguage(ctx, importLanguageID)
	if err != nil {
		return 0, err
	}

	unlock := s.locks.lock(ref.ImportID)
	defer unlock()

	rows, err := s.store.ListImportTranslations(ctx, importLanguageID)
	if err != nil {
		return 0, err
	}
	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		if row.ConflictID != nil {
			ids = append(ids, row.ImportTranslationID)
		}
	}
	if err := s.store.SetImportTranslationResolution(ctx, ids, resolutionFor(override)); err != nil {
		return 0, err
	}
	return len(ids), nil
}

func resolutionFor(override bool) string {
	if override {
		return db.ResolutionUseImported
	}
	return db.ResolutionKeepExisting
}

func (s *Service) importLanguage(ctx context.Context, importLanguageID int64) (*db.ImportLanguageRef, error) {
	ref, err := s.store.GetImportLanguage(ctx, importLanguageID)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, fmt.Errorf("%w: import language %d", ErrLanguageNotFound, importLanguageID)
		}
		return nil, err
	}
	return ref, nil
}

func (s *Service) languageView(ctx context.Context, importID, importLanguageID int64) (LanguageView, error) {
	rows, err := s.store.ListImportLanguages(ctx, importID)
	if err != nil {
		return LanguageView{}, err
	}
	for _, row := range rows {
		if row.ImportLanguageID == importLanguageID {
			return languageViewFromSummary(importID, row), nil
		}
	}
	return LanguageView{}, fmt.Errorf("%w: import language %d", ErrLanguageNotFound, importLanguageID)
}

func (s *Service) view(ctx context.Context, imp *db.Import) (ImportView, error) {
	files, err := s.store.ListImportFiles(ctx, imp.ImportID)
	if err != nil {
		return ImportView{}, err
	}
	issues, err := s.store.ListImportFileIssues(ctx, imp.ImportID)
	if err != nil {
		return ImportView{}, err
	}
	languages, err := s.ListLanguages(ctx, imp.ImportID)
	if err != nil {
		return ImportView{}, err
	}

	issuesByFile := make(map[int64][]Issue, len(files))
	for _, row := range issues {
		issuesByFile[row.ImportFileID] = append(issuesByFile[row.ImportFileID], issueFromRow(row))
	}

	view := ImportView{
		ID:        imp.ImportID,
		UUID:      imp.ImportUUID,
		ProjectID: imp.ProjectID,
		AuthorID:  imp.AuthorID,
		CreatedAt: imp.CreatedAt,
		Files:     make([]FileView, 0, len(files)),
		Languages: languages,
	}
	for _, file := range files {
		view.Files = append(view.Files, FileView{
			ID:        file.ImportFileID,
			Name:      file.Name,
			Namespace: file.Namespace,
			Format:    file.Format,
			Position:  file.Position,
			Issues:    issuesByFile[file.ImportFileID],
		})
	}
	return view, nil
}
