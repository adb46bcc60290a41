package db

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// KeyRef identifies a key by namespace and name. An empty namespace means the
// key has no namespace.
type KeyRef struct {
	Namespace string
	Name      string
}

// StoredTranslation is a live translation matched by key reference.
type StoredTranslation struct {
	TranslationID int64
	KeyID         int64
	Text          string
}

// StagedFile is one parsed upload ready to be written into an import session.
type StagedFile struct {
	File      ImportFile
	Issues    []ImportFileIssue
	Languages []ImportLanguage
	Keys      []StagedKey
}

type StagedKey struct {
	Key          ImportKey
	Metas        []ImportKeyMeta
	Translations []StagedTranslation
}

// StagedTranslation points at its language by index into StagedFile.Languages.
type StagedTranslation struct {
	LanguageIndex int
	Translation   ImportTranslation
}

// ImportFileData is everything staged under one import file.
type ImportFileData struct {
	File         ImportFile
	Languages    []ImportLanguage
	Keys         []ImportKey
	Metas        []ImportKeyMeta
	Translations []ImportTranslation
}

// ImportLanguageRef is an import language with its owning file and import.
type ImportLanguageRef struct {
	ImportLanguage
	ImportID  int64  `gorm:"column:import_id"`
	ProjectID int64  `gorm:"column:project_id"`
	FileName  string `gorm:"column:file_name"`
	Namespace string `gorm:"column:namespace"`
}

// ImportLanguageSummary is an import language with conflict counters.
type ImportLanguageSummary struct {
	ImportLanguage
	FileName      string  `gorm:"column:file_name"`
	Namespace     string  `gorm:"column:namespace"`
	ExistingTag   *string `gorm:"column:existing_tag"`
	TotalCount    int     `gorm:"column:total_count"`
	ConflictCount int     `gorm:"column:conflict_count"`
	ResolvedCount int     `gorm:"column:resolved_count"`
}

// ImportTranslationRow is an import translation with its key and file context.
type ImportTranslationRow struct {
	ImportTranslation
	KeyName      string  `gorm:"column:key_name"`
	Namespace    string  `gorm:"column:namespace"`
	ImportFileID int64   `gorm:"column:import_file_id"`
	ImportID     int64   `gorm:"column:import_id"`
	FilePosition int     `gorm:"column:file_position"`
	KeyPosition  int     `gorm:"column:key_position"`
	ConflictText *string `gorm:"column:conflict_text"`
}

// ConflictUpdate sets the conflict reference and resolution of one import translation.
type ConflictUpdate struct {
	ImportTranslationID int64
	ConflictID          *int64
	Resolution          string
}

func (p *Pool) FindImport(ctx context.Context, projectID, authorID int64) (*Import, error) {
	var row Import
	err := p.gdb.WithContext(ctx).
		Where("project_id = ? AND author_id = ?", projectID, authorID).
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoRows
		}
		return nil, fmt.Errorf("query import: %w", err)
	}
	return &row, nil
}

func (p *Pool) GetImport(ctx context.Context, importID int64) (*Import, error) {
	var row Import
	err := p.gdb.WithContext(ctx).Where("import_id = ?", importID).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoRows
		}
		return nil, fmt.Errorf("query import: %w", err)
	}
	return &row, nil
}

func (p *Pool) CreateImport(ctx context.Context, row *Import) error {
	if row == nil {
		return fmt.Errorf("import is nil")
	}
	if err := p.gdb.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("insert import: %w", err)
	}
	return nil
}

// DeleteImport removes an import session and everything staged under it.
func (p *Pool) DeleteImport(ctx context.Context, importID int64) error {
	return p.Transaction(ctx, func(tx *Pool) error {
		fileIDs := tx.gdb.Model(&ImportFile{}).Select("import_file_id").Where("import_id = ?", importID)
		if err := tx.deleteFilesWhere(fileIDs); err != nil {
			return err
		}
		if err := tx.gdb.Where("import_id = ?", importID).Delete(&Import{}).Error; err != nil {
			return fmt.Errorf("delete import: %w", err)
		}
		return nil
	})
}

func (p *Pool) DeleteImportFile(ctx context.Context, fileID int64) error {
	return p.Transaction(ctx, func(tx *Pool) error {
		return tx.deleteFilesWhere([]int64{fileID})
	})
}

// deleteFilesWhere cascades deletion of import files selected by fileIDs, which
// is either an id slice or a subquery.
func (p *Pool) deleteFilesWhere(fileIDs any) error {
	keyIDs := p.gdb.Model(&ImportKey{}).Select("import_key_id").Where("import_file_id IN (?)", fileIDs)

	steps := []struct {
		label string
		run   func() error
	}{
		{"import translations", func() error {
			return p.gdb.Where("import_key_id IN (?)", keyIDs).Delete(&ImportTranslation{}).Error
		}},
		{"import key metas", func() error {
			return p.gdb.Where("import_key_id IN (?)", keyIDs).Delete(&ImportKeyMeta{}).Error
		}},
		{"import keys", func() error {
			return p.gdb.Where("import_file_id IN (?)", fileIDs).Delete(&ImportKey{}).Error
		}},
		{"import languages", func() error {
			return p.gdb.Where("import_file_id IN (?)", fileIDs).Delete(&ImportLanguage{}).Error
		}},
		{"import file issues", func() error {
			return p.gdb.Where("import_file_id IN (?)", fileIDs).Delete(&ImportFileIssue{}).Error
		}},
		{"import files", func() error {
			return p.gdb.Where("import_file_id IN (?)", fileIDs).Delete(&ImportFile{}).Error
		}},
	}
	for _, step := range steps {
		if err := step.run(); err != nil {
			return fmt.Errorf("delete %s: %w", step.label, err)
		}
	}
	return nil
}

func (p *Pool) NextImportFilePosition(ctx context.Context, importID int64) (int, error) {
	const q = `
SELECT COALESCE(MAX(position), -1) + 1
FROM polyglot.import_files
WHERE import_id = ?
`
	var next int
	if err := p.QueryRow(ctx, q, importID).Scan(&next); err != nil {
		return 0, fmt.Errorf("query next import file position: %w", err)
	}
	return next, nil
}

// SaveStagedFile inserts a parsed file with its languages, keys, metadata,
// translations and issues, filling generated ids back into staged.
func (p *Pool) SaveStagedFile(ctx context.Context, staged *StagedFile) error {
	if staged == nil {
		return fmt.Errorf("staged file is nil")
	}
	return p.Transaction(ctx, func(tx *Pool) error {
		if err := tx.gdb.Create(&staged.File).Error; err != nil {
			return fmt.Errorf("insert import file: %w", err)
		}
		fileID := staged.File.ImportFileID

		for i := range staged.Languages {
			staged.Languages[i].ImportFileID = fileID
			if err := tx.gdb.Create(&staged.Languages[i]).Error; err != nil {
				return fmt.Errorf("insert import language: %w", err)
			}
		}

		for i := range staged.Issues {
			staged.Issues[i].ImportFileID = fileID
		}
		if len(staged.Issues) > 0 {
			if err := tx.gdb.Create(&staged.Issues).Error; err != nil {
				return fmt.Errorf("insert import file issues: %w", err)
			}
		}

		for i := range staged.Keys {
			key := &staged.Keys[i]
			key.Key.ImportFileID = fileID
			if err := tx.gdb.Create(&key.Key).Error; err != nil {
				return fmt.Errorf("insert import key %q: %w", key.Key.Name, err)
			}
			for j := range key.Metas {
				key.Metas[j].ImportKeyID = key.Key.ImportKeyID
			}
			if len(key.Metas) > 0 {
				if err := tx.gdb.Create(&key.Metas).Error; err != nil {
					return fmt.Errorf("insert import key metas: %w", err)
				}
			}
			for j := range key.Translations {
				key.Translations[j].Translation.ImportKeyID = key.Key.ImportKeyID
			}
		}
		return tx.insertStagedTranslations(staged)
	})
}

func (p *Pool) insertStagedTranslations(staged *StagedFile) error {
	rows := make([]*ImportTranslation, 0, 64)
	for i := range staged.Keys {
		for j := range staged.Keys[i].Translations {
			st := &staged.Keys[i].Translations[j]
			if st.LanguageIndex < 0 || st.LanguageIndex >= len(staged.Languages) {
				return fmt.Errorf("import translation for key %q references unknown language", staged.Keys[i].Key.Name)
			}
			st.Translation.ImportLanguageID = staged.Languages[st.LanguageIndex].ImportLanguageID
			if st.Translation.Resolution == "" {
				st.Translation.Resolution = ResolutionUnresolved
			}
			rows = append(rows, &st.Translation)
		}
	}
	for start := 0; start < len(rows); start += 500 {
		end := min(start+500, len(rows))
		if err := p.gdb.Create(rows[start:end]).Error; err != nil {
			return fmt.Errorf("insert import translations: %w", err)
		}
	}
	return nil
}

func (p *Pool) ListImportFiles(ctx context.Context, importID int64) ([]ImportFile, error) {
	rows := make([]ImportFile, 0, 4)
	err := p.gdb.WithContext(ctx).
		Where("import_id = ?", importID).
		Order("position, import_file_id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query import files: %w", err)
	}
	return rows, nil
}

func (p *Pool) ListImportFileIssues(ctx context.Context, importID int64) ([]ImportFileIssue, error) {
	rows := make([]ImportFileIssue, 0, 4)
	err := p.gdb.WithContext(ctx).
		Joins("JOIN polyglot.import_files f ON f.import_file_id = import_file_issues.import_file_id").
		Where("f.import_id = ?", importID).
		Order("import_file_issues.import_file_issue_id").
		Select("import_file_issues.*").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query import file issues: %w", err)
	}
	return rows, nil
}

func (p *Pool) AddImportFileIssues(ctx context.Context, issues []ImportFileIssue) error {
	if len(issues) == 0 {
		return nil
	}
	if err := p.gdb.WithContext(ctx).Create(&issues).Error; err != nil {
		return fmt.Errorf("insert import file issues: %w", err)
	}
	return nil
}

func (p *Pool) LoadImportFileData(ctx context.Context, fileID int64) (*ImportFileData, error) {
	gdb := p.gdb.WithContext(ctx)

	var data ImportFileData
	if err := gdb.Where("import_file_id = ?", fileID).Take(&data.File).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoRows
		}
		return nil, fmt.Errorf("query import file: %w", err)
	}
	if err := gdb.Where("import_file_id = ?", fileID).Order("import_language_id").Find(&data.Languages).Error; err != nil {
		return nil, fmt.Errorf("query import languages: %w", err)
	}
	if err := gdb.Where("import_file_id = ?", fileID).Order("position, import_key_id").Find(&data.Keys).Error; err != nil {
		return nil, fmt.Errorf("query import keys: %w", err)
	}

	keyIDs := gdb.Model(&ImportKey{}).Select("import_key_id").Where("import_file_id = ?", fileID)
	if err := gdb.Where("import_key_id IN (?)", keyIDs).Order("import_key_meta_id").Find(&data.Metas).Error; err != nil {
		return nil, fmt.Errorf("query import key metas: %w", err)
	}
	if err := gdb.Where("import_key_id IN (?)", keyIDs).Order("import_translation_id").Find(&data.Translations).Error; err != nil {
		return nil, fmt.Errorf("query import translations: %w", err)
	}
	return &data, nil
}

func (p *Pool) ListImportLanguages(ctx context.Context, importID int64) ([]ImportLanguageSummary, error) {
	const q = `
SELECT
	il.import_language_id,
	il.import_file_id,
	il.name,
	il.existing_language_id,
	f.name AS file_name,
	f.namespace,
	l.tag AS existing_tag,
	COUNT(it.import_translation_id) AS total_count,
	COUNT(it.import_translation_id) FILTER (WHERE it.conflict_id IS NOT NULL) AS conflict_count,
	COUNT(it.import_translation_id) FILTER (
		WHERE it.conflict_id IS NOT NULL AND it.resolution <> 'UNRESOLVED'
	) AS resolved_count
FROM polyglot.import_languages il
JOIN polyglot.import_files f ON f.import_file_id = il.import_file_id
LEFT JOIN polyglot.languages l ON l.language_id = il.existing_language_id
LEFT JOIN polyglot.import_translations it ON it.import_language_id = il.import_language_id
WHERE f.import_id = ?
GROUP BY il.import_language_id, f.name, f.namespace, f.position, l.tag
ORDER BY f.position, il.import_language_id
`
	rows := make([]ImportLanguageSummary, 0, 4)
	if err := p.gdb.WithContext(ctx).Raw(q, importID).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("query import languages: %w", err)
	}
	return rows, nil
}

func (p *Pool) GetImportLanguage(ctx context.Context, importLanguageID int64) (*ImportLanguageRef, error) {
	const q = `
SELECT
	il.import_language_id,
	il.import_file_id,
	il.name,
	il.existing_language_id,
	f.import_id,
	i.project_id,
	f.name AS file_name,
	f.namespace
FROM polyglot.import_languages il
JOIN polyglot.import_files f ON f.import_file_id = il.import_file_id
JOIN polyglot.imports i ON i.import_id = f.import_id
WHERE il.import_language_id = ?
`
	var rows []ImportLanguageRef
	if err := p.gdb.WithContext(ctx).Raw(q, importLanguageID).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("query import language: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrNoRows
	}
	return &rows[0], nil
}

func (p *Pool) SetImportLanguageExisting(ctx context.Context, importLanguageID int64, existingLanguageID *int64) error {
	res := p.gdb.WithContext(ctx).
		Model(&ImportLanguage{}).
		Where("import_language_id = ?", importLanguageID).
		Update("existing_language_id", existingLanguageID)
	if res.Error != nil {
		return fmt.Errorf("update import language: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNoRows
	}
	return nil
}

// DeleteImportLanguage removes an import language and its translations. Keys of
// the file left without any translation are removed with their metadata, and a
// file left without any language is removed entirely.
func (p *Pool) DeleteImportLanguage(ctx context.Context, importLanguageID int64) error {
	return p.Transaction(ctx, func(tx *Pool) error {
		var language ImportLanguage
		if err := tx.gdb.Where("import_language_id = ?", importLanguageID).Take(&language).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNoRows
			}
			return fmt.Errorf("query import language: %w", err)
		}

		if err := tx.gdb.Where("import_language_id = ?", importLanguageID).Delete(&ImportTranslation{}).Error; err != nil {
			return fmt.Errorf("delete import translations: %w", err)
		}
		if err := tx.gdb.Where("import_language_id = ?", importLanguageID).Delete(&ImportLanguage{}).Error; err != nil {
			return fmt.Errorf("delete import language: %w", err)
		}

		var remaining int64
		if err := tx.gdb.Model(&ImportLanguage{}).Where("import_file_id = ?", language.ImportFileID).Count(&remaining).Error; err != nil {
			return fmt.Errorf("count import languages: %w", err)
		}
		if remaining == 0 {
			return tx.deleteFilesWhere([]int64{language.ImportFileID})
		}

		const orphanKeys = `
SELECT k.import_key_id
FROM polyglot.import_keys k
WHERE k.import_file_id = ?
  AND NOT EXISTS (
	SELECT 1 FROM polyglot.import_translations t WHERE t.import_key_id = k.import_key_id
)
`
		var orphans []int64
		if err := tx.gdb.Raw(orphanKeys, language.ImportFileID).Scan(&orphans).Error; err != nil {
			return fmt.Errorf("query orphan import keys: %w", err)
		}
		if len(orphans) == 0 {
			return nil
		}
		if err := tx.gdb.Where("import_key_id IN ?", orphans).Delete(&ImportKeyMeta{}).Error; err != nil {
			return fmt.Errorf("delete orphan import key metas: %w", err)
		}
		if err := tx.gdb.Where("import_key_id IN ?", orphans).Delete(&ImportKey{}).Error; err != nil {
			return fmt.Errorf("delete orphan import keys: %w", err)
		}
		return nil
	})
}

const importTranslationRowSelect = `
SELECT
	it.import_translation_id,
	it.import_key_id,
	it.import_language_id,
	it.text,
	it.conflict_id,
	it.resolution,
	k.name AS key_name,
	f.namespace,
	f.import_file_id,
	f.import_id,
	f.position AS file_position,
	k.position AS key_position,
	t.text AS conflict_text
FROM polyglot.import_translations it
JOIN polyglot.import_keys k ON k.import_key_id = it.import_key_id
JOIN polyglot.import_files f ON f.import_file_id = k.import_file_id
LEFT JOIN polyglot.translations t ON t.translation_id = it.conflict_id
`

// ListImportTranslations returns rows of one import language in file, key and
// insertion order.
func (p *Pool) ListImportTranslations(ctx context.Context, importLanguageID int64) ([]ImportTranslationRow, error) {
	q := importTranslationRowSelect + `
WHERE it.import_language_id = ?
ORDER BY f.position, k.position, it.import_translation_id
`
	rows := make([]ImportTranslationRow, 0, 64)
	if err := p.gdb.WithContext(ctx).Raw(q, importLanguageID).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("query import translations: %w", err)
	}
	return rows, nil
}

func (p *Pool) GetImportTranslation(ctx context.Context, importTranslationID int64) (*ImportTranslationRow, error) {
	q := importTranslationRowSelect + `
WHERE it.import_translation_id = ?
`
	var rows []ImportTranslationRow
	if err := p.gdb.WithContext(ctx).Raw(q, importTranslationID).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("query import translation: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrNoRows
	}
	return &rows[0], nil
}

func (p *Pool) UpdateImportConflicts(ctx context.Context, updates []ConflictUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	return p.Transaction(ctx, func(tx *Pool) error {
		for _, u := range updates {
			err := tx.gdb.Model(&ImportTranslation{}).
				Where("import_translation_id = ?", u.ImportTranslationID).
				Updates(map[string]any{"conflict_id": u.ConflictID, "resolution": u.Resolution}).Error
			if err != nil {
				return fmt.Errorf("update import translation %d: %w", u.ImportTranslationID, err)
			}
		}
		return nil
	})
}

func (p *Pool) SetImportTranslationResolution(ctx context.Context, ids []int64, resolution string) error {
	if len(ids) == 0 {
		return nil
	}
	err := p.gdb.WithContext(ctx).
		Model(&ImportTranslation{}).
		Where("import_translation_id IN ?", ids).
		Update("resolution", resolution).Error
	if err != nil {
		return fmt.Errorf("update import translation resolution: %w", err)
	}
	return nil
}

// ResolveAllConflicts sets resolution on every unresolved conflicting row of an import.
func (p *Pool) ResolveAllConflicts(ctx context.Context, importID int64, resolution string) (int64, error) {
	keyIDs := p.gdb.Model(&ImportKey{}).
		Select("import_key_id").
		Where("import_file_id IN (?)", p.gdb.Model(&ImportFile{}).Select("import_file_id").Where("import_id = ?", importID))

	res := p.gdb.WithContext(ctx).
		Model(&ImportTranslation{}).
		Where("import_key_id IN (?) AND conflict_id IS NOT NULL AND resolution = ?", keyIDs, ResolutionUnresolved).
		Update("resolution", resolution)
	if res.Error != nil {
		return 0, fmt.Errorf("resolve import conflicts: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// FindStoredTranslations looks up live translations in one language for the
// given key references. Matching is exact on (namespace, name).
func (p *Pool) FindStoredTranslations(ctx context.Context, projectID, languageID int64, refs []KeyRef) (map[KeyRef]StoredTranslation, error) {
	out := make(map[KeyRef]StoredTranslation, len(refs))
	if len(refs) == 0 {
		return out, nil
	}

	wanted := make(map[KeyRef]struct{}, len(refs))
	names := make([]string, 0, len(refs))
	for _, ref := range refs {
		if _, ok := wanted[ref]; ok {
			continue
		}
		wanted[ref] = struct{}{}
		names = append(names, ref.Name)
	}

	const q = `
SELECT
	t.translation_id,
	t.key_id,
	t.text,
	COALESCE(ns.name, '') AS namespace,
	k.name
FROM polyglot.translations t
JOIN polyglot.keys k ON k.key_id = t.key_id
LEFT JOIN polyglot.namespaces ns ON ns.namespace_id = k.namespace_id
WHERE k.project_id = ?
  AND t.language_id = ?
  AND k.name IN ?
`
	type storedRow struct {
		TranslationID int64  `gorm:"column:translation_id"`
		KeyID         int64  `gorm:"column:key_id"`
		Text          string `gorm:"column:text"`
		Namespace     string `gorm:"column:namespace"`
		Name          string `gorm:"column:name"`
	}
	var rows []storedRow
	for start := 0; start < len(names); start += 1000 {
		end := min(start+1000, len(names))
		var batch []storedRow
		if err := p.gdb.WithContext(ctx).Raw(q, projectID, languageID, names[start:end]).Scan(&batch).Error; err != nil {
			return nil, fmt.Errorf("query stored translations: %w", err)
		}
		rows = append(rows, batch...)
	}

	for _, row := range rows {
		ref := KeyRef{Namespace: row.Namespace, Name: row.Name}
		if _, ok := wanted[ref]; !ok {
			continue
		}
		out[ref] = StoredTranslation{TranslationID: row.TranslationID, KeyID: row.KeyID, Text: row.Text}
	}
	return out, nil
}

// FindOrCreateKey returns the id of the key (namespace, name) in a project,
// creating the key and namespace when missing. A concurrent insert of the same
// key is resolved by reading the winner's row.
func (p *Pool) FindOrCreateKey(ctx context.Context, projectID int64, namespace, name string) (int64, error) {
	var namespaceID *int64
	if namespace != "" {
		id, err := p.findOrCreateNamespace(ctx, projectID, namespace)
		if err != nil {
			return 0, err
		}
		namespaceID = &id
	}

	if id, err := p.findKey(ctx, projectID, namespaceID, name); err == nil {
		return id, nil
	} else if !IsNoRows(err) {
		return 0, err
	}

	key := Key{ProjectID: projectID, NamespaceID: namespaceID, Name: name}
	err := p.Transaction(ctx, func(tx *Pool) error {
		return tx.gdb.Create(&key).Error
	})
	if err == nil {
		return key.KeyID, nil
	}
	if !IsUniqueViolation(err) {
		return 0, fmt.Errorf("insert key %q: %w", name, err)
	}
	return p.findKey(ctx, projectID, namespaceID, name)
}

func (p *Pool) findKey(ctx context.Context, projectID int64, namespaceID *int64, name string) (int64, error) {
	query := p.gdb.WithContext(ctx).Model(&Key{}).Where("project_id = ? AND name = ?", projectID, name)
	if namespaceID == nil {
		query = query.Where("namespace_id IS NULL")
	} else {
		query = query.Where("namespace_id = ?", *namespaceID)
	}
	var key Key
	if err := query.Take(&key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrNoRows
		}
		return 0, fmt.Errorf("query key %q: %w", name, err)
	}
	return key.KeyID, nil
}

func (p *Pool) findOrCreateNamespace(ctx context.Context, projectID int64, name string) (int64, error) {
	row := Namespace{ProjectID: projectID, Name: name}
	err := p.gdb.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&row).Error
	if err != nil {
		return 0, fmt.Errorf("insert namespace %q: %w", name, err)
	}
	if row.NamespaceID != 0 {
		return row.NamespaceID, nil
	}

	var existing Namespace
	if err := p.gdb.WithContext(ctx).Where("project_id = ? AND name = ?", projectID, name).Take(&existing).Error; err != nil {
		return 0, fmt.Errorf("query namespace %q: %w", name, err)
	}
	return existing.NamespaceID, nil
}

func (p *Pool) AddKeyComments(ctx context.Context, rows []KeyComment) error {
	if len(rows) == 0 {
		return nil
	}
	if err := p.gdb.WithContext(ctx).Create(&rows).Error; err != nil {
		return fmt.Errorf("insert key comments: %w", err)
	}
	return nil
}

func (p *Pool) AddKeyCodeReferences(ctx context.Context, rows []KeyCodeReference) error {
	if len(rows) == 0 {
		return nil
	}
	if err := p.gdb.WithContext(ctx).Create(&rows).Error; err != nil {
		return fmt.Errorf("insert key code references: %w", err)
	}
	return nil
}
