package dataimport

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"horse.fit/polyglot/internal/db"
)

type liveKeyRef struct {
	projectID int64
	namespace string
	name      string
}

type liveSlot struct {
	keyID      int64
	languageID int64
}

// memoryStore keeps staging and live rows in maps. WithinTx does not roll back.
type memoryStore struct {
	mu     sync.Mutex
	nextID int64

	imports      map[int64]*db.Import
	files        map[int64]*db.ImportFile
	issues       []db.ImportFileIssue
	importLangs  map[int64]*db.ImportLanguage
	importKeys   map[int64]*db.ImportKey
	metas        []db.ImportKeyMeta
	importTrs    map[int64]*db.ImportTranslation
	languages    map[int64]db.Language
	keys         map[liveKeyRef]int64
	translations map[int64]*db.Translation
	comments     []db.KeyComment
	codeRefs     []db.KeyCodeReference
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		imports:      make(map[int64]*db.Import),
		files:        make(map[int64]*db.ImportFile),
		importLangs:  make(map[int64]*db.ImportLanguage),
		importKeys:   make(map[int64]*db.ImportKey),
		importTrs:    make(map[int64]*db.ImportTranslation),
		languages:    make(map[int64]db.Language),
		keys:         make(map[liveKeyRef]int64),
		translations: make(map[int64]*db.Translation),
	}
}

func (s *memoryStore) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *memoryStore) addLanguage(projectID int64, tag string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.id()
	s.languages[id] = db.Language{LanguageID: id, ProjectID: projectID, Tag: tag}
	return id
}

func (s *memoryStore) setStored(projectID int64, namespace, name string, languageID int64, text string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	keyID := s.liveKey(projectID, namespace, name)
	if row := s.storedRow(keyID, languageID); row != nil {
		row.Text = text
		return row.TranslationID
	}
	id := s.id()
	s.translations[id] = &db.Translation{TranslationID: id, KeyID: keyID, LanguageID: languageID, Text: text}
	return id
}

func (s *memoryStore) stored(projectID int64, namespace, name string, languageID int64) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	keyID, ok := s.keys[liveKeyRef{projectID, namespace, name}]
	if !ok {
		return "", false
	}
	row := s.storedRow(keyID, languageID)
	if row == nil {
		return "", false
	}
	return row.Text, true
}

func (s *memoryStore) keyCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.keys)
}

func (s *memoryStore) translationCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.translations)
}

func (s *memoryStore) commentsOf(projectID int64, namespace, name string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keyID := s.keys[liveKeyRef{projectID, namespace, name}]
	var out []string
	for _, c := range s.comments {
		if c.KeyID == keyID {
			out = append(out, c.Text)
		}
	}
	return out
}

func (s *memoryStore) liveKey(projectID int64, namespace, name string) int64 {
	ref := liveKeyRef{projectID, namespace, name}
	if id, ok := s.keys[ref]; ok {
		return id
	}
	id := s.id()
	s.keys[ref] = id
	return id
}

func (s *memoryStore) storedRow(keyID, languageID int64) *db.Translation {
	for _, row := range s.translations {
		if row.KeyID == keyID && row.LanguageID == languageID {
			return row
		}
	}
	return nil
}

func (s *memoryStore) WithinTx(_ context.Context, fn func(tx Store) error) error {
	return fn(s)
}

func (s *memoryStore) FindImport(_ context.Context, projectID, authorID int64) (*db.Import, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, imp := range s.imports {
		if imp.ProjectID == projectID && imp.AuthorID == authorID {
			copied := *imp
			return &copied, nil
		}
	}
	return nil, db.ErrNoRows
}

func (s *memoryStore) GetImport(_ context.Context, importID int64) (*db.Import, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	imp, ok := s.imports[importID]
	if !ok {
		return nil, db.ErrNoRows
	}
	copied := *imp
	return &copied, nil
}

func (s *memoryStore) CreateImport(_ context.Context, row *db.Import) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, imp := range s.imports {
		if imp.ProjectID == row.ProjectID && imp.AuthorID == row.AuthorID {
			return fmt.Errorf("import exists for project %d author %d", row.ProjectID, row.AuthorID)
		}
	}
	row.ImportID = s.id()
	copied := *row
	s.imports[row.ImportID] = &copied
	return nil
}

func (s *memoryStore) DeleteImport(_ context.Context, importID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, file := range s.files {
		if file.ImportID == importID {
			s.deleteFile(id)
		}
	}
	delete(s.imports, importID)
	return nil
}

func (s *memoryStore) deleteFile(fileID int64) {
	for langID, lang := range s.importLangs {
		if lang.ImportFileID == fileID {
			delete(s.importLangs, langID)
		}
	}
	for keyID, key := range s.importKeys {
		if key.ImportFileID != fileID {
			continue
		}
		s.dropImportKey(keyID)
	}
	issues := s.issues[:0]
	for _, issue := range s.issues {
		if issue.ImportFileID != fileID {
			issues = append(issues, issue)
		}
	}
	s.issues = issues
	delete(s.files, fileID)
}

func (s *memoryStore) dropImportKey(keyID int64) {
	for trID, tr := range s.importTrs {
		if tr.ImportKeyID == keyID {
			delete(s.importTrs, trID)
		}
	}
	metas := s.metas[:0]
	for _, meta := range s.metas {
		if meta.ImportKeyID != keyID {
			metas = append(metas, meta)
		}
	}
	s.metas = metas
	delete(s.importKeys, keyID)
}

func (s *memoryStore) NextImportFilePosition(_ context.Context, importID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := 0
	for _, file := range s.files {
		if file.ImportID == importID && file.Position >= next {
			next = file.Position + 1
		}
	}
	return next, nil
}

func (s *memoryStore) SaveStagedFile(_ context.Context, staged *db.StagedFile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	staged.File.ImportFileID = s.id()
	file := staged.File
	s.files[file.ImportFileID] = &file

	for i := range staged.Languages {
		staged.Languages[i].ImportLanguageID = s.id()
		staged.Languages[i].ImportFileID = file.ImportFileID
		lang := staged.Languages[i]
		s.importLangs[lang.ImportLanguageID] = &lang
	}
	for i := range staged.Issues {
		staged.Issues[i].ImportFileIssueID = s.id()
		staged.Issues[i].ImportFileID = file.ImportFileID
		s.issues = append(s.issues, staged.Issues[i])
	}
	for i := range staged.Keys {
		key := &staged.Keys[i]
		key.Key.ImportKeyID = s.id()
		key.Key.ImportFileID = file.ImportFileID
		copiedKey := key.Key
		s.importKeys[copiedKey.ImportKeyID] = &copiedKey
		for j := range key.Metas {
			key.Metas[j].ImportKeyMetaID = s.id()
			key.Metas[j].ImportKeyID = copiedKey.ImportKeyID
			s.metas = append(s.metas, key.Metas[j])
		}
		for j := range key.Translations {
			tr := &key.Translations[j].Translation
			tr.ImportTranslationID = s.id()
			tr.ImportKeyID = copiedKey.ImportKeyID
			tr.ImportLanguageID = staged.Languages[key.Translations[j].LanguageIndex].ImportLanguageID
			if tr.Resolution == "" {
				tr.Resolution = db.ResolutionUnresolved
			}
			copiedTr := *tr
			s.importTrs[copiedTr.ImportTranslationID] = &copiedTr
		}
	}
	return nil
}

func (s *memoryStore) ListImportFiles(_ context.Context, importID int64) ([]db.ImportFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []db.ImportFile
	for _, file := range s.files {
		if file.ImportID == importID {
			out = append(out, *file)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (s *memoryStore) ListImportFileIssues(_ context.Context, importID int64) ([]db.ImportFileIssue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []db.ImportFileIssue
	for _, issue := range s.issues {
		if file, ok := s.files[issue.ImportFileID]; ok && file.ImportID == importID {
			out = append(out, issue)
		}
	}
	return out, nil
}

func (s *memoryStore) AddImportFileIssues(_ context.Context, issues []db.ImportFileIssue) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, issue := range issues {
		issue.ImportFileIssueID = s.id()
		s.issues = append(s.issues, issue)
	}
	return nil
}

func (s *memoryStore) LoadImportFileData(_ context.Context, fileID int64) (*db.ImportFileData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	file, ok := s.files[fileID]
	if !ok {
		return nil, db.ErrNoRows
	}
	data := &db.ImportFileData{File: *file}
	for _, lang := range s.importLangs {
		if lang.ImportFileID == fileID {
			data.Languages = append(data.Languages, *lang)
		}
	}
	sort.Slice(data.Languages, func(i, j int) bool {
		return data.Languages[i].ImportLanguageID < data.Languages[j].ImportLanguageID
	})
	keyIDs := make(map[int64]bool)
	for _, key := range s.importKeys {
		if key.ImportFileID == fileID {
			data.Keys = append(data.Keys, *key)
			keyIDs[key.ImportKeyID] = true
		}
	}
	sort.Slice(data.Keys, func(i, j int) bool { return data.Keys[i].Position < data.Keys[j].Position })
	for _, meta := range s.metas {
		if keyIDs[meta.ImportKeyID] {
			data.Metas = append(data.Metas, meta)
		}
	}
	for _, tr := range s.importTrs {
		if keyIDs[tr.ImportKeyID] {
			data.Translations = append(data.Translations, *tr)
		}
	}
	sort.Slice(data.Translations, func(i, j int) bool {
		return data.Translations[i].ImportTranslationID < data.Translations[j].ImportTranslationID
	})
	return data, nil
}

func (s *memoryStore) DeleteImportFile(_ context.Context, fileID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteFile(fileID)
	return nil
}

func (s *memoryStore) ListImportLanguages(_ context.Context, importID int64) ([]db.ImportLanguageSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []db.ImportLanguageSummary
	for _, lang := range s.importLangs {
		file := s.files[lang.ImportFileID]
		if file == nil || file.ImportID != importID {
			continue
		}
		row := db.ImportLanguageSummary{ImportLanguage: *lang, FileName: file.Name, Namespace: file.Namespace}
		if lang.ExistingLanguageID != nil {
			if existing, ok := s.languages[*lang.ExistingLanguageID]; ok {
				tag := existing.Tag
				row.ExistingTag = &tag
			}
		}
		for _, tr := range s.importTrs {
			if tr.ImportLanguageID != lang.ImportLanguageID {
				continue
			}
			row.TotalCount++
			if tr.ConflictID != nil {
				row.ConflictCount++
				if tr.Resolution != db.ResolutionUnresolved {
					row.ResolvedCount++
				}
			}
		}
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool {
		pi, pj := s.files[out[i].ImportFileID].Position, s.files[out[j].ImportFileID].Position
		if pi != pj {
			return pi < pj
		}
		return out[i].ImportLanguageID < out[j].ImportLanguageID
	})
	return out, nil
}

func (s *memoryStore) GetImportLanguage(_ context.Context, importLanguageID int64) (*db.ImportLanguageRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lang, ok := s.importLangs[importLanguageID]
	if !ok {
		return nil, db.ErrNoRows
	}
	file := s.files[lang.ImportFileID]
	imp := s.imports[file.ImportID]
	return &db.ImportLanguageRef{
		ImportLanguage: *lang,
		ImportID:       file.ImportID,
		ProjectID:      imp.ProjectID,
		FileName:       file.Name,
		Namespace:      file.Namespace,
	}, nil
}

func (s *memoryStore) SetImportLanguageExisting(_ context.Context, importLanguageID int64, existingLanguageID *int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	lang, ok := s.importLangs[importLanguageID]
	if !ok {
		return db.ErrNoRows
	}
	if existingLanguageID == nil {
		lang.ExistingLanguageID = nil
		return nil
	}
	id := *existingLanguageID
	lang.ExistingLanguageID = &id
	return nil
}

func (s *memoryStore) DeleteImportLanguage(_ context.Context, importLanguageID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	lang, ok := s.importLangs[importLanguageID]
	if !ok {
		return db.ErrNoRows
	}
	for id, tr := range s.importTrs {
		if tr.ImportLanguageID == importLanguageID {
			delete(s.importTrs, id)
		}
	}
	delete(s.importLangs, importLanguageID)
	fileHasLanguages := false
	for _, other := range s.importLangs {
		if other.ImportFileID == lang.ImportFileID {
			fileHasLanguages = true
			break
		}
	}
	if !fileHasLanguages {
		s.deleteFile(lang.ImportFileID)
		return nil
	}
	for keyID, key := range s.importKeys {
		if key.ImportFileID != lang.ImportFileID {
			continue
		}
		used := false
		for _, tr := range s.importTrs {
			if tr.ImportKeyID == keyID {
				used = true
				break
			}
		}
		if !used {
			s.dropImportKey(keyID)
		}
	}
	return nil
}

func (s *memoryStore) translationRow(tr *db.ImportTranslation) db.ImportTranslationRow {
	key := s.importKeys[tr.ImportKeyID]
	file := s.files[key.ImportFileID]
	row := db.ImportTranslationRow{
		ImportTranslation: *tr,
		KeyName:           key.Name,
		Namespace:         file.Namespace,
		ImportFileID:      file.ImportFileID,
		ImportID:          file.ImportID,
		FilePosition:      file.Position,
		KeyPosition:       key.Position,
	}
	if tr.ConflictID != nil {
		if stored, ok := s.translations[*tr.ConflictID]; ok {
			text := stored.Text
			row.ConflictText = &text
		}
	}
	return row
}

func (s *memoryStore) ListImportTranslations(_ context.Context, importLanguageID int64) ([]db.ImportTranslationRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []db.ImportTranslationRow
	for _, tr := range s.importTrs {
		if tr.ImportLanguageID == importLanguageID {
			out = append(out, s.translationRow(tr))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FilePosition != out[j].FilePosition {
			return out[i].FilePosition < out[j].FilePosition
		}
		if out[i].KeyPosition != out[j].KeyPosition {
			return out[i].KeyPosition < out[j].KeyPosition
		}
		return out[i].ImportTranslationID < out[j].ImportTranslationID
	})
	return out, nil
}

func (s *memoryStore) GetImportTranslation(_ context.Context, importTranslationID int64) (*db.ImportTranslationRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tr, ok := s.importTrs[importTranslationID]
	if !ok {
		return nil, db.ErrNoRows
	}
	row := s.translationRow(tr)
	return &row, nil
}

func (s *memoryStore) UpdateImportConflicts(_ context.Context, updates []db.ConflictUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range updates {
		tr, ok := s.importTrs[u.ImportTranslationID]
		if !ok {
			continue
		}
		tr.ConflictID = u.ConflictID
		tr.Resolution = u.Resolution
	}
	return nil
}

func (s *memoryStore) SetImportTranslationResolution(_ context.Context, ids []int64, resolution string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		if tr, ok := s.importTrs[id]; ok {
			tr.Resolution = resolution
		}
	}
	return nil
}

func (s *memoryStore) ResolveAllConflicts(_ context.Context, importID int64, resolution string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, tr := range s.importTrs {
		key := s.importKeys[tr.ImportKeyID]
		if s.files[key.ImportFileID].ImportID != importID {
			continue
		}
		if tr.ConflictID != nil && tr.Resolution == db.ResolutionUnresolved {
			tr.Resolution = resolution
			n++
		}
	}
	return n, nil
}

func (s *memoryStore) GetLanguage(_ context.Context, languageID int64) (*db.Language, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lang, ok := s.languages[languageID]
	if !ok {
		return nil, db.ErrNoRows
	}
	return &lang, nil
}

func (s *memoryStore) ListProjectLanguages(_ context.Context, projectID int64) ([]db.Language, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []db.Language
	for _, lang := range s.languages {
		if lang.ProjectID == projectID {
			out = append(out, lang)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LanguageID < out[j].LanguageID })
	return out, nil
}

func (s *memoryStore) FindStoredTranslations(_ context.Context, projectID, languageID int64, refs []db.KeyRef) (map[db.KeyRef]db.StoredTranslation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[db.KeyRef]db.StoredTranslation)
	for _, ref := range refs {
		keyID, ok := s.keys[liveKeyRef{projectID, ref.Namespace, ref.Name}]
		if !ok {
			continue
		}
		if row := s.storedRow(keyID, languageID); row != nil {
			out[ref] = db.StoredTranslation{TranslationID: row.TranslationID, KeyID: keyID, Text: row.Text}
		}
	}
	return out, nil
}

func (s *memoryStore) FindOrCreateKey(_ context.Context, projectID int64, namespace, name string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.liveKey(projectID, namespace, name), nil
}

func (s *memoryStore) AddKeyComments(_ context.Context, rows []db.KeyComment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.comments = append(s.comments, rows...)
	return nil
}

func (s *memoryStore) AddKeyCodeReferences(_ context.Context, rows []db.KeyCodeReference) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codeRefs = append(s.codeRefs, rows...)
	return nil
}

func (s *memoryStore) UpsertTranslations(_ context.Context, rows []db.TranslationUpsert, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range rows {
		if existing := s.storedRow(row.KeyID, row.LanguageID); existing != nil {
			existing.Text = row.Text
			existing.State = row.State
			existing.UpdatedAt = now
			continue
		}
		id := s.id()
		s.translations[id] = &db.Translation{
			TranslationID: id,
			KeyID:         row.KeyID,
			LanguageID:    row.LanguageID,
			Text:          row.Text,
			State:         row.State,
			UpdatedAt:     now,
		}
	}
	return nil
}
