package dataimport

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/rs/zerolog"

	"horse.fit/polyglot/internal/db"
)

const (
	testProject = int64(1)
	testAuthor  = int64(7)
)

type importFixture struct {
	store   *memoryStore
	service *Service
	en      int64
	de      int64
}

func newImportFixture() importFixture {
	store := newMemoryStore()
	f := importFixture{
		store:   store,
		service: NewService(store, Options{Logger: zerolog.Nop()}),
	}
	f.en = store.addLanguage(testProject, "en")
	f.de = store.addLanguage(testProject, "de")
	return f
}

func (f importFixture) add(t *testing.T, files ...UploadedFile) ImportView {
	t.Helper()
	view, err := f.service.AddFiles(context.Background(), testProject, testAuthor, files)
	if err != nil {
		t.Fatalf("AddFiles() error = %v", err)
	}
	return view
}

func file(name, content string) UploadedFile {
	return UploadedFile{Name: name, Content: []byte(content)}
}

func TestAddFilesBindsLanguageAndDetectsConflicts(t *testing.T) {
	t.Parallel()

	f := newImportFixture()
	f.store.setStored(testProject, "homepage", "hello", f.en, "Hi")

	view := f.add(t, file("homepage/en.json", `{"hello":"Hello","bye":"Bye"}`))
	if len(view.Files) != 1 || view.Files[0].Namespace != "homepage" || view.Files[0].Format != FormatJSON {
		t.Fatalf("unexpected files %+v", view.Files)
	}
	if len(view.Languages) != 1 {
		t.Fatalf("expected one import language, got %d", len(view.Languages))
	}
	lang := view.Languages[0]
	if lang.ExistingLanguageID == nil || *lang.ExistingLanguageID != f.en || lang.ExistingLanguageTag != "en" {
		t.Fatalf("language should auto-bind to en: %+v", lang)
	}
	if lang.TotalCount != 2 || lang.ConflictCount != 1 || lang.ResolvedCount != 0 {
		t.Fatalf("unexpected counts %+v", lang)
	}

	rows, err := f.service.FindTranslations(context.Background(), lang.ID)
	if err != nil {
		t.Fatalf("FindTranslations() error = %v", err)
	}
	if len(rows) != 2 || rows[0].KeyName != "hello" || rows[1].KeyName != "bye" {
		t.Fatalf("rows must follow file order: %+v", rows)
	}
	if rows[0].ConflictID == nil || rows[0].ConflictText == nil || *rows[0].ConflictText != "Hi" {
		t.Fatalf("expected conflict with stored text: %+v", rows[0])
	}
	if rows[1].ConflictID != nil || !rows[1].Resolved() {
		t.Fatalf("row without stored translation must not conflict: %+v", rows[1])
	}
}

func TestAddFilesReusesImportAndRecordsInvalidFiles(t *testing.T) {
	t.Parallel()

	f := newImportFixture()
	first := f.add(t, file("en.json", `{"a":"A"}`))
	second := f.add(t, file("de.json", `{"a":`), file("notes.txt", "hello"))

	if first.ID != second.ID {
		t.Fatalf("expected one import per project and author, got %d and %d", first.ID, second.ID)
	}
	if len(second.Files) != 3 {
		t.Fatalf("expected 3 files, got %d", len(second.Files))
	}
	for i, want := range []int{0, 1, 2} {
		if second.Files[i].Position != want {
			t.Fatalf("file %d position = %d", i, second.Files[i].Position)
		}
	}
	for _, broken := range second.Files[1:] {
		if len(broken.Issues) != 1 || broken.Issues[0].Type != IssueInvalidFile {
			t.Fatalf("expected INVALID_FILE issue on %s: %+v", broken.Name, broken.Issues)
		}
	}
	if len(second.Languages) != 1 {
		t.Fatalf("invalid files must not stage languages, got %d", len(second.Languages))
	}
}

func TestImportWithoutForceFailsOnUnresolvedConflict(t *testing.T) {
	t.Parallel()

	f := newImportFixture()
	f.store.setStored(testProject, "", "hello", f.en, "Hi")
	view := f.add(t, file("en.json", `{"hello":"Hello","bye":"Bye"}`))
	translationsBefore := f.store.translationCount()

	_, err := f.service.Import(context.Background(), view.ID, ForceNone)
	if !errors.Is(err, ErrConflictNotResolved) {
		t.Fatalf("expected ErrConflictNotResolved, got %v", err)
	}
	if text, _ := f.store.stored(testProject, "", "hello", f.en); text != "Hi" {
		t.Fatalf("stored text changed to %q", text)
	}
	if f.store.translationCount() != translationsBefore {
		t.Fatalf("failed import wrote translations")
	}
	if _, err := f.service.Get(context.Background(), testProject, testAuthor, view.ID); err != nil {
		t.Fatalf("import must survive a failed apply: %v", err)
	}
}

func TestImportForceModes(t *testing.T) {
	t.Parallel()

	cases := []struct {
		mode      ForceMode
		wantHello string
		wantKept  int
	}{
		{mode: ForceOverride, wantHello: "Hello", wantKept: 0},
		{mode: ForceKeep, wantHello: "Hi", wantKept: 1},
	}
	for _, tc := range cases {
		t.Run(string(tc.mode), func(t *testing.T) {
			t.Parallel()

			f := newImportFixture()
			f.store.setStored(testProject, "", "hello", f.en, "Hi")
			view := f.add(t, file("en.json", `{"hello":"Hello","bye":"Bye"}`))

			result, err := f.service.Import(context.Background(), view.ID, tc.mode)
			if err != nil {
				t.Fatalf("Import() error = %v", err)
			}
			if !result.ImportDeleted || result.TranslationsKept != tc.wantKept {
				t.Fatalf("unexpected result %+v", result)
			}
			if text, _ := f.store.stored(testProject, "", "hello", f.en); text != tc.wantHello {
				t.Fatalf("hello = %q, want %q", text, tc.wantHello)
			}
			if text, ok := f.store.stored(testProject, "", "bye", f.en); !ok || text != "Bye" {
				t.Fatalf("bye = %q, %v", text, ok)
			}
			if _, err := f.service.Get(context.Background(), testProject, testAuthor, view.ID); !errors.Is(err, ErrImportNotFound) {
				t.Fatalf("expected import to be deleted, got %v", err)
			}
		})
	}
}

func TestResolvedConflictsImportWithoutForce(t *testing.T) {
	t.Parallel()

	f := newImportFixture()
	f.store.setStored(testProject, "", "hello", f.en, "Hi")
	f.store.setStored(testProject, "", "bye", f.en, "Cya")
	view := f.add(t, file("en.json", `{"hello":"Hello","bye":"Bye"}`))
	ctx := context.Background()

	rows, err := f.service.FindTranslations(ctx, view.Languages[0].ID)
	if err != nil {
		t.Fatalf("FindTranslations() error = %v", err)
	}
	resolved, err := f.service.ResolveTranslation(ctx, rows[0].ID, false)
	if err != nil {
		t.Fatalf("ResolveTranslation() error = %v", err)
	}
	if resolved.Resolution != db.ResolutionKeepExisting {
		t.Fatalf("unexpected resolution %q", resolved.Resolution)
	}
	if n, err := f.service.SetAllResolved(ctx, view.ID); err != nil || n != 1 {
		t.Fatalf("SetAllResolved() = %d, %v; want 1 row", n, err)
	}

	if _, err := f.service.Import(ctx, view.ID, ForceNone); err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if text, _ := f.store.stored(testProject, "", "hello", f.en); text != "Hi" {
		t.Fatalf("kept row was overwritten: %q", text)
	}
	if text, _ := f.store.stored(testProject, "", "bye", f.en); text != "Bye" {
		t.Fatalf("override row was not written: %q", text)
	}
}

func TestResolveAllInLanguage(t *testing.T) {
	t.Parallel()

	f := newImportFixture()
	f.store.setStored(testProject, "", "a", f.de, "alt")
	f.store.setStored(testProject, "", "b", f.de, "alt")
	view := f.add(t, file("de.json", `{"a":"neu","b":"neu","c":"neu"}`))

	n, err := f.service.ResolveAllInLanguage(context.Background(), view.Languages[0].ID, true)
	if err != nil || n != 2 {
		t.Fatalf("ResolveAllInLanguage() = %d, %v; want 2", n, err)
	}
	lang, err := f.service.FindLanguage(context.Background(), view.Languages[0].ID)
	if err != nil {
		t.Fatalf("FindLanguage() error = %v", err)
	}
	if lang.ConflictCount != 2 || lang.ResolvedCount != 2 {
		t.Fatalf("unexpected counts %+v", lang)
	}
}

func TestSelectExistingLanguageRecomputesConflicts(t *testing.T) {
	t.Parallel()

	f := newImportFixture()
	ctx := context.Background()
	f.store.setStored(testProject, "", "hello", f.de, "Hallo")
	view := f.add(t, file("fr.json", `{"hello":"Bonjour"}`))
	langID := view.Languages[0].ID

	if view.Languages[0].ExistingLanguageID != nil {
		t.Fatalf("fr must not bind to a project without fr")
	}
	if _, err := f.service.Import(ctx, view.ID, ForceOverride); !errors.Is(err, ErrLanguageNotSelected) {
		t.Fatalf("expected ErrLanguageNotSelected, got %v", err)
	}

	lang, err := f.service.SelectExistingLanguage(ctx, langID, f.de)
	if err != nil {
		t.Fatalf("SelectExistingLanguage() error = %v", err)
	}
	if lang.ConflictCount != 1 {
		t.Fatalf("expected conflict against de, got %+v", lang)
	}

	rows, _ := f.service.FindTranslations(ctx, langID)
	if _, err := f.service.ResolveTranslation(ctx, rows[0].ID, true); err != nil {
		t.Fatalf("ResolveTranslation() error = %v", err)
	}

	// Binding the same language again keeps resolutions.
	if _, err := f.service.SelectExistingLanguage(ctx, langID, f.de); err != nil {
		t.Fatalf("second SelectExistingLanguage() error = %v", err)
	}
	rows, _ = f.service.FindTranslations(ctx, langID)
	if rows[0].Resolution != db.ResolutionUseImported {
		t.Fatalf("rebinding the same language reset resolution to %q", rows[0].Resolution)
	}

	// Switching to a language without stored text clears the conflict.
	lang, err = f.service.SelectExistingLanguage(ctx, langID, f.en)
	if err != nil {
		t.Fatalf("SelectExistingLanguage(en) error = %v", err)
	}
	rows, _ = f.service.FindTranslations(ctx, langID)
	if lang.ConflictCount != 0 || rows[0].ConflictID != nil || rows[0].Resolution != db.ResolutionUnresolved {
		t.Fatalf("expected cleared conflict and reset resolution: %+v %+v", lang, rows[0])
	}

	foreign := f.store.addLanguage(99, "fr")
	if _, err := f.service.SelectExistingLanguage(ctx, langID, foreign); !errors.Is(err, ErrLanguageNotFound) {
		t.Fatalf("expected ErrLanguageNotFound for another project's language, got %v", err)
	}

	lang, err = f.service.ResetExistingLanguage(ctx, langID)
	if err != nil || lang.ExistingLanguageID != nil {
		t.Fatalf("ResetExistingLanguage() = %+v, %v", lang, err)
	}
}

func TestImportMergesKeysAcrossFiles(t *testing.T) {
	t.Parallel()

	f := newImportFixture()
	view := f.add(t,
		file("homepage/en.yaml", "what a key: Hello # hello1\n"),
		file("homepage/de.yaml", "what a key: Hallo # hello2\n"),
	)

	result, err := f.service.Import(context.Background(), view.ID, ForceNone)
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if result.TranslationsWritten != 2 || !slices.Equal(result.ImportedFiles, []string{"homepage/en.yaml", "homepage/de.yaml"}) {
		t.Fatalf("unexpected result %+v", result)
	}
	if f.store.keyCount() != 1 {
		t.Fatalf("expected a single key, got %d", f.store.keyCount())
	}
	if got := f.store.commentsOf(testProject, "homepage", "what a key"); !slices.Equal(got, []string{"hello1", "hello2"}) {
		t.Fatalf("unexpected comments %v", got)
	}
	if text, _ := f.store.stored(testProject, "homepage", "what a key", f.de); text != "Hallo" {
		t.Fatalf("de text = %q", text)
	}
}

func TestImportSkipsFileWithConflictingDuplicates(t *testing.T) {
	t.Parallel()

	f := newImportFixture()
	ctx := context.Background()
	view := f.add(t,
		file("en.json", `{"menu":{"save":"Save"},"menu.save":"Store"}`),
		file("de.json", `{"ok":"Gut"}`),
	)
	if issues := view.Files[0].Issues; len(issues) != 1 || issues[0].Type != IssueMultipleValuesForKeyAndLanguage {
		t.Fatalf("expected staging issue for duplicate key, got %+v", issues)
	}

	result, err := f.service.Import(ctx, view.ID, ForceNone)
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if len(result.FailedFiles) != 1 || result.FailedFiles[0].Name != "en.json" || result.ImportDeleted {
		t.Fatalf("unexpected result %+v", result)
	}
	if text, _ := f.store.stored(testProject, "", "ok", f.de); text != "Gut" {
		t.Fatalf("valid file was not committed")
	}
	if _, ok := f.store.stored(testProject, "", "menu.save", f.en); ok {
		t.Fatalf("failed file wrote translations")
	}

	remaining, err := f.service.Get(ctx, testProject, testAuthor, view.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(remaining.Files) != 1 || remaining.Files[0].Name != "en.json" {
		t.Fatalf("only the failed file should remain: %+v", remaining.Files)
	}
	last := remaining.Files[0].Issues[len(remaining.Files[0].Issues)-1]
	if last.Type != IssueImportFailed {
		t.Fatalf("expected IMPORT_FAILED issue, got %+v", remaining.Files[0].Issues)
	}
}

func TestDeleteLanguageAndImport(t *testing.T) {
	t.Parallel()

	f := newImportFixture()
	ctx := context.Background()
	view := f.add(t, file("en.json", `{"a":"A"}`), file("de.json", `{"a":"B"}`))
	enLang := view.Languages[0].ID

	if err := f.service.DeleteLanguage(ctx, enLang); err != nil {
		t.Fatalf("DeleteLanguage() error = %v", err)
	}
	if _, err := f.service.FindLanguage(ctx, enLang); !errors.Is(err, ErrLanguageNotFound) {
		t.Fatalf("expected ErrLanguageNotFound after delete, got %v", err)
	}
	if _, err := f.store.GetLanguage(ctx, f.en); err != nil {
		t.Fatalf("project language must survive: %v", err)
	}
	languages, err := f.service.ListLanguages(ctx, view.ID)
	if err != nil || len(languages) != 1 {
		t.Fatalf("ListLanguages() = %d, %v", len(languages), err)
	}

	if err := f.service.DeleteLanguage(ctx, languages[0].ID); err != nil {
		t.Fatalf("DeleteLanguage() error = %v", err)
	}
	found, err := f.service.Find(ctx, testProject, testAuthor)
	if err != nil || found != nil {
		t.Fatalf("import without languages should be gone, got %+v, %v", found, err)
	}
}

func TestDeleteLanguageDropsEmptiedFileBeforeImport(t *testing.T) {
	t.Parallel()

	f := newImportFixture()
	ctx := context.Background()
	view := f.add(t, file("en.json", `{"a":"A"}`), file("de.json", `{"a":"B"}`))

	var enLang, deLang LanguageView
	for _, lang := range view.Languages {
		switch lang.FileName {
		case "en.json":
			enLang = lang
		case "de.json":
			deLang = lang
		}
	}
	if err := f.service.DeleteLanguage(ctx, deLang.ID); err != nil {
		t.Fatalf("DeleteLanguage() error = %v", err)
	}
	if _, err := f.service.SelectExistingLanguage(ctx, enLang.ID, f.en); err != nil {
		t.Fatalf("SelectExistingLanguage() error = %v", err)
	}

	result, err := f.service.Import(ctx, view.ID, ForceOverride)
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if !result.ImportDeleted || len(result.FailedFiles) != 0 {
		t.Fatalf("expected a clean commit, got %+v", result)
	}
	if !slices.Equal(result.ImportedFiles, []string{"en.json"}) {
		t.Fatalf("ImportedFiles = %v", result.ImportedFiles)
	}
	if text, _ := f.store.stored(testProject, "", "a", f.en); text != "A" {
		t.Fatalf("en text = %q", text)
	}
}

func TestDeleteImportAndOwnership(t *testing.T) {
	t.Parallel()

	f := newImportFixture()
	ctx := context.Background()
	view := f.add(t, file("en.json", `{"a":"A"}`))

	if _, err := f.service.Get(ctx, testProject, testAuthor+1, view.ID); !errors.Is(err, ErrImportNotFound) {
		t.Fatalf("another author must not see the import, got %v", err)
	}
	if err := f.service.DeleteImport(ctx, view.ID); err != nil {
		t.Fatalf("DeleteImport() error = %v", err)
	}
	if _, err := f.service.Get(ctx, testProject, testAuthor, view.ID); !errors.Is(err, ErrImportNotFound) {
		t.Fatalf("expected ErrImportNotFound, got %v", err)
	}
	if err := f.service.DeleteImport(ctx, view.ID); !errors.Is(err, ErrImportNotFound) {
		t.Fatalf("second delete should report not found, got %v", err)
	}
}

func TestParseForceMode(t *testing.T) {
	t.Parallel()

	for raw, want := range map[string]ForceMode{"": ForceNone, "override": ForceOverride, "keep": ForceKeep, "NO_FORCE": ForceNone} {
		got, err := ParseForceMode(raw)
		if err != nil || got != want {
			t.Fatalf("ParseForceMode(%q) = %q, %v", raw, got, err)
		}
	}
	if _, err := ParseForceMode("always"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}
