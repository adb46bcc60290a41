package dataimport

import (
	"context"
	"time"

	"horse.fit/polyglot/internal/db"
)

// Store is the persistence the import service needs. WithinTx runs fn against
// a store bound to one transaction; nested calls become savepoints.
type Store interface {
	WithinTx(ctx context.Context, fn func(tx Store) error) error

	FindImport(ctx context.Context, projectID, authorID int64) (*db.Import, error)
	GetImport(ctx context.Context, importID int64) (*db.Import, error)
	CreateImport(ctx context.Context, row *db.Import) error
	DeleteImport(ctx context.Context, importID int64) error

	NextImportFilePosition(ctx context.Context, importID int64) (int, error)
	SaveStagedFile(ctx context.Context, staged *db.StagedFile) error
	ListImportFiles(ctx context.Context, importID int64) ([]db.ImportFile, error)
	ListImportFileIssues(ctx context.Context, importID int64) ([]db.ImportFileIssue, error)
	AddImportFileIssues(ctx context.Context, issues []db.ImportFileIssue) error
	LoadImportFileData(ctx context.Context, fileID int64) (*db.ImportFileData, error)
	DeleteImportFile(ctx context.Context, fileID int64) error

	ListImportLanguages(ctx context.Context, importID int64) ([]db.ImportLanguageSummary, error)
	GetImportLanguage(ctx context.Context, importLanguageID int64) (*db.ImportLanguageRef, error)
	SetImportLanguageExisting(ctx context.Context, importLanguageID int64, existingLanguageID *int64) error
	DeleteImportLanguage(ctx context.Context, importLanguageID int64) error

	ListImportTranslations(ctx context.Context, importLanguageID int64) ([]db.ImportTranslationRow, error)
	GetImportTranslation(ctx context.Context, importTranslationID int64) (*db.ImportTranslationRow, error)
	UpdateImportConflicts(ctx context.Context, updates []db.ConflictUpdate) error
	SetImportTranslationResolution(ctx context.Context, ids []int64, resolution string) error
	ResolveAllConflicts(ctx context.Context, importID int64, resolution string) (int64, error)

	GetLanguage(ctx context.Context, languageID int64) (*db.Language, error)
	ListProjectLanguages(ctx context.Context, projectID int64) ([]db.Language, error)
	FindStoredTranslations(ctx context.Context, projectID, languageID int64, refs []db.KeyRef) (map[db.KeyRef]db.StoredTranslation, error)
	FindOrCreateKey(ctx context.Context, projectID int64, namespace, name string) (int64, error)
	AddKeyComments(ctx context.Context, rows []db.KeyComment) error
	AddKeyCodeReferences(ctx context.Context, rows []db.KeyCodeReference) error
	UpsertTranslations(ctx context.Context, rows []db.TranslationUpsert, now time.Time) error
}

// PoolStore adapts db.Pool to Store.
type PoolStore struct {
	*db.Pool
}

func NewPoolStore(pool *db.Pool) PoolStore {
	return PoolStore{Pool: pool}
}

func (s PoolStore) WithinTx(ctx context.Context, fn func(tx Store) error) error {
	return s.Pool.Transaction(ctx, func(tx *db.Pool) error {
		return fn(PoolStore{Pool: tx})
	})
}
