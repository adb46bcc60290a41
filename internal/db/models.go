package db

import (
	"encoding/json"
	"time"
)

const (
	TranslationStateUntranslated = "UNTRANSLATED"
	TranslationStateTranslated   = "TRANSLATED"
	TranslationStateReviewed     = "REVIEWED"
)

const (
	ResolutionUnresolved   = "UNRESOLVED"
	ResolutionKeepExisting = "KEEP_EXISTING"
	ResolutionUseImported  = "USE_IMPORTED"
)

const (
	KeyMetaComment       = "COMMENT"
	KeyMetaCodeReference = "CODE_REFERENCE"
)

const (
	BatchJobPending   = "PENDING"
	BatchJobRunning   = "RUNNING"
	BatchJobSuccess   = "SUCCESS"
	BatchJobFailed    = "FAILED"
	BatchJobCancelled = "CANCELLED"
)

// Project maps polyglot.projects.
type Project struct {
	ProjectID      int64     `gorm:"column:project_id;primaryKey;autoIncrement"`
	Name           string    `gorm:"column:name;type:text;not null"`
	BaseLanguageID *int64    `gorm:"column:base_language_id;type:bigint"`
	CreatedAt      time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (Project) TableName() string { return "polyglot.projects" }

// Language maps polyglot.languages.
type Language struct {
	LanguageID int64     `gorm:"column:language_id;primaryKey;autoIncrement"`
	ProjectID  int64     `gorm:"column:project_id;type:bigint;not null;uniqueIndex:languages_project_tag_key"`
	Tag        string    `gorm:"column:tag;type:text;not null;uniqueIndex:languages_project_tag_key"`
	Name       string    `gorm:"column:name;type:text;not null;default:''"`
	CreatedAt  time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (Language) TableName() string { return "polyglot.languages" }

// Namespace maps polyglot.namespaces.
type Namespace struct {
	NamespaceID int64  `gorm:"column:namespace_id;primaryKey;autoIncrement"`
	ProjectID   int64  `gorm:"column:project_id;type:bigint;not null;uniqueIndex:namespaces_project_name_key"`
	Name        string `gorm:"column:name;type:text;not null;uniqueIndex:namespaces_project_name_key"`
}

func (Namespace) TableName() string { return "polyglot.namespaces" }

// Key maps polyglot.keys. The (project, namespace, name) uniqueness for keys
// without a namespace is enforced by a partial index in post_automigrate.sql.
type Key struct {
	KeyID       int64     `gorm:"column:key_id;primaryKey;autoIncrement"`
	ProjectID   int64     `gorm:"column:project_id;type:bigint;not null;index"`
	NamespaceID *int64    `gorm:"column:namespace_id;type:bigint"`
	Name        string    `gorm:"column:name;type:text;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (Key) TableName() string { return "polyglot.keys" }

// KeyComment maps polyglot.key_comments.
type KeyComment struct {
	KeyCommentID int64     `gorm:"column:key_comment_id;primaryKey;autoIncrement"`
	KeyID        int64     `gorm:"column:key_id;type:bigint;not null;index"`
	AuthorID     *int64    `gorm:"column:author_id;type:bigint"`
	Text         string    `gorm:"column:text;type:text;not null"`
	FromImport   bool      `gorm:"column:from_import;type:boolean;not null;default:false"`
	CreatedAt    time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (KeyComment) TableName() string { return "polyglot.key_comments" }

// KeyCodeReference maps polyglot.key_code_references.
type KeyCodeReference struct {
	KeyCodeReferenceID int64  `gorm:"column:key_code_reference_id;primaryKey;autoIncrement"`
	KeyID              int64  `gorm:"column:key_id;type:bigint;not null;index"`
	Path               string `gorm:"column:path;type:text;not null"`
	Line               *int   `gorm:"column:line;type:integer"`
	FromImport         bool   `gorm:"column:from_import;type:boolean;not null;default:false"`
}

func (KeyCodeReference) TableName() string { return "polyglot.key_code_references" }

// Translation maps polyglot.translations.
type Translation struct {
	TranslationID int64     `gorm:"column:translation_id;primaryKey;autoIncrement"`
	KeyID         int64     `gorm:"column:key_id;type:bigint;not null;uniqueIndex:translations_key_language_key"`
	LanguageID    int64     `gorm:"column:language_id;type:bigint;not null;uniqueIndex:translations_key_language_key"`
	Text          string    `gorm:"column:text;type:text;not null;default:''"`
	State         string    `gorm:"column:state;type:text;not null;default:TRANSLATED"`
	Auto          bool      `gorm:"column:auto;type:boolean;not null;default:false"`
	MTProvider    *string   `gorm:"column:mt_provider;type:text"`
	UpdatedAt     time.Time `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (Translation) TableName() string { return "polyglot.translations" }

// Import maps polyglot.imports. One import session exists per project and author.
type Import struct {
	ImportID   int64     `gorm:"column:import_id;primaryKey;autoIncrement"`
	ImportUUID string    `gorm:"column:import_uuid;type:uuid;not null;unique"`
	ProjectID  int64     `gorm:"column:project_id;type:bigint;not null;uniqueIndex:imports_project_author_key"`
	AuthorID   int64     `gorm:"column:author_id;type:bigint;not null;uniqueIndex:imports_project_author_key"`
	CreatedAt  time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (Import) TableName() string { return "polyglot.imports" }

// ImportFile maps polyglot.import_files.
type ImportFile struct {
	ImportFileID int64  `gorm:"column:import_file_id;primaryKey;autoIncrement"`
	ImportID     int64  `gorm:"column:import_id;type:bigint;not null;index"`
	Name         string `gorm:"column:name;type:text;not null"`
	Namespace    string `gorm:"column:namespace;type:text;not null;default:''"`
	Format       string `gorm:"column:format;type:text;not null"`
	Position     int    `gorm:"column:position;type:integer;not null"`
}

func (ImportFile) TableName() string { return "polyglot.import_files" }

// ImportFileIssue maps polyglot.import_file_issues.
type ImportFileIssue struct {
	ImportFileIssueID int64           `gorm:"column:import_file_issue_id;primaryKey;autoIncrement"`
	ImportFileID      int64           `gorm:"column:import_file_id;type:bigint;not null;index"`
	Type              string          `gorm:"column:type;type:text;not null"`
	Params            json.RawMessage `gorm:"column:params;type:jsonb"`
}

func (ImportFileIssue) TableName() string { return "polyglot.import_file_issues" }

// ImportLanguage maps polyglot.import_languages.
type ImportLanguage struct {
	ImportLanguageID   int64  `gorm:"column:import_language_id;primaryKey;autoIncrement"`
	ImportFileID       int64  `gorm:"column:import_file_id;type:bigint;not null;index"`
	Name               string `gorm:"column:name;type:text;not null"`
	ExistingLanguageID *int64 `gorm:"column:existing_language_id;type:bigint"`
}

func (ImportLanguage) TableName() string { return "polyglot.import_languages" }

// ImportKey maps polyglot.import_keys.
type ImportKey struct {
	ImportKeyID  int64  `gorm:"column:import_key_id;primaryKey;autoIncrement"`
	ImportFileID int64  `gorm:"column:import_file_id;type:bigint;not null;index"`
	Name         string `gorm:"column:name;type:text;not null"`
	Position     int    `gorm:"column:position;type:integer;not null"`
}

func (ImportKey) TableName() string { return "polyglot.import_keys" }

// ImportKeyMeta maps polyglot.import_key_metas.
type ImportKeyMeta struct {
	ImportKeyMetaID int64  `gorm:"column:import_key_meta_id;primaryKey;autoIncrement"`
	ImportKeyID     int64  `gorm:"column:import_key_id;type:bigint;not null;index"`
	Kind            string `gorm:"column:kind;type:text;not null"`
	Text            string `gorm:"column:text;type:text;not null"`
	Line            *int   `gorm:"column:line;type:integer"`
}

func (ImportKeyMeta) TableName() string { return "polyglot.import_key_metas" }

// ImportTranslation maps polyglot.import_translations.
type ImportTranslation struct {
	ImportTranslationID int64  `gorm:"column:import_translation_id;primaryKey;autoIncrement"`
	ImportKeyID         int64  `gorm:"column:import_key_id;type:bigint;not null;index"`
	ImportLanguageID    int64  `gorm:"column:import_language_id;type:bigint;not null;index"`
	Text                string `gorm:"column:text;type:text;not null;default:''"`
	ConflictID          *int64 `gorm:"column:conflict_id;type:bigint"`
	Resolution          string `gorm:"column:resolution;type:text;not null;default:UNRESOLVED"`
}

func (ImportTranslation) TableName() string { return "polyglot.import_translations" }

// BatchJob maps polyglot.batch_jobs.
type BatchJob struct {
	BatchJobID   int64           `gorm:"column:batch_job_id;primaryKey;autoIncrement"`
	BatchJobUUID string          `gorm:"column:batch_job_uuid;type:uuid;not null;unique"`
	ProjectID    int64           `gorm:"column:project_id;type:bigint;not null;index"`
	AuthorID     *int64          `gorm:"column:author_id;type:bigint"`
	Type         string          `gorm:"column:type;type:text;not null"`
	Status       string          `gorm:"column:status;type:text;not null;default:PENDING"`
	Targets      json.RawMessage `gorm:"column:targets;type:jsonb;not null"`
	Params       json.RawMessage `gorm:"column:params;type:jsonb"`
	TotalItems   int             `gorm:"column:total_items;type:integer;not null;default:0"`
	Progress     int64           `gorm:"column:progress;type:bigint;not null;default:0"`
	ChunkSize    int             `gorm:"column:chunk_size;type:integer;not null"`
	ErrorMessage *string         `gorm:"column:error_message;type:text"`
	CreatedAt    time.Time       `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	StartedAt    *time.Time      `gorm:"column:started_at;type:timestamptz"`
	FinishedAt   *time.Time      `gorm:"column:finished_at;type:timestamptz"`
}

func (BatchJob) TableName() string { return "polyglot.batch_jobs" }

// BatchJobChunkExecution maps polyglot.batch_job_chunk_executions.
type BatchJobChunkExecution struct {
	BatchJobID   int64      `gorm:"column:batch_job_id;type:bigint;primaryKey"`
	ChunkNumber  int        `gorm:"column:chunk_number;type:integer;primaryKey"`
	Status       string     `gorm:"column:status;type:text;not null"`
	Processed    int        `gorm:"column:processed;type:integer;not null;default:0"`
	ErrorMessage *string    `gorm:"column:error_message;type:text"`
	StartedAt    time.Time  `gorm:"column:started_at;type:timestamptz;not null"`
	FinishedAt   *time.Time `gorm:"column:finished_at;type:timestamptz"`
}

func (BatchJobChunkExecution) TableName() string { return "polyglot.batch_job_chunk_executions" }

func autoMigrateModels() []any {
	return []any{
		&Project{},
		&Language{},
		&Namespace{},
		&Key{},
		&KeyComment{},
		&KeyCodeReference{},
		&Translation{},
		&Import{},
		&ImportFile{},
		&ImportFileIssue{},
		&ImportLanguage{},
		&ImportKey{},
		&ImportKeyMeta{},
		&ImportTranslation{},
		&BatchJob{},
		&BatchJobChunkExecution{},
	}
}
