package dataimport

import (
	"encoding/json"
	"time"

	"horse.fit/polyglot/internal/db"
)

// ImportView is an import session with its files and languages.
type ImportView struct {
	ID        int64          `json:"id"`
	UUID      string         `json:"uuid"`
	ProjectID int64          `json:"projectId"`
	AuthorID  int64          `json:"authorId"`
	CreatedAt time.Time      `json:"createdAt"`
	Files     []FileView     `json:"files"`
	Languages []LanguageView `json:"languages"`
}

type FileView struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	Namespace string  `json:"namespace,omitempty"`
	Format    string  `json:"format"`
	Position  int     `json:"position"`
	Issues    []Issue `json:"issues,omitempty"`
}

type LanguageView struct {
	ID                  int64  `json:"id"`
	ImportID            int64  `json:"importId"`
	FileID              int64  `json:"fileId"`
	FileName            string `json:"fileName"`
	Namespace           string `json:"namespace,omitempty"`
	Name                string `json:"name"`
	ExistingLanguageID  *int64 `json:"existingLanguageId,omitempty"`
	ExistingLanguageTag string `json:"existingLanguageTag,omitempty"`
	TotalCount          int    `json:"totalCount"`
	ConflictCount       int    `json:"conflictCount"`
	ResolvedCount       int    `json:"resolvedCount"`
}

type TranslationView struct {
	ID           int64   `json:"id"`
	ImportID     int64   `json:"importId"`
	LanguageID   int64   `json:"languageId"`
	KeyName      string  `json:"keyName"`
	Namespace    string  `json:"namespace,omitempty"`
	Text         string  `json:"text"`
	ConflictID   *int64  `json:"conflictId,omitempty"`
	ConflictText *string `json:"conflictText,omitempty"`
	Resolution   string  `json:"resolution"`
}

// Resolved reports whether the row can be imported without a force mode.
func (t TranslationView) Resolved() bool {
	return t.ConflictID == nil || t.Resolution != db.ResolutionUnresolved
}

// ImportResult summarizes one commit.
type ImportResult struct {
	ImportedFiles       []string     `json:"importedFiles"`
	FailedFiles         []FailedFile `json:"failedFiles,omitempty"`
	TranslationsWritten int          `json:"translationsWritten"`
	TranslationsKept    int          `json:"translationsKept"`
	ImportDeleted       bool         `json:"importDeleted"`
}

type FailedFile struct {
	Name  string `json:"name"`
	Error string `json:"error"`
}

func languageViewFromSummary(importID int64, row db.ImportLanguageSummary) LanguageView {
	view := LanguageView{
		ID:                 row.ImportLanguageID,
		ImportID:           importID,
		FileID:             row.ImportFileID,
		FileName:           row.FileName,
		Namespace:          row.Namespace,
		Name:               row.Name,
		ExistingLanguageID: row.ExistingLanguageID,
		TotalCount:         row.TotalCount,
		ConflictCount:      row.ConflictCount,
		ResolvedCount:      row.ResolvedCount,
	}
	if row.ExistingTag != nil {
		view.ExistingLanguageTag = *row.ExistingTag
	}
	return view
}

func translationViewFromRow(row db.ImportTranslationRow) TranslationView {
	return TranslationView{
		ID:           row.ImportTranslationID,
		ImportID:     row.ImportID,
		LanguageID:   row.ImportLanguageID,
		KeyName:      row.KeyName,
		Namespace:    row.Namespace,
		Text:         row.Text,
		ConflictID:   row.ConflictID,
		ConflictText: row.ConflictText,
		Resolution:   row.Resolution,
	}
}

func issueFromRow(row db.ImportFileIssue) Issue {
	issue := Issue{Type: row.Type}
	if len(row.Params) > 0 {
		_ = json.Unmarshal(row.Params, &issue.Params)
	}
	return issue
}

func issueRow(fileID int64, issue Issue) db.ImportFileIssue {
	row := db.ImportFileIssue{ImportFileID: fileID, Type: issue.Type}
	if len(issue.Params) > 0 {
		if encoded, err := json.Marshal(issue.Params); err == nil {
			row.Params = encoded
		}
	}
	return row
}
