package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TranslationUpsert is one translation write keyed by (key, language).
type TranslationUpsert struct {
	KeyID      int64
	LanguageID int64
	Text       string
	State      string
	Auto       bool
	MTProvider *string
}

// BaseTexts holds base-language texts for a set of keys.
type BaseTexts struct {
	LanguageID  int64
	LanguageTag string
	Texts       map[int64]string
}

func (p *Pool) GetProject(ctx context.Context, projectID int64) (*Project, error) {
	var row Project
	err := p.gdb.WithContext(ctx).Where("project_id = ?", projectID).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoRows
		}
		return nil, fmt.Errorf("query project: %w", err)
	}
	return &row, nil
}

func (p *Pool) GetLanguage(ctx context.Context, languageID int64) (*Language, error) {
	var row Language
	err := p.gdb.WithContext(ctx).Where("language_id = ?", languageID).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoRows
		}
		return nil, fmt.Errorf("query language: %w", err)
	}
	return &row, nil
}

func (p *Pool) ListProjectLanguages(ctx context.Context, projectID int64) ([]Language, error) {
	rows := make([]Language, 0, 8)
	err := p.gdb.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("language_id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query project languages: %w", err)
	}
	return rows, nil
}

// ClearTranslations removes translations of keys in the given languages.
func (p *Pool) ClearTranslations(ctx context.Context, projectID int64, keyIDs, languageIDs []int64) (int64, error) {
	if len(keyIDs) == 0 || len(languageIDs) == 0 {
		return 0, nil
	}

	var affected int64
	err := p.Transaction(ctx, func(tx *Pool) error {
		owned := tx.gdb.Model(&Key{}).Select("key_id").Where("project_id = ? AND key_id IN ?", projectID, keyIDs)
		translations := tx.gdb.Model(&Translation{}).
			Select("translation_id").
			Where("key_id IN (?) AND language_id IN ?", owned, languageIDs)

		if err := tx.gdb.Model(&ImportTranslation{}).
			Where("conflict_id IN (?)", translations).
			Updates(map[string]any{"conflict_id": nil, "resolution": ResolutionUnresolved}).Error; err != nil {
			return fmt.Errorf("detach import conflicts: %w", err)
		}

		res := tx.gdb.Where("key_id IN (?) AND language_id IN ?", owned, languageIDs).Delete(&Translation{})
		if res.Error != nil {
			return fmt.Errorf("delete translations: %w", res.Error)
		}
		affected = res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, err
	}
	return affected, nil
}

// SetTranslationState updates the state of existing translations.
func (p *Pool) SetTranslationState(ctx context.Context, projectID int64, keyIDs, languageIDs []int64, state string, now time.Time) (int64, error) {
	if len(keyIDs) == 0 || len(languageIDs) == 0 {
		return 0, nil
	}

	var affected int64
	err := p.Transaction(ctx, func(tx *Pool) error {
		owned := tx.gdb.Model(&Key{}).Select("key_id").Where("project_id = ? AND key_id IN ?", projectID, keyIDs)
		res := tx.gdb.Model(&Translation{}).
			Where("key_id IN (?) AND language_id IN ?", owned, languageIDs).
			Updates(map[string]any{"state": state, "updated_at": now.UTC()})
		if res.Error != nil {
			return fmt.Errorf("update translation state: %w", res.Error)
		}
		affected = res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, err
	}
	return affected, nil
}

// ListBaseTexts loads the project's base-language texts for keyIDs.
func (p *Pool) ListBaseTexts(ctx context.Context, projectID int64, keyIDs []int64) (BaseTexts, error) {
	project, err := p.GetProject(ctx, projectID)
	if err != nil {
		return BaseTexts{}, err
	}
	if project.BaseLanguageID == nil {
		return BaseTexts{}, fmt.Errorf("project %d has no base language", projectID)
	}
	base, err := p.GetLanguage(ctx, *project.BaseLanguageID)
	if err != nil {
		return BaseTexts{}, fmt.Errorf("load base language: %w", err)
	}

	out := BaseTexts{
		LanguageID:  base.LanguageID,
		LanguageTag: base.Tag,
		Texts:       make(map[int64]string, len(keyIDs)),
	}
	if len(keyIDs) == 0 {
		return out, nil
	}

	var rows []Translation
	err = p.gdb.WithContext(ctx).
		Select("translations.*").
		Joins("JOIN polyglot.keys k ON k.key_id = translations.key_id AND k.project_id = ?", projectID).
		Where("translations.language_id = ? AND translations.key_id IN ?", base.LanguageID, keyIDs).
		Find(&rows).Error
	if err != nil {
		return BaseTexts{}, fmt.Errorf("query base texts: %w", err)
	}
	for _, row := range rows {
		out.Texts[row.KeyID] = row.Text
	}
	return out, nil
}

// UpsertTranslations writes translations, replacing text and state on (key, language) conflicts.
func (p *Pool) UpsertTranslations(ctx context.Context, rows []TranslationUpsert, now time.Time) error {
	if len(rows) == 0 {
		return nil
	}

	models := make([]Translation, 0, len(rows))
	for _, row := range rows {
		state := row.State
		if state == "" {
			state = TranslationStateTranslated
		}
		models = append(models, Translation{
			KeyID:      row.KeyID,
			LanguageID: row.LanguageID,
			Text:       row.Text,
			State:      state,
			Auto:       row.Auto,
			MTProvider: row.MTProvider,
			UpdatedAt:  now.UTC(),
		})
	}

	err := p.gdb.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key_id"}, {Name: "language_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"text", "state", "auto", "mt_provider", "updated_at"}),
	}).Create(&models).Error
	if err != nil {
		return fmt.Errorf("upsert translations: %w", err)
	}
	return nil
}
