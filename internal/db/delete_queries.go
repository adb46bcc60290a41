package db

import (
	"context"
	"fmt"
)

// DeleteKeysResult reports rows removed by one DeleteKeys call.
type DeleteKeysResult struct {
	Keys         int64
	Translations int64
	Comments     int64
}

// DeleteKeys removes keys of one project together with their translations and
// metadata in a single transaction. Staged import rows that pointed at a removed
// translation lose their conflict reference.
func (p *Pool) DeleteKeys(ctx context.Context, projectID int64, keyIDs []int64) (DeleteKeysResult, error) {
	if len(keyIDs) == 0 {
		return DeleteKeysResult{}, nil
	}

	tx, err := p.BeginTx(ctx, TxOptions{})
	if err != nil {
		return DeleteKeysResult{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	const ownedKeysQuery = `
SELECT key_id
FROM polyglot.keys
WHERE project_id = ?
  AND key_id IN ?
`
	rows, err := tx.Query(ctx, ownedKeysQuery, projectID, keyIDs)
	if err != nil {
		return DeleteKeysResult{}, fmt.Errorf("query project keys: %w", err)
	}
	owned := make([]int64, 0, len(keyIDs))
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return DeleteKeysResult{}, fmt.Errorf("scan project key: %w", err)
		}
		owned = append(owned, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return DeleteKeysResult{}, fmt.Errorf("iterate project keys: %w", err)
	}
	rows.Close()

	if len(owned) == 0 {
		return DeleteKeysResult{}, nil
	}

	var result DeleteKeysResult

	const detachConflictsQuery = `
UPDATE polyglot.import_translations
SET conflict_id = NULL,
	resolution = 'UNRESOLVED'
WHERE conflict_id IN (
	SELECT translation_id FROM polyglot.translations WHERE key_id IN ?
)
`
	if _, err := tx.Exec(ctx, detachConflictsQuery, owned); err != nil {
		return DeleteKeysResult{}, fmt.Errorf("detach import conflicts: %w", err)
	}

	if tag, err := tx.Exec(ctx, `DELETE FROM polyglot.translations WHERE key_id IN ?`, owned); err != nil {
		return DeleteKeysResult{}, fmt.Errorf("delete translations: %w", err)
	} else {
		result.Translations = tag.RowsAffected()
	}

	if tag, err := tx.Exec(ctx, `DELETE FROM polyglot.key_comments WHERE key_id IN ?`, owned); err != nil {
		return DeleteKeysResult{}, fmt.Errorf("delete key comments: %w", err)
	} else {
		result.Comments = tag.RowsAffected()
	}

	if _, err := tx.Exec(ctx, `DELETE FROM polyglot.key_code_references WHERE key_id IN ?`, owned); err != nil {
		return DeleteKeysResult{}, fmt.Errorf("delete key code references: %w", err)
	}

	if tag, err := tx.Exec(ctx, `DELETE FROM polyglot.keys WHERE key_id IN ?`, owned); err != nil {
		return DeleteKeysResult{}, fmt.Errorf("delete keys: %w", err)
	} else {
		result.Keys = tag.RowsAffected()
	}

	if err := tx.Commit(ctx); err != nil {
		return DeleteKeysResult{}, fmt.Errorf("commit transaction: %w", err)
	}

	return result, nil
}

// CountProjectKeys counts how many of keyIDs belong to the project.
func (p *Pool) CountProjectKeys(ctx context.Context, projectID int64, keyIDs []int64) (int64, error) {
	if len(keyIDs) == 0 {
		return 0, nil
	}
	const q = `
SELECT COUNT(*)
FROM polyglot.keys
WHERE project_id = ?
  AND key_id IN ?
`
	var count int64
	if err := p.QueryRow(ctx, q, projectID, keyIDs).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
