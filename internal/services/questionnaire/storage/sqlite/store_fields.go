package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alranel/GlobaLeaks/internal/services/questionnaire/domain"
	"github.com/alranel/GlobaLeaks/internal/services/questionnaire/storage"
)

// CreateField inserts one field entity with its localized text under lang.
func (s *Store) CreateField(ctx context.Context, in domain.FieldInput, lang string) (storage.FieldRecord, error) {
	if strings.TrimSpace(lang) == "" {
		return storage.FieldRecord{}, fmt.Errorf("language is required")
	}

	fieldID, err := s.newID()
	if err != nil {
		return storage.FieldRecord{}, fmt.Errorf("allocate field id: %w", err)
	}
	now := s.now()

	var record storage.FieldRecord
	err = s.withTx(ctx, "create field", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO fields (id, field_type, created_at, updated_at) VALUES (?, ?, ?, ?)`,
			fieldID,
			in.Type,
			toMillis(now),
			toMillis(now),
		); err != nil {
			return fmt.Errorf("insert field: %w", err)
		}
		merged := domain.MergeText(domain.LocalizedText{}, in.Text)
		if err := upsertFieldTextExec(ctx, tx, fieldID, lang, merged); err != nil {
			return err
		}
		loaded, err := readFieldExec(ctx, tx, fieldID)
		if err != nil {
			return err
		}
		record = loaded
		return nil
	})
	if err != nil {
		return storage.FieldRecord{}, err
	}
	return record, nil
}

// GetField returns one field by id.
func (s *Store) GetField(ctx context.Context, fieldID string) (storage.FieldRecord, error) {
	if strings.TrimSpace(fieldID) == "" {
		return storage.FieldRecord{}, fmt.Errorf("field id is required")
	}

	var record storage.FieldRecord
	err := s.withTx(ctx, "get field", func(tx *sql.Tx) error {
		loaded, err := readFieldExec(ctx, tx, fieldID)
		if err != nil {
			return err
		}
		record = loaded
		return nil
	})
	if err != nil {
		return storage.FieldRecord{}, err
	}
	return record, nil
}

// UpdateField merges localized text onto the stored field, preserving other
// languages, and updates its type when one is submitted.
func (s *Store) UpdateField(ctx context.Context, fieldID string, in domain.FieldInput, lang string) (storage.FieldRecord, error) {
	if strings.TrimSpace(fieldID) == "" {
		return storage.FieldRecord{}, fmt.Errorf("field id is required")
	}
	if strings.TrimSpace(lang) == "" {
		return storage.FieldRecord{}, fmt.Errorf("language is required")
	}

	now := s.now()
	var record storage.FieldRecord
	err := s.withTx(ctx, "update field", func(tx *sql.Tx) error {
		if err := updateFieldExec(ctx, tx, fieldID, in, lang, now); err != nil {
			return err
		}
		loaded, err := readFieldExec(ctx, tx, fieldID)
		if err != nil {
			return err
		}
		record = loaded
		return nil
	})
	if err != nil {
		return storage.FieldRecord{}, err
	}
	return record, nil
}

// fieldExistsExec reports whether a field row exists inside the transaction.
func fieldExistsExec(ctx context.Context, tx *sql.Tx, fieldID string) (bool, error) {
	var found int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM fields WHERE id = ?`, fieldID).Scan(&found)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("resolve field %s: %w", fieldID, err)
	}
	return true, nil
}

// updateFieldExec applies one field submission inside the transaction.
func updateFieldExec(ctx context.Context, tx *sql.Tx, fieldID string, in domain.FieldInput, lang string, now time.Time) error {
	exists, err := fieldExistsExec(ctx, tx, fieldID)
	if err != nil {
		return err
	}
	if !exists {
		return storage.ErrFieldNotFound
	}

	if in.Type != "" {
		if _, err := tx.ExecContext(
			ctx,
			`UPDATE fields SET field_type = ?, updated_at = ? WHERE id = ?`,
			in.Type,
			toMillis(now),
			fieldID,
		); err != nil {
			return fmt.Errorf("update field %s: %w", fieldID, err)
		}
	} else {
		if _, err := tx.ExecContext(
			ctx,
			`UPDATE fields SET updated_at = ? WHERE id = ?`,
			toMillis(now),
			fieldID,
		); err != nil {
			return fmt.Errorf("update field %s: %w", fieldID, err)
		}
	}

	existing, err := readFieldTextExec(ctx, tx, fieldID, lang)
	if err != nil {
		return err
	}
	merged := domain.MergeText(existing, in.Text)
	return upsertFieldTextExec(ctx, tx, fieldID, lang, merged)
}

func readFieldTextExec(ctx context.Context, tx *sql.Tx, fieldID, lang string) (domain.LocalizedText, error) {
	var text domain.LocalizedText
	err := tx.QueryRowContext(
		ctx,
		`SELECT label, description, hint FROM field_texts WHERE field_id = ? AND lang = ?`,
		fieldID,
		lang,
	).Scan(&text.Label, &text.Description, &text.Hint)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.LocalizedText{}, nil
		}
		return domain.LocalizedText{}, fmt.Errorf("read field text %s: %w", fieldID, err)
	}
	return text, nil
}

func upsertFieldTextExec(ctx context.Context, tx *sql.Tx, fieldID, lang string, text domain.LocalizedText) error {
	if _, err := tx.ExecContext(
		ctx,
		`INSERT INTO field_texts (field_id, lang, label, description, hint)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (field_id, lang) DO UPDATE SET
		   label = excluded.label,
		   description = excluded.description,
		   hint = excluded.hint`,
		fieldID,
		lang,
		text.Label,
		text.Description,
		text.Hint,
	); err != nil {
		return fmt.Errorf("upsert field text %s: %w", fieldID, err)
	}
	return nil
}

func readFieldExec(ctx context.Context, tx *sql.Tx, fieldID string) (storage.FieldRecord, error) {
	var record storage.FieldRecord
	var createdAt, updatedAt int64
	err := tx.QueryRowContext(
		ctx,
		`SELECT id, field_type, created_at, updated_at FROM fields WHERE id = ?`,
		fieldID,
	).Scan(&record.ID, &record.Type, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.FieldRecord{}, storage.ErrFieldNotFound
		}
		return storage.FieldRecord{}, fmt.Errorf("get field %s: %w", fieldID, err)
	}
	record.CreatedAt = fromMillis(createdAt)
	record.UpdatedAt = fromMillis(updatedAt)

	rows, err := tx.QueryContext(
		ctx,
		`SELECT lang, label, description, hint FROM field_texts WHERE field_id = ?`,
		fieldID,
	)
	if err != nil {
		return storage.FieldRecord{}, fmt.Errorf("read field texts %s: %w", fieldID, err)
	}
	defer rows.Close()

	texts := domain.LocalizedStrings{}
	for rows.Next() {
		var lang string
		var text domain.LocalizedText
		if err := rows.Scan(&lang, &text.Label, &text.Description, &text.Hint); err != nil {
			return storage.FieldRecord{}, fmt.Errorf("scan field text %s: %w", fieldID, err)
		}
		texts[lang] = text
	}
	if err := rows.Err(); err != nil {
		return storage.FieldRecord{}, fmt.Errorf("read field texts %s: %w", fieldID, err)
	}
	record.Texts = texts
	return record, nil
}
