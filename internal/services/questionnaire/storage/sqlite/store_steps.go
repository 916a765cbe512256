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

// CreateStep allocates a new step id, stores its localized text under lang,
// and associates every submitted child field. An unresolved child aborts the
// whole creation.
func (s *Store) CreateStep(ctx context.Context, in domain.StepInput, lang string) (storage.StepRecord, error) {
	if strings.TrimSpace(in.ContextID) == "" {
		return storage.StepRecord{}, fmt.Errorf("context id is required")
	}
	if strings.TrimSpace(lang) == "" {
		return storage.StepRecord{}, fmt.Errorf("language is required")
	}

	stepID, err := s.newID()
	if err != nil {
		return storage.StepRecord{}, fmt.Errorf("allocate step id: %w", err)
	}
	now := s.now()

	var record storage.StepRecord
	err = s.withTx(ctx, "create step", func(tx *sql.Tx) error {
		loaded, err := createStepExec(ctx, tx, stepID, in, lang, now)
		if err != nil {
			return err
		}
		record = loaded
		return nil
	})
	if err != nil {
		return storage.StepRecord{}, err
	}
	return record, nil
}

// GetStep returns one step by id.
func (s *Store) GetStep(ctx context.Context, stepID string) (storage.StepRecord, error) {
	if strings.TrimSpace(stepID) == "" {
		return storage.StepRecord{}, fmt.Errorf("step id is required")
	}

	var record storage.StepRecord
	err := s.withTx(ctx, "get step", func(tx *sql.Tx) error {
		loaded, err := readStepExec(ctx, tx, stepID)
		if err != nil {
			return err
		}
		record = loaded
		return nil
	})
	if err != nil {
		return storage.StepRecord{}, err
	}
	return record, nil
}

// UpdateStep merges the submitted localized text onto the stored step and
// rewrites its child associations from the submitted list.
func (s *Store) UpdateStep(ctx context.Context, stepID string, in domain.StepInput, lang string) (storage.StepRecord, error) {
	if strings.TrimSpace(stepID) == "" {
		return storage.StepRecord{}, fmt.Errorf("step id is required")
	}
	if strings.TrimSpace(lang) == "" {
		return storage.StepRecord{}, fmt.Errorf("language is required")
	}

	now := s.now()
	var record storage.StepRecord
	err := s.withTx(ctx, "update step", func(tx *sql.Tx) error {
		loaded, err := updateStepExec(ctx, tx, stepID, in, lang, now)
		if err != nil {
			return err
		}
		record = loaded
		return nil
	})
	if err != nil {
		return storage.StepRecord{}, err
	}
	return record, nil
}

// DeleteStep removes the step, its localized text, and its child
// associations. Referenced field entities are left untouched.
func (s *Store) DeleteStep(ctx context.Context, stepID string) error {
	if strings.TrimSpace(stepID) == "" {
		return fmt.Errorf("step id is required")
	}

	return s.withTx(ctx, "delete step", func(tx *sql.Tx) error {
		return deleteStepExec(ctx, tx, stepID)
	})
}

// StepsByContext returns all steps of one context in presentation order.
func (s *Store) StepsByContext(ctx context.Context, contextID string) ([]storage.StepRecord, error) {
	if strings.TrimSpace(contextID) == "" {
		return nil, fmt.Errorf("context id is required")
	}

	var records []storage.StepRecord
	err := s.withTx(ctx, "list steps", func(tx *sql.Tx) error {
		ids, err := stepIDsByContextExec(ctx, tx, contextID)
		if err != nil {
			return err
		}
		records = make([]storage.StepRecord, 0, len(ids))
		for _, stepID := range ids {
			record, err := readStepExec(ctx, tx, stepID)
			if err != nil {
				return err
			}
			records = append(records, record)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// ReconcileSteps makes the stored step set for contextID match the submitted
// list exactly. Each submitted step is stamped with contextID and upserted:
// a known id is updated in place, an empty or unknown id is created under a
// fresh id. Stored steps absent from the kept set are then deleted. The whole
// reconciliation is one transaction; any per-step failure aborts it.
func (s *Store) ReconcileSteps(ctx context.Context, contextID string, steps []domain.StepInput, lang string) ([]storage.StepRecord, error) {
	if strings.TrimSpace(contextID) == "" {
		return nil, fmt.Errorf("context id is required")
	}
	if strings.TrimSpace(lang) == "" {
		return nil, fmt.Errorf("language is required")
	}

	now := s.now()
	var records []storage.StepRecord
	err := s.withTx(ctx, "reconcile steps", func(tx *sql.Tx) error {
		kept := make(map[string]bool, len(steps))
		records = make([]storage.StepRecord, 0, len(steps))

		for _, in := range steps {
			in.ContextID = contextID

			var record storage.StepRecord
			exists := false
			if in.ID != "" {
				found, err := stepExistsExec(ctx, tx, in.ID)
				if err != nil {
					return err
				}
				exists = found
			}
			if exists {
				updated, err := updateStepExec(ctx, tx, in.ID, in, lang, now)
				if err != nil {
					return err
				}
				record = updated
			} else {
				freshID, err := s.newID()
				if err != nil {
					return fmt.Errorf("allocate step id: %w", err)
				}
				created, err := createStepExec(ctx, tx, freshID, in, lang, now)
				if err != nil {
					return err
				}
				record = created
			}
			kept[record.ID] = true
			records = append(records, record)
		}

		stored, err := stepIDsByContextExec(ctx, tx, contextID)
		if err != nil {
			return err
		}
		for _, stepID := range stored {
			if kept[stepID] {
				continue
			}
			if err := deleteStepExec(ctx, tx, stepID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

func createStepExec(ctx context.Context, tx *sql.Tx, stepID string, in domain.StepInput, lang string, now time.Time) (storage.StepRecord, error) {
	if _, err := tx.ExecContext(
		ctx,
		`INSERT INTO steps (id, context_id, presentation_order, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		stepID,
		in.ContextID,
		in.Order,
		toMillis(now),
		toMillis(now),
	); err != nil {
		return storage.StepRecord{}, fmt.Errorf("insert step: %w", err)
	}

	merged := domain.MergeText(domain.LocalizedText{}, in.Text)
	if err := upsertStepTextExec(ctx, tx, stepID, lang, merged); err != nil {
		return storage.StepRecord{}, err
	}
	if err := applyChildrenExec(ctx, tx, stepID, in.Children, lang, now); err != nil {
		return storage.StepRecord{}, err
	}
	return readStepExec(ctx, tx, stepID)
}

func updateStepExec(ctx context.Context, tx *sql.Tx, stepID string, in domain.StepInput, lang string, now time.Time) (storage.StepRecord, error) {
	exists, err := stepExistsExec(ctx, tx, stepID)
	if err != nil {
		return storage.StepRecord{}, err
	}
	if !exists {
		return storage.StepRecord{}, storage.ErrStepNotFound
	}

	if in.ContextID != "" {
		if _, err := tx.ExecContext(
			ctx,
			`UPDATE steps SET context_id = ?, presentation_order = ?, updated_at = ? WHERE id = ?`,
			in.ContextID,
			in.Order,
			toMillis(now),
			stepID,
		); err != nil {
			return storage.StepRecord{}, fmt.Errorf("update step %s: %w", stepID, err)
		}
	} else {
		if _, err := tx.ExecContext(
			ctx,
			`UPDATE steps SET presentation_order = ?, updated_at = ? WHERE id = ?`,
			in.Order,
			toMillis(now),
			stepID,
		); err != nil {
			return storage.StepRecord{}, fmt.Errorf("update step %s: %w", stepID, err)
		}
	}

	existing, err := readStepTextExec(ctx, tx, stepID, lang)
	if err != nil {
		return storage.StepRecord{}, err
	}
	merged := domain.MergeText(existing, in.Text)
	if err := upsertStepTextExec(ctx, tx, stepID, lang, merged); err != nil {
		return storage.StepRecord{}, err
	}
	if err := applyChildrenExec(ctx, tx, stepID, in.Children, lang, now); err != nil {
		return storage.StepRecord{}, err
	}
	return readStepExec(ctx, tx, stepID)
}

// applyChildrenExec rewrites the ordered child associations of one step.
// Every submitted child must resolve to a stored field; its attributes are
// delegated to the field update path before the association is recorded.
func applyChildrenExec(ctx context.Context, tx *sql.Tx, stepID string, children []domain.ChildField, lang string, now time.Time) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM step_fields WHERE step_id = ?`, stepID); err != nil {
		return fmt.Errorf("clear step fields %s: %w", stepID, err)
	}

	for position, child := range children {
		exists, err := fieldExistsExec(ctx, tx, child.ID)
		if err != nil {
			return err
		}
		if !exists {
			return storage.ErrFieldNotFound
		}
		if err := updateFieldExec(ctx, tx, child.ID, child.Field, lang, now); err != nil {
			return err
		}
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO step_fields (step_id, field_id, position) VALUES (?, ?, ?)`,
			stepID,
			child.ID,
			position,
		); err != nil {
			return fmt.Errorf("associate field %s with step %s: %w", child.ID, stepID, err)
		}
	}
	return nil
}

func deleteStepExec(ctx context.Context, tx *sql.Tx, stepID string) error {
	exists, err := stepExistsExec(ctx, tx, stepID)
	if err != nil {
		return err
	}
	if !exists {
		return storage.ErrStepNotFound
	}

	// Associations and texts go with the step; field entities stay.
	if _, err := tx.ExecContext(ctx, `DELETE FROM step_fields WHERE step_id = ?`, stepID); err != nil {
		return fmt.Errorf("delete step fields %s: %w", stepID, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM step_texts WHERE step_id = ?`, stepID); err != nil {
		return fmt.Errorf("delete step texts %s: %w", stepID, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM steps WHERE id = ?`, stepID); err != nil {
		return fmt.Errorf("delete step %s: %w", stepID, err)
	}
	return nil
}

func stepExistsExec(ctx context.Context, tx *sql.Tx, stepID string) (bool, error) {
	var found int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM steps WHERE id = ?`, stepID).Scan(&found)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("resolve step %s: %w", stepID, err)
	}
	return true, nil
}

func stepIDsByContextExec(ctx context.Context, tx *sql.Tx, contextID string) ([]string, error) {
	rows, err := tx.QueryContext(
		ctx,
		`SELECT id FROM steps WHERE context_id = ? ORDER BY presentation_order ASC, created_at ASC, id ASC`,
		contextID,
	)
	if err != nil {
		return nil, fmt.Errorf("list steps for context %s: %w", contextID, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var stepID string
		if err := rows.Scan(&stepID); err != nil {
			return nil, fmt.Errorf("scan step id: %w", err)
		}
		ids = append(ids, stepID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list steps for context %s: %w", contextID, err)
	}
	return ids, nil
}

func readStepTextExec(ctx context.Context, tx *sql.Tx, stepID, lang string) (domain.LocalizedText, error) {
	var text domain.LocalizedText
	err := tx.QueryRowContext(
		ctx,
		`SELECT label, description, hint FROM step_texts WHERE step_id = ? AND lang = ?`,
		stepID,
		lang,
	).Scan(&text.Label, &text.Description, &text.Hint)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.LocalizedText{}, nil
		}
		return domain.LocalizedText{}, fmt.Errorf("read step text %s: %w", stepID, err)
	}
	return text, nil
}

func upsertStepTextExec(ctx context.Context, tx *sql.Tx, stepID, lang string, text domain.LocalizedText) error {
	if _, err := tx.ExecContext(
		ctx,
		`INSERT INTO step_texts (step_id, lang, label, description, hint)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (step_id, lang) DO UPDATE SET
		   label = excluded.label,
		   description = excluded.description,
		   hint = excluded.hint`,
		stepID,
		lang,
		text.Label,
		text.Description,
		text.Hint,
	); err != nil {
		return fmt.Errorf("upsert step text %s: %w", stepID, err)
	}
	return nil
}

func readStepExec(ctx context.Context, tx *sql.Tx, stepID string) (storage.StepRecord, error) {
	var record storage.StepRecord
	var createdAt, updatedAt int64
	err := tx.QueryRowContext(
		ctx,
		`SELECT id, context_id, presentation_order, created_at, updated_at FROM steps WHERE id = ?`,
		stepID,
	).Scan(&record.ID, &record.ContextID, &record.Order, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.StepRecord{}, storage.ErrStepNotFound
		}
		return storage.StepRecord{}, fmt.Errorf("get step %s: %w", stepID, err)
	}
	record.CreatedAt = fromMillis(createdAt)
	record.UpdatedAt = fromMillis(updatedAt)

	texts, err := readStepTextsExec(ctx, tx, stepID)
	if err != nil {
		return storage.StepRecord{}, err
	}
	record.Texts = texts

	children, err := readStepChildrenExec(ctx, tx, stepID)
	if err != nil {
		return storage.StepRecord{}, err
	}
	record.Children = children
	return record, nil
}

func readStepTextsExec(ctx context.Context, tx *sql.Tx, stepID string) (domain.LocalizedStrings, error) {
	rows, err := tx.QueryContext(
		ctx,
		`SELECT lang, label, description, hint FROM step_texts WHERE step_id = ?`,
		stepID,
	)
	if err != nil {
		return nil, fmt.Errorf("read step texts %s: %w", stepID, err)
	}
	defer rows.Close()

	texts := domain.LocalizedStrings{}
	for rows.Next() {
		var lang string
		var text domain.LocalizedText
		if err := rows.Scan(&lang, &text.Label, &text.Description, &text.Hint); err != nil {
			return nil, fmt.Errorf("scan step text %s: %w", stepID, err)
		}
		texts[lang] = text
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read step texts %s: %w", stepID, err)
	}
	return texts, nil
}

func readStepChildrenExec(ctx context.Context, tx *sql.Tx, stepID string) ([]string, error) {
	rows, err := tx.QueryContext(
		ctx,
		`SELECT field_id FROM step_fields WHERE step_id = ? ORDER BY position ASC`,
		stepID,
	)
	if err != nil {
		return nil, fmt.Errorf("read step children %s: %w", stepID, err)
	}
	defer rows.Close()

	var children []string
	for rows.Next() {
		var fieldID string
		if err := rows.Scan(&fieldID); err != nil {
			return nil, fmt.Errorf("scan step child %s: %w", stepID, err)
		}
		children = append(children, fieldID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read step children %s: %w", stepID, err)
	}
	return children, nil
}
