// Package storage defines persistence contracts for questionnaire state.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/alranel/GlobaLeaks/internal/services/questionnaire/domain"
)

var (
	// ErrStepNotFound indicates a requested step record is missing.
	ErrStepNotFound = errors.New("step not found")
	// ErrFieldNotFound indicates a referenced field record is missing.
	ErrFieldNotFound = errors.New("field not found")
)

// StepRecord stores one questionnaire step and its ordered field references.
type StepRecord struct {
	ID        string
	ContextID string
	Order     int
	Texts     domain.LocalizedStrings
	Children  []string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// FieldRecord stores one field entity owned by the field subsystem.
type FieldRecord struct {
	ID        string
	Type      string
	Texts     domain.LocalizedStrings
	CreatedAt time.Time
	UpdatedAt time.Time
}

// StepStore persists questionnaire step records.
//
// Every mutating call runs as one atomic unit: a failure inside it leaves
// stored state unchanged.
type StepStore interface {
	// CreateStep allocates a new step id, merges the submitted localized
	// text under lang, and associates every submitted child field. It fails
	// with ErrFieldNotFound when a child id does not resolve.
	CreateStep(ctx context.Context, in domain.StepInput, lang string) (StepRecord, error)
	// GetStep returns one step by id or ErrStepNotFound.
	GetStep(ctx context.Context, id string) (StepRecord, error)
	// UpdateStep merges localized text onto the stored record (other
	// languages preserved) and rewrites the child associations from the
	// submitted list.
	UpdateStep(ctx context.Context, id string, in domain.StepInput, lang string) (StepRecord, error)
	// DeleteStep removes the step and its child associations, never the
	// referenced field entities.
	DeleteStep(ctx context.Context, id string) error
	// StepsByContext returns all steps of one context in presentation order.
	StepsByContext(ctx context.Context, contextID string) ([]StepRecord, error)
	// ReconcileSteps makes the stored step set for contextID match the
	// submitted list exactly: each submitted step is updated in place when
	// its id is known and created under a fresh id otherwise, then every
	// stored step absent from the submitted set is deleted. An empty list
	// tears down all steps of the context.
	ReconcileSteps(ctx context.Context, contextID string, steps []domain.StepInput, lang string) ([]StepRecord, error)
}

// FieldStore persists field entities on behalf of the field subsystem.
type FieldStore interface {
	CreateField(ctx context.Context, in domain.FieldInput, lang string) (FieldRecord, error)
	// GetField returns one field by id or ErrFieldNotFound.
	GetField(ctx context.Context, id string) (FieldRecord, error)
	UpdateField(ctx context.Context, id string, in domain.FieldInput, lang string) (FieldRecord, error)
}
