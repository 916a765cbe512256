// Package domain defines questionnaire step and field value types shared by
// storage and service layers.
package domain

// StepInput is a submitted step descriptor.
//
// ID is empty when the client asks for a new step; reconciliation keys its
// update-or-create decision on it. ContextID is always stamped server-side
// from the owning request, never trusted from the descriptor itself.
type StepInput struct {
	ID        string
	ContextID string
	Order     int
	Text      TextInput
	Children  []ChildField
}

// ChildField is one ordered field reference submitted under a step.
//
// The field entity itself is owned by the field subsystem; the step only
// holds the association. Field attributes ride along so the submission can be
// delegated to the field update path.
type ChildField struct {
	ID    string
	Field FieldInput
}

// FieldInput describes a submitted field payload delegated to the field
// subsystem. Type is opaque here; field-type semantics live elsewhere.
type FieldInput struct {
	Type string
	Text TextInput
}
