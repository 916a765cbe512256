// Package app exposes the questionnaire step service and its server
// lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/alranel/GlobaLeaks/internal/services/questionnaire/domain"
	"github.com/alranel/GlobaLeaks/internal/services/questionnaire/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/alranel/GlobaLeaks/internal/services/questionnaire/app"

// Service is the transactional façade over questionnaire step storage.
//
// Each operation maps to exactly one atomic storage call. Domain errors
// (storage.ErrStepNotFound, storage.ErrFieldNotFound) propagate unmodified;
// any other failure inside the update or reconcile path is logged and
// re-signaled as a domain.InvalidInputError carrying the cause.
type Service struct {
	store  storage.StepStore
	tracer trace.Tracer
}

// NewService creates a step service backed by step storage.
func NewService(store storage.StepStore) *Service {
	return &Service{
		store:  store,
		tracer: otel.Tracer(tracerName),
	}
}

func (s *Service) ready() error {
	if s == nil || s.store == nil {
		return fmt.Errorf("step store is not configured")
	}
	return nil
}

func (s *Service) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if s.tracer == nil {
		s.tracer = otel.Tracer(tracerName)
	}
	return s.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func finishSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
	}
	span.End()
}

// isDomainError reports whether err is one of the enumerated error kinds
// that must reach the caller unmodified.
func isDomainError(err error) bool {
	return errors.Is(err, storage.ErrStepNotFound) || errors.Is(err, storage.ErrFieldNotFound)
}

// normalizeUpdateError implements the update-boundary policy: domain errors
// pass through, everything else becomes InvalidInputError.
func normalizeUpdateError(op string, err error) error {
	if err == nil || isDomainError(err) {
		return err
	}
	var invalid *domain.InvalidInputError
	if errors.As(err, &invalid) {
		return err
	}
	log.Printf("unable to %s: %v", op, err)
	return domain.InvalidInput(err)
}

// CreateStep creates one step inside one atomic unit of work.
func (s *Service) CreateStep(ctx context.Context, in domain.StepInput, lang string) (storage.StepRecord, error) {
	if err := s.ready(); err != nil {
		return storage.StepRecord{}, err
	}
	ctx, span := s.startSpan(ctx, "StepService.CreateStep",
		attribute.String("questionnaire.context_id", in.ContextID),
		attribute.String("questionnaire.language", lang),
	)
	record, err := s.store.CreateStep(ctx, in, lang)
	finishSpan(span, err)
	if err != nil {
		return storage.StepRecord{}, err
	}
	return record, nil
}

// GetStep returns one step by id.
func (s *Service) GetStep(ctx context.Context, stepID string) (storage.StepRecord, error) {
	if err := s.ready(); err != nil {
		return storage.StepRecord{}, err
	}
	if strings.TrimSpace(stepID) == "" {
		return storage.StepRecord{}, storage.ErrStepNotFound
	}
	ctx, span := s.startSpan(ctx, "StepService.GetStep",
		attribute.String("questionnaire.step_id", stepID),
	)
	record, err := s.store.GetStep(ctx, stepID)
	finishSpan(span, err)
	if err != nil {
		return storage.StepRecord{}, err
	}
	return record, nil
}

// UpdateStep updates one step inside one atomic unit of work.
func (s *Service) UpdateStep(ctx context.Context, stepID string, in domain.StepInput, lang string) (storage.StepRecord, error) {
	if err := s.ready(); err != nil {
		return storage.StepRecord{}, err
	}
	if strings.TrimSpace(stepID) == "" {
		return storage.StepRecord{}, storage.ErrStepNotFound
	}
	ctx, span := s.startSpan(ctx, "StepService.UpdateStep",
		attribute.String("questionnaire.step_id", stepID),
		attribute.String("questionnaire.language", lang),
	)
	record, err := s.store.UpdateStep(ctx, stepID, in, lang)
	err = normalizeUpdateError("update step", err)
	finishSpan(span, err)
	if err != nil {
		return storage.StepRecord{}, err
	}
	return record, nil
}

// DeleteStep deletes one step and its field associations.
func (s *Service) DeleteStep(ctx context.Context, stepID string) error {
	if err := s.ready(); err != nil {
		return err
	}
	if strings.TrimSpace(stepID) == "" {
		return storage.ErrStepNotFound
	}
	ctx, span := s.startSpan(ctx, "StepService.DeleteStep",
		attribute.String("questionnaire.step_id", stepID),
	)
	err := s.store.DeleteStep(ctx, stepID)
	finishSpan(span, err)
	return err
}

// ListSteps returns all steps of one context in presentation order.
func (s *Service) ListSteps(ctx context.Context, contextID string) ([]storage.StepRecord, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(contextID) == "" {
		return nil, fmt.Errorf("context id is required")
	}
	ctx, span := s.startSpan(ctx, "StepService.ListSteps",
		attribute.String("questionnaire.context_id", contextID),
	)
	records, err := s.store.StepsByContext(ctx, contextID)
	finishSpan(span, err)
	if err != nil {
		return nil, err
	}
	return records, nil
}

// ReconcileSteps synchronizes the stored step set of one context with the
// submitted list inside one atomic unit of work.
func (s *Service) ReconcileSteps(ctx context.Context, contextID string, steps []domain.StepInput, lang string) ([]storage.StepRecord, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(contextID) == "" {
		return nil, fmt.Errorf("context id is required")
	}
	ctx, span := s.startSpan(ctx, "StepService.ReconcileSteps",
		attribute.String("questionnaire.context_id", contextID),
		attribute.Int("questionnaire.submitted_steps", len(steps)),
	)
	records, err := s.store.ReconcileSteps(ctx, contextID, steps, lang)
	err = normalizeUpdateError("reconcile steps", err)
	finishSpan(span, err)
	if err != nil {
		return nil, err
	}
	return records, nil
}
