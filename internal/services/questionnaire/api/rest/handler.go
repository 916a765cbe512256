// Package rest exposes the questionnaire admin HTTP surface.
//
// Authentication and request-schema validation are owned by the surrounding
// transport stack; handlers here assume an admin-scoped caller and decode
// already-vetted JSON payloads.
package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/alranel/GlobaLeaks/internal/platform/cache"
	"github.com/alranel/GlobaLeaks/internal/platform/i18n"
	"github.com/alranel/GlobaLeaks/internal/services/questionnaire/domain"
	"github.com/alranel/GlobaLeaks/internal/services/questionnaire/storage"
	"golang.org/x/text/language"
)

// resourceTagContexts is the invalidation tag for cached context views.
const resourceTagContexts = "contexts"

// StepService is the application façade the handler delegates to.
type StepService interface {
	CreateStep(ctx context.Context, in domain.StepInput, lang string) (storage.StepRecord, error)
	GetStep(ctx context.Context, id string) (storage.StepRecord, error)
	UpdateStep(ctx context.Context, id string, in domain.StepInput, lang string) (storage.StepRecord, error)
	DeleteStep(ctx context.Context, id string) error
	ListSteps(ctx context.Context, contextID string) ([]storage.StepRecord, error)
	ReconcileSteps(ctx context.Context, contextID string, steps []domain.StepInput, lang string) ([]storage.StepRecord, error)
}

// Handler routes questionnaire admin requests.
type Handler struct {
	service     StepService
	invalidator cache.Invalidator
	mux         *http.ServeMux
}

// NewHandler creates the admin step handler.
func NewHandler(service StepService, invalidator cache.Invalidator) *Handler {
	if invalidator == nil {
		invalidator = cache.Noop{}
	}
	h := &Handler{
		service:     service,
		invalidator: invalidator,
		mux:         http.NewServeMux(),
	}
	h.mux.HandleFunc("POST /admin/steps", h.handleCreateStep)
	h.mux.HandleFunc("GET /admin/steps/{id}", h.handleGetStep)
	h.mux.HandleFunc("PUT /admin/steps/{id}", h.handleUpdateStep)
	h.mux.HandleFunc("DELETE /admin/steps/{id}", h.handleDeleteStep)
	h.mux.HandleFunc("GET /admin/contexts/{id}/steps", h.handleListSteps)
	h.mux.HandleFunc("PUT /admin/contexts/{id}/steps", h.handleReconcileSteps)
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// stepDescriptor is the submitted step payload.
type stepDescriptor struct {
	ID                string            `json:"id"`
	ContextID         string            `json:"context_id"`
	PresentationOrder int               `json:"presentation_order"`
	Label             *string           `json:"label"`
	Description       *string           `json:"description"`
	Hint              *string           `json:"hint"`
	Children          []childDescriptor `json:"children"`
}

// childDescriptor is one submitted field reference with its delegated
// attributes.
type childDescriptor struct {
	ID          string  `json:"id"`
	Type        string  `json:"type"`
	Label       *string `json:"label"`
	Description *string `json:"description"`
	Hint        *string `json:"hint"`
}

// stepView is the language-localized serialization of one stored step.
type stepView struct {
	ID                string     `json:"id"`
	ContextID         string     `json:"context_id"`
	PresentationOrder int        `json:"presentation_order"`
	Label             string     `json:"label"`
	Description       string     `json:"description"`
	Hint              string     `json:"hint"`
	Children          []childRef `json:"children"`
}

type childRef struct {
	ID string `json:"id"`
}

func (d stepDescriptor) toInput() domain.StepInput {
	in := domain.StepInput{
		ID:        strings.TrimSpace(d.ID),
		ContextID: strings.TrimSpace(d.ContextID),
		Order:     d.PresentationOrder,
		Text: domain.TextInput{
			Label:       d.Label,
			Description: d.Description,
			Hint:        d.Hint,
		},
	}
	for _, child := range d.Children {
		in.Children = append(in.Children, domain.ChildField{
			ID: strings.TrimSpace(child.ID),
			Field: domain.FieldInput{
				Type: child.Type,
				Text: domain.TextInput{
					Label:       child.Label,
					Description: child.Description,
					Hint:        child.Hint,
				},
			},
		})
	}
	return in
}

func stepToView(record storage.StepRecord, lang string) stepView {
	text := record.Texts.Localize(lang, i18n.DefaultLanguage)
	view := stepView{
		ID:                record.ID,
		ContextID:         record.ContextID,
		PresentationOrder: record.Order,
		Label:             text.Label,
		Description:       text.Description,
		Hint:              text.Hint,
		Children:          make([]childRef, 0, len(record.Children)),
	}
	for _, fieldID := range record.Children {
		view.Children = append(view.Children, childRef{ID: fieldID})
	}
	return view
}

// requestLanguage negotiates the request language from the lang query
// parameter, then the Accept-Language header, then the platform default.
func requestLanguage(r *http.Request) string {
	if value := strings.TrimSpace(r.URL.Query().Get("lang")); value != "" {
		if tag, ok := i18n.ParseTag(value); ok {
			return tag.String()
		}
	}
	if accept := strings.TrimSpace(r.Header.Get("Accept-Language")); accept != "" {
		if tags, _, err := language.ParseAcceptLanguage(accept); err == nil {
			return i18n.MatchTags(tags).String()
		}
	}
	return i18n.DefaultTag().String()
}

func (h *Handler) handleCreateStep(w http.ResponseWriter, r *http.Request) {
	lang := requestLanguage(r)

	var descriptor stepDescriptor
	if err := json.NewDecoder(r.Body).Decode(&descriptor); err != nil {
		writeError(w, fmt.Errorf("decode step descriptor: %w", err), http.StatusBadRequest)
		return
	}
	in := descriptor.toInput()
	if in.ContextID == "" {
		writeError(w, fmt.Errorf("context_id is required"), http.StatusBadRequest)
		return
	}

	record, err := h.service.CreateStep(r.Context(), in, lang)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	h.invalidate(r.Context())
	writeJSON(w, http.StatusCreated, stepToView(record, lang))
}

func (h *Handler) handleGetStep(w http.ResponseWriter, r *http.Request) {
	lang := requestLanguage(r)

	record, err := h.service.GetStep(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stepToView(record, lang))
}

func (h *Handler) handleUpdateStep(w http.ResponseWriter, r *http.Request) {
	lang := requestLanguage(r)

	var descriptor stepDescriptor
	if err := json.NewDecoder(r.Body).Decode(&descriptor); err != nil {
		writeError(w, fmt.Errorf("decode step descriptor: %w", err), http.StatusBadRequest)
		return
	}

	record, err := h.service.UpdateStep(r.Context(), r.PathValue("id"), descriptor.toInput(), lang)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	h.invalidate(r.Context())
	writeJSON(w, http.StatusAccepted, stepToView(record, lang))
}

func (h *Handler) handleDeleteStep(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteStep(r.Context(), r.PathValue("id")); err != nil {
		writeServiceError(w, err)
		return
	}

	h.invalidate(r.Context())
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) handleListSteps(w http.ResponseWriter, r *http.Request) {
	lang := requestLanguage(r)

	records, err := h.service.ListSteps(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stepsToViews(records, lang))
}

func (h *Handler) handleReconcileSteps(w http.ResponseWriter, r *http.Request) {
	lang := requestLanguage(r)

	var descriptors []stepDescriptor
	if err := json.NewDecoder(r.Body).Decode(&descriptors); err != nil {
		writeError(w, fmt.Errorf("decode step descriptors: %w", err), http.StatusBadRequest)
		return
	}
	steps := make([]domain.StepInput, 0, len(descriptors))
	for _, descriptor := range descriptors {
		steps = append(steps, descriptor.toInput())
	}

	records, err := h.service.ReconcileSteps(r.Context(), r.PathValue("id"), steps, lang)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	h.invalidate(r.Context())
	writeJSON(w, http.StatusOK, stepsToViews(records, lang))
}

func stepsToViews(records []storage.StepRecord, lang string) []stepView {
	views := make([]stepView, 0, len(records))
	for _, record := range records {
		views = append(views, stepToView(record, lang))
	}
	return views
}

// invalidate fires the best-effort cache notification after a successful
// mutation. A failed notification never fails the request.
func (h *Handler) invalidate(ctx context.Context) {
	if err := h.invalidator.Invalidate(context.WithoutCancel(ctx), resourceTagContexts); err != nil {
		log.Printf("invalidate %s cache: %v", resourceTagContexts, err)
	}
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrStepNotFound), errors.Is(err, storage.ErrFieldNotFound):
		writeError(w, err, http.StatusNotFound)
	default:
		var invalid *domain.InvalidInputError
		if errors.As(err, &invalid) {
			writeError(w, err, http.StatusBadRequest)
			return
		}
		log.Printf("questionnaire request failed: %v", err)
		writeError(w, fmt.Errorf("internal error"), http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, err error, status int) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("encode response: %v", err)
	}
}
