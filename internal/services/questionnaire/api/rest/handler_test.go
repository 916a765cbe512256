package rest_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alranel/GlobaLeaks/internal/services/questionnaire/api/rest"
	"github.com/alranel/GlobaLeaks/internal/services/questionnaire/app"
	"github.com/alranel/GlobaLeaks/internal/services/questionnaire/domain"
	"github.com/alranel/GlobaLeaks/internal/services/questionnaire/storage/sqlite"
)

type recordingInvalidator struct {
	tags []string
}

func (r *recordingInvalidator) Invalidate(_ context.Context, tag string) error {
	r.tags = append(r.tags, tag)
	return nil
}

type testEnv struct {
	handler     *rest.Handler
	store       *sqlite.Store
	invalidator *recordingInvalidator
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "questionnaire.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	invalidator := &recordingInvalidator{}
	return testEnv{
		handler:     rest.NewHandler(app.NewService(store), invalidator),
		store:       store,
		invalidator: invalidator,
	}
}

func (e testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body == nil {
		reader = bytes.NewReader(nil)
	} else {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	recorder := httptest.NewRecorder()
	e.handler.ServeHTTP(recorder, req)
	return recorder
}

func (e testEnv) createField(t *testing.T, label string) string {
	t.Helper()
	field, err := e.store.CreateField(context.Background(), domain.FieldInput{
		Type: "inputbox",
		Text: domain.TextInput{Label: &label},
	}, "en")
	if err != nil {
		t.Fatalf("create field: %v", err)
	}
	return field.ID
}

func decodeStep(t *testing.T, recorder *httptest.ResponseRecorder) rest.StepView {
	t.Helper()
	var view rest.StepView
	if err := json.Unmarshal(recorder.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode step view: %v (body %s)", err, recorder.Body.String())
	}
	return view
}

func TestCreateStepReturns201(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	fieldID := env.createField(t, "Name")

	recorder := env.do(t, http.MethodPost, "/admin/steps?lang=en", map[string]any{
		"context_id":  "ctx-1",
		"label":       "Identity",
		"description": "Who is submitting",
		"children":    []map[string]any{{"id": fieldID}},
	})
	if recorder.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d (body %s)", recorder.Code, http.StatusCreated, recorder.Body.String())
	}

	view := decodeStep(t, recorder)
	if view.ID == "" {
		t.Fatal("expected generated step id")
	}
	if view.Label != "Identity" {
		t.Fatalf("label = %q, want %q", view.Label, "Identity")
	}
	if len(view.Children) != 1 || view.Children[0].ID != fieldID {
		t.Fatalf("children = %v, want [%s]", view.Children, fieldID)
	}
	if len(env.invalidator.tags) != 1 || env.invalidator.tags[0] != "contexts" {
		t.Fatalf("invalidations = %v, want [contexts]", env.invalidator.tags)
	}
}

func TestCreateStepUnknownFieldReturns404AndPersistsNothing(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	recorder := env.do(t, http.MethodPost, "/admin/steps", map[string]any{
		"context_id": "ctx-1",
		"label":      "Broken",
		"children":   []map[string]any{{"id": "no-such-field"}},
	})
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", recorder.Code, http.StatusNotFound)
	}
	if len(env.invalidator.tags) != 0 {
		t.Fatalf("expected no invalidation on failure, got %v", env.invalidator.tags)
	}

	listRecorder := env.do(t, http.MethodGet, "/admin/contexts/ctx-1/steps", nil)
	if listRecorder.Code != http.StatusOK {
		t.Fatalf("list status = %d, want %d", listRecorder.Code, http.StatusOK)
	}
	if body := strings.TrimSpace(listRecorder.Body.String()); body != "[]" {
		t.Fatalf("list body = %s, want []", body)
	}
}

func TestCreateStepMalformedJSONReturns400(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/admin/steps", strings.NewReader("{not json"))
	recorder := httptest.NewRecorder()
	env.handler.ServeHTTP(recorder, req)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", recorder.Code, http.StatusBadRequest)
	}
}

func TestGetStepLocalizesWithFallback(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	created := decodeStep(t, env.do(t, http.MethodPost, "/admin/steps?lang=en", map[string]any{
		"context_id": "ctx-1",
		"label":      "Identity",
	}))

	updateRecorder := env.do(t, http.MethodPut, "/admin/steps/"+created.ID+"?lang=it", map[string]any{
		"label": "Identità",
	})
	if updateRecorder.Code != http.StatusAccepted {
		t.Fatalf("update status = %d, want %d", updateRecorder.Code, http.StatusAccepted)
	}

	italian := decodeStep(t, env.do(t, http.MethodGet, "/admin/steps/"+created.ID+"?lang=it", nil))
	if italian.Label != "Identità" {
		t.Fatalf("it label = %q, want %q", italian.Label, "Identità")
	}

	english := decodeStep(t, env.do(t, http.MethodGet, "/admin/steps/"+created.ID+"?lang=en", nil))
	if english.Label != "Identity" {
		t.Fatalf("en label = %q, want preserved %q", english.Label, "Identity")
	}

	spanish := decodeStep(t, env.do(t, http.MethodGet, "/admin/steps/"+created.ID+"?lang=es", nil))
	if spanish.Label != "Identity" {
		t.Fatalf("es label = %q, want fallback %q", spanish.Label, "Identity")
	}
}

func TestGetStepNotFoundReturns404(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	recorder := env.do(t, http.MethodGet, "/admin/steps/missing", nil)
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", recorder.Code, http.StatusNotFound)
	}
}

func TestDeleteStepReturns200ThenGone(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	created := decodeStep(t, env.do(t, http.MethodPost, "/admin/steps", map[string]any{
		"context_id": "ctx-1",
		"label":      "Doomed",
	}))

	deleteRecorder := env.do(t, http.MethodDelete, "/admin/steps/"+created.ID, nil)
	if deleteRecorder.Code != http.StatusOK {
		t.Fatalf("delete status = %d, want %d", deleteRecorder.Code, http.StatusOK)
	}
	if getRecorder := env.do(t, http.MethodGet, "/admin/steps/"+created.ID, nil); getRecorder.Code != http.StatusNotFound {
		t.Fatalf("get after delete status = %d, want %d", getRecorder.Code, http.StatusNotFound)
	}
}

func TestDeleteStepNotFoundReturns404(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	recorder := env.do(t, http.MethodDelete, "/admin/steps/missing", nil)
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", recorder.Code, http.StatusNotFound)
	}
	if len(env.invalidator.tags) != 0 {
		t.Fatalf("expected no invalidation on failure, got %v", env.invalidator.tags)
	}
}

func TestReconcileStepsEndpointMatchesSubmittedSet(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	stepA := decodeStep(t, env.do(t, http.MethodPost, "/admin/steps", map[string]any{
		"context_id": "ctx-1", "label": "A",
	}))
	decodeStep(t, env.do(t, http.MethodPost, "/admin/steps", map[string]any{
		"context_id": "ctx-1", "label": "B",
	}))
	stepD := decodeStep(t, env.do(t, http.MethodPost, "/admin/steps", map[string]any{
		"context_id": "ctx-1", "label": "D",
	}))

	recorder := env.do(t, http.MethodPut, "/admin/contexts/ctx-1/steps", []map[string]any{
		{"id": stepA.ID, "label": "A updated"},
		{"label": "C new"},
		{"id": stepD.ID, "label": "D"},
	})
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (body %s)", recorder.Code, http.StatusOK, recorder.Body.String())
	}

	var views []rest.StepView
	if err := json.Unmarshal(recorder.Body.Bytes(), &views); err != nil {
		t.Fatalf("decode views: %v", err)
	}
	if len(views) != 3 {
		t.Fatalf("views = %d, want 3", len(views))
	}
	if views[0].ID != stepA.ID || views[0].Label != "A updated" {
		t.Fatalf("step A = %+v, want updated in place", views[0])
	}
	if views[1].ID == "" || views[1].ID == stepA.ID || views[1].ID == stepD.ID {
		t.Fatalf("expected fresh id for C, got %q", views[1].ID)
	}

	var listed []rest.StepView
	listRecorder := env.do(t, http.MethodGet, "/admin/contexts/ctx-1/steps", nil)
	if err := json.Unmarshal(listRecorder.Body.Bytes(), &listed); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	want := map[string]bool{stepA.ID: true, views[1].ID: true, stepD.ID: true}
	if len(listed) != 3 {
		t.Fatalf("stored steps = %d, want 3", len(listed))
	}
	for _, view := range listed {
		if !want[view.ID] {
			t.Fatalf("unexpected stored step %q", view.ID)
		}
	}
}

func TestReconcileStepsEmptyListTearsDown(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	decodeStep(t, env.do(t, http.MethodPost, "/admin/steps", map[string]any{
		"context_id": "ctx-1", "label": "A",
	}))

	recorder := env.do(t, http.MethodPut, "/admin/contexts/ctx-1/steps", []map[string]any{})
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", recorder.Code, http.StatusOK)
	}

	listRecorder := env.do(t, http.MethodGet, "/admin/contexts/ctx-1/steps", nil)
	if body := strings.TrimSpace(listRecorder.Body.String()); body != "[]" {
		t.Fatalf("list body = %s, want []", body)
	}
}

func TestRequestLanguageNegotiation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		target string
		accept string
		want   string
	}{
		{name: "query param wins", target: "/admin/steps/x?lang=fr", accept: "it", want: "fr"},
		{name: "accept header", target: "/admin/steps/x", accept: "it-IT, en;q=0.5", want: "it"},
		{name: "default", target: "/admin/steps/x", accept: "", want: "en"},
		{name: "unsupported falls back", target: "/admin/steps/x?lang=zz", accept: "", want: "en"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodGet, tc.target, nil)
			if tc.accept != "" {
				req.Header.Set("Accept-Language", tc.accept)
			}
			if got := rest.RequestLanguage(req); got != tc.want {
				t.Fatalf("language = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestUpdateStepRequiresExistingStep(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	recorder := env.do(t, http.MethodPut, "/admin/steps/missing", map[string]any{"label": "X"})
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", recorder.Code, http.StatusNotFound)
	}
}

func TestUpdateStepUnknownChildReturns404(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	created := decodeStep(t, env.do(t, http.MethodPost, "/admin/steps", map[string]any{
		"context_id": "ctx-1", "label": "A",
	}))

	recorder := env.do(t, http.MethodPut, fmt.Sprintf("/admin/steps/%s", created.ID), map[string]any{
		"label":    "A updated",
		"children": []map[string]any{{"id": "no-such-field"}},
	})
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d (body %s)", recorder.Code, http.StatusNotFound, recorder.Body.String())
	}
}
