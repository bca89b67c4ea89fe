package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"talenttrack/internal/roster/service"
	"talenttrack/internal/roster/store/memory"
	id "talenttrack/pkg/domain"
	"talenttrack/pkg/testutil"
)

var fixedNow = time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)

func newRosterRouter(t *testing.T) chi.Router {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.New()
	recorder := service.NewRecorder(store, nil, logger, nil)
	h := New(recorder, service.NewQueries(store, logger), service.NewAnalytics(store, logger), nil, logger)

	r := chi.NewRouter()
	r.Route("/api", h.Register)
	return r
}

func doJSON(t *testing.T, router chi.Router, method, path string, payload any, at time.Time) *httptest.ResponseRecorder {
	t.Helper()
	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	req = testutil.WithRequestTime(req, at)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func createEmployee(t *testing.T, router chi.Router, name, email string, at time.Time) string {
	t.Helper()
	rec := doJSON(t, router, http.MethodPost, "/api/employees", map[string]string{
		"name":      name,
		"email":     email,
		"hire_date": "2026-01-05",
	}, at)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 creating employee, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	if resp.ID == "" {
		t.Fatal("expected id in create response")
	}
	return resp.ID
}

func TestCreateEmployeeDefaultsToEntryStage(t *testing.T) {
	router := newRosterRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/employees", map[string]string{
		"name":      "Ada Lovelace",
		"email":     "ada@example.com",
		"hire_date": "2026-01-05",
	}, fixedNow)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		CurrentStatus   string    `json:"current_status"`
		StatusUpdatedAt time.Time `json:"status_updated_at"`
		Email           string    `json:"email"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.CurrentStatus != string(id.StageCandidatePrep) {
		t.Errorf("current_status = %q, want %q", resp.CurrentStatus, id.StageCandidatePrep)
	}
	if !resp.StatusUpdatedAt.Equal(fixedNow) {
		t.Errorf("status_updated_at = %v, want %v", resp.StatusUpdatedAt, fixedNow)
	}
	if resp.Email != "ada@example.com" {
		t.Errorf("email = %q", resp.Email)
	}
}

func TestCreateEmployeeValidation(t *testing.T) {
	router := newRosterRouter(t)

	cases := []struct {
		name    string
		payload map[string]string
		want    int
	}{
		{"missing name", map[string]string{"email": "a@example.com", "hire_date": "2026-01-05"}, http.StatusBadRequest},
		{"bad email", map[string]string{"name": "Ada", "email": "nope", "hire_date": "2026-01-05"}, http.StatusBadRequest},
		{"bad hire date", map[string]string{"name": "Ada", "email": "a@example.com", "hire_date": "junk"}, http.StatusBadRequest},
		{"unknown stage", map[string]string{"name": "Ada", "email": "a@example.com", "hire_date": "2026-01-05", "current_status": "Bogus"}, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doJSON(t, router, http.MethodPost, "/api/employees", tc.payload, fixedNow)
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d: %s", tc.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestDuplicateEmailConflicts(t *testing.T) {
	router := newRosterRouter(t)
	createEmployee(t, router, "Ada", "ada@example.com", fixedNow)

	rec := doJSON(t, router, http.MethodPost, "/api/employees", map[string]string{
		"name":      "Other Ada",
		"email":     "ADA@example.com",
		"hire_date": "2026-01-05",
	}, fixedNow)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestTransitionEndpoint(t *testing.T) {
	router := newRosterRouter(t)
	employeeID := createEmployee(t, router, "Ada", "ada@example.com", fixedNow)

	at := fixedNow.Add(time.Hour)
	rec := doJSON(t, router, http.MethodPatch, "/api/employees/"+employeeID+"/status", map[string]string{
		"status": string(id.StageInTraining),
		"notes":  "cohort 4",
	}, at)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		CurrentStatus   string    `json:"current_status"`
		StatusUpdatedAt time.Time `json:"status_updated_at"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.CurrentStatus != string(id.StageInTraining) {
		t.Errorf("current_status = %q", resp.CurrentStatus)
	}
	if !resp.StatusUpdatedAt.Equal(at) {
		t.Errorf("status_updated_at = %v, want %v", resp.StatusUpdatedAt, at)
	}

	// Unknown employee and unknown stage map to 404 and 400.
	rec = doJSON(t, router, http.MethodPatch, "/api/employees/"+uuid.NewString()+"/status", map[string]string{
		"status": string(id.StageInTraining),
	}, at)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	rec = doJSON(t, router, http.MethodPatch, "/api/employees/"+employeeID+"/status", map[string]string{
		"status": "Bogus",
	}, at)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestBulkTransitionEndpointAtomicity(t *testing.T) {
	router := newRosterRouter(t)
	first := createEmployee(t, router, "Ada", "ada@example.com", fixedNow)
	second := createEmployee(t, router, "Grace", "grace@example.com", fixedNow)

	rec := doJSON(t, router, http.MethodPatch, "/api/employees/bulk/status", map[string]any{
		"employeeIds": []string{first, uuid.NewString()},
		"status":      string(id.StageMatchingPool),
	}, fixedNow.Add(time.Hour))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for partial bulk, got %d: %s", rec.Code, rec.Body.String())
	}

	// Neither employee moved.
	for _, employeeID := range []string{first, second} {
		getRec := doJSON(t, router, http.MethodGet, "/api/employees/"+employeeID, nil, fixedNow)
		if getRec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", getRec.Code)
		}
		var resp struct {
			CurrentStatus string `json:"current_status"`
		}
		if err := json.NewDecoder(getRec.Body).Decode(&resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if resp.CurrentStatus != string(id.StageCandidatePrep) {
			t.Errorf("employee %s moved to %q after failed bulk", employeeID, resp.CurrentStatus)
		}
	}

	rec = doJSON(t, router, http.MethodPatch, "/api/employees/bulk/status", map[string]any{
		"employeeIds": []string{first, second},
		"status":      string(id.StageMatchingPool),
	}, fixedNow.Add(time.Hour))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var moved []struct {
		CurrentStatus string `json:"current_status"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&moved); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(moved) != 2 {
		t.Fatalf("expected 2 employees in response, got %d", len(moved))
	}
}

func TestListFilters(t *testing.T) {
	router := newRosterRouter(t)
	createEmployee(t, router, "Ada Lovelace", "ada@example.com", fixedNow)
	grace := createEmployee(t, router, "Grace Hopper", "grace@example.com", fixedNow.Add(time.Minute))

	rec := doJSON(t, router, http.MethodPatch, "/api/employees/"+grace+"/status", map[string]string{
		"status": string(id.StageOnAssignment),
	}, fixedNow.Add(time.Hour))
	if rec.Code != http.StatusOK {
		t.Fatalf("transition failed: %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodGet, "/api/employees?statuses=On+Assignment", nil, fixedNow)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var filtered []struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&filtered); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(filtered) != 1 || filtered[0].Name != "Grace Hopper" {
		t.Fatalf("statuses filter returned %+v", filtered)
	}

	rec = doJSON(t, router, http.MethodGet, "/api/employees?search=lovelace", nil, fixedNow)
	var byName []struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&byName); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(byName) != 1 || byName[0].Name != "Ada Lovelace" {
		t.Fatalf("search filter returned %+v", byName)
	}
}

func TestHistoryAndAnalyticsEndpoints(t *testing.T) {
	router := newRosterRouter(t)
	employeeID := createEmployee(t, router, "Ada", "ada@example.com", fixedNow)
	rec := doJSON(t, router, http.MethodPatch, "/api/employees/"+employeeID+"/status", map[string]string{
		"status": string(id.StageInTraining),
	}, fixedNow.AddDate(0, 0, 5))
	if rec.Code != http.StatusOK {
		t.Fatalf("transition failed: %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodGet, "/api/history/"+employeeID, nil, fixedNow)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var records []struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&records); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(records) != 2 || records[0].Status != string(id.StageInTraining) {
		t.Fatalf("history = %+v", records)
	}

	rec = doJSON(t, router, http.MethodGet, "/api/history", nil, fixedNow)
	var entries []struct {
		Name   string `json:"name"`
		Status string `json:"status"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&entries); err != nil {
		t.Fatalf("decode all history: %v", err)
	}
	if len(entries) != 2 || entries[0].Name != "Ada" {
		t.Fatalf("all history = %+v", entries)
	}

	rec = doJSON(t, router, http.MethodGet, "/api/history/analytics", nil, fixedNow.AddDate(0, 0, 8))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var report struct {
		StatusDistribution []struct {
			Status string `json:"status"`
			Count  int    `json:"count"`
		} `json:"statusDistribution"`
		AverageTimeByStatus []struct {
			Status  string  `json:"status"`
			Count   int     `json:"count"`
			AvgDays float64 `json:"avgDays"`
		} `json:"averageTimeByStatus"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&report); err != nil {
		t.Fatalf("decode analytics: %v", err)
	}
	if len(report.StatusDistribution) != 1 || report.StatusDistribution[0].Count != 1 {
		t.Fatalf("distribution = %+v", report.StatusDistribution)
	}
	if len(report.AverageTimeByStatus) != 2 {
		t.Fatalf("residency = %+v", report.AverageTimeByStatus)
	}
}

func TestStaleEndpointDefaultsAndBoundary(t *testing.T) {
	router := newRosterRouter(t)
	createEmployee(t, router, "Boundary", "boundary@example.com", fixedNow)
	createEmployee(t, router, "Fresh", "fresh@example.com", fixedNow.AddDate(0, 0, 1))

	rec := doJSON(t, router, http.MethodGet, "/api/history/stale", nil, fixedNow.AddDate(0, 0, 30))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var stale []struct {
		Name         string `json:"name"`
		DaysInStatus int    `json:"days_in_status"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&stale); err != nil {
		t.Fatalf("decode stale: %v", err)
	}
	if len(stale) != 1 || stale[0].Name != "Boundary" || stale[0].DaysInStatus != 30 {
		t.Fatalf("stale = %+v", stale)
	}

	rec = doJSON(t, router, http.MethodGet, "/api/history/stale?days=abc", nil, fixedNow)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad days, got %d", rec.Code)
	}
}

func TestDeleteEndpoint(t *testing.T) {
	router := newRosterRouter(t)
	employeeID := createEmployee(t, router, "Ada", "ada@example.com", fixedNow)

	rec := doJSON(t, router, http.MethodDelete, "/api/employees/"+employeeID, nil, fixedNow.Add(time.Hour))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodGet, "/api/employees/"+employeeID, nil, fixedNow)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", rec.Code)
	}

	// History survives the row.
	rec = doJSON(t, router, http.MethodGet, "/api/history/"+employeeID, nil, fixedNow)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for retained history, got %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodDelete, "/api/employees/"+employeeID, nil, fixedNow)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for double delete, got %d", rec.Code)
	}
}

func TestMalformedIDsRejected(t *testing.T) {
	router := newRosterRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/api/employees/not-a-uuid", nil, fixedNow)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
