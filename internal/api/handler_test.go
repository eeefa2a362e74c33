package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/gatherhub/eventdir/config"
	apperrors "github.com/gatherhub/eventdir/internal/errors"
	"github.com/gatherhub/eventdir/internal/logger"
	"github.com/gatherhub/eventdir/internal/models"
	"github.com/gatherhub/eventdir/internal/snapshot"
)

// mockTrigger stands in for the scheduler.
type mockTrigger struct {
	diag    models.Diagnostics
	err     error
	running bool
	calls   int
}

func (m *mockTrigger) TriggerNow(ctx context.Context) (models.Diagnostics, error) {
	m.calls++
	return m.diag, m.err
}

func (m *mockTrigger) IsRunning() bool {
	return m.running
}

func testGroups() models.AggregatedData {
	return models.AggregatedData{
		"denver-gophers": {
			ID:      "g1",
			Name:    "Denver Gophers",
			Urlname: "denver-gophers",
			Events: models.EventsPage{
				TotalCount: 2,
				Edges: []models.Event{
					{
						ID:        "e1",
						Title:     "April Meetup",
						Status:    models.EventStatusActive,
						Mode:      models.EventModePhysical,
						StartTime: time.Date(2026, 4, 10, 18, 0, 0, 0, time.UTC),
					},
					{
						ID:        "e2",
						Title:     "May Meetup",
						Status:    models.EventStatusCancelled,
						Mode:      models.EventModeOnline,
						StartTime: time.Date(2026, 5, 8, 18, 0, 0, 0, time.UTC),
					},
				},
			},
		},
		"fc-founders": {
			ID:      "cal-abc",
			Name:    "Fort Collins Founders",
			Urlname: "fc-founders",
			Events: models.EventsPage{
				TotalCount: 1,
				Edges: []models.Event{
					{
						ID:        "e3",
						Title:     "Founder Dinner",
						Status:    models.EventStatusActive,
						Mode:      models.EventModeHybrid,
						StartTime: time.Date(2026, 3, 1, 19, 0, 0, 0, time.UTC),
					},
				},
			},
		},
	}
}

func newTestHandler(t *testing.T, populated bool, trigger Trigger) (*Handler, *chi.Mux) {
	t.Helper()
	logger.Init("error", "text")

	store := snapshot.New(nil)
	if populated {
		store.Publish(context.Background(), testGroups(), models.Diagnostics{
			RunID:           "run-1",
			GroupsProcessed: 2,
			DataHash:        "hash1",
		})
	}

	groups := []config.GroupRef{
		{Platform: models.PlatformMeetup, Identifier: "denver-gophers"},
		{Platform: models.PlatformLuma, Identifier: "cal-abc"},
		{Platform: models.PlatformEventbrite, Identifier: "12345"},
	}
	h := NewHandler(store, trigger, []string{"meetup", "eventbrite", "luma"}, groups, "letmein", "1.0.0", "now", "abc")

	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return h, r
}

func doRequest(r *chi.Mux, method, target string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Invalid JSON response: %v", err)
	}
	return body
}

func TestHealthEndpoints(t *testing.T) {
	_, r := newTestHandler(t, true, &mockTrigger{})

	for _, target := range []string{"/health", "/v1/health", "/v1/health/live"} {
		w := doRequest(r, http.MethodGet, target, nil)
		if w.Code != http.StatusOK {
			t.Errorf("GET %s: expected 200, got %d", target, w.Code)
		}
	}
}

func TestReadiness_UnpopulatedIs503(t *testing.T) {
	_, r := newTestHandler(t, false, &mockTrigger{})

	w := doRequest(r, http.MethodGet, "/v1/health/ready", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 before first run, got %d", w.Code)
	}

	_, r = newTestHandler(t, true, &mockTrigger{})
	w = doRequest(r, http.MethodGet, "/v1/health/ready", nil)
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200 after publish, got %d", w.Code)
	}
}

func TestStatusEndpoint(t *testing.T) {
	_, r := newTestHandler(t, true, &mockTrigger{})

	w := doRequest(r, http.MethodGet, "/v1/status", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	body := decodeBody(t, w)
	if body["total_groups"].(float64) != 3 {
		t.Errorf("Expected 3 configured groups, got %v", body["total_groups"])
	}

	agg := body["aggregation"].(map[string]interface{})
	if agg["run_id"] != "run-1" {
		t.Errorf("Expected diagnostics run-1, got %v", agg["run_id"])
	}

	groups := body["groups"].([]interface{})
	resolved := map[string]bool{}
	for _, g := range groups {
		gm := g.(map[string]interface{})
		resolved[gm["identifier"].(string)] = gm["resolved"].(bool)
	}
	// Direct urlname match and match-by-provider-ID both resolve; the
	// eventbrite organizer never fetched does not.
	if !resolved["denver-gophers"] {
		t.Error("Expected denver-gophers resolved by urlname")
	}
	if !resolved["cal-abc"] {
		t.Error("Expected cal-abc resolved by provider ID")
	}
	if resolved["12345"] {
		t.Error("Expected 12345 unresolved")
	}
}

func TestStatusEndpoint_WorksBeforeFirstRun(t *testing.T) {
	_, r := newTestHandler(t, false, &mockTrigger{})

	w := doRequest(r, http.MethodGet, "/v1/status", nil)
	if w.Code != http.StatusOK {
		t.Errorf("Expected status to stay available before first run, got %d", w.Code)
	}
}

func TestGetGroups(t *testing.T) {
	_, r := newTestHandler(t, true, &mockTrigger{})

	w := doRequest(r, http.MethodGet, "/v1/groups", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	body := decodeBody(t, w)
	if body["count"].(float64) != 2 {
		t.Errorf("Expected 2 groups, got %v", body["count"])
	}

	data := body["data"].([]interface{})
	first := data[0].(map[string]interface{})
	if first["urlname"] != "denver-gophers" {
		t.Errorf("Expected groups sorted by urlname, got %v first", first["urlname"])
	}
}

func TestGetGroups_FilterByUrlname(t *testing.T) {
	_, r := newTestHandler(t, true, &mockTrigger{})

	w := doRequest(r, http.MethodGet, "/v1/groups?urlname=fc-founders", nil)
	body := decodeBody(t, w)
	if body["count"].(float64) != 1 {
		t.Errorf("Expected 1 group, got %v", body["count"])
	}
}

func TestGetGroups_Pagination(t *testing.T) {
	_, r := newTestHandler(t, true, &mockTrigger{})

	tests := []struct {
		name   string
		target string
		count  int
		first  string
	}{
		{"limit", "/v1/groups?limit=1", 1, "denver-gophers"},
		{"offset", "/v1/groups?offset=1", 1, "fc-founders"},
		{"offset past end", "/v1/groups?offset=5", 0, ""},
		{"limit and offset", "/v1/groups?limit=1&offset=1", 1, "fc-founders"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(r, http.MethodGet, tt.target, nil)
			if w.Code != http.StatusOK {
				t.Fatalf("Expected 200, got %d", w.Code)
			}
			body := decodeBody(t, w)
			if int(body["count"].(float64)) != tt.count {
				t.Fatalf("Expected %d groups, got %v", tt.count, body["count"])
			}
			if tt.first != "" {
				data := body["data"].([]interface{})
				first := data[0].(map[string]interface{})
				if first["urlname"] != tt.first {
					t.Errorf("Expected first group %q, got %v", tt.first, first["urlname"])
				}
			}
		})
	}
}

func TestGetGroups_InvalidPagination(t *testing.T) {
	_, r := newTestHandler(t, true, &mockTrigger{})

	for _, target := range []string{
		"/v1/groups?limit=abc",
		"/v1/groups?limit=5000",
		"/v1/groups?offset=-1",
	} {
		w := doRequest(r, http.MethodGet, target, nil)
		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected 400 for %s, got %d", target, w.Code)
		}
	}
}

func TestGetGroups_UnpopulatedIs503(t *testing.T) {
	_, r := newTestHandler(t, false, &mockTrigger{})

	w := doRequest(r, http.MethodGet, "/v1/groups", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 before first run, got %d", w.Code)
	}
}

func TestGetGroup(t *testing.T) {
	_, r := newTestHandler(t, true, &mockTrigger{})

	w := doRequest(r, http.MethodGet, "/v1/groups/denver-gophers", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	body := decodeBody(t, w)
	if body["name"] != "Denver Gophers" {
		t.Errorf("Unexpected group payload: %v", body)
	}

	w = doRequest(r, http.MethodGet, "/v1/groups/nope", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown urlname, got %d", w.Code)
	}
}

func TestGetEvents_SortedAndFlattened(t *testing.T) {
	_, r := newTestHandler(t, true, &mockTrigger{})

	w := doRequest(r, http.MethodGet, "/v1/events", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	body := decodeBody(t, w)
	if body["count"].(float64) != 3 {
		t.Fatalf("Expected 3 events, got %v", body["count"])
	}

	data := body["data"].([]interface{})
	var ids []string
	for _, e := range data {
		ids = append(ids, e.(map[string]interface{})["id"].(string))
	}
	// Chronological order across groups
	want := []string{"e3", "e1", "e2"}
	for i, id := range want {
		if ids[i] != id {
			t.Fatalf("Expected event order %v, got %v", want, ids)
		}
	}
	if data[0].(map[string]interface{})["group"] != "fc-founders" {
		t.Error("Expected each event annotated with its group urlname")
	}
}

func TestGetEvents_Filters(t *testing.T) {
	_, r := newTestHandler(t, true, &mockTrigger{})

	tests := []struct {
		name   string
		target string
		want   int
	}{
		{"by group", "/v1/events?group=denver-gophers", 2},
		{"by status", "/v1/events?status=cancelled", 1},
		{"by mode", "/v1/events?mode=hybrid", 1},
		{"since excludes earlier", "/v1/events?since=2026-04-01T00:00:00Z", 2},
		{"until excludes later", "/v1/events?until=2026-04-30T00:00:00Z", 2},
		{"limit", "/v1/events?limit=1", 1},
		{"offset past end", "/v1/events?offset=10", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(r, http.MethodGet, tt.target, nil)
			if w.Code != http.StatusOK {
				t.Fatalf("Expected 200, got %d", w.Code)
			}
			body := decodeBody(t, w)
			if int(body["count"].(float64)) != tt.want {
				t.Errorf("Expected %d events, got %v", tt.want, body["count"])
			}
		})
	}
}

func TestGetEvents_InvalidQuery(t *testing.T) {
	_, r := newTestHandler(t, true, &mockTrigger{})

	for _, target := range []string{
		"/v1/events?limit=abc",
		"/v1/events?limit=5000",
		"/v1/events?offset=-1",
		"/v1/events?since=yesterday",
	} {
		w := doRequest(r, http.MethodGet, target, nil)
		if w.Code != http.StatusBadRequest {
			t.Errorf("GET %s: expected 400, got %d", target, w.Code)
		}
	}
}

func TestAdminSync_RequiresSecret(t *testing.T) {
	_, r := newTestHandler(t, true, &mockTrigger{})

	w := doRequest(r, http.MethodPost, "/v1/admin/sync", nil)
	if w.Code != http.StatusForbidden {
		t.Errorf("Expected 403 without secret, got %d", w.Code)
	}

	w = doRequest(r, http.MethodPost, "/v1/admin/sync", map[string]string{"X-Admin-Secret": "wrong"})
	if w.Code != http.StatusForbidden {
		t.Errorf("Expected 403 with wrong secret, got %d", w.Code)
	}
}

func TestAdminSync_TriggersRun(t *testing.T) {
	trigger := &mockTrigger{diag: models.Diagnostics{RunID: "manual-1", GroupsProcessed: 3}}
	_, r := newTestHandler(t, true, trigger)

	w := doRequest(r, http.MethodPost, "/v1/admin/sync", map[string]string{"X-Admin-Secret": "letmein"})
	if w.Code != http.StatusAccepted {
		t.Fatalf("Expected 202, got %d: %s", w.Code, w.Body.String())
	}
	if trigger.calls != 1 {
		t.Errorf("Expected 1 trigger call, got %d", trigger.calls)
	}

	body := decodeBody(t, w)
	if body["status"] != "completed" {
		t.Errorf("Expected completed status, got %v", body["status"])
	}
	agg := body["aggregation"].(map[string]interface{})
	if agg["run_id"] != "manual-1" {
		t.Errorf("Expected diagnostics in response, got %v", agg)
	}
}

func TestAdminSync_ConflictWhileRunning(t *testing.T) {
	trigger := &mockTrigger{err: apperrors.ErrRunInProgress}
	_, r := newTestHandler(t, true, trigger)

	w := doRequest(r, http.MethodPost, "/v1/admin/sync", map[string]string{"X-Admin-Secret": "letmein"})
	if w.Code != http.StatusConflict {
		t.Errorf("Expected 409 while a run is in flight, got %d", w.Code)
	}
}

func TestVersionEndpoint(t *testing.T) {
	_, r := newTestHandler(t, true, &mockTrigger{})

	w := doRequest(r, http.MethodGet, "/v1/version", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	body := decodeBody(t, w)
	if body["version"] != "1.0.0" {
		t.Errorf("Unexpected version payload: %v", body)
	}
}
