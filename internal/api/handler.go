package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/gatherhub/eventdir/config"
	apperrors "github.com/gatherhub/eventdir/internal/errors"
	"github.com/gatherhub/eventdir/internal/logger"
	middlewares "github.com/gatherhub/eventdir/internal/middleware"
	"github.com/gatherhub/eventdir/internal/models"
	"github.com/gatherhub/eventdir/internal/snapshot"
)

// Trigger starts aggregation runs out of band; implemented by the
// pipeline scheduler.
type Trigger interface {
	TriggerNow(ctx context.Context) (models.Diagnostics, error)
	IsRunning() bool
}

// Handler handles HTTP requests for the API
type Handler struct {
	store       *snapshot.Store
	trigger     Trigger
	platforms   []string
	groups      []config.GroupRef
	version     string
	buildTime   string
	gitCommit   string
	startTime   time.Time
	adminSecret string
}

// NewHandler creates a new API handler
func NewHandler(store *snapshot.Store, trigger Trigger, platforms []string, groups []config.GroupRef, adminSecret, version, buildTime, gitCommit string) *Handler {
	return &Handler{
		store:       store,
		trigger:     trigger,
		platforms:   platforms,
		groups:      groups,
		version:     version,
		buildTime:   buildTime,
		gitCommit:   gitCommit,
		startTime:   time.Now(),
		adminSecret: adminSecret,
	}
}

// RegisterRoutes registers all API routes
func (h *Handler) RegisterRoutes(r *chi.Mux) {
	r.Route("/v1", func(r chi.Router) {
		// Health check endpoints
		r.Get("/health", h.healthHandler)
		r.Get("/health/ready", h.readinessHandler)
		r.Get("/health/live", h.livenessHandler)

		// Aggregation status and data endpoints
		r.Get("/status", h.statusHandler)
		r.Get("/groups", h.getGroupsHandler)
		r.Get("/groups/{urlname}", h.getGroupHandler)
		r.Get("/events", h.getEventsHandler)

		// System info
		r.Get("/version", h.versionHandler)
	})

	// Admin routes (protected by shared secret middleware)
	r.Route("/v1/admin", func(r chi.Router) {
		r.With(middlewares.AdminSecret(h.adminSecret)).Group(func(r chi.Router) {
			r.Post("/sync", h.adminSyncHandler)
		})
	})

	// Root health check
	r.Get("/health", h.healthHandler)
}

// healthHandler provides basic health check
func (h *Handler) healthHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
		"version":   h.version,
	}

	h.writeJSONResponse(w, http.StatusOK, response)
}

// readinessHandler checks if the application is ready to serve traffic
func (h *Handler) readinessHandler(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{
		"snapshot": "ok",
	}

	statusCode := http.StatusOK
	if !h.store.Current().Populated {
		checks["snapshot"] = "empty: no aggregation run has populated data yet"
		statusCode = http.StatusServiceUnavailable
	}

	response := map[string]interface{}{
		"status":    "ready",
		"timestamp": time.Now().UTC(),
		"checks":    checks,
	}

	h.writeJSONResponse(w, statusCode, response)
}

// livenessHandler checks if the application is alive
func (h *Handler) livenessHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":    "alive",
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(h.startTime).String(),
	}

	h.writeJSONResponse(w, http.StatusOK, response)
}

// versionHandler returns version information
func (h *Handler) versionHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"version":    h.version,
		"build_time": h.buildTime,
		"git_commit": h.gitCommit,
	}

	h.writeJSONResponse(w, http.StatusOK, response)
}

// groupStatus describes one configured group and whether the snapshot
// currently holds data for it.
type groupStatus struct {
	Platform   string `json:"platform"`
	Identifier string `json:"identifier"`
	Urlname    string `json:"urlname,omitempty"`
	Resolved   bool   `json:"resolved"`
}

// statusHandler handles GET /status; unauthenticated by design.
func (h *Handler) statusHandler(w http.ResponseWriter, r *http.Request) {
	snap := h.store.Current()

	groups := make([]groupStatus, 0, len(h.groups))
	for _, ref := range h.groups {
		gs := groupStatus{
			Platform:   string(ref.Platform),
			Identifier: ref.Identifier,
		}
		if g, ok := resolveGroup(snap.Data, ref.Identifier); ok {
			gs.Urlname = g.Urlname
			gs.Resolved = true
		}
		groups = append(groups, gs)
	}

	response := map[string]interface{}{
		"platforms":    h.platforms,
		"groups":       groups,
		"total_groups": len(h.groups),
		"aggregation":  snap.Diagnostics,
	}

	h.writeJSONResponse(w, http.StatusOK, response)
}

// resolveGroup finds a snapshot entry by urlname or provider identifier.
func resolveGroup(data models.AggregatedData, identifier string) (models.Group, bool) {
	if g, ok := data[identifier]; ok {
		return g, true
	}
	for _, g := range data {
		if g.ID == identifier {
			return g, true
		}
	}
	return models.Group{}, false
}

// getGroupsHandler handles GET /groups
func (h *Handler) getGroupsHandler(w http.ResponseWriter, r *http.Request) {
	snap := h.store.Current()
	if !snap.Populated {
		h.writeErrorResponse(w, r, http.StatusServiceUnavailable, apperrors.ErrNoData.Error())
		return
	}

	q, err := h.parseGroupQuery(r)
	if err != nil {
		h.writeErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	groups := make([]models.Group, 0, len(snap.Data))
	for _, g := range snap.Data {
		if q.Matches(g) {
			groups = append(groups, g)
		}
	}
	sort.Slice(groups, func(i, j int) bool {
		return groups[i].Urlname < groups[j].Urlname
	})

	if q.Offset > 0 {
		if q.Offset >= len(groups) {
			groups = nil
		} else {
			groups = groups[q.Offset:]
		}
	}
	if q.Limit > 0 && q.Limit < len(groups) {
		groups = groups[:q.Limit]
	}
	if groups == nil {
		groups = []models.Group{}
	}

	response := map[string]interface{}{
		"data":      groups,
		"count":     len(groups),
		"timestamp": time.Now().UTC(),
	}

	w.Header().Set("Cache-Control", "public, max-age=60")
	h.writeJSONResponse(w, http.StatusOK, response)
}

// getGroupHandler handles GET /groups/{urlname}
func (h *Handler) getGroupHandler(w http.ResponseWriter, r *http.Request) {
	snap := h.store.Current()
	if !snap.Populated {
		h.writeErrorResponse(w, r, http.StatusServiceUnavailable, apperrors.ErrNoData.Error())
		return
	}

	urlname := chi.URLParam(r, "urlname")
	group, ok := snap.Data[urlname]
	if !ok {
		h.writeErrorResponse(w, r, http.StatusNotFound, "Group not found")
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=300")
	h.writeJSONResponse(w, http.StatusOK, group)
}

// flatEvent is an event annotated with its group for the flattened listing.
type flatEvent struct {
	Group string `json:"group"`
	models.Event
}

// getEventsHandler handles GET /events
func (h *Handler) getEventsHandler(w http.ResponseWriter, r *http.Request) {
	snap := h.store.Current()
	if !snap.Populated {
		h.writeErrorResponse(w, r, http.StatusServiceUnavailable, apperrors.ErrNoData.Error())
		return
	}

	q, err := h.parseEventQuery(r)
	if err != nil {
		h.writeErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	var events []flatEvent
	for urlname, group := range snap.Data {
		for _, e := range group.Events.Edges {
			if q.Matches(urlname, e) {
				events = append(events, flatEvent{Group: urlname, Event: e})
			}
		}
	}

	sort.Slice(events, func(i, j int) bool {
		if events[i].StartTime.Equal(events[j].StartTime) {
			return events[i].ID < events[j].ID
		}
		return events[i].StartTime.Before(events[j].StartTime)
	})

	if q.Offset > 0 {
		if q.Offset >= len(events) {
			events = nil
		} else {
			events = events[q.Offset:]
		}
	}
	if q.Limit > 0 && q.Limit < len(events) {
		events = events[:q.Limit]
	}
	if events == nil {
		events = []flatEvent{}
	}

	response := map[string]interface{}{
		"data":      events,
		"count":     len(events),
		"timestamp": time.Now().UTC(),
	}

	w.Header().Set("Cache-Control", "public, max-age=60")
	h.writeJSONResponse(w, http.StatusOK, response)
}

// adminSyncHandler handles POST /admin/sync: a manual aggregation
// trigger that is rejected while a run is already in flight.
func (h *Handler) adminSyncHandler(w http.ResponseWriter, r *http.Request) {
	diag, err := h.trigger.TriggerNow(r.Context())
	if err != nil {
		if errors.Is(err, apperrors.ErrRunInProgress) {
			h.writeErrorResponse(w, r, http.StatusConflict, err.Error())
			return
		}
		logger.WithContext(r.Context()).Error("Manual sync failed", "error", err)
		h.writeErrorResponse(w, r, http.StatusInternalServerError, "Internal server error")
		return
	}

	response := map[string]interface{}{
		"status":      "completed",
		"aggregation": diag,
	}

	h.writeJSONResponse(w, http.StatusAccepted, response)
}

// parseGroupQuery parses query parameters into GroupQuery
func (h *Handler) parseGroupQuery(r *http.Request) (models.GroupQuery, error) {
	q := models.GroupQuery{Urlnames: r.URL.Query()["urlname"]}

	limit, offset, err := parsePagination(r)
	if err != nil {
		return q, err
	}
	q.Limit = limit
	q.Offset = offset
	return q, nil
}

// parseEventQuery parses query parameters into EventQuery
func (h *Handler) parseEventQuery(r *http.Request) (models.EventQuery, error) {
	q := models.EventQuery{}

	limit, offset, err := parsePagination(r)
	if err != nil {
		return q, err
	}
	q.Limit = limit
	q.Offset = offset

	if sinceStr := r.URL.Query().Get("since"); sinceStr != "" {
		since, err := time.Parse(time.RFC3339, sinceStr)
		if err != nil {
			return q, fmt.Errorf("invalid since format: %s", sinceStr)
		}
		q.Since = since
	}

	if untilStr := r.URL.Query().Get("until"); untilStr != "" {
		until, err := time.Parse(time.RFC3339, untilStr)
		if err != nil {
			return q, fmt.Errorf("invalid until format: %s", untilStr)
		}
		q.Until = until
	}

	q.Groups = r.URL.Query()["group"]
	q.Statuses = r.URL.Query()["status"]
	q.Modes = r.URL.Query()["mode"]

	return q, nil
}

// parsePagination parses the shared limit and offset parameters.
func parsePagination(r *http.Request) (limit, offset int, err error) {
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err = strconv.Atoi(limitStr)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid limit: %s", limitStr)
		}
		if limit < 0 || limit > 1000 {
			return 0, 0, fmt.Errorf("limit must be between 0 and 1000")
		}
	}

	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		offset, err = strconv.Atoi(offsetStr)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid offset: %s", offsetStr)
		}
		if offset < 0 {
			return 0, 0, fmt.Errorf("offset must be non-negative")
		}
	}

	return limit, offset, nil
}

// writeJSONResponse writes a JSON response
func (h *Handler) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// writeErrorResponse writes a standardized error response
func (h *Handler) writeErrorResponse(w http.ResponseWriter, r *http.Request, statusCode int, message string) {
	response := ErrorResponse{
		Error:     http.StatusText(statusCode),
		Message:   message,
		Timestamp: time.Now().UTC(),
		RequestID: r.Header.Get("X-Request-ID"),
	}

	h.writeJSONResponse(w, statusCode, response)
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}
