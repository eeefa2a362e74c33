package models

import "time"

// PlatformKind identifies which external event platform a group lives on.
type PlatformKind string

const (
	PlatformMeetup     PlatformKind = "meetup"
	PlatformEventbrite PlatformKind = "eventbrite"
	PlatformLuma       PlatformKind = "luma"
)

// EventStatus is the normalized lifecycle state of an event.
type EventStatus string

const (
	EventStatusActive    EventStatus = "active"
	EventStatusCancelled EventStatus = "cancelled"
	EventStatusDraft     EventStatus = "draft"
)

// EventMode describes how attendees participate.
type EventMode string

const (
	EventModePhysical EventMode = "physical"
	EventModeOnline   EventMode = "online"
	EventModeHybrid   EventMode = "hybrid"
)

// Venue is a normalized physical location for an event.
// Online events carry no venues; that is meaningful, not malformed.
type Venue struct {
	Name       string  `json:"name"`
	Address    string  `json:"address,omitempty"`
	City       string  `json:"city,omitempty"`
	State      string  `json:"state,omitempty"`
	PostalCode string  `json:"postal_code,omitempty"`
	Lat        float64 `json:"lat,omitempty"`
	Lng        float64 `json:"lng,omitempty"`
}

// Event is a normalized event record produced by a platform adapter.
type Event struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	StartTime   time.Time   `json:"start_time"`
	Status      EventStatus `json:"status"`
	URL         string      `json:"url"`
	Description string      `json:"description,omitempty"`
	Duration    string      `json:"duration,omitempty"`
	Mode        EventMode   `json:"mode,omitempty"`
	GoingCount  int         `json:"going_count,omitempty"`
	Photo       string      `json:"photo,omitempty"`
	Venues      []Venue     `json:"venues,omitempty"`
}

// PageInfo carries a provider cursor for event pagination.
type PageInfo struct {
	EndCursor   string `json:"end_cursor,omitempty"`
	HasNextPage bool   `json:"has_next_page"`
}

// EventsPage holds the events fetched for a group plus pagination state.
type EventsPage struct {
	TotalCount int      `json:"total_count"`
	PageInfo   PageInfo `json:"page_info"`
	Edges      []Event  `json:"edges"`
}

// Group is the normalized group record for one tracked community.
// It is immutable once returned by an adapter.
type Group struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Urlname     string     `json:"urlname"`
	Link        string     `json:"link"`
	Photo       string     `json:"photo,omitempty"`
	MemberCount int        `json:"member_count,omitempty"`
	Events      EventsPage `json:"events"`
}

// AggregatedData maps group urlname to its current normalized data.
// This mapping is the published snapshot.
type AggregatedData map[string]Group

// FetchResult is the tagged per-group outcome of one fetch attempt.
// Exactly one of Group/Error is populated.
type FetchResult struct {
	Platform PlatformKind `json:"platform"`
	Urlname  string       `json:"urlname"`
	Group    *Group       `json:"group,omitempty"`
	Error    string       `json:"error,omitempty"`
}

// Success reports whether the fetch produced group data.
func (r FetchResult) Success() bool {
	return r.Group != nil
}

// Diagnostics describes the most recent aggregation run.
// It is replaced wholesale each run; history is out of scope.
type Diagnostics struct {
	RunID           string    `json:"run_id"`
	LastRunAt       time.Time `json:"last_run_at"`
	DurationMs      int64     `json:"duration_ms"`
	GroupsProcessed int       `json:"groups_processed"`
	GroupsFailed    int       `json:"groups_failed"`
	DataHash        string    `json:"data_hash"`
	Errors          []string  `json:"errors"`
}
