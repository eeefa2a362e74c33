package models

import "time"

// GroupQuery represents filter parameters for the group listing API.
type GroupQuery struct {
	Urlnames []string `json:"urlnames"`
	Limit    int      `json:"limit"`
	Offset   int      `json:"offset"`
}

// Matches checks if a group matches the query criteria.
func (q GroupQuery) Matches(g Group) bool {
	if len(q.Urlnames) > 0 && !contains(q.Urlnames, g.Urlname) {
		return false
	}
	return true
}

// EventQuery represents filter parameters for the flattened event listing.
type EventQuery struct {
	Groups   []string  `json:"groups"`
	Statuses []string  `json:"statuses"`
	Modes    []string  `json:"modes"`
	Since    time.Time `json:"since"`
	Until    time.Time `json:"until"`
	Limit    int       `json:"limit"`
	Offset   int       `json:"offset"`
}

// Matches checks if an event (belonging to urlname) matches the query criteria.
func (q EventQuery) Matches(urlname string, e Event) bool {
	if len(q.Groups) > 0 && !contains(q.Groups, urlname) {
		return false
	}
	if len(q.Statuses) > 0 && !contains(q.Statuses, string(e.Status)) {
		return false
	}
	if len(q.Modes) > 0 && !contains(q.Modes, string(e.Mode)) {
		return false
	}
	if !q.Since.IsZero() && e.StartTime.Before(q.Since) {
		return false
	}
	if !q.Until.IsZero() && e.StartTime.After(q.Until) {
		return false
	}
	return true
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
