package platform

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	apperrors "github.com/gatherhub/eventdir/internal/errors"
	"github.com/gatherhub/eventdir/internal/models"
	"github.com/gatherhub/eventdir/pkg/utils"
)

// EventbriteAdapter fetches organizers and their events from the
// Eventbrite REST API. Organizers are identified by a numeric ID; the
// normalized urlname is a slug of the organizer name.
type EventbriteAdapter struct {
	opts Options
}

// NewEventbriteAdapter creates an Eventbrite adapter.
func NewEventbriteAdapter(opts Options) *EventbriteAdapter {
	return &EventbriteAdapter{opts: opts}
}

// Kind returns the platform kind.
func (a *EventbriteAdapter) Kind() models.PlatformKind {
	return models.PlatformEventbrite
}

type eventbriteOrganizer struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
	Logo *struct {
		URL string `json:"url"`
	} `json:"logo"`
	NumFollowers int `json:"num_followers"`
}

type eventbriteEvent struct {
	ID   string `json:"id"`
	Name struct {
		Text string `json:"text"`
	} `json:"name"`
	Description struct {
		Text string `json:"text"`
	} `json:"description"`
	Start struct {
		UTC string `json:"utc"`
	} `json:"start"`
	End struct {
		UTC string `json:"utc"`
	} `json:"end"`
	Status        string `json:"status"`
	URL           string `json:"url"`
	OnlineEvent   bool   `json:"online_event"`
	TicketClasses []struct {
		QuantitySold int `json:"quantity_sold"`
	} `json:"ticket_classes"`
	Logo *struct {
		URL string `json:"url"`
	} `json:"logo"`
	Venue *struct {
		Name    string `json:"name"`
		Address struct {
			Address1   string `json:"address_1"`
			City       string `json:"city"`
			Region     string `json:"region"`
			PostalCode string `json:"postal_code"`
			Latitude   string `json:"latitude"`
			Longitude  string `json:"longitude"`
		} `json:"address"`
	} `json:"venue"`
}

type eventbriteEventsPage struct {
	Pagination struct {
		ObjectCount  int    `json:"object_count"`
		PageNumber   int    `json:"page_number"`
		PageCount    int    `json:"page_count"`
		Continuation string `json:"continuation"`
		HasMoreItems bool   `json:"has_more_items"`
	} `json:"pagination"`
	Events []eventbriteEvent `json:"events"`
}

// FetchGroup fetches the organizer record plus its event pages.
func (a *EventbriteAdapter) FetchGroup(ctx context.Context, identifier string) (*models.Group, error) {
	org, err := a.fetchOrganizer(ctx, identifier)
	if err != nil {
		return nil, err
	}

	group := &models.Group{
		ID:          org.ID,
		Name:        org.Name,
		Urlname:     utils.Slugify(org.Name),
		Link:        org.URL,
		MemberCount: org.NumFollowers,
	}
	if org.Logo != nil {
		group.Photo = org.Logo.URL
	}

	continuation := ""
	for page := 0; page < a.opts.PageCap; page++ {
		ep, err := a.fetchEventsPage(ctx, identifier, continuation)
		if err != nil {
			return nil, err
		}

		group.Events.TotalCount = ep.Pagination.ObjectCount
		for _, ev := range ep.Events {
			converted, err := a.convertEvent(ev)
			if err != nil {
				return nil, err
			}
			group.Events.Edges = append(group.Events.Edges, converted)
		}
		group.Events.PageInfo = models.PageInfo{
			EndCursor:   ep.Pagination.Continuation,
			HasNextPage: ep.Pagination.HasMoreItems,
		}

		if !ep.Pagination.HasMoreItems {
			break
		}
		continuation = ep.Pagination.Continuation
	}

	return group, nil
}

func (a *EventbriteAdapter) fetchOrganizer(ctx context.Context, id string) (*eventbriteOrganizer, error) {
	var org eventbriteOrganizer
	if err := a.get(ctx, fmt.Sprintf("/organizers/%s/", id), nil, &org); err != nil {
		return nil, err
	}
	return &org, nil
}

func (a *EventbriteAdapter) fetchEventsPage(ctx context.Context, id, continuation string) (*eventbriteEventsPage, error) {
	params := url.Values{}
	params.Set("expand", "venue,ticket_classes")
	params.Set("page_size", strconv.Itoa(a.opts.PageSize))
	if continuation != "" {
		params.Set("continuation", continuation)
	}

	var page eventbriteEventsPage
	if err := a.get(ctx, fmt.Sprintf("/organizers/%s/events/", id), params, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (a *EventbriteAdapter) get(ctx context.Context, path string, params url.Values, v any) error {
	u := a.opts.BaseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if a.opts.Token != "" {
		req.Header.Set("Authorization", "Bearer "+a.opts.Token)
	}

	resp, err := a.opts.Client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", path, err)
	}
	return decodeJSON(resp, v)
}

func (a *EventbriteAdapter) convertEvent(ev eventbriteEvent) (models.Event, error) {
	// Eventbrite has no direct attendee count; sold tickets across all
	// classes is the closest signal.
	going := 0
	for _, tc := range ev.TicketClasses {
		going += tc.QuantitySold
	}

	e := models.Event{
		ID:          ev.ID,
		Title:       ev.Name.Text,
		Status:      eventbriteStatus(ev.Status),
		URL:         ev.URL,
		Description: ev.Description.Text,
		GoingCount:  going,
		Mode:        models.EventModePhysical,
	}
	if ev.OnlineEvent {
		e.Mode = models.EventModeOnline
	}
	if ev.Start.UTC != "" {
		start, err := parseTime(ev.Start.UTC)
		if err != nil {
			return models.Event{}, fmt.Errorf("%w: event %s start %q", apperrors.ErrUnexpectedPayload, ev.ID, ev.Start.UTC)
		}
		e.StartTime = start.UTC()
		if end, err := parseTime(ev.End.UTC); err == nil && end.After(start) {
			e.Duration = end.Sub(start).String()
		}
	}
	if ev.Logo != nil {
		e.Photo = ev.Logo.URL
	}
	if ev.Venue != nil {
		venue := models.Venue{
			Name:       ev.Venue.Name,
			Address:    ev.Venue.Address.Address1,
			City:       ev.Venue.Address.City,
			State:      ev.Venue.Address.Region,
			PostalCode: ev.Venue.Address.PostalCode,
		}
		if lat, err := strconv.ParseFloat(ev.Venue.Address.Latitude, 64); err == nil {
			venue.Lat = lat
		}
		if lng, err := strconv.ParseFloat(ev.Venue.Address.Longitude, 64); err == nil {
			venue.Lng = lng
		}
		e.Venues = append(e.Venues, venue)
	}
	return e, nil
}

// eventbriteStatus maps Eventbrite event statuses onto the normalized set.
// Live, started, and ended events were all published, so they count as active.
func eventbriteStatus(s string) models.EventStatus {
	switch strings.ToLower(s) {
	case "canceled", "cancelled":
		return models.EventStatusCancelled
	case "draft":
		return models.EventStatusDraft
	default:
		return models.EventStatusActive
	}
}
