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

// descriptionLimit caps event descriptions; Luma returns the full
// markdown body and the directory only renders a teaser.
const descriptionLimit = 2000

// LumaAdapter fetches calendars and their events from the Luma REST API.
type LumaAdapter struct {
	opts Options
}

// NewLumaAdapter creates a Luma adapter.
func NewLumaAdapter(opts Options) *LumaAdapter {
	return &LumaAdapter{opts: opts}
}

// Kind returns the platform kind.
func (a *LumaAdapter) Kind() models.PlatformKind {
	return models.PlatformLuma
}

type lumaCalendar struct {
	Calendar struct {
		APIID       string `json:"api_id"`
		Name        string `json:"name"`
		Slug        string `json:"slug"`
		URL         string `json:"url"`
		AvatarURL   string `json:"avatar_url"`
		MemberCount int    `json:"member_count"`
	} `json:"calendar"`
}

type lumaEntry struct {
	APIID string `json:"api_id"`
	Event struct {
		APIID       string `json:"api_id"`
		Name        string `json:"name"`
		StartAt     string `json:"start_at"`
		EndAt       string `json:"end_at"`
		URL         string `json:"url"`
		CoverURL    string `json:"cover_url"`
		Description string `json:"description_md"`
		MeetingURL  string `json:"meeting_url"`
		Visibility  string `json:"visibility"`
		CancelledAt string `json:"cancelled_at"`
		GuestCount  int    `json:"guest_count"`
		GeoAddress  *struct {
			Name       string `json:"name"`
			Address    string `json:"address"`
			City       string `json:"city"`
			Region     string `json:"region"`
			PostalCode string `json:"zip_code"`
			Latitude   string `json:"latitude"`
			Longitude  string `json:"longitude"`
		} `json:"geo_address_json"`
	} `json:"event"`
}

type lumaEntriesPage struct {
	Entries    []lumaEntry `json:"entries"`
	HasMore    bool        `json:"has_more"`
	NextCursor string      `json:"next_cursor"`
	TotalCount int         `json:"total_count"`
}

// FetchGroup fetches the calendar record plus its event pages.
func (a *LumaAdapter) FetchGroup(ctx context.Context, identifier string) (*models.Group, error) {
	var cal lumaCalendar
	params := url.Values{}
	params.Set("calendar_api_id", identifier)
	if err := a.get(ctx, "/calendar/get", params, &cal); err != nil {
		return nil, err
	}

	urlname := cal.Calendar.Slug
	if urlname == "" {
		urlname = utils.Slugify(cal.Calendar.Name)
	}
	group := &models.Group{
		ID:          cal.Calendar.APIID,
		Name:        cal.Calendar.Name,
		Urlname:     urlname,
		Link:        cal.Calendar.URL,
		Photo:       cal.Calendar.AvatarURL,
		MemberCount: cal.Calendar.MemberCount,
	}

	cursor := ""
	for page := 0; page < a.opts.PageCap; page++ {
		entries, err := a.fetchEntries(ctx, identifier, cursor)
		if err != nil {
			return nil, err
		}

		group.Events.TotalCount = entries.TotalCount
		for _, entry := range entries.Entries {
			converted, err := a.convertEvent(entry)
			if err != nil {
				return nil, err
			}
			group.Events.Edges = append(group.Events.Edges, converted)
		}
		group.Events.PageInfo = models.PageInfo{
			EndCursor:   entries.NextCursor,
			HasNextPage: entries.HasMore,
		}

		if !entries.HasMore {
			break
		}
		cursor = entries.NextCursor
	}
	if group.Events.TotalCount == 0 {
		group.Events.TotalCount = len(group.Events.Edges)
	}

	return group, nil
}

func (a *LumaAdapter) fetchEntries(ctx context.Context, identifier, cursor string) (*lumaEntriesPage, error) {
	params := url.Values{}
	params.Set("calendar_api_id", identifier)
	params.Set("pagination_limit", strconv.Itoa(a.opts.PageSize))
	if cursor != "" {
		params.Set("pagination_cursor", cursor)
	}

	var page lumaEntriesPage
	if err := a.get(ctx, "/calendar/list-events", params, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (a *LumaAdapter) get(ctx context.Context, path string, params url.Values, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.opts.BaseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if a.opts.Token != "" {
		req.Header.Set("x-luma-api-key", a.opts.Token)
	}

	resp, err := a.opts.Client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", path, err)
	}
	return decodeJSON(resp, v)
}

func (a *LumaAdapter) convertEvent(entry lumaEntry) (models.Event, error) {
	ev := entry.Event
	e := models.Event{
		ID:          ev.APIID,
		Title:       ev.Name,
		Status:      models.EventStatusActive,
		URL:         ev.URL,
		Description: utils.Truncate(ev.Description, descriptionLimit),
		Photo:       ev.CoverURL,
		GoingCount:  ev.GuestCount,
	}
	if ev.CancelledAt != "" {
		e.Status = models.EventStatusCancelled
	} else if strings.EqualFold(ev.Visibility, "draft") {
		e.Status = models.EventStatusDraft
	}
	if ev.StartAt != "" {
		start, err := parseTime(ev.StartAt)
		if err != nil {
			return models.Event{}, fmt.Errorf("%w: event %s start_at %q", apperrors.ErrUnexpectedPayload, ev.APIID, ev.StartAt)
		}
		e.StartTime = start.UTC()
		if end, err := parseTime(ev.EndAt); err == nil && end.After(start) {
			e.Duration = end.Sub(start).String()
		}
	}

	hasVenue := ev.GeoAddress != nil && ev.GeoAddress.Name != ""
	switch {
	case hasVenue && ev.MeetingURL != "":
		e.Mode = models.EventModeHybrid
	case ev.MeetingURL != "":
		e.Mode = models.EventModeOnline
	case hasVenue:
		e.Mode = models.EventModePhysical
	}
	if hasVenue {
		venue := models.Venue{
			Name:       ev.GeoAddress.Name,
			Address:    ev.GeoAddress.Address,
			City:       ev.GeoAddress.City,
			State:      ev.GeoAddress.Region,
			PostalCode: ev.GeoAddress.PostalCode,
		}
		if lat, err := strconv.ParseFloat(ev.GeoAddress.Latitude, 64); err == nil {
			venue.Lat = lat
		}
		if lng, err := strconv.ParseFloat(ev.GeoAddress.Longitude, 64); err == nil {
			venue.Lng = lng
		}
		e.Venues = append(e.Venues, venue)
	}
	return e, nil
}
