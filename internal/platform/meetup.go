package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	apperrors "github.com/gatherhub/eventdir/internal/errors"
	"github.com/gatherhub/eventdir/internal/models"
)

// groupQuery fetches a group and one page of its upcoming events.
const groupQuery = `
query ($urlname: String!, $itemsNum: Int!, $cursor: String) {
  groupByUrlname(urlname: $urlname) {
    id
    name
    urlname
    link
    memberCount: stats { memberCounts { all } }
    groupPhoto { baseUrl }
    events: upcomingEvents(input: { first: $itemsNum, after: $cursor }) {
      count
      pageInfo { endCursor hasNextPage }
      edges {
        node {
          id
          title
          dateTime
          duration
          status
          eventUrl
          description
          eventType
          going
          featuredEventPhoto { baseUrl }
          venues { name address city state postalCode lat lng }
        }
      }
    }
  }
}`

// MeetupAdapter fetches groups from the Meetup GraphQL API.
type MeetupAdapter struct {
	opts Options
}

// NewMeetupAdapter creates a Meetup adapter.
func NewMeetupAdapter(opts Options) *MeetupAdapter {
	return &MeetupAdapter{opts: opts}
}

// Kind returns the platform kind.
func (a *MeetupAdapter) Kind() models.PlatformKind {
	return models.PlatformMeetup
}

type meetupVenue struct {
	Name       string  `json:"name"`
	Address    string  `json:"address"`
	City       string  `json:"city"`
	State      string  `json:"state"`
	PostalCode string  `json:"postalCode"`
	Lat        float64 `json:"lat"`
	Lng        float64 `json:"lng"`
}

type meetupEventNode struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	DateTime    string `json:"dateTime"`
	Duration    string `json:"duration"`
	Status      string `json:"status"`
	EventURL    string `json:"eventUrl"`
	Description string `json:"description"`
	EventType   string `json:"eventType"`
	Going       int    `json:"going"`
	Photo       *struct {
		BaseURL string `json:"baseUrl"`
	} `json:"featuredEventPhoto"`
	Venues []meetupVenue `json:"venues"`
}

type meetupGroup struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Urlname string `json:"urlname"`
	Link    string `json:"link"`
	Stats   *struct {
		MemberCounts struct {
			All int `json:"all"`
		} `json:"memberCounts"`
	} `json:"memberCount"`
	GroupPhoto *struct {
		BaseURL string `json:"baseUrl"`
	} `json:"groupPhoto"`
	Events struct {
		Count    int `json:"count"`
		PageInfo struct {
			EndCursor   string `json:"endCursor"`
			HasNextPage bool   `json:"hasNextPage"`
		} `json:"pageInfo"`
		Edges []struct {
			Node meetupEventNode `json:"node"`
		} `json:"edges"`
	} `json:"events"`
}

type meetupResponse struct {
	Data struct {
		GroupByUrlname *meetupGroup `json:"groupByUrlname"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// FetchGroup fetches a group and all its event pages up to the page cap.
func (a *MeetupAdapter) FetchGroup(ctx context.Context, identifier string) (*models.Group, error) {
	var group *models.Group
	cursor := ""

	for page := 0; page < a.opts.PageCap; page++ {
		mg, err := a.fetchPage(ctx, identifier, cursor)
		if err != nil {
			return nil, err
		}

		if group == nil {
			group = a.convertGroup(mg)
		}
		for _, edge := range mg.Events.Edges {
			converted, err := a.convertEvent(edge.Node)
			if err != nil {
				return nil, err
			}
			group.Events.Edges = append(group.Events.Edges, converted)
		}
		group.Events.PageInfo = models.PageInfo{
			EndCursor:   mg.Events.PageInfo.EndCursor,
			HasNextPage: mg.Events.PageInfo.HasNextPage,
		}

		if !mg.Events.PageInfo.HasNextPage {
			break
		}
		cursor = mg.Events.PageInfo.EndCursor
	}

	return group, nil
}

// fetchPage issues one GraphQL call for a group and a single event page.
func (a *MeetupAdapter) fetchPage(ctx context.Context, urlname, cursor string) (*meetupGroup, error) {
	variables := map[string]any{
		"urlname":  urlname,
		"itemsNum": a.opts.PageSize,
	}
	if cursor != "" {
		variables["cursor"] = cursor
	}

	payload, err := json.Marshal(map[string]any{
		"query":     groupQuery,
		"variables": variables,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.opts.BaseURL+"/gql", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if a.opts.Token != "" {
		req.Header.Set("Authorization", "Bearer "+a.opts.Token)
	}

	resp, err := a.opts.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch group: %w", err)
	}

	var mr meetupResponse
	if err := decodeJSON(resp, &mr); err != nil {
		return nil, err
	}

	if len(mr.Errors) > 0 {
		return nil, fmt.Errorf("graphql error: %s", mr.Errors[0].Message)
	}
	if mr.Data.GroupByUrlname == nil {
		return nil, apperrors.ErrGroupNotFound
	}
	return mr.Data.GroupByUrlname, nil
}

func (a *MeetupAdapter) convertGroup(mg *meetupGroup) *models.Group {
	g := &models.Group{
		ID:      mg.ID,
		Name:    mg.Name,
		Urlname: mg.Urlname,
		Link:    mg.Link,
		Events: models.EventsPage{
			TotalCount: mg.Events.Count,
		},
	}
	if mg.GroupPhoto != nil {
		g.Photo = mg.GroupPhoto.BaseURL
	}
	if mg.Stats != nil {
		g.MemberCount = mg.Stats.MemberCounts.All
	}
	return g
}

func (a *MeetupAdapter) convertEvent(node meetupEventNode) (models.Event, error) {
	e := models.Event{
		ID:          node.ID,
		Title:       node.Title,
		Status:      meetupStatus(node.Status),
		URL:         node.EventURL,
		Description: node.Description,
		Duration:    node.Duration,
		Mode:        meetupMode(node.EventType),
		GoingCount:  node.Going,
	}
	if node.DateTime != "" {
		t, err := parseTime(node.DateTime)
		if err != nil {
			return models.Event{}, fmt.Errorf("%w: event %s dateTime %q", apperrors.ErrUnexpectedPayload, node.ID, node.DateTime)
		}
		e.StartTime = t.UTC()
	}
	if node.Photo != nil {
		e.Photo = node.Photo.BaseURL
	}
	for _, v := range node.Venues {
		e.Venues = append(e.Venues, models.Venue{
			Name:       v.Name,
			Address:    v.Address,
			City:       v.City,
			State:      v.State,
			PostalCode: v.PostalCode,
			Lat:        v.Lat,
			Lng:        v.Lng,
		})
	}
	return e, nil
}

// meetupStatus maps Meetup event statuses onto the normalized set.
func meetupStatus(s string) models.EventStatus {
	switch strings.ToLower(s) {
	case "cancelled", "canceled":
		return models.EventStatusCancelled
	case "draft":
		return models.EventStatusDraft
	default:
		return models.EventStatusActive
	}
}

// meetupMode maps Meetup event types onto the normalized set.
func meetupMode(s string) models.EventMode {
	switch strings.ToLower(s) {
	case "online":
		return models.EventModeOnline
	case "hybrid":
		return models.EventModeHybrid
	case "physical":
		return models.EventModePhysical
	default:
		return ""
	}
}
