package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gatherhub/eventdir/config"
	apperrors "github.com/gatherhub/eventdir/internal/errors"
	"github.com/gatherhub/eventdir/internal/models"
)

// Adapter translates one provider's wire format into the normalized
// group/event shape. Implementations are a closed set selected by the
// configured platform kind; they signal every failure as an error and
// never panic the run.
type Adapter interface {
	Kind() models.PlatformKind
	FetchGroup(ctx context.Context, identifier string) (*models.Group, error)
}

// Options carries the per-adapter knobs shared by all providers.
type Options struct {
	BaseURL  string
	Token    string
	PageSize int
	PageCap  int
	Client   *http.Client
}

// Registry maps platform kinds to their adapters.
type Registry map[models.PlatformKind]Adapter

// NewRegistry builds the closed adapter set from configuration.
func NewRegistry(platforms config.PlatformsConfig, pipeline config.PipelineConfig) Registry {
	client := &http.Client{
		Timeout: pipeline.FetchTimeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	opts := func(baseURL, token string) Options {
		return Options{
			BaseURL:  baseURL,
			Token:    token,
			PageSize: pipeline.PageSize,
			PageCap:  pipeline.PageCap,
			Client:   client,
		}
	}

	return Registry{
		models.PlatformMeetup:     NewMeetupAdapter(opts(platforms.MeetupBaseURL, platforms.MeetupToken)),
		models.PlatformEventbrite: NewEventbriteAdapter(opts(platforms.EventbriteBaseURL, platforms.EventbriteToken)),
		models.PlatformLuma:       NewLumaAdapter(opts(platforms.LumaBaseURL, platforms.LumaToken)),
	}
}

// Lookup returns the adapter for a platform kind.
func (r Registry) Lookup(kind models.PlatformKind) (Adapter, error) {
	a, ok := r[kind]
	if !ok {
		return nil, fmt.Errorf("no adapter registered for platform %q", kind)
	}
	return a, nil
}

// Kinds returns the configured platform kinds.
func (r Registry) Kinds() []string {
	kinds := make([]string, 0, len(r))
	for k := range r {
		kinds = append(kinds, string(k))
	}
	return kinds
}

// decodeJSON reads an HTTP response into v, translating status codes and
// malformed bodies into the adapter error taxonomy.
func decodeJSON(resp *http.Response, v any) error {
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return apperrors.ErrGroupNotFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrUnexpectedPayload, err)
	}
	return nil
}

// parseTime accepts the ISO-8601 variants the providers emit.
func parseTime(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}
