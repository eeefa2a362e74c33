// Package sdk provides a thin Go client for the eventdir public API.
package sdk

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

type Client struct {
	BaseURL     string
	AdminSecret string
	HTTP        *http.Client
}

func New(baseURL, adminSecret string) *Client {
	if baseURL == "" {
		baseURL = "https://api.eventdir.example.com"
	}
	return &Client{BaseURL: baseURL, AdminSecret: adminSecret, HTTP: http.DefaultClient}
}

func (c *Client) getJSON(path string, params map[string]string) (map[string]interface{}, error) {
	u, err := url.Parse(c.BaseURL + path)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	for k, v := range params {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()

	resp, err := c.HTTP.Get(u.String())
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	var out map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// Status returns the aggregation status: configured platforms, groups,
// and the diagnostics of the most recent run.
func (c *Client) Status() (map[string]interface{}, error) {
	return c.getJSON("/v1/status", nil)
}

// Groups lists the aggregated groups.
func (c *Client) Groups(params map[string]string) (map[string]interface{}, error) {
	return c.getJSON("/v1/groups", params)
}

// Events lists aggregated events across all groups.
func (c *Client) Events(params map[string]string) (map[string]interface{}, error) {
	return c.getJSON("/v1/events", params)
}

// TriggerSync requests a manual aggregation run. It returns an error on
// HTTP 409, which the server sends while another run is in progress.
func (c *Client) TriggerSync() (map[string]interface{}, error) {
	req, err := http.NewRequest("POST", c.BaseURL+"/v1/admin/sync", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Admin-Secret", c.AdminSecret)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusConflict {
		return nil, fmt.Errorf("sync already in progress")
	}

	var out map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}
