package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Check is a registered monitoring check.
type Check struct {
	ID      string
	PingURL string
}

// Monitor talks to a healthchecks.io compatible management API.
type Monitor struct {
	base   string
	key    string
	client *http.Client
}

func NewMonitor(baseURL, apiKey string, client *http.Client) *Monitor {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Monitor{base: strings.TrimRight(baseURL, "/"), key: apiKey, client: client}
}

type createCheckRequest struct {
	Name     string   `json:"name"`
	Schedule string   `json:"schedule"`
	Timezone string   `json:"tz"`
	Grace    int      `json:"grace"`
	Unique   []string `json:"unique,omitempty"`
}

type checkResponse struct {
	PingURL string `json:"ping_url"`
	UUID    string `json:"uuid"`
}

// CreateCheck registers a cron-style check.
func (m *Monitor) CreateCheck(ctx context.Context, name, schedule, tz string, grace time.Duration) (Check, error) {
	body, err := json.Marshal(createCheckRequest{
		Name:     name,
		Schedule: schedule,
		Timezone: tz,
		Grace:    int(grace.Seconds()),
		Unique:   []string{"name"},
	})
	if err != nil {
		return Check{}, err
	}
	resp, err := m.do(ctx, http.MethodPost, m.base+"/checks/", body)
	if err != nil {
		return Check{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return Check{}, fmt.Errorf("create check %q: status %d", name, resp.StatusCode)
	}
	var out checkResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Check{}, fmt.Errorf("decode check: %w", err)
	}
	id := out.UUID
	if id == "" {
		id = out.PingURL[strings.LastIndex(out.PingURL, "/")+1:]
	}
	return Check{ID: id, PingURL: out.PingURL}, nil
}

// Ping signals a successful run.
func (m *Monitor) Ping(ctx context.Context, pingURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pingURL, nil)
	if err != nil {
		return err
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 300 {
		return fmt.Errorf("ping: status %d", resp.StatusCode)
	}
	return nil
}

// Delete removes a check; an already missing check is not an error.
func (m *Monitor) Delete(ctx context.Context, id string) error {
	resp, err := m.do(ctx, http.MethodDelete, m.base+"/checks/"+id, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("delete check %s: status %d", id, resp.StatusCode)
	}
	return nil
}

func (m *Monitor) do(ctx context.Context, method, url string, body []byte) (*http.Response, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rd)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Api-Key", m.key)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, url, err)
	}
	return resp, nil
}
