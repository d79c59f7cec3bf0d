package sonar

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// CreateResult says what EnsureProject had to do.
type CreateResult int

const (
	CreateResultUnknown CreateResult = iota
	ProjectCreated
	ProjectAlreadyExists
)

func (r CreateResult) String() string {
	switch r {
	case ProjectCreated:
		return "created"
	case ProjectAlreadyExists:
		return "already-exists"
	default:
		return "unknown"
	}
}

type searchResponse struct {
	Paging struct {
		Total int `json:"total"`
	} `json:"paging"`
}

type errorResponse struct {
	Errors []struct {
		Msg string `json:"msg"`
	} `json:"errors"`
}

// Exists reports whether a project with the given key is registered on the
// server. Concurrent lookups for the same key are collapsed into one request
// and positive answers are memoized for the life of the client.
func (c *Client) Exists(ctx context.Context, projectKey string) (bool, error) {
	if c.known.has(projectKey) {
		return true, nil
	}
	v, err, _ := c.lookups.Do(projectKey, func() (interface{}, error) {
		return c.searchProject(ctx, projectKey)
	})
	if err != nil {
		return false, err
	}
	exists := v.(bool)
	if exists {
		c.known.put(projectKey)
	}
	return exists, nil
}

func (c *Client) searchProject(ctx context.Context, projectKey string) (bool, error) {
	resp, err := c.do(ctx, func() (*http.Request, error) {
		q := url.Values{"projects": {projectKey}}
		u := c.host + "/api/projects/search?" + q.Encode()
		return http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	})
	if err != nil {
		return false, fmt.Errorf("search project %s: %w", projectKey, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("search project %s: %w: unexpected status %d", projectKey, ErrServerUnreachable, resp.StatusCode)
	}
	var body searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false, fmt.Errorf("search project %s: %w: decode response: %v", projectKey, ErrServerUnreachable, err)
	}
	return body.Paging.Total > 0, nil
}

// EnsureProject makes sure a project with the given key exists, creating it
// with the given display name when it does not. It is idempotent: a key that
// is already registered, or that a concurrent run registers first, reports
// ProjectAlreadyExists.
func (c *Client) EnsureProject(ctx context.Context, projectKey, displayName string) (CreateResult, error) {
	exists, err := c.Exists(ctx, projectKey)
	if err != nil {
		return CreateResultUnknown, err
	}
	if exists {
		return ProjectAlreadyExists, nil
	}

	resp, err := c.do(ctx, func() (*http.Request, error) {
		form := url.Values{
			"project": {projectKey},
			"name":    {displayName},
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+"/api/projects/create", strings.NewReader(form.Encode()))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	})
	if err != nil {
		return CreateResultUnknown, fmt.Errorf("create project %s: %w", projectKey, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusNoContent:
		c.known.put(projectKey)
		return ProjectCreated, nil
	case isAlreadyExists(resp):
		c.known.put(projectKey)
		return ProjectAlreadyExists, nil
	default:
		return CreateResultUnknown, fmt.Errorf("create project %s: %w: unexpected status %d", projectKey, ErrServerUnreachable, resp.StatusCode)
	}
}

// isAlreadyExists detects the server's duplicate-key rejection, which it
// reports as a 400 with a structured error message.
func isAlreadyExists(resp *http.Response) bool {
	if resp.StatusCode != http.StatusBadRequest && resp.StatusCode != http.StatusConflict {
		return false
	}
	var body errorResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body); err != nil {
		return false
	}
	for _, e := range body.Errors {
		if strings.Contains(strings.ToLower(e.Msg), "already exists") {
			return true
		}
	}
	return false
}
