// Package source provides clients for the external systems vocabularies
// are harvested from: PoolParty servers, SPARQL endpoints and locally
// uploaded files. Every network call is bounded by the client's timeout so
// a stuck endpoint cannot hang a pipeline run.
package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// defaultTimeout bounds harvest HTTP calls when the caller does not set one.
const defaultTimeout = 30 * time.Second

// PoolPartyClient fetches vocabulary exports from a PoolParty server.
type PoolPartyClient struct {
	baseURL  string
	username string
	password string
	client   *http.Client
}

// PoolPartyOption configures a PoolPartyClient.
type PoolPartyOption func(*PoolPartyClient)

// WithPoolPartyTimeout overrides the HTTP timeout.
func WithPoolPartyTimeout(d time.Duration) PoolPartyOption {
	return func(c *PoolPartyClient) { c.client.Timeout = d }
}

// NewPoolPartyClient creates a client for one PoolParty server. Username
// and password may be empty for unauthenticated servers.
func NewPoolPartyClient(baseURL, username, password string, opts ...PoolPartyOption) *PoolPartyClient {
	c := &PoolPartyClient{
		baseURL:  strings.TrimRight(baseURL, "/"),
		username: username,
		password: password,
		client:   &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetProjectExport fetches the export of one PoolParty project in the
// given serialization format (e.g. "application/json", "text/turtle").
func (c *PoolPartyClient) GetProjectExport(ctx context.Context, projectID, format string) ([]byte, error) {
	endpoint := fmt.Sprintf("%s/api/projects/%s/export?format=%s",
		c.baseURL, url.PathEscape(projectID), url.QueryEscape(format))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build export request: %w", err)
	}
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}
	req.Header.Set("Accept", format)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch project %s: %w: %v", projectID, ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("fetch project %s: %w: server returned %s", projectID, ErrUnavailable, resp.Status)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch project %s: server returned %s", projectID, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read export body: %w: %v", ErrUnavailable, err)
	}
	return data, nil
}
