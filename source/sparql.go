package source

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html/charset"
)

// SPARQLClient runs SELECT queries against a SPARQL endpoint and decodes
// the XML results format.
type SPARQLClient struct {
	client *http.Client
}

// SPARQLOption configures a SPARQLClient.
type SPARQLOption func(*SPARQLClient)

// WithSPARQLTimeout overrides the HTTP timeout.
func WithSPARQLTimeout(d time.Duration) SPARQLOption {
	return func(c *SPARQLClient) { c.client.Timeout = d }
}

// NewSPARQLClient creates a SPARQL client.
func NewSPARQLClient(opts ...SPARQLOption) *SPARQLClient {
	c := &SPARQLClient{client: &http.Client{Timeout: defaultTimeout}}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ResultSet is a decoded SPARQL SELECT result: the projected variable
// names and one binding map per solution row.
type ResultSet struct {
	Variables []string
	Rows      []map[string]string
}

// sparqlResponse mirrors the SPARQL Query Results XML Format.
type sparqlResponse struct {
	XMLName xml.Name `xml:"sparql"`
	Head    struct {
		Variables []struct {
			Name string `xml:"name,attr"`
		} `xml:"variable"`
	} `xml:"head"`
	Results struct {
		Bindings []struct {
			Binding []struct {
				Name    string `xml:"name,attr"`
				URI     string `xml:"uri"`
				Literal string `xml:"literal"`
			} `xml:"binding"`
		} `xml:"result"`
	} `xml:"results"`
}

// Query posts a SELECT query to the endpoint and decodes the result set.
// Endpoints are free to answer in any declared charset; decoding goes
// through a charset-aware reader.
func (c *SPARQLClient) Query(ctx context.Context, endpoint, query string) (*ResultSet, error) {
	form := url.Values{"query": {query}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build sparql request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/sparql-results+xml")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("query endpoint %s: %w: %v", endpoint, ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("query endpoint %s: %w: server returned %s", endpoint, ErrUnavailable, resp.Status)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("query endpoint %s: server returned %s", endpoint, resp.Status)
	}

	decoder := xml.NewDecoder(resp.Body)
	decoder.CharsetReader = charset.NewReaderLabel

	var decoded sparqlResponse
	if err := decoder.Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode sparql results: %w", err)
	}

	rs := &ResultSet{}
	for _, v := range decoded.Head.Variables {
		rs.Variables = append(rs.Variables, v.Name)
	}
	for _, row := range decoded.Results.Bindings {
		bindings := make(map[string]string, len(row.Binding))
		for _, b := range row.Binding {
			value := b.URI
			if value == "" {
				value = b.Literal
			}
			bindings[b.Name] = value
		}
		rs.Rows = append(rs.Rows, bindings)
	}
	return rs, nil
}
