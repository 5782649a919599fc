// Package wikipedia implements ports.EvidenceSource against the Wikipedia
// REST and action APIs.
package wikipedia

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/aretw0/director/pkg/ports"
)

const (
	// DefaultLanguage is the wiki edition queried when none is set.
	DefaultLanguage = "ja"
	// DefaultTimeout bounds a single HTTP request.
	DefaultTimeout = 5 * time.Second

	userAgent    = "director/1.0 (conversation fact checking)"
	maxBodyBytes = 1 << 20
)

// Client is an Evidence Source backed by Wikipedia.
type Client struct {
	language string
	baseURL  string
	http     *http.Client
	logger   *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithLanguage selects the wiki edition, e.g. "en" or "ja".
func WithLanguage(lang string) Option {
	return func(c *Client) {
		c.language = lang
	}
}

// WithBaseURL overrides https://<lang>.wikipedia.org, for tests and mirrors.
func WithBaseURL(base string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(base, "/")
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a Client.
func New(opts ...Option) *Client {
	c := &Client{
		language: DefaultLanguage,
		http:     &http.Client{Timeout: DefaultTimeout},
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.baseURL == "" {
		c.baseURL = "https://" + c.language + ".wikipedia.org"
	}
	return c
}

type summaryResponse struct {
	Type        string `json:"type"`
	Title       string `json:"title"`
	Extract     string `json:"extract"`
	ContentURLs struct {
		Desktop struct {
			Page string `json:"page"`
		} `json:"desktop"`
	} `json:"content_urls"`
}

// FetchSummary returns the lead section of the page titled title. A missing
// page is SummaryMissing; any page type other than standard and
// disambiguation is reported as disambiguation so it never verifies.
func (c *Client) FetchSummary(ctx context.Context, title string) (ports.Summary, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return ports.Summary{Kind: ports.SummaryMissing}, nil
	}
	endpoint := c.baseURL + "/api/rest_v1/page/summary/" + url.PathEscape(strings.ReplaceAll(title, " ", "_"))

	var body summaryResponse
	status, err := c.getJSON(ctx, endpoint, &body)
	if err != nil {
		return ports.Summary{}, err
	}
	if status == http.StatusNotFound {
		return ports.Summary{Kind: ports.SummaryMissing, Title: title}, nil
	}

	s := ports.Summary{
		Title:   body.Title,
		URL:     body.ContentURLs.Desktop.Page,
		Extract: body.Extract,
	}
	switch body.Type {
	case "standard":
		s.Kind = ports.SummaryStandard
	case "no-extract", "":
		s.Kind = ports.SummaryMissing
	default:
		s.Kind = ports.SummaryDisambiguation
	}
	return s, nil
}

type searchResponse struct {
	Query struct {
		Search []struct {
			Title   string `json:"title"`
			Snippet string `json:"snippet"`
		} `json:"search"`
	} `json:"query"`
}

// SearchSnippets runs a full-text search and returns plain-text excerpts.
func (c *Client) SearchSnippets(ctx context.Context, query string, limit int) ([]ports.Snippet, error) {
	query = strings.TrimSpace(query)
	if query == "" || limit <= 0 {
		return nil, nil
	}
	params := url.Values{
		"action":   {"query"},
		"list":     {"search"},
		"srsearch": {query},
		"srlimit":  {strconv.Itoa(limit)},
		"format":   {"json"},
		"utf8":     {"1"},
	}

	var body searchResponse
	status, err := c.getJSON(ctx, c.baseURL+"/w/api.php?"+params.Encode(), &body)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, nil
	}

	out := make([]ports.Snippet, 0, len(body.Query.Search))
	for _, hit := range body.Query.Search {
		if len(out) == limit {
			break
		}
		out = append(out, ports.Snippet{
			Title:   hit.Title,
			URL:     c.pageURL(hit.Title),
			Excerpt: plainText(hit.Snippet),
		})
	}
	return out, nil
}

func (c *Client) pageURL(title string) string {
	return c.baseURL + "/wiki/" + url.PathEscape(strings.ReplaceAll(title, " ", "_"))
}

// getJSON decodes a 200 answer into out. 404 is returned as a status, not an error.
func (c *Client) getJSON(ctx context.Context, endpoint string, out any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("wikipedia request failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return resp.StatusCode, nil
	default:
		c.logger.Warn("wikipedia answered with an error", "status", resp.StatusCode, "url", endpoint)
		return resp.StatusCode, fmt.Errorf("wikipedia returned HTTP %d", resp.StatusCode)
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("failed to decode wikipedia response: %w", err)
	}
	return resp.StatusCode, nil
}

// plainText drops the search-match markup from an excerpt.
func plainText(fragment string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<body>" + fragment + "</body>"))
	if err != nil {
		return fragment
	}
	return strings.Join(strings.Fields(doc.Find("body").Text()), " ")
}
