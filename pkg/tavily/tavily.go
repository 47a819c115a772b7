// Package tavily wraps the hosted Tavily web-search API. Outbound calls are
// rate limited client-side; the hosted plan throttles hard otherwise.
package tavily

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

type Config struct {
	APIKey      string        `envconfig:"API_KEY" split_words:"true"`
	BaseURL     string        `envconfig:"BASE_URL" split_words:"true" default:"https://api.tavily.com"`
	Timeout     time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"10s"`
	MaxResults  int           `envconfig:"MAX_RESULTS" split_words:"true" default:"3"`
	SearchDepth string        `envconfig:"SEARCH_DEPTH" split_words:"true" default:"basic"`
	RatePerSec  float64       `envconfig:"RATE_PER_SEC" split_words:"true" default:"1"`
}

// Result is one search hit.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

// SearchResponse is the subset of the Tavily response the assistant uses.
type SearchResponse struct {
	Answer  string   `json:"answer,omitempty"`
	Results []Result `json:"results"`
}

type Client struct {
	baseURL     string
	apiKey      string
	maxResults  int
	searchDepth string
	httpClient  *http.Client
	limiter     *rate.Limiter
}

func NewClient(cfg Config) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("tavily api key is required")
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("tavily base url is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid tavily base url: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 3
	}
	perSec := cfg.RatePerSec
	if perSec <= 0 {
		perSec = 1
	}

	return &Client{
		baseURL:     baseURL,
		apiKey:      apiKey,
		maxResults:  maxResults,
		searchDepth: cfg.SearchDepth,
		httpClient:  &http.Client{Timeout: timeout},
		limiter:     rate.NewLimiter(rate.Limit(perSec), 1),
	}, nil
}

func MustNew(cfg Config) *Client {
	client, err := NewClient(cfg)
	if err != nil {
		panic(err)
	}
	return client
}

type searchRequest struct {
	Query         string `json:"query"`
	SearchDepth   string `json:"search_depth,omitempty"`
	IncludeAnswer bool   `json:"include_answer"`
	MaxResults    int    `json:"max_results"`
}

// Search queries the API and returns the parsed response.
func (c *Client) Search(ctx context.Context, query string) (*SearchResponse, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("search query is empty")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	body, err := json.Marshal(searchRequest{
		Query:         query,
		SearchDepth:   c.searchDepth,
		IncludeAnswer: true,
		MaxResults:    c.maxResults,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute search request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read search response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tavily status=%d body=%s", resp.StatusCode, string(raw))
	}

	var parsed SearchResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	return &parsed, nil
}

// Format renders a response the way the assistant presents search results.
func (r *SearchResponse) Format(query string) string {
	if r == nil || len(r.Results) == 0 {
		return fmt.Sprintf("No results found for '%s'", query)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Web search results for '%s':\n", query)
	if r.Answer != "" {
		fmt.Fprintf(&b, "\n%s\n", r.Answer)
	}
	for _, res := range r.Results {
		fmt.Fprintf(&b, "\n%s\n%s\nSource: %s\n", res.Title, res.Content, res.URL)
	}
	return strings.TrimRight(b.String(), "\n")
}
