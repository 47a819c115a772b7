package tavily

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewClientRequiresKey(t *testing.T) {
	if _, err := NewClient(Config{}); err == nil {
		t.Fatal("want error for missing api key")
	}
}

func TestSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", got)
		}

		var req searchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if !req.IncludeAnswer {
			t.Error("include_answer should be set")
		}
		if req.MaxResults != 3 {
			t.Errorf("max_results = %d, want 3", req.MaxResults)
		}

		json.NewEncoder(w).Encode(SearchResponse{
			Answer: "It is sunny.",
			Results: []Result{
				{Title: "Weather", URL: "https://example.com", Content: "Sunny, 21C"},
			},
		})
	}))
	defer srv.Close()

	client := MustNew(Config{APIKey: "test-key", BaseURL: srv.URL, RatePerSec: 100})
	resp, err := client.Search(context.Background(), "weather berlin")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(resp.Results) != 1 {
		t.Fatalf("got %d results, want 1", len(resp.Results))
	}

	formatted := resp.Format("weather berlin")
	for _, want := range []string{"weather berlin", "It is sunny.", "Sunny, 21C", "https://example.com"} {
		if !strings.Contains(formatted, want) {
			t.Errorf("formatted output missing %q:\n%s", want, formatted)
		}
	}
}

func TestSearchUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := MustNew(Config{APIKey: "k", BaseURL: srv.URL, RatePerSec: 100})
	if _, err := client.Search(context.Background(), "anything"); err == nil {
		t.Fatal("want error for non-200 response")
	}
}

func TestFormatEmpty(t *testing.T) {
	var resp SearchResponse
	got := resp.Format("nothing")
	if got != "No results found for 'nothing'" {
		t.Fatalf("unexpected empty formatting: %q", got)
	}
}
