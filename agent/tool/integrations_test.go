package tool

import (
	"context"
	"encoding/base64"
	"strings"
	"testing"
)

func TestWebSearchToolWithoutClient(t *testing.T) {
	ws := NewWebSearchTool(nil)

	if ws.Available() {
		t.Fatal("tool with nil client must report unavailable")
	}
	out, err := ws.Invoke(context.Background(), map[string]any{ArgQuery: "latest news"})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if !strings.Contains(out, "latest news") {
		t.Errorf("output = %q, want the query echoed back", out)
	}
}

func TestWebSearchToolEmptyQuery(t *testing.T) {
	ws := NewWebSearchTool(nil)

	if _, err := ws.Invoke(context.Background(), nil); err == nil {
		t.Fatal("expected error for empty query")
	}
}

func TestCalendarToolWithoutService(t *testing.T) {
	ct := NewCalendarTool(nil)

	if ct.Available() {
		t.Fatal("tool with nil service must report unavailable")
	}
	out, err := ct.Invoke(context.Background(), map[string]any{ArgQuery: "what is on my calendar"})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if !strings.Contains(out, "not connected") {
		t.Errorf("output = %q, want not-connected message", out)
	}
}

func TestEmailToolWithoutService(t *testing.T) {
	et := NewEmailTool(nil)

	out, err := et.Invoke(context.Background(), map[string]any{ArgQuery: "any unread email?"})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if !strings.Contains(out, "not connected") {
		t.Errorf("output = %q, want not-connected message", out)
	}
}

func TestSearchQuery(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  string
	}{
		{name: "strips command words", query: "search my email for invoices", want: "invoices"},
		{name: "only command words falls back to inbox", query: "search my email", want: "in:inbox"},
		{name: "sender query kept", query: "find mail from:alice@example.com", want: "from:alice@example.com"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := searchQuery(tc.query); got != tc.want {
				t.Errorf("searchQuery(%q) = %q, want %q", tc.query, got, tc.want)
			}
		})
	}
}

func TestImageToolNoImageAttached(t *testing.T) {
	it := &ImageTool{client: nil}

	out, err := it.Invoke(context.Background(), map[string]any{ArgQuery: "what is in this picture"})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if !strings.Contains(out, "not available") {
		t.Errorf("output = %q, want unavailable message", out)
	}
}

func TestImageArg(t *testing.T) {
	raw := []byte{0x89, 0x50, 0x4e, 0x47}

	got, err := imageArg(map[string]any{ArgImage: raw})
	if err != nil {
		t.Fatalf("raw bytes: %v", err)
	}
	if string(got) != string(raw) {
		t.Error("raw bytes passed through incorrectly")
	}

	got, err = imageArg(map[string]any{ArgImage: base64.StdEncoding.EncodeToString(raw)})
	if err != nil {
		t.Fatalf("base64: %v", err)
	}
	if string(got) != string(raw) {
		t.Error("base64 payload decoded incorrectly")
	}

	if _, err = imageArg(map[string]any{ArgImage: "not base64!!"}); err == nil {
		t.Fatal("expected error for malformed base64")
	}

	got, err = imageArg(nil)
	if err != nil || got != nil {
		t.Fatalf("missing image: got %v, %v", got, err)
	}
}
