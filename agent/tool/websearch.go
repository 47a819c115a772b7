package tool

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tavilyx "github.com/loomlabs/loom-assistant/pkg/tavily"
)

// WebSearchTool wraps the Tavily search API. A nil client means the
// TAVILY_API_KEY was absent and the tool is disabled.
type WebSearchTool struct {
	client *tavilyx.Client
}

func NewWebSearchTool(client *tavilyx.Client) *WebSearchTool {
	return &WebSearchTool{client: client}
}

func (t *WebSearchTool) Name() string { return NameWebSearch }

func (t *WebSearchTool) Description() string {
	return "Search the web for current information, news, weather, etc."
}

func (t *WebSearchTool) Available() bool { return t != nil && t.client != nil }

func (t *WebSearchTool) Invoke(ctx context.Context, args map[string]any) (string, error) {
	query := strings.TrimSpace(stringArg(args, ArgQuery))
	if query == "" {
		return "", errors.New("web search query is empty")
	}
	if !t.Available() {
		return fmt.Sprintf("Web search not available. Query was: %s", query), nil
	}

	resp, err := t.client.Search(ctx, query)
	if err != nil {
		return "", fmt.Errorf("web search failed: %w", err)
	}
	return resp.Format(query), nil
}
