package tool

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	contractx "github.com/loomlabs/loom-assistant/agent/contract"
	"github.com/loomlabs/loom-assistant/agent/preference"
)

// MemoryTool answers recall questions from the vector memory store.
type MemoryTool struct {
	store contractx.MemoryStore
	limit int
}

func NewMemoryTool(store contractx.MemoryStore) *MemoryTool {
	return &MemoryTool{store: store, limit: 5}
}

func (t *MemoryTool) Name() string { return NameMemory }

func (t *MemoryTool) Description() string {
	return "Recall past conversations and stored facts about the user."
}

func (t *MemoryTool) Available() bool { return t != nil && t.store != nil }

func (t *MemoryTool) Invoke(ctx context.Context, args map[string]any) (string, error) {
	if !t.Available() {
		return "Memory is not available right now.", nil
	}

	userID, err := userIDArg(args)
	if err != nil {
		return "", err
	}

	query := strings.TrimSpace(stringArg(args, ArgQuery))
	records, err := t.store.Search(ctx, userID, query, t.limit)
	if err != nil {
		return "", fmt.Errorf("memory search failed: %w", err)
	}
	if len(records) == 0 {
		return "I don't have any memories stored for you yet.", nil
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("I found %d relevant memor%s:\n", len(records), plural(len(records), "y", "ies")))
	for _, rec := range records {
		b.WriteString("- " + strings.TrimSpace(rec.Document) + "\n")
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

// PreferenceTool answers preference questions from the records the
// orchestrator loaded for this user.
type PreferenceTool struct{}

func NewPreferenceTool() *PreferenceTool { return &PreferenceTool{} }

func (t *PreferenceTool) Name() string { return NamePreference }

func (t *PreferenceTool) Description() string {
	return "Answer questions about the user's stored preferences."
}

func (t *PreferenceTool) Available() bool { return t != nil }

func (t *PreferenceTool) Invoke(_ context.Context, args map[string]any) (string, error) {
	prefs, err := preferencesArg(args)
	if err != nil {
		return "", err
	}
	return preference.Analyze(stringArg(args, ArgQuery), prefs), nil
}

func userIDArg(args map[string]any) (int64, error) {
	raw, ok := args[ArgUserID]
	if !ok || raw == nil {
		return 0, fmt.Errorf("%s argument is required", ArgUserID)
	}
	switch v := raw.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case float64:
		return int64(v), nil
	case string:
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%s is not a valid integer: %w", ArgUserID, err)
		}
		return id, nil
	default:
		return 0, fmt.Errorf("%s has unsupported type %T", ArgUserID, raw)
	}
}

func preferencesArg(args map[string]any) ([]contractx.PreferenceRecord, error) {
	raw, ok := args[ArgPreferences]
	if !ok || raw == nil {
		return nil, nil
	}
	prefs, ok := raw.([]contractx.PreferenceRecord)
	if !ok {
		return nil, fmt.Errorf("%s has unsupported type %T", ArgPreferences, raw)
	}
	return prefs, nil
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
