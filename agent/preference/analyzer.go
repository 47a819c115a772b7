// Package preference answers "what is my favorite X" style queries from the
// preference records carried in the user context. The original service had
// several diverging copies of this matching logic; this is the one shared
// implementation.
package preference

import (
	"fmt"
	"strings"

	contractx "github.com/loomlabs/loom-assistant/agent/contract"
)

// Analyze selects a stored preference by literal substring matching against
// topic keywords and reformats its value. When nothing matches it reports a
// count-only summary.
func Analyze(query string, prefs []contractx.PreferenceRecord) string {
	if len(prefs) == 0 {
		return "I don't have information about your preferences yet."
	}

	q := strings.ToLower(query)

	if strings.Contains(q, "tv series") || strings.Contains(q, "series") {
		if p, ok := match(prefs, "tv_series", "tv series"); ok {
			name := strings.TrimSpace(strings.TrimPrefix(p.Value, "tv series: "))
			return fmt.Sprintf("Your favorite TV series is: %s", name)
		}
	}

	// "singers" (plural) has stored data; the singular "singer?" never does.
	if strings.Contains(q, "singers") && !strings.Contains(q, "singer?") {
		if p, ok := match(prefs, "favorite_singers", "singers:"); ok {
			names := strings.TrimSpace(strings.TrimPrefix(p.Value, "singers: "))
			return fmt.Sprintf("Your favorite singers are: %s", names)
		}
	}

	if strings.Contains(q, "singer?") {
		return "I don't know your favorite singer."
	}

	if strings.Contains(q, "album") {
		if p, ok := match(prefs, "favorite_album", "album:"); ok {
			name := strings.TrimSpace(strings.TrimPrefix(p.Value, "album: "))
			return fmt.Sprintf("Your favorite album is: %s", name)
		}
	}

	if strings.Contains(q, "what do you know about me") {
		parts := make([]string, 0, len(prefs))
		for _, p := range prefs {
			parts = append(parts, fmt.Sprintf("%s: %s", p.Key, p.Value))
		}
		return fmt.Sprintf("Your preferences: %s", strings.Join(parts, "; "))
	}

	return fmt.Sprintf("I found %d preferences in your profile.", len(prefs))
}

// match returns the first record whose key contains keyNeedle or whose
// value contains valueNeedle (case-insensitive on the value side).
func match(prefs []contractx.PreferenceRecord, keyNeedle, valueNeedle string) (contractx.PreferenceRecord, bool) {
	for _, p := range prefs {
		if strings.Contains(p.Key, keyNeedle) || strings.Contains(strings.ToLower(p.Value), valueNeedle) {
			return p, true
		}
	}
	return contractx.PreferenceRecord{}, false
}
