// Package intent maps free-text user messages to task types by ordered
// keyword containment. The rule table is the single source of truth for
// match precedence: earlier rules win, and keyword-free messages fall
// through to general_chat.
package intent

import (
	"strings"

	contractx "github.com/loomlabs/loom-assistant/agent/contract"
)

// Rule binds a task type to the keywords that select it.
type Rule struct {
	Task     contractx.TaskType
	Keywords []string
}

// DefaultRules is the canonical precedence: preference queries are checked
// before web search so that "what's my favorite news site" stays a
// preference lookup, then calendar, email, image and memory retrieval.
var DefaultRules = []Rule{
	{Task: contractx.TaskPreferenceQuery, Keywords: []string{"favorite", "prefer", "like"}},
	{Task: contractx.TaskWebSearch, Keywords: []string{"weather", "news", "search"}},
	{Task: contractx.TaskCalendar, Keywords: []string{"calendar", "schedule", "event"}},
	{Task: contractx.TaskEmail, Keywords: []string{"email", "mail"}},
	{Task: contractx.TaskImageAnalysis, Keywords: []string{"image", "photo", "picture"}},
	{Task: contractx.TaskMemoryRetrieval, Keywords: []string{"remember", "memory", "recall"}},
}

var greetings = map[string]struct{}{
	"hi":    {},
	"hello": {},
	"hey":   {},
}

// KeywordClassifier implements contract.Classifier over an ordered rule set.
type KeywordClassifier struct {
	rules []Rule
}

// New returns a classifier over DefaultRules.
func New() *KeywordClassifier {
	return NewWithRules(DefaultRules)
}

// NewWithRules returns a classifier over a custom rule set; rules are
// evaluated in the given order, first match wins.
func NewWithRules(rules []Rule) *KeywordClassifier {
	return &KeywordClassifier{rules: rules}
}

// Classify returns exactly one task type for the message.
func (c *KeywordClassifier) Classify(message string) contractx.TaskType {
	normalized := strings.ToLower(strings.TrimSpace(message))
	if normalized == "" {
		return contractx.TaskGeneralChat
	}

	if _, ok := greetings[normalized]; ok {
		return contractx.TaskGreeting
	}

	for _, rule := range c.rules {
		for _, kw := range rule.Keywords {
			if strings.Contains(normalized, kw) {
				return rule.Task
			}
		}
	}
	return contractx.TaskGeneralChat
}
