package prompt

import (
	_ "embed"
	"strings"
)

var (
	//go:embed template/assistant.txt
	assistantRaw string

	//go:embed template/chat.txt
	chatRaw string
)

// PromptSet holds loaded prompt content.
type PromptSet struct {
	Assistant string
	Chat      string
}

// LoadPromptSet returns a PromptSet with trimmed prompt strings.
// This is safe to call concurrently; the embed is compile-time, and trimming is cheap.
func LoadPromptSet() PromptSet {
	return PromptSet{
		Assistant: strings.TrimSpace(assistantRaw),
		Chat:      strings.TrimSpace(chatRaw),
	}
}
