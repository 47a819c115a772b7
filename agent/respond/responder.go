// Package respond generates the general-chat reply: a contextual completion
// against the local model, with a templated answer when the model is down.
package respond

import (
	"context"
	"fmt"
	"strings"

	openaisdk "github.com/openai/openai-go"

	contractx "github.com/loomlabs/loom-assistant/agent/contract"
	promptx "github.com/loomlabs/loom-assistant/agent/prompt"
)

// LLMResponder answers through the OpenAI-compatible chat endpoint.
type LLMResponder struct {
	client *openaisdk.Client
	model  string
}

var _ contractx.Responder = (*LLMResponder)(nil)

func NewLLMResponder(client *openaisdk.Client, model string) *LLMResponder {
	return &LLMResponder{client: client, model: model}
}

func (r *LLMResponder) Respond(ctx context.Context, req contractx.AgentRequest, taskType contractx.TaskType) (string, error) {
	if r == nil || r.client == nil {
		return "", fmt.Errorf("%w: chat model client", contractx.ErrToolUnavailable)
	}

	system := promptx.LoadPromptSet().Chat
	if ctxBlock := contextBlock(req); ctxBlock != "" {
		system += "\n\n" + ctxBlock
	}

	completion, err := r.client.Chat.Completions.New(ctx, openaisdk.ChatCompletionNewParams{
		Model: openaisdk.ChatModel(r.model),
		Messages: []openaisdk.ChatCompletionMessageParamUnion{
			openaisdk.SystemMessage(system),
			openaisdk.UserMessage(req.Message),
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: chat completion: %v", contractx.ErrModelInvoke, err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("%w: chat completion returned no choices", contractx.ErrModelInvoke)
	}

	content := strings.TrimSpace(completion.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("%w: chat completion is empty", contractx.ErrModelInvoke)
	}
	return content, nil
}

func contextBlock(req contractx.AgentRequest) string {
	var parts []string
	if req.MemorySummary != "" {
		parts = append(parts, "Relevant memories:\n"+req.MemorySummary)
	}
	if len(req.Window) > 0 {
		var b strings.Builder
		b.WriteString("Recent conversation:\n")
		for _, turn := range req.Window {
			b.WriteString("User: " + turn.Message + "\nAssistant: " + turn.Response + "\n")
		}
		parts = append(parts, strings.TrimRight(b.String(), "\n"))
	}
	if prefs := req.UserContext.Preferences; len(prefs) > 0 {
		var b strings.Builder
		b.WriteString("User preferences:\n")
		for _, p := range prefs {
			b.WriteString(fmt.Sprintf("- %s: %s\n", p.Key, p.Value))
		}
		parts = append(parts, strings.TrimRight(b.String(), "\n"))
	}
	return strings.Join(parts, "\n\n")
}

// Fallback is the templated reply used when the model cannot answer. The
// text acknowledges the detected task so the caller still gets a useful
// next step.
func Fallback(req contractx.AgentRequest, taskType contractx.TaskType) string {
	switch taskType {
	case contractx.TaskWebSearch:
		return "I can search the web for you, but the search service is not reachable right now. Please try again in a moment."
	case contractx.TaskCalendar:
		return "I can help with your calendar once the calendar connection is back. Please try again shortly."
	case contractx.TaskEmail:
		return "I can check your email once the mail connection is back. Please try again shortly."
	case contractx.TaskImageAnalysis:
		return "I can describe images once the vision model is running again."
	case contractx.TaskMemoryRetrieval:
		return "I can recall past conversations once my memory store is reachable again."
	case contractx.TaskPreferenceQuery:
		if n := len(req.UserContext.Preferences); n > 0 {
			return fmt.Sprintf("I found %d preferences in your profile, but I cannot analyze them in detail right now.", n)
		}
		return "I don't have any preferences stored for you yet."
	default:
		return "I'm here to help with questions, web searches, your calendar, email, and more. My language model is offline right now, so I can only give simple answers."
	}
}
