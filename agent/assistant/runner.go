package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	einoprompt "github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	contractx "github.com/loomlabs/loom-assistant/agent/contract"
	promptx "github.com/loomlabs/loom-assistant/agent/prompt"
	toolx "github.com/loomlabs/loom-assistant/agent/tool"
)

const defaultMaxIterations = 4

// Runner is the tool-calling reasoning loop. Each iteration asks the model
// for either a final answer or tool calls, executes the calls through the
// registry, and feeds the results back until the model answers or the
// iteration cap is hit.
type Runner struct {
	modelRunner   compose.Runnable[map[string]any, *schema.Message]
	registry      *toolx.Registry
	maxIterations int
}

type Option func(*Runner)

func WithMaxIterations(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.maxIterations = n
		}
	}
}

func New(
	ctx context.Context,
	chatModel einomodel.ToolCallingChatModel,
	registry *toolx.Registry,
	opts ...Option,
) (*Runner, error) {
	if chatModel == nil {
		return nil, fmt.Errorf("%w: chat model is required", contractx.ErrValidation)
	}
	if registry == nil {
		return nil, fmt.Errorf("%w: tool registry is required", contractx.ErrValidation)
	}

	toolModel, err := chatModel.WithTools(registry.Infos())
	if err != nil {
		return nil, fmt.Errorf("%w: bind tools: %v", contractx.ErrModelInvoke, err)
	}
	modelRunner, err := compileModelGraph(ctx, toolModel)
	if err != nil {
		return nil, fmt.Errorf("%w: compile assistant graph: %v", contractx.ErrModelInvoke, err)
	}

	r := &Runner{
		modelRunner:   modelRunner,
		registry:      registry,
		maxIterations: defaultMaxIterations,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

func compileModelGraph(
	ctx context.Context,
	chatModel einomodel.BaseChatModel,
) (compose.Runnable[map[string]any, *schema.Message], error) {
	template := einoprompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("conversation", false),
	)

	graph := compose.NewGraph[map[string]any, *schema.Message]()
	if err := graph.AddChatTemplateNode("prompt", template); err != nil {
		return nil, fmt.Errorf("add assistant prompt node: %w", err)
	}
	if err := graph.AddChatModelNode("model", chatModel); err != nil {
		return nil, fmt.Errorf("add assistant model node: %w", err)
	}
	if err := graph.AddEdge(compose.START, "prompt"); err != nil {
		return nil, fmt.Errorf("add assistant edge start->prompt: %w", err)
	}
	if err := graph.AddEdge("prompt", "model"); err != nil {
		return nil, fmt.Errorf("add assistant edge prompt->model: %w", err)
	}
	if err := graph.AddEdge("model", compose.END); err != nil {
		return nil, fmt.Errorf("add assistant edge model->end: %w", err)
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("assistant.model_graph"))
	if err != nil {
		return nil, fmt.Errorf("compile assistant model graph: %w", err)
	}
	return runner, nil
}

func (r *Runner) Run(ctx context.Context, req contractx.AgentRequest) (contractx.AgentResponse, error) {
	if strings.TrimSpace(req.Message) == "" {
		return contractx.AgentResponse{}, fmt.Errorf("%w: message is empty", contractx.ErrValidation)
	}

	system := buildSystemPrompt(req)
	conversation := []*schema.Message{schema.UserMessage(req.Message)}
	var toolsUsed []string

	for i := 0; i < r.maxIterations; i++ {
		msg, err := r.modelRunner.Invoke(ctx, map[string]any{
			"system":       system,
			"conversation": conversation,
		})
		if err != nil {
			return contractx.AgentResponse{}, fmt.Errorf("%w: assistant invoke: %v", contractx.ErrModelInvoke, err)
		}
		if msg == nil {
			return contractx.AgentResponse{}, fmt.Errorf("%w: empty assistant response", contractx.ErrModelInvoke)
		}

		if len(msg.ToolCalls) == 0 {
			content := strings.TrimSpace(msg.Content)
			if content == "" {
				return contractx.AgentResponse{}, fmt.Errorf("%w: assistant returned empty answer", contractx.ErrModelInvoke)
			}
			return contractx.AgentResponse{Message: content, ToolsUsed: toolsUsed}, nil
		}

		conversation = append(conversation, msg)

		toolReqs, callIDs, err := toToolRequests(msg.ToolCalls)
		if err != nil {
			return contractx.AgentResponse{}, err
		}
		for _, tr := range toolReqs {
			injectContext(tr, req)
		}

		results, err := r.registry.Execute(ctx, toolReqs)
		if err != nil {
			return contractx.AgentResponse{}, err
		}
		for j, res := range results {
			toolsUsed = append(toolsUsed, res.Tool)
			content := res.Output
			if res.Error != "" {
				content = res.Error
			}
			conversation = append(conversation, schema.ToolMessage(content, callIDs[j]))
		}
	}

	return contractx.AgentResponse{}, fmt.Errorf("%w: no final answer after %d iterations", contractx.ErrModelInvoke, r.maxIterations)
}

// injectContext supplies the arguments the model cannot know: the caller's
// identity and their loaded preference records.
func injectContext(tr contractx.ToolRequest, req contractx.AgentRequest) {
	if _, ok := tr.Args[toolx.ArgUserID]; !ok {
		tr.Args[toolx.ArgUserID] = req.UserID
	}
	if tr.Tool == toolx.NamePreference {
		tr.Args[toolx.ArgPreferences] = req.UserContext.Preferences
	}
}

func toToolRequests(calls []schema.ToolCall) ([]contractx.ToolRequest, []string, error) {
	reqs := make([]contractx.ToolRequest, 0, len(calls))
	ids := make([]string, 0, len(calls))
	for _, call := range calls {
		name := strings.TrimSpace(call.Function.Name)
		if name == "" {
			return nil, nil, fmt.Errorf("%w: tool call name is empty", contractx.ErrModelInvoke)
		}

		args := map[string]any{}
		rawArgs := strings.TrimSpace(call.Function.Arguments)
		if rawArgs != "" {
			if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
				return nil, nil, fmt.Errorf("%w: invalid args for tool=%s: %v", contractx.ErrModelInvoke, name, err)
			}
		}

		reqs = append(reqs, contractx.ToolRequest{Tool: name, Args: args})
		ids = append(ids, call.ID)
	}
	return reqs, ids, nil
}

func buildSystemPrompt(req contractx.AgentRequest) string {
	var b strings.Builder
	b.WriteString(promptx.LoadPromptSet().Assistant)

	if req.MemorySummary != "" {
		b.WriteString("\n\nRelevant memories:\n")
		b.WriteString(req.MemorySummary)
	}
	if len(req.Window) > 0 {
		b.WriteString("\n\nRecent conversation:\n")
		for _, turn := range req.Window {
			b.WriteString("User: " + turn.Message + "\n")
			b.WriteString("Assistant: " + turn.Response + "\n")
		}
	}
	if ctx := formatUserContext(req.UserContext); ctx != "" {
		b.WriteString("\n\nKnown user context:\n")
		b.WriteString(ctx)
	}
	return b.String()
}

func formatUserContext(uc contractx.UserContext) string {
	var lines []string
	for _, p := range uc.Preferences {
		lines = append(lines, fmt.Sprintf("- preference %s: %s", p.Key, p.Value))
	}
	for _, n := range uc.Notes {
		lines = append(lines, "- note: "+n.Title)
	}
	for _, e := range uc.Events {
		lines = append(lines, "- event: "+e.Title)
	}
	for _, m := range uc.Media {
		lines = append(lines, "- media: "+m.Filename)
	}
	for _, e := range uc.Emails {
		lines = append(lines, "- email: "+e.Subject)
	}
	return strings.Join(lines, "\n")
}
