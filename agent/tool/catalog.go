// Package tool holds the assistant's tool registry: each tool wraps one
// external integration behind a name, a description and an Invoke method.
// Tools whose integration is not configured stay registered so the agent
// can name them, but answer with a "not configured" result.
package tool

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	contractx "github.com/loomlabs/loom-assistant/agent/contract"
)

// Canonical tool names. These appear verbatim in tools_used.
const (
	NameWebSearch  = "web_search"
	NameCalendar   = "calendar_management"
	NameEmail      = "email_management"
	NameImage      = "image_analysis"
	NameMemory     = "memory_retrieval"
	NamePreference = "preference_analysis"
)

// Args keys shared between the direct-dispatch path and the agent loop.
const (
	ArgQuery       = "query"
	ArgUserID      = "user_id"
	ArgPreferences = "preferences"
	ArgImage       = "image"
)

// Tool is one named integration.
type Tool interface {
	Name() string
	Description() string
	Available() bool
	Invoke(ctx context.Context, args map[string]any) (string, error)
}

// Registry implements contract.ToolGateway over an ordered tool list.
type Registry struct {
	tools []Tool
	index map[string]Tool
}

var _ contractx.ToolGateway = (*Registry)(nil)

func NewRegistry(tools ...Tool) *Registry {
	kept := make([]Tool, 0, len(tools))
	index := make(map[string]Tool, len(tools))
	for _, t := range tools {
		if t == nil || strings.TrimSpace(t.Name()) == "" {
			continue
		}
		kept = append(kept, t)
		index[t.Name()] = t
	}
	return &Registry{tools: kept, index: index}
}

// Names returns the registered tool names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for _, t := range r.tools {
		names = append(names, t.Name())
	}
	return names
}

// Lookup returns the named tool.
func (r *Registry) Lookup(name string) (Tool, bool) {
	t, ok := r.index[name]
	return t, ok
}

// Available reports whether the named tool exists and is configured.
func (r *Registry) Available(name string) bool {
	t, ok := r.index[name]
	return ok && t.Available()
}

// Execute invokes each request in order. Failures never abort the batch:
// every failure is reported in the matching result's Error field so the
// caller can surface the literal reason in the response text.
func (r *Registry) Execute(ctx context.Context, reqs []contractx.ToolRequest) ([]contractx.ToolResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	results := make([]contractx.ToolResult, 0, len(reqs))
	for _, req := range reqs {
		results = append(results, r.executeOne(ctx, req))
	}
	return results, nil
}

func (r *Registry) executeOne(ctx context.Context, req contractx.ToolRequest) (result contractx.ToolResult) {
	result.Tool = req.Tool

	// A misbehaving integration must degrade to an error result, not
	// take down the request.
	defer func() {
		if rec := recover(); rec != nil {
			result.Output = ""
			result.Error = fmt.Sprintf("tool %s panicked: %v", req.Tool, rec)
		}
	}()

	t, ok := r.index[req.Tool]
	if !ok {
		result.Error = fmt.Sprintf("tool %s is not registered", req.Tool)
		return result
	}
	if !t.Available() {
		result.Error = fmt.Sprintf("%s: %s", contractx.ErrToolUnavailable.Error(), req.Tool)
		return result
	}

	out, err := t.Invoke(ctx, req.Args)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.Output = out
	return result
}

// Infos describes the available tools for model binding. Unconfigured tools
// are excluded so the model never plans a call that cannot succeed.
func (r *Registry) Infos() []*schema.ToolInfo {
	infos := make([]*schema.ToolInfo, 0, len(r.tools))
	for _, t := range r.tools {
		if !t.Available() {
			continue
		}
		infos = append(infos, &schema.ToolInfo{
			Name: t.Name(),
			Desc: t.Description(),
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				ArgQuery: {Type: schema.String, Desc: "Natural language input for the tool", Required: true},
			}),
		})
	}
	return infos
}

func stringArg(args map[string]any, key string) string {
	if args == nil {
		return ""
	}
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}
