package nodes

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"

	contractx "github.com/loomlabs/loom-assistant/agent/contract"
	"github.com/loomlabs/loom-assistant/agent/respond"
	toolx "github.com/loomlabs/loom-assistant/agent/tool"
)

const greetingReply = "Hello! I'm Loom, your personal assistant. I can help you with your preferences, notes, calendar, email, and more. What would you like to know?"

var dispatchTools = map[contractx.TaskType]string{
	contractx.TaskWebSearch:       toolx.NameWebSearch,
	contractx.TaskCalendar:        toolx.NameCalendar,
	contractx.TaskEmail:           toolx.NameEmail,
	contractx.TaskImageAnalysis:   toolx.NameImage,
	contractx.TaskMemoryRetrieval: toolx.NameMemory,
}

// Dispatch answers directly from the task type when the agent loop did not
// produce a reply. Failed tool calls surface their reason in the reply text.
func Dispatch(
	ctx context.Context,
	in *GraphState,
	gateway contractx.ToolGateway,
	responder contractx.Responder,
) (*GraphState, error) {
	if in == nil {
		return nil, errors.New("graph state is nil")
	}
	if in.Message != "" {
		return in, nil
	}

	switch in.TaskType {
	case contractx.TaskGreeting:
		in.Message = greetingReply
		in.Confidence = contractx.ConfidenceAgent
		return in, nil

	case contractx.TaskPreferenceQuery:
		return dispatchTool(ctx, in, gateway, toolx.NamePreference, map[string]any{
			toolx.ArgQuery:       in.Req.Message,
			toolx.ArgPreferences: in.Req.UserContext.Preferences,
		}, contractx.ConfidencePreference)

	case contractx.TaskGeneralChat:
		return dispatchChat(ctx, in, responder)

	default:
		name, ok := dispatchTools[in.TaskType]
		if !ok {
			return dispatchChat(ctx, in, responder)
		}
		return dispatchTool(ctx, in, gateway, name, map[string]any{
			toolx.ArgQuery:  in.Req.Message,
			toolx.ArgUserID: in.Req.UserID,
		}, contractx.ConfidenceDispatch)
	}
}

func dispatchTool(
	ctx context.Context,
	in *GraphState,
	gateway contractx.ToolGateway,
	name string,
	args map[string]any,
	confidence float64,
) (*GraphState, error) {
	if gateway == nil {
		in.Message = respondFallback(in)
		in.Confidence = contractx.ConfidenceFallback
		return in, nil
	}

	results, err := gateway.Execute(ctx, []contractx.ToolRequest{{Tool: name, Args: args}})
	if err != nil || len(results) == 0 {
		log.Error().Err(err).Str("tool", name).Msg("tool dispatch failed")
		in.TaskType = contractx.TaskError
		in.Message = "Something went wrong while handling your request. Please try again."
		in.Confidence = contractx.ConfidenceError
		return in, nil
	}

	res := results[0]
	in.ToolsUsed = append(in.ToolsUsed, res.Tool)
	if res.Error != "" {
		in.Message = res.Error
		in.Confidence = contractx.ConfidenceFallback
		return in, nil
	}
	// Tools may succeed with empty output, e.g. a vision model emitting only
	// whitespace. An empty reply would fail the request downstream.
	if strings.TrimSpace(res.Output) == "" {
		in.Message = "I couldn't find an answer for that. Could you rephrase your request?"
		in.Confidence = contractx.ConfidenceFallback
		return in, nil
	}
	in.Message = res.Output
	in.Confidence = confidence
	return in, nil
}

func dispatchChat(ctx context.Context, in *GraphState, responder contractx.Responder) (*GraphState, error) {
	if responder != nil {
		reply, err := responder.Respond(ctx, in.agentRequest(), in.TaskType)
		if err == nil {
			in.Message = reply
			in.Confidence = contractx.ConfidenceDispatch
			return in, nil
		}
		log.Warn().Err(err).Msg("contextual responder failed, using templated fallback")
	}

	in.Message = respondFallback(in)
	in.Confidence = contractx.ConfidenceFallback
	return in, nil
}

func respondFallback(in *GraphState) string {
	return respond.Fallback(in.agentRequest(), in.TaskType)
}
