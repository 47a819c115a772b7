package nodes

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	contractx "github.com/loomlabs/loom-assistant/agent/contract"
)

// RunAgent tries the tool-calling loop. A failure leaves Message empty so
// the dispatch node takes over; the request never fails here.
func RunAgent(ctx context.Context, in *GraphState, runner contractx.AgentRunner) (*GraphState, error) {
	if in == nil {
		return nil, errors.New("graph state is nil")
	}
	if runner == nil || in.TaskType == contractx.TaskGreeting {
		return in, nil
	}

	out, err := runner.Run(ctx, in.agentRequest())
	if err != nil {
		log.Warn().Err(err).
			Str("task_type", string(in.TaskType)).
			Msg("agent loop failed, falling back to direct dispatch")
		return in, nil
	}

	in.Message = out.Message
	in.ToolsUsed = out.ToolsUsed
	in.Confidence = contractx.ConfidenceAgent
	return in, nil
}
