package nodes

import (
	"errors"
	"strings"

	contractx "github.com/loomlabs/loom-assistant/agent/contract"
)

func FinalizeResponse(in *GraphState) (contractx.Response, error) {
	if in == nil {
		return contractx.Response{}, errors.New("graph state is nil")
	}
	if strings.TrimSpace(in.Message) == "" {
		return contractx.Response{}, errors.New("pipeline produced an empty reply")
	}

	toolsUsed := in.ToolsUsed
	if toolsUsed == nil {
		toolsUsed = []string{}
	}

	return contractx.Response{
		Response:      in.Message,
		Confidence:    in.Confidence,
		TaskType:      in.TaskType,
		MemoryUpdated: in.MemoryUpdated,
		ToolsUsed:     toolsUsed,
	}, nil
}
