package nodes

import (
	"errors"
	"strings"
	"time"

	contractx "github.com/loomlabs/loom-assistant/agent/contract"
)

var (
	ErrInvalidMessage = errors.New("message is empty")
	ErrInvalidUser    = errors.New("user id must be positive")
)

// GraphState is threaded through the pipeline. Each node fills in its part
// and hands the state to the next one.
type GraphState struct {
	Req contractx.Request
	Now time.Time

	TaskType      contractx.TaskType
	MemorySummary string
	Window        []contractx.Turn

	Message       string
	Confidence    float64
	ToolsUsed     []string
	MemoryUpdated bool
}

func ValidateRequest(in contractx.Request, nowFn func() time.Time) (*GraphState, error) {
	if strings.TrimSpace(in.Message) == "" {
		return nil, ErrInvalidMessage
	}
	if in.UserID <= 0 {
		return nil, ErrInvalidUser
	}

	in.Message = strings.TrimSpace(in.Message)
	return &GraphState{
		Req: in,
		Now: nowFn().UTC(),
	}, nil
}

func ClassifyIntent(in *GraphState, classifier contractx.Classifier) (*GraphState, error) {
	if in == nil {
		return nil, errors.New("graph state is nil")
	}
	in.TaskType = classifier.Classify(in.Req.Message)
	return in, nil
}

// agentRequest assembles the prompt context collected so far.
func (s *GraphState) agentRequest() contractx.AgentRequest {
	return contractx.AgentRequest{
		Message:       s.Req.Message,
		UserID:        s.Req.UserID,
		MemorySummary: s.MemorySummary,
		Window:        s.Window,
		UserContext:   s.Req.UserContext,
	}
}
