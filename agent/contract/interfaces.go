package contract

import "context"

// Classifier maps free-text messages to exactly one task type.
type Classifier interface {
	Classify(message string) TaskType
}

// ToolGateway executes tool requests against the registry. Failures are
// reported per result, never as a gateway error, except for infrastructure
// faults (nil registry, cancelled context).
type ToolGateway interface {
	Execute(ctx context.Context, reqs []ToolRequest) ([]ToolResult, error)
	Names() []string
}

// AgentRunner is the tool-calling reasoning loop over an external model.
type AgentRunner interface {
	Run(ctx context.Context, req AgentRequest) (AgentResponse, error)
}

// MemoryStore adapts the vector store: Store writes one document, Search
// returns up to k nearest documents for the user, Stats aggregates counts.
type MemoryStore interface {
	Store(ctx context.Context, userID int64, document string, meta MemoryMetadata) (string, error)
	Search(ctx context.Context, userID int64, query string, k int) ([]MemoryRecord, error)
	Stats(ctx context.Context, userID int64) (MemoryStats, error)
}

// Responder generates a contextual reply when no tool applies.
type Responder interface {
	Respond(ctx context.Context, req AgentRequest, taskType TaskType) (string, error)
}
