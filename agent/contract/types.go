package contract

import "time"

// TaskType is the intent label assigned to an incoming message.
type TaskType string

const (
	TaskPreferenceQuery TaskType = "preference_query"
	TaskWebSearch       TaskType = "web_search"
	TaskCalendar        TaskType = "calendar_management"
	TaskEmail           TaskType = "email_management"
	TaskImageAnalysis   TaskType = "image_analysis"
	TaskMemoryRetrieval TaskType = "memory_retrieval"
	TaskGreeting        TaskType = "greeting"
	TaskGeneralChat     TaskType = "general_chat"
	TaskError           TaskType = "error"
)

// Confidence levels reported per response path.
const (
	ConfidenceAgent      = 0.9
	ConfidencePreference = 0.85
	ConfidenceDispatch   = 0.8
	ConfidenceFallback   = 0.7
	ConfidenceError      = 0.5
)

// Request is the inbound chat payload.
type Request struct {
	Message     string      `json:"message"`
	UserID      int64       `json:"user_id"`
	UserContext UserContext `json:"user_context"`
	TaskType    TaskType    `json:"task_type,omitempty"`
}

// Response is the fixed-shape record returned to the caller.
type Response struct {
	Response      string   `json:"response"`
	Confidence    float64  `json:"confidence"`
	TaskType      TaskType `json:"task_type"`
	MemoryUpdated bool     `json:"memory_updated"`
	ToolsUsed     []string `json:"tools_used"`
}

// UserContext is the open-ended bag of user data the frontend attaches to
// every request. Each field is an ordered sequence of records.
type UserContext struct {
	Preferences []PreferenceRecord `json:"preferences,omitempty"`
	Notes       []NoteRecord       `json:"notes,omitempty"`
	Events      []EventRecord      `json:"events,omitempty"`
	Media       []MediaRecord      `json:"media,omitempty"`
	Emails      []EmailRecord      `json:"emails,omitempty"`
}

type PreferenceRecord struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type NoteRecord struct {
	Title string `json:"title"`
	Body  string `json:"body,omitempty"`
}

type EventRecord struct {
	Title    string    `json:"title"`
	StartsAt time.Time `json:"starts_at,omitempty"`
}

type MediaRecord struct {
	Filename string `json:"filename"`
}

type EmailRecord struct {
	Subject string `json:"subject"`
	From    string `json:"from,omitempty"`
}

// ToolRequest asks the gateway to invoke one named tool.
type ToolRequest struct {
	Tool string         `json:"tool"`
	Args map[string]any `json:"args,omitempty"`
}

// ToolResult is the outcome of a single tool invocation. A failed call
// carries the literal failure reason in Error; the gateway never panics.
type ToolResult struct {
	Tool   string `json:"tool"`
	Output string `json:"output,omitempty"`
	Error  string `json:"error,omitempty"`
}

// MemoryMetadata travels with every stored memory document.
type MemoryMetadata struct {
	UserID    int64     `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
	TaskType  TaskType  `json:"task_type,omitempty"`
	ToolsUsed []string  `json:"tools_used,omitempty"`
	Message   string    `json:"message,omitempty"`
	Response  string    `json:"response,omitempty"`
	Kind      string    `json:"kind,omitempty"` // "conversation" or "user_context"
}

// MemoryRecord is a stored document plus its metadata and, on search
// results, the distance reported by the vector store (smaller is closer).
type MemoryRecord struct {
	ID       string         `json:"id"`
	Document string         `json:"document"`
	Metadata MemoryMetadata `json:"metadata"`
	Distance float64        `json:"distance,omitempty"`
}

// MemoryStats is the aggregate returned by GET /memory/{user_id}.
type MemoryStats struct {
	UserID        int64     `json:"user_id"`
	TotalMemories int64     `json:"total_memories"`
	Conversations int64     `json:"conversations"`
	Contexts      int64     `json:"contexts"`
	LastUpdated   time.Time `json:"last_updated,omitempty"`
}

// AgentRequest is handed to the tool-calling agent loop.
type AgentRequest struct {
	Message       string
	UserID        int64
	MemorySummary string
	Window        []Turn
	UserContext   UserContext
}

// AgentResponse is what the loop produced: the final text and the tools it
// actually invoked, in invocation order.
type AgentResponse struct {
	Message   string
	ToolsUsed []string
}

// Turn is one user/assistant exchange kept in the conversation window.
type Turn struct {
	Message   string    `json:"message"`
	Response  string    `json:"response"`
	TaskType  TaskType  `json:"task_type,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
