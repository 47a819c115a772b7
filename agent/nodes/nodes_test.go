package nodes

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	contractx "github.com/loomlabs/loom-assistant/agent/contract"
	statex "github.com/loomlabs/loom-assistant/agent/state"
)

var fixedNow = func() time.Time {
	return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
}

type fakeClassifier struct {
	taskType contractx.TaskType
}

func (f fakeClassifier) Classify(string) contractx.TaskType { return f.taskType }

type fakeMemory struct {
	records  []contractx.MemoryRecord
	search   error
	store    error
	storedID string

	storedDoc  string
	storedMeta contractx.MemoryMetadata
}

func (f *fakeMemory) Store(_ context.Context, _ int64, doc string, meta contractx.MemoryMetadata) (string, error) {
	f.storedDoc = doc
	f.storedMeta = meta
	return f.storedID, f.store
}

func (f *fakeMemory) Search(context.Context, int64, string, int) ([]contractx.MemoryRecord, error) {
	return f.records, f.search
}

func (f *fakeMemory) Stats(context.Context, int64) (contractx.MemoryStats, error) {
	return contractx.MemoryStats{}, nil
}

type fakeGateway struct {
	results []contractx.ToolResult
	err     error
	gotReqs []contractx.ToolRequest
}

func (f *fakeGateway) Execute(_ context.Context, reqs []contractx.ToolRequest) ([]contractx.ToolResult, error) {
	f.gotReqs = reqs
	return f.results, f.err
}

func (f *fakeGateway) Names() []string { return nil }

type fakeResponder struct {
	reply string
	err   error
}

func (f fakeResponder) Respond(context.Context, contractx.AgentRequest, contractx.TaskType) (string, error) {
	return f.reply, f.err
}

type fakeRunner struct {
	resp contractx.AgentResponse
	err  error
}

func (f fakeRunner) Run(context.Context, contractx.AgentRequest) (contractx.AgentResponse, error) {
	return f.resp, f.err
}

func validState(taskType contractx.TaskType) *GraphState {
	state, err := ValidateRequest(contractx.Request{Message: "what is the weather", UserID: 1}, fixedNow)
	if err != nil {
		panic(err)
	}
	state.TaskType = taskType
	return state
}

func TestValidateRequest(t *testing.T) {
	t.Parallel()

	if _, err := ValidateRequest(contractx.Request{Message: "  ", UserID: 1}, fixedNow); !errors.Is(err, ErrInvalidMessage) {
		t.Fatalf("expected ErrInvalidMessage, got %v", err)
	}
	if _, err := ValidateRequest(contractx.Request{Message: "hi", UserID: 0}, fixedNow); !errors.Is(err, ErrInvalidUser) {
		t.Fatalf("expected ErrInvalidUser, got %v", err)
	}

	state, err := ValidateRequest(contractx.Request{Message: "  hello world  ", UserID: 7}, fixedNow)
	if err != nil {
		t.Fatalf("ValidateRequest() error = %v", err)
	}
	if state.Req.Message != "hello world" {
		t.Errorf("message not trimmed: %q", state.Req.Message)
	}
	if !state.Now.Equal(fixedNow()) {
		t.Errorf("now = %v, want fixed clock", state.Now)
	}
}

func TestClassifyIntent(t *testing.T) {
	t.Parallel()

	state, err := ClassifyIntent(validState(""), fakeClassifier{taskType: contractx.TaskWebSearch})
	if err != nil {
		t.Fatalf("ClassifyIntent() error = %v", err)
	}
	if state.TaskType != contractx.TaskWebSearch {
		t.Errorf("task type = %s, want web_search", state.TaskType)
	}
}

func TestReadMemoryDegradesOnFailure(t *testing.T) {
	t.Parallel()

	mem := &fakeMemory{search: errors.New("db down")}
	state, err := ReadMemory(context.Background(), validState(contractx.TaskGeneralChat), mem, statex.NewInMemoryStore())
	if err != nil {
		t.Fatalf("ReadMemory() must not fail on store errors, got %v", err)
	}
	if state.MemorySummary != "" {
		t.Errorf("summary = %q, want empty on failure", state.MemorySummary)
	}
}

func TestReadMemoryBuildsSummaryAndWindow(t *testing.T) {
	t.Parallel()

	mem := &fakeMemory{records: []contractx.MemoryRecord{
		{Document: "User: hi\nAssistant: Hello!"},
		{Document: "User likes jazz"},
	}}
	windows := statex.NewInMemoryStore()
	window := statex.NewConversationWindow(1, fixedNow())
	window.Append(contractx.Turn{Message: "earlier", Response: "earlier reply"}, statex.DefaultWindowSize, fixedNow())
	if err := windows.Save(context.Background(), window); err != nil {
		t.Fatalf("seed window: %v", err)
	}

	state, err := ReadMemory(context.Background(), validState(contractx.TaskGeneralChat), mem, windows)
	if err != nil {
		t.Fatalf("ReadMemory() error = %v", err)
	}
	if !strings.Contains(state.MemorySummary, "jazz") {
		t.Errorf("summary = %q, want record text", state.MemorySummary)
	}
	if len(state.Window) != 1 || state.Window[0].Message != "earlier" {
		t.Errorf("window = %#v, want the saved turn", state.Window)
	}
}

func TestRunAgentSuccess(t *testing.T) {
	t.Parallel()

	runner := fakeRunner{resp: contractx.AgentResponse{Message: "found it", ToolsUsed: []string{"web_search"}}}
	state, err := RunAgent(context.Background(), validState(contractx.TaskWebSearch), runner)
	if err != nil {
		t.Fatalf("RunAgent() error = %v", err)
	}
	if state.Message != "found it" {
		t.Errorf("message = %q", state.Message)
	}
	if state.Confidence != contractx.ConfidenceAgent {
		t.Errorf("confidence = %v, want %v", state.Confidence, contractx.ConfidenceAgent)
	}
}

func TestRunAgentFailureFallsThrough(t *testing.T) {
	t.Parallel()

	runner := fakeRunner{err: errors.New("model down")}
	state, err := RunAgent(context.Background(), validState(contractx.TaskWebSearch), runner)
	if err != nil {
		t.Fatalf("RunAgent() must swallow loop errors, got %v", err)
	}
	if state.Message != "" {
		t.Errorf("message = %q, want empty for dispatch", state.Message)
	}
}

func TestRunAgentSkipsGreeting(t *testing.T) {
	t.Parallel()

	runner := fakeRunner{resp: contractx.AgentResponse{Message: "should not be used"}}
	state, err := RunAgent(context.Background(), validState(contractx.TaskGreeting), runner)
	if err != nil {
		t.Fatalf("RunAgent() error = %v", err)
	}
	if state.Message != "" {
		t.Errorf("greeting must bypass the agent loop, got %q", state.Message)
	}
}

func TestDispatchGreeting(t *testing.T) {
	t.Parallel()

	state, err := Dispatch(context.Background(), validState(contractx.TaskGreeting), &fakeGateway{}, nil)
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if !strings.Contains(state.Message, "Loom") {
		t.Errorf("greeting = %q", state.Message)
	}
	if state.Confidence != contractx.ConfidenceAgent {
		t.Errorf("confidence = %v, want %v", state.Confidence, contractx.ConfidenceAgent)
	}
}

func TestDispatchSkipsWhenAgentAnswered(t *testing.T) {
	t.Parallel()

	state := validState(contractx.TaskWebSearch)
	state.Message = "agent already answered"
	gateway := &fakeGateway{}

	if _, err := Dispatch(context.Background(), state, gateway, nil); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if gateway.gotReqs != nil {
		t.Error("dispatch must not run tools when a reply exists")
	}
}

func TestDispatchToolPath(t *testing.T) {
	t.Parallel()

	gateway := &fakeGateway{results: []contractx.ToolResult{{Tool: "web_search", Output: "32C and sunny"}}}
	state, err := Dispatch(context.Background(), validState(contractx.TaskWebSearch), gateway, nil)
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if state.Message != "32C and sunny" {
		t.Errorf("message = %q", state.Message)
	}
	if state.Confidence != contractx.ConfidenceDispatch {
		t.Errorf("confidence = %v, want %v", state.Confidence, contractx.ConfidenceDispatch)
	}
	if len(state.ToolsUsed) != 1 || state.ToolsUsed[0] != "web_search" {
		t.Errorf("tools used = %v", state.ToolsUsed)
	}
	if len(gateway.gotReqs) != 1 || gateway.gotReqs[0].Args["user_id"] != int64(1) {
		t.Errorf("tool request missing user id: %#v", gateway.gotReqs)
	}
}

func TestDispatchToolErrorSurfacesReason(t *testing.T) {
	t.Parallel()

	gateway := &fakeGateway{results: []contractx.ToolResult{{Tool: "web_search", Error: "rate limited by upstream"}}}
	state, err := Dispatch(context.Background(), validState(contractx.TaskWebSearch), gateway, nil)
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if state.Message != "rate limited by upstream" {
		t.Errorf("message = %q, want the literal failure reason", state.Message)
	}
	if state.Confidence != contractx.ConfidenceFallback {
		t.Errorf("confidence = %v, want %v", state.Confidence, contractx.ConfidenceFallback)
	}
}

func TestDispatchToolEmptyOutputGetsFallbackReply(t *testing.T) {
	t.Parallel()

	gateway := &fakeGateway{results: []contractx.ToolResult{{Tool: "image_analysis", Output: "   "}}}
	state, err := Dispatch(context.Background(), validState(contractx.TaskImageAnalysis), gateway, nil)
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if strings.TrimSpace(state.Message) == "" {
		t.Error("message is empty, want a fallback reply")
	}
	if state.Confidence != contractx.ConfidenceFallback {
		t.Errorf("confidence = %v, want %v", state.Confidence, contractx.ConfidenceFallback)
	}

	// The reply still has to survive finalization.
	if _, err := FinalizeResponse(state); err != nil {
		t.Fatalf("FinalizeResponse() error = %v", err)
	}
}

func TestDispatchGatewayErrorBecomesErrorTask(t *testing.T) {
	t.Parallel()

	gateway := &fakeGateway{err: errors.New("gateway broken")}
	state, err := Dispatch(context.Background(), validState(contractx.TaskWebSearch), gateway, nil)
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if state.TaskType != contractx.TaskError {
		t.Errorf("task type = %s, want error", state.TaskType)
	}
	if state.Confidence != contractx.ConfidenceError {
		t.Errorf("confidence = %v, want %v", state.Confidence, contractx.ConfidenceError)
	}
}

func TestDispatchPreferencePath(t *testing.T) {
	t.Parallel()

	state := validState(contractx.TaskPreferenceQuery)
	state.Req.UserContext.Preferences = []contractx.PreferenceRecord{{Key: "favorite_tv_series", Value: "Breaking Bad"}}
	gateway := &fakeGateway{results: []contractx.ToolResult{{Tool: "preference_analysis", Output: "Your favorite TV series is Breaking Bad."}}}

	out, err := Dispatch(context.Background(), state, gateway, nil)
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if out.Confidence != contractx.ConfidencePreference {
		t.Errorf("confidence = %v, want %v", out.Confidence, contractx.ConfidencePreference)
	}
	if _, ok := gateway.gotReqs[0].Args["preferences"]; !ok {
		t.Error("preference records not forwarded to the tool")
	}
}

func TestDispatchGeneralChat(t *testing.T) {
	t.Parallel()

	state, err := Dispatch(context.Background(), validState(contractx.TaskGeneralChat), nil, fakeResponder{reply: "Sure, happy to chat."})
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if state.Message != "Sure, happy to chat." {
		t.Errorf("message = %q", state.Message)
	}
	if state.Confidence != contractx.ConfidenceDispatch {
		t.Errorf("confidence = %v, want %v", state.Confidence, contractx.ConfidenceDispatch)
	}
}

func TestDispatchGeneralChatFallback(t *testing.T) {
	t.Parallel()

	state, err := Dispatch(context.Background(), validState(contractx.TaskGeneralChat), nil, fakeResponder{err: errors.New("model down")})
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if state.Message == "" {
		t.Fatal("expected templated fallback text")
	}
	if state.Confidence != contractx.ConfidenceFallback {
		t.Errorf("confidence = %v, want %v", state.Confidence, contractx.ConfidenceFallback)
	}
}

func TestWriteMemoryPersistsTurn(t *testing.T) {
	t.Parallel()

	mem := &fakeMemory{storedID: "id-1"}
	windows := statex.NewInMemoryStore()
	state := validState(contractx.TaskWebSearch)
	state.Message = "32C and sunny"
	state.ToolsUsed = []string{"web_search"}

	out, err := WriteMemory(context.Background(), state, mem, windows)
	if err != nil {
		t.Fatalf("WriteMemory() error = %v", err)
	}
	if !out.MemoryUpdated {
		t.Error("expected MemoryUpdated = true")
	}
	if !strings.Contains(mem.storedDoc, "32C and sunny") {
		t.Errorf("stored doc = %q", mem.storedDoc)
	}
	if mem.storedMeta.TaskType != contractx.TaskWebSearch {
		t.Errorf("stored task type = %s", mem.storedMeta.TaskType)
	}

	window, err := windows.Load(context.Background(), 1)
	if err != nil {
		t.Fatalf("window load: %v", err)
	}
	if len(window.Turns) != 1 || window.Turns[0].Response != "32C and sunny" {
		t.Errorf("window turns = %#v", window.Turns)
	}
}

func TestWriteMemoryStoreFailure(t *testing.T) {
	t.Parallel()

	mem := &fakeMemory{store: errors.New("db down")}
	state := validState(contractx.TaskGeneralChat)
	state.Message = "hi there"

	out, err := WriteMemory(context.Background(), state, mem, statex.NewInMemoryStore())
	if err != nil {
		t.Fatalf("WriteMemory() must not fail on store errors, got %v", err)
	}
	if out.MemoryUpdated {
		t.Error("MemoryUpdated must be false when the store write failed")
	}
}

func TestFinalizeResponse(t *testing.T) {
	t.Parallel()

	state := validState(contractx.TaskGeneralChat)
	state.Message = "done"
	state.Confidence = contractx.ConfidenceDispatch
	state.MemoryUpdated = true

	resp, err := FinalizeResponse(state)
	if err != nil {
		t.Fatalf("FinalizeResponse() error = %v", err)
	}
	if resp.Response != "done" || !resp.MemoryUpdated {
		t.Errorf("unexpected response: %#v", resp)
	}
	if resp.ToolsUsed == nil {
		t.Error("tools_used must serialize as an empty list, not null")
	}

	if _, err := FinalizeResponse(&GraphState{}); err == nil {
		t.Fatal("expected error for empty reply")
	}
}
