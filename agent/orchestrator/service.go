package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/cloudwego/eino/compose"

	contractx "github.com/loomlabs/loom-assistant/agent/contract"
	nodex "github.com/loomlabs/loom-assistant/agent/nodes"
	statex "github.com/loomlabs/loom-assistant/agent/state"
)

var (
	ErrInvalidMessage = nodex.ErrInvalidMessage
	ErrInvalidUser    = nodex.ErrInvalidUser
)

// Options carries the optional collaborators. A nil Runner or Responder
// routes everything through direct dispatch; a nil Memory skips
// persistence; a nil Windows falls back to the in-process window store.
type Options struct {
	Runner    contractx.AgentRunner
	Memory    contractx.MemoryStore
	Responder contractx.Responder
	Windows   statex.Store
}

// Orchestrator runs one message through the pipeline:
// validate -> classify -> read memory -> agent loop -> dispatch ->
// write memory -> finalize.
type Orchestrator struct {
	classifier contractx.Classifier
	tools      contractx.ToolGateway
	runner     contractx.AgentRunner
	memory     contractx.MemoryStore
	responder  contractx.Responder
	windows    statex.Store

	graphRunner compose.Runnable[contractx.Request, contractx.Response]

	now func() time.Time
}

func New(classifier contractx.Classifier, tools contractx.ToolGateway, opts Options) (*Orchestrator, error) {
	if classifier == nil {
		return nil, errors.New("classifier is required")
	}
	if tools == nil {
		return nil, errors.New("tool gateway is required")
	}

	windows := opts.Windows
	if windows == nil {
		windows = statex.NewInMemoryStore()
	}

	o := &Orchestrator{
		classifier: classifier,
		tools:      tools,
		runner:     opts.Runner,
		memory:     opts.Memory,
		responder:  opts.Responder,
		windows:    windows,
		now:        time.Now,
	}

	graphRunner, err := o.compileHandleGraph(context.Background())
	if err != nil {
		return nil, err
	}
	o.graphRunner = graphRunner

	return o, nil
}

// Handle processes one chat request end to end. Tool and model failures
// degrade inside the pipeline; an error here means the request itself was
// invalid or the pipeline is broken.
func (o *Orchestrator) Handle(ctx context.Context, req contractx.Request) (contractx.Response, error) {
	return o.graphRunner.Invoke(ctx, req)
}
