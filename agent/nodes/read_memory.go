package nodes

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"

	contractx "github.com/loomlabs/loom-assistant/agent/contract"
	statex "github.com/loomlabs/loom-assistant/agent/state"
)

const memorySearchK = 3

// ReadMemory primes the state with nearby memories and the conversation
// window. Both lookups degrade to empty context, logged, never fatal: a
// broken store must not block the reply.
func ReadMemory(
	ctx context.Context,
	in *GraphState,
	memory contractx.MemoryStore,
	windows statex.Store,
) (*GraphState, error) {
	if in == nil {
		return nil, errors.New("graph state is nil")
	}

	if memory != nil {
		records, err := memory.Search(ctx, in.Req.UserID, in.Req.Message, memorySearchK)
		switch {
		case err != nil:
			log.Warn().Err(err).Int64("user_id", in.Req.UserID).Msg("memory search failed, continuing without memories")
		case len(records) > 0:
			in.MemorySummary = summarize(records)
		}
	}

	if windows != nil {
		window, err := windows.Load(ctx, in.Req.UserID)
		switch {
		case errors.Is(err, statex.ErrWindowNotFound):
		case err != nil:
			log.Warn().Err(err).Int64("user_id", in.Req.UserID).Msg("window load failed, continuing without history")
		case window != nil:
			in.Window = window.Recent(statex.DefaultWindowSize)
		}
	}

	return in, nil
}

func summarize(records []contractx.MemoryRecord) string {
	lines := make([]string, 0, len(records))
	for _, rec := range records {
		doc := strings.TrimSpace(rec.Document)
		if doc == "" {
			continue
		}
		lines = append(lines, "- "+doc)
	}
	return strings.Join(lines, "\n")
}
