package nodes

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	contractx "github.com/loomlabs/loom-assistant/agent/contract"
	statex "github.com/loomlabs/loom-assistant/agent/state"
)

// WriteMemory persists the finished turn to the vector store and the
// conversation window. Either write may fail; the reply still goes out,
// with MemoryUpdated reporting what actually happened.
func WriteMemory(
	ctx context.Context,
	in *GraphState,
	memory contractx.MemoryStore,
	windows statex.Store,
) (*GraphState, error) {
	if in == nil {
		return nil, errors.New("graph state is nil")
	}

	if memory != nil {
		document := fmt.Sprintf("User: %s\nAssistant: %s", in.Req.Message, in.Message)
		meta := contractx.MemoryMetadata{
			UserID:    in.Req.UserID,
			Timestamp: in.Now,
			TaskType:  in.TaskType,
			ToolsUsed: in.ToolsUsed,
			Message:   in.Req.Message,
			Response:  in.Message,
			Kind:      "conversation",
		}
		if _, err := memory.Store(ctx, in.Req.UserID, document, meta); err != nil {
			log.Warn().Err(err).Int64("user_id", in.Req.UserID).Msg("memory store failed, turn not persisted")
		} else {
			in.MemoryUpdated = true
		}
	}

	if windows != nil {
		window, err := windows.Load(ctx, in.Req.UserID)
		if err != nil {
			if !errors.Is(err, statex.ErrWindowNotFound) {
				log.Warn().Err(err).Int64("user_id", in.Req.UserID).Msg("window load failed before append")
			}
			window = statex.NewConversationWindow(in.Req.UserID, in.Now)
		}
		window.Append(contractx.Turn{
			Message:   in.Req.Message,
			Response:  in.Message,
			TaskType:  in.TaskType,
			Timestamp: in.Now,
		}, statex.DefaultWindowSize, in.Now)
		if err := windows.Save(ctx, window); err != nil {
			log.Warn().Err(err).Int64("user_id", in.Req.UserID).Msg("window save failed")
		}
	}

	return in, nil
}
