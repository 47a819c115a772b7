// Package state keeps the short-term conversation window: the last few
// user/assistant turns per user, used to prime the agent prompt. Long-term
// recall lives in the vector memory store, not here.
package state

import (
	"time"

	contractx "github.com/loomlabs/loom-assistant/agent/contract"
)

// DefaultWindowSize is the number of turns retained per user.
const DefaultWindowSize = 10

// ConversationWindow is the rolling buffer of recent turns for one user.
type ConversationWindow struct {
	UserID    int64            `json:"user_id"`
	Turns     []contractx.Turn `json:"turns,omitempty"`
	UpdatedAt time.Time        `json:"updated_at"`
}

func NewConversationWindow(userID int64, now time.Time) *ConversationWindow {
	return &ConversationWindow{
		UserID:    userID,
		UpdatedAt: now.UTC(),
	}
}

// Append adds a turn and trims the buffer to the newest max turns.
func (w *ConversationWindow) Append(turn contractx.Turn, max int, now time.Time) {
	if max <= 0 {
		max = DefaultWindowSize
	}
	w.Turns = append(w.Turns, turn)
	if len(w.Turns) > max {
		w.Turns = w.Turns[len(w.Turns)-max:]
	}
	w.UpdatedAt = now.UTC()
}

// Recent returns up to n newest turns, oldest first.
func (w *ConversationWindow) Recent(n int) []contractx.Turn {
	if w == nil || n <= 0 || len(w.Turns) == 0 {
		return nil
	}
	if n >= len(w.Turns) {
		return w.Turns
	}
	return w.Turns[len(w.Turns)-n:]
}
