// Package server exposes the assistant over HTTP: chat, health, and
// memory inspection.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	contractx "github.com/loomlabs/loom-assistant/agent/contract"
	"github.com/loomlabs/loom-assistant/agent/orchestrator"
)

const maxChatBodySize = 1 << 20 // 1MB

// ChatService handles one inbound chat request.
type ChatService interface {
	Handle(ctx context.Context, req contractx.Request) (contractx.Response, error)
}

type Deps struct {
	Chat    ChatService
	Memory  contractx.MemoryStore // optional; nil disables GET /memory
	Targets []HealthTarget
}

func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Post("/chat", handleChat(deps))
	r.Post("/orchestrate", handleChat(deps))
	r.Get("/health", handleHealth(deps))
	r.Get("/memory/{user_id}", handleMemoryStats(deps))

	return r
}

func handleChat(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxChatBodySize)
		defer r.Body.Close()

		var req contractx.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid request body: %v", err)
			return
		}

		resp, err := deps.Chat.Handle(r.Context(), req)
		switch {
		case errors.Is(err, orchestrator.ErrInvalidMessage), errors.Is(err, orchestrator.ErrInvalidUser):
			httpError(w, http.StatusBadRequest, "%v", err)
			return
		case err != nil:
			log.Error().Err(err).Int64("user_id", req.UserID).Msg("chat request failed")
			httpError(w, http.StatusInternalServerError, "internal error")
			return
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func handleMemoryStats(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Memory == nil {
			httpError(w, http.StatusServiceUnavailable, "memory store is not configured")
			return
		}

		userID, err := strconv.ParseInt(chi.URLParam(r, "user_id"), 10, 64)
		if err != nil || userID <= 0 {
			httpError(w, http.StatusBadRequest, "user_id must be a positive integer")
			return
		}

		stats, err := deps.Memory.Stats(r.Context(), userID)
		if err != nil {
			log.Error().Err(err).Int64("user_id", userID).Msg("memory stats failed")
			httpError(w, http.StatusServiceUnavailable, "memory store unreachable")
			return
		}

		writeJSON(w, http.StatusOK, stats)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func httpError(w http.ResponseWriter, status int, format string, args ...any) {
	writeJSON(w, status, errorResponse{Error: fmt.Sprintf(format, args...)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write response failed")
	}
}
