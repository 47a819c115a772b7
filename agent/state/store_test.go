package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	contractx "github.com/loomlabs/loom-assistant/agent/contract"
)

func TestWindowAppendTrims(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	w := NewConversationWindow(7, now)
	for i := 0; i < 15; i++ {
		w.Append(contractx.Turn{Message: fmt.Sprintf("m%d", i)}, 10, now)
	}

	if len(w.Turns) != 10 {
		t.Fatalf("window holds %d turns, want 10", len(w.Turns))
	}
	if w.Turns[0].Message != "m5" {
		t.Fatalf("oldest retained turn = %q, want m5", w.Turns[0].Message)
	}
	if w.Turns[9].Message != "m14" {
		t.Fatalf("newest retained turn = %q, want m14", w.Turns[9].Message)
	}
}

func TestWindowRecent(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	w := NewConversationWindow(1, now)
	for i := 0; i < 4; i++ {
		w.Append(contractx.Turn{Message: fmt.Sprintf("m%d", i)}, 10, now)
	}

	recent := w.Recent(2)
	if len(recent) != 2 || recent[0].Message != "m2" || recent[1].Message != "m3" {
		t.Fatalf("Recent(2) = %#v", recent)
	}
	if got := w.Recent(100); len(got) != 4 {
		t.Fatalf("Recent(100) returned %d turns, want 4", len(got))
	}
}

func TestUpstashRedisStoreSaveUsesUserKey(t *testing.T) {
	t.Parallel()

	var gotCommand []any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		if err := json.NewDecoder(r.Body).Decode(&gotCommand); err != nil {
			t.Fatalf("decode command: %v", err)
		}
		fmt.Fprint(w, `{"result":"OK"}`)
	}))
	t.Cleanup(server.Close)

	store, err := NewUpstashRedisStore(
		UpstashRedisConfig{URL: server.URL, Token: "token"},
		WithHTTPClient(server.Client()),
		WithTTL(0),
	)
	if err != nil {
		t.Fatalf("NewUpstashRedisStore() error = %v", err)
	}

	window := NewConversationWindow(42, time.Now().UTC())
	if err := store.Save(context.Background(), window); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if len(gotCommand) < 2 {
		t.Fatalf("unexpected command: %#v", gotCommand)
	}
	if gotCommand[0] != "SET" {
		t.Fatalf("command[0] = %v, want SET", gotCommand[0])
	}
	if gotCommand[1] != "loom:window:42" {
		t.Fatalf("command[1] = %v, want loom:window:42", gotCommand[1])
	}
}

func TestUpstashRedisStoreLoadRoundTrip(t *testing.T) {
	t.Parallel()

	seed := NewConversationWindow(9, time.Now().UTC())
	seed.Append(contractx.Turn{Message: "hi", Response: "hello"}, 10, time.Now().UTC())
	payload, err := json.Marshal(seed)
	if err != nil {
		t.Fatalf("marshal seed: %v", err)
	}
	encoded, err := json.Marshal(string(payload))
	if err != nil {
		t.Fatalf("marshal encoded seed: %v", err)
	}

	var gotCommand []any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		if err := json.NewDecoder(r.Body).Decode(&gotCommand); err != nil {
			t.Fatalf("decode command: %v", err)
		}
		fmt.Fprintf(w, `{"result":%s}`, encoded)
	}))
	t.Cleanup(server.Close)

	store, err := NewUpstashRedisStore(
		UpstashRedisConfig{URL: server.URL, Token: "token"},
		WithHTTPClient(server.Client()),
	)
	if err != nil {
		t.Fatalf("NewUpstashRedisStore() error = %v", err)
	}

	loaded, err := store.Load(context.Background(), 9)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.UserID != 9 || len(loaded.Turns) != 1 {
		t.Fatalf("Load() = %#v", loaded)
	}
	if gotCommand[0] != "GET" || gotCommand[1] != "loom:window:9" {
		t.Fatalf("unexpected command: %#v", gotCommand)
	}
}

func TestUpstashRedisStoreLoadMissing(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"result":null}`)
	}))
	t.Cleanup(server.Close)

	store, err := NewUpstashRedisStore(
		UpstashRedisConfig{URL: server.URL, Token: "token"},
		WithHTTPClient(server.Client()),
	)
	if err != nil {
		t.Fatalf("NewUpstashRedisStore() error = %v", err)
	}

	_, err = store.Load(context.Background(), 404)
	if !errors.Is(err, ErrWindowNotFound) {
		t.Fatalf("Load() error = %v, want ErrWindowNotFound", err)
	}
}

func TestInMemoryStoreRoundTrip(t *testing.T) {
	t.Parallel()

	store := NewInMemoryStore()
	ctx := context.Background()

	if _, err := store.Load(ctx, 1); !errors.Is(err, ErrWindowNotFound) {
		t.Fatalf("Load() on empty store = %v, want ErrWindowNotFound", err)
	}

	w := NewConversationWindow(1, time.Now().UTC())
	w.Append(contractx.Turn{Message: "hi"}, 10, time.Now().UTC())
	if err := store.Save(ctx, w); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	// Mutating the original must not affect the stored copy.
	w.Turns[0].Message = "mutated"

	loaded, err := store.Load(ctx, 1)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Turns[0].Message != "hi" {
		t.Fatalf("stored window shares memory with caller: %q", loaded.Turns[0].Message)
	}

	if err := store.Delete(ctx, 1); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := store.Load(ctx, 1); !errors.Is(err, ErrWindowNotFound) {
		t.Fatalf("Load() after delete = %v, want ErrWindowNotFound", err)
	}
}
