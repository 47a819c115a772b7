package state

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	contractx "github.com/loomlabs/loom-assistant/agent/contract"
)

var (
	ErrWindowNotFound = errors.New("conversation window not found")
	ErrNilWindow      = errors.New("conversation window is nil")
)

const (
	defaultStoreKeyPrefix = "loom:window:"
	defaultStoreTTL       = 24 * time.Hour
	maxResponseSizeBytes  = 2 << 20
)

// Store is the persistence contract for conversation windows.
type Store interface {
	Load(ctx context.Context, userID int64) (*ConversationWindow, error)
	Save(ctx context.Context, w *ConversationWindow) error
	Delete(ctx context.Context, userID int64) error
}

// StoreOption customizes UpstashRedisStore.
type StoreOption func(*UpstashRedisStore)

func WithKeyPrefix(prefix string) StoreOption {
	return func(s *UpstashRedisStore) {
		trimmed := strings.TrimSpace(prefix)
		if trimmed != "" {
			s.keyPrefix = trimmed
		}
	}
}

func WithTTL(ttl time.Duration) StoreOption {
	return func(s *UpstashRedisStore) {
		s.ttl = ttl
	}
}

func WithHTTPClient(client *http.Client) StoreOption {
	return func(s *UpstashRedisStore) {
		if client != nil {
			s.httpClient = client
		}
	}
}

// UpstashRedisStore persists conversation windows in Upstash Redis via REST.
type UpstashRedisStore struct {
	baseURL    string
	token      string
	httpClient *http.Client
	keyPrefix  string
	ttl        time.Duration
}

type redisRESTResponse struct {
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error"`
}

type UpstashRedisConfig struct {
	URL     string        `envconfig:"URL" split_words:"true"`
	Token   string        `envconfig:"TOKEN" split_words:"true"`
	Timeout time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"10s"`
}

func NewUpstashRedisStore(cfg UpstashRedisConfig, opts ...StoreOption) (*UpstashRedisStore, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if baseURL == "" {
		return nil, errors.New("upstash redis url is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid redis rest url: %w", err)
	}

	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("upstash redis token is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	store := &UpstashRedisStore{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
		keyPrefix:  defaultStoreKeyPrefix,
		ttl:        defaultStoreTTL,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	if store.ttl < 0 {
		return nil, errors.New("ttl must be >= 0")
	}

	return store, nil
}

func (s *UpstashRedisStore) Load(ctx context.Context, userID int64) (*ConversationWindow, error) {
	resp, err := s.exec(ctx, []any{"GET", s.redisKey(userID)})
	if err != nil {
		return nil, err
	}

	result := bytes.TrimSpace(resp.Result)
	if len(result) == 0 || bytes.Equal(result, []byte("null")) {
		return nil, ErrWindowNotFound
	}

	var encoded string
	if err := json.Unmarshal(result, &encoded); err != nil {
		return nil, fmt.Errorf("decode window payload: %w", err)
	}

	var window ConversationWindow
	if err := json.Unmarshal([]byte(encoded), &window); err != nil {
		return nil, fmt.Errorf("unmarshal conversation window: %w", err)
	}
	return &window, nil
}

func (s *UpstashRedisStore) Save(ctx context.Context, w *ConversationWindow) error {
	if w == nil {
		return ErrNilWindow
	}
	if w.UpdatedAt.IsZero() {
		w.UpdatedAt = time.Now().UTC()
	}

	payload, err := json.Marshal(w)
	if err != nil {
		return fmt.Errorf("marshal conversation window: %w", err)
	}

	cmd := []any{"SET", s.redisKey(w.UserID), string(payload)}
	if s.ttl > 0 {
		cmd = append(cmd, "EX", ttlSeconds(s.ttl))
	}

	_, err = s.exec(ctx, cmd)
	return err
}

func (s *UpstashRedisStore) Delete(ctx context.Context, userID int64) error {
	_, err := s.exec(ctx, []any{"DEL", s.redisKey(userID)})
	return err
}

func (s *UpstashRedisStore) redisKey(userID int64) string {
	return s.keyPrefix + strconv.FormatInt(userID, 10)
}

func (s *UpstashRedisStore) exec(ctx context.Context, command []any) (*redisRESTResponse, error) {
	if s == nil {
		return nil, errors.New("nil store")
	}
	if len(command) == 0 {
		return nil, errors.New("empty redis command")
	}

	body, err := json.Marshal(command)
	if err != nil {
		return nil, fmt.Errorf("marshal redis command: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build redis request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute redis request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSizeBytes))
	if err != nil {
		return nil, fmt.Errorf("read redis response: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("redis http status=%d body=%s", resp.StatusCode, string(raw))
	}

	var parsed redisRESTResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode redis response: %w", err)
	}
	if parsed.Error != "" {
		return nil, errors.New(parsed.Error)
	}
	return &parsed, nil
}

func ttlSeconds(ttl time.Duration) int64 {
	seconds := ttl / time.Second
	if seconds <= 0 {
		return 1
	}
	if ttl%time.Second != 0 {
		seconds++
	}
	return int64(seconds)
}

// InMemoryStore keeps windows in process memory. Used when Redis is not
// configured; windows are lost on restart.
type InMemoryStore struct {
	mu      sync.RWMutex
	windows map[int64]*ConversationWindow
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{windows: make(map[int64]*ConversationWindow)}
}

func (s *InMemoryStore) Load(ctx context.Context, userID int64) (*ConversationWindow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.windows[userID]
	if !ok {
		return nil, ErrWindowNotFound
	}
	clone := *w
	clone.Turns = append([]contractx.Turn(nil), w.Turns...)
	return &clone, nil
}

func (s *InMemoryStore) Save(ctx context.Context, w *ConversationWindow) error {
	if w == nil {
		return ErrNilWindow
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *w
	clone.Turns = append([]contractx.Turn(nil), w.Turns...)
	s.windows[w.UserID] = &clone
	return nil
}

func (s *InMemoryStore) Delete(ctx context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.windows, userID)
	return nil
}
