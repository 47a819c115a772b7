// Package ollama is a thin HTTP client for a local Ollama daemon. It covers
// the three calls the assistant needs: liveness, image description and
// embeddings. Generation and embedding calls run behind a circuit breaker so
// a wedged daemon fails fast instead of hanging every request.
package ollama

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
)

type Config struct {
	BaseURL     string        `envconfig:"BASE_URL" split_words:"true" default:"http://localhost:11434"`
	VisionModel string        `envconfig:"VISION_MODEL" split_words:"true" default:"llava"`
	EmbedModel  string        `envconfig:"EMBED_MODEL" split_words:"true" default:"nomic-embed-text"`
	Timeout     time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"60s"`
}

// Client communicates with a local Ollama instance over HTTP.
type Client struct {
	baseURL     string
	visionModel string
	embedModel  string
	httpClient  *http.Client
	breaker     *gobreaker.CircuitBreaker
}

func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("ollama base url is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "ollama",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})

	return &Client{
		baseURL:     baseURL,
		visionModel: strings.TrimSpace(cfg.VisionModel),
		embedModel:  strings.TrimSpace(cfg.EmbedModel),
		httpClient:  &http.Client{Timeout: timeout},
		breaker:     breaker,
	}, nil
}

// IsRunning reports whether the daemon answers GET /api/tags with 200.
func (c *Client) IsRunning(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

type generateRequest struct {
	Model  string   `json:"model"`
	Prompt string   `json:"prompt"`
	Images []string `json:"images,omitempty"`
	Stream bool     `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// Describe runs the vision model over a single image with the given prompt.
func (c *Client) Describe(ctx context.Context, prompt string, image []byte) (string, error) {
	if len(image) == 0 {
		return "", errors.New("image payload is empty")
	}
	encoded := base64.StdEncoding.EncodeToString(image)
	return c.generate(ctx, c.visionModel, prompt, []string{encoded})
}

func (c *Client) generate(ctx context.Context, model, prompt string, images []string) (string, error) {
	out, err := c.breaker.Execute(func() (any, error) {
		body, err := json.Marshal(generateRequest{
			Model:  model,
			Prompt: prompt,
			Images: images,
			Stream: false,
		})
		if err != nil {
			return nil, err
		}

		raw, err := c.post(ctx, "/api/generate", body)
		if err != nil {
			return nil, err
		}

		var parsed generateResponse
		if err := json.Unmarshal(raw, &parsed); err != nil {
			return nil, fmt.Errorf("decode generate response: %w", err)
		}
		return strings.TrimSpace(parsed.Response), nil
	})
	if err != nil {
		return "", err
	}
	return out.(string), nil
}

type embeddingsRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embeddingsResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Embeddings returns the embedding vector for the given text.
func (c *Client) Embeddings(ctx context.Context, text string) ([]float32, error) {
	out, err := c.breaker.Execute(func() (any, error) {
		body, err := json.Marshal(embeddingsRequest{Model: c.embedModel, Prompt: text})
		if err != nil {
			return nil, err
		}

		raw, err := c.post(ctx, "/api/embeddings", body)
		if err != nil {
			return nil, err
		}

		var parsed embeddingsResponse
		if err := json.Unmarshal(raw, &parsed); err != nil {
			return nil, fmt.Errorf("decode embeddings response: %w", err)
		}
		if len(parsed.Embedding) == 0 {
			return nil, errors.New("empty embedding")
		}
		return parsed.Embedding, nil
	})
	if err != nil {
		return nil, err
	}
	return out.([]float32), nil
}

func (c *Client) post(ctx context.Context, path string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read ollama response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama status=%d body=%s", resp.StatusCode, string(raw))
	}
	return raw, nil
}
