package tool

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	ollamax "github.com/loomlabs/loom-assistant/pkg/ollama"
)

// ImageTool describes images through the local Ollama vision model.
type ImageTool struct {
	client *ollamax.Client
}

func NewImageTool(client *ollamax.Client) *ImageTool {
	return &ImageTool{client: client}
}

func (t *ImageTool) Name() string { return NameImage }

func (t *ImageTool) Description() string {
	return "Describe the contents of an attached image."
}

func (t *ImageTool) Available() bool { return t != nil && t.client != nil }

func (t *ImageTool) Invoke(ctx context.Context, args map[string]any) (string, error) {
	if !t.Available() {
		return "Image analysis not available. Start Ollama with a vision model to enable it.", nil
	}

	image, err := imageArg(args)
	if err != nil {
		return "", err
	}
	if len(image) == 0 {
		return "I can analyze images, but no image was attached to this message.", nil
	}

	prompt := strings.TrimSpace(stringArg(args, ArgQuery))
	if prompt == "" {
		prompt = "Describe this image in detail."
	}

	description, err := t.client.Describe(ctx, prompt, image)
	if err != nil {
		return "", fmt.Errorf("image analysis failed: %w", err)
	}
	return description, nil
}

// imageArg accepts either raw bytes or a base64 string under ArgImage.
func imageArg(args map[string]any) ([]byte, error) {
	raw, ok := args[ArgImage]
	if !ok || raw == nil {
		return nil, nil
	}
	switch v := raw.(type) {
	case []byte:
		return v, nil
	case string:
		if v == "" {
			return nil, nil
		}
		decoded, err := base64.StdEncoding.DecodeString(v)
		if err != nil {
			return nil, fmt.Errorf("image payload is not valid base64: %w", err)
		}
		return decoded, nil
	default:
		return nil, fmt.Errorf("image payload has unsupported type %T", raw)
	}
}
