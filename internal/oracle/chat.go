package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// DefaultChatURL is the OpenAI-compatible Hugging Face router.
const DefaultChatURL = "https://router.huggingface.co/v1/chat/completions"

// Chat asks an OpenAI-compatible chat-completions endpoint, sending the persona
// as the system message.
type Chat struct {
	cfg    HTTPConfig
	client *http.Client
}

func NewChat(cfg HTTPConfig) *Chat {
	cfg = cfg.withDefaults(DefaultChatURL, 0.7)
	return &Chat{cfg: cfg, client: cfg.client()}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error any `json:"error,omitempty"`
}

func (c *Chat) Hint(ctx context.Context, target string) (string, error) {
	system, user := BuildPrompts(target)
	data, _ := json.Marshal(chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to connect to oracle: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("oracle status %d: %s", resp.StatusCode, snippet(body))
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("oracle returned invalid JSON: %s", snippet(body))
	}
	if len(parsed.Choices) == 0 {
		return "", ErrEmptyHint
	}
	return cleanHint(parsed.Choices[0].Message.Content)
}
