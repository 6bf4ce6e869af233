package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// DefaultTextGenURL is the legacy serverless text-generation endpoint.
const DefaultTextGenURL = "https://api-inference.huggingface.co/models/" + DefaultModel

// TextGen sends a raw ChatML prompt to a text-generation endpoint and keeps only
// the assistant turn of the generated text.
type TextGen struct {
	cfg    HTTPConfig
	client *http.Client
}

func NewTextGen(cfg HTTPConfig) *TextGen {
	cfg = cfg.withDefaults(DefaultTextGenURL, 0.8)
	return &TextGen{cfg: cfg, client: cfg.client()}
}

type textGenRequest struct {
	Inputs     string `json:"inputs"`
	Parameters struct {
		Temperature  float64 `json:"temperature"`
		MaxNewTokens int     `json:"max_new_tokens"`
	} `json:"parameters"`
}

func chatML(prompt string) string {
	return "<|im_start|>user\n" + prompt + "<|im_end|>\n<|im_start|>assistant\n"
}

func (t *TextGen) Hint(ctx context.Context, target string) (string, error) {
	_, user := BuildPrompts(target)
	var payload textGenRequest
	payload.Inputs = chatML(user)
	payload.Parameters.Temperature = t.cfg.Temperature
	payload.Parameters.MaxNewTokens = t.cfg.MaxTokens
	data, _ := json.Marshal(payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.cfg.URL, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if t.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+t.cfg.Token)
	}

	resp, err := t.client.Do(req)
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

	var parsed []struct {
		GeneratedText string `json:"generated_text"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("oracle returned invalid JSON: %s", snippet(body))
	}
	if len(parsed) == 0 {
		return "", ErrEmptyHint
	}
	text := parsed[0].GeneratedText
	if i := strings.LastIndex(text, "assistant\n"); i >= 0 {
		text = text[i+len("assistant\n"):]
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "<|im_end|>")
	return cleanHint(text)
}
