package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultRemoteURL is the hosted all-MiniLM-L6-v2 feature-extraction pipeline.
const DefaultRemoteURL = "https://router.huggingface.co/hf-inference/models/sentence-transformers/all-MiniLM-L6-v2/pipeline/feature-extraction"

// RemoteConfig configures the hosted feature-extraction client.
type RemoteConfig struct {
	URL     string
	Token   string
	Timeout time.Duration
}

// Remote calls a Hugging Face feature-extraction endpoint.
type Remote struct {
	url    string
	token  string
	client *http.Client
}

func NewRemote(cfg RemoteConfig) *Remote {
	if cfg.URL == "" {
		cfg.URL = DefaultRemoteURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Remote{url: cfg.URL, token: cfg.Token, client: &http.Client{Timeout: cfg.Timeout}}
}

func (r *Remote) Embed(ctx context.Context, text string) ([]float32, error) {
	body, _ := json.Marshal(map[string]any{
		"inputs":  text,
		"options": map[string]bool{"wait_for_model": true},
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feature-extraction status %d: %s", resp.StatusCode, truncate(raw, 200))
	}

	vec, err := decodeVector(raw)
	if err != nil {
		return nil, err
	}
	if !normalize(vec) {
		return nil, errors.New("embedding: zero vector")
	}
	return vec, nil
}

// decodeVector accepts either a pooled vector or a one-element batch of vectors.
func decodeVector(raw []byte) ([]float32, error) {
	var flat []float32
	if err := json.Unmarshal(raw, &flat); err == nil && len(flat) > 0 {
		return flat, nil
	}
	var batch [][]float32
	if err := json.Unmarshal(raw, &batch); err == nil && len(batch) > 0 && len(batch[0]) > 0 {
		return batch[0], nil
	}
	return nil, fmt.Errorf("feature-extraction returned unexpected body: %s", truncate(raw, 200))
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
