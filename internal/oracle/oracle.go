// Package oracle produces cryptic one-sentence riddles for a target word.
//
// The game engine owns retries and the hint budget; a Provider only makes one
// attempt per call and reports failure through its error.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ErrEmptyHint is returned when a backend answers without usable text.
var ErrEmptyHint = errors.New("oracle returned empty hint")

// Provider generates a hint for target. Implementations must honor ctx deadlines.
type Provider interface {
	Hint(ctx context.Context, target string) (string, error)
}

// Func adapts a plain function to Provider.
type Func func(ctx context.Context, target string) (string, error)

func (f Func) Hint(ctx context.Context, target string) (string, error) { return f(ctx, target) }

// DefaultModel is the instruction-tuned model the hosted backends ask for.
const DefaultModel = "Qwen/Qwen2.5-7B-Instruct"

// BuildPrompts returns the persona and the request separately.
func BuildPrompts(target string) (systemPrompt, userPrompt string) {
	systemPrompt = strings.Join([]string{
		"You are the 'Semantic Oracle', a high-and-mighty tsundere goddess.",
		"Your task is to give a cryptic hint for a secret word without mentioning the word itself.",
		"Rules:",
		"1. Start with a classic tsundere remark (e.g., 'Hmph!', 'It's not like I want to help you!', 'Tch, so slow!').",
		"2. Give a riddle that focuses on the essence, meaning, or usage of the word.",
		"3. Keep it to 1-2 sentences.",
		"4. Be insulting but helpful.",
		"5. Speak in English.",
	}, " ")
	userPrompt = fmt.Sprintf("Give a one-sentence cryptic tsundere riddle for the word: '%s'. Don't mention the word.", target)
	return systemPrompt, userPrompt
}

// HTTPConfig is shared by the hosted backends.
type HTTPConfig struct {
	URL         string
	Model       string
	Token       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

func (c HTTPConfig) withDefaults(url string, temperature float64) HTTPConfig {
	if c.URL == "" {
		c.URL = url
	}
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.Temperature == 0 {
		c.Temperature = temperature
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 100
	}
	if c.Timeout <= 0 {
		c.Timeout = 20 * time.Second
	}
	return c
}

func (c HTTPConfig) client() *http.Client {
	return &http.Client{Timeout: c.Timeout}
}

func cleanHint(s string) (string, error) {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "\"")
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ErrEmptyHint
	}
	return s, nil
}

func snippet(b []byte) string {
	if len(b) > 200 {
		return string(b[:200]) + "..."
	}
	return string(b)
}
