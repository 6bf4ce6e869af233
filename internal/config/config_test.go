package config

import (
	"fmt"
	"testing"
	"time"

	"github.com/rizkyjpr/semantic-game/internal/embedding"
	"github.com/rizkyjpr/semantic-game/internal/game"
	"github.com/rizkyjpr/semantic-game/internal/oracle"
	"github.com/rizkyjpr/semantic-game/internal/words"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"PORT", "MAX_HINTS", "SCORE_THRESHOLD", "HINT_TIMEOUT", "EMBEDDING_PROVIDER", "ORACLE_PROVIDER", "ALLOW_REVEAL"} {
		t.Setenv(k, "")
	}
	c := Load()
	if c.Port != "5175" || c.Game.MaxHints != 3 || c.Game.ScoreThreshold != 0.80 || c.Game.HintTimeout != 10*time.Second {
		t.Fatalf("defaults = %+v", c)
	}
	if c.EmbeddingProvider != "hashing" || c.OracleProvider != "chat" || c.AllowReveal {
		t.Fatalf("provider defaults = %q %q reveal=%v", c.EmbeddingProvider, c.OracleProvider, c.AllowReveal)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("MAX_HINTS", "5")
	t.Setenv("SCORE_THRESHOLD", "0.9")
	t.Setenv("HINT_TIMEOUT", "2")
	t.Setenv("HINT_BACKOFF", "250ms")
	t.Setenv("HINT_ATTEMPTS", "many")
	t.Setenv("EMBEDDING_PROVIDER", "ONNX")
	t.Setenv("ALLOW_REVEAL", "true")

	c := Load()
	if c.Game.MaxHints != 5 || c.Game.ScoreThreshold != 0.9 {
		t.Fatalf("game = %+v", c.Game)
	}
	if c.Game.HintTimeout != 2*time.Second || c.Game.HintBackoff != 250*time.Millisecond {
		t.Fatalf("durations = %v %v", c.Game.HintTimeout, c.Game.HintBackoff)
	}
	if c.Game.HintAttempts != 3 {
		t.Fatalf("malformed int should fall back, got %d", c.Game.HintAttempts)
	}
	if c.EmbeddingProvider != "onnx" || !c.AllowReveal {
		t.Fatalf("provider=%q reveal=%v", c.EmbeddingProvider, c.AllowReveal)
	}
}

func TestSemanticScoring(t *testing.T) {
	for provider, want := range map[string]bool{
		"": false, "hashing": false, "onnx": true, "hf": true, "remote": true,
	} {
		if got := (Config{EmbeddingProvider: provider}).SemanticScoring(); got != want {
			t.Fatalf("SemanticScoring(%q) = %v, want %v", provider, got, want)
		}
	}
}

func TestZeroScoreThresholdSurvives(t *testing.T) {
	t.Setenv("SCORE_THRESHOLD", "0")
	c := Load()
	if c.Game.ScoreThreshold != 0 {
		t.Fatalf("loaded threshold = %v", c.Game.ScoreThreshold)
	}
	pool, _ := words.NewPool([]string{"apple"})
	e := game.NewEngine(pool, embedding.Func(nil), oracle.Canned{}, c.Game)
	if got := e.Config().ScoreThreshold; got != 0 {
		t.Fatalf("engine threshold = %v, want 0", got)
	}
}

func TestEmbedderSelection(t *testing.T) {
	c := Config{EmbeddingProvider: "hashing"}
	p, closer, err := c.Embedder()
	if err != nil || closer == nil {
		t.Fatalf("hashing: %v", err)
	}
	if _, ok := p.(*embedding.Hashing); !ok {
		t.Fatalf("got %T", p)
	}

	c = Config{EmbeddingProvider: "hf", HFEmbeddingURL: "http://example.invalid"}
	if p, _, err = c.Embedder(); err != nil {
		t.Fatal(err)
	}
	if _, ok := p.(*embedding.Remote); !ok {
		t.Fatalf("got %T", p)
	}

	c = Config{EmbeddingProvider: "onnx"}
	if _, _, err = c.Embedder(); err == nil {
		t.Fatalf("onnx without model paths should fail")
	}

	c = Config{EmbeddingProvider: "word2vec"}
	if _, _, err = c.Embedder(); err == nil {
		t.Fatalf("unknown provider accepted")
	}
}

func TestOracleSelection(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"chat", "*oracle.Chat"},
		{"textgen", "*oracle.TextGen"},
		{"canned", "oracle.Canned"},
	}
	for _, tt := range tests {
		p, err := Config{OracleProvider: tt.name}.Oracle()
		if err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		if got := fmt.Sprintf("%T", p); got != tt.want {
			t.Fatalf("%s: got %s, want %s", tt.name, got, tt.want)
		}
	}
	if _, err := (Config{OracleProvider: "crystal-ball"}).Oracle(); err == nil {
		t.Fatalf("unknown oracle accepted")
	}
}
