// internal/config/config.go
//
// Process configuration read from the environment (and .env via godotenv).
// Responsibilities:
//   - Typed getters with defaults.
//   - Global zerolog setup (level + console/json output).
//   - Building the embedding and hint providers named by the config.

package config

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/rizkyjpr/semantic-game/internal/embedding"
	"github.com/rizkyjpr/semantic-game/internal/game"
	"github.com/rizkyjpr/semantic-game/internal/oracle"
)

// Config is everything the binaries read from the environment.
type Config struct {
	Port      string
	LogLevel  string
	LogFormat string // "json" (default) or "console"

	NounsFile string
	Game      game.Config

	EmbeddingProvider string // hashing | onnx | hf
	ONNX              embedding.ONNXConfig
	HFEmbeddingURL    string

	OracleProvider string // chat | textgen | canned
	OracleURL      string
	OracleModel    string
	HFToken        string

	DBPath        string
	SessionSecret string
	SecureCookies bool
	DailySalt     string
	ClientOrigin  string
	AllowReveal   bool
}

// Load reads .env (if present) and the process environment.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Port:      getEnv("PORT", "5175"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		NounsFile: getEnv("NOUNS_FILE", ""),
		Game: game.Config{
			MaxHints:       getEnvInt("MAX_HINTS", 3),
			ScoreThreshold: getEnvFloat("SCORE_THRESHOLD", 0.80),
			HintAttempts:   getEnvInt("HINT_ATTEMPTS", 3),
			HintTimeout:    getEnvDuration("HINT_TIMEOUT", 10*time.Second),
			HintBackoff:    getEnvDuration("HINT_BACKOFF", 0),
		},

		EmbeddingProvider: strings.ToLower(getEnv("EMBEDDING_PROVIDER", "hashing")),
		ONNX: embedding.ONNXConfig{
			ModelPath:         getEnv("ONNX_MODEL_PATH", ""),
			VocabPath:         getEnv("ONNX_VOCAB_PATH", ""),
			SharedLibraryPath: getEnv("ORT_SHARED_LIBRARY_PATH", ""),
			MaxTokens:         getEnvInt("ONNX_MAX_TOKENS", 128),
		},
		HFEmbeddingURL: getEnv("HF_EMBEDDING_URL", embedding.DefaultRemoteURL),

		OracleProvider: strings.ToLower(getEnv("ORACLE_PROVIDER", "chat")),
		OracleURL:      getEnv("ORACLE_URL", ""),
		OracleModel:    getEnv("ORACLE_MODEL", oracle.DefaultModel),
		HFToken:        getEnv("HUGGINGFACEHUB_API_TOKEN", ""),

		DBPath:        getEnv("DB_PATH", "./data/rounds.db"),
		SessionSecret: getEnv("SESSION_SECRET", "dev_secret_change_me"),
		SecureCookies: getEnvBool("SECURE_COOKIES", false),
		DailySalt:     getEnv("DAILY_SALT", "local_dev_salt"),
		ClientOrigin:  getEnv("CLIENT_ORIGIN", "http://localhost:5173"),
		AllowReveal:   getEnvBool("ALLOW_REVEAL", false),
	}
}

// SetupLogging configures the global zerolog logger.
func SetupLogging(level, format string) {
	if lvl, err := zerolog.ParseLevel(level); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}
	zerolog.TimeFieldFormat = time.RFC3339
	if format == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

// SemanticScoring reports whether the configured embedder scores by meaning.
// The hashing embedder only compares spelling.
func (c Config) SemanticScoring() bool {
	switch c.EmbeddingProvider {
	case "onnx", "hf", "remote":
		return true
	}
	return false
}

// Embedder builds the configured embedding provider. The returned closer
// releases native resources and is never nil.
func (c Config) Embedder() (embedding.Provider, io.Closer, error) {
	switch c.EmbeddingProvider {
	case "", "hashing":
		h, err := embedding.NewHashing(embedding.DefaultHashingDim)
		return h, nopCloser{}, err
	case "onnx":
		o, err := embedding.NewONNX(c.ONNX)
		if err != nil {
			return nil, nil, err
		}
		return o, o, nil
	case "hf", "remote":
		return embedding.NewRemote(embedding.RemoteConfig{
			URL:   c.HFEmbeddingURL,
			Token: c.HFToken,
		}), nopCloser{}, nil
	default:
		return nil, nil, fmt.Errorf("unknown EMBEDDING_PROVIDER %q", c.EmbeddingProvider)
	}
}

// Oracle builds the configured hint provider.
func (c Config) Oracle() (oracle.Provider, error) {
	hc := oracle.HTTPConfig{
		URL:     c.OracleURL,
		Model:   c.OracleModel,
		Token:   c.HFToken,
		Timeout: c.Game.HintTimeout,
	}
	switch c.OracleProvider {
	case "", "chat":
		return oracle.NewChat(hc), nil
	case "textgen":
		return oracle.NewTextGen(hc), nil
	case "canned":
		return oracle.Canned{}, nil
	default:
		return nil, fmt.Errorf("unknown ORACLE_PROVIDER %q", c.OracleProvider)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// getEnv returns the value of k or def if unset/empty.
func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getEnvInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		log.Warn().Str("key", k).Str("value", v).Msg("ignoring malformed int")
	}
	return def
}

func getEnvFloat(k string, def float64) float64 {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
		log.Warn().Str("key", k).Str("value", v).Msg("ignoring malformed float")
	}
	return def
}

func getEnvBool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
		log.Warn().Str("key", k).Str("value", v).Msg("ignoring malformed bool")
	}
	return def
}

// getEnvDuration accepts Go durations ("2s") or bare seconds ("2").
func getEnvDuration(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	log.Warn().Str("key", k).Str("value", v).Msg("ignoring malformed duration")
	return def
}
