// main.go
//
// Semantic Mystery HTTP server.
// Loads configuration, builds the noun pool, embedding and hint providers,
// opens the round ledger and serves the API until interrupted.

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/rizkyjpr/semantic-game/internal/config"
	"github.com/rizkyjpr/semantic-game/internal/game"
	"github.com/rizkyjpr/semantic-game/internal/httpserver"
	"github.com/rizkyjpr/semantic-game/internal/ledger"
	"github.com/rizkyjpr/semantic-game/internal/session"
	"github.com/rizkyjpr/semantic-game/internal/store"
	"github.com/rizkyjpr/semantic-game/internal/words"
)

func main() {
	cfg := config.Load()
	config.SetupLogging(cfg.LogLevel, cfg.LogFormat)

	pool, err := words.Init(cfg.NounsFile)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load noun pool")
	}

	embedder, closer, err := cfg.Embedder()
	if err != nil {
		log.Fatal().Err(err).Str("provider", cfg.EmbeddingProvider).Msg("failed to build embedding provider")
	}
	defer closer.Close()
	if !cfg.SemanticScoring() {
		log.Warn().Msg("EMBEDDING_PROVIDER=hashing scores by spelling, not meaning; set onnx or hf for semantic scoring")
	}

	hints, err := cfg.Oracle()
	if err != nil {
		log.Fatal().Err(err).Str("provider", cfg.OracleProvider).Msg("failed to build hint provider")
	}
	if cfg.HFToken == "" && cfg.OracleProvider != "canned" {
		log.Warn().Msg("HUGGINGFACEHUB_API_TOKEN is empty; hint requests will likely fail")
	}

	lg, err := ledger.Open(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("failed to open ledger")
	}
	defer lg.Close()

	issuer, err := session.NewIssuer(session.Config{
		Secret: cfg.SessionSecret,
		Secure: cfg.SecureCookies,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build session issuer")
	}

	engine := game.NewEngine(pool, embedder, hints, cfg.Game)
	srv := httpserver.New(engine, store.NewMemoryStore(), lg, issuer, httpserver.Options{
		ClientOrigin: cfg.ClientOrigin,
		AllowReveal:  cfg.AllowReveal,
		DailySalt:    cfg.DailySalt,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().
		Str("port", cfg.Port).
		Int("nouns", pool.Len()).
		Str("embedding", cfg.EmbeddingProvider).
		Str("oracle", cfg.OracleProvider).
		Msg("starting semantic-mystery")
	if err := srv.Start(ctx, ":"+cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server exited")
	}
	log.Info().Msg("server stopped")
}
