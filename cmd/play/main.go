// Command play runs a round in the terminal, with the engine in-process.
//
// Providers come from the same environment as the server (EMBEDDING_PROVIDER,
// ORACLE_PROVIDER, ...). Logs go to play.log so they do not tear the UI.
package main

import (
	"flag"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/rizkyjpr/semantic-game/internal/config"
	"github.com/rizkyjpr/semantic-game/internal/game"
	"github.com/rizkyjpr/semantic-game/internal/words"
)

func main() {
	cfg := config.Load()

	daily := flag.Bool("daily", false, "play today's shared word")
	logPath := flag.String("log", "play.log", "log file")
	flag.Parse()

	if f, err := os.OpenFile(*logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644); err == nil {
		defer f.Close()
		log.Logger = zerolog.New(f).With().Timestamp().Logger()
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	pool, err := words.Init(cfg.NounsFile)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load noun pool")
	}
	embedder, closer, err := cfg.Embedder()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build embedding provider")
	}
	defer closer.Close()
	hints, err := cfg.Oracle()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build hint provider")
	}

	engine := game.NewEngine(pool, embedder, hints, cfg.Game)
	newRound := engine.NewRound
	if *daily {
		newRound = func() *game.Round { return engine.NewDailyRound(time.Now(), cfg.DailySalt) }
	}

	p := tea.NewProgram(newModel(engine, newRound, cfg.AllowReveal), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		log.Error().Err(err).Msg("terminal client")
		os.Exit(1)
	}
}
