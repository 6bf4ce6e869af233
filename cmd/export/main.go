// Command export writes the round ledger to a zstd-compressed parquet file.
//
//	export -db ./data/rounds.db -out ./exports/rounds.parquet -since 2024-05-01
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/rizkyjpr/semantic-game/internal/config"
	"github.com/rizkyjpr/semantic-game/internal/daily"
	"github.com/rizkyjpr/semantic-game/internal/export"
	"github.com/rizkyjpr/semantic-game/internal/ledger"
)

func main() {
	cfg := config.Load()

	dbPath := flag.String("db", cfg.DBPath, "path to the sqlite ledger")
	outPath := flag.String("out", "", "output parquet file (default ./exports/rounds_<unix>.parquet)")
	sinceStr := flag.String("since", "", "only rounds finished on or after this date (YYYY-MM-DD)")
	flag.Parse()

	config.SetupLogging(cfg.LogLevel, "console")

	var since time.Time
	if *sinceStr != "" {
		t, err := daily.ParseDateKey(*sinceStr)
		if err != nil {
			log.Fatal().Err(err).Str("since", *sinceStr).Msg("bad -since")
		}
		since = t
	}
	if *outPath == "" {
		*outPath = fmt.Sprintf("./exports/rounds_%d.parquet", time.Now().Unix())
	}

	lg, err := ledger.Open(*dbPath)
	if err != nil {
		log.Fatal().Err(err).Str("db", *dbPath).Msg("open ledger")
	}
	defer lg.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	start := time.Now()
	n, err := export.WriteFile(ctx, lg, *outPath, since)
	if err != nil {
		log.Fatal().Err(err).Msg("export failed")
	}
	if n == 0 {
		log.Info().Msg("no rounds to export")
		return
	}
	log.Info().Int("rows", n).Str("out", *outPath).Dur("took", time.Since(start)).Msg("export complete")
}
