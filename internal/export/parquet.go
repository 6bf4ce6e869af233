// Package export writes the round ledger to parquet for offline analysis.
package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"

	"github.com/rizkyjpr/semantic-game/internal/ledger"
)

// SchemaVersion is stored in the file's key/value metadata.
const SchemaVersion = "round_v1"

// Row is one finished round in columnar form. Timestamps are Unix milliseconds.
type Row struct {
	RoundID      string  `parquet:"round_id"`
	SessionID    string  `parquet:"session_id,dict"`
	Mode         string  `parquet:"mode,dict"`
	Date         string  `parquet:"date,dict"`
	Target       string  `parquet:"target,dict"`
	Attempts     int32   `parquet:"attempts"`
	Guesses      int32   `parquet:"guesses"`
	Hints        int32   `parquet:"hints"`
	BestScore    float64 `parquet:"best_score"`
	GaveUp       bool    `parquet:"gave_up"`
	ElapsedMs    int64   `parquet:"elapsed_ms"`
	StartedAtMs  int64   `parquet:"started_at_ms"`
	FinishedAtMs int64   `parquet:"finished_at_ms"`
}

// RowFrom converts a ledger result.
func RowFrom(r ledger.Result) Row {
	return Row{
		RoundID:      r.RoundID,
		SessionID:    r.SessionID,
		Mode:         r.Mode,
		Date:         r.Date,
		Target:       r.Target,
		Attempts:     int32(r.Attempts),
		Guesses:      int32(r.Guesses),
		Hints:        int32(r.Hints),
		BestScore:    r.BestScore,
		GaveUp:       r.GaveUp,
		ElapsedMs:    r.ElapsedMs,
		StartedAtMs:  r.StartedAt.UnixMilli(),
		FinishedAtMs: r.FinishedAt.UnixMilli(),
	}
}

// Source streams ledger results; *ledger.Ledger implements it.
type Source interface {
	Each(ctx context.Context, since time.Time, fn func(ledger.Result) error) error
}

const batchSize = 256

// WriteFile exports every result finished at or after since to outPath.
// The file is written under a temp name and renamed into place. When no rows
// match, nothing is left on disk and 0 is returned.
func WriteFile(ctx context.Context, src Source, outPath string, since time.Time) (int, error) {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return 0, fmt.Errorf("create output dir: %w", err)
	}
	tmpPath := outPath + ".tmp"
	_ = os.Remove(tmpPath)

	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, fmt.Errorf("open tmp parquet: %w", err)
	}
	w := parquet.NewGenericWriter[Row](
		f,
		parquet.Compression(&zstd.Codec{Level: zstd.SpeedBetterCompression}),
	)
	w.SetKeyValueMetadata("schema", SchemaVersion)

	total := 0
	batch := make([]Row, 0, batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if _, err := w.Write(batch); err != nil {
			return fmt.Errorf("write rows: %w", err)
		}
		total += len(batch)
		batch = batch[:0]
		return nil
	}

	err = src.Each(ctx, since, func(r ledger.Result) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		batch = append(batch, RowFrom(r))
		if len(batch) == batchSize {
			return flush()
		}
		return nil
	})
	if err == nil {
		err = flush()
	}

	closeErr := w.Close()
	_ = f.Sync()
	fileErr := f.Close()
	switch {
	case err != nil:
	case closeErr != nil:
		err = fmt.Errorf("close parquet writer: %w", closeErr)
	case fileErr != nil:
		err = fmt.Errorf("close parquet file: %w", fileErr)
	}
	if err != nil || total == 0 {
		_ = os.Remove(tmpPath)
		return 0, err
	}

	if err := os.Rename(tmpPath, outPath); err != nil {
		return 0, fmt.Errorf("rename parquet: %w", err)
	}
	return total, nil
}
