// internal/ledger/ledger.go
//
// SQLite ledger of finished rounds.
// Responsibilities:
//   - Opening SQLite with safe defaults (WAL, busy timeout, foreign keys).
//   - Applying the embedded migrations (idempotent, recorded in _migrations).
//   - Recording each finished round exactly once.
//   - Daily leaderboard and full-history iteration for export.
//
// Rounds in progress are never written here; they live in the session store.

package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"

	"github.com/rizkyjpr/semantic-game/assets"
	"github.com/rizkyjpr/semantic-game/internal/game"
)

// timeLayout has fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000Z"

// ErrUnfinished is returned when recording a round that has not ended.
var ErrUnfinished = errors.New("round not finished")

// Ledger wraps the database handle.
type Ledger struct {
	db *sql.DB
}

// Result is one finished round as stored.
type Result struct {
	RoundID    string    `json:"roundId"`
	SessionID  string    `json:"sessionId"`
	Mode       string    `json:"mode"`
	Date       string    `json:"date,omitempty"`
	Target     string    `json:"target"`
	Attempts   int       `json:"attempts"`
	Guesses    int       `json:"guesses"`
	Hints      int       `json:"hints"`
	BestScore  float64   `json:"bestScore"`
	GaveUp     bool      `json:"gaveUp"`
	ElapsedMs  int64     `json:"elapsedMs"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
}

// FromRound summarizes a finished round.
func FromRound(sessionID string, r *game.Round) (Result, error) {
	if r == nil || !r.Finished() {
		return Result{}, ErrUnfinished
	}
	res := Result{
		RoundID:    r.ID,
		SessionID:  sessionID,
		Mode:       string(r.Mode),
		Date:       r.Date,
		Target:     r.Target,
		Attempts:   r.Attempts,
		Guesses:    len(r.Guesses),
		Hints:      len(r.Hints),
		GaveUp:     r.GaveUp,
		StartedAt:  r.StartedAt.UTC(),
		FinishedAt: r.FinishedAt.UTC(),
	}
	if best, ok := r.Best(); ok {
		res.BestScore = best.Score
	}
	if !r.FinishedAt.IsZero() && r.FinishedAt.After(r.StartedAt) {
		res.ElapsedMs = r.FinishedAt.Sub(r.StartedAt).Milliseconds()
	}
	return res, nil
}

// LeaderboardRow is one winner on a daily leaderboard.
type LeaderboardRow struct {
	SessionID string `json:"sessionId"`
	Attempts  int    `json:"attempts"`
	Hints     int    `json:"hints"`
	ElapsedMs int64  `json:"elapsedMs"`
}

// Open opens (and creates if missing) a SQLite database file and migrates it.
func Open(dsn string) (*Ledger, error) {
	// Ensure directory exists for ./data/rounds.db, etc.
	dir := filepath.Dir(dsn)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite3", dsn+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(`PRAGMA foreign_keys = ON; PRAGMA journal_mode = WAL;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set pragmas: %w", err)
	}
	if err := migrate(db, assets.Migrations()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Ledger{db: db}, nil
}

// Close releases the database.
func (l *Ledger) Close() error { return l.db.Close() }

// migrate applies *.sql files from fsys in lexical order, each in its own
// transaction, skipping those already recorded in _migrations.
func migrate(db *sql.DB, fsys fs.FS) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS _migrations (name TEXT PRIMARY KEY);`); err != nil {
		return fmt.Errorf("create _migrations: %w", err)
	}

	var files []string
	if err := fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(strings.ToLower(d.Name()), ".sql") {
			files = append(files, path)
		}
		return nil
	}); err != nil {
		return fmt.Errorf("walk migrations: %w", err)
	}
	sort.Strings(files)

	for _, f := range files {
		var done int
		err := db.QueryRow(`SELECT 1 FROM _migrations WHERE name=?`, f).Scan(&done)
		if err == nil {
			log.Debug().Str("migration", f).Msg("already applied")
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("query _migrations: %w", err)
		}

		body, err := fs.ReadFile(fsys, f)
		if err != nil {
			return fmt.Errorf("read %s: %w", f, err)
		}

		tx, err := db.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(string(body)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply %s: %w", f, err)
		}
		if _, err := tx.Exec(`INSERT INTO _migrations(name) VALUES (?)`, f); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record %s: %w", f, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit %s: %w", f, err)
		}
		log.Info().Str("migration", f).Msg("applied")
	}
	return nil
}

// Record stores res. A round already recorded is ignored; it reports whether a
// row was written.
func (l *Ledger) Record(ctx context.Context, res Result) (bool, error) {
	gaveUp := 0
	if res.GaveUp {
		gaveUp = 1
	}
	out, err := l.db.ExecContext(ctx, `
        INSERT OR IGNORE INTO rounds
            (id, session_id, mode, date, target, attempts, guesses, hints,
             best_score, gave_up, elapsed_ms, started_at, finished_at)
        VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		res.RoundID, res.SessionID, res.Mode, res.Date, res.Target,
		res.Attempts, res.Guesses, res.Hints, res.BestScore, gaveUp, res.ElapsedMs,
		res.StartedAt.UTC().Format(timeLayout), res.FinishedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return false, err
	}
	n, err := out.RowsAffected()
	return n > 0, err
}

// DailyPlayed reports whether sessionID already finished the daily round for date.
func (l *Ledger) DailyPlayed(ctx context.Context, sessionID, date string) (bool, error) {
	var cnt int
	if err := l.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM rounds WHERE mode='daily' AND session_id=? AND date=?`,
		sessionID, date,
	).Scan(&cnt); err != nil {
		return false, err
	}
	return cnt > 0, nil
}

// Leaderboard returns the winners of the daily round for date.
//
//   - Ordered by attempts ASC, then hints ASC, then elapsed ASC, then finish time.
//   - Default limit is 20 if not specified.
//   - Surrenders are excluded.
func (l *Ledger) Leaderboard(ctx context.Context, date string, limit int) ([]LeaderboardRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := l.db.QueryContext(ctx, `
        SELECT session_id, attempts, hints, elapsed_ms
        FROM rounds
        WHERE mode='daily' AND date=? AND gave_up=0
        ORDER BY attempts ASC, hints ASC, elapsed_ms ASC, finished_at ASC
        LIMIT ?`, date, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]LeaderboardRow, 0, limit)
	for rows.Next() {
		var r LeaderboardRow
		if err := rows.Scan(&r.SessionID, &r.Attempts, &r.Hints, &r.ElapsedMs); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Each streams every recorded round, oldest first, to fn. Iteration stops at
// the first error fn returns.
func (l *Ledger) Each(ctx context.Context, since time.Time, fn func(Result) error) error {
	rows, err := l.db.QueryContext(ctx, `
        SELECT id, session_id, mode, date, target, attempts, guesses, hints,
               best_score, gave_up, elapsed_ms, started_at, finished_at
        FROM rounds
        WHERE finished_at >= ?
        ORDER BY finished_at ASC, id ASC`, since.UTC().Format(timeLayout))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			r                 Result
			gaveUp            int
			started, finished string
		)
		if err := rows.Scan(&r.RoundID, &r.SessionID, &r.Mode, &r.Date, &r.Target,
			&r.Attempts, &r.Guesses, &r.Hints, &r.BestScore, &gaveUp, &r.ElapsedMs,
			&started, &finished); err != nil {
			return err
		}
		r.GaveUp = gaveUp != 0
		r.StartedAt, _ = time.Parse(timeLayout, started)
		r.FinishedAt, _ = time.Parse(timeLayout, finished)
		if err := fn(r); err != nil {
			return err
		}
	}
	return rows.Err()
}
