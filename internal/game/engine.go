// internal/game/engine.go
//
// Core game engine for semantic guessing rounds.
// Responsibilities:
//   - Start rounds with a random (or daily) target from the noun pool.
//   - Score guesses by cosine similarity of their embeddings to the target.
//   - Keep the guess history unique and sorted, and detect wins.
//   - Fetch hints with a bounded retry loop and enforce the hint budget.
//   - Handle give-up.
//
// Every operation either fully applies or leaves the round untouched.
// Callers serialize operations per round; the engine itself is stateless apart
// from its shared providers and is safe to use from many sessions at once.
package game

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/rizkyjpr/semantic-game/internal/daily"
	"github.com/rizkyjpr/semantic-game/internal/embedding"
	"github.com/rizkyjpr/semantic-game/internal/oracle"
	"github.com/rizkyjpr/semantic-game/internal/words"
)

// Engine applies game rules to rounds.
type Engine struct {
	pool     *words.Pool
	embedder embedding.Provider
	oracle   oracle.Provider
	cfg      Config
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewEngine wires the engine to its collaborators. Zero-valued config fields fall
// back to DefaultConfig.
func NewEngine(pool *words.Pool, embedder embedding.Provider, hints oracle.Provider, cfg Config) *Engine {
	return &Engine{
		pool:     pool,
		embedder: embedder,
		oracle:   hints,
		cfg:      cfg.withDefaults(),
		now:      time.Now,
		sleep:    sleepCtx,
	}
}

// Config returns the effective configuration.
func (e *Engine) Config() Config { return e.cfg }

// Pool returns the noun pool targets are drawn from.
func (e *Engine) Pool() *words.Pool { return e.pool }

// NewRound starts a round with a uniformly random target.
func (e *Engine) NewRound() *Round {
	return e.newRound(e.pool.Random(), ModeRandom, "")
}

// NewDailyRound starts a round whose target is shared by everyone on day's UTC date.
func (e *Engine) NewDailyRound(day time.Time, salt string) *Round {
	idx := daily.WordIndex(day, salt, e.pool.Len())
	return e.newRound(e.pool.At(idx), ModeDaily, daily.DateKey(day))
}

// NewRoundWithTarget starts a round with a fixed target (tests, daily mode).
func (e *Engine) NewRoundWithTarget(target string, mode Mode, date string) *Round {
	return e.newRound(target, mode, date)
}

func (e *Engine) newRound(target string, mode Mode, date string) *Round {
	return &Round{
		ID:        randomID(),
		Mode:      mode,
		Date:      date,
		Target:    words.Normalize(target),
		Guesses:   []GuessRecord{},
		Hints:     []string{},
		StartedAt: e.now().UTC(),
	}
}

// SubmitGuess normalizes raw, scores it and updates r.
//
// Empty input and guesses after the round ended are ignored (reported through
// Outcome.Status, not as errors). An embedding failure returns an error wrapping
// ErrEmbeddingUnavailable and leaves r unchanged.
//
// A word already in the history keeps its first score and is not re-appended,
// but still counts toward the win check.
func (e *Engine) SubmitGuess(ctx context.Context, r *Round, raw string) (Outcome, error) {
	guess := words.Normalize(raw)
	if guess == "" {
		return Outcome{Status: StatusEmpty}, nil
	}
	if r.Won {
		return Outcome{Status: StatusFinished, Guess: GuessRecord{Word: guess}}, nil
	}

	score, err := e.score(ctx, r.Target, guess)
	if err != nil {
		log.Warn().Err(err).Str("round", r.ID).Str("guess", guess).Msg("score guess")
		return Outcome{}, err
	}

	out := Outcome{Status: StatusAccepted, Guess: GuessRecord{Word: guess, Score: score}}
	if i := indexOf(r.Guesses, guess); i >= 0 {
		out.Status = StatusDuplicate
		out.Guess = r.Guesses[i]
	} else {
		r.Guesses = append(r.Guesses, out.Guess)
		sort.SliceStable(r.Guesses, func(i, j int) bool {
			return r.Guesses[i].Score > r.Guesses[j].Score
		})
	}
	r.Attempts++

	if score > e.cfg.ScoreThreshold || guess == r.Target {
		r.Won, r.GaveUp = true, false
		r.FinishedAt = e.now().UTC()
		out.Won = true
	}
	return out, nil
}

// score returns the similarity of guess to target. An exact match is 1 without
// consulting the provider.
func (e *Engine) score(ctx context.Context, target, guess string) (float64, error) {
	if guess == target {
		return 1, nil
	}
	vt, err := e.embedder.Embed(ctx, target)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, err)
	}
	vg, err := e.embedder.Embed(ctx, guess)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, err)
	}
	return embedding.Similarity(vt, vg), nil
}

// RequestHint asks the oracle for a riddle about r.Target and appends it.
//
// The budget is checked before any network call. Up to HintAttempts calls are
// made, each under its own HintTimeout; the first usable answer wins. When all
// fail, the last reason is returned wrapped in ErrOracleUnavailable and r is left
// unchanged, so failed requests never consume budget.
func (e *Engine) RequestHint(ctx context.Context, r *Round) (string, error) {
	if len(r.Hints) >= e.cfg.MaxHints {
		return "", ErrHintBudgetExhausted
	}

	var lastErr error
	for attempt := 1; attempt <= e.cfg.HintAttempts; attempt++ {
		if attempt > 1 && e.cfg.HintBackoff > 0 {
			if err := e.sleep(ctx, time.Duration(attempt-1)*e.cfg.HintBackoff); err != nil {
				lastErr = err
				break
			}
		}
		hint, err := e.fetchHint(ctx, r.Target)
		if err == nil {
			r.Hints = append(r.Hints, hint)
			log.Debug().Str("round", r.ID).Int("attempt", attempt).Msg("hint received")
			return hint, nil
		}
		lastErr = err
		log.Warn().Err(err).Str("round", r.ID).Int("attempt", attempt).Int("of", e.cfg.HintAttempts).Msg("hint attempt failed")
		if ctx.Err() != nil {
			break
		}
	}
	return "", fmt.Errorf("%w: %v", ErrOracleUnavailable, lastErr)
}

func (e *Engine) fetchHint(ctx context.Context, target string) (string, error) {
	actx, cancel := context.WithTimeout(ctx, e.cfg.HintTimeout)
	defer cancel()
	hint, err := e.oracle.Hint(actx, target)
	if err != nil {
		return "", err
	}
	if hint == "" {
		return "", oracle.ErrEmptyHint
	}
	return hint, nil
}

// HintsLeft returns how many hints r may still request.
func (e *Engine) HintsLeft(r *Round) int {
	if n := e.cfg.MaxHints - len(r.Hints); n > 0 {
		return n
	}
	return 0
}

// GiveUp ends an unfinished round as a surrender. It reports whether r changed.
func (e *Engine) GiveUp(r *Round) bool {
	if r.Won {
		return false
	}
	r.Won, r.GaveUp = true, true
	r.FinishedAt = e.now().UTC()
	return true
}

// Temperature buckets a score the way the history is labelled for players.
func Temperature(score float64) string {
	switch {
	case score > 0.7:
		return "hot"
	case score > 0.4:
		return "warm"
	default:
		return "cold"
	}
}

func indexOf(list []GuessRecord, word string) int {
	for i, g := range list {
		if g.Word == word {
			return i
		}
	}
	return -1
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// randomID returns a compact 16-hex-char identifier.
func randomID() string {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
