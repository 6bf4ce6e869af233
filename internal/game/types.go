// internal/game/types.go
//
// Core type definitions for the semantic guessing engine.
// Defines:
//   - GuessRecord: one scored guess.
//   - Round: state for a single round, from target selection to win/give-up.
//   - Outcome: what a submission did, so callers can react without diffing state.
//   - Config: tunables the engine consumes.

package game

import (
	"errors"
	"math"
	"time"
)

// Mode tells how the target was picked.
type Mode string

const (
	ModeRandom Mode = "random"
	ModeDaily  Mode = "daily"
)

// GuessRecord is a normalized guess and its cosine similarity to the target.
type GuessRecord struct {
	Word  string  `json:"word"`
	Score float64 `json:"score"`
}

// Round holds the state of one round.
//
// Invariants kept by the Engine:
//   - Guesses has no duplicate Word and is sorted by Score descending.
//   - len(Hints) never exceeds the engine's MaxHints.
//   - GaveUp implies Won.
//   - Target never changes; a new target means a new Round.
type Round struct {
	ID         string        `json:"id"`
	Mode       Mode          `json:"mode"`
	Date       string        `json:"date,omitempty"` // YYYY-MM-DD for daily rounds
	Target     string        `json:"target"`
	Guesses    []GuessRecord `json:"guesses"`
	Hints      []string      `json:"hints"`
	Won        bool          `json:"won"`
	GaveUp     bool          `json:"gaveUp"`
	Attempts   int           `json:"attempts"` // scored submissions, duplicates included
	StartedAt  time.Time     `json:"startedAt"`
	FinishedAt time.Time     `json:"finishedAt,omitempty"`
}

// Clone returns a deep copy safe to hand to readers.
func (r *Round) Clone() *Round {
	if r == nil {
		return nil
	}
	c := *r
	c.Guesses = append([]GuessRecord(nil), r.Guesses...)
	c.Hints = append([]string(nil), r.Hints...)
	return &c
}

// Best returns the top-scoring guess, if any.
func (r *Round) Best() (GuessRecord, bool) {
	if len(r.Guesses) == 0 {
		return GuessRecord{}, false
	}
	return r.Guesses[0], true
}

// Finished reports whether the round ended (win or give-up).
func (r *Round) Finished() bool { return r.Won }

// Status is the coarse outcome of a SubmitGuess call.
type Status string

const (
	StatusAccepted  Status = "accepted"  // new word appended
	StatusDuplicate Status = "duplicate" // word already in history; first score kept
	StatusEmpty     Status = "empty"     // nothing left after normalization
	StatusFinished  Status = "finished"  // round already over; ignored
)

// Outcome describes a SubmitGuess call.
type Outcome struct {
	Status Status      `json:"status"`
	Guess  GuessRecord `json:"guess"`
	Won    bool        `json:"won"` // this submission ended the round
}

// Config holds engine tunables.
type Config struct {
	MaxHints       int           // hint budget per round
	ScoreThreshold float64       // strictly-greater score wins; 0 is honoured
	HintAttempts   int           // oracle calls per hint request
	HintTimeout    time.Duration // per-attempt deadline
	HintBackoff    time.Duration // wait before attempt n is n*HintBackoff; 0 disables
}

// DefaultConfig returns the stock tunables.
func DefaultConfig() Config {
	return Config{
		MaxHints:       3,
		ScoreThreshold: 0.80,
		HintAttempts:   3,
		HintTimeout:    10 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxHints <= 0 {
		c.MaxHints = d.MaxHints
	}
	// Zero is a valid threshold (any positive score wins); only values outside
	// [0, 1] fall back.
	if math.IsNaN(c.ScoreThreshold) || c.ScoreThreshold < 0 || c.ScoreThreshold > 1 {
		c.ScoreThreshold = d.ScoreThreshold
	}
	if c.HintAttempts <= 0 {
		c.HintAttempts = d.HintAttempts
	}
	if c.HintTimeout <= 0 {
		c.HintTimeout = d.HintTimeout
	}
	if c.HintBackoff < 0 {
		c.HintBackoff = 0
	}
	return c
}

var (
	// ErrEmbeddingUnavailable: a vector could not be obtained; the guess was not recorded.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")
	// ErrOracleUnavailable: every hint attempt failed; no budget was spent.
	ErrOracleUnavailable = errors.New("oracle unavailable")
	// ErrHintBudgetExhausted: the round already holds MaxHints hints.
	ErrHintBudgetExhausted = errors.New("hint budget exhausted")
)
