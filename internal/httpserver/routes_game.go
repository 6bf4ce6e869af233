// internal/httpserver/routes_game.go
//
// Session and round endpoints:
//   - POST /session      → issue (or refresh) a signed session token
//   - POST /game/new     → start a random or daily round for the session
//   - GET  /game         → current round (?reveal=1 shows the target when enabled)
//   - POST /game/guess   → score a guess
//   - POST /game/hint    → request a riddle
//   - POST /game/giveup  → surrender
//
// The same operations back the WebSocket channel in ws.go.

package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/rizkyjpr/semantic-game/internal/daily"
	"github.com/rizkyjpr/semantic-game/internal/game"
	"github.com/rizkyjpr/semantic-game/internal/ledger"
	"github.com/rizkyjpr/semantic-game/internal/session"
)

var (
	errDailyPlayed = errors.New("daily round already played")
	errBadMode     = errors.New("unknown mode")
)

// ------------------------------- views -------------------------------------

type guessView struct {
	Word        string  `json:"word"`
	Score       float64 `json:"score"`
	Temperature string  `json:"temperature"` // hot | warm | cold
}

func newGuessView(g game.GuessRecord) guessView {
	return guessView{Word: g.Word, Score: g.Score, Temperature: game.Temperature(g.Score)}
}

// roundView is what clients see. The target is hidden until the round ends.
type roundView struct {
	ID        string      `json:"id"`
	Mode      game.Mode   `json:"mode"`
	Date      string      `json:"date,omitempty"`
	Guesses   []guessView `json:"guesses"`
	Best      *guessView  `json:"best,omitempty"`
	Hints     []string    `json:"hints"`
	HintsLeft int         `json:"hintsLeft"`
	Attempts  int         `json:"attempts"`
	Won       bool        `json:"won"`
	GaveUp    bool        `json:"gaveUp"`
	Finished  bool        `json:"finished"`
	Target    string      `json:"target,omitempty"`
}

func (s *Server) view(r *game.Round, reveal bool) roundView {
	v := roundView{
		ID:        r.ID,
		Mode:      r.Mode,
		Date:      r.Date,
		Guesses:   make([]guessView, 0, len(r.Guesses)),
		Hints:     append([]string{}, r.Hints...),
		HintsLeft: s.engine.HintsLeft(r),
		Attempts:  r.Attempts,
		Won:       r.Won,
		GaveUp:    r.GaveUp,
		Finished:  r.Finished(),
	}
	for _, g := range r.Guesses {
		v.Guesses = append(v.Guesses, newGuessView(g))
	}
	if best, ok := r.Best(); ok {
		bv := newGuessView(best)
		v.Best = &bv
	}
	if r.Finished() || (reveal && s.opts.AllowReveal) {
		v.Target = r.Target
	}
	return v
}

func wantsReveal(r *http.Request) bool {
	switch r.URL.Query().Get("reveal") {
	case "1", "true", "yes":
		return true
	}
	return false
}

// ------------------------------ operations ---------------------------------

// startRound replaces the session's round.
func (s *Server) startRound(ctx context.Context, sid string, mode game.Mode) (*game.Round, error) {
	var r *game.Round
	switch mode {
	case "", game.ModeRandom:
		r = s.engine.NewRound()
	case game.ModeDaily:
		now := s.now()
		played, err := s.ledger.DailyPlayed(ctx, sid, daily.DateKey(now))
		if err != nil {
			return nil, err
		}
		if played {
			return nil, errDailyPlayed
		}
		r = s.engine.NewDailyRound(now, s.opts.DailySalt)
	default:
		return nil, errBadMode
	}
	if err := s.store.Save(ctx, sid, r); err != nil {
		return nil, err
	}
	log.Debug().Str("session", sid).Str("round", r.ID).Str("mode", string(r.Mode)).Msg("round started")
	return r, nil
}

// mutate runs fn under the session lock and records the round in the ledger if
// fn finished it.
func (s *Server) mutate(ctx context.Context, sid string, fn func(r *game.Round) error) (*game.Round, error) {
	var wasFinished bool
	r, err := s.store.Update(ctx, sid, func(r *game.Round) error {
		wasFinished = r.Finished()
		return fn(r)
	})
	if r != nil && !wasFinished && r.Finished() {
		s.record(ctx, sid, r)
	}
	return r, err
}

func (s *Server) record(ctx context.Context, sid string, r *game.Round) {
	res, err := ledger.FromRound(sid, r)
	if err != nil {
		return
	}
	// Use a fresh context: the round is over even if the client went away.
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if _, err := s.ledger.Record(rctx, res); err != nil {
		log.Warn().Err(err).Str("session", sid).Str("round", r.ID).Msg("record round")
		return
	}
	log.Info().Str("session", sid).Str("round", r.ID).Bool("gaveUp", r.GaveUp).
		Int("attempts", r.Attempts).Msg("round finished")
}

func (s *Server) guess(ctx context.Context, sid, raw string) (game.Outcome, *game.Round, error) {
	var out game.Outcome
	r, err := s.mutate(ctx, sid, func(r *game.Round) error {
		var err error
		out, err = s.engine.SubmitGuess(ctx, r, raw)
		return err
	})
	return out, r, err
}

func (s *Server) hint(ctx context.Context, sid string) (string, *game.Round, error) {
	var hint string
	r, err := s.mutate(ctx, sid, func(r *game.Round) error {
		var err error
		hint, err = s.engine.RequestHint(ctx, r)
		return err
	})
	return hint, r, err
}

func (s *Server) giveUp(ctx context.Context, sid string) (*game.Round, error) {
	return s.mutate(ctx, sid, func(r *game.Round) error {
		s.engine.GiveUp(r)
		return nil
	})
}

// ------------------------------- handlers ----------------------------------

type sessionRes struct {
	SessionID string    `json:"sessionId"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// handleSession re-signs a still-valid session or mints a new one, and sets the cookie.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	var (
		tok string
		exp time.Time
	)
	sid, err := s.sessions.Parse(s.sessions.FromRequest(r))
	if err == nil {
		tok, exp, err = s.sessions.Sign(sid)
	} else {
		sid, tok, exp, err = s.sessions.Issue()
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.sessions.SetCookie(w, tok, exp)
	writeJSON(w, http.StatusOK, sessionRes{SessionID: sid, Token: tok, ExpiresAt: exp})
}

type newRoundReq struct {
	Mode string `json:"mode"` // "random" (default) | "daily"
}

func (s *Server) handleNewRound(w http.ResponseWriter, r *http.Request) {
	sid, _ := session.ID(r.Context())
	var req newRoundReq
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "bad_json"})
			return
		}
	}
	round, err := s.startRound(r.Context(), sid, game.Mode(req.Mode))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, s.view(round, false))
}

func (s *Server) handleGetRound(w http.ResponseWriter, r *http.Request) {
	sid, _ := session.ID(r.Context())
	round, err := s.store.Get(r.Context(), sid)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.view(round, wantsReveal(r)))
}

type guessReq struct {
	Guess string `json:"guess"`
}

type guessRes struct {
	Outcome game.Outcome `json:"outcome"`
	Round   roundView    `json:"round"`
}

func (s *Server) handleGuess(w http.ResponseWriter, r *http.Request) {
	sid, _ := session.ID(r.Context())
	var req guessReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "bad_json"})
		return
	}
	out, round, err := s.guess(r.Context(), sid, req.Guess)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, guessRes{Outcome: out, Round: s.view(round, false)})
}

type hintRes struct {
	Hint  string    `json:"hint"`
	Round roundView `json:"round"`
}

func (s *Server) handleHint(w http.ResponseWriter, r *http.Request) {
	sid, _ := session.ID(r.Context())
	hint, round, err := s.hint(r.Context(), sid)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, hintRes{Hint: hint, Round: s.view(round, false)})
}

func (s *Server) handleGiveUp(w http.ResponseWriter, r *http.Request) {
	sid, _ := session.ID(r.Context())
	round, err := s.giveUp(r.Context(), sid)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.view(round, false))
}
