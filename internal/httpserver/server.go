// internal/httpserver/server.go
//
// HTTP server wiring for the Semantic Mystery backend.
// Responsibilities:
//   - Router + middleware (request ids, access logs, CORS, timeouts, panic recovery).
//   - Public endpoints: "/", "/health", POST /session, GET /daily/leaderboard.
//   - Session endpoints (signed token required): /game/* and the /game/ws channel.
//   - Recording finished rounds in the ledger.
//
// Notes:
//   - CORS is origin-aware and credentials-enabled (so cookies work).
//   - Each session owns one round; the store serializes operations on it, so a
//     slow hint request delays only later operations of its own session.
//     Reads see the last published snapshot and never wait.

package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"

	"github.com/rizkyjpr/semantic-game/internal/game"
	"github.com/rizkyjpr/semantic-game/internal/ledger"
	"github.com/rizkyjpr/semantic-game/internal/session"
	"github.com/rizkyjpr/semantic-game/internal/store"
)

// Ledger is the subset of *ledger.Ledger the server needs.
type Ledger interface {
	Record(ctx context.Context, res ledger.Result) (bool, error)
	DailyPlayed(ctx context.Context, sessionID, date string) (bool, error)
	Leaderboard(ctx context.Context, date string, limit int) ([]ledger.LeaderboardRow, error)
}

// Options are the HTTP-level knobs.
type Options struct {
	ClientOrigin   string        // allowed CORS / WebSocket origin
	AllowReveal    bool          // honour ?reveal=1 on unfinished rounds
	DailySalt      string        // key for the daily target index
	RequestTimeout time.Duration // per-request deadline for /game/* (not /game/ws)
}

// Server bundles router, engine, session store and ledger.
type Server struct {
	r        *chi.Mux
	engine   *game.Engine
	store    store.Store
	ledger   Ledger
	sessions *session.Issuer
	opts     Options
	now      func() time.Time
	pongWait time.Duration // websocket liveness window
}

// New constructs a Server, installs middleware, and registers routes.
func New(engine *game.Engine, st store.Store, lg Ledger, sessions *session.Issuer, opts Options) *Server {
	if opts.ClientOrigin == "" {
		opts.ClientOrigin = "http://localhost:5173"
	}
	if opts.RequestTimeout <= 0 {
		// Room for a full hint retry cycle.
		cfg := engine.Config()
		opts.RequestTimeout = time.Duration(cfg.HintAttempts)*(cfg.HintTimeout+cfg.HintBackoff) + 5*time.Second
	}
	s := &Server{
		r:        chi.NewRouter(),
		engine:   engine,
		store:    st,
		ledger:   lg,
		sessions: sessions,
		opts:     opts,
		now:      time.Now,
		pongWait: wsPongWait,
	}

	// --- middleware ---
	s.r.Use(chimw.RequestID) // add X-Request-ID
	s.r.Use(chimw.RealIP)    // set RemoteAddr from X-Forwarded-For etc.
	s.r.Use(hlog.NewHandler(log.Logger))
	s.r.Use(requestIDField)
	s.r.Use(hlog.AccessHandler(accessLog))
	s.r.Use(chimw.Recoverer) // recover from panics
	s.r.Use(s.cors)          // credentials-friendly CORS

	// --- diagnostics ---
	s.r.Group(func(r chi.Router) {
		r.Use(jsonContentType)
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{
				"service": "semantic-mystery",
				"endpoints": []string{
					"/health", "POST /session", "POST /game/new", "GET /game",
					"POST /game/guess", "POST /game/hint", "POST /game/giveup",
					"GET /game/ws", "GET /daily/leaderboard",
				},
			})
		})
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
		})
		r.Get("/debug/words", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]int{
				"nouns":    s.engine.Pool().Len(),
				"sessions": s.store.Len(),
			})
		})

		r.Post("/session", s.handleSession)
		s.mountDaily(r)

		// Game endpoints: a valid session token is required.
		r.Group(func(r chi.Router) {
			r.Use(s.sessions.Require)
			r.Use(chimw.Timeout(s.opts.RequestTimeout))
			r.Post("/game/new", s.handleNewRound)
			r.Get("/game", s.handleGetRound)
			r.Post("/game/guess", s.handleGuess)
			r.Post("/game/hint", s.handleHint)
			r.Post("/game/giveup", s.handleGiveUp)
		})
	})

	// The WebSocket upgrade must not inherit the request timeout or JSON headers.
	s.r.With(s.sessions.Require).Get("/game/ws", s.handleWS)

	// JSON 404 for easier debugging
	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found", "path": r.URL.Path})
	})

	return s
}

// Start begins serving HTTP on addr and stops when ctx is cancelled.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// Router exposes the internal router (useful for tests).
func (s *Server) Router() chi.Router { return s.r }

// ----------------------------- middleware ----------------------------------

// jsonContentType sets a default JSON Content-Type header on all responses.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

// requestIDField copies chi's request id into the request logger.
func requestIDField(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := chimw.GetReqID(r.Context()); id != "" {
			zerolog.Ctx(r.Context()).UpdateContext(func(c zerolog.Context) zerolog.Context {
				return c.Str("req_id", id)
			})
		}
		next.ServeHTTP(w, r)
	})
}

func accessLog(r *http.Request, status, size int, duration time.Duration) {
	hlog.FromRequest(r).Info().
		Str("method", r.Method).
		Stringer("url", r.URL).
		Int("status", status).
		Int("size", size).
		Dur("duration", duration).
		Msg("request")
}

// cors enables credentialed CORS for a single origin.
func (s *Server) cors(next http.Handler) http.Handler {
	origin := s.opts.ClientOrigin
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ------------------------------- responses ---------------------------------

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

// classify maps a domain error to an HTTP status and stable error code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, game.ErrEmbeddingUnavailable):
		return http.StatusServiceUnavailable, "embedding_unavailable"
	case errors.Is(err, game.ErrOracleUnavailable):
		return http.StatusBadGateway, "oracle_unavailable"
	case errors.Is(err, game.ErrHintBudgetExhausted):
		return http.StatusConflict, "hint_budget_exhausted"
	case errors.Is(err, errDailyPlayed):
		return http.StatusConflict, "daily_already_played"
	case errors.Is(err, errBadMode):
		return http.StatusBadRequest, "bad_mode"
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "no_round"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	body := errorBody{Error: code}
	if status >= 500 || status == http.StatusConflict {
		body.Detail = err.Error()
	}
	if status >= 500 {
		hlog.FromRequest(r).Warn().Err(err).Str("code", code).Msg("request failed")
	}
	writeJSON(w, status, body)
}
