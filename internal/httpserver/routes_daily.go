// internal/httpserver/routes_daily.go
//
// Daily leaderboard:
//   - GET /daily/leaderboard?date=YYYY-MM-DD&limit=N → winners of that day's round
//
// Daily rounds themselves are started through POST /game/new {"mode":"daily"};
// each session can finish the daily round once per date.

package httpserver

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/rizkyjpr/semantic-game/internal/daily"
	"github.com/rizkyjpr/semantic-game/internal/ledger"
)

// mountDaily registers all /daily routes.
func (s *Server) mountDaily(r chi.Router) {
	r.Route("/daily", func(r chi.Router) {
		r.Get("/leaderboard", s.handleLeaderboard)
	})
}

type leaderboardRes struct {
	Date string                  `json:"date"`
	Rows []ledger.LeaderboardRow `json:"rows"`
}

// handleLeaderboard returns top results for a given date (default today, UTC).
func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		date = daily.DateKey(s.now())
	} else if _, err := daily.ParseDateKey(date); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "bad_date"})
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 100 {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "bad_limit"})
			return
		}
		limit = n
	}

	rows, err := s.ledger.Leaderboard(r.Context(), date, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, leaderboardRes{Date: date, Rows: rows})
}
