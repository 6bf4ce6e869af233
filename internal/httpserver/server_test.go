package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rizkyjpr/semantic-game/internal/embedding"
	"github.com/rizkyjpr/semantic-game/internal/game"
	"github.com/rizkyjpr/semantic-game/internal/ledger"
	"github.com/rizkyjpr/semantic-game/internal/oracle"
	"github.com/rizkyjpr/semantic-game/internal/session"
	"github.com/rizkyjpr/semantic-game/internal/store"
	"github.com/rizkyjpr/semantic-game/internal/words"
)

var scores = map[string]float64{"fruit": 0.65, "orange": 0.85, "tree": 0.3}

// fakeEmbedder maps "apple" to the first axis and known words to a fixed cosine with it.
func fakeEmbedder() embedding.Func {
	return func(_ context.Context, text string) ([]float32, error) {
		if text == "apple" {
			return []float32{1, 0}, nil
		}
		if text == "broken" {
			return nil, errors.New("model offline")
		}
		s, ok := scores[text]
		if !ok {
			return []float32{0, 1}, nil
		}
		return []float32{float32(s), float32(math.Sqrt(1 - s*s))}, nil
	}
}

type testEnv struct {
	srv     *Server
	ledger  *ledger.Ledger
	issuer  *session.Issuer
	failing   bool          // oracle fails while set
	hintDelay time.Duration // oracle stalls this long before answering
}

func newEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()
	pool, err := words.NewPool([]string{"apple"})
	if err != nil {
		t.Fatal(err)
	}
	env := &testEnv{}
	hints := oracle.Func(func(ctx context.Context, target string) (string, error) {
		if env.failing {
			return "", errors.New("upstream 500")
		}
		if env.hintDelay > 0 {
			select {
			case <-time.After(env.hintDelay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
		return "It crunches, baka.", nil
	})
	cfg := game.DefaultConfig()
	cfg.HintTimeout = time.Second
	engine := game.NewEngine(pool, fakeEmbedder(), hints, cfg)

	lg, err := ledger.Open(filepath.Join(t.TempDir(), "rounds.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = lg.Close() })

	issuer, err := session.NewIssuer(session.Config{Secret: "test"})
	if err != nil {
		t.Fatal(err)
	}
	if opts.DailySalt == "" {
		opts.DailySalt = "salt"
	}
	env.srv = New(engine, store.NewMemoryStore(), lg, issuer, opts)
	env.ledger = lg
	env.issuer = issuer
	return env
}

func (e *testEnv) token(t *testing.T) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/session", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("POST /session: %d %s", rec.Code, rec.Body)
	}
	var res sessionRes
	decode(t, rec, &res)
	if res.Token == "" || res.SessionID == "" {
		t.Fatalf("session response = %+v", res)
	}
	return res.Token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body == nil {
		req.ContentLength = 0
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.srv.Router().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var b errorBody
	decode(t, rec, &b)
	return b.Error
}

func TestHealthAndRoot(t *testing.T) {
	env := newEnv(t, Options{})
	rec := env.do(t, http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok":true`) {
		t.Fatalf("health: %d %s", rec.Code, rec.Body)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Fatalf("content type %q", ct)
	}
	rec = env.do(t, http.MethodGet, "/", "", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "/game/guess") {
		t.Fatalf("root: %d %s", rec.Code, rec.Body)
	}
	rec = env.do(t, http.MethodGet, "/nope", "", nil)
	if rec.Code != http.StatusNotFound || errorCode(t, rec) != "not_found" {
		t.Fatalf("404: %d %s", rec.Code, rec.Body)
	}
}

func TestCORSPreflight(t *testing.T) {
	env := newEnv(t, Options{ClientOrigin: "http://app.test"})
	rec := env.do(t, http.MethodOptions, "/game/guess", "", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight status %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://app.test" {
		t.Fatalf("allow origin %q", got)
	}
}

func TestGameRequiresSession(t *testing.T) {
	env := newEnv(t, Options{})
	rec := env.do(t, http.MethodGet, "/game", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status %d", rec.Code)
	}
	rec = env.do(t, http.MethodGet, "/game", "forged", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("forged token status %d", rec.Code)
	}
}

func TestSessionRefreshKeepsID(t *testing.T) {
	env := newEnv(t, Options{})
	tok := env.token(t)
	rec := env.do(t, http.MethodPost, "/session", tok, nil)
	var res sessionRes
	decode(t, rec, &res)
	first, _ := env.issuer.Parse(tok)
	if res.SessionID != first {
		t.Fatalf("refresh changed id: %q -> %q", first, res.SessionID)
	}
	if len(rec.Result().Cookies()) != 1 {
		t.Fatalf("cookie not set")
	}
}

func TestNoRoundYet(t *testing.T) {
	env := newEnv(t, Options{})
	tok := env.token(t)
	rec := env.do(t, http.MethodGet, "/game", tok, nil)
	if rec.Code != http.StatusNotFound || errorCode(t, rec) != "no_round" {
		t.Fatalf("status %d %s", rec.Code, rec.Body)
	}
}

func TestPlayToWin(t *testing.T) {
	env := newEnv(t, Options{})
	tok := env.token(t)

	rec := env.do(t, http.MethodPost, "/game/new", tok, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("new: %d %s", rec.Code, rec.Body)
	}
	var v roundView
	decode(t, rec, &v)
	if v.Target != "" || v.HintsLeft != 3 || v.Finished || v.Mode != game.ModeRandom {
		t.Fatalf("fresh round view = %+v", v)
	}

	rec = env.do(t, http.MethodPost, "/game/guess", tok, guessReq{Guess: "Fruit"})
	var g guessRes
	decode(t, rec, &g)
	if rec.Code != http.StatusOK || g.Outcome.Status != game.StatusAccepted || g.Round.Won {
		t.Fatalf("fruit: %d %+v", rec.Code, g)
	}
	if g.Round.Guesses[0].Temperature != "warm" {
		t.Fatalf("fruit temperature = %q", g.Round.Guesses[0].Temperature)
	}

	rec = env.do(t, http.MethodPost, "/game/guess", tok, guessReq{Guess: "orange"})
	decode(t, rec, &g)
	if !g.Outcome.Won || !g.Round.Won || g.Round.GaveUp {
		t.Fatalf("orange should win: %+v", g)
	}
	if g.Round.Best == nil || g.Round.Best.Word != "orange" || g.Round.Best.Temperature != "hot" {
		t.Fatalf("best = %+v", g.Round.Best)
	}
	if g.Round.Guesses[1].Word != "fruit" || g.Round.Target != "apple" {
		t.Fatalf("finished view = %+v", g.Round)
	}

	// Finished rounds ignore further guesses.
	rec = env.do(t, http.MethodPost, "/game/guess", tok, guessReq{Guess: "tree"})
	decode(t, rec, &g)
	if g.Outcome.Status != game.StatusFinished || len(g.Round.Guesses) != 2 {
		t.Fatalf("after win: %+v", g)
	}

	var rows []ledger.Result
	_ = env.ledger.Each(context.Background(), time.Time{}, func(r ledger.Result) error {
		rows = append(rows, r)
		return nil
	})
	if len(rows) != 1 || rows[0].Attempts != 2 || rows[0].GaveUp || rows[0].Target != "apple" {
		t.Fatalf("ledger rows = %+v", rows)
	}
}

func TestGuessErrors(t *testing.T) {
	env := newEnv(t, Options{})
	tok := env.token(t)
	env.do(t, http.MethodPost, "/game/new", tok, nil)

	req := httptest.NewRequest(http.MethodPost, "/game/guess", strings.NewReader("{"))
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	env.srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest || errorCode(t, rec) != "bad_json" {
		t.Fatalf("bad json: %d %s", rec.Code, rec.Body)
	}

	rec = env.do(t, http.MethodPost, "/game/guess", tok, guessReq{Guess: "broken"})
	if rec.Code != http.StatusServiceUnavailable || errorCode(t, rec) != "embedding_unavailable" {
		t.Fatalf("embedding failure: %d %s", rec.Code, rec.Body)
	}

	rec = env.do(t, http.MethodPost, "/game/guess", tok, guessReq{Guess: "   "})
	var g guessRes
	decode(t, rec, &g)
	if g.Outcome.Status != game.StatusEmpty || len(g.Round.Guesses) != 0 {
		t.Fatalf("empty guess: %+v", g)
	}

	rec = env.do(t, http.MethodPost, "/game/new", tok, newRoundReq{Mode: "weekly"})
	if rec.Code != http.StatusBadRequest || errorCode(t, rec) != "bad_mode" {
		t.Fatalf("bad mode: %d %s", rec.Code, rec.Body)
	}
}

func TestHints(t *testing.T) {
	env := newEnv(t, Options{})
	tok := env.token(t)
	env.do(t, http.MethodPost, "/game/new", tok, nil)

	env.failing = true
	rec := env.do(t, http.MethodPost, "/game/hint", tok, nil)
	if rec.Code != http.StatusBadGateway || errorCode(t, rec) != "oracle_unavailable" {
		t.Fatalf("failing oracle: %d %s", rec.Code, rec.Body)
	}
	rec = env.do(t, http.MethodGet, "/game", tok, nil)
	var v roundView
	decode(t, rec, &v)
	if len(v.Hints) != 0 || v.HintsLeft != 3 {
		t.Fatalf("failed hint consumed budget: %+v", v)
	}

	env.failing = false
	for i := 0; i < 3; i++ {
		rec = env.do(t, http.MethodPost, "/game/hint", tok, nil)
		var h hintRes
		decode(t, rec, &h)
		if rec.Code != http.StatusOK || h.Hint == "" || h.Round.HintsLeft != 2-i {
			t.Fatalf("hint %d: %d %+v", i+1, rec.Code, h)
		}
	}
	rec = env.do(t, http.MethodPost, "/game/hint", tok, nil)
	if rec.Code != http.StatusConflict || errorCode(t, rec) != "hint_budget_exhausted" {
		t.Fatalf("exhausted: %d %s", rec.Code, rec.Body)
	}
}

func TestGiveUpRevealsAndRecords(t *testing.T) {
	env := newEnv(t, Options{})
	tok := env.token(t)
	env.do(t, http.MethodPost, "/game/new", tok, nil)

	rec := env.do(t, http.MethodPost, "/game/giveup", tok, nil)
	var v roundView
	decode(t, rec, &v)
	if !v.Won || !v.GaveUp || v.Target != "apple" {
		t.Fatalf("give up view = %+v", v)
	}

	// A second give-up is a no-op and must not record twice.
	env.do(t, http.MethodPost, "/game/giveup", tok, nil)
	n := 0
	_ = env.ledger.Each(context.Background(), time.Time{}, func(r ledger.Result) error {
		if !r.GaveUp {
			t.Fatalf("recorded as a win: %+v", r)
		}
		n++
		return nil
	})
	if n != 1 {
		t.Fatalf("ledger rows = %d", n)
	}
}

func TestReveal(t *testing.T) {
	for _, allow := range []bool{false, true} {
		env := newEnv(t, Options{AllowReveal: allow})
		tok := env.token(t)
		env.do(t, http.MethodPost, "/game/new", tok, nil)
		rec := env.do(t, http.MethodGet, "/game?reveal=1", tok, nil)
		var v roundView
		decode(t, rec, &v)
		if got := v.Target == "apple"; got != allow {
			t.Fatalf("allow=%v: target %q", allow, v.Target)
		}
	}
}

func TestDailyRoundOncePerDay(t *testing.T) {
	env := newEnv(t, Options{})
	day := time.Date(2024, 5, 17, 8, 0, 0, 0, time.UTC)
	env.srv.now = func() time.Time { return day }
	tok := env.token(t)

	rec := env.do(t, http.MethodPost, "/game/new", tok, newRoundReq{Mode: "daily"})
	var v roundView
	decode(t, rec, &v)
	if rec.Code != http.StatusCreated || v.Mode != game.ModeDaily || v.Date != "2024-05-17" {
		t.Fatalf("daily new: %d %+v", rec.Code, v)
	}
	env.do(t, http.MethodPost, "/game/hint", tok, nil)
	env.do(t, http.MethodPost, "/game/guess", tok, guessReq{Guess: "apple"})

	rec = env.do(t, http.MethodPost, "/game/new", tok, newRoundReq{Mode: "daily"})
	if rec.Code != http.StatusConflict || errorCode(t, rec) != "daily_already_played" {
		t.Fatalf("replay: %d %s", rec.Code, rec.Body)
	}

	// A second player on the same day.
	other := env.token(t)
	env.do(t, http.MethodPost, "/game/new", other, newRoundReq{Mode: "daily"})
	env.do(t, http.MethodPost, "/game/guess", other, guessReq{Guess: "apple"})

	rec = env.do(t, http.MethodGet, "/daily/leaderboard?date=2024-05-17", "", nil)
	var lb leaderboardRes
	decode(t, rec, &lb)
	if rec.Code != http.StatusOK || len(lb.Rows) != 2 {
		t.Fatalf("leaderboard: %d %+v", rec.Code, lb)
	}
	if lb.Rows[0].Hints != 0 || lb.Rows[1].Hints != 1 {
		t.Fatalf("fewer hints should rank first: %+v", lb.Rows)
	}

	rec = env.do(t, http.MethodGet, "/daily/leaderboard", "", nil)
	decode(t, rec, &lb)
	if lb.Date != "2024-05-17" {
		t.Fatalf("default date = %q", lb.Date)
	}
	rec = env.do(t, http.MethodGet, "/daily/leaderboard?date=yesterday", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad date status %d", rec.Code)
	}
}

func TestDebugWords(t *testing.T) {
	env := newEnv(t, Options{})
	rec := env.do(t, http.MethodGet, "/debug/words", "", nil)
	var got map[string]int
	decode(t, rec, &got)
	if got["nouns"] != 1 {
		t.Fatalf("debug = %+v", got)
	}
}

func TestWebSocket(t *testing.T) {
	env := newEnv(t, Options{})
	ts := httptest.NewServer(env.srv.Router())
	defer ts.Close()
	tok := env.token(t)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/game/ws?token=" + tok
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v (resp %+v)", err, resp)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	roundTrip := func(msg wsMessage) wsMessage {
		t.Helper()
		if err := conn.WriteJSON(msg); err != nil {
			t.Fatal(err)
		}
		var reply wsMessage
		if err := conn.ReadJSON(&reply); err != nil {
			t.Fatal(err)
		}
		return reply
	}

	if r := roundTrip(wsMessage{Action: "state"}); r.Action != "error" || r.Error != "no_round" {
		t.Fatalf("state before new = %+v", r)
	}
	if r := roundTrip(wsMessage{Action: "new"}); r.Round == nil || r.Round.Finished {
		t.Fatalf("new = %+v", r)
	}
	r := roundTrip(wsMessage{Action: "guess", Payload: "fruit"})
	if r.Outcome == nil || r.Outcome.Status != game.StatusAccepted || len(r.Round.Guesses) != 1 {
		t.Fatalf("guess = %+v", r)
	}
	if r := roundTrip(wsMessage{Action: "hint"}); r.Hint == "" || r.Round.HintsLeft != 2 {
		t.Fatalf("hint = %+v", r)
	}
	if r := roundTrip(wsMessage{Action: "dance"}); r.Error != "bad_action" {
		t.Fatalf("unknown action = %+v", r)
	}
	if r := roundTrip(wsMessage{Action: "giveup"}); !r.Round.GaveUp || r.Round.Target != "apple" {
		t.Fatalf("giveup = %+v", r)
	}

	// HTTP sees the same round.
	rec := env.do(t, http.MethodGet, "/game", tok, nil)
	var v roundView
	decode(t, rec, &v)
	if !v.GaveUp || len(v.Guesses) != 1 || len(v.Hints) != 1 {
		t.Fatalf("http view = %+v", v)
	}
}

func TestReadsDoNotWaitForSlowHint(t *testing.T) {
	env := newEnv(t, Options{})
	env.hintDelay = 600 * time.Millisecond
	tok := env.token(t)
	env.do(t, http.MethodPost, "/game/new", tok, nil)

	hintDone := make(chan int, 1)
	go func() {
		hintDone <- env.do(t, http.MethodPost, "/game/hint", tok, nil).Code
	}()
	time.Sleep(50 * time.Millisecond)

	start := time.Now()
	rec := env.do(t, http.MethodGet, "/game", tok, nil)
	if took := time.Since(start); took > 300*time.Millisecond {
		t.Fatalf("GET /game took %v while a hint was pending", took)
	}
	var v roundView
	decode(t, rec, &v)
	if rec.Code != http.StatusOK || len(v.Hints) != 0 {
		t.Fatalf("GET /game = %d %+v", rec.Code, v)
	}

	if code := <-hintDone; code != http.StatusOK {
		t.Fatalf("hint status = %d", code)
	}
	decode(t, env.do(t, http.MethodGet, "/game", tok, nil), &v)
	if len(v.Hints) != 1 {
		t.Fatalf("hints after completion = %v", v.Hints)
	}
}

func TestWebSocketSurvivesSlowHint(t *testing.T) {
	env := newEnv(t, Options{})
	env.srv.pongWait = 500 * time.Millisecond
	env.hintDelay = 800 * time.Millisecond
	ts := httptest.NewServer(env.srv.Router())
	defer ts.Close()
	tok := env.token(t)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/game/ws?token=" + tok
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	roundTrip := func(msg wsMessage) wsMessage {
		t.Helper()
		if err := conn.WriteJSON(msg); err != nil {
			t.Fatal(err)
		}
		var reply wsMessage
		if err := conn.ReadJSON(&reply); err != nil {
			t.Fatalf("%s: %v", msg.Action, err)
		}
		return reply
	}

	roundTrip(wsMessage{Action: "new"})
	if r := roundTrip(wsMessage{Action: "hint"}); r.Hint == "" {
		t.Fatalf("hint = %+v", r)
	}
	// The hint outlasted the pong window; the connection must still be usable.
	if r := roundTrip(wsMessage{Action: "state"}); r.Round == nil || len(r.Round.Hints) != 1 {
		t.Fatalf("state after slow hint = %+v", r)
	}
}

func TestWebSocketRejectsForeignOrigin(t *testing.T) {
	env := newEnv(t, Options{ClientOrigin: "http://app.test"})
	ts := httptest.NewServer(env.srv.Router())
	defer ts.Close()
	tok := env.token(t)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/game/ws?token=" + tok
	hdr := http.Header{"Origin": []string{"http://evil.test"}}
	if _, _, err := websocket.DefaultDialer.Dial(url, hdr); err == nil {
		t.Fatalf("foreign origin accepted")
	}
}
