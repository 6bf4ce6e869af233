// internal/httpserver/ws.go
//
// Live session channel at GET /game/ws.
//
// Client → server messages:
//   {"action":"state"}                    current round
//   {"action":"new","mode":"daily"}       start a round (mode optional)
//   {"action":"guess","payload":"fruit"}  score a guess
//   {"action":"hint"}                     request a riddle
//   {"action":"giveup"}                   surrender
//
// Server → client messages carry the same action plus the updated round, or
// {"action":"error","error":"<code>"} for failures. Messages on one connection
// are handled in order; HTTP calls for the same session interleave safely
// through the store lock. A separate reader keeps consuming frames (and pongs)
// while an action runs; when the queue is full the extra message gets "busy".

package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/hlog"

	"github.com/rizkyjpr/semantic-game/internal/game"
	"github.com/rizkyjpr/semantic-game/internal/session"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsMaxMessage = 4 << 10
	wsQueue      = 8
)

// wsMessage is the envelope for both directions.
type wsMessage struct {
	Action  string        `json:"action"`
	Mode    string        `json:"mode,omitempty"`
	Payload string        `json:"payload,omitempty"`
	Hint    string        `json:"hint,omitempty"`
	Outcome *game.Outcome `json:"outcome,omitempty"`
	Round   *roundView    `json:"round,omitempty"`
	Error   string        `json:"error,omitempty"`
	Detail  string        `json:"detail,omitempty"`
}

// wsConn serializes writes; gorilla allows one concurrent writer.
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsConn) send(msg wsMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return c.conn.WriteJSON(msg)
}

func (c *wsConn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait))
}

// checkOrigin accepts non-browser clients, the configured client origin and
// same-host pages.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || origin == s.opts.ClientOrigin {
		return true
	}
	u, err := url.Parse(origin)
	return err == nil && u.Host == r.Host
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	sid, _ := session.ID(r.Context())
	logger := hlog.FromRequest(r)

	upgrader := websocket.Upgrader{CheckOrigin: s.checkOrigin}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote an HTTP error.
		logger.Debug().Err(err).Msg("websocket upgrade")
		return
	}
	c := &wsConn{conn: conn}
	defer conn.Close()

	pongWait := s.pongWait
	conn.SetReadLimit(wsMaxMessage)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	// Cancelled when the peer goes away so a pending hint stops early.
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go func() {
		t := time.NewTicker(pongWait * 9 / 10)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if err := c.ping(); err != nil {
					return
				}
			}
		}
	}()

	msgs := make(chan []byte, wsQueue)
	go func() {
		defer close(msgs)
		defer cancel()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					logger.Debug().Err(err).Str("session", sid).Msg("websocket read")
				}
				return
			}
			select {
			case msgs <- data:
			default:
				_ = c.send(wsMessage{Action: "error", Error: "busy"})
			}
		}
	}()

	logger.Debug().Str("session", sid).Msg("websocket connected")

	// Send the current round right away, if there is one.
	if round, err := s.store.Get(ctx, sid); err == nil {
		v := s.view(round, false)
		_ = c.send(wsMessage{Action: "state", Round: &v})
	}

	for data := range msgs {
		var msg wsMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			_ = c.send(wsMessage{Action: "error", Error: "bad_json"})
			continue
		}
		if err := c.send(s.dispatchWS(ctx, sid, msg)); err != nil {
			return
		}
	}
}

// dispatchWS runs one client action and builds the reply.
func (s *Server) dispatchWS(ctx context.Context, sid string, msg wsMessage) wsMessage {
	reply := wsMessage{Action: msg.Action}

	var (
		round *game.Round
		err   error
	)
	switch msg.Action {
	case "state":
		round, err = s.store.Get(ctx, sid)
	case "new":
		round, err = s.startRound(ctx, sid, game.Mode(msg.Mode))
	case "guess":
		var out game.Outcome
		out, round, err = s.guess(ctx, sid, msg.Payload)
		reply.Outcome = &out
	case "hint":
		reply.Hint, round, err = s.hint(ctx, sid)
	case "giveup":
		round, err = s.giveUp(ctx, sid)
	default:
		return wsMessage{Action: "error", Error: "bad_action", Detail: msg.Action}
	}

	if err != nil {
		_, code := classify(err)
		return wsMessage{Action: "error", Error: code, Detail: err.Error()}
	}
	v := s.view(round, false)
	reply.Round = &v
	return reply
}
