package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
)

// streamReadLimit bounds a single inbound WebSocket message.
const streamReadLimit = 64 << 10

// handleStream upgrades to a WebSocket and matches every {"utterance": ...}
// text message in order, replying with one envelope per message. The
// connection stays open until the client closes it or the session ends.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Warn("api: websocket accept failed", "session_id", sess.ID(), "err", err)
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(streamReadLimit)

	ctx := r.Context()
	log := slog.With("session_id", sess.ID())
	log.Debug("api: stream opened")

	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				log.Debug("api: stream closed by client")
			default:
				if !errors.Is(err, context.Canceled) {
					log.Warn("api: stream read failed", "err", err)
				}
			}
			return
		}

		// The session may have been ended while the stream was open.
		if _, err := s.cfg.Sessions.Get(sess.ID()); err != nil {
			conn.Close(websocket.StatusNormalClosure, "session ended")
			return
		}

		var reply envelope
		var req matchRequest
		switch {
		case typ != websocket.MessageText:
			reply.Error = "api: stream accepts text messages only"
		case json.Unmarshal(data, &req) != nil:
			reply.Error = "api: invalid JSON message"
		default:
			reply = envelope{Success: true, Data: sess.Match(ctx, req.Utterance)}
		}

		out, err := json.Marshal(reply)
		if err != nil {
			log.Error("api: failed to encode stream reply", "err", err)
			return
		}
		if err := conn.Write(ctx, websocket.MessageText, out); err != nil {
			log.Warn("api: stream write failed", "err", err)
			return
		}
	}
}
