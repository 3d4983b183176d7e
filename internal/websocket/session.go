// Inkwell - Real-Time Collaborative Document Server
// Copyright 2026 Inkwell Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/inkwell-hq/inkwell

package websocket

import (
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/inkwell-hq/inkwell/internal/collab"
	"github.com/inkwell-hq/inkwell/internal/logging"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Session binds one websocket connection to its engine client record. The
// read pump decodes frames and hands them to the engine; the write pump
// drains the client's outbound channel back onto the wire.
type Session struct {
	engine *collab.Engine
	client *collab.Client
	conn   *websocket.Conn

	limiter  *rate.Limiter
	maxBytes int64
}

// NewSession registers a connection with the engine and wraps it with its
// per-connection message rate limiter.
func NewSession(engine *collab.Engine, conn *websocket.Conn, msgRate float64, burst int, maxBytes int64) *Session {
	return &Session{
		engine:   engine,
		client:   engine.Connect(),
		conn:     conn,
		limiter:  rate.NewLimiter(rate.Limit(msgRate), burst),
		maxBytes: maxBytes,
	}
}

// Start launches the read and write pumps.
func (s *Session) Start() {
	go s.writePump()
	go s.readPump()
}

// readPump pumps frames from the connection into the engine. It exits on
// any read error; decode failures and rate-limit rejections only cost the
// offending message.
func (s *Session) readPump() {
	defer func() {
		s.engine.Disconnect(s.client.ID)
		_ = s.conn.Close()
	}()

	s.conn.SetReadLimit(s.maxBytes)
	if err := s.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logging.Error().Err(err).Msg("failed to set read deadline")
		return
	}
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				logging.Warn().Err(err).Str("client_id", s.client.ID).Msg("unexpected websocket close")
			}
			return
		}

		if !s.limiter.Allow() {
			s.engine.SendError(s.client.ID, "rate_limited", "message rate limit exceeded")
			continue
		}

		var env collab.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			s.engine.SendError(s.client.ID, "malformed_frame", "frame is not valid JSON")
			continue
		}

		s.engine.Dispatch(s.client.ID, env)
	}
}

// writePump drains the engine's outbound channel onto the wire and keeps
// the connection alive with pings. The registry closes the channel on
// unregister, which terminates the pump with a close frame.
func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-s.client.Outbound():
			if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logging.Error().Err(err).Msg("failed to set write deadline")
				return
			}
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := s.conn.WriteJSON(msg); err != nil {
				logging.Debug().Err(err).Str("client_id", s.client.ID).Msg("websocket write failed")
				return
			}

		case <-ticker.C:
			if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
