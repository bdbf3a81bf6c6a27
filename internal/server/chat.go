package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ziadkadry99/nae/internal/engine"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// chatRequest is the incoming WebSocket message format.
type chatRequest struct {
	Type    string `json:"type"` // "select" or "ask"
	ID      string `json:"id,omitempty"`
	Content string `json:"content,omitempty"`
}

// chatResponse is the outgoing WebSocket message format.
type chatResponse struct {
	Type     string `json:"type"` // "greeting", "answer" or "error"
	RecordID string `json:"record_id,omitempty"`
	Content  string `json:"content"`
}

// chatConn is one socket's assistant conversation. Each connection keeps its
// own transcript, starting from the session's selection at connect time.
type chatConn struct {
	s          *Server
	conn       *websocket.Conn
	record     *engine.AnalysisRecord
	transcript *engine.Transcript
}

func (s *Server) handleAssistantSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	c := &chatConn{s: s, conn: conn}
	if rec := s.session.Snapshot().Selected; rec != nil {
		c.use(rec)
	}

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("websocket read failed", zap.Error(err))
			}
			return
		}

		var req chatRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			c.send(chatResponse{Type: "error", Content: "invalid message format"})
			continue
		}

		switch req.Type {
		case "select":
			c.handleSelect(r.Context(), req)
		case "ask":
			c.handleAsk(r.Context(), req)
		default:
			c.send(chatResponse{Type: "error", Content: "unknown message type: " + req.Type})
		}
	}
}

func (c *chatConn) use(rec *engine.AnalysisRecord) {
	c.record = rec
	c.transcript = engine.NewTranscript(rec)
	c.send(chatResponse{Type: "greeting", RecordID: rec.ID, Content: c.transcript.Turns()[0].Text})
}

func (c *chatConn) handleSelect(ctx context.Context, req chatRequest) {
	rec, err := c.s.history.Get(ctx, req.ID)
	if err != nil {
		c.send(chatResponse{Type: "error", Content: err.Error()})
		return
	}
	c.use(rec)
}

func (c *chatConn) handleAsk(ctx context.Context, req chatRequest) {
	if req.Content == "" {
		c.send(chatResponse{Type: "error", Content: "content is required"})
		return
	}
	if c.record == nil {
		c.send(chatResponse{Type: "error", Content: "no analysis selected"})
		return
	}
	answer, err := c.transcript.Exchange(ctx, c.s.assistant, req.Content, c.record)
	if err != nil {
		c.s.logger.Warn("assistant answer failed", zap.String("record_id", c.record.ID), zap.Error(err))
	}
	c.send(chatResponse{Type: "answer", RecordID: c.record.ID, Content: answer})
}

func (c *chatConn) send(resp chatResponse) {
	if err := c.conn.WriteJSON(resp); err != nil {
		c.s.logger.Warn("websocket write failed", zap.Error(err))
	}
}
