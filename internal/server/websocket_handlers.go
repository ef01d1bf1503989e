package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/MeKo-Tech/cardscan/internal/batch"
	"github.com/gorilla/websocket"
)

// WebSocket upgrader with reasonable defaults.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 64 * 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const (
	wsReadTimeout  = 60 * time.Second
	wsPingInterval = 30 * time.Second
)

// WebSocketRequest is a text message from the client. Binary messages are
// frames and need no envelope.
type WebSocketRequest struct {
	Type   string `json:"type"` // "frame", "finish" or "reset"
	Image  []byte `json:"image,omitempty"`
	Strict *bool  `json:"strict,omitempty"`
}

// WebSocketResponse is a message to the client.
type WebSocketResponse struct {
	Type      string `json:"type"` // "frame", "burst", "reset" or "error"
	Frame     int    `json:"frame,omitempty"`
	Result    any    `json:"result,omitempty"`
	Error     string `json:"error,omitempty"`
	ErrorType string `json:"error_type,omitempty"`
}

// WebSocketConnWriter is an interface for writing WebSocket messages.
type WebSocketConnWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// wsBurst is the burst state of one connection.
type wsBurst struct {
	conn    WebSocketConnWriter
	session *batch.Session
	strict  bool
}

// scanWebSocketHandler streams frames of one burst per connection. Each frame
// is answered with its own result; "finish" answers with the burst result
// and starts a new burst.
func (s *Server) scanWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	strict, err := s.parseStrict(r)
	if err != nil {
		s.writeErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() {
		_ = conn.Close()
	}()
	conn.SetReadLimit(s.maxUploadMB * 1024 * 1024)

	websocketConnections.Inc()
	defer websocketConnections.Dec()

	slog.Info("WebSocket connection established", "remote_addr", r.RemoteAddr, "strict", strict)

	s.handleWebSocketConnection(conn, &wsBurst{conn: conn, session: batch.NewSession(), strict: strict})
}

// handleWebSocketConnection processes messages until the client goes away.
func (s *Server) handleWebSocketConnection(conn *websocket.Conn, b *wsBurst) {
	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		return nil
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(wsPingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second)); err != nil {
					return
				}
			}
		}
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Error("WebSocket error", "error", err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		websocketMessagesTotal.WithLabelValues("received").Inc()

		switch messageType {
		case websocket.BinaryMessage:
			s.processWebSocketFrame(b, data)
		case websocket.TextMessage:
			s.handleWebSocketMessage(b, data)
		}
	}
}

// handleWebSocketMessage processes a text message.
func (s *Server) handleWebSocketMessage(b *wsBurst, data []byte) {
	var req WebSocketRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendWebSocketError(b.conn, "invalid_request", fmt.Sprintf("Failed to parse request: %v", err))
		return
	}
	if req.Strict != nil {
		b.strict = *req.Strict
	}

	switch req.Type {
	case "frame":
		if len(req.Image) == 0 {
			s.sendWebSocketError(b.conn, "invalid_request", "No image data provided")
			return
		}
		s.processWebSocketFrame(b, req.Image)
	case "finish":
		sum := b.session.Summary()
		b.session.Reset()
		recordBurst("websocket", sum)
		slog.Info("WebSocket burst complete", "frames", sum.Frames, "present", sum.Present, "votes", sum.Votes)
		s.sendWebSocketResponse(b.conn, WebSocketResponse{Type: "burst", Result: newBurstResult(sum)})
	case "reset":
		b.session.Reset()
		s.sendWebSocketResponse(b.conn, WebSocketResponse{Type: "reset"})
	default:
		s.sendWebSocketError(b.conn, "invalid_request", "Unsupported request type: "+req.Type)
	}
}

// processWebSocketFrame reads one frame into the connection's burst.
func (s *Server) processWebSocketFrame(b *wsBurst, data []byte) {
	if b.session.Frames() >= s.maxBurstFrames {
		s.sendWebSocketError(b.conn, "burst_full",
			fmt.Sprintf("Burst already has %d frames; send finish or reset", s.maxBurstFrames))
		return
	}
	uploadSizeBytes.Observe(float64(len(data)))

	index := b.session.Frames() + 1
	img, err := decodeFrame(data)
	if err != nil {
		b.session.Skip()
		s.sendWebSocketResponse(b.conn, WebSocketResponse{
			Type: "error", Frame: index, Error: "Invalid image: " + err.Error(), ErrorType: "invalid_frame",
		})
		return
	}
	if s.predictor == nil {
		s.sendWebSocketError(b.conn, "unavailable", "Predictor not initialized")
		return
	}

	res := s.predictor.Run(img, b.strict)
	s.recordFrame("websocket", res)
	b.session.Observe(res)
	s.sendWebSocketResponse(b.conn, WebSocketResponse{Type: "frame", Frame: index, Result: newFrameResponse(res)})
}

// sendWebSocketResponse sends a response message over WebSocket.
func (s *Server) sendWebSocketResponse(conn WebSocketConnWriter, response WebSocketResponse) {
	data, err := json.Marshal(response)
	if err != nil {
		slog.Error("Failed to marshal WebSocket response", "error", err)
		return
	}

	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Error("Failed to send WebSocket message", "error", err)
		return
	}

	websocketMessagesTotal.WithLabelValues("sent").Inc()
}

// sendWebSocketError sends an error message over WebSocket.
func (s *Server) sendWebSocketError(conn WebSocketConnWriter, errorType, message string) {
	s.sendWebSocketResponse(conn, WebSocketResponse{Type: "error", Error: message, ErrorType: errorType})
}
