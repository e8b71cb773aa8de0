package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MeKo-Tech/textspot/internal/pipeline"
	"github.com/MeKo-Tech/textspot/internal/tensors"
)

const (
	wsReadTimeout  = 60 * time.Second
	wsPingInterval = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// WebSocketDecodeRequest carries one tensor dump and the frame size to
// scale to. A zero size uses the configured video size.
type WebSocketDecodeRequest struct {
	Type   string       `json:"type"` // "decode"
	Dump   tensors.Dump `json:"dump"`
	Width  int          `json:"width,omitempty"`
	Height int          `json:"height,omitempty"`
	ID     string       `json:"id,omitempty"`
}

// WebSocketDecodeResponse is sent for each request, and for errors.
type WebSocketDecodeResponse struct {
	Type      string                `json:"type"`
	Status    string                `json:"status"` // "completed", "error"
	Result    *pipeline.ImageResult `json:"result,omitempty"`
	Error     string                `json:"error,omitempty"`
	ErrorType string                `json:"error_type,omitempty"`
	RequestID string                `json:"request_id,omitempty"`
}

// WebSocketConnWriter is an interface for writing WebSocket messages.
type WebSocketConnWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// decodeWebSocketHandler streams tensor dumps in and decode results out.
func (s *Server) decodeWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	websocketConnections.Inc()
	defer websocketConnections.Dec()

	slog.Info("WebSocket connection established", "client", getClientIP(r))
	s.handleWebSocketConnection(conn)
}

func (s *Server) handleWebSocketConnection(conn *websocket.Conn) {
	conn.SetReadLimit(s.maxUploadMB * 1024 * 1024)
	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
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
		websocketMessagesTotal.WithLabelValues("received").Inc()
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))

		if messageType == websocket.TextMessage {
			s.handleWebSocketMessage(conn, data)
		}
	}
}

// handleWebSocketMessage decodes one request and writes exactly one response.
func (s *Server) handleWebSocketMessage(conn WebSocketConnWriter, data []byte) {
	var req WebSocketDecodeRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendWebSocketError(conn, "", "invalid_request", fmt.Sprintf("Failed to parse request: %v", err))
		return
	}
	id := req.ID
	if id == "" {
		id = strconv.FormatInt(time.Now().UnixNano(), 10)
	}
	if req.Type != "decode" {
		s.sendWebSocketError(conn, id, "invalid_request", "Unsupported request type: "+req.Type)
		return
	}
	for name, t := range req.Dump.Tensors {
		if err := t.Validate(); err != nil {
			s.sendWebSocketError(conn, id, "invalid_request", fmt.Sprintf("tensor %q: %v", name, err))
			return
		}
	}
	for i, t := range req.Dump.Sequences {
		if err := t.Validate(); err != nil {
			s.sendWebSocketError(conn, id, "invalid_request", fmt.Sprintf("sequence %d: %v", i, err))
			return
		}
	}

	start := time.Now()
	res, err := pipeline.DecodeDump(s.decodeConfig, req.Dump, req.Width, req.Height)
	if err != nil {
		processRequestsTotal.WithLabelValues("websocket", "error").Inc()
		s.sendWebSocketError(conn, id, "processing_error", fmt.Sprintf("Decode failed: %v", err))
		return
	}
	observeResult("websocket", time.Since(start).Seconds(), len(res.Regions))

	s.sendWebSocketResponse(conn, WebSocketDecodeResponse{
		Type:      "decode_response",
		Status:    "completed",
		Result:    res,
		RequestID: id,
	})
}

// sendWebSocketResponse sends a response message over WebSocket.
func (s *Server) sendWebSocketResponse(conn WebSocketConnWriter, response WebSocketDecodeResponse) {
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
func (s *Server) sendWebSocketError(conn WebSocketConnWriter, requestID, errorType, message string) {
	s.sendWebSocketResponse(conn, WebSocketDecodeResponse{
		Type:      "error",
		Status:    "error",
		Error:     message,
		ErrorType: errorType,
		RequestID: requestID,
	})
}
