package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/doeshing/opsagent/internal/domain"
)

const (
	frameProcessInstruction = "process-instruction"

	readLimit    = 1 << 20
	writeTimeout = 10 * time.Second
	queueDepth   = 16
)

// inboundFrame is a client message. Only process-instruction is understood.
type inboundFrame struct {
	Type string `json:"type"`
	domain.InstructionRequest
}

// socketSink serializes frames onto one connection in call order.
type socketSink struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *socketSink) Send(ctx context.Context, envelope domain.Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, s.conn, envelope)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:     s.AllowedOrigins,
		InsecureSkipVerify: s.anyOrigin(),
	})
	if err != nil {
		s.Logger.Warn("websocket upgrade failed", map[string]interface{}{"error": err.Error()})
		return
	}
	defer conn.Close(websocket.StatusInternalError, "unexpected shutdown")
	conn.SetReadLimit(readLimit)

	ctx := r.Context()
	sink := &socketSink{conn: conn}

	sessionID := strings.TrimSpace(r.URL.Query().Get("session"))
	if sessionID == "" {
		sessionID = uuid.NewString()
		if err := sink.Send(ctx, domain.Envelope{Event: domain.ChannelSession, SessionID: sessionID}); err != nil {
			s.Logger.Warn("session announce failed", map[string]interface{}{"error": err.Error()})
			return
		}
	}
	s.Logger.Info("client connected", map[string]interface{}{
		"session": sessionID,
		"remote":  r.RemoteAddr,
	})
	if err := s.Sessions.Connect(ctx, sessionID, sink); err != nil {
		s.Logger.Warn("history replay failed", map[string]interface{}{
			"session": sessionID,
			"error":   err.Error(),
		})
	}

	queue := make(chan domain.InstructionRequest, queueDepth)
	stopped := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		s.work(context.WithoutCancel(ctx), sessionID, queue, stopped, sink)
	}()

	s.readFrames(ctx, conn, sessionID, queue, sink)

	close(stopped)
	close(queue)
	<-finished

	// Eviction is scheduled only after the in-flight instruction has been
	// recorded, otherwise its append would cancel the timer.
	s.Sessions.Disconnect(context.WithoutCancel(ctx), sessionID)
	s.Logger.Info("client disconnected", map[string]interface{}{"session": sessionID})
	conn.Close(websocket.StatusNormalClosure, "")
}

func (s *Server) readFrames(ctx context.Context, conn *websocket.Conn, sessionID string, queue chan<- domain.InstructionRequest, sink *socketSink) {
	for {
		_, payload, err := conn.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				s.Logger.Debug("client closed connection", map[string]interface{}{"session": sessionID})
			default:
				if ctx.Err() == nil {
					s.Logger.Warn("websocket read failed", map[string]interface{}{
						"session": sessionID,
						"error":   err.Error(),
					})
				}
			}
			return
		}

		var frame inboundFrame
		if err := json.Unmarshal(payload, &frame); err != nil {
			s.sendError(ctx, sink, "Malformed message")
			continue
		}
		if frame.Type != frameProcessInstruction {
			s.sendError(ctx, sink, fmt.Sprintf("Unsupported message type %q", frame.Type))
			continue
		}
		select {
		case queue <- frame.InstructionRequest:
		default:
			s.sendError(ctx, sink, "Too many pending instructions")
		}
	}
}

// work runs queued instructions one at a time, in arrival order. Once the
// client has gone, whatever is still queued is dropped.
func (s *Server) work(ctx context.Context, sessionID string, queue <-chan domain.InstructionRequest, stopped <-chan struct{}, sink *socketSink) {
	for req := range queue {
		select {
		case <-stopped:
			s.Logger.Debug("dropping queued instruction", map[string]interface{}{"session": sessionID})
			continue
		default:
		}
		if err := s.Sessions.Submit(ctx, sessionID, req, sink); err != nil {
			s.Logger.Debug("instruction ended with error", map[string]interface{}{
				"session": sessionID,
				"error":   err.Error(),
			})
		}
	}
}

func (s *Server) sendError(ctx context.Context, sink *socketSink, message string) {
	if err := sink.Send(ctx, domain.NewConnectionError(message)); err != nil {
		s.Logger.Warn("event delivery failed", map[string]interface{}{"error": err.Error()})
	}
}
