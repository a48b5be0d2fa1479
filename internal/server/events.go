package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/shiva-rakshith/hcx-platform/pkg/broadcast"
)

// Subscriber transports reported to metrics
const (
	transportSSE       = "sse"
	transportWebSocket = "websocket"
)

const defaultPingInterval = 30 * time.Second

func (s *Server) pingInterval() time.Duration {
	if d := s.config.Broadcast.PingInterval; d > 0 {
		return d
	}
	return defaultPingInterval
}

// handleEvents streams broadcast events as Server-Sent Events
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.jsonError(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	sub := s.hub.Subscribe(s.config.Broadcast.Buffer)
	defer s.hub.Unsubscribe(sub)

	s.metrics.SubscriberConnected(transportSSE, 1)
	defer s.metrics.SubscriberConnected(transportSSE, -1)

	s.logger.Info("event stream connected", "remote", r.RemoteAddr)

	// Send initial ready event
	fmt.Fprintf(w, "event: ready\ndata: {}\n\n")
	flusher.Flush()

	ticker := time.NewTicker(s.pingInterval())
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Info("event stream disconnected", "remote", r.RemoteAddr)
			return
		case <-s.closing:
			return
		case ev, ok := <-sub:
			if !ok {
				return
			}
			data, err := json.Marshal(ev.Data)
			if err != nil {
				s.logger.Warn("failed to encode event", "event", ev.Name, "error", err)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Name, data)
			flusher.Flush()
		case <-ticker.C:
			fmt.Fprintf(w, "event: ping\ndata: {}\n\n")
			flusher.Flush()
		}
	}
}

// handleWebSocket streams broadcast events as JSON frames
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	opts := &websocket.AcceptOptions{}
	if origins := s.config.Server.WebSocketOrigins; len(origins) > 0 {
		opts.OriginPatterns = origins
	}
	conn, err := websocket.Accept(w, r, opts)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sub := s.hub.Subscribe(s.config.Broadcast.Buffer)
	defer s.hub.Unsubscribe(sub)

	s.metrics.SubscriberConnected(transportWebSocket, 1)
	defer s.metrics.SubscriberConnected(transportWebSocket, -1)

	_ = wsjson.Write(ctx, conn, broadcast.NewEvent("ready", nil))

	// Subscribers never send; reading surfaces close frames and disconnects
	readErr := make(chan error, 1)
	go func() {
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				readErr <- err
				return
			}
		}
	}()

	ticker := time.NewTicker(s.pingInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusNormalClosure, "closed")
			return
		case <-s.closing:
			_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
			return
		case <-readErr:
			_ = conn.Close(websocket.StatusNormalClosure, "closed")
			return
		case ev, ok := <-sub:
			if !ok {
				_ = conn.Close(websocket.StatusNormalClosure, "closed")
				return
			}
			writeCtx, cancelWrite := context.WithTimeout(ctx, 5*time.Second)
			err := wsjson.Write(writeCtx, conn, ev)
			cancelWrite()
			if err != nil {
				_ = conn.Close(websocket.StatusNormalClosure, "write_failed")
				return
			}
		case <-ticker.C:
			pingCtx, cancelPing := context.WithTimeout(ctx, 5*time.Second)
			err := conn.Ping(pingCtx)
			cancelPing()
			if err != nil {
				_ = conn.Close(websocket.StatusNormalClosure, "ping_failed")
				return
			}
		}
	}
}
