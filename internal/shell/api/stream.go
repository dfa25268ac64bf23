package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
)

// =============================================================================
// Log Stream
// =============================================================================

const (
	streamWriteWait = 10 * time.Second
	streamPongWait  = 60 * time.Second
	streamPingEvery = (streamPongWait * 9) / 10
	streamBatch     = 500
)

var streamUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

// StreamMessage is one frame of the log stream.
type StreamMessage struct {
	Type   string `json:"type"` // log, status or error
	Seq    int64  `json:"seq,omitempty"`
	Step   string `json:"step,omitempty"`
	Line   string `json:"line,omitempty"`
	Status string `json:"status,omitempty"`
	AppURL string `json:"app_url,omitempty"`
	Error  string `json:"error,omitempty"`
}

// handleStreamLogs follows the output of a deployment over a websocket
// until the deployment finishes. The final frame carries its status.
func (h *Handler) handleStreamLogs(w http.ResponseWriter, r *http.Request) {
	d, ok := h.loadDeployment(w, r)
	if !ok {
		return
	}
	var after int64
	if v := r.URL.Query().Get("after"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			after = n
		}
	}

	conn, err := streamUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	if err := conn.SetReadDeadline(time.Now().Add(streamPongWait)); err != nil {
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(streamPongWait))
	})
	// Reading drives the pong handler and notices the client leaving.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	write := func(msg StreamMessage) bool {
		if err := conn.SetWriteDeadline(time.Now().Add(streamWriteWait)); err != nil {
			return false
		}
		return conn.WriteJSON(msg) == nil
	}

	poll := time.NewTicker(h.config.StreamPoll)
	defer poll.Stop()
	ping := time.NewTicker(streamPingEvery)
	defer ping.Stop()

	for {
		// Status is read before the logs so lines written before a
		// terminal status are never missed.
		current, err := h.store.GetDeployment(ctx, d.ID)
		if err != nil {
			if ctx.Err() == nil {
				h.logger.Warn("log stream stopped", "deployment_id", d.ID, "error", err)
				write(StreamMessage{Type: "error", Error: "failed to read deployment"})
			}
			return
		}
		lines, err := h.store.ListLogs(ctx, d.ID, after, streamBatch)
		if err != nil {
			if ctx.Err() == nil {
				h.logger.Warn("log stream stopped", "deployment_id", d.ID, "error", err)
				write(StreamMessage{Type: "error", Error: "failed to read logs"})
			}
			return
		}
		for _, l := range lines {
			if !write(StreamMessage{Type: "log", Seq: l.Seq, Step: l.Step, Line: l.Line}) {
				return
			}
			after = l.Seq
		}

		if current.Status.IsTerminal() && len(lines) < streamBatch {
			write(StreamMessage{
				Type:   "status",
				Status: string(current.Status),
				AppURL: current.AppURL,
				Error:  current.ErrorMessage,
			})
			conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-poll.C:
		case <-ping.C:
			if err := conn.SetWriteDeadline(time.Now().Add(streamWriteWait)); err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
