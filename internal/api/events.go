package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"murmur/internal/jobs"
	"murmur/internal/logging"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// SnapshotMessage is the first frame on a job event stream.
type SnapshotMessage struct {
	Type string        `json:"type"`
	Job  jobs.Snapshot `json:"job"`
}

// handleJobEvents streams a snapshot followed by every job event until the job
// finishes or the client goes away. Each later frame is a jobs.Event.
func (s *Server) handleJobEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, err := s.manager.Get(id)
	if err != nil {
		s.writeError(w, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed",
			logging.Error(err),
			logging.String(logging.FieldJobID, id),
			logging.String("remote_addr", r.RemoteAddr),
		)
		return
	}
	defer conn.Close()

	snapshot, events, unsubscribe := job.Subscribe()
	defer unsubscribe()

	gone := make(chan struct{})
	go readUntilClosed(conn, gone)

	send := func(payload any) error {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(payload)
	}
	if err := send(SnapshotMessage{Type: "snapshot", Job: snapshot}); err != nil {
		return
	}

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()
	for {
		select {
		case evt, ok := <-events:
			if !ok {
				msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(job.Snapshot().State))
				_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
				return
			}
			if err := send(evt); err != nil {
				s.logger.Debug("event stream write failed", logging.Error(err), logging.String(logging.FieldJobID, id))
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-gone:
			return
		case <-r.Context().Done():
			return
		}
	}
}

// readUntilClosed drains client frames so control messages are processed, and
// closes gone when the peer disconnects.
func readUntilClosed(conn *websocket.Conn, gone chan<- struct{}) {
	defer close(gone)
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
