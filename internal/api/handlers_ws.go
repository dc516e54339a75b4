package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/dgallion1/omrgest/internal/pipeline"
)

const (
	streamInterval = 250 * time.Millisecond
	writeWait      = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleScanStream pushes a job snapshot whenever its status or phase
// changes, then closes once the job is terminal.
func (s *Server) handleScanStream(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job := s.orchestrator.GetJob(jobID)
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "job_id", jobID, "error", err)
		return
	}
	defer conn.Close()

	// Drain client frames so close and pong are processed.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		conn.SetReadLimit(512)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(streamInterval)
	defer ticker.Stop()

	var last pipeline.JobSnapshot
	first := true
	for {
		snap := job.Snapshot()
		if first || snap.Status != last.Status || snap.Phase != last.Phase {
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(snap); err != nil {
				s.log.Debug("websocket write failed", "job_id", jobID, "error", err)
				return
			}
			last, first = snap, false
		}
		if snap.Status.Terminal() {
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(snap.Status)))
			return
		}

		select {
		case <-ticker.C:
		case <-gone:
			return
		case <-r.Context().Done():
			return
		}
	}
}
