package api

import (
	"encoding/json"
	"net/http"
)

func (s *Server) handleAnalyzerStats(w http.ResponseWriter, r *http.Request) {
	if s.analyzer == nil || s.analyzer.Stats == nil {
		jsonError(w, "analyzer stats unavailable", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"model":       s.analyzer.Model(),
		"stats":       s.analyzer.Stats.Snapshot(),
		"queue_depth": s.orchestrator.QueueDepth(),
	})
}
