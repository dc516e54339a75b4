package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/omrgest/internal/report"
	"github.com/dgallion1/omrgest/internal/store"
)

const docxContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// handleListHistory lists stored scans, newest first.
func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	if s.scans == nil {
		jsonError(w, "history unavailable", http.StatusServiceUnavailable)
		return
	}

	f := store.Filter{UserID: r.URL.Query().Get("user_id")}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			jsonError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		f.Limit = n
	}

	scans, err := s.scans.List(r.Context(), f)
	if err != nil {
		s.log.Error("list history failed", "error", err)
		jsonError(w, "failed to list history", http.StatusInternalServerError)
		return
	}
	if scans == nil {
		scans = []store.Scan{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"scans": scans})
}

func (s *Server) handleDeleteHistory(w http.ResponseWriter, r *http.Request) {
	if s.scans == nil {
		jsonError(w, "history unavailable", http.StatusServiceUnavailable)
		return
	}
	jobID := chi.URLParam(r, "jobID")
	deleted, err := s.scans.Delete(r.Context(), jobID)
	if err != nil {
		s.log.Error("delete scan failed", "job_id", jobID, "error", err)
		jsonError(w, "failed to delete scan", http.StatusInternalServerError)
		return
	}
	if !deleted {
		jsonError(w, "scan not found", http.StatusNotFound)
		return
	}
	s.log.Info("scan deleted", "job_id", jobID)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"job_id": jobID, "deleted": true})
}

func (s *Server) handleReportHTML(w http.ResponseWriter, r *http.Request) {
	scan, ok := s.scanOrError(w, r)
	if !ok {
		return
	}
	page, err := report.HTML(*scan)
	if err != nil {
		s.log.Error("render html report failed", "job_id", scan.ID, "error", err)
		jsonError(w, "failed to render report", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(page)
}

func (s *Server) handleReportDOCX(w http.ResponseWriter, r *http.Request) {
	scan, ok := s.scanOrError(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := report.DOCX(*scan, &buf); err != nil {
		s.log.Error("render docx report failed", "job_id", scan.ID, "error", err)
		jsonError(w, "failed to render report", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", docxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", scan.ID+".docx"))
	w.Write(buf.Bytes())
}
