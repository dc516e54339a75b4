package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/omrgest/internal/imaging"
	"github.com/dgallion1/omrgest/internal/pipeline"
	"github.com/dgallion1/omrgest/internal/store"
)

// upload is a validated answer sheet taken from a multipart request.
type upload struct {
	userID      string
	filename    string
	contentType string
	data        []byte
}

// readUpload parses the multipart "file" field. On failure it has already
// written the error response.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (*upload, bool) {
	// Limit total request size.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024) // extra 1MB for form overhead

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			jsonError(w, fmt.Sprintf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge)
			return nil, false
		}
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return nil, false
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "file is required: "+err.Error(), http.StatusBadRequest)
		return nil, false
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxUploadBytes+1))
	if err != nil {
		jsonError(w, "failed to read file", http.StatusInternalServerError)
		return nil, false
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		jsonError(w, fmt.Sprintf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge)
		return nil, false
	}
	if len(data) == 0 {
		jsonError(w, "file is empty", http.StatusBadRequest)
		return nil, false
	}

	ct := imaging.DetectContentType(header.Header.Get("Content-Type"), data)
	if !imaging.IsSupportedContentType(ct) {
		jsonError(w, fmt.Sprintf("unsupported file type: %s", ct), http.StatusUnsupportedMediaType)
		return nil, false
	}

	return &upload{
		userID:      r.FormValue("user_id"),
		filename:    sanitizeFilename(header.Filename),
		contentType: ct,
		data:        data,
	}, true
}

// handleRecognize runs recognition inline and answers with the result. Once
// the upload is accepted the status is always 200; failures are reported
// through success=false.
func (s *Server) handleRecognize(w http.ResponseWriter, r *http.Request) {
	up, ok := s.readUpload(w, r)
	if !ok {
		return
	}
	job := pipeline.NewJob(up.userID, up.filename, up.contentType, up.data)
	snap := s.orchestrator.Run(r.Context(), job)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Scan-ID", snap.ID)
	json.NewEncoder(w).Encode(snap.Result)
}

func (s *Server) handleSubmitScan(w http.ResponseWriter, r *http.Request) {
	up, ok := s.readUpload(w, r)
	if !ok {
		return
	}
	job := pipeline.NewJob(up.userID, up.filename, up.contentType, up.data)
	if err := s.orchestrator.Submit(job); err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]any{
		"job_id":   job.ID,
		"status":   pipeline.StatusQueued,
		"poll_url": fmt.Sprintf("/api/scans/%s/status", job.ID),
		"ws_url":   fmt.Sprintf("/api/scans/%s/ws", job.ID),
	})
}

func (s *Server) handleScanStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job := s.orchestrator.GetJob(jobID)
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	snap := job.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"job_id": snap.ID,
		"status": snap.Status,
		"phase":  snap.Phase,
		"errors": snap.Errors,
	})
}

func (s *Server) handleGetScan(w http.ResponseWriter, r *http.Request) {
	scan, ok := s.scanOrError(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(scan)
}

// lookupScan returns the finished scan for id, preferring the in-memory job
// and falling back to history. It returns nil when neither has a result.
func (s *Server) lookupScan(ctx context.Context, id string) (*store.Scan, error) {
	if job := s.orchestrator.GetJob(id); job != nil {
		snap := job.Snapshot()
		if snap.Result != nil {
			return &store.Scan{
				ID:        snap.ID,
				UserID:    snap.UserID,
				Filename:  snap.Filename,
				CreatedAt: snap.CreatedAt,
				Result:    *snap.Result,
			}, nil
		}
	}
	if s.scans == nil {
		return nil, nil
	}
	return s.scans.Get(ctx, id)
}

// scanOrError resolves the {jobID} scan, writing 404/409/500 itself.
func (s *Server) scanOrError(w http.ResponseWriter, r *http.Request) (*store.Scan, bool) {
	jobID := chi.URLParam(r, "jobID")
	scan, err := s.lookupScan(r.Context(), jobID)
	if err != nil {
		s.log.Error("lookup scan failed", "job_id", jobID, "error", err)
		jsonError(w, "failed to load scan", http.StatusInternalServerError)
		return nil, false
	}
	if scan == nil {
		if job := s.orchestrator.GetJob(jobID); job != nil {
			jsonError(w, "scan still processing", http.StatusConflict)
			return nil, false
		}
		jsonError(w, "scan not found", http.StatusNotFound)
		return nil, false
	}
	return scan, true
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." || name == "/" {
		name = "unnamed"
	}
	return name
}
