package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dgallion1/omrgest/internal/analyzer"
	"github.com/dgallion1/omrgest/internal/config"
	"github.com/dgallion1/omrgest/internal/pipeline"
	"github.com/dgallion1/omrgest/internal/store"
)

// Server is the HTTP API server for omrgest.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	scans        *store.ScanRepository
	analyzer     *analyzer.Client
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server. scans and client may be
// nil; the endpoints that need them then answer 503.
func NewServer(orch *pipeline.Orchestrator, scans *store.ScanRepository, client *analyzer.Client, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		orchestrator: orch,
		scans:        scans,
		analyzer:     client,
		log:          log,
		cfg:          cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.APIKey, s.log))

		r.Post("/api/omr", s.handleRecognize)

		r.Post("/api/scans", s.handleSubmitScan)
		r.Route("/api/scans/{jobID}", func(r chi.Router) {
			r.Get("/", s.handleGetScan)
			r.Get("/status", s.handleScanStatus)
			r.Get("/ws", s.handleScanStream)
			r.Get("/report.html", s.handleReportHTML)
			r.Get("/report.docx", s.handleReportDOCX)
		})

		r.Get("/api/history", s.handleListHistory)
		r.Delete("/api/history/{jobID}", s.handleDeleteHistory)

		r.Get("/api/stats/analyzer", s.handleAnalyzerStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
