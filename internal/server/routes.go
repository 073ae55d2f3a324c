package server

import (
	"net/http"
	"strings"

	"github.com/ternarybob/docintel/internal/models"
)

const (
	documentsPrefix = "/api/documents/"
	uploadsPrefix   = "/api/uploads/"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// WebSocket route
	mux.HandleFunc("/ws", s.app.WSHandler.HandleWebSocket)

	// API routes - Documents (registry)
	mux.HandleFunc("/api/documents", s.app.DocumentHandler.ListHandler)
	mux.HandleFunc("/api/documents/refresh", s.app.DocumentHandler.RefreshHandler)
	mux.HandleFunc("/api/documents/process-all", s.app.DocumentHandler.ProcessAllHandler)
	mux.HandleFunc(documentsPrefix, s.handleDocumentRoutes) // Handles /api/documents/{id} and subpaths
	mux.HandleFunc("/api/registry/auto-refresh", s.app.DocumentHandler.AutoRefreshHandler)

	// API routes - Dashboard
	mux.HandleFunc("/api/stats", s.app.StatsHandler.GetStatsHandler)

	// API routes - Upload queue
	mux.HandleFunc("/api/uploads", s.handleUploadsRoute)
	mux.HandleFunc("/api/uploads/process", s.app.UploadHandler.ProcessHandler)
	mux.HandleFunc(uploadsPrefix, s.handleUploadRoutes) // DELETE /api/uploads/{index}

	// API routes - Scheduler
	mux.HandleFunc("/api/scheduler/jobs", s.app.SchedulerHandler.JobsHandler)
	mux.HandleFunc("/api/scheduler/trigger", s.app.SchedulerHandler.TriggerHandler)

	// API routes - System
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)

	// 404 handler for unmatched API routes
	mux.HandleFunc("/api/", s.app.APIHandler.NotFoundHandler)

	return mux
}

// handleDocumentRoutes routes /api/documents/{id}[/process|/download|/view]
func (s *Server) handleDocumentRoutes(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, documentsPrefix), "/")
	if rest == "" {
		s.app.APIHandler.NotFoundHandler(w, r)
		return
	}

	id, action, _ := strings.Cut(rest, "/")
	docID := models.DocumentID(id)

	switch action {
	case "":
		RouteByMethod(w, r, MethodRouter{
			http.MethodDelete: func(w http.ResponseWriter, r *http.Request) {
				s.app.DocumentHandler.DeleteHandler(w, r, docID)
			},
		})
	case "process":
		s.app.DocumentHandler.ProcessHandler(w, r, docID)
	case "download":
		s.app.DocumentHandler.DownloadHandler(w, r, docID)
	case "view":
		s.app.DocumentHandler.ViewHandler(w, r, docID)
	default:
		s.app.APIHandler.NotFoundHandler(w, r)
	}
}

// handleUploadsRoute routes /api/uploads (list, add, clear)
func (s *Server) handleUploadsRoute(w http.ResponseWriter, r *http.Request) {
	routeCollection(w, r,
		s.app.UploadHandler.ListHandler,
		s.app.UploadHandler.AddHandler,
		s.app.UploadHandler.ClearHandler,
	)
}

// handleUploadRoutes routes /api/uploads/{index}
func (s *Server) handleUploadRoutes(w http.ResponseWriter, r *http.Request) {
	index := strings.Trim(strings.TrimPrefix(r.URL.Path, uploadsPrefix), "/")
	if index == "" || strings.Contains(index, "/") {
		s.app.APIHandler.NotFoundHandler(w, r)
		return
	}

	RouteByMethod(w, r, MethodRouter{
		http.MethodDelete: func(w http.ResponseWriter, r *http.Request) {
			s.app.UploadHandler.RemoveHandler(w, r, index)
		},
	})
}
