// Package api provides the HTTP server and handlers for the gallery.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/seoulfie/drivegallery/internal/gallery"
	"github.com/seoulfie/drivegallery/internal/logging"
	"github.com/seoulfie/drivegallery/internal/metrics"
	"github.com/seoulfie/drivegallery/internal/models"
	"github.com/seoulfie/drivegallery/internal/source"
	"github.com/seoulfie/drivegallery/internal/view"
	"github.com/seoulfie/drivegallery/webapp"
)

// Server is the gallery HTTP server.
type Server struct {
	src        *source.Cached
	controller *view.Controller
	renderer   *gallery.Renderer
	auth       *Auth
}

// NewServer creates a server over the cached source.
func NewServer(src *source.Cached, controller *view.Controller, renderer *gallery.Renderer, auth *Auth) *Server {
	return &Server{
		src:        src,
		controller: controller,
		renderer:   renderer,
		auth:       auth,
	}
}

// Handler returns the HTTP handler with logging and metrics middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Public endpoints
	mux.HandleFunc("GET /health", s.handleHealth)
	if s.auth != nil {
		mux.HandleFunc("POST /api/v1/auth/login", s.auth.HandleLogin)
	}

	// Web app (no auth; the app handles login via the API). Registered
	// without a method qualifier: a "GET /" pattern neither wins nor loses
	// against "/api/v1/" and ServeMux rejects the pair at registration.
	mux.Handle("/", http.FileServerFS(webapp.Assets))

	// Gallery API
	api := http.NewServeMux()
	api.HandleFunc("GET /api/v1/gallery", s.handleGallery)
	api.HandleFunc("GET /api/v1/images/{id}/thumb", s.handleThumb)
	api.HandleFunc("POST /api/v1/cache/clear", s.handleCacheClear)
	mux.Handle("/api/v1/", s.auth.Middleware(api))

	return logging.Middleware(metrics.Middleware(mux))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	sendJSON(w, map[string]string{"status": "ok"})
}

// galleryResponse is the full view for one navigation state: everything
// the sidebar and grid need to re-render.
type galleryResponse struct {
	Roots     []view.RootEntry `json:"roots"`
	Root      models.Folder    `json:"root"`
	Sessions  []models.Folder  `json:"sessions"`
	Session   models.Folder    `json:"session"`
	Empty     string           `json:"empty,omitempty"`
	ImagesErr string           `json:"imagesError,omitempty"`
	PageInfo  view.PageInfo    `json:"pageInfo"`
	Grid      gallery.Grid     `json:"grid"`
	Search    string           `json:"search"`
}

func (s *Server) handleGallery(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	state := view.State{
		RootID:    q.Get("root"),
		SessionID: q.Get("session"),
		Page:      queryInt(q.Get("page"), 0),
		PageSize:  queryInt(q.Get("page_size"), 0),
		Columns:   queryInt(q.Get("columns"), 0),
	}.WithSearch(q.Get("search"))

	page, err := s.controller.Render(r.Context(), state)
	if err != nil {
		var authErr *models.AuthError
		status := http.StatusBadGateway
		if errors.As(err, &authErr) {
			status = http.StatusUnauthorized
		}
		logging.Error("view render failed",
			zap.String("request_id", logging.GetRequestID(r.Context())),
			zap.Error(err))
		sendError(w, status, err.Error())
		return
	}

	resp := galleryResponse{
		Roots:     page.Roots,
		Root:      page.Root,
		Sessions:  page.Sessions,
		Session:   page.Session,
		Empty:     string(page.Empty),
		ImagesErr: page.ImagesErr,
		PageInfo:  page.PageInfo,
		Search:    page.State.Search,
	}
	if resp.Sessions == nil {
		resp.Sessions = []models.Folder{}
	}

	if len(page.Images) > 0 {
		resp.Grid = s.renderer.RenderPage(r.Context(), page.Images, page.State.Columns)
	} else {
		resp.Grid = gallery.Grid{Columns: page.State.Columns, Cells: []gallery.Cell{}}
	}

	sendJSON(w, resp)
}

func (s *Server) handleThumb(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		sendError(w, http.StatusBadRequest, "image id required")
		return
	}

	data, err := s.renderer.ThumbJPEG(r.Context(), id)
	if err != nil {
		// Isolated failure: the grid cell shows the error, nothing
		// else on the page is affected.
		sendError(w, http.StatusBadGateway, err.Error())
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.Write(data)
}

func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	n := s.src.Clear()
	sendJSON(w, map[string]int{"cleared": n})
}

func sendJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func sendError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func queryInt(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}

// Serve starts the server, with TLS when both files are configured.
func Serve(srv *http.Server, certFile, keyFile string) error {
	if certFile != "" && keyFile != "" {
		return srv.ListenAndServeTLS(certFile, keyFile)
	}
	return srv.ListenAndServe()
}
