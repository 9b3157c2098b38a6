// Package server implements the HTTP layer over the review store. Handlers
// are thin: identity comes from the X-Username and X-Session-Token headers,
// optimistic versions from X-Data-Version, and everything else is delegated
// to the store.
package server

import (
	"net/http"
	"path/filepath"

	"github.com/breslov-archive/linkreview/internal/config"
	"github.com/breslov-archive/linkreview/internal/refsource"
	"github.com/breslov-archive/linkreview/internal/review"
)

// sourceRefsFile is the source-text file the review UI shows paragraphs
// from. It sits next to the dataset and is regenerated by a sibling tool.
const sourceRefsFile = "Likutei_Moharan_refs.json"

// Server holds the handler dependencies.
type Server struct {
	store *review.Store
	refs  *refsource.Source
	cfg   config.Config
}

// New creates a Server around the given store.
func New(store *review.Store, cfg config.Config) *Server {
	return &Server{
		store: store,
		refs:  refsource.New(filepath.Join(filepath.Dir(cfg.Data.File), sourceRefsFile)),
		cfg:   cfg,
	}
}

// Router creates and configures the HTTP router.
func (s *Server) Router() http.Handler {
	mux := &http.ServeMux{}

	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/data", s.handleData)
	mux.HandleFunc("GET /api/version", s.handleVersion)
	mux.HandleFunc("GET /api/stats", s.handleStats)

	mux.HandleFunc("GET /api/next", s.handleNext)
	mux.HandleFunc("GET /api/records/{index}", s.handleGetRecord)
	mux.HandleFunc("POST /api/records/{index}", s.handleUpdateRecord)
	mux.HandleFunc("POST /api/release", s.handleRelease)
	mux.HandleFunc("GET /api/lm-paragraph/{ref...}", s.handleLMParagraph)

	// Privileged endpoints; the admin check is a username comparison, the
	// surrounding deployment is expected to put real authentication in front.
	mux.HandleFunc("POST /api/upload", s.handleUpload)
	mux.HandleFunc("GET /api/download", s.handleDownload)
	mux.HandleFunc("POST /api/save", s.handleForceSave)

	var l *limiter
	if s.cfg.RateLimit.RequestsPerMinute > 0 {
		l = newLimiter(s.cfg.RateLimit.RequestsPerMinute, s.cfg.RateLimit.Burst)
	}
	return withLogging(withCORS(withRateLimit(l, mux)))
}
