// Package server is the HTTP surface: thin dispatch from routes to the
// query gateway and ingestion pipeline.
package server

import (
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/parkdong07/webgis-pro/internal/config"
	"github.com/parkdong07/webgis-pro/internal/gateway"
	"github.com/parkdong07/webgis-pro/internal/ingest"
)

// Server wires HTTP routes to the gateway and ingestion pipeline.
type Server struct {
	gw       *gateway.Gateway
	pipeline *ingest.Pipeline
	cfg      *config.Config
}

// New creates a Server.
func New(gw *gateway.Gateway, pipeline *ingest.Pipeline, cfg *config.Config) *Server {
	return &Server{gw: gw, pipeline: pipeline, cfg: cfg}
}

// Router builds the chi router with all API routes. The static frontend is
// served at the root path when the configured directory exists, otherwise
// the mount is omitted entirely.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))
	r.Use(requestLogger)

	r.Route("/api", func(r chi.Router) {
		r.Get("/test-db", s.handleTestDB)
		r.Get("/layers", s.handleListLayers)
		r.Get("/layers/{table}/geojson", s.handleLayerGeoJSON)
		r.Get("/layers/{table}/attributes", s.handleLayerAttributes)
		r.Post("/upload", s.handleUpload)
		r.Get("/export/{table}/shapefile", s.handleExport)
		r.Post("/analysis/buffer", s.handleBuffer)
	})

	if dir := s.cfg.Server.StaticDir; dir != "" {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			r.Handle("/*", http.FileServer(http.Dir(dir)))
		}
	}

	return r
}

// requestLogger logs each request through the global zap logger.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	})
}
