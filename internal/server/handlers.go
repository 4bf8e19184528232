package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/parkdong07/webgis-pro/internal/catalog"
)

// handleTestDB is the connectivity probe.
func (s *Server) handleTestDB(w http.ResponseWriter, r *http.Request) {
	version, err := s.gw.TestDB(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"status":          "success",
		"message":         "Database and PostGIS are connected!",
		"postgis_version": version,
	})
}

// handleListLayers returns the layer catalog.
func (s *Server) handleListLayers(w http.ResponseWriter, r *http.Request) {
	layers, err := s.gw.ListLayers(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	if layers == nil {
		layers = []catalog.Layer{}
	}
	respondJSON(w, http.StatusOK, layers)
}

// handleLayerGeoJSON returns the full layer as a FeatureCollection.
func (s *Server) handleLayerGeoJSON(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	doc, err := s.gw.LayerGeoJSON(r.Context(), table)
	if err != nil {
		respondError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc)
}

// handleLayerAttributes returns the tabular attribute view of a layer.
func (s *Server) handleLayerAttributes(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	attrs, err := s.gw.LayerAttributes(r.Context(), table)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, attrs)
}

// handleUpload ingests an uploaded file (zipped shapefile or GeoJSON) as a
// new or replaced layer.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	maxBytes := int64(s.cfg.Upload.MaxSizeMB) << 20
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{
			"detail": eris.Wrap(err, "server: read upload form").Error(),
		})
		return
	}
	defer func() { _ = file.Close() }()

	layer, err := s.pipeline.Ingest(r.Context(), header.Filename, file)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Layer '%s' uploaded successfully.", layer),
	})
}

// handleExport streams the layer back as a zipped legacy shapefile. Scratch
// storage is reclaimed once the response is fully sent.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")

	root := s.cfg.Upload.ScratchDir
	if root == "" {
		root = os.TempDir()
	}
	scratch := filepath.Join(root, "webgis-export-"+uuid.NewString())
	if err := os.MkdirAll(scratch, 0o755); err != nil {
		respondError(w, r, eris.Wrap(err, "server: create export scratch dir"))
		return
	}
	defer func() {
		if err := os.RemoveAll(scratch); err != nil {
			zap.L().Warn("server: failed to reclaim export scratch dir",
				zap.String("dir", scratch), zap.Error(err))
		}
	}()

	zipPath, err := s.gw.ExportShapefile(r.Context(), table, scratch)
	if err != nil {
		respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="%s"`, filepath.Base(zipPath)))
	http.ServeFile(w, r, zipPath)
}

// bufferRequest is the body of POST /api/analysis/buffer.
type bufferRequest struct {
	TableName string  `json:"table_name"`
	Distance  float64 `json:"distance"` // meters
}

// handleBuffer creates a buffered derived layer.
func (s *Server) handleBuffer(w http.ResponseWriter, r *http.Request) {
	var req bufferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"detail": "invalid request body"})
		return
	}

	name, err := s.gw.Buffer(r.Context(), req.TableName, req.Distance)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"status":         "success",
		"new_layer_name": name,
		"message":        fmt.Sprintf("Buffer created as '%s'", name),
	})
}
