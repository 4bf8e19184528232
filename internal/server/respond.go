package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/parkdong07/webgis-pro/internal/catalog"
	"github.com/parkdong07/webgis-pro/internal/gateway"
	"github.com/parkdong07/webgis-pro/internal/ingest"
)

// respondJSON writes v as a JSON response body.
func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("server: encode response", zap.Error(err))
	}
}

// respondError maps the error taxonomy onto HTTP statuses: input-shape
// failures are 400, missing layers and empty exports are 404, everything
// else is 500 with the underlying message passed through.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, catalog.ErrLayerNotFound),
		errors.Is(err, gateway.ErrEmptyLayer):
		status = http.StatusNotFound
	case errors.Is(err, ingest.ErrUnsupportedType),
		errors.Is(err, ingest.ErrNoShapefile),
		errors.Is(err, gateway.ErrMissingIDColumn),
		errors.Is(err, gateway.ErrInvalidDistance):
		status = http.StatusBadRequest
	}

	if status == http.StatusInternalServerError {
		zap.L().Error("server: request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}

	respondJSON(w, status, map[string]string{"detail": err.Error()})
}
