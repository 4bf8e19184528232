// Package gateway builds and executes the spatial queries behind the HTTP
// surface. Table names are caller-supplied, so every operation validates them
// against the introspected catalog before any identifier reaches SQL text;
// values are always bound as parameters.
package gateway

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/parkdong07/webgis-pro/internal/catalog"
	"github.com/parkdong07/webgis-pro/internal/db"
)

// WGS84SRID is the SRID every stored layer geometry carries.
const WGS84SRID = 4326

// Gateway executes read and analysis queries against the spatial store.
type Gateway struct {
	pool  db.Pool
	intro *catalog.Introspector
}

// New creates a Gateway.
func New(pool db.Pool, intro *catalog.Introspector) *Gateway {
	return &Gateway{pool: pool, intro: intro}
}

// TestDB verifies connectivity and returns the PostGIS version string.
func (g *Gateway) TestDB(ctx context.Context) (string, error) {
	var version string
	if err := g.pool.QueryRow(ctx, "SELECT PostGIS_Full_Version()").Scan(&version); err != nil {
		return "", eris.Wrap(err, "gateway: postgis version probe")
	}
	return version, nil
}

// ListLayers returns the layer catalog.
func (g *Gateway) ListLayers(ctx context.Context) ([]catalog.Layer, error) {
	return g.intro.ListLayers(ctx)
}
