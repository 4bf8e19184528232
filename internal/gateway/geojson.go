package gateway

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// LayerGeoJSON returns the full layer as a GeoJSON FeatureCollection: every
// row becomes a Feature carrying its non-geometry columns as properties. An
// empty table yields an empty FeatureCollection. Serialization is PostGIS's
// own (ST_AsGeoJSON over the row type).
func (g *Gateway) LayerGeoJSON(ctx context.Context, table string) (json.RawMessage, error) {
	if err := g.intro.ValidateTable(ctx, table); err != nil {
		return nil, err
	}

	sql := fmt.Sprintf(`
		SELECT json_build_object(
			'type', 'FeatureCollection',
			'features', COALESCE(json_agg(ST_AsGeoJSON(t.*)::json), '[]'::json)
		)::text
		FROM %s AS t`,
		pgx.Identifier{table}.Sanitize(),
	)

	var doc string
	if err := g.pool.QueryRow(ctx, sql).Scan(&doc); err != nil {
		return nil, eris.Wrapf(err, "gateway: layer %s as geojson", table)
	}
	return json.RawMessage(doc), nil
}
