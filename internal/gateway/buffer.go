package gateway

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

var (
	// ErrMissingIDColumn is returned when a buffer source table has no id
	// column to carry through to the derived layer.
	ErrMissingIDColumn = eris.New("gateway: source table has no 'id' column")
	// ErrInvalidDistance is returned for non-finite or negative buffer
	// distances.
	ErrInvalidDistance = eris.New("gateway: buffer distance must be a non-negative number")
)

// webMercatorSRID is the meters-based projection buffering runs in.
const webMercatorSRID = 3857

// BufferLayerName derives the destination table name for a buffer run. The
// distance is truncated to whole meters, so re-running with the same inputs
// replaces the same derived layer.
func BufferLayerName(table string, meters float64) string {
	return fmt.Sprintf("%s_buffer_%dm", table, int(meters))
}

// Buffer creates a derived layer holding the source geometries buffered by
// the given distance in meters: transform 4326 → 3857, buffer, transform
// back. The pre-existing derived table (if any) is dropped and recreated in
// one transaction, so a mid-operation failure cannot leave the previous
// derived layer deleted without its replacement. Returns the derived layer
// name.
func (g *Gateway) Buffer(ctx context.Context, table string, meters float64) (string, error) {
	if math.IsNaN(meters) || math.IsInf(meters, 0) || meters < 0 {
		return "", ErrInvalidDistance
	}

	gc, err := g.intro.GeometryColumn(ctx, table)
	if err != nil {
		return "", err
	}

	hasID, err := g.intro.HasColumn(ctx, table, "id")
	if err != nil {
		return "", err
	}
	if !hasID {
		return "", ErrMissingIDColumn
	}

	dest := BufferLayerName(table, meters)

	tx, err := g.pool.Begin(ctx)
	if err != nil {
		return "", eris.Wrap(err, "gateway: begin buffer tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	destQuoted := pgx.Identifier{dest}.Sanitize()
	if _, err := tx.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", destQuoted)); err != nil {
		return "", eris.Wrapf(err, "gateway: drop existing %s", dest)
	}

	// CREATE TABLE AS takes no bind parameters, so the validated distance is
	// formatted into the statement text. Identifiers are catalog-checked and
	// quoted above.
	createSQL := fmt.Sprintf(`
		CREATE TABLE %s AS
		SELECT ST_Transform(ST_Buffer(ST_Transform(%s, %d), %s), %d)::geometry(Geometry, %d) AS geom, id
		FROM %s`,
		destQuoted,
		pgx.Identifier{gc.Name}.Sanitize(), webMercatorSRID,
		strconv.FormatFloat(meters, 'f', -1, 64), WGS84SRID, WGS84SRID,
		pgx.Identifier{table}.Sanitize(),
	)
	if _, err := tx.Exec(ctx, createSQL); err != nil {
		return "", eris.Wrapf(err, "gateway: buffer %s by %gm", table, meters)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", eris.Wrapf(err, "gateway: commit buffer %s", dest)
	}

	return dest, nil
}
