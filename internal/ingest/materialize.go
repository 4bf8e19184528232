package ingest

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/parkdong07/webgis-pro/internal/db"
)

// GeomColumnName is the geometry column every materialized layer gets.
const GeomColumnName = "geom"

// Materialize writes a Dataset into the store as a table named ds.Name,
// fully replacing any existing table of that name. Drop, create, load,
// SRID normalization, and indexing run in a single transaction, so a failed
// ingestion leaves any prior same-named layer untouched.
func Materialize(ctx context.Context, pool db.Pool, ds *Dataset) error {
	if ds.Name == "" {
		return eris.New("ingest: dataset has no table name")
	}

	log := zap.L().With(
		zap.String("component", "ingest.materialize"),
		zap.String("table", ds.Name),
	)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "ingest: begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	quoted := pgx.Identifier{ds.Name}.Sanitize()

	if _, err := tx.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", quoted)); err != nil {
		return eris.Wrapf(err, "ingest: drop existing table %s", ds.Name)
	}

	createSQL := fmt.Sprintf("CREATE TABLE %s (%s)", quoted, columnDDL(ds))
	if _, err := tx.Exec(ctx, createSQL); err != nil {
		return eris.Wrapf(err, "ingest: create table %s", ds.Name)
	}

	columns := make([]string, 0, len(ds.Columns)+1)
	for _, c := range ds.Columns {
		columns = append(columns, c.Name)
	}
	columns = append(columns, GeomColumnName)

	loaded, err := db.CopyFrom(ctx, tx, ds.Name, columns, ds.Rows, 0)
	if err != nil {
		return err
	}

	// Rows were loaded with their source SRID; normalize to 4326 in place.
	// The transform is PostGIS's, not ours.
	if ds.SRID != WGS84SRID {
		alterSQL := fmt.Sprintf(
			"ALTER TABLE %s ALTER COLUMN %s TYPE geometry(%s, %d) USING ST_Transform(%s, %d)",
			quoted, GeomColumnName, ds.GeomType, WGS84SRID, GeomColumnName, WGS84SRID,
		)
		if _, err := tx.Exec(ctx, alterSQL); err != nil {
			return eris.Wrapf(err, "ingest: reproject %s to EPSG:%d", ds.Name, WGS84SRID)
		}
	}

	idxName := pgx.Identifier{fmt.Sprintf("idx_%s_geom", ds.Name)}.Sanitize()
	gistSQL := fmt.Sprintf("CREATE INDEX %s ON %s USING GIST (%s)", idxName, quoted, GeomColumnName)
	if _, err := tx.Exec(ctx, gistSQL); err != nil {
		return eris.Wrapf(err, "ingest: create GIST index on %s", ds.Name)
	}

	if err := tx.Commit(ctx); err != nil {
		return eris.Wrapf(err, "ingest: commit %s", ds.Name)
	}

	log.Info("layer materialized",
		zap.Int64("rows", loaded),
		zap.String("geom_type", ds.GeomType),
		zap.Int("source_srid", ds.SRID),
	)

	return nil
}

// columnDDL renders the column list for the CREATE TABLE statement: the
// dataset's attribute columns in order, then the typed geometry column
// carrying the source SRID.
func columnDDL(ds *Dataset) string {
	geomType := ds.GeomType
	if geomType == "" {
		geomType = "GEOMETRY"
	}

	parts := make([]string, 0, len(ds.Columns)+1)
	for _, c := range ds.Columns {
		parts = append(parts, fmt.Sprintf("%s %s", pgx.Identifier{c.Name}.Sanitize(), c.Type))
	}
	parts = append(parts, fmt.Sprintf("%s geometry(%s, %d)",
		pgx.Identifier{GeomColumnName}.Sanitize(), geomType, ds.SRID))

	return strings.Join(parts, ", ")
}
