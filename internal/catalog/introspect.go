// Package catalog introspects the PostGIS metadata catalog and information
// schema. Every caller-supplied table name passes through here before it is
// allowed anywhere near interpolated SQL.
package catalog

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/parkdong07/webgis-pro/internal/db"
)

// ErrLayerNotFound is returned when a table has no entry in geometry_columns.
var ErrLayerNotFound = eris.New("catalog: layer not found")

// Layer describes one spatial table as reported by geometry_columns.
type Layer struct {
	Name     string `json:"name"`
	GeomType string `json:"geom_type"`
	SRID     int    `json:"srid"`
}

// GeometryColumn describes the geometry column of a single layer.
type GeometryColumn struct {
	Name     string
	GeomType string
	SRID     int
}

// Introspector answers schema questions against the live catalog.
type Introspector struct {
	pool db.Pool
}

// NewIntrospector creates an Introspector backed by the given pool.
func NewIntrospector(pool db.Pool) *Introspector {
	return &Introspector{pool: pool}
}

// ListLayers returns all spatial tables in the public schema, ordered by name.
func (in *Introspector) ListLayers(ctx context.Context) ([]Layer, error) {
	sql := `
		SELECT f_table_name AS name, type AS geom_type, srid
		FROM geometry_columns
		WHERE f_table_schema = 'public'
		ORDER BY name
	`
	rows, err := in.pool.Query(ctx, sql)
	if err != nil {
		return nil, eris.Wrap(err, "catalog: list layers")
	}
	defer rows.Close()

	var layers []Layer
	for rows.Next() {
		var l Layer
		if err := rows.Scan(&l.Name, &l.GeomType, &l.SRID); err != nil {
			return nil, eris.Wrap(err, "catalog: scan layer row")
		}
		layers = append(layers, l)
	}
	return layers, rows.Err()
}

// GeometryColumn returns the geometry column metadata for a table, or
// ErrLayerNotFound if the table has no geometry_columns entry.
func (in *Introspector) GeometryColumn(ctx context.Context, table string) (*GeometryColumn, error) {
	sql := `
		SELECT f_geometry_column, type, srid
		FROM geometry_columns
		WHERE f_table_schema = 'public' AND f_table_name = $1
	`
	var gc GeometryColumn
	err := in.pool.QueryRow(ctx, sql, table).Scan(&gc.Name, &gc.GeomType, &gc.SRID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLayerNotFound
		}
		return nil, eris.Wrapf(err, "catalog: geometry column for %s", table)
	}
	return &gc, nil
}

// AttributeColumns lists all non-geometry column names for a table, in
// ordinal order.
func (in *Introspector) AttributeColumns(ctx context.Context, table, geomColumn string) ([]string, error) {
	sql := `
		SELECT column_name
		FROM information_schema.columns
		WHERE table_schema = 'public' AND table_name = $1 AND column_name != $2
		ORDER BY ordinal_position
	`
	rows, err := in.pool.Query(ctx, sql, table, geomColumn)
	if err != nil {
		return nil, eris.Wrapf(err, "catalog: attribute columns for %s", table)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, eris.Wrap(err, "catalog: scan column row")
		}
		columns = append(columns, name)
	}
	return columns, rows.Err()
}

// HasColumn reports whether a table has a column with the given name.
func (in *Introspector) HasColumn(ctx context.Context, table, column string) (bool, error) {
	sql := `
		SELECT COUNT(*)
		FROM information_schema.columns
		WHERE table_schema = 'public' AND table_name = $1 AND column_name = $2
	`
	var count int
	if err := in.pool.QueryRow(ctx, sql, table, column).Scan(&count); err != nil {
		return false, eris.Wrapf(err, "catalog: check column %s.%s", table, column)
	}
	return count > 0, nil
}

// ValidateTable checks that the given name identifies a known spatial table.
// This is the allowlist gate for every query that interpolates a table name.
func (in *Introspector) ValidateTable(ctx context.Context, table string) error {
	_, err := in.GeometryColumn(ctx, table)
	return err
}
