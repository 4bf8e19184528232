// Package ingest implements the layer ingestion pipeline: uploaded file →
// format detection → parsed dataset → SRID normalization → PostGIS table.
package ingest

import (
	"path/filepath"
	"strings"
)

// WGS84SRID is the global standard every layer is normalized to on write.
const WGS84SRID = 4326

// Column is one non-geometry attribute column of a parsed dataset.
type Column struct {
	Name string
	// Type is the Postgres column type the attribute materializes as.
	Type string
}

// Dataset is an in-memory geometry+attribute dataset ready for
// materialization. Each row holds the attribute values in column order,
// followed by the EWKB-encoded geometry.
type Dataset struct {
	Name     string
	GeomType string // PostGIS geometry type (POINT, MULTIPOLYGON, ... or GEOMETRY)
	SRID     int    // SRID the row geometries are tagged with
	Columns  []Column
	Rows     [][]any
}

// DeriveTableName derives the destination table name from an uploaded file
// name: base name without extension, lowercased, spaces and hyphens replaced
// with underscores, any other non-identifier characters dropped.
func DeriveTableName(filename string) string {
	base := filepath.Base(filename)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.ToLower(base)

	var b strings.Builder
	for _, r := range base {
		switch {
		case r == ' ' || r == '-':
			b.WriteRune('_')
		case r == '_' || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
		}
	}

	name := b.String()
	if name == "" {
		return "layer"
	}
	if name[0] >= '0' && name[0] <= '9' {
		name = "_" + name
	}
	return name
}
