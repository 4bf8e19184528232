package ingest

import (
	"strconv"
	"strings"
	"time"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ParseShapefile reads a shapefile and its DBF attributes into a Dataset.
// Attribute columns are typed from the DBF field descriptors; geometries are
// encoded as EWKB tagged with the SRID detected from the .prj sidecar (or the
// configured default when no sidecar exists).
func ParseShapefile(shpPath string, defaultSRID int) (*Dataset, error) {
	reader, err := shp.Open(shpPath)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: open shapefile %s", shpPath)
	}
	defer func() { _ = reader.Close() }()

	srid := detectSRID(shpPath, defaultSRID)

	fields := reader.Fields()
	columns := make([]Column, len(fields))
	for i, f := range fields {
		name := strings.TrimRight(f.String(), "\x00")
		columns[i] = Column{
			Name: strings.ToLower(name),
			Type: dbfColumnType(f),
		}
	}

	ds := &Dataset{
		SRID:    srid,
		Columns: columns,
	}

	var skipped int
	for reader.Next() {
		_, shape := reader.Shape()
		if shape == nil {
			skipped++
			continue
		}

		geomBytes, encErr := encodeShape(shape, srid)
		if encErr != nil || geomBytes == nil {
			skipped++
			continue
		}

		if ds.GeomType == "" {
			ds.GeomType = shapeGeomType(shape)
		}

		row := make([]any, 0, len(columns)+1)
		for i, f := range fields {
			raw := strings.TrimSpace(strings.TrimRight(reader.Attribute(i), "\x00"))
			row = append(row, dbfValue(f, raw))
		}
		row = append(row, geomBytes)
		ds.Rows = append(ds.Rows, row)
	}
	if err := reader.Err(); err != nil {
		return nil, eris.Wrapf(err, "ingest: read shapefile %s", shpPath)
	}

	if ds.GeomType == "" {
		ds.GeomType = "GEOMETRY"
	}

	if skipped > 0 {
		zap.L().Debug("ingest: skipped shapefile records",
			zap.String("shapefile", shpPath),
			zap.Int("skipped", skipped),
		)
	}

	return ds, nil
}

// shapeGeomType maps a go-shp shape to the PostGIS geometry type the dataset
// materializes as. Lines and polygons are promoted to their Multi* variants
// because multi-part shapefile records decode that way.
func shapeGeomType(shape shp.Shape) string {
	switch shape.(type) {
	case *shp.Point, *shp.PointZ:
		return "POINT"
	case *shp.PolyLine:
		return "MULTILINESTRING"
	case *shp.Polygon:
		return "MULTIPOLYGON"
	default:
		return "GEOMETRY"
	}
}

// dbfColumnType maps a DBF field descriptor to a Postgres column type.
func dbfColumnType(f shp.Field) string {
	switch f.Fieldtype {
	case 'N':
		if f.Precision == 0 {
			return "BIGINT"
		}
		return "DOUBLE PRECISION"
	case 'F':
		return "DOUBLE PRECISION"
	case 'D':
		return "DATE"
	case 'L':
		return "BOOLEAN"
	default: // 'C' and anything exotic
		return "TEXT"
	}
}

// dbfValue converts a raw DBF attribute string to the Go value matching the
// column type from dbfColumnType. Unparseable or empty values become NULL.
func dbfValue(f shp.Field, raw string) any {
	if raw == "" {
		return nil
	}

	switch f.Fieldtype {
	case 'N':
		if f.Precision == 0 {
			n, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return nil
			}
			return n
		}
		return parseFloatOrNil(raw)
	case 'F':
		return parseFloatOrNil(raw)
	case 'D':
		// DBF dates are YYYYMMDD.
		t, err := time.Parse("20060102", raw)
		if err != nil {
			return nil
		}
		return t
	case 'L':
		switch raw {
		case "T", "t", "Y", "y":
			return true
		case "F", "f", "N", "n":
			return false
		default:
			return nil
		}
	default:
		return raw
	}
}

func parseFloatOrNil(raw string) any {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil
	}
	return v
}
