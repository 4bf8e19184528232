package ingest

import (
	"encoding/json"
	"regexp"
	"sort"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"
)

var crsEPSGRe = regexp.MustCompile(`EPSG:*:(\d+)$`)

// ParseGeoJSON parses a GeoJSON FeatureCollection document into a Dataset.
// RFC 7946 documents are 4326 by definition; a legacy "crs" member naming an
// EPSG code overrides that, and documents with neither get the configured
// default SRID.
func ParseGeoJSON(data []byte, defaultSRID int) (*Dataset, error) {
	var fc geojson.FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, eris.Wrap(err, "ingest: parse GeoJSON")
	}

	srid := geoJSONSRID(data, defaultSRID)

	columns := propertyColumns(fc.Features)

	ds := &Dataset{
		SRID:    srid,
		Columns: columns,
	}

	var skipped int
	for _, f := range fc.Features {
		if f == nil || f.Geometry == nil {
			skipped++
			continue
		}

		g := setGeomSRID(f.Geometry, srid)
		geomBytes, err := ewkb.Marshal(g, ewkb.NDR)
		if err != nil {
			skipped++
			continue
		}

		t := geomTypeName(f.Geometry)
		switch {
		case ds.GeomType == "":
			ds.GeomType = t
		case ds.GeomType != t:
			ds.GeomType = "GEOMETRY"
		}

		row := make([]any, 0, len(columns)+1)
		for _, col := range columns {
			row = append(row, propertyValue(f.Properties[col.Name], col.Type))
		}
		row = append(row, geomBytes)
		ds.Rows = append(ds.Rows, row)
	}

	if ds.GeomType == "" {
		ds.GeomType = "GEOMETRY"
	}

	if skipped > 0 {
		zap.L().Debug("ingest: skipped GeoJSON features", zap.Int("skipped", skipped))
	}

	return ds, nil
}

// geoJSONSRID extracts the EPSG code from a legacy top-level "crs" member.
func geoJSONSRID(data []byte, defaultSRID int) int {
	var doc struct {
		CRS *struct {
			Properties struct {
				Name string `json:"name"`
			} `json:"properties"`
		} `json:"crs"`
	}
	if err := json.Unmarshal(data, &doc); err != nil || doc.CRS == nil {
		return defaultSRID
	}

	m := crsEPSGRe.FindStringSubmatch(doc.CRS.Properties.Name)
	if m == nil {
		return defaultSRID
	}
	code, err := strconv.Atoi(m[1])
	if err != nil {
		return defaultSRID
	}
	return code
}

// propertyColumns derives typed columns from the union of all feature
// properties. Keys are sorted for a deterministic column order; conflicting
// value types degrade to TEXT.
func propertyColumns(features []*geojson.Feature) []Column {
	kinds := map[string]string{}
	for _, f := range features {
		if f == nil {
			continue
		}
		for key, val := range f.Properties {
			if val == nil {
				continue
			}
			kind := propertyKind(val)
			prev, seen := kinds[key]
			if !seen {
				kinds[key] = kind
			} else if prev != kind {
				kinds[key] = "TEXT"
			}
		}
	}

	keys := make([]string, 0, len(kinds))
	for key := range kinds {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	columns := make([]Column, len(keys))
	for i, key := range keys {
		columns[i] = Column{Name: key, Type: kinds[key]}
	}
	return columns
}

// propertyKind maps a decoded JSON value to a Postgres column type.
func propertyKind(val any) string {
	switch val.(type) {
	case bool:
		return "BOOLEAN"
	case float64:
		return "DOUBLE PRECISION"
	case string:
		return "TEXT"
	default: // nested objects and arrays
		return "JSONB"
	}
}

// propertyValue converts a decoded JSON property to the Go value matching the
// column type, so COPY encodes it correctly.
func propertyValue(val any, colType string) any {
	if val == nil {
		return nil
	}

	switch colType {
	case "BOOLEAN":
		if b, ok := val.(bool); ok {
			return b
		}
	case "DOUBLE PRECISION":
		if f, ok := val.(float64); ok {
			return f
		}
	case "JSONB":
		if raw, err := json.Marshal(val); err == nil {
			return raw
		}
	case "TEXT":
		switch v := val.(type) {
		case string:
			return v
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		case bool:
			return strconv.FormatBool(v)
		default:
			if raw, err := json.Marshal(v); err == nil {
				return string(raw)
			}
		}
	}
	return nil
}

// setGeomSRID tags a geometry with the given SRID.
func setGeomSRID(g geom.T, srid int) geom.T {
	switch t := g.(type) {
	case *geom.Point:
		return t.SetSRID(srid)
	case *geom.MultiPoint:
		return t.SetSRID(srid)
	case *geom.LineString:
		return t.SetSRID(srid)
	case *geom.MultiLineString:
		return t.SetSRID(srid)
	case *geom.Polygon:
		return t.SetSRID(srid)
	case *geom.MultiPolygon:
		return t.SetSRID(srid)
	case *geom.GeometryCollection:
		return t.SetSRID(srid)
	default:
		return g
	}
}

// geomTypeName maps a go-geom geometry to its PostGIS type name.
func geomTypeName(g geom.T) string {
	switch g.(type) {
	case *geom.Point:
		return "POINT"
	case *geom.MultiPoint:
		return "MULTIPOINT"
	case *geom.LineString:
		return "LINESTRING"
	case *geom.MultiLineString:
		return "MULTILINESTRING"
	case *geom.Polygon:
		return "POLYGON"
	case *geom.MultiPolygon:
		return "MULTIPOLYGON"
	default:
		return "GEOMETRY"
	}
}
