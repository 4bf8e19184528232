package gateway

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkb"
	"go.uber.org/zap"
)

// ErrEmptyLayer is returned when an export finds no rows to write.
var ErrEmptyLayer = eris.New("gateway: layer is empty")

// wgs84WKT is written as the .prj sidecar of every export; all stored layers
// are EPSG:4326.
const wgs84WKT = `GEOGCS["GCS_WGS_1984",DATUM["D_WGS_1984",SPHEROID["WGS_1984",6378137.0,298.257223563]],PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]]`

// ExportShapefile reads the full layer back out of the store and writes it as
// a zipped legacy shapefile (.shp/.shx/.dbf/.prj) under scratchDir. Returns
// the archive path; the caller owns scratchDir and reclaims it after the
// response is sent.
func (g *Gateway) ExportShapefile(ctx context.Context, table, scratchDir string) (string, error) {
	gc, err := g.intro.GeometryColumn(ctx, table)
	if err != nil {
		return "", err
	}

	columns, err := g.intro.AttributeColumns(ctx, table, gc.Name)
	if err != nil {
		return "", err
	}

	selectParts := make([]string, 0, len(columns)+1)
	for _, c := range columns {
		selectParts = append(selectParts, pgx.Identifier{c}.Sanitize())
	}
	selectParts = append(selectParts, fmt.Sprintf("ST_AsBinary(%s)", pgx.Identifier{gc.Name}.Sanitize()))

	sql := fmt.Sprintf("SELECT %s FROM %s",
		strings.Join(selectParts, ", "), pgx.Identifier{table}.Sanitize())
	rows, err := g.pool.Query(ctx, sql)
	if err != nil {
		return "", eris.Wrapf(err, "gateway: read %s for export", table)
	}
	defer rows.Close()

	// Capture column type OIDs for DBF field typing before the rows are
	// consumed.
	attrOIDs := make([]uint32, len(columns))
	for i, fd := range rows.FieldDescriptions() {
		if i < len(columns) {
			attrOIDs[i] = fd.DataTypeOID
		}
	}

	var (
		records [][]any
		geoms   []geom.T
	)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return "", eris.Wrapf(err, "gateway: scan export row for %s", table)
		}

		geomBytes, ok := values[len(values)-1].([]byte)
		if !ok {
			continue
		}
		decoded, err := wkb.Unmarshal(geomBytes)
		if err != nil {
			zap.L().Debug("gateway: skipping undecodable geometry on export",
				zap.String("table", table), zap.Error(err))
			continue
		}

		records = append(records, values[:len(values)-1])
		geoms = append(geoms, decoded)
	}
	if err := rows.Err(); err != nil {
		return "", eris.Wrapf(err, "gateway: read %s for export", table)
	}

	if len(records) == 0 {
		return "", ErrEmptyLayer
	}

	shpPath := filepath.Join(scratchDir, table+".shp")
	if err := writeShapefile(shpPath, shapeTypeFor(gc.GeomType, geoms[0]), columns, attrOIDs, records, geoms); err != nil {
		return "", err
	}

	prjPath := filepath.Join(scratchDir, table+".prj")
	if err := os.WriteFile(prjPath, []byte(wgs84WKT), 0o644); err != nil {
		return "", eris.Wrap(err, "gateway: write .prj sidecar")
	}

	return bundleComponents(scratchDir, table)
}

// writeShapefile writes geometries and attributes via go-shp.
func writeShapefile(path string, shpType shp.ShapeType, columns []string, attrOIDs []uint32, records [][]any, geoms []geom.T) error {
	w, err := shp.Create(path, shpType)
	if err != nil {
		return eris.Wrapf(err, "gateway: create shapefile %s", path)
	}

	fields := make([]shp.Field, len(columns))
	for i, c := range columns {
		fields[i] = dbfField(c, attrOIDs[i])
	}
	if err := w.SetFields(fields); err != nil {
		w.Close()
		return eris.Wrapf(err, "gateway: create DBF for %s", path)
	}

	var row int
	for i, g := range geoms {
		shape := geomToShape(g)
		if shape == nil {
			continue
		}
		w.Write(shape)
		for j, v := range records[i] {
			if v == nil {
				continue
			}
			if err := w.WriteAttribute(row, j, dbfAttribute(v)); err != nil {
				w.Close()
				return eris.Wrapf(err, "gateway: write attribute %s of row %d", columns[j], row)
			}
		}
		row++
	}
	w.Close()

	// go-shp derives its DBF path by trimming the .shp suffix and appending
	// "dbf", which leaves the component at <base>dbf. Move it to the dotted
	// name the shapefile contract and the bundle filter expect.
	base := strings.TrimSuffix(path, ".shp")
	if err := os.Rename(base+"dbf", base+".dbf"); err != nil {
		return eris.Wrapf(err, "gateway: place DBF for %s", path)
	}

	return nil
}

// dbfField maps a Postgres column type OID to a DBF field descriptor.
func dbfField(name string, oid uint32) shp.Field {
	switch oid {
	case pgtype.Int2OID, pgtype.Int4OID, pgtype.Int8OID:
		return shp.NumberField(name, 19)
	case pgtype.Float4OID, pgtype.Float8OID, pgtype.NumericOID:
		return shp.FloatField(name, 24, 10)
	case pgtype.DateOID, pgtype.TimestampOID, pgtype.TimestamptzOID:
		return shp.DateField(name)
	case pgtype.BoolOID:
		return shp.StringField(name, 1)
	default:
		return shp.StringField(name, 254)
	}
}

// dbfAttribute converts a pgx row value to a type go-shp can format into a
// DBF record.
func dbfAttribute(v any) any {
	switch val := v.(type) {
	case int16:
		return int(val)
	case int32:
		return int(val)
	case int64:
		return int(val)
	case float32:
		return float64(val)
	case float64:
		return val
	case bool:
		if val {
			return "T"
		}
		return "F"
	case time.Time:
		return val.Format("20060102")
	case string:
		return val
	default:
		return fmt.Sprint(val)
	}
}

// shapeTypeFor picks the shapefile geometry type for a layer. Generic
// geometry layers fall back to the type of the first row.
func shapeTypeFor(geomType string, first geom.T) shp.ShapeType {
	switch strings.ToUpper(geomType) {
	case "POINT":
		return shp.POINT
	case "MULTIPOINT":
		return shp.MULTIPOINT
	case "LINESTRING", "MULTILINESTRING":
		return shp.POLYLINE
	case "POLYGON", "MULTIPOLYGON":
		return shp.POLYGON
	}

	switch first.(type) {
	case *geom.Point:
		return shp.POINT
	case *geom.MultiPoint:
		return shp.MULTIPOINT
	case *geom.LineString, *geom.MultiLineString:
		return shp.POLYLINE
	default:
		return shp.POLYGON
	}
}

// geomToShape converts a go-geom geometry to the matching go-shp shape. This
// is the inverse of the ingestion-side conversion. Returns nil for
// unsupported geometries.
func geomToShape(g geom.T) shp.Shape {
	switch t := g.(type) {
	case *geom.Point:
		c := t.Coords()
		return &shp.Point{X: c[0], Y: c[1]}

	case *geom.MultiPoint:
		points := make([]shp.Point, t.NumPoints())
		for i := 0; i < t.NumPoints(); i++ {
			c := t.Point(i).Coords()
			points[i] = shp.Point{X: c[0], Y: c[1]}
		}
		return &shp.MultiPoint{
			Box:       shp.BBoxFromPoints(points),
			NumPoints: int32(len(points)),
			Points:    points,
		}

	case *geom.LineString:
		return polyLineFromParts([][]shp.Point{coordsToPoints(t.Coords())})

	case *geom.MultiLineString:
		parts := make([][]shp.Point, t.NumLineStrings())
		for i := 0; i < t.NumLineStrings(); i++ {
			parts[i] = coordsToPoints(t.LineString(i).Coords())
		}
		return polyLineFromParts(parts)

	case *geom.Polygon:
		return (*shp.Polygon)(polyLineFromParts(ringsOf(t)))

	case *geom.MultiPolygon:
		var parts [][]shp.Point
		for i := 0; i < t.NumPolygons(); i++ {
			parts = append(parts, ringsOf(t.Polygon(i))...)
		}
		return (*shp.Polygon)(polyLineFromParts(parts))

	default:
		return nil
	}
}

// polyLineFromParts assembles a shp.PolyLine from coordinate parts.
func polyLineFromParts(parts [][]shp.Point) *shp.PolyLine {
	var all []shp.Point
	offsets := make([]int32, len(parts))
	for i, part := range parts {
		offsets[i] = int32(len(all))
		all = append(all, part...)
	}
	return &shp.PolyLine{
		Box:       shp.BBoxFromPoints(all),
		NumParts:  int32(len(parts)),
		NumPoints: int32(len(all)),
		Parts:     offsets,
		Points:    all,
	}
}

// ringsOf returns a polygon's rings as shapefile point parts.
func ringsOf(p *geom.Polygon) [][]shp.Point {
	rings := make([][]shp.Point, p.NumLinearRings())
	for i := 0; i < p.NumLinearRings(); i++ {
		rings[i] = coordsToPoints(p.LinearRing(i).Coords())
	}
	return rings
}

func coordsToPoints(coords []geom.Coord) []shp.Point {
	points := make([]shp.Point, len(coords))
	for i, c := range coords {
		points[i] = shp.Point{X: c[0], Y: c[1]}
	}
	return points
}

// bundleComponents zips every scratch file belonging to the table
// (.shp/.shx/.dbf/.prj) into {table}_export.zip and returns its path.
func bundleComponents(scratchDir, table string) (string, error) {
	zipPath := filepath.Join(scratchDir, table+"_export.zip")
	out, err := os.Create(zipPath)
	if err != nil {
		return "", eris.Wrap(err, "gateway: create export archive")
	}
	defer func() { _ = out.Close() }()

	zw := zip.NewWriter(out)

	entries, err := os.ReadDir(scratchDir)
	if err != nil {
		return "", eris.Wrap(err, "gateway: read scratch dir")
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), table+".") {
			continue
		}
		if err := addToZip(zw, filepath.Join(scratchDir, e.Name()), e.Name()); err != nil {
			return "", err
		}
	}

	if err := zw.Close(); err != nil {
		return "", eris.Wrap(err, "gateway: finalize export archive")
	}
	return zipPath, nil
}

func addToZip(zw *zip.Writer, path, name string) error {
	f, err := os.Open(path)
	if err != nil {
		return eris.Wrapf(err, "gateway: open %s", path)
	}
	defer func() { _ = f.Close() }()

	entry, err := zw.Create(name)
	if err != nil {
		return eris.Wrapf(err, "gateway: add %s to archive", name)
	}
	if _, err := io.Copy(entry, f); err != nil {
		return eris.Wrapf(err, "gateway: write %s to archive", name)
	}
	return nil
}
