package ingest

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIngest_UnsupportedExtension(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	p := NewPipeline(mock, t.TempDir(), 4326)
	_, err = p.Ingest(context.Background(), "report.csv", strings.NewReader("a,b\n1,2\n"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedType))
}

func TestIngest_ZipWithoutShapefile(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("readme.txt")
	require.NoError(t, err)
	_, err = w.Write([]byte("no geometry here"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	p := NewPipeline(mock, t.TempDir(), 4326)
	_, err = p.Ingest(context.Background(), "data.zip", &buf)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoShapefile))
}

func TestIngest_GeoJSON(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`DROP TABLE IF EXISTS "city_parks"`).
		WillReturnResult(pgxmock.NewResult("DROP", 0))
	mock.ExpectExec(`CREATE TABLE "city_parks"`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"city_parks"}, []string{"active", "name", "ridership", "geom"}).
		WillReturnResult(2)
	mock.ExpectExec(`CREATE INDEX "idx_city_parks_geom"`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCommit()

	p := NewPipeline(mock, t.TempDir(), 4326)
	layer, err := p.Ingest(context.Background(), "City Parks.geojson", strings.NewReader(pointCollection))
	require.NoError(t, err)
	assert.Equal(t, "city_parks", layer)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIngest_ScratchReclaimedOnFailure(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	scratchRoot := t.TempDir()
	p := NewPipeline(mock, scratchRoot, 4326)

	_, err = p.Ingest(context.Background(), "broken.geojson", strings.NewReader("{not json"))
	require.Error(t, err)

	entries, err := os.ReadDir(scratchRoot)
	require.NoError(t, err)
	assert.Empty(t, entries, "scratch dirs must be removed on every exit path")
}

func TestExtractShapefile_FlattensEntryNames(t *testing.T) {
	dir := t.TempDir()
	zipPath := filepath.Join(dir, "evil.zip")

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range []string{"nested/dir/roads.shp", "nested/dir/roads.dbf", "nested/readme.txt"} {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte("x"))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, os.WriteFile(zipPath, buf.Bytes(), 0o644))

	dest := filepath.Join(dir, "out")
	require.NoError(t, os.MkdirAll(dest, 0o755))

	shpPath, err := extractShapefile(zipPath, dest)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dest, "roads.shp"), shpPath)

	// every entry lands directly in dest, no nested dirs recreated
	assert.FileExists(t, filepath.Join(dest, "roads.dbf"))
	assert.FileExists(t, filepath.Join(dest, "readme.txt"))
	assert.NoDirExists(t, filepath.Join(dest, "nested"))
}

func TestNewPipeline_DefaultSRID(t *testing.T) {
	p := NewPipeline(nil, "", 0)
	assert.Equal(t, WGS84SRID, p.defaultSRID)
}
