package ingest

import (
	"archive/zip"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/parkdong07/webgis-pro/internal/db"
)

// Input-shape failures detected before any parsing or destructive action.
var (
	// ErrUnsupportedType is returned for upload extensions the pipeline does
	// not handle.
	ErrUnsupportedType = eris.New("ingest: unsupported file type, upload .zip (shapefile) or .geojson/.json")
	// ErrNoShapefile is returned when a .zip upload contains no .shp member.
	ErrNoShapefile = eris.New("ingest: zip archive contains no .shp file")
)

// Pipeline ingests uploaded files into the spatial store.
type Pipeline struct {
	pool        db.Pool
	scratchRoot string
	defaultSRID int
}

// NewPipeline creates a Pipeline. scratchRoot is the directory under which
// per-request scratch dirs are created (empty = system temp dir); defaultSRID
// is assumed for datasets carrying no coordinate reference system.
func NewPipeline(pool db.Pool, scratchRoot string, defaultSRID int) *Pipeline {
	if defaultSRID == 0 {
		defaultSRID = WGS84SRID
	}
	return &Pipeline{pool: pool, scratchRoot: scratchRoot, defaultSRID: defaultSRID}
}

// Ingest persists the uploaded stream to scratch storage, parses it according
// to its file extension, and materializes it as a table named after the file.
// Returns the created layer name. Scratch storage is reclaimed on every exit
// path.
func (p *Pipeline) Ingest(ctx context.Context, filename string, r io.Reader) (string, error) {
	root := p.scratchRoot
	if root == "" {
		root = os.TempDir()
	}
	scratch := filepath.Join(root, "webgis-upload-"+uuid.NewString())
	if err := os.MkdirAll(scratch, 0o755); err != nil {
		return "", eris.Wrap(err, "ingest: create scratch dir")
	}
	defer func() {
		if err := os.RemoveAll(scratch); err != nil {
			zap.L().Warn("ingest: failed to reclaim scratch dir",
				zap.String("dir", scratch), zap.Error(err))
		}
	}()

	uploadPath := filepath.Join(scratch, filepath.Base(filename))
	if err := writeFile(uploadPath, r); err != nil {
		return "", err
	}

	ds, err := p.parse(uploadPath, scratch)
	if err != nil {
		return "", err
	}

	ds.Name = DeriveTableName(filename)

	zap.L().Info("dataset parsed",
		zap.String("component", "ingest.pipeline"),
		zap.String("layer", ds.Name),
		zap.String("geom_type", ds.GeomType),
		zap.Int("srid", ds.SRID),
		zap.Int("rows", len(ds.Rows)),
	)

	if err := Materialize(ctx, p.pool, ds); err != nil {
		return "", err
	}

	return ds.Name, nil
}

// parse dispatches on the upload's file extension. Detection is by extension
// only; no content sniffing.
func (p *Pipeline) parse(uploadPath, scratch string) (*Dataset, error) {
	switch strings.ToLower(filepath.Ext(uploadPath)) {
	case ".zip":
		shpPath, err := extractShapefile(uploadPath, scratch)
		if err != nil {
			return nil, err
		}
		return ParseShapefile(shpPath, p.defaultSRID)

	case ".shp":
		return ParseShapefile(uploadPath, p.defaultSRID)

	case ".geojson", ".json":
		data, err := os.ReadFile(uploadPath)
		if err != nil {
			return nil, eris.Wrap(err, "ingest: read upload")
		}
		return ParseGeoJSON(data, p.defaultSRID)

	default:
		return nil, ErrUnsupportedType
	}
}

// extractShapefile extracts a zip archive into destDir and returns the path
// of the first .shp member, or ErrNoShapefile when the archive has none.
// Entry names are flattened to their base name, which also forecloses any
// path traversal through crafted archives.
func extractShapefile(zipPath, destDir string) (string, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return "", eris.Wrap(err, "ingest: open zip archive")
	}
	defer func() { _ = r.Close() }()

	var shpPath string
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		name := filepath.Base(f.Name)
		destPath := filepath.Join(destDir, name)

		rc, err := f.Open()
		if err != nil {
			return "", eris.Wrapf(err, "ingest: open zip entry %s", f.Name)
		}
		err = writeFile(destPath, rc)
		_ = rc.Close()
		if err != nil {
			return "", err
		}

		if shpPath == "" && strings.HasSuffix(strings.ToLower(name), ".shp") {
			shpPath = destPath
		}
	}

	if shpPath == "" {
		return "", ErrNoShapefile
	}
	return shpPath, nil
}

// writeFile copies a stream to a new file on scratch storage.
func writeFile(path string, r io.Reader) error {
	out, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "ingest: create %s", path)
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, r); err != nil {
		return eris.Wrapf(err, "ingest: write %s", path)
	}
	return nil
}
