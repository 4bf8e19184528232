package ingest

import (
	"os"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

var authorityRe = regexp.MustCompile(`AUTHORITY\[\s*"EPSG"\s*,\s*"?(\d+)"?\s*\]`)

// detectSRID reads the .prj sidecar next to a .shp file and extracts the EPSG
// code from the outermost AUTHORITY clause of the WKT. Returns defaultSRID
// when the sidecar is absent or carries no EPSG authority; that assumption is
// a configured policy, not a detected fact.
func detectSRID(shpPath string, defaultSRID int) int {
	prjPath := strings.TrimSuffix(shpPath, ".shp") + ".prj"
	data, err := os.ReadFile(prjPath)
	if err != nil {
		zap.L().Debug("ingest: no .prj sidecar, assuming default SRID",
			zap.String("shapefile", shpPath),
			zap.Int("srid", defaultSRID),
		)
		return defaultSRID
	}
	return sridFromWKT(string(data), defaultSRID)
}

// sridFromWKT extracts the EPSG code from a WKT CRS definition. The outermost
// AUTHORITY clause is the last one in the text, so the final match wins.
func sridFromWKT(wkt string, defaultSRID int) int {
	matches := authorityRe.FindAllStringSubmatch(wkt, -1)
	if len(matches) == 0 {
		zap.L().Debug("ingest: WKT carries no EPSG authority, assuming default SRID",
			zap.Int("srid", defaultSRID),
		)
		return defaultSRID
	}
	code, err := strconv.Atoi(matches[len(matches)-1][1])
	if err != nil {
		return defaultSRID
	}
	return code
}
