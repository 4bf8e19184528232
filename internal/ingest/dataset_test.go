package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveTableName(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		want     string
	}{
		{"simple", "parcels.shp", "parcels"},
		{"uppercase", "Parcels.SHP", "parcels"},
		{"spaces and hyphens", "city parks-2024.geojson", "city_parks_2024"},
		{"path stripped", "/tmp/upload/roads.zip", "roads"},
		{"special characters dropped", "côte d'azur!.shp", "cte_dazur"},
		{"leading digit", "2024_parcels.shp", "_2024_parcels"},
		{"nothing usable", "!!!.shp", "layer"},
		{"underscores kept", "flood_zones.json", "flood_zones"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DeriveTableName(tc.filename))
		})
	}
}
