package ingest

import (
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
)

func TestEncodeShape_Point(t *testing.T) {
	data, err := encodeShape(&shp.Point{X: 127.0246, Y: 37.5326}, 4326)
	require.NoError(t, err)
	require.NotNil(t, data)

	g, err := ewkb.Unmarshal(data)
	require.NoError(t, err)
	pt, ok := g.(*geom.Point)
	require.True(t, ok)
	assert.Equal(t, 4326, pt.SRID())
	assert.InDelta(t, 127.0246, pt.X(), 1e-9)
	assert.InDelta(t, 37.5326, pt.Y(), 1e-9)
}

func TestEncodeShape_PointZ_DropsZ(t *testing.T) {
	data, err := encodeShape(&shp.PointZ{X: 1, Y: 2, Z: 99}, 4326)
	require.NoError(t, err)

	g, err := ewkb.Unmarshal(data)
	require.NoError(t, err)
	pt, ok := g.(*geom.Point)
	require.True(t, ok)
	assert.Equal(t, geom.XY, pt.Layout())
}

func TestEncodeShape_PolyLine(t *testing.T) {
	pl := &shp.PolyLine{
		NumParts:  2,
		NumPoints: 4,
		Parts:     []int32{0, 2},
		Points: []shp.Point{
			{X: 0, Y: 0}, {X: 1, Y: 1},
			{X: 5, Y: 5}, {X: 6, Y: 5},
		},
	}

	data, err := encodeShape(pl, 3857)
	require.NoError(t, err)

	g, err := ewkb.Unmarshal(data)
	require.NoError(t, err)
	mls, ok := g.(*geom.MultiLineString)
	require.True(t, ok)
	assert.Equal(t, 3857, mls.SRID())
	assert.Equal(t, 2, mls.NumLineStrings())
	assert.Equal(t, geom.Coord{0, 0}, mls.LineString(0).Coord(0))
	assert.Equal(t, geom.Coord{5, 5}, mls.LineString(1).Coord(0))
}

func TestEncodeShape_Polygon(t *testing.T) {
	p := &shp.Polygon{
		NumParts:  1,
		NumPoints: 5,
		Parts:     []int32{0},
		Points: []shp.Point{
			{X: 0, Y: 0}, {X: 0, Y: 1}, {X: 1, Y: 1}, {X: 1, Y: 0}, {X: 0, Y: 0},
		},
	}

	data, err := encodeShape(p, 4326)
	require.NoError(t, err)

	g, err := ewkb.Unmarshal(data)
	require.NoError(t, err)
	mp, ok := g.(*geom.MultiPolygon)
	require.True(t, ok)
	assert.Equal(t, 1, mp.NumPolygons())
	assert.Equal(t, 1, mp.Polygon(0).NumLinearRings())
}

func TestEncodeShape_NilAndUnsupported(t *testing.T) {
	data, err := encodeShape(nil, 4326)
	assert.NoError(t, err)
	assert.Nil(t, data)

	data, err = encodeShape(&shp.Null{}, 4326)
	assert.NoError(t, err)
	assert.Nil(t, data)
}

func TestEncodeShape_EmptyPolyLine(t *testing.T) {
	data, err := encodeShape(&shp.PolyLine{}, 4326)
	assert.NoError(t, err)
	assert.Nil(t, data)
}
