package catalog

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListLayers(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT f_table_name AS name, type AS geom_type, srid").
		WillReturnRows(pgxmock.NewRows([]string{"name", "geom_type", "srid"}).
			AddRow("parcels", "MULTIPOLYGON", 4326).
			AddRow("roads", "MULTILINESTRING", 4326))

	layers, err := NewIntrospector(mock).ListLayers(context.Background())
	require.NoError(t, err)
	require.Len(t, layers, 2)
	assert.Equal(t, "parcels", layers[0].Name)
	assert.Equal(t, "MULTIPOLYGON", layers[0].GeomType)
	assert.Equal(t, 4326, layers[0].SRID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListLayers_Empty(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT f_table_name AS name").
		WillReturnRows(pgxmock.NewRows([]string{"name", "geom_type", "srid"}))

	layers, err := NewIntrospector(mock).ListLayers(context.Background())
	require.NoError(t, err)
	assert.Empty(t, layers)
}

func TestGeometryColumn_Found(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT f_geometry_column, type, srid").
		WithArgs("parcels").
		WillReturnRows(pgxmock.NewRows([]string{"f_geometry_column", "type", "srid"}).
			AddRow("geom", "MULTIPOLYGON", 4326))

	gc, err := NewIntrospector(mock).GeometryColumn(context.Background(), "parcels")
	require.NoError(t, err)
	assert.Equal(t, "geom", gc.Name)
	assert.Equal(t, "MULTIPOLYGON", gc.GeomType)
	assert.Equal(t, 4326, gc.SRID)
}

func TestGeometryColumn_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT f_geometry_column, type, srid").
		WithArgs("missing").
		WillReturnRows(pgxmock.NewRows([]string{"f_geometry_column", "type", "srid"}))

	_, err = NewIntrospector(mock).GeometryColumn(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLayerNotFound))
}

func TestGeometryColumn_WrappedNoRows(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT f_geometry_column, type, srid").
		WithArgs("missing").
		WillReturnError(fmt.Errorf("scan: %w", pgx.ErrNoRows))

	_, err = NewIntrospector(mock).GeometryColumn(context.Background(), "missing")
	assert.True(t, errors.Is(err, ErrLayerNotFound))
}

func TestGeometryColumn_QueryError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT f_geometry_column, type, srid").
		WithArgs("parcels").
		WillReturnError(fmt.Errorf("connection refused"))

	_, err = NewIntrospector(mock).GeometryColumn(context.Background(), "parcels")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrLayerNotFound))
	assert.Contains(t, err.Error(), "geometry column for parcels")
}

func TestAttributeColumns(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT column_name").
		WithArgs("parcels", "geom").
		WillReturnRows(pgxmock.NewRows([]string{"column_name"}).
			AddRow("id").
			AddRow("name"))

	columns, err := NewIntrospector(mock).AttributeColumns(context.Background(), "parcels", "geom")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name"}, columns)
}

func TestHasColumn(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT COUNT").
		WithArgs("parcels", "id").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(1))

	ok, err := NewIntrospector(mock).HasColumn(context.Background(), "parcels", "id")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestHasColumn_Missing(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT COUNT").
		WithArgs("parcels", "id").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(0))

	ok, err := NewIntrospector(mock).HasColumn(context.Background(), "parcels", "id")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestValidateTable_Unknown(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT f_geometry_column, type, srid").
		WithArgs(`parcels"; DROP TABLE parcels;--`).
		WillReturnRows(pgxmock.NewRows([]string{"f_geometry_column", "type", "srid"}))

	err = NewIntrospector(mock).ValidateTable(context.Background(), `parcels"; DROP TABLE parcels;--`)
	assert.True(t, errors.Is(err, ErrLayerNotFound))
}
