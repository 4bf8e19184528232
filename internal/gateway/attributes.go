package gateway

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// attributeRowCap bounds the attribute view to the first rows of the table.
const attributeRowCap = 100

// AttributeTable is the tabular attribute view of a layer.
type AttributeTable struct {
	Headers []string         `json:"headers"`
	Data    []map[string]any `json:"data"`
}

// LayerAttributes returns the attribute table for a layer: all non-geometry
// columns, capped at 100 rows. A layer whose only column is the geometry
// degenerates to selecting every column the rows contain.
func (g *Gateway) LayerAttributes(ctx context.Context, table string) (*AttributeTable, error) {
	gc, err := g.intro.GeometryColumn(ctx, table)
	if err != nil {
		return nil, err
	}

	columns, err := g.intro.AttributeColumns(ctx, table, gc.Name)
	if err != nil {
		return nil, err
	}

	selectList := "*"
	if len(columns) > 0 {
		quoted := make([]string, len(columns))
		for i, c := range columns {
			quoted[i] = pgx.Identifier{c}.Sanitize()
		}
		selectList = strings.Join(quoted, ", ")
	}

	sql := fmt.Sprintf("SELECT %s FROM %s LIMIT $1", selectList, pgx.Identifier{table}.Sanitize())
	rows, err := g.pool.Query(ctx, sql, attributeRowCap)
	if err != nil {
		return nil, eris.Wrapf(err, "gateway: attributes for %s", table)
	}
	defer rows.Close()

	headers := make([]string, 0, len(rows.FieldDescriptions()))
	for _, fd := range rows.FieldDescriptions() {
		headers = append(headers, fd.Name)
	}

	out := &AttributeTable{Headers: headers, Data: []map[string]any{}}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, eris.Wrapf(err, "gateway: scan attribute row for %s", table)
		}
		record := make(map[string]any, len(headers))
		for i, h := range headers {
			record[h] = values[i]
		}
		out.Data = append(out.Data, record)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrapf(err, "gateway: attributes for %s", table)
	}
	return out, nil
}
