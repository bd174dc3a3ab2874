package engine

import (
	"fmt"
	"strings"

	"github.com/scardb/scardb/ast"
	"github.com/scardb/scardb/enginerr"
	"github.com/scardb/scardb/index"
	"github.com/scardb/scardb/storage"
	"github.com/scardb/scardb/value"
)

// decodedRow pairs a row's physical locator with its decoded values,
// produced by a Full Scan.
type decodedRow struct {
	loc index.Locator
	row []value.Value
}

// fullScan decodes every live row of h's table, in ascending
// (page_id, slot_id) order.
func (e *Engine) fullScan(h *tableHandle) ([]decodedRow, error) {
	var out []decodedRow
	n := h.pager.PageCount()
	for pid := storage.PageID(0); uint32(pid) < n; pid++ {
		page, err := h.pager.ReadPage(pid)
		if err != nil {
			return nil, err
		}
		for slot := 0; slot < h.schema.SlotCount; slot++ {
			if !page.IsSet(slot) {
				continue
			}
			row, err := h.codec.Decode(page.ReadSlot(slot, h.schema.Width))
			if err != nil {
				return nil, enginerr.New("engine.fullScan", enginerr.ErrCorruptRow, err)
			}
			out = append(out, decodedRow{loc: index.Locator{Page: pid, Slot: slot}, row: row})
		}
	}
	return out, nil
}

func columnNames(schema *storage.Schema) []string {
	names := make([]string, len(schema.Columns))
	for i, c := range schema.Columns {
		names[i] = c.Name
	}
	return names
}

// planMatches implements spec.md §4.6's single planner rule: if where is
// exactly `pk_column = literal` with no conjunction and the table has a
// PK, probe the B-Tree (Index Lookup); otherwise iterate every page and
// every set slot, filtering by predicate (Full Scan). A nil where
// matches every row.
func (e *Engine) planMatches(h *tableHandle, where ast.Expr) ([]decodedRow, error) {
	if where == nil {
		return e.fullScan(h)
	}
	if pk, ok := h.schema.PKColumn(); ok {
		if key, ok := pkEquality(where, pk.Name); ok && key.Kind == pk.Type {
			loc, found := h.index.Lookup(key)
			if !found {
				return nil, nil
			}
			page, err := h.pager.ReadPage(loc.Page)
			if err != nil {
				return nil, err
			}
			row, err := h.codec.Decode(page.ReadSlot(loc.Slot, h.schema.Width))
			if err != nil {
				return nil, enginerr.New("engine.planMatches", enginerr.ErrCorruptRow, err)
			}
			return []decodedRow{{loc: loc, row: row}}, nil
		}
	}
	all, err := e.fullScan(h)
	if err != nil {
		return nil, err
	}
	cols := columnNames(h.schema)
	var out []decodedRow
	for _, dr := range all {
		ctx := tupleCtx{bindings: []binding{{name: h.schema.Name, row: dr.row, cols: cols}}}
		ok, err := evalPredicate(ctx, where)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, dr)
		}
	}
	return out, nil
}

// executeSelect implements spec.md §4.6 SELECT: single-table (Index
// Lookup or Full Scan per planMatches) or exactly one two-table INNER
// JOIN, executed as a Nested Loop Join with the left table as the outer
// loop.
func (e *Engine) executeSelect(s ast.Select) (*Result, error) {
	switch from := s.From.(type) {
	case ast.Table:
		return e.executeSelectTable(s, from)
	case ast.Join:
		return e.executeSelectJoin(s, from)
	default:
		return nil, enginerr.New("engine.executeSelect", enginerr.ErrUnsupported, fmt.Errorf("%T", s.From))
	}
}

func tableBindingName(t ast.Table) string {
	if t.Alias != "" {
		return t.Alias
	}
	return t.Name
}

func (e *Engine) executeSelectTable(s ast.Select, from ast.Table) (*Result, error) {
	h, err := e.openTable(from.Name)
	if err != nil {
		return nil, err
	}
	matches, err := e.planMatches(h, s.Where)
	if err != nil {
		return nil, err
	}
	cols := columnNames(h.schema)
	bindingName := tableBindingName(from)

	outCols := s.Projection
	if len(outCols) == 0 {
		outCols = cols
	} else {
		for _, name := range outCols {
			_, column, _ := splitQualified(name)
			if h.schema.ColumnIndex(column) < 0 {
				return nil, enginerr.New("engine.executeSelectTable", enginerr.ErrUnknownColumn, fmt.Errorf("%s", name))
			}
		}
	}

	rows := make([][]value.Value, 0, len(matches))
	for _, dr := range matches {
		ctx := tupleCtx{bindings: []binding{{name: bindingName, row: dr.row, cols: cols}}}
		projected, err := projectRow(ctx, s.Projection, cols, dr.row)
		if err != nil {
			return nil, err
		}
		rows = append(rows, projected)
	}
	return &Result{Cols: outCols, Rows: rows, Affected: int64(len(rows))}, nil
}

// executeSelectJoin runs a Nested Loop Join of exactly two tables, per
// spec.md §4.6: the outer table is the left table as written; for each
// outer row, every inner row is scanned and the concatenation is
// emitted when the ON predicate holds. No index is used for the join
// even when the inner side's join key is its PK — a deliberate,
// documented simplification (spec.md §9).
func (e *Engine) executeSelectJoin(s ast.Select, j ast.Join) (*Result, error) {
	left, err := e.openTable(j.Left.Name)
	if err != nil {
		return nil, err
	}
	right, err := e.openTable(j.Right.Name)
	if err != nil {
		return nil, err
	}
	outerRows, err := e.fullScan(left)
	if err != nil {
		return nil, err
	}
	innerRows, err := e.fullScan(right)
	if err != nil {
		return nil, err
	}
	leftCols := columnNames(left.schema)
	rightCols := columnNames(right.schema)
	leftName := tableBindingName(j.Left)
	rightName := tableBindingName(j.Right)

	combinedCols := append(append([]string{}, leftCols...), rightCols...)
	outCols := s.Projection
	if len(outCols) == 0 {
		outCols = combinedCols
	} else {
		for _, name := range outCols {
			_, column, _ := splitQualified(name)
			if indexOfColumn(combinedCols, column) < 0 {
				return nil, enginerr.New("engine.executeSelectJoin", enginerr.ErrUnknownColumn, fmt.Errorf("%s", name))
			}
		}
	}

	var rows [][]value.Value
	for _, o := range outerRows {
		for _, in := range innerRows {
			ctx := tupleCtx{bindings: []binding{
				{name: leftName, row: o.row, cols: leftCols},
				{name: rightName, row: in.row, cols: rightCols},
			}}
			ok, err := evalPredicate(ctx, j.On)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			if s.Where != nil {
				ok, err := evalPredicate(ctx, s.Where)
				if err != nil {
					return nil, err
				}
				if !ok {
					continue
				}
			}
			combined := append(append([]value.Value{}, o.row...), in.row...)
			projected, err := projectRow(ctx, s.Projection, combinedCols, combined)
			if err != nil {
				return nil, err
			}
			rows = append(rows, projected)
		}
	}
	return &Result{Cols: outCols, Rows: rows, Affected: int64(len(rows))}, nil
}

// indexOfColumn returns the position of column in cols, or -1 if absent.
func indexOfColumn(cols []string, column string) int {
	for i, c := range cols {
		if c == column {
			return i
		}
	}
	return -1
}

// splitQualified splits a projection name of the form "table.column" (or
// a bare "column") into its parts.
func splitQualified(name string) (table, column string, err error) {
	if i := strings.IndexByte(name, '.'); i >= 0 {
		return name[:i], name[i+1:], nil
	}
	return "", name, nil
}

// projectRow resolves a projection list against ctx/defaultCols/
// defaultRow. An empty projection list means "*", i.e. all columns in
// schema declaration order. Unknown columns fail UnknownColumn.
func projectRow(ctx tupleCtx, projection []string, defaultCols []string, defaultRow []value.Value) ([]value.Value, error) {
	if len(projection) == 0 {
		return append([]value.Value{}, defaultRow...), nil
	}
	out := make([]value.Value, len(projection))
	for i, name := range projection {
		table, column, _ := splitQualified(name)
		v, err := ctx.resolve(ast.ColumnRef{Table: table, Column: column})
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
