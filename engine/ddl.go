package engine

import (
	"os"

	"github.com/scardb/scardb/ast"
	"github.com/scardb/scardb/enginerr"
	"github.com/scardb/scardb/index"
	"github.com/scardb/scardb/storage"
	"github.com/scardb/scardb/value"
)

func astTypeToKind(t ast.ColType) value.Kind {
	switch t {
	case ast.TypeInt:
		return value.KindInt
	case ast.TypeBoolean:
		return value.KindBool
	case ast.TypeVarchar:
		return value.KindVarchar
	default:
		return value.KindInt
	}
}

func astColumnsToSchemaColumns(cols []ast.Column) []storage.Column {
	out := make([]storage.Column, len(cols))
	for i, c := range cols {
		out[i] = storage.Column{
			Name:          c.Name,
			Type:          astTypeToKind(c.Type),
			Width:         c.Width,
			PrimaryKey:    c.PrimaryKey,
			AutoIncrement: c.AutoIncrement,
			NotNull:       c.NotNull,
		}
	}
	return out
}

// executeCreateTable validates the schema via the catalog and creates a
// new, empty (zero-page) table file, per spec.md §4.6.
func (e *Engine) executeCreateTable(s ast.CreateTable) (*Result, error) {
	schema, err := storage.NewSchema(s.Name, astColumnsToSchemaColumns(s.Columns))
	if err != nil {
		return nil, err
	}
	if err := e.cat.CreateTable(s.Name, schema); err != nil {
		return nil, err
	}
	pager, err := storage.OpenPager(e.tablePath(s.Name))
	if err != nil {
		return nil, err
	}
	h := &tableHandle{schema: schema, pager: pager, codec: storage.NewCodec(schema), state: stateOpen}
	if schema.HasPrimaryKey() {
		h.index = index.New()
	}
	e.tables[s.Name] = h
	e.log.Printf("engine: created table %q", s.Name)
	return &Result{Affected: 0}, nil
}

// executeDropTable removes the table's file, schema, sequences, and
// in-memory index/handle. Fails NotFound if the table does not exist.
func (e *Engine) executeDropTable(s ast.DropTable) (*Result, error) {
	if err := e.cat.DropTable(s.Name); err != nil {
		return nil, err
	}
	if h, ok := e.tables[s.Name]; ok {
		h.pager.Close()
		delete(e.tables, s.Name)
	}
	if err := os.Remove(e.tablePath(s.Name)); err != nil && !os.IsNotExist(err) {
		return nil, enginerr.New("engine.executeDropTable", enginerr.ErrIO, err)
	}
	e.log.Printf("engine: dropped table %q", s.Name)
	return &Result{Affected: 0}, nil
}
