// Package engine implements the statement executor/planner described in
// spec.md §4.6: it dispatches CREATE TABLE, DROP TABLE, INSERT, SELECT
// (including two-table INNER JOIN), UPDATE, and DELETE against the
// catalog, pager, record codec, and PK index, choosing between a Full
// Scan and an Index Lookup per the single planner rule this engine
// supports.
package engine

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/scardb/scardb/ast"
	"github.com/scardb/scardb/catalog"
	"github.com/scardb/scardb/enginerr"
	"github.com/scardb/scardb/index"
	"github.com/scardb/scardb/storage"
	"github.com/scardb/scardb/value"
)

// tableState is the per-handle lifecycle of spec.md §4.6: Closed -> Open
// (after catalog lookup and, if a PK is present, index rebuild) ->
// Closed (on drop). A handle that hits CorruptTable or IoError moves to
// Poisoned and must be re-opened, per spec.md §7.
type tableState int

const (
	stateOpen tableState = iota
	statePoisoned
)

type tableHandle struct {
	schema *storage.Schema
	pager  *storage.Pager
	codec  *storage.Codec
	index  *index.PKIndex // nil if schema has no PRIMARY_KEY
	state  tableState
}

// Option configures an Engine at Open time.
type Option func(*options)

type options struct {
	logger *log.Logger
}

// WithLogger sets the logger used for operational diagnostics (one line
// each when a table is created, opened, or dropped). Defaults to
// log.Default().
func WithLogger(l *log.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Engine is the top-level handle to one ScarDB database directory. All
// mutating statements acquire Engine's own exclusive guard for their
// duration (spec.md §5: at most one statement executes at a time); table
// handles may be open concurrently for reads, but the guard serializes
// every Execute call regardless of statement kind, which is sufficient
// for the single-writer model this engine targets.
type Engine struct {
	guard  sync.Mutex
	dir    string
	cat    *catalog.Catalog
	tables map[string]*tableHandle
	log    *log.Logger
}

// Open opens (creating if necessary) the database directory dir, which
// holds one catalog.yaml document plus one <table>.db file per table.
func Open(dir string, opts ...Option) (*Engine, error) {
	const op = "engine.Open"
	cfg := options{logger: log.Default()}
	for _, o := range opts {
		o(&cfg)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, enginerr.New(op, enginerr.ErrIO, err)
	}
	cat, err := catalog.Open(filepath.Join(dir, "catalog.yaml"))
	if err != nil {
		return nil, err
	}
	return &Engine{dir: dir, cat: cat, tables: map[string]*tableHandle{}, log: cfg.logger}, nil
}

func (e *Engine) tablePath(name string) string {
	return filepath.Join(e.dir, name+".db")
}

// openTable returns the open handle for name, opening it (and rebuilding
// its PK index, if any) on first use. Poisoned handles are never reused
// silently — openTable returns CorruptTable for a poisoned handle until
// the caller clears it via Close, after which the table is reopened.
func (e *Engine) openTable(name string) (*tableHandle, error) {
	const op = "engine.openTable"
	if h, ok := e.tables[name]; ok {
		if h.state == statePoisoned {
			return nil, enginerr.New(op, enginerr.ErrCorruptTable, fmt.Errorf("table %q is poisoned; close and reopen", name))
		}
		return h, nil
	}
	schema, err := e.cat.GetSchema(name)
	if err != nil {
		return nil, err
	}
	pager, err := storage.OpenPager(e.tablePath(name))
	if err != nil {
		return nil, err
	}
	h := &tableHandle{schema: schema, pager: pager, codec: storage.NewCodec(schema), state: stateOpen}
	if schema.HasPrimaryKey() {
		idx, err := e.rebuildIndex(h)
		if err != nil {
			pager.Close()
			return nil, err
		}
		h.index = idx
	}
	e.tables[name] = h
	e.log.Printf("engine: opened table %q (%d pages, pk=%v)", name, pager.PageCount(), schema.HasPrimaryKey())
	return h, nil
}

// rebuildIndex scans every page of h's table and reconstructs its PK
// index from authoritative row data, per spec.md §4.5: the on-disk
// representation never encodes tree structure, so the index always
// comes back from a full scan on open.
func (e *Engine) rebuildIndex(h *tableHandle) (*index.PKIndex, error) {
	const op = "engine.rebuildIndex"
	idx := index.New()
	pkPos := h.schema.PKColumnIndex()
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
				return nil, enginerr.New(op, enginerr.ErrCorruptTable, err)
			}
			key := row[pkPos]
			if err := idx.Insert(key, index.Locator{Page: pid, Slot: slot}); err != nil {
				return nil, enginerr.New(op, enginerr.ErrCorruptTable, fmt.Errorf("duplicate primary key during rebuild: %w", err))
			}
		}
	}
	return idx, nil
}

// poison moves h to the Poisoned state per spec.md §7: the engine never
// recovers from CorruptTable or IoError, so the handle must be re-opened
// (via Close, then a fresh openTable) before it serves another statement.
func (e *Engine) poison(h *tableHandle) {
	h.state = statePoisoned
}

// statementTables names every table a statement touches, so Execute can
// poison the right handle(s) when a table-handle operation fails with
// CorruptTable or IoError.
func statementTables(stmt ast.Statement) []string {
	switch s := stmt.(type) {
	case ast.CreateTable:
		return []string{s.Name}
	case ast.DropTable:
		return []string{s.Name}
	case ast.Insert:
		return []string{s.Table}
	case ast.Update:
		return []string{s.Table}
	case ast.Delete:
		return []string{s.Table}
	case ast.Select:
		switch from := s.From.(type) {
		case ast.Table:
			return []string{from.Name}
		case ast.Join:
			return []string{from.Left.Name, from.Right.Name}
		}
	}
	return nil
}

// Close releases every open table handle and its file descriptor. The
// engine itself may be reused afterward — tables are reopened lazily.
func (e *Engine) Close() error {
	e.guard.Lock()
	defer e.guard.Unlock()
	var first error
	for name, h := range e.tables {
		if err := h.pager.Close(); err != nil && first == nil {
			first = err
		}
		delete(e.tables, name)
	}
	return first
}

// Tables lists every table name registered in the catalog (a
// supplemented introspection helper; see SPEC_FULL.md).
func (e *Engine) Tables() []string {
	return e.cat.Tables()
}

// Stats reports page/slot occupancy for an open table (a supplemented
// introspection helper; see SPEC_FULL.md).
type Stats struct {
	Pages     uint32
	LiveRows  int
	FreeSlots int
}

func (e *Engine) Stats(table string) (Stats, error) {
	e.guard.Lock()
	defer e.guard.Unlock()
	h, err := e.openTable(table)
	if err != nil {
		return Stats{}, err
	}
	n := h.pager.PageCount()
	var st Stats
	st.Pages = n
	for pid := storage.PageID(0); uint32(pid) < n; pid++ {
		page, err := h.pager.ReadPage(pid)
		if err != nil {
			return Stats{}, err
		}
		for slot := 0; slot < h.schema.SlotCount; slot++ {
			if page.IsSet(slot) {
				st.LiveRows++
			} else {
				st.FreeSlots++
			}
		}
	}
	return st, nil
}

// Result is what Execute returns for every statement kind. For SELECT,
// Cols and Rows are populated and Affected equals len(Rows); for DDL/DML,
// Cols and Rows are nil and Affected is the number of rows created,
// updated, or removed.
type Result struct {
	Cols     []string
	Rows     [][]value.Value
	Affected int64
}

// Execute dispatches stmt to the matching handler. Exactly one statement
// runs at a time across the whole Engine (spec.md §5); ctx is consulted
// only before a statement begins, never mid-statement, consistent with
// "no operation in the engine suspends."
func (e *Engine) Execute(ctx context.Context, stmt ast.Statement) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, enginerr.New("engine.Execute", enginerr.ErrIO, err)
	}
	e.guard.Lock()
	defer e.guard.Unlock()

	var res *Result
	var err error
	switch s := stmt.(type) {
	case ast.CreateTable:
		res, err = e.executeCreateTable(s)
	case ast.DropTable:
		res, err = e.executeDropTable(s)
	case ast.Insert:
		res, err = e.executeInsert(s)
	case ast.Select:
		res, err = e.executeSelect(s)
	case ast.Update:
		res, err = e.executeUpdate(s)
	case ast.Delete:
		res, err = e.executeDelete(s)
	default:
		return nil, enginerr.New("engine.Execute", enginerr.ErrUnsupported, fmt.Errorf("%T", stmt))
	}
	if err != nil && (enginerr.Is(err, enginerr.ErrIO) || enginerr.Is(err, enginerr.ErrCorruptTable)) {
		for _, name := range statementTables(stmt) {
			if h, ok := e.tables[name]; ok {
				e.poison(h)
			}
		}
	}
	return res, err
}
