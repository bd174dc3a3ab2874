package engine

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/scardb/scardb/ast"
	"github.com/scardb/scardb/enginerr"
	"github.com/scardb/scardb/value"
)

func lit(v any) ast.Literal { return ast.Literal{Val: v} }

func eq(col string, v any) ast.Expr {
	return ast.Comparison{Op: ast.OpEq, Left: ast.ColumnRef{Column: col}, Right: lit(v)}
}

func open(t *testing.T) *Engine {
	t.Helper()
	e, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { e.Close() })
	return e
}

func exec(t *testing.T, e *Engine, stmt ast.Statement) *Result {
	t.Helper()
	res, err := e.Execute(context.Background(), stmt)
	if err != nil {
		t.Fatalf("Execute(%T): %v", stmt, err)
	}
	return res
}

func createT(t *testing.T, e *Engine) {
	t.Helper()
	exec(t, e, ast.CreateTable{
		Name: "t",
		Columns: []ast.Column{
			{Name: "id", Type: ast.TypeInt, PrimaryKey: true, AutoIncrement: true, NotNull: true},
			{Name: "n", Type: ast.TypeVarchar, Width: 4, NotNull: true},
		},
	})
}

func insertN(t *testing.T, e *Engine, n string) {
	t.Helper()
	exec(t, e, ast.Insert{Table: "t", Columns: []string{"n"}, Rows: [][]ast.Expr{{lit(n)}}})
}

// TestScenario_S1_AutoincrementDeleteReinsert follows spec.md §8 S1.
func TestScenario_S1_AutoincrementDeleteReinsert(t *testing.T) {
	e := open(t)
	createT(t, e)
	insertN(t, e, "a")
	insertN(t, e, "b")
	insertN(t, e, "c")

	exec(t, e, ast.Delete{Table: "t", Where: eq("id", int64(2))})

	res := exec(t, e, ast.Insert{Table: "t", Columns: []string{"n"}, Rows: [][]ast.Expr{{lit("d")}}})
	if res.Affected != 1 {
		t.Fatalf("insert d affected = %d, want 1", res.Affected)
	}

	sel := exec(t, e, ast.Select{From: ast.Table{Name: "t"}, Where: eq("n", "d")})
	if len(sel.Rows) != 1 || sel.Rows[0][0].I != 4 {
		t.Fatalf("select n=d = %+v, want id=4", sel.Rows)
	}

	h, err := e.openTable("t")
	if err != nil {
		t.Fatalf("openTable: %v", err)
	}
	loc, ok := h.index.Lookup(value.Int(4))
	if !ok || loc.Slot != 1 {
		t.Fatalf("id=4 locator = %+v, %v, want slot 1 (reused)", loc, ok)
	}
}

// TestScenario_S2_IndexVsScanEquivalence follows spec.md §8 S2.
func TestScenario_S2_IndexVsScanEquivalence(t *testing.T) {
	e := open(t)
	createT(t, e)
	insertN(t, e, "a")
	insertN(t, e, "b")
	insertN(t, e, "c")

	byIndex := exec(t, e, ast.Select{From: ast.Table{Name: "t"}, Where: eq("id", int64(3))})
	byScan := exec(t, e, ast.Select{From: ast.Table{Name: "t"}, Where: eq("n", "c")})

	if len(byIndex.Rows) != 1 || len(byScan.Rows) != 1 {
		t.Fatalf("expected exactly one row from each path: index=%v scan=%v", byIndex.Rows, byScan.Rows)
	}
	if !value.Equal(byIndex.Rows[0][0], byScan.Rows[0][0]) || !value.Equal(byIndex.Rows[0][1], byScan.Rows[0][1]) {
		t.Fatalf("index-probe row %v != full-scan row %v", byIndex.Rows[0], byScan.Rows[0])
	}
}

// TestScenario_S3_PKUpdate follows spec.md §8 S3.
func TestScenario_S3_PKUpdate(t *testing.T) {
	e := open(t)
	createT(t, e)
	insertN(t, e, "a")
	insertN(t, e, "b")
	insertN(t, e, "c")

	h, err := e.openTable("t")
	if err != nil {
		t.Fatalf("openTable: %v", err)
	}
	before, ok := h.index.Lookup(value.Int(1))
	if !ok {
		t.Fatalf("expected id=1 indexed before update")
	}

	exec(t, e, ast.Update{
		Table:       "t",
		Assignments: []ast.Assignment{{Column: "id", Value: lit(int64(10))}},
		Where:       eq("id", int64(1)),
	})

	if _, ok := h.index.Lookup(value.Int(1)); ok {
		t.Fatalf("id=1 should no longer be indexed")
	}
	after, ok := h.index.Lookup(value.Int(10))
	if !ok || after != before {
		t.Fatalf("id=10 locator = %+v, %v, want %+v, true", after, ok, before)
	}

	_, err = e.Execute(context.Background(), ast.Update{
		Table:       "t",
		Assignments: []ast.Assignment{{Column: "id", Value: lit(int64(3))}},
		Where:       eq("id", int64(10)),
	})
	if !enginerr.Is(err, enginerr.ErrDuplicateKey) {
		t.Fatalf("err = %v, want ErrDuplicateKey", err)
	}
}

// TestScenario_S4_Join follows spec.md §8 S4.
func TestScenario_S4_Join(t *testing.T) {
	e := open(t)
	createT(t, e)
	insertN(t, e, "a")
	insertN(t, e, "b")
	insertN(t, e, "c")

	exec(t, e, ast.CreateTable{
		Name: "o",
		Columns: []ast.Column{
			{Name: "uid", Type: ast.TypeInt, NotNull: true},
			{Name: "amt", Type: ast.TypeInt, NotNull: true},
		},
	})
	exec(t, e, ast.Insert{Table: "o", Rows: [][]ast.Expr{
		{lit(int64(1)), lit(int64(50))},
		{lit(int64(1)), lit(int64(70))},
		{lit(int64(3)), lit(int64(10))},
	}})

	res := exec(t, e, ast.Select{
		From: ast.Join{
			Left:  ast.Table{Name: "t"},
			Right: ast.Table{Name: "o"},
			On: ast.Comparison{
				Op:    ast.OpEq,
				Left:  ast.ColumnRef{Table: "t", Column: "id"},
				Right: ast.ColumnRef{Table: "o", Column: "uid"},
			},
		},
	})

	type row struct {
		id   int64
		n    string
		uid  int64
		amt  int64
	}
	want := []row{
		{1, "a", 1, 50},
		{1, "a", 1, 70},
		{3, "c", 3, 10},
	}
	if len(res.Rows) != len(want) {
		t.Fatalf("join returned %d rows, want %d: %v", len(res.Rows), len(want), res.Rows)
	}
	for i, w := range want {
		r := res.Rows[i]
		if r[0].I != w.id || r[1].S != w.n || r[2].I != w.uid || r[3].I != w.amt {
			t.Fatalf("join row %d = %+v, want %+v", i, r, w)
		}
	}
}

// TestScenario_S5_CrashFreeReopen follows spec.md §8 S5.
func TestScenario_S5_CrashFreeReopen(t *testing.T) {
	dir := t.TempDir()
	e, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	createT(t, e)
	insertN(t, e, "a")
	insertN(t, e, "b")
	insertN(t, e, "c")
	exec(t, e, ast.Delete{Table: "t", Where: eq("id", int64(2))})
	insertN(t, e, "d")

	before := exec(t, e, ast.Select{From: ast.Table{Name: "t"}})
	if err := e.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	after := exec(t, reopened, ast.Select{From: ast.Table{Name: "t"}})
	if len(after.Rows) != len(before.Rows) {
		t.Fatalf("reopened row count = %d, want %d", len(after.Rows), len(before.Rows))
	}

	h, err := reopened.openTable("t")
	if err != nil {
		t.Fatalf("openTable: %v", err)
	}
	for _, r := range before.Rows {
		loc, ok := h.index.Lookup(r[0])
		if !ok {
			t.Fatalf("id %v missing from rebuilt index", r[0])
		}
		_ = loc
	}
}

// TestScenario_S6_WidthRejection follows spec.md §8 S6 in spirit; see
// DESIGN.md for why this uses VARCHAR(4031): W = 4033 exceeds the
// 4032-byte usable page space, so not even one slot fits.
func TestScenario_S6_WidthRejection(t *testing.T) {
	e := open(t)
	_, err := e.Execute(context.Background(), ast.CreateTable{
		Name:    "w",
		Columns: []ast.Column{{Name: "a", Type: ast.TypeVarchar, Width: 4031}},
	})
	if !enginerr.Is(err, enginerr.ErrSchemaTooWide) {
		t.Fatalf("err = %v, want ErrSchemaTooWide", err)
	}
}

// TestBoundary_LastPageFillThenAllocate covers spec.md §8's boundary:
// filling exactly S rows on the last page must not allocate a new page;
// the (S+1)th insert must.
func TestBoundary_LastPageFillThenAllocate(t *testing.T) {
	e := open(t)
	createT(t, e)
	h, err := e.openTable("t")
	if err != nil {
		t.Fatalf("openTable: %v", err)
	}
	slots := h.schema.SlotCount
	for i := 0; i < slots; i++ {
		insertN(t, e, "ab")
	}
	if got := h.pager.PageCount(); got != 1 {
		t.Fatalf("PageCount after filling one page = %d, want 1", got)
	}
	insertN(t, e, "ab")
	if got := h.pager.PageCount(); got != 2 {
		t.Fatalf("PageCount after (S+1)th insert = %d, want 2", got)
	}
}

// TestLaw_InsertDeleteRoundTrip covers spec.md §8's law: INSERT x then
// DELETE x leaves the row-set unchanged afterward and the bit cleared.
// Reuse of the freed slot is checked by TestScenario_S1.
func TestLaw_InsertDeleteRoundTrip(t *testing.T) {
	e := open(t)
	createT(t, e)
	insertN(t, e, "a")
	exec(t, e, ast.Delete{Table: "t", Where: eq("id", int64(1))})

	sel := exec(t, e, ast.Select{From: ast.Table{Name: "t"}})
	if len(sel.Rows) != 0 {
		t.Fatalf("table should be empty after insert+delete, got %v", sel.Rows)
	}

	h, err := e.openTable("t")
	if err != nil {
		t.Fatalf("openTable: %v", err)
	}
	page, err := h.pager.ReadPage(0)
	if err != nil {
		t.Fatalf("ReadPage: %v", err)
	}
	if page.IsSet(0) {
		t.Fatalf("slot 0 should be cleared after delete")
	}
}

// TestDropTable_ThenRecreate ensures DROP TABLE removes both catalog
// metadata and the in-memory handle so the name can be reused.
func TestDropTable_ThenRecreate(t *testing.T) {
	e := open(t)
	createT(t, e)
	insertN(t, e, "a")
	exec(t, e, ast.DropTable{Name: "t"})

	if _, err := e.Execute(context.Background(), ast.Select{From: ast.Table{Name: "t"}}); !enginerr.Is(err, enginerr.ErrNotFound) {
		t.Fatalf("select after drop err = %v, want ErrNotFound", err)
	}

	createT(t, e)
	sel := exec(t, e, ast.Select{From: ast.Table{Name: "t"}})
	if len(sel.Rows) != 0 {
		t.Fatalf("recreated table should be empty, got %v", sel.Rows)
	}
}

func TestProjection_NamedColumns(t *testing.T) {
	e := open(t)
	createT(t, e)
	insertN(t, e, "a")
	res := exec(t, e, ast.Select{Projection: []string{"n", "id"}, From: ast.Table{Name: "t"}})
	if len(res.Cols) != 2 || res.Cols[0] != "n" || res.Cols[1] != "id" {
		t.Fatalf("Cols = %v", res.Cols)
	}
	if res.Rows[0][0].S != "a" || res.Rows[0][1].I != 1 {
		t.Fatalf("projected row = %+v", res.Rows[0])
	}
}

func TestProjection_UnknownColumn(t *testing.T) {
	e := open(t)
	createT(t, e)
	_, err := e.Execute(context.Background(), ast.Select{Projection: []string{"missing"}, From: ast.Table{Name: "t"}})
	if !enginerr.Is(err, enginerr.ErrUnknownColumn) {
		t.Fatalf("err = %v, want ErrUnknownColumn", err)
	}
}

func TestInsert_DuplicatePrimaryKey(t *testing.T) {
	e := open(t)
	exec(t, e, ast.CreateTable{
		Name: "u",
		Columns: []ast.Column{
			{Name: "id", Type: ast.TypeInt, PrimaryKey: true, NotNull: true},
			{Name: "n", Type: ast.TypeVarchar, Width: 2, NotNull: true},
		},
	})
	exec(t, e, ast.Insert{Table: "u", Rows: [][]ast.Expr{{lit(int64(1)), lit("a")}}})
	_, err := e.Execute(context.Background(), ast.Insert{Table: "u", Rows: [][]ast.Expr{{lit(int64(1)), lit("b")}}})
	if !enginerr.Is(err, enginerr.ErrDuplicateKey) {
		t.Fatalf("err = %v, want ErrDuplicateKey", err)
	}
}

func TestTypeMismatch_InComparison(t *testing.T) {
	e := open(t)
	createT(t, e)
	insertN(t, e, "a")
	_, err := e.Execute(context.Background(), ast.Select{
		From:  ast.Table{Name: "t"},
		Where: eq("id", "not-an-int"),
	})
	if !enginerr.Is(err, enginerr.ErrTypeMismatch) {
		t.Fatalf("err = %v, want ErrTypeMismatch", err)
	}
}

func TestTablesAndStats(t *testing.T) {
	e := open(t)
	createT(t, e)
	insertN(t, e, "a")
	insertN(t, e, "b")

	names := e.Tables()
	if len(names) != 1 || names[0] != "t" {
		t.Fatalf("Tables() = %v", names)
	}
	st, err := e.Stats("t")
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.LiveRows != 2 {
		t.Fatalf("Stats.LiveRows = %d, want 2", st.LiveRows)
	}
}

func TestOpen_CreatesDirAndCatalogFile(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "nested")
	e, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer e.Close()
	createT(t, e)
	if len(e.Tables()) != 1 {
		t.Fatalf("expected one table after create")
	}
}
