package catalog

import (
	"path/filepath"
	"testing"

	"github.com/scardb/scardb/enginerr"
	"github.com/scardb/scardb/storage"
	"github.com/scardb/scardb/value"
)

func schema(t *testing.T, name string) *storage.Schema {
	t.Helper()
	s, err := storage.NewSchema(name, []storage.Column{
		{Name: "id", Type: value.KindInt, PrimaryKey: true, AutoIncrement: true, NotNull: true},
		{Name: "n", Type: value.KindVarchar, Width: 4, NotNull: true},
	})
	if err != nil {
		t.Fatalf("NewSchema: %v", err)
	}
	return s
}

func TestCatalog_CreateDropGetSchema(t *testing.T) {
	dir := t.TempDir()
	c, err := Open(filepath.Join(dir, "catalog.yaml"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := c.CreateTable("t", schema(t, "t")); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	if err := c.CreateTable("t", schema(t, "t")); !enginerr.Is(err, enginerr.ErrAlreadyExists) {
		t.Fatalf("duplicate CreateTable err = %v, want ErrAlreadyExists", err)
	}
	got, err := c.GetSchema("t")
	if err != nil {
		t.Fatalf("GetSchema: %v", err)
	}
	if got.Name != "t" || len(got.Columns) != 2 {
		t.Fatalf("GetSchema result = %+v", got)
	}
	if err := c.DropTable("t"); err != nil {
		t.Fatalf("DropTable: %v", err)
	}
	if _, err := c.GetSchema("t"); !enginerr.Is(err, enginerr.ErrNotFound) {
		t.Fatalf("GetSchema after drop err = %v, want ErrNotFound", err)
	}
	if err := c.DropTable("t"); !enginerr.Is(err, enginerr.ErrNotFound) {
		t.Fatalf("DropTable absent err = %v, want ErrNotFound", err)
	}
}

// TestCatalog_NextAutoIncrement_StartsAtOne covers spec.md §8 S1's first
// INSERT receiving id=1, and checks monotonic, non-reusing progression
// (invariant 4).
func TestCatalog_NextAutoIncrement_StartsAtOne(t *testing.T) {
	dir := t.TempDir()
	c, err := Open(filepath.Join(dir, "catalog.yaml"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := c.CreateTable("t", schema(t, "t")); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	for i, want := range []int64{1, 2, 3} {
		got, err := c.NextAutoIncrement("t", "id")
		if err != nil {
			t.Fatalf("NextAutoIncrement[%d]: %v", i, err)
		}
		if got != want {
			t.Fatalf("NextAutoIncrement[%d] = %d, want %d", i, got, want)
		}
	}
}

func TestCatalog_BumpAutoIncrement_OnlyRaises(t *testing.T) {
	dir := t.TempDir()
	c, err := Open(filepath.Join(dir, "catalog.yaml"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := c.CreateTable("t", schema(t, "t")); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	if err := c.BumpAutoIncrement("t", "id", 10); err != nil {
		t.Fatalf("BumpAutoIncrement: %v", err)
	}
	got, err := c.NextAutoIncrement("t", "id")
	if err != nil {
		t.Fatalf("NextAutoIncrement: %v", err)
	}
	if got != 10 {
		t.Fatalf("NextAutoIncrement after bump = %d, want 10", got)
	}
	// Bumping to a lower value than already stored is a no-op.
	if err := c.BumpAutoIncrement("t", "id", 2); err != nil {
		t.Fatalf("BumpAutoIncrement (lower): %v", err)
	}
	got, err = c.NextAutoIncrement("t", "id")
	if err != nil {
		t.Fatalf("NextAutoIncrement: %v", err)
	}
	if got != 11 {
		t.Fatalf("NextAutoIncrement after no-op bump = %d, want 11", got)
	}
}

// TestCatalog_PersistsAcrossReopen covers spec.md §8 S5's crash-free
// reopen for catalog metadata: schema and sequence state survive a
// close-and-reopen of the catalog document.
func TestCatalog_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	c, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := c.CreateTable("t", schema(t, "t")); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	if _, err := c.NextAutoIncrement("t", "id"); err != nil {
		t.Fatalf("NextAutoIncrement: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if _, err := reopened.GetSchema("t"); err != nil {
		t.Fatalf("GetSchema after reopen: %v", err)
	}
	got, err := reopened.NextAutoIncrement("t", "id")
	if err != nil {
		t.Fatalf("NextAutoIncrement after reopen: %v", err)
	}
	if got != 2 {
		t.Fatalf("NextAutoIncrement after reopen = %d, want 2", got)
	}
}

func TestCatalog_Tables(t *testing.T) {
	dir := t.TempDir()
	c, err := Open(filepath.Join(dir, "catalog.yaml"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := c.CreateTable("a", schema(t, "a")); err != nil {
		t.Fatalf("CreateTable a: %v", err)
	}
	if err := c.CreateTable("b", schema(t, "b")); err != nil {
		t.Fatalf("CreateTable b: %v", err)
	}
	names := c.Tables()
	if len(names) != 2 {
		t.Fatalf("Tables() = %v, want 2 entries", names)
	}
}
