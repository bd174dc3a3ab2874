package storage

import (
	"errors"
	"testing"

	"github.com/scardb/scardb/enginerr"
	"github.com/scardb/scardb/value"
)

func intCol(name string, pk, auto bool) Column {
	return Column{Name: name, Type: value.KindInt, PrimaryKey: pk, AutoIncrement: auto, NotNull: pk}
}

func TestNewSchema_WidthAndSlotCount(t *testing.T) {
	s, err := NewSchema("t", []Column{
		intCol("id", true, true),
		{Name: "n", Type: value.KindVarchar, Width: 4},
	})
	if err != nil {
		t.Fatalf("NewSchema: %v", err)
	}
	wantWidth := 8 + (4 + 2)
	if s.Width != wantWidth {
		t.Fatalf("Width = %d, want %d", s.Width, wantWidth)
	}
	wantSlots := PageUsableBytes / wantWidth
	if s.SlotCount != wantSlots {
		t.Fatalf("SlotCount = %d, want %d", s.SlotCount, wantSlots)
	}
}

func TestNewSchema_DuplicateColumn(t *testing.T) {
	_, err := NewSchema("t", []Column{intCol("id", true, false), intCol("id", false, false)})
	if !enginerr.Is(err, enginerr.ErrAlreadyExists) {
		t.Fatalf("err = %v, want ErrAlreadyExists", err)
	}
}

func TestNewSchema_MultiplePrimaryKeys(t *testing.T) {
	_, err := NewSchema("t", []Column{intCol("a", true, false), intCol("b", true, false)})
	if !enginerr.Is(err, enginerr.ErrUnsupported) {
		t.Fatalf("err = %v, want ErrUnsupported", err)
	}
}

func TestNewSchema_AutoIncrementRequiresIntPK(t *testing.T) {
	_, err := NewSchema("t", []Column{{Name: "a", Type: value.KindVarchar, Width: 4, AutoIncrement: true}})
	if !enginerr.Is(err, enginerr.ErrUnsupported) {
		t.Fatalf("err = %v, want ErrUnsupported", err)
	}
}

// TestNewSchema_WidthBoundary exercises spec.md §8's "row width exceeds page
// capacity" boundary at the point where it actually triggers: a VARCHAR(4031)
// column yields W=4033, one byte past the 4032-byte usable region, giving
// SlotCount=0. (Scenario S6's own VARCHAR(4000) example does not actually
// breach the limit under the formula in spec.md §4.3 — see DESIGN.md.)
func TestNewSchema_WidthBoundary(t *testing.T) {
	_, err := NewSchema("w", []Column{{Name: "a", Type: value.KindVarchar, Width: 4031}})
	if !enginerr.Is(err, enginerr.ErrSchemaTooWide) {
		t.Fatalf("err = %v, want ErrSchemaTooWide", err)
	}

	// One byte narrower fits exactly one slot.
	s, err := NewSchema("w2", []Column{{Name: "a", Type: value.KindVarchar, Width: 4030}})
	if err != nil {
		t.Fatalf("NewSchema: %v", err)
	}
	if s.SlotCount != 1 {
		t.Fatalf("SlotCount = %d, want 1", s.SlotCount)
	}
}

// TestNewSchema_NarrowRowExceedsSlotBitmask covers the opposite boundary: a
// very narrow row (lone BOOLEAN) yields a naive slot count (4032) far above
// the 512-bit bitmask this engine supports, so it must also be rejected.
func TestNewSchema_NarrowRowExceedsSlotBitmask(t *testing.T) {
	_, err := NewSchema("b", []Column{{Name: "flag", Type: value.KindBool}})
	if !enginerr.Is(err, enginerr.ErrSchemaTooWide) {
		t.Fatalf("err = %v, want ErrSchemaTooWide", err)
	}
	var scarErr *enginerr.Error
	if !errors.As(err, &scarErr) {
		t.Fatalf("err is not *enginerr.Error: %T", err)
	}
}

func TestSchema_PKColumnIndex(t *testing.T) {
	s, err := NewSchema("t", []Column{
		{Name: "a", Type: value.KindInt},
		intCol("id", true, false),
	})
	if err != nil {
		t.Fatalf("NewSchema: %v", err)
	}
	if s.PKColumnIndex() != 1 {
		t.Fatalf("PKColumnIndex = %d, want 1", s.PKColumnIndex())
	}
	col, ok := s.PKColumn()
	if !ok || col.Name != "id" {
		t.Fatalf("PKColumn = %+v, %v", col, ok)
	}
	if s.ColumnIndex("missing") != -1 {
		t.Fatalf("ColumnIndex(missing) should be -1")
	}
}
