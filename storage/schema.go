package storage

import (
	"fmt"

	"github.com/scardb/scardb/enginerr"
	"github.com/scardb/scardb/value"
)

// Column describes one column of a table schema, in on-disk declaration
// order. At most one column per schema may set PrimaryKey; AutoIncrement
// requires Type == value.KindInt and PrimaryKey.
type Column struct {
	Name          string
	Type          value.Kind
	Width         int // VARCHAR(n) payload width; unused for INT/BOOLEAN
	PrimaryKey    bool
	AutoIncrement bool
	NotNull       bool
}

// EncodedWidth returns the on-disk byte width of this column per the
// encoding rules: INT=8, BOOLEAN=1, VARCHAR(n)=n+2 (2-byte length prefix).
func (c Column) EncodedWidth() int {
	switch c.Type {
	case value.KindInt:
		return 8
	case value.KindBool:
		return 1
	case value.KindVarchar:
		return c.Width + 2
	default:
		return 0
	}
}

// Schema is the ordered, immutable-after-create column list of a table.
// Width is the row width W = sum of encoded column widths; SlotCount is
// the derived number of fixed-width slots per page.
type Schema struct {
	Name      string
	Columns   []Column
	Width     int
	SlotCount int
	pkIndex   int // index into Columns, or -1 if no PK
}

// MaxSlotsPerPage bounds the occupancy bitmask to 512 bits (64 bytes).
const MaxSlotsPerPage = 512

// PageUsableBytes is the slot-array region of a page: PageSize minus the
// fixed 64-byte bitmask header.
const PageUsableBytes = PageSize - PageHeaderBytes

// NewSchema validates and constructs a Schema for table name from cols.
// Validation enforces: unique column names, at most one PRIMARY_KEY,
// AUTOINCREMENT only on an INT PRIMARY_KEY column, and a row width whose
// derived slot count fits the 512-bit page bitmask (else SchemaTooWide).
func NewSchema(name string, cols []Column) (*Schema, error) {
	const op = "storage.NewSchema"
	seen := make(map[string]bool, len(cols))
	pkIdx := -1
	width := 0
	for i, c := range cols {
		if c.Name == "" {
			return nil, enginerr.New(op, enginerr.ErrUnsupported, fmt.Errorf("column %d has empty name", i))
		}
		if seen[c.Name] {
			return nil, enginerr.New(op, enginerr.ErrAlreadyExists, fmt.Errorf("duplicate column %q", c.Name))
		}
		seen[c.Name] = true
		if c.PrimaryKey {
			if pkIdx != -1 {
				return nil, enginerr.New(op, enginerr.ErrUnsupported, fmt.Errorf("table %q declares more than one PRIMARY KEY", name))
			}
			pkIdx = i
		}
		if c.AutoIncrement && (c.Type != value.KindInt || !c.PrimaryKey) {
			return nil, enginerr.New(op, enginerr.ErrUnsupported, fmt.Errorf("column %q: AUTOINCREMENT requires INT PRIMARY KEY", c.Name))
		}
		if c.Type == value.KindVarchar && c.Width <= 0 {
			return nil, enginerr.New(op, enginerr.ErrUnsupported, fmt.Errorf("column %q: VARCHAR width must be positive", c.Name))
		}
		width += c.EncodedWidth()
	}
	if width <= 0 {
		return nil, enginerr.New(op, enginerr.ErrSchemaTooWide, fmt.Errorf("table %q has zero row width", name))
	}
	slots := PageUsableBytes / width
	if slots == 0 {
		return nil, enginerr.New(op, enginerr.ErrSchemaTooWide, fmt.Errorf("table %q: row width %d exceeds usable page space %d", name, width, PageUsableBytes))
	}
	if slots > MaxSlotsPerPage {
		return nil, enginerr.New(op, enginerr.ErrSchemaTooWide, fmt.Errorf("table %q: row width %d yields %d slots, exceeding the %d-bit page bitmask", name, width, slots, MaxSlotsPerPage))
	}
	return &Schema{Name: name, Columns: append([]Column(nil), cols...), Width: width, SlotCount: slots, pkIndex: pkIdx}, nil
}

// HasPrimaryKey reports whether this schema declares a PRIMARY_KEY column.
func (s *Schema) HasPrimaryKey() bool { return s.pkIndex != -1 }

// PKColumn returns the primary key column and true, or the zero Column and
// false if the schema has none.
func (s *Schema) PKColumn() (Column, bool) {
	if s.pkIndex == -1 {
		return Column{}, false
	}
	return s.Columns[s.pkIndex], true
}

// PKColumnIndex returns the index of the primary key column, or -1.
func (s *Schema) PKColumnIndex() int { return s.pkIndex }

// ColumnIndex returns the position of name in declaration order, or -1.
func (s *Schema) ColumnIndex(name string) int {
	for i, c := range s.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}
