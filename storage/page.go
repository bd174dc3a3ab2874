package storage

import (
	"encoding/binary"

	"github.com/scardb/scardb/enginerr"
)

// PageSize is the fixed size of every page in a table file, in bytes.
const PageSize = 4096

// PageHeaderBytes is the size of the occupancy bitmask header at the
// start of every page. Bit i set means slot i is occupied. Bits beyond
// a schema's SlotCount are always 0.
const PageHeaderBytes = 64

// PageID identifies a page by its zero-based offset within a table file.
type PageID uint32

// Page is one fixed-size page of a table file: a 64-byte occupancy
// bitmask followed by a fixed-width slot array. Page wraps a fixed-size
// byte array (not a slice) so a Page value is always exactly PageSize
// bytes on disk, matching the fixed on-disk page contract in spec.md §3.
type Page struct {
	buf [PageSize]byte
}

// NewPage returns a zeroed page: all bitmask bits clear, all slots
// logically empty.
func NewPage() *Page { return &Page{} }

// WrapPage interprets an existing PageSize-byte buffer as a Page,
// copying it in. Used when a page is read back from the pager.
func WrapPage(buf []byte) (*Page, error) {
	if len(buf) != PageSize {
		return nil, enginerr.New("storage.WrapPage", enginerr.ErrCorruptRow, nil)
	}
	p := &Page{}
	copy(p.buf[:], buf)
	return p, nil
}

// Bytes returns the raw PageSize-byte backing array as a slice, suitable
// for handing to the pager's WritePage.
func (p *Page) Bytes() []byte { return p.buf[:] }

// IsSet reports whether slot i's occupancy bit is set.
func (p *Page) IsSet(i int) bool {
	byteIdx, bit := i/8, uint(i%8)
	return p.buf[byteIdx]&(1<<bit) != 0
}

// Set marks slot i occupied.
func (p *Page) Set(i int) {
	byteIdx, bit := i/8, uint(i%8)
	p.buf[byteIdx] |= 1 << bit
}

// Clear marks slot i free.
func (p *Page) Clear(i int) {
	byteIdx, bit := i/8, uint(i%8)
	p.buf[byteIdx] &^= 1 << bit
}

// FirstFree returns the smallest slot index in [0, slotCount) whose bit
// is clear, and true — or false if every slot is occupied. The
// smallest-index policy is what makes reclaimed slots preferred over
// appending new pages (spec.md §8 invariant 5).
func (p *Page) FirstFree(slotCount int) (int, bool) {
	for i := 0; i < slotCount; i++ {
		if !p.IsSet(i) {
			return i, true
		}
	}
	return 0, false
}

// slotOffset returns the byte offset of slot i given a row width.
func slotOffset(i, width int) int {
	return PageHeaderBytes + i*width
}

// ReadSlot returns the width-byte raw row data at slot i. The caller is
// responsible for checking IsSet first — ReadSlot itself does not
// consult the bitmask.
func (p *Page) ReadSlot(i, width int) []byte {
	off := slotOffset(i, width)
	return p.buf[off : off+width]
}

// WriteSlot writes row (exactly width bytes) into slot i and sets its
// occupancy bit.
func (p *Page) WriteSlot(i, width int, row []byte) error {
	if len(row) != width {
		return enginerr.New("storage.Page.WriteSlot", enginerr.ErrCorruptRow, nil)
	}
	off := slotOffset(i, width)
	copy(p.buf[off:off+width], row)
	p.Set(i)
	return nil
}

// BitmaskWord returns the raw 8-byte little-endian word at word index w
// (0..7) of the bitmask header, covering slots 64*w through 64*w+63.
func (p *Page) BitmaskWord(w int) uint64 {
	return binary.LittleEndian.Uint64(p.buf[w*8 : w*8+8])
}
