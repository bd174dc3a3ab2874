package storage

import (
	"encoding/binary"
	"fmt"

	"github.com/scardb/scardb/enginerr"
	"github.com/scardb/scardb/value"
)

// Codec encodes and decodes rows for a fixed Schema. It is a pure
// function of (schema, row): Decode(Encode(r)) == r for any schema-valid
// row, and Encode always produces exactly schema.Width bytes.
type Codec struct {
	schema *Schema
}

// NewCodec returns a Codec bound to schema.
func NewCodec(schema *Schema) *Codec { return &Codec{schema: schema} }

// Encode serializes row (one value.Value per column, in schema order)
// into exactly schema.Width bytes. Returns ValueTooLong if a VARCHAR
// value exceeds its declared width, TypeMismatch if a value's Kind does
// not match its column's declared type.
func (c *Codec) Encode(row []value.Value) ([]byte, error) {
	const op = "storage.Codec.Encode"
	if len(row) != len(c.schema.Columns) {
		return nil, enginerr.New(op, enginerr.ErrTypeMismatch, fmt.Errorf("expected %d values, got %d", len(c.schema.Columns), len(row)))
	}
	buf := make([]byte, 0, c.schema.Width)
	for i, col := range c.schema.Columns {
		v := row[i]
		if v.Kind != col.Type {
			return nil, enginerr.New(op, enginerr.ErrTypeMismatch, fmt.Errorf("column %q: expected %s, got %s", col.Name, col.Type, v.Kind))
		}
		switch col.Type {
		case value.KindInt:
			var b [8]byte
			binary.LittleEndian.PutUint64(b[:], uint64(v.I))
			buf = append(buf, b[:]...)
		case value.KindBool:
			if v.B {
				buf = append(buf, 0x01)
			} else {
				buf = append(buf, 0x00)
			}
		case value.KindVarchar:
			if len(v.S) > col.Width {
				return nil, enginerr.New(op, enginerr.ErrValueTooLong, fmt.Errorf("column %q: value is %d bytes, limit %d", col.Name, len(v.S), col.Width))
			}
			var lenBuf [2]byte
			binary.LittleEndian.PutUint16(lenBuf[:], uint16(len(v.S)))
			buf = append(buf, lenBuf[:]...)
			buf = append(buf, v.S...)
			pad := col.Width - len(v.S)
			for j := 0; j < pad; j++ {
				buf = append(buf, 0x00)
			}
		default:
			return nil, enginerr.New(op, enginerr.ErrUnsupported, fmt.Errorf("column %q: unsupported type", col.Name))
		}
	}
	return buf, nil
}

// Decode deserializes exactly schema.Width bytes back into a row.
// Rejects malformed BOOLEAN bytes (anything but 0x00/0x01) and
// non-zero VARCHAR padding as CorruptRow, per spec.md §4.2.
func (c *Codec) Decode(data []byte) ([]value.Value, error) {
	const op = "storage.Codec.Decode"
	if len(data) != c.schema.Width {
		return nil, enginerr.New(op, enginerr.ErrCorruptRow, fmt.Errorf("expected %d bytes, got %d", c.schema.Width, len(data)))
	}
	row := make([]value.Value, len(c.schema.Columns))
	off := 0
	for i, col := range c.schema.Columns {
		switch col.Type {
		case value.KindInt:
			row[i] = value.Int(int64(binary.LittleEndian.Uint64(data[off : off+8])))
			off += 8
		case value.KindBool:
			b := data[off]
			if b != 0x00 && b != 0x01 {
				return nil, enginerr.New(op, enginerr.ErrCorruptRow, fmt.Errorf("column %q: invalid BOOLEAN byte 0x%02x", col.Name, b))
			}
			row[i] = value.Bool(b == 0x01)
			off++
		case value.KindVarchar:
			l := int(binary.LittleEndian.Uint16(data[off : off+2]))
			off += 2
			if l > col.Width {
				return nil, enginerr.New(op, enginerr.ErrCorruptRow, fmt.Errorf("column %q: encoded length %d exceeds width %d", col.Name, l, col.Width))
			}
			s := data[off : off+l]
			for _, b := range data[off+l : off+col.Width] {
				if b != 0x00 {
					return nil, enginerr.New(op, enginerr.ErrCorruptRow, fmt.Errorf("column %q: non-zero VARCHAR padding", col.Name))
				}
			}
			row[i] = value.Varchar(string(s))
			off += col.Width
		default:
			return nil, enginerr.New(op, enginerr.ErrUnsupported, fmt.Errorf("column %q: unsupported type", col.Name))
		}
	}
	return row, nil
}
