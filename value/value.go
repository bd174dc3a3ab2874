// Package value implements the scalar value model shared by the storage,
// catalog, index, and engine packages: a small tagged union over
// {INT, BOOLEAN, VARCHAR} and the comparison rules that operate on it.
// WHERE/ON predicate evaluation is built on Compare in the engine package.
//
// Values are modeled as a flat struct with a Kind tag rather than an
// interface or a visitor hierarchy — comparisons and codecs are plain
// switches on Kind, which keeps the hot paths (row encode/decode, B-Tree
// ordering, WHERE evaluation) branch-predictable instead of going through
// dynamic dispatch.
package value

import "github.com/scardb/scardb/enginerr"

// Kind identifies which scalar type a Value holds.
type Kind uint8

const (
	KindInt Kind = iota
	KindBool
	KindVarchar
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "INT"
	case KindBool:
		return "BOOLEAN"
	case KindVarchar:
		return "VARCHAR"
	default:
		return "UNKNOWN"
	}
}

// Value is a single scalar of one of the three supported SQL types.
// Exactly one of I/B/S is meaningful, selected by Kind.
type Value struct {
	Kind Kind
	I    int64
	B    bool
	S    string
}

// Int constructs an INT value.
func Int(i int64) Value { return Value{Kind: KindInt, I: i} }

// Bool constructs a BOOLEAN value.
func Bool(b bool) Value { return Value{Kind: KindBool, B: b} }

// Varchar constructs a VARCHAR value.
func Varchar(s string) Value { return Value{Kind: KindVarchar, S: s} }

// Compare orders two values of the same Kind: negative if a < b, zero if
// equal, positive if a > b. Returns ErrTypeMismatch if the kinds differ —
// comparisons never silently coerce across types.
func Compare(a, b Value) (int, error) {
	if a.Kind != b.Kind {
		return 0, enginerr.New("value.Compare", enginerr.ErrTypeMismatch, nil)
	}
	switch a.Kind {
	case KindInt:
		switch {
		case a.I < b.I:
			return -1, nil
		case a.I > b.I:
			return 1, nil
		default:
			return 0, nil
		}
	case KindBool:
		switch {
		case a.B == b.B:
			return 0, nil
		case !a.B && b.B:
			return -1, nil
		default:
			return 1, nil
		}
	case KindVarchar:
		switch {
		case a.S < b.S:
			return -1, nil
		case a.S > b.S:
			return 1, nil
		default:
			return 0, nil
		}
	default:
		return 0, enginerr.New("value.Compare", enginerr.ErrTypeMismatch, nil)
	}
}

// Equal reports whether a and b compare equal. Disparate kinds are never
// equal, but unlike Compare this never errors — it is used by callers
// (e.g. the UPDATE path's PK-change check) that already know both sides
// are PK-typed and just want a boolean.
func Equal(a, b Value) bool {
	c, err := Compare(a, b)
	return err == nil && c == 0
}
