package engine

import (
	"fmt"

	"github.com/scardb/scardb/ast"
	"github.com/scardb/scardb/enginerr"
	"github.com/scardb/scardb/index"
	"github.com/scardb/scardb/storage"
	"github.com/scardb/scardb/value"
)

// executeInsert implements spec.md §4.6 INSERT: resolve AUTOINCREMENT
// values, validate, check PK uniqueness, encode, place in the first page
// with a free slot (or allocate a new one), and update the index — all
// per row, in statement order.
func (e *Engine) executeInsert(s ast.Insert) (*Result, error) {
	const op = "engine.executeInsert"
	h, err := e.openTable(s.Table)
	if err != nil {
		return nil, err
	}
	var affected int64
	for _, rowExprs := range s.Rows {
		vals, provided, err := e.resolveInsertRow(h, s.Table, s.Columns, rowExprs)
		if err != nil {
			return nil, err
		}
		if err := e.validateNotNull(h, vals, provided); err != nil {
			return nil, err
		}
		var pkKey value.Value
		if h.schema.HasPrimaryKey() {
			pkKey = vals[h.schema.PKColumnIndex()]
			if _, exists := h.index.Lookup(pkKey); exists {
				return nil, enginerr.New(op, enginerr.ErrDuplicateKey, fmt.Errorf("pk %v already present in %q", pkKey, s.Table))
			}
		}
		encoded, err := h.codec.Encode(vals)
		if err != nil {
			return nil, err
		}
		loc, err := e.placeRow(h, encoded)
		if err != nil {
			return nil, err
		}
		if h.schema.HasPrimaryKey() {
			if err := h.index.Insert(pkKey, loc); err != nil {
				return nil, err
			}
		}
		affected++
	}
	if err := h.pager.Sync(); err != nil {
		return nil, err
	}
	return &Result{Affected: affected}, nil
}

// resolveInsertRow builds the full, schema-ordered value row for one
// INSERT VALUES tuple, injecting AUTOINCREMENT values for columns the
// statement did not supply (spec.md §4.6 step 2). The counter increment
// is persisted (via catalog.NextAutoIncrement) before the caller writes
// the row, per spec.md §9's crash-safety ordering.
func (e *Engine) resolveInsertRow(h *tableHandle, table string, cols []string, exprs []ast.Expr) ([]value.Value, []bool, error) {
	const op = "engine.resolveInsertRow"
	n := len(h.schema.Columns)
	vals := make([]value.Value, n)
	provided := make([]bool, n)

	if len(cols) == 0 {
		if len(exprs) != n {
			return nil, nil, enginerr.New(op, enginerr.ErrUnsupported, fmt.Errorf("expected %d values, got %d", n, len(exprs)))
		}
		for i, ex := range exprs {
			v, err := evalScalar(tupleCtx{}, ex)
			if err != nil {
				return nil, nil, err
			}
			vals[i] = v
			provided[i] = true
		}
	} else {
		if len(cols) != len(exprs) {
			return nil, nil, enginerr.New(op, enginerr.ErrUnsupported, fmt.Errorf("column list has %d names but %d values given", len(cols), len(exprs)))
		}
		for j, name := range cols {
			idx := h.schema.ColumnIndex(name)
			if idx < 0 {
				return nil, nil, enginerr.New(op, enginerr.ErrUnknownColumn, fmt.Errorf("%s", name))
			}
			v, err := evalScalar(tupleCtx{}, exprs[j])
			if err != nil {
				return nil, nil, err
			}
			vals[idx] = v
			provided[idx] = true
		}
	}

	for i, col := range h.schema.Columns {
		if provided[i] {
			if col.AutoIncrement && col.Type == value.KindInt {
				if err := e.cat.BumpAutoIncrement(table, col.Name, vals[i].I+1); err != nil {
					return nil, nil, err
				}
			}
			continue
		}
		if col.AutoIncrement {
			next, err := e.cat.NextAutoIncrement(table, col.Name)
			if err != nil {
				return nil, nil, err
			}
			vals[i] = value.Int(next)
			provided[i] = true
		}
	}
	return vals, provided, nil
}

// validateNotNull checks that every column was ultimately supplied. This
// engine has no null representation (spec.md §3 rows carry no per-row
// header beyond the page bitmask), so any column left unprovided after
// AUTOINCREMENT resolution is a violation regardless of its declared
// NOT_NULL flag — there is nothing else it could contain.
func (e *Engine) validateNotNull(h *tableHandle, vals []value.Value, provided []bool) error {
	for i, col := range h.schema.Columns {
		if !provided[i] {
			return enginerr.New("engine.validateNotNull", enginerr.ErrNotNullViolation, fmt.Errorf("column %q", col.Name))
		}
	}
	return nil
}

// placeRow scans pages in ascending page_id for the first free slot
// (spec.md §4.6 step 5 / §8 invariant 5), writing encoded into it; if no
// existing page has room, it allocates a new page and uses slot 0.
func (e *Engine) placeRow(h *tableHandle, encoded []byte) (index.Locator, error) {
	n := h.pager.PageCount()
	for pid := storage.PageID(0); uint32(pid) < n; pid++ {
		page, err := h.pager.ReadPage(pid)
		if err != nil {
			return index.Locator{}, err
		}
		if slot, ok := page.FirstFree(h.schema.SlotCount); ok {
			if err := page.WriteSlot(slot, h.schema.Width, encoded); err != nil {
				return index.Locator{}, err
			}
			if err := h.pager.WritePage(pid, page); err != nil {
				return index.Locator{}, err
			}
			return index.Locator{Page: pid, Slot: slot}, nil
		}
	}
	pid, err := h.pager.AllocatePage()
	if err != nil {
		return index.Locator{}, err
	}
	page, err := h.pager.ReadPage(pid)
	if err != nil {
		return index.Locator{}, err
	}
	if err := page.WriteSlot(0, h.schema.Width, encoded); err != nil {
		return index.Locator{}, err
	}
	if err := h.pager.WritePage(pid, page); err != nil {
		return index.Locator{}, err
	}
	return index.Locator{Page: pid, Slot: 0}, nil
}

// executeUpdate implements spec.md §4.6 UPDATE: evaluate WHERE via the
// same planner rule as SELECT, overlay SET assignments onto each
// matched row, and handle the "PK change" case (remove old index entry,
// check new PK not present, insert new entry) separately from the
// common in-place-write case.
func (e *Engine) executeUpdate(s ast.Update) (*Result, error) {
	h, err := e.openTable(s.Table)
	if err != nil {
		return nil, err
	}
	locs, err := e.planMatches(h, s.Where)
	if err != nil {
		return nil, err
	}
	var affected int64
	for _, m := range locs {
		if err := e.updateOne(h, s.Table, m.loc, s.Assignments); err != nil {
			return nil, err
		}
		affected++
	}
	if err := h.pager.Sync(); err != nil {
		return nil, err
	}
	return &Result{Affected: affected}, nil
}

func (e *Engine) updateOne(h *tableHandle, table string, loc index.Locator, assigns []ast.Assignment) error {
	const op = "engine.updateOne"
	page, err := h.pager.ReadPage(loc.Page)
	if err != nil {
		return err
	}
	if !page.IsSet(loc.Slot) {
		return enginerr.New(op, enginerr.ErrNotFound, fmt.Errorf("slot %d/%d already cleared", loc.Page, loc.Slot))
	}
	row, err := h.codec.Decode(page.ReadSlot(loc.Slot, h.schema.Width))
	if err != nil {
		return enginerr.New(op, enginerr.ErrCorruptRow, err)
	}
	newRow := append([]value.Value(nil), row...)
	for _, a := range assigns {
		idx := h.schema.ColumnIndex(a.Column)
		if idx < 0 {
			return enginerr.New(op, enginerr.ErrUnknownColumn, fmt.Errorf("%s", a.Column))
		}
		v, err := evalScalar(tupleCtx{}, a.Value)
		if err != nil {
			return err
		}
		newRow[idx] = v
	}

	encoded, err := h.codec.Encode(newRow)
	if err != nil {
		return err
	}

	if h.schema.HasPrimaryKey() {
		pkIdx := h.schema.PKColumnIndex()
		oldKey, newKey := row[pkIdx], newRow[pkIdx]
		if !value.Equal(oldKey, newKey) {
			// PK change: new key must not already be present (spec.md §9
			// resolves the README's ambiguity this way — DuplicateKey,
			// original row left intact).
			if _, exists := h.index.Lookup(newKey); exists {
				return enginerr.New(op, enginerr.ErrDuplicateKey, fmt.Errorf("pk %v already present in %q", newKey, table))
			}
			if err := page.WriteSlot(loc.Slot, h.schema.Width, encoded); err != nil {
				return err
			}
			if err := h.pager.WritePage(loc.Page, page); err != nil {
				return err
			}
			h.index.Remove(oldKey)
			return h.index.Insert(newKey, loc)
		}
	}

	if err := page.WriteSlot(loc.Slot, h.schema.Width, encoded); err != nil {
		return err
	}
	return h.pager.WritePage(loc.Page, page)
}

// executeDelete implements spec.md §4.6 DELETE: clear the bitmask bit,
// write the page, and remove the index entry if any. Slot contents are
// not zeroed.
func (e *Engine) executeDelete(s ast.Delete) (*Result, error) {
	h, err := e.openTable(s.Table)
	if err != nil {
		return nil, err
	}
	locs, err := e.planMatches(h, s.Where)
	if err != nil {
		return nil, err
	}
	var affected int64
	for _, m := range locs {
		loc := m.loc
		page, err := h.pager.ReadPage(loc.Page)
		if err != nil {
			return nil, err
		}
		if !page.IsSet(loc.Slot) {
			continue
		}
		var key value.Value
		if h.schema.HasPrimaryKey() {
			key = m.row[h.schema.PKColumnIndex()]
		}
		page.Clear(loc.Slot)
		if err := h.pager.WritePage(loc.Page, page); err != nil {
			return nil, err
		}
		if h.schema.HasPrimaryKey() {
			h.index.Remove(key)
		}
		affected++
	}
	if err := h.pager.Sync(); err != nil {
		return nil, err
	}
	return &Result{Affected: affected}, nil
}
