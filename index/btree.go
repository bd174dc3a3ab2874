// Package index implements the in-memory primary-key B-Tree described in
// spec.md §4.5: an ordered map from PK value to a physical locator
// (page, slot), rebuilt on open by scanning every page of a table. The
// ordering structure itself is provided by github.com/google/btree
// rather than hand-rolled, matching the way the wider example pack
// reaches for that library wherever it needs an ordered in-memory index
// over arbitrary keys (see DESIGN.md).
package index

import (
	"fmt"

	"github.com/google/btree"

	"github.com/scardb/scardb/enginerr"
	"github.com/scardb/scardb/storage"
	"github.com/scardb/scardb/value"
)

// btreeDegree controls the branching factor of the underlying B-Tree.
// It only affects constant factors, never externally visible ordering.
const btreeDegree = 32

// Locator is a physical row location: a page id and the slot within it.
type Locator struct {
	Page storage.PageID
	Slot int
}

// pkItem is the btree.Item stored in the tree: a PK value paired with
// its locator. Less dispatches on value.Kind per spec.md's flat-switch
// guidance rather than runtime polymorphism.
type pkItem struct {
	key value.Value
	loc Locator
}

func (a pkItem) Less(than btree.Item) bool {
	b := than.(pkItem)
	c, err := value.Compare(a.key, b.key)
	if err != nil {
		// Keys within one PKIndex are always the same Kind (the schema's
		// PK column type); a mismatch here means caller error, not data
		// worth ordering — treat as not-less so it sorts deterministically
		// rather than panicking mid-tree-operation.
		return false
	}
	return c < 0
}

// PKIndex is an ordered map from PK value to Locator for one table.
type PKIndex struct {
	tree *btree.BTree
}

// New returns an empty PKIndex.
func New() *PKIndex {
	return &PKIndex{tree: btree.New(btreeDegree)}
}

// Insert adds key -> loc. Fails DuplicateKey if key is already present.
func (ix *PKIndex) Insert(key value.Value, loc Locator) error {
	item := pkItem{key: key, loc: loc}
	if ix.tree.Has(item) {
		return enginerr.New("index.PKIndex.Insert", enginerr.ErrDuplicateKey, fmt.Errorf("key already indexed"))
	}
	ix.tree.ReplaceOrInsert(item)
	return nil
}

// Remove deletes key from the index, if present. Removing an absent key
// is a no-op, matching DELETE's "remove the index entry (if any)".
func (ix *PKIndex) Remove(key value.Value) {
	ix.tree.Delete(pkItem{key: key})
}

// UpdateLocator moves key's existing entry to a new Locator. Fails
// NotFound if key is not indexed.
func (ix *PKIndex) UpdateLocator(key value.Value, loc Locator) error {
	item := pkItem{key: key, loc: loc}
	if !ix.tree.Has(item) {
		return enginerr.New("index.PKIndex.UpdateLocator", enginerr.ErrNotFound, nil)
	}
	ix.tree.ReplaceOrInsert(item)
	return nil
}

// Lookup returns key's Locator and true, or the zero Locator and false.
func (ix *PKIndex) Lookup(key value.Value) (Locator, bool) {
	found := ix.tree.Get(pkItem{key: key})
	if found == nil {
		return Locator{}, false
	}
	return found.(pkItem).loc, true
}

// Len returns the number of indexed entries.
func (ix *PKIndex) Len() int { return ix.tree.Len() }

// Ascend visits every entry in ascending key order, stopping early if fn
// returns false.
func (ix *PKIndex) Ascend(fn func(key value.Value, loc Locator) bool) {
	ix.tree.Ascend(func(it btree.Item) bool {
		p := it.(pkItem)
		return fn(p.key, p.loc)
	})
}
