// Package catalog is the durable store of table schemas and autoincrement
// sequences (spec.md §4.4). The document is a single YAML file
// (gopkg.in/yaml.v3 — the library the teacher itself uses for structured
// output rendering), atomically rewritten on every mutation via the
// teacher's own write-temp-then-rename manifest pattern.
package catalog

import (
	"fmt"
	"os"
	"sync"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/scardb/scardb/enginerr"
	"github.com/scardb/scardb/storage"
	"github.com/scardb/scardb/value"
)

// columnDoc is the on-disk representation of a storage.Column.
type columnDoc struct {
	Name          string `yaml:"name"`
	Type          string `yaml:"type"`
	Width         int    `yaml:"width,omitempty"`
	PrimaryKey    bool   `yaml:"primary_key,omitempty"`
	AutoIncrement bool   `yaml:"autoincrement,omitempty"`
	NotNull       bool   `yaml:"not_null,omitempty"`
}

// tableDoc is the on-disk representation of one table's catalog entry:
// its schema plus the next-value autoincrement counters keyed by column
// name (spec.md §3: "Autoincrement counters keyed by column name").
type tableDoc struct {
	Columns   []columnDoc      `yaml:"columns"`
	Sequences map[string]int64 `yaml:"sequences,omitempty"`
}

// document is the full catalog file: table name -> tableDoc.
type document struct {
	Tables map[string]tableDoc `yaml:"tables"`
}

// Catalog is the durable metadata store for every table in one database
// directory. It is safe for concurrent use; callers relying on the
// engine-wide statement guard (spec.md §5) will never actually contend
// on Catalog's own mutex, but it is held regardless for defense against
// misuse from outside the engine package.
type Catalog struct {
	mu   sync.Mutex
	path string
	doc  document
}

// Open loads the catalog document at path, or starts an empty one if the
// file does not yet exist.
func Open(path string) (*Catalog, error) {
	const op = "catalog.Open"
	c := &Catalog{path: path, doc: document{Tables: map[string]tableDoc{}}}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, enginerr.New(op, enginerr.ErrIO, err)
	}
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, enginerr.New(op, enginerr.ErrCorruptTable, err)
	}
	if doc.Tables == nil {
		doc.Tables = map[string]tableDoc{}
	}
	c.doc = doc
	return c, nil
}

// persist atomically rewrites the catalog document: write to a
// uuid-suffixed temp file in the same directory, fsync, then rename over
// the real path. The random suffix (github.com/google/uuid) keeps two
// processes' temp files from colliding, the same guarantee the teacher
// uses uuid for elsewhere (row identity) applied here to file naming.
func (c *Catalog) persist() error {
	const op = "catalog.persist"
	data, err := yaml.Marshal(c.doc)
	if err != nil {
		return enginerr.New(op, enginerr.ErrIO, err)
	}
	tmp := fmt.Sprintf("%s.tmp-%s", c.path, uuid.NewString())
	f, err := os.Create(tmp)
	if err != nil {
		return enginerr.New(op, enginerr.ErrIO, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return enginerr.New(op, enginerr.ErrIO, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return enginerr.New(op, enginerr.ErrIO, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return enginerr.New(op, enginerr.ErrIO, err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		os.Remove(tmp)
		return enginerr.New(op, enginerr.ErrIO, err)
	}
	return nil
}

func typeToString(k value.Kind) string {
	switch k {
	case value.KindInt:
		return "INT"
	case value.KindBool:
		return "BOOLEAN"
	case value.KindVarchar:
		return "VARCHAR"
	default:
		return "UNKNOWN"
	}
}

func typeFromString(s string) (value.Kind, error) {
	switch s {
	case "INT":
		return value.KindInt, nil
	case "BOOLEAN":
		return value.KindBool, nil
	case "VARCHAR":
		return value.KindVarchar, nil
	default:
		return 0, enginerr.New("catalog.typeFromString", enginerr.ErrCorruptTable, fmt.Errorf("unknown column type %q", s))
	}
}

func schemaToDoc(schema *storage.Schema, sequences map[string]int64) tableDoc {
	cols := make([]columnDoc, len(schema.Columns))
	for i, c := range schema.Columns {
		cols[i] = columnDoc{
			Name:          c.Name,
			Type:          typeToString(c.Type),
			Width:         c.Width,
			PrimaryKey:    c.PrimaryKey,
			AutoIncrement: c.AutoIncrement,
			NotNull:       c.NotNull,
		}
	}
	return tableDoc{Columns: cols, Sequences: sequences}
}

func docToSchema(name string, td tableDoc) (*storage.Schema, error) {
	cols := make([]storage.Column, len(td.Columns))
	for i, cd := range td.Columns {
		k, err := typeFromString(cd.Type)
		if err != nil {
			return nil, err
		}
		cols[i] = storage.Column{
			Name:          cd.Name,
			Type:          k,
			Width:         cd.Width,
			PrimaryKey:    cd.PrimaryKey,
			AutoIncrement: cd.AutoIncrement,
			NotNull:       cd.NotNull,
		}
	}
	return storage.NewSchema(name, cols)
}

// CreateTable validates schema and records it. Fails AlreadyExists on a
// duplicate table name.
func (c *Catalog) CreateTable(name string, schema *storage.Schema) error {
	const op = "catalog.Catalog.CreateTable"
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.doc.Tables[name]; ok {
		return enginerr.New(op, enginerr.ErrAlreadyExists, fmt.Errorf("table %q", name))
	}
	c.doc.Tables[name] = schemaToDoc(schema, map[string]int64{})
	return c.persist()
}

// DropTable removes name's schema and sequences from the catalog. Fails
// NotFound if absent. The caller (engine) is responsible for removing
// the associated .db file — the catalog only owns metadata.
func (c *Catalog) DropTable(name string) error {
	const op = "catalog.Catalog.DropTable"
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.doc.Tables[name]; !ok {
		return enginerr.New(op, enginerr.ErrNotFound, fmt.Errorf("table %q", name))
	}
	delete(c.doc.Tables, name)
	return c.persist()
}

// GetSchema returns the validated schema for name. Fails NotFound if
// absent, CorruptTable if the persisted document no longer validates.
func (c *Catalog) GetSchema(name string) (*storage.Schema, error) {
	const op = "catalog.Catalog.GetSchema"
	c.mu.Lock()
	defer c.mu.Unlock()
	td, ok := c.doc.Tables[name]
	if !ok {
		return nil, enginerr.New(op, enginerr.ErrNotFound, fmt.Errorf("table %q", name))
	}
	schema, err := docToSchema(name, td)
	if err != nil {
		return nil, enginerr.New(op, enginerr.ErrCorruptTable, err)
	}
	return schema, nil
}

// NextAutoIncrement returns the next value to issue for (table, column)
// — a never-bumped column starts at 1, matching spec.md §8 S1's first
// INSERT getting id=1 — then advances the stored counter past it and
// persists the change before returning. Sequences[column] always holds
// "the next id to issue," the same meaning BumpAutoIncrement writes to
// it. The counter must be persisted before the caller writes the row
// that consumes it (spec.md §9: counter-then-page-write ordering), so a
// crash between the two loses an id rather than duplicating one.
func (c *Catalog) NextAutoIncrement(table, column string) (int64, error) {
	const op = "catalog.Catalog.NextAutoIncrement"
	c.mu.Lock()
	defer c.mu.Unlock()
	td, ok := c.doc.Tables[table]
	if !ok {
		return 0, enginerr.New(op, enginerr.ErrNotFound, fmt.Errorf("table %q", table))
	}
	if td.Sequences == nil {
		td.Sequences = map[string]int64{}
	}
	cur, set := td.Sequences[column]
	if !set {
		cur = 1
	}
	td.Sequences[column] = cur + 1
	c.doc.Tables[table] = td
	if err := c.persist(); err != nil {
		return 0, err
	}
	return cur, nil
}

// BumpAutoIncrement raises (table, column)'s counter to at least next,
// persisting the change. Used when a caller supplies an explicit PK
// value on an AUTOINCREMENT column, to uphold spec.md invariant 4: the
// counter is always strictly greater than any PK value present.
func (c *Catalog) BumpAutoIncrement(table, column string, next int64) error {
	const op = "catalog.Catalog.BumpAutoIncrement"
	c.mu.Lock()
	defer c.mu.Unlock()
	td, ok := c.doc.Tables[table]
	if !ok {
		return enginerr.New(op, enginerr.ErrNotFound, fmt.Errorf("table %q", table))
	}
	if td.Sequences == nil {
		td.Sequences = map[string]int64{}
	}
	if td.Sequences[column] >= next {
		return nil
	}
	td.Sequences[column] = next
	c.doc.Tables[table] = td
	return c.persist()
}

// Tables returns every table name currently registered, unordered.
func (c *Catalog) Tables() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, 0, len(c.doc.Tables))
	for name := range c.doc.Tables {
		names = append(names, name)
	}
	return names
}
