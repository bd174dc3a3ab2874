package storage

import (
	"fmt"
	"os"

	"github.com/scardb/scardb/enginerr"
)

// Option configures a Pager at open time.
type Option func(*pagerConfig)

type pagerConfig struct {
	cacheSize int
}

// WithPageCache sets the bounded page-cache size (number of pages). A
// cache is an optimization only: every WritePage write-throughs to disk
// regardless, so correctness never depends on its presence or size.
func WithPageCache(pages int) Option {
	return func(c *pagerConfig) { c.cacheSize = pages }
}

// Pager provides read/write/allocate access to the pages of a single
// table file. Table files are a flat concatenation of PageSize-byte
// pages with no file header (spec.md §3); all metadata lives in the
// catalog.
type Pager struct {
	f         *os.File
	path      string
	pageCount uint32
	cache     *pageCache
}

// OpenPager opens (creating if necessary) the table file at path. File
// length must always be a multiple of PageSize (spec.md invariant 1); a
// file that violates this is reported as IoError rather than silently
// truncated or padded.
func OpenPager(path string, opts ...Option) (*Pager, error) {
	const op = "storage.OpenPager"
	cfg := pagerConfig{cacheSize: 256}
	for _, o := range opts {
		o(&cfg)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, enginerr.New(op, enginerr.ErrIO, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, enginerr.New(op, enginerr.ErrIO, err)
	}
	if info.Size()%PageSize != 0 {
		f.Close()
		return nil, enginerr.New(op, enginerr.ErrIO, fmt.Errorf("table file %q has length %d, not a multiple of %d", path, info.Size(), PageSize))
	}
	return &Pager{
		f:         f,
		path:      path,
		pageCount: uint32(info.Size() / PageSize),
		cache:     newPageCache(cfg.cacheSize),
	}, nil
}

// PageCount returns the number of pages currently in the table file.
func (p *Pager) PageCount() uint32 { return p.pageCount }

// Path returns the backing file path.
func (p *Pager) Path() string { return p.path }

// ReadPage returns the page at id. Fails NotFound if id >= PageCount,
// IoError on a read failure.
func (p *Pager) ReadPage(id PageID) (*Page, error) {
	const op = "storage.Pager.ReadPage"
	if uint32(id) >= p.pageCount {
		return nil, enginerr.New(op, enginerr.ErrNotFound, fmt.Errorf("page %d >= page count %d", id, p.pageCount))
	}
	if pg, ok := p.cache.get(id); ok {
		return pg, nil
	}
	buf := make([]byte, PageSize)
	if _, err := p.f.ReadAt(buf, int64(id)*PageSize); err != nil {
		return nil, enginerr.New(op, enginerr.ErrIO, err)
	}
	pg, err := WrapPage(buf)
	if err != nil {
		return nil, enginerr.New(op, enginerr.ErrIO, err)
	}
	p.cache.put(id, pg)
	return pg, nil
}

// WritePage writes pg in place at id. The write is not required to be
// fsynced per call — Sync is invoked by the engine only at statement
// boundaries (spec.md §4.1, best-effort durability).
func (p *Pager) WritePage(id PageID, pg *Page) error {
	const op = "storage.Pager.WritePage"
	if uint32(id) >= p.pageCount {
		return enginerr.New(op, enginerr.ErrNotFound, fmt.Errorf("page %d >= page count %d", id, p.pageCount))
	}
	if _, err := p.f.WriteAt(pg.Bytes(), int64(id)*PageSize); err != nil {
		return enginerr.New(op, enginerr.ErrIO, err)
	}
	p.cache.put(id, pg)
	return nil
}

// AllocatePage appends a zeroed page and returns its id, equal to the
// previous page count (spec.md §4.1). Pages are never shrunk or freed —
// there is no file compaction.
func (p *Pager) AllocatePage() (PageID, error) {
	const op = "storage.Pager.AllocatePage"
	id := PageID(p.pageCount)
	pg := NewPage()
	if _, err := p.f.WriteAt(pg.Bytes(), int64(id)*PageSize); err != nil {
		return 0, enginerr.New(op, enginerr.ErrIO, err)
	}
	p.pageCount++
	p.cache.put(id, pg)
	return id, nil
}

// Sync flushes the table file to stable storage. Called by the engine
// at statement boundaries, never per-write.
func (p *Pager) Sync() error {
	if err := p.f.Sync(); err != nil {
		return enginerr.New("storage.Pager.Sync", enginerr.ErrIO, err)
	}
	return nil
}

// Close releases the underlying file handle.
func (p *Pager) Close() error {
	if err := p.f.Close(); err != nil {
		return enginerr.New("storage.Pager.Close", enginerr.ErrIO, err)
	}
	return nil
}
