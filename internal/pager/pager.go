package pager

import (
	"container/list"
	"os"

	"github.com/revred/sharc-core/internal/journal"
	"github.com/revred/sharc-core/internal/sharcerr"
)

// DefaultCachePages mirrors the teacher's page buffer pool default sizing
// (internal/storage/pager/pager.go's PageBufferPool), scaled down to the
// spec's lighter-weight reader model.
const DefaultCachePages = 1024

// Options configures Open.
type Options struct {
	Writable      bool
	Password      string // non-empty opens/creates an encrypted database
	PageCacheSize int
}

type frame struct {
	pageNum uint32
	data    []byte
	dirty   bool
	elem    *list.Element
}

// Pager owns the file handle, the 100-byte header, the page buffer cache,
// the rollback journal, and (optionally) the page cipher. Its cache shape
// -- a map plus a container/list for LRU order -- follows the same idiom
// as the teacher's PageBufferPool (pushFront/moveToFront/evictOne) and its
// own QueryCache in internal/engine/compile.go.
type Pager struct {
	file     *os.File
	path     string
	header   Header
	pageSize uint32

	cache    map[uint32]*frame
	lru      *list.List
	maxPages int

	journal *journal.Journal
	cipher  *pageCipher
	encHdr  *EncryptionHeader

	dataOffset int64 // 0 normally, EncryptionHeaderSize when encrypted
	inTx       bool
}

// Open opens an existing database file or creates one at path if absent.
func Open(path string, opts Options) (*Pager, error) {
	maxPages := opts.PageCacheSize
	if maxPages <= 0 {
		maxPages = DefaultCachePages
	}

	flags := os.O_RDONLY
	if opts.Writable {
		flags = os.O_RDWR | os.O_CREATE
	}
	if !opts.Writable {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return nil, sharcerr.New(sharcerr.NotFound, "pager: database does not exist")
		}
	}
	f, err := os.OpenFile(path, flags, 0o600)
	if err != nil {
		return nil, sharcerr.Wrap(sharcerr.InvalidOperation, "pager: open file", err)
	}

	p := &Pager{
		file:     f,
		path:     path,
		cache:    make(map[uint32]*frame),
		lru:      list.New(),
		maxPages: maxPages,
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	if info.Size() == 0 {
		if !opts.Writable {
			f.Close()
			return nil, sharcerr.New(sharcerr.NotFound, "pager: database does not exist")
		}
		if err := p.initNew(opts); err != nil {
			f.Close()
			return nil, err
		}
	} else {
		if err := p.openExisting(opts); err != nil {
			f.Close()
			return nil, err
		}
	}

	p.journal = journal.Open(path, p.pageSize)
	if opts.Writable {
		if err := journal.RecoverIfPresent(path, p.file, p.pageSize); err != nil {
			f.Close()
			return nil, err
		}
		// Recovery may have changed the file; reload the header.
		if err := p.openExisting(opts); err != nil {
			f.Close()
			return nil, err
		}
	}
	return p, nil
}

func (p *Pager) initNew(opts Options) error {
	p.pageSize = DefaultPageSize
	p.header = NewHeader(p.pageSize)

	if opts.Password != "" {
		eh, err := NewEncryptionHeader(opts.Password, p.pageSize, 1)
		if err != nil {
			return err
		}
		cipher, err := NewPageCipher(eh, opts.Password)
		if err != nil {
			return err
		}
		p.encHdr = &eh
		p.cipher = cipher
		p.dataOffset = EncryptionHeaderSize
		if _, err := p.file.WriteAt(eh.Encode(), 0); err != nil {
			return err
		}
	}

	page1 := make([]byte, p.pageSize)
	copy(page1, p.header.Encode())
	PageHeader{Type: PageLeafTable, CellContentArea: uint16(p.pageSize)}.Encode(page1[HeaderSize:])
	return p.writePageRaw(1, page1)
}

func (p *Pager) openExisting(opts Options) error {
	probe := make([]byte, HeaderSize)
	if _, err := p.file.ReadAt(probe, 0); err != nil {
		return sharcerr.Wrap(sharcerr.CorruptPage, "pager: read header", err)
	}

	if string(probe[0:16]) != Magic {
		// Not a bare SQLite header at offset 0: try the encrypted layout,
		// where an EncryptionHeaderSize-byte header precedes page 1.
		if opts.Password == "" {
			return sharcerr.New(sharcerr.PasswordRequired, "pager: database is encrypted")
		}
		ehBuf := make([]byte, EncryptionHeaderSize)
		if _, err := p.file.ReadAt(ehBuf, 0); err != nil {
			return sharcerr.Wrap(sharcerr.CorruptPage, "pager: read encryption header", err)
		}
		eh, err := DecodeEncryptionHeader(ehBuf)
		if err != nil {
			return err
		}
		cipher, err := NewPageCipher(eh, opts.Password)
		if err != nil {
			return err
		}
		p.encHdr = &eh
		p.cipher = cipher
		p.pageSize = eh.PageSize
		p.dataOffset = EncryptionHeaderSize

		raw, err := p.readPageRaw(1)
		if err != nil {
			return err
		}
		h, err := ParseHeader(raw)
		if err != nil {
			return err
		}
		p.header = h
		return nil
	}

	h, err := ParseHeader(probe)
	if err != nil {
		return err
	}
	p.header = h
	p.pageSize = h.PageSize
	p.dataOffset = 0
	p.cache = make(map[uint32]*frame)
	p.lru = list.New()
	return nil
}

// PageSize reports the database's fixed page size.
func (p *Pager) PageSize() uint32 { return p.pageSize }

// Header returns a copy of the current file header.
func (p *Pager) Header() Header { return p.header }

// PageCount reports the number of allocated pages.
func (p *Pager) PageCount() uint32 { return p.header.PageCount }

// Path returns the database file path.
func (p *Pager) Path() string { return p.path }

func (p *Pager) pageOffset(pageNum uint32) int64 {
	return p.dataOffset + int64(pageNum-1)*int64(p.pageSize)
}

func (p *Pager) readPageRaw(pageNum uint32) ([]byte, error) {
	stored := make([]byte, p.pageSize+uint32(cipherOverhead(p)))
	n, err := p.file.ReadAt(stored, p.pageOffset(pageNum))
	if err != nil && n == 0 {
		return nil, sharcerr.Wrap(sharcerr.CorruptPage, "pager: read page", err)
	}
	stored = stored[:n]
	if p.cipher != nil {
		return p.cipher.Decrypt(pageNum, stored)
	}
	out := make([]byte, p.pageSize)
	copy(out, stored)
	return out, nil
}

func cipherOverhead(p *Pager) int {
	if p.cipher == nil {
		return 0
	}
	return p.cipher.aead.NonceSize() + p.cipher.aead.Overhead()
}

func (p *Pager) writePageRaw(pageNum uint32, data []byte) error {
	out := data
	if p.cipher != nil {
		out = p.cipher.Encrypt(pageNum, data)
	}
	if _, err := p.file.WriteAt(out, p.pageOffset(pageNum)); err != nil {
		return sharcerr.Wrap(sharcerr.InvalidOperation, "pager: write page", err)
	}
	if pageNum > p.header.PageCount {
		p.header.PageCount = pageNum
	}
	return nil
}

// ReadPage returns page pageNum's bytes, from cache if resident.
func (p *Pager) ReadPage(pageNum uint32) ([]byte, error) {
	if fr, ok := p.cache[pageNum]; ok {
		p.lru.MoveToFront(fr.elem)
		out := make([]byte, len(fr.data))
		copy(out, fr.data)
		return out, nil
	}
	data, err := p.readPageRaw(pageNum)
	if err != nil {
		return nil, err
	}
	p.cachePut(pageNum, data, false)
	return data, nil
}

// WritePage mutates pageNum's contents within the current transaction,
// logging its pre-image to the rollback journal on first touch.
func (p *Pager) WritePage(pageNum uint32, data []byte) error {
	if !p.inTx {
		return sharcerr.New(sharcerr.InvalidOperation, "pager: write outside transaction")
	}
	if p.journal.Active() && !p.journal.Touched(pageNum) {
		before, err := p.readPageRaw(pageNum)
		if err == nil {
			if err := p.journal.LogBefore(pageNum, before); err != nil {
				return err
			}
		}
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	p.cachePut(pageNum, cp, true)
	return nil
}

func (p *Pager) cachePut(pageNum uint32, data []byte, dirty bool) {
	if fr, ok := p.cache[pageNum]; ok {
		fr.data = data
		fr.dirty = fr.dirty || dirty
		p.lru.MoveToFront(fr.elem)
		return
	}
	fr := &frame{pageNum: pageNum, data: data, dirty: dirty}
	fr.elem = p.lru.PushFront(fr)
	p.cache[pageNum] = fr
	p.evictIfNeeded()
}

func (p *Pager) evictIfNeeded() {
	for len(p.cache) > p.maxPages {
		back := p.lru.Back()
		if back == nil {
			return
		}
		fr := back.Value.(*frame)
		if fr.dirty {
			// Never evict a dirty page mid-transaction; flush happens at
			// commit. Move it to the front and stop, matching the teacher's
			// PageBufferPool pin-count discipline.
			p.lru.MoveToFront(back)
			return
		}
		p.lru.Remove(back)
		delete(p.cache, fr.pageNum)
	}
}

// BeginTx opens a new write transaction: journal begins recording
// pre-images and the writer is free to call WritePage/AllocatePage.
func (p *Pager) BeginTx() error {
	if p.inTx {
		return sharcerr.New(sharcerr.InvalidOperation, "pager: transaction already active")
	}
	if err := p.journal.Begin(p.header.PageCount); err != nil {
		return err
	}
	p.inTx = true
	return nil
}

// CommitTx flushes every dirty page to disk, bumps the file change counter,
// writes the updated header, and discards the journal.
func (p *Pager) CommitTx() error {
	if !p.inTx {
		return sharcerr.New(sharcerr.InvalidOperation, "pager: no active transaction")
	}
	if fr, ok := p.cache[1]; !ok || !fr.dirty {
		// Mark page 1 dirty so the loop below bumps the counter and
		// rewrites the header even when no cell on page 1 changed.
		page1, err := p.ReadPage(1)
		if err != nil {
			return err
		}
		if err := p.WritePage(1, page1); err != nil {
			return err
		}
	}
	for e := p.lru.Back(); e != nil; e = e.Prev() {
		fr := e.Value.(*frame)
		if !fr.dirty {
			continue
		}
		data := fr.data
		if fr.pageNum == 1 {
			data = make([]byte, len(fr.data))
			copy(data, fr.data)
			p.header.FileChangeCounter++
			copy(data[:HeaderSize], p.header.Encode())
		}
		if err := p.writePageRaw(fr.pageNum, data); err != nil {
			return err
		}
		fr.dirty = false
	}
	if err := p.file.Sync(); err != nil {
		return sharcerr.Wrap(sharcerr.InvalidOperation, "pager: sync", err)
	}
	if err := p.journal.Commit(); err != nil {
		return err
	}
	p.inTx = false
	return nil
}

// RollbackTx undoes every page written since BeginTx by replaying the
// journal's pre-images and reloading the in-memory header/cache.
func (p *Pager) RollbackTx() error {
	if !p.inTx {
		return sharcerr.New(sharcerr.InvalidOperation, "pager: no active transaction")
	}
	if err := p.journal.Rollback(p.file); err != nil {
		return err
	}
	p.cache = make(map[uint32]*frame)
	p.lru = list.New()
	raw, err := p.readPageRaw(1)
	if err == nil {
		if h, err := ParseHeader(raw); err == nil {
			p.header = h
		}
	}
	p.inTx = false
	return nil
}

// Close flushes nothing implicitly (callers must Commit/Rollback first) and
// closes the underlying file.
func (p *Pager) Close() error {
	return p.file.Close()
}

// UpdateSchemaCookie bumps the schema cookie, which every DDL commit must do
// per spec §4.7, and writes the new header into page 1's cached image.
func (p *Pager) UpdateSchemaCookie() error {
	p.header.SchemaCookie++
	page1, err := p.ReadPage(1)
	if err != nil {
		return err
	}
	copy(page1[:HeaderSize], p.header.Encode())
	return p.WritePage(1, page1)
}
