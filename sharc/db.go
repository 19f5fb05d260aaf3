// Package sharc is the public facade over the embedded storage and query
// engine: Open a database file, get back a Reader and Writer pair, run
// queries and mutations through them.
//
// Grounded on the teacher's internal/driver/driver.go facade shape (a
// thin struct wrapping the pager/catalog/engine trio behind a handful of
// top-level methods) and its cfg{tenant, maxReaders, maxWriters,
// busyTimeout} config idiom, now expressed as Options.
package sharc

import (
	"log"

	"github.com/revred/sharc-core/internal/catalog"
	"github.com/revred/sharc-core/internal/executor"
	"github.com/revred/sharc-core/internal/pager"
	"github.com/revred/sharc-core/internal/pool"
	"github.com/revred/sharc-core/internal/snapshot"
	"github.com/revred/sharc-core/internal/writer"
)

// DB is an open database file: its pager, schema catalog, reader pool, and
// the entry point for Readers and Writers over it.
type DB struct {
	opts Options
	p    *pager.Pager
	cat  *catalog.Manager
	pool *pool.Manager
}

// Open opens (creating if necessary) the database file at path.
func Open(path string, opts Options) (*DB, error) {
	opts.setDefaults()

	p, err := pager.Open(path, pager.Options{
		Writable:      opts.Writable,
		Password:      opts.Password,
		PageCacheSize: opts.PageCacheSize,
	})
	if err != nil {
		return nil, err
	}

	cat, err := catalog.Open(p)
	if err != nil {
		p.Close()
		return nil, err
	}

	if opts.Log {
		log.Printf("sharc: opened %s (%d tables)", path, len(cat.Tables()))
	}

	return &DB{opts: opts, p: p, cat: cat, pool: pool.NewManager()}, nil
}

// Close flushes and releases the underlying file handle.
func (db *DB) Close() error {
	return db.p.Close()
}

// Reader returns a new query executor bound to this database's current
// live state.
func (db *DB) Reader() *executor.Executor {
	return executor.New(db.p, db.cat)
}

// Writer returns a new transactional writer, starting in the Idle state.
func (db *DB) Writer() *writer.Writer {
	return writer.New(db.p, db.cat)
}

// Snapshot captures a frozen, copy-on-capture read view of the database,
// bounded by Options.MaxSnapshotBytes.
func (db *DB) Snapshot() (*snapshot.Snapshot, error) {
	return snapshot.Capture(db.p, db.opts.MaxSnapshotBytes)
}

// Tables lists the names of every table the schema catalog currently
// knows about.
func (db *DB) Tables() []string {
	defs := db.cat.Tables()
	out := make([]string, len(defs))
	for i, d := range defs {
		out[i] = d.Name
	}
	return out
}

// Pool returns the per-table reader buffer pool manager, exposed so a
// caller driving many concurrent scans can borrow/release scratch buffers
// directly instead of allocating per-row.
func (db *DB) Pool() *pool.Manager {
	return db.pool
}
