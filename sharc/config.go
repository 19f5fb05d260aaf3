package sharc

import "github.com/revred/sharc-core/internal/snapshot"

// Options configures Open, mirroring the teacher's PagerConfig/
// BufferPoolConfig split (pager.go) collapsed into one caller-facing
// struct.
type Options struct {
	// Writable opens the file for read-write access, creating it if
	// absent. A missing file opened read-only is an error.
	Writable bool

	// Password, if non-empty, opens or creates an encrypted database.
	Password string

	// PageCacheSize bounds how many pages the pager keeps resident.
	// Zero uses pager.DefaultCachePages.
	PageCacheSize int

	// MaxSnapshotBytes bounds Snapshot's copy-on-capture size. Zero uses
	// snapshot.DefaultMaxBytes.
	MaxSnapshotBytes int64

	// Log enables diagnostic logging of the open event (path and table
	// count) via the standard log package, matching cmd/tinysql/main.go's
	// style. Journal recovery is not logged.
	Log bool
}

func (o *Options) setDefaults() {
	if o.MaxSnapshotBytes == 0 {
		o.MaxSnapshotBytes = snapshot.DefaultMaxBytes
	}
}
