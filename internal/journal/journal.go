// Package journal implements the rollback journal: a sidecar "<db>.journal"
// file that records the pre-image of every page touched for the first time
// in a transaction, so an aborted or crashed transaction can be undone by
// replaying those pre-images back into the database file in reverse order.
//
// This inverts the teacher's own internal/storage/pager/wal.go, which logs
// post-images forward and replays committed transactions on recovery (a
// redo log). A rollback journal instead logs pre-images once per page and
// is authoritative only until commit, at which point it is deleted outright
// -- there is nothing to redo, because the database file itself already
// holds the committed post-image.
package journal

import (
	"encoding/binary"
	"hash/crc32"
	"io"
	"os"

	"github.com/revred/sharc-core/internal/sharcerr"
)

const (
	magic      = "sharc-journal-1\x00"
	headerSize = 32
)

// Journal manages the sidecar file for one open database.
type Journal struct {
	path       string
	file       *os.File
	pageSize   uint32
	origPages  uint32
	touched    map[uint32]bool
	active     bool
}

// Path returns the conventional sidecar path for a database file.
func Path(dbPath string) string { return dbPath + ".journal" }

// Open associates a Journal with dbPath without creating anything on disk.
func Open(dbPath string, pageSize uint32) *Journal {
	return &Journal{path: Path(dbPath), pageSize: pageSize}
}

// Begin starts a transaction's journal, creating the sidecar file and
// recording the database's page count before any page is touched.
func (j *Journal) Begin(origPageCount uint32) error {
	f, err := os.OpenFile(j.path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return sharcerr.Wrap(sharcerr.InvalidOperation, "journal: create", err)
	}
	j.file = f
	j.origPages = origPageCount
	j.touched = make(map[uint32]bool)
	j.active = true
	return j.writeHeader()
}

func (j *Journal) writeHeader() error {
	buf := make([]byte, headerSize)
	copy(buf[0:16], magic)
	binary.BigEndian.PutUint32(buf[16:20], j.pageSize)
	binary.BigEndian.PutUint32(buf[20:24], j.origPages)
	binary.BigEndian.PutUint32(buf[28:32], crc32.ChecksumIEEE(buf[0:28]))
	_, err := j.file.WriteAt(buf, 0)
	return err
}

// Active reports whether a transaction's journal is currently open.
func (j *Journal) Active() bool { return j.active }

// Touched reports whether pageNum's pre-image has already been recorded in
// the current transaction.
func (j *Journal) Touched(pageNum uint32) bool { return j.touched[pageNum] }

// LogBefore records the pre-image of pageNum the first time it is touched
// in the current transaction. Subsequent calls for the same page within the
// same transaction are no-ops, since only the original image must survive
// to make rollback correct.
func (j *Journal) LogBefore(pageNum uint32, before []byte) error {
	if !j.active {
		return sharcerr.New(sharcerr.InvalidOperation, "journal: no active transaction")
	}
	if j.touched[pageNum] {
		return nil
	}
	rec := make([]byte, 4+len(before)+4)
	binary.BigEndian.PutUint32(rec[0:4], pageNum)
	copy(rec[4:], before)
	binary.BigEndian.PutUint32(rec[4+len(before):], crc32.ChecksumIEEE(before))
	if _, err := j.file.Seek(0, io.SeekEnd); err != nil {
		return err
	}
	if _, err := j.file.Write(rec); err != nil {
		return sharcerr.Wrap(sharcerr.InvalidOperation, "journal: append page image", err)
	}
	j.touched[pageNum] = true
	return nil
}

// Commit discards the journal: the database file already holds the
// committed state, so there is nothing left to replay.
func (j *Journal) Commit() error {
	if !j.active {
		return nil
	}
	return j.finish()
}

func (j *Journal) finish() error {
	j.active = false
	j.touched = nil
	if j.file != nil {
		j.file.Close()
		j.file = nil
	}
	err := os.Remove(j.path)
	if err != nil && !os.IsNotExist(err) {
		return sharcerr.Wrap(sharcerr.InvalidOperation, "journal: remove", err)
	}
	return nil
}

// PageImage is one pre-image record recovered from a journal file.
type PageImage struct {
	PageNum uint32
	Data    []byte
}

// Rollback replays every recorded pre-image back into dbFile in reverse
// order, truncates dbFile to the transaction's original page count, and
// deletes the journal.
func (j *Journal) Rollback(dbFile *os.File) error {
	if !j.active {
		return nil
	}
	images, err := j.readImages()
	if err != nil {
		return err
	}
	if err := replay(dbFile, images, j.pageSize, j.origPages); err != nil {
		return err
	}
	return j.finish()
}

func (j *Journal) readImages() ([]PageImage, error) {
	if _, err := j.file.Seek(headerSize, io.SeekStart); err != nil {
		return nil, err
	}
	var images []PageImage
	recSize := 4 + int(j.pageSize) + 4
	rec := make([]byte, recSize)
	for {
		_, err := io.ReadFull(j.file, rec)
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		}
		if err != nil {
			return nil, err
		}
		pageNum := binary.BigEndian.Uint32(rec[0:4])
		data := rec[4 : 4+j.pageSize]
		sum := binary.BigEndian.Uint32(rec[4+j.pageSize:])
		if crc32.ChecksumIEEE(data) != sum {
			return nil, sharcerr.New(sharcerr.CorruptPage, "journal: checksum mismatch, refusing to roll back")
		}
		cp := make([]byte, len(data))
		copy(cp, data)
		images = append(images, PageImage{PageNum: pageNum, Data: cp})
	}
	return images, nil
}

func replay(dbFile *os.File, images []PageImage, pageSize, origPages uint32) error {
	for i := len(images) - 1; i >= 0; i-- {
		img := images[i]
		off := int64(img.PageNum-1) * int64(pageSize)
		if _, err := dbFile.WriteAt(img.Data, off); err != nil {
			return sharcerr.Wrap(sharcerr.InvalidOperation, "journal: restore page", err)
		}
	}
	if err := dbFile.Truncate(int64(origPages) * int64(pageSize)); err != nil {
		return sharcerr.Wrap(sharcerr.InvalidOperation, "journal: truncate", err)
	}
	return dbFile.Sync()
}

// RecoverIfPresent is called on database open: if a journal file from a
// crashed process still exists, its pre-images are replayed and the file
// system is returned to the state it was in before that transaction began.
func RecoverIfPresent(dbPath string, dbFile *os.File, pageSize uint32) error {
	path := Path(dbPath)
	f, err := os.OpenFile(path, os.O_RDWR, 0o600)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return sharcerr.Wrap(sharcerr.InvalidOperation, "journal: open for recovery", err)
	}
	j := &Journal{path: path, file: f, pageSize: pageSize, active: true}
	hdr := make([]byte, headerSize)
	if _, err := io.ReadFull(f, hdr); err != nil {
		f.Close()
		os.Remove(path)
		return nil
	}
	if string(hdr[0:16]) != magic || crc32.ChecksumIEEE(hdr[0:28]) != binary.BigEndian.Uint32(hdr[28:32]) {
		f.Close()
		os.Remove(path)
		return nil
	}
	j.origPages = binary.BigEndian.Uint32(hdr[20:24])
	return j.Rollback(dbFile)
}
