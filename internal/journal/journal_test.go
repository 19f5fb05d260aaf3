package journal

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func writePage(t *testing.T, f *os.File, pageSize uint32, pageNum uint32, fill byte) {
	t.Helper()
	buf := bytes.Repeat([]byte{fill}, int(pageSize))
	if _, err := f.WriteAt(buf, int64(pageNum-1)*int64(pageSize)); err != nil {
		t.Fatal(err)
	}
}

func readPage(t *testing.T, f *os.File, pageSize uint32, pageNum uint32) []byte {
	t.Helper()
	buf := make([]byte, pageSize)
	if _, err := f.ReadAt(buf, int64(pageNum-1)*int64(pageSize)); err != nil {
		t.Fatal(err)
	}
	return buf
}

func TestRollbackRestoresPreImage(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")
	const pageSize = 512

	f, err := os.OpenFile(dbPath, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	writePage(t, f, pageSize, 1, 0xAA)
	writePage(t, f, pageSize, 2, 0xBB)

	j := Open(dbPath, pageSize)
	if err := j.Begin(2); err != nil {
		t.Fatal(err)
	}
	if err := j.LogBefore(1, readPage(t, f, pageSize, 1)); err != nil {
		t.Fatal(err)
	}
	if err := j.LogBefore(2, readPage(t, f, pageSize, 2)); err != nil {
		t.Fatal(err)
	}

	writePage(t, f, pageSize, 1, 0x11)
	writePage(t, f, pageSize, 2, 0x22)

	if err := j.Rollback(f); err != nil {
		t.Fatal(err)
	}

	got1 := readPage(t, f, pageSize, 1)
	got2 := readPage(t, f, pageSize, 2)
	if !bytes.Equal(got1, bytes.Repeat([]byte{0xAA}, pageSize)) {
		t.Fatalf("page 1 not restored")
	}
	if !bytes.Equal(got2, bytes.Repeat([]byte{0xBB}, pageSize)) {
		t.Fatalf("page 2 not restored")
	}
	if _, err := os.Stat(Path(dbPath)); !os.IsNotExist(err) {
		t.Fatalf("journal file should be deleted after rollback")
	}
}

func TestCommitDeletesJournal(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")
	j := Open(dbPath, 512)
	if err := j.Begin(1); err != nil {
		t.Fatal(err)
	}
	if err := j.LogBefore(1, make([]byte, 512)); err != nil {
		t.Fatal(err)
	}
	if err := j.Commit(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(Path(dbPath)); !os.IsNotExist(err) {
		t.Fatalf("journal file should not exist after commit")
	}
}

func TestLogBeforeOnlyFirstTouch(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")
	j := Open(dbPath, 16)
	if err := j.Begin(1); err != nil {
		t.Fatal(err)
	}
	first := bytes.Repeat([]byte{1}, 16)
	second := bytes.Repeat([]byte{2}, 16)
	if err := j.LogBefore(1, first); err != nil {
		t.Fatal(err)
	}
	if err := j.LogBefore(1, second); err != nil {
		t.Fatal(err)
	}
	images, err := j.readImages()
	if err != nil {
		t.Fatal(err)
	}
	if len(images) != 1 {
		t.Fatalf("expected 1 recorded image, got %d", len(images))
	}
	if !bytes.Equal(images[0].Data, first) {
		t.Fatalf("expected first pre-image to be retained")
	}
}
