package forestkv

import (
	"io"
	"os"

	"github.com/edsrzf/mmap-go"
)

// pageID identifies a fixed-size page in the database file. Page 0 is
// always the meta page (spec §3).
type pageID uint64

const metaPageID pageID = 0

// page is a raw, fixed-size byte block. It carries no in-band page id;
// identity comes from its file offset (spec §3 "page_id (implicit)").
type page []byte

// pageFile performs positional, full-page reads and writes against the
// underlying file, and optionally serves reads through a read-only mmap of
// committed data the way github.com/edsrzf/mmap-go is used in the broader
// retrieval pack (sirgallo-mari's Mari.Open maps the whole file; here the
// mapping only ever backs pages already flushed by a prior commit, never a
// transaction's dirty buffer).
type pageFile struct {
	file     *os.File
	pageSize int

	mapping mmap.MMap // nil until EnableMmap succeeds; read-only view of committed pages
}

func newPageFile(f *os.File, pageSize int) *pageFile {
	return &pageFile{file: f, pageSize: pageSize}
}

// EnableMmap maps the current file contents read-only. Called after every
// commit that grows the file (dal.go); a failure here is non-fatal, since
// ReadAt remains correct without it.
func (pf *pageFile) EnableMmap() error {
	pf.disableMmap()
	info, err := pf.file.Stat()
	if err != nil {
		return wrapErr(KindIO, "stat database file", err)
	}
	if info.Size() == 0 {
		return nil
	}
	m, err := mmap.Map(pf.file, mmap.RDONLY, 0)
	if err != nil {
		// Not every platform/filesystem supports mmap (e.g. tmpfs
		// quirks, or a file opened O_DIRECT elsewhere); fall back to
		// ReadAt silently.
		return nil
	}
	pf.mapping = m
	return nil
}

func (pf *pageFile) disableMmap() {
	if pf.mapping != nil {
		_ = pf.mapping.Unmap()
		pf.mapping = nil
	}
}

func (pf *pageFile) Close() error {
	pf.disableMmap()
	return pf.file.Close()
}

// ReadPage returns exactly pageSize bytes read from offset id*pageSize. A
// short read is an error (spec §4.1).
func (pf *pageFile) ReadPage(id pageID) (page, error) {
	off := int64(id) * int64(pf.pageSize)
	if pf.mapping != nil && off+int64(pf.pageSize) <= int64(len(pf.mapping)) {
		buf := make(page, pf.pageSize)
		copy(buf, pf.mapping[off:off+int64(pf.pageSize)])
		return buf, nil
	}
	buf := make(page, pf.pageSize)
	n, err := pf.file.ReadAt(buf, off)
	if err != nil && err != io.EOF {
		return nil, wrapErr(KindIO, "read page", err)
	}
	if n < pf.pageSize {
		return nil, wrapErr(KindIO, "short page read", io.ErrUnexpectedEOF)
	}
	return buf, nil
}

// WritePage writes a full page at offset id*pageSize.
func (pf *pageFile) WritePage(id pageID, buf page) error {
	if len(buf) != pf.pageSize {
		return newErr(KindIO, "write buffer does not match page size")
	}
	off := int64(id) * int64(pf.pageSize)
	if _, err := pf.file.WriteAt(buf, off); err != nil {
		return wrapErr(KindIO, "write page", err)
	}
	return nil
}

// Sync flushes the file to stable storage using fdatasync where the
// platform provides it (page_fsync_unix.go / page_fsync_other.go), mirroring
// the teacher's fsync_unix.go.
func (pf *pageFile) Sync() error {
	if err := fdatasync(pf.file); err != nil {
		return wrapErr(KindIO, "fdatasync", err)
	}
	return nil
}
