package forestkv

import "encoding/binary"

// freelist is the monotonic max-page counter plus a LIFO stack of released
// page ids (spec §3, §4.2). Node pages begin at 2: page 0 is meta, page 1
// is the freelist's own initial home.
type freelist struct {
	maxPage       pageID
	releasedPages []pageID
}

func newFreelist() *freelist {
	// maxPage starts at 1: page 0 is meta, page 1 is the freelist itself,
	// so the first call to nextPage() hands out page 2 (spec §3).
	return &freelist{maxPage: 1}
}

// nextPage returns a page id per spec §4.2: pop the LIFO stack if
// non-empty (favoring locality of recently freed pages), else bump
// maxPage.
func (fl *freelist) nextPage() pageID {
	if n := len(fl.releasedPages); n > 0 {
		id := fl.releasedPages[n-1]
		fl.releasedPages = fl.releasedPages[:n-1]
		return id
	}
	fl.maxPage++
	return fl.maxPage
}

// releasePage pushes id onto the stack for reuse.
func (fl *freelist) releasePage(id pageID) {
	fl.releasedPages = append(fl.releasedPages, id)
}

// freelistCapacity returns the maximum number of released page ids a
// single page can hold (spec §4.2: "(page_size - 16) / 8").
func freelistCapacity(pageSize int) int {
	return (pageSize - 16) / 8
}

// encode serializes the freelist per spec §4.2:
// max_page (8 LE) || len(released_pages) (8 LE) || page_ids...
func (fl *freelist) encode(pageSize int) (page, error) {
	if len(fl.releasedPages) > freelistCapacity(pageSize) {
		return nil, newErr(KindOverPacked, "freelist exceeds page capacity")
	}
	buf := make(page, pageSize)
	binary.LittleEndian.PutUint64(buf[0:8], uint64(fl.maxPage))
	binary.LittleEndian.PutUint64(buf[8:16], uint64(len(fl.releasedPages)))
	off := 16
	for _, id := range fl.releasedPages {
		binary.LittleEndian.PutUint64(buf[off:off+8], uint64(id))
		off += 8
	}
	return buf, nil
}

// decodeFreelist is the inverse of encode.
func decodeFreelist(buf page, pageSize int) (*freelist, error) {
	if len(buf) < 16 {
		return nil, newErr(KindCorruption, "freelist page too short")
	}
	maxPage := pageID(binary.LittleEndian.Uint64(buf[0:8]))
	count := binary.LittleEndian.Uint64(buf[8:16])
	if count > uint64(freelistCapacity(pageSize)) {
		return nil, newErr(KindCorruption, "freelist released-page count exceeds page capacity")
	}
	released := make([]pageID, count)
	off := 16
	for i := range released {
		if off+8 > len(buf) {
			return nil, newErr(KindCorruption, "freelist page truncated")
		}
		released[i] = pageID(binary.LittleEndian.Uint64(buf[off : off+8]))
		off += 8
	}
	return &freelist{maxPage: maxPage, releasedPages: released}, nil
}
