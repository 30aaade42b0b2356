package forestkv

import "encoding/binary"

// meta is the singleton page-0 payload (spec §3 "Meta"): the root
// collection's root page id and the freelist's page id. Both fields are
// 8-byte little-endian, per spec §6.
type meta struct {
	rootPageID     pageID
	freelistPageID pageID
}

const metaPayloadSize = 16

// encode serializes meta into a full page: root_page_id:8 || freelist_page_id:8 || zero padding.
func (m meta) encode(pageSize int) page {
	buf := make(page, pageSize)
	binary.LittleEndian.PutUint64(buf[0:8], uint64(m.rootPageID))
	binary.LittleEndian.PutUint64(buf[8:16], uint64(m.freelistPageID))
	return buf
}

// decodeMeta is the inverse of encode.
func decodeMeta(buf page) (meta, error) {
	if len(buf) < metaPayloadSize {
		return meta{}, newErr(KindCorruption, "meta page too short")
	}
	return meta{
		rootPageID:     pageID(binary.LittleEndian.Uint64(buf[0:8])),
		freelistPageID: pageID(binary.LittleEndian.Uint64(buf[8:16])),
	}, nil
}
