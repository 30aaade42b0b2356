package forestkv

import (
	"os"

	"forestkv/internal/logging"
)

// dal (data-access layer) owns the file, the freelist and the meta page; it
// exposes page-id allocation, node read/write/delete, and fill-threshold
// computation (spec §2 "DAL", §4.1-§4.4). It has no notion of
// transactions — that buffering lives one layer up in Tx (spec §4.10).
type dal struct {
	pf       *pageFile
	pageSize int

	minFillPercent float64
	maxFillPercent float64
	sync           bool
	mmapEnabled    bool

	meta     meta
	freelist *freelist

	log *logging.Logger
}

// openDAL opens or creates the database file at path and establishes meta
// and the freelist, mirroring original_source/src/dal.rs's new_dal: a fresh
// file gets an empty freelist, an empty root-collection root node, and a
// meta page written exactly once (spec §9 open question — see DESIGN.md for
// the one exception, the root-changed case handled in tx.go).
func openDAL(opts Options, log *logging.Logger) (*dal, error) {
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	minFill := opts.MinFillPercent
	if minFill <= 0 {
		minFill = DefaultMinFillPercent
	}
	maxFill := opts.MaxFillPercent
	if maxFill <= 0 {
		maxFill = DefaultMaxFillPercent
	}

	info, statErr := os.Stat(opts.Path)
	fresh := statErr != nil || info.Size() == 0

	f, err := os.OpenFile(opts.Path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, wrapErr(KindIO, "open database file", err)
	}

	d := &dal{
		pf:             newPageFile(f, pageSize),
		pageSize:       pageSize,
		minFillPercent: minFill,
		maxFillPercent: maxFill,
		sync:           opts.Sync,
		log:            log,
	}

	if fresh {
		if err := d.initFresh(); err != nil {
			f.Close()
			return nil, err
		}
	} else {
		if err := d.loadExisting(); err != nil {
			f.Close()
			return nil, err
		}
	}
	if opts.EnableMmap {
		d.mmapEnabled = true
		_ = d.pf.EnableMmap()
	}
	return d, nil
}

// refreshMmap re-maps the file after a commit that may have grown it. Only
// has an effect when EnableMmap was requested at Open time.
func (d *dal) refreshMmap() {
	if d.mmapEnabled {
		_ = d.pf.EnableMmap()
	}
}

// freelistPageID is the freelist's own fixed home (spec §3: "Page id 1 is
// initially assigned to the freelist"). It is never handed out by
// freelist.nextPage — that counter starts at 2, where node pages begin.
const freelistPageID pageID = 1

func (d *dal) initFresh() error {
	d.freelist = newFreelist()
	d.meta = meta{rootPageID: noPage, freelistPageID: freelistPageID}

	root := newLeaf()
	if err := d.writeNode(root, d.freelist.nextPage()); err != nil {
		return err
	}
	d.meta.rootPageID = root.pageID

	if err := d.writeFreelist(); err != nil {
		return err
	}
	return d.writeMeta()
}

func (d *dal) loadExisting() error {
	metaPage, err := d.pf.ReadPage(metaPageID)
	if err != nil {
		return err
	}
	m, err := decodeMeta(metaPage)
	if err != nil {
		return err
	}
	d.meta = m
	if d.meta.freelistPageID == noPage {
		return newErr(KindUninitialized, "freelist page id not set in meta")
	}

	flPage, err := d.pf.ReadPage(d.meta.freelistPageID)
	if err != nil {
		return err
	}
	fl, err := decodeFreelist(flPage, d.pageSize)
	if err != nil {
		return err
	}
	d.freelist = fl
	return nil
}

func (d *dal) Close() error {
	return d.pf.Close()
}

// writeMeta persists the meta page. Called once at init, and again from
// Tx.Commit whenever the root collection's root page id changed — the
// correctness fix to the open question flagged in spec §9.
func (d *dal) writeMeta() error {
	return d.pf.WritePage(metaPageID, d.meta.encode(d.pageSize))
}

func (d *dal) writeFreelist() error {
	buf, err := d.freelist.encode(d.pageSize)
	if err != nil {
		return err
	}
	return d.pf.WritePage(d.meta.freelistPageID, buf)
}

// getNode reads and decodes the node at id.
func (d *dal) getNode(id pageID) (*node, error) {
	buf, err := d.pf.ReadPage(id)
	if err != nil {
		return nil, err
	}
	return decodeNode(id, buf)
}

// writeNode assigns a fresh page id (via allocID) to a detached node
// (pageID == noPage) and persists it; an already-placed node is rewritten
// in place, matching spec §9 "splits rewrite children ... original node
// keeps its page id".
func (d *dal) writeNode(n *node, allocID pageID) error {
	if n.pageID == noPage {
		n.pageID = allocID
	}
	buf, err := n.encode(d.pageSize)
	if err != nil {
		return err
	}
	return d.pf.WritePage(n.pageID, buf)
}

// allocatePage pulls the next page id from the freelist (spec §4.2).
func (d *dal) allocatePage() pageID {
	return d.freelist.nextPage()
}

// releasePage returns id to the freelist stack.
func (d *dal) releasePage(id pageID) {
	d.freelist.releasePage(id)
}

func (d *dal) maxThreshold() float64 {
	return d.maxFillPercent * float64(d.pageSize)
}

func (d *dal) minThreshold() float64 {
	return d.minFillPercent * float64(d.pageSize)
}

func (d *dal) isOverPopulated(n *node) bool {
	return float64(n.size()) > d.maxThreshold()
}

func (d *dal) isUnderPopulated(n *node) bool {
	return float64(n.size()) < d.minThreshold()
}

// canSpareAnElement reports whether n could give up its split point without
// becoming empty (spec §4.8 "can_spare_an_element").
func (d *dal) canSpareAnElement(n *node) bool {
	return d.splitIndex(n) != noIndex
}

// splitIndex walks items accumulating size from the 3-byte header and
// returns the first index i+1 whose running size exceeds minThreshold,
// provided i is not the last item (spec §4.4).
func (d *dal) splitIndex(n *node) int {
	size := 3
	for i, it := range n.items {
		size += elementSize(it)
		if float64(size) > d.minThreshold() && i < len(n.items)-1 {
			return i + 1
		}
	}
	return noIndex
}
