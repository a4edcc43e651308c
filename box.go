// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package avifinfo

// boxType is a four-byte ISOBMFF box tag. Kept as a fixed-size array (not a
// string) so box headers can be compared without allocating, the same shape
// the teacher uses for its own fourCC type (io.go).
type boxType [4]byte

func (t boxType) String() string { return string(t[:]) }

func bt(s string) boxType {
	return boxType{s[0], s[1], s[2], s[3]}
}

// Box types named by spec §4.
var (
	typeFtyp = bt("ftyp")
	typeMeta = bt("meta")
	typePitm = bt("pitm")
	typeIprp = bt("iprp")
	typeIpco = bt("ipco")
	typeIpma = bt("ipma")
	typeIspe = bt("ispe")
	typePixi = bt("pixi")
	typeAv1C = bt("av1C")
	typeIref = bt("iref")
	typeDimg = bt("dimg")
	typeAuxC = bt("auxC")

	// typeSkip is the sentinel a full box's type is rewritten to when its
	// version exceeds what this parser understands (spec §4.2 step 8), so
	// enclosing scans skip past it without treating the file as invalid.
	typeSkip = boxType{0, 0, 0, 0}
)

// fullBoxMaxVersion lists the box types that carry a version+flags word and
// the highest version this parser accepts for each, per spec §4.2 step 8.
var fullBoxMaxVersion = map[boxType]uint8{
	typeMeta: 0,
	typePitm: 1,
	typeIpma: 1,
	typeIspe: 0,
	typePixi: 0,
	typeIref: 1,
	typeAuxC: 0,
}

// box is one parsed ISOBMFF box header. Boxes are parsed on demand; no box
// tree is ever materialized.
type box struct {
	size          int64
	typ           boxType
	contentOffset int64
	contentSize   int64
	isFull        bool
	version       uint8
	flags         uint32
}

func (b box) contentEnd() int64 { return b.contentOffset + b.contentSize }

// boxU8, boxU16, and boxU32 read fixed-width values at an offset relative to
// b's content, checking the read against both b's declared content_size and
// the window's available bytes before touching the backing slice.
func (w *window) boxU8(b box, rel int64) (uint8, outcome) {
	if o := w.accessContent(b, rel, 1); o != outcomeFound {
		return 0, o
	}
	return w.u8(b.contentOffset + rel)
}

func (w *window) boxU16(b box, rel int64) (uint16, outcome) {
	if o := w.accessContent(b, rel, 2); o != outcomeFound {
		return 0, o
	}
	return w.u16(b.contentOffset + rel)
}

func (w *window) boxU32(b box, rel int64) (uint32, outcome) {
	if o := w.accessContent(b, rel, 4); o != outcomeFound {
		return 0, o
	}
	return w.u32(b.contentOffset + rel)
}

// boxID reads an item ID of the given byte width (2 or 4) at a relative
// content offset — the recurring 16-or-32-bit-depending-on-version shape
// used for item_ID fields throughout spec §4.4 and §4.6.
func (w *window) boxID(b box, rel, width int64) (uint32, outcome) {
	if width == 2 {
		v, o := w.boxU16(b, rel)
		return uint32(v), o
	}
	return w.boxU32(b, rel)
}

// readBox reads one box header at absolute position pos, where the
// enclosing container's content ends at absolute offset containerEnd. It
// implements spec §4.2 verbatim, in absolute file coordinates rather than
// container-relative ones: there is no need to translate back and forth
// when every window read already takes an absolute offset.
func (w *window) readBox(pos, containerEnd int64) (box, outcome) {
	// Step 1: refuse positions within 8 bytes of 2^32-1.
	if pos > maxFileSize-8 {
		return box{}, outcomeAborted
	}

	// Step 2: need 8 bytes of header room in the container, 4 bytes
	// available to read the size field.
	if pos+8 > containerEnd {
		return box{}, outcomeInvalid
	}
	if o := w.request(pos, 4); o != outcomeFound {
		return box{}, o
	}
	size32, o := w.u32(pos)
	if o != outcomeFound {
		return box{}, o
	}
	size := int64(size32)

	// Step 3: extends-to-end and 64-bit sizes are deliberately unsupported.
	if size == 0 || size == 1 {
		return box{}, outcomeAborted
	}

	// Step 4: a box can never be smaller than its own 8-byte header.
	if size < 8 {
		return box{}, outcomeInvalid
	}

	// Step 5: the box must fit entirely inside its container. int64 has
	// ample headroom over the uint32 size/position space, so the overflow
	// this step guards against in a 32-bit implementation cannot occur here;
	// the bound check against containerEnd is what actually matters.
	if pos+size > containerEnd {
		return box{}, outcomeInvalid
	}

	// Step 6: read the four-byte type.
	if o := w.request(pos+4, 4); o != outcomeFound {
		return box{}, o
	}
	var typ boxType
	copy(typ[:], w.data[pos+4:pos+8])

	b := box{size: size, typ: typ, contentOffset: pos + 8, contentSize: size - 8}

	// Step 7 & 8: full-box header (version+flags) for the types that carry
	// one, with per-type version ceilings. A full box of unsupported
	// version is not Invalid; its type is rewritten to typeSkip.
	if maxVersion, ok := fullBoxMaxVersion[typ]; ok {
		if pos+12 > containerEnd {
			return box{}, outcomeInvalid
		}
		if o := w.request(pos+8, 4); o != outcomeFound {
			return box{}, o
		}
		vf, o := w.u32(pos + 8)
		if o != outcomeFound {
			return box{}, o
		}
		version := uint8(vf >> 24)
		b.isFull = true
		b.version = version
		b.flags = vf & 0x00FFFFFF
		b.contentOffset = pos + 12
		b.contentSize = size - 12
		if version > maxVersion {
			logf("box %q at %d has unsupported version %d, skipping", typ, pos, version)
			b.typ = typeSkip
		}
	}

	// Step 9: global box-count budget.
	if o := w.bumpBoxCount(); o != outcomeFound {
		return box{}, o
	}

	return b, outcomeFound
}

// findBoxOfType scans the sibling boxes in [start, end) for the first one of
// type want, skipping anything else (including typeSkip boxes left behind by
// an unsupported full-box version). If the scan reaches end without a match,
// notFoundOutcome is returned — callers pick outcomeInvalid for boxes the
// input format guarantees exist, outcomeNotFound for genuinely optional ones.
func (w *window) findBoxOfType(start, end int64, want boxType, notFoundOutcome outcome) (box, outcome) {
	pos := start
	for pos < end {
		b, o := w.readBox(pos, end)
		if o != outcomeFound {
			return box{}, o
		}
		if b.typ == want {
			return b, outcomeFound
		}
		pos += b.size
	}
	return box{}, notFoundOutcome
}

// nthChild returns the idx-th (1-based) direct child box of [start, end),
// counting every box regardless of type — the "ipco direct children,
// counting them 1-based" lookup spec §4.4 needs to resolve a property_index.
// Running past the end without reaching idx is reported as outcomeNotFound,
// which callers treat as "ignore this association" rather than a format
// error, since out-of-range indices are not otherwise specified.
func (w *window) nthChild(start, end int64, idx int) (box, outcome) {
	if idx < 1 {
		return box{}, outcomeNotFound
	}
	pos := start
	count := 0
	for pos < end {
		b, o := w.readBox(pos, end)
		if o != outcomeFound {
			return box{}, o
		}
		count++
		if count == idx {
			return b, outcomeFound
		}
		pos += b.size
	}
	return box{}, outcomeNotFound
}
