// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package avifinfo

import "encoding/binary"

// This file hand-builds minimal ISOBMFF/AVIF box trees for the table tests
// in walk_test.go, box_test.go, and the fuzz seed corpus. A real encoder
// library was considered and rejected for this (see DESIGN.md): the
// boundary tests need byte-exact control over malformed/truncated box
// trees that a well-formed-output marshaller does not expose.

func be32(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

func be16(v uint16) []byte {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, v)
	return b
}

// rawBox wraps content in an ordinary (non-full) box header.
func rawBox(typ string, content []byte) []byte {
	b := make([]byte, 0, 8+len(content))
	b = append(b, be32(uint32(8+len(content)))...)
	b = append(b, typ...)
	b = append(b, content...)
	return b
}

// fullBox wraps content in a full-box header (version + 24-bit flags).
func fullBox(typ string, version uint8, flags uint32, content []byte) []byte {
	vf := uint32(version)<<24 | (flags & 0x00FFFFFF)
	full := append(be32(vf), content...)
	return rawBox(typ, full)
}

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func ftypBox(brand string, compatible ...string) []byte {
	content := concat([]byte(brand), []byte("\x00\x00\x00\x00"))
	for _, c := range compatible {
		content = append(content, []byte(c)...)
	}
	return rawBox("ftyp", content)
}

func ispeBox(width, height uint32) []byte {
	return fullBox("ispe", 0, 0, concat(be32(width), be32(height)))
}

func pixiBox(bitDepth uint8, numChannels uint8) []byte {
	content := []byte{numChannels}
	for i := uint8(0); i < numChannels; i++ {
		content = append(content, bitDepth)
	}
	return fullBox("pixi", 0, 0, content)
}

// av1CBox builds a minimal AV1 configuration box; only the third content
// byte (high_bitdepth/twelve_bit/monochrome) matters to this parser.
func av1CBox(highBitdepth, twelveBit, monochrome bool) []byte {
	var third byte
	if highBitdepth {
		third |= 0x40
	}
	if twelveBit {
		third |= 0x20
	}
	if monochrome {
		third |= 0x10
	}
	return rawBox("av1C", []byte{0x81, 0x00, third})
}

func auxCBox(urn string) []byte {
	return fullBox("auxC", 0, 0, []byte(urn))
}

// pitmBox builds a primary-item box referencing itemID, 16-bit (version 0).
func pitmBox(itemID uint16) []byte {
	return fullBox("pitm", 0, 0, be16(itemID))
}

type ipmaAssoc struct {
	index     uint8
	essential bool
}

type ipmaEntry struct {
	itemID uint16
	assocs []ipmaAssoc
}

func ipmaBox(entries []ipmaEntry) []byte {
	content := be32(uint32(len(entries)))
	for _, e := range entries {
		content = append(content, be16(e.itemID)...)
		content = append(content, byte(len(e.assocs)))
		for _, a := range e.assocs {
			v := a.index & 0x7F
			if a.essential {
				v |= 0x80
			}
			content = append(content, v)
		}
	}
	return fullBox("ipma", 0, 0, content)
}

func ipcoBox(props ...[]byte) []byte {
	return rawBox("ipco", concat(props...))
}

func iprpBox(ipco, ipma []byte) []byte {
	return rawBox("iprp", concat(ipco, ipma))
}

func dimgRef(fromID uint16, toIDs ...uint16) []byte {
	content := be16(fromID)
	content = append(content, be16(uint16(len(toIDs)))...)
	for _, id := range toIDs {
		content = append(content, be16(id)...)
	}
	return rawBox("dimg", content)
}

func irefBox(refs ...[]byte) []byte {
	return fullBox("iref", 0, 0, concat(refs...))
}

func metaBox(pitm, iprp []byte, rest ...[]byte) []byte {
	content := concat(pitm, iprp)
	for _, r := range rest {
		content = append(content, r...)
	}
	return fullBox("meta", 0, 0, content)
}

// minimalAVIF builds a single-item AVIF file advertising width x height,
// bitDepth, and numChannels via ispe+pixi, with primary item_ID 1.
func minimalAVIF(width, height uint32, bitDepth, numChannels uint8) []byte {
	ispe := ispeBox(width, height)
	pixi := pixiBox(bitDepth, numChannels)
	ipco := ipcoBox(ispe, pixi)
	ipma := ipmaBox([]ipmaEntry{{itemID: 1, assocs: []ipmaAssoc{{index: 1}, {index: 2}}}})
	iprp := iprpBox(ipco, ipma)
	pitm := pitmBox(1)
	meta := metaBox(pitm, iprp)
	return concat(ftypBox("avif", "avif", "mif1", "miaf"), meta)
}

// minimalAVIFWithAlpha is minimalAVIF plus an unassociated auxC alpha
// property in ipco, per the "does not verify association" behavior of §4.7.
func minimalAVIFWithAlpha(width, height uint32, bitDepth, numChannels uint8) []byte {
	ispe := ispeBox(width, height)
	pixi := pixiBox(bitDepth, numChannels)
	aux := auxCBox(alphaURN)
	ipco := ipcoBox(ispe, pixi, aux)
	ipma := ipmaBox([]ipmaEntry{{itemID: 1, assocs: []ipmaAssoc{{index: 1}, {index: 2}}}})
	iprp := iprpBox(ipco, ipma)
	pitm := pitmBox(1)
	meta := metaBox(pitm, iprp)
	return concat(ftypBox("avif", "avif", "mif1", "miaf"), meta)
}

// tiledAVIF builds a primary item (ID 1) with only ispe (no pixi/av1C), an
// iref/dimg reference from item 1 to item 2, and item 2 carrying the full
// ispe+pixi property set — exercising the §4.6 tile fallback.
func tiledAVIF(width, height uint32, bitDepth, numChannels uint8) []byte {
	primaryIspe := ispeBox(width, height)
	tileIspe := ispeBox(width, height)
	tilePixi := pixiBox(bitDepth, numChannels)
	ipco := ipcoBox(primaryIspe, tileIspe, tilePixi)
	ipma := ipmaBox([]ipmaEntry{
		{itemID: 1, assocs: []ipmaAssoc{{index: 1}}},
		{itemID: 2, assocs: []ipmaAssoc{{index: 2}, {index: 3}}},
	})
	iprp := iprpBox(ipco, ipma)
	pitm := pitmBox(1)
	iref := irefBox(dimgRef(1, 2))
	meta := metaBox(pitm, iprp, iref)
	return concat(ftypBox("avif", "avif", "mif1", "miaf"), meta)
}
