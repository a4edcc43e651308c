// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package avifinfo

// alphaURN is the null-terminated auxiliary-type string (44 bytes including
// the terminator) that marks an auxC property as carrying alpha, per spec
// §4.7.
const alphaURN = "urn:mpeg:mpegB:cicp:systems:auxiliary:alpha\x00"

// walk runs the brand check, primary-item resolution, feature extraction,
// tile fallback, and alpha detection passes of spec §4.3-§4.8 against a
// window whose content runs up to fileEnd. Any pass other than the tile
// fallback returning other than outcomeFound short-circuits the whole walk.
func (w *window) walk(fileEnd int64) (Features, outcome) {
	if o := w.checkBrand(fileEnd); o != outcomeFound {
		return Features{}, o
	}

	meta, o := w.findBoxOfType(0, fileEnd, typeMeta, outcomeInvalid)
	if o != outcomeFound {
		return Features{}, o
	}

	primaryItemID, o := w.findPrimaryItemID(meta)
	if o != outcomeFound {
		return Features{}, o
	}

	feats, o := w.extractFeaturesForItem(meta, primaryItemID)
	if o == outcomeNotFound {
		logf("primary item %d missing bit depth/channel data, falling back to tiles", primaryItemID)
		feats, o = w.tileFallback(meta, primaryItemID, feats)
	}
	if o != outcomeFound {
		return Features{}, o
	}

	hasAlpha, o := w.detectAlpha(meta)
	if o != outcomeFound {
		return Features{}, o
	}
	if hasAlpha {
		feats.NumChannels++
	}

	return feats, outcomeFound
}

// checkBrand implements spec §4.3: scans top-level boxes until one of type
// ftyp is found and validates its brand list. A top-level sequence that ends
// without encountering ftyp is Invalid.
func (w *window) checkBrand(fileEnd int64) outcome {
	pos := int64(0)
	for pos < fileEnd {
		b, o := w.readBox(pos, fileEnd)
		if o != outcomeFound {
			return o
		}
		if b.typ == typeFtyp {
			return w.checkFtypBrand(b)
		}
		pos += b.size
	}
	return outcomeInvalid
}

// checkFtypBrand requires at least 8 content bytes (major_brand +
// minor_version) and succeeds the moment any 4-byte brand slot — starting at
// content offset 0, skipping the minor_version slot at offset 4 — reads
// "avif" or "avis".
func (w *window) checkFtypBrand(b box) outcome {
	if o := w.accessContent(b, 0, 8); o != outcomeFound {
		return o
	}
	for off := int64(0); off+4 <= b.contentSize; off += 4 {
		if off == 4 {
			continue
		}
		if o := w.accessContent(b, off, 4); o != outcomeFound {
			return o
		}
		brand := w.bytes(b.contentOffset+off, 4)
		if string(brand) == "avif" || string(brand) == "avis" {
			return outcomeFound
		}
	}
	return outcomeInvalid
}

// findPrimaryItemID implements spec §4.4's pitm lookup: exactly one pitm is
// expected inside meta's content, carrying a 16-bit item_ID for version 0 or
// a 32-bit one otherwise.
func (w *window) findPrimaryItemID(meta box) (uint32, outcome) {
	pitm, o := w.findBoxOfType(meta.contentOffset, meta.contentEnd(), typePitm, outcomeInvalid)
	if o != outcomeFound {
		return 0, o
	}
	width := int64(2)
	if pitm.version != 0 {
		width = 4
	}
	return w.boxID(pitm, 0, width)
}

// extractFeaturesForItem implements spec §4.5: locates iprp/ipco/ipma inside
// meta's content, walks every ipma association belonging to itemID in order,
// and resolves each into an ispe/pixi/av1C property. It is reused verbatim
// for tile items by §4.6, which is why the three-way result below (Found,
// NotFound for "dimensions only", Invalid for "nothing usable") is phrased
// in terms any caller — primary or tile — can interpret on its own.
func (w *window) extractFeaturesForItem(meta box, itemID uint32) (Features, outcome) {
	iprp, o := w.findBoxOfType(meta.contentOffset, meta.contentEnd(), typeIprp, outcomeInvalid)
	if o != outcomeFound {
		return Features{}, o
	}
	ipco, o := w.findBoxOfType(iprp.contentOffset, iprp.contentEnd(), typeIpco, outcomeInvalid)
	if o != outcomeFound {
		return Features{}, o
	}
	ipma, o := w.findBoxOfType(iprp.contentOffset, iprp.contentEnd(), typeIpma, outcomeInvalid)
	if o != outcomeFound {
		return Features{}, o
	}

	var feats Features
	o = w.walkIpma(ipma, itemID, func(idx int) outcome {
		p, o := w.nthChild(ipco.contentOffset, ipco.contentEnd(), idx)
		if o == outcomeNotFound {
			return outcomeFound // index out of range: ignored, not an error
		}
		if o != outcomeFound {
			return o
		}
		return w.applyProperty(p, &feats)
	})
	if o != outcomeFound {
		return Features{}, o
	}

	switch {
	case feats.allKnown():
		return feats, outcomeFound
	case feats.hasDimensions():
		return feats, outcomeNotFound
	default:
		return feats, outcomeInvalid
	}
}

// walkIpma reads the ipma association table and invokes apply(property_index)
// for every association entry whose item_ID equals itemID, in declaration
// order, per spec §4.4. It stops the moment apply returns anything other
// than outcomeFound.
func (w *window) walkIpma(ipma box, itemID uint32, apply func(idx int) outcome) outcome {
	entryCount, o := w.boxU32(ipma, 0)
	if o != outcomeFound {
		return o
	}

	idWidth := int64(2)
	if ipma.version != 0 {
		idWidth = 4
	}

	pos := int64(4)
	for i := uint32(0); i < entryCount; i++ {
		entryItemID, o := w.boxID(ipma, pos, idWidth)
		if o != outcomeFound {
			return o
		}
		pos += idWidth

		assocCount, o := w.boxU8(ipma, pos)
		if o != outcomeFound {
			return o
		}
		pos++

		for j := uint8(0); j < assocCount; j++ {
			var idx int
			if ipma.flags&1 != 0 {
				v, o := w.boxU16(ipma, pos)
				if o != outcomeFound {
					return o
				}
				idx = int(v &^ 0x8000)
				pos += 2
			} else {
				v, o := w.boxU8(ipma, pos)
				if o != outcomeFound {
					return o
				}
				idx = int(v &^ 0x80)
				pos++
			}
			if entryItemID != itemID {
				continue
			}
			if o := apply(idx); o != outcomeFound {
				return o
			}
		}
	}
	return outcomeFound
}

// applyProperty resolves one ipco child box into feats, per spec §4.4's
// per-type rules. The first matching property of each kind wins: a property
// type whose field(s) are already populated is a no-op, which is also how
// av1C's "only used if pixi is absent" rule falls out without a separate
// flag.
func (w *window) applyProperty(p box, feats *Features) outcome {
	switch p.typ {
	case typeIspe:
		if feats.Width != 0 {
			return outcomeFound
		}
		width, o := w.boxU32(p, 0)
		if o != outcomeFound {
			return o
		}
		height, o := w.boxU32(p, 4)
		if o != outcomeFound {
			return o
		}
		if width == 0 || height == 0 {
			return outcomeInvalid
		}
		feats.Width, feats.Height = width, height
		return outcomeFound

	case typePixi:
		if feats.NumChannels != 0 {
			return outcomeFound
		}
		numChannels, o := w.boxU8(p, 0)
		if o != outcomeFound {
			return o
		}
		if numChannels == 0 {
			return outcomeInvalid
		}
		bitDepth, o := w.boxU8(p, 1)
		if o != outcomeFound {
			return o
		}
		for i := int64(1); i < int64(numChannels); i++ {
			b, o := w.boxU8(p, 1+i)
			if o != outcomeFound {
				return o
			}
			if b != bitDepth {
				return outcomeInvalid
			}
		}
		feats.BitDepth = uint32(bitDepth)
		feats.NumChannels = uint32(numChannels)
		return outcomeFound

	case typeAv1C:
		if feats.NumChannels != 0 {
			return outcomeFound
		}
		third, o := w.boxU8(p, 2)
		if o != outcomeFound {
			return o
		}
		highBitdepth := third&0x40 != 0
		twelveBit := third&0x20 != 0
		monochrome := third&0x10 != 0
		if twelveBit && !highBitdepth {
			return outcomeInvalid
		}
		bitDepth := uint32(8)
		switch {
		case highBitdepth && twelveBit:
			bitDepth = 12
		case highBitdepth:
			bitDepth = 10
		}
		numChannels := uint32(3)
		if monochrome {
			numChannels = 1
		}
		feats.BitDepth = bitDepth
		feats.NumChannels = numChannels
		return outcomeFound

	default:
		return outcomeFound
	}
}

// tileFallback implements spec §4.6: searches meta for an iref box, then for
// dimg references whose from_item_ID equals primaryItemID, applying
// extractFeaturesForItem against each to_item_ID until one resolves fully.
// Absence of iref, or of any dimg reference that resolves, is NotFound, not
// an error — the driver already knows dimensions were otherwise incomplete.
func (w *window) tileFallback(meta box, primaryItemID uint32, feats Features) (Features, outcome) {
	iref, o := w.findBoxOfType(meta.contentOffset, meta.contentEnd(), typeIref, outcomeNotFound)
	if o != outcomeFound {
		return feats, o
	}

	idWidth := int64(2)
	if iref.version != 0 {
		idWidth = 4
	}

	pos := iref.contentOffset
	end := iref.contentEnd()
	for pos < end {
		b, o := w.readBox(pos, end)
		if o != outcomeFound {
			return feats, o
		}
		pos += b.size

		if b.typ != typeDimg {
			continue
		}

		fromID, o := w.boxID(b, 0, idWidth)
		if o != outcomeFound {
			return feats, o
		}
		if fromID != primaryItemID {
			continue
		}

		refCount, o := w.boxU16(b, idWidth)
		if o != outcomeFound {
			return feats, o
		}

		refPos := idWidth + 2
		for i := uint16(0); i < refCount; i++ {
			toID, o := w.boxID(b, refPos, idWidth)
			if o != outcomeFound {
				return feats, o
			}
			refPos += idWidth

			tileFeats, to := w.extractFeaturesForItem(meta, toID)
			switch to {
			case outcomeFound:
				return mergeFeatures(feats, tileFeats), outcomeFound
			case outcomeNotFound, outcomeInvalid:
				continue // this tile didn't have it; try the next one
			default:
				return feats, to
			}
		}
	}
	return feats, outcomeNotFound
}

// mergeFeatures fills every zero field of base from tile, leaving fields
// base already knows untouched.
func mergeFeatures(base, tile Features) Features {
	if base.Width == 0 {
		base.Width = tile.Width
	}
	if base.Height == 0 {
		base.Height = tile.Height
	}
	if base.BitDepth == 0 {
		base.BitDepth = tile.BitDepth
	}
	if base.NumChannels == 0 {
		base.NumChannels = tile.NumChannels
	}
	return base
}

// detectAlpha implements spec §4.7: an independent pass over every auxC
// property in ipco, regardless of which item (if any) it is associated
// with, looking for the alpha auxiliary-type URN. Absence of iprp/ipco
// itself — which extractFeaturesForItem would already have rejected earlier
// in the walk if it were missing — is tolerated here too, so this pass can
// never turn a file that resolved features into an error.
func (w *window) detectAlpha(meta box) (bool, outcome) {
	iprp, o := w.findBoxOfType(meta.contentOffset, meta.contentEnd(), typeIprp, outcomeNotFound)
	if o != outcomeFound {
		if o == outcomeNotFound {
			return false, outcomeFound
		}
		return false, o
	}
	ipco, o := w.findBoxOfType(iprp.contentOffset, iprp.contentEnd(), typeIpco, outcomeNotFound)
	if o != outcomeFound {
		if o == outcomeNotFound {
			return false, outcomeFound
		}
		return false, o
	}

	pos := ipco.contentOffset
	end := ipco.contentEnd()
	for pos < end {
		b, o := w.readBox(pos, end)
		if o != outcomeFound {
			return false, o
		}
		pos += b.size

		if b.typ != typeAuxC {
			continue
		}
		o = w.accessContent(b, 0, int64(len(alphaURN)))
		if o == outcomeTruncated {
			return false, outcomeTruncated
		}
		if o != outcomeFound {
			continue // too short to carry the alpha URN; not this one
		}
		if string(w.bytes(b.contentOffset, int64(len(alphaURN)))) == alphaURN {
			return true, outcomeFound
		}
	}
	return false, outcomeFound
}
