// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package avifinfo

// Features contains the four values this parser exists to extract. It is
// cleared to all-zero on entry to every public call, and stays all-zero on
// any outcome other than success.
type Features struct {
	Width       uint32
	Height      uint32
	BitDepth    uint32
	NumChannels uint32
}

// allKnown reports whether every field has been discovered.
func (f Features) allKnown() bool {
	return f.Width > 0 && f.Height > 0 && f.BitDepth > 0 && f.NumChannels > 0
}

// hasDimensions reports whether width and height are known, independent of
// bit depth and channel count — the condition spec §4.5 uses to decide
// between NotFound (try tiles) and Invalid (no image here at all).
func (f Features) hasDimensions() bool {
	return f.Width > 0 && f.Height > 0
}
