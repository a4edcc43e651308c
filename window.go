// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package avifinfo

import "encoding/binary"

// maxBoxCount bounds the number of boxes a single walk may examine.
// Exceeding it always yields outcomeAborted, never unbounded work.
const maxBoxCount = 4096

// maxFileSize is the largest file size this parser accounts for; the format
// it reads never uses 64-bit box sizes, so nothing past this is reachable.
const maxFileSize = 1<<32 - 1

// outcome is the internal five-valued status algebra of spec §4.1. It is
// not an error: discrimination between "try again later" and "give up" is
// the caller's job, and every internal function returns it by value so the
// call sites read as plain case analysis rather than error-wrapping.
type outcome int

const (
	outcomeFound outcome = iota
	outcomeNotFound
	outcomeTruncated
	outcomeInvalid
	outcomeAborted
)

func (o outcome) String() string {
	switch o {
	case outcomeFound:
		return "Found"
	case outcomeNotFound:
		return "NotFound"
	case outcomeTruncated:
		return "Truncated"
	case outcomeInvalid:
		return "Invalid"
	case outcomeAborted:
		return "Aborted"
	default:
		return "outcome(?)"
	}
}

// window is a bounded view over the currently available prefix of a file
// plus the caller's declared total file size. It does not own data; the
// caller retains it for the lifetime of one top-level call.
type window struct {
	data      []byte
	available int64
	total     int64

	boxCount int

	// grow, when non-nil, is consulted by request whenever a read falls
	// within total but past available. It should extend data/available as
	// far as it can and return outcomeFound — even if that falls short of
	// need, in which case request re-derives Truncated/Invalid from the
	// (possibly now-smaller) total itself — or outcomeInvalid if the
	// underlying source failed outright. Buffer-based entry points leave
	// this nil; the streaming adapter in stream.go sets it.
	grow func(need int64) outcome
}

// newWindow clamps total to the largest size this format supports and
// derives available from however much of data actually fits within it.
func newWindow(data []byte, total uint64) *window {
	if total > maxFileSize {
		total = maxFileSize
	}
	available := int64(len(data))
	if available > int64(total) {
		available = int64(total)
	}
	return &window{data: data[:available], available: available, total: int64(total)}
}

// withinTotal reports whether [offset, offset+length) lies inside the
// declared file size, regardless of whether the bytes are available yet.
func (w *window) withinTotal(offset, length int64) bool {
	return offset >= 0 && length >= 0 && offset+length <= w.total
}

// withinAvailable reports whether [offset, offset+length) has actually been
// supplied by the caller.
func (w *window) withinAvailable(offset, length int64) bool {
	return offset >= 0 && length >= 0 && offset+length <= w.available
}

// request classifies a read of length bytes at offset: Invalid if it runs
// past the declared file size, Truncated if it is logically in-bounds but
// not yet supplied, Found otherwise. These two failure modes must never be
// confused: truncation is retryable, invalidity is terminal.
func (w *window) request(offset, length int64) outcome {
	if !w.withinTotal(offset, length) {
		return outcomeInvalid
	}
	if w.withinAvailable(offset, length) {
		return outcomeFound
	}
	if w.grow == nil {
		return outcomeTruncated
	}
	if o := w.grow(offset + length); o != outcomeFound {
		return o
	}
	// grow may have discovered the stream's true end and shrunk total;
	// re-check both bounds against the now-final values.
	if !w.withinTotal(offset, length) {
		return outcomeInvalid
	}
	if !w.withinAvailable(offset, length) {
		return outcomeTruncated
	}
	return outcomeFound
}

func (w *window) bytes(offset, length int64) []byte {
	return w.data[offset : offset+length]
}

func (w *window) u8(offset int64) (uint8, outcome) {
	if o := w.request(offset, 1); o != outcomeFound {
		return 0, o
	}
	return w.data[offset], outcomeFound
}

func (w *window) u16(offset int64) (uint16, outcome) {
	if o := w.request(offset, 2); o != outcomeFound {
		return 0, o
	}
	return binary.BigEndian.Uint16(w.data[offset : offset+2]), outcomeFound
}

func (w *window) u32(offset int64) (uint32, outcome) {
	if o := w.request(offset, 4); o != outcomeFound {
		return 0, o
	}
	return binary.BigEndian.Uint32(w.data[offset : offset+4]), outcomeFound
}

// bumpBoxCount increments the global per-walk box budget of spec §3 and
// reports Aborted once it is exhausted.
func (w *window) bumpBoxCount() outcome {
	w.boxCount++
	if w.boxCount >= maxBoxCount {
		return outcomeAborted
	}
	return outcomeFound
}

// accessContent checks that n bytes are available at relOffset inside b's
// content: Invalid if they don't fit the box's declared content_size,
// Truncated if they fit logically but are not yet in the window.
func (w *window) accessContent(b box, relOffset, n int64) outcome {
	if relOffset < 0 || n < 0 || relOffset+n > b.contentSize {
		return outcomeInvalid
	}
	return w.request(b.contentOffset+relOffset, n)
}
