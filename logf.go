// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package avifinfo

// logf is this package's diagnostic hook, mirroring the teacher's
// Options.Warnf (imagemeta.go): a plain callback, defaulting to silence, not
// part of the public Get/GetWithSize/GetFromSource contract. It can only be
// replaced through SetLogf, which exists only in builds with the debug tag
// (logf_debug.go).
var logf = func(string, ...any) {}
