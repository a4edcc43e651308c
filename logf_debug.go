// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

//go:build debug

package avifinfo

// SetLogf installs a diagnostic callback for the duration of the process.
// Only built with -tags debug; ordinary builds and the public API surface
// have no way to observe this package's internal walk decisions.
func SetLogf(f func(string, ...any)) {
	if f == nil {
		f = func(string, ...any) {}
	}
	logf = f
}
