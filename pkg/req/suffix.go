package req

import (
	"path/filepath"
	"strings"
)

// Requirements file endings. A ".in" source file has a ".lock" sibling
// produced by the external compiler and a ".unlock" sibling produced by
// local flattening.
const (
	SuffixIn       = ".in"
	SuffixLocked   = ".lock"
	SuffixUnlocked = ".unlock"

	// SuffixShared marks a requirements file used by more than one venv,
	// e.g. "pins.shared.in". The marker survives suffix replacement.
	SuffixShared = ".shared"
)

// Endings lists the recognized last suffixes.
var Endings = []string{SuffixIn, SuffixLocked, SuffixUnlocked}

// HasEnding reports whether name ends in one of the recognized endings.
func HasEnding(name string) bool {
	for _, ending := range Endings {
		if strings.HasSuffix(name, ending) {
			return true
		}
	}
	return false
}

// IsShared reports whether the file name marks requirements shared by
// more than one venv: the suffix before the ending is ".shared".
// A name without any suffix (a bare config relpath) is not shared.
func IsShared(name string) bool {
	if filepath.Ext(name) == "" {
		return false
	}
	stem := name
	if HasEnding(name) {
		stem = strings.TrimSuffix(name, filepath.Ext(name))
	}
	return filepath.Ext(stem) == SuffixShared
}

// ReplaceSuffixLast swaps the last suffix of path for suffixLast,
// preserving a ".shared" marker: "pins.shared.in" with ".lock" becomes
// "pins.shared.lock". A path without an ending gets the suffix appended.
func ReplaceSuffixLast(path, suffixLast string) string {
	if !HasEnding(filepath.Base(path)) {
		return path + suffixLast
	}
	trimmed := strings.TrimSuffix(path, filepath.Ext(path))
	return trimmed + suffixLast
}

// StripEnding removes a recognized last suffix, leaving any ".shared"
// marker in place. Used to turn a config relpath plus ending back into
// the declared stem.
func StripEnding(path string) string {
	if HasEnding(filepath.Base(path)) {
		return strings.TrimSuffix(path, filepath.Ext(path))
	}
	return path
}
