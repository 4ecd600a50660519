package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"sort"
)

// Hash computes a SHA-256 hash of the input, as a 64-char hex string.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// CompileKey digests a compilation unit: the resolver identity plus the
// contents of every input file (the ``.in`` file and everything it
// includes). Paths are sorted so the key is independent of discovery
// order. Unreadable files contribute their path only, which still
// changes the key when a file appears or disappears.
func CompileKey(resolver string, inputPaths []string) string {
	paths := make([]string, len(inputPaths))
	copy(paths, inputPaths)
	sort.Strings(paths)

	h := sha256.New()
	h.Write([]byte(resolver))
	for _, path := range paths {
		h.Write([]byte{0})
		h.Write([]byte(path))
		h.Write([]byte{0})
		if data, err := os.ReadFile(path); err == nil {
			h.Write(data)
		}
	}
	return "compile:" + hex.EncodeToString(h.Sum(nil))
}
