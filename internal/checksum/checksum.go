// Package checksum fingerprints note contents and corpus states.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Names returns a digest of a path → names table that does not depend on
// map iteration order or on the order of names within a path.
func Names(names map[string][]string) string {
	paths := make([]string, 0, len(names))
	for p := range names {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var b strings.Builder
	for _, p := range paths {
		ns := append([]string(nil), names[p]...)
		sort.Strings(ns)
		b.WriteString(p)
		b.WriteByte(0)
		b.WriteString(strings.Join(ns, "\x1f"))
		b.WriteByte('\n')
	}
	return Sum([]byte(b.String()))
}
