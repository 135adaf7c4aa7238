// Package pkgident derives the store identifier for a package from its
// name, version, and content hash.
package pkgident

import (
	"encoding/base32"
	"strings"

	"github.com/iohannesarnold/yafpm/internal/pkghash"
)

// base32Nopad is the unpadded, uppercase RFC4648 base32 alphabet used for
// package identifiers. Upper case and no padding keep identifiers
// filesystem-safe and of fixed, predictable length for a given hash size.
var base32Nopad = base32.StdEncoding.WithPadding(base32.NoPadding)

// Of returns the store identifier for a package: "<name>-<version>-<hash>",
// where <hash> is the base32-nopad encoding of the content hash. This is a
// pure function of its three inputs; it never consults the filesystem.
func Of(name, version string, hash pkghash.Hash) string {
	var b strings.Builder
	b.Grow(len(name) + len(version) + 2 + base32Nopad.EncodedLen(pkghash.Size))
	b.WriteString(name)
	b.WriteByte('-')
	b.WriteString(version)
	b.WriteByte('-')
	b.WriteString(base32Nopad.EncodeToString(hash[:]))
	return b.String()
}
