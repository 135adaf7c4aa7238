// Package pkg defines the Package value used to describe a build's own
// identity and its dependencies.
package pkg

import (
	"github.com/iohannesarnold/yafpm/internal/pkghash"
	"github.com/iohannesarnold/yafpm/internal/pkgident"
)

// Package identifies a built (or to-be-built) artifact in the store: a
// name, a version, the expected content hash of its output, and the
// ordered list of packages it depends on.
//
// Deps is an ordered sequence, not a set: the same dependency may appear
// more than once (e.g. reached via two different paths), and this package
// makes no attempt to deduplicate it. Deduplication, if wanted, is the
// caller's responsibility.
type Package struct {
	Name    string
	Version string
	Hash    pkghash.Hash
	Deps    []Package
}

// Ident returns the store identifier for p, ignoring its dependencies.
func (p Package) Ident() string {
	return pkgident.Of(p.Name, p.Version, p.Hash)
}
