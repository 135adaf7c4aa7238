// Package pkghash implements the content digest used throughout yafpm to
// identify package outputs and verify build results.
//
// The digest algorithm is BLAKE2s-256, fixed system-wide: it is not a
// per-package or per-build parameter, so a single Hash type suffices for
// both the expected value declared in a build file and the value computed
// from an actual build output.
package pkghash

import (
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2s"
)

// Size is the length in bytes of a yafpm content hash.
const Size = blake2s.Size

// Hash is a BLAKE2s-256 digest.
type Hash [Size]byte

// String returns the lowercase hex encoding of h.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// MarshalText implements encoding.TextMarshaler.
func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. It rejects input of
// the wrong length before attempting to decode, so a truncated or
// over-long hex string fails with a clear error rather than a generic
// decoding error.
func (h *Hash) UnmarshalText(text []byte) error {
	if len(text) != Size*2 {
		return fmt.Errorf("pkghash: invalid hash length %d, want %d hex characters", len(text), Size*2)
	}
	decoded, err := hex.DecodeString(string(text))
	if err != nil {
		return fmt.Errorf("pkghash: invalid hash encoding: %w", err)
	}
	copy(h[:], decoded)
	return nil
}

// ParseHash decodes a hex-encoded digest string into a Hash.
func ParseHash(s string) (Hash, error) {
	var h Hash
	if err := h.UnmarshalText([]byte(s)); err != nil {
		return Hash{}, err
	}
	return h, nil
}

// Hasher accepts bytes to be hashed: the Write method of hash.Hash, which
// *Digest implements.
type Hasher interface {
	Write(p []byte) (int, error)
}

// New returns a fresh Digest. Callers write bytes via its Write method and
// obtain the final digest via Sum.
func New() *Digest {
	h, _ := blake2s.New256(nil)
	return &Digest{h: h}
}

// Digest wraps the underlying blake2s state so callers outside this
// package never depend on the concrete hash implementation.
type Digest struct {
	h interface {
		Write(p []byte) (int, error)
		Sum(b []byte) []byte
	}
}

// Write implements io.Writer / Hasher.
func (d *Digest) Write(p []byte) (int, error) {
	return d.h.Write(p)
}

// Sum finalizes the digest into a Hash.
func (d *Digest) Sum() Hash {
	var out Hash
	copy(out[:], d.h.Sum(nil))
	return out
}

// MismatchError reports that a computed hash did not match an expected
// one. It carries both values so callers can produce a diagnostic without
// re-deriving either side.
type MismatchError struct {
	Expected Hash
	Found    Hash
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("hash mismatch: expected %s, found %s", e.Expected, e.Found)
}

// Verify runs fn against input, accumulating bytes into a fresh Digest,
// and compares the result against expected. It returns fn's own result
// value alongside a *MismatchError if the digests differ.
//
// This mirrors ItemHash::verify_hash_from_fn in the system this package's
// behavior is modeled on: a fresh hasher is used for every verification so
// verification never shares accumulated state across calls.
func Verify[S any](expected Hash, fn func(input string, d *Digest) (S, error), input string) (S, error) {
	d := New()
	result, err := fn(input, d)
	if err != nil {
		var zero S
		return zero, err
	}
	found := d.Sum()
	if found != expected {
		return result, &MismatchError{Expected: expected, Found: found}
	}
	return result, nil
}
