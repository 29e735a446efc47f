// Package hash provides the collision-resistant 256-bit content hash used
// throughout Herder: ballot-value canonical digests, the king-election rank
// function, and full transaction hashes.
package hash

import (
	"encoding/hex"

	"golang.org/x/crypto/sha3"
)

// Size is the length in bytes of a Digest.
const Size = 32

// Digest is a 256-bit content hash.
type Digest [Size]byte

// String returns the hex encoding of the digest.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// Less reports whether d is strictly less than other under big-endian
// byte-lexicographic order. This is the total order ValueOrdering's king
// election compares ranks with.
func (d Digest) Less(other Digest) bool {
	for i := range d {
		if d[i] != other[i] {
			return d[i] < other[i]
		}
	}
	return false
}

// IsZero reports whether d is the zero digest.
func (d Digest) IsZero() bool {
	return d == Digest{}
}

// Sum computes the SHA3-256 digest of data.
func Sum(data []byte) Digest {
	var d Digest
	h := sha3.New256()
	h.Write(data)
	copy(d[:], h.Sum(nil))
	return d
}

// SumAll computes the SHA3-256 digest of the concatenation of parts, without
// allocating an intermediate concatenated buffer.
func SumAll(parts ...[]byte) Digest {
	var d Digest
	h := sha3.New256()
	for _, p := range parts {
		h.Write(p)
	}
	copy(d[:], h.Sum(nil))
	return d
}
