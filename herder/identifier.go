package herder

import "encoding/hex"

// NodeID identifies a node participating in the FBA network: a public key
// or a content hash thereof, depending on the signing primitive the caller
// wires in (an out-of-scope collaborator per the signing-primitive
// boundary).
type NodeID [32]byte

// ZeroNodeID is the NodeID of a watch-only node (no validation key).
var ZeroNodeID = NodeID{}

// IsZero reports whether n is the watch-only sentinel.
func (n NodeID) IsZero() bool {
	return n == ZeroNodeID
}

// String returns the hex encoding of the node id.
func (n NodeID) String() string {
	return hex.EncodeToString(n[:])
}
