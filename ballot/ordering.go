package ballot

import (
	"bytes"
	"encoding/binary"

	"github.com/YasinFaraji/herder/hash"
	"github.com/YasinFaraji/herder/herder"
)

// Rank computes H(slotIndex || ballotCounter || signer), the single
// function both king election (package validator) and Compare's tie-break
// are built on, per the design note in spec.md §9 ("implement both through
// a single rank(slot, counter, signer) = H(...) function").
func Rank(slotIndex uint64, ballotCounter uint32, signer herder.NodeID) hash.Digest {
	var buf [8 + 4]byte
	binary.LittleEndian.PutUint64(buf[0:8], slotIndex)
	binary.LittleEndian.PutUint32(buf[8:12], ballotCounter)
	return hash.SumAll(buf[:], signer[:])
}

// Compare implements ValueOrdering on two already-verified signed values
// (spec.md §4.2). It is defined only on values whose signature has already
// been checked by Verify.
//
//  1. Compute h_i = Rank(slotIndex, ballotCounter, signerPublicKey) for each
//     value. The lower rank wins: its value is the "king" for this
//     (slot, counter) pair.
//  2. On a rank tie (both ranks equal, e.g. comparing a value against
//     itself), break by lexicographic comparison of the canonical
//     serialization of the BallotValue.
//
// Compare follows the strict trichotomy (-1/0/+1) named in spec.md §4.2.
// The source this spec was distilled from returns -1 from both branches of
// the tie-break (spec.md §9's "open question / suspected bug"); this
// implementation resolves that by returning +1 on the second branch, never
// -1 twice, so Compare is a valid total order (antisymmetric and usable as
// a sort.Interface-style comparator).
func Compare(slotIndex uint64, ballotCounter uint32, v1, v2 herder.SignedBallotValue) int {
	h1 := Rank(slotIndex, ballotCounter, v1.SignerPublicKey)
	h2 := Rank(slotIndex, ballotCounter, v2.SignerPublicKey)

	if h1.Less(h2) {
		return -1
	}
	if h2.Less(h1) {
		return 1
	}

	c1 := v1.Value.Canonical()
	c2 := v2.Value.Canonical()
	switch bytes.Compare(c1, c2) {
	case -1:
		return -1
	case 1:
		return 1
	default:
		return 0
	}
}

// IsKing reports whether candidate minimizes Rank(slotIndex, ballotCounter, ·)
// among every validator in quorum (spec.md §4.5 step 6, glossary "King").
// A quorum set with no validators has no king: IsKing returns false for any
// candidate.
func IsKing(slotIndex uint64, ballotCounter uint32, candidate herder.NodeID, quorum herder.QuorumSet) bool {
	if len(quorum.Validators) == 0 {
		return false
	}
	candidateRank := Rank(slotIndex, ballotCounter, candidate)
	for v := range quorum.Validators {
		if Rank(slotIndex, ballotCounter, v).Less(candidateRank) {
			return false
		}
	}
	return true
}
