package herder

import (
	"encoding/binary"

	"github.com/YasinFaraji/herder/hash"
)

// BallotValue is the opaque-to-FBA payload Herder proposes per slot: a
// transaction set plus close time and fee (spec.md §3).
type BallotValue struct {
	TxSetHash hash.Digest
	CloseTime uint64
	BaseFee   uint32
}

// Canonical serializes v to the deterministic, fixed-width byte string its
// signature covers: 32-byte hash, 8-byte close time, 4-byte fee, all
// little-endian. Decoding a foreign blob into a BallotValue never goes
// through this type directly - see BallotCodec in package ballot - so
// Canonical has no failure mode of its own.
func (v BallotValue) Canonical() []byte {
	buf := make([]byte, 32+8+4)
	copy(buf[0:32], v.TxSetHash[:])
	binary.LittleEndian.PutUint64(buf[32:40], v.CloseTime)
	binary.LittleEndian.PutUint32(buf[40:44], v.BaseFee)
	return buf
}

// SignedBallotValue is a BallotValue together with the signer's identity
// and a signature covering only the canonical serialization of Value
// (spec.md §3).
type SignedBallotValue struct {
	Value           BallotValue
	SignerPublicKey NodeID
	Signature       []byte
}

// UntrustedSignedBallotValue is the input-only representation used for
// construction, following the teacher's untrusted-input constructor idiom
// (consensus/hotstuff/model/vote.go's UntrustedVote): it forces callers to
// name fields explicitly and funnels all construction through NewSignedBallotValue,
// so a SignedBallotValue can never exist with an empty signature or signer.
type UntrustedSignedBallotValue SignedBallotValue

// NewSignedBallotValue validates and constructs a SignedBallotValue. It does
// NOT verify the signature - that is BallotCodec.Verify's job, since
// verification requires the signing-primitive collaborator. NewSignedBallotValue
// only rejects structurally incomplete input.
func NewSignedBallotValue(untrusted UntrustedSignedBallotValue) (*SignedBallotValue, error) {
	if untrusted.SignerPublicKey.IsZero() {
		return nil, NewDecodeErrorf("signed ballot value: signer public key must not be zero")
	}
	if len(untrusted.Signature) == 0 {
		return nil, NewDecodeErrorf("signed ballot value: signature must not be empty")
	}
	sbv := SignedBallotValue(untrusted)
	return &sbv, nil
}

// FBABallot is the ballot FBA carries: a counter plus an opaque value that
// decodes to a SignedBallotValue (spec.md §3).
type FBABallot struct {
	Counter uint32
	Value   []byte
}
