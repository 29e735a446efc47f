// Package ballot implements BallotCodec and ValueOrdering: encoding,
// signing, verifying and comparing Herder's opaque ballot value
// (spec.md §4.1, §4.2).
package ballot

import (
	"encoding/binary"

	"github.com/YasinFaraji/herder/hash"
	"github.com/YasinFaraji/herder/herder"
)

// wireLen is the canonical encoded length of a SignedBallotValue:
// 32-byte hash + 8-byte close time + 4-byte fee + 32-byte signer + 64-byte
// signature (spec.md §4.1, §6 "deterministic, fixed-width, length-prefixed").
const wireLen = 32 + 8 + 4 + 32 + 2 + 64 // trailing 2 bytes: uint16 signature length prefix

// Sign produces a SignedBallotValue: signerPublicKey is filled from
// signer.PublicKey(), and signature covers only value's canonical bytes
// (spec.md §4.1).
func Sign(value herder.BallotValue, signer herder.Signer) herder.SignedBallotValue {
	canonical := value.Canonical()
	return herder.SignedBallotValue{
		Value:           value,
		SignerPublicKey: signer.PublicKey(),
		Signature:       signer.Sign(canonical),
	}
}

// Verify re-derives signed.Value's canonical bytes and checks the signature
// against the embedded public key (spec.md §4.1).
func Verify(signed herder.SignedBallotValue, verifier herder.Verifier) bool {
	canonical := signed.Value.Canonical()
	return verifier.Verify(signed.SignerPublicKey, canonical, signed.Signature)
}

// Encode serializes signed to its canonical wire form: a deterministic,
// fixed-width, length-prefixed byte string (spec.md §6).
func Encode(signed herder.SignedBallotValue) []byte {
	buf := make([]byte, wireLen+len(signed.Signature))
	copy(buf[0:44], signed.Value.Canonical())
	copy(buf[44:76], signed.SignerPublicKey[:])
	binary.LittleEndian.PutUint16(buf[76:78], uint16(len(signed.Signature)))
	copy(buf[78:], signed.Signature)
	return buf[:78+len(signed.Signature)]
}

// Decode parses a byte blob produced by Encode. A malformed blob returns a
// herder.DecodeError, treated as a validation failure everywhere it is
// consulted (spec.md §4.1, §7).
func Decode(data []byte) (herder.SignedBallotValue, error) {
	if len(data) < 78 {
		return herder.SignedBallotValue{}, herder.NewDecodeErrorf("ballot value: blob too short (%d bytes)", len(data))
	}
	var txSetHash hash.Digest
	copy(txSetHash[:], data[0:32])
	closeTime := binary.LittleEndian.Uint64(data[32:40])
	baseFee := binary.LittleEndian.Uint32(data[40:44])

	var signer herder.NodeID
	copy(signer[:], data[44:76])

	sigLen := int(binary.LittleEndian.Uint16(data[76:78]))
	if len(data) != 78+sigLen {
		return herder.SignedBallotValue{}, herder.NewDecodeErrorf("ballot value: signature length mismatch (declared %d, have %d)", sigLen, len(data)-78)
	}
	signature := make([]byte, sigLen)
	copy(signature, data[78:])

	signed, err := herder.NewSignedBallotValue(herder.UntrustedSignedBallotValue{
		Value: herder.BallotValue{
			TxSetHash: txSetHash,
			CloseTime: closeTime,
			BaseFee:   baseFee,
		},
		SignerPublicKey: signer,
		Signature:       signature,
	})
	if err != nil {
		return herder.SignedBallotValue{}, err
	}
	return *signed, nil
}
