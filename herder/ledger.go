package herder

// Ledger is the ledger-apply collaborator (spec.md §6): Herder commits
// externalized values to it and reads fee/balance/header state from it.
type Ledger interface {
	// ExternalizeValue hands the finalized set to the ledger layer, which
	// may start a sync if it falls behind (spec.md §4.6 step 4).
	ExternalizeValue(set TxSet)
	// TxFee returns the current per-operation fee the ledger charges.
	TxFee() uint32
	// LastClosedLedgerHeader returns the last closed ledger's header snapshot.
	LastClosedLedgerHeader() LedgerHeader
	// AccountBalance returns the spendable balance of account, used for the
	// TxPool fee-capacity check (spec.md §4.4 step 3).
	AccountBalance(account NodeID) uint64
}

// Signer is the signing-primitive collaborator (spec.md §1): BallotCodec
// signs/verifies through it rather than embedding a concrete scheme.
type Signer interface {
	// PublicKey returns the signer's public identity.
	PublicKey() NodeID
	// Sign returns a signature over data.
	Sign(data []byte) []byte
	// IsZero reports whether this is the watch-only sentinel key
	// (spec.md §4.5 step 5, §6 VALIDATION_KEY).
	IsZero() bool
}

// Verifier checks a signature against a public key, the counterpart to
// Signer.Sign (spec.md §4.1).
type Verifier interface {
	Verify(publicKey NodeID, data []byte, signature []byte) bool
}
