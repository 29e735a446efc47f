package herder

import "github.com/YasinFaraji/herder/hash"

// Transaction is the minimal surface Herder needs from a transaction; full
// transaction semantics are an out-of-scope collaborator (spec.md §1).
type Transaction interface {
	// FullHash is the content hash used for duplicate detection and removal.
	FullHash() hash.Digest
	// SourceAccount identifies the paying account, used for fee-capacity checks.
	SourceAccount() NodeID
	// CheckValid runs the transaction layer's own structural/semantic checks.
	CheckValid() error
}

// TxSet is an ordered batch of transactions proposed as a slot's content
// (spec.md §3).
type TxSet interface {
	// Hash is the content hash of this set, computed by the tx layer.
	Hash() hash.Digest
	// PreviousLedgerHash is the ledger hash this set was built against.
	PreviousLedgerHash() hash.Digest
	// Transactions returns the set's transactions in canonical order.
	Transactions() []Transaction
	// CheckValid validates the set against the given ledger snapshot.
	CheckValid(ledger LedgerHeader) error
}
