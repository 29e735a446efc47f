package slot

import (
	"sort"

	"github.com/YasinFaraji/herder/hash"
	"github.com/YasinFaraji/herder/herder"
)

// pendingTxSet is the concrete herder.TxSet SlotDriver builds by snapshotting
// the TxPool on each trigger fire (spec.md §4.6 step 1). Transactions are
// sorted by hash before hashing so the set's content hash - and therefore
// the proposed BallotValue - is independent of TxPool's iteration order.
type pendingTxSet struct {
	txs                []herder.Transaction
	previousLedgerHash hash.Digest
	digest             hash.Digest
}

func newPendingTxSet(txs []herder.Transaction, previousLedgerHash [32]byte) *pendingTxSet {
	sorted := make([]herder.Transaction, len(txs))
	copy(sorted, txs)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].FullHash().Less(sorted[j].FullHash())
	})

	parts := make([][]byte, 0, len(sorted)+1)
	prev := hash.Digest(previousLedgerHash)
	parts = append(parts, prev[:])
	for _, tx := range sorted {
		h := tx.FullHash()
		parts = append(parts, h[:])
	}

	return &pendingTxSet{
		txs:                sorted,
		previousLedgerHash: prev,
		digest:             hash.SumAll(parts...),
	}
}

func (s *pendingTxSet) Hash() hash.Digest               { return s.digest }
func (s *pendingTxSet) PreviousLedgerHash() hash.Digest { return s.previousLedgerHash }
func (s *pendingTxSet) Transactions() []herder.Transaction {
	return s.txs
}

// CheckValid runs each transaction's own structural check and requires the
// set was built against the ledger's current previous-hash (spec.md §4.5
// step 5, §3 TxSet invariants).
func (s *pendingTxSet) CheckValid(ledger herder.LedgerHeader) error {
	if s.previousLedgerHash != hash.Digest(ledger.Hash) {
		return herder.NewSlotBoundsErrorf("tx set built against stale ledger hash")
	}
	for _, tx := range s.txs {
		if err := tx.CheckValid(); err != nil {
			return err
		}
	}
	return nil
}
