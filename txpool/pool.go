// Package txpool implements the received-but-uncommitted transaction pool:
// generational buckets, duplicate detection, and the source-account fee
// capacity check (spec.md §4.4). It generalizes the teacher's
// module/mempool.stdmap map-backed pool (a single map[Identifier]Entity)
// from one bucket to the fixed-depth generational scheme spec.md §3
// describes for receivedTransactions.
package txpool

import (
	"github.com/YasinFaraji/herder/hash"
	"github.com/YasinFaraji/herder/herder"
)

// NumBuckets is N in spec.md §3/§4.4: newest arrivals land in bucket 0;
// bucket N-1 is the oldest and is rebroadcast before being discarded.
const NumBuckets = 4

// FeeSource reports the ledger's current per-operation fee, used by the
// fee-capacity check (spec.md §4.4 step 3).
type FeeSource interface {
	TxFee() uint32
}

// Ledger is the balance-reading slice of the ledger collaborator the pool
// needs (spec.md §4.4 step 3).
type Ledger interface {
	AccountBalance(account herder.NodeID) uint64
}

// Pool is the received-transaction pool of spec.md §4.4. It is not safe for
// concurrent use: like every Herder component it is owned by the single
// event loop (spec.md §5).
type Pool struct {
	buckets [NumBuckets]map[hash.Digest]herder.Transaction
	ledger  Ledger
	fees    FeeSource
}

// New constructs an empty Pool with all buckets allocated.
func New(ledger Ledger, fees FeeSource) *Pool {
	p := &Pool{ledger: ledger, fees: fees}
	for i := range p.buckets {
		p.buckets[i] = make(map[hash.Digest]herder.Transaction)
	}
	return p
}

// RecvTransaction implements spec.md §4.4 recvTransaction: rejects
// duplicates (invariant 5), rejects structurally invalid transactions, and
// rejects transactions the source account cannot afford alongside every
// other pending transaction from the same account, otherwise appends to
// bucket 0.
func (p *Pool) RecvTransaction(tx herder.Transaction) bool {
	txID := tx.FullHash()
	source := tx.SourceAccount()

	var numOthers int
	for _, bucket := range p.buckets {
		if _, ok := bucket[txID]; ok {
			return false
		}
		for _, other := range bucket {
			if other.SourceAccount() == source {
				numOthers++
			}
		}
	}

	if err := tx.CheckValid(); err != nil {
		return false
	}

	fee := p.fees.TxFee()
	required := uint64(numOthers+1) * uint64(fee)
	if p.ledger.AccountBalance(source) < required {
		return false
	}

	p.buckets[0][txID] = tx
	return true
}

// RemoveReceivedTx implements spec.md §4.4 removeReceivedTx: at most one
// entry with the given hash exists across all buckets by invariant 5, so
// the first match found is the only one.
func (p *Pool) RemoveReceivedTx(tx herder.Transaction) {
	txID := tx.FullHash()
	for _, bucket := range p.buckets {
		if _, ok := bucket[txID]; ok {
			delete(bucket, txID)
			return
		}
	}
}

// Rotate implements spec.md §4.4 rotate, called on externalization: the
// caller is expected to have already read OldestBucket for rebroadcast
// (spec.md §4.6 step 6), since this call discards it. Every bucket shifts
// one generation older and a fresh bucket 0 is allocated, so a transaction
// that survives NumBuckets-1 rotations without being removed falls off the
// end entirely on the next one.
func (p *Pool) Rotate() {
	for n := NumBuckets - 1; n >= 1; n-- {
		p.buckets[n] = p.buckets[n-1]
	}
	p.buckets[0] = make(map[hash.Digest]herder.Transaction)
}

// OldestBucket returns the contents of bucket N-1, for the caller to
// rebroadcast before calling Rotate (spec.md §4.6 step 6).
func (p *Pool) OldestBucket() []herder.Transaction {
	bucket := p.buckets[NumBuckets-1]
	txs := make([]herder.Transaction, 0, len(bucket))
	for _, tx := range bucket {
		txs = append(txs, tx)
	}
	return txs
}

// All returns every pending transaction across all buckets, in no
// particular order, for building a fresh TxSet on trigger (spec.md §4.6
// step 1).
func (p *Pool) All() []herder.Transaction {
	var txs []herder.Transaction
	for _, bucket := range p.buckets {
		for _, tx := range bucket {
			txs = append(txs, tx)
		}
	}
	return txs
}

// Size returns the total number of transactions across all buckets.
func (p *Pool) Size() int {
	var n int
	for _, bucket := range p.buckets {
		n += len(bucket)
	}
	return n
}
