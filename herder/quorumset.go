package herder

import (
	"sort"

	"github.com/YasinFaraji/herder/hash"
)

// QuorumSet is the local node's FBA trust configuration (spec.md §3).
type QuorumSet struct {
	Threshold  uint32
	Validators map[NodeID]struct{}
}

// NewQuorumSet builds a QuorumSet from a validator list.
func NewQuorumSet(threshold uint32, validators []NodeID) QuorumSet {
	qs := QuorumSet{
		Threshold:  threshold,
		Validators: make(map[NodeID]struct{}, len(validators)),
	}
	for _, v := range validators {
		qs.Validators[v] = struct{}{}
	}
	return qs
}

// Contains reports whether id is a validator in the quorum set.
func (q QuorumSet) Contains(id NodeID) bool {
	_, ok := q.Validators[id]
	return ok
}

// Hash computes the content hash HerderFacade uses as the QSet mailbox key:
// validators are sorted first since Validators is a map and Go map
// iteration order is not stable (spec.md §4.3, §4.7 "seeds the QSet
// mailbox with the local quorum set").
func (q QuorumSet) Hash() hash.Digest {
	ids := make([]NodeID, 0, len(q.Validators))
	for id := range q.Validators {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return string(ids[i][:]) < string(ids[j][:])
	})

	var threshold [4]byte
	threshold[0] = byte(q.Threshold)
	threshold[1] = byte(q.Threshold >> 8)
	threshold[2] = byte(q.Threshold >> 16)
	threshold[3] = byte(q.Threshold >> 24)

	parts := make([][]byte, 0, len(ids)+1)
	parts = append(parts, threshold[:])
	for _, id := range ids {
		parts = append(parts, id[:])
	}
	return hash.SumAll(parts...)
}

// LedgerHeader is a read-only snapshot of the last closed ledger (spec.md §3).
type LedgerHeader struct {
	LedgerSeq uint64
	Hash      [32]byte
	CloseTime uint64
}
