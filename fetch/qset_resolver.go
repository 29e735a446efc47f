package fetch

import "github.com/YasinFaraji/herder/herder"

// QSetResolver is a single Resolver specialized to herder.QuorumSet,
// unlike the TxSet mailbox it is not double-buffered: quorum sets are
// small, rarely-changing, and not tied to a particular slot's lifecycle
// (spec.md §4.3).
type QSetResolver struct {
	resolver *Resolver
}

// NewQSetResolver constructs a QSetResolver, seeding it with the local
// quorum set so self-lookups never block on the network (spec.md §4.7).
func NewQSetResolver(network Network, localHash [32]byte, local herder.QuorumSet) *QSetResolver {
	r := NewResolver(network)
	r.Deliver(localHash, local)
	return &QSetResolver{resolver: r}
}

// Fetch resolves hash to a herder.QuorumSet.
func (q *QSetResolver) Fetch(hash [32]byte, askNetwork bool) (herder.QuorumSet, bool) {
	item, ok := q.resolver.Fetch(hash, askNetwork)
	if !ok {
		return herder.QuorumSet{}, false
	}
	return item.(herder.QuorumSet), true
}

// Await parks a continuation for hash.
func (q *QSetResolver) Await(hash [32]byte, cb func(herder.QuorumSet)) {
	q.resolver.Await(hash, func(item any) { cb(item.(herder.QuorumSet)) })
}

// Deliver stores qs under hash.
func (q *QSetResolver) Deliver(hash [32]byte, qs herder.QuorumSet) bool {
	return q.resolver.Deliver(hash, qs)
}

// MarkAbsent tells the network peer cannot supply hash.
func (q *QSetResolver) MarkAbsent(hash [32]byte, peer [32]byte) {
	q.resolver.MarkAbsent(hash, peer)
}
