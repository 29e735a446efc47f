// Package fetch implements the dependency-fetch mailbox: a cache of
// resolved items keyed by content hash, plus a waiter map of continuations
// that fire when a pending hash is delivered (spec.md §4.3).
package fetch

// Network issues outbound requests for a hash when a resolver misses its
// cache; it is the overlay collaborator narrowed to fetch concerns
// (spec.md §4.3, §6).
type Network interface {
	// Request asks the network for the item identified by hash.
	Request(hash [32]byte)
	// MarkAbsent tells the network peer cannot supply hash, so it rotates
	// to another peer on the next Request (spec.md §4.3 markAbsent).
	MarkAbsent(hash [32]byte, peer [32]byte)
}

// Resolver is a generic cache-plus-waiters dependency resolver, backing
// both the TxSet and QSet mailboxes (spec.md §4.3). It generalizes the
// teacher's module/mempool.Mempool[K, V] cache interface with the
// continuation-queue half borrowed from the teacher's vote-aggregator
// pending-item pattern.
//
// Resolver is not safe for concurrent use: like every Herder component, it
// is owned by the single event loop (spec.md §5).
type Resolver struct {
	network Network
	cache   map[[32]byte]any
	waiters map[[32]byte][]func(any)
	stopped bool
}

// NewResolver constructs an empty Resolver backed by network for cache
// misses when askNetwork is requested.
func NewResolver(network Network) *Resolver {
	return &Resolver{
		network: network,
		cache:   make(map[[32]byte]any),
		waiters: make(map[[32]byte][]func(any)),
	}
}

// Fetch returns the cached item for hash if resident. If absent and
// askNetwork is set, it issues a network request; the caller is expected to
// enqueue a continuation via Await when item, ok is false (spec.md §4.3 fetch).
func (r *Resolver) Fetch(hash [32]byte, askNetwork bool) (item any, ok bool) {
	item, ok = r.cache[hash]
	if ok {
		return item, true
	}
	if askNetwork && !r.stopped {
		r.network.Request(hash)
	}
	return nil, false
}

// Await enqueues a continuation for hash, invoked once Deliver supplies the
// item. If the item is already resident, cb fires immediately and no
// continuation is stored — this matches the synchronous path of
// spec.md §4.5 step 4 ("otherwise proceed synchronously").
func (r *Resolver) Await(hash [32]byte, cb func(any)) {
	if item, ok := r.cache[hash]; ok {
		cb(item)
		return
	}
	r.waiters[hash] = append(r.waiters[hash], cb)
}

// Deliver stores item under hash and drains any waiters in enqueue order,
// returning whether anyone was waiting (spec.md §4.3 deliver).
func (r *Resolver) Deliver(hash [32]byte, item any) bool {
	r.cache[hash] = item
	pending, hadWaiters := r.waiters[hash]
	delete(r.waiters, hash)
	for _, cb := range pending {
		cb(item)
	}
	return hadWaiters
}

// MarkAbsent tells the network that peer cannot supply hash (spec.md §4.3).
func (r *Resolver) MarkAbsent(hash [32]byte, peer [32]byte) {
	r.network.MarkAbsent(hash, peer)
}

// StopFetchingAll marks this resolver as retired: subsequent Fetch calls
// with askNetwork=true no longer issue network requests (spec.md §4.3,
// used by the TxSet ping-pong on externalization).
func (r *Resolver) StopFetchingAll() {
	r.stopped = true
}

// Clear discards all cached items and pending waiters (spec.md §4.3).
func (r *Resolver) Clear() {
	r.cache = make(map[[32]byte]any)
	r.waiters = make(map[[32]byte][]func(any))
	r.stopped = false
}

// WaiterCount reports how many continuations are parked for hash.
// BallotValidator keeps its own per-ballot waiter map and does not call it.
func (r *Resolver) WaiterCount(hash [32]byte) int {
	return len(r.waiters[hash])
}
