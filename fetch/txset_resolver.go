package fetch

import "github.com/YasinFaraji/herder/herder"

// TxSetResolver wraps two Resolvers in the ping-pong double-buffer
// spec.md §4.3 requires: on externalization the active resolver is told to
// stop fetching and the other becomes active, discarding in-flight fetches
// for the closed slot without racing incoming late messages.
type TxSetResolver struct {
	resolvers [2]*Resolver
	active    int
}

// NewTxSetResolver constructs both buffers against the same network
// collaborator.
func NewTxSetResolver(network Network) *TxSetResolver {
	return &TxSetResolver{
		resolvers: [2]*Resolver{NewResolver(network), NewResolver(network)},
	}
}

// Active returns the currently active resolver.
func (t *TxSetResolver) Active() *Resolver {
	return t.resolvers[t.active]
}

// Fetch resolves hash against the active resolver to a herder.TxSet.
func (t *TxSetResolver) Fetch(hash [32]byte, askNetwork bool) (herder.TxSet, bool) {
	item, ok := t.Active().Fetch(hash, askNetwork)
	if !ok {
		return nil, false
	}
	return item.(herder.TxSet), true
}

// Await parks a continuation for hash on the active resolver.
func (t *TxSetResolver) Await(hash [32]byte, cb func(herder.TxSet)) {
	t.Active().Await(hash, func(item any) { cb(item.(herder.TxSet)) })
}

// Deliver stores set in the active resolver under its own hash, as supplied
// by the network or a peer (spec.md §4.3 deliver).
func (t *TxSetResolver) Deliver(set herder.TxSet) bool {
	return t.Active().Deliver(set.Hash(), set)
}

// Rotate performs the externalization ping-pong: stop fetching on the
// currently-active resolver, flip to the other (clearing it first so it
// starts empty), matching spec.md §4.6 step 3.
func (t *TxSetResolver) Rotate() {
	t.Active().StopFetchingAll()
	t.active = 1 - t.active
	t.Active().Clear()
}
