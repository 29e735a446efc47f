// Package node is HerderFacade: the composition root that wires TxPool,
// the fetch mailboxes, BallotValidator, and SlotDriver into the FBA
// engine's required callback surface (spec.md §4.7). It is grounded on the
// teacher's consensus.NewParticipant: a single constructor that builds each
// sub-component in dependency order, wrapping construction errors, and
// returns one object ready to hand to the external engine.
package node

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/YasinFaraji/herder/ballot"
	"github.com/YasinFaraji/herder/fetch"
	"github.com/YasinFaraji/herder/herder"
	"github.com/YasinFaraji/herder/herder/metrics"
	"github.com/YasinFaraji/herder/slot"
	"github.com/YasinFaraji/herder/txpool"
	"github.com/YasinFaraji/herder/validator"
)

// SyncState is the out-of-scope sync collaborator (spec.md §3 open
// question: "the exact catch-up policy is unspecified by this core and
// deferred to the sync collaborator"): it reports whether the node is
// fully caught up and whether it is configured to validate.
type SyncState interface {
	Synced() bool
	Validating() bool
}

// Herder implements herder.FBACallbacks (spec.md §4.7) by dispatching to
// TxPool, BallotValidator, and SlotDriver. It is not safe for concurrent
// use: like every component it owns, it lives entirely on the single event
// loop (spec.md §5).
type Herder struct {
	log zerolog.Logger

	ledger  herder.Ledger
	sync    SyncState
	overlay herder.Overlay
	engine  herder.FBAEngine

	pool    *txpool.Pool
	txSets  *fetch.TxSetResolver
	qSets   *fetch.QSetResolver
	metrics *metrics.Collector

	validator *validator.Validator
	slot      *slot.Driver
}

// New constructs a Herder: the TxPool, both fetch mailboxes (with the QSet
// mailbox pre-seeded with the local quorum set per spec.md §4.7), the
// metrics collector, BallotValidator, and SlotDriver, in that dependency
// order.
func New(
	clk herder.Clock,
	log zerolog.Logger,
	cfg herder.Config,
	ledger herder.Ledger,
	sync SyncState,
	overlay herder.Overlay,
	engine herder.FBAEngine,
	verifier herder.Verifier,
	network fetch.Network,
	registerer prometheus.Registerer,
) (*Herder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, herder.NewConfigurationErrorf("constructing herder: %w", err)
	}

	pool := txpool.New(ledger, ledger)
	txSets := fetch.NewTxSetResolver(network)

	localQuorum := cfg.QuorumSetValue()
	qSets := fetch.NewQSetResolver(network, localQuorum.Hash(), localQuorum)

	collector := metrics.NewCollector(registerer)

	v := validator.New(clk, log, cfg, ledger, sync, engine, verifier, txSets)
	d := slot.New(clk, log, cfg, ledger, sync, engine, overlay, v, collector, pool, txSets, cfg.ValidationKey)

	return &Herder{
		log:       log.With().Str("component", "herder").Logger(),
		ledger:    ledger,
		sync:      sync,
		overlay:   overlay,
		engine:    engine,
		pool:      pool,
		txSets:    txSets,
		qSets:     qSets,
		metrics:   collector,
		validator: v,
		slot:      d,
	}, nil
}

// Bootstrap implements HerderFacade's new-network entry point (spec.md
// §4.7): sets ledgersToWaitToParticipate to 0 and triggers immediately.
func (h *Herder) Bootstrap() {
	h.slot.Bootstrap()
}

// RecvTransaction forwards an inbound transaction to TxPool, the overlay
// collaborator's entry point named in spec.md §6.
func (h *Herder) RecvTransaction(tx herder.Transaction) bool {
	return h.pool.RecvTransaction(tx)
}

// RecvTxSet delivers an inbound tx set into the active TxSet mailbox and
// replenishes TxPool from its transactions, so a peer-proposed set also
// enriches this node's own future proposals
// (_examples/original_source/src/herder/Herder.cpp:534-542 recvTxSet).
func (h *Herder) RecvTxSet(set herder.TxSet) bool {
	delivered := h.txSets.Deliver(set)
	for _, tx := range set.Transactions() {
		h.pool.RecvTransaction(tx)
	}
	return delivered
}

// RecvFBAQuorumSet delivers an inbound quorum set into the QSet mailbox.
func (h *Herder) RecvFBAQuorumSet(hash [32]byte, qs herder.QuorumSet) bool {
	return h.qSets.Deliver(hash, qs)
}

// RecvFBAEnvelope forwards an inbound FBA envelope to SlotDriver's intake.
func (h *Herder) RecvFBAEnvelope(envelope herder.Envelope) {
	h.slot.RecvEnvelope(envelope)
}

// LedgerClosed forwards the ledger-closed notification to SlotDriver.
func (h *Herder) LedgerClosed(header herder.LedgerHeader) {
	h.slot.LedgerClosed(header)
}

// ValidateValue implements herder.FBACallbacks by delegating to BallotValidator.
func (h *Herder) ValidateValue(slotIndex uint64, fromNode herder.NodeID, opaqueValue []byte, cb func(bool)) {
	h.validator.ValidateValue(slotIndex, fromNode, opaqueValue, cb)
}

// ValidateBallot implements herder.FBACallbacks by delegating to BallotValidator.
func (h *Herder) ValidateBallot(slotIndex uint64, fromNode herder.NodeID, b herder.FBABallot, cb func(bool)) {
	h.validator.ValidateBallot(slotIndex, fromNode, b, cb)
}

// CompareValues implements herder.FBACallbacks via ValueOrdering.Compare
// (spec.md §4.2).
func (h *Herder) CompareValues(slotIndex uint64, ballotCounter uint32, v1, v2 herder.SignedBallotValue) int {
	return ballot.Compare(slotIndex, ballotCounter, v1, v2)
}

// BallotDidHearFromQuorum implements herder.FBACallbacks by delegating to
// BallotValidator's bump timer.
func (h *Herder) BallotDidHearFromQuorum(slotIndex uint64, b herder.FBABallot) {
	h.validator.BallotDidHearFromQuorum(slotIndex, b)
}

// ValueExternalized implements herder.FBACallbacks by delegating to SlotDriver.
func (h *Herder) ValueExternalized(slotIndex uint64, opaqueValue []byte) {
	h.slot.ValueExternalized(slotIndex, opaqueValue)
}

// RetrieveQuorumSet implements herder.FBACallbacks: a cache hit returns
// immediately; a miss issues a network request and returns
// ErrUnresolvedDependency without parking a continuation, signalling the
// FBA engine to retry once RecvFBAQuorumSet has delivered the set into the
// QSet mailbox (spec.md §5 "retrieveQuorumSet suspend when their dependency
// is not cached").
func (h *Herder) RetrieveQuorumSet(hash [32]byte) (*herder.QuorumSet, error) {
	qs, ok := h.qSets.Fetch(hash, true)
	if !ok {
		return nil, herder.ErrUnresolvedDependency
	}
	return &qs, nil
}

// EmitEnvelope implements herder.FBACallbacks: wraps envelope in a typed
// Message and broadcasts it (spec.md §6 "emitEnvelope wraps an FBA envelope
// in a typed message and broadcasts").
func (h *Herder) EmitEnvelope(envelope herder.Envelope) {
	h.overlay.BroadcastMessage(herder.Message{Envelope: &envelope})
}

// NodeTouched implements herder.FBACallbacks: refreshes the given node's
// eviction deadline for FBA activity outside RecvFBAEnvelope (spec.md §4.6
// step 7).
func (h *Herder) NodeTouched(id herder.NodeID) {
	h.slot.TouchNode(id)
}
