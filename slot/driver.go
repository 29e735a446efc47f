// Package slot implements SlotDriver: the trigger-timer cadence that
// proposes a new value each ledger close, externalization handling, FBA
// envelope intake with future-envelope replay, and ledgerClosed bookkeeping
// (spec.md §4.6). It is grounded on the teacher's
// consensus/hotstuff/eventhandler.EventHandler: one exported method per
// external event, each running to completion on the single event loop
// before the next is dispatched (spec.md §5).
package slot

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/YasinFaraji/herder/ballot"
	"github.com/YasinFaraji/herder/fetch"
	"github.com/YasinFaraji/herder/herder"
	"github.com/YasinFaraji/herder/herder/metrics"
	"github.com/YasinFaraji/herder/txpool"
)

// Ledger is the slice of the ledger collaborator SlotDriver needs.
type Ledger interface {
	ExternalizeValue(set herder.TxSet)
	LastClosedLedgerHeader() herder.LedgerHeader
}

// Overlay is the peer-networking collaborator SlotDriver rebroadcasts
// through (spec.md §4.6 step 6).
type Overlay interface {
	BroadcastMessage(msg herder.Message)
}

// SyncState reports the node's catch-up state and validating flag.
type SyncState interface {
	Synced() bool
	Validating() bool
}

// ValidatorControl is the slice of BallotValidator SlotDriver drives
// directly, satisfied by *validator.Validator without an import-cycle-
// forming dependency on package validator: CancelBumpTimer on
// externalization (spec.md §4.6 step 1), ClearTimers on ledgerClosed
// (spec.md §4.6 "Ledger-closed intake"), SetLastTrigger whenever a new
// value is proposed so the counter-growth bound's anchor stays current
// (spec.md §4.5 step 3, §4.6 trigger step 4).
type ValidatorControl interface {
	CancelBumpTimer()
	ClearTimers()
	SetLastTrigger(t time.Time)
}

// Driver implements SlotDriver (spec.md §4.6). It is not safe for
// concurrent use: like every Herder component it is owned by the single
// event loop (spec.md §5).
type Driver struct {
	clock   herder.Clock
	log     zerolog.Logger
	cfg     herder.Config
	ledger  Ledger
	sync    SyncState
	engine  herder.FBAEngine
	overlay Overlay
	timers  ValidatorControl
	metrics *metrics.Collector

	pool   *txpool.Pool
	txSets *fetch.TxSetResolver

	signer herder.Signer

	currentSlotIndex     uint64
	currentProposedValue herder.SignedBallotValue
	lastTrigger          time.Time
	ledgersToWait        uint64

	triggerTimer herder.Timer

	nodeLastAccess  map[herder.NodeID]time.Time
	futureEnvelopes map[uint64][]herder.Envelope
}

// New constructs a Driver.
func New(
	clk herder.Clock,
	log zerolog.Logger,
	cfg herder.Config,
	ledger Ledger,
	sync SyncState,
	engine herder.FBAEngine,
	overlay Overlay,
	timers ValidatorControl,
	collector *metrics.Collector,
	pool *txpool.Pool,
	txSets *fetch.TxSetResolver,
	signer herder.Signer,
) *Driver {
	return &Driver{
		clock:           clk,
		log:             log.With().Str("component", "slot_driver").Logger(),
		cfg:             cfg,
		ledger:          ledger,
		sync:            sync,
		engine:          engine,
		overlay:         overlay,
		timers:          timers,
		metrics:         collector,
		pool:            pool,
		txSets:          txSets,
		signer:          signer,
		lastTrigger:     clk.Now(),
		ledgersToWait:   cfg.LedgersToWaitToParticipate,
		nodeLastAccess:  make(map[herder.NodeID]time.Time),
		futureEnvelopes: make(map[uint64][]herder.Envelope),
	}
}

// ScheduleTrigger arms triggerTimer for max(0, EXP_LEDGER_TIMESPAN - (now -
// lastTrigger)) (spec.md §4.6 "Trigger cadence"). Before the first trigger
// fires, lastTrigger is the Driver's construction time.
func (d *Driver) ScheduleTrigger() {
	if !d.sync.Synced() || !d.sync.Validating() {
		return
	}
	elapsed := d.clock.Now().Sub(d.lastTrigger)
	wait := d.cfg.ExpectedLedgerTimespan - elapsed
	if wait < 0 {
		wait = 0
	}
	if d.triggerTimer != nil {
		d.triggerTimer.Stop()
	}
	d.triggerTimer = d.clock.AfterFunc(wait, d.fireTrigger)
}

// fireTrigger implements spec.md §4.6 "On fire" steps 1-6.
func (d *Driver) fireTrigger() {
	if d.metrics != nil {
		d.metrics.TriggerFired()
	}
	header := d.ledger.LastClosedLedgerHeader()
	d.currentSlotIndex = header.LedgerSeq + 1

	pending := d.pool.All()
	set := newPendingTxSet(pending, header.Hash)
	d.txSets.Deliver(set)

	now := d.clock.Now()
	closeTime := uint64(now.Unix())
	if closeTime < header.CloseTime+1 {
		closeTime = header.CloseTime + 1
	}

	value := herder.BallotValue{
		TxSetHash: set.Hash(),
		CloseTime: closeTime,
		BaseFee:   d.cfg.DesiredBaseFee,
	}
	d.currentProposedValue = ballot.Sign(value, d.signer)
	d.lastTrigger = now
	d.timers.SetLastTrigger(now)

	d.engine.PrepareValue(d.currentSlotIndex, d.currentProposedValue, false)

	replay := d.futureEnvelopes[d.currentSlotIndex]
	delete(d.futureEnvelopes, d.currentSlotIndex)
	for _, env := range replay {
		d.engine.ReceiveEnvelope(env)
	}
	if d.metrics != nil {
		d.metrics.FutureEnvelopesPending(d.countFutureEnvelopes())
	}
}

// ValueExternalized implements spec.md §4.6 valueExternalized.
func (d *Driver) ValueExternalized(slotIndex uint64, opaqueValue []byte) {
	triggeredAt := d.lastTrigger

	d.timers.CancelBumpTimer()

	signed, err := ballot.Decode(opaqueValue)
	if err != nil {
		d.log.Error().Err(err).Msg("valueExternalized: could not decode externalized value")
		return
	}

	set, ok := d.txSets.Fetch(signed.Value.TxSetHash, false)
	if !ok {
		d.log.Error().Uint64("slot", slotIndex).Msg("valueExternalized: tx set missing from mailbox")
		return
	}

	d.txSets.Rotate()

	d.ledger.ExternalizeValue(set)

	for _, tx := range set.Transactions() {
		d.pool.RemoveReceivedTx(tx)
	}

	oldest := d.pool.OldestBucket()
	for _, tx := range oldest {
		d.overlay.BroadcastMessage(herder.Message{Tx: tx})
	}

	now := d.clock.Now()
	for id, last := range d.nodeLastAccess {
		if now.Sub(last) > d.cfg.NodeExpiration {
			d.engine.PurgeNode(id)
			delete(d.nodeLastAccess, id)
			if d.metrics != nil {
				d.metrics.NodeEvicted()
			}
		}
	}

	if slotIndex > d.cfg.LedgerValidityBracket {
		d.engine.PurgeSlots(slotIndex - d.cfg.LedgerValidityBracket)
		if d.metrics != nil {
			d.metrics.SlotsEvicted()
		}
	}

	d.pool.Rotate()
	if d.metrics != nil {
		d.metrics.PoolSizeAfterRotate(d.pool.Size())
		d.metrics.Externalized(now.Sub(triggeredAt))
	}
}

// RecvEnvelope implements spec.md §4.6 "Envelope intake".
func (d *Driver) RecvEnvelope(envelope herder.Envelope) {
	header := d.ledger.LastClosedLedgerHeader()
	if d.sync.Synced() {
		bracket := d.cfg.LedgerValidityBracket
		lo := saturatingSub(header.LedgerSeq, bracket)
		hi := header.LedgerSeq + bracket
		if envelope.SlotIndex < lo || envelope.SlotIndex > hi {
			if d.metrics != nil {
				d.metrics.EnvelopeDropped()
			}
			return
		}
	}

	if envelope.SlotIndex > header.LedgerSeq+1 {
		d.futureEnvelopes[envelope.SlotIndex] = append(d.futureEnvelopes[envelope.SlotIndex], envelope)
		if d.metrics != nil {
			d.metrics.FutureEnvelopesPending(d.countFutureEnvelopes())
		}
	}

	d.nodeLastAccess[envelope.NodeID] = d.clock.Now()
	d.engine.ReceiveEnvelope(envelope)
}

// TouchNode refreshes id's eviction deadline, used by HerderFacade's
// NodeTouched callback for FBA activity that doesn't arrive as an envelope
// through RecvEnvelope (spec.md §4.6 step 7, §6 FBA engine callbacks).
func (d *Driver) TouchNode(id herder.NodeID) {
	d.nodeLastAccess[id] = d.clock.Now()
}

// LedgerClosed implements spec.md §4.6 "Ledger-closed intake".
func (d *Driver) LedgerClosed(header herder.LedgerHeader) {
	d.timers.ClearTimers()
	if d.sync.Synced() && d.ledgersToWait > 0 {
		d.ledgersToWait--
	}
	if d.sync.Validating() && d.sync.Synced() {
		d.ScheduleTrigger()
	}
}

// LedgersToWaitToParticipate reports the remaining wait-before-participate
// count, decremented by LedgerClosed (spec.md §4.6, §4.7 bootstrap).
func (d *Driver) LedgersToWaitToParticipate() uint64 {
	return d.ledgersToWait
}

// CurrentSlotIndex reports the slot the most recent trigger proposed for.
func (d *Driver) CurrentSlotIndex() uint64 {
	return d.currentSlotIndex
}

// CurrentProposedValue reports the value most recently proposed for
// CurrentSlotIndex.
func (d *Driver) CurrentProposedValue() herder.SignedBallotValue {
	return d.currentProposedValue
}

// Bootstrap implements the new-network half of spec.md §4.7: clear the wait
// counter and trigger immediately.
func (d *Driver) Bootstrap() {
	d.ledgersToWait = 0
	d.fireTrigger()
}

func (d *Driver) countFutureEnvelopes() int {
	n := 0
	for _, envs := range d.futureEnvelopes {
		n += len(envs)
	}
	return n
}

func saturatingSub(a, b uint64) uint64 {
	if b > a {
		return 0
	}
	return a - b
}
