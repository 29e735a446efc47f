package slot_test

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YasinFaraji/herder/ballot"
	"github.com/YasinFaraji/herder/fetch"
	"github.com/YasinFaraji/herder/hash"
	"github.com/YasinFaraji/herder/herder"
	"github.com/YasinFaraji/herder/herder/metrics"
	"github.com/YasinFaraji/herder/slot"
	"github.com/YasinFaraji/herder/txpool"
)

type fakeSigner struct{ pub herder.NodeID }

func (f fakeSigner) PublicKey() herder.NodeID { return f.pub }
func (f fakeSigner) IsZero() bool             { return false }
func (f fakeSigner) Sign(data []byte) []byte  { return append([]byte{0xCD}, data...) }

func nodeID(seed byte) herder.NodeID {
	var id herder.NodeID
	id[0] = seed
	return id
}

type fakeTx struct {
	id     hash.Digest
	source herder.NodeID
}

func (t fakeTx) FullHash() hash.Digest        { return t.id }
func (t fakeTx) SourceAccount() herder.NodeID { return t.source }
func (t fakeTx) CheckValid() error            { return nil }

func newTx(seed byte) fakeTx {
	var id hash.Digest
	id[0] = seed
	return fakeTx{id: id, source: nodeID(seed)}
}

type fakeLedgerBalances struct{ fee uint32 }

func (f fakeLedgerBalances) AccountBalance(herder.NodeID) uint64 { return 1 << 32 }
func (f fakeLedgerBalances) TxFee() uint32                       { return f.fee }

type fakeLedger struct {
	header       herder.LedgerHeader
	externalized []herder.TxSet
}

func (f *fakeLedger) LastClosedLedgerHeader() herder.LedgerHeader { return f.header }
func (f *fakeLedger) ExternalizeValue(set herder.TxSet) {
	f.externalized = append(f.externalized, set)
}

type fakeSync struct{ synced, validating bool }

func (f fakeSync) Synced() bool     { return f.synced }
func (f fakeSync) Validating() bool { return f.validating }

type fakeOverlay struct {
	broadcasts []herder.Message
}

func (o *fakeOverlay) BroadcastMessage(msg herder.Message) {
	o.broadcasts = append(o.broadcasts, msg)
}

type fakeTimers struct {
	bumpCancelled  bool
	timersCleared  bool
	lastTriggerSet time.Time
}

func (f *fakeTimers) CancelBumpTimer()          { f.bumpCancelled = true }
func (f *fakeTimers) ClearTimers()              { f.timersCleared = true }
func (f *fakeTimers) SetLastTrigger(t time.Time) { f.lastTriggerSet = t }

type fakeEngine struct {
	prepared          []herder.SignedBallotValue
	preparedSlot      uint64
	received          []herder.Envelope
	purgedNodes       []herder.NodeID
	purgedSlotsUpTo   uint64
	purgedSlotsCalled bool
}

func (e *fakeEngine) ReceiveEnvelope(env herder.Envelope) { e.received = append(e.received, env) }
func (e *fakeEngine) PrepareValue(slot uint64, v herder.SignedBallotValue, bump bool) {
	e.preparedSlot = slot
	e.prepared = append(e.prepared, v)
}
func (e *fakeEngine) IsVBlocking(map[herder.NodeID]struct{}) bool { return false }
func (e *fakeEngine) PurgeNode(id herder.NodeID)                  { e.purgedNodes = append(e.purgedNodes, id) }
func (e *fakeEngine) PurgeSlots(upTo uint64) {
	e.purgedSlotsUpTo = upTo
	e.purgedSlotsCalled = true
}
func (e *fakeEngine) LocalNodeID() herder.NodeID       { return nodeID(0xEE) }
func (e *fakeEngine) LocalQuorumSet() herder.QuorumSet { return herder.NewQuorumSet(1, []herder.NodeID{nodeID(1)}) }
func (e *fakeEngine) SecretKey() herder.Signer         { return fakeSigner{pub: nodeID(0xEE)} }

type fakeNetwork struct{}

func (fakeNetwork) Request([32]byte)              {}
func (fakeNetwork) MarkAbsent([32]byte, [32]byte) {}

type harness struct {
	d       *slot.Driver
	ledger  *fakeLedger
	sync    *fakeSync
	engine  *fakeEngine
	overlay *fakeOverlay
	timers  *fakeTimers
	pool    *txpool.Pool
	txSets  *fetch.TxSetResolver
	clock   interface {
		herder.Clock
		Add(d time.Duration)
	}
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	mock := herder.NewForTesting(time.Unix(1000, 0))
	ledger := &fakeLedger{header: herder.LedgerHeader{LedgerSeq: 4, CloseTime: 500}}
	sync := &fakeSync{synced: true, validating: true}
	engine := &fakeEngine{}
	overlay := &fakeOverlay{}
	timers := &fakeTimers{}
	pool := txpool.New(fakeLedgerBalances{fee: 10}, fakeLedgerBalances{fee: 10})
	txSets := fetch.NewTxSetResolver(fakeNetwork{})
	collector := metrics.NewCollector(prometheus.NewRegistry())
	signer := fakeSigner{pub: nodeID(1)}

	cfg := herder.DefaultConstants()
	cfg.DesiredBaseFee = 100
	cfg.ExpectedLedgerTimespan = 5 * time.Second

	d := slot.New(mock, zerolog.Nop(), cfg, ledger, sync, engine, overlay, timers, collector, pool, txSets, signer)
	return &harness{d: d, ledger: ledger, sync: sync, engine: engine, overlay: overlay, timers: timers, pool: pool, txSets: txSets, clock: mock}
}

func TestScheduleTrigger_FiresAfterExpectedTimespan(t *testing.T) {
	h := newHarness(t)
	h.d.ScheduleTrigger()

	h.clock.Add(4 * time.Second)
	assert.Zero(t, h.engine.preparedSlot)

	h.clock.Add(2 * time.Second)
	assert.Equal(t, uint64(5), h.engine.preparedSlot)
}

func TestScheduleTrigger_NoopWhenNotSyncedOrValidating(t *testing.T) {
	h := newHarness(t)
	h.sync.synced = false
	h.d.ScheduleTrigger()
	h.clock.Add(time.Hour)
	assert.Zero(t, h.engine.preparedSlot)
}

func TestBootstrap_FiresTriggerImmediately(t *testing.T) {
	h := newHarness(t)
	h.d.Bootstrap()
	assert.Equal(t, uint64(5), h.engine.preparedSlot)
	assert.Zero(t, h.d.LedgersToWaitToParticipate())
}

func TestFireTrigger_DeliversTxSetAndSetsLastTrigger(t *testing.T) {
	h := newHarness(t)
	tx := newTx(1)
	require.True(t, h.pool.RecvTransaction(tx))

	h.d.Bootstrap()

	require.Len(t, h.engine.prepared, 1)
	value := h.d.CurrentProposedValue()
	set, ok := h.txSets.Fetch(value.Value.TxSetHash, false)
	require.True(t, ok, "proposed tx set must be delivered into the active mailbox")
	require.Len(t, set.Transactions(), 1)
	assert.Equal(t, tx.id, set.Transactions()[0].FullHash())
	assert.False(t, h.timers.lastTriggerSet.IsZero(), "SetLastTrigger must be forwarded to BallotValidator")
}

func TestFireTrigger_ReplaysStashedFutureEnvelopes(t *testing.T) {
	h := newHarness(t)
	futureEnv := herder.Envelope{SlotIndex: 6, NodeID: nodeID(2)}
	h.d.RecvEnvelope(futureEnv)
	require.Len(t, h.engine.received, 1, "step 3 forwards to FBA immediately even when also stashed")

	// Bootstrap proposes for slot 5 (lastClosedLedger.ledgerSeq+1); the stash
	// for slot 6 is untouched by this trigger.
	h.d.Bootstrap()
	assert.Len(t, h.engine.received, 1)

	// A second trigger, now proposing for slot 6, replays the stash.
	h.ledger.header.LedgerSeq = 5
	h.d.ScheduleTrigger()
	h.clock.Add(6 * time.Second)
	require.Len(t, h.engine.received, 2)
	assert.Equal(t, futureEnv, h.engine.received[1])
}

func TestRecvEnvelope_CurrentSlotForwardsImmediately(t *testing.T) {
	h := newHarness(t)
	env := herder.Envelope{SlotIndex: 5, NodeID: nodeID(2)}
	h.d.RecvEnvelope(env)
	require.Len(t, h.engine.received, 1)
	assert.Equal(t, env, h.engine.received[0])
}

func TestRecvEnvelope_OutsideValidityBracketDropped(t *testing.T) {
	h := newHarness(t)
	env := herder.Envelope{SlotIndex: 1000, NodeID: nodeID(2)}
	h.d.RecvEnvelope(env)
	assert.Empty(t, h.engine.received)
}

func TestValueExternalized_FlushesPoolRebroadcastsOldestAndRotates(t *testing.T) {
	h := newHarness(t)
	included := newTx(1)
	require.True(t, h.pool.RecvTransaction(included))

	h.d.Bootstrap()
	value := h.d.CurrentProposedValue()

	stale := newTx(9)
	require.True(t, h.pool.RecvTransaction(stale))
	for i := 0; i < txpool.NumBuckets-1; i++ {
		h.pool.Rotate()
	}
	require.Contains(t, h.pool.OldestBucket(), herder.Transaction(stale))

	opaque := ballot.Encode(value)
	h.d.ValueExternalized(5, opaque)

	assert.True(t, h.timers.bumpCancelled)
	require.Len(t, h.ledger.externalized, 1)
	assert.Equal(t, included.id, h.ledger.externalized[0].Transactions()[0].FullHash())

	var rebroadcastStale bool
	for _, msg := range h.overlay.broadcasts {
		if msg.Tx != nil && msg.Tx.FullHash() == stale.id {
			rebroadcastStale = true
		}
	}
	assert.True(t, rebroadcastStale, "the oldest bucket must be rebroadcast before rotate discards it")

	for _, tx := range h.pool.All() {
		assert.NotEqual(t, stale.id, tx.FullHash(), "stale tx must be gone after rotate discarded its bucket")
	}
}

func TestValueExternalized_EvictsExpiredNodes(t *testing.T) {
	h := newHarness(t)
	h.d.RecvEnvelope(herder.Envelope{SlotIndex: 5, NodeID: nodeID(7)})

	h.d.Bootstrap()
	value := h.d.CurrentProposedValue()

	h.clock.Add(25 * time.Hour)
	opaque := ballot.Encode(value)
	h.d.ValueExternalized(5, opaque)

	assert.Contains(t, h.engine.purgedNodes, nodeID(7))
}

func TestValueExternalized_MissingTxSetLogsAndReturnsWithoutPanic(t *testing.T) {
	h := newHarness(t)
	ghost := herder.BallotValue{TxSetHash: hash.Sum([]byte{0xFF}), CloseTime: 1, BaseFee: 1}
	opaque := ballot.Encode(ballot.Sign(ghost, fakeSigner{pub: nodeID(1)}))
	h.d.ValueExternalized(5, opaque)
	assert.Empty(t, h.ledger.externalized)
}

func TestLedgerClosed_ClearsTimersAndDecrementsWaitCounter(t *testing.T) {
	h := newHarness(t)
	require.Equal(t, uint64(3), h.d.LedgersToWaitToParticipate())

	h.d.LedgerClosed(herder.LedgerHeader{LedgerSeq: 4})
	assert.True(t, h.timers.timersCleared)
	assert.Equal(t, uint64(2), h.d.LedgersToWaitToParticipate())
}

func TestLedgerClosed_SchedulesNextTriggerWhenValidatingAndSynced(t *testing.T) {
	h := newHarness(t)
	h.d.LedgerClosed(herder.LedgerHeader{LedgerSeq: 4})

	h.clock.Add(10 * time.Second)
	assert.Equal(t, uint64(5), h.engine.preparedSlot)
}
