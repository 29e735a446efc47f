// Package validator implements BallotValidator: the adversarial bounds
// check on proposed values and ballots, the deferred-accept timer set with
// its v-blocking shortcut, and the bump timer that re-proposes on silence
// (spec.md §4.5). It is grounded on the teacher's safetyrules.SafetyRules
// (the single-purpose "decide, possibly asynchronously, whether to accept"
// shape) and pacemaker/timeout.Controller (the exponential-backoff timer),
// adapted from a goroutine-and-channel scheduler to the single event loop
// this module runs on (spec.md §5): every timer here is armed against an
// injected herder.Clock instead of a real one.
package validator

import (
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/YasinFaraji/herder/ballot"
	"github.com/YasinFaraji/herder/fetch"
	"github.com/YasinFaraji/herder/herder"
)

// Ledger is the slice of the ledger collaborator BallotValidator needs:
// the last closed header for slot/close-time bounds (spec.md §4.5 steps 3-4).
type Ledger interface {
	LastClosedLedgerHeader() herder.LedgerHeader
}

// SyncState reports whether the node is fully caught up; several checks in
// spec.md §4.5 only apply when synced.
type SyncState interface {
	Synced() bool
}

// pendingDeferral tracks one deferred ballot's timer, keyed by the node it
// was deferred for, so BallotValidator can cancel all of them on a
// v-blocking shortcut or on ledgerClosed.
type pendingDeferral struct {
	timer  herder.Timer
	cancel func(bool)
}

// Validator implements BallotValidator (spec.md §4.5). It is not safe for
// concurrent use: like every Herder component it is owned by the single
// event loop (spec.md §5).
type Validator struct {
	clock    herder.Clock
	log      zerolog.Logger
	cfg      herder.Config
	ledger   Ledger
	sync     SyncState
	engine   herder.FBAEngine
	verifier herder.Verifier

	txSets *fetch.TxSetResolver

	// lastTrigger is the wall-clock time Herder last proposed for the
	// current slot, the anchor of the counter-growth bound (spec.md §4.5
	// step 3). Owned and updated by package slot via SetLastTrigger.
	lastTrigger time.Time

	// deferrals holds one timer set per ballot under deferred acceptance
	// (spec.md §4.5 step 8), keyed by the ballot's wire bytes since
	// FBABallot itself is not comparable (its Value is a []byte).
	deferrals map[string]map[herder.NodeID]pendingDeferral

	// bumpTimer is the single outstanding bump timer; rearmed, never
	// multiple-instanced (spec.md §5 "no two slots have their bump timers
	// armed concurrently").
	bumpTimer herder.Timer
}

// New constructs a Validator. clock is the swappable timer source
// (spec.md §5); engine is used for IsVBlocking and PrepareValue (expireBallot);
// verifier checks a proposed value's or ballot's signature against its
// embedded signer public key (spec.md §4.5 steps "Verify signature").
func New(clk herder.Clock, log zerolog.Logger, cfg herder.Config, ledger Ledger, sync SyncState, engine herder.FBAEngine, verifier herder.Verifier, txSets *fetch.TxSetResolver) *Validator {
	return &Validator{
		clock:     clk,
		log:       log.With().Str("component", "ballot_validator").Logger(),
		cfg:       cfg,
		ledger:    ledger,
		sync:      sync,
		engine:    engine,
		verifier:  verifier,
		txSets:    txSets,
		deferrals: make(map[string]map[herder.NodeID]pendingDeferral),
	}
}

// SetLastTrigger records when Herder last proposed for the current slot,
// resetting the counter-growth bound's anchor (spec.md §4.5 step 3, §4.6
// trigger step 5).
func (v *Validator) SetLastTrigger(t time.Time) {
	v.lastTrigger = t
}

// ValidateValue implements spec.md §4.5 validateValue.
func (v *Validator) ValidateValue(slotIndex uint64, fromNode herder.NodeID, opaqueValue []byte, cb func(bool)) {
	signed, err := ballot.Decode(opaqueValue)
	if err != nil {
		v.log.Debug().Err(err).Msg("validateValue: decode failed")
		cb(false)
		return
	}
	if !ballot.Verify(signed, v.verifier) {
		v.log.Debug().Msg("validateValue: signature verification failed")
		cb(false)
		return
	}

	header := v.ledger.LastClosedLedgerHeader()
	if v.sync.Synced() {
		if slotIndex != header.LedgerSeq+1 {
			v.log.Debug().Uint64("slot", slotIndex).Msg("validateValue: wrong slot index")
			cb(false)
			return
		}
		if signed.Value.CloseTime <= header.CloseTime {
			v.log.Debug().Msg("validateValue: close time does not advance")
			cb(false)
			return
		}
	}

	if !v.sync.Synced() {
		cb(true)
		return
	}
	set, ok := v.txSets.Fetch(signed.Value.TxSetHash, true)
	if !ok {
		// Fetch already issued the network request (spec.md §4.5 step 4);
		// park a continuation that resumes step 5 on delivery.
		v.txSets.Await(signed.Value.TxSetHash, func(resolved herder.TxSet) {
			v.checkTxSet(resolved, header, cb)
		})
		return
	}
	v.checkTxSet(set, header, cb)
}

func (v *Validator) checkTxSet(set herder.TxSet, header herder.LedgerHeader, cb func(bool)) {
	if err := set.CheckValid(header); err != nil {
		v.log.Debug().Err(err).Msg("validateValue: tx set invalid")
		cb(false)
		return
	}
	cb(true)
}

// ValidateBallot implements spec.md §4.5 validateBallot.
func (v *Validator) ValidateBallot(slotIndex uint64, fromNode herder.NodeID, fbaBallot herder.FBABallot, cb func(bool)) {
	signed, err := ballot.Decode(fbaBallot.Value)
	if err != nil {
		v.log.Debug().Err(err).Msg("validateBallot: decode failed")
		cb(false)
		return
	}
	if !ballot.Verify(signed, v.verifier) {
		v.log.Debug().Msg("validateBallot: signature verification failed")
		cb(false)
		return
	}

	now := v.clock.Now()
	maxSlip := v.cfg.MaxTimeSlip
	if time.Unix(int64(signed.Value.CloseTime), 0).After(now.Add(maxSlip)) {
		v.log.Debug().Msg("validateBallot: close time too far in the future")
		cb(false)
		return
	}

	if !v.withinCounterGrowthBound(now, fbaBallot.Counter) {
		v.log.Debug().Uint32("counter", fbaBallot.Counter).Msg("validateBallot: counter growth exceeds bound")
		cb(false)
		return
	}

	desired := uint64(v.cfg.DesiredBaseFee)
	hi := desired * 2
	fee := uint64(signed.Value.BaseFee)
	if 2*fee < desired || fee > hi {
		v.log.Debug().Uint32("fee", signed.Value.BaseFee).Msg("validateBallot: fee outside sane range")
		cb(false)
		return
	}

	localID := v.engine.LocalNodeID()
	if v.engine.SecretKey().IsZero() && fromNode == localID {
		v.log.Debug().Msg("validateBallot: observer node rejecting own ballot")
		cb(false)
		return
	}

	quorum := v.engine.LocalQuorumSet()
	isTrusted := quorum.Contains(signed.SignerPublicKey) || signed.SignerPublicKey == localID
	isKing := ballot.IsKing(slotIndex, fbaBallot.Counter, signed.SignerPublicKey, quorum)

	if isTrusted && isKing {
		cb(true)
		return
	}

	v.deferBallot(slotIndex, fbaBallot, fromNode, cb)
}

// withinCounterGrowthBound implements spec.md §4.5 step 3: caps counter
// growth by elapsed wall-clock time since lastTrigger, defeating a
// counter-exhaustion attack. The inner search is itself bounded by the
// same inequality, so an attacker cannot force an unbounded scan with a
// single oversized counter value.
func (v *Validator) withinCounterGrowthBound(now time.Time, counter uint32) bool {
	slip := v.cfg.MaxTimeSlip
	capDuration := v.cfg.MaxFBATimeout
	elapsedBudget := now.Add(slip).Sub(v.lastTrigger)
	if elapsedBudget < 0 {
		return false
	}

	var cumulative time.Duration
	for i := uint32(0); i < counter; i++ {
		if cumulative >= elapsedBudget {
			return false
		}
		cumulative += backoffDuration(i, capDuration)
	}
	// The loop's own guard only ever tests cumulative before the final term
	// is added; re-test once more against the fully accumulated sum
	// (_examples/original_source/src/herder/Herder.cpp:258) so a counter
	// whose last backoff term alone exceeds the remaining budget is still
	// rejected.
	if cumulative >= elapsedBudget {
		return false
	}
	return true
}

// backoffDuration is min(MAX_FBA_TIMEOUT_SECONDS, 2^k) seconds, the term
// summed in spec.md §4.5 step 3's bound.
func backoffDuration(k uint32, capDuration time.Duration) time.Duration {
	if k >= 63 {
		return capDuration
	}
	d := time.Duration(1<<k) * time.Second
	if d > capDuration || d <= 0 {
		return capDuration
	}
	return d
}

// deferBallot implements spec.md §4.5 step 8: arms a deferred-accept timer
// and, if the current waiters on this ballot already form a v-blocking set,
// stops every waiter's timer and accepts for each of them immediately.
func (v *Validator) deferBallot(slotIndex uint64, fbaBallot herder.FBABallot, fromNode herder.NodeID, cb func(bool)) {
	key := ballotKey(fbaBallot)
	set, ok := v.deferrals[key]
	if !ok {
		set = make(map[herder.NodeID]pendingDeferral)
		v.deferrals[key] = set
	}

	durationSeconds := math.Pow(2, float64(fbaBallot.Counter)) / 2
	duration := time.Duration(durationSeconds * float64(time.Second))

	timer := v.clock.AfterFunc(duration, func() {
		delete(v.deferrals[key], fromNode)
		cb(true)
	})
	set[fromNode] = pendingDeferral{timer: timer, cancel: cb}

	waiters := make(map[herder.NodeID]struct{}, len(set))
	for node := range set {
		waiters[node] = struct{}{}
	}
	if v.engine.IsVBlocking(waiters) {
		for node, pending := range set {
			pending.timer.Stop()
			delete(set, node)
			pending.cancel(true)
		}
	}
}

// BallotDidHearFromQuorum implements spec.md §4.5 ballotDidHearFromQuorum.
func (v *Validator) BallotDidHearFromQuorum(slotIndex uint64, fbaBallot herder.FBABallot) {
	if !v.sync.Synced() {
		return
	}
	header := v.ledger.LastClosedLedgerHeader()
	if slotIndex != header.LedgerSeq+1 {
		v.log.Error().Uint64("slot", slotIndex).Msg("ballotDidHearFromQuorum: slot index does not match last closed ledger + 1")
		return
	}

	if v.bumpTimer != nil {
		v.bumpTimer.Stop()
	}
	duration := time.Duration(math.Pow(2, float64(fbaBallot.Counter))) * time.Second
	v.bumpTimer = v.clock.AfterFunc(duration, func() {
		v.expireBallot(slotIndex, fbaBallot)
	})
}

// expireBallot fires on bump timer expiry: re-enter FBA with a bumped
// counter and the value carried by the ballot passed to
// BallotDidHearFromQuorum, decoded from its wire bytes. It does not consult
// SlotDriver's current proposed value.
func (v *Validator) expireBallot(slotIndex uint64, fbaBallot herder.FBABallot) {
	signed, err := ballot.Decode(fbaBallot.Value)
	if err != nil {
		v.log.Error().Err(err).Msg("expireBallot: could not decode ballot value")
		return
	}
	v.engine.PrepareValue(slotIndex, signed, true)
}

// CancelBumpTimer stops the single outstanding bump timer, used by
// spec.md §4.6 valueExternalized step 1 ("Cancel bumpTimer").
func (v *Validator) CancelBumpTimer() {
	if v.bumpTimer != nil {
		v.bumpTimer.Stop()
		v.bumpTimer = nil
	}
}

// ClearTimers cancels every outstanding deferred-accept timer, used by
// spec.md §4.6 ledgerClosed ("their outcome is moot").
func (v *Validator) ClearTimers() {
	for key, set := range v.deferrals {
		for node, pending := range set {
			pending.timer.Stop()
			delete(set, node)
		}
		delete(v.deferrals, key)
	}
}

// ballotKey derives a comparable map key for a FBABallot, whose Value field
// is a []byte and so not itself comparable.
func ballotKey(b herder.FBABallot) string {
	buf := make([]byte, 4+len(b.Value))
	buf[0] = byte(b.Counter)
	buf[1] = byte(b.Counter >> 8)
	buf[2] = byte(b.Counter >> 16)
	buf[3] = byte(b.Counter >> 24)
	copy(buf[4:], b.Value)
	return string(buf)
}
