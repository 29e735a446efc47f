// Package metrics implements the Herder Prometheus collector, grounded on
// the teacher's module/metrics.NewConsensusCollector constructor pattern:
// build every metric up front, MustRegister them as a batch, and return a
// struct of ready-to-use instruments. This is ambient tooling (spec.md's
// Non-goals exclude none of it): SlotDriver records through this collector
// (BallotValidator does not) but the collector itself models nothing about
// federated agreement.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "herder"

// Collector holds every metric SlotDriver emits over the lifecycle of a
// slot: trigger cadence, externalization, pool rotation, envelope intake,
// and node/slot eviction (spec.md §4.6).
type Collector struct {
	triggersFired       prometheus.Counter
	externalizations    prometheus.Counter
	externalizeLatency  prometheus.Histogram
	poolSizeAfterRotate prometheus.Gauge
	envelopesDropped    prometheus.Counter
	futureEnvelopes     prometheus.Gauge
	nodesEvicted        prometheus.Counter
	slotsEvicted        prometheus.Counter
}

// NewCollector constructs a Collector and registers every metric with
// registerer, matching the teacher's NewConsensusCollector batching.
func NewCollector(registerer prometheus.Registerer) *Collector {
	triggersFired := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "slot",
		Name:      "triggers_fired_total",
		Help:      "number of times the propose trigger timer fired",
	})
	externalizations := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "slot",
		Name:      "externalizations_total",
		Help:      "number of slots externalized",
	})
	externalizeLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "slot",
		Name:      "externalize_latency_seconds",
		Help:      "time from trigger fired to value externalized",
		Buckets:   prometheus.DefBuckets,
	})
	poolSizeAfterRotate := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "txpool",
		Name:      "size_after_rotate",
		Help:      "number of pending transactions remaining immediately after a rotate",
	})
	envelopesDropped := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "slot",
		Name:      "envelopes_dropped_total",
		Help:      "number of inbound FBA envelopes dropped for falling outside the ledger validity bracket",
	})
	futureEnvelopes := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "slot",
		Name:      "future_envelopes_pending",
		Help:      "number of envelopes stashed for replay once their slot becomes current",
	})
	nodesEvicted := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "slot",
		Name:      "nodes_evicted_total",
		Help:      "number of nodes purged for exceeding NODE_EXPIRATION_SECONDS since last contact",
	})
	slotsEvicted := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "slot",
		Name:      "slots_evicted_total",
		Help:      "number of slot purges issued for falling outside the ledger validity bracket",
	})

	registerer.MustRegister(
		triggersFired, externalizations, externalizeLatency, poolSizeAfterRotate,
		envelopesDropped, futureEnvelopes, nodesEvicted, slotsEvicted,
	)

	return &Collector{
		triggersFired:       triggersFired,
		externalizations:    externalizations,
		externalizeLatency:  externalizeLatency,
		poolSizeAfterRotate: poolSizeAfterRotate,
		envelopesDropped:    envelopesDropped,
		futureEnvelopes:     futureEnvelopes,
		nodesEvicted:        nodesEvicted,
		slotsEvicted:        slotsEvicted,
	}
}

// TriggerFired records that the propose trigger timer fired.
func (c *Collector) TriggerFired() { c.triggersFired.Inc() }

// Externalized records a slot externalization, including the latency since
// its trigger fired.
func (c *Collector) Externalized(sinceTrigger time.Duration) {
	c.externalizations.Inc()
	c.externalizeLatency.Observe(sinceTrigger.Seconds())
}

// PoolSizeAfterRotate records the TxPool's size immediately after a rotate.
func (c *Collector) PoolSizeAfterRotate(n int) { c.poolSizeAfterRotate.Set(float64(n)) }

// EnvelopeDropped records an envelope dropped for falling outside the
// ledger validity bracket.
func (c *Collector) EnvelopeDropped() { c.envelopesDropped.Inc() }

// FutureEnvelopesPending sets the current count of stashed future envelopes.
func (c *Collector) FutureEnvelopesPending(n int) { c.futureEnvelopes.Set(float64(n)) }

// NodeEvicted records a node purge for expiration.
func (c *Collector) NodeEvicted() { c.nodesEvicted.Inc() }

// SlotsEvicted records a slot-range purge.
func (c *Collector) SlotsEvicted() { c.slotsEvicted.Inc() }
