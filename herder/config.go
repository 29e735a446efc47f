package herder

import "time"

// Config holds the recognized configuration options of spec.md §6.
type Config struct {
	// ValidationKey is the node's secret validation key; a zero key means
	// watch-only (spec.md §4.5 step 5).
	ValidationKey Signer
	// QuorumThreshold and QuorumSetIDs define the local node's FBA trust.
	QuorumThreshold uint32
	QuorumSetIDs    []NodeID
	// DesiredBaseFee bounds the fee-sanity check (spec.md §4.5 step 4).
	DesiredBaseFee uint32
	// StartNewNetwork, when true, makes Bootstrap trigger immediately with
	// ledgersToWaitToParticipate cleared to zero (spec.md §4.7).
	StartNewNetwork bool

	// Compile-time constants, exposed as configuration so tests can shrink
	// them; production wiring uses the defaults below.
	MaxTimeSlip             time.Duration
	MaxFBATimeout           time.Duration
	ExpectedLedgerTimespan  time.Duration
	LedgerValidityBracket   uint64
	NodeExpiration          time.Duration
	LedgersToWaitToParticipate uint64
}

// DefaultConstants returns the compile-time constants at their production
// values (spec.md §6), plus a non-zero default DesiredBaseFee so the
// defaults pass Validate once a quorum is configured.
func DefaultConstants() Config {
	return Config{
		DesiredBaseFee:             10,
		MaxTimeSlip:                60 * time.Second,
		MaxFBATimeout:              30 * time.Minute,
		ExpectedLedgerTimespan:     5 * time.Second,
		LedgerValidityBracket:      100,
		NodeExpiration:             24 * time.Hour,
		LedgersToWaitToParticipate: 3,
	}
}

// Validate checks the recognized options for internal consistency.
func (c Config) Validate() error {
	if c.DesiredBaseFee == 0 {
		return NewConfigurationErrorf("DESIRED_BASE_FEE must be non-zero")
	}
	if c.QuorumThreshold == 0 {
		return NewConfigurationErrorf("QUORUM_THRESHOLD must be non-zero")
	}
	if int(c.QuorumThreshold) > len(c.QuorumSetIDs) {
		return NewConfigurationErrorf("QUORUM_THRESHOLD (%d) exceeds QUORUM_SET size (%d)", c.QuorumThreshold, len(c.QuorumSetIDs))
	}
	if c.MaxTimeSlip <= 0 {
		return NewConfigurationErrorf("MAX_TIME_SLIP_SECONDS must be positive")
	}
	if c.MaxFBATimeout <= 0 {
		return NewConfigurationErrorf("MAX_FBA_TIMEOUT_SECONDS must be positive")
	}
	if c.ExpectedLedgerTimespan <= 0 {
		return NewConfigurationErrorf("EXP_LEDGER_TIMESPAN_SECONDS must be positive")
	}
	return nil
}

// QuorumSetValue builds the herder.QuorumSet this config describes.
func (c Config) QuorumSetValue() QuorumSet {
	return NewQuorumSet(c.QuorumThreshold, c.QuorumSetIDs)
}
