// Package config loads Herder's recognized configuration options (spec.md
// §6) from a config file, environment, and CLI flags into a validated
// herder.Config. It is grounded on the teacher's own network/netconf.Flags
// convention (const flag-name strings, an Initialize*Flags function that
// registers defaults on a pflag.FlagSet) combined with the pack's
// mosaicnetworks-babble run command (viper.BindPFlags then viper.Unmarshal),
// since the narrow consensus/hotstuff slice copied from the teacher never
// itself exercised spf13/viper or spf13/pflag despite both appearing
// directly in the teacher's own go.mod.
package config

import (
	"encoding/hex"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/YasinFaraji/herder/herder"
)

const (
	flagValidationKey             = "validation-key"
	flagQuorumThreshold           = "quorum-threshold"
	flagQuorumSet                 = "quorum-set"
	flagDesiredBaseFee            = "desired-base-fee"
	flagStartNewNetwork           = "start-new-network"
	flagMaxTimeSlip               = "max-time-slip"
	flagMaxFBATimeout             = "max-fba-timeout"
	flagExpectedLedgerTimespan    = "exp-ledger-timespan"
	flagLedgerValidityBracket     = "ledger-validity-bracket"
	flagNodeExpiration            = "node-expiration"
	flagLedgersToWaitToParticipate = "ledgers-to-wait-to-participate"
)

// AllFlagNames returns every flag name this package registers, mirroring
// the teacher's netconf.AllFlagNames (used there to validate that every
// flag survives the round trip into the viper store).
func AllFlagNames() []string {
	return []string{
		flagValidationKey, flagQuorumThreshold, flagQuorumSet, flagDesiredBaseFee,
		flagStartNewNetwork, flagMaxTimeSlip, flagMaxFBATimeout,
		flagExpectedLedgerTimespan, flagLedgerValidityBracket, flagNodeExpiration,
		flagLedgersToWaitToParticipate,
	}
}

// InitializeFlags registers every recognized option on flags, defaulted from
// defaults (spec.md §6). Mirrors netconf.InitializeNetworkFlags's shape: one
// flags.<Type>(name, default, usage) call per option.
func InitializeFlags(flags *pflag.FlagSet, defaults herder.Config) {
	flags.String(flagValidationKey, "", "hex-encoded validation secret key; omitted means watch-only")
	flags.Uint32(flagQuorumThreshold, defaults.QuorumThreshold, "minimum number of quorum set members required to agree")
	flags.StringSlice(flagQuorumSet, nil, "hex-encoded node ids trusted for federated agreement")
	flags.Uint32(flagDesiredBaseFee, defaults.DesiredBaseFee, "per-operation fee this node considers healthy")
	flags.Bool(flagStartNewNetwork, defaults.StartNewNetwork, "bootstrap a fresh network instead of waiting to catch up")
	flags.Duration(flagMaxTimeSlip, defaults.MaxTimeSlip, "maximum allowed clock skew between this node and a proposed value's close time")
	flags.Duration(flagMaxFBATimeout, defaults.MaxFBATimeout, "ceiling on the exponential ballot counter backoff")
	flags.Duration(flagExpectedLedgerTimespan, defaults.ExpectedLedgerTimespan, "target interval between ledger closes")
	flags.Uint64(flagLedgerValidityBracket, defaults.LedgerValidityBracket, "slot-index window around the last closed ledger accepted from peers")
	flags.Duration(flagNodeExpiration, defaults.NodeExpiration, "idle duration after which a peer's FBA state is purged")
	flags.Uint64(flagLedgersToWaitToParticipate, defaults.LedgersToWaitToParticipate, "ledger closes to observe before this node starts proposing")
}

// SignerFromHex decodes a hex-encoded secret key into a herder.Signer. It is
// an injected hook rather than a fixed implementation, since the signing
// primitive is an out-of-scope collaborator (spec.md §1); production wiring
// passes its own key-scheme decoder here.
type SignerFromHex func(secretKeyHex string) (herder.Signer, error)

// Load reads flags (already parsed) and the config file at configPath, if
// one is given, binds them together (BindPFlags, then ReadInConfig), reads
// each option back through viper's typed getters, decodes the validation
// key and quorum set, and returns a herder.Config that has already passed
// Validate.
func Load(flags *pflag.FlagSet, configPath string, signerFromHex SignerFromHex) (herder.Config, error) {
	v := viper.New()
	if err := v.BindPFlags(flags); err != nil {
		return herder.Config{}, herder.NewConfigurationErrorf("binding flags: %w", err)
	}
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return herder.Config{}, herder.NewConfigurationErrorf("reading config file %s: %w", configPath, err)
		}
	}

	cfg := herder.DefaultConstants()
	cfg.QuorumThreshold = v.GetUint32(flagQuorumThreshold)
	cfg.DesiredBaseFee = v.GetUint32(flagDesiredBaseFee)
	cfg.StartNewNetwork = v.GetBool(flagStartNewNetwork)
	if d := v.GetDuration(flagMaxTimeSlip); d > 0 {
		cfg.MaxTimeSlip = d
	}
	if d := v.GetDuration(flagMaxFBATimeout); d > 0 {
		cfg.MaxFBATimeout = d
	}
	if d := v.GetDuration(flagExpectedLedgerTimespan); d > 0 {
		cfg.ExpectedLedgerTimespan = d
	}
	if n := v.GetUint64(flagLedgerValidityBracket); n > 0 {
		cfg.LedgerValidityBracket = n
	}
	if d := v.GetDuration(flagNodeExpiration); d > 0 {
		cfg.NodeExpiration = d
	}
	cfg.LedgersToWaitToParticipate = v.GetUint64(flagLedgersToWaitToParticipate)

	quorumSetIDs, err := parseNodeIDs(v.GetStringSlice(flagQuorumSet))
	if err != nil {
		return herder.Config{}, err
	}
	cfg.QuorumSetIDs = quorumSetIDs

	keyHex := strings.TrimSpace(v.GetString(flagValidationKey))
	if keyHex != "" {
		signer, err := signerFromHex(keyHex)
		if err != nil {
			return herder.Config{}, herder.NewConfigurationErrorf("decoding validation key: %w", err)
		}
		cfg.ValidationKey = signer
	} else {
		cfg.ValidationKey = watchOnlySigner{}
	}

	if err := cfg.Validate(); err != nil {
		return herder.Config{}, err
	}
	return cfg, nil
}

func parseNodeIDs(hexIDs []string) ([]herder.NodeID, error) {
	ids := make([]herder.NodeID, 0, len(hexIDs))
	for _, h := range hexIDs {
		raw, err := hex.DecodeString(strings.TrimSpace(h))
		if err != nil {
			return nil, herder.NewConfigurationErrorf("quorum set entry %q is not valid hex: %w", h, err)
		}
		if len(raw) != len(herder.NodeID{}) {
			return nil, herder.NewConfigurationErrorf("quorum set entry %q has %d bytes, want %d", h, len(raw), len(herder.NodeID{}))
		}
		var id herder.NodeID
		copy(id[:], raw)
		ids = append(ids, id)
	}
	return ids, nil
}

// watchOnlySigner is the herder.Signer for a node configured without a
// VALIDATION_KEY (spec.md §6): it identifies as the zero NodeID and reports
// IsZero true, which BallotValidator reads as "this node never votes"
// (spec.md §4.5 step 5).
type watchOnlySigner struct{}

func (watchOnlySigner) PublicKey() herder.NodeID { return herder.ZeroNodeID }
func (watchOnlySigner) IsZero() bool             { return true }
func (watchOnlySigner) Sign([]byte) []byte       { return nil }
