package config_test

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YasinFaraji/herder/herder"
	"github.com/YasinFaraji/herder/herder/config"
)

func fakeSigner(hex string) (herder.Signer, error) {
	var id herder.NodeID
	copy(id[:], hex)
	return testSigner{id: id}, nil
}

type testSigner struct{ id herder.NodeID }

func (s testSigner) PublicKey() herder.NodeID { return s.id }
func (s testSigner) IsZero() bool             { return false }
func (s testSigner) Sign(data []byte) []byte  { return data }

func newFlags() *pflag.FlagSet {
	flags := pflag.NewFlagSet("herder", pflag.ContinueOnError)
	config.InitializeFlags(flags, herder.DefaultConstants())
	return flags
}

func TestLoad_DefaultsAndWatchOnlyWhenNoValidationKey(t *testing.T) {
	flags := newFlags()
	require.NoError(t, flags.Set(config.AllFlagNames()[1], "1")) // quorum-threshold
	require.NoError(t, flags.Set(config.AllFlagNames()[2], "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")) // quorum-set
	require.NoError(t, flags.Parse(nil))

	cfg, err := config.Load(flags, "", fakeSigner)
	require.NoError(t, err)
	assert.True(t, cfg.ValidationKey.IsZero(), "absent validation key must produce a watch-only signer")
	assert.Equal(t, herder.DefaultConstants().MaxTimeSlip, cfg.MaxTimeSlip)
	require.Len(t, cfg.QuorumSetIDs, 1)
}

func TestLoad_ValidationKeyDecodedThroughInjectedHook(t *testing.T) {
	flags := newFlags()
	require.NoError(t, flags.Set("validation-key", "deadbeef"))
	require.NoError(t, flags.Set("quorum-threshold", "1"))
	require.NoError(t, flags.Set("quorum-set", "cccccccccccccccccccccccccccccccccccccccccccccccccccccccccccccc"))
	require.NoError(t, flags.Parse(nil))

	cfg, err := config.Load(flags, "", fakeSigner)
	require.NoError(t, err)
	assert.False(t, cfg.ValidationKey.IsZero())
}

func TestLoad_InvalidQuorumSetHexRejected(t *testing.T) {
	flags := newFlags()
	require.NoError(t, flags.Set("quorum-threshold", "1"))
	require.NoError(t, flags.Set("quorum-set", "not-hex"))
	require.NoError(t, flags.Parse(nil))

	_, err := config.Load(flags, "", fakeSigner)
	assert.Error(t, err)
}

func TestLoad_ZeroQuorumThresholdFailsValidate(t *testing.T) {
	flags := newFlags()
	require.NoError(t, flags.Parse(nil))

	_, err := config.Load(flags, "", fakeSigner)
	assert.Error(t, err, "QUORUM_THRESHOLD must be non-zero per herder.Config.Validate")
}

func TestLoad_OverridesCompileTimeConstant(t *testing.T) {
	flags := newFlags()
	require.NoError(t, flags.Set("quorum-threshold", "1"))
	require.NoError(t, flags.Set("quorum-set", "cccccccccccccccccccccccccccccccccccccccccccccccccccccccccccccc"))
	require.NoError(t, flags.Set("max-time-slip", "2m"))
	require.NoError(t, flags.Parse(nil))

	cfg, err := config.Load(flags, "", fakeSigner)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Minute, cfg.MaxTimeSlip)
}
