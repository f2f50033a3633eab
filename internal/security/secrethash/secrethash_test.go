package secrethash

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashAndVerify_OK(t *testing.T) {
	cfg := DefaultConfig()

	h, err := cfg.Hash("q0w9e8r7t6y5u4i3o2p1a0s9d8f7g6h5")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(h, "$argon2id$v=19$"))

	ok, err := cfg.Verify("q0w9e8r7t6y5u4i3o2p1a0s9d8f7g6h5", h)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestVerify_WrongSecret(t *testing.T) {
	cfg := DefaultConfig()

	h, err := cfg.Hash("the-real-secret")
	require.NoError(t, err)

	ok, err := cfg.Verify("not-the-secret", h)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestHash_SaltsDiffer(t *testing.T) {
	cfg := DefaultConfig()

	h1, err := cfg.Hash("same-secret")
	require.NoError(t, err)
	h2, err := cfg.Hash("same-secret")
	require.NoError(t, err)
	require.NotEqual(t, h1, h2)
}

func TestVerify_InvalidHash(t *testing.T) {
	cfg := DefaultConfig()

	for _, bad := range []string{
		"",
		"not-a-hash",
		"$argon2i$v=19$m=19456,t=2,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=18$m=19456,t=2,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=0,t=2,p=1$c2FsdA$aGFzaA",
	} {
		ok, err := cfg.Verify("whatever", bad)
		require.ErrorIs(t, err, ErrInvalidHash, "input %q", bad)
		require.False(t, ok)
	}
}

func TestVerify_RejectsOversizedParams(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Params.MemoryKiB = 8 * 1024

	// A hash claiming far more memory than our limit allows must be refused
	// before any key derivation happens.
	big, err := DefaultConfig().Hash("secret")
	require.NoError(t, err)
	inflated := strings.Replace(big, "m=19456", "m=1048576", 1)

	ok, err := cfg.Verify("secret", inflated)
	require.ErrorIs(t, err, ErrInvalidHash)
	require.False(t, ok)
}

func TestHash_EmptySecret(t *testing.T) {
	cfg := DefaultConfig()
	_, err := cfg.Hash("")
	require.ErrorIs(t, err, ErrEmptySecret)
}

func TestConfig_Validate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	bad := DefaultConfig()
	bad.Params.SaltLength = 4
	require.Error(t, bad.Validate())
}
