package cryptox

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateToken(t *testing.T) {
	t.Parallel()

	t.Run("produces unique tokens", func(t *testing.T) {
		a, err := GenerateToken(TokenSize128)
		require.NoError(t, err)
		b, err := GenerateToken(TokenSize128)
		require.NoError(t, err)
		require.NotEqual(t, a, b)
	})

	t.Run("rejects non-positive sizes", func(t *testing.T) {
		_, err := GenerateToken(0)
		require.Error(t, err)
		_, err = GenerateToken(-1)
		require.Error(t, err)
	})
}

func TestFingerprintTokenIsDeterministic(t *testing.T) {
	t.Parallel()

	require.Equal(t, FingerprintToken("abc"), FingerprintToken("abc"))
	require.NotEqual(t, FingerprintToken("abc"), FingerprintToken("abd"))
	require.Len(t, FingerprintToken("abc"), 43)
}

func TestSecureCompare(t *testing.T) {
	t.Parallel()

	require.True(t, SecureCompare("secret", "secret"))
	require.False(t, SecureCompare("secret", "secres"))
	require.False(t, SecureCompare("secret", "secret2"))
	require.False(t, SecureCompare("", "secret"))
	require.True(t, SecureCompare("", ""))
}
