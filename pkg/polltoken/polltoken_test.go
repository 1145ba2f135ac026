package polltoken

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	t.Parallel()

	s := &Signer{Secret: []byte("test-secret"), TTL: time.Minute}

	tok, err := s.Sign("01J8SESSIONREF")
	require.NoError(t, err)

	ref, err := s.Verify(tok)
	require.NoError(t, err)
	require.Equal(t, "01J8SESSIONREF", ref)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	t.Parallel()

	s := &Signer{Secret: []byte("test-secret"), TTL: time.Minute}
	tok, err := s.Sign("ref")
	require.NoError(t, err)

	other := &Signer{Secret: []byte("other-secret"), TTL: time.Minute}
	_, err = other.Verify(tok)
	require.ErrorIs(t, err, ErrInvalid)
}

func TestVerifyRejectsExpired(t *testing.T) {
	t.Parallel()

	s := &Signer{Secret: []byte("test-secret"), TTL: -time.Minute}
	tok, err := s.Sign("ref")
	require.NoError(t, err)

	_, err = s.Verify(tok)
	require.ErrorIs(t, err, ErrExpired)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	t.Parallel()

	s := &Signer{Secret: []byte("test-secret"), TTL: time.Minute}
	_, err := s.Verify("not-a-jwt")
	require.ErrorIs(t, err, ErrInvalid)
}
