package keymanager

import (
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	recipient, err := New()
	require.NoError(t, err)

	plaintext := []byte("session state ciphertext blob")
	ciphertext, err := Encrypt(recipient.PublicKey(), plaintext)
	require.NoError(t, err)
	require.NotEqual(t, plaintext, ciphertext)

	got, err := recipient.Decrypt(ciphertext)
	require.NoError(t, err)
	require.Equal(t, plaintext, got)
}

func TestDecryptWrongKeyFails(t *testing.T) {
	recipient, err := New()
	require.NoError(t, err)
	other, err := New()
	require.NoError(t, err)

	ciphertext, err := Encrypt(recipient.PublicKey(), []byte("secret"))
	require.NoError(t, err)

	_, err = other.Decrypt(ciphertext)
	require.Error(t, err)
}

func TestSignProducesSignature(t *testing.T) {
	m, err := New()
	require.NoError(t, err)

	digest := sha256.Sum256([]byte("message"))
	sig, err := m.Sign(digest)
	require.NoError(t, err)
	require.NotEmpty(t, sig)
}

func TestPublicKeyIsCompressed(t *testing.T) {
	m, err := New()
	require.NoError(t, err)
	require.Len(t, m.PublicKey(), 33)
}
