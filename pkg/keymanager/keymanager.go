// Package keymanager owns the enclave's session secp256k1 key: generation,
// signing, and ECIES encrypt/decrypt of the enclave's persisted state using
// an ECDH shared secret derived with HKDF-SHA256 and sealed with
// AES-256-GCM. The key never leaves the process; only its public half is
// ever published.
package keymanager

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
	"sync"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"golang.org/x/crypto/hkdf"
)

// hkdfInfo domain-separates the HKDF expansion so a key derived for this
// purpose can never be confused with one derived elsewhere.
const hkdfInfo = "quartz-session-ecies-v1"

// Manager owns a single secp256k1 session key pair, guarded by a mutex so
// concurrent gRPC handlers never observe a half-rotated key.
type Manager struct {
	mu   sync.RWMutex
	priv *secp256k1.PrivateKey
	pub  *secp256k1.PublicKey
}

// New generates a fresh session key pair.
func New() (*Manager, error) {
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, fmt.Errorf("keymanager: generate key: %w", err)
	}
	return &Manager{priv: priv, pub: priv.PubKey()}, nil
}

// PublicKey returns the compressed SEC1 public key bytes published during
// the handshake's SessionSetPubKey step.
func (m *Manager) PublicKey() []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pub.SerializeCompressed()
}

// Sign produces an ECDSA signature (DER-encoded) over a digest, used to
// authenticate enclave-originated messages to the contract.
func (m *Manager) Sign(digest [32]byte) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sig := ecdsa.Sign(m.priv, digest[:])
	return sig.Serialize(), nil
}

// Encrypt seals plaintext for recipientPubKey (compressed SEC1) using ECIES:
// an ephemeral secp256k1 key is generated, its ECDH shared point with
// recipientPubKey is fed through HKDF-SHA256 to derive an AES-256-GCM key,
// and the ephemeral public key is prepended to the ciphertext so the
// recipient can recompute the same shared secret.
func Encrypt(recipientPubKey []byte, plaintext []byte) ([]byte, error) {
	recipient, err := secp256k1.ParsePubKey(recipientPubKey)
	if err != nil {
		return nil, fmt.Errorf("keymanager: parse recipient public key: %w", err)
	}

	ephemeralPriv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, fmt.Errorf("keymanager: generate ephemeral key: %w", err)
	}

	aead, err := ecisAEAD(ephemeralPriv, recipient)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("keymanager: generate nonce: %w", err)
	}

	ephemeralPub := ephemeralPriv.PubKey().SerializeCompressed()
	sealed := aead.Seal(nil, nonce, plaintext, ephemeralPub)

	out := make([]byte, 0, len(ephemeralPub)+len(nonce)+len(sealed))
	out = append(out, ephemeralPub...)
	out = append(out, nonce...)
	out = append(out, sealed...)
	return out, nil
}

// Decrypt opens a ciphertext produced by Encrypt using this Manager's
// session private key.
func (m *Manager) Decrypt(ciphertext []byte) ([]byte, error) {
	const compressedPubKeyLen = 33

	if len(ciphertext) < compressedPubKeyLen {
		return nil, fmt.Errorf("keymanager: ciphertext too short")
	}
	ephemeralPubBytes := ciphertext[:compressedPubKeyLen]
	rest := ciphertext[compressedPubKeyLen:]

	ephemeralPub, err := secp256k1.ParsePubKey(ephemeralPubBytes)
	if err != nil {
		return nil, fmt.Errorf("keymanager: parse ephemeral public key: %w", err)
	}

	m.mu.RLock()
	aead, err := ecisAEAD(m.priv, ephemeralPub)
	m.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	if len(rest) < aead.NonceSize() {
		return nil, fmt.Errorf("keymanager: ciphertext missing nonce")
	}
	nonce, sealed := rest[:aead.NonceSize()], rest[aead.NonceSize():]

	plaintext, err := aead.Open(nil, nonce, sealed, ephemeralPubBytes)
	if err != nil {
		return nil, fmt.Errorf("keymanager: decrypt: %w", err)
	}
	return plaintext, nil
}

func ecisAEAD(priv *secp256k1.PrivateKey, pub *secp256k1.PublicKey) (cipher.AEAD, error) {
	shared := ecdh(priv, pub)

	kdf := hkdf.New(sha256.New, shared[:], nil, []byte(hkdfInfo))
	aesKey := make([]byte, 32)
	if _, err := io.ReadFull(kdf, aesKey); err != nil {
		return nil, fmt.Errorf("keymanager: derive aes key: %w", err)
	}

	block, err := aes.NewCipher(aesKey)
	if err != nil {
		return nil, fmt.Errorf("keymanager: new aes cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("keymanager: new gcm: %w", err)
	}
	return aead, nil
}

// ecdh computes the x-coordinate of priv * pub, the standard ECDH shared
// secret for a Weierstrass curve such as secp256k1.
func ecdh(priv *secp256k1.PrivateKey, pub *secp256k1.PublicKey) [32]byte {
	var point secp256k1.JacobianPoint
	pub.AsJacobian(&point)

	var result secp256k1.JacobianPoint
	secp256k1.ScalarMultNonConst(&priv.Key, &point, &result)
	result.ToAffine()

	var shared [32]byte
	result.X.PutBytesUnchecked(shared[:])
	return shared
}
