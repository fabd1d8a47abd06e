// Package quartztypes holds the wire-level data model shared by every
// Quartz component: hashes, enclave measurements, session state and the
// attested-message / proof-of-publication envelopes described in the
// design notes.
package quartztypes

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// HashSize is the width of a sha256 digest in bytes.
const HashSize = 32

// UserDataSize is the width of the SGX/DCAP report_data field.
const UserDataSize = 64

// Hash is a 32-byte sha256 digest.
type Hash [HashSize]byte

func (h Hash) String() string { return hex.EncodeToString(h[:]) }

// IsZero reports whether h is the all-zero digest.
func (h Hash) IsZero() bool { return h == Hash{} }

// MrEnclave is the SGX enclave code measurement.
type MrEnclave [HashSize]byte

func (m MrEnclave) String() string { return hex.EncodeToString(m[:]) }

// UserData is the 64-byte SGX report_data field. By convention the first
// 32 bytes hold a domain-separated digest of the attested message and the
// remaining 32 bytes are zero-padded.
type UserData [UserDataSize]byte

// Nonce is a handshake freshness value chosen by the contract.
type Nonce [HashSize]byte

// Height is a ledger block height.
type Height uint64

// ChainID identifies the settlement chain the enclave is bound to.
type ChainID string

// AppHash is the application state root committed in a block header.
type AppHash []byte

// DomainSeparatedDigest computes sha256(domain || 0x00 || payload) and
// returns it as UserData with the trailing 32 bytes left zero, matching the
// report_data convention used across every attested message type.
func DomainSeparatedDigest(domain string, payload []byte) UserData {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(payload)
	sum := h.Sum(nil)

	var ud UserData
	copy(ud[:HashSize], sum)
	return ud
}

// DigestJSON canonicalises v via encoding/json and folds it into a
// domain-separated UserData value. Handlers that implement HasUserData call
// this from UserData() rather than hashing ad hoc.
func DigestJSON(domain string, v any) (UserData, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return UserData{}, fmt.Errorf("quartztypes: marshal %s payload: %w", domain, err)
	}
	return DomainSeparatedDigest(domain, payload), nil
}

// HasUserData is implemented by every message type that can be attested:
// the enclave computes UserData() and asks the Attestor to bind it into a
// quote's report_data field.
type HasUserData interface {
	UserData() (UserData, error)
}
