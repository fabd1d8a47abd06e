// Package handshake drives the contract-side session state machine:
// Uninitialised -> NonceIssued -> KeyPublished, as a single Go type
// holding the transition rules (instantiate / session_create /
// session_set_pubkey) so the gRPC surface and the contract-side keeper
// can share one implementation.
package handshake

import (
	"crypto/rand"
	"encoding/json"
	"fmt"

	"cosmossdk.io/errors"

	"github.com/virtengine/quartz/pkg/attestation"
	"github.com/virtengine/quartz/pkg/merkle"
	"github.com/virtengine/quartz/pkg/quartztypes"
	"github.com/virtengine/quartz/x/quartz/types"
)

const ModuleName = "handshake"

var ErrWrongState = errors.Register(ModuleName, 1, "session is not in the expected state for this transition")

// SessionCreateMsg is the message the enclave submits once it has an
// attestor ready; the contract responds by issuing a fresh nonce bound to
// the enclave's mr_enclave. This adopts the contract-binding SessionCreate
// variant: the contract itself chooses the nonce rather than trusting one
// supplied by the enclave.
type SessionCreateMsg struct {
	MrEnclave quartztypes.MrEnclave `json:"mr_enclave"`
}

// nonceMessage adapts a Nonce to HasUserData so it can be attested; its
// domain-separated digest is what the enclave must sign over when it
// publishes its session key.
type nonceMessage struct {
	nonce     quartztypes.Nonce
	mrEnclave quartztypes.MrEnclave
}

func (m nonceMessage) UserData() (quartztypes.UserData, error) {
	payload := append(append([]byte{}, m.nonce[:]...), m.mrEnclave[:]...)
	return quartztypes.DomainSeparatedDigest("quartz-session-nonce", payload), nil
}

// SessionSetPubKeyMsg is submitted by the enclave once it has generated its
// session key pair; the attestation proves the key was generated inside an
// enclave matching MrEnclave and bound to the issued Nonce.
type SessionSetPubKeyMsg struct {
	PubKey      []byte                  `json:"pub_key"`
	Attestation quartztypes.Attestation `json:"attestation"`
}

// Machine drives a single session's state transitions. It is not
// goroutine-safe on its own; callers (typically the contract-side keeper)
// serialize access per session key.
type Machine struct {
	state    quartztypes.SessionState
	verifier *attestation.Verifier
}

// New starts a Machine in StatusUninitialised.
func New(verifier *attestation.Verifier) *Machine {
	return &Machine{
		state:    quartztypes.SessionState{Status: quartztypes.StatusUninitialised},
		verifier: verifier,
	}
}

// Resume rebuilds a Machine from previously persisted state, letting a
// caller (typically a keeper reloading a session from its KVStore) keep
// driving transitions without replaying Instantiate.
func Resume(verifier *attestation.Verifier, state quartztypes.SessionState) *Machine {
	return &Machine{state: state, verifier: verifier}
}

// State returns the current session state.
func (m *Machine) State() quartztypes.SessionState { return m.state }

// Instantiate moves Uninitialised -> NonceIssued, minting a fresh random
// nonce bound to the claimed mr_enclave.
func (m *Machine) Instantiate(msg SessionCreateMsg) (quartztypes.Nonce, error) {
	if m.state.Status != quartztypes.StatusUninitialised {
		return quartztypes.Nonce{}, ErrWrongState
	}

	var nonce quartztypes.Nonce
	if _, err := rand.Read(nonce[:]); err != nil {
		return quartztypes.Nonce{}, fmt.Errorf("handshake: generate nonce: %w", err)
	}

	m.state = quartztypes.SessionState{
		Status:    quartztypes.StatusNonceIssued,
		Nonce:     nonce,
		MrEnclave: msg.MrEnclave,
	}
	return nonce, nil
}

// SetPubKey moves NonceIssued -> KeyPublished once the attestation over the
// issued nonce + mr_enclave verifies.
func (m *Machine) SetPubKey(msg SessionSetPubKeyMsg) error {
	if m.state.Status != quartztypes.StatusNonceIssued {
		return ErrWrongState
	}

	nm := nonceMessage{nonce: m.state.Nonce, mrEnclave: m.state.MrEnclave}
	if err := m.verifier.Verify(nm, msg.Attestation); err != nil {
		return errors.Wrapf(types.ErrAttestationInvalid, "handshake: verify session key attestation: %s", err)
	}

	m.state.Status = quartztypes.StatusKeyPublished
	m.state.PubKey = msg.PubKey
	return nil
}

// VerifyNoncePublished proves that the pending session state the contract
// is claimed to have recorded for nonce/mrEnclave is actually committed
// under appHash, an app hash a light-client verdict already trusts. The
// enclave must call this — and get a nil error — before it ever generates
// or publishes a session key for nonce: an Instantiate response that was
// never itself committed on-chain (a forged or stale nonce) must not be
// enough to mint a usable session key.
func VerifyNoncePublished(prover *merkle.Prover, appHash quartztypes.AppHash, nonce quartztypes.Nonce, mrEnclave quartztypes.MrEnclave, storeProof []byte) error {
	want, err := json.Marshal(quartztypes.SessionState{
		Status:    quartztypes.StatusNonceIssued,
		Nonce:     nonce,
		MrEnclave: mrEnclave,
	})
	if err != nil {
		return fmt.Errorf("handshake: marshal expected session state: %w", err)
	}

	key := types.SessionKey(nonce[:])
	if err := prover.VerifyMembership(appHash, key, want, storeProof); err != nil {
		return errors.Wrap(types.ErrProofOfPublication, err.Error())
	}
	return nil
}
