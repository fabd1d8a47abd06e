package handshake

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/virtengine/quartz/pkg/attestation"
	"github.com/virtengine/quartz/pkg/merkle"
	"github.com/virtengine/quartz/pkg/quartztypes"
	"github.com/virtengine/quartz/x/quartz/types"
)

func TestHappyPathToKeyPublished(t *testing.T) {
	mrEnclave := quartztypes.MrEnclave{0x1, 0x2, 0x3}
	verifier := attestation.NewVerifier(attestation.DevPolicy(), mrEnclave, attestation.StaticCollateralVerifier{Status: attestation.TCBStatusUpToDate})

	m := New(verifier)
	require.Equal(t, quartztypes.StatusUninitialised, m.State().Status)

	nonce, err := m.Instantiate(SessionCreateMsg{MrEnclave: mrEnclave})
	require.NoError(t, err)
	require.Equal(t, quartztypes.StatusNonceIssued, m.State().Status)
	require.Equal(t, nonce, m.State().Nonce)

	nm := nonceMessage{nonce: nonce, mrEnclave: mrEnclave}
	ud, err := nm.UserData()
	require.NoError(t, err)

	err = m.SetPubKey(SessionSetPubKeyMsg{
		PubKey: []byte("session-pub-key"),
		Attestation: quartztypes.Attestation{
			Kind: quartztypes.AttestationMock,
			Mock: &quartztypes.MockAttestation{UserData: ud},
		},
	})
	require.NoError(t, err)
	require.Equal(t, quartztypes.StatusKeyPublished, m.State().Status)
	require.Equal(t, []byte("session-pub-key"), m.State().PubKey)
}

func TestInstantiateTwiceFails(t *testing.T) {
	verifier := attestation.NewVerifier(attestation.DevPolicy(), quartztypes.MrEnclave{}, attestation.StaticCollateralVerifier{Status: attestation.TCBStatusUpToDate})
	m := New(verifier)

	_, err := m.Instantiate(SessionCreateMsg{})
	require.NoError(t, err)

	_, err = m.Instantiate(SessionCreateMsg{})
	require.ErrorIs(t, err, ErrWrongState)
}

func TestSetPubKeyWithBadAttestationFails(t *testing.T) {
	mrEnclave := quartztypes.MrEnclave{0x9}
	verifier := attestation.NewVerifier(attestation.DevPolicy(), mrEnclave, attestation.StaticCollateralVerifier{Status: attestation.TCBStatusUpToDate})
	m := New(verifier)

	_, err := m.Instantiate(SessionCreateMsg{MrEnclave: mrEnclave})
	require.NoError(t, err)

	err = m.SetPubKey(SessionSetPubKeyMsg{
		PubKey: []byte("pk"),
		Attestation: quartztypes.Attestation{
			Kind: quartztypes.AttestationMock,
			Mock: &quartztypes.MockAttestation{UserData: quartztypes.UserData{0xFF}},
		},
	})
	require.Error(t, err)
	require.Equal(t, quartztypes.StatusNonceIssued, m.State().Status)
}

func TestVerifyNoncePublishedRejectsUnprovenNonce(t *testing.T) {
	prover := merkle.New()
	nonce := quartztypes.Nonce{0x5, 0x5}
	mrEnclave := quartztypes.MrEnclave{0x9}

	err := VerifyNoncePublished(prover, quartztypes.AppHash([]byte("app-hash")), nonce, mrEnclave, []byte("not a proof"))
	require.ErrorIs(t, err, types.ErrProofOfPublication)
}
