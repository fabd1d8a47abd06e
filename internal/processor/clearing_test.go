package processor

import (
	"encoding/json"
	"testing"

	"cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/virtengine/quartz/pkg/keymanager"
	"github.com/virtengine/quartz/x/quartz/types"
)

func mustObligation(t *testing.T, recipient []byte, digest []byte, terms ObligationTerms) types.Obligation {
	t.Helper()
	bz, err := json.Marshal(terms)
	require.NoError(t, err)
	ciphertext, err := keymanager.Encrypt(recipient, bz)
	require.NoError(t, err)
	return types.Obligation{Digest: digest, Ciphertext: ciphertext}
}

func TestRunClearingNetsOppositeObligationsToZero(t *testing.T) {
	p, km := newTestProcessor(t)
	recipient := km.PublicKey()

	obA := mustObligation(t, recipient, []byte("aabb"), ObligationTerms{Payer: "alice", Payee: "bob", Amount: math.NewInt(50)})
	obB := mustObligation(t, recipient, []byte("ccdd"), ObligationTerms{Payer: "bob", Payee: "alice", Amount: math.NewInt(50)})

	resp, _, err := p.RunClearing(ClearingRequestMessage{
		Ciphertext:     []byte{0x00},
		NewObligations: []types.Obligation{obA, obB},
	}, recipient)
	require.NoError(t, err)
	require.Len(t, resp.Setoffs, 1)
	require.Nil(t, resp.Setoffs[0].Transfer)
	require.Len(t, resp.Setoffs[0].Offsets, 2)
}

func TestRunClearingLeavesResidualTransfer(t *testing.T) {
	p, km := newTestProcessor(t)
	recipient := km.PublicKey()

	obA := mustObligation(t, recipient, []byte("aabb"), ObligationTerms{Payer: "alice", Payee: "bob", Amount: math.NewInt(70)})
	obB := mustObligation(t, recipient, []byte("ccdd"), ObligationTerms{Payer: "bob", Payee: "alice", Amount: math.NewInt(20)})

	resp, _, err := p.RunClearing(ClearingRequestMessage{
		Ciphertext:     []byte{0x00},
		NewObligations: []types.Obligation{obA, obB},
	}, recipient)
	require.NoError(t, err)
	require.Len(t, resp.Setoffs, 1)
	require.NotNil(t, resp.Setoffs[0].Transfer)
	require.Equal(t, "alice", resp.Setoffs[0].Transfer.Payer)
	require.Equal(t, "bob", resp.Setoffs[0].Transfer.Payee)
	require.True(t, resp.Setoffs[0].Transfer.Amount.Equal(math.NewInt(50)))
}

func TestRunClearingResetsObligationsAfterRun(t *testing.T) {
	p, km := newTestProcessor(t)
	recipient := km.PublicKey()

	ob := mustObligation(t, recipient, []byte("aabb"), ObligationTerms{Payer: "alice", Payee: "bob", Amount: math.NewInt(10)})
	resp, _, err := p.RunClearing(ClearingRequestMessage{Ciphertext: []byte{0x00}, NewObligations: []types.Obligation{ob}}, recipient)
	require.NoError(t, err)

	state, err := p.decryptClearingState(resp.Ciphertext)
	require.NoError(t, err)
	require.Empty(t, state.Obligations)
}

func TestDecryptClearingStateRejectsMalformedSingleByteSentinel(t *testing.T) {
	p, _ := newTestProcessor(t)

	_, err := p.decryptClearingState([]byte{0x00})
	require.NoError(t, err)

	_, err = p.decryptClearingState([]byte{0x01})
	require.ErrorIs(t, err, ErrInvalidSentinel)
}
