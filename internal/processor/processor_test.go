package processor

import (
	"testing"

	"cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/virtengine/quartz/pkg/attestor"
	"github.com/virtengine/quartz/pkg/keymanager"
	"github.com/virtengine/quartz/pkg/quartztypes"
)

func newTestProcessor(t *testing.T) (*Processor, *keymanager.Manager) {
	t.Helper()
	km, err := keymanager.New()
	require.NoError(t, err)
	att := attestor.NewMockAttestor(quartztypes.MrEnclave{0x1})
	return New(km, att), km
}

func TestRunDepositThenTransferThenWithdraw(t *testing.T) {
	p, km := newTestProcessor(t)
	recipient := km.PublicKey()

	resp, _, err := p.Run(UpdateRequestMessage{
		Ciphertext: []byte{0x00},
		SeqNum:     1,
		Requests: []Request{
			{Deposit: &DepositRequest{Account: "alice", Amount: math.NewInt(100)}},
		},
	}, recipient)
	require.NoError(t, err)

	resp, _, err = p.Run(UpdateRequestMessage{
		Ciphertext: resp.Ciphertext,
		SeqNum:     2,
		Requests: []Request{
			{Transfer: &TransferRequest{From: "alice", To: "bob", Amount: math.NewInt(40)}},
		},
	}, recipient)
	require.NoError(t, err)

	resp, _, err = p.Run(UpdateRequestMessage{
		Ciphertext: resp.Ciphertext,
		SeqNum:     3,
		Requests: []Request{
			{Withdraw: &WithdrawRequest{Account: "bob", Amount: math.NewInt(40)}},
		},
	}, recipient)
	require.NoError(t, err)
	require.Len(t, resp.Withdrawals, 1)
	require.Equal(t, "bob", resp.Withdrawals[0].Account)
	require.True(t, resp.Withdrawals[0].Amount.Equal(math.NewInt(40)))

	state, err := p.decryptState(resp.Ciphertext)
	require.NoError(t, err)
	require.True(t, state.Balances["alice"].Equal(math.NewInt(60)))
	require.True(t, state.Balances["bob"].Equal(math.ZeroInt()))
}

func TestTransferInsufficientBalanceIsNoOp(t *testing.T) {
	p, km := newTestProcessor(t)
	recipient := km.PublicKey()

	resp, _, err := p.Run(UpdateRequestMessage{
		Ciphertext: []byte{0x00},
		SeqNum:     1,
		Requests: []Request{
			{Deposit: &DepositRequest{Account: "alice", Amount: math.NewInt(10)}},
			{Transfer: &TransferRequest{From: "alice", To: "bob", Amount: math.NewInt(9999)}},
		},
	}, recipient)
	require.NoError(t, err)

	state, err := p.decryptState(resp.Ciphertext)
	require.NoError(t, err)
	require.True(t, state.Balances["alice"].Equal(math.NewInt(10)))
	_, bobExists := state.Balances["bob"]
	require.False(t, bobExists)
}

func TestSeqNumRegressionRejected(t *testing.T) {
	p, km := newTestProcessor(t)
	recipient := km.PublicKey()

	resp, _, err := p.Run(UpdateRequestMessage{Ciphertext: []byte{0x00}, SeqNum: 5}, recipient)
	require.NoError(t, err)

	_, _, err = p.Run(UpdateRequestMessage{Ciphertext: resp.Ciphertext, SeqNum: 3}, recipient)
	require.ErrorIs(t, err, ErrSeqNumRegression)
}

func TestDecryptStateRejectsMalformedSingleByteSentinel(t *testing.T) {
	p, _ := newTestProcessor(t)

	_, err := p.decryptState([]byte{0x00})
	require.NoError(t, err)

	_, err = p.decryptState([]byte{0x01})
	require.ErrorIs(t, err, ErrInvalidSentinel)
}
