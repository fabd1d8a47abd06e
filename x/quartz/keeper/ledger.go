package keeper

import (
	"encoding/json"
	"fmt"

	"cosmossdk.io/math"

	"github.com/virtengine/quartz/internal/processor"
	"github.com/virtengine/quartz/pkg/quartztypes"
	"github.com/virtengine/quartz/x/quartz/types"
)

// GetBalance returns address's escrowed reserve balance, zero if unset.
// This ledger accounts for native coin the contract actually holds; it is
// distinct from (and reconciled against, via Deposit/Update) the encrypted
// per-account balances the enclave maintains inside its sealed state.
func (k *Keeper) GetBalance(address string) math.Int {
	bz := k.store.Get(types.BalanceKey(address))
	if bz == nil {
		return math.ZeroInt()
	}
	var amount math.Int
	if err := amount.Unmarshal(bz); err != nil {
		k.logger.Error("corrupt balance record", "address", address, "error", err)
		return math.ZeroInt()
	}
	return amount
}

func (k *Keeper) setBalance(address string, amount math.Int) error {
	bz, err := amount.Marshal()
	if err != nil {
		return fmt.Errorf("keeper: marshal balance: %w", err)
	}
	k.store.Set(types.BalanceKey(address), bz)
	return nil
}

// HandleDeposit credits account's escrow balance by amount and queues a
// matching processor.DepositRequest for the enclave's next batch, per
// ExecuteMsg's "deposit" variant.
func (k *Keeper) HandleDeposit(msg types.DepositMsg) error {
	if msg.Amount.IsNegative() || msg.Amount.IsZero() {
		return types.ErrInvalidEpoch.Wrap("deposit amount must be positive")
	}

	if err := k.setBalance(msg.Account, k.GetBalance(msg.Account).Add(msg.Amount)); err != nil {
		return err
	}

	return k.enqueueRequest(processor.Request{
		Deposit: &processor.DepositRequest{Account: msg.Account, Amount: msg.Amount},
	})
}

// HandleWithdrawRequest queues a full-balance withdrawal for account on
// the enclave's next batch. The contract learns the disbursed amount only
// once the enclave's attested UpdateMsg reports it.
func (k *Keeper) HandleWithdrawRequest(msg types.WithdrawMsg) error {
	return k.enqueueRequest(processor.Request{
		Withdraw: &processor.WithdrawRequest{Account: msg.Account, Amount: k.GetBalance(msg.Account)},
	})
}

// HandleTransferRequest records an encrypted transfer instruction for the
// enclave's next batch. The contract never learns the transfer's terms —
// only the session key inside the enclave can decrypt the ciphertext into
// a plaintext processor.TransferRequest — so this stores the opaque bytes
// in the request queue under the next seq_num for the dispatcher to
// forward verbatim; the digest is only logged, to let the enclave's
// eventual attested response be correlated back to this specific request.
func (k *Keeper) HandleTransferRequest(msg types.TransferRequestMsg) error {
	if len(msg.Ciphertext) == 0 || len(msg.Digest) == 0 {
		return types.ErrInvalidEpoch.Wrap("transfer request requires both ciphertext and digest")
	}

	seq := k.nextSeqNum()
	k.store.Set(types.RequestQueueKey(seq), msg.Ciphertext)
	k.logger.Info("transfer request queued", "digest", fmt.Sprintf("%x", msg.Digest), "seq_num", seq)
	return nil
}

// enqueueRequest advances the contract's local seq_num counter and
// appends req to the pending-request queue under the new value, so each
// call lands at a fresh key.
func (k *Keeper) enqueueRequest(req processor.Request) error {
	seq := k.nextSeqNum()

	bz, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("keeper: marshal queued request: %w", err)
	}
	k.store.Set(types.RequestQueueKey(seq), bz)
	return nil
}

func (k *Keeper) nextSeqNum() uint64 {
	bz := k.store.Get(types.SeqNumKey)
	var seq uint64
	for _, b := range bz {
		seq = seq<<8 | uint64(b)
	}
	seq++

	out := make([]byte, 8)
	v := seq
	for i := 7; i >= 0; i-- {
		out[i] = byte(v)
		v >>= 8
	}
	k.store.Set(types.SeqNumKey, out)
	return seq
}

// HandleUpdate verifies the enclave's attested batch result and disburses
// every withdrawal it reports, debiting each address's escrow balance
// (clamped at zero — the enclave's own ledger is authoritative for
// whether a withdrawal was actually funded; the contract's escrow simply
// cannot go negative). This is the only path that mutates escrow balances
// downward: the contract verifies the attestation and, once it checks
// out, accepts the enclave's withdrawal figure as final.
func (k *Keeper) HandleUpdate(msg quartztypes.AttestedMessage[processor.UpdateResponseMessage]) error {
	if err := VerifyAttestedMessage(k, msg); err != nil {
		return err
	}

	for _, w := range msg.Msg.Withdrawals {
		balance := k.GetBalance(w.Account)
		if w.Amount.GT(balance) {
			balance = math.ZeroInt()
		} else {
			balance = balance.Sub(w.Amount)
		}
		if err := k.setBalance(w.Account, balance); err != nil {
			return err
		}
	}

	k.logger.Info("update applied", "withdrawal_count", len(msg.Msg.Withdrawals))
	return nil
}

// HandleQueryResponse verifies the enclave's attested query result. There
// is nothing further for the contract to store: the encrypted balance is
// only meaningful to whoever holds the matching ephemeral private key, so
// this call exists purely as an attestation checkpoint before the result
// is relayed back off-chain.
func (k *Keeper) HandleQueryResponse(msg quartztypes.AttestedMessage[processor.QueryResponseMessage]) error {
	return VerifyAttestedMessage(k, msg)
}
