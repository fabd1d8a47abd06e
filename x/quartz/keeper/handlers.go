package keeper

import (
	"encoding/json"
	"fmt"

	"github.com/virtengine/quartz/internal/handshake"
	"github.com/virtengine/quartz/pkg/quartztypes"
	"github.com/virtengine/quartz/x/quartz/types"
)

// HandleSessionCreate processes the contract-binding SessionCreate
// variant: the contract mints a fresh nonce bound to the claimed
// mr_enclave and records the session as NonceIssued, keyed by that nonce
// until a public key is published.
func (k *Keeper) HandleSessionCreate(mrEnclave quartztypes.MrEnclave) (quartztypes.Nonce, error) {
	m := handshake.New(k.verifier)
	nonce, err := m.Instantiate(handshake.SessionCreateMsg{MrEnclave: mrEnclave})
	if err != nil {
		return quartztypes.Nonce{}, err
	}

	if err := k.SetSession(nonce[:], m.State()); err != nil {
		return quartztypes.Nonce{}, err
	}

	k.logger.Info("session created", "mr_enclave", mrEnclave.String())
	return nonce, nil
}

// HandleSessionSetPubKey verifies the enclave's attested session key and
// moves the session from NonceIssued to KeyPublished.
func (k *Keeper) HandleSessionSetPubKey(nonce quartztypes.Nonce, msg handshake.SessionSetPubKeyMsg) error {
	state, ok := k.GetSession(nonce[:])
	if !ok {
		return types.ErrSessionNotFound
	}
	if state.Status != quartztypes.StatusNonceIssued {
		return types.ErrSessionWrongState
	}

	m := handshake.Resume(k.verifier, state)
	if err := m.SetPubKey(msg); err != nil {
		return err
	}

	if err := k.SetSession(nonce[:], m.State()); err != nil {
		return err
	}
	if err := k.SetSession(msg.PubKey, m.State()); err != nil {
		return err
	}

	k.logger.Info("session key published", "session_pub_key", fmt.Sprintf("%x", msg.PubKey))
	return nil
}

// HandleSubmitObligation records a single obligation under the current
// epoch's obligation namespace.
func (k *Keeper) HandleSubmitObligation(msg types.SubmitObligationMsg) error {
	epoch := k.CurrentEpoch()
	key := types.EpochKey(types.ObligationPrefix, uint64(epoch), msg.Obligation.Digest)

	bz, err := json.Marshal(msg.Obligation)
	if err != nil {
		return fmt.Errorf("keeper: marshal obligation: %w", err)
	}
	k.store.Set(key, bz)

	k.logger.Info("obligation submitted", "epoch", uint64(epoch), "digest", fmt.Sprintf("%x", msg.Obligation.Digest))
	return nil
}

// HandleSubmitObligations records a batch of obligations plus the
// liquidity sources available to settle them in this epoch.
func (k *Keeper) HandleSubmitObligations(msg types.SubmitObligationsMsg) error {
	for _, ob := range msg.Obligations {
		if err := k.HandleSubmitObligation(types.SubmitObligationMsg{Obligation: ob}); err != nil {
			return err
		}
	}

	epoch := k.CurrentEpoch()
	for i, src := range msg.LiquiditySources {
		key := types.EpochKey(types.LiquiditySourcePrefix, uint64(epoch), []byte{byte(i)})
		bz, err := json.Marshal(src)
		if err != nil {
			return fmt.Errorf("keeper: marshal liquidity source: %w", err)
		}
		k.store.Set(key, bz)
	}
	return nil
}

// HandleInitClearing stores the netted setoffs computed off-chain by the
// enclave for the current epoch, then rolls the epoch counter forward so
// the next round of obligations accrues under a fresh namespace.
func (k *Keeper) HandleInitClearing(setoffs []types.SetOff) error {
	epoch := k.CurrentEpoch()

	bz, err := json.Marshal(setoffs)
	if err != nil {
		return fmt.Errorf("keeper: marshal setoffs: %w", err)
	}
	k.store.Set(types.EpochKey(types.SetoffPrefix, uint64(epoch), nil), bz)

	next := k.advanceEpoch()
	k.logger.Info("clearing initiated", "epoch", uint64(epoch), "next_epoch", uint64(next), "setoff_count", len(setoffs))
	return nil
}
