// Package keeper implements the contract-side handler: it stores session
// handshake state and epoch-scoped obligation/setoff/liquidity-source
// collections, verifying every inbound attested message before it is
// allowed to mutate state. It is deliberately built directly on
// cosmossdk.io/store's KVStore rather than a full cosmos-sdk baseapp/module
// manager, since this module owns only the quartz trust pipeline and not a
// runnable chain binary.
package keeper

import (
	"encoding/json"
	"fmt"

	"cosmossdk.io/log"

	"github.com/virtengine/quartz/pkg/attestation"
	"github.com/virtengine/quartz/pkg/merkle"
	"github.com/virtengine/quartz/pkg/quartztypes"
	"github.com/virtengine/quartz/x/quartz/types"
)

// Store is the slice of cosmossdk.io/store/types.KVStore this keeper
// needs. Any KVStore satisfies it automatically; the narrower interface
// lets tests substitute a plain in-memory map instead of standing up a
// full IAVL-backed commit multistore.
type Store interface {
	Get(key []byte) []byte
	Set(key, value []byte)
	Delete(key []byte)
	Has(key []byte) bool
}

// Keeper owns the quartz module's KVStore and the attestation policy every
// inbound message is checked against.
type Keeper struct {
	store    Store
	verifier *attestation.Verifier
	prover   *merkle.Prover
	logger   log.Logger
}

// NewKeeper constructs a Keeper over store, verifying attestations with
// verifier and membership proofs with prover.
func NewKeeper(store Store, verifier *attestation.Verifier, prover *merkle.Prover, logger log.Logger) *Keeper {
	return &Keeper{
		store:    store,
		verifier: verifier,
		prover:   prover,
		logger:   logger.With("module", "x/"+types.ModuleName),
	}
}

// Logger returns the module logger.
func (k *Keeper) Logger() log.Logger { return k.logger }

// GetSession returns the stored session state for a session identified by
// its (eventual) session public key handle. handle is the nonce while the
// session is still pending key publication.
func (k *Keeper) GetSession(handle []byte) (quartztypes.SessionState, bool) {
	bz := k.store.Get(types.SessionKey(handle))
	if bz == nil {
		return quartztypes.SessionState{}, false
	}
	var state quartztypes.SessionState
	if err := json.Unmarshal(bz, &state); err != nil {
		k.logger.Error("corrupt session record", "error", err)
		return quartztypes.SessionState{}, false
	}
	return state, true
}

// SetSession persists session state under handle.
func (k *Keeper) SetSession(handle []byte, state quartztypes.SessionState) error {
	bz, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("keeper: marshal session state: %w", err)
	}
	k.store.Set(types.SessionKey(handle), bz)
	return nil
}

// CurrentEpoch returns the module's current epoch counter, defaulting to
// zero before the first InitClearing.
func (k *Keeper) CurrentEpoch() quartztypes.Epoch {
	bz := k.store.Get(types.EpochCounterKey)
	if bz == nil {
		return 0
	}
	var epoch uint64
	for _, b := range bz {
		epoch = epoch<<8 | uint64(b)
	}
	return quartztypes.Epoch(epoch)
}

// advanceEpoch increments and persists the epoch counter, returning the
// new value.
func (k *Keeper) advanceEpoch() quartztypes.Epoch {
	next := k.CurrentEpoch() + 1
	bz := make([]byte, 8)
	v := uint64(next)
	for i := 7; i >= 0; i-- {
		bz[i] = byte(v)
		v >>= 8
	}
	k.store.Set(types.EpochCounterKey, bz)
	return next
}

// VerifyAttestedMessage is the single entry point every msg handler routes
// an inbound AttestedMessage through before touching state.
func VerifyAttestedMessage[M quartztypes.HasUserData](k *Keeper, msg quartztypes.AttestedMessage[M]) error {
	if err := k.verifier.Verify(msg.Msg, msg.Attestation); err != nil {
		return types.ErrAttestationInvalid
	}
	return nil
}
