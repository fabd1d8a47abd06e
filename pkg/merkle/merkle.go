// Package merkle proves that a key/value pair is committed in the app hash
// a light client verdict already trusts, using ICS23 existence proofs
// against the chain's IAVL commitment store.
package merkle

import (
	"cosmossdk.io/errors"
	ics23 "github.com/cosmos/ics23/go"

	"github.com/virtengine/quartz/pkg/quartztypes"
)

const ModuleName = "merkle"

var (
	ErrEmptyValue     = errors.Register(ModuleName, 1, "empty verified value")
	ErrProofUnmarshal = errors.Register(ModuleName, 2, "unmarshal commitment proof")
	ErrNotExistence   = errors.Register(ModuleName, 3, "proof is not an existence proof")
	ErrMembership     = errors.Register(ModuleName, 4, "membership proof does not verify against app hash")
	ErrCalculateRoot  = errors.Register(ModuleName, 5, "calculate existence root")
)

// Spec is the commitment proof spec this chain's store uses. virtengine,
// like the rest of the Cosmos ecosystem, backs its KVStore with IAVL.
var Spec = ics23.IavlSpec

// Prover checks ICS23 existence proofs against a trusted app hash.
type Prover struct {
	spec *ics23.ProofSpec
}

// New constructs a Prover using Spec.
func New() *Prover {
	return &Prover{spec: Spec}
}

// VerifyMembership checks that key maps to value under proof, given the
// trusted root appHash. It returns nil only if the proof recomputes
// exactly to appHash.
func (p *Prover) VerifyMembership(appHash quartztypes.AppHash, key, value []byte, proofBytes []byte) error {
	if len(value) == 0 {
		return ErrEmptyValue
	}

	proof := &ics23.CommitmentProof{}
	if err := proof.Unmarshal(proofBytes); err != nil {
		return errors.Wrap(ErrProofUnmarshal, err.Error())
	}

	exist := proof.GetExist()
	if exist == nil {
		return ErrNotExistence
	}

	if !ics23.VerifyMembership(p.spec, appHash, proof, key, value) {
		return ErrMembership
	}

	return nil
}

// CalculateRoot recomputes the existence root a proof claims, without
// checking it against any particular app hash. Useful for building a proof
// bottom-up before it is attached to a ProofOfPublication.
func (p *Prover) CalculateRoot(proofBytes []byte) ([]byte, error) {
	proof := &ics23.CommitmentProof{}
	if err := proof.Unmarshal(proofBytes); err != nil {
		return nil, errors.Wrap(ErrProofUnmarshal, err.Error())
	}

	exist := proof.GetExist()
	if exist == nil {
		return nil, ErrNotExistence
	}

	root, err := ics23.CalculateExistenceRoot(exist)
	if err != nil {
		return nil, errors.Wrap(ErrCalculateRoot, err.Error())
	}
	return root, nil
}
