// Package grpcserver wires the Core and Settlement gRPC surfaces to the
// handshake state machine, the request processor, and the contract-side
// keeper, translating wire errors into gRPC status codes as prescribed by
// the error-handling design: malformed or misdirected requests become
// InvalidArgument, violated runtime invariants (attestation, merkle proof,
// replay, session state) become FailedPrecondition, and anything
// unexpected becomes Internal.
package grpcserver

import (
	"context"
	"encoding/json"
	"fmt"

	"cosmossdk.io/errors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/virtengine/quartz/api/quartzpb"
	"github.com/virtengine/quartz/internal/handshake"
	"github.com/virtengine/quartz/internal/processor"
	"github.com/virtengine/quartz/pkg/merkle"
	quartzkeeper "github.com/virtengine/quartz/x/quartz/keeper"
	"github.com/virtengine/quartz/x/quartz/types"
)

// ModuleName namespaces this package's registered errors.
const ModuleName = "grpcserver"

var errMissingProof = errors.Register(ModuleName, 1, "update request is missing its proof of publication")

// CoreService implements quartzpb.CoreServer over a quartz keeper.
type CoreService struct {
	keeper *quartzkeeper.Keeper
}

// NewCoreService constructs a CoreService.
func NewCoreService(k *quartzkeeper.Keeper) *CoreService { return &CoreService{keeper: k} }

// Instantiate implements quartzpb.CoreServer.
func (s *CoreService) Instantiate(ctx context.Context, req *quartzpb.InstantiateRequest) (*quartzpb.InstantiateResponse, error) {
	nonce, err := s.keeper.HandleSessionCreate(req.MrEnclave)
	if err != nil {
		return nil, toStatus(err)
	}
	return &quartzpb.InstantiateResponse{Nonce: nonce}, nil
}

// SessionSetPubKey implements quartzpb.CoreServer.
func (s *CoreService) SessionSetPubKey(ctx context.Context, req *quartzpb.SessionSetPubKeyRequest) (*quartzpb.SessionSetPubKeyResponse, error) {
	if err := s.keeper.HandleSessionSetPubKey(req.Nonce, req.ToHandshakeMsg()); err != nil {
		return nil, toStatus(err)
	}
	return &quartzpb.SessionSetPubKeyResponse{}, nil
}

// SettlementService implements quartzpb.SettlementServer over the request
// processor. requireProof gates whether Run demands a ProofOfPublication
// before applying a batch; production wiring always sets this true, tests
// exercising the processor in isolation may leave it false.
type SettlementService struct {
	proc         *processor.Processor
	prover       *merkle.Prover
	requireProof bool
}

// NewSettlementService constructs a SettlementService that requires every
// Run call to carry a verified proof of publication for its request batch.
func NewSettlementService(proc *processor.Processor, prover *merkle.Prover) *SettlementService {
	return &SettlementService{proc: proc, prover: prover, requireProof: true}
}

// Run implements quartzpb.SettlementServer. Per the request processor's
// step 1, it first checks that req.Update.Requests is exactly the value
// the proof of publication proves was published under req.Proof.StoreKey
// at req.Proof.AppHash, before ever touching the sealed state.
func (s *SettlementService) Run(ctx context.Context, req *quartzpb.RunRequest) (*quartzpb.RunResponse, error) {
	if err := s.checkProof(req); err != nil {
		return nil, toStatus(err)
	}

	resp, att, err := s.proc.Run(req.Update, req.RecipientPubKey)
	if err != nil {
		return nil, toStatus(err)
	}
	return &quartzpb.RunResponse{Update: resp, Attestation: att}, nil
}

// checkProof verifies req.Proof's merkle membership evidence against the
// app hash it already carries. The light-client step that established
// trust in that app hash runs upstream of this call (the off-chain driver
// proves the header before ever constructing the ProofOfPublication); this
// method only re-derives the committed value and checks it against the
// claimed request batch, so a tampered batch or a proof for different
// bytes is rejected here.
func (s *SettlementService) checkProof(req *quartzpb.RunRequest) error {
	if !s.requireProof {
		return nil
	}
	if req.Proof == nil {
		return errMissingProof
	}

	value, err := json.Marshal(req.Update.Requests)
	if err != nil {
		return fmt.Errorf("grpcserver: marshal requests for proof check: %w", err)
	}

	if err := s.prover.VerifyMembership(req.Proof.AppHash, req.Proof.StoreKey, value, req.Proof.StoreProof); err != nil {
		return errors.Wrap(types.ErrProofOfPublication, err.Error())
	}
	return nil
}

// Query implements quartzpb.SettlementServer. Balance lookups are
// read-only and do not advance seq_num, so they are served directly
// without going through Run's replay guard or proof check.
func (s *SettlementService) Query(ctx context.Context, req *quartzpb.QueryRequest) (*quartzpb.QueryResponse, error) {
	resp, att, err := s.proc.Query(processor.QueryRequestMessage{
		Ciphertext:      req.Ciphertext,
		Account:         req.Account,
		EphemeralPubKey: req.EphemeralPubKey,
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return &quartzpb.QueryResponse{Account: resp.Account, EncryptedBalance: resp.EncryptedBalance, Attestation: att}, nil
}

// Clearing implements quartzpb.SettlementServer. Unlike Run, a clearing
// round is not gated on a proof of publication: the resulting setoffs
// message carries its own attestation, verified on submission, rather
// than requiring the obligations batch to already be on-chain, so this
// call goes straight to the processor.
func (s *SettlementService) Clearing(ctx context.Context, req *quartzpb.ClearingRequest) (*quartzpb.ClearingResponse, error) {
	resp, att, err := s.proc.RunClearing(req.Clearing, req.RecipientPubKey)
	if err != nil {
		return nil, toStatus(err)
	}
	return &quartzpb.ClearingResponse{Clearing: resp, Attestation: att}, nil
}

// toStatus maps a domain error to a gRPC status, following the
// error-handling design's code table: a malformed or misdirected caller
// request is InvalidArgument, a violated runtime invariant (attestation,
// merkle proof, replay, session state) is FailedPrecondition, and
// anything else is Internal.
func toStatus(err error) error {
	switch {
	case errors.IsOf(err, handshake.ErrWrongState, errMissingProof):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.IsOf(err,
		types.ErrAttestationInvalid,
		types.ErrProofOfPublication,
		processor.ErrSeqNumRegression,
		types.ErrSessionNotFound,
		types.ErrSessionWrongState,
		types.ErrInvalidEpoch,
	):
		return status.Error(codes.FailedPrecondition, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// Register attaches both services to an *grpc.Server.
func Register(srv *grpc.Server, core *CoreService, settlement *SettlementService) {
	srv.RegisterService(&quartzpb.CoreServiceDesc, core)
	srv.RegisterService(&quartzpb.SettlementServiceDesc, settlement)
}

// RegisterSettlement attaches only the Settlement surface to srv. The
// enclave host process serves Settlement; Core belongs to whichever
// process embeds the contract-side keeper (the settlement chain's own
// binary), so it has no home here.
func RegisterSettlement(srv *grpc.Server, settlement *SettlementService) {
	srv.RegisterService(&quartzpb.SettlementServiceDesc, settlement)
}
