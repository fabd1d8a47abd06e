package quartzpb

import (
	"context"

	"google.golang.org/grpc"

	"github.com/virtengine/quartz/internal/processor"
	"github.com/virtengine/quartz/pkg/quartztypes"
)

// RunRequest wraps a processor.UpdateRequestMessage with the proof of
// publication establishing that its request batch was committed on-chain
// under the proof's store key and app hash.
type RunRequest struct {
	Update          processor.UpdateRequestMessage                                  `json:"update"`
	RecipientPubKey []byte                                                          `json:"recipient_pub_key"`
	Proof           *quartztypes.ProofOfPublication[processor.UpdateRequestMessage] `json:"proof,omitempty"`
}

// RunResponse carries the attested result of applying a request batch.
type RunResponse struct {
	Update      processor.UpdateResponseMessage `json:"update"`
	Attestation quartztypes.Attestation         `json:"attestation"`
}

// QueryRequest asks for a read-only view of an account's balance.
type QueryRequest struct {
	Ciphertext      []byte `json:"ciphertext"`
	Account         string `json:"account"`
	EphemeralPubKey []byte `json:"ephemeral_pubkey"`
}

// QueryResponse carries the attested query result, the balance encrypted
// to the caller's ephemeral public key rather than the session key.
type QueryResponse struct {
	Account          string                  `json:"account"`
	EncryptedBalance []byte                  `json:"encrypted_bal"`
	Attestation      quartztypes.Attestation `json:"attestation"`
}

// ClearingRequest asks the enclave to fold a batch of new obligations into
// the sealed clearing state and net the epoch's accrued obligations into
// setoffs.
type ClearingRequest struct {
	Clearing        processor.ClearingRequestMessage `json:"clearing"`
	RecipientPubKey []byte                           `json:"recipient_pub_key"`
}

// ClearingResponse carries the attested setoffs a clearing run produced.
type ClearingResponse struct {
	Clearing    processor.ClearingResponseMessage `json:"clearing"`
	Attestation quartztypes.Attestation           `json:"attestation"`
}

// SettlementServer is the transfers/clearing application surface.
type SettlementServer interface {
	Run(context.Context, *RunRequest) (*RunResponse, error)
	Query(context.Context, *QueryRequest) (*QueryResponse, error)
	Clearing(context.Context, *ClearingRequest) (*ClearingResponse, error)
}

// SettlementServiceDesc is the grpc.ServiceDesc for SettlementServer.
var SettlementServiceDesc = grpc.ServiceDesc{
	ServiceName: "quartz.settlement.v1.Settlement",
	HandlerType: (*SettlementServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Run",
			Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
				req := new(RunRequest)
				if err := dec(req); err != nil {
					return nil, err
				}
				if interceptor == nil {
					return srv.(SettlementServer).Run(ctx, req)
				}
				info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/quartz.settlement.v1.Settlement/Run"}
				handler := func(ctx context.Context, req any) (any, error) {
					return srv.(SettlementServer).Run(ctx, req.(*RunRequest))
				}
				return interceptor(ctx, req, info, handler)
			},
		},
		{
			MethodName: "Query",
			Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
				req := new(QueryRequest)
				if err := dec(req); err != nil {
					return nil, err
				}
				if interceptor == nil {
					return srv.(SettlementServer).Query(ctx, req)
				}
				info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/quartz.settlement.v1.Settlement/Query"}
				handler := func(ctx context.Context, req any) (any, error) {
					return srv.(SettlementServer).Query(ctx, req.(*QueryRequest))
				}
				return interceptor(ctx, req, info, handler)
			},
		},
		{
			MethodName: "Clearing",
			Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
				req := new(ClearingRequest)
				if err := dec(req); err != nil {
					return nil, err
				}
				if interceptor == nil {
					return srv.(SettlementServer).Clearing(ctx, req)
				}
				info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/quartz.settlement.v1.Settlement/Clearing"}
				handler := func(ctx context.Context, req any) (any, error) {
					return srv.(SettlementServer).Clearing(ctx, req.(*ClearingRequest))
				}
				return interceptor(ctx, req, info, handler)
			},
		},
	},
}
