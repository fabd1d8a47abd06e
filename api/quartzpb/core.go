package quartzpb

import (
	"context"

	"google.golang.org/grpc"

	"github.com/virtengine/quartz/internal/handshake"
	"github.com/virtengine/quartz/pkg/quartztypes"
)

// InstantiateRequest carries the claimed mr_enclave of the enclave asking
// to begin a session.
type InstantiateRequest struct {
	MrEnclave quartztypes.MrEnclave `json:"mr_enclave"`
}

// InstantiateResponse carries the nonce the contract minted for this
// session.
type InstantiateResponse struct {
	Nonce quartztypes.Nonce `json:"nonce"`
}

// SessionSetPubKeyRequest carries the session key and the attestation
// binding it to the issued nonce.
type SessionSetPubKeyRequest struct {
	Nonce       quartztypes.Nonce       `json:"nonce"`
	PubKey      []byte                  `json:"pub_key"`
	Attestation quartztypes.Attestation `json:"attestation"`
}

// SessionSetPubKeyResponse is empty on success; errors surface as gRPC
// status codes per the error-handling design.
type SessionSetPubKeyResponse struct{}

// CoreServer is the handshake surface: Instantiate then SessionSetPubKey.
type CoreServer interface {
	Instantiate(context.Context, *InstantiateRequest) (*InstantiateResponse, error)
	SessionSetPubKey(context.Context, *SessionSetPubKeyRequest) (*SessionSetPubKeyResponse, error)
}

// CoreServiceDesc is the grpc.ServiceDesc for CoreServer, registered with
// grpc.NewServer().RegisterService.
var CoreServiceDesc = grpc.ServiceDesc{
	ServiceName: "quartz.core.v1.Core",
	HandlerType: (*CoreServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Instantiate",
			Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
				req := new(InstantiateRequest)
				if err := dec(req); err != nil {
					return nil, err
				}
				if interceptor == nil {
					return srv.(CoreServer).Instantiate(ctx, req)
				}
				info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/quartz.core.v1.Core/Instantiate"}
				handler := func(ctx context.Context, req any) (any, error) {
					return srv.(CoreServer).Instantiate(ctx, req.(*InstantiateRequest))
				}
				return interceptor(ctx, req, info, handler)
			},
		},
		{
			MethodName: "SessionSetPubKey",
			Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
				req := new(SessionSetPubKeyRequest)
				if err := dec(req); err != nil {
					return nil, err
				}
				if interceptor == nil {
					return srv.(CoreServer).SessionSetPubKey(ctx, req)
				}
				info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/quartz.core.v1.Core/SessionSetPubKey"}
				handler := func(ctx context.Context, req any) (any, error) {
					return srv.(CoreServer).SessionSetPubKey(ctx, req.(*SessionSetPubKeyRequest))
				}
				return interceptor(ctx, req, info, handler)
			},
		},
	},
}

// ToHandshakeMsg adapts the wire request into the handshake package's
// input type.
func (r *SessionSetPubKeyRequest) ToHandshakeMsg() handshake.SessionSetPubKeyMsg {
	return handshake.SessionSetPubKeyMsg{PubKey: r.PubKey, Attestation: r.Attestation}
}
