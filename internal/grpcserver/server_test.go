package grpcserver

import (
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/virtengine/quartz/internal/handshake"
	"github.com/virtengine/quartz/internal/processor"
	"github.com/virtengine/quartz/x/quartz/types"
)

func TestToStatusMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code codes.Code
	}{
		{"attestation invalid", types.ErrAttestationInvalid, codes.FailedPrecondition},
		{"proof of publication", types.ErrProofOfPublication, codes.FailedPrecondition},
		{"seq num regression", processor.ErrSeqNumRegression, codes.FailedPrecondition},
		{"handshake wrong state", handshake.ErrWrongState, codes.InvalidArgument},
		{"session not found", types.ErrSessionNotFound, codes.FailedPrecondition},
		{"unmapped error", types.ErrClearingNotFound, codes.Internal},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			st, ok := status.FromError(toStatus(tc.err))
			require.True(t, ok)
			require.Equal(t, tc.code, st.Code())
		})
	}
}
