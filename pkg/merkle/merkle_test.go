package merkle

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVerifyMembershipRejectsMalformedProof(t *testing.T) {
	p := New()
	err := p.VerifyMembership([]byte("app-hash"), []byte("k"), []byte("v"), []byte("not a proof"))
	require.Error(t, err)
}

func TestCalculateRootRejectsMalformedProof(t *testing.T) {
	p := New()
	_, err := p.CalculateRoot([]byte("not a proof"))
	require.Error(t, err)
}

func TestSpecIsIavl(t *testing.T) {
	require.NotNil(t, Spec)
	require.Equal(t, Spec, New().spec)
}
