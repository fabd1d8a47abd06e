package lightclient

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	require.Equal(t, int64(1), opts.TrustLevel.Numerator)
	require.Equal(t, int64(3), opts.TrustLevel.Denominator)
	require.Positive(t, opts.TrustingPeriod)
	require.Positive(t, opts.MaxClockDrift)
}
