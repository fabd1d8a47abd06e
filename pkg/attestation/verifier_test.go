package attestation

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/virtengine/quartz/pkg/quartztypes"
)

type testMessage struct{ payload []byte }

func (m testMessage) UserData() (quartztypes.UserData, error) {
	return quartztypes.DomainSeparatedDigest("verifier-test", m.payload), nil
}

func TestVerifyMockRejectedByDefaultPolicy(t *testing.T) {
	v := NewVerifier(DefaultPolicy(), quartztypes.MrEnclave{}, StaticCollateralVerifier{Status: TCBStatusUpToDate})
	msg := testMessage{payload: []byte("x")}
	ud, _ := msg.UserData()

	err := v.Verify(msg, quartztypes.Attestation{
		Kind: quartztypes.AttestationMock,
		Mock: &quartztypes.MockAttestation{UserData: ud},
	})
	require.ErrorIs(t, err, ErrMockNotAllowed)
}

func TestVerifyMockAcceptedByDevPolicy(t *testing.T) {
	v := NewVerifier(DevPolicy(), quartztypes.MrEnclave{}, StaticCollateralVerifier{Status: TCBStatusUpToDate})
	msg := testMessage{payload: []byte("x")}
	ud, _ := msg.UserData()

	err := v.Verify(msg, quartztypes.Attestation{
		Kind: quartztypes.AttestationMock,
		Mock: &quartztypes.MockAttestation{UserData: ud},
	})
	require.NoError(t, err)
}

func TestVerifyMockUserDataMismatch(t *testing.T) {
	v := NewVerifier(DevPolicy(), quartztypes.MrEnclave{}, StaticCollateralVerifier{Status: TCBStatusUpToDate})
	msg := testMessage{payload: []byte("x")}

	err := v.Verify(msg, quartztypes.Attestation{
		Kind: quartztypes.AttestationMock,
		Mock: &quartztypes.MockAttestation{UserData: quartztypes.UserData{0xFF}},
	})
	require.ErrorIs(t, err, ErrUserDataMismatch)
}

func buildQuote(mrEnclave quartztypes.MrEnclave, reportData quartztypes.UserData) []byte {
	const (
		headerSize     = 48
		reportBodySize = 384
		mrEnclaveOff   = headerSize + 64
		reportDataOff  = headerSize + reportBodySize - quartztypes.UserDataSize
	)
	quote := make([]byte, headerSize+reportBodySize+4)
	copy(quote[mrEnclaveOff:], mrEnclave[:])
	copy(quote[reportDataOff:headerSize+reportBodySize], reportData[:])
	return quote
}

func TestVerifyDCAPHappyPath(t *testing.T) {
	mrEnclave := quartztypes.MrEnclave{0x7, 0x7, 0x7}
	v := NewVerifier(DefaultPolicy(), mrEnclave, StaticCollateralVerifier{Status: TCBStatusUpToDate})

	msg := testMessage{payload: []byte("settle")}
	ud, _ := msg.UserData()
	quote := buildQuote(mrEnclave, ud)

	err := v.Verify(msg, quartztypes.Attestation{
		Kind: quartztypes.AttestationDCAP,
		DCAP: &quartztypes.DCAPAttestation{Quote: quote, Collateral: []byte("collateral")},
	})
	require.NoError(t, err)
}

func TestVerifyDCAPMrEnclaveMismatch(t *testing.T) {
	v := NewVerifier(DefaultPolicy(), quartztypes.MrEnclave{0x01}, StaticCollateralVerifier{Status: TCBStatusUpToDate})

	msg := testMessage{payload: []byte("settle")}
	ud, _ := msg.UserData()
	quote := buildQuote(quartztypes.MrEnclave{0x02}, ud)

	err := v.Verify(msg, quartztypes.Attestation{
		Kind: quartztypes.AttestationDCAP,
		DCAP: &quartztypes.DCAPAttestation{Quote: quote, Collateral: []byte("collateral")},
	})
	require.ErrorIs(t, err, ErrMrEnclaveMismatch)
}

func TestVerifyDCAPTCBRejected(t *testing.T) {
	mrEnclave := quartztypes.MrEnclave{0x7}
	v := NewVerifier(DefaultPolicy(), mrEnclave, StaticCollateralVerifier{Status: TCBStatusOutOfDate})

	msg := testMessage{payload: []byte("settle")}
	ud, _ := msg.UserData()
	quote := buildQuote(mrEnclave, ud)

	err := v.Verify(msg, quartztypes.Attestation{
		Kind: quartztypes.AttestationDCAP,
		DCAP: &quartztypes.DCAPAttestation{Quote: quote, Collateral: []byte("collateral")},
	})
	require.ErrorIs(t, err, ErrTCBNotAcceptable)
}

func TestAcceptableTCB(t *testing.T) {
	p := DefaultPolicy()
	require.True(t, p.acceptableTCB(TCBStatusUpToDate))
	require.False(t, p.acceptableTCB(TCBStatusOutOfDate))
	require.False(t, p.acceptableTCB(TCBStatusUnknown))
}
