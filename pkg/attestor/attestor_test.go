package attestor

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/virtengine/quartz/pkg/quartztypes"
)

type fixedMessage struct{ payload []byte }

func (m fixedMessage) UserData() (quartztypes.UserData, error) {
	return quartztypes.DomainSeparatedDigest("test-msg", m.payload), nil
}

func TestMockAttestorRoundTrip(t *testing.T) {
	mrEnclave := quartztypes.MrEnclave{0xAA}
	a := NewMockAttestor(mrEnclave)

	got, err := a.MrEnclave()
	require.NoError(t, err)
	require.Equal(t, mrEnclave, got)

	msg := fixedMessage{payload: []byte("hello")}
	att, err := a.Quote(msg)
	require.NoError(t, err)
	require.Equal(t, quartztypes.AttestationMock, att.Kind)
	require.NotNil(t, att.Mock)

	wantUD, err := msg.UserData()
	require.NoError(t, err)
	require.Equal(t, wantUD, att.Mock.UserData)
}

func buildRawQuote(mrEnclave quartztypes.MrEnclave, reportData quartztypes.UserData) []byte {
	quote := make([]byte, minQuoteSize)
	copy(quote[quoteHeaderSize+mrEnclaveOffsetInRB:], mrEnclave[:])
	copy(quote[quoteHeaderSize+reportDataOffsetInRB:quoteHeaderSize+reportBodySize], reportData[:])
	return quote
}

func TestExtractMrEnclaveAndReportData(t *testing.T) {
	mrEnclave := quartztypes.MrEnclave{0x01, 0x02, 0x03}
	reportData := quartztypes.DomainSeparatedDigest("test-msg", []byte("payload"))
	quote := buildRawQuote(mrEnclave, reportData)

	gotMr, err := ExtractMrEnclave(quote)
	require.NoError(t, err)
	require.Equal(t, mrEnclave, gotMr)

	gotRD, err := ExtractReportData(quote)
	require.NoError(t, err)
	require.Equal(t, reportData, gotRD)
}

func TestExtractMrEnclaveTooShort(t *testing.T) {
	_, err := ExtractMrEnclave(make([]byte, 10))
	require.Error(t, err)
}

type stubQuoteSource struct {
	mrEnclave  quartztypes.MrEnclave
	reportData quartztypes.UserData
}

func (s *stubQuoteSource) GenerateQuote(reportData [quartztypes.UserDataSize]byte) ([]byte, []byte, error) {
	s.reportData = reportData
	return buildRawQuote(s.mrEnclave, reportData), []byte("collateral"), nil
}

func (s *stubQuoteSource) MrEnclave() (quartztypes.MrEnclave, error) { return s.mrEnclave, nil }

func TestDCAPAttestorQuote(t *testing.T) {
	src := &stubQuoteSource{mrEnclave: quartztypes.MrEnclave{0x42}}
	a := NewDCAPAttestor(src)

	msg := fixedMessage{payload: []byte("hello")}
	att, err := a.Quote(msg)
	require.NoError(t, err)
	require.Equal(t, quartztypes.AttestationDCAP, att.Kind)
	require.NotNil(t, att.DCAP)

	gotMr, err := ExtractMrEnclave(att.DCAP.Quote)
	require.NoError(t, err)
	require.Equal(t, src.mrEnclave, gotMr)
}
