package attestor

import (
	"encoding/binary"
	"fmt"

	"github.com/virtengine/quartz/pkg/quartztypes"
)

// DCAP quote byte layout, matching Intel's ECDSA quote format (v3/v4): a
// 48-byte header followed by a
// 384-byte report body followed by a variable-length signature block. The
// report body's report_data occupies its final 64 bytes, and mr_enclave
// sits at report-body offset 64 (absolute offset 112).
const (
	quoteHeaderSize     = 48
	reportBodySize      = 384
	mrEnclaveOffsetInRB = 64
	reportDataOffsetInRB = reportBodySize - quartztypes.UserDataSize
	minQuoteSize        = quoteHeaderSize + reportBodySize + 4
)

// DCAPQuoteSource produces a raw DCAP quote for the given 64-byte
// report_data. In a Gramine/SGX build this calls into
// /dev/attestation/{user_report_data,quote}; here it is an injectable
// dependency so the host process can be wired to whichever quote backend
// the platform provides. No implementation of it ships in this module.
type DCAPQuoteSource interface {
	GenerateQuote(reportData [quartztypes.UserDataSize]byte) (quote []byte, collateral []byte, err error)
	MrEnclave() (quartztypes.MrEnclave, error)
}

// DCAPAttestor is the production Attestor backed by a real SGX DCAP quote
// source.
type DCAPAttestor struct {
	src DCAPQuoteSource
}

// NewDCAPAttestor wraps a quote source as an Attestor.
func NewDCAPAttestor(src DCAPQuoteSource) *DCAPAttestor {
	return &DCAPAttestor{src: src}
}

// Quote implements Attestor.
func (a *DCAPAttestor) Quote(m quartztypes.HasUserData) (quartztypes.Attestation, error) {
	userData, err := m.UserData()
	if err != nil {
		return quartztypes.Attestation{}, fmt.Errorf("attestor: compute user data: %w", err)
	}

	quote, collateral, err := a.src.GenerateQuote(userData)
	if err != nil {
		return quartztypes.Attestation{}, fmt.Errorf("attestor: generate quote: %w", err)
	}

	return quartztypes.Attestation{
		Kind: quartztypes.AttestationDCAP,
		DCAP: &quartztypes.DCAPAttestation{Quote: quote, Collateral: collateral},
	}, nil
}

// MrEnclave implements Attestor.
func (a *DCAPAttestor) MrEnclave() (quartztypes.MrEnclave, error) {
	return a.src.MrEnclave()
}

// ExtractMrEnclave pulls the 32-byte code measurement out of a raw DCAP
// quote at its fixed offset (absolute 112, i.e. header size + 64 bytes into
// the report body).
func ExtractMrEnclave(quote []byte) (quartztypes.MrEnclave, error) {
	const off = quoteHeaderSize + mrEnclaveOffsetInRB
	if len(quote) < off+quartztypes.HashSize {
		return quartztypes.MrEnclave{}, fmt.Errorf("attestor: quote too short for mr_enclave: got %d bytes", len(quote))
	}
	var me quartztypes.MrEnclave
	copy(me[:], quote[off:off+quartztypes.HashSize])
	return me, nil
}

// ExtractReportData pulls the 64-byte report_data field out of a raw DCAP
// quote; it is the last 64 bytes of the report body.
func ExtractReportData(quote []byte) (quartztypes.UserData, error) {
	if len(quote) < minQuoteSize {
		return quartztypes.UserData{}, fmt.Errorf("attestor: quote too short: got %d bytes, need at least %d", len(quote), minQuoteSize)
	}
	off := quoteHeaderSize + reportDataOffsetInRB
	var ud quartztypes.UserData
	copy(ud[:], quote[off:off+quartztypes.UserDataSize])
	return ud, nil
}

// quoteSignatureLength reads the little-endian signature-length field that
// immediately follows the header and report body.
func quoteSignatureLength(quote []byte) (uint32, error) {
	off := quoteHeaderSize + reportBodySize
	if len(quote) < off+4 {
		return 0, fmt.Errorf("attestor: quote missing signature length field")
	}
	return binary.LittleEndian.Uint32(quote[off : off+4]), nil
}

// ValidateQuoteLength checks that quote is at least minQuoteSize and that
// its declared signature-length field matches the number of bytes actually
// following it, rejecting a quote truncated or padded relative to what it
// claims to carry.
func ValidateQuoteLength(quote []byte) error {
	if len(quote) < minQuoteSize {
		return fmt.Errorf("attestor: quote too short: got %d bytes, need at least %d", len(quote), minQuoteSize)
	}
	sigLen, err := quoteSignatureLength(quote)
	if err != nil {
		return err
	}
	wantTotal := quoteHeaderSize + reportBodySize + 4 + int(sigLen)
	if len(quote) != wantTotal {
		return fmt.Errorf("attestor: quote length %d does not match header+body+signature length %d", len(quote), wantTotal)
	}
	return nil
}
