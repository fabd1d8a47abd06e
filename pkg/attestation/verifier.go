package attestation

import (
	"cosmossdk.io/errors"

	"github.com/virtengine/quartz/pkg/attestor"
	"github.com/virtengine/quartz/pkg/quartztypes"
)

// ModuleName namespaces this package's registered errors.
const ModuleName = "attestation"

var (
	ErrMockNotAllowed     = errors.Register(ModuleName, 1, "mock attestation rejected by policy")
	ErrUserDataMismatch   = errors.Register(ModuleName, 2, "report_data does not match recomputed message digest")
	ErrMrEnclaveMismatch  = errors.Register(ModuleName, 3, "mr_enclave does not match expected measurement")
	ErrTCBNotAcceptable   = errors.Register(ModuleName, 4, "TCB status does not meet policy floor")
	ErrQuoteSignature     = errors.Register(ModuleName, 5, "quote signature chain invalid")
	ErrUnknownAttestation = errors.Register(ModuleName, 6, "unrecognised attestation kind")
)

// CollateralVerifier checks a DCAP quote's certificate/signature chain
// against supplied collateral and reports the resulting TCB status. It is a
// narrow seam so tests can substitute a stub instead of a real PCK cert
// chain and CRL set.
type CollateralVerifier interface {
	VerifyChain(quote, collateral []byte) (TCBStatus, error)
}

// Verifier checks AttestedMessage payloads: it always recomputes the
// expected UserData from the message itself, then checks that value
// against either the Mock payload or the DCAP quote's report_data, and for
// DCAP additionally verifies the quote's signature chain and TCB status.
type Verifier struct {
	policy            Policy
	expectedMrEnclave quartztypes.MrEnclave
	collateral        CollateralVerifier
}

// NewVerifier constructs a Verifier bound to a single expected mr_enclave
// (the measurement of the enclave code this chain trusts).
func NewVerifier(policy Policy, expectedMrEnclave quartztypes.MrEnclave, collateral CollateralVerifier) *Verifier {
	return &Verifier{policy: policy, expectedMrEnclave: expectedMrEnclave, collateral: collateral}
}

// Verify checks att against msg, returning nil only if the attestation is
// both internally consistent (UserData matches) and acceptable under
// policy (DCAP quote chain/TCB, or Mock allowed).
func (v *Verifier) Verify(msg quartztypes.HasUserData, att quartztypes.Attestation) error {
	wantUserData, err := msg.UserData()
	if err != nil {
		return err
	}

	switch att.Kind {
	case quartztypes.AttestationMock:
		return v.verifyMock(wantUserData, att.Mock)
	case quartztypes.AttestationDCAP:
		return v.verifyDCAP(wantUserData, att.DCAP)
	default:
		return ErrUnknownAttestation
	}
}

func (v *Verifier) verifyMock(wantUserData quartztypes.UserData, mock *quartztypes.MockAttestation) error {
	if !v.policy.AllowMock {
		return ErrMockNotAllowed
	}
	if mock == nil || mock.UserData != wantUserData {
		return ErrUserDataMismatch
	}
	return nil
}

func (v *Verifier) verifyDCAP(wantUserData quartztypes.UserData, dcap *quartztypes.DCAPAttestation) error {
	if dcap == nil {
		return ErrUnknownAttestation
	}

	if err := attestor.ValidateQuoteLength(dcap.Quote); err != nil {
		return errors.Wrap(ErrQuoteSignature, err.Error())
	}

	gotUserData, err := attestor.ExtractReportData(dcap.Quote)
	if err != nil {
		return errors.Wrap(ErrQuoteSignature, err.Error())
	}
	if gotUserData != wantUserData {
		return ErrUserDataMismatch
	}

	gotMrEnclave, err := attestor.ExtractMrEnclave(dcap.Quote)
	if err != nil {
		return errors.Wrap(ErrQuoteSignature, err.Error())
	}
	if gotMrEnclave != v.expectedMrEnclave {
		return ErrMrEnclaveMismatch
	}

	status, err := v.collateral.VerifyChain(dcap.Quote, dcap.Collateral)
	if err != nil {
		return errors.Wrap(ErrQuoteSignature, err.Error())
	}
	if !v.policy.acceptableTCB(status) {
		return ErrTCBNotAcceptable
	}

	return nil
}
