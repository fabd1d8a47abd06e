package attestor

import "github.com/virtengine/quartz/pkg/quartztypes"

// MockAttestor reports user_data directly as the attestation payload, with
// no cryptographic binding to real TEE hardware. It exists for development
// and test builds where no SGX platform is available; the attestation
// verifier must be explicitly configured to accept Mock attestations.
type MockAttestor struct {
	mrEnclave quartztypes.MrEnclave
}

// NewMockAttestor returns a MockAttestor reporting a fixed, caller-supplied
// mr_enclave (typically all-zero or a well-known test value).
func NewMockAttestor(mrEnclave quartztypes.MrEnclave) *MockAttestor {
	return &MockAttestor{mrEnclave: mrEnclave}
}

// Quote implements Attestor.
func (a *MockAttestor) Quote(m quartztypes.HasUserData) (quartztypes.Attestation, error) {
	userData, err := m.UserData()
	if err != nil {
		return quartztypes.Attestation{}, err
	}
	return quartztypes.Attestation{
		Kind: quartztypes.AttestationMock,
		Mock: &quartztypes.MockAttestation{UserData: userData},
	}, nil
}

// MrEnclave implements Attestor.
func (a *MockAttestor) MrEnclave() (quartztypes.MrEnclave, error) {
	return a.mrEnclave, nil
}
