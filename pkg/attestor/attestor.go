// Package attestor produces attestation quotes binding an enclave's code
// measurement and a message digest together. It mirrors the quartz core's
// attestor abstraction: one real DCAP implementation and one Mock
// implementation that short-circuits for development builds.
package attestor

import (
	"github.com/virtengine/quartz/pkg/quartztypes"
)

// Attestor produces quotes that bind a message digest (via HasUserData) to
// the running enclave's identity.
type Attestor interface {
	// Quote produces an attestation over m's UserData.
	Quote(m quartztypes.HasUserData) (quartztypes.Attestation, error)

	// MrEnclave returns the code measurement of the running enclave.
	MrEnclave() (quartztypes.MrEnclave, error)
}
