package quartztypes

// AttestationKind distinguishes the real DCAP attestation path from the
// Mock path used in dev/CI builds without SGX hardware.
type AttestationKind int

const (
	// AttestationDCAP is an Intel SGX DCAP ECDSA quote plus collateral.
	AttestationDCAP AttestationKind = iota
	// AttestationMock carries the user_data directly with no hardware
	// backing; accepted only when the verifier is configured to trust it.
	AttestationMock
)

// DCAPAttestation bundles a raw DCAP quote with the collateral needed to
// verify its certificate chain and TCB status.
type DCAPAttestation struct {
	Quote      []byte `json:"quote"`
	Collateral []byte `json:"collateral"`
}

// MockAttestation carries user_data with no cryptographic backing.
type MockAttestation struct {
	UserData UserData `json:"user_data"`
}

// Attestation is the sum of the two supported attestation payloads,
// tagged by Kind: exactly one of DCAP/Mock is non-nil.
type Attestation struct {
	Kind AttestationKind  `json:"kind"`
	DCAP *DCAPAttestation `json:"dcap,omitempty"`
	Mock *MockAttestation `json:"mock,omitempty"`
}

// AttestedMessage pairs an arbitrary message with the attestation that
// binds the enclave's identity and the message's digest together. M must
// implement HasUserData so the verifier can recompute the expected
// report_data independently of the claimed attestation payload.
type AttestedMessage[M HasUserData] struct {
	Msg         M           `json:"msg"`
	Attestation Attestation `json:"attestation"`
}

// ProofOfPublication wraps an AttestedMessage together with the membership
// proof evidence (store key and store proof under an app hash at a given
// height) that it was actually published on the settlement chain. It
// carries no light-client evidence for that app hash.
type ProofOfPublication[M HasUserData] struct {
	Attested    AttestedMessage[M] `json:"attested"`
	Height      Height             `json:"height"`
	AppHash     AppHash            `json:"app_hash"`
	StoreProof  []byte             `json:"store_proof"`
	StoreKey    []byte             `json:"store_key"`
}
