package quartztypes

// SessionStatus is the handshake state of an enclave session, as tracked by
// both the enclave host and the contract-side handler.
type SessionStatus int

const (
	// StatusUninitialised is the initial state before Instantiate runs.
	StatusUninitialised SessionStatus = iota
	// StatusNonceIssued means the contract has recorded a fresh nonce and
	// is waiting for the enclave to publish a session public key bound to
	// it via an attested quote.
	StatusNonceIssued
	// StatusKeyPublished means the session public key has been verified
	// and published; the session is ready to process requests.
	StatusKeyPublished
)

func (s SessionStatus) String() string {
	switch s {
	case StatusUninitialised:
		return "uninitialised"
	case StatusNonceIssued:
		return "nonce_issued"
	case StatusKeyPublished:
		return "key_published"
	default:
		return "unknown"
	}
}

// SessionState is the handshake record the contract keeps for a single
// enclave session.
type SessionState struct {
	Status    SessionStatus `json:"status"`
	Nonce     Nonce         `json:"nonce"`
	MrEnclave MrEnclave     `json:"mr_enclave"`
	PubKey    []byte        `json:"pub_key,omitempty"`
}

// Epoch namespaces per-round obligation/setoff/liquidity-source storage.
// Keys are formatted as "{epoch}/{suffix}".
type Epoch uint64

// CurrentKey returns the storage key for suffix under this epoch.
func (e Epoch) CurrentKey(suffix string) string {
	return fmtEpochKey(uint64(e), suffix)
}

// PreviousKey returns the storage key for suffix under the prior epoch.
// Callers must not invoke this at epoch 0.
func (e Epoch) PreviousKey(suffix string) string {
	return fmtEpochKey(uint64(e)-1, suffix)
}

func fmtEpochKey(epoch uint64, suffix string) string {
	return itoa(epoch) + "/" + suffix
}

func itoa(v uint64) string {
	if v == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}
