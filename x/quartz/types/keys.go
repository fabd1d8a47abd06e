package types

const (
	// ModuleName is this module's unique name.
	ModuleName = "quartz"

	// StoreKey is the string store key for the quartz module's KVStore.
	StoreKey = ModuleName
)

// Key prefixes for the quartz module's KVStore. Each session and each
// epoch-scoped collection lives under its own prefix so iteration stays
// cheap as the store grows.
var (
	SessionPrefix         = []byte{0x01}
	ObligationPrefix      = []byte{0x02}
	SetoffPrefix          = []byte{0x03}
	LiquiditySourcePrefix = []byte{0x04}
	EpochCounterKey       = []byte{0x05}
	BalancePrefix         = []byte{0x06}
	RequestQueuePrefix    = []byte{0x07}
	SeqNumKey             = []byte{0x08}
)

// SessionKey builds the store key for a session identified by its enclave
// public key.
func SessionKey(sessionPubKey []byte) []byte {
	return append(append([]byte{}, SessionPrefix...), sessionPubKey...)
}

// BalanceKey builds the store key for an address's escrowed reserve
// balance: the native-token accounting the contract keeps so it can
// disburse withdrawals the enclave attests, independent of the encrypted
// per-account ledger the enclave itself maintains.
func BalanceKey(address string) []byte {
	return append(append([]byte{}, BalancePrefix...), []byte(address)...)
}

// RequestQueueKey builds the store key for a single queued, not-yet-proven
// request awaiting inclusion in the next batch the dispatcher assembles,
// ordered by the sequence number it was enqueued under.
func RequestQueueKey(seqNum uint64) []byte {
	return EpochKey(RequestQueuePrefix, seqNum, nil)
}

// EpochKey builds an epoch-namespaced key under prefix: prefix || epoch
// (big-endian uint64) || suffix.
func EpochKey(prefix []byte, epoch uint64, suffix []byte) []byte {
	key := make([]byte, 0, len(prefix)+8+len(suffix))
	key = append(key, prefix...)
	key = append(key, uint64ToBigEndian(epoch)...)
	key = append(key, suffix...)
	return key
}

func uint64ToBigEndian(v uint64) []byte {
	b := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
	return b
}
