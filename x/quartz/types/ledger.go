package types

import "cosmossdk.io/math"

// DepositMsg credits an address's escrowed reserve balance with native
// coin and queues a matching plaintext deposit request for the enclave's
// next batch, exactly as ExecuteMsg's "deposit" variant.
type DepositMsg struct {
	Account string   `json:"account"`
	Amount  math.Int `json:"amount"`
}

// WithdrawMsg requests that the enclave withdraw account's full encrypted
// balance on its next batch; the contract does not see an amount here —
// the enclave reports how much it disbursed in the attested UpdateMsg.
type WithdrawMsg struct {
	Account string `json:"account"`
}

// TransferRequestMsg queues an encrypted transfer instruction for the
// enclave's next batch. digest is the domain-separated hash of the
// plaintext transfer the ciphertext encodes, letting the enclave's
// attested response reference it without the contract ever learning the
// transfer's terms.
type TransferRequestMsg struct {
	Ciphertext []byte `json:"ciphertext"`
	Digest     []byte `json:"digest"`
}

// QueryRequestMsg asks the enclave for a read-only balance view, encrypted
// back to EphemeralPubKey rather than the session key.
type QueryRequestMsg struct {
	Account         string `json:"account"`
	EphemeralPubKey []byte `json:"ephemeral_pubkey"`
}

// Update and QueryResponse arrive as AttestedMessage[processor.
// UpdateResponseMessage] / AttestedMessage[processor.QueryResponseMessage]:
// this module verifies them using the enclave's own wire types directly
// rather than re-declaring parallel structs, since the attestation's
// user_data binds the exact JSON encoding of the message the enclave
// attested — a re-declared type with different field names or ordering
// would recompute a different digest and every attestation would fail to
// verify.
