package types

import "cosmossdk.io/math"

// Obligation is a single debt entry submitted in ciphertext form, netted
// during InitClearing. The digest lets the enclave reference an obligation
// without the contract ever seeing its plaintext terms.
type Obligation struct {
	Digest     []byte `json:"digest"`
	Ciphertext []byte `json:"ciphertext"`
}

// LiquiditySource is a SEC1-encoded public key the clearing run is allowed
// to draw liquidity from when netting falls short.
type LiquiditySource struct {
	PubKey []byte `json:"pub_key"`
}

// Transfer is a direct balance movement the contract executes itself
// rather than routing through a netted SetOff, for obligations that could
// not be offset against another obligation in the same epoch.
type Transfer struct {
	Payer  string   `json:"payer"`
	Payee  string   `json:"payee"`
	Amount math.Int `json:"amount"`
}

// SetOff is the result of netting a group of obligations: Offsets lists the
// digests of the obligations netted together, and Transfer is set only when
// a residual amount must still move funds (nil when they cancelled out).
type SetOff struct {
	Offsets  [][]byte  `json:"offsets,omitempty"`
	Transfer *Transfer `json:"transfer,omitempty"`
}

// SubmitObligationMsg submits a single obligation for the current epoch.
type SubmitObligationMsg struct {
	Obligation Obligation `json:"obligation"`
}

// SubmitObligationsMsg submits a batch of obligations plus the liquidity
// sources available to settle them.
type SubmitObligationsMsg struct {
	Obligations      []Obligation      `json:"obligations"`
	LiquiditySources []LiquiditySource `json:"liquidity_sources"`
}

// InitClearingMsg triggers netting of the current epoch's obligations into
// setoffs and rolls the epoch counter forward.
type InitClearingMsg struct{}
