// Package processor implements the request processor: decrypt the sealed
// enclave state, apply a batch of requests, re-encrypt, and attest the
// result. It covers two applications over the same core pipeline: plain
// transfers (deposit/transfer/withdraw) and obligation clearing/setoffs.
package processor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"cosmossdk.io/errors"
	"cosmossdk.io/math"

	"github.com/virtengine/quartz/pkg/attestor"
	"github.com/virtengine/quartz/pkg/keymanager"
	"github.com/virtengine/quartz/pkg/quartztypes"
)

const ModuleName = "processor"

var (
	ErrSeqNumRegression = errors.Register(ModuleName, 1, "request batch seq_num does not extend the stored state")
	ErrEmptyCiphertext  = errors.Register(ModuleName, 2, "ciphertext state is empty")
	ErrInvalidSentinel  = errors.Register(ModuleName, 3, "single-byte state is not the [0x00] empty-state sentinel")
)

// emptyStateSentinel is the sole valid single-byte ciphertext: it marks an
// uninitialised sealed state rather than an ECIES payload. Any other
// single-byte value is malformed and rejected before it ever reaches the
// decryptor.
var emptyStateSentinel = []byte{0x00}

// Balances maps an account identifier to its balance.
type Balances map[string]math.Int

// State is the decrypted form of EnclaveState for the transfers
// application: an account balance table plus the last-applied seq_num,
// used to detect replay or out-of-order request batches.
type State struct {
	Balances Balances `json:"balances"`
	SeqNum   uint64   `json:"seq_num"`
}

// Request is a single transfer-application operation: a Transfer, a
// Withdraw, or a Deposit (Deposit rounds out the set with a symmetrical
// funding path for the other two).
type Request struct {
	Transfer *TransferRequest `json:"transfer,omitempty"`
	Withdraw *WithdrawRequest `json:"withdraw,omitempty"`
	Deposit  *DepositRequest  `json:"deposit,omitempty"`
}

type TransferRequest struct {
	From   string   `json:"from"`
	To     string   `json:"to"`
	Amount math.Int `json:"amount"`
}

type WithdrawRequest struct {
	Account string   `json:"account"`
	Amount  math.Int `json:"amount"`
}

type DepositRequest struct {
	Account string   `json:"account"`
	Amount  math.Int `json:"amount"`
}

// Withdrawal records a single withdrawal applied during a batch, appended
// to the response for the caller to disburse.
type Withdrawal struct {
	Account string   `json:"account"`
	Amount  math.Int `json:"amount"`
}

// UpdateRequestMessage is the attested input to Run: the current
// ciphertext, the batch of requests to apply, and the seq_num the caller
// believes the state is at.
type UpdateRequestMessage struct {
	Ciphertext []byte    `json:"ciphertext"`
	Requests   []Request `json:"requests"`
	SeqNum     uint64    `json:"seq_num"`
}

// UserData implements quartztypes.HasUserData: the attested digest binds
// the whole update batch, so a forged or replayed batch cannot be passed
// off as attested.
func (m UpdateRequestMessage) UserData() (quartztypes.UserData, error) {
	return quartztypes.DigestJSON("quartz-update-request", m)
}

// UpdateResponseMessage is the attested output of Run: the re-encrypted
// state and any withdrawals the batch produced, ready for the contract to
// disburse.
type UpdateResponseMessage struct {
	Ciphertext  []byte       `json:"ciphertext"`
	Withdrawals []Withdrawal `json:"withdrawals"`
}

// UserData implements quartztypes.HasUserData.
func (m UpdateResponseMessage) UserData() (quartztypes.UserData, error) {
	return quartztypes.DigestJSON("quartz-update-response", m)
}

// QueryRequestMessage asks the enclave for a read-only view of a single
// account's balance, encrypted to a caller-supplied ephemeral public key
// rather than the session key, so the response is only readable by whoever
// posed the query.
type QueryRequestMessage struct {
	Ciphertext       []byte `json:"ciphertext"`
	Account          string `json:"account"`
	EphemeralPubKey  []byte `json:"ephemeral_pubkey"`
}

// UserData implements quartztypes.HasUserData.
func (m QueryRequestMessage) UserData() (quartztypes.UserData, error) {
	return quartztypes.DigestJSON("quartz-query-request", m)
}

// QueryResponseMessage carries an account's balance ECIES-encrypted to the
// ephemeral public key the caller supplied in the request.
type QueryResponseMessage struct {
	Account        string `json:"address"`
	EncryptedBalance []byte `json:"encrypted_bal"`
}

// UserData implements quartztypes.HasUserData.
func (m QueryResponseMessage) UserData() (quartztypes.UserData, error) {
	return quartztypes.DigestJSON("quartz-query-response", m)
}

// Processor applies request batches to the sealed ledger state.
type Processor struct {
	mu  sync.Mutex
	km  *keymanager.Manager
	att attestor.Attestor
}

// New constructs a Processor bound to a session key manager and attestor.
func New(km *keymanager.Manager, att attestor.Attestor) *Processor {
	return &Processor{km: km, att: att}
}

// Run decrypts req's ciphertext, checks seq_num consistency, applies every
// request in order, re-encrypts the result, and attests the response.
// Transfers are a no-op (not an error) when the payer's balance is
// insufficient: an under-funded request is silently dropped rather than
// failing the whole batch.
func (p *Processor) Run(req UpdateRequestMessage, recipientPubKey []byte) (UpdateResponseMessage, quartztypes.Attestation, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	state, err := p.decryptState(req.Ciphertext)
	if err != nil {
		RunsTotal.WithLabelValues("error").Inc()
		return UpdateResponseMessage{}, quartztypes.Attestation{}, err
	}

	if req.SeqNum <= state.SeqNum {
		RunsTotal.WithLabelValues("seq_num_regression").Inc()
		return UpdateResponseMessage{}, quartztypes.Attestation{}, ErrSeqNumRegression
	}
	state.SeqNum = req.SeqNum

	BatchSize.Observe(float64(len(req.Requests)))

	var withdrawals []Withdrawal
	for _, r := range req.Requests {
		withdrawals = append(withdrawals, applyRequest(state, r)...)
	}
	WithdrawalsTotal.Add(float64(len(withdrawals)))

	plaintext, err := json.Marshal(state)
	if err != nil {
		RunsTotal.WithLabelValues("error").Inc()
		return UpdateResponseMessage{}, quartztypes.Attestation{}, fmt.Errorf("processor: marshal state: %w", err)
	}

	ciphertext, err := keymanager.Encrypt(recipientPubKey, plaintext)
	if err != nil {
		RunsTotal.WithLabelValues("error").Inc()
		return UpdateResponseMessage{}, quartztypes.Attestation{}, fmt.Errorf("processor: encrypt state: %w", err)
	}

	resp := UpdateResponseMessage{Ciphertext: ciphertext, Withdrawals: withdrawals}
	att, err := p.att.Quote(resp)
	if err != nil {
		RunsTotal.WithLabelValues("error").Inc()
		return UpdateResponseMessage{}, quartztypes.Attestation{}, fmt.Errorf("processor: attest response: %w", err)
	}

	RunsTotal.WithLabelValues("applied").Inc()
	return resp, att, nil
}

// Query decrypts the sealed state under the session key, reads a single
// account's balance, and re-encrypts just that balance to the caller's
// ephemeral public key so only the querying party can read it. Queries
// never mutate state and never advance seq_num.
func (p *Processor) Query(req QueryRequestMessage) (QueryResponseMessage, quartztypes.Attestation, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	state, err := p.decryptState(req.Ciphertext)
	if err != nil {
		QueriesTotal.WithLabelValues("error").Inc()
		return QueryResponseMessage{}, quartztypes.Attestation{}, err
	}

	balance, ok := state.Balances[req.Account]
	if !ok {
		balance = math.ZeroInt()
	}

	encrypted, err := keymanager.Encrypt(req.EphemeralPubKey, []byte(balance.String()))
	if err != nil {
		QueriesTotal.WithLabelValues("error").Inc()
		return QueryResponseMessage{}, quartztypes.Attestation{}, fmt.Errorf("processor: encrypt balance: %w", err)
	}

	resp := QueryResponseMessage{Account: req.Account, EncryptedBalance: encrypted}
	att, err := p.att.Quote(resp)
	if err != nil {
		QueriesTotal.WithLabelValues("error").Inc()
		return QueryResponseMessage{}, quartztypes.Attestation{}, fmt.Errorf("processor: attest query response: %w", err)
	}

	QueriesTotal.WithLabelValues("ok").Inc()
	return resp, att, nil
}

func (p *Processor) decryptState(ciphertext []byte) (*State, error) {
	if bytes.Equal(ciphertext, emptyStateSentinel) {
		return &State{Balances: Balances{}}, nil
	}
	if len(ciphertext) == 1 {
		return nil, ErrInvalidSentinel
	}

	plaintext, err := p.km.Decrypt(ciphertext)
	if err != nil {
		return nil, fmt.Errorf("processor: decrypt state: %w", err)
	}

	var state State
	if err := json.Unmarshal(plaintext, &state); err != nil {
		return nil, fmt.Errorf("processor: unmarshal state: %w", err)
	}
	if state.Balances == nil {
		state.Balances = Balances{}
	}
	return &state, nil
}

// applyRequest mutates state in place for a single request and returns any
// withdrawal it produced.
func applyRequest(state *State, r Request) []Withdrawal {
	switch {
	case r.Transfer != nil:
		applyTransfer(state, r.Transfer)
		return nil
	case r.Withdraw != nil:
		return applyWithdraw(state, r.Withdraw)
	case r.Deposit != nil:
		applyDeposit(state, r.Deposit)
		return nil
	default:
		return nil
	}
}

func applyTransfer(state *State, r *TransferRequest) {
	balance, ok := state.Balances[r.From]
	if !ok || balance.LT(r.Amount) {
		return
	}
	toBalance, ok := state.Balances[r.To]
	if !ok {
		toBalance = math.ZeroInt()
	}
	state.Balances[r.From] = balance.Sub(r.Amount)
	state.Balances[r.To] = toBalance.Add(r.Amount)
}

func applyWithdraw(state *State, r *WithdrawRequest) []Withdrawal {
	balance, ok := state.Balances[r.Account]
	if !ok || balance.LT(r.Amount) {
		return nil
	}
	state.Balances[r.Account] = balance.Sub(r.Amount)
	return []Withdrawal{{Account: r.Account, Amount: r.Amount}}
}

func applyDeposit(state *State, r *DepositRequest) {
	existing, ok := state.Balances[r.Account]
	if !ok {
		existing = math.ZeroInt()
	}
	state.Balances[r.Account] = existing.Add(r.Amount)
}
