package processor

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"cosmossdk.io/math"

	"github.com/virtengine/quartz/pkg/keymanager"
	"github.com/virtengine/quartz/pkg/quartztypes"
	"github.com/virtengine/quartz/x/quartz/types"
)

// ObligationTerms is the plaintext an obligation's ciphertext decrypts to.
// The contract only ever sees the digest and ciphertext pair; the payer,
// payee, and amount stay sealed until a clearing run nets them.
type ObligationTerms struct {
	Payer  string   `json:"payer"`
	Payee  string   `json:"payee"`
	Amount math.Int `json:"amount"`
}

// ClearingState is the decrypted form of the clearing application's sealed
// state: every obligation submitted so far this epoch, keyed by the hex
// digest the contract indexes it under.
type ClearingState struct {
	Obligations map[string]ObligationTerms `json:"obligations"`
}

// ClearingRequestMessage asks the enclave to fold newObligations into its
// current clearing state and net everything accrued this epoch into
// setoffs, collapsing a submit-obligations step and an init-clearing step
// into a single attested round trip.
type ClearingRequestMessage struct {
	Ciphertext     []byte             `json:"ciphertext"`
	NewObligations []types.Obligation `json:"new_obligations"`
}

// UserData implements quartztypes.HasUserData.
func (m ClearingRequestMessage) UserData() (quartztypes.UserData, error) {
	return quartztypes.DigestJSON("quartz-clearing-request", m)
}

// ClearingResponseMessage carries the re-sealed clearing state plus the
// setoffs this run computed, ready for the contract's SubmitSetoffs.
type ClearingResponseMessage struct {
	Ciphertext []byte         `json:"ciphertext"`
	Setoffs    []types.SetOff `json:"setoffs"`
}

// UserData implements quartztypes.HasUserData.
func (m ClearingResponseMessage) UserData() (quartztypes.UserData, error) {
	return quartztypes.DigestJSON("quartz-clearing-response", m)
}

// RunClearing decrypts the current clearing state, folds in req's new
// obligations, nets every payer/payee pair it can fully or partially
// offset, reseals the (now empty, epoch rolled) state, and attests the
// result. The obligation set is cleared on every run: a clearing run
// always settles everything accrued so far, matching InitClearing's
// "roll the epoch forward" semantics rather than leaving a partial
// remainder pending for the next run.
func (p *Processor) RunClearing(req ClearingRequestMessage, recipientPubKey []byte) (ClearingResponseMessage, quartztypes.Attestation, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	state, err := p.decryptClearingState(req.Ciphertext)
	if err != nil {
		RunsTotal.WithLabelValues("error").Inc()
		return ClearingResponseMessage{}, quartztypes.Attestation{}, err
	}

	for _, ob := range req.NewObligations {
		terms, err := p.decryptObligationTerms(ob.Ciphertext)
		if err != nil {
			RunsTotal.WithLabelValues("error").Inc()
			return ClearingResponseMessage{}, quartztypes.Attestation{}, err
		}
		state.Obligations[hex.EncodeToString(ob.Digest)] = terms
	}

	setoffs := netObligations(state.Obligations)
	state.Obligations = map[string]ObligationTerms{}

	plaintext, err := json.Marshal(state)
	if err != nil {
		RunsTotal.WithLabelValues("error").Inc()
		return ClearingResponseMessage{}, quartztypes.Attestation{}, fmt.Errorf("processor: marshal clearing state: %w", err)
	}

	ciphertext, err := keymanager.Encrypt(recipientPubKey, plaintext)
	if err != nil {
		RunsTotal.WithLabelValues("error").Inc()
		return ClearingResponseMessage{}, quartztypes.Attestation{}, fmt.Errorf("processor: encrypt clearing state: %w", err)
	}

	resp := ClearingResponseMessage{Ciphertext: ciphertext, Setoffs: setoffs}
	att, err := p.att.Quote(resp)
	if err != nil {
		RunsTotal.WithLabelValues("error").Inc()
		return ClearingResponseMessage{}, quartztypes.Attestation{}, fmt.Errorf("processor: attest clearing response: %w", err)
	}

	RunsTotal.WithLabelValues("applied").Inc()
	return resp, att, nil
}

func (p *Processor) decryptClearingState(ciphertext []byte) (*ClearingState, error) {
	if bytes.Equal(ciphertext, emptyStateSentinel) {
		return &ClearingState{Obligations: map[string]ObligationTerms{}}, nil
	}
	if len(ciphertext) == 1 {
		return nil, ErrInvalidSentinel
	}

	plaintext, err := p.km.Decrypt(ciphertext)
	if err != nil {
		return nil, fmt.Errorf("processor: decrypt clearing state: %w", err)
	}

	var state ClearingState
	if err := json.Unmarshal(plaintext, &state); err != nil {
		return nil, fmt.Errorf("processor: unmarshal clearing state: %w", err)
	}
	if state.Obligations == nil {
		state.Obligations = map[string]ObligationTerms{}
	}
	return &state, nil
}

func (p *Processor) decryptObligationTerms(ciphertext []byte) (ObligationTerms, error) {
	plaintext, err := p.km.Decrypt(ciphertext)
	if err != nil {
		return ObligationTerms{}, fmt.Errorf("processor: decrypt obligation: %w", err)
	}

	var terms ObligationTerms
	if err := json.Unmarshal(plaintext, &terms); err != nil {
		return ObligationTerms{}, fmt.Errorf("processor: unmarshal obligation: %w", err)
	}
	return terms, nil
}

// pairKey canonicalises an unordered payer/payee pair so obligations
// running in either direction between the same two parties net together.
type pairKey struct {
	a, b string
}

func canonPair(x, y string) (pairKey, bool) {
	if x <= y {
		return pairKey{a: x, b: y}, true
	}
	return pairKey{a: y, b: x}, false
}

// netObligations groups obligations by unordered party pair, sums each
// pair's net direction, and emits one SetOff per pair: a pure Offsets list
// when the pair nets to zero, or a residual Transfer for whatever amount
// is still owed in one direction. Iteration order is sorted so the result
// is deterministic regardless of map ordering.
func netObligations(obligations map[string]ObligationTerms) []types.SetOff {
	type accum struct {
		net     math.Int
		digests [][]byte
	}

	digestKeys := make([]string, 0, len(obligations))
	for k := range obligations {
		digestKeys = append(digestKeys, k)
	}
	sort.Strings(digestKeys)

	pairs := make(map[pairKey]*accum)
	var pairOrder []pairKey
	for _, k := range digestKeys {
		ob := obligations[k]
		pk, forward := canonPair(ob.Payer, ob.Payee)

		acc, ok := pairs[pk]
		if !ok {
			acc = &accum{net: math.ZeroInt()}
			pairs[pk] = acc
			pairOrder = append(pairOrder, pk)
		}
		if forward {
			acc.net = acc.net.Add(ob.Amount)
		} else {
			acc.net = acc.net.Sub(ob.Amount)
		}

		digest, err := hex.DecodeString(k)
		if err != nil {
			digest = []byte(k)
		}
		acc.digests = append(acc.digests, digest)
	}

	setoffs := make([]types.SetOff, 0, len(pairOrder))
	for _, pk := range pairOrder {
		acc := pairs[pk]
		if acc.net.IsZero() {
			setoffs = append(setoffs, types.SetOff{Offsets: acc.digests})
			continue
		}

		payer, payee, amount := pk.a, pk.b, acc.net
		if amount.IsNegative() {
			payer, payee, amount = pk.b, pk.a, amount.Neg()
		}
		setoffs = append(setoffs, types.SetOff{
			Offsets:  acc.digests,
			Transfer: &types.Transfer{Payer: payer, Payee: payee, Amount: amount},
		})
	}
	return setoffs
}
