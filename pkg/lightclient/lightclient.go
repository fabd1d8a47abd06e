// Package lightclient wraps CometBFT's stateless skipping light client
// verifier so the enclave host can check that a target header follows from
// a trusted header without replaying full consensus, exactly as used by
// the chain this enclave is bound to.
package lightclient

import (
	"time"

	"cosmossdk.io/errors"
	cmtmath "github.com/cometbft/cometbft/libs/math"
	"github.com/cometbft/cometbft/light"
	"github.com/cometbft/cometbft/types"

	"github.com/virtengine/quartz/pkg/quartztypes"
)

const ModuleName = "lightclient"

// ErrVerifyFailed wraps any failure CometBFT's skipping verifier reports,
// including trusting-period expiry, insufficient validator overlap, and
// signature failures.
var ErrVerifyFailed = errors.Register(ModuleName, 1, "light client header verification failed")

// Options mirrors the trusting-period / clock-drift / trust-level
// parameters a skipping verifier needs; see CometBFT's light.Verify.
type Options struct {
	TrustingPeriod time.Duration
	MaxClockDrift  time.Duration
	TrustLevel     cmtmath.Fraction
}

// DefaultOptions matches the values CometBFT itself defaults to for a
// production light client: 1/3 trust level, two week trusting period, 10s
// of tolerated clock drift.
func DefaultOptions() Options {
	return Options{
		TrustingPeriod: 14 * 24 * time.Hour,
		MaxClockDrift:  10 * time.Second,
		TrustLevel:     cmtmath.Fraction{Numerator: 1, Denominator: 3},
	}
}

// TrustedState is the verifier's anchor: a header plus the validator set
// that signed it, both already trusted by the caller.
type TrustedState struct {
	Header     *types.SignedHeader
	Validators *types.ValidatorSet
}

// Verdict is returned once a target header verifies against the trusted
// state: the app hash it commits to, ready for a membership proof check.
type Verdict struct {
	Height  quartztypes.Height
	AppHash quartztypes.AppHash
}

// Client verifies target headers against a trusted anchor using CometBFT's
// skipping verification algorithm.
type Client struct {
	opts Options
}

// New constructs a Client with the given options.
func New(opts Options) *Client {
	return &Client{opts: opts}
}

// Verify checks that target (with its validator set) is provable from
// trusted under the skipping verification algorithm, as of now. On success
// it returns a Verdict carrying the target's committed app hash.
func (c *Client) Verify(trusted TrustedState, target TrustedState, now time.Time) (Verdict, error) {
	if err := light.Verify(
		trusted.Header,
		trusted.Validators,
		target.Header,
		target.Validators,
		c.opts.TrustingPeriod,
		now,
		c.opts.MaxClockDrift,
		c.opts.TrustLevel,
	); err != nil {
		return Verdict{}, errors.Wrap(ErrVerifyFailed, err.Error())
	}

	return Verdict{
		Height:  quartztypes.Height(target.Header.Height),
		AppHash: quartztypes.AppHash(target.Header.AppHash),
	}, nil
}
