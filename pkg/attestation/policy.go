// Package attestation verifies the Attestation payload on an
// AttestedMessage: for DCAP, the quote's signature chain and TCB status
// against supplied collateral; for Mock, a tautological equality check.
// Either variant always re-derives the expected report_data/user_data from
// the message itself rather than trusting the claimed value.
package attestation

import "time"

// TCBStatus mirrors the Intel DCAP TCB status enumeration returned by
// collateral verification.
type TCBStatus int

// Ordered from least to most severe so a policy can express "accept
// anything at or below this severity" as a single comparison.
const (
	TCBStatusUnknown TCBStatus = iota
	TCBStatusUpToDate
	TCBStatusConfigurationNeeded
	TCBStatusOutOfDate
	TCBStatusRevoked
)

func (s TCBStatus) String() string {
	switch s {
	case TCBStatusUpToDate:
		return "UpToDate"
	case TCBStatusOutOfDate:
		return "OutOfDate"
	case TCBStatusRevoked:
		return "Revoked"
	case TCBStatusConfigurationNeeded:
		return "ConfigurationNeeded"
	default:
		return "Unknown"
	}
}

// Policy configures what an Attestation Verifier will accept.
type Policy struct {
	// AllowMock accepts MockAttestation payloads. Must be false in any
	// deployment that claims real confidentiality.
	AllowMock bool

	// MaxTCBSeverity is the weakest TCB status the verifier will accept for
	// a DCAP quote (TCBStatusUpToDate is the strictest).
	MaxTCBSeverity TCBStatus

	// MaxQuoteAge is the collateral freshness bound carried by the policy
	// (zero means no bound). Verifier.Verify does not consult it: collateral
	// age is not checked.
	MaxQuoteAge time.Duration
}

// DefaultPolicy is the strict production policy: no Mock attestations, TCB
// must be up to date, and MaxQuoteAge set to 24h (which Verify does not
// enforce; see MaxQuoteAge).
func DefaultPolicy() Policy {
	return Policy{
		AllowMock:      false,
		MaxTCBSeverity: TCBStatusUpToDate,
		MaxQuoteAge:    24 * time.Hour,
	}
}

// DevPolicy accepts Mock attestations and relaxes the TCB/age checks, for
// local development and integration tests.
func DevPolicy() Policy {
	return Policy{
		AllowMock:      true,
		MaxTCBSeverity: TCBStatusOutOfDate,
		MaxQuoteAge:    0,
	}
}

// acceptableTCB reports whether status is at or below the policy's maximum
// tolerated severity.
func (p Policy) acceptableTCB(status TCBStatus) bool {
	return status != TCBStatusUnknown && status <= p.MaxTCBSeverity
}
