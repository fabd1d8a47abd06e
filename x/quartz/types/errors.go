package types

import "cosmossdk.io/errors"

// Quartz module sentinel errors.
var (
	ErrSessionNotFound    = errors.Register(ModuleName, 1, "session not found")
	ErrSessionWrongState  = errors.Register(ModuleName, 2, "session is not in the expected handshake state")
	ErrAttestationInvalid = errors.Register(ModuleName, 3, "attestation verification failed")
	ErrProofOfPublication = errors.Register(ModuleName, 4, "proof of publication failed to verify")
	ErrInvalidEpoch       = errors.Register(ModuleName, 5, "invalid epoch transition")
	ErrClearingNotFound   = errors.Register(ModuleName, 6, "no clearing result for epoch")
	ErrUnauthorized       = errors.Register(ModuleName, 7, "unauthorized")
)
