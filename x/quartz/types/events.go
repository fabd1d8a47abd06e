package types

// Event types emitted by the quartz module.
const (
	EventTypeSessionCreated      = "quartz_session_created"
	EventTypeSessionKeyPublished = "quartz_session_key_published"
	EventTypeRequestProcessed    = "quartz_request_processed"
	EventTypeObligationSubmitted = "quartz_obligation_submitted"
	EventTypeClearingInitiated   = "quartz_clearing_initiated"
	EventTypeEpochRolled         = "quartz_epoch_rolled"
)

// Event attribute keys.
const (
	AttributeKeyMrEnclave      = "mr_enclave"
	AttributeKeySessionPubKey  = "session_pub_key"
	AttributeKeyEpoch          = "epoch"
	AttributeKeySeqNum         = "seq_num"
	AttributeKeyWithdrawCount  = "withdraw_count"
	AttributeKeyObligationHash = "obligation_digest"

	// AttributeKeyEphemeralPubKey is the canonical spelling for the balance
	// query's ephemeral key attribute (deliberately not the commonly seen
	// misspelling "emphemeral_pubkey").
	AttributeKeyEphemeralPubKey = "ephemeral_pubkey"
)
