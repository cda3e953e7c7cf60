package logging

// Field names for structured records.
const (
	FieldComponent = "component"

	FieldClientIP = "ip"
	FieldFan      = "fan"
	FieldCreator  = "creator"
	FieldAmount   = "amount"
	FieldNonce    = "nonce"
	FieldSuccess  = "success"
	FieldCode     = "code"
	FieldDetails  = "details"

	FieldTxHash    = "tx_hash"
	FieldStatus    = "status"
	FieldRequestID = "request_id"
	FieldRelayer   = "relayer"
	FieldContract  = "contract"
	FieldChainID   = "chain_id"
	FieldKey       = "key"
	FieldAddr      = "addr"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldDuration  = "duration"
)

// Component names.
const (
	ComponentServer      = "http_server"
	ComponentRelay       = "relay"
	ComponentWatcher     = "confirmation_watcher"
	ComponentRateLimiter = "rate_limiter"
	ComponentEscrow      = "escrow_client"
	ComponentLedger      = "escrow_ledger"
)
