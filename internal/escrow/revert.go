package escrow

import (
	"bytes"
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

// Revert reasons emitted by the TipJar contract.
const (
	ReasonUnauthorizedRelayer = "Unauthorized: Only relayer can call this function"
	ReasonInvalidFan          = "Invalid fan address"
	ReasonInvalidCreator      = "Invalid creator address"
	ReasonZeroAmount          = "Tip amount must be greater than zero"
	ReasonValueMismatch       = "Sent value must match tip amount"
	ReasonInvalidNonce        = "Invalid nonce"
	ReasonInvalidSignature    = "Invalid signature"
	ReasonSignatureUsed       = "Signature already used"
	ReasonNoFunds             = "No funds to withdraw"
	ReasonInvalidRelayer      = "Invalid relayer address"
	ReasonOwnableUnauthorized = "OwnableUnauthorizedAccount"
)

// ErrWalletInit marks a relayer credential that could not be brought up.
// It is an operator problem, never the caller's.
var ErrWalletInit = errors.New("relayer wallet initialization failed")

// RevertError is a contract call rejected by the contract itself.
type RevertError struct {
	Reason string
	Data   []byte
	cause  error
}

func (e *RevertError) Error() string {
	return "execution reverted: " + e.Reason
}

func (e *RevertError) Unwrap() error {
	return e.cause
}

const revertPrefix = "execution reverted: "

// asRevert turns a node error into a *RevertError when the reason can be
// recovered. The ABI-encoded payload is preferred; the message text is the
// fallback for nodes that only return a string.
func asRevert(err error) error {
	if err == nil {
		return nil
	}
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		if reason, raw, ok := decodeRevertData(dataErr.ErrorData()); ok {
			return &RevertError{Reason: reason, Data: raw, cause: err}
		}
	}
	msg := err.Error()
	if idx := strings.Index(msg, revertPrefix); idx >= 0 {
		return &RevertError{Reason: strings.TrimSpace(msg[idx+len(revertPrefix):]), cause: err}
	}
	return err
}

func decodeRevertData(data interface{}) (string, []byte, bool) {
	s, ok := data.(string)
	if !ok {
		return "", nil, false
	}
	raw, err := hexutil.Decode(s)
	if err != nil || len(raw) < 4 {
		return "", nil, false
	}
	if reason, err := abi.UnpackRevert(raw); err == nil {
		return reason, raw, true
	}
	for name, e := range tipJarABI.Errors {
		if bytes.Equal(raw[:4], e.ID.Bytes()[:4]) {
			return name, raw, true
		}
	}
	return "", nil, false
}
