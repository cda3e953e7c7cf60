package relay

import (
	"fmt"
	"net/http"
	"time"
)

// Code is an API error code. The set is closed; every value maps to exactly
// one HTTP status.
type Code int

const (
	CodeInvalidJSON Code = iota + 1
	CodeInvalidInput
	CodeInvalidFanAddress
	CodeInvalidCreatorAddress
	CodeRateLimitExceeded
	CodeInvalidAmount
	CodeInvalidSignature
	CodeSignatureMismatch
	CodeWalletInitialization
	CodeSignatureAlreadyUsed
	CodeInvalidNonce
	CodeUnauthorizedRelayer
	CodeTransactionFailed
	CodeInternal
	CodeMethodNotAllowed
)

var codeNames = map[Code]string{
	CodeInvalidJSON:           "INVALID_JSON",
	CodeInvalidInput:          "INVALID_INPUT",
	CodeInvalidFanAddress:     "INVALID_FAN_ADDRESS",
	CodeInvalidCreatorAddress: "INVALID_CREATOR_ADDRESS",
	CodeRateLimitExceeded:     "RATE_LIMIT_EXCEEDED",
	CodeInvalidAmount:         "INVALID_AMOUNT",
	CodeInvalidSignature:      "INVALID_SIGNATURE",
	CodeSignatureMismatch:     "SIGNATURE_MISMATCH",
	CodeWalletInitialization:  "WALLET_INITIALIZATION_ERROR",
	CodeSignatureAlreadyUsed:  "SIGNATURE_ALREADY_USED",
	CodeInvalidNonce:          "INVALID_NONCE",
	CodeUnauthorizedRelayer:   "UNAUTHORIZED_RELAYER",
	CodeTransactionFailed:     "TRANSACTION_FAILED",
	CodeInternal:              "INTERNAL_SERVER_ERROR",
	CodeMethodNotAllowed:      "METHOD_NOT_ALLOWED",
}

var defaultMessages = map[Code]string{
	CodeInvalidJSON:           "Request body must be valid JSON",
	CodeInvalidInput:          "Invalid request format. Required fields: fan, creator, amount, nonce, signature",
	CodeInvalidFanAddress:     "Invalid fan address provided",
	CodeInvalidCreatorAddress: "Invalid creator address provided",
	CodeRateLimitExceeded:     "Too many requests",
	CodeInvalidAmount:         "Tip amount is out of range",
	CodeInvalidSignature:      "Failed to recover signature",
	CodeSignatureMismatch:     "Signature does not match fan address",
	CodeWalletInitialization:  "Failed to initialize relayer wallet",
	CodeSignatureAlreadyUsed:  "This signature has already been processed",
	CodeInvalidNonce:          "Invalid nonce for this fan address",
	CodeUnauthorizedRelayer:   "Relayer not authorized for this contract",
	CodeTransactionFailed:     "Failed to execute tip transaction",
	CodeInternal:              "An unexpected error occurred",
	CodeMethodNotAllowed:      "Only POST requests are supported",
}

// Codes lists every code in declaration order.
func Codes() []Code {
	out := make([]Code, 0, len(codeNames))
	for c := CodeInvalidJSON; c <= CodeMethodNotAllowed; c++ {
		out = append(out, c)
	}
	return out
}

func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Code(%d)", int(c))
}

func (c Code) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c Code) Message() string {
	return defaultMessages[c]
}

func (c Code) HTTPStatus() int {
	switch c {
	case CodeInvalidJSON, CodeInvalidInput, CodeInvalidFanAddress, CodeInvalidCreatorAddress,
		CodeInvalidAmount, CodeInvalidSignature, CodeSignatureMismatch,
		CodeSignatureAlreadyUsed, CodeInvalidNonce:
		return http.StatusBadRequest
	case CodeRateLimitExceeded:
		return http.StatusTooManyRequests
	case CodeUnauthorizedRelayer:
		return http.StatusForbidden
	case CodeMethodNotAllowed:
		return http.StatusMethodNotAllowed
	default:
		return http.StatusInternalServerError
	}
}

// Error is a request rejected with an API code.
type Error struct {
	Code    Code
	Message string
	Details string
	// RetryAfter is set for CodeRateLimitExceeded.
	RetryAfter time.Duration

	cause error
}

func NewError(code Code, cause error) *Error {
	return &Error{Code: code, Message: code.Message(), cause: cause}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.cause)
	}
	return e.Code.String() + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

func (e *Error) withMessage(msg string) *Error {
	e.Message = msg
	return e
}
