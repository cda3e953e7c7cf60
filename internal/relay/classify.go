package relay

import (
	"errors"
	"strings"

	"tipjar/internal/escrow"
)

// classifySubmitError maps a failed submission to an API error. Decoded
// revert reasons are matched exactly; the error text is only searched when
// the node gave no decodable reason.
func classifySubmitError(err error) *Error {
	if errors.Is(err, escrow.ErrWalletInit) {
		return NewError(CodeWalletInitialization, err)
	}

	var rev *escrow.RevertError
	if errors.As(err, &rev) {
		switch {
		case rev.Reason == escrow.ReasonSignatureUsed:
			return NewError(CodeSignatureAlreadyUsed, err)
		case rev.Reason == escrow.ReasonInvalidNonce:
			return NewError(CodeInvalidNonce, err)
		case strings.HasPrefix(rev.Reason, "Unauthorized"):
			return NewError(CodeUnauthorizedRelayer, err)
		}
		return transactionFailed(err)
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, escrow.ReasonSignatureUsed):
		return NewError(CodeSignatureAlreadyUsed, err)
	case strings.Contains(msg, escrow.ReasonInvalidNonce):
		return NewError(CodeInvalidNonce, err)
	case strings.Contains(msg, "Unauthorized"):
		return NewError(CodeUnauthorizedRelayer, err)
	}
	return transactionFailed(err)
}

func transactionFailed(err error) *Error {
	e := NewError(CodeTransactionFailed, err)
	e.Details = err.Error()
	if e.Details == "" {
		e.Details = "Unknown error"
	}
	return e
}
