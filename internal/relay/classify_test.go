package relay

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"tipjar/internal/escrow"
)

func TestClassifySubmitError(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		code    Code
		details bool
	}{
		{"wallet init", fmt.Errorf("%w: parse private key", escrow.ErrWalletInit), CodeWalletInitialization, false},
		{"decoded replay", &escrow.RevertError{Reason: escrow.ReasonSignatureUsed}, CodeSignatureAlreadyUsed, false},
		{"decoded nonce", fmt.Errorf("submit tip tx: %w", &escrow.RevertError{Reason: escrow.ReasonInvalidNonce}), CodeInvalidNonce, false},
		{"decoded relayer", &escrow.RevertError{Reason: escrow.ReasonUnauthorizedRelayer}, CodeUnauthorizedRelayer, false},
		{"decoded other", &escrow.RevertError{Reason: escrow.ReasonValueMismatch}, CodeTransactionFailed, true},
		{"decoded owner error is not relayer", &escrow.RevertError{Reason: escrow.ReasonOwnableUnauthorized}, CodeTransactionFailed, true},
		{"text replay", errors.New("rpc: Signature already used"), CodeSignatureAlreadyUsed, false},
		{"text nonce", errors.New("gas estimation: Invalid nonce"), CodeInvalidNonce, false},
		{"text relayer", errors.New("Unauthorized: Only relayer"), CodeUnauthorizedRelayer, false},
		{"insufficient funds", errors.New("insufficient funds for gas * price + value"), CodeTransactionFailed, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := classifySubmitError(tc.err)
			require.Equal(t, tc.code, got.Code)
			if tc.details {
				require.Equal(t, tc.err.Error(), got.Details)
			} else {
				require.Empty(t, got.Details)
			}
			require.ErrorIs(t, got, tc.err)
		})
	}
}

func TestCodeStatuses(t *testing.T) {
	want := map[Code]int{
		CodeInvalidJSON:           http.StatusBadRequest,
		CodeInvalidInput:          http.StatusBadRequest,
		CodeInvalidFanAddress:     http.StatusBadRequest,
		CodeInvalidCreatorAddress: http.StatusBadRequest,
		CodeRateLimitExceeded:     http.StatusTooManyRequests,
		CodeInvalidAmount:         http.StatusBadRequest,
		CodeInvalidSignature:      http.StatusBadRequest,
		CodeSignatureMismatch:     http.StatusBadRequest,
		CodeWalletInitialization:  http.StatusInternalServerError,
		CodeSignatureAlreadyUsed:  http.StatusBadRequest,
		CodeInvalidNonce:          http.StatusBadRequest,
		CodeUnauthorizedRelayer:   http.StatusForbidden,
		CodeTransactionFailed:     http.StatusInternalServerError,
		CodeInternal:              http.StatusInternalServerError,
		CodeMethodNotAllowed:      http.StatusMethodNotAllowed,
	}
	require.Len(t, Codes(), len(want))
	for _, c := range Codes() {
		require.Equal(t, want[c], c.HTTPStatus(), c.String())
		require.NotEmpty(t, c.Message(), c.String())
	}
	require.Equal(t, "WALLET_INITIALIZATION_ERROR", CodeWalletInitialization.String())
}
