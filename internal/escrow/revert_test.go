package escrow

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/require"
)

type dataError struct {
	msg  string
	data interface{}
}

func (e dataError) Error() string          { return e.msg }
func (e dataError) ErrorData() interface{} { return e.data }

// Error(string) payload for "Invalid nonce".
const invalidNoncePayload = "0x08c379a0" +
	"0000000000000000000000000000000000000000000000000000000000000020" +
	"000000000000000000000000000000000000000000000000000000000000000d" +
	"496e76616c6964206e6f6e636500000000000000000000000000000000000000"

func TestAsRevertDecodesErrorData(t *testing.T) {
	err := asRevert(dataError{msg: "execution reverted", data: invalidNoncePayload})

	var rev *RevertError
	require.True(t, errors.As(err, &rev))
	require.Equal(t, ReasonInvalidNonce, rev.Reason)
	require.NotEmpty(t, rev.Data)
}

func TestAsRevertMatchesCustomError(t *testing.T) {
	id := tipJarABI.Errors["OwnableUnauthorizedAccount"].ID
	payload := hexutil.Encode(append(id.Bytes()[:4], make([]byte, 32)...))

	var rev *RevertError
	require.True(t, errors.As(asRevert(dataError{msg: "execution reverted", data: payload}), &rev))
	require.Equal(t, ReasonOwnableUnauthorized, rev.Reason)
}

func TestAsRevertFallsBackToMessage(t *testing.T) {
	err := asRevert(errors.New("estimate gas: execution reverted: Signature already used"))

	var rev *RevertError
	require.True(t, errors.As(err, &rev))
	require.Equal(t, ReasonSignatureUsed, rev.Reason)
}

func TestAsRevertPassesOtherErrors(t *testing.T) {
	base := errors.New("connection refused")
	require.Equal(t, base, asRevert(base))
	require.Nil(t, asRevert(nil))
}

func TestParsePrivateKey(t *testing.T) {
	_, err := parsePrivateKey("0xnothex")
	require.Error(t, err)

	_, err = parsePrivateKey("")
	require.Error(t, err)

	key, err := parsePrivateKey("0x" + "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318")
	require.NoError(t, err)
	require.NotNil(t, key)
}
