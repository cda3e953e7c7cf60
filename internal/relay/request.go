package relay

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/shopspring/decimal"
)

// NativeSymbol is the ticker used in client-facing amount messages.
const NativeSymbol = "MNT"

var (
	addressPattern   = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)
	amountPattern    = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)
	signaturePattern = regexp.MustCompile(`^0x([0-9a-fA-F]{2})+$`)

	burnAddress = common.HexToAddress("0x000000000000000000000000000000000000dEaD")
)

// TipRequest is a structurally valid relay request. The *Text fields keep
// the values as the client sent them for echoing back.
type TipRequest struct {
	Fan       common.Address
	Creator   common.Address
	Amount    decimal.Decimal
	Nonce     *big.Int
	Signature []byte

	FanText     string
	CreatorText string
	AmountText  string
	NonceText   string
}

// AmountPolicy bounds tip amounts in native units and fixes the scaling to wei.
type AmountPolicy struct {
	Min      decimal.Decimal
	Max      decimal.Decimal
	Decimals int32
}

func DefaultAmountPolicy() AmountPolicy {
	return AmountPolicy{
		Min:      decimal.RequireFromString("0.001"),
		Max:      decimal.RequireFromString("1000"),
		Decimals: 18,
	}
}

// CreatorPolicy can veto a creator address. Nil allows all.
type CreatorPolicy func(common.Address) bool

// Validator turns raw bodies into TipRequests.
type Validator struct {
	Amounts AmountPolicy
	Creator CreatorPolicy
}

func NewValidator(amounts AmountPolicy) *Validator {
	return &Validator{Amounts: amounts}
}

// Decode runs the structural checks and then the fan and creator address
// checks, in that order.
func (v *Validator) Decode(body []byte) (*TipRequest, *Error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		return nil, NewError(CodeInvalidJSON, err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, NewError(CodeInvalidJSON, fmt.Errorf("trailing data after json object"))
	}

	obj, ok := raw.(map[string]interface{})
	if !ok {
		return nil, NewError(CodeInvalidInput, fmt.Errorf("body is not a json object"))
	}

	req, err := structural(obj)
	if err != nil {
		return nil, NewError(CodeInvalidInput, err)
	}

	if !validAddress(req.FanText) {
		return nil, NewError(CodeInvalidFanAddress, fmt.Errorf("fan %q", req.FanText))
	}
	req.Fan = common.HexToAddress(req.FanText)

	if !validAddress(req.CreatorText) {
		return nil, NewError(CodeInvalidCreatorAddress, fmt.Errorf("creator %q", req.CreatorText))
	}
	req.Creator = common.HexToAddress(req.CreatorText)
	if v.Creator != nil && !v.Creator(req.Creator) {
		return nil, NewError(CodeInvalidCreatorAddress, fmt.Errorf("creator %s rejected by policy", req.Creator.Hex()))
	}
	return req, nil
}

func structural(obj map[string]interface{}) (*TipRequest, error) {
	req := &TipRequest{}
	var ok bool
	if req.FanText, ok = nonEmptyString(obj["fan"]); !ok {
		return nil, fmt.Errorf("fan is required")
	}
	if req.CreatorText, ok = nonEmptyString(obj["creator"]); !ok {
		return nil, fmt.Errorf("creator is required")
	}
	if req.AmountText, ok = nonEmptyString(obj["amount"]); !ok {
		return nil, fmt.Errorf("amount is required")
	}
	sig, ok := nonEmptyString(obj["signature"])
	if !ok {
		return nil, fmt.Errorf("signature is required")
	}
	num, ok := obj["nonce"].(json.Number)
	if !ok {
		return nil, fmt.Errorf("nonce must be a number")
	}

	if !amountPattern.MatchString(req.AmountText) {
		return nil, fmt.Errorf("amount %q is not a decimal", req.AmountText)
	}
	amount, err := decimal.NewFromString(req.AmountText)
	if err != nil {
		return nil, fmt.Errorf("amount: %w", err)
	}
	if !amount.IsPositive() {
		return nil, fmt.Errorf("amount must be greater than zero")
	}
	req.Amount = amount

	if req.Nonce, err = parseNonce(num); err != nil {
		return nil, err
	}
	req.NonceText = req.Nonce.String()

	if !signaturePattern.MatchString(sig) {
		return nil, fmt.Errorf("signature must be 0x-prefixed hex")
	}
	if req.Signature, err = hexutil.Decode(sig); err != nil {
		return nil, fmt.Errorf("signature: %w", err)
	}
	return req, nil
}

// maxNonceDigits is the decimal width of the largest uint256.
const maxNonceDigits = 78

// parseNonce accepts any integral JSON number that fits in a uint256. The
// digit count is bounded before scaling so exponents like 1e200000000 are
// rejected without materializing them.
func parseNonce(num json.Number) (*big.Int, error) {
	raw := num.String()
	if len(raw) > 2*maxNonceDigits {
		return nil, fmt.Errorf("nonce out of range")
	}
	nonce, err := decimal.NewFromString(raw)
	if err != nil || nonce.IsNegative() {
		return nil, fmt.Errorf("nonce %q must be a non-negative integer", raw)
	}
	if nonce.IsZero() {
		return new(big.Int), nil
	}
	intDigits := int64(nonce.NumDigits()) + int64(nonce.Exponent())
	if intDigits > maxNonceDigits {
		return nil, fmt.Errorf("nonce out of range")
	}
	if intDigits <= 0 || !nonce.IsInteger() {
		return nil, fmt.Errorf("nonce %q must be a non-negative integer", raw)
	}
	n := nonce.BigInt()
	if n.BitLen() > 256 {
		return nil, fmt.Errorf("nonce out of range")
	}
	return n, nil
}

func nonEmptyString(v interface{}) (string, bool) {
	s, ok := v.(string)
	return s, ok && s != ""
}

func validAddress(s string) bool {
	if !addressPattern.MatchString(s) {
		return false
	}
	addr := common.HexToAddress(s)
	return addr != (common.Address{}) && addr != burnAddress
}

// Wei checks the amount bounds and scales the amount to wei. Amounts finer
// than the native decimals cannot be represented and are rejected.
func (v *Validator) Wei(req *TipRequest) (*big.Int, *Error) {
	p := v.Amounts
	if req.Amount.LessThan(p.Min) || req.Amount.GreaterThan(p.Max) {
		return nil, NewError(CodeInvalidAmount, fmt.Errorf("amount %s outside [%s, %s]", req.Amount, p.Min, p.Max)).
			withMessage(fmt.Sprintf("Tip amount must be between %s and %s %s", p.Min, p.Max, NativeSymbol))
	}
	scaled := req.Amount.Shift(p.Decimals)
	if !scaled.IsInteger() {
		return nil, NewError(CodeInvalidAmount, fmt.Errorf("amount %s has more than %d decimals", req.Amount, p.Decimals)).
			withMessage(fmt.Sprintf("Tip amount supports at most %d decimal places", p.Decimals))
	}
	return scaled.BigInt(), nil
}

// lowerHex is used for log fields so one fan always reads the same.
func lowerHex(a common.Address) string {
	return strings.ToLower(a.Hex())
}
