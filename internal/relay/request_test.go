package relay

import (
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

const (
	fanHex     = "0x1234567890123456789012345678901234567890"
	creatorHex = "0x0987654321098765432109876543210987654321"
	sigHex     = "0xabcdef"
)

func body(fields map[string]string) []byte {
	defaults := map[string]string{
		"fan":       `"` + fanHex + `"`,
		"creator":   `"` + creatorHex + `"`,
		"amount":    `"0.1"`,
		"nonce":     `0`,
		"signature": `"` + sigHex + `"`,
	}
	for k, v := range fields {
		defaults[k] = v
	}
	parts := make([]string, 0, len(defaults))
	for k, v := range defaults {
		if v == "-" {
			continue
		}
		parts = append(parts, `"`+k+`":`+v)
	}
	return []byte("{" + strings.Join(parts, ",") + "}")
}

func TestDecodeRejections(t *testing.T) {
	v := NewValidator(DefaultAmountPolicy())

	cases := []struct {
		name string
		body []byte
		code Code
	}{
		{"not json", []byte(`{"fan":`), CodeInvalidJSON},
		{"trailing garbage", []byte(`{} {}`), CodeInvalidJSON},
		{"array body", []byte(`[]`), CodeInvalidInput},
		{"null body", []byte(`null`), CodeInvalidInput},
		{"missing fan", body(map[string]string{"fan": "-"}), CodeInvalidInput},
		{"empty creator", body(map[string]string{"creator": `""`}), CodeInvalidInput},
		{"numeric amount", body(map[string]string{"amount": `0.1`}), CodeInvalidInput},
		{"word amount", body(map[string]string{"amount": `"ten"`}), CodeInvalidInput},
		{"exponent amount", body(map[string]string{"amount": `"1e3"`}), CodeInvalidInput},
		{"zero amount", body(map[string]string{"amount": `"0.000"`}), CodeInvalidInput},
		{"negative amount", body(map[string]string{"amount": `"-1"`}), CodeInvalidInput},
		{"string nonce", body(map[string]string{"nonce": `"0"`}), CodeInvalidInput},
		{"negative nonce", body(map[string]string{"nonce": `-1`}), CodeInvalidInput},
		{"fractional nonce", body(map[string]string{"nonce": `1.5`}), CodeInvalidInput},
		{"missing nonce", body(map[string]string{"nonce": "-"}), CodeInvalidInput},
		{"huge exponent nonce", body(map[string]string{"nonce": `1e200000000`}), CodeInvalidInput},
		{"tiny exponent nonce", body(map[string]string{"nonce": `1e-200000000`}), CodeInvalidInput},
		{"nonce above uint256", body(map[string]string{"nonce": `2e77`}), CodeInvalidInput},
		{"79 digit nonce", body(map[string]string{"nonce": "1" + strings.Repeat("0", 78)}), CodeInvalidInput},
		{"odd signature", body(map[string]string{"signature": `"0xabc"`}), CodeInvalidInput},
		{"unprefixed signature", body(map[string]string{"signature": `"abcd"`}), CodeInvalidInput},
		{"bare prefix signature", body(map[string]string{"signature": `"0x"`}), CodeInvalidInput},
		{"short fan", body(map[string]string{"fan": `"0x1234"`}), CodeInvalidFanAddress},
		{"zero fan", body(map[string]string{"fan": `"0x0000000000000000000000000000000000000000"`}), CodeInvalidFanAddress},
		{"burn fan", body(map[string]string{"fan": `"0x000000000000000000000000000000000000DEAD"`}), CodeInvalidFanAddress},
		{"bad creator", body(map[string]string{"creator": `"creator"`}), CodeInvalidCreatorAddress},
		{"burn creator", body(map[string]string{"creator": `"0x000000000000000000000000000000000000dead"`}), CodeInvalidCreatorAddress},
		// structure is checked before addresses
		{"bad fan and missing amount", body(map[string]string{"fan": `"nope"`, "amount": "-"}), CodeInvalidInput},
		// fan is checked before creator
		{"bad fan and bad creator", body(map[string]string{"fan": `"nope"`, "creator": `"nope"`}), CodeInvalidFanAddress},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := v.Decode(tc.body)
			require.NotNil(t, err)
			require.Equal(t, tc.code, err.Code, err.Error())
		})
	}
}

func TestDecodeAccepts(t *testing.T) {
	v := NewValidator(DefaultAmountPolicy())
	req, err := v.Decode(body(map[string]string{"nonce": `7`, "amount": `"12.5"`}))
	require.Nil(t, err)
	require.Equal(t, fanHex, req.FanText)
	require.Equal(t, strings.ToLower(creatorHex), strings.ToLower(req.Creator.Hex()))
	require.Equal(t, big.NewInt(7), req.Nonce)
	require.Equal(t, "12.5", req.AmountText)
	require.Equal(t, []byte{0xab, 0xcd, 0xef}, req.Signature)
}

func TestDecodeNonceForms(t *testing.T) {
	v := NewValidator(DefaultAmountPolicy())
	maxUint256 := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

	cases := []struct {
		raw  string
		want *big.Int
	}{
		{"0", big.NewInt(0)},
		{"0e-200000000", big.NewInt(0)},
		{"1e3", big.NewInt(1000)},
		{"10e-1", big.NewInt(1)},
		{"5.000", big.NewInt(5)},
		{maxUint256.String(), maxUint256},
	}
	for _, tc := range cases {
		t.Run(tc.raw, func(t *testing.T) {
			req, err := v.Decode(body(map[string]string{"nonce": tc.raw}))
			require.Nil(t, err)
			require.Equal(t, 0, tc.want.Cmp(req.Nonce), req.Nonce.String())
		})
	}
}

func TestDecodeBoundsLargeNonceWork(t *testing.T) {
	v := NewValidator(DefaultAmountPolicy())
	done := make(chan *Error, 1)
	go func() {
		_, err := v.Decode(body(map[string]string{"nonce": `9e999999999`}))
		done <- err
	}()

	select {
	case err := <-done:
		require.NotNil(t, err)
		require.Equal(t, CodeInvalidInput, err.Code)
	case <-time.After(2 * time.Second):
		t.Fatal("decoding a short exponent nonce did not return")
	}
}

func TestCreatorPolicy(t *testing.T) {
	v := NewValidator(DefaultAmountPolicy())
	v.Creator = func(a common.Address) bool { return a != common.HexToAddress(creatorHex) }

	_, err := v.Decode(body(nil))
	require.NotNil(t, err)
	require.Equal(t, CodeInvalidCreatorAddress, err.Code)
}

func TestAmountBoundsAndScaling(t *testing.T) {
	v := NewValidator(DefaultAmountPolicy())

	cases := []struct {
		amount string
		wei    string
		ok     bool
	}{
		{"0.0005", "", false},
		{"0.001", "1000000000000000", true},
		{"0.1", "100000000000000000", true},
		{"1000", "1000000000000000000000", true},
		{"1000.00", "1000000000000000000000", true},
		{"1000.01", "", false},
		{"1.0000000000000000001", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.amount, func(t *testing.T) {
			req, derr := v.Decode(body(map[string]string{"amount": `"` + tc.amount + `"`}))
			require.Nil(t, derr)

			wei, err := v.Wei(req)
			if !tc.ok {
				require.NotNil(t, err)
				require.Equal(t, CodeInvalidAmount, err.Code)
				return
			}
			require.Nil(t, err)
			require.Equal(t, tc.wei, wei.String())
		})
	}
}
