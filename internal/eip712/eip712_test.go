package eip712

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

var (
	testContract = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	testCreator  = common.HexToAddress("0x0987654321098765432109876543210987654321")
)

func testDomain() Domain {
	return NewDomain(big.NewInt(5003), testContract)
}

func testMessage(fan common.Address) TipMessage {
	return TipMessage{
		Fan:     fan,
		Creator: testCreator,
		Amount:  new(big.Int).Mul(big.NewInt(1), big.NewInt(1e17)),
		Nonce:   big.NewInt(0),
	}
}

func TestWalletAndContractDigestsAgree(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	msg := testMessage(crypto.PubkeyToAddress(key.PublicKey))
	domain := testDomain()

	wallet, err := TypedDataHash(domain, msg)
	require.NoError(t, err)

	contract := Digest(domain.Separator(), HashTip(msg))
	require.Equal(t, contract, wallet)
}

func TestSignAndRecover(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	fan := crypto.PubkeyToAddress(key.PublicKey)
	msg := testMessage(fan)

	sig, err := Sign(testDomain(), msg, key)
	require.NoError(t, err)
	require.Len(t, sig, 65)
	require.Contains(t, []byte{27, 28}, sig[64])

	v := NewVerifier(testDomain())
	got, err := v.Verify(msg, sig)
	require.NoError(t, err)
	require.Equal(t, fan, got)

	// raw 0/1 recovery id is accepted too
	raw := append([]byte(nil), sig...)
	raw[64] -= 27
	got, err = v.Verify(msg, raw)
	require.NoError(t, err)
	require.Equal(t, fan, got)
}

func TestSignatureBindsEveryField(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	fan := crypto.PubkeyToAddress(key.PublicKey)
	msg := testMessage(fan)
	sig, err := Sign(testDomain(), msg, key)
	require.NoError(t, err)

	other := common.HexToAddress("0x1111111111111111111111111111111111111111")
	cases := map[string]func(m TipMessage) TipMessage{
		"fan":     func(m TipMessage) TipMessage { m.Fan = other; return m },
		"creator": func(m TipMessage) TipMessage { m.Creator = other; return m },
		"amount":  func(m TipMessage) TipMessage { m.Amount = new(big.Int).Add(m.Amount, big.NewInt(1)); return m },
		"nonce":   func(m TipMessage) TipMessage { m.Nonce = big.NewInt(1); return m },
	}

	v := NewVerifier(testDomain())
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			tampered := mutate(msg)
			signer, err := v.Recover(tampered, sig)
			require.NoError(t, err)
			require.NotEqual(t, fan, signer)
		})
	}
}

func TestSignatureBoundToDomain(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	fan := crypto.PubkeyToAddress(key.PublicKey)
	msg := testMessage(fan)
	sig, err := Sign(testDomain(), msg, key)
	require.NoError(t, err)

	otherChain := NewVerifier(NewDomain(big.NewInt(1), testContract))
	_, err = otherChain.Verify(msg, sig)
	require.ErrorIs(t, err, ErrSignerMismatch)
}

func TestRecoverAddressRejectsMalformed(t *testing.T) {
	digest := crypto.Keccak256([]byte("tip"))

	_, err := RecoverAddress(digest, make([]byte, 64))
	require.ErrorIs(t, err, ErrSignatureLength)

	bad := make([]byte, 65)
	bad[64] = 5
	_, err = RecoverAddress(digest, bad)
	require.ErrorIs(t, err, ErrRecoveryID)

	// r = s = 0 is not a valid curve signature
	zero := make([]byte, 65)
	_, err = RecoverAddress(digest, zero)
	require.Error(t, err)
}

func TestRecoverCanonicalRejectsHighS(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	fan := crypto.PubkeyToAddress(key.PublicKey)
	digest, err := TypedDataHash(testDomain(), testMessage(fan))
	require.NoError(t, err)
	sig, err := Sign(testDomain(), testMessage(fan), key)
	require.NoError(t, err)

	signer, err := RecoverCanonical(digest.Bytes(), sig)
	require.NoError(t, err)
	require.Equal(t, fan, signer)

	// (r, n-s) with the opposite parity recovers the same key
	flipped := make([]byte, 65)
	copy(flipped, sig)
	highS := new(big.Int).Sub(crypto.S256().Params().N, new(big.Int).SetBytes(sig[32:64]))
	highS.FillBytes(flipped[32:64])
	flipped[64] = 55 - sig[64]

	signer, err = RecoverAddress(digest.Bytes(), flipped)
	require.NoError(t, err)
	require.Equal(t, fan, signer)

	_, err = RecoverCanonical(digest.Bytes(), flipped)
	require.ErrorIs(t, err, ErrHighS)
}

func TestSeparatorIsStable(t *testing.T) {
	a := testDomain().Separator()
	b := testDomain().Separator()
	require.Equal(t, a, b)
	require.NotEqual(t, a, NewDomain(big.NewInt(5003), testCreator).Separator())
	require.Len(t, a.Hex(), 66)
}
