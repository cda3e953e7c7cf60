// Package eip712 builds the typed-data digest fans sign for a tip and
// recovers the signer from it.
//
// Two encoders live here. TypedDataHash goes through go-ethereum's apitypes,
// the same path a wallet takes. Separator/HashTip/Digest hash the fields by
// hand the way the escrow contract does on chain. Both must agree byte for
// byte; the tests pin that.
package eip712

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

const (
	DomainName    = "MantleTipJar"
	DomainVersion = "1"
	PrimaryType   = "Tip"
)

var (
	// keccak256("EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)")
	DomainTypeHash = crypto.Keccak256([]byte("EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)"))

	// keccak256("Tip(address fan,address creator,uint256 amount,uint256 nonce)")
	TipTypeHash = crypto.Keccak256([]byte("Tip(address fan,address creator,uint256 amount,uint256 nonce)"))
)

// Types is the typed-data schema for a tip. Field order matters.
var Types = apitypes.Types{
	"EIP712Domain": {
		{Name: "name", Type: "string"},
		{Name: "version", Type: "string"},
		{Name: "chainId", Type: "uint256"},
		{Name: "verifyingContract", Type: "address"},
	},
	PrimaryType: {
		{Name: "fan", Type: "address"},
		{Name: "creator", Type: "address"},
		{Name: "amount", Type: "uint256"},
		{Name: "nonce", Type: "uint256"},
	},
}

// Domain identifies the escrow deployment a signature is bound to.
type Domain struct {
	Name              string
	Version           string
	ChainID           *big.Int
	VerifyingContract common.Address
}

// NewDomain returns the tip jar domain for a chain and contract.
func NewDomain(chainID *big.Int, contract common.Address) Domain {
	return Domain{
		Name:              DomainName,
		Version:           DomainVersion,
		ChainID:           new(big.Int).Set(chainID),
		VerifyingContract: contract,
	}
}

// TipMessage is the struct the fan signs. Amount is in wei.
type TipMessage struct {
	Fan     common.Address
	Creator common.Address
	Amount  *big.Int
	Nonce   *big.Int
}

// Separator computes the domain separator.
func (d Domain) Separator() common.Hash {
	return crypto.Keccak256Hash(
		DomainTypeHash,
		crypto.Keccak256([]byte(d.Name)),
		crypto.Keccak256([]byte(d.Version)),
		math.U256Bytes(new(big.Int).Set(d.ChainID)),
		common.LeftPadBytes(d.VerifyingContract.Bytes(), 32),
	)
}

// HashTip computes hashStruct(Tip).
func HashTip(msg TipMessage) common.Hash {
	return crypto.Keccak256Hash(
		TipTypeHash,
		common.LeftPadBytes(msg.Fan.Bytes(), 32),
		common.LeftPadBytes(msg.Creator.Bytes(), 32),
		math.U256Bytes(new(big.Int).Set(msg.Amount)),
		math.U256Bytes(new(big.Int).Set(msg.Nonce)),
	)
}

// Digest combines the domain separator and struct hash.
// digest = keccak256("\x19\x01" ‖ domainSeparator ‖ hashStruct(message))
func Digest(separator, structHash common.Hash) common.Hash {
	return crypto.Keccak256Hash(
		[]byte("\x19\x01"),
		separator.Bytes(),
		structHash.Bytes(),
	)
}

// TypedData renders the domain and message in wallet form.
func (d Domain) TypedData(msg TipMessage) apitypes.TypedData {
	return apitypes.TypedData{
		Types:       Types,
		PrimaryType: PrimaryType,
		Domain: apitypes.TypedDataDomain{
			Name:              d.Name,
			Version:           d.Version,
			ChainId:           (*math.HexOrDecimal256)(new(big.Int).Set(d.ChainID)),
			VerifyingContract: d.VerifyingContract.Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"fan":     msg.Fan.Hex(),
			"creator": msg.Creator.Hex(),
			"amount":  msg.Amount.String(),
			"nonce":   msg.Nonce.String(),
		},
	}
}

// TypedDataHash returns the digest a wallet signs for msg under d.
func TypedDataHash(d Domain, msg TipMessage) (common.Hash, error) {
	if d.ChainID == nil || msg.Amount == nil || msg.Nonce == nil {
		return common.Hash{}, fmt.Errorf("typed data: chain id, amount and nonce are required")
	}
	sighash, _, err := apitypes.TypedDataAndHash(d.TypedData(msg))
	if err != nil {
		return common.Hash{}, fmt.Errorf("typed data hash: %w", err)
	}
	return common.BytesToHash(sighash), nil
}
