package eip712

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	ErrSignatureLength = errors.New("signature must be 65 bytes")
	ErrRecoveryID      = errors.New("invalid signature recovery id")
	ErrSignerMismatch  = errors.New("recovered address does not match")
	ErrHighS           = errors.New("signature s value is not in the lower half order")
)

// Verifier recovers tip signers for one domain.
type Verifier struct {
	domain Domain
}

func NewVerifier(domain Domain) *Verifier {
	return &Verifier{domain: domain}
}

func (v *Verifier) Domain() Domain {
	return v.domain
}

// Recover returns the address that signed msg.
func (v *Verifier) Recover(msg TipMessage, sig []byte) (common.Address, error) {
	digest, err := TypedDataHash(v.domain, msg)
	if err != nil {
		return common.Address{}, err
	}
	return RecoverAddress(digest.Bytes(), sig)
}

// Verify recovers the signer and checks it against msg.Fan. The recovered
// address is returned even on mismatch.
func (v *Verifier) Verify(msg TipMessage, sig []byte) (common.Address, error) {
	signer, err := v.Recover(msg, sig)
	if err != nil {
		return common.Address{}, err
	}
	if !strings.EqualFold(signer.Hex(), msg.Fan.Hex()) {
		return signer, fmt.Errorf("%w: got %s want %s", ErrSignerMismatch, signer.Hex(), msg.Fan.Hex())
	}
	return signer, nil
}

// RecoverAddress recovers the signer of a 32-byte digest. V may be 0/1 or 27/28.
func RecoverAddress(digest []byte, signature []byte) (common.Address, error) {
	if len(digest) != 32 {
		return common.Address{}, fmt.Errorf("invalid digest length: %d", len(digest))
	}
	if len(signature) != 65 {
		return common.Address{}, fmt.Errorf("%w: got %d", ErrSignatureLength, len(signature))
	}
	sig := make([]byte, 65)
	copy(sig, signature)
	v := sig[64]
	if v == 27 || v == 28 {
		v -= 27
	}
	if v != 0 && v != 1 {
		return common.Address{}, fmt.Errorf("%w: %d", ErrRecoveryID, signature[64])
	}
	sig[64] = v

	pub, err := crypto.SigToPub(digest, sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("recover public key: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// RecoverCanonical is RecoverAddress limited to low-s signatures, the only
// form the contract's ECDSA recovery accepts.
func RecoverCanonical(digest []byte, signature []byte) (common.Address, error) {
	signer, err := RecoverAddress(digest, signature)
	if err != nil {
		return common.Address{}, err
	}
	r := new(big.Int).SetBytes(signature[:32])
	s := new(big.Int).SetBytes(signature[32:64])
	if !crypto.ValidateSignatureValues(0, r, s, true) {
		return common.Address{}, ErrHighS
	}
	return signer, nil
}

// Sign produces a wallet-style signature (V = 27/28) over msg.
func Sign(domain Domain, msg TipMessage, key *ecdsa.PrivateKey) ([]byte, error) {
	digest, err := TypedDataHash(domain, msg)
	if err != nil {
		return nil, err
	}
	sig, err := crypto.Sign(digest.Bytes(), key)
	if err != nil {
		return nil, fmt.Errorf("sign digest: %w", err)
	}
	sig[64] += 27
	return sig, nil
}
