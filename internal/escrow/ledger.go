package escrow

import (
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"tipjar/internal/eip712"
)

// EventKind names an event emitted by the escrow.
type EventKind string

const (
	EventTipReceived    EventKind = "TipReceived"
	EventFundsWithdrawn EventKind = "FundsWithdrawn"
	EventRelayerUpdated EventKind = "RelayerUpdated"
)

// Event is one emitted log. Only the fields of its kind are set.
type Event struct {
	Kind       EventKind
	Fan        common.Address
	Creator    common.Address
	Amount     *big.Int
	Nonce      *big.Int
	OldRelayer common.Address
	NewRelayer common.Address
}

// Ledger is the TipJar contract state machine held in memory. Every method
// either applies all of its effects or returns a *RevertError and applies
// none; calls are totally ordered by mu, as transactions are on chain.
type Ledger struct {
	mu sync.Mutex

	owner     common.Address
	relayer   common.Address
	domain    eip712.Domain
	separator common.Hash

	nonces    map[common.Address]*big.Int
	balances  map[common.Address]*big.Int
	holdings  *big.Int
	payouts   map[common.Address]*big.Int
	processed map[common.Hash]struct{}
	events    []Event
}

// NewLedger deploys a ledger owned by owner, bound to the given domain.
func NewLedger(owner, relayer common.Address, domain eip712.Domain) (*Ledger, error) {
	if relayer == (common.Address{}) {
		return nil, revert(ReasonInvalidRelayer)
	}
	return &Ledger{
		owner:     owner,
		relayer:   relayer,
		domain:    domain,
		separator: domain.Separator(),
		nonces:    make(map[common.Address]*big.Int),
		balances:  make(map[common.Address]*big.Int),
		holdings:  new(big.Int),
		payouts:   make(map[common.Address]*big.Int),
		processed: make(map[common.Hash]struct{}),
	}, nil
}

func revert(reason string) *RevertError {
	return &RevertError{Reason: reason}
}

// Tip processes a relayed tip sent by caller with value attached.
func (l *Ledger) Tip(caller common.Address, value *big.Int, call TipCall) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if caller != l.relayer {
		return revert(ReasonUnauthorizedRelayer)
	}
	if call.Fan == (common.Address{}) {
		return revert(ReasonInvalidFan)
	}
	if call.Creator == (common.Address{}) {
		return revert(ReasonInvalidCreator)
	}
	if call.Amount == nil || call.Amount.Sign() <= 0 {
		return revert(ReasonZeroAmount)
	}
	if value == nil || value.Cmp(call.Amount) != 0 {
		return revert(ReasonValueMismatch)
	}
	if call.Nonce == nil || call.Nonce.Cmp(l.nonceLocked(call.Fan)) != 0 {
		return revert(ReasonInvalidNonce)
	}

	digest := eip712.Digest(l.separator, eip712.HashTip(eip712.TipMessage{
		Fan:     call.Fan,
		Creator: call.Creator,
		Amount:  call.Amount,
		Nonce:   call.Nonce,
	}))
	signer, err := eip712.RecoverCanonical(digest.Bytes(), call.Signature)
	if err != nil || signer != call.Fan {
		return revert(ReasonInvalidSignature)
	}

	l.nonces[call.Fan] = new(big.Int).Add(call.Nonce, big.NewInt(1))
	l.balances[call.Creator] = new(big.Int).Add(l.balanceLocked(call.Creator), call.Amount)
	l.holdings.Add(l.holdings, value)
	l.processed[processedKey(digest, call.Signature)] = struct{}{}
	l.events = append(l.events, Event{
		Kind:    EventTipReceived,
		Fan:     call.Fan,
		Creator: call.Creator,
		Amount:  new(big.Int).Set(call.Amount),
		Nonce:   new(big.Int).Set(call.Nonce),
	})
	return nil
}

// Withdraw pays the caller's full claimable balance. The balance is zeroed
// before the payout is made.
func (l *Ledger) Withdraw(caller common.Address) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	amount := l.balanceLocked(caller)
	if amount.Sign() <= 0 {
		return nil, revert(ReasonNoFunds)
	}
	delete(l.balances, caller)
	l.payLocked(caller, amount)
	l.events = append(l.events, Event{
		Kind:    EventFundsWithdrawn,
		Creator: caller,
		Amount:  new(big.Int).Set(amount),
	})
	return new(big.Int).Set(amount), nil
}

// UpdateRelayer replaces the relayer. Owner only.
func (l *Ledger) UpdateRelayer(caller, newRelayer common.Address) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if caller != l.owner {
		return revert(ReasonOwnableUnauthorized)
	}
	if newRelayer == (common.Address{}) {
		return revert(ReasonInvalidRelayer)
	}
	old := l.relayer
	l.relayer = newRelayer
	l.events = append(l.events, Event{
		Kind:       EventRelayerUpdated,
		OldRelayer: old,
		NewRelayer: newRelayer,
	})
	return nil
}

// EmergencyWithdraw sweeps every held wei to the owner. Claimable balances
// are left as they were, so after a sweep they no longer match holdings and
// need manual reconciliation.
func (l *Ledger) EmergencyWithdraw(caller common.Address) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if caller != l.owner {
		return nil, revert(ReasonOwnableUnauthorized)
	}
	if l.holdings.Sign() <= 0 {
		return nil, revert(ReasonNoFunds)
	}
	amount := new(big.Int).Set(l.holdings)
	l.payLocked(l.owner, amount)
	return amount, nil
}

func (l *Ledger) payLocked(to common.Address, amount *big.Int) {
	l.holdings.Sub(l.holdings, amount)
	prev, ok := l.payouts[to]
	if !ok {
		prev = new(big.Int)
	}
	l.payouts[to] = new(big.Int).Add(prev, amount)
}

func (l *Ledger) nonceLocked(fan common.Address) *big.Int {
	if n, ok := l.nonces[fan]; ok {
		return n
	}
	return new(big.Int)
}

func (l *Ledger) balanceLocked(creator common.Address) *big.Int {
	if b, ok := l.balances[creator]; ok {
		return b
	}
	return new(big.Int)
}

func processedKey(digest common.Hash, sig []byte) common.Hash {
	return crypto.Keccak256Hash(digest.Bytes(), sig)
}

func (l *Ledger) Nonce(fan common.Address) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(big.Int).Set(l.nonceLocked(fan))
}

func (l *Ledger) ClaimableBalance(creator common.Address) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(big.Int).Set(l.balanceLocked(creator))
}

// Holdings is the wei the escrow currently holds.
func (l *Ledger) Holdings() *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(big.Int).Set(l.holdings)
}

// PaidOut is the total wei transferred out of the escrow to addr.
func (l *Ledger) PaidOut(addr common.Address) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if p, ok := l.payouts[addr]; ok {
		return new(big.Int).Set(p)
	}
	return new(big.Int)
}

func (l *Ledger) Relayer() common.Address {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.relayer
}

func (l *Ledger) Owner() common.Address {
	return l.owner
}

func (l *Ledger) DomainSeparator() common.Hash {
	return l.separator
}

func (l *Ledger) Domain() eip712.Domain {
	return l.domain
}

// IsSignatureProcessed reports whether a tip with this digest and signature
// was accepted. Tip never consults it; the nonce alone guards replays.
func (l *Ledger) IsSignatureProcessed(digest common.Hash, sig []byte) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.processed[processedKey(digest, sig)]
	return ok
}

// Events returns a copy of every event emitted so far.
func (l *Ledger) Events() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Event, len(l.events))
	copy(out, l.events)
	return out
}
