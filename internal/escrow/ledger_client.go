package escrow

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// LedgerClient drives an in-process Ledger as if it were the deployed
// contract. It is used in simulated mode and in tests.
type LedgerClient struct {
	ledger  *Ledger
	relayer common.Address

	// ConfirmAfter delays receipts to mimic block inclusion.
	ConfirmAfter time.Duration

	mu       sync.Mutex
	seq      uint64
	receipts map[common.Hash]Receipt
	failed   map[common.Hash]bool
}

// NewLedgerClient submits as relayer. Tips are only accepted while relayer
// is the ledger's current relayer.
func NewLedgerClient(ledger *Ledger, relayer common.Address) *LedgerClient {
	return &LedgerClient{
		ledger:   ledger,
		relayer:  relayer,
		receipts: make(map[common.Hash]Receipt),
		failed:   make(map[common.Hash]bool),
	}
}

func (c *LedgerClient) Ledger() *Ledger {
	return c.ledger
}

func (c *LedgerClient) SubmitTip(_ context.Context, call TipCall) (TipSubmission, error) {
	if err := c.ledger.Tip(c.relayer, call.Amount, call); err != nil {
		return TipSubmission{}, fmt.Errorf("submit tip tx: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	hash := fakeHash(c.relayer, c.seq)
	c.receipts[hash] = Receipt{TxHash: hash, Success: true, BlockNumber: c.seq}
	return TipSubmission{TxHash: hash, Relayer: c.relayer}, nil
}

// MarkFailed makes the receipt for txHash report a failed status.
func (c *LedgerClient) MarkFailed(txHash common.Hash) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failed[txHash] = true
}

func (c *LedgerClient) WaitForReceipt(ctx context.Context, txHash common.Hash) (Receipt, error) {
	if c.ConfirmAfter > 0 {
		timer := time.NewTimer(c.ConfirmAfter)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return Receipt{}, ctx.Err()
		case <-timer.C:
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.receipts[txHash]
	if !ok {
		return Receipt{}, fmt.Errorf("unknown transaction %s", txHash.Hex())
	}
	if c.failed[txHash] {
		r.Success = false
	}
	return r, nil
}

func (c *LedgerClient) Nonce(_ context.Context, fan common.Address) (*big.Int, error) {
	return c.ledger.Nonce(fan), nil
}

func (c *LedgerClient) ClaimableBalance(_ context.Context, creator common.Address) (*big.Int, error) {
	return c.ledger.ClaimableBalance(creator), nil
}

func (c *LedgerClient) Ping(context.Context) error {
	return nil
}

func fakeHash(relayer common.Address, seq uint64) common.Hash {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], seq)
	return sha256.Sum256(append(relayer.Bytes(), buf[:]...))
}
