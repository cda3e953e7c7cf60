package escrow

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Client abstracts the on-chain escrow interaction.
type Client interface {
	SubmitTip(ctx context.Context, call TipCall) (TipSubmission, error)
	Nonce(ctx context.Context, fan common.Address) (*big.Int, error)
	ClaimableBalance(ctx context.Context, creator common.Address) (*big.Int, error)
}

// ReceiptWaiter blocks until a submitted transaction is included or ctx ends.
type ReceiptWaiter interface {
	WaitForReceipt(ctx context.Context, txHash common.Hash) (Receipt, error)
}

// HealthChecker is implemented by clients that can probe their backend.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// TipCall is one relayed tip. Amount is in wei and is also the attached value.
type TipCall struct {
	Fan       common.Address
	Creator   common.Address
	Amount    *big.Int
	Nonce     *big.Int
	Signature []byte
}

type TipSubmission struct {
	TxHash  common.Hash
	Relayer common.Address
}

type Receipt struct {
	TxHash      common.Hash
	Success     bool
	BlockNumber uint64
}
