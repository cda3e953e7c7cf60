package relay

import (
	"context"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/ethereum/go-ethereum/common"

	"tipjar/internal/escrow"
	"tipjar/internal/logging"
)

// TxStatus is the inclusion state reported back to the client.
type TxStatus string

const (
	StatusPending   TxStatus = "pending"
	StatusConfirmed TxStatus = "confirmed"
	StatusFailed    TxStatus = "failed"
)

const (
	DefaultConfirmTimeout = 30 * time.Second
	DefaultConfirmWorkers = 32
)

// Watcher waits for receipts on a bounded pool. A wait always ends by its own
// deadline; the caller may stop listening earlier and gets StatusPending.
type Watcher struct {
	waiter    escrow.ReceiptWaiter
	pool      pond.Pool
	timeout   time.Duration
	logger    logging.Logger
	onSettled func(TxStatus)
}

func NewWatcher(waiter escrow.ReceiptWaiter, timeout time.Duration, workers int, logger logging.Logger) *Watcher {
	if timeout <= 0 {
		timeout = DefaultConfirmTimeout
	}
	if workers <= 0 {
		workers = DefaultConfirmWorkers
	}
	return &Watcher{
		waiter:  waiter,
		pool:    pond.NewPool(workers),
		timeout: timeout,
		logger:  logging.ForComponent(logger, logging.ComponentWatcher),
	}
}

// OnSettled registers a callback for every wait that finishes, including
// those nobody is listening to anymore.
func (w *Watcher) OnSettled(fn func(TxStatus)) {
	w.onSettled = fn
}

// Await returns the settled status of txHash, or StatusPending if ctx ends
// first, the deadline passes or the receipt cannot be fetched. The deadline
// counts from submission, so time spent queued behind busy workers is part
// of it.
func (w *Watcher) Await(ctx context.Context, txHash common.Hash) TxStatus {
	result := make(chan TxStatus, 1)
	detached := context.WithoutCancel(ctx)

	deadline := time.NewTimer(w.timeout)
	defer deadline.Stop()

	task := w.pool.Submit(logging.Recover(w.logger, logging.ComponentWatcher, func() {
		result <- w.settle(detached, txHash)
	}, nil))

	select {
	case status := <-result:
		return status
	case <-task.Done():
		select {
		case status := <-result:
			return status
		default:
			return StatusPending
		}
	case <-deadline.C:
		w.logger.Debug().
			Str(logging.FieldTxHash, txHash.Hex()).
			Msg("confirmation deadline passed, wait continues detached")
		return StatusPending
	case <-ctx.Done():
		w.logger.Debug().
			Str(logging.FieldTxHash, txHash.Hex()).
			Msg("client gone before confirmation, wait continues detached")
		return StatusPending
	}
}

func (w *Watcher) settle(parent context.Context, txHash common.Hash) TxStatus {
	ctx, cancel := context.WithTimeout(parent, w.timeout)
	defer cancel()

	status := StatusPending
	receipt, err := w.waiter.WaitForReceipt(ctx, txHash)
	switch {
	case err != nil:
		w.logger.Warn().
			Err(err).
			Str(logging.FieldTxHash, txHash.Hex()).
			Msg("failed to wait for transaction confirmation")
	case receipt.Success:
		status = StatusConfirmed
	default:
		status = StatusFailed
	}
	if err == nil {
		w.logger.Info().
			Str(logging.FieldTxHash, txHash.Hex()).
			Str(logging.FieldStatus, string(status)).
			Uint64("block", receipt.BlockNumber).
			Msg("transaction settled")
	}
	if w.onSettled != nil {
		w.onSettled(status)
	}
	return status
}

// Stop waits for in-flight confirmations to reach their deadlines.
func (w *Watcher) Stop() {
	w.pool.StopAndWait()
}
