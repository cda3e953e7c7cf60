package relay

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"tipjar/internal/escrow"
	"tipjar/internal/logging"
)

type stubWaiter struct {
	delay   time.Duration
	receipt escrow.Receipt
	err     error
}

func (s stubWaiter) WaitForReceipt(ctx context.Context, _ common.Hash) (escrow.Receipt, error) {
	select {
	case <-ctx.Done():
		return escrow.Receipt{}, ctx.Err()
	case <-time.After(s.delay):
	}
	return s.receipt, s.err
}

func TestWatcherStatuses(t *testing.T) {
	cases := []struct {
		name   string
		waiter stubWaiter
		want   TxStatus
	}{
		{"confirmed", stubWaiter{receipt: escrow.Receipt{Success: true}}, StatusConfirmed},
		{"failed", stubWaiter{receipt: escrow.Receipt{Success: false}}, StatusFailed},
		{"polling error", stubWaiter{err: errors.New("rpc down")}, StatusPending},
		{"timeout", stubWaiter{delay: time.Hour}, StatusPending},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := NewWatcher(tc.waiter, 20*time.Millisecond, 2, logging.Nop())
			defer w.Stop()
			require.Equal(t, tc.want, w.Await(context.Background(), common.Hash{1}))
		})
	}
}

func TestWatcherDetachesOnClientGone(t *testing.T) {
	w := NewWatcher(stubWaiter{delay: 50 * time.Millisecond, receipt: escrow.Receipt{Success: true}}, time.Second, 2, logging.Nop())

	var (
		mu      sync.Mutex
		settled []TxStatus
	)
	w.OnSettled(func(s TxStatus) {
		mu.Lock()
		defer mu.Unlock()
		settled = append(settled, s)
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Equal(t, StatusPending, w.Await(ctx, common.Hash{2}))

	// the detached wait still runs to completion
	w.Stop()
	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []TxStatus{StatusConfirmed}, settled)
}

func TestWatcherDeadlineIncludesQueueTime(t *testing.T) {
	const timeout = 100 * time.Millisecond
	w := NewWatcher(stubWaiter{delay: time.Hour}, timeout, 1, logging.Nop())
	defer w.Stop()

	const callers = 3
	var wg sync.WaitGroup
	elapsed := make([]time.Duration, callers)
	statuses := make([]TxStatus, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			start := time.Now()
			statuses[i] = w.Await(context.Background(), common.Hash{byte(i + 10)})
			elapsed[i] = time.Since(start)
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.Equal(t, StatusPending, statuses[i])
		require.Less(t, elapsed[i], 2*timeout, "caller %d waited %s", i, elapsed[i])
	}
}
