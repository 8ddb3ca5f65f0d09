package trading

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "github.com/cyrus123live/btc-trading/internal/errors"
	"github.com/cyrus123live/btc-trading/pkg/types"
)

func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

type orderRest struct {
	mu      sync.Mutex
	calls   int
	lastReq any
	order   types.Order
	err     error

	// block, when set, holds the call until released
	block   chan struct{}
	started chan struct{}
}

func (f *orderRest) Post(ctx context.Context, path string, body, out any) error {
	f.mu.Lock()
	f.calls++
	f.lastReq = body
	block := f.block
	started := f.started
	f.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if block != nil {
		<-block
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	*out.(*types.Order) = f.order
	return nil
}

func (f *orderRest) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type countingRefresher struct{ count atomic.Int32 }

func (r *countingRefresher) Refresh() { r.count.Add(1) }

func TestOrchestrator_Submit_Success(t *testing.T) {
	fill := 65000.0
	rest := &orderRest{order: types.Order{OrderID: 41, Side: types.OrderSideBuy, Quantity: 2, Status: "Filled", AvgFillPrice: &fill}}
	refresher := &countingRefresher{}
	o := NewOrchestrator(rest, refresher, 10, testLogger())

	order, err := o.Submit(context.Background(), types.OrderSideBuy, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(41), order.OrderID)

	req := rest.lastReq.(orderRequest)
	assert.Equal(t, types.OrderSideBuy, req.Side)
	assert.Equal(t, 2, req.Quantity)

	last, ok := o.LastOrder()
	assert.True(t, ok)
	assert.Equal(t, int64(41), last.OrderID)
	assert.Equal(t, int32(1), refresher.count.Load(), "exactly one refresh per completed order")
	assert.False(t, o.Busy())
}

func TestOrchestrator_Submit_InvalidQuantity(t *testing.T) {
	rest := &orderRest{}
	o := NewOrchestrator(rest, nil, 10, testLogger())

	for _, qty := range []int{0, -1, 11} {
		_, err := o.Submit(context.Background(), types.OrderSideBuy, qty)
		assert.Error(t, err, "quantity %d", qty)
		var cerr *errs.ClientError
		require.ErrorAs(t, err, &cerr)
		assert.Equal(t, errs.ErrorCategoryOrder, cerr.Category)
	}
	assert.Equal(t, 0, rest.callCount(), "invalid quantities must be rejected locally")
}

func TestOrchestrator_Submit_InvalidSide(t *testing.T) {
	rest := &orderRest{}
	o := NewOrchestrator(rest, nil, 10, testLogger())

	_, err := o.Submit(context.Background(), types.OrderSide("HOLD"), 1)
	assert.Error(t, err)
	assert.Equal(t, 0, rest.callCount())
}

// TestOrchestrator_SingleInFlight verifies a second submission while one is
// outstanding fails locally without a network call
func TestOrchestrator_SingleInFlight(t *testing.T) {
	rest := &orderRest{
		order:   types.Order{OrderID: 1, Status: "Filled"},
		block:   make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	o := NewOrchestrator(rest, &countingRefresher{}, 10, testLogger())

	errc := make(chan error, 1)
	go func() {
		_, err := o.Submit(context.Background(), types.OrderSideBuy, 1)
		errc <- err
	}()
	<-rest.started
	assert.True(t, o.Busy())

	_, err := o.Submit(context.Background(), types.OrderSideSell, 1)
	assert.Error(t, err)
	assert.Equal(t, 1, rest.callCount(), "rejected submission must not reach the server")

	close(rest.block)
	require.NoError(t, <-errc)
	assert.False(t, o.Busy())

	// The guard releases once the first completes
	_, err = o.Submit(context.Background(), types.OrderSideSell, 1)
	assert.NoError(t, err)
}

// TestOrchestrator_FailureKeepsLastOrder verifies a failed submission leaves
// the previous completed order visible and triggers no refresh
func TestOrchestrator_FailureKeepsLastOrder(t *testing.T) {
	rest := &orderRest{order: types.Order{OrderID: 7, Status: "Filled"}}
	refresher := &countingRefresher{}
	o := NewOrchestrator(rest, refresher, 10, testLogger())

	_, err := o.Submit(context.Background(), types.OrderSideBuy, 1)
	require.NoError(t, err)

	rest.mu.Lock()
	rest.err = errs.NewRequestFailed("gateway", "/order", 500)
	rest.mu.Unlock()

	_, err = o.Submit(context.Background(), types.OrderSideSell, 1)
	assert.Error(t, err)

	last, ok := o.LastOrder()
	assert.True(t, ok)
	assert.Equal(t, int64(7), last.OrderID, "failed order must not overwrite the last outcome")
	assert.Equal(t, int32(1), refresher.count.Load(), "failed order must not refresh")
	assert.False(t, o.Busy(), "guard must release after a failure")
}

func TestOrchestrator_ClosePosition(t *testing.T) {
	rest := &orderRest{order: types.Order{OrderID: 9, Status: "Filled"}}
	refresher := &countingRefresher{}
	o := NewOrchestrator(rest, refresher, 10, testLogger())

	order, err := o.ClosePosition(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(9), order.OrderID)
	assert.Nil(t, rest.lastReq, "close sends no body")
	assert.Equal(t, int32(1), refresher.count.Load())
}

func TestOrchestrator_LastOrder_Empty(t *testing.T) {
	o := NewOrchestrator(&orderRest{}, nil, 10, testLogger())
	_, ok := o.LastOrder()
	assert.False(t, ok)
}
