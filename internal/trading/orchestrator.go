// Package trading submits order intents and tracks their local lifecycle.
// At most one submission is ever in flight; rapid repeated input is rejected
// at this boundary instead of queued, so a nervous operator cannot place
// duplicate orders.
package trading

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	errs "github.com/cyrus123live/btc-trading/internal/errors"
	"github.com/cyrus123live/btc-trading/internal/monitoring"
	"github.com/cyrus123live/btc-trading/pkg/types"
)

const component = "trading"

type restClient interface {
	Post(ctx context.Context, path string, body, out any) error
}

// Refresher is poked after a completed trade so the position view catches up
// faster than the next fixed poll tick.
type Refresher interface {
	Refresh()
}

type orderRequest struct {
	Side     types.OrderSide `json:"side"`
	Quantity int             `json:"quantity"`
}

// Orchestrator submits orders and retains the most recent server outcome
type Orchestrator struct {
	rest      restClient
	refresher Refresher
	maxQty    int
	log       *logrus.Entry

	inFlight atomic.Bool

	mu        sync.RWMutex
	lastOrder *types.Order
}

// NewOrchestrator creates an orchestrator. maxQty bounds per-order quantity.
func NewOrchestrator(rest restClient, refresher Refresher, maxQty int, log *logrus.Entry) *Orchestrator {
	return &Orchestrator{
		rest:      rest,
		refresher: refresher,
		maxQty:    maxQty,
		log:       log,
	}
}

// Submit places a directional market order. While a submission is
// outstanding, further submissions fail locally without a network call.
func (o *Orchestrator) Submit(ctx context.Context, side types.OrderSide, quantity int) (*types.Order, error) {
	if side != types.OrderSideBuy && side != types.OrderSideSell {
		return nil, errs.NewOrderRejected(component, fmt.Sprintf("invalid side %q", side))
	}
	if quantity < 1 || quantity > o.maxQty {
		return nil, errs.NewOrderRejected(component,
			fmt.Sprintf("quantity %d outside 1..%d", quantity, o.maxQty))
	}

	return o.execute(ctx, string(side), func(ctx context.Context) (*types.Order, error) {
		var order types.Order
		err := o.rest.Post(ctx, "/order", orderRequest{Side: side, Quantity: quantity}, &order)
		if err != nil {
			return nil, err
		}
		return &order, nil
	})
}

// ClosePosition asks the server to flatten the current position
func (o *Orchestrator) ClosePosition(ctx context.Context) (*types.Order, error) {
	return o.execute(ctx, "CLOSE", func(ctx context.Context) (*types.Order, error) {
		var order types.Order
		if err := o.rest.Post(ctx, "/close-position", nil, &order); err != nil {
			return nil, err
		}
		return &order, nil
	})
}

// LastOrder returns the most recent completed order, if any. Failed
// submissions never overwrite it.
func (o *Orchestrator) LastOrder() (types.Order, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.lastOrder == nil {
		return types.Order{}, false
	}
	return *o.lastOrder, true
}

// Busy reports whether a submission is currently outstanding
func (o *Orchestrator) Busy() bool {
	return o.inFlight.Load()
}

func (o *Orchestrator) execute(ctx context.Context, label string, call func(context.Context) (*types.Order, error)) (*types.Order, error) {
	if !o.inFlight.CompareAndSwap(false, true) {
		return nil, errs.NewOrderRejected(component, "another order is in flight")
	}
	defer o.inFlight.Store(false)

	order, err := call(ctx)
	if err != nil {
		monitoring.RecordOrder(label, "failed")
		o.log.WithError(err).Warn("order submission failed")
		return nil, err
	}

	o.mu.Lock()
	o.lastOrder = order
	o.mu.Unlock()

	monitoring.RecordOrder(label, order.Status)
	o.log.WithFields(logrus.Fields{
		"order_id": order.OrderID,
		"side":     order.Side,
		"quantity": order.Quantity,
		"status":   order.Status,
	}).Info("order completed")

	// A fill changes position state faster than the next poll tick
	if o.refresher != nil {
		o.refresher.Refresh()
	}
	return order, nil
}
