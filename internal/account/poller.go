// Package account keeps the authoritative position and account snapshot
// fresh by polling the server on a fixed interval, with on-demand refreshes
// after trade completions.
package account

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cyrus123live/btc-trading/internal/monitoring"
	"github.com/cyrus123live/btc-trading/pkg/types"
)

type restClient interface {
	Get(ctx context.Context, path string, params map[string]string, out any) error
}

type positionsResponse struct {
	Positions []types.Position `json:"positions"`
}

// Snapshot is one authoritative read of trading state, replaced wholesale
// on every successful poll.
type Snapshot struct {
	Positions []types.Position
	Account   types.AccountSummary
	Updated   time.Time
}

// Primary returns the first open position, if any. The client trades a
// single instrument, so the server reports at most one.
func (s Snapshot) Primary() (types.Position, bool) {
	for _, p := range s.Positions {
		if !p.IsFlat() {
			return p, true
		}
	}
	return types.Position{}, false
}

// Poller fetches position and account state on a fixed interval plus
// on-demand triggers. A failed tick keeps the previous snapshot and simply
// waits for the next interval; stale-but-valid beats flashing to empty.
type Poller struct {
	rest     restClient
	interval time.Duration
	log      *logrus.Entry
	onUpdate func(Snapshot)

	refresh chan struct{}
	started atomic.Bool
	cancel  context.CancelFunc
	done    chan struct{}

	mu   sync.RWMutex
	snap Snapshot
	has  bool
}

// NewPoller creates a poller. onUpdate is invoked with each fresh snapshot;
// it is never invoked for a failed poll.
func NewPoller(rest restClient, interval time.Duration, onUpdate func(Snapshot), log *logrus.Entry) *Poller {
	return &Poller{
		rest:     rest,
		interval: interval,
		log:      log,
		onUpdate: onUpdate,
		refresh:  make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// Start launches the polling loop, beginning with an immediate poll
func (p *Poller) Start(ctx context.Context) {
	if !p.started.CompareAndSwap(false, true) {
		return
	}
	ctx, p.cancel = context.WithCancel(ctx)
	go p.loop(ctx)
}

// Refresh requests an out-of-band poll, typically after an order completes.
// Requests arriving while one is already pending coalesce with it.
func (p *Poller) Refresh() {
	select {
	case p.refresh <- struct{}{}:
	default:
	}
}

// Snapshot returns the latest successful snapshot, if one exists
func (p *Poller) Snapshot() (Snapshot, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snap, p.has
}

// Close stops the polling loop
func (p *Poller) Close() {
	if !p.started.Load() {
		return
	}
	p.cancel()
	<-p.done
}

func (p *Poller) loop(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.poll(ctx)
		case <-p.refresh:
			p.poll(ctx)
		}
	}
}

// poll replaces the snapshot wholesale. Both reads must succeed for the
// tick to count; a partial result is treated as a failed tick.
func (p *Poller) poll(ctx context.Context) {
	var positions positionsResponse
	if err := p.rest.Get(ctx, "/positions", nil, &positions); err != nil {
		monitoring.RecordPollFailure()
		p.log.WithError(err).Debug("position poll failed, keeping previous snapshot")
		return
	}

	var summary types.AccountSummary
	if err := p.rest.Get(ctx, "/account", nil, &summary); err != nil {
		monitoring.RecordPollFailure()
		p.log.WithError(err).Debug("account poll failed, keeping previous snapshot")
		return
	}

	snap := Snapshot{
		Positions: positions.Positions,
		Account:   summary,
		Updated:   time.Now(),
	}

	p.mu.Lock()
	p.snap = snap
	p.has = true
	p.mu.Unlock()

	if p.onUpdate != nil {
		p.onUpdate(snap)
	}
}
