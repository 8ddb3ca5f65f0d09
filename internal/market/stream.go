// Package market maintains the live candle view of the traded instrument:
// an in-memory ordered series seeded from a one-shot historical snapshot and
// kept current by an unbounded websocket stream.
package market

import (
	"bytes"
	"context"
	"encoding/json"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	errs "github.com/cyrus123live/btc-trading/internal/errors"
	"github.com/cyrus123live/btc-trading/internal/monitoring"
	"github.com/cyrus123live/btc-trading/pkg/types"
)

const component = "candle-sync"

// State is the synchronizer lifecycle state
type State int32

const (
	StateIdle State = iota
	StateSeeding
	StateLive
	StateReconnecting
	StateClosed
)

// String returns the state name
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSeeding:
		return "seeding"
	case StateLive:
		return "live"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

type historyResponse struct {
	Candles []types.Candle `json:"candles"`
}

// historyClient is the slice of the gateway the synchronizer needs
type historyClient interface {
	Get(ctx context.Context, path string, params map[string]string, out any) error
}

// tokenSource supplies the credential attached to the stream connection
type tokenSource interface {
	Token() (string, bool)
}

// Handlers are the two output callbacks exposed to the rendering
// collaborator. Exactly one of them fires per event: OnSnapshot replaces the
// whole chart, OnUpdate applies a single merged candle.
type Handlers struct {
	OnSnapshot func([]types.Candle)
	OnUpdate   func(types.Candle)
}

// Config tunes the synchronizer
type Config struct {
	WebSocketURL      string
	Duration          string // history window, e.g. "1 D"
	BarSize           string // e.g. "1 min"
	SnapshotTimeout   time.Duration
	PingInterval      time.Duration
	ReconnectDelay    time.Duration
	MaxReconnectDelay time.Duration

	// OnDiscarded observes frames the synchronizer swallowed, either
	// malformed or out of order. Optional, used by tests; the frames are
	// never surfaced anywhere else.
	OnDiscarded func(frame []byte, reason error)
}

// Synchronizer reconciles the historical snapshot with the streaming feed
// into one ordered series.
type Synchronizer struct {
	cfg      Config
	rest     historyClient
	tokens   tokenSource
	series   *Series
	handlers Handlers
	log      *logrus.Entry

	state   atomic.Int32
	ctx     context.Context
	cancel  context.CancelFunc
	started atomic.Bool
	done    chan struct{}

	connMu  sync.Mutex
	writeMu sync.Mutex
	conn    *websocket.Conn
}

// NewSynchronizer creates a synchronizer in the Idle state
func NewSynchronizer(cfg Config, rest historyClient, tokens tokenSource, handlers Handlers, log *logrus.Entry) *Synchronizer {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 25 * time.Second
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = time.Second
	}
	if cfg.MaxReconnectDelay <= 0 {
		cfg.MaxReconnectDelay = 30 * time.Second
	}
	if cfg.Duration == "" {
		cfg.Duration = "1 D"
	}
	if cfg.BarSize == "" {
		cfg.BarSize = "1 min"
	}

	s := &Synchronizer{
		cfg:      cfg,
		rest:     rest,
		tokens:   tokens,
		series:   NewSeries(),
		handlers: handlers,
		log:      log,
		done:     make(chan struct{}),
	}
	s.state.Store(int32(StateIdle))
	return s
}

// State returns the current lifecycle state
func (s *Synchronizer) State() State {
	return State(s.state.Load())
}

// Series exposes the reconciled candle series
func (s *Synchronizer) Series() *Series {
	return s.series
}

// Start begins seeding and then streaming. It returns immediately; snapshot
// fetch failures are retried with backoff rather than surfaced, so a stalled
// or failing server leaves the chart empty, never crashes the client.
func (s *Synchronizer) Start(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return errs.New(errs.ErrorCategoryConfiguration, component, "start", "synchronizer already started")
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	go s.run()
	return nil
}

// Close tears the synchronizer down: all timers are canceled and any open
// connection is closed. Terminal and idempotent.
func (s *Synchronizer) Close() {
	if State(s.state.Swap(int32(StateClosed))) == StateClosed {
		return
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.closeConn()
	if s.started.Load() {
		<-s.done
	}
	monitoring.SetStreamConnected(false)
}

func (s *Synchronizer) run() {
	defer close(s.done)

	if !s.seed() {
		return
	}
	s.stream()
}

// seed fetches and applies the historical snapshot, retrying with backoff.
// The stream is not dialed before a snapshot has been fully applied, which
// is what guarantees snapshot application precedes any stream message.
func (s *Synchronizer) seed() bool {
	s.transition(StateIdle, StateSeeding)

	delay := s.cfg.ReconnectDelay
	for {
		candles, err := s.fetchSnapshot()
		if err == nil {
			s.series.ReplaceAll(candles)
			if s.handlers.OnSnapshot != nil {
				s.handlers.OnSnapshot(s.series.Snapshot())
			}
			s.log.WithField("bars", s.series.Len()).Info("historical snapshot applied")
			return true
		}
		if errs.IsSessionExpired(err) {
			// Session is gone; the app layer tears us down
			s.log.Debug("seeding aborted, session expired")
			return false
		}
		s.log.WithError(err).Warn("snapshot fetch failed, retrying")

		select {
		case <-s.ctx.Done():
			return false
		case <-time.After(delay):
		}
		delay = nextDelay(delay, s.cfg.MaxReconnectDelay)
	}
}

func (s *Synchronizer) fetchSnapshot() ([]types.Candle, error) {
	ctx := s.ctx
	if s.cfg.SnapshotTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.SnapshotTimeout)
		defer cancel()
	}

	var resp historyResponse
	err := s.rest.Get(ctx, "/candles/history", map[string]string{
		"duration": s.cfg.Duration,
		"bar_size": s.cfg.BarSize,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Candles, nil
}

// stream keeps one websocket connection alive, reconnecting with capped
// exponential backoff. The snapshot is never refetched: the series simply
// resumes merging updates and any gap heals with the next bar.
func (s *Synchronizer) stream() {
	delay := s.cfg.ReconnectDelay

	for {
		if s.ctx.Err() != nil || s.State() == StateClosed {
			return
		}

		conn, err := s.dial()
		if err != nil {
			s.state.CompareAndSwap(int32(StateSeeding), int32(StateReconnecting))
			s.state.CompareAndSwap(int32(StateLive), int32(StateReconnecting))
			s.log.WithError(err).WithField("retry_in", delay).Warn("stream connect failed")
			select {
			case <-s.ctx.Done():
				return
			case <-time.After(delay):
			}
			delay = nextDelay(delay, s.cfg.MaxReconnectDelay)
			continue
		}

		s.setConn(conn)
		if !s.transitionToLive() {
			s.closeConn()
			return
		}
		delay = s.cfg.ReconnectDelay
		monitoring.SetStreamConnected(true)
		s.log.Info("candle stream connected")

		pingStop := make(chan struct{})
		go s.pingLoop(conn, pingStop)

		s.readLoop(conn)

		close(pingStop)
		s.closeConn()
		monitoring.SetStreamConnected(false)

		if s.ctx.Err() != nil || s.State() == StateClosed {
			return
		}
		s.state.Store(int32(StateReconnecting))
		monitoring.RecordStreamReconnect()
		s.log.Info("candle stream lost, reconnecting")
	}
}

func (s *Synchronizer) dial() (*websocket.Conn, error) {
	token, ok := s.tokens.Token()
	if !ok {
		return nil, errs.NewSessionExpired(component, "dial")
	}

	// The transport is message-based, so the credential travels as a
	// connection parameter rather than a header.
	u, err := url.Parse(s.cfg.WebSocketURL)
	if err != nil {
		return nil, errs.Wrap(err, errs.ErrorCategoryConfiguration, component, "parse ws url")
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(s.ctx, u.String(), nil)
	if err != nil {
		return nil, errs.NewNetworkError(component, "dial", err)
	}
	return conn, nil
}

// pingLoop sends the literal keep-alive token while the connection is open,
// so the remote side's idle timeout never fires.
func (s *Synchronizer) pingLoop(conn *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.writeMu.Lock()
			err := conn.WriteMessage(websocket.TextMessage, []byte("ping"))
			s.writeMu.Unlock()
			if err != nil {
				s.log.WithError(err).Debug("keep-alive send failed")
				return
			}
		}
	}
}

func (s *Synchronizer) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if s.ctx.Err() == nil && s.State() != StateClosed {
				s.log.WithError(err).Debug("stream read error")
			}
			return
		}
		s.handleFrame(data)
	}
}

// handleFrame merges one inbound frame. A poison frame must never bring the
// synchronizer down: malformed payloads and out-of-order candles are
// discarded, observable only through the diagnostic hook and metrics.
func (s *Synchronizer) handleFrame(data []byte) {
	frame := bytes.TrimSpace(data)
	if len(frame) == 0 {
		return
	}

	// Liveness acknowledgments from the server carry no state
	switch string(frame) {
	case "heartbeat", "pong":
		return
	}

	var candle types.Candle
	if err := json.Unmarshal(frame, &candle); err != nil {
		perr := errs.NewMalformedPayload(component, err)
		monitoring.RecordMalformedFrame()
		s.discard(frame, perr)
		s.log.WithError(err).Debug("discarding malformed frame")
		return
	}

	switch s.series.Apply(candle) {
	case ApplyDropped:
		monitoring.RecordDroppedCandle()
		s.discard(frame, errs.New(errs.ErrorCategoryPayload, component, "merge", "out-of-order candle"))
	default:
		monitoring.SetLastClose(candle.Close)
		if s.handlers.OnUpdate != nil {
			s.handlers.OnUpdate(candle)
		}
	}
}

func (s *Synchronizer) discard(frame []byte, reason error) {
	if s.cfg.OnDiscarded != nil {
		s.cfg.OnDiscarded(frame, reason)
	}
}

func (s *Synchronizer) setConn(conn *websocket.Conn) {
	s.connMu.Lock()
	s.conn = conn
	s.connMu.Unlock()
}

func (s *Synchronizer) closeConn() {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.conn == nil {
		return
	}
	s.writeMu.Lock()
	s.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	s.writeMu.Unlock()
	s.conn.Close()
	s.conn = nil
}

func (s *Synchronizer) transition(from, to State) bool {
	return s.state.CompareAndSwap(int32(from), int32(to))
}

func (s *Synchronizer) transitionToLive() bool {
	if s.transition(StateSeeding, StateLive) {
		return true
	}
	return s.transition(StateReconnecting, StateLive)
}

func nextDelay(current, max time.Duration) time.Duration {
	next := current * 2
	if next > max {
		next = max
	}
	return next
}
