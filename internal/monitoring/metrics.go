package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Trading metrics
	ordersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trading_client_orders_total",
			Help: "Orders submitted, by side and outcome",
		},
		[]string{"side", "outcome"},
	)

	// Session metrics
	sessionExpiries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "trading_client_session_expiries_total",
			Help: "Times the server invalidated the session mid-flight",
		},
	)

	// Poller metrics
	pollFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "trading_client_poll_failures_total",
			Help: "Position poll ticks that failed and kept the stale snapshot",
		},
	)

	// Stream metrics
	streamConnected = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "trading_client_stream_connected",
			Help: "Whether the candle stream is currently connected",
		},
	)

	streamReconnects = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "trading_client_stream_reconnects_total",
			Help: "Times the candle stream connection was reopened",
		},
	)

	droppedCandles = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "trading_client_dropped_candles_total",
			Help: "Out-of-order candle updates discarded by the merge rule",
		},
	)

	malformedFrames = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "trading_client_malformed_frames_total",
			Help: "Unparseable stream frames discarded",
		},
	)

	lastClose = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "trading_client_last_close",
			Help: "Close of the most recently merged candle",
		},
	)
)

func init() {
	prometheus.MustRegister(ordersTotal)
	prometheus.MustRegister(sessionExpiries)
	prometheus.MustRegister(pollFailures)
	prometheus.MustRegister(streamConnected)
	prometheus.MustRegister(streamReconnects)
	prometheus.MustRegister(droppedCandles)
	prometheus.MustRegister(malformedFrames)
	prometheus.MustRegister(lastClose)
}

// RecordOrder records a submitted order and its outcome
func RecordOrder(side, outcome string) {
	ordersTotal.WithLabelValues(side, outcome).Inc()
}

// RecordSessionExpired records a mid-session invalidation
func RecordSessionExpired() {
	sessionExpiries.Inc()
}

// RecordPollFailure records a failed position poll tick
func RecordPollFailure() {
	pollFailures.Inc()
}

// SetStreamConnected updates the stream connectivity gauge
func SetStreamConnected(connected bool) {
	if connected {
		streamConnected.Set(1)
	} else {
		streamConnected.Set(0)
	}
}

// RecordStreamReconnect records a reopened stream connection
func RecordStreamReconnect() {
	streamReconnects.Inc()
}

// RecordDroppedCandle records an out-of-order candle discard
func RecordDroppedCandle() {
	droppedCandles.Inc()
}

// RecordMalformedFrame records an unparseable frame discard
func RecordMalformedFrame() {
	malformedFrames.Inc()
}

// SetLastClose updates the last merged close gauge
func SetLastClose(price float64) {
	lastClose.Set(price)
}
