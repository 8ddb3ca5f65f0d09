package market

import (
	"sort"
	"sync"

	"github.com/cyrus123live/btc-trading/pkg/types"
)

// ApplyResult describes what an incoming candle did to the series
type ApplyResult int

const (
	// ApplyAppended means the candle opened a new bar at the end
	ApplyAppended ApplyResult = iota
	// ApplyReplaced means the candle updated the still-forming last bar
	ApplyReplaced
	// ApplyDropped means the candle was out of order and discarded
	ApplyDropped
)

// Series is the one in-memory candle sequence, sorted ascending by time with
// unique keys. Arrival order over the stream is not trusted; the merge rule
// is enforced here on every update.
type Series struct {
	mu      sync.RWMutex
	candles []types.Candle
}

// NewSeries creates an empty series
func NewSeries() *Series {
	return &Series{}
}

// ReplaceAll loads the historical snapshot wholesale, dropping whatever the
// series held before. The input is normalized defensively: sorted by time,
// duplicate keys collapsed keeping the later entry.
func (s *Series) ReplaceAll(candles []types.Candle) {
	normalized := make([]types.Candle, len(candles))
	copy(normalized, candles)
	sort.SliceStable(normalized, func(i, j int) bool {
		return normalized[i].Time < normalized[j].Time
	})

	deduped := normalized[:0]
	for _, c := range normalized {
		if n := len(deduped); n > 0 && deduped[n-1].Time == c.Time {
			deduped[n-1] = c
			continue
		}
		deduped = append(deduped, c)
	}

	s.mu.Lock()
	s.candles = deduped
	s.mu.Unlock()
}

// Apply merges one streamed candle into the series: a time equal to the last
// entry's replaces it in place, a greater time appends, anything at or below
// a non-last key is discarded.
func (s *Series) Apply(c types.Candle) ApplyResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.candles)
	if n == 0 {
		s.candles = append(s.candles, c)
		return ApplyAppended
	}

	last := s.candles[n-1]
	switch {
	case c.Time > last.Time:
		s.candles = append(s.candles, c)
		return ApplyAppended
	case c.Time == last.Time:
		s.candles[n-1] = c
		return ApplyReplaced
	default:
		return ApplyDropped
	}
}

// Snapshot returns a copy of the series
func (s *Series) Snapshot() []types.Candle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.Candle, len(s.candles))
	copy(out, s.candles)
	return out
}

// Last returns the most recent candle, if any
func (s *Series) Last() (types.Candle, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.candles) == 0 {
		return types.Candle{}, false
	}
	return s.candles[len(s.candles)-1], true
}

// Len returns the number of bars held
func (s *Series) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.candles)
}
