package market

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cyrus123live/btc-trading/pkg/types"
)

func candle(ts int64, close float64) types.Candle {
	return types.Candle{
		Time:  ts,
		Open:  close - 1,
		High:  close + 1,
		Low:   close - 2,
		Close: close,
	}
}

func times(candles []types.Candle) []int64 {
	out := make([]int64, len(candles))
	for i, c := range candles {
		out[i] = c.Time
	}
	return out
}

func TestSeries_Apply_Append(t *testing.T) {
	s := NewSeries()
	s.ReplaceAll([]types.Candle{candle(100, 10), candle(160, 11)})

	res := s.Apply(candle(220, 12))
	assert.Equal(t, ApplyAppended, res)
	assert.Equal(t, []int64{100, 160, 220}, times(s.Snapshot()))
}

// TestSeries_Apply_ReplaceLast covers the still-forming bar: an update whose
// time matches the last entry rewrites it in place
func TestSeries_Apply_ReplaceLast(t *testing.T) {
	s := NewSeries()
	s.ReplaceAll([]types.Candle{candle(100, 10), candle(160, 11)})

	res := s.Apply(candle(160, 99))
	assert.Equal(t, ApplyReplaced, res)
	assert.Equal(t, 2, s.Len())

	last, ok := s.Last()
	assert.True(t, ok)
	assert.Equal(t, 99.0, last.Close)
}

func TestSeries_Apply_DropsOutOfOrder(t *testing.T) {
	s := NewSeries()
	s.ReplaceAll([]types.Candle{candle(100, 10), candle(160, 11)})

	res := s.Apply(candle(100, 50))
	assert.Equal(t, ApplyDropped, res)
	// The series is untouched by a dropped candle
	assert.Equal(t, []int64{100, 160}, times(s.Snapshot()))
	last, _ := s.Last()
	assert.Equal(t, 11.0, last.Close)
}

func TestSeries_Apply_EmptySeries(t *testing.T) {
	s := NewSeries()

	assert.Equal(t, ApplyAppended, s.Apply(candle(100, 10)))
	assert.Equal(t, 1, s.Len())
}

// TestSeries_Apply_ReplaceIdempotent verifies repeated updates for the same
// bar leave exactly one entry carrying the latest values
func TestSeries_Apply_ReplaceIdempotent(t *testing.T) {
	s := NewSeries()
	s.Apply(candle(100, 10))

	for i, close := range []float64{11, 12, 13} {
		res := s.Apply(candle(100, close))
		assert.Equal(t, ApplyReplaced, res, "update %d", i)
	}

	assert.Equal(t, 1, s.Len())
	last, _ := s.Last()
	assert.Equal(t, 13.0, last.Close)
}

func TestSeries_Ordering(t *testing.T) {
	s := NewSeries()
	s.ReplaceAll([]types.Candle{candle(100, 1)})

	s.Apply(candle(160, 2))
	s.Apply(candle(160, 3))
	s.Apply(candle(40, 4)) // dropped
	s.Apply(candle(220, 5))

	snap := s.Snapshot()
	assert.Equal(t, []int64{100, 160, 220}, times(snap))
	for i := 1; i < len(snap); i++ {
		assert.Greater(t, snap[i].Time, snap[i-1].Time, "series must stay strictly ascending")
	}
}

// TestSeries_ReplaceAll_Normalizes covers a snapshot arriving unsorted and
// with duplicate keys, which the load normalizes instead of trusting
func TestSeries_ReplaceAll_Normalizes(t *testing.T) {
	s := NewSeries()
	s.ReplaceAll([]types.Candle{
		candle(160, 11),
		candle(100, 10),
		candle(160, 12),
		candle(220, 13),
	})

	snap := s.Snapshot()
	assert.Equal(t, []int64{100, 160, 220}, times(snap))
	assert.Equal(t, 12.0, snap[1].Close, "later duplicate wins")
}

func TestSeries_ReplaceAll_DropsPreviousContents(t *testing.T) {
	s := NewSeries()
	s.ReplaceAll([]types.Candle{candle(100, 10), candle(160, 11)})
	s.ReplaceAll([]types.Candle{candle(500, 20)})

	assert.Equal(t, []int64{500}, times(s.Snapshot()))
}

func TestSeries_SnapshotIsCopy(t *testing.T) {
	s := NewSeries()
	s.ReplaceAll([]types.Candle{candle(100, 10)})

	snap := s.Snapshot()
	snap[0].Close = 999

	last, _ := s.Last()
	assert.Equal(t, 10.0, last.Close)
}

func TestSeries_Last_Empty(t *testing.T) {
	_, ok := NewSeries().Last()
	assert.False(t, ok)
}
