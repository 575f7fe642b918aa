package timewindow

import (
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var seoul = time.FixedZone("KST", 9*3600)

func TestParseHM(t *testing.T) {
	tests := []struct {
		in      string
		hour    int
		minute  int
		wantErr bool
	}{
		{"10:00", 10, 0, false},
		{"00:00", 0, 0, false},
		{"23:59", 23, 59, false},
		{"24:00", 0, 0, true},
		{"12:60", 0, 0, true},
		{"12", 0, 0, true},
		{"ab:cd", 0, 0, true},
		{"10:00:00", 0, 0, true},
	}
	for _, tt := range tests {
		h, m, err := ParseHM(tt.in)
		if tt.wantErr {
			require.Error(t, err, tt.in)
			assert.True(t, eris.Is(err, ErrInvalidTimeFormat), tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.hour, h)
		assert.Equal(t, tt.minute, m)
	}
}

func TestResolveSameDay(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, seoul)
	start, end, err := Resolve("10:00", "22:00", seoul, now)
	require.NoError(t, err)

	assert.Equal(t, time.UTC, start.Location())
	assert.True(t, start.Before(end))
	assert.Less(t, end.Sub(start), 24*time.Hour)
	assert.Equal(t, 12*time.Hour, end.Sub(start))
	// 10:00 KST == 01:00 UTC.
	assert.Equal(t, 1, start.Hour())
}

func TestResolveRollsOverMidnight(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, seoul)

	start, end, err := Resolve("22:00", "02:00", seoul, now)
	require.NoError(t, err)
	assert.True(t, end.After(start))
	assert.Equal(t, 4*time.Hour, end.Sub(start))

	// Equal start and end is treated as a full-day rollover, never zero length.
	start, end, err = Resolve("10:00", "10:00", seoul, now)
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, end.Sub(start))
}

func TestResolveInvalidFormat(t *testing.T) {
	now := time.Now()
	_, _, err := Resolve("10am", "22:00", seoul, now)
	assert.True(t, eris.Is(err, ErrInvalidTimeFormat))
	_, _, err = Resolve("10:00", "25:00", seoul, now)
	assert.True(t, eris.Is(err, ErrInvalidTimeFormat))
}

func TestResolveFromNowStrict(t *testing.T) {
	now := time.Date(2026, 3, 14, 20, 30, 0, 0, seoul)

	start, end, err := ResolveFromNow("22:00", seoul, now)
	require.NoError(t, err)
	assert.Equal(t, now.UTC(), start)
	assert.Equal(t, 90*time.Minute, end.Sub(start))

	// Strict mode rejects an end in the past instead of rolling over.
	_, _, err = ResolveFromNow("09:00", seoul, now)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "later than now")

	// And an end equal to now.
	_, _, err = ResolveFromNow("20:30", seoul, now)
	require.Error(t, err)
}

func TestResolveFutureEndProperty(t *testing.T) {
	// For all valid same-day future ends the resolved window is ordered and
	// shorter than a day.
	now := time.Date(2026, 3, 14, 0, 0, 0, 0, seoul)
	for hour := 1; hour < 24; hour++ {
		end := time.Date(2026, 3, 14, hour, 0, 0, 0, seoul).Format("15:04")
		s, e, err := ResolveFromNow(end, seoul, now)
		require.NoError(t, err, end)
		assert.True(t, s.Before(e), end)
		assert.Less(t, e.Sub(s), 24*time.Hour, end)
	}
}

func TestSlotOverlaps(t *testing.T) {
	base := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	winStart := base
	winEnd := base.Add(6 * time.Hour)

	// Slot ending exactly at window start does not overlap (half-open).
	assert.False(t, SlotOverlaps(base.Add(-3*time.Hour), 3*time.Hour, winStart, winEnd))
	// Slot starting exactly at window end does not overlap.
	assert.False(t, SlotOverlaps(winEnd, 3*time.Hour, winStart, winEnd))
	// Partial overlap on either edge counts.
	assert.True(t, SlotOverlaps(base.Add(-1*time.Hour), 3*time.Hour, winStart, winEnd))
	assert.True(t, SlotOverlaps(winEnd.Add(-1*time.Hour), 3*time.Hour, winStart, winEnd))
	// Fully contained slot.
	assert.True(t, SlotOverlaps(base.Add(time.Hour), 3*time.Hour, winStart, winEnd))
}
