package recurrence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestParseFrequency(t *testing.T) {
	for _, valid := range []string{"daily", "weekly", "monthly", "yearly"} {
		f, err := ParseFrequency(valid)
		require.NoError(t, err)
		assert.Equal(t, Frequency(valid), f)
	}

	for _, invalid := range []string{"", "DAILY", "fortnightly", "month"} {
		_, err := ParseFrequency(invalid)
		assert.Error(t, err, "frequency %q should be rejected", invalid)
	}
}

func TestNext(t *testing.T) {
	tests := []struct {
		name     string
		anchor   time.Time
		freq     Frequency
		interval int32
		want     time.Time
	}{
		{
			name:     "daily",
			anchor:   date(2024, time.March, 10),
			freq:     Daily,
			interval: 1,
			want:     date(2024, time.March, 11),
		},
		{
			name:     "daily interval 3",
			anchor:   date(2024, time.March, 10),
			freq:     Daily,
			interval: 3,
			want:     date(2024, time.March, 13),
		},
		{
			name:     "weekly",
			anchor:   date(2024, time.March, 10),
			freq:     Weekly,
			interval: 1,
			want:     date(2024, time.March, 17),
		},
		{
			name:     "biweekly",
			anchor:   date(2024, time.March, 10),
			freq:     Weekly,
			interval: 2,
			want:     date(2024, time.March, 24),
		},
		{
			name:     "monthly simple",
			anchor:   date(2024, time.April, 15),
			freq:     Monthly,
			interval: 1,
			want:     date(2024, time.May, 15),
		},
		{
			name:     "monthly jan 31 clamps to feb 29 in leap year",
			anchor:   date(2024, time.January, 31),
			freq:     Monthly,
			interval: 1,
			want:     date(2024, time.February, 29),
		},
		{
			name:     "monthly jan 31 clamps to feb 28 in common year",
			anchor:   date(2025, time.January, 31),
			freq:     Monthly,
			interval: 1,
			want:     date(2025, time.February, 28),
		},
		{
			name:     "clamped anchor drifts, feb 29 plus month is mar 29",
			anchor:   date(2024, time.February, 29),
			freq:     Monthly,
			interval: 1,
			want:     date(2024, time.March, 29),
		},
		{
			name:     "monthly may 31 clamps to jun 30",
			anchor:   date(2024, time.May, 31),
			freq:     Monthly,
			interval: 1,
			want:     date(2024, time.June, 30),
		},
		{
			name:     "quarterly crosses year boundary",
			anchor:   date(2024, time.November, 30),
			freq:     Monthly,
			interval: 3,
			want:     date(2025, time.February, 28),
		},
		{
			name:     "yearly",
			anchor:   date(2024, time.June, 1),
			freq:     Yearly,
			interval: 1,
			want:     date(2025, time.June, 1),
		},
		{
			name:     "yearly feb 29 clamps to feb 28",
			anchor:   date(2024, time.February, 29),
			freq:     Yearly,
			interval: 1,
			want:     date(2025, time.February, 28),
		},
		{
			name:     "yearly feb 29 to next leap year keeps feb 29",
			anchor:   date(2024, time.February, 29),
			freq:     Yearly,
			interval: 4,
			want:     date(2028, time.February, 29),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Next(tt.anchor, tt.freq, tt.interval)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "want %s, got %s", tt.want, got)
		})
	}
}

func TestNext_UnknownFrequency(t *testing.T) {
	_, err := Next(date(2024, time.January, 1), Frequency("hourly"), 1)
	assert.Error(t, err)
}

func TestNext_PreservesTimeOfDay(t *testing.T) {
	anchor := time.Date(2024, time.January, 31, 9, 30, 0, 0, time.UTC)
	got, err := Next(anchor, Monthly, 1)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, time.February, 29, 9, 30, 0, 0, time.UTC), got)
}

func TestNextAfter(t *testing.T) {
	now := date(2024, time.March, 15)

	t.Run("future anchor returned unchanged", func(t *testing.T) {
		anchor := date(2024, time.April, 1)
		got, err := NextAfter(anchor, Monthly, 1, now)
		require.NoError(t, err)
		assert.True(t, anchor.Equal(got))
	})

	t.Run("anchor equal to now steps forward", func(t *testing.T) {
		got, err := NextAfter(now, Daily, 1, now)
		require.NoError(t, err)
		assert.True(t, got.After(now))
		assert.True(t, date(2024, time.March, 16).Equal(got))
	})

	t.Run("stale anchor catches up past now", func(t *testing.T) {
		anchor := date(2023, time.June, 1)
		got, err := NextAfter(anchor, Monthly, 1, now)
		require.NoError(t, err)
		assert.True(t, date(2024, time.April, 1).Equal(got))
	})

	t.Run("weekly catch up lands on same weekday", func(t *testing.T) {
		anchor := date(2024, time.January, 1) // a Monday
		got, err := NextAfter(anchor, Weekly, 1, now)
		require.NoError(t, err)
		assert.True(t, got.After(now))
		assert.Equal(t, time.Monday, got.Weekday())
		assert.True(t, date(2024, time.March, 18).Equal(got))
	})

	t.Run("month end anchor drifts through short month", func(t *testing.T) {
		// Jan 31 -> Feb 29 -> Mar 29: first occurrence after Mar 15.
		got, err := NextAfter(date(2024, time.January, 31), Monthly, 1, now)
		require.NoError(t, err)
		assert.True(t, date(2024, time.March, 29).Equal(got))
	})

	t.Run("interval below one rejected before looping", func(t *testing.T) {
		_, err := NextAfter(date(2024, time.January, 1), Daily, 0, now)
		assert.Error(t, err)

		_, err = NextAfter(date(2024, time.January, 1), Daily, -5, now)
		assert.Error(t, err)
	})

	t.Run("unknown frequency rejected before looping", func(t *testing.T) {
		_, err := NextAfter(date(2024, time.January, 1), Frequency("biweekly"), 1, now)
		assert.Error(t, err)
	})
}

func TestNextAfter_AlwaysStrictlyFuture(t *testing.T) {
	now := date(2024, time.March, 15)
	anchors := []time.Time{
		date(2020, time.January, 31),
		date(2024, time.March, 14),
		date(2024, time.March, 15),
	}
	freqs := []Frequency{Daily, Weekly, Monthly, Yearly}

	for _, anchor := range anchors {
		for _, freq := range freqs {
			got, err := NextAfter(anchor, freq, 1, now)
			require.NoError(t, err)
			assert.True(t, got.After(now), "anchor %s freq %s produced %s, not after %s", anchor, freq, got, now)
		}
	}
}
