package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAddedAtFormats(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.Local)
	want := time.Date(2024, 3, 9, 18, 30, 5, 0, time.Local)

	cases := []string{
		"2024-03-09 18:30:05",
		"2024-03-09T18:30:05",
		"2024-03-09T18:30:05Z",
		"2024-03-09T18:30:05+02:00",
		"2024-03-09 18:30:05+09:00",
	}
	for _, raw := range cases {
		got := ParseAddedAtAt(raw, now)
		assert.True(t, got.Equal(want), "input %q parsed as %v", raw, got)
	}
}

func TestParseAddedAtDateOnly(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.Local)
	got := ParseAddedAtAt("2024-03-09", now)
	assert.Equal(t, 2024, got.Year())
	assert.Equal(t, time.March, got.Month())
	assert.Equal(t, 9, got.Day())
}

func TestParseAddedAtFractionalSeconds(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.Local)
	got := ParseAddedAtAt("2024-03-09 18:30:05.123456+00:00", now)
	require.Equal(t, 2024, got.Year())
	assert.Equal(t, 18, got.Hour())
}

func TestParseAddedAtMalformedNeverFutureNeverPanics(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.Local)
	fallback := now.Add(-StaleFallback)

	for _, raw := range []string{"", "not a date", "////", "13-45-99", "T+Z"} {
		got := ParseAddedAtAt(raw, now)
		assert.True(t, got.Equal(fallback), "input %q should fall back, got %v", raw, got)
		assert.False(t, got.After(now))
	}
}

func TestParseAddedAtUsesWallClock(t *testing.T) {
	got := ParseAddedAt("garbage")
	assert.False(t, got.After(time.Now()))
	assert.WithinDuration(t, time.Now().Add(-StaleFallback), got, 5*time.Second)
}
