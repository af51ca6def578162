package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduleNextDaily(t *testing.T) {
	s, err := ParseCron("0 4 * * *")
	require.NoError(t, err)

	next, err := s.Next(time.Date(2025, 1, 1, 3, 59, 30, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 1, 4, 0, 0, 0, time.UTC), next)

	next, err = s.Next(time.Date(2025, 1, 1, 4, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 2, 4, 0, 0, 0, time.UTC), next)
}

func TestScheduleStepsRangesLists(t *testing.T) {
	s, err := ParseCron("*/15 9-17 * * 1-5")
	require.NoError(t, err)

	// Saturday 2025-01-04 rolls to Monday 09:00.
	next, err := s.Next(time.Date(2025, 1, 4, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC), next)

	next, err = s.Next(time.Date(2025, 1, 6, 9, 1, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 6, 9, 15, 0, 0, time.UTC), next)

	l, err := ParseCron("0 3 1,15 * *")
	require.NoError(t, err)
	assert.True(t, l.Matches(time.Date(2025, 2, 15, 3, 0, 0, 0, time.UTC)))
	assert.False(t, l.Matches(time.Date(2025, 2, 14, 3, 0, 0, 0, time.UTC)))
}

func TestParseCronErrors(t *testing.T) {
	for _, expr := range []string{
		"",
		"0 4 * *",
		"60 * * * *",
		"* 24 * * *",
		"* * 0 * *",
		"*/0 * * * *",
		"5-1 * * * *",
		"a * * * *",
	} {
		_, err := ParseCron(expr)
		assert.Error(t, err, "expected error for %q", expr)
	}
}
