package book

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextCutoff_BeforeCutoffToday(t *testing.T) {
	now := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	cutoff := nextCutoff(now)
	assert.Equal(t, time.Date(2026, 8, 1, 16, 0, 0, 0, time.UTC), cutoff)
}

func TestNextCutoff_AtOrAfterCutoffRollsToTomorrow(t *testing.T) {
	now := time.Date(2026, 8, 1, 16, 0, 0, 0, time.UTC)
	cutoff := nextCutoff(now)
	assert.Equal(t, time.Date(2026, 8, 2, 16, 0, 0, 0, time.UTC), cutoff)

	later := time.Date(2026, 8, 1, 23, 59, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 8, 2, 16, 0, 0, 0, time.UTC), nextCutoff(later))
}

func TestSweeper_RetiresOnlyGoodForDayOrders(t *testing.T) {
	ob := New()
	defer ob.Close()

	require.Empty(t, ob.AddOrder(NewOrder(GoodForDay, 1, Buy, 100, 10)))
	require.Empty(t, ob.AddOrder(NewOrder(GoodTillCancel, 2, Buy, 99, 10)))
	require.Equal(t, 2, ob.Size())

	ob.sweeper.sweep()

	assert.Equal(t, 1, ob.Size())
	_, stillResting := ob.index[2]
	assert.True(t, stillResting)
	_, swept := ob.index[1]
	assert.False(t, swept)
}

func TestSweeper_StopJoinsGoroutine(t *testing.T) {
	ob := New()
	err := ob.Close()
	assert.NoError(t, err)
}
