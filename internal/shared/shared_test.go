package shared

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMonthRangeBoundaries(t *testing.T) {
	from, to, err := MonthRange(2024, 12)
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC), from)
	require.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), to)

	from, to, err = MonthRange(2024, 2)
	require.NoError(t, err)
	require.Equal(t, 29, int(to.Sub(from).Hours()/24))
}

func TestMonthRangeRejectsInvalid(t *testing.T) {
	for _, tc := range []struct{ year, month int }{{2024, 0}, {2024, 13}, {0, 5}, {10000, 1}} {
		_, _, err := MonthRange(tc.year, tc.month)
		require.ErrorIs(t, err, ErrInvalidArgument)
	}
}

func TestParsePeriodAndDate(t *testing.T) {
	y, m, err := ParsePeriod("2025-03")
	require.NoError(t, err)
	require.Equal(t, 2025, y)
	require.Equal(t, 3, m)

	_, _, err = ParsePeriod("March")
	require.ErrorIs(t, err, ErrInvalidArgument)

	_, err = ParseDate("2025-02-30")
	require.ErrorIs(t, err, ErrInvalidArgument)

	d, err := ParseDate("2025-02-28")
	require.NoError(t, err)
	require.Equal(t, time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC), d)
}

func TestCalendarDateDropsClock(t *testing.T) {
	in := time.Date(2025, 7, 4, 23, 59, 1, 5, time.UTC)
	require.Equal(t, time.Date(2025, 7, 4, 0, 0, 0, 0, time.UTC), CalendarDate(in))
}

func TestKeyedMutexSerialisesPerKey(t *testing.T) {
	km := NewKeyedMutex()
	key := LedgerLockKey(1, 2)
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := km.Lock(key)
			defer unlock()
			v := counter
			time.Sleep(time.Microsecond)
			counter = v + 1
		}()
	}
	wg.Wait()
	require.Equal(t, 50, counter)
	require.Equal(t, 0, km.Len())
}
