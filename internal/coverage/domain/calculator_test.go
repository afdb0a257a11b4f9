package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNormalizeDateTruncatesToUTCMidnight(t *testing.T) {
	loc, err := time.LoadLocation("Africa/Nairobi")
	require.NoError(t, err)

	// 01:30 Nairobi is still the previous day in UTC.
	local := time.Date(2024, time.March, 10, 1, 30, 0, 0, loc)
	assert.Equal(t, date(2024, time.March, 9), NormalizeDate(local))
}

func TestComputeWindowFloorsPartialDays(t *testing.T) {
	window, err := ComputeWindow(50, 20, nil, date(2024, time.January, 10), 0, 0)
	require.NoError(t, err)

	assert.Equal(t, 2, window.Days)
	assert.Equal(t, date(2024, time.January, 10), window.StartDate)
	assert.Equal(t, date(2024, time.January, 11), window.EndDate)
}

func TestComputeWindowStartsAtFrontier(t *testing.T) {
	frontier := date(2024, time.January, 5)
	window, err := ComputeWindow(60, 20, &frontier, date(2024, time.January, 10), 0, 0)
	require.NoError(t, err)

	// Arrears back-fill: the window starts at the oldest unpaid day,
	// not today.
	assert.Equal(t, date(2024, time.January, 5), window.StartDate)
	assert.Equal(t, date(2024, time.January, 7), window.EndDate)
	assert.Equal(t, 3, window.Days)
}

func TestComputeWindowRequestedDaysCapsCount(t *testing.T) {
	window, err := ComputeWindow(200, 20, nil, date(2024, time.January, 10), 3, 0)
	require.NoError(t, err)

	assert.Equal(t, 3, window.Days)
	assert.Equal(t, date(2024, time.January, 12), window.EndDate)
}

func TestComputeWindowRequestedDaysCannotExtend(t *testing.T) {
	// Asking for more days than the amount buys does not stretch the window.
	window, err := ComputeWindow(40, 20, nil, date(2024, time.January, 10), 10, 0)
	require.NoError(t, err)

	assert.Equal(t, 2, window.Days)
}

func TestComputeWindowRejectsAmountBelowPremium(t *testing.T) {
	_, err := ComputeWindow(19, 20, nil, date(2024, time.January, 10), 0, 0)
	assert.ErrorIs(t, err, ErrAmountTooLow)
}

func TestComputeWindowRejectsExcessiveDays(t *testing.T) {
	_, err := ComputeWindow(20*366, 20, nil, date(2024, time.January, 10), 0, 0)
	assert.ErrorIs(t, err, ErrDaysLimitExceeded)
}

func TestComputeWindowRejectsInvalidPremium(t *testing.T) {
	_, err := ComputeWindow(60, 0, nil, date(2024, time.January, 10), 0, 0)
	assert.ErrorIs(t, err, ErrInvalidWindow)
}
