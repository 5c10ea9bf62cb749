package period

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPeriodFor_WeeklyCrossesYearBoundary(t *testing.T) {
	// 2024-12-30 (Mon) and 2025-01-02 (Thu) are both ISO week 1 of 2025.
	dec30 := time.Date(2024, 12, 30, 8, 0, 0, 0, time.UTC)
	jan2 := time.Date(2025, 1, 2, 23, 59, 0, 0, time.UTC)

	idA, err := PeriodFor(dec30, Weekly)
	require.NoError(t, err)
	idB, err := PeriodFor(jan2, Weekly)
	require.NoError(t, err)

	assert.Equal(t, 202501, idA)
	assert.Equal(t, idA, idB)
}

func TestPeriodFor_WeeklyDistinctWeeks(t *testing.T) {
	sun := time.Date(2025, 6, 8, 12, 0, 0, 0, time.UTC) // Sunday, week 23
	mon := time.Date(2025, 6, 9, 0, 0, 0, 0, time.UTC)  // Monday, week 24

	idA, err := PeriodFor(sun, Weekly)
	require.NoError(t, err)
	idB, err := PeriodFor(mon, Weekly)
	require.NoError(t, err)

	assert.Equal(t, 202523, idA)
	assert.Equal(t, 202524, idB)
}

func TestPeriodFor_WeeklyLateDecemberBelongsToOldYear(t *testing.T) {
	// 2027-01-01 (Fri) still belongs to ISO week 53 of 2026.
	jan1 := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)

	id, err := PeriodFor(jan1, Weekly)
	require.NoError(t, err)
	assert.Equal(t, 202653, id)
}

func TestPeriodFor_Seasonal(t *testing.T) {
	id, err := PeriodFor(time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC), Seasonal)
	require.NoError(t, err)
	assert.Equal(t, 2026, id)

	id, err = PeriodFor(time.Date(2026, 12, 31, 23, 59, 59, 0, time.UTC), Seasonal)
	require.NoError(t, err)
	assert.Equal(t, 2026, id)
}

func TestPeriodFor_UnknownKind(t *testing.T) {
	_, err := PeriodFor(time.Now(), Kind(9))
	assert.Error(t, err)
}

func TestPeriodFor_NormalizesZone(t *testing.T) {
	// Same instant expressed in two zones must produce one id.
	loc := time.FixedZone("UTC+9", 9*3600)
	utc := time.Date(2025, 3, 2, 18, 0, 0, 0, time.UTC)
	local := utc.In(loc)

	idA, err := PeriodFor(utc, Weekly)
	require.NoError(t, err)
	idB, err := PeriodFor(local, Weekly)
	require.NoError(t, err)
	assert.Equal(t, idA, idB)
}

func TestLastSettledWeek(t *testing.T) {
	now := time.Date(2025, 6, 11, 9, 0, 0, 0, time.UTC) // week 24

	id, err := LastSettledWeek(now, 1)
	require.NoError(t, err)
	assert.Equal(t, 202523, id)
}

func TestLastSettledWeek_YearBoundary(t *testing.T) {
	// First ISO week of 2025; previous week is week 52 of 2024.
	now := time.Date(2024, 12, 31, 9, 0, 0, 0, time.UTC)

	id, err := LastSettledWeek(now, 7)
	require.NoError(t, err)
	assert.Equal(t, 202452, id)
}

func TestLastSettledWeek_RejectsBadWeekday(t *testing.T) {
	for _, day := range []int{0, 8, -1} {
		_, err := LastSettledWeek(time.Now(), day)
		assert.Error(t, err, "weekday %d", day)
	}
}

func TestKindValid(t *testing.T) {
	assert.True(t, Weekly.Valid())
	assert.True(t, Seasonal.Valid())
	assert.False(t, Kind(0).Valid())
	assert.False(t, Kind(3).Valid())
}
