package sync

import (
	"testing"
	"time"

	"sofin/app/storage/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, time.May, 14, 12, 0, 0, 0, time.UTC)

func ride(date string, km float64, elevation int64, speed float64) models.Activity {
	return models.Activity{
		ActivityType: models.ActivityTypeRide,
		Date:         date,
		DistanceKm:   km,
		ElevationM:   elevation,
		AvgSpeedKmh:  speed,
	}
}

func TestComputeRecords_EmptyInput(t *testing.T) {
	records := ComputeRecords(nil, testNow)
	assert.Equal(t, models.PersonalRecords{}, records)
}

func TestComputeRecords_NoQualifyingActivities(t *testing.T) {
	activities := []models.Activity{
		// wrong kind
		{ActivityType: "run", Date: "2026-03-01", DistanceKm: 12},
		// prior year
		ride("2025-12-31", 50, 400, 22),
	}
	records := ComputeRecords(activities, testNow)
	assert.Equal(t, models.PersonalRecords{}, records)
}

func TestComputeRecords_YearBoundary(t *testing.T) {
	activities := []models.Activity{
		ride("2026-01-01", 10, 100, 20), // qualifies, inclusive
		ride("2025-12-31", 99, 999, 30), // prior year, excluded
	}
	records := ComputeRecords(activities, testNow)
	require.EqualValues(t, 1, records.ActivityCount)
	assert.Equal(t, 10.0, records.YtdKm)
	assert.EqualValues(t, 100, records.LongestClimbM)
}

func TestComputeRecords_ZeroSpeedsExcludedFromMean(t *testing.T) {
	activities := []models.Activity{
		ride("2026-02-01", 10, 0, 0),
		ride("2026-02-02", 10, 0, 20),
		ride("2026-02-03", 10, 0, 30),
	}
	records := ComputeRecords(activities, testNow)
	assert.Equal(t, 25.0, records.AvgSpeedKmh)
}

func TestComputeRecords_AllSpeedsZero(t *testing.T) {
	activities := []models.Activity{
		ride("2026-02-01", 10, 0, 0),
		ride("2026-02-02", 15, 0, 0),
	}
	records := ComputeRecords(activities, testNow)
	assert.Equal(t, 0.0, records.AvgSpeedKmh)
	assert.EqualValues(t, 2, records.ActivityCount)
}

func TestComputeRecords_Aggregates(t *testing.T) {
	activities := []models.Activity{
		ride("2026-01-10", 42.2, 350, 24.5),
		ride("2026-02-20", 101.37, 1200, 27.1),
		ride("2026-03-05", 15.0, 80, 18.0),
		{ActivityType: "run", Date: "2026-03-06", DistanceKm: 10, ElevationM: 50, AvgSpeedKmh: 12},
	}
	records := ComputeRecords(activities, testNow)
	assert.Equal(t, 158.57, records.YtdKm)
	assert.Equal(t, 101.37, records.LongestRideKm)
	assert.EqualValues(t, 1200, records.LongestClimbM)
	assert.EqualValues(t, 1630, records.TotalElevationM)
	assert.Equal(t, 23.2, records.AvgSpeedKmh)
	assert.EqualValues(t, 3, records.ActivityCount)
}

func TestComputeRecords_Deterministic(t *testing.T) {
	activities := []models.Activity{
		ride("2026-01-10", 42.2, 350, 24.5),
		ride("2026-02-20", 101.37, 1200, 27.1),
	}
	first := ComputeRecords(activities, testNow)
	second := ComputeRecords(activities, testNow)
	assert.Equal(t, first, second)
}
