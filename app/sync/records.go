package sync

import (
	"fmt"
	"sofin/app/storage/models"
	"sofin/app/utils"
	"time"
)

// ComputeRecords derives year-to-date personal records from a user's full
// activity set. Qualifying activities are rides dated on or after January 1
// of now's calendar year. Pure and deterministic for a fixed now; an empty
// qualifying set yields the zero value, which is a valid result.
func ComputeRecords(activities []models.Activity, now time.Time) models.PersonalRecords {
	yearStart := fmt.Sprintf("%04d-01-01", now.Year())

	var records models.PersonalRecords
	var speedSum float64
	var speedCount int64
	for _, a := range activities {
		if a.ActivityType != models.ActivityTypeRide || a.Date < yearStart {
			continue
		}
		records.ActivityCount++
		records.YtdKm += a.DistanceKm
		records.TotalElevationM += a.ElevationM
		if a.DistanceKm > records.LongestRideKm {
			records.LongestRideKm = a.DistanceKm
		}
		if a.ElevationM > records.LongestClimbM {
			records.LongestClimbM = a.ElevationM
		}
		// zero or absent speeds are excluded from the mean
		if a.AvgSpeedKmh > 0 {
			speedSum += a.AvgSpeedKmh
			speedCount++
		}
	}
	if records.ActivityCount == 0 {
		return models.PersonalRecords{}
	}
	records.YtdKm = utils.Round2(records.YtdKm)
	if speedCount > 0 {
		records.AvgSpeedKmh = utils.Round2(speedSum / float64(speedCount))
	}
	return records
}
