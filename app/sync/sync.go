package sync

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sofin/app/storage"
	"sofin/app/storage/models"
	"sofin/app/strava"
	"sofin/app/utils"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
)

// ErrNotConnected is returned when a sync is requested for a user without a
// stored Strava access token. No work is performed in that case.
var ErrNotConnected = errors.New("strava not connected")

// fullHistoryLimit bounds the re-read of the stored activity set that feeds
// the aggregation step.
const fullHistoryLimit = 1000

type Syncer struct {
	DB     storage.Store
	Strava strava.Service

	group singleflight.Group
}

// Result is what a completed sync reports back to the caller.
type Result struct {
	ActivitiesSynced int                     `json:"activities_synced"`
	PersonalRecords  *models.PersonalRecords `json:"personal_records"`
}

func NewSyncer(db storage.Store, stravaSvc strava.Service) *Syncer {
	return &Syncer{DB: db, Strava: stravaSvc}
}

// SyncUser runs the full pipeline for one user: refresh credentials, pull and
// upsert every ride, re-read the stored history, recompute personal records
// and persist them, then stamp the sync time. Concurrent calls for the same
// user collapse into a single run sharing its result.
func (s *Syncer) SyncUser(userId int64) (*Result, error) {
	v, err, _ := s.group.Do(strconv.FormatInt(userId, 10), func() (interface{}, error) {
		return s.syncUser(userId)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Result), nil
}

func (s *Syncer) syncUser(userId int64) (*Result, error) {
	usr, err := s.DB.GetUserById(userId)
	if err != nil {
		return nil, err
	}
	if !usr.StravaConnected() {
		return nil, ErrNotConnected
	}

	accessToken := usr.StravaAccessToken
	if usr.StravaRefreshToken != "" {
		refreshed, err := s.Strava.RefreshAndGetYTD(usr.StravaRefreshToken, usr.StravaId)
		if err != nil {
			slog.Error("token refresh failed", "user_id", userId, "err", err)
			return nil, fmt.Errorf("refreshing strava credentials: %w", err)
		}
		accessToken = refreshed.AccessToken
		upd := models.UserUpdate{
			StravaAccessToken: &refreshed.AccessToken,
			StravaYtdKm:       &refreshed.YtdKm,
		}
		if refreshed.RefreshToken != "" {
			upd.StravaRefreshToken = &refreshed.RefreshToken
		}
		if err := s.DB.UpdateUser(userId, upd); err != nil {
			return nil, err
		}
	}

	count, err := s.fetchAndStoreRides(accessToken, userId)
	if err != nil {
		return nil, fmt.Errorf("syncing activities: %w", err)
	}

	// records are always recomputed over the complete stored history, not
	// the delta, so an interrupted earlier sync cannot leave them stale
	activities, err := s.DB.GetUserActivities(userId, fullHistoryLimit, 0)
	if err != nil {
		return nil, err
	}
	records := ComputeRecords(activities, time.Now())
	if err := s.DB.UpsertPersonalRecords(userId, &records); err != nil {
		return nil, err
	}

	now := time.Now()
	if err := s.DB.UpdateUser(userId, models.UserUpdate{LastSyncAt: &now}); err != nil {
		return nil, err
	}

	slog.Info("sync completed", "user_id", userId, "activities_synced", count)
	return &Result{ActivitiesSynced: count, PersonalRecords: &records}, nil
}

// fetchAndStoreRides walks the provider's activity listing page by page until
// a page comes back empty, upserting each ride as it is seen. A request error
// aborts the walk; rides already upserted stay persisted.
func (s *Syncer) fetchAndStoreRides(accessToken string, userId int64) (int, error) {
	total := 0
	for page := 1; ; page++ {
		batch, err := s.Strava.GetActivitiesPage(accessToken, page)
		if err != nil {
			slog.Error("error while fetching activities", "page", page, "user_id", userId)
			return total, err
		}
		if len(batch) == 0 {
			break
		}
		for _, raw := range batch {
			if raw.Type != "Ride" {
				continue
			}
			activity := normalizeRide(userId, raw)
			if err := s.DB.UpsertActivity(activity); err != nil {
				return total, err
			}
			total++
		}
	}
	slog.Info("finished fetching activities", "user_id", userId, "rides", total)
	return total, nil
}

func normalizeRide(userId int64, raw strava.SummaryActivity) *models.Activity {
	return &models.Activity{
		UserID:           userId,
		Source:           models.SourceStrava,
		SourceActivityID: strconv.FormatInt(raw.Id, 10),
		Title:            raw.Name,
		Date:             dateOnly(raw.StartDate),
		DistanceKm:       utils.Round2(raw.Distance / 1000),
		ElevationM:       int64(math.Round(raw.TotalElevationGain)),
		AvgSpeedKmh:      utils.Round2(raw.AverageSpeed * 3.6),
		DurationSeconds:  raw.MovingTime,
		ActivityType:     models.ActivityTypeRide,
		RawData:          string(raw.Raw),
	}
}

// dateOnly truncates an RFC3339-ish provider timestamp to its date part.
func dateOnly(ts string) string {
	if i := strings.IndexByte(ts, 'T'); i >= 0 {
		return ts[:i]
	}
	return ts
}
