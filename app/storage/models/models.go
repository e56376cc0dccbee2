package models

import (
	"time"
)

const (
	SourceStrava = "strava"
	SourceKomoot = "komoot"
)

// ActivityTypeRide is the normalized activity kind stored for rides,
// regardless of how the provider spells it.
const ActivityTypeRide = "ride"

type User struct {
	ID                 int64        `json:"id,omitempty"`
	Email              string       `json:"email"`
	PasswordHash       string       `json:"-"`
	Name               string       `json:"name,omitempty"`
	StravaId           int64        `json:"strava_id,omitempty"`
	StravaAccessToken  string       `json:"-"`
	StravaRefreshToken string       `json:"-"`
	StravaYtdKm        float64      `json:"strava_ytd_km"`
	QrCodeUrl          string       `json:"qr_code_url,omitempty"`
	PrimarySlug        string       `json:"primary_slug,omitempty"`
	SocialLinks        []SocialLink `json:"social_links"`
	LastSyncAt         *time.Time   `json:"last_sync_at,omitempty"`
	CreatedAt          time.Time    `json:"created_at"`
	UpdatedAt          time.Time    `json:"updated_at"`
}

func (u User) StravaConnected() bool {
	return u.StravaAccessToken != ""
}

type SocialLink struct {
	Platform string `json:"platform"`
	Url      string `json:"url"`
}

// UserUpdate is a partial update of a user row. Nil fields are left
// untouched; each field maps to a fixed column in storage.
type UserUpdate struct {
	Name               *string
	PasswordHash       *string
	StravaId           *int64
	StravaAccessToken  *string
	StravaRefreshToken *string
	StravaYtdKm        *float64
	QrCodeUrl          *string
	PrimarySlug        *string
	SocialLinks        *[]SocialLink
	LastSyncAt         *time.Time
}

// Activity is a normalized ride pulled from a provider. The triple
// (UserID, Source, SourceActivityID) is unique; re-ingesting the same
// provider activity overwrites the prior row.
type Activity struct {
	ID               int64   `json:"id,omitempty"`
	UserID           int64   `json:"user_id"`
	Source           string  `json:"source"`
	SourceActivityID string  `json:"source_activity_id"`
	Title            string  `json:"title"`
	Date             string  `json:"date"` // YYYY-MM-DD, no time component
	DistanceKm       float64 `json:"distance_km"`
	ElevationM       int64   `json:"elevation_m"`
	AvgSpeedKmh      float64 `json:"avg_speed_kmh"`
	DurationSeconds  int64   `json:"duration_seconds"`
	ActivityType     string  `json:"activity_type"`
	RawData          string  `json:"-"` // provider payload kept verbatim
}

// PersonalRecords is the cached year-to-date aggregate for one user,
// recomputed wholesale on every sync.
type PersonalRecords struct {
	YtdKm           float64 `json:"ytd_km"`
	LongestRideKm   float64 `json:"longest_ride_km"`
	LongestClimbM   int64   `json:"longest_climb_m"`
	AvgSpeedKmh     float64 `json:"avg_speed_kmh"`
	TotalElevationM int64   `json:"total_elevation_m"`
	ActivityCount   int64   `json:"activity_count"`
}

type UserSlug struct {
	Slug      string `json:"slug"`
	UserID    int64  `json:"user_id"`
	IsPrimary bool   `json:"is_primary"`
}
