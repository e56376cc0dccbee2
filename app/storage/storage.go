package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sofin/app/storage/models"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

type Store interface {
	Connect() error
	CreateUser(email, passwordHash string) (*models.User, error)
	GetUserByEmail(email string) (*models.User, error)
	GetUserById(id int64) (*models.User, error)
	GetUserByStravaId(stravaId int64) (*models.User, error)
	UpdateUser(id int64, upd models.UserUpdate) error
	UpsertActivity(activity *models.Activity) error
	GetUserActivities(userId int64, limit, offset int) ([]models.Activity, error)
	DeleteOldActivities(userId int64, source string) error
	UpsertPersonalRecords(userId int64, records *models.PersonalRecords) error
	GetPersonalRecords(userId int64) (*models.PersonalRecords, error)
	CreateSlug(userId int64, slug string, isPrimary bool) error
	GetSlug(slug string) (*models.UserSlug, error)
	GetPrimarySlug(userId int64) (string, error)
	SetPrimarySlug(userId int64, slug string) error
}

var _ Store = (*SQLiteStore)(nil)

// ErrSlugTaken is returned by CreateSlug when the slug row already exists
// and belongs to a different user.
var ErrSlugTaken = errors.New("slug already taken")

type SQLiteStore struct {
	DB *sql.DB
}

func (s *SQLiteStore) Connect() error {
	path := os.Getenv("SQLITE_PATH")
	if path == "" {
		path = "db/sofin.db"
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		slog.Error("cannot open sqlite file", "path", path)
		return err
	}
	s.DB = db
	if err = s.createTables(); err != nil {
		slog.Error("cannot create tables", "err", err)
		return err
	}
	return nil
}

func (s *SQLiteStore) createTables() error {
	usersTable := `
    CREATE TABLE IF NOT EXISTS users (
      id INTEGER PRIMARY KEY AUTOINCREMENT,
      email TEXT UNIQUE NOT NULL,
      password_hash TEXT,
      name TEXT,
      strava_id INTEGER,
      strava_access_token TEXT,
      strava_refresh_token TEXT,
      strava_ytd_km REAL DEFAULT 0,
      qr_code_url TEXT,
      primary_slug TEXT,
      social_links TEXT DEFAULT '[]',
      last_sync_at DATETIME,
      created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
      updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
    );
  `
	activitiesTable := `
    CREATE TABLE IF NOT EXISTS activities (
      id INTEGER PRIMARY KEY AUTOINCREMENT,
      user_id INTEGER NOT NULL,
      source TEXT NOT NULL,
      source_activity_id TEXT NOT NULL,
      title TEXT,
      date TEXT NOT NULL,
      distance_km REAL NOT NULL,
      elevation_m INTEGER,
      avg_speed_kmh REAL,
      duration_seconds INTEGER,
      activity_type TEXT,
      raw_data TEXT,
      UNIQUE(user_id, source, source_activity_id),
      FOREIGN KEY(user_id) REFERENCES users(id)
    );
  `
	recordsTable := `
    CREATE TABLE IF NOT EXISTS personal_records (
      user_id INTEGER PRIMARY KEY,
      ytd_km REAL DEFAULT 0,
      longest_ride_km REAL DEFAULT 0,
      longest_climb_m INTEGER DEFAULT 0,
      avg_speed_kmh REAL DEFAULT 0,
      total_elevation_m INTEGER DEFAULT 0,
      activity_count INTEGER DEFAULT 0,
      updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
      FOREIGN KEY(user_id) REFERENCES users(id)
    );
  `
	slugsTable := `
    CREATE TABLE IF NOT EXISTS user_slugs (
      slug TEXT PRIMARY KEY,
      user_id INTEGER NOT NULL,
      is_primary INTEGER DEFAULT 1,
      created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
      FOREIGN KEY(user_id) REFERENCES users(id)
    );
  `
	for _, table := range []string{usersTable, activitiesTable, recordsTable, slugsTable} {
		if _, err := s.DB.Exec(table); err != nil {
			return err
		}
	}
	return nil
}

const userColumns = `id, email, password_hash, name, strava_id, strava_access_token, strava_refresh_token, strava_ytd_km, qr_code_url, primary_slug, social_links, last_sync_at, created_at, updated_at`

func (s *SQLiteStore) scanUser(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	var passwordHash, name, accessToken, refreshToken, qrCodeUrl, primarySlug, socialLinks sql.NullString
	var stravaId sql.NullInt64
	var ytdKm sql.NullFloat64
	err := row.Scan(&user.ID, &user.Email, &passwordHash, &name, &stravaId, &accessToken,
		&refreshToken, &ytdKm, &qrCodeUrl, &primarySlug, &socialLinks, &user.LastSyncAt,
		&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, err
	}
	user.PasswordHash = passwordHash.String
	user.Name = name.String
	user.StravaId = stravaId.Int64
	user.StravaAccessToken = accessToken.String
	user.StravaRefreshToken = refreshToken.String
	user.StravaYtdKm = ytdKm.Float64
	user.QrCodeUrl = qrCodeUrl.String
	user.PrimarySlug = primarySlug.String
	user.SocialLinks = []models.SocialLink{}
	if socialLinks.String != "" {
		if err := json.Unmarshal([]byte(socialLinks.String), &user.SocialLinks); err != nil {
			slog.Error("cannot decode social links", "user_id", user.ID, "err", err)
		}
	}
	return user, nil
}

func (s *SQLiteStore) CreateUser(email, passwordHash string) (*models.User, error) {
	query := `INSERT INTO users (email, password_hash) VALUES (?, ?)`
	result, err := s.DB.Exec(query, email, passwordHash)
	if err != nil {
		slog.Error("error while creating user", "email", email, "err", err)
		return nil, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}
	return s.GetUserById(id)
}

func (s *SQLiteStore) GetUserByEmail(email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = ?`
	user, err := s.scanUser(s.DB.QueryRow(query, email))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return user, err
}

func (s *SQLiteStore) GetUserById(id int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`
	user, err := s.scanUser(s.DB.QueryRow(query, id))
	if err != nil {
		slog.Error("error while fetching user by id", "id", id)
		return nil, err
	}
	return user, nil
}

func (s *SQLiteStore) GetUserByStravaId(stravaId int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE strava_id = ?`
	user, err := s.scanUser(s.DB.QueryRow(query, stravaId))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("error while fetching user by strava id", "strava_id", stravaId)
		return nil, err
	}
	return user, nil
}

// UpdateUser applies the non-nil fields of upd to the user row. The SET
// clause is assembled from a fixed column list, never from caller input.
func (s *SQLiteStore) UpdateUser(id int64, upd models.UserUpdate) error {
	var sets []string
	var args []interface{}
	set := func(column string, value interface{}) {
		sets = append(sets, column+" = ?")
		args = append(args, value)
	}
	if upd.Name != nil {
		set("name", *upd.Name)
	}
	if upd.PasswordHash != nil {
		set("password_hash", *upd.PasswordHash)
	}
	if upd.StravaId != nil {
		set("strava_id", *upd.StravaId)
	}
	if upd.StravaAccessToken != nil {
		set("strava_access_token", *upd.StravaAccessToken)
	}
	if upd.StravaRefreshToken != nil {
		set("strava_refresh_token", *upd.StravaRefreshToken)
	}
	if upd.StravaYtdKm != nil {
		set("strava_ytd_km", *upd.StravaYtdKm)
	}
	if upd.QrCodeUrl != nil {
		set("qr_code_url", *upd.QrCodeUrl)
	}
	if upd.PrimarySlug != nil {
		set("primary_slug", *upd.PrimarySlug)
	}
	if upd.SocialLinks != nil {
		encoded, err := json.Marshal(*upd.SocialLinks)
		if err != nil {
			return fmt.Errorf("encoding social links: %w", err)
		}
		set("social_links", string(encoded))
	}
	if upd.LastSyncAt != nil {
		set("last_sync_at", *upd.LastSyncAt)
	}
	if len(sets) == 0 {
		return nil
	}
	sets = append(sets, "updated_at = CURRENT_TIMESTAMP")
	args = append(args, id)
	query := fmt.Sprintf("UPDATE users SET %s WHERE id = ?", strings.Join(sets, ", "))
	if _, err := s.DB.Exec(query, args...); err != nil {
		slog.Error("error while updating user", "id", id, "err", err)
		return err
	}
	return nil
}

func (s *SQLiteStore) UpsertActivity(activity *models.Activity) error {
	query := `
    INSERT INTO activities (
        user_id, source, source_activity_id, title, date, distance_km, elevation_m, avg_speed_kmh, duration_seconds, activity_type, raw_data
    ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    ON CONFLICT(user_id, source, source_activity_id) DO UPDATE SET
        title = excluded.title,
        date = excluded.date,
        distance_km = excluded.distance_km,
        elevation_m = excluded.elevation_m,
        avg_speed_kmh = excluded.avg_speed_kmh,
        duration_seconds = excluded.duration_seconds,
        activity_type = excluded.activity_type,
        raw_data = excluded.raw_data
  `
	_, err := s.DB.Exec(query, activity.UserID, activity.Source, activity.SourceActivityID,
		activity.Title, activity.Date, activity.DistanceKm, activity.ElevationM,
		activity.AvgSpeedKmh, activity.DurationSeconds, activity.ActivityType, activity.RawData)
	if err != nil {
		slog.Error("error while upserting activity", "source_activity_id", activity.SourceActivityID, "err", err)
		return err
	}
	return nil
}

func (s *SQLiteStore) GetUserActivities(userId int64, limit, offset int) ([]models.Activity, error) {
	var activities []models.Activity
	query := `SELECT id, user_id, source, source_activity_id, title, date, distance_km, elevation_m, avg_speed_kmh, duration_seconds, activity_type FROM activities WHERE user_id = ? ORDER BY date DESC, id DESC LIMIT ? OFFSET ?`
	rows, err := s.DB.Query(query, userId, limit, offset)
	if err != nil {
		slog.Error("error while fetching user activities", "user_id", userId)
		return nil, err
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	for rows.Next() {
		var a models.Activity
		var title, activityType sql.NullString
		var elevation, duration sql.NullInt64
		var avgSpeed sql.NullFloat64
		err := rows.Scan(&a.ID, &a.UserID, &a.Source, &a.SourceActivityID, &title, &a.Date,
			&a.DistanceKm, &elevation, &avgSpeed, &duration, &activityType)
		if err != nil {
			return nil, err
		}
		a.Title = title.String
		a.ElevationM = elevation.Int64
		a.AvgSpeedKmh = avgSpeed.Float64
		a.DurationSeconds = duration.Int64
		a.ActivityType = activityType.String
		activities = append(activities, a)
	}
	return activities, rows.Err()
}

// DeleteOldActivities removes rows older than a year for one (user, source)
// pair. Called by the retention sweep, never by the sync path.
func (s *SQLiteStore) DeleteOldActivities(userId int64, source string) error {
	query := `DELETE FROM activities WHERE user_id = ? AND source = ? AND date < date('now', '-1 year')`
	_, err := s.DB.Exec(query, userId, source)
	if err != nil {
		slog.Error("error while deleting old activities", "user_id", userId, "source", source)
	}
	return err
}

func (s *SQLiteStore) UpsertPersonalRecords(userId int64, records *models.PersonalRecords) error {
	query := `
    INSERT INTO personal_records (
        user_id, ytd_km, longest_ride_km, longest_climb_m, avg_speed_kmh, total_elevation_m, activity_count, updated_at
    ) VALUES (?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
    ON CONFLICT(user_id) DO UPDATE SET
        ytd_km = excluded.ytd_km,
        longest_ride_km = excluded.longest_ride_km,
        longest_climb_m = excluded.longest_climb_m,
        avg_speed_kmh = excluded.avg_speed_kmh,
        total_elevation_m = excluded.total_elevation_m,
        activity_count = excluded.activity_count,
        updated_at = CURRENT_TIMESTAMP
  `
	_, err := s.DB.Exec(query, userId, records.YtdKm, records.LongestRideKm, records.LongestClimbM,
		records.AvgSpeedKmh, records.TotalElevationM, records.ActivityCount)
	if err != nil {
		slog.Error("error while upserting personal records", "user_id", userId, "err", err)
		return err
	}
	return nil
}

func (s *SQLiteStore) GetPersonalRecords(userId int64) (*models.PersonalRecords, error) {
	records := &models.PersonalRecords{}
	query := `SELECT ytd_km, longest_ride_km, longest_climb_m, avg_speed_kmh, total_elevation_m, activity_count FROM personal_records WHERE user_id = ?`
	err := s.DB.QueryRow(query, userId).Scan(&records.YtdKm, &records.LongestRideKm,
		&records.LongestClimbM, &records.AvgSpeedKmh, &records.TotalElevationM, &records.ActivityCount)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("error while fetching personal records", "user_id", userId)
		return nil, err
	}
	return records, nil
}

func (s *SQLiteStore) CreateSlug(userId int64, slug string, isPrimary bool) error {
	// the conditional upsert only touches rows this user already owns, so a
	// slug held by someone else leaves zero rows affected
	query := `INSERT INTO user_slugs (slug, user_id, is_primary) VALUES (?, ?, ?)
		ON CONFLICT(slug) DO UPDATE SET is_primary = excluded.is_primary WHERE user_id = excluded.user_id`
	res, err := s.DB.Exec(query, slug, userId, isPrimary)
	if err != nil {
		slog.Error("error while creating slug", "slug", slug, "user_id", userId)
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrSlugTaken
	}
	return nil
}

func (s *SQLiteStore) GetSlug(slug string) (*models.UserSlug, error) {
	row := &models.UserSlug{}
	query := `SELECT slug, user_id, is_primary FROM user_slugs WHERE slug = ?`
	err := s.DB.QueryRow(query, slug).Scan(&row.Slug, &row.UserID, &row.IsPrimary)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("error while fetching slug", "slug", slug)
		return nil, err
	}
	return row, nil
}

func (s *SQLiteStore) GetPrimarySlug(userId int64) (string, error) {
	var slug string
	query := `SELECT slug FROM user_slugs WHERE user_id = ? AND is_primary = 1 LIMIT 1`
	err := s.DB.QueryRow(query, userId).Scan(&slug)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		slog.Error("error while fetching primary slug", "user_id", userId)
		return "", err
	}
	return slug, nil
}

func (s *SQLiteStore) SetPrimarySlug(userId int64, slug string) error {
	_, err := s.DB.Exec(`UPDATE user_slugs SET is_primary = 0 WHERE user_id = ? AND is_primary = 1`, userId)
	if err != nil {
		slog.Error("error while demoting primary slug", "user_id", userId)
		return err
	}
	return s.CreateSlug(userId, slug, true)
}
