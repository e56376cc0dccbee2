package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sofin/app/notify"
	"sofin/app/qr"
	"sofin/app/slug"
	"sofin/app/storage"
	"sofin/app/storage/models"
	"sofin/app/strava"
	"sofin/app/sync"
	"sofin/app/utils"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// SyncService is the slice of the orchestrator the handlers need.
type SyncService interface {
	SyncUser(userId int64) (*sync.Result, error)
}

// SyncNotifier receives a notification after a sync finishes.
type SyncNotifier interface {
	SyncCompleted(ctx context.Context, email string, ridesSynced int)
}

var _ SyncNotifier = (*notify.Telegram)(nil)

type HttpHandler struct {
	Port        string
	FrontendUrl string
	Strava      strava.Service
	DB          storage.Store
	Syncer      SyncService
	JWT         utils.JWT
	Notifier    SyncNotifier
}

func (h *HttpHandler) Init() {
	h.Port = os.Getenv("PORT")
	h.FrontendUrl = os.Getenv("FRONTEND_URL")
	h.JWT = utils.JWT{Key: []byte(os.Getenv("JWT_KEY"))}
	h.Strava = strava.NewStravaClient()
	h.DB = &storage.SQLiteStore{}
	if err := h.DB.Connect(); err != nil {
		slog.Error("error while connecting to DB")
		panic(err)
	}
	h.Syncer = sync.NewSyncer(h.DB, h.Strava)
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *HttpHandler) signup(w http.ResponseWriter, r *http.Request) {
	var body credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Email == "" || body.Password == "" {
		writeError(w, http.StatusBadRequest, "Email and password required")
		return
	}
	if !utils.ValidEmail(body.Email) {
		writeError(w, http.StatusBadRequest, "Invalid email")
		return
	}
	if !utils.ValidPassword(body.Password) {
		writeError(w, http.StatusBadRequest, "Password must be at least 8 characters")
		return
	}

	existing, err := h.DB.GetUserByEmail(body.Email)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Signup failed")
		return
	}
	if existing != nil {
		writeError(w, http.StatusConflict, "Email already registered")
		return
	}

	hash, err := utils.HashPassword(body.Password)
	if err != nil {
		slog.Error("error while hashing password", "err", err)
		writeError(w, http.StatusInternalServerError, "Signup failed")
		return
	}
	user, err := h.DB.CreateUser(body.Email, hash)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Signup failed")
		return
	}
	token, err := h.JWT.GenerateJWTForUser(user.ID)
	if err != nil {
		slog.Error("error while generating token", "err", err)
		writeError(w, http.StatusInternalServerError, "Signup failed")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"user":  map[string]interface{}{"id": user.ID, "email": user.Email},
		"token": token.Value,
	})
}

func (h *HttpHandler) login(w http.ResponseWriter, r *http.Request) {
	var body credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Email == "" || body.Password == "" {
		writeError(w, http.StatusBadRequest, "Email and password required")
		return
	}

	user, err := h.DB.GetUserByEmail(body.Email)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Login failed")
		return
	}
	if user == nil || user.PasswordHash == "" || !utils.CheckPassword(body.Password, user.PasswordHash) {
		writeError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	token, err := h.JWT.GenerateJWTForUser(user.ID)
	if err != nil {
		slog.Error("error while generating token", "err", err)
		writeError(w, http.StatusInternalServerError, "Login failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user":  map[string]interface{}{"id": user.ID, "email": user.Email},
		"token": token.Value,
	})
}

func (h *HttpHandler) stravaAuthUrl(w http.ResponseWriter, r *http.Request) {
	state := uuid.NewString()
	writeJSON(w, http.StatusOK, map[string]string{
		"authUrl": h.Strava.AuthorizationUrl(state),
		"state":   state,
	})
}

func (h *HttpHandler) stravaCallback(w http.ResponseWriter, r *http.Request) {
	userId := userIdFromContext(r)
	var body struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Code == "" {
		writeError(w, http.StatusBadRequest, "Code required")
		return
	}

	authData, err := h.Strava.Authorize(body.Code)
	if err != nil {
		slog.Error("error while authorizing with strava", "err", err)
		writeError(w, http.StatusInternalServerError, "Failed to process Strava authentication")
		return
	}
	athleteId := authData.Athlete.Id

	linked, err := h.DB.GetUserByStravaId(athleteId)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to process Strava authentication")
		return
	}
	if linked != nil && linked.ID != userId {
		writeError(w, http.StatusConflict, "This Strava account is already connected to another user")
		return
	}

	// cumulative distance is best effort here; the sync path refreshes it
	var ytdKm float64
	if stats, err := h.Strava.GetAthleteStats(authData.AccessToken, athleteId); err != nil {
		slog.Error("error while fetching athlete stats", "err", err)
	} else {
		ytdKm = utils.Round2(stats.AllRideTotals.Distance / 1000)
	}

	name := fmt.Sprintf("%s %s", authData.Athlete.Firstname, authData.Athlete.Lastname)
	if profile, err := h.Strava.GetAthleteProfile(authData.AccessToken); err == nil {
		name = fmt.Sprintf("%s %s", profile.Firstname, profile.Lastname)
	}

	userSlug, err := slug.Generate(name, func(s string) (bool, error) {
		row, err := h.DB.GetSlug(s)
		return row != nil, err
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to process Strava authentication")
		return
	}
	for attempt := 0; ; attempt++ {
		err = h.DB.CreateSlug(userId, userSlug, true)
		if err == nil {
			break
		}
		if !errors.Is(err, storage.ErrSlugTaken) || attempt >= 2 {
			writeError(w, http.StatusInternalServerError, "Failed to process Strava authentication")
			return
		}
		// lost the race for the generated slug, retry with a random one
		userSlug = slug.Random()
	}

	qrCodeUrl, err := qr.GenerateDataUrl(fmt.Sprintf("%s/%s", h.FrontendUrl, userSlug))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to process Strava authentication")
		return
	}

	upd := models.UserUpdate{
		Name:               &name,
		StravaId:           &athleteId,
		StravaAccessToken:  &authData.AccessToken,
		StravaRefreshToken: &authData.RefreshToken,
		StravaYtdKm:        &ytdKm,
		QrCodeUrl:          &qrCodeUrl,
		PrimarySlug:        &userSlug,
	}
	if err := h.DB.UpdateUser(userId, upd); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to process Strava authentication")
		return
	}

	user, err := h.DB.GetUserById(userId)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to process Strava authentication")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"user":      user,
		"qrCodeUrl": qrCodeUrl,
		"slug":      userSlug,
	})
}

func (h *HttpHandler) profile(w http.ResponseWriter, r *http.Request) {
	user, err := h.DB.GetUserById(userIdFromContext(r))
	if err != nil {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":            user.ID,
		"email":         user.Email,
		"name":          user.Name,
		"strava_id":     user.StravaId,
		"strava_ytd_km": user.StravaYtdKm,
		"qr_code_url":   user.QrCodeUrl,
		"primary_slug":  user.PrimarySlug,
		"social_links":  user.SocialLinks,
		"last_sync_at":  user.LastSyncAt,
	})
}

func (h *HttpHandler) updateSocialLinks(w http.ResponseWriter, r *http.Request) {
	var body struct {
		SocialLinks []models.SocialLink `json:"socialLinks"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.SocialLinks == nil {
		writeError(w, http.StatusBadRequest, "socialLinks must be an array")
		return
	}
	userId := userIdFromContext(r)
	if err := h.DB.UpdateUser(userId, models.UserUpdate{SocialLinks: &body.SocialLinks}); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update social links")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":           userId,
		"social_links": body.SocialLinks,
	})
}

func (h *HttpHandler) activities(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 20)
	offset := queryInt(r, "offset", 0)
	activities, err := h.DB.GetUserActivities(userIdFromContext(r), limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to fetch activities")
		return
	}
	if activities == nil {
		activities = []models.Activity{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"activities": activities,
		"total":      len(activities),
	})
}

func (h *HttpHandler) syncStrava(w http.ResponseWriter, r *http.Request) {
	userId := userIdFromContext(r)
	result, err := h.Syncer.SyncUser(userId)
	if err != nil {
		if errors.Is(err, sync.ErrNotConnected) {
			writeError(w, http.StatusBadRequest, "Strava not connected")
			return
		}
		slog.Error("sync failed", "user_id", userId, "err", err)
		writeError(w, http.StatusInternalServerError, "Sync failed")
		return
	}

	if h.Notifier != nil {
		if user, err := h.DB.GetUserById(userId); err == nil {
			// the request context dies as soon as this handler returns, so
			// the send runs on its own deadline
			go func(email string, synced int) {
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				h.Notifier.SyncCompleted(ctx, email, synced)
			}(user.Email, result.ActivitiesSynced)
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":            "completed",
		"activities_synced": result.ActivitiesSynced,
		"personal_records":  result.PersonalRecords,
	})
}

func (h *HttpHandler) records(w http.ResponseWriter, r *http.Request) {
	records, err := h.DB.GetPersonalRecords(userIdFromContext(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to fetch records")
		return
	}
	if records == nil {
		records = &models.PersonalRecords{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (h *HttpHandler) slugCheck(w http.ResponseWriter, r *http.Request) {
	s := r.URL.Query().Get("slug")
	if s == "" {
		writeError(w, http.StatusBadRequest, "Slug required")
		return
	}
	if !slug.ValidFormat(s) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"available": false,
			"reason":    "Invalid format (only lowercase letters, numbers, hyphens, 3-50 chars)",
		})
		return
	}
	row, err := h.DB.GetSlug(s)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to check slug")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"available": row == nil})
}

func (h *HttpHandler) updateSlug(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Slug string `json:"slug"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Slug == "" {
		writeError(w, http.StatusBadRequest, "Slug required")
		return
	}
	if !slug.ValidFormat(body.Slug) {
		writeError(w, http.StatusBadRequest, "Invalid slug format")
		return
	}
	row, err := h.DB.GetSlug(body.Slug)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update slug")
		return
	}
	if row != nil {
		writeError(w, http.StatusConflict, "Slug already taken")
		return
	}

	userId := userIdFromContext(r)
	if err := h.DB.SetPrimarySlug(userId, body.Slug); err != nil {
		if errors.Is(err, storage.ErrSlugTaken) {
			writeError(w, http.StatusConflict, "Slug already taken")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to update slug")
		return
	}
	if err := h.DB.UpdateUser(userId, models.UserUpdate{PrimarySlug: &body.Slug}); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update slug")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"slug": body.Slug})
}

// publicStats serves the landing page data for a slug. It reads cached
// values only; credential refresh happens on the sync path.
func (h *HttpHandler) publicStats(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "slug")

	var user *models.User
	row, err := h.DB.GetSlug(key)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to fetch stats")
		return
	}
	if row != nil {
		user, err = h.DB.GetUserById(row.UserID)
	} else if id, convErr := strconv.ParseInt(key, 10, 64); convErr == nil {
		// fallback: allow lookups by raw user id
		user, err = h.DB.GetUserById(id)
	}
	if err != nil || user == nil {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}

	records, err := h.DB.GetPersonalRecords(user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to fetch stats")
		return
	}
	if records == nil {
		records = &models.PersonalRecords{}
	}

	name := user.Name
	if name == "" {
		name = user.Email
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":               user.ID,
		"name":             name,
		"slug":             user.PrimarySlug,
		"strava_ytd_km":    user.StravaYtdKm,
		"personal_records": records,
		"social_links":     user.SocialLinks,
	})
}

func (h *HttpHandler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HttpHandler) Router() chi.Router {
	r := chi.NewRouter()

	r.Post("/api/auth/signup", h.signup)
	r.Post("/api/auth/login", h.login)
	r.Get("/api/auth/strava/url", h.stravaAuthUrl)
	r.Get("/api/slug/check", h.slugCheck)
	r.Get("/api/stats/{slug}", h.publicStats)
	r.Get("/api/health", h.health)

	r.Group(func(pr chi.Router) {
		pr.Use(h.auth)
		pr.Post("/api/auth/strava/callback", h.stravaCallback)
		pr.Get("/api/user/profile", h.profile)
		pr.Put("/api/user/social-links", h.updateSocialLinks)
		pr.Get("/api/user/activities", h.activities)
		pr.Get("/api/user/records", h.records)
		pr.Put("/api/user/slug", h.updateSlug)
		pr.Post("/api/sync/strava", h.syncStrava)
	})

	return r
}

func (h *HttpHandler) Start() {
	slog.Info("Starting server on port " + h.Port)
	err := http.ListenAndServe(":"+h.Port, h.Router())
	if err != nil {
		slog.Error("wasn't able to start the server")
		panic(err)
	}
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return fallback
	}
	return value
}
