package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"sofin/app/storage"
	"sofin/app/storage/models"
	"sofin/app/strava"
	"sofin/app/sync"
	"sofin/app/utils"
	"sofin/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type syncerFunc func(userId int64) (*sync.Result, error)

func (f syncerFunc) SyncUser(userId int64) (*sync.Result, error) {
	return f(userId)
}

func newTestHandler(db *mocks.Store) *HttpHandler {
	return &HttpHandler{
		DB:          db,
		JWT:         utils.JWT{Key: []byte("test-key")},
		FrontendUrl: "https://sofin.app",
	}
}

func authHeader(t *testing.T, h *HttpHandler, userId int64) string {
	t.Helper()
	token, err := h.JWT.GenerateJWTForUser(userId)
	require.NoError(t, err)
	return "Bearer " + token.Value
}

func TestSyncStrava_ReturnsResult(t *testing.T) {
	mockDB := new(mocks.Store)
	h := newTestHandler(mockDB)
	records := &models.PersonalRecords{YtdKm: 10, LongestRideKm: 10, LongestClimbM: 100, AvgSpeedKmh: 18, TotalElevationM: 100, ActivityCount: 1}
	h.Syncer = syncerFunc(func(userId int64) (*sync.Result, error) {
		assert.EqualValues(t, 7, userId)
		return &sync.Result{ActivitiesSynced: 1, PersonalRecords: records}, nil
	})

	req := httptest.NewRequest("POST", "/api/sync/strava", nil)
	req.Header.Set("Authorization", authHeader(t, h, 7))
	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Status           string                 `json:"status"`
		ActivitiesSynced int                    `json:"activities_synced"`
		PersonalRecords  models.PersonalRecords `json:"personal_records"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "completed", body.Status)
	assert.Equal(t, 1, body.ActivitiesSynced)
	assert.Equal(t, *records, body.PersonalRecords)
}

func TestSyncStrava_NotConnected(t *testing.T) {
	mockDB := new(mocks.Store)
	h := newTestHandler(mockDB)
	h.Syncer = syncerFunc(func(userId int64) (*sync.Result, error) {
		return nil, sync.ErrNotConnected
	})

	req := httptest.NewRequest("POST", "/api/sync/strava", nil)
	req.Header.Set("Authorization", authHeader(t, h, 7))
	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Strava not connected")
}

func TestSyncStrava_FailureIsGeneric(t *testing.T) {
	mockDB := new(mocks.Store)
	h := newTestHandler(mockDB)
	h.Syncer = syncerFunc(func(userId int64) (*sync.Result, error) {
		return nil, errors.New("page 3 timed out")
	})

	req := httptest.NewRequest("POST", "/api/sync/strava", nil)
	req.Header.Set("Authorization", authHeader(t, h, 7))
	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Sync failed")
	// the provider error never leaks to the client
	assert.NotContains(t, rec.Body.String(), "timed out")
}

func TestSyncStrava_RequiresAuth(t *testing.T) {
	h := newTestHandler(new(mocks.Store))

	req := httptest.NewRequest("POST", "/api/sync/strava", nil)
	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPublicStats_BySlug(t *testing.T) {
	mockDB := new(mocks.Store)
	h := newTestHandler(mockDB)
	mockDB.On("GetSlug", "felix-mueller").Return(&models.UserSlug{Slug: "felix-mueller", UserID: 7, IsPrimary: true}, nil)
	mockDB.On("GetUserById", int64(7)).Return(&models.User{
		ID: 7, Email: "felix@example.com", Name: "Felix Mueller",
		PrimarySlug: "felix-mueller", StravaYtdKm: 1250.5,
		SocialLinks: []models.SocialLink{{Platform: "instagram", Url: "https://instagram.com/felix"}},
	}, nil)
	mockDB.On("GetPersonalRecords", int64(7)).Return(&models.PersonalRecords{YtdKm: 1250.5, ActivityCount: 42}, nil)

	req := httptest.NewRequest("GET", "/api/stats/felix-mueller", nil)
	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Felix Mueller", body["name"])
	assert.Equal(t, "felix-mueller", body["slug"])
	assert.Equal(t, 1250.5, body["strava_ytd_km"])
	mockDB.AssertExpectations(t)
}

func TestPublicStats_UnknownSlug(t *testing.T) {
	mockDB := new(mocks.Store)
	h := newTestHandler(mockDB)
	mockDB.On("GetSlug", "nobody").Return(nil, nil)

	req := httptest.NewRequest("GET", "/api/stats/nobody", nil)
	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPublicStats_RecordsAbsentIsZeroValued(t *testing.T) {
	mockDB := new(mocks.Store)
	h := newTestHandler(mockDB)
	mockDB.On("GetSlug", "felix-mueller").Return(&models.UserSlug{Slug: "felix-mueller", UserID: 7}, nil)
	mockDB.On("GetUserById", int64(7)).Return(&models.User{ID: 7, Email: "felix@example.com"}, nil)
	mockDB.On("GetPersonalRecords", int64(7)).Return(nil, nil)

	req := httptest.NewRequest("GET", "/api/stats/felix-mueller", nil)
	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		PersonalRecords models.PersonalRecords `json:"personal_records"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, models.PersonalRecords{}, body.PersonalRecords)
}

func TestSignup_DuplicateEmail(t *testing.T) {
	mockDB := new(mocks.Store)
	h := newTestHandler(mockDB)
	mockDB.On("GetUserByEmail", "felix@example.com").Return(&models.User{ID: 7}, nil)

	req := httptest.NewRequest("POST", "/api/auth/signup",
		strings.NewReader(`{"email":"felix@example.com","password":"longenough"}`))
	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestSignup_ShortPassword(t *testing.T) {
	h := newTestHandler(new(mocks.Store))

	req := httptest.NewRequest("POST", "/api/auth/signup",
		strings.NewReader(`{"email":"felix@example.com","password":"short"}`))
	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogin_WrongPassword(t *testing.T) {
	mockDB := new(mocks.Store)
	h := newTestHandler(mockDB)
	hash, err := utils.HashPassword("correct-horse")
	require.NoError(t, err)
	mockDB.On("GetUserByEmail", "felix@example.com").Return(&models.User{ID: 7, Email: "felix@example.com", PasswordHash: hash}, nil)

	req := httptest.NewRequest("POST", "/api/auth/login",
		strings.NewReader(`{"email":"felix@example.com","password":"battery-staple"}`))
	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSlugCheck(t *testing.T) {
	mockDB := new(mocks.Store)
	h := newTestHandler(mockDB)
	mockDB.On("GetSlug", "free-slug").Return(nil, nil)

	req := httptest.NewRequest("GET", "/api/slug/check?slug=free-slug", nil)
	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"available":true}`, rec.Body.String())
}

func TestSlugCheck_InvalidFormat(t *testing.T) {
	h := newTestHandler(new(mocks.Store))

	req := httptest.NewRequest("GET", "/api/slug/check?slug=Has%20Spaces", nil)
	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Available bool `json:"available"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Available)
}

// captureNotifier records the context each notification was sent with.
type captureNotifier struct {
	ctxs chan context.Context
}

func (n *captureNotifier) SyncCompleted(ctx context.Context, email string, ridesSynced int) {
	n.ctxs <- ctx
}

func TestSyncStrava_NotificationOutlivesRequest(t *testing.T) {
	mockDB := new(mocks.Store)
	h := newTestHandler(mockDB)
	mockDB.On("GetUserById", int64(7)).Return(&models.User{ID: 7, Email: "rider@example.com"}, nil)
	h.Syncer = syncerFunc(func(userId int64) (*sync.Result, error) {
		return &sync.Result{ActivitiesSynced: 2, PersonalRecords: &models.PersonalRecords{}}, nil
	})
	notifier := &captureNotifier{ctxs: make(chan context.Context, 1)}
	h.Notifier = notifier

	reqCtx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest("POST", "/api/sync/strava", nil).WithContext(reqCtx)
	req.Header.Set("Authorization", authHeader(t, h, 7))
	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, req)
	cancel() // the http server cancels the request context once the handler returns

	require.Equal(t, http.StatusOK, rec.Code)
	select {
	case ctx := <-notifier.ctxs:
		// the send must not run on the now-dead request context
		assert.NoError(t, ctx.Err())
	case <-time.After(time.Second):
		t.Fatal("notification never sent")
	}
}

func TestStravaCallback_SlugRaceRetriesWithRandom(t *testing.T) {
	mockDB := new(mocks.Store)
	mockStrava := &mocks.StravaService{}
	h := newTestHandler(mockDB)
	h.Strava = mockStrava

	auth := &strava.AuthResp{
		AccessToken:  "at",
		RefreshToken: "rt",
		Athlete:      strava.AthleteInfo{Id: 42, Firstname: "Lena", Lastname: "Vogt"},
	}
	mockStrava.On("Authorize", "code").Return(auth, nil)
	mockStrava.On("GetAthleteStats", "at", int64(42)).Return(nil, errors.New("unavailable"))
	mockStrava.On("GetAthleteProfile", "at").Return(nil, errors.New("unavailable"))
	mockDB.On("GetUserByStravaId", int64(42)).Return(nil, nil)
	mockDB.On("GetSlug", "lena-vogt").Return(nil, nil)
	// another signup grabbed "lena-vogt" between the availability check and
	// the insert
	mockDB.On("CreateSlug", int64(7), "lena-vogt", true).Return(storage.ErrSlugTaken).Once()
	mockDB.On("CreateSlug", int64(7), mock.MatchedBy(func(s string) bool {
		return strings.HasPrefix(s, "user-")
	}), true).Return(nil).Once()
	mockDB.On("UpdateUser", int64(7), mock.Anything).Return(nil)
	mockDB.On("GetUserById", int64(7)).Return(&models.User{ID: 7, Email: "rider@example.com"}, nil)

	req := httptest.NewRequest("POST", "/api/auth/strava/callback", strings.NewReader(`{"code":"code"}`))
	req.Header.Set("Authorization", authHeader(t, h, 7))
	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Slug string `json:"slug"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, strings.HasPrefix(body.Slug, "user-"), "got slug %q", body.Slug)
	mockDB.AssertExpectations(t)
}

func TestUpdateSlug_RaceReturnsConflict(t *testing.T) {
	mockDB := new(mocks.Store)
	h := newTestHandler(mockDB)
	mockDB.On("GetSlug", "fast-rider").Return(nil, nil)
	mockDB.On("SetPrimarySlug", int64(7), "fast-rider").Return(storage.ErrSlugTaken)

	req := httptest.NewRequest("PUT", "/api/user/slug", strings.NewReader(`{"slug":"fast-rider"}`))
	req.Header.Set("Authorization", authHeader(t, h, 7))
	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "Slug already taken")
}
