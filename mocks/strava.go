package mocks

import (
	"sofin/app/strava"

	"github.com/stretchr/testify/mock"
)

type StravaService struct {
	mock.Mock
}

func (m *StravaService) AuthorizationUrl(state string) string {
	args := m.Called(state)
	return args.String(0)
}

func (m *StravaService) Authorize(accessCode string) (*strava.AuthResp, error) {
	args := m.Called(accessCode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*strava.AuthResp), args.Error(1)
}

func (m *StravaService) RefreshAccessToken(refreshToken string) (*strava.AuthResp, error) {
	args := m.Called(refreshToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*strava.AuthResp), args.Error(1)
}

func (m *StravaService) GetAthleteProfile(accessToken string) (*strava.AthleteInfo, error) {
	args := m.Called(accessToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*strava.AthleteInfo), args.Error(1)
}

func (m *StravaService) GetAthleteStats(accessToken string, athleteId int64) (*strava.AthleteStats, error) {
	args := m.Called(accessToken, athleteId)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*strava.AthleteStats), args.Error(1)
}

func (m *StravaService) GetActivitiesPage(accessToken string, page int) ([]strava.SummaryActivity, error) {
	args := m.Called(accessToken, page)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]strava.SummaryActivity), args.Error(1)
}

func (m *StravaService) RefreshAndGetYTD(refreshToken string, athleteId int64) (*strava.RefreshedStats, error) {
	args := m.Called(refreshToken, athleteId)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*strava.RefreshedStats), args.Error(1)
}
