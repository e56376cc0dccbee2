package mocks

import (
	"sofin/app/storage/models"

	"github.com/stretchr/testify/mock"
)

type Store struct {
	mock.Mock
}

func (m *Store) Connect() error {
	args := m.Called()
	return args.Error(0)
}

func (m *Store) CreateUser(email, passwordHash string) (*models.User, error) {
	args := m.Called(email, passwordHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *Store) GetUserByEmail(email string) (*models.User, error) {
	args := m.Called(email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *Store) GetUserById(id int64) (*models.User, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *Store) GetUserByStravaId(stravaId int64) (*models.User, error) {
	args := m.Called(stravaId)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *Store) UpdateUser(id int64, upd models.UserUpdate) error {
	args := m.Called(id, upd)
	return args.Error(0)
}

func (m *Store) UpsertActivity(activity *models.Activity) error {
	args := m.Called(activity)
	return args.Error(0)
}

func (m *Store) GetUserActivities(userId int64, limit, offset int) ([]models.Activity, error) {
	args := m.Called(userId, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Activity), args.Error(1)
}

func (m *Store) DeleteOldActivities(userId int64, source string) error {
	args := m.Called(userId, source)
	return args.Error(0)
}

func (m *Store) UpsertPersonalRecords(userId int64, records *models.PersonalRecords) error {
	args := m.Called(userId, records)
	return args.Error(0)
}

func (m *Store) GetPersonalRecords(userId int64) (*models.PersonalRecords, error) {
	args := m.Called(userId)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PersonalRecords), args.Error(1)
}

func (m *Store) CreateSlug(userId int64, slug string, isPrimary bool) error {
	args := m.Called(userId, slug, isPrimary)
	return args.Error(0)
}

func (m *Store) GetSlug(slug string) (*models.UserSlug, error) {
	args := m.Called(slug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UserSlug), args.Error(1)
}

func (m *Store) GetPrimarySlug(userId int64) (string, error) {
	args := m.Called(userId)
	return args.String(0), args.Error(1)
}

func (m *Store) SetPrimarySlug(userId int64, slug string) error {
	args := m.Called(userId, slug)
	return args.Error(0)
}
