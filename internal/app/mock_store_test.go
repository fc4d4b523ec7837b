package app

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/shrimpsizemoose/poseshaemost/internal/models"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) CreateToken(ctx context.Context, token *models.SubstituteToken) error {
	args := m.Called(token)
	return args.Error(0)
}

func (m *MockStore) GetToken(ctx context.Context, id int64) (*models.SubstituteToken, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SubstituteToken), args.Error(1)
}

func (m *MockStore) GetTokenByHash(ctx context.Context, hash string) (*models.SubstituteToken, error) {
	args := m.Called(hash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SubstituteToken), args.Error(1)
}

func (m *MockStore) UpdateToken(ctx context.Context, token *models.SubstituteToken) error {
	args := m.Called(token)
	return args.Error(0)
}

func (m *MockStore) TouchToken(ctx context.Context, id int64, at time.Time) error {
	args := m.Called(id, at)
	return args.Error(0)
}

func (m *MockStore) DeleteToken(ctx context.Context, id int64) error {
	args := m.Called(id)
	return args.Error(0)
}

func (m *MockStore) ListTokens(ctx context.Context, limit int) ([]models.SubstituteToken, error) {
	args := m.Called(limit)
	return args.Get(0).([]models.SubstituteToken), args.Error(1)
}

func (m *MockStore) GetClassRoom(ctx context.Context, id int64) (*models.ClassRoom, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ClassRoom), args.Error(1)
}

func (m *MockStore) GetUser(ctx context.Context, id int64) (*models.User, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	args := m.Called(username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockStore) ListStaffClassRooms(ctx context.Context, userID int64) ([]models.ClassRoom, error) {
	args := m.Called(userID)
	return args.Get(0).([]models.ClassRoom), args.Error(1)
}

func int64Ptr(v int64) *int64 {
	return &v
}
