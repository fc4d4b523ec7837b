package app

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/shrimpsizemoose/poseshaemost/internal/models"
	"github.com/shrimpsizemoose/poseshaemost/internal/store"
)

var tokenNow = time.Date(2026, 2, 10, 8, 0, 0, 0, time.UTC)

func newTokenManager(ms *MockStore) *TokenManager {
	return NewTokenManager(ms).WithClock(func() time.Time { return tokenNow })
}

func classWithTeacher(ms *MockStore, active bool) {
	ms.On("GetClassRoom", int64(5)).Return(&models.ClassRoom{ID: 5, Name: "3В", TeacherID: int64Ptr(21)}, nil)
	ms.On("GetUser", int64(21)).Return(&models.User{ID: 21, Username: "sidorova", IsActive: active}, nil)
}

func TestTTLFromParts(t *testing.T) {
	assert.Equal(t, 90061+604800, TTLFromParts(1, 1, 1, 1, 1))
	assert.Equal(t, 30, TTLFromParts(30, 0, 0, 0, 0))
	assert.Equal(t, 7200, TTLFromParts(0, 0, 2, 0, 0))
}

func TestValidateTTL(t *testing.T) {
	testCases := []struct {
		ttl   int
		valid bool
	}{
		{ttl: 29, valid: false},
		{ttl: 30, valid: true},
		{ttl: 3600, valid: true},
		{ttl: 1_209_600, valid: true},
		{ttl: 1_209_601, valid: false},
		{ttl: -5, valid: false},
	}

	for _, tc := range testCases {
		err := ValidateTTL(tc.ttl)
		if tc.valid {
			assert.NoError(t, err, "ttl %d", tc.ttl)
			continue
		}
		var ttlErr *TTLError
		assert.ErrorAs(t, err, &ttlErr, "ttl %d", tc.ttl)
	}
}

func TestIssue(t *testing.T) {
	ms := new(MockStore)
	classWithTeacher(ms, true)
	ms.On("CreateToken", mock.AnythingOfType("*models.SubstituteToken")).Run(func(args mock.Arguments) {
		args.Get(0).(*models.SubstituteToken).ID = 7
	}).Return(nil)

	raw, token, err := newTokenManager(ms).Issue(context.Background(), 5, int64Ptr(1), 3600)
	require.NoError(t, err)
	ms.AssertExpectations(t)

	decoded, err := base64.RawURLEncoding.DecodeString(raw)
	require.NoError(t, err)
	assert.Len(t, decoded, 32)

	assert.Equal(t, int64(7), token.ID)
	assert.Equal(t, HashToken(raw), token.TokenHash)
	assert.Len(t, token.TokenHash, 64)
	assert.NotContains(t, token.TokenHash, raw)
	assert.Equal(t, tokenNow, token.CreatedAt)
	assert.Equal(t, tokenNow.Add(time.Hour), token.ExpiresAt)
	assert.Equal(t, int64(1), *token.IssuedBy)
}

func TestIssueRejects(t *testing.T) {
	t.Run("lifetime out of range", func(t *testing.T) {
		ms := new(MockStore)
		_, _, err := newTokenManager(ms).Issue(context.Background(), 5, nil, 10)
		var ttlErr *TTLError
		assert.ErrorAs(t, err, &ttlErr)
		ms.AssertNotCalled(t, "CreateToken", mock.Anything)
	})

	t.Run("class without teacher", func(t *testing.T) {
		ms := new(MockStore)
		ms.On("GetClassRoom", int64(5)).Return(&models.ClassRoom{ID: 5, Name: "3В"}, nil)
		_, _, err := newTokenManager(ms).Issue(context.Background(), 5, nil, 60)
		assert.ErrorIs(t, err, ErrNoTeacher)
	})

	t.Run("inactive teacher", func(t *testing.T) {
		ms := new(MockStore)
		classWithTeacher(ms, false)
		_, _, err := newTokenManager(ms).Issue(context.Background(), 5, nil, 60)
		assert.ErrorIs(t, err, ErrNoTeacher)
	})

	t.Run("unknown class", func(t *testing.T) {
		ms := new(MockStore)
		ms.On("GetClassRoom", int64(5)).Return(nil, nil)
		_, _, err := newTokenManager(ms).Issue(context.Background(), 5, nil, 60)
		assert.ErrorIs(t, err, ErrClassNotFound)
	})
}

func TestAuthenticate(t *testing.T) {
	raw := "abc-secret"
	active := func() *models.SubstituteToken {
		return &models.SubstituteToken{
			ID:          3,
			ClassRoomID: 5,
			TokenHash:   HashToken(raw),
			CreatedAt:   tokenNow.Add(-time.Hour),
			ExpiresAt:   tokenNow.Add(time.Hour),
		}
	}

	t.Run("valid token", func(t *testing.T) {
		ms := new(MockStore)
		classWithTeacher(ms, true)
		ms.On("GetTokenByHash", HashToken(raw)).Return(active(), nil)
		ms.On("TouchToken", int64(3), tokenNow).Return(nil)

		token, teacher, err := newTokenManager(ms).Authenticate(context.Background(), " "+raw+" ")
		require.NoError(t, err)
		assert.Equal(t, int64(21), teacher.ID)
		assert.Equal(t, tokenNow, *token.LastUsedAt)
		ms.AssertExpectations(t)
	})

	t.Run("unknown secret", func(t *testing.T) {
		ms := new(MockStore)
		ms.On("GetTokenByHash", mock.Anything).Return(nil, nil)
		_, _, err := newTokenManager(ms).Authenticate(context.Background(), "nope")
		assert.ErrorIs(t, err, ErrTokenNotFound)
	})

	t.Run("empty secret", func(t *testing.T) {
		_, _, err := newTokenManager(new(MockStore)).Authenticate(context.Background(), "  ")
		assert.ErrorIs(t, err, ErrTokenNotFound)
	})

	t.Run("expired token", func(t *testing.T) {
		ms := new(MockStore)
		token := active()
		token.ExpiresAt = tokenNow.Add(-time.Second)
		ms.On("GetTokenByHash", HashToken(raw)).Return(token, nil)
		_, _, err := newTokenManager(ms).Authenticate(context.Background(), raw)
		assert.ErrorIs(t, err, ErrTokenInactive)
		ms.AssertNotCalled(t, "TouchToken", mock.Anything, mock.Anything)
	})

	t.Run("revoked token", func(t *testing.T) {
		ms := new(MockStore)
		token := active()
		revoked := tokenNow.Add(-time.Minute)
		token.RevokedAt = &revoked
		ms.On("GetTokenByHash", HashToken(raw)).Return(token, nil)
		_, _, err := newTokenManager(ms).Authenticate(context.Background(), raw)
		assert.ErrorIs(t, err, ErrTokenInactive)
	})

	t.Run("teacher deactivated", func(t *testing.T) {
		ms := new(MockStore)
		classWithTeacher(ms, false)
		ms.On("GetTokenByHash", HashToken(raw)).Return(active(), nil)
		_, _, err := newTokenManager(ms).Authenticate(context.Background(), raw)
		assert.ErrorIs(t, err, ErrNoTeacher)
	})
}

func TestRevoke(t *testing.T) {
	ms := new(MockStore)
	ms.On("GetToken", int64(3)).Return(&models.SubstituteToken{ID: 3, ExpiresAt: tokenNow.Add(time.Hour)}, nil).Once()
	ms.On("UpdateToken", mock.MatchedBy(func(tok *models.SubstituteToken) bool {
		return tok.RevokedAt != nil && tok.RevokedAt.Equal(tokenNow)
	})).Return(nil)

	tm := newTokenManager(ms)
	require.NoError(t, tm.Revoke(context.Background(), 3))

	revoked := tokenNow
	ms.On("GetToken", int64(3)).Return(&models.SubstituteToken{ID: 3, RevokedAt: &revoked}, nil)
	assert.ErrorIs(t, tm.Revoke(context.Background(), 3), ErrAlreadyRevoked)

	ms.On("GetToken", int64(4)).Return(nil, nil)
	assert.ErrorIs(t, tm.Revoke(context.Background(), 4), ErrTokenNotFound)
}

func TestRotate(t *testing.T) {
	ms := new(MockStore)
	classWithTeacher(ms, true)
	revoked := tokenNow.Add(-time.Hour)
	ms.On("GetToken", int64(3)).Return(&models.SubstituteToken{
		ID:          3,
		ClassRoomID: 5,
		TokenHash:   HashToken("old"),
		TTLSeconds:  600,
		CreatedAt:   tokenNow.Add(-48 * time.Hour),
		ExpiresAt:   tokenNow.Add(-47 * time.Hour),
		RevokedAt:   &revoked,
	}, nil)
	ms.On("UpdateToken", mock.Anything).Return(nil)

	raw, token, err := newTokenManager(ms).Rotate(context.Background(), 3, int64Ptr(9))
	require.NoError(t, err)

	assert.Equal(t, HashToken(raw), token.TokenHash)
	assert.NotEqual(t, HashToken("old"), token.TokenHash)
	assert.Nil(t, token.RevokedAt)
	assert.Equal(t, tokenNow, token.CreatedAt)
	assert.Equal(t, tokenNow.Add(10*time.Minute), token.ExpiresAt)
	assert.Equal(t, int64(9), *token.IssuedBy)
	assert.True(t, token.IsActive(tokenNow))
}

func TestCheckActive(t *testing.T) {
	ms := new(MockStore)
	classWithTeacher(ms, true)
	ms.On("GetToken", int64(3)).Return(&models.SubstituteToken{ID: 3, ClassRoomID: 5, ExpiresAt: tokenNow}, nil)
	ms.On("GetToken", int64(4)).Return(&models.SubstituteToken{ID: 4, ClassRoomID: 5, ExpiresAt: tokenNow.Add(-time.Nanosecond)}, nil)
	ms.On("GetToken", int64(5)).Return(nil, nil)

	tm := newTokenManager(ms)
	_, err := tm.CheckActive(context.Background(), 3)
	assert.NoError(t, err, "a token is active up to its expiry instant")
	_, err = tm.CheckActive(context.Background(), 4)
	assert.ErrorIs(t, err, ErrTokenInactive)
	_, err = tm.CheckActive(context.Background(), 5)
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestDelete(t *testing.T) {
	ms := new(MockStore)
	ms.On("DeleteToken", int64(3)).Return(nil)
	ms.On("DeleteToken", int64(4)).Return(store.ErrNotFound)
	ms.On("DeleteToken", int64(5)).Return(errors.New("db gone"))

	tm := newTokenManager(ms)
	assert.NoError(t, tm.Delete(context.Background(), 3))
	assert.ErrorIs(t, tm.Delete(context.Background(), 4), ErrTokenNotFound)
	assert.ErrorContains(t, tm.Delete(context.Background(), 5), "db gone")
}

func TestSessionTTL(t *testing.T) {
	tm := newTokenManager(new(MockStore))
	token := &models.SubstituteToken{ExpiresAt: tokenNow.Add(25 * time.Minute)}
	assert.Equal(t, 25*time.Minute, tm.SessionTTL(token))
}
