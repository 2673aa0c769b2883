package auth

import (
	"context"
	"testing"
	"time"

	"github.com/sahilchouksey/course-commerce-api/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestManager(expiry time.Duration) *JWTManager {
	return NewJWTManager(JWTConfig{
		Secret:        "test-secret",
		Expiry:        expiry,
		RefreshExpiry: time.Hour,
		Issuer:        "test",
	})
}

func TestAccessTokenRoundTrip(t *testing.T) {
	m := newTestManager(time.Minute)
	issued, err := m.GenerateAccessToken(7, "a@b.c", model.RoleStaff, 2)
	require.NoError(t, err)
	require.NotEmpty(t, issued.JTI)

	claims, err := m.ValidateToken(issued.Token)
	require.NoError(t, err)
	assert.Equal(t, uint(7), claims.UserID)
	assert.Equal(t, model.RoleStaff, claims.Role)
	assert.Equal(t, TokenTypeAccess, claims.TokenType)
	assert.Equal(t, 2, claims.TokenVersion)
	assert.Equal(t, issued.JTI, claims.ID)
}

func TestValidateTokenRejectsTampering(t *testing.T) {
	m := newTestManager(time.Minute)
	issued, err := m.GenerateAccessToken(1, "a@b.c", model.RoleUser, 0)
	require.NoError(t, err)

	other := NewJWTManager(JWTConfig{Secret: "other", Expiry: time.Minute, Issuer: "test"})
	_, err = other.ValidateToken(issued.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateTokenExpired(t *testing.T) {
	m := newTestManager(-time.Minute)
	issued, err := m.GenerateAccessToken(1, "a@b.c", model.RoleUser, 0)
	require.NoError(t, err)
	_, err = m.ValidateToken(issued.Token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestPasswordHashing(t *testing.T) {
	defer SetHashCostForTesting(4)()

	_, err := HashPassword("short")
	assert.ErrorIs(t, err, ErrPasswordTooShort)

	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	assert.NoError(t, VerifyPassword(hash, "correct horse"))
	assert.ErrorIs(t, VerifyPassword(hash, "wrong horse"), ErrPasswordMismatch)
}

func TestTokenStoreLifecycle(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.User{}, &model.RefreshToken{}))

	user := model.User{Email: "u@x.io", Name: "U", PasswordHash: "x", Role: model.RoleUser}
	require.NoError(t, db.Create(&user).Error)

	store := NewTokenStore(db)
	ctx := context.Background()
	m := newTestManager(time.Minute)
	refresh, err := m.GenerateRefreshToken(user.ID, user.Email, user.Role, 0)
	require.NoError(t, err)

	require.NoError(t, store.Save(ctx, user.ID, refresh))
	assert.NoError(t, store.CheckActive(ctx, refresh.JTI))

	require.NoError(t, store.Revoke(ctx, refresh.JTI))
	assert.ErrorIs(t, store.CheckActive(ctx, refresh.JTI), ErrTokenRevoked)
	require.NoError(t, store.Revoke(ctx, refresh.JTI))

	require.NoError(t, store.RevokeAllUserTokens(ctx, user.ID))
	version, err := store.GetUserTokenVersion(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, version)

	removed, err := store.CleanupExpired(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
}
