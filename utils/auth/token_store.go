package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/sahilchouksey/course-commerce-api/model"
	"gorm.io/gorm"
)

var ErrTokenRevoked = errors.New("token has been revoked")

// TokenStore persists refresh tokens so they can be revoked before expiry
type TokenStore struct {
	db *gorm.DB
}

func NewTokenStore(db *gorm.DB) *TokenStore {
	return &TokenStore{db: db}
}

func hashJTI(jti string) string {
	sum := sha256.Sum256([]byte(jti))
	return hex.EncodeToString(sum[:])
}

// Save records an issued refresh token
func (s *TokenStore) Save(ctx context.Context, userID uint, token IssuedToken) error {
	return s.db.WithContext(ctx).Create(&model.RefreshToken{
		TokenHash: hashJTI(token.JTI),
		UserID:    userID,
		ExpiresAt: token.ExpiresAt,
	}).Error
}

// CheckActive returns ErrTokenRevoked unless the token exists, is unrevoked and unexpired
func (s *TokenStore) CheckActive(ctx context.Context, jti string) error {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&model.RefreshToken{}).
		Where("token_hash = ? AND revoked_at IS NULL AND expires_at > ?", hashJTI(jti), time.Now()).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrTokenRevoked
	}
	return nil
}

// Revoke marks one refresh token revoked. Revoking twice is not an error.
func (s *TokenStore) Revoke(ctx context.Context, jti string) error {
	now := time.Now()
	return s.db.WithContext(ctx).
		Model(&model.RefreshToken{}).
		Where("token_hash = ? AND revoked_at IS NULL", hashJTI(jti)).
		Update("revoked_at", &now).Error
}

// RevokeAllUserTokens bumps the user's token version, invalidating every access token,
// and revokes all refresh tokens
func (s *TokenStore) RevokeAllUserTokens(ctx context.Context, userID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.User{}).
			Where("id = ?", userID).
			UpdateColumn("token_version", gorm.Expr("token_version + ?", 1)).Error; err != nil {
			return err
		}
		now := time.Now()
		return tx.Model(&model.RefreshToken{}).
			Where("user_id = ? AND revoked_at IS NULL", userID).
			Update("revoked_at", &now).Error
	})
}

// GetUserTokenVersion returns the current token version for a user
func (s *TokenStore) GetUserTokenVersion(ctx context.Context, userID uint) (int, error) {
	var user model.User
	err := s.db.WithContext(ctx).Select("token_version").First(&user, userID).Error
	if err != nil {
		return 0, err
	}
	return user.TokenVersion, nil
}

// CleanupExpired deletes tokens that expired or were revoked before the cutoff
func (s *TokenStore) CleanupExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("expires_at < ? OR (revoked_at IS NOT NULL AND revoked_at < ?)", cutoff, cutoff).
		Delete(&model.RefreshToken{})
	return res.RowsAffected, res.Error
}
