package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"xclone/internal/config"
	"xclone/internal/model"
	"xclone/internal/repository"
)

// RefreshTokenRetention is how long expired refresh tokens are kept before
// the janitor purges them.
const RefreshTokenRetention = 7 * 24 * time.Hour

// AuthService issues access tokens and rotates refresh tokens with reuse detection.
type AuthService struct {
	refreshTokenRepo repository.RefreshTokenRepository
	config           *config.Config
	log              zerolog.Logger
}

func NewAuthService(refreshTokenRepo repository.RefreshTokenRepository, cfg *config.Config) *AuthService {
	return &AuthService{
		refreshTokenRepo: refreshTokenRepo,
		config:           cfg,
		log:              log.With().Str("component", "AuthService").Logger(),
	}
}

// GenerateTokenPair issues a new access token and persists a refresh token.
func (s *AuthService) GenerateTokenPair(ctx context.Context, userID primitive.ObjectID, deviceInfo, ipAddress string) (*model.TokenPair, error) {
	pair, _, err := s.issue(ctx, userID, deviceInfo, ipAddress)
	return pair, err
}

func (s *AuthService) issue(ctx context.Context, userID primitive.ObjectID, deviceInfo, ipAddress string) (*model.TokenPair, *model.RefreshToken, error) {
	accessToken, err := s.generateAccessToken(userID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	refreshTokenRaw := uuid.New().String()
	refreshToken := &model.RefreshToken{
		UserID:    userID.Hex(),
		TokenHash: hashToken(refreshTokenRaw),
		ExpiresAt: time.Now().Add(time.Duration(s.config.RefreshTokenMaxAge) * time.Second),
	}
	if deviceInfo != "" {
		refreshToken.DeviceInfo = &deviceInfo
	}
	if ipAddress != "" {
		refreshToken.IPAddress = &ipAddress
	}

	if err := s.refreshTokenRepo.Create(ctx, refreshToken); err != nil {
		return nil, nil, fmt.Errorf("failed to store refresh token: %w", err)
	}

	return &model.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshTokenRaw,
		ExpiresIn:    s.config.AccessTokenMaxAge,
	}, refreshToken, nil
}

// RefreshTokens validates the refresh token and rotates a new pair. Presenting
// a token that was already rotated revokes every token of its owner.
func (s *AuthService) RefreshTokens(ctx context.Context, refreshTokenRaw, deviceInfo, ipAddress string) (*model.TokenPair, primitive.ObjectID, error) {
	token, err := s.refreshTokenRepo.FindByTokenHash(ctx, hashToken(refreshTokenRaw))
	if err != nil {
		return nil, primitive.NilObjectID, model.ErrRefreshTokenNotFound
	}

	if token.IsRevoked() {
		if err := s.refreshTokenRepo.RevokeAllForUser(ctx, token.UserID); err != nil {
			s.log.Error().Err(err).Str("user", token.UserID).Msg("Failed to revoke token family after reuse")
		} else {
			s.log.Warn().Str("user", token.UserID).Str("token", token.ID).Msg("Refresh token reuse detected, all sessions revoked")
		}
		return nil, primitive.NilObjectID, model.ErrRefreshTokenReused
	}

	if token.IsExpired() {
		return nil, primitive.NilObjectID, model.ErrRefreshTokenExpired
	}

	userID, err := model.ParseObjectID(token.UserID)
	if err != nil {
		return nil, primitive.NilObjectID, model.ErrRefreshTokenNotFound
	}

	pair, replacement, err := s.issue(ctx, userID, deviceInfo, ipAddress)
	if err != nil {
		return nil, primitive.NilObjectID, err
	}

	if err := s.refreshTokenRepo.Revoke(ctx, token.ID, &replacement.ID); err != nil {
		s.log.Error().Err(err).Str("token", token.ID).Msg("Failed to revoke rotated refresh token")
	}

	return pair, userID, nil
}

func (s *AuthService) RevokeRefreshToken(ctx context.Context, refreshTokenRaw string) error {
	token, err := s.refreshTokenRepo.FindByTokenHash(ctx, hashToken(refreshTokenRaw))
	if err != nil {
		return err
	}
	return s.refreshTokenRepo.Revoke(ctx, token.ID, nil)
}

func (s *AuthService) RevokeAllUserTokens(ctx context.Context, userID primitive.ObjectID) error {
	return s.refreshTokenRepo.RevokeAllForUser(ctx, userID.Hex())
}

// PurgeExpired deletes refresh tokens that expired more than RefreshTokenRetention ago.
func (s *AuthService) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := s.refreshTokenRepo.DeleteExpired(ctx, RefreshTokenRetention)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.Info().Int64("deleted", n).Msg("Purged expired refresh tokens")
	}
	return n, nil
}

func (s *AuthService) generateAccessToken(userID primitive.ObjectID) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"user_id": userID.Hex(),
		"exp":     now.Add(time.Duration(s.config.AccessTokenMaxAge) * time.Second).Unix(),
		"iat":     now.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.JWTSecret))
}

func hashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}
