package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/jwalitptl/caregiver-api/internal/model"
)

const issuer = "caregiver-api"

var ErrInvalidToken = errors.New("invalid token")

type JWTService interface {
	GenerateAccessToken(caregiver *model.Caregiver) (string, error)
	GenerateRefreshToken(caregiver *model.Caregiver) (string, error)
	ValidateToken(token string) (*model.TokenClaims, error)
	ValidateRefreshToken(token string) (*model.TokenClaims, error)
}

type jwtService struct {
	secret        []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

// NewJWTService signs access and refresh tokens with separate HMAC keys.
func NewJWTService(secret, refreshSecret string, accessTTL, refreshTTL time.Duration) JWTService {
	if refreshSecret == "" {
		refreshSecret = secret
	}
	return &jwtService{
		secret:        []byte(secret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		now:           time.Now,
	}
}

func (s *jwtService) GenerateAccessToken(caregiver *model.Caregiver) (string, error) {
	return s.sign(caregiver, model.TokenTypeAccess, s.accessTTL, s.secret)
}

func (s *jwtService) GenerateRefreshToken(caregiver *model.Caregiver) (string, error) {
	return s.sign(caregiver, model.TokenTypeRefresh, s.refreshTTL, s.refreshSecret)
}

func (s *jwtService) sign(caregiver *model.Caregiver, tokenType string, ttl time.Duration, key []byte) (string, error) {
	now := s.now()
	claims := model.TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    issuer,
			Subject:   caregiver.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		CaregiverID: caregiver.ID,
		Email:       caregiver.Email,
		Type:        tokenType,
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	if err != nil {
		return "", fmt.Errorf("failed to sign %s token: %w", tokenType, err)
	}
	return token, nil
}

func (s *jwtService) ValidateToken(token string) (*model.TokenClaims, error) {
	return s.parse(token, model.TokenTypeAccess, s.secret)
}

func (s *jwtService) ValidateRefreshToken(token string) (*model.TokenClaims, error) {
	return s.parse(token, model.TokenTypeRefresh, s.refreshSecret)
}

func (s *jwtService) parse(token, tokenType string, key []byte) (*model.TokenClaims, error) {
	claims := &model.TokenClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.Type != tokenType || claims.CaregiverID == uuid.Nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
