package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/caregiver-api/internal/model"
	"github.com/jwalitptl/caregiver-api/internal/repository"
	"github.com/jwalitptl/caregiver-api/pkg/auth"
	apperrors "github.com/jwalitptl/caregiver-api/pkg/errors"
	"github.com/jwalitptl/caregiver-api/pkg/security"
)

type Service struct {
	caregiverRepo repository.CaregiverRepository
	jwtSvc        auth.JWTService
	hasher        security.PasswordHasher
	// revoked maps a token id to struct{} until the token would have expired anyway.
	revoked *cache.Cache
	now     func() time.Time
}

func NewService(caregiverRepo repository.CaregiverRepository, jwtSvc auth.JWTService, hasher security.PasswordHasher) *Service {
	return &Service{
		caregiverRepo: caregiverRepo,
		jwtSvc:        jwtSvc,
		hasher:        hasher,
		revoked:       cache.New(cache.NoExpiration, 10*time.Minute),
		now:           time.Now,
	}
}

func (s *Service) Register(ctx context.Context, req *model.RegisterRequest) (*model.TokenResponse, error) {
	email := normalizeEmail(req.Email)
	if _, err := s.caregiverRepo.GetByEmail(ctx, email); err == nil {
		return nil, apperrors.Conflict("email already registered", nil)
	} else if !apperrors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}

	hash, err := s.hasher.Hash(req.Password)
	if errors.Is(err, security.ErrPasswordLength) {
		return nil, apperrors.Validation("%s", err.Error())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	caregiver := &model.Caregiver{
		Base:         model.NewBase(s.now()),
		Email:        email,
		Name:         strings.TrimSpace(req.Name),
		PasswordHash: hash,
	}
	if err := s.caregiverRepo.Create(ctx, caregiver); err != nil {
		return nil, err
	}

	log.Ctx(ctx).Info().Str("caregiver_id", caregiver.ID.String()).Msg("caregiver registered")
	return s.generateTokens(caregiver)
}

func (s *Service) Login(ctx context.Context, email, password string) (*model.TokenResponse, error) {
	caregiver, err := s.caregiverRepo.GetByEmail(ctx, normalizeEmail(email))
	if apperrors.Is(err, apperrors.ErrNotFound) {
		return nil, apperrors.Unauthorized(model.ErrInvalidCredentials)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load caregiver: %w", err)
	}

	if err := s.hasher.Compare(caregiver.PasswordHash, password); err != nil {
		return nil, apperrors.Unauthorized(model.ErrInvalidCredentials)
	}

	return s.generateTokens(caregiver)
}

func (s *Service) RefreshToken(ctx context.Context, refreshToken string) (*model.TokenResponse, error) {
	claims, err := s.jwtSvc.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, apperrors.Unauthorized(err)
	}
	if s.isRevoked(claims) {
		return nil, apperrors.Unauthorized(model.ErrTokenRevoked)
	}

	caregiver, err := s.caregiverRepo.Get(ctx, claims.CaregiverID)
	if err != nil {
		return nil, apperrors.Unauthorized(err)
	}

	// the old refresh token is single use
	s.revoke(claims)
	return s.generateTokens(caregiver)
}

// ValidateToken checks an access token and that it has not been logged out.
func (s *Service) ValidateToken(ctx context.Context, token string) (*model.TokenClaims, error) {
	claims, err := s.jwtSvc.ValidateToken(token)
	if err != nil {
		return nil, apperrors.Unauthorized(err)
	}
	if s.isRevoked(claims) {
		return nil, apperrors.Unauthorized(model.ErrTokenRevoked)
	}
	return claims, nil
}

// Logout revokes the access token until it expires.
func (s *Service) Logout(ctx context.Context, token string) error {
	claims, err := s.ValidateToken(ctx, token)
	if err != nil {
		return err
	}
	s.revoke(claims)
	return nil
}

func (s *Service) GetCaregiver(ctx context.Context, id uuid.UUID) (*model.Caregiver, error) {
	return s.caregiverRepo.Get(ctx, id)
}

func (s *Service) generateTokens(caregiver *model.Caregiver) (*model.TokenResponse, error) {
	access, err := s.jwtSvc.GenerateAccessToken(caregiver)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}
	refresh, err := s.jwtSvc.GenerateRefreshToken(caregiver)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}
	return &model.TokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		Caregiver:    caregiver,
	}, nil
}

func (s *Service) revoke(claims *model.TokenClaims) {
	if claims.ID == "" {
		return
	}
	ttl := time.Minute
	if claims.ExpiresAt != nil {
		if left := claims.ExpiresAt.Time.Sub(s.now()); left > 0 {
			ttl = left
		}
	}
	s.revoked.Set(claims.ID, struct{}{}, ttl)
}

func (s *Service) isRevoked(claims *model.TokenClaims) bool {
	if claims.ID == "" {
		return false
	}
	_, found := s.revoked.Get(claims.ID)
	return found
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
