package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"chatllm-backend/internal/middleware"
	"chatllm-backend/internal/models"
	"chatllm-backend/internal/repository"
)

const TokenTypeBearer = "bearer"

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
}

type AuthService struct {
	userRepo UserRepository
	jwt      *middleware.JWTAuth
	hasher   *PasswordHasher
	tokenTTL time.Duration
	logger   *zap.Logger

	// Compared against when the email is unknown so both login failures cost the same.
	decoyHash string
}

func NewAuthService(userRepo UserRepository, jwt *middleware.JWTAuth, hasher *PasswordHasher, tokenTTL time.Duration, logger *zap.Logger) *AuthService {
	decoy, err := hasher.Hash("decoy-password")
	if err != nil {
		panic(fmt.Sprintf("services: cannot build decoy password hash: %v", err))
	}
	return &AuthService{
		userRepo:  userRepo,
		jwt:       jwt,
		hasher:    hasher,
		tokenTTL:  tokenTTL,
		logger:    logger,
		decoyHash: decoy,
	}
}

func (s *AuthService) Register(ctx context.Context, req models.RegisterRequest) (*models.User, error) {
	// Check uniqueness
	_, err := s.userRepo.GetByEmail(ctx, req.Email)
	if err == nil {
		return nil, ErrDuplicateEmail
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	hash, err := s.hasher.Hash(req.Password)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return nil, &ValidationError{Fields: map[string]string{"password": "Password must be at most 72 bytes"}}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Email:        req.Email,
		PasswordHash: hash,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		// Lost a race with a concurrent registration of the same email.
		if errors.Is(err, repository.ErrEmailTaken) {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("user registered", zap.Int64("user_id", user.ID))
	return user, nil
}

func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.TokenResponse, error) {
	user, err := s.userRepo.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.hasher.Verify(req.Password, s.decoyHash)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if !s.hasher.Verify(req.Password, user.PasswordHash) || !user.IsActive {
		return nil, ErrInvalidCredentials
	}

	token, err := s.jwt.IssueToken(user.Email, s.tokenTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	return &models.TokenResponse{AccessToken: token, TokenType: TokenTypeBearer}, nil
}

// ResolveSession verifies a bearer token and loads the user named by its
// subject. Token failures and vanished users both yield
// middleware.ErrUnauthenticated.
func (s *AuthService) ResolveSession(ctx context.Context, token string) (*models.User, error) {
	email, err := s.jwt.VerifyToken(token)
	if err != nil {
		s.logger.Debug("token rejected", zap.Error(err))
		return nil, middleware.ErrUnauthenticated
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.logger.Debug("token subject no longer exists")
			return nil, middleware.ErrUnauthenticated
		}
		return nil, fmt.Errorf("failed to resolve session user: %w", err)
	}

	if !user.IsActive {
		return nil, middleware.ErrUnauthenticated
	}
	return user, nil
}
