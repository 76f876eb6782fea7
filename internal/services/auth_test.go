package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"chatllm-backend/internal/middleware"
	"chatllm-backend/internal/models"
	"chatllm-backend/internal/repository"
)

func newTestAuthService(t *testing.T) (*AuthService, *repository.MemoryStore, *middleware.JWTAuth) {
	t.Helper()
	store := repository.NewMemoryStore()
	jwtAuth := middleware.NewJWTAuth("test-secret")
	svc := NewAuthService(store.Users, jwtAuth, NewPasswordHasher(bcrypt.MinCost), 30*time.Minute, zap.NewNop())
	return svc, store, jwtAuth
}

func TestAuthService_RegisterDuplicate(t *testing.T) {
	svc, store, _ := newTestAuthService(t)
	ctx := context.Background()

	first, err := svc.Register(ctx, models.RegisterRequest{Email: "a@x.com", Password: "p"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if !first.IsActive || first.ID == 0 {
		t.Fatalf("expected active user with id, got %+v", first)
	}

	_, err = svc.Register(ctx, models.RegisterRequest{Email: "a@x.com", Password: "other"})
	if !errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}

	stored, err := store.Users.GetByEmail(ctx, "a@x.com")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if stored.ID != first.ID {
		t.Fatalf("first user replaced: %+v", stored)
	}
	if _, err := svc.Login(ctx, models.LoginRequest{Email: "a@x.com", Password: "p"}); err != nil {
		t.Fatalf("original password should still work: %v", err)
	}
}

type racingUserRepo struct{}

func (racingUserRepo) Create(ctx context.Context, user *models.User) error {
	return repository.ErrEmailTaken
}

func (racingUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return nil, pgx.ErrNoRows
}

func (racingUserRepo) GetByID(ctx context.Context, id int64) (*models.User, error) {
	return nil, pgx.ErrNoRows
}

func TestAuthService_RegisterRaceMapsToDuplicate(t *testing.T) {
	svc := NewAuthService(racingUserRepo{}, middleware.NewJWTAuth("s"), NewPasswordHasher(bcrypt.MinCost), time.Minute, zap.NewNop())

	_, err := svc.Register(context.Background(), models.RegisterRequest{Email: "a@x.com", Password: "p"})
	if !errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}
}

func TestAuthService_RegisterPasswordTooLong(t *testing.T) {
	svc, _, _ := newTestAuthService(t)

	_, err := svc.Register(context.Background(), models.RegisterRequest{Email: "a@x.com", Password: strings.Repeat("x", 100)})
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if _, ok := vErr.Fields["password"]; !ok {
		t.Fatalf("expected password field error, got %v", vErr.Fields)
	}
}

func TestAuthService_LoginIssuesVerifiableToken(t *testing.T) {
	svc, _, jwtAuth := newTestAuthService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, models.RegisterRequest{Email: "a@x.com", Password: "p"}); err != nil {
		t.Fatalf("register: %v", err)
	}

	resp, err := svc.Login(ctx, models.LoginRequest{Email: "a@x.com", Password: "p"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if resp.TokenType != "bearer" {
		t.Fatalf("expected token_type bearer, got %q", resp.TokenType)
	}

	subject, err := jwtAuth.VerifyToken(resp.AccessToken)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if subject != "a@x.com" {
		t.Fatalf("expected subject a@x.com, got %q", subject)
	}
}

func TestAuthService_LoginFailuresAreIndistinguishable(t *testing.T) {
	svc, _, _ := newTestAuthService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, models.RegisterRequest{Email: "a@x.com", Password: "p"}); err != nil {
		t.Fatalf("register: %v", err)
	}

	_, wrongPassword := svc.Login(ctx, models.LoginRequest{Email: "a@x.com", Password: "nope"})
	_, unknownEmail := svc.Login(ctx, models.LoginRequest{Email: "b@x.com", Password: "p"})

	if wrongPassword != ErrInvalidCredentials || unknownEmail != ErrInvalidCredentials {
		t.Fatalf("expected identical ErrInvalidCredentials, got %v and %v", wrongPassword, unknownEmail)
	}
}

func TestAuthService_ResolveSession(t *testing.T) {
	svc, _, jwtAuth := newTestAuthService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, models.RegisterRequest{Email: "a@x.com", Password: "p"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	resp, _ := svc.Login(ctx, models.LoginRequest{Email: "a@x.com", Password: "p"})

	resolved, err := svc.ResolveSession(ctx, resp.AccessToken)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.ID != user.ID {
		t.Fatalf("expected user %d, got %d", user.ID, resolved.ID)
	}

	orphan, _ := jwtAuth.IssueToken("ghost@x.com", time.Minute)
	expired, _ := jwtAuth.IssueToken("a@x.com", -time.Minute)
	foreign, _ := middleware.NewJWTAuth("other-secret").IssueToken("a@x.com", time.Minute)

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "garbage"},
		{"unknown subject", orphan},
		{"expired", expired},
		{"wrong secret", foreign},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.ResolveSession(ctx, tc.token); !errors.Is(err, middleware.ErrUnauthenticated) {
				t.Fatalf("expected ErrUnauthenticated, got %v", err)
			}
		})
	}
}

func TestNewAuthService_PanicsWithoutDecoyHash(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic when the decoy hash cannot be built")
		}
	}()
	broken := &PasswordHasher{cost: bcrypt.MaxCost + 1}
	NewAuthService(racingUserRepo{}, middleware.NewJWTAuth("s"), broken, time.Minute, zap.NewNop())
}

func TestNewAuthService_DecoyHashVerifies(t *testing.T) {
	hasher := NewPasswordHasher(bcrypt.MinCost)
	svc := NewAuthService(racingUserRepo{}, middleware.NewJWTAuth("s"), hasher, time.Minute, zap.NewNop())
	if svc.decoyHash == "" || !hasher.Verify("decoy-password", svc.decoyHash) {
		t.Errorf("expected a usable decoy hash, got %q", svc.decoyHash)
	}
}
