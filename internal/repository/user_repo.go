package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"chatllm-backend/internal/models"
)

const pgUniqueViolation = "23505"

type UserRepo struct {
	pool Querier
}

func NewUserRepo(pool Querier) *UserRepo {
	return &UserRepo{pool: pool}
}

func (r *UserRepo) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (email, hashed_password, is_active)
		VALUES ($1, $2, TRUE)
		RETURNING id, is_active`

	err := r.pool.QueryRow(ctx, query, user.Email, user.PasswordHash).Scan(&user.ID, &user.IsActive)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrEmailTaken
		}
		return err
	}
	return nil
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	user := &models.User{}
	query := `SELECT id, email, hashed_password, is_active FROM users WHERE email = $1`

	err := r.pool.QueryRow(ctx, query, email).Scan(&user.ID, &user.Email, &user.PasswordHash, &user.IsActive)
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (r *UserRepo) GetByID(ctx context.Context, id int64) (*models.User, error) {
	user := &models.User{}
	query := `SELECT id, email, hashed_password, is_active FROM users WHERE id = $1`

	err := r.pool.QueryRow(ctx, query, id).Scan(&user.ID, &user.Email, &user.PasswordHash, &user.IsActive)
	if err != nil {
		return nil, err
	}
	return user, nil
}
