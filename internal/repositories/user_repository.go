package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"avenir-sync/internal/models"
)

var ErrUserNotFound = errors.New("user not found")

// UserRepository abstracts account lookup.
type UserRepository interface {
	GetUser(ctx context.Context, userID int) (models.User, error)
	GetUserByUsername(ctx context.Context, username string) (models.User, error)
	BulkUsers(ctx context.Context, ids []int) ([]models.User, error)
	CreateUser(ctx context.Context, user models.User) (models.User, error)
}

// UserRepo is a sqlx implementation of UserRepository.
type UserRepo struct {
	db *sqlx.DB
}

// NewUserRepo constructs a UserRepo.
func NewUserRepo(db *sqlx.DB) *UserRepo {
	return &UserRepo{db: db}
}

// GetUser fetches a user by id.
func (r *UserRepo) GetUser(ctx context.Context, userID int) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, `SELECT id, username, role FROM users WHERE id=$1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return user, err
}

// GetUserByUsername fetches a user by username.
func (r *UserRepo) GetUserByUsername(ctx context.Context, username string) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, `SELECT id, username, role FROM users WHERE username=$1`, username)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return user, err
}

// BulkUsers fetches multiple users in one query.
func (r *UserRepo) BulkUsers(ctx context.Context, ids []int) ([]models.User, error) {
	if len(ids) == 0 {
		return []models.User{}, nil
	}
	query, args, err := sqlx.In(`SELECT id, username, role FROM users WHERE id IN (?)`, ids)
	if err != nil {
		return nil, err
	}
	query = r.db.Rebind(query)
	var users []models.User
	err = r.db.SelectContext(ctx, &users, query, args...)
	return users, err
}

// CreateUser inserts a user, used by dev seeding.
func (r *UserRepo) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	var out models.User
	err := r.db.GetContext(ctx, &out,
		`INSERT INTO users (username, role) VALUES ($1, $2)
         ON CONFLICT (username) DO UPDATE SET role = EXCLUDED.role
         RETURNING id, username, role`,
		user.Username, user.Role)
	return out, err
}
