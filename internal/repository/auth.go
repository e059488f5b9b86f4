// Package repository provides persistence implementations for the
// credential store.
package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"github.com/prepchat/prepchat/internal/models"
)

// uniqueViolation is the PostgreSQL error code for unique constraint violations.
const uniqueViolation = "23505"

// PostgresAuthRepository implements credential operations using a
// PostgreSQL database.
type PostgresAuthRepository struct {
	// DB is the database handle for executing queries.
	DB *sql.DB
}

// NewPostgresAuthRepository creates a new PostgresAuthRepository with the
// given database connection. db must be a valid *sql.DB connected to a
// PostgreSQL instance.
func NewPostgresAuthRepository(db *sql.DB) *PostgresAuthRepository {
	return &PostgresAuthRepository{DB: db}
}

// CreateUser inserts a new user row. If the username is already taken,
// it returns models.ErrDuplicateUser.
func (r *PostgresAuthRepository) CreateUser(ctx context.Context, user models.User) error {
	_, err := r.DB.ExecContext(
		ctx,
		`INSERT INTO users (user_id, username, password_hash) VALUES ($1, $2, $3)`,
		user.ID, user.Username, user.PasswordHash,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return models.ErrDuplicateUser
		}
		return err
	}
	return nil
}

// FindByUsername fetches the user with the given username. It returns
// (nil, nil) when no such user exists; callers treat that as a credential
// failure.
func (r *PostgresAuthRepository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	err := r.DB.QueryRowContext(
		ctx,
		`SELECT user_id, username, password_hash FROM users WHERE username = $1`,
		username,
	).Scan(&user.ID, &user.Username, &user.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}
