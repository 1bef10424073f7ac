package users

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

type PGRepo struct {
	DB *sql.DB
}

const (
	userColumns        = `id, email, name, password_hash, role, phone, company, street, city, state, zip, created_at, updated_at`
	uniqueViolationSQL = "23505"
)

func (r *PGRepo) Create(ctx context.Context, user User) error {
	const query = `
INSERT INTO users (id, email, name, password_hash, role, phone, company, street, city, state, zip, created_at, updated_at)
VALUES ($1, lower($2), $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)`
	_, err := r.DB.ExecContext(ctx, query,
		user.ID, user.Email, user.Name, user.PasswordHash, user.Role,
		user.Phone, user.Company, user.Street, user.City, user.State, user.Zip,
		user.CreatedAt,
	)
	return mapUniqueViolation(err)
}

func (r *PGRepo) Update(ctx context.Context, user User) error {
	const query = `
UPDATE users SET
  email = lower($2), name = $3, password_hash = $4, role = $5, phone = $6,
  company = $7, street = $8, city = $9, state = $10, zip = $11, updated_at = now()
WHERE id = $1`
	res, err := r.DB.ExecContext(ctx, query,
		user.ID, user.Email, user.Name, user.PasswordHash, user.Role,
		user.Phone, user.Company, user.Street, user.City, user.State, user.Zip,
	)
	if err != nil {
		return mapUniqueViolation(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PGRepo) GetByID(ctx context.Context, userID string) (User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1 LIMIT 1`, userID)
}

func (r *PGRepo) GetByEmail(ctx context.Context, email string) (User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = lower($1) LIMIT 1`, emailKey(email))
}

func (r *PGRepo) getOne(ctx context.Context, query string, arg string) (User, error) {
	var u User
	err := r.DB.QueryRowContext(ctx, query, arg).Scan(
		&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.Role,
		&u.Phone, &u.Company, &u.Street, &u.City, &u.State, &u.Zip,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return u, err
}

func mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationSQL {
		return ErrEmailTaken
	}
	return err
}

var _ Repo = (*PGRepo)(nil)
