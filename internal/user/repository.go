package user

import (
	"context"
	"database/sql"
	"errors"
)

var ErrUserNotFound = errors.New("user not found")

type Repository interface {
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByID(ctx context.Context, id uint) (*User, error)
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

func (r *repository) GetByEmail(ctx context.Context, email string) (*User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, email, name, password_hash, role, team_id, org_id, created_at
		FROM users WHERE email = $1
	`, email)

	return scanUser(row)
}

func (r *repository) GetByID(ctx context.Context, id uint) (*User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, email, name, password_hash, role, team_id, org_id, created_at
		FROM users WHERE id = $1
	`, id)

	return scanUser(row)
}

func scanUser(row *sql.Row) (*User, error) {
	var u User
	err := row.Scan(
		&u.ID, &u.Email, &u.Name, &u.PasswordHash,
		&u.Role, &u.TeamID, &u.OrgID, &u.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}
