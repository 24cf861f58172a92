package auth

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func scanAdmin(row pgx.Row) (*AdminUser, error) {
	var u AdminUser
	err := row.Scan(
		&u.ID,
		&u.FullName,
		&u.Email,
		&u.PasswordHash,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAdminNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *PgRepository) CreateAdmin(ctx context.Context, user *AdminUser) (*AdminUser, error) {
	id := uuid.New()

	row := r.pool.QueryRow(ctx, `
		INSERT INTO admin_users (id, full_name, email, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())
		RETURNING id, full_name, email, password_hash, created_at, updated_at
	`, id, user.FullName, user.Email, user.PasswordHash)

	created, err := scanAdmin(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	return created, nil
}

func (r *PgRepository) GetAdminByEmail(ctx context.Context, email string) (*AdminUser, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, full_name, email, password_hash, created_at, updated_at
		FROM admin_users
		WHERE email = $1
	`, email)
	return scanAdmin(row)
}
