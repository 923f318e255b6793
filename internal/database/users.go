package database

import (
	"context"
	"errors"
	"strings"

	"codeshare/internal/models"
	"codeshare/internal/repository"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const userColumns = `id, username, email, password_hash, role, created_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var user models.User
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

func (q *Queries) CreateUser(ctx context.Context, arg repository.CreateUserParams) (*models.User, error) {
	if !arg.Role.Valid() {
		return nil, repository.ErrInvalidRole
	}

	query := `
		INSERT INTO users (username, email, password_hash, role)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + userColumns

	var user models.User
	err := q.db.QueryRow(ctx, query, arg.Username, strings.ToLower(arg.Email), arg.PasswordHash, arg.Role).Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			if pgErr.ConstraintName == "users_username_key" {
				return nil, repository.ErrDuplicateUsername
			}
			return nil, repository.ErrDuplicateEmail
		}
		return nil, err
	}
	return &user, nil
}

func (q *Queries) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(q.db.QueryRow(ctx, query, id))
}

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(email) = LOWER($1)`
	return scanUser(q.db.QueryRow(ctx, query, email))
}

func (q *Queries) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	return scanUser(q.db.QueryRow(ctx, query, username))
}

func (q *Queries) getUserByUsernameForUpdate(ctx context.Context, username string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1 FOR UPDATE`
	return scanUser(q.db.QueryRow(ctx, query, username))
}

func (q *Queries) SetUserRole(ctx context.Context, id int64, role models.Role) (bool, error) {
	if !role.Valid() {
		return false, repository.ErrInvalidRole
	}
	tag, err := q.db.Exec(ctx, `UPDATE users SET role = $2 WHERE id = $1`, id, role)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (q *Queries) ListUsers(ctx context.Context) ([]models.User, error) {
	rows, err := q.db.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		var user models.User
		if err := rows.Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.Role, &user.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (q *Queries) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	return n, err
}

// PromoteUser locks the user row, then updates the role in the same
// transaction.
func (s *Store) PromoteUser(ctx context.Context, username string) (*models.User, bool, error) {
	var (
		user    *models.User
		changed bool
	)
	err := s.ExecTx(ctx, func(q *Queries) error {
		u, err := q.getUserByUsernameForUpdate(ctx, username)
		if err != nil || u == nil || u.IsAdmin() {
			user = u
			return err
		}
		ok, err := q.SetUserRole(ctx, u.ID, models.RoleAdmin)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		u.Role = models.RoleAdmin
		user, changed = u, true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return user, changed, nil
}
