package core

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type userService struct {
	pool *pgxpool.Pool
}

// NewUserService constructs a UserService backed by PostgreSQL.
func NewUserService(pool *pgxpool.Pool) UserService {
	return &userService{pool: pool}
}

const userColumns = `id, username, full_name, role, is_active, created_at`

func scanUser(row pgx.Row, u *User) error {
	return row.Scan(&u.ID, &u.Username, &u.FullName, &u.Role, &u.IsActive, &u.CreatedAt)
}

func (s *userService) CreateUser(ctx context.Context, in UserInput) (*User, error) {
	username := normalizeUsername(in.Username)
	if username == "" {
		return nil, validationf("username is required")
	}
	if strings.ContainsAny(username, " \t") {
		return nil, validationf("username %q must not contain whitespace", username)
	}
	role, err := ParseRole(in.Role)
	if err != nil {
		return nil, err
	}

	u := &User{}
	err = scanUser(s.pool.QueryRow(ctx, `
		INSERT INTO users (username, full_name, role)
		VALUES ($1, $2, $3)
		RETURNING `+userColumns,
		username, strings.TrimSpace(in.FullName), string(role),
	), u)
	if err != nil {
		err = storageErr("create user", err)
		if errors.Is(err, ErrDuplicateKey) {
			return nil, duplicatef("username %q is already taken", username)
		}
		return nil, err
	}
	return u, nil
}

func (s *userService) GetByUsername(ctx context.Context, username string) (*User, error) {
	u := &User{}
	err := scanUser(s.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE username = $1
		LIMIT 1`,
		normalizeUsername(username),
	), u)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFoundf("user %q not found", username)
		}
		return nil, storageErr("look up user", err)
	}
	return u, nil
}

func (s *userService) GetByID(ctx context.Context, userID int) (*User, error) {
	return getUser(ctx, s.pool, userID)
}

func (s *userService) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY username`)
	if err != nil {
		return nil, storageErr("query users", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		if err := scanUser(rows, &u); err != nil {
			return nil, storageErr("scan user", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate users", err)
	}
	return users, nil
}

func (s *userService) SetActive(ctx context.Context, userID int, active bool) (*User, error) {
	u := &User{}
	err := scanUser(s.pool.QueryRow(ctx, `
		UPDATE users SET is_active = $2
		WHERE id = $1
		RETURNING `+userColumns,
		userID, active,
	), u)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFoundf("user id=%d not found", userID)
		}
		return nil, storageErr("update user", err)
	}
	return u, nil
}

func getUser(ctx context.Context, q pgxQuerier, userID int) (*User, error) {
	u := &User{}
	err := scanUser(q.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID), u)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFoundf("user id=%d not found", userID)
		}
		return nil, storageErr("look up user", err)
	}
	return u, nil
}

// requireActiveOperator checks that the operator recording a document exists and is enabled.
func requireActiveOperator(ctx context.Context, q pgxQuerier, operatorID int) (*User, error) {
	if operatorID <= 0 {
		return nil, validationf("operator is required")
	}
	u, err := getUser(ctx, q, operatorID)
	if err != nil {
		return nil, err
	}
	if !u.IsActive {
		return nil, validationf("operator %s is disabled", u.Username)
	}
	return u, nil
}
