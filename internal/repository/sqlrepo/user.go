package sqlrepo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/garnizeh/feedback/pkg/models"
	"github.com/garnizeh/feedback/pkg/repository"
)

const userColumns = `id, username, email, password, created_at`

func (r *Repo) GetUser(ctx context.Context, id int64) (*models.User, error) {
	return r.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

func (r *Repo) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE username = ? ORDER BY id LIMIT 1`, username)
}

func (r *Repo) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE email = ? ORDER BY id LIMIT 1`, email)
}

func (r *Repo) getUser(ctx context.Context, query string, arg any) (*models.User, error) {
	var u models.User
	if err := r.conn.Get(ctx, &u, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

func (r *Repo) CreateUser(ctx context.Context, in models.UserInput) (*models.User, error) {
	u := models.User{
		Username:  in.Username,
		Email:     in.Email,
		Password:  in.Password,
		CreatedAt: r.stamp(),
	}

	row := r.conn.QueryRow(ctx, `INSERT INTO users (username, email, password, created_at) VALUES (?, ?, ?, ?) RETURNING id`,
		u.Username, u.Email, u.Password, u.CreatedAt)
	if err := row.Scan(&u.ID); err != nil {
		if isUniqueViolation(err) {
			return nil, repository.ErrDuplicate
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return &u, nil
}
