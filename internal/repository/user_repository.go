package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/bidmaster/internal/database"
	"github.com/iliyamo/bidmaster/internal/model"
	"github.com/iliyamo/bidmaster/internal/utils"
)

const userColumns = `user_id, username, email, password_hash, role, balance, created_at`

type UserRepo struct{ db *sqlx.DB }

func NewUserRepo(db *sqlx.DB) *UserRepo { return &UserRepo{db: db} }

// Create hashes password, inserts the user and populates u.ID.  Username
// and email are trimmed; email is lower-cased.
func (r *UserRepo) Create(ctx context.Context, u *model.User, password string, cost int) error {
	u.Username = strings.TrimSpace(u.Username)
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if u.Role == "" {
		u.Role = "user"
	}
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	id, err := database.InsertID(ctx, r.db,
		`INSERT INTO users (username, email, password_hash, role, balance) VALUES (?, ?, ?, ?, ?)`,
		"user_id", u.Username, u.Email, u.PasswordHash, u.Role, u.Balance)
	if err != nil {
		return err
	}
	u.ID = id
	return nil
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (*model.User, error) {
	return getUser(ctx, r.db, id)
}

// GetByIDTx fetches a user by id within tx.
func (r *UserRepo) GetByIDTx(ctx context.Context, tx *sqlx.Tx, id uint64) (*model.User, error) {
	return getUser(ctx, tx, id)
}

func getUser(ctx context.Context, q sqlx.ExtContext, id uint64) (*model.User, error) {
	var u model.User
	err := sqlx.GetContext(ctx, q, &u, q.Rebind(`SELECT `+userColumns+` FROM users WHERE user_id = ? LIMIT 1`), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}
