package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/spacebook/internal/model"
)

// UserRepo reads the users table.  Profiles are written by the user
// service; the booking core only looks them up.
type UserRepo struct{ DB *sqlx.DB }

func NewUserRepo(db *sqlx.DB) *UserRepo { return &UserRepo{DB: db} }

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (*model.User, error) {
	var u model.User
	err := r.DB.GetContext(ctx, &u,
		"SELECT id,role,notifications_enabled FROM users WHERE id=? LIMIT 1", id)
	if err != nil {
		return nil, classify(err, fmt.Sprintf("user %d", id))
	}
	return &u, nil
}

// NotificationsEnabled returns the user's notification preference.
func (r *UserRepo) NotificationsEnabled(ctx context.Context, id uint64) (bool, error) {
	var enabled bool
	err := r.DB.GetContext(ctx, &enabled,
		"SELECT notifications_enabled FROM users WHERE id=? LIMIT 1", id)
	if err != nil {
		return false, classify(err, fmt.Sprintf("user %d", id))
	}
	return enabled, nil
}
