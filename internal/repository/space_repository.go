package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/spacebook/internal/model"
)

// SpaceRepo encapsulates the queries on the spaces table.  Spaces are
// owned by the listing service; the booking core reads them and uses the
// row as its per-space lock.
type SpaceRepo struct {
	db *sqlx.DB
}

// NewSpaceRepo constructs a SpaceRepo with the provided DB handle.
func NewSpaceRepo(db *sqlx.DB) *SpaceRepo {
	return &SpaceRepo{db: db}
}

// GetByID fetches a space by its ID regardless of host.
func (r *SpaceRepo) GetByID(ctx context.Context, id uint64) (*model.Space, error) {
	const q = "SELECT id, host_id, title FROM spaces WHERE id = ?"
	var s model.Space
	if err := r.db.GetContext(ctx, &s, q, id); err != nil {
		return nil, classify(err, fmt.Sprintf("space %d", id))
	}
	return &s, nil
}

// LockTx takes the row lock on a space.  Concurrent reservation inserts for
// the same space queue behind it; other spaces are unaffected.
func (r *SpaceRepo) LockTx(ctx context.Context, tx *sqlx.Tx, id uint64) error {
	const q = "SELECT id FROM spaces WHERE id = ? FOR UPDATE"
	var got uint64
	if err := tx.GetContext(ctx, &got, q, id); err != nil {
		return classify(err, fmt.Sprintf("space %d", id))
	}
	return nil
}

// Directory serves the booking core's existence lookups from the spaces
// and users tables.
type Directory struct {
	Spaces *SpaceRepo
	Users  *UserRepo
}

// NewDirectory builds a Directory over db.
func NewDirectory(db *sqlx.DB) *Directory {
	return &Directory{Spaces: NewSpaceRepo(db), Users: NewUserRepo(db)}
}

func (d *Directory) Space(ctx context.Context, id uint64) (*model.Space, error) {
	return d.Spaces.GetByID(ctx, id)
}

func (d *Directory) User(ctx context.Context, id uint64) (*model.User, error) {
	return d.Users.GetByID(ctx, id)
}

// NotificationsEnabled implements notify.Preferences.
func (d *Directory) NotificationsEnabled(ctx context.Context, userID uint64) (bool, error) {
	return d.Users.NotificationsEnabled(ctx, userID)
}
