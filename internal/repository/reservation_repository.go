package repository

import (
    "context"
    "database/sql"
    "fmt"
    "strings"
    "time"

    "github.com/jmoiron/sqlx"

    "github.com/iliyamo/spacebook/internal/model"
)

// liveStatusPredicate is the one place the "slot is held" filter is
// spelled in SQL.  Every query that asks whether an interval is taken
// appends it.
var liveStatusPredicate = func() string {
    quoted := make([]string, 0, len(model.LiveReservationStatuses))
    for _, s := range model.LiveReservationStatuses {
        quoted = append(quoted, "'"+string(s)+"'")
    }
    return "status IN (" + strings.Join(quoted, ",") + ")"
}()

const reservationColumns = `id, space_id, guest_id, start_time, end_time, status, payment_id, created_at, updated_at`

// ReservationRepo reads and writes the reservations table.  Methods with a
// Tx suffix run inside a caller-owned transaction; the caller commits or
// rolls back.  All timestamps are stored in UTC.
type ReservationRepo struct {
    db *sqlx.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sqlx.DB) *ReservationRepo { return &ReservationRepo{db: db} }

// GetByID returns a reservation without locking it.
func (r *ReservationRepo) GetByID(ctx context.Context, id uint64) (*model.Reservation, error) {
    var res model.Reservation
    q := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = ?`
    if err := r.db.GetContext(ctx, &res, q, id); err != nil {
        return nil, classify(err, fmt.Sprintf("reservation %d", id))
    }
    return &res, nil
}

// ListByGuest returns one page of a guest's reservations, newest slot first.
func (r *ReservationRepo) ListByGuest(ctx context.Context, guestID uint64, limit, offset int) ([]model.Reservation, error) {
    q := `SELECT ` + reservationColumns + ` FROM reservations WHERE guest_id = ? ORDER BY start_time DESC, id DESC LIMIT ? OFFSET ?`
    out := []model.Reservation{}
    if err := r.db.SelectContext(ctx, &out, q, guestID, limit, offset); err != nil {
        return nil, err
    }
    return out, nil
}

// ListBySpace returns one page of a space's reservations, newest slot first.
func (r *ReservationRepo) ListBySpace(ctx context.Context, spaceID uint64, limit, offset int) ([]model.Reservation, error) {
    q := `SELECT ` + reservationColumns + ` FROM reservations WHERE space_id = ? ORDER BY start_time DESC, id DESC LIMIT ? OFFSET ?`
    out := []model.Reservation{}
    if err := r.db.SelectContext(ctx, &out, q, spaceID, limit, offset); err != nil {
        return nil, err
    }
    return out, nil
}

type slotRow struct {
    Start time.Time `db:"start_time"`
    End   time.Time `db:"end_time"`
}

// LiveSlots returns the held intervals of a space intersecting [from, to).
func (r *ReservationRepo) LiveSlots(ctx context.Context, spaceID uint64, from, to time.Time) ([]model.Slot, error) {
    q := `SELECT start_time, end_time FROM reservations WHERE space_id = ? AND ` + liveStatusPredicate +
        ` AND start_time < ? AND end_time > ? ORDER BY start_time`
    var rows []slotRow
    if err := r.db.SelectContext(ctx, &rows, q, spaceID, to, from); err != nil {
        return nil, err
    }
    slots := make([]model.Slot, 0, len(rows))
    for _, row := range rows {
        slots = append(slots, model.Slot{Start: row.Start.UTC(), End: row.End.UTC()})
    }
    return slots, nil
}

// CountOverlappingTx counts live reservations of spaceID, other than
// excludeID, with start < slot.End and end > slot.Start.  It is a locking
// read so that the gap it inspects stays frozen until commit.
func (r *ReservationRepo) CountOverlappingTx(ctx context.Context, tx *sqlx.Tx, spaceID uint64, slot model.Slot, excludeID uint64) (int, error) {
    q := `SELECT COUNT(*) FROM reservations WHERE space_id = ? AND ` + liveStatusPredicate +
        ` AND start_time < ? AND end_time > ? AND id <> ? FOR UPDATE`
    var n int
    if err := tx.GetContext(ctx, &n, q, spaceID, slot.End.UTC(), slot.Start.UTC(), excludeID); err != nil {
        return 0, classify(err, "overlap check")
    }
    return n, nil
}

// CreateTx inserts a reservation and populates its generated ID.  A
// duplicate live (space, start, end) triple is reported as ErrConflict by
// the unique key on reservations.live_slot_key.
func (r *ReservationRepo) CreateTx(ctx context.Context, tx *sqlx.Tx, res *model.Reservation) error {
    const q = `INSERT INTO reservations (space_id, guest_id, start_time, end_time, status, payment_id, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
    result, err := tx.ExecContext(ctx, q,
        res.SpaceID, res.GuestID, res.StartTime.UTC(), res.EndTime.UTC(),
        string(res.Status), res.PaymentID, res.CreatedAt.UTC(), res.UpdatedAt.UTC())
    if err != nil {
        return classify(err, fmt.Sprintf("reservation for space %d", res.SpaceID))
    }
    id, err := result.LastInsertId()
    if err != nil {
        return err
    }
    res.ID = uint64(id)
    return nil
}

// LockTx loads a reservation and holds its row lock until the transaction ends.
func (r *ReservationRepo) LockTx(ctx context.Context, tx *sqlx.Tx, id uint64) (*model.Reservation, error) {
    var res model.Reservation
    q := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = ? FOR UPDATE`
    if err := tx.GetContext(ctx, &res, q, id); err != nil {
        return nil, classify(err, fmt.Sprintf("reservation %d", id))
    }
    return &res, nil
}

// UpdateTx writes the mutable columns of a reservation.  Only status,
// payment_id and updated_at ever change after insert.
func (r *ReservationRepo) UpdateTx(ctx context.Context, tx *sqlx.Tx, res *model.Reservation) error {
    const q = `UPDATE reservations SET status = ?, payment_id = ?, updated_at = ? WHERE id = ?`
    result, err := tx.ExecContext(ctx, q, string(res.Status), res.PaymentID, res.UpdatedAt.UTC(), res.ID)
    if err != nil {
        return classify(err, fmt.Sprintf("reservation %d", res.ID))
    }
    if n, err := result.RowsAffected(); err == nil && n == 0 {
        return classify(sql.ErrNoRows, fmt.Sprintf("reservation %d", res.ID))
    }
    return nil
}
