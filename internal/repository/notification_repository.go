package repository

import (
    "context"
    "database/sql"
    "errors"
    "fmt"

    "github.com/jmoiron/sqlx"

    "github.com/iliyamo/spacebook/internal/model"
)

const notificationColumns = `id, receiver_id, content, type, is_read, created_at`

// NotificationRepo persists notifications.  Rows are only ever inserted,
// flagged read, or deleted by their receiver.
type NotificationRepo struct {
    db *sqlx.DB
}

// NewNotificationRepo returns a NotificationRepo bound to db.
func NewNotificationRepo(db *sqlx.DB) *NotificationRepo { return &NotificationRepo{db: db} }

// Create inserts n and fills in its ID.
func (r *NotificationRepo) Create(ctx context.Context, n *model.Notification) error {
    const q = `INSERT INTO notifications (receiver_id, content, type, is_read, created_at) VALUES (?, ?, ?, ?, ?)`
    res, err := r.db.ExecContext(ctx, q, n.ReceiverID, n.Content, string(n.Type), n.IsRead, n.CreatedAt.UTC())
    if err != nil {
        return err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return err
    }
    n.ID = uint64(id)
    return nil
}

// ListByReceiver returns a page of the receiver's notifications, newest first.
func (r *NotificationRepo) ListByReceiver(ctx context.Context, receiverID uint64, unreadOnly bool, limit, offset int) ([]model.Notification, error) {
    q := `SELECT ` + notificationColumns + ` FROM notifications WHERE receiver_id = ?`
    if unreadOnly {
        q += ` AND is_read = FALSE`
    }
    q += ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
    out := []model.Notification{}
    if err := r.db.SelectContext(ctx, &out, q, receiverID, limit, offset); err != nil {
        return nil, err
    }
    return out, nil
}

// CountUnread returns the number of unread notifications for a receiver.
func (r *NotificationRepo) CountUnread(ctx context.Context, receiverID uint64) (int, error) {
    var n int
    err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM notifications WHERE receiver_id = ? AND is_read = FALSE`, receiverID)
    return n, err
}

// MarkRead flags one notification read.  It fails with ErrForbidden when the
// notification belongs to another receiver.
func (r *NotificationRepo) MarkRead(ctx context.Context, receiverID, id uint64) error {
    if err := r.checkOwner(ctx, receiverID, id); err != nil {
        return err
    }
    _, err := r.db.ExecContext(ctx, `UPDATE notifications SET is_read = TRUE WHERE id = ? AND receiver_id = ?`, id, receiverID)
    return err
}

// MarkAllRead flags every unread notification of the receiver and returns
// how many changed.
func (r *NotificationRepo) MarkAllRead(ctx context.Context, receiverID uint64) (int64, error) {
    res, err := r.db.ExecContext(ctx, `UPDATE notifications SET is_read = TRUE WHERE receiver_id = ? AND is_read = FALSE`, receiverID)
    if err != nil {
        return 0, err
    }
    return res.RowsAffected()
}

// Delete removes a notification owned by receiverID.
func (r *NotificationRepo) Delete(ctx context.Context, receiverID, id uint64) error {
    if err := r.checkOwner(ctx, receiverID, id); err != nil {
        return err
    }
    _, err := r.db.ExecContext(ctx, `DELETE FROM notifications WHERE id = ? AND receiver_id = ?`, id, receiverID)
    return err
}

func (r *NotificationRepo) checkOwner(ctx context.Context, receiverID, id uint64) error {
    var owner uint64
    err := r.db.GetContext(ctx, &owner, `SELECT receiver_id FROM notifications WHERE id = ?`, id)
    if errors.Is(err, sql.ErrNoRows) {
        return classify(err, fmt.Sprintf("notification %d", id))
    }
    if err != nil {
        return err
    }
    if owner != receiverID {
        return fmt.Errorf("%w: notification %d", ErrForbidden, id)
    }
    return nil
}
