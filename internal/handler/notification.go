package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/spacebook/internal/model"
)

// NotificationStore is the receiver-scoped view of persisted notifications.
type NotificationStore interface {
	ListByReceiver(ctx context.Context, receiverID uint64, unreadOnly bool, limit, offset int) ([]model.Notification, error)
	CountUnread(ctx context.Context, receiverID uint64) (int, error)
	MarkRead(ctx context.Context, receiverID, id uint64) error
	MarkAllRead(ctx context.Context, receiverID uint64) (int64, error)
	Delete(ctx context.Context, receiverID, id uint64) error
}

// Streamer subscribes to a receiver's real-time topic.
type Streamer interface {
	Stream(ctx context.Context, receiverID uint64, ready func(), fn func(payload string) error) error
}

// NotificationHandler serves the caller's own notifications.  Stream is
// nil when no pub/sub backend is configured.
type NotificationHandler struct {
	Store  NotificationStore
	Stream Streamer
}

func NewNotificationHandler(store NotificationStore, stream Streamer) *NotificationHandler {
	if store == nil {
		panic("nil store passed to NewNotificationHandler")
	}
	return &NotificationHandler{Store: store, Stream: stream}
}

// List handles GET /v1/notifications?unread=true&limit=&offset=.
func (h *NotificationHandler) List(c echo.Context) error {
	actor, ok, err := currentActor(c)
	if !ok {
		return err
	}
	limit, offset := paging(c)
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	unread := c.QueryParam("unread") == "true"
	items, err := h.Store.ListByReceiver(c.Request().Context(), actor.ID, unread, limit, offset)
	if err != nil {
		return writeError(c, err)
	}
	if items == nil {
		items = []model.Notification{}
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items, "limit": limit, "offset": offset})
}

// UnreadCount handles GET /v1/notifications/unread-count.
func (h *NotificationHandler) UnreadCount(c echo.Context) error {
	actor, ok, err := currentActor(c)
	if !ok {
		return err
	}
	n, err := h.Store.CountUnread(c.Request().Context(), actor.ID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"unread": n})
}

// MarkRead handles PATCH /v1/notifications/:id/read.
func (h *NotificationHandler) MarkRead(c echo.Context) error {
	actor, ok, err := currentActor(c)
	if !ok {
		return err
	}
	id, ok, err := pathID(c, "id")
	if !ok {
		return err
	}
	if err := h.Store.MarkRead(c.Request().Context(), actor.ID, id); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// MarkAllRead handles PATCH /v1/notifications/read-all.
func (h *NotificationHandler) MarkAllRead(c echo.Context) error {
	actor, ok, err := currentActor(c)
	if !ok {
		return err
	}
	n, err := h.Store.MarkAllRead(c.Request().Context(), actor.ID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"updated": n})
}

// Delete handles DELETE /v1/notifications/:id.
func (h *NotificationHandler) Delete(c echo.Context) error {
	actor, ok, err := currentActor(c)
	if !ok {
		return err
	}
	id, ok, err := pathID(c, "id")
	if !ok {
		return err
	}
	if err := h.Store.Delete(c.Request().Context(), actor.ID, id); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// StreamEvents handles GET /v1/notifications/stream as server-sent events.
// Each pushed payload becomes one "notification" event.
func (h *NotificationHandler) StreamEvents(c echo.Context) error {
	actor, ok, err := currentActor(c)
	if !ok {
		return err
	}
	if h.Stream == nil {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "real-time delivery not configured"})
	}

	res := c.Response()
	ready := func() {
		res.Header().Set(echo.HeaderContentType, "text/event-stream")
		res.Header().Set(echo.HeaderCacheControl, "no-cache")
		res.Header().Set(echo.HeaderConnection, "keep-alive")
		res.WriteHeader(http.StatusOK)
		res.Flush()
	}
	err = h.Stream.Stream(c.Request().Context(), actor.ID, ready, func(payload string) error {
		if _, err := fmt.Fprintf(res, "event: notification\ndata: %s\n\n", payload); err != nil {
			return err
		}
		res.Flush()
		return nil
	})
	if err != nil && !res.Committed {
		return writeError(c, err)
	}
	return nil
}
