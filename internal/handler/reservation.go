package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/spacebook/internal/booking"
	"github.com/iliyamo/spacebook/internal/model"
)

// ReservationHandler exposes the reservation operations of the booking
// core.  JWT authentication and role checks run in middleware; the
// handlers only re-check that body identity fields match the token.
type ReservationHandler struct {
	Booking *booking.Orchestrator
}

// NewReservationHandler panics if the orchestrator is nil.
func NewReservationHandler(b *booking.Orchestrator) *ReservationHandler {
	if b == nil {
		panic("nil orchestrator passed to NewReservationHandler")
	}
	return &ReservationHandler{Booking: b}
}

type createReservationRequest struct {
	GuestID   *uint64   `json:"guestId"`
	SpaceID   uint64    `json:"spaceId" validate:"required"`
	StartTime time.Time `json:"startTime" validate:"required"`
	EndTime   time.Time `json:"endTime" validate:"required"`
}

// Create handles POST /v1/reservations.  It returns 201 with the PENDING
// reservation, 404 for an unknown space or guest and 409 when the slot is
// taken or the interval is empty.
func (h *ReservationHandler) Create(c echo.Context) error {
	actor, ok, err := currentActor(c)
	if !ok {
		return err
	}
	var body createReservationRequest
	if ok, err := bindValid(c, &body); !ok {
		return err
	}
	if ok, err := matchesActor(c, actor, body.GuestID); !ok {
		return err
	}
	res, err := h.Booking.ReserveSpace(c.Request().Context(), actor.ID, body.SpaceID, body.StartTime, body.EndTime)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, res)
}

type hostDecisionRequest struct {
	ActorHostID *uint64 `json:"actorHostId"`
	Reason      string  `json:"reason" validate:"max=500"`
}

// Confirm handles PATCH /v1/reservations/:id/confirm.
func (h *ReservationHandler) Confirm(c echo.Context) error {
	return h.hostDecision(c, func(actor model.Actor, id uint64, _ string) (*model.Reservation, error) {
		return h.Booking.ConfirmReservation(c.Request().Context(), actor.ID, id)
	})
}

// Reject handles PATCH /v1/reservations/:id/reject.
func (h *ReservationHandler) Reject(c echo.Context) error {
	return h.hostDecision(c, func(actor model.Actor, id uint64, reason string) (*model.Reservation, error) {
		return h.Booking.RejectReservation(c.Request().Context(), actor.ID, id, reason)
	})
}

func (h *ReservationHandler) hostDecision(c echo.Context, do func(model.Actor, uint64, string) (*model.Reservation, error)) error {
	actor, ok, err := currentActor(c)
	if !ok {
		return err
	}
	id, ok, err := pathID(c, "id")
	if !ok {
		return err
	}
	var body hostDecisionRequest
	if c.Request().ContentLength != 0 {
		if ok, err := bindValid(c, &body); !ok {
			return err
		}
	}
	if ok, err := matchesActor(c, actor, body.ActorHostID); !ok {
		return err
	}
	res, err := do(actor, id, body.Reason)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

type cancelRequest struct {
	ActorID *uint64 `json:"actorId"`
}

// Cancel handles POST /v1/reservations/:id/cancel for the guest or a
// system caller.
func (h *ReservationHandler) Cancel(c echo.Context) error {
	actor, ok, err := currentActor(c)
	if !ok {
		return err
	}
	id, ok, err := pathID(c, "id")
	if !ok {
		return err
	}
	var body cancelRequest
	if c.Request().ContentLength != 0 {
		if ok, err := bindValid(c, &body); !ok {
			return err
		}
	}
	if ok, err := matchesActor(c, actor, body.ActorID); !ok {
		return err
	}
	res, err := h.Booking.CancelReservation(c.Request().Context(), actor, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// Get handles GET /v1/reservations/:id.
func (h *ReservationHandler) Get(c echo.Context) error {
	actor, ok, err := currentActor(c)
	if !ok {
		return err
	}
	id, ok, err := pathID(c, "id")
	if !ok {
		return err
	}
	res, err := h.Booking.GetReservation(c.Request().Context(), actor, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// ListMine handles GET /v1/my-reservations.
func (h *ReservationHandler) ListMine(c echo.Context) error {
	actor, ok, err := currentActor(c)
	if !ok {
		return err
	}
	limit, offset := paging(c)
	items, err := h.Booking.ListGuestReservations(c.Request().Context(), actor.ID, limit, offset)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// ListForSpace handles GET /v1/spaces/:id/reservations for the space's host.
func (h *ReservationHandler) ListForSpace(c echo.Context) error {
	actor, ok, err := currentActor(c)
	if !ok {
		return err
	}
	spaceID, ok, err := pathID(c, "id")
	if !ok {
		return err
	}
	limit, offset := paging(c)
	items, err := h.Booking.ListSpaceReservations(c.Request().Context(), actor.ID, spaceID, limit, offset)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Busy handles GET /v1/spaces/:id/busy?from=...&to=... (RFC 3339).  The
// window defaults to the next seven days.
func (h *ReservationHandler) Busy(c echo.Context) error {
	spaceID, ok, err := pathID(c, "id")
	if !ok {
		return err
	}
	from := time.Now().UTC().Truncate(time.Hour)
	to := from.Add(7 * 24 * time.Hour)
	if v := c.QueryParam("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid from"})
		}
		from = t
		if c.QueryParam("to") == "" {
			to = from.Add(7 * 24 * time.Hour)
		}
	}
	if v := c.QueryParam("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid to"})
		}
		to = t
	}
	slots, err := h.Booking.BusySlots(c.Request().Context(), spaceID, from, to)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"spaceId": spaceID, "from": from.UTC(), "to": to.UTC(), "busy": slots})
}
