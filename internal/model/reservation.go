package model

import "time"

// ReservationStatus is the lifecycle state of a reservation.  It is stored
// as a string-backed ENUM in the reservations.status column.
type ReservationStatus string

const (
    ReservationPending   ReservationStatus = "PENDING"
    ReservationConfirmed ReservationStatus = "CONFIRMED"
    ReservationRejected  ReservationStatus = "REJECTED"
    ReservationCancelled ReservationStatus = "CANCELLED"
)

// ReservationStatuses lists every reservation status.  Tests iterate it to
// check that per-status mappings stay exhaustive.
var ReservationStatuses = []ReservationStatus{
    ReservationPending,
    ReservationConfirmed,
    ReservationRejected,
    ReservationCancelled,
}

// LiveReservationStatuses are the statuses that hold a slot.  Every read
// path that asks "is this interval taken" filters on exactly this set.
var LiveReservationStatuses = []ReservationStatus{
    ReservationPending,
    ReservationConfirmed,
}

// IsLive reports whether the status still claims its slot.
func (s ReservationStatus) IsLive() bool {
    for _, l := range LiveReservationStatuses {
        if s == l {
            return true
        }
    }
    return false
}

// IsTerminal reports whether no further transition is defined.
func (s ReservationStatus) IsTerminal() bool {
    return s == ReservationRejected || s == ReservationCancelled
}

// Valid reports whether s is one of the known statuses.
func (s ReservationStatus) Valid() bool {
    for _, v := range ReservationStatuses {
        if s == v {
            return true
        }
    }
    return false
}

// Slot is a half-open time interval [Start, End) claimed against a space.
type Slot struct {
    Start time.Time `json:"startTime"`
    End   time.Time `json:"endTime"`
}

// Valid reports whether the slot has a positive length.
func (s Slot) Valid() bool { return s.End.After(s.Start) }

// Overlaps reports whether two slots share at least one instant.  A slot
// ending exactly when another begins does not overlap it.
func (s Slot) Overlaps(o Slot) bool {
    return s.Start.Before(o.End) && s.End.After(o.Start)
}

// Reservation is a guest's claim on a space for one slot.
//
// Fields:
//  ID        – primary key identifier.
//  SpaceID   – space being booked.
//  GuestID   – guest who made the request.
//  StartTime – inclusive start of the slot (UTC).
//  EndTime   – exclusive end of the slot (UTC).
//  Status    – PENDING, CONFIRMED, REJECTED or CANCELLED.
//  PaymentID – payment that completed for this reservation, if any.
//  CreatedAt – creation timestamp.
//  UpdatedAt – last status change.
type Reservation struct {
    ID        uint64            `db:"id" json:"id"`                         // reservations.id
    SpaceID   uint64            `db:"space_id" json:"spaceId"`              // reservations.space_id
    GuestID   uint64            `db:"guest_id" json:"guestId"`              // reservations.guest_id
    StartTime time.Time         `db:"start_time" json:"startTime"`          // reservations.start_time
    EndTime   time.Time         `db:"end_time" json:"endTime"`              // reservations.end_time
    Status    ReservationStatus `db:"status" json:"status"`                 // reservations.status
    PaymentID *uint64           `db:"payment_id" json:"paymentId,omitempty"` // reservations.payment_id (nullable)
    CreatedAt time.Time         `db:"created_at" json:"createdAt"`          // reservations.created_at
    UpdatedAt time.Time         `db:"updated_at" json:"updatedAt"`          // reservations.updated_at
}

// Slot returns the reservation's interval.
func (r *Reservation) Slot() Slot { return Slot{Start: r.StartTime, End: r.EndTime} }
