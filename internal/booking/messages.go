package booking

import (
	"fmt"
	"strings"

	"github.com/iliyamo/spacebook/internal/model"
)

// statusNotification returns the guest-facing wording and notification type
// for a reservation that has just entered status.  Every status must have a
// case; the unknown branch exists for corrupted rows only.
func statusNotification(r *model.Reservation, space *model.Space, reason string) (string, model.NotificationType, error) {
	where := spaceLabel(space, r.SpaceID)
	when := slotLabel(r.Slot())
	switch r.Status {
	case model.ReservationPending:
		return fmt.Sprintf("Your reservation of %s for %s is awaiting host approval.", where, when),
			model.NotifReservationCreated, nil
	case model.ReservationConfirmed:
		return fmt.Sprintf("Your reservation of %s for %s has been confirmed.", where, when),
			model.NotifReservationConfirmed, nil
	case model.ReservationRejected:
		msg := fmt.Sprintf("Your reservation of %s for %s was declined by the host.", where, when)
		if reason = strings.TrimSpace(reason); reason != "" {
			msg += " Reason: " + reason
		}
		return msg, model.NotifReservationRejected, nil
	case model.ReservationCancelled:
		return fmt.Sprintf("Your reservation of %s for %s has been cancelled.", where, when),
			model.NotifReservationCancelled, nil
	default:
		return "", "", fmt.Errorf("no wording for reservation status %q", r.Status)
	}
}

// hostNewRequestMessage is sent to the host when a guest requests a slot.
func hostNewRequestMessage(r *model.Reservation, space *model.Space) string {
	return fmt.Sprintf("New reservation request #%d for %s on %s.", r.ID, spaceLabel(space, r.SpaceID), slotLabel(r.Slot()))
}

func paymentMessage(p *model.Payment) (string, model.NotificationType) {
	amount := fmt.Sprintf("%d.%02d %s", p.AmountCents/100, p.AmountCents%100, p.Currency)
	switch p.Status {
	case model.PaymentCompleted:
		return fmt.Sprintf("Payment of %s for reservation #%d was received.", amount, p.ReservationID), model.NotifPaymentCompleted
	case model.PaymentRefunded:
		return fmt.Sprintf("Payment of %s for reservation #%d was refunded.", amount, p.ReservationID), model.NotifPaymentRefunded
	default:
		msg := fmt.Sprintf("Payment of %s for reservation #%d failed.", amount, p.ReservationID)
		if p.FailureReason != nil {
			msg += " Reason: " + *p.FailureReason
		}
		return msg, model.NotifPaymentFailed
	}
}

func spaceLabel(space *model.Space, id uint64) string {
	if space != nil && space.Title != "" {
		return fmt.Sprintf("%q", space.Title)
	}
	return fmt.Sprintf("space #%d", id)
}

func slotLabel(s model.Slot) string {
	const layout = "2006-01-02 15:04 MST"
	return s.Start.UTC().Format(layout) + " to " + s.End.UTC().Format(layout)
}
