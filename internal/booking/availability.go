package booking

import (
	"context"
	"fmt"

	"github.com/iliyamo/spacebook/internal/model"
)

// AvailabilityChecker decides whether a candidate slot collides with a
// live reservation of the same space.  Its answer is only authoritative
// when q is the transaction that also performs the insert and the space
// has been locked with Tx.LockSpace.
type AvailabilityChecker struct{}

// HasConflict returns true iff a PENDING or CONFIRMED reservation of
// spaceID, other than excludeID, satisfies existing.start < slot.End and
// existing.end > slot.Start.  Pass excludeID 0 to consider every row.
func (AvailabilityChecker) HasConflict(ctx context.Context, q ConflictQuerier, spaceID uint64, slot model.Slot, excludeID uint64) (bool, error) {
	if !slot.Valid() {
		return false, fmt.Errorf("%w: end time must be after start time", ErrInvalidState)
	}
	n, err := q.CountOverlapping(ctx, spaceID, slot, excludeID)
	if err != nil {
		return false, fmt.Errorf("count overlapping reservations: %w", err)
	}
	return n > 0, nil
}
