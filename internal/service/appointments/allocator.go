package appointments

import (
	"context"
	"time"

	"clinicdesk/internal/domain"
	"clinicdesk/internal/store"
)

// AllocateReference proposes the next reference number for the given
// appointment date. The sequence is one past the day's booking count or
// past the highest sequence already issued under the day's prefix,
// whichever is higher. The count alone is not enough: a mid-day delete
// or a reschedule that moved a booking to another day (references never
// change) leaves the count below a still-live suffix, and count+1 would
// keep proposing a taken number on every retry. A failed insert leaves
// a gap in the sequence, which is fine. Two racing allocations can
// still propose the same number; the store's unique constraint turns
// that into ErrDuplicateReference and the caller retries.
func AllocateReference(ctx context.Context, counter store.ReferenceCounter, date time.Time) (string, error) {
	day := domain.NormalizeDate(date)
	count, err := counter.CountOnDate(ctx, day)
	if err != nil {
		return "", err
	}
	maxIssued, err := counter.MaxIssuedSequence(ctx, day)
	if err != nil {
		return "", err
	}
	seq := count + 1
	if maxIssued >= seq {
		seq = maxIssued + 1
	}
	return domain.FormatReference(day, seq), nil
}
