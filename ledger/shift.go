package ledger

import (
	"context"
	"fmt"
)

// ActiveShift returns today's shift when it is active, or nil.
func ActiveShift(ctx context.Context, s ShiftStore, cal *Calendar) (*Shift, error) {
	today := cal.Today()
	shift, err := s.GetShiftByDate(ctx, today)
	if err != nil {
		return nil, fmt.Errorf("load shift %s: %w", today, err)
	}
	if shift == nil || !shift.IsActiveOn(today) {
		return nil, nil
	}
	return shift, nil
}

// RequireActiveShift is ActiveShift turning "none" into ErrNoActiveShift.
func RequireActiveShift(ctx context.Context, s ShiftStore, cal *Calendar) (*Shift, error) {
	shift, err := ActiveShift(ctx, s, cal)
	if err != nil {
		return nil, err
	}
	if shift == nil {
		return nil, ErrNoActiveShift
	}
	return shift, nil
}
