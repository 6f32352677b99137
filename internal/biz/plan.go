package biz

import (
	"context"
	"time"
)

// Plan is immutable reference data, read-only to this core.
type Plan struct {
	ID             string
	Name           string
	DurationMonths int
}

// PlanRepo looks up plans. Get returns (nil, nil) when no plan matches.
type PlanRepo interface {
	Get(ctx context.Context, id string) (*Plan, error)
}

// planMonths defaults a missing or malformed plan duration to one month.
func planMonths(plan *Plan) int {
	if plan == nil || plan.DurationMonths < 1 {
		return 1
	}
	return plan.DurationMonths
}

// expiryFrom computes a subscription expiry using calendar months, not
// fixed day counts.
func expiryFrom(start time.Time, months int) time.Time {
	return start.AddDate(0, months, 0)
}
