package biz

import (
	"context"
	"strings"
	"time"
)

// Subscription is a user's subscription row. It is mutated exclusively by
// the lifecycle transitions in this package; expired is terminal and a
// re-subscription creates a new row.
type Subscription struct {
	ID               string
	UserID           string
	PlanID           string
	Status           string // trial, pending_payment, active, grace, expired
	StartedAt        *time.Time
	ExpiresAt        *time.Time
	GraceUntil       *time.Time
	TrialEndsAt      *time.Time
	PaymentStatus    string // "", completed, failed
	PaymentReference string
	AutoRenew        bool
	GraceEmailSent   bool
	Notes            string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// IsProrated reports whether the checkout flagged this subscription as
// prorated, which exempts it from strict amount-tolerance rejection.
func (s *Subscription) IsProrated() bool {
	return strings.Contains(strings.ToLower(s.Notes), "prorated") ||
		strings.Contains(strings.ToLower(s.PaymentReference), "prorated")
}

// SubscriptionRepo is the subscriptions persistence interface. Lookups
// return (nil, nil) when no row matches. The Transition* methods are
// conditional on the row still holding the expected status and report
// whether the write landed, so concurrent evaluators converge instead of
// double-applying a transition.
type SubscriptionRepo interface {
	Get(ctx context.Context, id string) (*Subscription, error)
	GetActiveByUser(ctx context.Context, userID, exceptID string) (*Subscription, error)
	ListInStatuses(ctx context.Context, statuses []string) ([]*Subscription, error)

	// Activate transitions a row to active with fresh lifecycle timestamps.
	Activate(ctx context.Context, id string, startedAt, expiresAt, graceUntil time.Time, reference string) error
	// Extend pushes out an active row's expiry in place, preserving auto_renew.
	Extend(ctx context.Context, id string, expiresAt, graceUntil time.Time, autoRenew bool, reference string) error
	// ExpireSiblings marks every other trial/active row for the user expired.
	ExpireSiblings(ctx context.Context, userID, exceptID string) (int64, error)
	Delete(ctx context.Context, id string) error
	// MarkPaymentFailed records a failed charge and returns the row to
	// pending_payment so the user can retry checkout.
	MarkPaymentFailed(ctx context.Context, id string) error

	TransitionToExpired(ctx context.Context, id, fromStatus string) (bool, error)
	TransitionToGrace(ctx context.Context, id string, graceUntil time.Time) (bool, error)
	TransitionToActive(ctx context.Context, id string, startedAt, expiresAt, graceUntil time.Time) (bool, error)
	SetGraceEmailSent(ctx context.Context, id string) error
}

// User is the slice of the identity provider's record this core needs.
type User struct {
	ID    string
	Email string
	Name  string
}

// IdentityClient looks up users in the external identity provider.
// Lookups return (nil, nil) for unknown users.
type IdentityClient interface {
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	GetUser(ctx context.Context, id string) (*User, error)
}
