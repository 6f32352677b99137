package biz

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Payment is one charge attempt against a subscription. Once completed the
// record is immutable to further webhook-driven mutation; that is the
// idempotency boundary for at-least-once delivery.
type Payment struct {
	ID                   string
	SubscriptionID       string
	UserID               string
	Amount               decimal.Decimal
	Status               string // pending, completed, failed
	PaymentReference     string
	GatewayTransactionID string
	PaidAt               *time.Time
	FailureReason        string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// PaymentRepo is the payments persistence interface. Lookups return
// (nil, nil) when no row matches.
type PaymentRepo interface {
	GetByReference(ctx context.Context, reference string) (*Payment, error)
	// LatestPendingByUser finds the newest pending payment for a user; the
	// matcher fallback only ever attaches to pending rows.
	LatestPendingByUser(ctx context.Context, userID string) (*Payment, error)
	// RebindReference stamps the gateway order number onto a payment matched
	// by payer identity.
	RebindReference(ctx context.Context, id, reference string) error
	// RebindSubscription repoints a payment at the subscription row that was
	// extended instead of the deleted pending one.
	RebindSubscription(ctx context.Context, id, subscriptionID string) error
	// MarkCompleted finalizes a payment with gateway data. It must not touch
	// rows already completed.
	MarkCompleted(ctx context.Context, id string, paidAt time.Time, gatewayTxnID, reference, note string, amount decimal.Decimal) error
	MarkFailed(ctx context.Context, id, reason string) error
}
