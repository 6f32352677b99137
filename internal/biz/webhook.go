package biz

import (
	"context"
	"strings"
	"time"

	"github.com/bnidigitalmy/pocketbizz-billing-service/internal/conf"
	"github.com/bnidigitalmy/pocketbizz-billing-service/internal/constants"
	"github.com/bnidigitalmy/pocketbizz-billing-service/internal/errors"
	"github.com/bnidigitalmy/pocketbizz-billing-service/internal/gateway"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/shopspring/decimal"
)

// Webhook outcomes. Every outcome is acknowledged with 200 so the gateway
// stops redelivering; the distinction is operational.
const (
	// OutcomeIgnored acknowledges an event this system has no record of.
	OutcomeIgnored = "ignored"
	// OutcomeDuplicate acknowledges a replay of an already-completed payment.
	OutcomeDuplicate = "duplicate"
	// OutcomeActivated means a new subscription went active.
	OutcomeActivated = "activated"
	// OutcomeExtended means an existing active subscription was extended.
	OutcomeExtended = "extended"
	// OutcomeMarkedFailed means the payment was recorded as failed.
	OutcomeMarkedFailed = "marked_failed"
)

// WebhookResult reports what processing an event did.
type WebhookResult struct {
	Outcome        string
	PaymentID      string
	SubscriptionID string
	Detail         string
}

// WebhookUsecase runs the webhook pipeline: match the payment, reconcile
// the amount, then drive the subscription state machine. Delivery is
// at-least-once, so every step must tolerate duplicates and reordering.
type WebhookUsecase struct {
	subRepo  SubscriptionRepo
	payRepo  PaymentRepo
	planRepo PlanRepo
	identity IdentityClient
	notifier *Notifier
	tm       Transaction
	log      *log.Helper

	currency  string
	tolerance decimal.Decimal
	graceDays int
}

// NewWebhookUsecase creates the webhook usecase.
func NewWebhookUsecase(
	subRepo SubscriptionRepo,
	payRepo PaymentRepo,
	planRepo PlanRepo,
	identity IdentityClient,
	notifier *Notifier,
	tm Transaction,
	c *conf.Bootstrap,
	logger log.Logger,
) *WebhookUsecase {
	uc := &WebhookUsecase{
		subRepo:   subRepo,
		payRepo:   payRepo,
		planRepo:  planRepo,
		identity:  identity,
		notifier:  notifier,
		tm:        tm,
		log:       log.NewHelper(logger),
		currency:  constants.DefaultCurrency,
		graceDays: constants.DefaultGraceDays,
	}
	uc.tolerance, _ = decimal.NewFromString(constants.DefaultAmountTolerance)
	if c != nil && c.Gateway != nil {
		if c.Gateway.Currency != "" {
			uc.currency = strings.ToUpper(c.Gateway.Currency)
		}
		if t, err := decimal.NewFromString(c.Gateway.AmountTolerance); err == nil && t.IsPositive() {
			uc.tolerance = t
		}
	}
	if c != nil && c.Subscription != nil && c.Subscription.GraceDays > 0 {
		uc.graceDays = c.Subscription.GraceDays
	}
	return uc
}

// ProcessNotification handles one verified webhook event.
//
// Rejected-input conditions return 4xx-class errors and never mutate state.
// Events this system has no record of are acknowledged as no-ops so the
// gateway stops retrying. Store failures return 500-class errors so the
// gateway's retry can recover them.
func (uc *WebhookUsecase) ProcessNotification(ctx context.Context, n *gateway.Notification) (*WebhookResult, error) {
	orderNumber := strings.TrimSpace(n.OrderNumber)
	if orderNumber == "" {
		uc.log.Warnf("Missing order_number in payload")
		return &WebhookResult{Outcome: OutcomeIgnored, Detail: "missing order_number"}, nil
	}

	if err := uc.checkCurrency(n); err != nil {
		return nil, err
	}

	payment, err := uc.matchPayment(ctx, n, orderNumber)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		uc.log.Warnf("No payment found for order_number %s", orderNumber)
		return &WebhookResult{Outcome: OutcomeIgnored, Detail: "no payment found"}, nil
	}

	// Idempotency gate: a completed payment is immutable. Checked before
	// any mutation so a replay is a pure no-op.
	if payment.Status == constants.PaymentStatusCompleted {
		uc.log.Infof("Payment %s already processed, acknowledging duplicate", payment.ID)
		return &WebhookResult{Outcome: OutcomeDuplicate, PaymentID: payment.ID}, nil
	}

	if !n.IsSuccess() {
		return uc.processFailure(ctx, n, payment)
	}
	return uc.processSuccess(ctx, n, payment, orderNumber)
}

// matchPayment resolves the event to exactly one payment record: by
// reference first, then by payer email against the user's latest pending
// payment. The fallback exists because some gateway integrations do not
// echo the originating reference; it never attaches to a settled record.
func (uc *WebhookUsecase) matchPayment(ctx context.Context, n *gateway.Notification, orderNumber string) (*Payment, error) {
	payment, err := uc.payRepo.GetByReference(ctx, orderNumber)
	if err != nil {
		uc.log.Errorf("Failed to fetch payment by reference %s: %v", orderNumber, err)
		return nil, errors.StoreFailure("failed to fetch payment")
	}
	if payment != nil || n.PayerEmail == "" {
		return payment, nil
	}

	email := strings.ToLower(strings.TrimSpace(n.PayerEmail))
	uc.log.Infof("Payment not found by order_number %s, trying payer email %s", orderNumber, email)

	user, err := uc.identity.GetUserByEmail(ctx, email)
	if err != nil {
		// Identity lookup is a fallback path; an unreachable identity
		// provider degrades to "no match" rather than a retryable error.
		uc.log.Errorf("Identity lookup failed for %s: %v", email, err)
		return nil, nil
	}
	if user == nil {
		return nil, nil
	}

	pending, err := uc.payRepo.LatestPendingByUser(ctx, user.ID)
	if err != nil {
		uc.log.Errorf("Failed to find pending payment for user %s: %v", user.ID, err)
		return nil, nil
	}
	if pending == nil {
		return nil, nil
	}

	if err := uc.payRepo.RebindReference(ctx, pending.ID, orderNumber); err != nil {
		uc.log.Errorf("Failed to rebind payment_reference on %s: %v", pending.ID, err)
		return nil, errors.StoreFailure("failed to rebind payment reference")
	}
	pending.PaymentReference = orderNumber
	uc.log.Infof("Matched pending payment %s for user %s via payer email", pending.ID, user.ID)
	return pending, nil
}

func (uc *WebhookUsecase) processSuccess(ctx context.Context, n *gateway.Notification, payment *Payment, orderNumber string) (*WebhookResult, error) {
	sub, err := uc.subRepo.Get(ctx, payment.SubscriptionID)
	if err != nil {
		uc.log.Errorf("Failed to fetch subscription %s: %v", payment.SubscriptionID, err)
		return nil, errors.StoreFailure("failed to fetch subscription")
	}
	if sub == nil {
		uc.log.Errorf("No subscription found for payment %s", payment.ID)
		return &WebhookResult{Outcome: OutcomeIgnored, PaymentID: payment.ID, Detail: "no subscription found"}, nil
	}

	// Reconcile before any mutation: a 400 rejection must leave no
	// partial state behind.
	rec, err := uc.reconcileAmount(n, payment, sub)
	if err != nil {
		return nil, err
	}

	plan, err := uc.planRepo.Get(ctx, sub.PlanID)
	if err != nil {
		uc.log.Errorf("Failed to fetch plan %s: %v", sub.PlanID, err)
		return nil, errors.StoreFailure("failed to fetch plan")
	}
	months := planMonths(plan)

	active, err := uc.subRepo.GetActiveByUser(ctx, sub.UserID, sub.ID)
	if err != nil {
		uc.log.Errorf("Failed to fetch active subscription for user %s: %v", sub.UserID, err)
		return nil, errors.StoreFailure("failed to fetch active subscription")
	}

	now := time.Now().UTC()
	expiresAt, isExtend := resolveExpiry(now, sub, active, months)
	graceUntil := expiresAt.AddDate(0, 0, uc.graceDays)

	result := &WebhookResult{PaymentID: payment.ID}
	err = uc.tm.Exec(ctx, func(ctx context.Context) error {
		if isExtend {
			// Extend: push out the existing active row (keeping its
			// auto_renew), repoint the payment at it, drop the now
			// redundant pending row.
			if err := uc.subRepo.Extend(ctx, active.ID, expiresAt, graceUntil, active.AutoRenew, orderNumber); err != nil {
				return err
			}
			if err := uc.payRepo.RebindSubscription(ctx, payment.ID, active.ID); err != nil {
				return err
			}
			if err := uc.subRepo.Delete(ctx, sub.ID); err != nil {
				return err
			}
			result.Outcome = OutcomeExtended
			result.SubscriptionID = active.ID
		} else {
			// New subscription: a user holds at most one active row, so
			// expire siblings before activating.
			if _, err := uc.subRepo.ExpireSiblings(ctx, sub.UserID, sub.ID); err != nil {
				return err
			}
			if err := uc.subRepo.Activate(ctx, sub.ID, now, expiresAt, graceUntil, orderNumber); err != nil {
				return err
			}
			result.Outcome = OutcomeActivated
			result.SubscriptionID = sub.ID
		}
		return uc.payRepo.MarkCompleted(ctx, payment.ID, now, n.GatewayTransactionID(), orderNumber, rec.Note, rec.FinalAmount)
	})
	if err != nil {
		uc.log.Errorf("Failed to apply success transition for payment %s: %v", payment.ID, err)
		return nil, errors.StoreFailure("failed to apply subscription transition")
	}

	uc.log.Infof("Payment %s completed, subscription %s %s until %s",
		payment.ID, result.SubscriptionID, result.Outcome, expiresAt.Format(time.RFC3339))
	uc.alertUpgrade(ctx, n, payment, sub, plan, rec.FinalAmount, orderNumber)
	return result, nil
}

func (uc *WebhookUsecase) processFailure(ctx context.Context, n *gateway.Notification, payment *Payment) (*WebhookResult, error) {
	reason := strings.TrimSpace(n.StatusDescription)
	if reason == "" {
		reason = "Payment failed"
	}

	// No idempotency gate here: replays of a failure event re-apply the
	// same terminal field values.
	err := uc.tm.Exec(ctx, func(ctx context.Context) error {
		if err := uc.payRepo.MarkFailed(ctx, payment.ID, reason); err != nil {
			return err
		}
		return uc.subRepo.MarkPaymentFailed(ctx, payment.SubscriptionID)
	})
	if err != nil {
		uc.log.Errorf("Failed to mark payment %s failed: %v", payment.ID, err)
		return nil, errors.StoreFailure("failed to mark payment failed")
	}

	uc.log.Infof("Payment %s marked failed: %s", payment.ID, reason)
	uc.notifier.Alert("payment_failed", map[string]interface{}{
		"user_email":     uc.userEmail(ctx, payment.UserID, n.PayerEmail),
		"amount":         n.Amount,
		"currency":       uc.currency,
		"order_id":       payment.PaymentReference,
		"failure_reason": reason,
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
	})
	return &WebhookResult{Outcome: OutcomeMarkedFailed, PaymentID: payment.ID, Detail: reason}, nil
}

// resolveExpiry decides extend-vs-new and the resulting expiry.
//
// The heuristic compares expiry timestamps only: when the user already has
// a distinct active subscription and the pending row's checkout-computed
// expiry lands after it, the payment extends the active row. There is no
// explicit renewal flag on the payment, so this comparison must be
// preserved as-is.
func resolveExpiry(now time.Time, sub, active *Subscription, months int) (time.Time, bool) {
	if active != nil && sub.ExpiresAt != nil && active.ExpiresAt != nil {
		if sub.ExpiresAt.After(*active.ExpiresAt) {
			return *sub.ExpiresAt, true
		}
		return expiryFrom(now, months), false
	}
	if sub.ExpiresAt != nil {
		return *sub.ExpiresAt, false
	}
	return expiryFrom(now, months), false
}

func (uc *WebhookUsecase) alertUpgrade(ctx context.Context, n *gateway.Notification, payment *Payment, sub *Subscription, plan *Plan, amount decimal.Decimal, orderNumber string) {
	planName := "Pro"
	if plan != nil && plan.Name != "" {
		planName = plan.Name
	}
	userName := n.PayerName
	if userName == "" {
		userName = "N/A"
	}
	uc.notifier.Alert("upgrade_pro", map[string]interface{}{
		"user_email":      uc.userEmail(ctx, payment.UserID, n.PayerEmail),
		"user_name":       userName,
		"plan_name":       planName,
		"duration_months": planMonths(plan),
		"amount":          amount.StringFixed(2),
		"currency":        uc.currency,
		"order_id":        orderNumber,
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
	})
}

// userEmail enriches notifications with the user's registered email,
// falling back to the payer email from the payload.
func (uc *WebhookUsecase) userEmail(ctx context.Context, userID, payerEmail string) string {
	if user, err := uc.identity.GetUser(ctx, userID); err == nil && user != nil && user.Email != "" {
		return user.Email
	}
	if payerEmail != "" {
		return payerEmail
	}
	return "Unknown"
}
