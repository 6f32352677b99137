package biz

import (
	"context"
	"time"

	"github.com/bnidigitalmy/pocketbizz-billing-service/internal/conf"
	"github.com/bnidigitalmy/pocketbizz-billing-service/internal/constants"

	"github.com/go-kratos/kratos/v2/log"
)

// sweepStatuses are the non-terminal states the sweeper inspects.
var sweepStatuses = []string{
	constants.StatusTrial,
	constants.StatusActive,
	constants.StatusGrace,
	constants.StatusPendingPayment,
}

// SweepResult counts the transitions one sweep applied, per category.
type SweepResult struct {
	Processed    int `json:"processed"`
	Activated    int `json:"activated"`
	MovedToGrace int `json:"moved_to_grace"`
	Expired      int `json:"expired"`
	TrialExpired int `json:"trial_expired"`
}

// LifecycleUsecase advances purely time-triggered subscription transitions:
//
//	trial           → expired  (trial_ends_at passed)
//	pending_payment → active   (payment completed, start date reached)
//	active          → grace    (expires_at passed)
//	grace           → expired  (grace_until passed)
//
// Every transition is a conditional write against the row's current
// persisted status, so the sweep is idempotent and safe to run concurrently
// with itself or with webhook processing.
type LifecycleUsecase struct {
	subRepo  SubscriptionRepo
	planRepo PlanRepo
	identity IdentityClient
	notifier *Notifier
	log      *log.Helper

	graceDays int
}

// NewLifecycleUsecase creates the lifecycle usecase.
func NewLifecycleUsecase(
	subRepo SubscriptionRepo,
	planRepo PlanRepo,
	identity IdentityClient,
	notifier *Notifier,
	c *conf.Bootstrap,
	logger log.Logger,
) *LifecycleUsecase {
	uc := &LifecycleUsecase{
		subRepo:   subRepo,
		planRepo:  planRepo,
		identity:  identity,
		notifier:  notifier,
		log:       log.NewHelper(logger),
		graceDays: constants.DefaultGraceDays,
	}
	if c != nil && c.Subscription != nil && c.Subscription.GraceDays > 0 {
		uc.graceDays = c.Subscription.GraceDays
	}
	return uc
}

// Sweep reads every subscription in a non-terminal state and applies the
// time-driven rules row by row.
func (uc *LifecycleUsecase) Sweep(ctx context.Context) (*SweepResult, error) {
	subs, err := uc.subRepo.ListInStatuses(ctx, sweepStatuses)
	if err != nil {
		uc.log.Errorf("Failed to list subscriptions for sweep: %v", err)
		return nil, err
	}

	result := &SweepResult{}
	now := time.Now().UTC()
	for _, sub := range subs {
		if err := uc.sweepOne(ctx, now, sub, result); err != nil {
			// One bad row must not stall the rest of the sweep.
			uc.log.Errorf("Sweep failed for subscription %s: %v", sub.ID, err)
		}
	}

	uc.log.Infof("Sweep done: processed=%d activated=%d grace=%d expired=%d trial_expired=%d",
		result.Processed, result.Activated, result.MovedToGrace, result.Expired, result.TrialExpired)
	return result, nil
}

func (uc *LifecycleUsecase) sweepOne(ctx context.Context, now time.Time, sub *Subscription, result *SweepResult) error {
	switch sub.Status {
	case constants.StatusTrial:
		// trial_ends_at governs trial expiry; expires_at is the fallback
		// for rows created before the column existed.
		trialEnd := sub.TrialEndsAt
		if trialEnd == nil {
			trialEnd = sub.ExpiresAt
		}
		if trialEnd == nil || !now.After(*trialEnd) {
			return nil
		}
		applied, err := uc.subRepo.TransitionToExpired(ctx, sub.ID, constants.StatusTrial)
		if err != nil {
			return err
		}
		if applied {
			result.TrialExpired++
			result.Processed++
		}

	case constants.StatusPendingPayment:
		if sub.PaymentStatus != constants.PaymentStatusCompleted || sub.StartedAt == nil || now.Before(*sub.StartedAt) {
			return nil
		}
		plan, err := uc.planRepo.Get(ctx, sub.PlanID)
		if err != nil {
			return err
		}
		expiresAt := expiryFrom(*sub.StartedAt, planMonths(plan))
		graceUntil := expiresAt.AddDate(0, 0, uc.graceDays)
		applied, err := uc.subRepo.TransitionToActive(ctx, sub.ID, *sub.StartedAt, expiresAt, graceUntil)
		if err != nil {
			return err
		}
		if applied {
			result.Activated++
			result.Processed++
		}

	case constants.StatusActive:
		if sub.ExpiresAt == nil || !now.After(*sub.ExpiresAt) {
			return nil
		}
		graceUntil := sub.ExpiresAt.AddDate(0, 0, uc.graceDays)
		if sub.GraceUntil != nil {
			graceUntil = *sub.GraceUntil
		}
		applied, err := uc.subRepo.TransitionToGrace(ctx, sub.ID, graceUntil)
		if err != nil {
			return err
		}
		if !applied {
			return nil
		}
		if !sub.GraceEmailSent {
			uc.sendGraceEmail(ctx, sub, graceUntil)
		}
		result.MovedToGrace++
		result.Processed++

	case constants.StatusGrace:
		if sub.GraceUntil == nil || !now.After(*sub.GraceUntil) {
			return nil
		}
		applied, err := uc.subRepo.TransitionToExpired(ctx, sub.ID, constants.StatusGrace)
		if err != nil {
			return err
		}
		if applied {
			result.Expired++
			result.Processed++
		}
	}
	return nil
}

// sendGraceEmail delivers the one grace-period email. The guard is set
// regardless of delivery outcome: billing state is at-least-once, but
// notifications are deliberately at-most-once to prevent retry spam.
func (uc *LifecycleUsecase) sendGraceEmail(ctx context.Context, sub *Subscription, graceUntil time.Time) {
	if user, err := uc.identity.GetUser(ctx, sub.UserID); err == nil && user != nil && user.Email != "" {
		uc.notifier.SendGraceEmail(user.Email, graceUntil)
	} else if err != nil {
		uc.log.Errorf("Failed to resolve user %s for grace email: %v", sub.UserID, err)
	}
	if err := uc.subRepo.SetGraceEmailSent(ctx, sub.ID); err != nil {
		uc.log.Errorf("Failed to set grace_email_sent on %s: %v", sub.ID, err)
	}
}
