package data

import (
	"context"
	"errors"
	"time"

	"github.com/bnidigitalmy/pocketbizz-billing-service/internal/biz"
	"github.com/bnidigitalmy/pocketbizz-billing-service/internal/constants"
	"github.com/bnidigitalmy/pocketbizz-billing-service/internal/data/model"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"
)

// subscriptionRepo implements biz.SubscriptionRepo on gorm.
type subscriptionRepo struct {
	data *Data
	log  *log.Helper
}

// NewSubscriptionRepo creates the subscription repository.
func NewSubscriptionRepo(data *Data, logger log.Logger) biz.SubscriptionRepo {
	return &subscriptionRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

// Get fetches a subscription by id.
func (r *subscriptionRepo) Get(ctx context.Context, id string) (*biz.Subscription, error) {
	var m model.Subscription
	err := r.data.DB(ctx).Where("subscription_id = ?", id).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		r.log.Errorf("Failed to get subscription %s: %v", id, err)
		return nil, err
	}
	return toBizSubscription(&m), nil
}

// GetActiveByUser fetches the user's active subscription, excluding one row.
func (r *subscriptionRepo) GetActiveByUser(ctx context.Context, userID, exceptID string) (*biz.Subscription, error) {
	var m model.Subscription
	err := r.data.DB(ctx).
		Where("user_id = ? AND status = ? AND subscription_id <> ?", userID, constants.StatusActive, exceptID).
		Order("expires_at DESC").
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		r.log.Errorf("Failed to get active subscription for user %s: %v", userID, err)
		return nil, err
	}
	return toBizSubscription(&m), nil
}

// ListInStatuses fetches every subscription in the given states.
func (r *subscriptionRepo) ListInStatuses(ctx context.Context, statuses []string) ([]*biz.Subscription, error) {
	var models []model.Subscription
	if err := r.data.DB(ctx).Where("status IN ?", statuses).Find(&models).Error; err != nil {
		r.log.Errorf("Failed to list subscriptions: %v", err)
		return nil, err
	}

	subs := make([]*biz.Subscription, len(models))
	for i := range models {
		subs[i] = toBizSubscription(&models[i])
	}
	return subs, nil
}

// Activate transitions a row to active with fresh lifecycle timestamps.
func (r *subscriptionRepo) Activate(ctx context.Context, id string, startedAt, expiresAt, graceUntil time.Time, reference string) error {
	now := time.Now().UTC()
	return r.data.DB(ctx).Model(&model.Subscription{}).
		Where("subscription_id = ?", id).
		Updates(map[string]interface{}{
			"status":            constants.StatusActive,
			"started_at":        startedAt,
			"expires_at":        expiresAt,
			"grace_until":       graceUntil,
			"payment_status":    constants.PaymentStatusCompleted,
			"payment_reference": reference,
			"updated_at":        now,
		}).Error
}

// Extend pushes out an active row's expiry in place.
func (r *subscriptionRepo) Extend(ctx context.Context, id string, expiresAt, graceUntil time.Time, autoRenew bool, reference string) error {
	now := time.Now().UTC()
	return r.data.DB(ctx).Model(&model.Subscription{}).
		Where("subscription_id = ?", id).
		Updates(map[string]interface{}{
			"expires_at":        expiresAt,
			"grace_until":       graceUntil,
			"payment_status":    constants.PaymentStatusCompleted,
			"payment_reference": reference,
			"auto_renew":        autoRenew,
			"updated_at":        now,
		}).Error
}

// ExpireSiblings marks every other trial/active row for the user expired.
func (r *subscriptionRepo) ExpireSiblings(ctx context.Context, userID, exceptID string) (int64, error) {
	result := r.data.DB(ctx).Model(&model.Subscription{}).
		Where("user_id = ? AND status IN ? AND subscription_id <> ?",
			userID, []string{constants.StatusTrial, constants.StatusActive}, exceptID).
		Updates(map[string]interface{}{
			"status":     constants.StatusExpired,
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		r.log.Errorf("Failed to expire siblings for user %s: %v", userID, result.Error)
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// Delete removes a redundant pending row after an extend.
func (r *subscriptionRepo) Delete(ctx context.Context, id string) error {
	return r.data.DB(ctx).Where("subscription_id = ?", id).Delete(&model.Subscription{}).Error
}

// MarkPaymentFailed records a failed charge and returns the row to
// pending_payment.
func (r *subscriptionRepo) MarkPaymentFailed(ctx context.Context, id string) error {
	return r.data.DB(ctx).Model(&model.Subscription{}).
		Where("subscription_id = ?", id).
		Updates(map[string]interface{}{
			"payment_status": constants.PaymentStatusFailed,
			"status":         constants.StatusPendingPayment,
			"updated_at":     time.Now().UTC(),
		}).Error
}

// TransitionToExpired conditionally expires a row still in fromStatus.
func (r *subscriptionRepo) TransitionToExpired(ctx context.Context, id, fromStatus string) (bool, error) {
	result := r.data.DB(ctx).Model(&model.Subscription{}).
		Where("subscription_id = ? AND status = ?", id, fromStatus).
		Updates(map[string]interface{}{
			"status":     constants.StatusExpired,
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// TransitionToGrace conditionally moves a still-active row into grace.
func (r *subscriptionRepo) TransitionToGrace(ctx context.Context, id string, graceUntil time.Time) (bool, error) {
	result := r.data.DB(ctx).Model(&model.Subscription{}).
		Where("subscription_id = ? AND status = ?", id, constants.StatusActive).
		Updates(map[string]interface{}{
			"status":      constants.StatusGrace,
			"grace_until": graceUntil,
			"updated_at":  time.Now().UTC(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// TransitionToActive conditionally activates a row still pending payment.
func (r *subscriptionRepo) TransitionToActive(ctx context.Context, id string, startedAt, expiresAt, graceUntil time.Time) (bool, error) {
	result := r.data.DB(ctx).Model(&model.Subscription{}).
		Where("subscription_id = ? AND status = ?", id, constants.StatusPendingPayment).
		Updates(map[string]interface{}{
			"status":      constants.StatusActive,
			"started_at":  startedAt,
			"expires_at":  expiresAt,
			"grace_until": graceUntil,
			"updated_at":  time.Now().UTC(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// SetGraceEmailSent flips the exactly-once notification guard.
func (r *subscriptionRepo) SetGraceEmailSent(ctx context.Context, id string) error {
	return r.data.DB(ctx).Model(&model.Subscription{}).
		Where("subscription_id = ?", id).
		Updates(map[string]interface{}{
			"grace_email_sent": true,
			"updated_at":       time.Now().UTC(),
		}).Error
}

func toBizSubscription(m *model.Subscription) *biz.Subscription {
	return &biz.Subscription{
		ID:               m.ID,
		UserID:           m.UserID,
		PlanID:           m.PlanID,
		Status:           m.Status,
		StartedAt:        m.StartedAt,
		ExpiresAt:        m.ExpiresAt,
		GraceUntil:       m.GraceUntil,
		TrialEndsAt:      m.TrialEndsAt,
		PaymentStatus:    m.PaymentStatus,
		PaymentReference: m.PaymentReference,
		AutoRenew:        m.AutoRenew,
		GraceEmailSent:   m.GraceEmailSent,
		Notes:            m.Notes,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}
