package data

import (
	"context"
	"errors"
	"time"

	"github.com/bnidigitalmy/pocketbizz-billing-service/internal/biz"
	"github.com/bnidigitalmy/pocketbizz-billing-service/internal/constants"
	"github.com/bnidigitalmy/pocketbizz-billing-service/internal/data/model"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// paymentRepo implements biz.PaymentRepo on gorm.
type paymentRepo struct {
	data *Data
	log  *log.Helper
}

// NewPaymentRepo creates the payment repository.
func NewPaymentRepo(data *Data, logger log.Logger) biz.PaymentRepo {
	return &paymentRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

// GetByReference fetches a payment by gateway order number.
func (r *paymentRepo) GetByReference(ctx context.Context, reference string) (*biz.Payment, error) {
	var m model.Payment
	err := r.data.DB(ctx).Where("payment_reference = ?", reference).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		r.log.Errorf("Failed to get payment by reference %s: %v", reference, err)
		return nil, err
	}
	return toBizPayment(&m), nil
}

// LatestPendingByUser fetches the user's newest pending payment.
func (r *paymentRepo) LatestPendingByUser(ctx context.Context, userID string) (*biz.Payment, error) {
	var m model.Payment
	err := r.data.DB(ctx).
		Where("user_id = ? AND status = ?", userID, constants.PaymentStatusPending).
		Order("created_at DESC").
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		r.log.Errorf("Failed to get pending payment for user %s: %v", userID, err)
		return nil, err
	}
	return toBizPayment(&m), nil
}

// RebindReference stamps the gateway order number onto a payment.
func (r *paymentRepo) RebindReference(ctx context.Context, id, reference string) error {
	return r.data.DB(ctx).Model(&model.Payment{}).
		Where("payment_id = ?", id).
		Updates(map[string]interface{}{
			"payment_reference": reference,
			"updated_at":        time.Now().UTC(),
		}).Error
}

// RebindSubscription repoints a payment at another subscription row.
func (r *paymentRepo) RebindSubscription(ctx context.Context, id, subscriptionID string) error {
	return r.data.DB(ctx).Model(&model.Payment{}).
		Where("payment_id = ?", id).
		Updates(map[string]interface{}{
			"subscription_id": subscriptionID,
			"updated_at":      time.Now().UTC(),
		}).Error
}

// MarkCompleted finalizes a payment with gateway data. Conditional on the
// row not being completed already, so concurrent deliveries converge.
func (r *paymentRepo) MarkCompleted(ctx context.Context, id string, paidAt time.Time, gatewayTxnID, reference, note string, amount decimal.Decimal) error {
	return r.data.DB(ctx).Model(&model.Payment{}).
		Where("payment_id = ? AND status <> ?", id, constants.PaymentStatusCompleted).
		Updates(map[string]interface{}{
			"status":                 constants.PaymentStatusCompleted,
			"paid_at":                paidAt,
			"gateway_transaction_id": gatewayTxnID,
			"payment_reference":      reference,
			"failure_reason":         note,
			"amount":                 amount,
			"updated_at":             time.Now().UTC(),
		}).Error
}

// MarkFailed records a failed charge. Completed rows are never touched.
func (r *paymentRepo) MarkFailed(ctx context.Context, id, reason string) error {
	return r.data.DB(ctx).Model(&model.Payment{}).
		Where("payment_id = ? AND status <> ?", id, constants.PaymentStatusCompleted).
		Updates(map[string]interface{}{
			"status":         constants.PaymentStatusFailed,
			"failure_reason": reason,
			"updated_at":     time.Now().UTC(),
		}).Error
}

func toBizPayment(m *model.Payment) *biz.Payment {
	return &biz.Payment{
		ID:                   m.ID,
		SubscriptionID:       m.SubscriptionID,
		UserID:               m.UserID,
		Amount:               m.Amount,
		Status:               m.Status,
		PaymentReference:     m.PaymentReference,
		GatewayTransactionID: m.GatewayTransactionID,
		PaidAt:               m.PaidAt,
		FailureReason:        m.FailureReason,
		CreatedAt:            m.CreatedAt,
		UpdatedAt:            m.UpdatedAt,
	}
}
