package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment maps the subscription_payments table.
type Payment struct {
	ID                   string          `gorm:"primaryKey;column:payment_id;size:36"`
	SubscriptionID       string          `gorm:"column:subscription_id;size:36;index"`
	UserID               string          `gorm:"column:user_id;size:36;index"`
	Amount               decimal.Decimal `gorm:"column:amount;type:decimal(10,2)"`
	Status               string          `gorm:"column:status;size:20"`
	PaymentReference     string          `gorm:"column:payment_reference;size:64;index"`
	GatewayTransactionID string          `gorm:"column:gateway_transaction_id;size:64"`
	PaidAt               *time.Time      `gorm:"column:paid_at"`
	FailureReason        string          `gorm:"column:failure_reason"`
	CreatedAt            time.Time       `gorm:"column:created_at"`
	UpdatedAt            time.Time       `gorm:"column:updated_at"`
}

func (Payment) TableName() string { return "subscription_payments" }
