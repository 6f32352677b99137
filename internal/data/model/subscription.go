package model

import "time"

// Subscription maps the subscriptions table.
type Subscription struct {
	ID               string     `gorm:"primaryKey;column:subscription_id;size:36"`
	UserID           string     `gorm:"column:user_id;size:36;index"`
	PlanID           string     `gorm:"column:plan_id;size:36"`
	Status           string     `gorm:"column:status;size:20;index"`
	StartedAt        *time.Time `gorm:"column:started_at"`
	ExpiresAt        *time.Time `gorm:"column:expires_at"`
	GraceUntil       *time.Time `gorm:"column:grace_until"`
	TrialEndsAt      *time.Time `gorm:"column:trial_ends_at"`
	PaymentStatus    string     `gorm:"column:payment_status;size:20"`
	PaymentReference string     `gorm:"column:payment_reference;size:64;index"`
	AutoRenew        bool       `gorm:"column:auto_renew;default:true"`
	GraceEmailSent   bool       `gorm:"column:grace_email_sent;default:false"`
	Notes            string     `gorm:"column:notes"`
	CreatedAt        time.Time  `gorm:"column:created_at"`
	UpdatedAt        time.Time  `gorm:"column:updated_at"`
}

func (Subscription) TableName() string { return "subscriptions" }
