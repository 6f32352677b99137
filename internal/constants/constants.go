package constants

import "time"

// Subscription statuses
const (
	StatusTrial          = "trial"
	StatusPendingPayment = "pending_payment"
	StatusActive         = "active"
	StatusGrace          = "grace"
	StatusExpired        = "expired"
)

// Payment statuses
const (
	PaymentStatusPending   = "pending"
	PaymentStatusCompleted = "completed"
	PaymentStatusFailed    = "failed"
)

// Lifecycle defaults
const (
	// DefaultGraceDays is the grace window after expires_at.
	DefaultGraceDays = 7
	// DefaultCurrency is the only settlement currency BCL.my pays out in.
	DefaultCurrency = "MYR"
	// DefaultAmountTolerance absorbs gateway rounding (50 sen).
	DefaultAmountTolerance = "0.50"
)

// Webhook rate-limit defaults
const (
	// DefaultIPMaxRequests per DefaultIPWindow, keyed by client IP.
	DefaultIPMaxRequests = 10
	DefaultIPWindow      = time.Minute
	// DefaultOrderMaxRequests per DefaultOrderWindow, keyed by order number.
	DefaultOrderMaxRequests = 5
	DefaultOrderWindow      = time.Hour
)

// Sweeper
const (
	// SweepLockKey guards a sweep run across sweeper instances.
	SweepLockKey = "subscription_sweep_lock"
	// SweepLockExpiration bounds a stuck lock holder.
	SweepLockExpiration = 10 * time.Minute
	// SweepLockRetries is 1: if the lock is busy another instance is sweeping.
	SweepLockRetries = 1
	// DefaultSweepSchedule runs the sweep hourly (day-granularity windows).
	DefaultSweepSchedule = "0 0 * * * *"
)

// Notification dispatch
const (
	// NotifyTimeout bounds fire-and-forget alert/email delivery.
	NotifyTimeout = 10 * time.Second
)
