package biz

import (
	"context"
	"io"
	"sort"
	"time"

	"github.com/bnidigitalmy/pocketbizz-billing-service/internal/constants"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/shopspring/decimal"
)

// In-memory fakes for the persistence and collaborator seams. They apply the
// same conditional-write semantics as the real repositories so idempotency
// tests exercise the contract, not the storage engine.

func tp(t time.Time) *time.Time { return &t }

func myr(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

type fakeSubRepo struct {
	subs map[string]*Subscription
	err  error
}

func newFakeSubRepo(subs ...*Subscription) *fakeSubRepo {
	r := &fakeSubRepo{subs: map[string]*Subscription{}}
	for _, s := range subs {
		r.subs[s.ID] = s
	}
	return r
}

func (r *fakeSubRepo) Get(ctx context.Context, id string) (*Subscription, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.subs[id], nil
}

func (r *fakeSubRepo) GetActiveByUser(ctx context.Context, userID, exceptID string) (*Subscription, error) {
	if r.err != nil {
		return nil, r.err
	}
	var best *Subscription
	for _, s := range r.subs {
		if s.UserID != userID || s.Status != constants.StatusActive || s.ID == exceptID {
			continue
		}
		if best == nil || (s.ExpiresAt != nil && best.ExpiresAt != nil && s.ExpiresAt.After(*best.ExpiresAt)) {
			best = s
		}
	}
	return best, nil
}

func (r *fakeSubRepo) ListInStatuses(ctx context.Context, statuses []string) ([]*Subscription, error) {
	if r.err != nil {
		return nil, r.err
	}
	in := map[string]bool{}
	for _, s := range statuses {
		in[s] = true
	}
	var out []*Subscription
	for _, s := range r.subs {
		if in[s.Status] {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeSubRepo) Activate(ctx context.Context, id string, startedAt, expiresAt, graceUntil time.Time, reference string) error {
	s := r.subs[id]
	s.Status = constants.StatusActive
	s.StartedAt = tp(startedAt)
	s.ExpiresAt = tp(expiresAt)
	s.GraceUntil = tp(graceUntil)
	s.PaymentStatus = constants.PaymentStatusCompleted
	s.PaymentReference = reference
	return nil
}

func (r *fakeSubRepo) Extend(ctx context.Context, id string, expiresAt, graceUntil time.Time, autoRenew bool, reference string) error {
	s := r.subs[id]
	s.ExpiresAt = tp(expiresAt)
	s.GraceUntil = tp(graceUntil)
	s.PaymentStatus = constants.PaymentStatusCompleted
	s.PaymentReference = reference
	s.AutoRenew = autoRenew
	return nil
}

func (r *fakeSubRepo) ExpireSiblings(ctx context.Context, userID, exceptID string) (int64, error) {
	var n int64
	for _, s := range r.subs {
		if s.UserID == userID && s.ID != exceptID &&
			(s.Status == constants.StatusTrial || s.Status == constants.StatusActive) {
			s.Status = constants.StatusExpired
			n++
		}
	}
	return n, nil
}

func (r *fakeSubRepo) Delete(ctx context.Context, id string) error {
	delete(r.subs, id)
	return nil
}

func (r *fakeSubRepo) MarkPaymentFailed(ctx context.Context, id string) error {
	s := r.subs[id]
	s.PaymentStatus = constants.PaymentStatusFailed
	s.Status = constants.StatusPendingPayment
	return nil
}

func (r *fakeSubRepo) TransitionToExpired(ctx context.Context, id, fromStatus string) (bool, error) {
	s := r.subs[id]
	if s == nil || s.Status != fromStatus {
		return false, nil
	}
	s.Status = constants.StatusExpired
	return true, nil
}

func (r *fakeSubRepo) TransitionToGrace(ctx context.Context, id string, graceUntil time.Time) (bool, error) {
	s := r.subs[id]
	if s == nil || s.Status != constants.StatusActive {
		return false, nil
	}
	s.Status = constants.StatusGrace
	s.GraceUntil = tp(graceUntil)
	return true, nil
}

func (r *fakeSubRepo) TransitionToActive(ctx context.Context, id string, startedAt, expiresAt, graceUntil time.Time) (bool, error) {
	s := r.subs[id]
	if s == nil || s.Status != constants.StatusPendingPayment {
		return false, nil
	}
	s.Status = constants.StatusActive
	s.StartedAt = tp(startedAt)
	s.ExpiresAt = tp(expiresAt)
	s.GraceUntil = tp(graceUntil)
	return true, nil
}

func (r *fakeSubRepo) SetGraceEmailSent(ctx context.Context, id string) error {
	r.subs[id].GraceEmailSent = true
	return nil
}

type fakePayRepo struct {
	payments map[string]*Payment
	err      error
}

func newFakePayRepo(payments ...*Payment) *fakePayRepo {
	r := &fakePayRepo{payments: map[string]*Payment{}}
	for _, p := range payments {
		r.payments[p.ID] = p
	}
	return r
}

func (r *fakePayRepo) GetByReference(ctx context.Context, reference string) (*Payment, error) {
	if r.err != nil {
		return nil, r.err
	}
	for _, p := range r.payments {
		if p.PaymentReference == reference {
			return p, nil
		}
	}
	return nil, nil
}

func (r *fakePayRepo) LatestPendingByUser(ctx context.Context, userID string) (*Payment, error) {
	if r.err != nil {
		return nil, r.err
	}
	var latest *Payment
	for _, p := range r.payments {
		if p.UserID != userID || p.Status != constants.PaymentStatusPending {
			continue
		}
		if latest == nil || p.CreatedAt.After(latest.CreatedAt) {
			latest = p
		}
	}
	return latest, nil
}

func (r *fakePayRepo) RebindReference(ctx context.Context, id, reference string) error {
	r.payments[id].PaymentReference = reference
	return nil
}

func (r *fakePayRepo) RebindSubscription(ctx context.Context, id, subscriptionID string) error {
	r.payments[id].SubscriptionID = subscriptionID
	return nil
}

func (r *fakePayRepo) MarkCompleted(ctx context.Context, id string, paidAt time.Time, gatewayTxnID, reference, note string, amount decimal.Decimal) error {
	p := r.payments[id]
	if p.Status == constants.PaymentStatusCompleted {
		return nil
	}
	p.Status = constants.PaymentStatusCompleted
	p.PaidAt = tp(paidAt)
	p.GatewayTransactionID = gatewayTxnID
	p.PaymentReference = reference
	p.FailureReason = note
	p.Amount = amount
	return nil
}

func (r *fakePayRepo) MarkFailed(ctx context.Context, id, reason string) error {
	p := r.payments[id]
	if p.Status == constants.PaymentStatusCompleted {
		return nil
	}
	p.Status = constants.PaymentStatusFailed
	p.FailureReason = reason
	return nil
}

type fakePlanRepo struct {
	plans map[string]*Plan
}

func newFakePlanRepo(plans ...*Plan) *fakePlanRepo {
	r := &fakePlanRepo{plans: map[string]*Plan{}}
	for _, p := range plans {
		r.plans[p.ID] = p
	}
	return r
}

func (r *fakePlanRepo) Get(ctx context.Context, id string) (*Plan, error) {
	return r.plans[id], nil
}

type fakeIdentity struct {
	byEmail map[string]*User
	byID    map[string]*User
	err     error
}

func (c *fakeIdentity) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.byEmail[email], nil
}

func (c *fakeIdentity) GetUser(ctx context.Context, id string) (*User, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.byID[id], nil
}

type alertRecord struct {
	event string
	data  map[string]interface{}
}

type fakeAlerts struct {
	sent []alertRecord
}

func (a *fakeAlerts) Send(ctx context.Context, event string, data map[string]interface{}) error {
	a.sent = append(a.sent, alertRecord{event: event, data: data})
	return nil
}

type mailRecord struct {
	to      string
	subject string
	html    string
}

type fakeMail struct {
	sent []mailRecord
}

func (m *fakeMail) Send(ctx context.Context, to, subject, html string) error {
	m.sent = append(m.sent, mailRecord{to: to, subject: subject, html: html})
	return nil
}

// fakeTx runs the grouped writes directly; transactional atomicity is the
// data layer's concern and is covered by its own tests.
type fakeTx struct{}

func (fakeTx) Exec(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func discardLogger() log.Logger { return log.NewStdLogger(io.Discard) }
