package biz

import (
	"testing"

	"github.com/bnidigitalmy/pocketbizz-billing-service/internal/errors"
	"github.com/bnidigitalmy/pocketbizz-billing-service/internal/gateway"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reconcileUsecase() *WebhookUsecase {
	logger := discardLogger()
	return NewWebhookUsecase(newFakeSubRepo(), newFakePayRepo(), newFakePlanRepo(),
		&fakeIdentity{}, NewNotifier(&fakeAlerts{}, &fakeMail{}, logger), fakeTx{}, nil, logger)
}

func TestCheckCurrency(t *testing.T) {
	uc := reconcileUsecase()

	assert.NoError(t, uc.checkCurrency(&gateway.Notification{Currency: "MYR"}))
	assert.NoError(t, uc.checkCurrency(&gateway.Notification{Currency: " myr "}))
	assert.NoError(t, uc.checkCurrency(&gateway.Notification{Currency: ""}),
		"legacy payloads omit currency")

	err := uc.checkCurrency(&gateway.Notification{Currency: "USD"})
	require.Error(t, err)
	assert.Equal(t, errors.ReasonInvalidCurrency, kerrors.Reason(err))
}

func TestReconcileExactAmount(t *testing.T) {
	uc := reconcileUsecase()
	pay := &Payment{Amount: myr("100.00")}

	rec, err := uc.reconcileAmount(&gateway.Notification{Amount: "100.00"}, pay, &Subscription{})
	require.NoError(t, err)
	assert.True(t, rec.FinalAmount.Equal(myr("100.00")))
	assert.Empty(t, rec.Note, "no note for an exact match")
}

func TestReconcileWithinTolerance(t *testing.T) {
	uc := reconcileUsecase()
	pay := &Payment{Amount: myr("100.00")}

	rec, err := uc.reconcileAmount(&gateway.Notification{Amount: "100.50"}, pay, &Subscription{})
	require.NoError(t, err)
	assert.True(t, rec.FinalAmount.Equal(myr("100.50")), "gateway amount wins")
	assert.Contains(t, rec.Note, "100.50")
	assert.Contains(t, rec.Note, "100.00")
}

func TestReconcileSubCentDifferenceHasNoNote(t *testing.T) {
	uc := reconcileUsecase()
	pay := &Payment{Amount: myr("100.00")}

	rec, err := uc.reconcileAmount(&gateway.Notification{Amount: "100.01"}, pay, &Subscription{})
	require.NoError(t, err)
	assert.True(t, rec.FinalAmount.Equal(myr("100.01")))
	assert.Empty(t, rec.Note)
}

func TestReconcileBeyondTolerance(t *testing.T) {
	uc := reconcileUsecase()
	pay := &Payment{Amount: myr("100.00")}

	_, err := uc.reconcileAmount(&gateway.Notification{Amount: "100.51"}, pay, &Subscription{})
	require.Error(t, err)
	assert.Equal(t, errors.ReasonAmountMismatch, kerrors.Reason(err))
}

func TestReconcileProratedAcceptsAnyAmount(t *testing.T) {
	uc := reconcileUsecase()
	pay := &Payment{Amount: myr("100.00")}

	for _, sub := range []*Subscription{
		{Notes: "prorated upgrade"},
		{PaymentReference: "PB-1-PRORATED"},
	} {
		rec, err := uc.reconcileAmount(&gateway.Notification{Amount: "42.00"}, pay, sub)
		require.NoError(t, err)
		assert.True(t, rec.FinalAmount.Equal(myr("42.00")))
		assert.NotEmpty(t, rec.Note)
	}
}

func TestReconcileNonPositiveAmountFallsBack(t *testing.T) {
	uc := reconcileUsecase()
	pay := &Payment{Amount: myr("100.00")}

	for _, amount := range []string{"", "0", "-5.00", "not-a-number"} {
		rec, err := uc.reconcileAmount(&gateway.Notification{Amount: amount}, pay, &Subscription{})
		require.NoError(t, err, "amount %q", amount)
		assert.True(t, rec.FinalAmount.Equal(myr("100.00")), "amount %q falls back to expected", amount)
	}
}
