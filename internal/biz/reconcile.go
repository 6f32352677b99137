package biz

import (
	"fmt"
	"strings"

	"github.com/bnidigitalmy/pocketbizz-billing-service/internal/errors"
	"github.com/bnidigitalmy/pocketbizz-billing-service/internal/gateway"

	"github.com/shopspring/decimal"
)

// centTolerance: differences at or below one sen are not worth a note.
var centTolerance = decimal.NewFromFloat(0.01)

// reconcileResult is the amount the payment record will carry, plus an
// informational note when the gateway charged something other than expected.
type reconcileResult struct {
	FinalAmount decimal.Decimal
	Note        string
}

// checkCurrency rejects any settlement currency other than the configured
// one. Legacy flat payloads may omit currency entirely; those pass.
func (uc *WebhookUsecase) checkCurrency(n *gateway.Notification) error {
	currency := strings.ToUpper(strings.TrimSpace(n.Currency))
	if currency != "" && currency != uc.currency {
		uc.log.Errorf("Invalid currency %s for order %s, expected %s", currency, n.OrderNumber, uc.currency)
		return errors.InvalidCurrency(fmt.Sprintf("expected %s, received %s", uc.currency, currency))
	}
	return nil
}

// reconcileAmount validates the gateway-reported charge against the
// expected payment amount.
//
// Within tolerance the gateway amount wins (receipts must match gateway
// records). Beyond tolerance the event is rejected unless the subscription
// was flagged prorated at checkout, in which case the gateway amount is
// accepted and the discrepancy recorded as a note. A non-positive gateway
// amount falls back to the expected amount.
func (uc *WebhookUsecase) reconcileAmount(n *gateway.Notification, payment *Payment, sub *Subscription) (*reconcileResult, error) {
	webhookAmount, err := decimal.NewFromString(strings.TrimSpace(n.Amount))
	if err != nil {
		webhookAmount = decimal.Zero
	}
	expected := payment.Amount

	if !webhookAmount.IsPositive() {
		uc.log.Warnf("Webhook amount %q for order %s is not positive, using expected amount %s",
			n.Amount, n.OrderNumber, expected.StringFixed(2))
		return &reconcileResult{FinalAmount: expected}, nil
	}

	diff := webhookAmount.Sub(expected).Abs()
	if diff.GreaterThan(uc.tolerance) && !sub.IsProrated() {
		uc.log.Errorf("Amount mismatch for order %s: webhook=%s expected=%s diff=%s",
			n.OrderNumber, webhookAmount.StringFixed(2), expected.StringFixed(2), diff.StringFixed(2))
		return nil, errors.AmountMismatch(fmt.Sprintf("expected %s %s, received %s %s (diff: %s)",
			expected.StringFixed(2), uc.currency, webhookAmount.StringFixed(2), uc.currency, diff.StringFixed(2)))
	}

	result := &reconcileResult{FinalAmount: webhookAmount}
	if diff.GreaterThan(centTolerance) {
		result.Note = fmt.Sprintf("Amount difference: gateway charged %s, expected %s (diff: %s)",
			webhookAmount.StringFixed(2), expected.StringFixed(2), diff.StringFixed(2))
		uc.log.Infof("Using gateway amount for order %s: %s (expected %s)",
			n.OrderNumber, webhookAmount.StringFixed(2), expected.StringFixed(2))
	}
	return result, nil
}
