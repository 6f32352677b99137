package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/bnidigitalmy/pocketbizz-billing-service/internal/conf"

	"github.com/go-kratos/kratos/v2/log"
)

// Verifier validates webhook checksums against the shared gateway secret.
type Verifier struct {
	secret        string
	allowUnsigned bool
	log           *log.Helper
}

// NewVerifier builds a Verifier from gateway config.
func NewVerifier(c *conf.Bootstrap, logger log.Logger) *Verifier {
	v := &Verifier{log: log.NewHelper(logger)}
	if c != nil && c.Gateway != nil {
		v.secret = c.Gateway.SecretKey
		v.allowUnsigned = c.Gateway.AllowUnsigned
	}
	return v
}

// SigningString builds the canonical string the checksum is computed over:
// the values of a fixed field set joined with "|" in lexicographic key
// order. The ordering is the signature contract with BCL.my; do not change it.
func SigningString(n *Notification) string {
	fields := map[string]string{
		"amount":                    n.Amount,
		"currency":                  n.Currency,
		"exchange_reference_number": n.ExchangeReferenceNumber,
		"exchange_transaction_id":   n.ExchangeTransactionID,
		"order_number":              n.OrderNumber,
		"payer_bank_name":           n.PayerBankName,
		"status":                    n.Status,
		"status_description":        n.StatusDescription,
		"transaction_id":            n.TransactionID,
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	values := make([]string, len(keys))
	for i, k := range keys {
		values[i] = fields[k]
	}
	return strings.Join(values, "|")
}

// Verify checks the provided checksum. Payloads without a checksum are
// rejected unless allow_unsigned is set for a test environment.
func (v *Verifier) Verify(n *Notification) bool {
	if n.Checksum == "" {
		if v.allowUnsigned {
			v.log.Warnf("Accepting unsigned payload for order %q (allow_unsigned is set)", n.OrderNumber)
			return true
		}
		return false
	}

	computed := computeHmacHex(SigningString(n), v.secret)
	if !strings.EqualFold(computed, n.Checksum) {
		v.log.Warnf("Signature mismatch for order %q: provided=%s computed=%s", n.OrderNumber, n.Checksum, computed)
		return false
	}
	return true
}

func computeHmacHex(value, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(value))
	return hex.EncodeToString(mac.Sum(nil))
}
