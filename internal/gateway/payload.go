// Package gateway decodes BCL.my webhook payloads and verifies their
// HMAC checksums. Both payload shapes the gateway sends (flat legacy and
// nested data.main_data) collapse into one Notification here; nothing past
// this package branches on payload shape.
package gateway

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
)

// Success markers used by BCL.my: status 3 means approved, older
// integrations send textual statuses.
var successStatuses = map[string]bool{
	"3":         true,
	"1":         true,
	"success":   true,
	"completed": true,
	"paid":      true,
}

// Notification is the canonical, shape-independent view of a webhook event.
type Notification struct {
	GatewayID               string
	OrderNumber             string
	TransactionID           string
	ExchangeReferenceNumber string
	ExchangeTransactionID   string
	Currency                string
	Amount                  string
	PayerBankName           string
	PayerName               string
	PayerEmail              string
	Status                  string
	StatusDescription       string
	Checksum                string
}

// flexString tolerates the gateway sending a field as string, number or null.
type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*s = ""
		return nil
	}
	if b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = flexString(v)
		return nil
	}
	*s = flexString(b)
	return nil
}

type mainData struct {
	ID                      flexString `json:"id"`
	OrderNumber             flexString `json:"order_number"`
	TransactionID           flexString `json:"transaction_id"`
	ExchangeReferenceNumber flexString `json:"exchange_reference_number"`
	ExchangeTransactionID   flexString `json:"exchange_transaction_id"`
	Currency                flexString `json:"currency"`
	Amount                  flexString `json:"amount"`
	PayerBankName           flexString `json:"payer_bank_name"`
	PayerName               flexString `json:"payer_name"`
	PayerEmail              flexString `json:"payer_email"`
	Status                  flexString `json:"status"`
	StatusDescription       flexString `json:"status_description"`
	Checksum                flexString `json:"checksum"`
}

// rawPayload covers both wire shapes: the legacy flat fields are promoted
// from the embedded mainData, the new format nests under data.main_data.
type rawPayload struct {
	mainData
	Event flexString `json:"event"`
	Data  *struct {
		MainData *mainData `json:"main_data"`
	} `json:"data"`
}

// Decode parses a webhook body (JSON or form-encoded) into a Notification.
// An empty body decodes to an empty Notification; the pipeline acknowledges
// it as a no-op because order_number is absent.
func Decode(contentType string, body []byte) (*Notification, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return &Notification{}, nil
	}

	if strings.Contains(contentType, "application/x-www-form-urlencoded") {
		values, err := url.ParseQuery(string(body))
		if err != nil {
			return nil, err
		}
		return fromValues(values), nil
	}

	var raw rawPayload
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, err
	}

	data := &raw.mainData
	if raw.Data != nil && raw.Data.MainData != nil {
		data = raw.Data.MainData
	}
	return fromMainData(data), nil
}

func fromMainData(d *mainData) *Notification {
	return &Notification{
		GatewayID:               string(d.ID),
		OrderNumber:             string(d.OrderNumber),
		TransactionID:           string(d.TransactionID),
		ExchangeReferenceNumber: string(d.ExchangeReferenceNumber),
		ExchangeTransactionID:   string(d.ExchangeTransactionID),
		Currency:                string(d.Currency),
		Amount:                  string(d.Amount),
		PayerBankName:           string(d.PayerBankName),
		PayerName:               string(d.PayerName),
		PayerEmail:              string(d.PayerEmail),
		Status:                  string(d.Status),
		StatusDescription:       string(d.StatusDescription),
		Checksum:                string(d.Checksum),
	}
}

func fromValues(values url.Values) *Notification {
	return &Notification{
		GatewayID:               values.Get("id"),
		OrderNumber:             values.Get("order_number"),
		TransactionID:           values.Get("transaction_id"),
		ExchangeReferenceNumber: values.Get("exchange_reference_number"),
		ExchangeTransactionID:   values.Get("exchange_transaction_id"),
		Currency:                values.Get("currency"),
		Amount:                  values.Get("amount"),
		PayerBankName:           values.Get("payer_bank_name"),
		PayerName:               values.Get("payer_name"),
		PayerEmail:              values.Get("payer_email"),
		Status:                  values.Get("status"),
		StatusDescription:       values.Get("status_description"),
		Checksum:                values.Get("checksum"),
	}
}

// IsSuccess reports whether the event signals an approved payment.
func (n *Notification) IsSuccess() bool {
	status := strings.ToLower(strings.TrimSpace(n.Status))
	desc := strings.ToLower(strings.TrimSpace(n.StatusDescription))
	return successStatuses[status] || desc == "approved" || successStatuses[desc]
}

// GatewayTransactionID picks the first available transaction identifier.
// Some BCL.my integrations only echo the exchange reference.
func (n *Notification) GatewayTransactionID() string {
	for _, id := range []string{
		n.TransactionID,
		n.ExchangeTransactionID,
		n.ExchangeReferenceNumber,
		n.GatewayID,
	} {
		if id != "" {
			return id
		}
	}
	return ""
}

// ClientIP resolves the caller address behind proxies. X-Forwarded-For may
// carry a chain; the first hop is the client.
func ClientIP(h http.Header) string {
	if forwarded := h.Get("X-Forwarded-For"); forwarded != "" {
		return strings.TrimSpace(strings.Split(forwarded, ",")[0])
	}
	if realIP := h.Get("X-Real-Ip"); realIP != "" {
		return strings.TrimSpace(realIP)
	}
	return "unknown"
}
