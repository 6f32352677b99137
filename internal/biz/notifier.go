package biz

import (
	"context"
	"time"

	"github.com/bnidigitalmy/pocketbizz-billing-service/internal/constants"

	"github.com/go-kratos/kratos/v2/log"
)

// AlertClient delivers a structured operational alert to the admin channel.
type AlertClient interface {
	Send(ctx context.Context, event string, data map[string]interface{}) error
}

// MailClient dispatches a transactional email.
type MailClient interface {
	Send(ctx context.Context, to, subject, html string) error
}

// Notifier is the best-effort dispatch seam. Every call is bounded by its
// own timeout and swallows delivery errors; a notification failure must
// never surface as a lifecycle transition failure.
type Notifier struct {
	alerts AlertClient
	mail   MailClient
	log    *log.Helper
}

// NewNotifier creates the notifier.
func NewNotifier(alerts AlertClient, mail MailClient, logger log.Logger) *Notifier {
	return &Notifier{
		alerts: alerts,
		mail:   mail,
		log:    log.NewHelper(logger),
	}
}

// Alert sends an admin alert (e.g. upgrade_pro, payment_failed).
func (n *Notifier) Alert(event string, data map[string]interface{}) {
	ctx, cancel := context.WithTimeout(context.Background(), constants.NotifyTimeout)
	defer cancel()

	if err := n.alerts.Send(ctx, event, data); err != nil {
		n.log.Errorf("Failed to send %s alert: %v", event, err)
		return
	}
	n.log.Infof("Sent %s alert", event)
}

// SendGraceEmail tells a user their subscription entered the grace period.
// The caller marks grace_email_sent regardless of the outcome here.
func (n *Notifier) SendGraceEmail(to string, graceUntil time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), constants.NotifyTimeout)
	defer cancel()

	subject := "⚠️ Langganan PocketBizz Dalam Tempoh Tangguh"
	html := graceEmailBody(graceUntil)
	if err := n.mail.Send(ctx, to, subject, html); err != nil {
		n.log.Errorf("Failed to send grace email to %s: %v", to, err)
		return
	}
	n.log.Infof("Grace email sent to %s", to)
}

func graceEmailBody(graceUntil time.Time) string {
	until := graceUntil.Format("2 January 2006")
	return `<div style="font-family: sans-serif; max-width: 600px; margin: 0 auto;">` +
		`<h2 style="color: #f59e0b;">⚠️ Tempoh Tangguh Bermula</h2>` +
		`<p>Langganan PocketBizz anda telah memasuki <strong>tempoh tangguh (grace period)</strong>.</p>` +
		`<p>Anda masih boleh menggunakan semua ciri PocketBizz sehingga <strong>` + until + `</strong>.</p>` +
		`<p>Selepas tarikh tersebut, akaun anda akan dihadkan kepada mod baca sahaja.</p>` +
		`<p>Sila lengkapkan pembayaran melalui aplikasi PocketBizz untuk terus menggunakan PocketBizz.</p>` +
		`</div>`
}
