package data

import (
	"context"
	"fmt"
	"time"

	"github.com/bnidigitalmy/pocketbizz-billing-service/internal/biz"
	"github.com/bnidigitalmy/pocketbizz-billing-service/internal/conf"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-resty/resty/v2"
)

type mailClient struct {
	http   *resty.Client
	sender string
	log    *log.Helper
}

// NewMailClient creates the transactional email dispatcher.
func NewMailClient(c *conf.Bootstrap, logger log.Logger) biz.MailClient {
	var cfg *conf.EmailClient
	if c != nil && c.Client != nil {
		cfg = c.Client.Email
	}
	if cfg == nil || cfg.Addr == "" {
		// Not configured, return an empty implementation (graceful degradation).
		return &emptyMailClient{}
	}

	timeout := 10 * time.Second
	if d, err := time.ParseDuration(cfg.Timeout); err == nil && d > 0 {
		timeout = d
	}

	sender := cfg.Sender
	if sender == "" {
		sender = "PocketBizz <noreply@pocketbizz.my>"
	}

	client := resty.New().
		SetBaseURL(cfg.Addr).
		SetTimeout(timeout).
		SetHeader("Authorization", "Bearer "+cfg.APIKey)

	return &mailClient{
		http:   client,
		sender: sender,
		log:    log.NewHelper(logger),
	}
}

// Send dispatches one HTML email.
func (c *mailClient) Send(ctx context.Context, to, subject, html string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]interface{}{
			"from":    c.sender,
			"to":      []string{to},
			"subject": subject,
			"html":    html,
		}).
		Post("/emails")
	if err != nil {
		return fmt.Errorf("email send failed: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("email send returned %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}

// emptyMailClient is the null dispatcher used when no email service is
// configured.
type emptyMailClient struct{}

func (e *emptyMailClient) Send(ctx context.Context, to, subject, html string) error {
	return nil
}
