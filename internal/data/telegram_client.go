package data

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bnidigitalmy/pocketbizz-billing-service/internal/biz"
	"github.com/bnidigitalmy/pocketbizz-billing-service/internal/conf"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-resty/resty/v2"
)

type telegramClient struct {
	http   *resty.Client
	chatID string
	log    *log.Helper
}

// NewTelegramClient creates the admin alert channel backed by the Telegram
// Bot API.
func NewTelegramClient(c *conf.Bootstrap, logger log.Logger) biz.AlertClient {
	var cfg *conf.TelegramClient
	if c != nil && c.Client != nil {
		cfg = c.Client.Telegram
	}
	if cfg == nil || cfg.BotToken == "" || cfg.ChatID == "" {
		// Not configured, return an empty implementation (graceful degradation).
		return &emptyAlertClient{}
	}

	timeout := 10 * time.Second
	if d, err := time.ParseDuration(cfg.Timeout); err == nil && d > 0 {
		timeout = d
	}

	client := resty.New().
		SetBaseURL("https://api.telegram.org/bot" + cfg.BotToken).
		SetTimeout(timeout)

	return &telegramClient{
		http:   client,
		chatID: cfg.ChatID,
		log:    log.NewHelper(logger),
	}
}

// Send posts one formatted alert message to the admin chat.
func (c *telegramClient) Send(ctx context.Context, event string, data map[string]interface{}) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]interface{}{
			"chat_id":    c.chatID,
			"text":       formatAlert(event, data),
			"parse_mode": "Markdown",
		}).
		Post("/sendMessage")
	if err != nil {
		return fmt.Errorf("telegram send failed: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("telegram send returned %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}

var alertTitles = map[string]string{
	"upgrade_pro":    "🎉 *Langganan Pro Baharu*",
	"payment_failed": "❌ *Pembayaran Gagal*",
}

func formatAlert(event string, data map[string]interface{}) string {
	title, ok := alertTitles[event]
	if !ok {
		title = "*" + event + "*"
	}

	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(title)
	for _, k := range keys {
		b.WriteString(fmt.Sprintf("\n%s: `%v`", k, data[k]))
	}
	return b.String()
}

// emptyAlertClient is the null alert channel used when no bot is configured.
type emptyAlertClient struct{}

func (e *emptyAlertClient) Send(ctx context.Context, event string, data map[string]interface{}) error {
	return nil
}
