package conf

import (
	"fmt"
)

type Bootstrap struct {
	Server       *Server       `yaml:"server" json:"server"`
	Data         *Data         `yaml:"data" json:"data"`
	Gateway      *Gateway      `yaml:"gateway" json:"gateway"`
	RateLimit    *RateLimit    `yaml:"rate_limit" json:"rate_limit"`
	Subscription *Subscription `yaml:"subscription" json:"subscription"`
	Client       *Client       `yaml:"client" json:"client"`
	Log          *Log          `yaml:"log" json:"log"`
}

type Server struct {
	Http struct {
		Addr    string `yaml:"addr" json:"addr"`
		Timeout string `yaml:"timeout" json:"timeout"`
	} `yaml:"http" json:"http"`
}

type Data struct {
	Database struct {
		Driver          string `yaml:"driver" json:"driver"`
		Source          string `yaml:"source" json:"source"`
		MaxIdleConns    int    `yaml:"max_idle_conns" json:"max_idle_conns"`
		MaxOpenConns    int    `yaml:"max_open_conns" json:"max_open_conns"`
		ConnMaxLifetime string `yaml:"conn_max_lifetime" json:"conn_max_lifetime"`
	} `yaml:"database" json:"database"`
	Redis struct {
		Addr         string `yaml:"addr" json:"addr"`
		Password     string `yaml:"password" json:"password"`
		Db           int32  `yaml:"db" json:"db"`
		ReadTimeout  string `yaml:"read_timeout" json:"read_timeout"`
		WriteTimeout string `yaml:"write_timeout" json:"write_timeout"`
		DialTimeout  string `yaml:"dial_timeout" json:"dial_timeout"`
		PoolSize     int32  `yaml:"pool_size" json:"pool_size"`
		MinIdleConns int32  `yaml:"min_idle_conns" json:"min_idle_conns"`
	} `yaml:"redis" json:"redis"`
}

// Gateway holds BCL.my webhook settings.
type Gateway struct {
	// SecretKey is the shared HMAC signing secret (BCL_API_SECRET_KEY).
	SecretKey string `yaml:"secret_key" json:"secret_key"`
	// Currency is the only accepted settlement currency (MYR).
	Currency string `yaml:"currency" json:"currency"`
	// AmountTolerance is the absolute amount tolerance as a decimal string, e.g. "0.50".
	AmountTolerance string `yaml:"amount_tolerance" json:"amount_tolerance"`
	// AllowUnsigned accepts payloads without a checksum. Test environments only.
	AllowUnsigned bool `yaml:"allow_unsigned" json:"allow_unsigned"`
}

// RateLimit holds webhook throttle settings.
type RateLimit struct {
	// FailOpen allows requests through when the counter store is unreachable.
	FailOpen         bool   `yaml:"fail_open" json:"fail_open"`
	IPMaxRequests    int    `yaml:"ip_max_requests" json:"ip_max_requests"`
	IPWindow         string `yaml:"ip_window" json:"ip_window"`
	OrderMaxRequests int    `yaml:"order_max_requests" json:"order_max_requests"`
	OrderWindow      string `yaml:"order_window" json:"order_window"`
}

// Subscription holds lifecycle settings.
type Subscription struct {
	// GraceDays is the grace window length after expires_at.
	GraceDays int `yaml:"grace_days" json:"grace_days"`
	// SweepSchedule is the cron spec (with seconds) used by cmd/sweeper.
	SweepSchedule string `yaml:"sweep_schedule" json:"sweep_schedule"`
}

type Client struct {
	Identity *IdentityClient `yaml:"identity" json:"identity"`
	Telegram *TelegramClient `yaml:"telegram" json:"telegram"`
	Email    *EmailClient    `yaml:"email" json:"email"`
}

// IdentityClient configures the user lookup service (admin API).
type IdentityClient struct {
	Addr       string `yaml:"addr" json:"addr"`
	ServiceKey string `yaml:"service_key" json:"service_key"`
	Timeout    string `yaml:"timeout" json:"timeout"`
}

// TelegramClient configures admin alerting.
type TelegramClient struct {
	BotToken string `yaml:"bot_token" json:"bot_token"`
	ChatID   string `yaml:"chat_id" json:"chat_id"`
	Timeout  string `yaml:"timeout" json:"timeout"`
}

// EmailClient configures the transactional email dispatcher.
type EmailClient struct {
	Addr    string `yaml:"addr" json:"addr"`
	APIKey  string `yaml:"api_key" json:"api_key"`
	Sender  string `yaml:"sender" json:"sender"`
	Timeout string `yaml:"timeout" json:"timeout"`
}

type Log struct {
	Level      string `yaml:"level" json:"level"`
	Format     string `yaml:"format" json:"format"`
	Output     string `yaml:"output" json:"output"`
	FilePath   string `yaml:"file_path" json:"file_path"`
	MaxSize    int    `yaml:"max_size" json:"max_size"`
	MaxAge     int    `yaml:"max_age" json:"max_age"`
	MaxBackups int    `yaml:"max_backups" json:"max_backups"`
	Compress   bool   `yaml:"compress" json:"compress"`
}

// Validate validates the configuration
func (b *Bootstrap) Validate() error {
	if b.Server == nil {
		return fmt.Errorf("server configuration is required")
	}
	if b.Server.Http.Addr == "" {
		return fmt.Errorf("server.http.addr is required")
	}
	if b.Data == nil {
		return fmt.Errorf("data configuration is required")
	}
	if b.Data.Database.Source == "" {
		return fmt.Errorf("data.database.source is required")
	}
	if b.Data.Redis.Addr == "" {
		return fmt.Errorf("data.redis.addr is required")
	}
	if b.Gateway == nil {
		return fmt.Errorf("gateway configuration is required")
	}
	if b.Gateway.SecretKey == "" && !b.Gateway.AllowUnsigned {
		return fmt.Errorf("gateway.secret_key is required unless gateway.allow_unsigned is set")
	}
	if b.Log == nil {
		return fmt.Errorf("log configuration is required")
	}
	return nil
}
