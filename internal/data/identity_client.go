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

type identityClient struct {
	http *resty.Client
	log  *log.Helper
}

type identityUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

type identityListResponse struct {
	Users []identityUser `json:"users"`
}

// NewIdentityClient creates the user lookup client against the identity
// admin API.
func NewIdentityClient(c *conf.Bootstrap, logger log.Logger) biz.IdentityClient {
	var cfg *conf.IdentityClient
	if c != nil && c.Client != nil {
		cfg = c.Client.Identity
	}
	if cfg == nil || cfg.Addr == "" {
		// Not configured, return an empty implementation (graceful degradation).
		return &emptyIdentityClient{}
	}

	timeout := 10 * time.Second
	if d, err := time.ParseDuration(cfg.Timeout); err == nil && d > 0 {
		timeout = d
	}

	client := resty.New().
		SetBaseURL(cfg.Addr).
		SetTimeout(timeout).
		SetHeader("Authorization", "Bearer "+cfg.ServiceKey)

	return &identityClient{
		http: client,
		log:  log.NewHelper(logger),
	}
}

// GetUserByEmail resolves a user account from an email address. Returns
// (nil, nil) when no account matches.
func (c *identityClient) GetUserByEmail(ctx context.Context, email string) (*biz.User, error) {
	var result identityListResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("email", email).
		SetResult(&result).
		Get("/admin/v1/users")
	if err != nil {
		return nil, fmt.Errorf("identity lookup by email failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("identity lookup by email returned %d", resp.StatusCode())
	}
	if len(result.Users) == 0 {
		return nil, nil
	}
	u := result.Users[0]
	return &biz.User{ID: u.ID, Email: u.Email, Name: u.Name}, nil
}

// GetUser resolves a user account by id. Returns (nil, nil) when unknown.
func (c *identityClient) GetUser(ctx context.Context, id string) (*biz.User, error) {
	var result identityUser
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&result).
		Get("/admin/v1/users/" + id)
	if err != nil {
		return nil, fmt.Errorf("identity lookup by id failed: %w", err)
	}
	if resp.StatusCode() == 404 {
		return nil, nil
	}
	if resp.IsError() {
		return nil, fmt.Errorf("identity lookup by id returned %d", resp.StatusCode())
	}
	return &biz.User{ID: result.ID, Email: result.Email, Name: result.Name}, nil
}

// emptyIdentityClient is the null lookup used when no identity service is
// configured.
type emptyIdentityClient struct{}

func (e *emptyIdentityClient) GetUserByEmail(ctx context.Context, email string) (*biz.User, error) {
	return nil, nil
}

func (e *emptyIdentityClient) GetUser(ctx context.Context, id string) (*biz.User, error) {
	return nil, nil
}
