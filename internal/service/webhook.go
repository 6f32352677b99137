package service

import (
	"io"
	"strings"

	"github.com/bnidigitalmy/pocketbizz-billing-service/internal/biz"
	"github.com/bnidigitalmy/pocketbizz-billing-service/internal/errors"
	"github.com/bnidigitalmy/pocketbizz-billing-service/internal/gateway"
	"github.com/bnidigitalmy/pocketbizz-billing-service/internal/ratelimit"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/transport/http"
	"github.com/google/uuid"
)

// maxBodyBytes caps how much of a webhook body is read. BCL.my payloads are
// a few hundred bytes; anything near this size is garbage.
const maxBodyBytes = 1 << 20

// WebhookService is the HTTP edge of the payment webhook: throttle, decode,
// verify, then hand off to the pipeline.
type WebhookService struct {
	verifier *gateway.Verifier
	limiter  *ratelimit.Limiter
	uc       *biz.WebhookUsecase
	log      *log.Helper
}

// NewWebhookService creates the webhook service.
func NewWebhookService(verifier *gateway.Verifier, limiter *ratelimit.Limiter, uc *biz.WebhookUsecase, logger log.Logger) *WebhookService {
	return &WebhookService{
		verifier: verifier,
		limiter:  limiter,
		uc:       uc,
		log:      log.NewHelper(logger),
	}
}

// webhookReply is the acknowledgement body returned to the gateway.
type webhookReply struct {
	Success        bool   `json:"success"`
	Outcome        string `json:"outcome"`
	Message        string `json:"message,omitempty"`
	PaymentID      string `json:"payment_id,omitempty"`
	SubscriptionID string `json:"subscription_id,omitempty"`
}

// HandleNotification processes one BCL.my webhook delivery.
//
// The per-IP ceiling is checked before the body is touched; the per-order
// ceiling only after signature verification, so unauthenticated traffic
// cannot exhaust an order's retry budget.
func (s *WebhookService) HandleNotification(ctx http.Context) error {
	req := ctx.Request()

	// Delivery id for correlating log lines across the pipeline; the
	// gateway provides no delivery identifier of its own.
	deliveryID := uuid.New().String()

	ip := gateway.ClientIP(req.Header)
	if !s.limiter.AllowIP(req.Context(), ip) {
		s.log.Warnf("Rate limit exceeded for IP %s", ip)
		return errors.RateLimited("too many requests from this address")
	}

	body, err := io.ReadAll(io.LimitReader(req.Body, maxBodyBytes))
	if err != nil {
		return errors.MalformedPayload("failed to read request body")
	}

	n, err := gateway.Decode(req.Header.Get("Content-Type"), body)
	if err != nil {
		s.log.Warnf("Failed to decode webhook payload %s from %s: %v", deliveryID, ip, err)
		return errors.MalformedPayload("failed to decode payload")
	}
	s.log.Infof("Processing webhook delivery %s from %s, order %q status %q", deliveryID, ip, n.OrderNumber, n.Status)

	if !s.verifier.Verify(n) {
		return errors.InvalidSignature("invalid or missing checksum")
	}

	if order := strings.TrimSpace(n.OrderNumber); order != "" {
		if !s.limiter.AllowOrder(req.Context(), order) {
			s.log.Warnf("Rate limit exceeded for order %s", order)
			return errors.RateLimited("too many requests for this order")
		}
	}

	result, err := s.uc.ProcessNotification(req.Context(), n)
	if err != nil {
		return err
	}
	s.log.Infof("Webhook delivery %s done: outcome=%s payment=%s", deliveryID, result.Outcome, result.PaymentID)
	return ctx.Result(200, &webhookReply{
		Success:        true,
		Outcome:        result.Outcome,
		Message:        result.Detail,
		PaymentID:      result.PaymentID,
		SubscriptionID: result.SubscriptionID,
	})
}
