package service

import (
	"github.com/bnidigitalmy/pocketbizz-billing-service/internal/gateway"
	"github.com/bnidigitalmy/pocketbizz-billing-service/internal/ratelimit"

	"github.com/google/wire"
)

// ProviderSet is service providers.
var ProviderSet = wire.NewSet(
	NewWebhookService,
	NewLifecycleService,
	gateway.NewVerifier,
	ratelimit.NewLimiter,
)
