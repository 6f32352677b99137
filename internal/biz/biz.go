package biz

import (
	"context"

	"github.com/google/wire"
)

// ProviderSet is biz providers.
var ProviderSet = wire.NewSet(NewWebhookUsecase, NewLifecycleUsecase, NewNotifier)

// Transaction groups repository writes so a failure mid-transition leaves
// prior state intact.
type Transaction interface {
	Exec(ctx context.Context, fn func(ctx context.Context) error) error
}
