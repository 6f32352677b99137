package service

import (
	"context"

	"github.com/bnidigitalmy/pocketbizz-billing-service/internal/biz"
	"github.com/bnidigitalmy/pocketbizz-billing-service/internal/errors"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/transport/http"
)

// LifecycleService exposes the subscription sweep: on a schedule through
// cmd/sweeper, and on demand through the HTTP trigger.
type LifecycleService struct {
	uc  *biz.LifecycleUsecase
	log *log.Helper
}

// NewLifecycleService creates the lifecycle service.
func NewLifecycleService(uc *biz.LifecycleUsecase, logger log.Logger) *LifecycleService {
	return &LifecycleService{
		uc:  uc,
		log: log.NewHelper(logger),
	}
}

// HandleSweep runs one sweep over every non-terminal subscription.
func (s *LifecycleService) HandleSweep(ctx http.Context) error {
	result, err := s.uc.Sweep(ctx.Request().Context())
	if err != nil {
		return errors.StoreFailure("sweep failed")
	}
	return ctx.Result(200, result)
}

// Sweep runs one sweep outside the HTTP transport, for cmd/sweeper.
func (s *LifecycleService) Sweep(ctx context.Context) (*biz.SweepResult, error) {
	return s.uc.Sweep(ctx)
}
