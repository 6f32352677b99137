package data

import (
	"context"
	"errors"

	"github.com/bnidigitalmy/pocketbizz-billing-service/internal/biz"
	"github.com/bnidigitalmy/pocketbizz-billing-service/internal/data/model"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"
)

// planRepo implements biz.PlanRepo on gorm.
type planRepo struct {
	data *Data
	log  *log.Helper
}

// NewPlanRepo creates the plan repository.
func NewPlanRepo(data *Data, logger log.Logger) biz.PlanRepo {
	return &planRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

// Get fetches a plan by id.
func (r *planRepo) Get(ctx context.Context, id string) (*biz.Plan, error) {
	var m model.Plan
	err := r.data.DB(ctx).Where("plan_id = ?", id).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		r.log.Errorf("Failed to get plan %s: %v", id, err)
		return nil, err
	}
	return &biz.Plan{
		ID:             m.ID,
		Name:           m.Name,
		DurationMonths: m.DurationMonths,
	}, nil
}
