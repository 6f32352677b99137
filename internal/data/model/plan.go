package model

// Plan maps the subscription_plans table. Reference data, read-only here.
type Plan struct {
	ID             string `gorm:"primaryKey;column:plan_id;size:36"`
	Name           string `gorm:"column:name"`
	DurationMonths int    `gorm:"column:duration_months"`
}

func (Plan) TableName() string { return "subscription_plans" }
