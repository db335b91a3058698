package models

import "time"

// BudgetPeriod represents the period type for a budget
type BudgetPeriod string

const (
	BudgetPeriodWeekly    BudgetPeriod = "weekly"
	BudgetPeriodMonthly   BudgetPeriod = "monthly"
	BudgetPeriodQuarterly BudgetPeriod = "quarterly"
	BudgetPeriodYearly    BudgetPeriod = "yearly"
)

// Advance returns the start of the period following the one starting at t.
func (p BudgetPeriod) Advance(t time.Time) time.Time {
	switch p {
	case BudgetPeriodWeekly:
		return t.AddDate(0, 0, 7)
	case BudgetPeriodMonthly:
		return t.AddDate(0, 1, 0)
	case BudgetPeriodQuarterly:
		return t.AddDate(0, 3, 0)
	case BudgetPeriodYearly:
		return t.AddDate(1, 0, 0)
	}
	return t
}

// DefaultAlertThreshold is the spent/amount fraction at which a budget is
// flagged at_risk when no explicit threshold is set.
const DefaultAlertThreshold = 0.8

// Budget represents a spending (or income) cap for a category over tiling
// periods starting at StartDate. AccountID scopes the budget to a single
// account when set; a nil AccountID covers all of the user's accounts.
// EndDate caps the final period when set; otherwise periods tile forever.
type Budget struct {
	Base
	UserID         uint         `gorm:"not null;index" json:"user_id"`
	CategoryID     uint         `gorm:"not null" json:"category_id"`
	AccountID      *uint        `json:"account_id,omitempty"`
	Name           string       `gorm:"not null" json:"name"`
	Amount         int64        `gorm:"not null" json:"amount"`
	Period         BudgetPeriod `gorm:"not null" json:"period"`
	StartDate      time.Time    `gorm:"not null" json:"start_date"`
	EndDate        *time.Time   `json:"end_date,omitempty"`
	AlertThreshold float64      `gorm:"not null;default:0.8" json:"alert_threshold"`
	IsActive       bool         `gorm:"default:true" json:"is_active"`

	// Relationships
	Category Category `gorm:"foreignKey:CategoryID" json:"category"`
	Account  *Account `gorm:"foreignKey:AccountID" json:"account,omitempty"`
}
