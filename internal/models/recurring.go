package models

import "time"

// RecurringFrequency represents how often a recurring transaction fires.
type RecurringFrequency string

const (
	RecurringDaily   RecurringFrequency = "daily"
	RecurringWeekly  RecurringFrequency = "weekly"
	RecurringMonthly RecurringFrequency = "monthly"
	RecurringYearly  RecurringFrequency = "yearly"
)

// Advance returns t moved forward by interval occurrences of the frequency.
func (f RecurringFrequency) Advance(t time.Time, interval int) time.Time {
	if interval < 1 {
		interval = 1
	}
	switch f {
	case RecurringDaily:
		return t.AddDate(0, 0, interval)
	case RecurringWeekly:
		return t.AddDate(0, 0, 7*interval)
	case RecurringMonthly:
		return t.AddDate(0, interval, 0)
	case RecurringYearly:
		return t.AddDate(interval, 0, 0)
	}
	return t
}

// Recurring is a template that materializes ledger transactions on a
// schedule. NextDate is the next occurrence to generate; LastDate records
// the most recently generated occurrence.
type Recurring struct {
	Base
	UserID      uint               `gorm:"not null;index" json:"user_id"`
	AccountID   uint               `gorm:"not null" json:"account_id"`
	CategoryID  *uint              `json:"category_id,omitempty"`
	Name        string             `gorm:"not null" json:"name"`
	Type        EntryType          `gorm:"not null" json:"type"`
	Amount      int64              `gorm:"not null" json:"amount"`
	Description string             `json:"description"`
	Frequency   RecurringFrequency `gorm:"not null" json:"frequency"`
	Interval    int                `gorm:"not null;default:1" json:"interval"`
	StartDate   time.Time          `gorm:"not null" json:"start_date"`
	EndDate     *time.Time         `json:"end_date,omitempty"`
	NextDate    *time.Time         `json:"next_date,omitempty"`
	LastDate    *time.Time         `json:"last_date,omitempty"`
	IsActive    bool               `gorm:"default:true" json:"is_active"`

	// Relationships
	Account  Account   `gorm:"foreignKey:AccountID" json:"account"`
	Category *Category `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
}
