package models

import "time"

// EntryType represents the direction of a transaction against its account.
type EntryType string

const (
	EntryTypeDebit  EntryType = "debit"
	EntryTypeCredit EntryType = "credit"
)

// SignedAmount returns the amount with the sign implied by the entry type:
// credits are positive, debits negative.
func (t EntryType) SignedAmount(amount int64) int64 {
	if t == EntryTypeDebit {
		return -amount
	}
	return amount
}

// Transaction represents a dated ledger entry against a single account.
//
// AccountID is immutable after creation. BalanceAfter is a derived snapshot
// of the account balance immediately after this transaction in ledger order;
// it is computed by the ledger service, never set by callers. Sequence is a
// per-account monotonic counter assigned at creation and is used only to
// break ordering ties between transactions sharing a date.
type Transaction struct {
	Base
	UserID       uint      `gorm:"not null;index" json:"user_id"`
	AccountID    uint      `gorm:"not null;index:idx_ledger_order,priority:1" json:"account_id"`
	CategoryID   *uint     `json:"category_id,omitempty"`
	Type         EntryType `gorm:"not null" json:"type"`
	Amount       int64     `gorm:"not null" json:"amount"`
	Description  string    `json:"description"`
	Date         time.Time `gorm:"not null;index:idx_ledger_order,priority:2" json:"date"`
	Sequence     int64     `gorm:"not null;index:idx_ledger_order,priority:3" json:"sequence"`
	BalanceAfter int64     `gorm:"not null" json:"balance_after"`

	// Relationships
	Account  Account   `gorm:"foreignKey:AccountID" json:"account"`
	Category *Category `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
}
