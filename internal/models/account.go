package models

// Account represents a financial account in the system.
//
// Balance is a derived cache: it must always equal InitialBalance plus the
// sum of credit amounts minus the sum of debit amounts over the account's
// non-deleted transactions in ledger order. Only the ledger service writes
// it; every other component treats it as read-only.
type Account struct {
	Base
	UserID         uint   `gorm:"not null;index" json:"user_id"`
	Name           string `gorm:"not null" json:"name"`
	Description    string `json:"description"`
	Currency       string `gorm:"not null;default:'USD'" json:"currency"`
	InitialBalance int64  `gorm:"not null;default:0" json:"initial_balance"`
	Balance        int64  `gorm:"not null;default:0" json:"balance"`
	IsActive       bool   `gorm:"default:true" json:"is_active"`

	// Relationships
	Transactions []Transaction `gorm:"foreignKey:AccountID" json:"transactions,omitempty"`
}
