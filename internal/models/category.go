package models

// CategoryType represents the type of category
type CategoryType string

const (
	CategoryTypeIncome   CategoryType = "income"
	CategoryTypeExpense  CategoryType = "expense"
	CategoryTypeTransfer CategoryType = "transfer"
)

// EntryTypeAllowed reports whether a transaction entry type may be tagged
// with a category of this type. Expense categories take debits, income
// categories take credits, transfer categories take either.
func (t CategoryType) EntryTypeAllowed(entry EntryType) bool {
	switch t {
	case CategoryTypeExpense:
		return entry == EntryTypeDebit
	case CategoryTypeIncome:
		return entry == EntryTypeCredit
	case CategoryTypeTransfer:
		return true
	}
	return false
}

// Category represents a transaction category. Categories form a forest via
// ParentID; the parent chain must never revisit a node. System categories
// are seeded by migration and cannot be deleted or reparented.
type Category struct {
	Base
	UserID   uint         `gorm:"not null;index" json:"user_id"`
	Name     string       `gorm:"not null" json:"name"`
	Type     CategoryType `gorm:"not null" json:"type"`
	Icon     string       `json:"icon"`
	Color    string       `json:"color"`
	ParentID *uint        `json:"parent_id,omitempty"`
	IsSystem bool         `gorm:"default:false" json:"is_system"`

	// Relationships
	Parent       *Category     `gorm:"foreignKey:ParentID" json:"parent,omitempty"`
	Children     []Category    `gorm:"foreignKey:ParentID" json:"children,omitempty"`
	Transactions []Transaction `gorm:"foreignKey:CategoryID" json:"transactions,omitempty"`
	Budgets      []Budget      `gorm:"foreignKey:CategoryID" json:"budgets,omitempty"`
}
