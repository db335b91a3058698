package services

import (
	"context"
	"time"

	"ledgerly/internal/models"
	"ledgerly/internal/pagination"
)

// UserServicer defines the contract for user-related business logic.
type UserServicer interface {
	CreateUser(email, password, firstName, lastName string) (*models.User, error)
	GetUserByEmail(email string) (*models.User, error)
	GetUserByID(id uint) (*models.User, error)
	VerifyPassword(user *models.User, password string) bool
	StoreRefreshTokenHash(userID uint, tokenHash string) error
	GetRefreshTokenHash(userID uint) (string, error)
}

// AccountServicer defines the contract for account-related business logic.
// Account balances are owned by the ledger service; this service never
// writes the balance column.
type AccountServicer interface {
	CreateAccount(userID uint, name, description, currency string, initialBalance int64) (*models.Account, error)
	GetUserAccounts(userID uint, page pagination.PageRequest) (*pagination.PageResponse[models.Account], error)
	GetAccountByID(userID, accountID uint) (*models.Account, error)
	UpdateAccount(userID, accountID uint, fields AccountUpdateFields) (*models.Account, error)
}

// AccountUpdateFields holds optional account fields for partial updates.
type AccountUpdateFields struct {
	Name        *string
	Description *string
	IsActive    *bool
}

// CategoryNode is a category with its resolved children, used for subtree views.
type CategoryNode struct {
	models.Category
	Nodes []*CategoryNode `json:"nodes,omitempty"`
}

// CategoryServicer defines the contract for the category hierarchy.
type CategoryServicer interface {
	CreateCategory(userID uint, name string, categoryType models.CategoryType, icon, color string, parentID *uint) (*models.Category, error)
	GetUserCategories(userID uint, page pagination.PageRequest) (*pagination.PageResponse[models.Category], error)
	GetUserCategoriesByType(userID uint, categoryType models.CategoryType, page pagination.PageRequest) (*pagination.PageResponse[models.Category], error)
	GetCategoryByID(userID, categoryID uint) (*models.Category, error)
	GetCategorySubtree(userID, categoryID uint) (*CategoryNode, error)
	SubtreeIDs(userID, categoryID uint) ([]uint, error)
	UpdateCategory(userID, categoryID uint, fields CategoryUpdateFields) (*models.Category, error)
	DeleteCategory(userID, categoryID uint) error
}

// CategoryUpdateFields holds optional category fields for partial updates.
// ParentID uses a double pointer: nil = unchanged, pointer to nil = detach
// from parent, pointer to value = move under that parent.
type CategoryUpdateFields struct {
	Name     *string
	Icon     *string
	Color    *string
	ParentID **uint
}

// TransactionFilter holds optional filter parameters for listing transactions.
type TransactionFilter struct {
	AccountID  *uint
	CategoryID *uint
	Type       *models.EntryType
	FromDate   *time.Time
	ToDate     *time.Time
	MinAmount  *int64
	MaxAmount  *int64
	Search     string
	SortBy     string // "date" (default) or "amount"
	SortDesc   bool
}

// TransactionUpdateFields holds optional transaction fields for partial
// updates. AccountID is accepted only so the service can reject attempts to
// change it. CategoryID uses a double pointer: nil = unchanged, pointer to
// nil = clear, pointer to value = set.
type TransactionUpdateFields struct {
	AccountID   *uint
	CategoryID  **uint
	Type        *models.EntryType
	Amount      *int64
	Description *string
	Date        *time.Time
}

// LedgerServicer is the authoritative mutation path for transactions. Every
// mutation keeps the owning account's running balances (balance_after per
// transaction, balance on the account) consistent with the ledger order:
// ascending date, ties broken by ascending insertion sequence.
type LedgerServicer interface {
	CreateTransaction(userID, accountID uint, categoryID *uint, entryType models.EntryType, amount int64, description string, date time.Time) (*models.Transaction, error)
	UpdateTransaction(userID, transactionID uint, fields TransactionUpdateFields) (*models.Transaction, error)
	DeleteTransaction(userID, transactionID uint) error
	GetTransactionByID(userID, transactionID uint) (*models.Transaction, error)
	GetUserTransactions(userID uint, page pagination.PageRequest, filter TransactionFilter) (*pagination.PageResponse[models.Transaction], error)
	GetAccountTransactions(userID, accountID uint, page pagination.PageRequest, filter TransactionFilter) (*pagination.PageResponse[models.Transaction], error)
	RebuildAccountBalances(userID, accountID uint) (*models.Account, error)
	RebuildAllBalances(ctx context.Context, userID uint) error
}

// BudgetStatus classifies budget progress against its alert threshold.
type BudgetStatus string

const (
	BudgetStatusOnTrack  BudgetStatus = "on_track"
	BudgetStatusAtRisk   BudgetStatus = "at_risk"
	BudgetStatusExceeded BudgetStatus = "exceeded"
)

// BudgetProgress is a transient view of spending against a budget for the
// period containing the evaluation instant. It is derived entirely from the
// ledger and the budget definition.
type BudgetProgress struct {
	BudgetID      uint         `json:"budget_id"`
	PeriodStart   time.Time    `json:"period_start"`
	PeriodEnd     time.Time    `json:"period_end"`
	Budgeted      int64        `json:"budgeted"`
	Spent         int64        `json:"spent"`
	Remaining     int64        `json:"remaining"`
	Percentage    float64      `json:"percentage"`
	Status        BudgetStatus `json:"status"`
	DaysRemaining int          `json:"days_remaining"`
}

// BudgetUpdateFields holds optional budget fields for partial updates.
type BudgetUpdateFields struct {
	Name           *string
	Amount         *int64
	Period         *models.BudgetPeriod
	StartDate      *time.Time
	EndDate        *time.Time
	AlertThreshold *float64
	IsActive       *bool
}

// BudgetServicer defines the contract for budget definitions and evaluation.
type BudgetServicer interface {
	CreateBudget(userID, categoryID uint, accountID *uint, name string, amount int64, period models.BudgetPeriod, startDate time.Time, endDate *time.Time, alertThreshold *float64) (*models.Budget, error)
	GetUserBudgets(userID uint, page pagination.PageRequest, isActive *bool, period *models.BudgetPeriod) (*pagination.PageResponse[models.Budget], error)
	GetBudgetByID(userID, budgetID uint) (*models.Budget, error)
	UpdateBudget(userID, budgetID uint, fields BudgetUpdateFields) (*models.Budget, error)
	DeleteBudget(userID, budgetID uint) error
	EvaluateBudget(userID, budgetID uint, asOf time.Time) (*BudgetProgress, error)
	EvaluateUserBudgets(userID uint, asOf time.Time) ([]BudgetProgress, error)
}

// BucketSize selects the time grain for analytics aggregation.
type BucketSize string

const (
	BucketDay   BucketSize = "day"
	BucketWeek  BucketSize = "week"
	BucketMonth BucketSize = "month"
)

// BucketTotal is the net signed flow for one time bucket, with a per-category
// breakdown. Credits count positive, debits negative.
type BucketTotal struct {
	BucketStart time.Time      `json:"bucket_start"`
	Net         int64          `json:"net"`
	ByCategory  map[uint]int64 `json:"by_category"`
}

// CategoryTotal is the aggregate flow for a single category over a range.
type CategoryTotal struct {
	CategoryID   uint                `json:"category_id"`
	CategoryName string              `json:"category_name"`
	Type         models.CategoryType `json:"type"`
	Total        int64               `json:"total"`
	Count        int                 `json:"count"`
}

// AnalyticsFilter restricts aggregation to the given accounts/categories.
// Empty slices mean no restriction.
type AnalyticsFilter struct {
	AccountIDs  []uint
	CategoryIDs []uint
}

// AnalyticsServicer is a read-only consumer of the ledger that rolls up
// non-deleted transactions by time bucket and category.
type AnalyticsServicer interface {
	Aggregate(userID uint, filter AnalyticsFilter, startDate, endDate time.Time, bucket BucketSize) ([]BucketTotal, error)
	CategorySummary(userID uint, startDate, endDate time.Time) ([]CategoryTotal, error)
}

// RecurringUpdateFields holds optional recurring-template fields for partial updates.
type RecurringUpdateFields struct {
	Name        *string
	CategoryID  **uint
	Type        *models.EntryType
	Amount      *int64
	Description *string
	Frequency   *models.RecurringFrequency
	Interval    *int
	EndDate     *time.Time
	IsActive    *bool
}

// RecurringServicer manages recurring transaction templates and materializes
// due occurrences through the ledger service.
type RecurringServicer interface {
	CreateRecurring(userID, accountID uint, categoryID *uint, name string, entryType models.EntryType, amount int64, description string, frequency models.RecurringFrequency, interval int, startDate time.Time, endDate *time.Time) (*models.Recurring, error)
	GetUserRecurring(userID uint, page pagination.PageRequest) (*pagination.PageResponse[models.Recurring], error)
	GetRecurringByID(userID, recurringID uint) (*models.Recurring, error)
	UpdateRecurring(userID, recurringID uint, fields RecurringUpdateFields) (*models.Recurring, error)
	DeleteRecurring(userID, recurringID uint) error
	RunDue(userID uint, asOf time.Time) (int, error)
	RunAllDue(asOf time.Time) (int, error)
}

// AuditServicer defines the contract for audit logging.
type AuditServicer interface {
	Log(userID uint, action, resourceType string, resourceID uint, ipAddress string, changes map[string]interface{})
}
