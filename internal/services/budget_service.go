package services

import (
	"errors"
	"time"

	"gorm.io/gorm"

	apperrors "ledgerly/internal/errors"
	"ledgerly/internal/models"
	"ledgerly/internal/pagination"
)

// budgetService manages budget definitions and evaluates spending against
// them. Evaluation is a pure read over the ledger; nothing is persisted.
type budgetService struct {
	db         *gorm.DB
	categories CategoryServicer
}

// NewBudgetService creates a new BudgetServicer.
func NewBudgetService(db *gorm.DB, categories CategoryServicer) BudgetServicer {
	return &budgetService{db: db, categories: categories}
}

// CreateBudget creates a new budget for a category.
func (s *budgetService) CreateBudget(
	userID, categoryID uint,
	accountID *uint,
	name string,
	amount int64,
	period models.BudgetPeriod,
	startDate time.Time,
	endDate *time.Time,
	alertThreshold *float64,
) (*models.Budget, error) {
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "budget name is required")
	}
	if amount < 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "budget amount must not be negative")
	}
	if endDate != nil && !endDate.After(startDate) {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "end date must be after start date")
	}

	category, err := s.categories.GetCategoryByID(userID, categoryID)
	if err != nil {
		return nil, err
	}
	if category.Type == models.CategoryTypeTransfer {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "budgets cannot target transfer categories")
	}

	if accountID != nil {
		var account models.Account
		if err := s.db.Where("id = ? AND user_id = ?", *accountID, userID).First(&account).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, apperrors.ErrAccountNotFound
			}
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}

	threshold := models.DefaultAlertThreshold
	if alertThreshold != nil {
		if *alertThreshold <= 0 || *alertThreshold > 1 {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "alert threshold must be in (0, 1]")
		}
		threshold = *alertThreshold
	}

	budget := &models.Budget{
		UserID:         userID,
		CategoryID:     categoryID,
		AccountID:      accountID,
		Name:           name,
		Amount:         amount,
		Period:         period,
		StartDate:      startDate,
		EndDate:        endDate,
		AlertThreshold: threshold,
		IsActive:       true,
	}

	if err := s.db.Create(budget).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	return budget, nil
}

// GetUserBudgets retrieves a paginated list of budgets, optionally filtered
// by active flag and period.
func (s *budgetService) GetUserBudgets(userID uint, page pagination.PageRequest, isActive *bool, period *models.BudgetPeriod) (*pagination.PageResponse[models.Budget], error) {
	page.Defaults()

	base := s.db.Model(&models.Budget{}).Where("user_id = ?", userID)
	if isActive != nil {
		base = base.Where("is_active = ?", *isActive)
	}
	if period != nil {
		base = base.Where("period = ?", *period)
	}

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var budgets []models.Budget
	if err := base.Preload("Category").Scopes(pagination.Paginate(page)).Find(&budgets).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(budgets, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// GetBudgetByID retrieves a budget by ID for a specific user.
func (s *budgetService) GetBudgetByID(userID, budgetID uint) (*models.Budget, error) {
	var budget models.Budget
	if err := s.db.Preload("Category").
		Where("id = ? AND user_id = ?", budgetID, userID).
		First(&budget).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrBudgetNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &budget, nil
}

// UpdateBudget updates a budget's definition. The category is fixed at
// creation; repointing a budget means creating a new one.
func (s *budgetService) UpdateBudget(userID, budgetID uint, fields BudgetUpdateFields) (*models.Budget, error) {
	budget, err := s.GetBudgetByID(userID, budgetID)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if fields.Name != nil && *fields.Name != "" {
		updates["name"] = *fields.Name
	}
	if fields.Amount != nil {
		if *fields.Amount < 0 {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "budget amount must not be negative")
		}
		updates["amount"] = *fields.Amount
	}
	if fields.Period != nil {
		updates["period"] = *fields.Period
	}
	if fields.StartDate != nil {
		updates["start_date"] = *fields.StartDate
	}
	if fields.EndDate != nil {
		updates["end_date"] = *fields.EndDate
	}
	if fields.AlertThreshold != nil {
		if *fields.AlertThreshold <= 0 || *fields.AlertThreshold > 1 {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "alert threshold must be in (0, 1]")
		}
		updates["alert_threshold"] = *fields.AlertThreshold
	}
	if fields.IsActive != nil {
		updates["is_active"] = *fields.IsActive
	}

	if len(updates) > 0 {
		if err := s.db.Model(budget).Updates(updates).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if err := s.db.Preload("Category").Where("id = ?", budgetID).First(budget).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}

	return budget, nil
}

// DeleteBudget soft-deletes a budget.
func (s *budgetService) DeleteBudget(userID, budgetID uint) error {
	budget, err := s.GetBudgetByID(userID, budgetID)
	if err != nil {
		return err
	}
	if err := s.db.Delete(budget).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

// activePeriod returns the bounds of the budget period containing asOf.
// Periods tile contiguously from the start date; the end date, when set,
// caps the final period.
func activePeriod(budget *models.Budget, asOf time.Time) (time.Time, time.Time, error) {
	if asOf.Before(budget.StartDate) {
		return time.Time{}, time.Time{}, apperrors.WithMessage(apperrors.ErrInvalidOperation, "budget has not started yet")
	}

	periodStart := budget.StartDate
	for {
		next := budget.Period.Advance(periodStart)
		if next.After(asOf) {
			break
		}
		if budget.EndDate != nil && !next.Before(*budget.EndDate) {
			break
		}
		periodStart = next
	}

	periodEnd := budget.Period.Advance(periodStart)
	if budget.EndDate != nil && budget.EndDate.Before(periodEnd) {
		periodEnd = *budget.EndDate
	}
	return periodStart, periodEnd, nil
}

// coveredCategoryIDs resolves the categories the budget tracks: the budget
// category's subtree minus any child subtree that carries its own active
// budget, so nested budgets never double count.
func (s *budgetService) coveredCategoryIDs(budget *models.Budget) ([]uint, error) {
	subtree, err := s.categories.SubtreeIDs(budget.UserID, budget.CategoryID)
	if err != nil {
		return nil, err
	}

	inSubtree := make(map[uint]bool, len(subtree))
	for _, id := range subtree {
		inSubtree[id] = true
	}

	var siblings []models.Budget
	if err := s.db.Where("user_id = ? AND is_active = ? AND id <> ?", budget.UserID, true, budget.ID).
		Find(&siblings).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	excluded := make(map[uint]bool)
	for _, other := range siblings {
		if other.CategoryID == budget.CategoryID || !inSubtree[other.CategoryID] {
			continue
		}
		otherSubtree, err := s.categories.SubtreeIDs(budget.UserID, other.CategoryID)
		if err != nil {
			return nil, err
		}
		for _, id := range otherSubtree {
			excluded[id] = true
		}
	}

	var covered []uint
	for _, id := range subtree {
		if !excluded[id] {
			covered = append(covered, id)
		}
	}
	return covered, nil
}

// EvaluateBudget computes spending progress for the period containing asOf.
func (s *budgetService) EvaluateBudget(userID, budgetID uint, asOf time.Time) (*BudgetProgress, error) {
	budget, err := s.GetBudgetByID(userID, budgetID)
	if err != nil {
		return nil, err
	}
	return s.evaluate(budget, asOf)
}

func (s *budgetService) evaluate(budget *models.Budget, asOf time.Time) (*BudgetProgress, error) {
	periodStart, periodEnd, err := activePeriod(budget, asOf)
	if err != nil {
		return nil, err
	}

	covered, err := s.coveredCategoryIDs(budget)
	if err != nil {
		return nil, err
	}

	// Expense budgets track debits, income budgets track credits.
	entryType := models.EntryTypeDebit
	if budget.Category.Type == models.CategoryTypeIncome {
		entryType = models.EntryTypeCredit
	}

	var spent int64
	if len(covered) > 0 {
		query := s.db.Model(&models.Transaction{}).
			Where("user_id = ? AND type = ?", budget.UserID, entryType).
			Where("category_id IN ?", covered).
			Where("date >= ? AND date < ?", periodStart, periodEnd)
		if budget.AccountID != nil {
			query = query.Where("account_id = ?", *budget.AccountID)
		}
		if err := query.Select("COALESCE(SUM(amount), 0)").Scan(&spent).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}

	var percentage float64
	if budget.Amount > 0 {
		percentage = float64(spent) / float64(budget.Amount)
	}

	status := BudgetStatusOnTrack
	switch {
	case percentage >= 1 || (budget.Amount == 0 && spent > 0):
		status = BudgetStatusExceeded
	case percentage >= budget.AlertThreshold:
		status = BudgetStatusAtRisk
	}

	daysRemaining := int(periodEnd.Sub(asOf).Hours() / 24)
	if daysRemaining < 0 {
		daysRemaining = 0
	}

	return &BudgetProgress{
		BudgetID:      budget.ID,
		PeriodStart:   periodStart,
		PeriodEnd:     periodEnd,
		Budgeted:      budget.Amount,
		Spent:         spent,
		Remaining:     budget.Amount - spent,
		Percentage:    percentage,
		Status:        status,
		DaysRemaining: daysRemaining,
	}, nil
}

// EvaluateUserBudgets evaluates every active budget for the user. Budgets
// whose first period starts after asOf are skipped rather than failing the
// whole batch.
func (s *budgetService) EvaluateUserBudgets(userID uint, asOf time.Time) ([]BudgetProgress, error) {
	var budgets []models.Budget
	if err := s.db.Preload("Category").
		Where("user_id = ? AND is_active = ?", userID, true).
		Order("id ASC").
		Find(&budgets).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	results := make([]BudgetProgress, 0, len(budgets))
	for i := range budgets {
		if asOf.Before(budgets[i].StartDate) {
			continue
		}
		progress, err := s.evaluate(&budgets[i], asOf)
		if err != nil {
			return nil, err
		}
		results = append(results, *progress)
	}
	return results, nil
}
