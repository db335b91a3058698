package services

import (
	"errors"
	"time"

	"gorm.io/gorm"

	apperrors "ledgerly/internal/errors"
	"ledgerly/internal/models"
	"ledgerly/internal/pagination"
)

// recurringService manages recurring transaction templates. Occurrences are
// materialized through the ledger service so every generated transaction
// goes through the same validation and balance maintenance as a manual one.
type recurringService struct {
	db     *gorm.DB
	ledger LedgerServicer
}

// NewRecurringService creates a new RecurringServicer.
func NewRecurringService(db *gorm.DB, ledger LedgerServicer) RecurringServicer {
	return &recurringService{db: db, ledger: ledger}
}

// CreateRecurring creates a new recurring template. Validation mirrors
// ledger transaction creation so a template can never produce a transaction
// the ledger would reject.
func (s *recurringService) CreateRecurring(
	userID, accountID uint,
	categoryID *uint,
	name string,
	entryType models.EntryType,
	amount int64,
	description string,
	frequency models.RecurringFrequency,
	interval int,
	startDate time.Time,
	endDate *time.Time,
) (*models.Recurring, error) {
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "recurring name is required")
	}
	if amount <= 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "amount must be positive")
	}
	if entryType != models.EntryTypeDebit && entryType != models.EntryTypeCredit {
		return nil, apperrors.ErrInvalidEntryType
	}
	if interval < 1 {
		interval = 1
	}
	if endDate != nil && endDate.Before(startDate) {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "end date must not be before start date")
	}

	var account models.Account
	if err := s.db.Where("id = ? AND user_id = ?", accountID, userID).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrAccountNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if !account.IsActive {
		return nil, apperrors.ErrAccountInactive
	}

	if err := validateCategory(s.db, userID, categoryID, entryType); err != nil {
		return nil, err
	}

	next := startDate
	recurring := &models.Recurring{
		UserID:      userID,
		AccountID:   accountID,
		CategoryID:  categoryID,
		Name:        name,
		Type:        entryType,
		Amount:      amount,
		Description: description,
		Frequency:   frequency,
		Interval:    interval,
		StartDate:   startDate,
		EndDate:     endDate,
		NextDate:    &next,
		IsActive:    true,
	}

	if err := s.db.Create(recurring).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	return recurring, nil
}

// GetUserRecurring retrieves a paginated list of recurring templates.
func (s *recurringService) GetUserRecurring(userID uint, page pagination.PageRequest) (*pagination.PageResponse[models.Recurring], error) {
	page.Defaults()

	base := s.db.Model(&models.Recurring{}).Where("user_id = ?", userID)

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var templates []models.Recurring
	if err := base.Scopes(pagination.Paginate(page)).Find(&templates).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(templates, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// GetRecurringByID retrieves a recurring template by ID for a specific user.
func (s *recurringService) GetRecurringByID(userID, recurringID uint) (*models.Recurring, error) {
	var recurring models.Recurring
	if err := s.db.Where("id = ? AND user_id = ?", recurringID, userID).First(&recurring).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrRecurringNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &recurring, nil
}

// UpdateRecurring updates a recurring template. The account is fixed at
// creation, matching the ledger's immutable account rule.
func (s *recurringService) UpdateRecurring(userID, recurringID uint, fields RecurringUpdateFields) (*models.Recurring, error) {
	recurring, err := s.GetRecurringByID(userID, recurringID)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if fields.Name != nil && *fields.Name != "" {
		updates["name"] = *fields.Name
	}
	if fields.Type != nil {
		if *fields.Type != models.EntryTypeDebit && *fields.Type != models.EntryTypeCredit {
			return nil, apperrors.ErrInvalidEntryType
		}
		updates["type"] = *fields.Type
	}
	if fields.Amount != nil {
		if *fields.Amount <= 0 {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "amount must be positive")
		}
		updates["amount"] = *fields.Amount
	}
	if fields.Description != nil {
		updates["description"] = *fields.Description
	}
	if fields.Frequency != nil {
		updates["frequency"] = *fields.Frequency
	}
	if fields.Interval != nil && *fields.Interval >= 1 {
		updates["interval"] = *fields.Interval
	}
	if fields.EndDate != nil {
		updates["end_date"] = *fields.EndDate
	}
	if fields.IsActive != nil {
		updates["is_active"] = *fields.IsActive
	}

	if fields.CategoryID != nil {
		effectiveType := recurring.Type
		if fields.Type != nil {
			effectiveType = *fields.Type
		}
		if err := validateCategory(s.db, userID, *fields.CategoryID, effectiveType); err != nil {
			return nil, err
		}
		updates["category_id"] = *fields.CategoryID
	} else if fields.Type != nil && recurring.CategoryID != nil {
		if err := validateCategory(s.db, userID, recurring.CategoryID, *fields.Type); err != nil {
			return nil, err
		}
	}

	if len(updates) > 0 {
		if err := s.db.Model(recurring).Updates(updates).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if err := s.db.Where("id = ?", recurringID).First(recurring).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}

	return recurring, nil
}

// DeleteRecurring soft-deletes a recurring template. Transactions already
// materialized from it are untouched.
func (s *recurringService) DeleteRecurring(userID, recurringID uint) error {
	recurring, err := s.GetRecurringByID(userID, recurringID)
	if err != nil {
		return err
	}
	if err := s.db.Delete(recurring).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

// RunDue materializes every due occurrence for the user's active templates
// up to asOf and returns the number of transactions created. A template
// whose next occurrence passes its end date is deactivated.
func (s *recurringService) RunDue(userID uint, asOf time.Time) (int, error) {
	var templates []models.Recurring
	if err := s.db.
		Where("user_id = ? AND is_active = ? AND next_date IS NOT NULL AND next_date <= ?", userID, true, asOf).
		Order("id ASC").
		Find(&templates).Error; err != nil {
		return 0, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	created := 0
	for i := range templates {
		n, err := s.runTemplate(&templates[i], asOf)
		created += n
		if err != nil {
			return created, err
		}
	}
	return created, nil
}

// RunAllDue materializes due occurrences across every user. It backs the
// internal sweep job; failures on one template do not stop the sweep.
func (s *recurringService) RunAllDue(asOf time.Time) (int, error) {
	var templates []models.Recurring
	if err := s.db.
		Where("is_active = ? AND next_date IS NOT NULL AND next_date <= ?", true, asOf).
		Order("id ASC").
		Find(&templates).Error; err != nil {
		return 0, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	created := 0
	var firstErr error
	for i := range templates {
		n, err := s.runTemplate(&templates[i], asOf)
		created += n
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return created, firstErr
}

func (s *recurringService) runTemplate(recurring *models.Recurring, asOf time.Time) (int, error) {
	created := 0
	next := *recurring.NextDate

	for !next.After(asOf) {
		if recurring.EndDate != nil && next.After(*recurring.EndDate) {
			break
		}

		if _, err := s.ledger.CreateTransaction(
			recurring.UserID,
			recurring.AccountID,
			recurring.CategoryID,
			recurring.Type,
			recurring.Amount,
			recurring.Description,
			next,
		); err != nil {
			return created, err
		}
		created++

		last := next
		recurring.LastDate = &last
		next = recurring.Frequency.Advance(next, recurring.Interval)
	}

	updates := map[string]interface{}{
		"last_date": recurring.LastDate,
		"next_date": next,
	}
	if recurring.EndDate != nil && next.After(*recurring.EndDate) {
		updates["next_date"] = nil
		updates["is_active"] = false
	}
	if err := s.db.Model(recurring).Updates(updates).Error; err != nil {
		return created, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return created, nil
}
