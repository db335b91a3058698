package services

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "ledgerly/internal/errors"
	"ledgerly/internal/models"
	"ledgerly/internal/pagination"
)

// ledgerService is the only component that mutates transactions and account
// balances. Mutations for one account are serialized on the account row lock;
// mutations for different accounts proceed in parallel.
type ledgerService struct {
	db *gorm.DB
}

// NewLedgerService creates a new LedgerServicer.
func NewLedgerService(db *gorm.DB) LedgerServicer {
	return &ledgerService{db: db}
}

// ledgerPosition identifies a transaction's place in ledger order:
// ascending date, ties broken by ascending insertion sequence.
type ledgerPosition struct {
	date time.Time
	seq  int64
}

func positionOf(t *models.Transaction) ledgerPosition {
	return ledgerPosition{date: t.Date, seq: t.Sequence}
}

func (p ledgerPosition) before(other ledgerPosition) bool {
	if p.date.Equal(other.date) {
		return p.seq < other.seq
	}
	return p.date.Before(other.date)
}

// lockAccount loads the account row under FOR UPDATE so that concurrent
// mutations against the same account queue behind each other.
func lockAccount(tx *gorm.DB, userID, accountID uint) (*models.Account, error) {
	var account models.Account
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND user_id = ?", accountID, userID).
		First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrAccountNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &account, nil
}

// nextSequence returns the next insertion sequence for an account. Soft-
// deleted rows are included so sequences stay monotonic across deletes.
func nextSequence(tx *gorm.DB, accountID uint) (int64, error) {
	var maxSeq int64
	err := tx.Unscoped().Model(&models.Transaction{}).
		Where("account_id = ?", accountID).
		Select("COALESCE(MAX(sequence), 0)").
		Scan(&maxSeq).Error
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return maxSeq + 1, nil
}

// validateCategory checks that a category reference is visible to the user
// (owned or system) and that its type admits the transaction's entry type.
func validateCategory(tx *gorm.DB, userID uint, categoryID *uint, entry models.EntryType) error {
	if categoryID == nil {
		return nil
	}
	var category models.Category
	if err := tx.Where("id = ? AND (user_id = ? OR is_system = ?)", *categoryID, userID, true).
		First(&category).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrCategoryNotFound
		}
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if !category.Type.EntryTypeAllowed(entry) {
		return apperrors.ErrEntryTypeMismatch
	}
	return nil
}

// recomputeSuffix recomputes balance_after for every transaction at or after
// the given ledger position and refreshes the account's cached balance. The
// starting balance is the balance_after of the transaction immediately
// preceding the position, or the account's initial balance if none precedes.
func (s *ledgerService) recomputeSuffix(tx *gorm.DB, account *models.Account, from ledgerPosition) error {
	var prev models.Transaction
	start := account.InitialBalance
	err := tx.Where("account_id = ? AND (date < ? OR (date = ? AND sequence < ?))",
		account.ID, from.date, from.date, from.seq).
		Order("date DESC").Order("sequence DESC").
		First(&prev).Error
	switch {
	case err == nil:
		start = prev.BalanceAfter
	case errors.Is(err, gorm.ErrRecordNotFound):
		// No predecessor: walk from the initial balance.
	default:
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var suffix []models.Transaction
	if err := tx.Where("account_id = ? AND (date > ? OR (date = ? AND sequence >= ?))",
		account.ID, from.date, from.date, from.seq).
		Order("date ASC").Order("sequence ASC").
		Find(&suffix).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	running := start
	for i := range suffix {
		running += suffix[i].Type.SignedAmount(suffix[i].Amount)
		if suffix[i].BalanceAfter != running {
			if err := tx.Model(&suffix[i]).UpdateColumn("balance_after", running).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
		}
	}

	account.Balance = running
	if err := tx.Model(account).UpdateColumn("balance", running).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

// CreateTransaction validates and inserts a transaction at its date position
// in the account's ledger, recomputing balance_after for it and everything
// after it. The returned transaction has balance_after populated.
func (s *ledgerService) CreateTransaction(
	userID, accountID uint,
	categoryID *uint,
	entryType models.EntryType,
	amount int64,
	description string,
	date time.Time,
) (*models.Transaction, error) {
	if amount <= 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "amount must be greater than zero")
	}
	if accountID == 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "account ID is required")
	}
	if entryType != models.EntryTypeDebit && entryType != models.EntryTypeCredit {
		return nil, apperrors.ErrInvalidEntryType
	}
	if date.IsZero() {
		date = time.Now()
	}

	var result models.Transaction
	err := s.db.Transaction(func(tx *gorm.DB) error {
		account, err := lockAccount(tx, userID, accountID)
		if err != nil {
			return err
		}
		if !account.IsActive {
			return apperrors.ErrAccountInactive
		}
		if err := validateCategory(tx, userID, categoryID, entryType); err != nil {
			return err
		}

		seq, err := nextSequence(tx, account.ID)
		if err != nil {
			return err
		}

		result = models.Transaction{
			UserID:      userID,
			AccountID:   account.ID,
			CategoryID:  categoryID,
			Type:        entryType,
			Amount:      amount,
			Description: description,
			Date:        date,
			Sequence:    seq,
		}
		if err := tx.Create(&result).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		if err := s.recomputeSuffix(tx, account, positionOf(&result)); err != nil {
			return err
		}

		// Reload to pick up the recomputed balance_after.
		if err := tx.First(&result, result.ID).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// UpdateTransaction applies a partial update. Changing amount, type, or date
// logically removes the transaction from its old ledger position and
// reinserts it at the new one; balance_after is recomputed from the earlier
// of the two positions onward. The owning account is immutable.
func (s *ledgerService) UpdateTransaction(userID, transactionID uint, fields TransactionUpdateFields) (*models.Transaction, error) {
	if fields.Amount != nil && *fields.Amount <= 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "amount must be greater than zero")
	}
	if fields.Type != nil && *fields.Type != models.EntryTypeDebit && *fields.Type != models.EntryTypeCredit {
		return nil, apperrors.ErrInvalidEntryType
	}

	var result models.Transaction
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var txn models.Transaction
		if err := tx.Where("id = ? AND user_id = ?", transactionID, userID).First(&txn).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrTransactionNotFound
			}
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		if fields.AccountID != nil && *fields.AccountID != txn.AccountID {
			return apperrors.ErrImmutableField
		}

		account, err := lockAccount(tx, userID, txn.AccountID)
		if err != nil {
			return err
		}

		// Re-read under the lock so the computed positions cannot race a
		// concurrent mutation that committed between the first read and the
		// lock acquisition.
		if err := tx.Where("id = ?", transactionID).First(&txn).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrTransactionNotFound
			}
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		oldPos := positionOf(&txn)

		if fields.Type != nil {
			txn.Type = *fields.Type
		}
		if fields.Amount != nil {
			txn.Amount = *fields.Amount
		}
		if fields.Date != nil && !fields.Date.IsZero() {
			txn.Date = *fields.Date
		}
		if fields.Description != nil {
			txn.Description = *fields.Description
		}
		if fields.CategoryID != nil {
			txn.CategoryID = *fields.CategoryID
		}

		// The (possibly unchanged) category must admit the effective type.
		if err := validateCategory(tx, userID, txn.CategoryID, txn.Type); err != nil {
			return err
		}

		if err := tx.Save(&txn).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		anchor := oldPos
		if newPos := positionOf(&txn); newPos.before(oldPos) {
			anchor = newPos
		}
		if err := s.recomputeSuffix(tx, account, anchor); err != nil {
			return err
		}

		if err := tx.First(&txn, txn.ID).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		result = txn
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// DeleteTransaction soft-deletes a transaction and recomputes balance_after
// for everything after its former position. The row is kept for audit but
// excluded from all reads and balance computation.
func (s *ledgerService) DeleteTransaction(userID, transactionID uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var txn models.Transaction
		if err := tx.Where("id = ? AND user_id = ?", transactionID, userID).First(&txn).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrTransactionNotFound
			}
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		account, err := lockAccount(tx, userID, txn.AccountID)
		if err != nil {
			return err
		}

		if err := tx.Where("id = ?", transactionID).First(&txn).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrTransactionNotFound
			}
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		pos := positionOf(&txn)
		if err := tx.Delete(&txn).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		return s.recomputeSuffix(tx, account, pos)
	})
}

// GetTransactionByID retrieves a transaction by ID for a specific user.
func (s *ledgerService) GetTransactionByID(userID, transactionID uint) (*models.Transaction, error) {
	var txn models.Transaction
	if err := s.db.Where("id = ? AND user_id = ?", transactionID, userID).First(&txn).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrTransactionNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &txn, nil
}

// GetUserTransactions retrieves a paginated, filtered list of the user's
// transactions across all accounts.
func (s *ledgerService) GetUserTransactions(userID uint, page pagination.PageRequest, filter TransactionFilter) (*pagination.PageResponse[models.Transaction], error) {
	page.Defaults()

	base := s.db.Model(&models.Transaction{}).Where("user_id = ?", userID)
	base = applyTransactionFilters(base, filter)

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var transactions []models.Transaction
	if err := applyTransactionSort(base, filter).
		Scopes(pagination.Paginate(page)).
		Find(&transactions).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(transactions, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// GetAccountTransactions retrieves a paginated, filtered list of transactions
// for a specific account after verifying ownership.
func (s *ledgerService) GetAccountTransactions(userID, accountID uint, page pagination.PageRequest, filter TransactionFilter) (*pagination.PageResponse[models.Transaction], error) {
	var account models.Account
	if err := s.db.Where("id = ? AND user_id = ?", accountID, userID).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrAccountNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	filter.AccountID = &accountID
	return s.GetUserTransactions(userID, page, filter)
}

func applyTransactionFilters(q *gorm.DB, f TransactionFilter) *gorm.DB {
	if f.AccountID != nil {
		q = q.Where("account_id = ?", *f.AccountID)
	}
	if f.CategoryID != nil {
		q = q.Where("category_id = ?", *f.CategoryID)
	}
	if f.Type != nil {
		q = q.Where("type = ?", *f.Type)
	}
	if f.FromDate != nil {
		q = q.Where("date >= ?", *f.FromDate)
	}
	if f.ToDate != nil {
		q = q.Where("date <= ?", *f.ToDate)
	}
	if f.MinAmount != nil {
		q = q.Where("amount >= ?", *f.MinAmount)
	}
	if f.MaxAmount != nil {
		q = q.Where("amount <= ?", *f.MaxAmount)
	}
	if f.Search != "" {
		q = q.Where("description LIKE ?", "%"+f.Search+"%")
	}
	return q
}

func applyTransactionSort(q *gorm.DB, f TransactionFilter) *gorm.DB {
	dir := "ASC"
	if f.SortDesc {
		dir = "DESC"
	}
	if f.SortBy == "amount" {
		return q.Order("amount " + dir).Order("date " + dir)
	}
	// Date sorts always tie-break on the insertion sequence so the listing
	// matches ledger order.
	return q.Order("date " + dir).Order("sequence " + dir)
}

// RebuildAccountBalances recomputes every balance_after and the account's
// cached balance from the initial balance forward. It is the reference
// implementation the incremental suffix recompute must agree with, and the
// repair path when the cache is suspected stale.
func (s *ledgerService) RebuildAccountBalances(userID, accountID uint) (*models.Account, error) {
	var account *models.Account
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		account, err = lockAccount(tx, userID, accountID)
		if err != nil {
			return err
		}

		var transactions []models.Transaction
		if err := tx.Where("account_id = ?", account.ID).
			Order("date ASC").Order("sequence ASC").
			Find(&transactions).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		running := account.InitialBalance
		for i := range transactions {
			running += transactions[i].Type.SignedAmount(transactions[i].Amount)
			if transactions[i].BalanceAfter != running {
				if err := tx.Model(&transactions[i]).UpdateColumn("balance_after", running).Error; err != nil {
					return apperrors.Wrap(apperrors.ErrInternalServer, err)
				}
			}
		}

		account.Balance = running
		if err := tx.Model(account).UpdateColumn("balance", running).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

// RebuildAllBalances rebuilds every account of the user in parallel.
// Accounts are independent ledgers, so the per-account rebuilds do not
// contend with each other.
func (s *ledgerService) RebuildAllBalances(ctx context.Context, userID uint) error {
	var accountIDs []uint
	if err := s.db.Model(&models.Account{}).
		Where("user_id = ?", userID).
		Pluck("id", &accountIDs).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	g, _ := errgroup.WithContext(ctx)
	for _, id := range accountIDs {
		id := id
		g.Go(func() error {
			_, err := s.RebuildAccountBalances(userID, id)
			return err
		})
	}
	return g.Wait()
}
