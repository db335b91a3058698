package services

import (
	"sort"
	"time"

	"gorm.io/gorm"

	apperrors "ledgerly/internal/errors"
	"ledgerly/internal/models"
)

// analyticsService rolls up ledger transactions by time bucket and category.
// It is strictly read-only: balances and budgets are never touched here.
type analyticsService struct {
	db *gorm.DB
}

// NewAnalyticsService creates a new AnalyticsServicer.
func NewAnalyticsService(db *gorm.DB) AnalyticsServicer {
	return &analyticsService{db: db}
}

// bucketStart truncates t to the start of its bucket. Weeks start on Monday.
// Truncation happens in Go so the result is identical across drivers.
func bucketStart(t time.Time, bucket BucketSize) time.Time {
	t = t.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	switch bucket {
	case BucketWeek:
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	case BucketMonth:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
	return day
}

// Aggregate groups non-deleted transactions in [startDate, endDate] into time
// buckets and returns net signed flow per bucket with a per-category
// breakdown, ordered by bucket start ascending.
func (s *analyticsService) Aggregate(userID uint, filter AnalyticsFilter, startDate, endDate time.Time, bucket BucketSize) ([]BucketTotal, error) {
	if endDate.Before(startDate) {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "end date must not be before start date")
	}

	query := s.db.Where("user_id = ? AND date >= ? AND date <= ?", userID, startDate, endDate)
	if len(filter.AccountIDs) > 0 {
		query = query.Where("account_id IN ?", filter.AccountIDs)
	}
	if len(filter.CategoryIDs) > 0 {
		query = query.Where("category_id IN ?", filter.CategoryIDs)
	}

	var transactions []models.Transaction
	if err := query.Find(&transactions).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	buckets := make(map[time.Time]*BucketTotal)
	for _, txn := range transactions {
		start := bucketStart(txn.Date, bucket)
		total, ok := buckets[start]
		if !ok {
			total = &BucketTotal{BucketStart: start, ByCategory: make(map[uint]int64)}
			buckets[start] = total
		}
		signed := txn.Type.SignedAmount(txn.Amount)
		total.Net += signed
		if txn.CategoryID != nil {
			total.ByCategory[*txn.CategoryID] += signed
		}
	}

	result := make([]BucketTotal, 0, len(buckets))
	for _, total := range buckets {
		result = append(result, *total)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].BucketStart.Before(result[j].BucketStart)
	})
	return result, nil
}

// CategorySummary totals signed flow per category over [startDate, endDate].
// Uncategorized transactions are omitted. Results are ordered by category name.
func (s *analyticsService) CategorySummary(userID uint, startDate, endDate time.Time) ([]CategoryTotal, error) {
	if endDate.Before(startDate) {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "end date must not be before start date")
	}

	var transactions []models.Transaction
	if err := s.db.
		Where("user_id = ? AND category_id IS NOT NULL AND date >= ? AND date <= ?", userID, startDate, endDate).
		Find(&transactions).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	totals := make(map[uint]*CategoryTotal)
	for _, txn := range transactions {
		id := *txn.CategoryID
		total, ok := totals[id]
		if !ok {
			total = &CategoryTotal{CategoryID: id}
			totals[id] = total
		}
		total.Total += txn.Type.SignedAmount(txn.Amount)
		total.Count++
	}

	if len(totals) > 0 {
		ids := make([]uint, 0, len(totals))
		for id := range totals {
			ids = append(ids, id)
		}
		var categories []models.Category
		if err := s.db.Where("id IN ?", ids).Find(&categories).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		for _, c := range categories {
			if total, ok := totals[c.ID]; ok {
				total.CategoryName = c.Name
				total.Type = c.Type
			}
		}
	}

	result := make([]CategoryTotal, 0, len(totals))
	for _, total := range totals {
		result = append(result, *total)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CategoryName < result[j].CategoryName
	})
	return result, nil
}
